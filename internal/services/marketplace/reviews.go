package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"marketscout/internal/services"
)

// Review is one customer review.
type Review struct {
	Author  string
	Rating  int
	Title   string
	Content string
}

type labelValue struct {
	Label string `json:"label"`
}

type reviewEntry struct {
	Author struct {
		Name labelValue `json:"name"`
	} `json:"author"`
	Rating  labelValue `json:"im:rating"`
	Title   labelValue `json:"title"`
	Content labelValue `json:"content"`
}

type reviewFeed struct {
	Feed struct {
		Entry json.RawMessage `json:"entry"`
	} `json:"feed"`
}

// Reviews returns the most recent customer reviews for an app. Apps without
// reviews yield an empty slice.
func (c *Client) Reviews(ctx context.Context, id, country string) ([]Review, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, services.Wrap(services.ErrValidation, "marketplace", "reviews", "app id is empty", nil)
	}
	endpoint := fmt.Sprintf("%s/%s/rss/customerreviews/id=%s/sortBy=mostRecent/json",
		strings.TrimRight(c.cfg.ReviewsURL, "/"), c.country(country), id)
	body, err := c.get(ctx, "reviews", endpoint)
	if err != nil {
		return nil, err
	}
	reviews, err := decodeReviews(body)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "marketplace", "reviews", "decode feed", err)
	}
	return reviews, nil
}

// decodeReviews accepts the feed's entry field as either an array or a single
// object. Entries without a rating (the app summary entry) are skipped.
func decodeReviews(body []byte) ([]Review, error) {
	var feed reviewFeed
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, err
	}
	raw := feed.Feed.Entry
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var entries []reviewEntry
	if trimmed := strings.TrimSpace(string(raw)); strings.HasPrefix(trimmed, "{") {
		var single reviewEntry
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, err
		}
		entries = append(entries, single)
	} else if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}

	reviews := make([]Review, 0, len(entries))
	for _, entry := range entries {
		rating, err := strconv.Atoi(strings.TrimSpace(entry.Rating.Label))
		if err != nil {
			continue
		}
		reviews = append(reviews, Review{
			Author:  entry.Author.Name.Label,
			Rating:  rating,
			Title:   strings.TrimSpace(entry.Title.Label),
			Content: strings.TrimSpace(entry.Content.Label),
		})
	}
	return reviews, nil
}
