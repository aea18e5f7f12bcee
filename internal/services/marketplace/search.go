package marketplace

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"marketscout/internal/services"
)

// App is the subset of catalog metadata the scorer and discovery use.
type App struct {
	ID            int64
	Name          string
	Seller        string
	Description   string
	Genre         string
	Price         float64
	Currency      string
	AverageRating float64
	RatingCount   int
	FileSizeBytes int64
	ReleasedAt    time.Time
	UpdatedAt     time.Time
	URL           string
}

// SearchResult is one catalog query: the apps returned and how many the
// catalog reported in total.
type SearchResult struct {
	Query       string
	Country     string
	ResultCount int
	Apps        []App
}

type searchResponse struct {
	ResultCount int         `json:"resultCount"`
	Results     []rawResult `json:"results"`
}

type rawResult struct {
	Kind                      string  `json:"kind"`
	TrackID                   int64   `json:"trackId"`
	TrackName                 string  `json:"trackName"`
	SellerName                string  `json:"sellerName"`
	Description               string  `json:"description"`
	PrimaryGenreName          string  `json:"primaryGenreName"`
	Price                     float64 `json:"price"`
	Currency                  string  `json:"currency"`
	AverageUserRating         float64 `json:"averageUserRating"`
	UserRatingCount           int     `json:"userRatingCount"`
	FileSizeBytes             string  `json:"fileSizeBytes"`
	ReleaseDate               string  `json:"releaseDate"`
	CurrentVersionReleaseDate string  `json:"currentVersionReleaseDate"`
	TrackViewURL              string  `json:"trackViewUrl"`
}

func (r rawResult) toApp() App {
	size, _ := strconv.ParseInt(strings.TrimSpace(r.FileSizeBytes), 10, 64)
	released, _ := time.Parse(time.RFC3339, r.ReleaseDate)
	updated, _ := time.Parse(time.RFC3339, r.CurrentVersionReleaseDate)
	return App{
		ID:            r.TrackID,
		Name:          strings.TrimSpace(r.TrackName),
		Seller:        strings.TrimSpace(r.SellerName),
		Description:   r.Description,
		Genre:         r.PrimaryGenreName,
		Price:         r.Price,
		Currency:      r.Currency,
		AverageRating: r.AverageUserRating,
		RatingCount:   r.UserRatingCount,
		FileSizeBytes: size,
		ReleasedAt:    released,
		UpdatedAt:     updated,
		URL:           r.TrackViewURL,
	}
}

// Lookup searches the catalog for query and returns at most limit apps.
// A non-positive limit uses the configured result limit.
func (c *Client) Lookup(ctx context.Context, query, country string, limit int) (SearchResult, error) {
	query = strings.TrimSpace(query)
	country = c.country(country)
	if query == "" {
		return SearchResult{}, services.Wrap(services.ErrValidation, "marketplace", "search", "query is empty", nil)
	}
	if limit <= 0 {
		limit = c.cfg.ResultLimit
	}
	params := url.Values{}
	params.Set("term", query)
	params.Set("country", country)
	params.Set("entity", "software")
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "search", c.cfg.SearchURL+"?"+params.Encode())
	if err != nil {
		return SearchResult{}, err
	}
	apps, total, err := decodeApps(body, "search")
	if err != nil {
		return SearchResult{}, err
	}
	if len(apps) > limit {
		apps = apps[:limit]
	}
	return SearchResult{Query: query, Country: country, ResultCount: total, Apps: apps}, nil
}

// LookupApp fetches a single app by catalog id.
func (c *Client) LookupApp(ctx context.Context, id, country string) (*App, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, services.Wrap(services.ErrValidation, "marketplace", "lookup", "app id is empty", nil)
	}
	params := url.Values{}
	params.Set("id", id)
	params.Set("country", c.country(country))
	params.Set("entity", "software")

	body, err := c.get(ctx, "lookup", c.cfg.LookupURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}
	apps, _, err := decodeApps(body, "lookup")
	if err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "marketplace", "lookup", "app "+id+" not found", nil)
	}
	return &apps[0], nil
}

func decodeApps(body []byte, op string) ([]App, int, error) {
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, 0, services.Wrap(services.ErrExternalTool, "marketplace", op, "decode response", err)
	}
	apps := make([]App, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.TrackID == 0 || (r.Kind != "" && r.Kind != "software") {
			continue
		}
		apps = append(apps, r.toApp())
	}
	total := resp.ResultCount
	if total < len(apps) {
		total = len(apps)
	}
	return apps, total, nil
}
