package scorellm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"marketscout/internal/scoring"
	"marketscout/internal/services"
	"marketscout/internal/services/marketplace"
)

const (
	maxSnapshotApps    = 10
	maxDescriptionRune = 400
)

// Completer issues JSON chat completions; *llm.Client satisfies it.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Configured() bool
}

// Decoder parses a model payload into target; llm.DecodeLLMJSON satisfies it.
type Decoder func(content string, target any) error

// Client scores keywords qualitatively.
type Client struct {
	completer Completer
	decode    Decoder
}

// New wraps completer. decode parses model output and must not be nil.
func New(completer Completer, decode Decoder) *Client {
	return &Client{completer: completer, decode: decode}
}

type assessmentPayload struct {
	CompetitionGap          *float64 `json:"competition_gap"`
	MarketDemand            *float64 `json:"market_demand"`
	RevenuePotential        *float64 `json:"revenue_potential"`
	TrendMomentum           *float64 `json:"trend_momentum"`
	ExecutionFeasibility    *float64 `json:"execution_feasibility"`
	Reasoning               string   `json:"reasoning"`
	TopCompetitorWeaknesses []string `json:"top_competitor_weaknesses"`
	SuggestedDifferentiator string   `json:"suggested_differentiator"`
}

type snapshotApp struct {
	Name        string  `json:"name"`
	Seller      string  `json:"seller,omitempty"`
	Rating      float64 `json:"rating"`
	Ratings     int     `json:"ratings"`
	Price       float64 `json:"price"`
	LastUpdated string  `json:"last_updated,omitempty"`
	Description string  `json:"description,omitempty"`
}

type snapshotPrompt struct {
	Keyword     string        `json:"keyword"`
	Country     string        `json:"country"`
	ResultCount int           `json:"result_count"`
	Apps        []snapshotApp `json:"top_apps"`
}

// ScoreQualitative asks the model to assess keyword given snapshot. Missing or
// non-numeric dimensions are an error so the caller degrades instead of
// blending zeros.
func (c *Client) ScoreQualitative(ctx context.Context, keyword string, snapshot marketplace.SearchResult) (scoring.Assessment, error) {
	if c == nil || c.completer == nil || !c.completer.Configured() {
		return scoring.Assessment{}, services.Wrap(services.ErrConfiguration, "scorellm", "assess", "llm not configured", nil)
	}
	prompt, err := buildUserPrompt(keyword, snapshot)
	if err != nil {
		return scoring.Assessment{}, err
	}
	content, err := c.completer.CompleteJSON(ctx, AssessmentPrompt, prompt)
	if err != nil {
		return scoring.Assessment{}, err
	}
	var payload assessmentPayload
	if err := c.decode(content, &payload); err != nil {
		return scoring.Assessment{}, services.Wrap(services.ErrExternalTool, "scorellm", "assess", "parse payload", err)
	}
	dims, missing := payload.dimensions()
	if len(missing) > 0 {
		return scoring.Assessment{}, services.Wrap(services.ErrExternalTool, "scorellm", "assess",
			"missing dimensions: "+strings.Join(missing, ", "), nil)
	}
	return scoring.Assessment{
		Dimensions:     dims.Clamp(),
		Reasoning:      strings.TrimSpace(payload.Reasoning),
		Weaknesses:     payload.TopCompetitorWeaknesses,
		Differentiator: strings.TrimSpace(payload.SuggestedDifferentiator),
	}, nil
}

func (p assessmentPayload) dimensions() (scoring.Dimensions, []string) {
	var missing []string
	value := func(name string, v *float64) float64 {
		if v == nil {
			missing = append(missing, name)
			return 0
		}
		return *v
	}
	dims := scoring.Dimensions{
		CompetitionGap:       value("competition_gap", p.CompetitionGap),
		MarketDemand:         value("market_demand", p.MarketDemand),
		RevenuePotential:     value("revenue_potential", p.RevenuePotential),
		TrendMomentum:        value("trend_momentum", p.TrendMomentum),
		ExecutionFeasibility: value("execution_feasibility", p.ExecutionFeasibility),
	}
	return dims, missing
}

func buildUserPrompt(keyword string, snapshot marketplace.SearchResult) (string, error) {
	prompt := snapshotPrompt{
		Keyword:     keyword,
		Country:     snapshot.Country,
		ResultCount: snapshot.ResultCount,
	}
	for i, app := range snapshot.Apps {
		if i == maxSnapshotApps {
			break
		}
		entry := snapshotApp{
			Name:        app.Name,
			Seller:      app.Seller,
			Rating:      app.AverageRating,
			Ratings:     app.RatingCount,
			Price:       app.Price,
			Description: truncateRunes(strings.Join(strings.Fields(app.Description), " "), maxDescriptionRune),
		}
		if !app.UpdatedAt.IsZero() {
			entry.LastUpdated = app.UpdatedAt.Format("2006-01-02")
		}
		prompt.Apps = append(prompt.Apps, entry)
	}
	encoded, err := json.MarshalIndent(prompt, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot prompt: %w", err)
	}
	return string(encoded), nil
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "..."
}
