package scorellm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"marketscout/internal/services"
	"marketscout/internal/services/llm"
	"marketscout/internal/services/marketplace"
)

func snapshot() marketplace.SearchResult {
	return marketplace.SearchResult{
		Query:       "budget tracker",
		Country:     "us",
		ResultCount: 2,
		Apps: []marketplace.App{
			{Name: "Mint", AverageRating: 4.7, RatingCount: 900000, Description: strings.Repeat("long ", 500), UpdatedAt: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)},
			{Name: "Crashy", AverageRating: 2.1, RatingCount: 300},
		},
	}
}

func newLLMServer(t *testing.T, content string, seen *string) *llm.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if seen != nil && len(req.Messages) == 2 {
			*seen = req.Messages[1].Content
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
		})
	}))
	t.Cleanup(server.Close)
	return llm.NewClient(llm.Config{APIKey: "test", BaseURL: server.URL}, llm.WithRetryMaxAttempts(1))
}

func TestScoreQualitative(t *testing.T) {
	var userPrompt string
	client := New(newLLMServer(t, "```json\n"+`{
		"competition_gap": 80, "market_demand": 65, "revenue_potential": 140,
		"trend_momentum": 55, "execution_feasibility": 70,
		"reasoning": " Incumbents are stale. ",
		"top_competitor_weaknesses": ["Crashy crashes on sync"],
		"suggested_differentiator": "Offline-first envelopes"
	}`+"\n```", &userPrompt), llm.DecodeLLMJSON)

	assessment, err := client.ScoreQualitative(context.Background(), "budget tracker", snapshot())
	if err != nil {
		t.Fatalf("ScoreQualitative: %v", err)
	}
	if assessment.Dimensions.CompetitionGap != 80 || assessment.Dimensions.RevenuePotential != 100 {
		t.Fatalf("unexpected dimensions: %+v", assessment.Dimensions)
	}
	if assessment.Reasoning != "Incumbents are stale." || assessment.Differentiator != "Offline-first envelopes" {
		t.Fatalf("unexpected text fields: %+v", assessment)
	}
	if !strings.Contains(userPrompt, `"keyword": "budget tracker"`) || !strings.Contains(userPrompt, "Crashy") {
		t.Fatalf("expected snapshot in prompt, got %s", userPrompt)
	}
	if strings.Count(userPrompt, "long") > 100 {
		t.Fatal("expected descriptions to be truncated in prompt")
	}
}

func TestScoreQualitativeRejectsMissingDimensions(t *testing.T) {
	client := New(newLLMServer(t, `{"competition_gap": 80, "reasoning": "partial"}`, nil), llm.DecodeLLMJSON)
	_, err := client.ScoreQualitative(context.Background(), "budget tracker", snapshot())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !strings.Contains(err.Error(), "market_demand") {
		t.Fatalf("expected missing dimension names, got %v", err)
	}
}

func TestScoreQualitativeRequiresConfiguredClient(t *testing.T) {
	client := New(llm.NewClient(llm.Config{}), llm.DecodeLLMJSON)
	_, err := client.ScoreQualitative(context.Background(), "budget tracker", snapshot())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
