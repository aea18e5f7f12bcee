package scoring_test

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"marketscout/internal/ratelimit"
	"marketscout/internal/scoring"
	"marketscout/internal/services"
	"marketscout/internal/services/marketplace"
)

type stubCatalog struct {
	result marketplace.SearchResult
	err    error
	calls  int
}

func (s *stubCatalog) Lookup(_ context.Context, query, country string, limit int) (marketplace.SearchResult, error) {
	s.calls++
	if s.err != nil {
		return marketplace.SearchResult{}, s.err
	}
	result := s.result
	result.Query = query
	result.Country = country
	return result, nil
}

type stubAssessor struct {
	assessment scoring.Assessment
	err        error
}

func (s stubAssessor) ScoreQualitative(context.Context, string, marketplace.SearchResult) (scoring.Assessment, error) {
	return s.assessment, s.err
}

var fixedNow = time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC)

func crowdedMarket() marketplace.SearchResult {
	return marketplace.SearchResult{
		ResultCount: 10,
		Apps: []marketplace.App{
			{Name: "Mint", AverageRating: 4.8, RatingCount: 900000, Description: "Subscription budgeting\n• a\n• b", FileSizeBytes: 200 << 20, UpdatedAt: fixedNow.AddDate(0, -1, 0)},
			{Name: "Old Ledger", AverageRating: 4.5, RatingCount: 20000, Price: 4.99, UpdatedAt: fixedNow.AddDate(-3, 0, 0)},
			{Name: "Crashy", AverageRating: 2.4, RatingCount: 3000, Description: "free"},
		},
	}
}

func TestWeightsSumToOne(t *testing.T) {
	if sum := scoring.DefaultWeights.Sum(); math.Abs(sum-1) > 1e-9 {
		t.Fatalf("weights sum to %v", sum)
	}
	got := scoring.DefaultWeights.Aggregate(scoring.Dimensions{
		CompetitionGap:       100,
		MarketDemand:         0,
		RevenuePotential:     50,
		TrendMomentum:        50,
		ExecutionFeasibility: 100,
	})
	if want := 30 + 0 + 10 + 5 + 15.0; got != want {
		t.Fatalf("Aggregate = %v, want %v", got, want)
	}
}

func TestScoresStayWithinBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		var apps []marketplace.App
		for j := 0; j < rng.Intn(12); j++ {
			apps = append(apps, marketplace.App{
				Name:          "app",
				AverageRating: rng.Float64()*7 - 1,
				RatingCount:   rng.Intn(5_000_000) - 10,
				Price:         rng.Float64() * 20,
				Description:   strings.Repeat("• feature\n", rng.Intn(60)),
				FileSizeBytes: rng.Int63n(4 << 30),
			})
		}
		catalog := &stubCatalog{result: marketplace.SearchResult{ResultCount: rng.Intn(500), Apps: apps}}
		assessor := stubAssessor{assessment: scoring.Assessment{Dimensions: scoring.Dimensions{
			CompetitionGap:       rng.Float64()*400 - 150,
			MarketDemand:         rng.Float64()*400 - 150,
			RevenuePotential:     math.NaN(),
			TrendMomentum:        rng.Float64() * 300,
			ExecutionFeasibility: -5,
		}}}
		engine := scoring.NewEngine(catalog, scoring.WithAssessor(assessor), scoring.WithClock(func() time.Time { return fixedNow }))
		score, err := engine.Score(context.Background(), "kw", "us", scoring.TierFull)
		if err != nil {
			t.Fatalf("Score: %v", err)
		}
		for name, v := range map[string]float64{
			"competition_gap":       score.CompetitionGap,
			"market_demand":         score.MarketDemand,
			"revenue_potential":     score.RevenuePotential,
			"trend_momentum":        score.TrendMomentum,
			"execution_feasibility": score.ExecutionFeasibility,
			"opportunity_score":     score.OpportunityScore,
		} {
			if math.IsNaN(v) || v < 0 || v > 100 {
				t.Fatalf("iteration %d: %s = %v out of bounds", i, name, v)
			}
		}
	}
}

func TestBasicTierUsesCatalogOnly(t *testing.T) {
	catalog := &stubCatalog{result: crowdedMarket()}
	engine := scoring.NewEngine(catalog, scoring.WithAssessor(stubAssessor{err: errors.New("must not be called")}), scoring.WithClock(func() time.Time { return fixedNow }))

	score, err := engine.Score(context.Background(), "budget tracker", "us", scoring.TierBasic)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if score.Tier != scoring.TierBasic || score.Degraded {
		t.Fatalf("unexpected tier %s degraded=%v", score.Tier, score.Degraded)
	}
	if score.TrendMomentum != 50 {
		t.Fatalf("expected neutral trend, got %v", score.TrendMomentum)
	}
	if len(score.TopCompetitorWeaknesses) == 0 || !strings.HasPrefix(score.TopCompetitorWeaknesses[0], "Crashy") {
		t.Fatalf("expected poorly rated competitor first, got %v", score.TopCompetitorWeaknesses)
	}
	if !score.ScoredAt.Equal(fixedNow) || score.ResultCount != 10 {
		t.Fatalf("unexpected metadata: %+v", score)
	}
}

func TestFullTierBlendsAssessment(t *testing.T) {
	catalog := &stubCatalog{result: crowdedMarket()}
	basic, err := scoring.NewEngine(catalog).Score(context.Background(), "budget tracker", "us", scoring.TierBasic)
	if err != nil {
		t.Fatalf("basic Score: %v", err)
	}

	llmDims := scoring.Dimensions{CompetitionGap: 90, MarketDemand: 80, RevenuePotential: 70, TrendMomentum: 90, ExecutionFeasibility: 60}
	engine := scoring.NewEngine(catalog, scoring.WithAssessor(stubAssessor{assessment: scoring.Assessment{
		Dimensions:     llmDims,
		Reasoning:      "Incumbents are bloated.",
		Weaknesses:     []string{" no offline mode ", "", "ads"},
		Differentiator: "offline-first envelopes",
	}}))
	full, err := engine.Score(context.Background(), "budget tracker", "us", scoring.TierFull)
	if err != nil {
		t.Fatalf("full Score: %v", err)
	}
	if full.Tier != scoring.TierFull || full.Degraded {
		t.Fatalf("unexpected tier %s degraded=%v", full.Tier, full.Degraded)
	}
	wantGap := (basic.CompetitionGap + 90) / 2
	if math.Abs(full.CompetitionGap-wantGap) > 1e-9 {
		t.Fatalf("competition gap = %v, want %v", full.CompetitionGap, wantGap)
	}
	if full.TrendMomentum != 70 {
		t.Fatalf("trend = %v, want 70", full.TrendMomentum)
	}
	if full.Reasoning != "Incumbents are bloated." || full.SuggestedDifferentiator != "offline-first envelopes" {
		t.Fatalf("unexpected qualitative fields: %+v", full)
	}
	if len(full.TopCompetitorWeaknesses) != 2 || full.TopCompetitorWeaknesses[0] != "no offline mode" {
		t.Fatalf("unexpected weaknesses: %v", full.TopCompetitorWeaknesses)
	}
}

type timedAssessor struct {
	calls []time.Time
}

func (a *timedAssessor) ScoreQualitative(context.Context, string, marketplace.SearchResult) (scoring.Assessment, error) {
	a.calls = append(a.calls, time.Now())
	return scoring.Assessment{Dimensions: scoring.Dimensions{CompetitionGap: 50, MarketDemand: 50, RevenuePotential: 50, TrendMomentum: 50, ExecutionFeasibility: 50}}, nil
}

func TestFullTierPacesAssessorCalls(t *testing.T) {
	const interval = 40 * time.Millisecond
	assessor := &timedAssessor{}
	engine := scoring.NewEngine(&stubCatalog{result: crowdedMarket()},
		scoring.WithAssessor(assessor),
		scoring.WithLimiter(ratelimit.New(interval, 1)),
	)
	for _, keyword := range []string{"alpha", "beta", "gamma"} {
		if _, err := engine.Score(context.Background(), keyword, "us", scoring.TierFull); err != nil {
			t.Fatalf("Score(%s): %v", keyword, err)
		}
	}
	if len(assessor.calls) != 3 {
		t.Fatalf("expected 3 assessor calls, got %d", len(assessor.calls))
	}
	if spread := assessor.calls[2].Sub(assessor.calls[0]); spread < 2*interval-10*time.Millisecond {
		t.Fatalf("assessor calls not paced: spread %s", spread)
	}
}

func TestLimiterCancellationAbortsScore(t *testing.T) {
	limiter := ratelimit.New(time.Hour, 1)
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("drain limiter: %v", err)
	}
	engine := scoring.NewEngine(&stubCatalog{result: crowdedMarket()},
		scoring.WithAssessor(&timedAssessor{}),
		scoring.WithLimiter(limiter),
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := engine.Score(ctx, "alpha", "us", scoring.TierFull); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestFullTierDegradesWhenAssessorFails(t *testing.T) {
	catalog := &stubCatalog{result: crowdedMarket()}
	cases := []struct {
		name string
		opts []scoring.Option
	}{
		{name: "assessor error", opts: []scoring.Option{scoring.WithAssessor(stubAssessor{err: errors.New("503")})}},
		{name: "no assessor"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score, err := scoring.NewEngine(catalog, tc.opts...).Score(context.Background(), "budget tracker", "us", scoring.TierFull)
			if err != nil {
				t.Fatalf("expected degrade, got error %v", err)
			}
			if !score.Degraded || score.Tier != scoring.TierBasic {
				t.Fatalf("expected degraded basic score, got tier=%s degraded=%v", score.Tier, score.Degraded)
			}
			if !strings.Contains(score.Reasoning, "catalog data only") {
				t.Fatalf("expected reasoning to note degradation, got %q", score.Reasoning)
			}
		})
	}
}

func TestCatalogFailureIsReturned(t *testing.T) {
	upstream := services.Wrap(services.ErrTimeout, "marketplace", "search", "request timed out", nil)
	engine := scoring.NewEngine(&stubCatalog{err: upstream})
	_, err := engine.Score(context.Background(), "budget tracker", "us", scoring.TierBasic)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if !services.IsPerItem(err) {
		t.Fatal("expected catalog failure to be per-item")
	}
}

func TestEmptyMarketScoresHighGap(t *testing.T) {
	engine := scoring.NewEngine(&stubCatalog{})
	score, err := engine.Score(context.Background(), "obscure niche", "us", scoring.TierBasic)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if score.CompetitionGap < 90 || score.MarketDemand > 10 {
		t.Fatalf("unexpected empty market dims: %+v", score.Dimensions)
	}
}

func TestParseTier(t *testing.T) {
	for input, want := range map[string]scoring.Tier{"": scoring.TierFull, "FULL": scoring.TierFull, " basic ": scoring.TierBasic} {
		got, err := scoring.ParseTier(input)
		if err != nil || got != want {
			t.Fatalf("ParseTier(%q) = %q, %v", input, got, err)
		}
	}
	if _, err := scoring.ParseTier("deluxe"); err == nil {
		t.Fatal("expected unknown tier error")
	}
}
