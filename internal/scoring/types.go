package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Tier selects how deeply a keyword is scored.
type Tier string

const (
	TierBasic Tier = "basic"
	TierFull  Tier = "full"
)

// ParseTier maps a config or API value to a Tier. Empty means full.
func ParseTier(value string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(value))) {
	case "", TierFull:
		return TierFull, nil
	case TierBasic:
		return TierBasic, nil
	default:
		return "", fmt.Errorf("unknown scoring tier %q", value)
	}
}

// Dimensions are the five sub-scores, each in [0,100].
type Dimensions struct {
	CompetitionGap       float64 `json:"competition_gap"`
	MarketDemand         float64 `json:"market_demand"`
	RevenuePotential     float64 `json:"revenue_potential"`
	TrendMomentum        float64 `json:"trend_momentum"`
	ExecutionFeasibility float64 `json:"execution_feasibility"`
}

// Clamp bounds every dimension to [0,100].
func (d Dimensions) Clamp() Dimensions {
	return Dimensions{
		CompetitionGap:       clamp(d.CompetitionGap),
		MarketDemand:         clamp(d.MarketDemand),
		RevenuePotential:     clamp(d.RevenuePotential),
		TrendMomentum:        clamp(d.TrendMomentum),
		ExecutionFeasibility: clamp(d.ExecutionFeasibility),
	}
}

// Blend mixes two dimension sets with weight w on other.
func (d Dimensions) Blend(other Dimensions, w float64) Dimensions {
	mix := func(a, b float64) float64 { return a*(1-w) + b*w }
	return Dimensions{
		CompetitionGap:       mix(d.CompetitionGap, other.CompetitionGap),
		MarketDemand:         mix(d.MarketDemand, other.MarketDemand),
		RevenuePotential:     mix(d.RevenuePotential, other.RevenuePotential),
		TrendMomentum:        mix(d.TrendMomentum, other.TrendMomentum),
		ExecutionFeasibility: mix(d.ExecutionFeasibility, other.ExecutionFeasibility),
	}.Clamp()
}

// KeywordScore is the scored result for one keyword.
type KeywordScore struct {
	Keyword  string `json:"keyword"`
	Category string `json:"category"`
	Country  string `json:"country"`
	Dimensions
	OpportunityScore        float64   `json:"opportunity_score"`
	Reasoning               string    `json:"reasoning"`
	TopCompetitorWeaknesses []string  `json:"top_competitor_weaknesses"`
	SuggestedDifferentiator string    `json:"suggested_differentiator,omitempty"`
	Tier                    Tier      `json:"tier"`
	Degraded                bool      `json:"degraded,omitempty"`
	ResultCount             int       `json:"result_count"`
	ScoredAt                time.Time `json:"scored_at"`
}

// Weights are the per-dimension contributions to the opportunity score.
type Weights struct {
	CompetitionGap       float64
	MarketDemand         float64
	RevenuePotential     float64
	TrendMomentum        float64
	ExecutionFeasibility float64
}

// DefaultWeights sum to 1.
var DefaultWeights = Weights{
	CompetitionGap:       0.30,
	MarketDemand:         0.25,
	RevenuePotential:     0.20,
	ExecutionFeasibility: 0.15,
	TrendMomentum:        0.10,
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	return w.CompetitionGap + w.MarketDemand + w.RevenuePotential + w.TrendMomentum + w.ExecutionFeasibility
}

// Aggregate returns the weighted opportunity score, rounded to two decimals
// and clamped to [0,100].
func (w Weights) Aggregate(d Dimensions) float64 {
	d = d.Clamp()
	total := d.CompetitionGap*w.CompetitionGap +
		d.MarketDemand*w.MarketDemand +
		d.RevenuePotential*w.RevenuePotential +
		d.TrendMomentum*w.TrendMomentum +
		d.ExecutionFeasibility*w.ExecutionFeasibility
	if sum := w.Sum(); sum > 0 && math.Abs(sum-1) > 1e-9 {
		total /= sum
	}
	return round2(clamp(total))
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
