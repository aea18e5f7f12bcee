package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"marketscout/internal/logging"
	"marketscout/internal/ratelimit"
	"marketscout/internal/services"
	"marketscout/internal/services/marketplace"
)

// DefaultSnapshotSize is the number of catalog results a score is based on.
const DefaultSnapshotSize = 10

// LLMWeight is the share of the qualitative assessment in full-tier dimensions.
const LLMWeight = 0.5

// Catalog is the marketplace search used for snapshots.
type Catalog interface {
	Lookup(ctx context.Context, query, country string, limit int) (marketplace.SearchResult, error)
}

// Assessment is the qualitative read returned by an Assessor.
type Assessment struct {
	Dimensions     Dimensions
	Reasoning      string
	Weaknesses     []string
	Differentiator string
}

// Assessor produces a qualitative assessment of a keyword and its snapshot.
type Assessor interface {
	ScoreQualitative(ctx context.Context, keyword string, snapshot marketplace.SearchResult) (Assessment, error)
}

// Engine scores keywords.
type Engine struct {
	catalog  Catalog
	assessor Assessor
	limiter  *ratelimit.Limiter
	weights  Weights
	limit    int
	now      func() time.Time
	logger   *slog.Logger
}

// Option customizes the engine.
type Option func(*Engine)

// WithAssessor enables the full tier.
func WithAssessor(assessor Assessor) Option {
	return func(e *Engine) { e.assessor = assessor }
}

// WithLimiter paces assessor calls on the limiter shared with the catalog.
func WithLimiter(limiter *ratelimit.Limiter) Option {
	return func(e *Engine) { e.limiter = limiter }
}

// WithWeights overrides the dimension weights.
func WithWeights(weights Weights) Option {
	return func(e *Engine) { e.weights = weights }
}

// WithSnapshotSize overrides how many catalog results are considered.
func WithSnapshotSize(limit int) Option {
	return func(e *Engine) {
		if limit > 0 {
			e.limit = limit
		}
	}
}

// WithClock overrides the time source used for ScoredAt and staleness.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine builds a scoring engine over catalog.
func NewEngine(catalog Catalog, opts ...Option) *Engine {
	e := &Engine{
		catalog: catalog,
		weights: DefaultWeights,
		limit:   DefaultSnapshotSize,
		now:     time.Now,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Weights returns the weights in effect.
func (e *Engine) Weights() Weights {
	return e.weights
}

// Score produces a KeywordScore. Catalog failures are returned (the caller
// skips the keyword); assessor failures degrade the score to basic.
func (e *Engine) Score(ctx context.Context, keyword, country string, tier Tier) (KeywordScore, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return KeywordScore{}, services.Wrap(services.ErrValidation, "scoring", "score", "keyword is empty", nil)
	}
	if e.catalog == nil {
		return KeywordScore{}, services.Wrap(services.ErrConfiguration, "scoring", "score", "catalog not configured", nil)
	}
	if tier == "" {
		tier = TierFull
	}
	snapshot, err := e.catalog.Lookup(ctx, keyword, country, e.limit)
	if err != nil {
		return KeywordScore{}, fmt.Errorf("snapshot %q: %w", keyword, err)
	}
	if len(snapshot.Apps) > e.limit {
		snapshot.Apps = snapshot.Apps[:e.limit]
	}

	now := e.now()
	dims := Heuristics(snapshot)
	score := KeywordScore{
		Keyword:                 keyword,
		Country:                 snapshot.Country,
		Dimensions:              dims,
		Reasoning:               basicReasoning(snapshot),
		TopCompetitorWeaknesses: weaknesses(snapshot.Apps, now),
		Tier:                    TierBasic,
		ResultCount:             snapshot.ResultCount,
		ScoredAt:                now,
	}
	if score.Country == "" {
		score.Country = country
	}

	if tier == TierFull {
		if err := e.applyAssessment(ctx, &score, snapshot); err != nil {
			return KeywordScore{}, err
		}
	}
	score.Dimensions = score.Dimensions.Clamp()
	score.OpportunityScore = e.weights.Aggregate(score.Dimensions)
	return score, nil
}

// applyAssessment blends the assessor's view into score. It only returns an
// error when ctx itself is done.
func (e *Engine) applyAssessment(ctx context.Context, score *KeywordScore, snapshot marketplace.SearchResult) error {
	if e.assessor == nil {
		score.Degraded = true
		score.Reasoning = "Qualitative assessment not configured; scored from catalog data only. " + score.Reasoning
		return nil
	}
	var assessment Assessment
	err := e.limiter.Wait(ctx)
	if err == nil {
		assessment, err = e.assessor.ScoreQualitative(ctx, score.Keyword, snapshot)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		e.logger.Warn("qualitative scoring unavailable; using catalog heuristics",
			logging.String(logging.FieldKeyword, score.Keyword),
			logging.String(logging.FieldEventType, "scoring_degraded"),
			logging.String(logging.FieldErrorHint, "check llm api key and model"),
			logging.String(logging.FieldImpact, "score uses catalog data only"),
			logging.Error(err),
		)
		score.Degraded = true
		score.Reasoning = "Qualitative assessment unavailable; scored from catalog data only. " + score.Reasoning
		return nil
	}

	score.Dimensions = score.Dimensions.Blend(assessment.Dimensions.Clamp(), LLMWeight)
	score.Tier = TierFull
	if reasoning := strings.TrimSpace(assessment.Reasoning); reasoning != "" {
		score.Reasoning = reasoning
	}
	if len(assessment.Weaknesses) > 0 {
		score.TopCompetitorWeaknesses = trimList(assessment.Weaknesses, maxWeaknesses)
	}
	score.SuggestedDifferentiator = strings.TrimSpace(assessment.Differentiator)
	return nil
}

func trimList(values []string, limit int) []string {
	out := make([]string, 0, min(len(values), limit))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
		if len(out) == limit {
			break
		}
	}
	return out
}
