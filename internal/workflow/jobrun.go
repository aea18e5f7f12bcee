package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"marketscout/internal/discovery"
	"marketscout/internal/logging"
	"marketscout/internal/queue"
	"marketscout/internal/scoring"
	"marketscout/internal/services"
	"marketscout/internal/textutil"
)

// jobRun carries the state of one claimed job.
type jobRun struct {
	p        *Processor
	job      *queue.Job
	claim    queue.Claim
	logger   *slog.Logger
	scope    queue.Scope
	progress queue.Progress
	skipped  int
}

func newJobRun(p *Processor, job *queue.Job, claim queue.Claim, logger *slog.Logger) *jobRun {
	scope := job.Params.Scope()
	scope.Country = strings.ToLower(strings.TrimSpace(scope.Country))
	if scope.Country == "" {
		scope.Country = p.defaultCountry
	}
	scope.Category = strings.ToLower(strings.TrimSpace(scope.Category))
	if scope.Tier == "" {
		scope.Tier = scoring.TierFull
	}
	return &jobRun{
		p:        p,
		job:      job,
		claim:    claim,
		logger:   logger,
		scope:    scope,
	}
}

func (r *jobRun) execute(ctx context.Context) (string, error) {
	if r.job.ParamsErr != nil {
		return "", r.job.ParamsErr
	}
	params := r.job.Params
	if err := params.Validate(r.job.Type); err != nil {
		return "", err
	}

	var (
		result discovery.Result
		err    error
	)
	req := discovery.Request{Country: r.scope.Country}
	emit := func(k discovery.Keyword) error { return r.onKeyword(ctx, k) }
	switch r.job.Type {
	case queue.JobDiscoverSeed:
		req.Depth = params.Seed.Depth
		result, err = r.p.discoverer.ExpandSeed(ctx, params.Seed.Seed, req, emit)
	case queue.JobDiscoverCompetitor:
		comp := discovery.Competitor{
			AppID:       params.Competitor.AppID,
			Name:        params.Competitor.Name,
			Subtitle:    params.Competitor.Subtitle,
			Description: params.Competitor.Description,
			Reviews:     params.Competitor.Reviews,
		}
		result, err = r.p.discoverer.FromCompetitor(ctx, comp, req, emit)
	case queue.JobDiscoverCategory:
		req.Depth = params.Category.Depth
		result, err = r.p.discoverer.FromCategory(ctx, r.scope.Category, req, emit)
	case queue.JobScoreBulk:
		return r.scoreBulk(ctx, params.ScoreBulk.Keywords)
	default:
		return "", services.Wrap(services.ErrConfiguration, "workflow", "dispatch", fmt.Sprintf("unknown job type %q", r.job.Type), nil)
	}
	if err != nil {
		return "", err
	}
	if result.PrimaryErr != nil {
		r.logger.Warn("primary discovery strategy failed; kept partial or fallback output",
			logging.String(logging.FieldEventType, "discovery_degraded"),
			logging.Bool("fell_back", result.FellBack),
			logging.Error(result.PrimaryErr),
		)
	}
	return r.summary(result), nil
}

// onKeyword scores and stores each keyword as discovery emits it. Returning an
// error stops discovery; per-keyword failures are absorbed. Counters restart
// from zero on a reclaimed job and the store keeps the larger value.
func (r *jobRun) onKeyword(ctx context.Context, k discovery.Keyword) error {
	r.progress.KeywordsDiscovered++
	r.progress.TotalItems++
	if err := r.saveProgress(ctx); err != nil {
		return err
	}
	return r.scoreOne(ctx, k.Keyword, string(k.Via))
}

func (r *jobRun) scoreBulk(ctx context.Context, keywords []string) (string, error) {
	seen := make(map[string]struct{}, len(keywords))
	unique := make([]string, 0, len(keywords))
	for _, raw := range keywords {
		keyword := textutil.NormalizeKeyword(raw)
		if keyword == "" {
			continue
		}
		if _, ok := seen[keyword]; ok {
			continue
		}
		seen[keyword] = struct{}{}
		unique = append(unique, keyword)
	}
	if len(unique) == 0 {
		return "", services.Wrap(services.ErrValidation, "workflow", "score_bulk", "no usable keywords", nil)
	}
	r.progress = r.job.Progress
	r.progress.TotalItems = len(unique)
	if err := r.saveProgress(ctx); err != nil {
		return "", err
	}
	for i, keyword := range unique {
		// Resume after a reclaim: items already processed by an earlier claim
		// were upserted and counted.
		if i < r.job.Progress.ProcessedItems {
			continue
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := r.scoreOne(ctx, keyword, string(discovery.ViaSeed)); err != nil {
			return "", err
		}
	}
	return r.summary(discovery.Result{}), nil
}

func (r *jobRun) scoreOne(ctx context.Context, keyword, via string) error {
	logger := r.logger.With(logging.String(logging.FieldKeyword, keyword))
	score, err := r.p.scorer.Score(ctx, keyword, r.scope.Country, r.scope.Tier)
	if err != nil {
		if ctx.Err() != nil || !services.IsPerItem(err) {
			return err
		}
		r.skipped++
		r.progress.ProcessedItems++
		logger.Warn("keyword skipped after scoring failure",
			logging.String(logging.FieldEventType, "keyword_skipped"),
			logging.String(logging.FieldImpact, "keyword is not stored for this job"),
			logging.Error(err),
		)
		return r.saveProgress(ctx)
	}
	score.Category = r.scope.Category
	if _, err := r.p.store.UpsertOpportunity(ctx, score, queue.OpportunityMeta{DiscoveredVia: via, SourceJobID: r.job.ID}); err != nil {
		return fmt.Errorf("store score for %q: %w", keyword, err)
	}
	r.progress.KeywordsScored++
	r.progress.ProcessedItems++
	logger.Debug("keyword scored",
		logging.String(logging.FieldEventType, "keyword_scored"),
		logging.Float64("opportunity_score", score.OpportunityScore),
		logging.Bool("degraded", score.Degraded),
	)
	return r.saveProgress(ctx)
}

func (r *jobRun) saveProgress(ctx context.Context) error {
	held, err := r.p.store.UpdateProgress(ctx, r.claim, r.progress, r.p.lease)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	if !held {
		return errClaimLost
	}
	return nil
}

var errClaimLost = errors.New("job claim no longer held")

func (r *jobRun) summary(result discovery.Result) string {
	parts := []string{
		fmt.Sprintf("discovered %d", r.progress.KeywordsDiscovered),
		fmt.Sprintf("scored %d", r.progress.KeywordsScored),
	}
	if r.skipped > 0 {
		parts = append(parts, fmt.Sprintf("skipped %d", r.skipped))
	}
	if result.Excluded > 0 {
		parts = append(parts, fmt.Sprintf("excluded %d known", result.Excluded))
	}
	if result.FellBack {
		parts = append(parts, "used catalog fallback")
	}
	return strings.Join(parts, ", ")
}
