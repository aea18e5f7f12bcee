package dailyrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"marketscout/internal/discovery"
	"marketscout/internal/logging"
	"marketscout/internal/notifications"
	"marketscout/internal/queue"
	"marketscout/internal/ranking"
	"marketscout/internal/scoring"
	"marketscout/internal/services"
)

// Trigger executes the run for opts.Date unless it already completed.
func (o *Orchestrator) Trigger(ctx context.Context, opts Options) (*Outcome, error) {
	date := strings.TrimSpace(opts.Date)
	if date == "" {
		date = o.today()
	}
	if _, err := time.Parse(queue.RunDateLayout, date); err != nil {
		return nil, services.Wrap(services.ErrValidation, "daily", "trigger", fmt.Sprintf("invalid run date %q", date), err)
	}
	if !o.claimDate(date) {
		return nil, ErrRunInProgress
	}
	defer o.releaseDate(date)

	ctx = services.WithRunDate(ctx, date)
	logger := logging.WithContext(ctx, o.logger)

	run, created, err := o.store.CreateDailyRun(ctx, date)
	if err != nil {
		return nil, err
	}
	if !created {
		outcome, err := o.adopt(ctx, logger, run, opts.Force)
		if outcome != nil || err != nil {
			return outcome, err
		}
	}
	return o.execute(ctx, logger, date, opts)
}

// adopt handles a pre-existing row. It returns a non-nil outcome when the run
// already completed, and nil, nil once the row was reset for execution.
func (o *Orchestrator) adopt(ctx context.Context, logger *slog.Logger, run *queue.DailyRun, force bool) (*Outcome, error) {
	if run.Status == queue.RunCompleted {
		return o.completedOutcome(ctx, run)
	}
	restarted, err := o.store.RestartDailyRun(ctx, run.RunDate, o.now().Add(-o.staleAfter), force)
	if err != nil {
		return nil, err
	}
	if !restarted {
		current, err := o.store.GetDailyRun(ctx, run.RunDate)
		if err != nil {
			return nil, err
		}
		if current != nil && current.Status == queue.RunCompleted {
			return o.completedOutcome(ctx, current)
		}
		return nil, ErrRunInProgress
	}
	logger.Info("restarting daily run",
		logging.String("previous_status", string(run.Status)),
		logging.Bool("forced", force),
		logging.String(logging.FieldEventType, "daily_run_restart"),
	)
	return nil, nil
}

func (o *Orchestrator) completedOutcome(ctx context.Context, run *queue.DailyRun) (*Outcome, error) {
	winner, err := o.winner(ctx, run)
	if err != nil {
		return nil, err
	}
	return &Outcome{Run: run, Winner: winner, Reused: true}, nil
}

type runState struct {
	country     string
	perCategory int
	counters    queue.RunCounters
	scores      []scoring.KeywordScore
	skipped     int
}

func (o *Orchestrator) execute(ctx context.Context, logger *slog.Logger, date string, opts Options) (*Outcome, error) {
	categories := opts.Categories
	if len(categories) == 0 {
		categories = o.categories
	}
	state := &runState{country: o.country, perCategory: o.perCategory}
	if opts.KeywordsPerCategory > 0 {
		state.perCategory = opts.KeywordsPerCategory
	}
	if country := strings.ToLower(strings.TrimSpace(opts.Country)); country != "" {
		state.country = country
	}
	started := time.Now()
	logger.Info("daily run started",
		logging.Int("categories", len(categories)),
		logging.Int("keywords_per_category", state.perCategory),
		logging.String("country", state.country),
		logging.String("tier", string(o.tier)),
		logging.String(logging.FieldEventType, "daily_run_start"),
	)

	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go o.heartbeat(hbCtx, &hbWG, logger, date)
	defer func() {
		hbCancel()
		hbWG.Wait()
	}()

	for _, category := range categories {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := o.runCategory(ctx, logger, category, opts, state); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return o.fail(ctx, logger, date, err.Error(), err)
		}
		state.counters.CategoriesProcessed++
		if err := o.store.UpdateDailyRunProgress(ctx, date, state.counters); err != nil {
			return o.fail(ctx, logger, date, err.Error(), err)
		}
	}

	best, ok := ranking.SelectWinner(state.scores)
	if !ok {
		reason := fmt.Sprintf("no keywords scored across %d categories", len(categories))
		if state.skipped > 0 {
			reason = fmt.Sprintf("%s (%d skipped after errors)", reason, state.skipped)
		}
		return o.fail(ctx, logger, date, reason, nil)
	}
	opp, err := o.store.FindOpportunity(ctx, best.Keyword, best.Category, best.Country)
	if err != nil {
		return o.fail(ctx, logger, date, err.Error(), err)
	}
	if opp == nil {
		return o.fail(ctx, logger, date, fmt.Sprintf("winner %q missing from store", best.Keyword), nil)
	}
	applied, err := o.store.CompleteDailyRun(ctx, date, opp.ID)
	if err != nil {
		return nil, err
	}
	if !applied {
		return o.superseded(ctx, logger, date, opp)
	}
	if _, err := o.store.AdvanceOpportunityStatus(ctx, opp.ID, queue.OpportunitySelected); err != nil {
		logging.WarnWithContext(logger, "winner status not advanced", "winner_status_failed",
			logging.Int64("opportunity_id", opp.ID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "run records the winner but the opportunity stays scored"),
		)
	}

	run, err := o.store.GetDailyRun(ctx, date)
	if err != nil {
		return nil, err
	}
	winner, err := o.store.GetOpportunity(ctx, opp.ID)
	if err != nil {
		return nil, err
	}
	logger.Info("daily run completed",
		logging.String(logging.FieldEventType, "daily_run_complete"),
		logging.String("winner", winner.Keyword),
		logging.Float64("winner_score", winner.OpportunityScore),
		logging.Int("keywords_scored", state.counters.TotalKeywordsScored),
		logging.Int("keywords_skipped", state.skipped),
		logging.Duration("run_duration", time.Since(started)),
	)
	if err := o.notifier.Publish(ctx, notifications.EventWinnerSelected, notifications.Payload{
		"date":      date,
		"keyword":   winner.Keyword,
		"category":  winner.Category,
		"score":     winner.OpportunityScore,
		"reasoning": winner.Reasoning,
	}); err != nil {
		logger.Debug("winner notification failed", logging.Error(err))
	}
	return &Outcome{Run: run, Winner: winner}, nil
}

// superseded handles a completion that did not apply because another trigger
// took the row over. The winner is not announced.
func (o *Orchestrator) superseded(ctx context.Context, logger *slog.Logger, date string, candidate *queue.Opportunity) (*Outcome, error) {
	current, err := o.store.GetDailyRun(ctx, date)
	if err != nil {
		return nil, err
	}
	status := "missing"
	if current != nil {
		status = string(current.Status)
	}
	logging.WarnWithContext(logger, "daily run completion ignored; run no longer owned by this trigger", "daily_complete_ignored",
		logging.String("candidate", candidate.Keyword),
		logging.String("current_status", status),
		logging.String(logging.FieldImpact, "this trigger's winner is discarded"),
	)
	if current != nil && current.Status == queue.RunCompleted {
		return o.completedOutcome(ctx, current)
	}
	return &Outcome{Run: current}, fmt.Errorf("%w: run is now %s", ErrRunSuperseded, status)
}

// runCategory crawls one category. Category-level discovery failures are
// logged and the run moves on. Store failures and job-fatal scoring errors
// abort the run.
func (o *Orchestrator) runCategory(ctx context.Context, logger *slog.Logger, category string, opts Options, state *runState) error {
	category = strings.ToLower(strings.TrimSpace(category))
	logger = logger.With(logging.String(logging.FieldCategory, category))

	req := discovery.Request{Country: state.country, MaxKeywords: state.perCategory}
	if opts.SkipKnown {
		req.Exclude = func(keyword string) bool {
			known, err := o.store.HasKeyword(ctx, keyword, state.country)
			if err != nil {
				logger.Debug("known keyword check failed", logging.Error(err))
				return false
			}
			return known
		}
	}

	var fatalErr error
	result, err := o.discoverer.FromCategory(ctx, category, req, func(k discovery.Keyword) error {
		state.counters.TotalKeywordsDiscovered++
		score, err := o.scorer.Score(ctx, k.Keyword, state.country, o.tier)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !services.IsPerItem(err) {
				fatalErr = err
				return err
			}
			state.skipped++
			logger.Warn("keyword skipped after scoring failure",
				logging.String(logging.FieldKeyword, k.Keyword),
				logging.String(logging.FieldEventType, "keyword_skipped"),
				logging.String(logging.FieldImpact, "keyword is not a winner candidate today"),
				logging.Error(err),
			)
			return nil
		}
		score.Category = category
		if _, err := o.store.UpsertOpportunity(ctx, score, queue.OpportunityMeta{DiscoveredVia: string(k.Via)}); err != nil {
			fatalErr = fmt.Errorf("store score: %w", err)
			return fatalErr
		}
		state.scores = append(state.scores, score)
		state.counters.TotalKeywordsScored++
		return nil
	})
	if fatalErr != nil {
		return fatalErr
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return err
		}
		logging.WarnWithContext(logger, "category discovery failed; continuing with next category", "category_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "category contributes no candidates today"),
			logging.String(logging.FieldErrorHint, "check marketplace reachability and the category list"),
		)
		return nil
	}
	logger.Info("category processed",
		logging.String(logging.FieldEventType, "daily_category_done"),
		logging.Int("emitted", result.Emitted),
		logging.Bool("fell_back", result.FellBack),
	)
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, logger *slog.Logger, date, reason string, cause error) (*Outcome, error) {
	if _, err := o.store.FailDailyRun(ctx, date, reason); err != nil {
		return nil, errors.Join(cause, err)
	}
	attrs := []logging.Attr{logging.String("reason", reason)}
	if cause != nil {
		attrs = append(attrs, logging.Error(cause))
	}
	logging.ErrorWithContext(logger, "daily run failed", "daily_run_failed", attrs...)
	if err := o.notifier.Publish(ctx, notifications.EventDailyRunFailed, notifications.Payload{
		"date":  date,
		"error": reason,
	}); err != nil {
		logger.Debug("daily failure notification failed", logging.Error(err))
	}
	run, err := o.store.GetDailyRun(ctx, date)
	if err != nil {
		return nil, errors.Join(cause, err)
	}
	return &Outcome{Run: run}, cause
}

func (o *Orchestrator) heartbeat(ctx context.Context, wg *sync.WaitGroup, logger *slog.Logger, date string) {
	defer wg.Done()
	interval := o.staleAfter / 3
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.store.TouchDailyRun(ctx, date); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("daily run heartbeat failed", logging.Error(err))
			}
		}
	}
}
