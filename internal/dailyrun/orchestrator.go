package dailyrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"marketscout/internal/config"
	"marketscout/internal/discovery"
	"marketscout/internal/logging"
	"marketscout/internal/notifications"
	"marketscout/internal/queue"
	"marketscout/internal/scoring"
)

// ErrRunInProgress reports that another orchestrator is executing the run.
var ErrRunInProgress = errors.New("daily run already in progress")

// ErrRunSuperseded reports that the run row changed hands before this
// trigger could record its winner.
var ErrRunSuperseded = errors.New("daily run superseded")

// Discoverer crawls a category's curated seeds.
type Discoverer interface {
	FromCategory(ctx context.Context, category string, req discovery.Request, emit discovery.EmitFunc) (discovery.Result, error)
}

// Scorer scores one keyword.
type Scorer interface {
	Score(ctx context.Context, keyword, country string, tier scoring.Tier) (scoring.KeywordScore, error)
}

// Options tunes a single trigger. Zero values take the configured defaults.
type Options struct {
	// Date is the run date (YYYY-MM-DD). Defaults to today in UTC.
	Date       string
	Categories []string
	// KeywordsPerCategory and Country override the [daily] settings.
	KeywordsPerCategory int
	Country             string
	// Force restarts a running run that this process does not own, even
	// when its heartbeat is still fresh.
	Force bool
	// SkipKnown excludes keywords that already have a stored opportunity.
	SkipKnown bool
}

// Outcome is the result of a trigger.
type Outcome struct {
	Run    *queue.DailyRun
	Winner *queue.Opportunity
	// Reused is true when the date had already completed and no work ran.
	Reused bool
}

// Orchestrator executes daily runs.
type Orchestrator struct {
	store      *queue.Store
	discoverer Discoverer
	scorer     Scorer
	notifier   notifications.Service
	logger     *slog.Logger
	now        func() time.Time

	categories  []string
	perCategory int
	country     string
	tier        scoring.Tier
	staleAfter  time.Duration

	mu     sync.Mutex
	active map[string]struct{}
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithNotifier sets the notifier for winners and failures.
func WithNotifier(notifier notifications.Service) Option {
	return func(o *Orchestrator) {
		if notifier != nil {
			o.notifier = notifier
		}
	}
}

// WithClock overrides the clock used for run dates and staleness.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOrchestrator builds an orchestrator from the [daily] configuration.
func NewOrchestrator(cfg *config.Config, store *queue.Store, discoverer Discoverer, scorer Scorer, opts ...Option) (*Orchestrator, error) {
	tier, err := scoring.ParseTier(cfg.Daily.Tier)
	if err != nil {
		return nil, fmt.Errorf("daily tier: %w", err)
	}
	o := &Orchestrator{
		store:       store,
		discoverer:  discoverer,
		scorer:      scorer,
		notifier:    notifications.NewService(cfg),
		logger:      logging.NewNop(),
		now:         time.Now,
		categories:  append([]string(nil), cfg.Daily.Categories...),
		perCategory: cfg.Daily.KeywordsPerCategory,
		country:     strings.ToLower(strings.TrimSpace(cfg.Daily.Country)),
		tier:        tier,
		staleAfter:  cfg.DailyStaleAfter(),
		active:      make(map[string]struct{}),
	}
	if len(o.categories) == 0 {
		o.categories = append([]string(nil), config.DefaultCategories...)
	}
	if o.perCategory <= 0 {
		o.perCategory = 10
	}
	if o.country == "" {
		o.country = strings.ToLower(strings.TrimSpace(cfg.Marketplace.Country))
	}
	if o.staleAfter <= 0 {
		o.staleAfter = 30 * time.Minute
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.NewComponentLogger(o.logger, "daily-run")
	return o, nil
}

// Status returns the run for date (today when empty) and its winner.
func (o *Orchestrator) Status(ctx context.Context, date string) (*Outcome, error) {
	if date == "" {
		date = o.today()
	}
	run, err := o.store.GetDailyRun(ctx, date)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, nil
	}
	winner, err := o.winner(ctx, run)
	if err != nil {
		return nil, err
	}
	return &Outcome{Run: run, Winner: winner}, nil
}

func (o *Orchestrator) today() string {
	return o.now().UTC().Format(queue.RunDateLayout)
}

func (o *Orchestrator) winner(ctx context.Context, run *queue.DailyRun) (*queue.Opportunity, error) {
	if run == nil || run.WinnerID == nil {
		return nil, nil
	}
	return o.store.GetOpportunity(ctx, *run.WinnerID)
}

// claimDate marks date as executing in this process.
func (o *Orchestrator) claimDate(date string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.active[date]; busy {
		return false
	}
	o.active[date] = struct{}{}
	return true
}

func (o *Orchestrator) releaseDate(date string) {
	o.mu.Lock()
	delete(o.active, date)
	o.mu.Unlock()
}
