package dailyrun_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"marketscout/internal/config"
	"marketscout/internal/dailyrun"
	"marketscout/internal/discovery"
	"marketscout/internal/notifications"
	"marketscout/internal/queue"
	"marketscout/internal/scoring"
	"marketscout/internal/services"
	"marketscout/internal/testsupport"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	cfg      *config.Config
	store    *queue.Store
	market   *testsupport.FakeMarketplace
	notifier *testsupport.RecordingNotifier
	clock    *fakeClock
	orch     *dailyrun.Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC)}
	cfg := testsupport.NewConfig(t, testsupport.WithCategories("finance"))
	cfg.Daily.KeywordsPerCategory = 4
	cfg.Discovery.SeedDepth = 1
	f := &fixture{
		cfg:      cfg,
		store:    testsupport.MustOpenStore(t, cfg, queue.WithClock(clock.Now)),
		market:   testsupport.NewFakeMarketplace(),
		notifier: &testsupport.RecordingNotifier{},
		clock:    clock,
	}
	f.market.Suggestions["budget tracker"] = []string{"budget tracker pro", "family budget"}

	assessor := testsupport.StaticAssessor{
		Dimensions: scoring.Dimensions{CompetitionGap: 40, MarketDemand: 40, RevenuePotential: 40, TrendMomentum: 40, ExecutionFeasibility: 40},
		Overrides: map[string]scoring.Dimensions{
			"family budget": {CompetitionGap: 100, MarketDemand: 100, RevenuePotential: 100, TrendMomentum: 100, ExecutionFeasibility: 100},
		},
	}
	scorer := scoring.NewEngine(f.market, scoring.WithAssessor(assessor))
	disc := discovery.NewEngine(f.market, discovery.OptionsFrom(cfg), nil)
	orch, err := dailyrun.NewOrchestrator(cfg, f.store, disc, scorer,
		dailyrun.WithNotifier(f.notifier),
		dailyrun.WithClock(clock.Now),
	)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	f.orch = orch
	return f
}

func TestTriggerSelectsWinner(t *testing.T) {
	f := newFixture(t)
	outcome, err := f.orch.Trigger(context.Background(), dailyrun.Options{})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	run := outcome.Run
	if run.RunDate != "2026-10-18" || run.Status != queue.RunCompleted {
		t.Fatalf("unexpected run %+v", run)
	}
	if run.CategoriesProcessed != 1 || run.TotalKeywordsScored != 4 || run.TotalKeywordsDiscovered != 4 {
		t.Fatalf("unexpected counters %+v", run)
	}
	if outcome.Winner == nil || outcome.Winner.Keyword != "family budget" {
		t.Fatalf("expected family budget to win, got %+v", outcome.Winner)
	}
	if outcome.Winner.Status != queue.OpportunitySelected || run.WinnerID == nil || *run.WinnerID != outcome.Winner.ID {
		t.Fatalf("winner not recorded: %+v / %+v", outcome.Winner, run)
	}
	payload := f.notifier.Last(notifications.EventWinnerSelected)
	if payload == nil || payload["keyword"] != "family budget" {
		t.Fatalf("expected winner notification, got %v", payload)
	}
}

func TestTriggerIsIdempotentPerDay(t *testing.T) {
	f := newFixture(t)
	first, err := f.orch.Trigger(context.Background(), dailyrun.Options{})
	if err != nil {
		t.Fatalf("first Trigger: %v", err)
	}
	calls := f.market.LookupCalls("family budget")

	second, err := f.orch.Trigger(context.Background(), dailyrun.Options{})
	if err != nil {
		t.Fatalf("second Trigger: %v", err)
	}
	if !second.Reused || second.Winner == nil || second.Winner.ID != first.Winner.ID {
		t.Fatalf("expected recorded run to be returned, got %+v", second)
	}
	if f.market.LookupCalls("family budget") != calls {
		t.Fatal("completed run must not rescore")
	}
	runs, err := f.store.ListDailyRuns(context.Background(), 10)
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected one run row, got %d (%v)", len(runs), err)
	}
}

func TestZeroScoredFailsAndRetryAdoptsRun(t *testing.T) {
	f := newFixture(t)
	outage := services.Wrap(services.ErrExternalTool, "marketplace", "lookup", "upstream 503", nil)
	for _, seed := range []string{"budget tracker", "expense tracker", "bill reminder", "savings goal", "invoice maker", "budget tracker pro", "family budget"} {
		f.market.LookupErrs[seed] = outage
	}

	outcome, err := f.orch.Trigger(context.Background(), dailyrun.Options{})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if outcome.Run.Status != queue.RunFailed || outcome.Run.ErrorMessage == "" || outcome.Winner != nil {
		t.Fatalf("expected failed run, got %+v", outcome.Run)
	}
	if f.notifier.Last(notifications.EventDailyRunFailed) == nil {
		t.Fatal("expected failure notification")
	}

	f.market.LookupErrs = map[string]error{}
	outcome, err = f.orch.Trigger(context.Background(), dailyrun.Options{})
	if err != nil {
		t.Fatalf("retry Trigger: %v", err)
	}
	if outcome.Reused || outcome.Run.Status != queue.RunCompleted || outcome.Run.ErrorMessage != "" {
		t.Fatalf("expected restarted run to complete, got %+v", outcome.Run)
	}
}

func TestLiveRunIsNotRestarted(t *testing.T) {
	f := newFixture(t)
	if _, _, err := f.store.CreateDailyRun(context.Background(), "2026-10-18"); err != nil {
		t.Fatalf("CreateDailyRun: %v", err)
	}

	if _, err := f.orch.Trigger(context.Background(), dailyrun.Options{}); !errors.Is(err, dailyrun.ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}

	f.clock.Advance(f.cfg.DailyStaleAfter() + time.Minute)
	outcome, err := f.orch.Trigger(context.Background(), dailyrun.Options{Date: "2026-10-18"})
	if err != nil {
		t.Fatalf("stale run should restart: %v", err)
	}
	if outcome.Run.Status != queue.RunCompleted {
		t.Fatalf("expected completed run, got %+v", outcome.Run)
	}
}

func TestForceRestartsRunningRow(t *testing.T) {
	f := newFixture(t)
	if _, _, err := f.store.CreateDailyRun(context.Background(), "2026-10-18"); err != nil {
		t.Fatalf("CreateDailyRun: %v", err)
	}
	outcome, err := f.orch.Trigger(context.Background(), dailyrun.Options{Force: true})
	if err != nil {
		t.Fatalf("forced Trigger: %v", err)
	}
	if outcome.Run.Status != queue.RunCompleted {
		t.Fatalf("expected completed run, got %+v", outcome.Run)
	}
}

// takeoverScorer fails the run row from outside on its first call, the way a
// second process would after deciding the run was stale.
type takeoverScorer struct {
	inner dailyrun.Scorer
	store *queue.Store
	date  string
	once  sync.Once
}

func (s *takeoverScorer) Score(ctx context.Context, keyword, country string, tier scoring.Tier) (scoring.KeywordScore, error) {
	s.once.Do(func() {
		_, _ = s.store.FailDailyRun(ctx, s.date, "taken over")
	})
	return s.inner.Score(ctx, keyword, country, tier)
}

func TestCompletionIgnoredAfterTakeover(t *testing.T) {
	f := newFixture(t)
	scorer := &takeoverScorer{
		inner: scoring.NewEngine(f.market),
		store: f.store,
		date:  "2026-10-18",
	}
	disc := discovery.NewEngine(f.market, discovery.OptionsFrom(f.cfg), nil)
	orch, err := dailyrun.NewOrchestrator(f.cfg, f.store, disc, scorer,
		dailyrun.WithNotifier(f.notifier),
		dailyrun.WithClock(f.clock.Now),
	)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	outcome, err := orch.Trigger(context.Background(), dailyrun.Options{})
	if !errors.Is(err, dailyrun.ErrRunSuperseded) {
		t.Fatalf("expected superseded error, got %v", err)
	}
	if outcome == nil || outcome.Run == nil || outcome.Run.Status != queue.RunFailed || outcome.Run.WinnerID != nil {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if f.notifier.Last(notifications.EventWinnerSelected) != nil {
		t.Fatal("superseded run must not announce a winner")
	}
	opps, err := f.store.ListOpportunities(context.Background(), queue.OpportunityFilter{})
	if err != nil {
		t.Fatalf("ListOpportunities: %v", err)
	}
	for _, opp := range opps {
		if opp.Status == queue.OpportunitySelected {
			t.Fatalf("opportunity %q must not be selected", opp.Keyword)
		}
	}
}

func TestTriggerRejectsBadDate(t *testing.T) {
	f := newFixture(t)
	if _, err := f.orch.Trigger(context.Background(), dailyrun.Options{Date: "18/10/2026"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	if outcome, err := f.orch.Status(context.Background(), ""); err != nil || outcome != nil {
		t.Fatalf("expected no run yet, got %+v (%v)", outcome, err)
	}
	if _, err := f.orch.Trigger(context.Background(), dailyrun.Options{}); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	outcome, err := f.orch.Status(context.Background(), "")
	if err != nil || outcome == nil || outcome.Winner == nil {
		t.Fatalf("expected run with winner, got %+v (%v)", outcome, err)
	}
}

func TestTriggerHonoursOverrides(t *testing.T) {
	f := newFixture(t)
	outcome, err := f.orch.Trigger(context.Background(), dailyrun.Options{KeywordsPerCategory: 1, Country: "CA"})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if outcome.Run.TotalKeywordsScored != 1 {
		t.Fatalf("expected cap of 1 keyword, got %+v", outcome.Run)
	}
	if outcome.Winner == nil || outcome.Winner.Country != "ca" {
		t.Fatalf("expected winner filed under ca, got %+v", outcome.Winner)
	}
}
