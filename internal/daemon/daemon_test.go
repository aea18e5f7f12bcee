package daemon_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"marketscout/internal/api"
	"marketscout/internal/config"
	"marketscout/internal/daemon"
	"marketscout/internal/dailyrun"
	"marketscout/internal/discovery"
	"marketscout/internal/queue"
	"marketscout/internal/scoring"
	"marketscout/internal/testsupport"
	"marketscout/internal/workflow"
)

type harness struct {
	cfg    *config.Config
	store  *queue.Store
	market *testsupport.FakeMarketplace
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithCategories("finance"))
	cfg.Daily.KeywordsPerCategory = 3
	cfg.Discovery.SeedDepth = 1
	cfg.Workflow.Workers = 1
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	h := &harness{
		cfg:    cfg,
		store:  testsupport.MustOpenStore(t, cfg),
		market: testsupport.NewFakeMarketplace(),
	}
	h.market.Suggestions["budget tracker"] = []string{"budget tracker pro", "family budget"}
	return h
}

func (h *harness) daemon(t *testing.T) *daemon.Daemon {
	t.Helper()
	assessor := testsupport.StaticAssessor{
		Dimensions: scoring.Dimensions{CompetitionGap: 50, MarketDemand: 50, RevenuePotential: 50, TrendMomentum: 50, ExecutionFeasibility: 50},
	}
	scorer := scoring.NewEngine(h.market, scoring.WithAssessor(assessor))
	disc := discovery.NewEngine(h.market, discovery.OptionsFrom(h.cfg), nil)
	notifier := &testsupport.RecordingNotifier{}

	processor := workflow.NewProcessor(h.cfg, h.store, disc, scorer, workflow.WithNotifier(notifier))
	mgr := workflow.NewManager(h.cfg, h.store, processor, nil)
	runs, err := dailyrun.NewOrchestrator(h.cfg, h.store, disc, scorer, dailyrun.WithNotifier(notifier))
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	d, err := daemon.New(h.cfg, h.store, nil, mgr, runs)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	return d
}

func TestDaemonStartStop(t *testing.T) {
	h := newHarness(t)
	d := h.daemon(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running || !status.Workflow.Running {
		t.Fatalf("expected daemon and workflow running, got %+v", status)
	}
	if status.QueueDBPath != h.cfg.DatabasePath() || status.LockFilePath != h.cfg.LockPath() {
		t.Fatalf("unexpected paths %+v", status)
	}
	if d.Addr() == "" {
		t.Fatal("expected api listener address")
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	h := newHarness(t)
	first := h.daemon(t)
	h.cfg.Paths.APIBind = ""
	second := h.daemon(t)

	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("expected lock contention error")
	}
	first.Stop()
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("second Start after release: %v", err)
	}
}

func TestDaemonProcessesQueuedJobs(t *testing.T) {
	h := newHarness(t)
	h.cfg.Paths.APIBind = ""
	d := h.daemon(t)
	job := testsupport.MustEnqueue(t, h.store, queue.JobScoreBulk, testsupport.BulkJob("habit tracker"), 0)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool {
		got, err := h.store.GetJob(context.Background(), job.ID)
		return err == nil && got != nil && got.Status == queue.StatusCompleted
	})
}

func TestTriggerDailyRequiresRunningDaemon(t *testing.T) {
	h := newHarness(t)
	d := h.daemon(t)
	if _, err := d.TriggerDaily(api.TriggerRequest{}); err == nil {
		t.Fatal("expected error while stopped")
	}
}

func TestScheduledStatusReportsNextRun(t *testing.T) {
	h := newHarness(t)
	h.cfg.Daily.Enabled = true
	h.cfg.Daily.Schedule = "30 5 * * *"
	h.cfg.Paths.APIBind = ""
	d := h.daemon(t)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	status := d.Status(context.Background())
	if !status.DailyEnabled || status.DailySchedule != "30 5 * * *" {
		t.Fatalf("unexpected schedule status %+v", status)
	}
	next := status.NextDailyRun.UTC()
	if next.IsZero() || next.Hour() != 5 || next.Minute() != 30 {
		t.Fatalf("unexpected next run %v", next)
	}
}

func TestTriggerDailyOverHTTP(t *testing.T) {
	h := newHarness(t)
	d := h.daemon(t)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	base := "http://" + d.Addr()

	resp, err := http.Post(base+"/api/runs/trigger", "application/json", strings.NewReader(`{"date":"2026-10-18"}`))
	if err != nil {
		t.Fatalf("POST trigger: %v", err)
	}
	var accepted api.TriggerAccepted
	err = json.NewDecoder(resp.Body).Decode(&accepted)
	resp.Body.Close()
	if err != nil || resp.StatusCode != http.StatusAccepted || accepted.RunDate != "2026-10-18" {
		t.Fatalf("unexpected trigger response %d %+v %v", resp.StatusCode, accepted, err)
	}

	var run api.DailyRun
	waitFor(t, func() bool {
		resp, err := http.Get(base + "/api/runs/2026-10-18")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false
		}
		run = api.DailyRun{}
		return json.NewDecoder(resp.Body).Decode(&run) == nil && run.Status == string(queue.RunCompleted)
	})
	if run.Winner == nil || run.TotalKeywordsScored == 0 {
		t.Fatalf("expected winner on completed run, got %+v", run)
	}

	// Completed dates are answered directly.
	resp, err = http.Post(base+"/api/runs/trigger", "application/json", strings.NewReader(`{"date":"2026-10-18"}`))
	if err != nil {
		t.Fatalf("POST trigger: %v", err)
	}
	var reused api.DailyRun
	err = json.NewDecoder(resp.Body).Decode(&reused)
	resp.Body.Close()
	if err != nil || resp.StatusCode != http.StatusOK || !reused.Reused {
		t.Fatalf("expected reused run, got %d %+v %v", resp.StatusCode, reused, err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
