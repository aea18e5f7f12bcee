package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"marketscout/internal/api"
	"marketscout/internal/config"
	"marketscout/internal/dailyrun"
	"marketscout/internal/logging"
	"marketscout/internal/queue"
	"marketscout/internal/workflow"
)

// Daemon coordinates the background processing services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	runs     *dailyrun.Orchestrator
	service  *api.Service

	lockPath string
	lock     *flock.Flock

	scheduler *scheduler
	api       *apiServer

	running  atomic.Bool
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	triggers sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	Workflow      workflow.StatusSummary
	QueueDBPath   string
	LockFilePath  string
	DailyEnabled  bool
	DailySchedule string
	NextDailyRun  time.Time
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, runs *dailyrun.Orchestrator) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil || runs == nil {
		return nil, errors.New("daemon requires config, store, workflow manager, and daily run orchestrator")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		runs:     runs,
		service:  api.NewService(store, runs, api.WithWorkflow(wf)),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	if cfg.Daily.Enabled {
		sched, err := newScheduler(cfg.Daily.Schedule, logger, d.runScheduledDaily)
		if err != nil {
			return nil, err
		}
		d.scheduler = sched
	}
	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = srv
	return d, nil
}

// Start acquires the daemon lock and launches the worker pool, the daily
// schedule and the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another marketscout daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		d.workflow.Stop()
		_ = d.lock.Unlock()
		cancel()
		return err
	}

	d.mu.Lock()
	d.ctx, d.cancel = runCtx, cancel
	d.mu.Unlock()
	d.scheduler.start()

	d.running.Store(true)
	d.logger.Info("marketscout daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("workers", d.cfg.Workflow.Workers),
		logging.Bool("daily_enabled", d.scheduler != nil),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock. In-flight
// triggered daily runs are cancelled and awaited.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.mu.Unlock()
	d.scheduler.stop()
	d.api.stop()
	d.workflow.Stop()
	d.triggers.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("marketscout daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Service exposes the API operations backed by this daemon.
func (d *Daemon) Service() *api.Service {
	return d.service
}

// Addr reports the API listen address once started.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(ctx),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		DailyEnabled: d.scheduler != nil,
	}
	if d.scheduler != nil {
		status.DailySchedule = d.scheduler.spec
		status.NextDailyRun = d.scheduler.next()
	}
	return status
}

// TriggerDaily starts a daily run in the background and returns the run date
// it targets. Progress is visible through the daily run status.
func (d *Daemon) TriggerDaily(req api.TriggerRequest) (string, error) {
	d.mu.Lock()
	ctx := d.ctx
	d.mu.Unlock()
	if ctx == nil || !d.running.Load() {
		return "", errors.New("daemon is not running")
	}
	if req.Date == "" {
		req.Date = time.Now().UTC().Format(queue.RunDateLayout)
	}
	if _, err := time.Parse(queue.RunDateLayout, req.Date); err != nil {
		return "", fmt.Errorf("invalid run date %q: %w", req.Date, err)
	}

	d.triggers.Add(1)
	go func() {
		defer d.triggers.Done()
		d.logTrigger(d.service.TriggerDailyRun(ctx, req))
	}()
	return req.Date, nil
}

func (d *Daemon) runScheduledDaily() {
	d.mu.Lock()
	ctx := d.ctx
	d.mu.Unlock()
	if ctx == nil {
		return
	}
	d.triggers.Add(1)
	defer d.triggers.Done()
	d.logger.Info("scheduled daily run firing", logging.String(logging.FieldEventType, "daily_run_scheduled"))
	d.logTrigger(d.service.TriggerDailyRun(ctx, api.TriggerRequest{}))
}

func (d *Daemon) logTrigger(run *api.DailyRun, err error) {
	switch {
	case errors.Is(err, dailyrun.ErrRunInProgress):
		d.logger.Info("daily run already in progress; trigger ignored",
			logging.String(logging.FieldEventType, "daily_run_busy"))
	case errors.Is(err, context.Canceled):
		d.logger.Info("daily run interrupted by shutdown",
			logging.String(logging.FieldEventType, "daily_run_interrupted"),
			logging.String(logging.FieldImpact, "the next trigger restarts the run once its heartbeat is stale"))
	case err != nil:
		logging.WarnWithContext(d.logger, "daily run trigger failed", "daily_run_trigger_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the run with marketscout run status"))
	case run != nil && run.Reused:
		d.logger.Info("daily run already completed",
			logging.String(logging.FieldRunDate, run.RunDate),
			logging.String(logging.FieldEventType, "daily_run_reused"))
	case run != nil:
		d.logger.Info("daily run finished",
			logging.String(logging.FieldRunDate, run.RunDate),
			logging.String("status", run.Status),
			logging.String(logging.FieldEventType, "daily_run_finished"))
	}
}
