package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketscout/internal/config"
	"marketscout/internal/discovery"
	"marketscout/internal/logging"
	"marketscout/internal/notifications"
	"marketscout/internal/queue"
	"marketscout/internal/scoring"
	"marketscout/internal/services"
)

// Discoverer runs the discovery strategies a job can request.
type Discoverer interface {
	ExpandSeed(ctx context.Context, seed string, req discovery.Request, emit discovery.EmitFunc) (discovery.Result, error)
	FromCompetitor(ctx context.Context, comp discovery.Competitor, req discovery.Request, emit discovery.EmitFunc) (discovery.Result, error)
	FromCategory(ctx context.Context, category string, req discovery.Request, emit discovery.EmitFunc) (discovery.Result, error)
}

// Scorer scores one keyword.
type Scorer interface {
	Score(ctx context.Context, keyword, country string, tier scoring.Tier) (scoring.KeywordScore, error)
}

// Processor claims and executes one job per RunOnce call.
type Processor struct {
	store      *queue.Store
	discoverer Discoverer
	scorer     Scorer
	notifier   notifications.Service
	logger     *slog.Logger
	heartbeat  *HeartbeatMonitor

	lease          time.Duration
	jobTimeout     time.Duration
	defaultCountry string
}

// ProcessorOption customizes a Processor.
type ProcessorOption func(*Processor)

// WithLogger sets the processor logger.
func WithLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithNotifier sets the notifier used for job failures.
func WithNotifier(notifier notifications.Service) ProcessorOption {
	return func(p *Processor) {
		if notifier != nil {
			p.notifier = notifier
		}
	}
}

// WithClock overrides the clock used for the stale sweep.
func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) {
		if now != nil {
			p.heartbeat.now = now
		}
	}
}

// NewProcessor wires a processor from configuration.
func NewProcessor(cfg *config.Config, store *queue.Store, discoverer Discoverer, scorer Scorer, opts ...ProcessorOption) *Processor {
	p := &Processor{
		store:      store,
		discoverer: discoverer,
		scorer:     scorer,
		notifier:   notifications.NewService(cfg),
		logger:     logging.NewNop(),
		lease:      cfg.Lease(),
		jobTimeout: cfg.JobTimeout(),
	}
	if p.lease <= 0 {
		p.lease = queue.DefaultLease
	}
	p.defaultCountry = strings.ToLower(strings.TrimSpace(cfg.Marketplace.Country))
	p.heartbeat = NewHeartbeatMonitor(store, nil, cfg.HeartbeatInterval(), p.lease)
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "workflow-processor")
	p.heartbeat.logger = p.logger
	return p
}

// RunOnce reclaims stale jobs, claims the next claimable job, and runs it to
// a terminal state. It returns false when the queue had nothing to claim. A
// cancelled ctx leaves the claimed job running for the lease sweep.
func (p *Processor) RunOnce(ctx context.Context) (bool, error) {
	if err := p.heartbeat.ReclaimStale(ctx, p.logger); err != nil {
		logging.WarnWithContext(p.logger, "reclaim stale jobs failed; stuck jobs may remain", "reclaim_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
	}
	job, err := p.store.ClaimNext(ctx, p.lease)
	if err != nil {
		return false, fmt.Errorf("claim next job: %w", err)
	}
	if job == nil {
		return false, nil
	}
	return true, p.process(ctx, job)
}

func (p *Processor) process(ctx context.Context, job *queue.Job) (err error) {
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithStage(ctx, string(job.Type))
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, p.logger)
	claim := job.Claim()

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if p.jobTimeout > 0 {
		var timeoutCancel context.CancelFunc
		jobCtx, timeoutCancel = context.WithTimeout(jobCtx, p.jobTimeout)
		defer timeoutCancel()
	}

	var (
		lostMu sync.Mutex
		lost   bool
		hbWG   sync.WaitGroup
	)
	hbCtx, hbCancel := context.WithCancel(jobCtx)
	hbWG.Add(1)
	go p.heartbeat.StartLoop(hbCtx, &hbWG, claim, func() {
		lostMu.Lock()
		lost = true
		lostMu.Unlock()
		cancel()
	})
	stopHeartbeat := func() {
		hbCancel()
		hbWG.Wait()
	}

	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("job_type", string(job.Type)),
		logging.Int("attempt", job.Attempts),
	)
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			stopHeartbeat()
			panicErr := fmt.Errorf("job panicked: %v", r)
			logger.Error("job panicked",
				logging.String(logging.FieldEventType, "job_panic"),
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
			)
			p.fail(ctx, logger, job, claim, panicErr)
			err = panicErr
		}
	}()

	run := newJobRun(p, job, claim, logger)
	summary, runErr := run.execute(jobCtx)
	stopHeartbeat()

	lostMu.Lock()
	claimLost := lost || errors.Is(runErr, errClaimLost)
	lostMu.Unlock()

	switch {
	case claimLost:
		logger.Warn("job abandoned after losing its claim",
			logging.String(logging.FieldEventType, "job_abandoned"),
			logging.String(logging.FieldImpact, "partial results stay; the new claimant finishes the job"),
		)
		return nil
	case ctx.Err() != nil:
		logger.Info("job interrupted; lease will expire and the job will be reclaimed",
			logging.String(logging.FieldEventType, "job_interrupted"),
		)
		return ctx.Err()
	case runErr != nil && p.jobTimeout > 0 && errors.Is(jobCtx.Err(), context.DeadlineExceeded):
		logging.WarnWithContext(logger, "job exceeded its time budget; lease will expire and the job will be reclaimed", "job_timeout",
			logging.Duration("job_timeout", p.jobTimeout),
			logging.Error(runErr),
			logging.String(logging.FieldImpact, "job stays running until the recovery sweep requeues it"),
		)
		return nil
	case runErr == nil:
		applied, err := p.store.Complete(ctx, claim, summary)
		if err != nil {
			return fmt.Errorf("complete job: %w", err)
		}
		if !applied {
			logger.Warn("job completion ignored; job already terminal or reclaimed",
				logging.String(logging.FieldEventType, "job_complete_ignored"),
			)
			return nil
		}
		logger.Info("job completed",
			logging.String(logging.FieldEventType, "job_complete"),
			logging.String("summary", summary),
			logging.Duration("job_duration", time.Since(started)),
		)
		return nil
	default:
		p.fail(ctx, logger, job, claim, runErr)
		return nil
	}
}

func (p *Processor) fail(ctx context.Context, logger *slog.Logger, job *queue.Job, claim queue.Claim, jobErr error) {
	message := strings.TrimSpace(jobErr.Error())
	if message == "" {
		message = fmt.Sprintf("%s failed", job.Type)
	}
	applied, err := p.store.Fail(ctx, claim, message)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutting down, could not record job failure")
		} else {
			logger.Error("failed to persist job failure", logging.Error(err))
		}
		return
	}
	if !applied {
		logger.Warn("job failure ignored; job already terminal or reclaimed",
			logging.String(logging.FieldEventType, "job_fail_ignored"),
		)
		return
	}
	logging.ErrorWithContext(logger, "job failed", "job_failure",
		logging.String("error_message", message),
		logging.Bool("job_fatal", services.IsJobFatal(jobErr)),
		logging.Error(jobErr),
		logging.String(logging.FieldErrorHint, "inspect the job with `marketscout job show` and reset it once fixed"),
	)
	if err := p.notifier.Publish(ctx, notifications.EventJobFailed, notifications.Payload{
		"job_id":   job.ID,
		"job_type": string(job.Type),
		"error":    message,
	}); err != nil {
		logger.Debug("job failure notification failed", logging.Error(err))
	}
}
