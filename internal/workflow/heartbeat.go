package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"marketscout/internal/logging"
	"marketscout/internal/queue"
)

// HeartbeatMonitor renews job leases and reclaims jobs whose lease expired.
type HeartbeatMonitor struct {
	store    *queue.Store
	logger   *slog.Logger
	interval time.Duration
	lease    time.Duration
	now      func() time.Time
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(store *queue.Store, logger *slog.Logger, interval, lease time.Duration) *HeartbeatMonitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	if lease <= 0 {
		lease = queue.DefaultLease
	}
	if interval <= 0 || interval >= lease {
		interval = lease / 3
	}
	return &HeartbeatMonitor{
		store:    store,
		logger:   logger,
		interval: interval,
		lease:    lease,
		now:      time.Now,
	}
}

// ReclaimStale returns running jobs with expired leases to pending.
func (h *HeartbeatMonitor) ReclaimStale(ctx context.Context, logger *slog.Logger) error {
	reclaimed, err := h.store.ReclaimStale(ctx, h.now())
	if err != nil {
		return err
	}
	if reclaimed > 0 {
		logger.Info("reclaimed stale jobs",
			logging.Int64("count", reclaimed),
			logging.String(logging.FieldEventType, "jobs_reclaimed"),
		)
	}
	return nil
}

// StartLoop renews the lease held by claim until ctx is done. onLost is called
// once when the claim is found to be no longer current.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, claim queue.Claim, onLost func()) {
	defer wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, logging.NewComponentLogger(h.logger, "workflow-heartbeat"))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			held, err := h.store.RenewLease(ctx, claim, h.lease)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Debug("heartbeat cancelled")
					return
				}
				logger.Warn("lease renewal failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "lease_renew_failed"),
					logging.String(logging.FieldImpact, "job may be reclaimed if renewals keep failing"),
				)
				continue
			}
			if !held {
				logger.Warn("job claim lost; stopping work",
					logging.String(logging.FieldEventType, "claim_lost"),
					logging.String(logging.FieldImpact, "another worker owns this job now"),
				)
				if onLost != nil {
					onLost()
				}
				return
			}
		}
	}
}
