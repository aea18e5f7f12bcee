package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketscout/internal/logging"
)

// Start launches the worker pool.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.processor == nil {
		m.mu.Unlock()
		return errors.New("workflow processor not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(m.workers)
	m.mu.Unlock()

	for i := 0; i < m.workers; i++ {
		go m.runWorker(runCtx, i+1)
	}
	m.logger.Info("workflow started",
		logging.Int("workers", m.workers),
		logging.Duration("poll_interval", m.pollInterval),
		logging.String(logging.FieldEventType, "workflow_start"),
	)
	return nil
}

// Stop cancels the workers and waits for them to return. Jobs in flight stay
// running until their lease expires.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) runWorker(ctx context.Context, id int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.String("worker", fmt.Sprintf("worker-%d", id)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		processed, err := m.processor.RunOnce(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
			logger.Error("job processing failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_process_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
			m.wait(ctx)
			continue
		}
		if !processed {
			m.wait(ctx)
		}
	}
}

func (m *Manager) wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}
