package workflow

import (
	"log/slog"
	"sync"
	"time"

	"marketscout/internal/config"
	"marketscout/internal/logging"
	"marketscout/internal/queue"
)

// Manager runs a pool of workers that drain the queue through a Processor.
type Manager struct {
	store        *queue.Store
	processor    *Processor
	logger       *slog.Logger
	pollInterval time.Duration
	workers      int

	mu      sync.RWMutex
	running bool
	cancel  func()
	wg      sync.WaitGroup
	lastErr error
}

// NewManager constructs a worker pool sized from cfg.
func NewManager(cfg *config.Config, store *queue.Store, processor *Processor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	workers := cfg.Workflow.Workers
	if workers <= 0 {
		workers = 1
	}
	poll := cfg.PollInterval()
	if poll <= 0 {
		poll = time.Second
	}
	return &Manager{
		store:        store,
		processor:    processor,
		logger:       logging.NewComponentLogger(logger, "workflow-manager"),
		pollInterval: poll,
		workers:      workers,
	}
}
