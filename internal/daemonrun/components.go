package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"marketscout/internal/cache"
	"marketscout/internal/config"
	"marketscout/internal/dailyrun"
	"marketscout/internal/discovery"
	"marketscout/internal/logging"
	"marketscout/internal/notifications"
	"marketscout/internal/queue"
	"marketscout/internal/ratelimit"
	"marketscout/internal/scoring"
	"marketscout/internal/services/llm"
	"marketscout/internal/services/marketplace"
	"marketscout/internal/services/scorellm"
	"marketscout/internal/workflow"
)

// Components holds the wired pipeline shared by the daemon and the CLI's
// in-process commands.
type Components struct {
	Store        *queue.Store
	Cache        cache.Cache
	Marketplace  *marketplace.Client
	Discovery    *discovery.Engine
	Scorer       *scoring.Engine
	Notifier     notifications.Service
	Processor    *workflow.Processor
	Workflow     *workflow.Manager
	Orchestrator *dailyrun.Orchestrator
	// LLMConfigured is false when full-tier scoring degrades to basic.
	LLMConfigured bool
}

// Build opens the store and constructs every pipeline component from cfg.
// Callers own the result and must Close it.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}
	c := &Components{Store: store}

	responseCache, err := cache.New(ctx, cfg, logger)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("init cache: %w", err)
	}
	c.Cache = responseCache

	limiter := ratelimit.New(cfg.CallInterval(), cfg.Workflow.CallBurst)
	c.Marketplace = marketplace.NewFromConfig(cfg,
		marketplace.WithLimiter(limiter),
		marketplace.WithCache(responseCache),
	)

	scoringOpts := []scoring.Option{scoring.WithLogger(logger), scoring.WithLimiter(limiter)}
	llmClient := llm.NewClient(llm.ConfigFrom(cfg))
	if llmClient.Configured() {
		scoringOpts = append(scoringOpts, scoring.WithAssessor(scorellm.New(llmClient, llm.DecodeLLMJSON)))
		c.LLMConfigured = true
	}
	c.Scorer = scoring.NewEngine(c.Marketplace, scoringOpts...)
	c.Discovery = discovery.NewEngine(c.Marketplace, discovery.OptionsFrom(cfg), logger)
	c.Notifier = notifications.NewService(cfg)

	c.Processor = workflow.NewProcessor(cfg, store, c.Discovery, c.Scorer,
		workflow.WithLogger(logger),
		workflow.WithNotifier(c.Notifier),
	)
	c.Workflow = workflow.NewManager(cfg, store, c.Processor, logger)

	orch, err := dailyrun.NewOrchestrator(cfg, store, c.Discovery, c.Scorer,
		dailyrun.WithLogger(logger),
		dailyrun.WithNotifier(c.Notifier),
	)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.Orchestrator = orch
	return c, nil
}

// Close releases the cache and the store.
func (c *Components) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Cache != nil {
		errs = append(errs, c.Cache.Close())
	}
	if c.Store != nil {
		errs = append(errs, c.Store.Close())
	}
	return errors.Join(errs...)
}
