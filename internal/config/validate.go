package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMarketplace(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateDiscovery(); err != nil {
		return err
	}
	if err := c.validateDaily(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateMarketplace() error {
	for key, raw := range map[string]string{
		"marketplace.search_url":  c.Marketplace.SearchURL,
		"marketplace.lookup_url":  c.Marketplace.LookupURL,
		"marketplace.suggest_url": c.Marketplace.SuggestURL,
		"marketplace.reviews_url": c.Marketplace.ReviewsURL,
	} {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
		}
	}
	if len(c.Marketplace.Country) != 2 {
		return fmt.Errorf("marketplace.country must be a two-letter storefront code, got %q", c.Marketplace.Country)
	}
	if c.Marketplace.ResultLimit > 200 {
		return errors.New("marketplace.result_limit must be at most 200")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval": c.Workflow.QueuePollInterval,
		"workflow.lease_seconds":       c.Workflow.LeaseSeconds,
		"workflow.heartbeat_interval":  c.Workflow.HeartbeatInterval,
		"workflow.call_interval_ms":    c.Workflow.CallIntervalMS,
		"llm.timeout_seconds":          c.LLM.TimeoutSeconds,
		"marketplace.timeout_seconds":  c.Marketplace.TimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Workflow.LeaseSeconds <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.lease_seconds must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateDiscovery() error {
	if c.Discovery.SeedDepth < 1 {
		return errors.New("discovery.seed_depth must be at least 1")
	}
	return nil
}

func (c *Config) validateDaily() error {
	switch c.Daily.Tier {
	case "basic", "full":
	default:
		return fmt.Errorf("daily.tier must be basic or full, got %q", c.Daily.Tier)
	}
	if len(c.Daily.Country) != 2 {
		return fmt.Errorf("daily.country must be a two-letter storefront code, got %q", c.Daily.Country)
	}
	if c.Daily.Enabled {
		if _, err := cron.ParseStandard(c.Daily.Schedule); err != nil {
			return fmt.Errorf("daily.schedule %q: %w", c.Daily.Schedule, err)
		}
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.RedisURL == "" {
		return nil
	}
	parsed, err := url.Parse(c.Cache.RedisURL)
	if err != nil {
		return fmt.Errorf("cache.redis_url: %w", err)
	}
	if parsed.Scheme != "redis" && parsed.Scheme != "rediss" {
		return fmt.Errorf("cache.redis_url must use redis:// or rediss://, got %q", parsed.Scheme)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
