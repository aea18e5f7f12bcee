package testsupport

import (
	"path/filepath"
	"testing"

	"marketscout/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// External calls are unpaced and the LLM key is cleared so tests never reach
// real services by accident.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.LLM.APIKey = ""
	cfgVal.Cache.RedisURL = ""
	cfgVal.Notifications.NtfyTopic = ""
	cfgVal.Workflow.CallIntervalMS = 1
	cfgVal.Workflow.CallBurst = 1000
	cfgVal.Workflow.QueuePollInterval = 1
	cfgVal.Workflow.HeartbeatInterval = 1
	cfgVal.Daily.Enabled = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithCategories overrides the daily category list.
func WithCategories(categories ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Daily.Categories = append([]string(nil), categories...)
	}
}

// WithMarketplaceURL points every marketplace endpoint at a test server.
func WithMarketplaceURL(base string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Marketplace.SearchURL = base + "/search"
		b.cfg.Marketplace.LookupURL = base + "/lookup"
		b.cfg.Marketplace.SuggestURL = base + "/hints"
		b.cfg.Marketplace.ReviewsURL = base
	}
}

// WithLLM configures the LLM endpoint and key.
func WithLLM(baseURL, key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.BaseURL = baseURL
		b.cfg.LLM.APIKey = key
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
