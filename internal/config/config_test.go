package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"marketscout/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("OPENROUTER_API_KEY", "env-key")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "marketscout")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "marketscout.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Fatalf("expected LLM key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Lease().Minutes() != 5 {
		t.Fatalf("expected 5 minute lease, got %s", cfg.Lease())
	}
	if cfg.CallInterval().Milliseconds() != 300 {
		t.Fatalf("expected 300ms call interval, got %s", cfg.CallInterval())
	}
	if cfg.Discovery.SeedDepth != 2 || !cfg.Discovery.FallbackOnError {
		t.Fatalf("unexpected discovery defaults: %+v", cfg.Discovery)
	}
	if cfg.Daily.KeywordsPerCategory != 10 || len(cfg.Daily.Categories) != len(config.DefaultCategories) {
		t.Fatalf("unexpected daily defaults: %+v", cfg.Daily)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "marketscout.toml")

	type payload struct {
		Workflow struct {
			Workers      int `toml:"workers"`
			LeaseSeconds int `toml:"lease_seconds"`
		} `toml:"workflow"`
		Daily struct {
			Categories []string `toml:"categories"`
			Tier       string   `toml:"tier"`
		} `toml:"daily"`
	}
	custom := payload{}
	custom.Workflow.Workers = 4
	custom.Workflow.LeaseSeconds = 120
	custom.Daily.Categories = []string{" Finance ", "finance", "travel"}
	custom.Daily.Tier = "BASIC"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Workflow.Workers != 4 || cfg.Workflow.LeaseSeconds != 120 {
		t.Fatalf("unexpected workflow: %+v", cfg.Workflow)
	}
	if strings.Join(cfg.Daily.Categories, ",") != "finance,travel" {
		t.Fatalf("expected deduped categories, got %v", cfg.Daily.Categories)
	}
	if cfg.Daily.Tier != "basic" {
		t.Fatalf("expected tier basic, got %q", cfg.Daily.Tier)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "marketscout.toml")
	if err := os.WriteFile(configPath, []byte("[workflow]\nworkerz = 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"tier", func(c *config.Config) { c.Daily.Tier = "premium" }, "daily.tier"},
		{"schedule", func(c *config.Config) { c.Daily.Schedule = "every day" }, "daily.schedule"},
		{"lease", func(c *config.Config) { c.Workflow.LeaseSeconds = 10; c.Workflow.HeartbeatInterval = 30 }, "workflow.lease_seconds"},
		{"depth", func(c *config.Config) { c.Discovery.SeedDepth = 0 }, "discovery.seed_depth"},
		{"redis", func(c *config.Config) { c.Cache.RedisURL = "http://localhost" }, "cache.redis_url"},
		{"country", func(c *config.Config) { c.Marketplace.Country = "usa" }, "marketplace.country"},
		{"search url", func(c *config.Config) { c.Marketplace.SearchURL = "itunes" }, "marketplace.search_url"},
		{"poll", func(c *config.Config) { c.Workflow.QueuePollInterval = 0 }, "workflow.queue_poll_interval"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %q", tc.want, err.Error())
			}
		})
	}
}

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestRedisURLFromEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MARKETSCOUT_REDIS_URL", "redis://cache:6379/1")
	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Cache.RedisURL != "redis://cache:6379/1" {
		t.Fatalf("expected redis url from env, got %q", cfg.Cache.RedisURL)
	}
}

func TestSampleConfigParses(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Daily.Schedule != "0 6 * * *" {
		t.Fatalf("unexpected schedule %q", cfg.Daily.Schedule)
	}
}
