package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"marketscout/internal/fileutil"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Marketplace contains endpoints and limits for the app catalog adapter.
type Marketplace struct {
	SearchURL      string `toml:"search_url"`
	LookupURL      string `toml:"lookup_url"`
	SuggestURL     string `toml:"suggest_url"`
	ReviewsURL     string `toml:"reviews_url"`
	Country        string `toml:"country"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	ResultLimit    int    `toml:"result_limit"`
	MaxRetries     int    `toml:"max_retries"`
	UserAgent      string `toml:"user_agent"`
}

// LLM contains the connection settings for qualitative scoring.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Workflow contains worker pool sizing, leases, and pacing of external calls.
type Workflow struct {
	Workers           int `toml:"workers"`
	QueuePollInterval int `toml:"queue_poll_interval"`
	LeaseSeconds      int `toml:"lease_seconds"`
	HeartbeatInterval int `toml:"heartbeat_interval"`
	CallIntervalMS    int `toml:"call_interval_ms"`
	CallBurst         int `toml:"call_burst"`
	JobTimeoutSeconds int `toml:"job_timeout_seconds"`
}

// Discovery bounds keyword expansion.
type Discovery struct {
	SeedDepth               int  `toml:"seed_depth"`
	MaxKeywords             int  `toml:"max_keywords"`
	CompetitorConfirmations int  `toml:"competitor_confirmations"`
	FallbackOnError         bool `toml:"fallback_on_error"`
}

// Daily configures the once-per-day discovery and scoring run.
type Daily struct {
	Enabled             bool     `toml:"enabled"`
	Schedule            string   `toml:"schedule"`
	Categories          []string `toml:"categories"`
	KeywordsPerCategory int      `toml:"keywords_per_category"`
	Country             string   `toml:"country"`
	Tier                string   `toml:"tier"`
	StaleAfterSeconds   int      `toml:"stale_after_seconds"`
}

// Cache configures the optional Redis response cache for marketplace calls.
type Cache struct {
	RedisURL   string `toml:"redis_url"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Winner         bool   `toml:"winner"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for marketscout.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and API bind address
//   - Marketplace: catalog search, autosuggest, and review endpoints
//   - LLM: qualitative scoring model connection
//   - Workflow: worker pool, leases, and call pacing
//   - Discovery: expansion depth and emission caps
//   - Daily: cron schedule and per-run category settings
//   - Cache: optional Redis response cache
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Marketplace   Marketplace   `toml:"marketplace"`
	LLM           LLM           `toml:"llm"`
	Workflow      Workflow      `toml:"workflow"`
	Discovery     Discovery     `toml:"discovery"`
	Daily         Daily         `toml:"daily"`
	Cache         Cache         `toml:"cache"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "marketscout.db")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "marketscoutd.lock")
}

// Lease returns the job lease (and stale threshold) duration.
func (c *Config) Lease() time.Duration {
	return time.Duration(c.Workflow.LeaseSeconds) * time.Second
}

// PollInterval returns the worker queue poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Workflow.QueuePollInterval) * time.Second
}

// HeartbeatInterval returns how often a running job renews its lease.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Workflow.HeartbeatInterval) * time.Second
}

// CallInterval returns the minimum spacing between external calls.
func (c *Config) CallInterval() time.Duration {
	return time.Duration(c.Workflow.CallIntervalMS) * time.Millisecond
}

// JobTimeout returns the upper bound for a single job's processing, zero meaning unbounded.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.Workflow.JobTimeoutSeconds) * time.Second
}

// DailyStaleAfter returns the heartbeat age after which a running daily run is considered stuck.
func (c *Config) DailyStaleAfter() time.Duration {
	return time.Duration(c.Daily.StaleAfterSeconds) * time.Second
}

// CacheTTL returns the marketplace response cache lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := fileutil.WriteAtomic(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}
