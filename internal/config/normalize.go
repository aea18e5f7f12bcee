package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeMarketplace()
	c.normalizeLLM()
	c.normalizeWorkflow()
	c.normalizeDiscovery()
	c.normalizeDaily()
	c.normalizeCache()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("MARKETSCOUT_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeMarketplace() {
	m := &c.Marketplace
	m.SearchURL = defaultString(m.SearchURL, defaultSearchURL)
	m.LookupURL = defaultString(m.LookupURL, defaultLookupURL)
	m.SuggestURL = defaultString(m.SuggestURL, defaultSuggestURL)
	m.ReviewsURL = strings.TrimRight(defaultString(m.ReviewsURL, defaultReviewsURL), "/")
	m.Country = strings.ToLower(defaultString(m.Country, defaultCountry))
	m.UserAgent = defaultString(m.UserAgent, defaultUserAgent)
	if m.TimeoutSeconds <= 0 {
		m.TimeoutSeconds = defaultMarketplaceTimeout
	}
	if m.ResultLimit <= 0 {
		m.ResultLimit = defaultResultLimit
	}
	if m.MaxRetries < 0 {
		m.MaxRetries = 0
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = defaultString(c.LLM.BaseURL, defaultLLMBaseURL)
	c.LLM.Model = defaultString(c.LLM.Model, defaultLLMModel)
	c.LLM.Referer = defaultString(c.LLM.Referer, defaultLLMReferer)
	c.LLM.Title = defaultString(c.LLM.Title, defaultLLMTitle)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("MARKETSCOUT_LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeWorkflow() {
	w := &c.Workflow
	if w.Workers <= 0 {
		w.Workers = defaultWorkers
	}
	if w.CallBurst <= 0 {
		w.CallBurst = defaultCallBurst
	}
	if w.JobTimeoutSeconds < 0 {
		w.JobTimeoutSeconds = 0
	}
}

func (c *Config) normalizeDiscovery() {
	if c.Discovery.MaxKeywords <= 0 {
		c.Discovery.MaxKeywords = defaultMaxKeywords
	}
	if c.Discovery.CompetitorConfirmations < 0 {
		c.Discovery.CompetitorConfirmations = 0
	}
}

func (c *Config) normalizeDaily() {
	c.Daily.Schedule = defaultString(c.Daily.Schedule, defaultDailySchedule)
	c.Daily.Country = strings.ToLower(defaultString(c.Daily.Country, c.Marketplace.Country))
	c.Daily.Tier = strings.ToLower(defaultString(c.Daily.Tier, defaultDailyTier))
	if c.Daily.KeywordsPerCategory <= 0 {
		c.Daily.KeywordsPerCategory = defaultKeywordsPerCategory
	}
	if c.Daily.StaleAfterSeconds <= 0 {
		c.Daily.StaleAfterSeconds = defaultDailyStaleAfter
	}
	categories := make([]string, 0, len(c.Daily.Categories))
	seen := make(map[string]struct{}, len(c.Daily.Categories))
	for _, category := range c.Daily.Categories {
		normalized := strings.ToLower(strings.TrimSpace(category))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		categories = append(categories, normalized)
	}
	if len(categories) == 0 {
		categories = append(categories, DefaultCategories...)
	}
	c.Daily.Categories = categories
}

func (c *Config) normalizeCache() {
	c.Cache.RedisURL = strings.TrimSpace(c.Cache.RedisURL)
	if c.Cache.RedisURL == "" {
		if value, ok := os.LookupEnv("MARKETSCOUT_REDIS_URL"); ok {
			c.Cache.RedisURL = strings.TrimSpace(value)
		}
	}
	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = defaultCacheTTLSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func defaultString(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}
