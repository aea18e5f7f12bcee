package config

const (
	defaultConfigPath              = "~/.config/marketscout/config.toml"
	projectConfigName              = "marketscout.toml"
	defaultDataDir                 = "~/.local/share/marketscout"
	defaultLogDir                  = "~/.local/share/marketscout/logs"
	defaultAPIBind                 = "127.0.0.1:7491"
	defaultSearchURL               = "https://itunes.apple.com/search"
	defaultLookupURL               = "https://itunes.apple.com/lookup"
	defaultSuggestURL              = "https://search.itunes.apple.com/WebObjects/MZSearchHints.woa/wa/hints"
	defaultReviewsURL              = "https://itunes.apple.com"
	defaultCountry                 = "us"
	defaultMarketplaceTimeout      = 15
	defaultResultLimit             = 10
	defaultMarketplaceRetries      = 3
	defaultUserAgent               = "marketscout/dev"
	defaultLLMBaseURL              = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel                = "google/gemini-3-flash-preview"
	defaultLLMReferer              = "https://github.com/marketscout/marketscout"
	defaultLLMTitle                = "marketscout opportunity scorer"
	defaultLLMTimeoutSeconds       = 60
	defaultWorkers                 = 2
	defaultQueuePollInterval       = 5
	defaultLeaseSeconds            = 300
	defaultHeartbeatInterval       = 30
	defaultCallIntervalMS          = 300
	defaultCallBurst               = 1
	defaultSeedDepth               = 2
	defaultMaxKeywords             = 50
	defaultCompetitorConfirmations = 5
	defaultDailySchedule           = "0 6 * * *"
	defaultKeywordsPerCategory     = 10
	defaultDailyTier               = "full"
	defaultDailyStaleAfter         = 1800
	defaultCacheTTLSeconds         = 3600
	defaultNotifyTimeout           = 10
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
)

// DefaultCategories is the category list processed by the daily run when no
// override is configured. Each entry has a curated seed table in the discovery
// package.
var DefaultCategories = []string{
	"productivity",
	"finance",
	"health-fitness",
	"education",
	"lifestyle",
	"utilities",
	"photo-video",
	"travel",
	"food-drink",
	"music",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Marketplace: Marketplace{
			SearchURL:      defaultSearchURL,
			LookupURL:      defaultLookupURL,
			SuggestURL:     defaultSuggestURL,
			ReviewsURL:     defaultReviewsURL,
			Country:        defaultCountry,
			TimeoutSeconds: defaultMarketplaceTimeout,
			ResultLimit:    defaultResultLimit,
			MaxRetries:     defaultMarketplaceRetries,
			UserAgent:      defaultUserAgent,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Workflow: Workflow{
			Workers:           defaultWorkers,
			QueuePollInterval: defaultQueuePollInterval,
			LeaseSeconds:      defaultLeaseSeconds,
			HeartbeatInterval: defaultHeartbeatInterval,
			CallIntervalMS:    defaultCallIntervalMS,
			CallBurst:         defaultCallBurst,
		},
		Discovery: Discovery{
			SeedDepth:               defaultSeedDepth,
			MaxKeywords:             defaultMaxKeywords,
			CompetitorConfirmations: defaultCompetitorConfirmations,
			FallbackOnError:         true,
		},
		Daily: Daily{
			Enabled:             true,
			Schedule:            defaultDailySchedule,
			Categories:          append([]string(nil), DefaultCategories...),
			KeywordsPerCategory: defaultKeywordsPerCategory,
			Country:             defaultCountry,
			Tier:                defaultDailyTier,
			StaleAfterSeconds:   defaultDailyStaleAfter,
		},
		Cache: Cache{
			TTLSeconds: defaultCacheTTLSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Winner:         true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
