package preflight

import (
	"context"

	"marketscout/internal/config"
	"marketscout/internal/services/llm"
	"marketscout/internal/services/marketplace"
)

// CheckLLMFromConfig evaluates the qualitative scoring model from config.
func CheckLLMFromConfig(ctx context.Context, cfg *config.Config) Result {
	const name = "Scoring LLM"
	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	return CheckLLM(ctx, name, llm.ConfigFrom(cfg))
}

// CheckMarketplaceFromConfig probes the configured catalog without retries or
// caching so the result reflects the endpoint right now.
func CheckMarketplaceFromConfig(ctx context.Context, cfg *config.Config) Result {
	if cfg == nil {
		return Result{Name: "Marketplace", Detail: "Unknown"}
	}
	mcfg := marketplace.ConfigFrom(cfg)
	mcfg.MaxRetries = 0
	client := marketplace.NewClient(mcfg)
	return CheckMarketplace(ctx, client, client.Country())
}
