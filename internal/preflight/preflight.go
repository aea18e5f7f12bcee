package preflight

import (
	"context"
	"strings"

	"marketscout/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckMarketplaceFromConfig(ctx, cfg),
		CheckLLMFromConfig(ctx, cfg),
	}
	if strings.TrimSpace(cfg.Cache.RedisURL) != "" {
		results = append(results, CheckRedis(ctx, cfg.Cache.RedisURL))
	}
	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
