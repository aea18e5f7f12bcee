package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"marketscout/internal/cache"
	"marketscout/internal/services"
	"marketscout/internal/services/llm"
	"marketscout/internal/services/marketplace"
)

// probeQuery is a term every storefront returns results for.
const probeQuery = "calculator"

// Catalog is the marketplace search used for the reachability probe.
type Catalog interface {
	Lookup(ctx context.Context, query, country string, limit int) (marketplace.SearchResult, error)
}

// CheckLLM verifies that the LLM API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, cfg llm.Config) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing (full tier scores degrade to basic)"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(cfg, llm.WithRetryMaxAttempts(1))
	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError("LLM API", err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckMarketplace runs a one-result search to verify the catalog answers.
func CheckMarketplace(ctx context.Context, catalog Catalog, country string) Result {
	const name = "Marketplace"
	if catalog == nil {
		return Result{Name: name, Detail: "not configured"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	result, err := catalog.Lookup(checkCtx, probeQuery, country, 1)
	if err != nil {
		return Result{Name: name, Detail: summarizeError("catalog", err)}
	}
	if len(result.Apps) == 0 {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("reachable (%s storefront returned no results)", result.Country)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("reachable (%s storefront)", result.Country)}
}

// CheckRedis verifies the response cache answers a ping.
func CheckRedis(ctx context.Context, redisURL string) Result {
	const name = "Redis cache"
	rc, err := cache.NewRedis(ctx, redisURL, time.Minute)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	_ = rc.Close()
	return Result{Name: name, Passed: true, Detail: "reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// summarizeError produces a human-readable summary for failed probes.
func summarizeError(target string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, services.ErrTimeout) {
		return fmt.Sprintf("health check timed out (%s unresponsive)", target)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("health check timed out (%s unreachable)", target)
	}
	return err.Error()
}
