package testsupport

import (
	"context"
	"testing"

	"marketscout/internal/config"
	"marketscout/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...queue.Option) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg, opts...)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustEnqueue enqueues a job and fails the test on error.
func MustEnqueue(t testing.TB, store *queue.Store, jobType queue.JobType, params queue.JobParams, priority int) *queue.Job {
	t.Helper()

	job, err := store.Enqueue(context.Background(), jobType, params, priority)
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return job
}

// SeedJob builds discover_seed params for tests.
func SeedJob(seed string, depth int) queue.JobParams {
	return queue.JobParams{Seed: &queue.SeedParams{Seed: seed, Depth: depth, Scope: queue.Scope{Country: "us", Category: "productivity"}}}
}

// BulkJob builds score_bulk params for tests.
func BulkJob(keywords ...string) queue.JobParams {
	return queue.JobParams{ScoreBulk: &queue.ScoreBulkParams{Keywords: keywords, Scope: queue.Scope{Country: "us", Category: "productivity"}}}
}
