package main

import (
	"context"
	"encoding/json"
	"testing"

	"marketscout/internal/api"
)

func TestRunListAndStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	out, _, err := runCLI(t, []string{"run", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("run list: %v", err)
	}
	requireContains(t, out, "No daily runs recorded")

	if _, _, err := runCLI(t, []string{"run", "status", "2026-03-01"}, env.configPath); err == nil {
		t.Fatal("expected error for missing run")
	}
	if _, _, err := runCLI(t, []string{"run", "status", "march"}, env.configPath); err == nil {
		t.Fatal("expected error for malformed date")
	}

	if _, _, err := env.store.CreateDailyRun(ctx, "2026-03-01"); err != nil {
		t.Fatalf("CreateDailyRun: %v", err)
	}
	if _, err := env.store.FailDailyRun(ctx, "2026-03-01", "no keywords scored across 3 categories"); err != nil {
		t.Fatalf("FailDailyRun: %v", err)
	}

	out, _, err = runCLI(t, []string{"run", "status", "2026-03-01"}, env.configPath)
	if err != nil {
		t.Fatalf("run status: %v", err)
	}
	requireContains(t, out, "failed")
	requireContains(t, out, "no keywords scored across 3 categories")

	out, _, err = runCLI(t, []string{"--json", "run", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("run list --json: %v", err)
	}
	var listed api.RunListResponse
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("decode runs: %v\n%s", err, out)
	}
	if len(listed.Runs) != 1 || listed.Runs[0].RunDate != "2026-03-01" || listed.Runs[0].Status != "failed" {
		t.Fatalf("unexpected runs %+v", listed.Runs)
	}
}

func TestRunTriggerRejectsBadDate(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"run", "trigger", "--date", "03/01/2026"}, env.configPath); err == nil {
		t.Fatal("expected error for malformed --date")
	}
}
