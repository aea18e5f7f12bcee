package main

import (
	"encoding/json"
	"testing"

	"marketscout/internal/queue"
	"marketscout/internal/testsupport"
)

func TestStatusWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.MustEnqueue(t, env.store, queue.JobScoreBulk, testsupport.BulkJob("budget app"), 0)

	out, _, err := runCLI(t, []string{"status", "--skip-checks"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "[WARN] Not reachable")
	requireContains(t, out, "1 pending, 0 running, 0 completed, 0 failed")
	requireContains(t, out, "[OK] schema v")
}

func TestStatusJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"--json", "status", "--skip-checks"}, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var report statusReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	if report.Daemon != nil {
		t.Fatalf("expected no daemon status, got %+v", report.Daemon)
	}
	if report.Queue.Database == nil || !report.Queue.Database.IntegrityCheck {
		t.Fatalf("expected database diagnostics, got %+v", report.Queue.Database)
	}
	if len(report.Preflight) != 0 {
		t.Fatalf("expected checks skipped, got %+v", report.Preflight)
	}
}

func TestDaemonStatusNotRunning(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"daemon", "status"}, env.configPath)
	if err != nil {
		t.Fatalf("daemon status: %v", err)
	}
	requireContains(t, out, "Daemon is not running")

	out, _, err = runCLI(t, []string{"daemon", "stop"}, env.configPath)
	if err != nil {
		t.Fatalf("daemon stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}
