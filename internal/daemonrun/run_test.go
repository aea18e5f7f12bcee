package daemonrun

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"marketscout/internal/testsupport"
)

func TestBuildWiresPipeline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	components, err := Build(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = components.Close() })

	if components.Store == nil || components.Workflow == nil || components.Orchestrator == nil {
		t.Fatalf("missing components %+v", components)
	}
	if components.LLMConfigured {
		t.Fatal("expected LLM unconfigured without an api key")
	}
	if components.Store.Path() != cfg.DatabasePath() {
		t.Fatalf("unexpected store path %q", components.Store.Path())
	}
}

func TestBuildWithLLMKey(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithLLM("http://127.0.0.1:1", "key"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	components, err := Build(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = components.Close() })
	if !components.LLMConfigured {
		t.Fatal("expected LLM configured")
	}
}

func TestPIDFileRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if got := ReadPID(cfg); got != 0 {
		t.Fatalf("expected 0 without pid file, got %d", got)
	}
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := writePIDFile(filepath.Join(cfg.Paths.LogDir, PIDFileName)); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	if got := ReadPID(cfg); got != os.Getpid() {
		t.Fatalf("expected pid %d, got %d", os.Getpid(), got)
	}
}

func TestEnsureCurrentLogPointer(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "marketscoutd-1.log")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	for range 2 {
		if err := ensureCurrentLogPointer(dir, target); err != nil {
			t.Fatalf("ensureCurrentLogPointer: %v", err)
		}
	}
	data, err := os.ReadFile(filepath.Join(dir, "marketscout.log"))
	if err != nil || string(data) != "x" {
		t.Fatalf("pointer not readable: %q %v", data, err)
	}
}
