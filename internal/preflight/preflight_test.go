package preflight

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"marketscout/internal/services"
	"marketscout/internal/services/llm"
	"marketscout/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckLLM_MissingKey(t *testing.T) {
	result := CheckLLM(context.Background(), "LLM", llm.Config{})
	if result.Passed || !strings.Contains(result.Detail, "API key missing") {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCheckLLM_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": `{"ok":true}`}}},
		})
	}))
	defer srv.Close()

	result := CheckLLM(context.Background(), "LLM", llm.Config{APIKey: "key", BaseURL: srv.URL, Model: "demo"})
	if !result.Passed {
		t.Fatalf("expected pass, got %s", result.Detail)
	}
}

func TestCheckMarketplace(t *testing.T) {
	market := testsupport.NewFakeMarketplace()
	result := CheckMarketplace(context.Background(), market, "us")
	if !result.Passed {
		t.Fatalf("expected pass, got %s", result.Detail)
	}

	market.LookupErrs[probeQuery] = services.Wrap(services.ErrTimeout, "marketplace", "search", "deadline", context.DeadlineExceeded)
	result = CheckMarketplace(context.Background(), market, "us")
	if result.Passed || !strings.Contains(result.Detail, "timed out") {
		t.Fatalf("expected timeout detail, got %+v", result)
	}

	if CheckMarketplace(context.Background(), nil, "us").Passed {
		t.Fatal("nil catalog must fail")
	}
}

func TestCheckMarketplaceFromConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("term") != probeQuery {
			t.Errorf("unexpected term %q", r.URL.Query().Get("term"))
		}
		_, _ = w.Write([]byte(`{"resultCount":1,"results":[{"trackId":1,"trackName":"Calculator"}]}`))
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithMarketplaceURL(srv.URL))
	result := CheckMarketplaceFromConfig(context.Background(), cfg)
	if !result.Passed {
		t.Fatalf("expected pass, got %s", result.Detail)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ReportsMissingLLMKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"resultCount":0,"results":[]}`))
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithMarketplaceURL(srv.URL))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 results without redis, got %d", len(results))
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "Scoring LLM" {
		t.Fatalf("expected only the LLM check to fail, got %+v", failed)
	}
}

func TestSummarizeError(t *testing.T) {
	if got := summarizeError("x", errors.New("boom")); got != "boom" {
		t.Fatalf("unexpected summary %q", got)
	}
}
