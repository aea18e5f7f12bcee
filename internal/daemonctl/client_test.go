package daemonctl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"marketscout/internal/api"
	"marketscout/internal/testsupport"
)

func TestNewClientEmptyBind(t *testing.T) {
	client, err := NewClient("  ", "")
	if err != nil || client != nil {
		t.Fatalf("expected nil client, got %v %v", client, err)
	}
	if _, err := client.Status(context.Background()); !errors.Is(err, ErrAPIUnavailable) || !IsAPIUnavailable(err) {
		t.Fatalf("expected ErrAPIUnavailable, got %v", err)
	}
}

func TestClientStatusSendsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(api.DaemonStatus{Running: true, PID: 42})
	}))
	defer srv.Close()

	client, err := NewClient(strings.TrimPrefix(srv.URL, "http://"), "tok")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	status, err := client.Status(context.Background())
	if err != nil || !status.Running || status.PID != 42 {
		t.Fatalf("unexpected status %+v %v", status, err)
	}
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"no daily run for today"}`))
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, "")
	_, err := client.RunStatus(context.Background(), "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound || apiErr.Message != "no daily run for today" {
		t.Fatalf("expected APIError 404, got %v", err)
	}
	if IsAPIUnavailable(err) {
		t.Fatal("api errors are not unavailability")
	}
}

func TestTriggerRunDistinguishesReuse(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req api.TriggerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(api.TriggerAccepted{RunDate: req.Date, Status: "accepted"})
			return
		}
		_ = json.NewEncoder(w).Encode(api.DailyRun{RunDate: req.Date, Status: "completed", Reused: true})
	}))
	defer srv.Close()
	client, _ := NewClient(srv.URL, "")

	ack, reused, err := client.TriggerRun(context.Background(), api.TriggerRequest{Date: "2026-10-18"})
	if err != nil || ack == nil || reused != nil || ack.RunDate != "2026-10-18" {
		t.Fatalf("expected accepted trigger, got %+v %+v %v", ack, reused, err)
	}
	ack, reused, err = client.TriggerRun(context.Background(), api.TriggerRequest{Date: "2026-10-18"})
	if err != nil || ack != nil || reused == nil || reused.Status != "completed" {
		t.Fatalf("expected reused run, got %+v %+v %v", ack, reused, err)
	}
}

func TestWaitForRunPollsUntilFinished(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"no daily run for 2026-10-18"}`))
		case 2:
			_ = json.NewEncoder(w).Encode(api.DailyRun{RunDate: "2026-10-18", Status: "running"})
		default:
			_ = json.NewEncoder(w).Encode(api.DailyRun{RunDate: "2026-10-18", Status: "failed", ErrorMessage: "no keywords scored"})
		}
	}))
	defer srv.Close()
	client, _ := NewClient(srv.URL, "")

	run, err := client.WaitForRun(context.Background(), "2026-10-18", 5*time.Millisecond)
	if err != nil || run.Status != "failed" {
		t.Fatalf("unexpected run %+v %v", run, err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 polls, got %d", calls.Load())
	}
}

func TestStopWithoutPIDFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := Stop(cfg, time.Second); !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}
