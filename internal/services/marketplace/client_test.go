package marketplace

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"marketscout/internal/cache"
	"marketscout/internal/services"
)

const searchPayload = `{"resultCount":42,"results":[
 {"kind":"software","trackId":1,"trackName":"Budget Buddy","sellerName":"Acme","description":"Track spending.\n• Budgets\n• Reports","primaryGenreName":"Finance","price":0,"averageUserRating":4.6,"userRatingCount":120000,"fileSizeBytes":"52428800","releaseDate":"2019-01-02T08:00:00Z","currentVersionReleaseDate":"2026-09-01T08:00:00Z"},
 {"kind":"software","trackId":2,"trackName":"Pennywise","price":2.99,"averageUserRating":3.1,"userRatingCount":800,"fileSizeBytes":"1048576"}
]}`

const hintsPayload = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0"><dict>
<key>title</key><string>Suggestions</string>
<key>hints</key><array>
<dict><key>term</key><string>budget tracker</string><key>url</key><string>https://example/1</string></dict>
<dict><key>term</key><string>budget planner</string><key>priority</key><integer>0</integer></dict>
<dict><key>term</key><string>budget tracker</string></dict>
</array></dict></plist>`

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	base := server.URL
	opts = append([]Option{WithSleeper(func(time.Duration) {})}, opts...)
	return NewClient(Config{
		SearchURL:   base + "/search",
		LookupURL:   base + "/lookup",
		SuggestURL:  base + "/hints",
		ReviewsURL:  base,
		Country:     "us",
		ResultLimit: 10,
		MaxRetries:  2,
	}, opts...)
}

func TestLookupDecodesApps(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("term"); got != "budget" {
			t.Errorf("term = %q", got)
		}
		if got := r.URL.Query().Get("entity"); got != "software" {
			t.Errorf("entity = %q", got)
		}
		fmt.Fprint(w, searchPayload)
	}))

	result, err := client.Lookup(context.Background(), " budget ", "", 0)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if result.ResultCount != 42 || len(result.Apps) != 2 {
		t.Fatalf("unexpected result: count=%d apps=%d", result.ResultCount, len(result.Apps))
	}
	app := result.Apps[0]
	if app.Name != "Budget Buddy" || app.RatingCount != 120000 || app.FileSizeBytes != 52428800 {
		t.Fatalf("unexpected app: %+v", app)
	}
	if app.UpdatedAt.Year() != 2026 {
		t.Fatalf("expected update date parsed, got %s", app.UpdatedAt)
	}
	if result.Apps[1].Price != 2.99 {
		t.Fatalf("expected price 2.99, got %v", result.Apps[1].Price)
	}
}

func TestLookupRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, searchPayload)
	}))

	if _, err := client.Lookup(context.Background(), "budget", "us", 5); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestLookupGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))

	_, err := client.Lookup(context.Background(), "budget", "us", 5)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !services.IsPerItem(err) {
		t.Fatal("expected upstream failure to be per-item")
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestLookupDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	if _, err := client.Lookup(context.Background(), "budget", "us", 5); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestLookupAppNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"resultCount":0,"results":[]}`)
	}))
	_, err := client.LookupApp(context.Background(), "999", "us")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAutosuggestParsesHints(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/hints" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/xml")
		fmt.Fprint(w, hintsPayload)
	}))

	hints, err := client.Autosuggest(context.Background(), "budget", "us")
	if err != nil {
		t.Fatalf("Autosuggest: %v", err)
	}
	want := []string{"budget tracker", "budget planner"}
	if len(hints) != len(want) {
		t.Fatalf("hints = %v, want %v", hints, want)
	}
	for i := range want {
		if hints[i] != want[i] {
			t.Fatalf("hints = %v, want %v", hints, want)
		}
	}
}

func TestReviewsAcceptsSingleEntry(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/us/rss/customerreviews/id=7/sortBy=mostRecent/json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"feed":{"entry":{"author":{"name":{"label":"sam"}},"im:rating":{"label":"2"},"title":{"label":"Crashes"},"content":{"label":"Sync keeps failing"}}}}`)
	}))

	reviews, err := client.Reviews(context.Background(), "7", "")
	if err != nil {
		t.Fatalf("Reviews: %v", err)
	}
	if len(reviews) != 1 || reviews[0].Rating != 2 || reviews[0].Content != "Sync keeps failing" {
		t.Fatalf("unexpected reviews: %+v", reviews)
	}
}

func TestCacheHitSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	store := cache.NewMemory(time.Minute)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, searchPayload)
	}), WithCache(store))

	for i := 0; i < 3; i++ {
		if _, err := client.Lookup(context.Background(), "budget", "us", 5); err != nil {
			t.Fatalf("Lookup: %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one network call, got %d", calls.Load())
	}
}

func TestMalformedPayloadIsPerItem(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json`)
	}))
	_, err := client.Lookup(context.Background(), "budget", "us", 5)
	if !errors.Is(err, services.ErrExternalTool) || !services.IsPerItem(err) {
		t.Fatalf("expected per-item external error, got %v", err)
	}
}
