package testsupport

import (
	"context"
	"strings"
	"sync"

	"marketscout/internal/scoring"
	"marketscout/internal/services"
	"marketscout/internal/services/marketplace"
)

// FakeMarketplace is an in-memory catalog for discovery and scoring tests.
// Unknown search terms return DefaultApps.
type FakeMarketplace struct {
	mu sync.Mutex

	Suggestions  map[string][]string
	Apps         map[string][]marketplace.App
	DefaultApps  []marketplace.App
	SuggestErrs  map[string]error
	LookupErrs   map[string]error
	AppsByID     map[string]*marketplace.App
	ReviewsByID  map[string][]marketplace.Review
	LookupHook   func(query string)
	lookupCalls  map[string]int
	suggestCalls map[string]int
}

// NewFakeMarketplace returns an empty fake with two generic default apps.
func NewFakeMarketplace() *FakeMarketplace {
	return &FakeMarketplace{
		Suggestions: make(map[string][]string),
		Apps:        make(map[string][]marketplace.App),
		DefaultApps: []marketplace.App{
			{ID: 1, Name: "Generic Tracker", AverageRating: 4.2, RatingCount: 1200, Description: "Track things."},
			{ID: 2, Name: "Simple Planner", AverageRating: 3.6, RatingCount: 80, Price: 2.99, Description: "Plan things."},
		},
		SuggestErrs: make(map[string]error),
		LookupErrs:  make(map[string]error),
		AppsByID:    make(map[string]*marketplace.App),
		ReviewsByID: make(map[string][]marketplace.Review),
	}
}

func (f *FakeMarketplace) Autosuggest(ctx context.Context, term, _ string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.suggestCalls == nil {
		f.suggestCalls = make(map[string]int)
	}
	f.suggestCalls[term]++
	if err := f.SuggestErrs[term]; err != nil {
		return nil, err
	}
	return append([]string(nil), f.Suggestions[term]...), nil
}

func (f *FakeMarketplace) Lookup(ctx context.Context, query, country string, limit int) (marketplace.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return marketplace.SearchResult{}, err
	}
	f.mu.Lock()
	if f.lookupCalls == nil {
		f.lookupCalls = make(map[string]int)
	}
	f.lookupCalls[query]++
	hook := f.LookupHook
	err := f.LookupErrs[query]
	apps, ok := f.Apps[query]
	if !ok {
		apps = f.DefaultApps
	}
	apps = append([]marketplace.App(nil), apps...)
	f.mu.Unlock()

	if hook != nil {
		hook(query)
	}
	if err != nil {
		return marketplace.SearchResult{}, err
	}
	if limit > 0 && len(apps) > limit {
		apps = apps[:limit]
	}
	return marketplace.SearchResult{Query: query, Country: country, ResultCount: len(apps), Apps: apps}, nil
}

func (f *FakeMarketplace) LookupApp(_ context.Context, id, _ string) (*marketplace.App, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.AppsByID[id]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "marketplace", "lookup app", "app "+id+" not found", nil)
	}
	copy := *app
	return &copy, nil
}

func (f *FakeMarketplace) Reviews(_ context.Context, id, _ string) ([]marketplace.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]marketplace.Review(nil), f.ReviewsByID[id]...), nil
}

// LookupCalls reports how often query was searched.
func (f *FakeMarketplace) LookupCalls(query string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookupCalls[query]
}

// SuggestCalls reports how often term was expanded.
func (f *FakeMarketplace) SuggestCalls(term string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.suggestCalls[term]
}

// StaticAssessor returns fixed dimensions for every keyword, or Err when set.
// Keywords listed in Overrides get their own dimensions.
type StaticAssessor struct {
	Dimensions scoring.Dimensions
	Overrides  map[string]scoring.Dimensions
	Err        error
}

func (a StaticAssessor) ScoreQualitative(_ context.Context, keyword string, _ marketplace.SearchResult) (scoring.Assessment, error) {
	if a.Err != nil {
		return scoring.Assessment{}, a.Err
	}
	dims := a.Dimensions
	if override, ok := a.Overrides[strings.ToLower(keyword)]; ok {
		dims = override
	}
	return scoring.Assessment{
		Dimensions:     dims,
		Reasoning:      "static assessment for " + keyword,
		Differentiator: "do it simpler",
	}, nil
}
