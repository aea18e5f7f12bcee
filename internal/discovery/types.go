package discovery

import (
	"context"

	"marketscout/internal/services/marketplace"
)

// Via records which strategy produced a keyword.
type Via string

const (
	ViaAutosuggest   Via = "autosuggest"
	ViaCompetitor    Via = "competitor"
	ViaCategoryCrawl Via = "category_crawl"
	ViaSeed          Via = "seed"
	ViaCatalogSearch Via = "catalog_search"
)

// Keyword is a discovered, normalized keyword with its provenance. Exactly one
// of SourceSeed, SourceAppID, and SourceCategory is set.
type Keyword struct {
	Keyword        string `json:"keyword"`
	Via            Via    `json:"via"`
	SourceSeed     string `json:"source_seed,omitempty"`
	SourceAppID    string `json:"source_app_id,omitempty"`
	SourceCategory string `json:"source_category,omitempty"`
}

// EmitFunc receives each discovered keyword. Returning an error stops discovery.
type EmitFunc func(Keyword) error

// FallbackPolicy decides when catalog-search extraction replaces a primary strategy.
type FallbackPolicy int

const (
	// FallbackOnEmptyOrError falls back when the primary yields nothing new or fails.
	FallbackOnEmptyOrError FallbackPolicy = iota
	// FallbackOnEmpty falls back only when the primary succeeds with nothing new.
	FallbackOnEmpty
)

// Request bounds one discovery call. Zero values take the engine defaults.
type Request struct {
	Country     string
	Depth       int
	MaxKeywords int
	// Exclude reports keywords that are already known; they are skipped and
	// count as "not new" for the fallback decision.
	Exclude func(keyword string) bool
}

// Result summarizes a discovery call.
type Result struct {
	Emitted  int
	Excluded int
	FellBack bool
	// PrimaryErr is the primary strategy's error when the fallback replaced it.
	PrimaryErr error
}

// Competitor identifies an app to mine. Text fields left empty are fetched
// from the marketplace when AppID is set.
type Competitor struct {
	AppID       string
	Name        string
	Subtitle    string
	Description string
	Reviews     []string
}

// Marketplace is the subset of the catalog adapter discovery needs.
type Marketplace interface {
	Autosuggest(ctx context.Context, term, country string) ([]string, error)
	Lookup(ctx context.Context, query, country string, limit int) (marketplace.SearchResult, error)
	LookupApp(ctx context.Context, id, country string) (*marketplace.App, error)
	Reviews(ctx context.Context, id, country string) ([]marketplace.Review, error)
}
