// Package discovery finds candidate keywords worth scoring.
//
// Three primary strategies exist. ExpandSeed walks autosuggest breadth-first
// from a seed phrase up to a depth bound. FromCompetitor mines phrases from an
// app's metadata and reviews. FromCategory expands a hand-curated seed table.
// When a primary strategy produces no new keywords, catalog-search term
// extraction runs as a fallback; whether a primary that errors also falls
// back is governed by FallbackPolicy.
//
// Keywords are streamed to an EmitFunc as they are found so callers can score
// and persist incrementally. Every strategy normalizes keywords, never emits
// the same keyword twice, never emits the originating seed, and honours the
// caller's Exclude predicate and MaxKeywords cap.
package discovery
