// Package scoring turns a keyword into a KeywordScore across five weighted
// dimensions.
//
// The basic tier derives every dimension from a catalog snapshot (the top
// results for the keyword). The full tier additionally asks an Assessor for a
// qualitative read and blends its dimensions 50/50 with the heuristics. When
// the assessor is missing or fails, the score degrades to basic and the
// reasoning says so; the full tier never fails because of the assessor.
//
// All dimensions and the aggregate are clamped to [0,100].
package scoring
