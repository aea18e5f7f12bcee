// Package textutil normalizes keywords and extracts candidate phrases from
// free text such as app names, descriptions, and reviews.
//
// Normalization lower-cases with Unicode-aware case folding, trims
// surrounding punctuation, and collapses inner whitespace, so the same search
// phrase always maps to the same natural key.
package textutil
