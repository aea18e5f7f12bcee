// Package ranking orders scored keywords and picks the daily winner.
//
// The order is total: opportunity score descending, market demand descending,
// keyword ascending, then category and country ascending. Equal inputs in any
// order always produce the same ranking.
package ranking

import (
	"sort"

	"marketscout/internal/scoring"
)

// Less reports whether a ranks ahead of b.
func Less(a, b scoring.KeywordScore) bool {
	if a.OpportunityScore != b.OpportunityScore {
		return a.OpportunityScore > b.OpportunityScore
	}
	if a.MarketDemand != b.MarketDemand {
		return a.MarketDemand > b.MarketDemand
	}
	if a.Keyword != b.Keyword {
		return a.Keyword < b.Keyword
	}
	if a.Category != b.Category {
		return a.Category < b.Category
	}
	return a.Country < b.Country
}

// Rank returns a sorted copy of scores. The input is not modified.
func Rank(scores []scoring.KeywordScore) []scoring.KeywordScore {
	ranked := append([]scoring.KeywordScore(nil), scores...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return Less(ranked[i], ranked[j])
	})
	return ranked
}

// SelectWinner returns the top-ranked score. ok is false for empty input.
func SelectWinner(scores []scoring.KeywordScore) (winner scoring.KeywordScore, ok bool) {
	if len(scores) == 0 {
		return scoring.KeywordScore{}, false
	}
	winner = scores[0]
	for _, candidate := range scores[1:] {
		if Less(candidate, winner) {
			winner = candidate
		}
	}
	return winner, true
}
