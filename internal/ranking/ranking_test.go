package ranking_test

import (
	"math/rand"
	"testing"

	"marketscout/internal/ranking"
	"marketscout/internal/scoring"
)

func score(keyword string, total, demand float64) scoring.KeywordScore {
	return scoring.KeywordScore{
		Keyword:          keyword,
		Category:         "finance",
		Country:          "us",
		Dimensions:       scoring.Dimensions{MarketDemand: demand},
		OpportunityScore: total,
	}
}

func TestRankAndSelectWinner(t *testing.T) {
	scores := []scoring.KeywordScore{score("expense tracker", 58, 70), score("budget tracker pro", 72, 40)}

	ranked := ranking.Rank(scores)
	if ranked[0].Keyword != "budget tracker pro" || ranked[1].Keyword != "expense tracker" {
		t.Fatalf("unexpected order: %s, %s", ranked[0].Keyword, ranked[1].Keyword)
	}
	if scores[0].Keyword != "expense tracker" {
		t.Fatal("Rank must not reorder its input")
	}
	winner, ok := ranking.SelectWinner(scores)
	if !ok || winner.Keyword != "budget tracker pro" {
		t.Fatalf("expected budget tracker pro to win, got %q (ok=%v)", winner.Keyword, ok)
	}
}

func TestSelectWinnerEmpty(t *testing.T) {
	if _, ok := ranking.SelectWinner(nil); ok {
		t.Fatal("expected no winner for empty input")
	}
	if got := ranking.Rank(nil); len(got) != 0 {
		t.Fatalf("expected empty ranking, got %v", got)
	}
}

func TestTieBreakers(t *testing.T) {
	tests := []struct {
		name string
		a, b scoring.KeywordScore
	}{
		{"higher demand wins", score("zeta", 60, 80), score("alpha", 60, 50)},
		{"keyword ascending", score("alpha", 60, 50), score("beta", 60, 50)},
		{"category ascending", func() scoring.KeywordScore {
			s := score("alpha", 60, 50)
			s.Category = "education"
			return s
		}(), score("alpha", 60, 50)},
		{"country ascending", func() scoring.KeywordScore {
			s := score("alpha", 60, 50)
			s.Country = "gb"
			return s
		}(), score("alpha", 60, 50)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !ranking.Less(tt.a, tt.b) || ranking.Less(tt.b, tt.a) {
				t.Fatalf("expected %+v ahead of %+v", tt.a, tt.b)
			}
			winner, _ := ranking.SelectWinner([]scoring.KeywordScore{tt.b, tt.a})
			if winner.Keyword != tt.a.Keyword || winner.Category != tt.a.Category || winner.Country != tt.a.Country {
				t.Fatalf("winner mismatch: %+v", winner)
			}
		})
	}
}

func TestRankIsDeterministic(t *testing.T) {
	base := []scoring.KeywordScore{
		score("a", 70, 10), score("b", 70, 10), score("c", 70, 20),
		score("d", 55, 90), score("e", 90, 5), score("f", 55, 90),
	}
	want := ranking.Rank(base)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		shuffled := append([]scoring.KeywordScore(nil), base...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got := ranking.Rank(shuffled)
		for k := range want {
			if got[k].Keyword != want[k].Keyword {
				t.Fatalf("iteration %d: position %d got %q want %q", i, k, got[k].Keyword, want[k].Keyword)
			}
		}
	}
	if want[0].Keyword != "e" || want[1].Keyword != "c" {
		t.Fatalf("unexpected head of ranking: %q, %q", want[0].Keyword, want[1].Keyword)
	}
}
