package textutil

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxPhraseWords bounds extracted phrases to at most three words.
const MaxPhraseWords = 3

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`a about above after again all also am an and any app apps are as at be
		because been before being best but by can could did do does doing down during each even every few for
		from get got had has have having he her here hers him his how i if in into is it its just let like
		made make many me more most much must my new no nor not now of off on once one only or other our out
		over own please really same she should so some such than that the their them then there these they
		this those through to too under until up use used using very via want was we well were what when
		where which while who why will with would you your yours ever great good love easy free best
		thanks thank lot much`) {
		stopWords[w] = struct{}{}
	}
}

// IsStopWord reports whether word is too generic to anchor a phrase.
func IsStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}

// Tokenize splits text into lower-cased words of letters and digits.
// Apostrophes inside words are dropped ("don't" becomes "dont").
func Tokenize(text string) []string {
	folded := cases.Lower(language.Und).String(text)
	folded = strings.NewReplacer("'", "", "’", "").Replace(folded)
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// PhraseCount is a phrase and how often it appeared.
type PhraseCount struct {
	Phrase string
	Count  int
}

// RankPhrases extracts 1..MaxPhraseWords word phrases from texts. Phrases may
// not start or end with a stop word, single words must be at least three
// characters, and pure numbers are skipped. Phrases are ranked by frequency,
// longer phrases first on ties, then alphabetically.
func RankPhrases(texts ...string) []PhraseCount {
	counts := make(map[string]int)
	for _, text := range texts {
		for _, sentence := range splitSentences(text) {
			words := Tokenize(sentence)
			for n := 1; n <= MaxPhraseWords; n++ {
				for i := 0; i+n <= len(words); i++ {
					gram := words[i : i+n]
					if !usablePhrase(gram) {
						continue
					}
					counts[strings.Join(gram, " ")]++
				}
			}
		}
	}
	ranked := make([]PhraseCount, 0, len(counts))
	for phrase, count := range counts {
		ranked = append(ranked, PhraseCount{Phrase: phrase, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		wi, wj := strings.Count(ranked[i].Phrase, " "), strings.Count(ranked[j].Phrase, " ")
		if wi != wj {
			return wi > wj
		}
		return ranked[i].Phrase < ranked[j].Phrase
	})
	return ranked
}

func usablePhrase(words []string) bool {
	if len(words) == 0 {
		return false
	}
	if IsStopWord(words[0]) || IsStopWord(words[len(words)-1]) {
		return false
	}
	if len(words) == 1 && len([]rune(words[0])) < 3 {
		return false
	}
	for _, w := range words {
		if isNumeric(w) {
			return false
		}
	}
	return true
}

func isNumeric(word string) bool {
	for _, r := range word {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// splitSentences keeps phrases from spanning sentence or list boundaries.
func splitSentences(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case '.', '!', '?', ';', ':', '\n', '•', '|', '(', ')', ',':
			return true
		}
		return false
	})
}
