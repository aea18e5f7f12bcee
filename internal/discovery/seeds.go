package discovery

import (
	"sort"
	"strings"
)

// curatedSeeds are hand-picked starting phrases per category.
var curatedSeeds = map[string][]string{
	"productivity":   {"todo list", "habit tracker", "focus timer", "note taking", "calendar planner"},
	"finance":        {"budget tracker", "expense tracker", "bill reminder", "savings goal", "invoice maker"},
	"health-fitness": {"workout planner", "calorie counter", "water reminder", "step counter", "sleep tracker"},
	"education":      {"flashcards", "language learning", "math practice", "study planner", "typing tutor"},
	"lifestyle":      {"journal", "gratitude journal", "plant care", "wedding planner", "mood tracker"},
	"utilities":      {"qr scanner", "pdf scanner", "unit converter", "file manager", "password manager"},
	"photo-video":    {"photo editor", "video editor", "collage maker", "background remover", "slideshow maker"},
	"travel":         {"packing list", "trip planner", "currency converter", "travel journal", "flight tracker"},
	"food-drink":     {"meal planner", "recipe organizer", "grocery list", "intermittent fasting", "coffee recipes"},
	"music":          {"guitar tuner", "metronome", "drum machine", "sheet music", "music practice"},
}

// CategorySeeds returns the curated seeds for category.
func CategorySeeds(category string) ([]string, bool) {
	seeds, ok := curatedSeeds[strings.ToLower(strings.TrimSpace(category))]
	if !ok {
		return nil, false
	}
	return append([]string(nil), seeds...), true
}

// Categories lists every category with a curated seed table.
func Categories() []string {
	out := make([]string, 0, len(curatedSeeds))
	for category := range curatedSeeds {
		out = append(out, category)
	}
	sort.Strings(out)
	return out
}
