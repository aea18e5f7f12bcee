package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"marketscout/internal/services/marketplace"
)

const (
	neutralTrend        = 50
	maxWeaknesses       = 3
	staleUpdateAge      = 18 * 30 * 24 * time.Hour
	ratingCountCeiling  = 6 // log10 of a review count treated as saturated
	demandRatingCeiling = 7
)

var monetizationMarkers = []string{
	"subscription",
	"subscribe",
	"in-app purchase",
	"in-app purchases",
	"premium",
	"pro version",
	"unlock",
	"per month",
	"/month",
	"per year",
	"free trial",
}

// Heuristics computes catalog-only dimensions for a snapshot.
func Heuristics(snapshot marketplace.SearchResult) Dimensions {
	return Dimensions{
		CompetitionGap:       competitionGap(snapshot.Apps),
		MarketDemand:         marketDemand(snapshot),
		RevenuePotential:     revenuePotential(snapshot.Apps),
		TrendMomentum:        neutralTrend,
		ExecutionFeasibility: executionFeasibility(snapshot.Apps),
	}.Clamp()
}

// competitionGap is the inverse of incumbent strength, where strength is the
// normalized rating times log review density.
func competitionGap(apps []marketplace.App) float64 {
	if len(apps) == 0 {
		return 95
	}
	var strength float64
	for _, app := range apps {
		rating := math.Max(0, math.Min(5, app.AverageRating)) / 5
		density := math.Min(1, math.Log10(1+float64(max(app.RatingCount, 0)))/ratingCountCeiling)
		strength += rating * density
	}
	return 100 * (1 - strength/float64(len(apps)))
}

// marketDemand blends catalog coverage with total engagement.
func marketDemand(snapshot marketplace.SearchResult) float64 {
	if len(snapshot.Apps) == 0 {
		return 5
	}
	coverage := math.Min(1, float64(snapshot.ResultCount)/10)
	var ratings int
	for _, app := range snapshot.Apps {
		ratings += max(app.RatingCount, 0)
	}
	engagement := math.Min(1, math.Log10(1+float64(ratings))/demandRatingCeiling)
	return 100 * (0.35*coverage + 0.65*engagement)
}

// revenuePotential rewards markets where incumbents charge upfront or
// advertise subscriptions and in-app purchases.
func revenuePotential(apps []marketplace.App) float64 {
	if len(apps) == 0 {
		return 40
	}
	var paid, monetized int
	for _, app := range apps {
		isPaid := app.Price > 0
		if isPaid {
			paid++
		}
		if isPaid || mentionsMonetization(app.Description) {
			monetized++
		}
	}
	n := float64(len(apps))
	return 15 + 85*(0.35*float64(paid)/n+0.65*float64(monetized)/n)
}

func mentionsMonetization(description string) bool {
	lower := strings.ToLower(description)
	for _, marker := range monetizationMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// executionFeasibility is the inverse of incumbent feature density measured
// by description length, bullet count, and binary size.
func executionFeasibility(apps []marketplace.App) float64 {
	if len(apps) == 0 {
		return 60
	}
	var density float64
	for _, app := range apps {
		desc := math.Min(1, float64(len(app.Description))/4000)
		bullets := math.Min(1, float64(countBullets(app.Description))/25)
		size := math.Min(1, float64(max(app.FileSizeBytes, 0))/(500<<20))
		density += 0.4*desc + 0.3*bullets + 0.3*size
	}
	return 100 * (1 - density/float64(len(apps)))
}

func countBullets(description string) int {
	count := 0
	for _, line := range strings.Split(description, "\n") {
		line = strings.TrimSpace(line)
		for _, marker := range []string{"•", "- ", "* ", "✓", "✔", "★"} {
			if strings.HasPrefix(line, marker) {
				count++
				break
			}
		}
	}
	return count
}

// weaknesses lists the most exploitable incumbents: poorly rated apps first,
// then apps that have not shipped an update in a long time.
func weaknesses(apps []marketplace.App, now time.Time) []string {
	type finding struct {
		text   string
		weight float64
	}
	var findings []finding
	for _, app := range apps {
		if app.Name == "" {
			continue
		}
		if app.RatingCount > 0 && app.AverageRating > 0 && app.AverageRating < 4 {
			findings = append(findings, finding{
				text:   fmt.Sprintf("%s is rated %.1f from %d ratings", app.Name, app.AverageRating, app.RatingCount),
				weight: 10 - app.AverageRating,
			})
			continue
		}
		if !app.UpdatedAt.IsZero() && now.Sub(app.UpdatedAt) > staleUpdateAge {
			findings = append(findings, finding{
				text:   fmt.Sprintf("%s has not been updated since %s", app.Name, app.UpdatedAt.Format("2006-01")),
				weight: 5,
			})
		}
	}
	sort.SliceStable(findings, func(i, j int) bool { return findings[i].weight > findings[j].weight })
	out := make([]string, 0, min(len(findings), maxWeaknesses))
	for i := 0; i < len(findings) && i < maxWeaknesses; i++ {
		out = append(out, findings[i].text)
	}
	return out
}

func basicReasoning(snapshot marketplace.SearchResult) string {
	if len(snapshot.Apps) == 0 {
		return "No catalog results: demand is unproven but there is no incumbent."
	}
	var rating float64
	var ratings int
	var paid int
	for _, app := range snapshot.Apps {
		rating += app.AverageRating
		ratings += app.RatingCount
		if app.Price > 0 || mentionsMonetization(app.Description) {
			paid++
		}
	}
	n := len(snapshot.Apps)
	return fmt.Sprintf(
		"%d catalog results; top %d average %.1f stars over %d ratings; %d of %d monetize.",
		snapshot.ResultCount, n, rating/float64(n), ratings, paid, n,
	)
}
