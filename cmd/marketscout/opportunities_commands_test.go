package main

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"marketscout/internal/queue"
	"marketscout/internal/scoring"
)

func seedOpportunities(t *testing.T, store *queue.Store) []*queue.Opportunity {
	t.Helper()
	var out []*queue.Opportunity
	for _, score := range []scoring.KeywordScore{
		{Keyword: "budget tracker", Category: "finance", Country: "us", OpportunityScore: 58, Tier: scoring.TierBasic},
		{Keyword: "family budget", Category: "finance", Country: "us", OpportunityScore: 72, Tier: scoring.TierFull},
		{Keyword: "habit tracker", Category: "health-fitness", Country: "us", OpportunityScore: 90, Tier: scoring.TierBasic},
	} {
		opp, err := store.UpsertOpportunity(context.Background(), score, queue.OpportunityMeta{DiscoveredVia: "seed"})
		if err != nil {
			t.Fatalf("UpsertOpportunity: %v", err)
		}
		out = append(out, opp)
	}
	return out
}

func TestOpportunitiesList(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"opportunities", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("opportunities list: %v", err)
	}
	requireContains(t, out, "No opportunities scored yet")

	seedOpportunities(t, env.store)

	out, _, err = runCLI(t, []string{"opps", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("opps list: %v", err)
	}
	habit := strings.Index(out, "habit tracker")
	family := strings.Index(out, "family budget")
	if habit < 0 || family < 0 || habit > family {
		t.Fatalf("expected score ordering in output:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"opportunities", "list", "--category", "finance"}, env.configPath)
	if err != nil {
		t.Fatalf("opportunities list --category: %v", err)
	}
	if strings.Contains(out, "habit tracker") {
		t.Fatalf("category filter leaked other categories:\n%s", out)
	}
	requireContains(t, out, "budget tracker")
}

func TestOpportunitiesBlueprint(t *testing.T) {
	env := setupCLITestEnv(t)
	opps := seedOpportunities(t, env.store)
	id := fmt.Sprint(opps[1].ID)

	out, _, err := runCLI(t, []string{"opportunities", "blueprint", id}, env.configPath)
	if err != nil {
		t.Fatalf("blueprint: %v", err)
	}
	requireContains(t, out, "(family budget) marked blueprint_generated")

	opp, err := env.store.GetOpportunity(context.Background(), opps[1].ID)
	if err != nil {
		t.Fatalf("GetOpportunity: %v", err)
	}
	if opp.Status != queue.OpportunityBlueprintGenerated {
		t.Fatalf("unexpected status %s", opp.Status)
	}

	if _, _, err := runCLI(t, []string{"opportunities", "blueprint", "abc"}, env.configPath); err == nil {
		t.Fatal("expected error for non-numeric id")
	}
	if _, _, err := runCLI(t, []string{"opportunities", "blueprint", "9999"}, env.configPath); err == nil {
		t.Fatal("expected error for unknown id")
	}
}

func TestOpportunitiesHistory(t *testing.T) {
	env := setupCLITestEnv(t)
	seedOpportunities(t, env.store)
	rescore := scoring.KeywordScore{Keyword: "family budget", Category: "finance", Country: "us", OpportunityScore: 77.5, Tier: scoring.TierFull}
	if _, err := env.store.UpsertOpportunity(context.Background(), rescore, queue.OpportunityMeta{}); err != nil {
		t.Fatalf("UpsertOpportunity: %v", err)
	}

	out, _, err := runCLI(t, []string{"opportunities", "history", "family budget"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "72.0")
	requireContains(t, out, "77.5")

	if _, _, err := runCLI(t, []string{"opportunities", "history", "never scored"}, env.configPath); err == nil {
		t.Fatal("expected error for unscored keyword")
	}
}
