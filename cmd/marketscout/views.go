package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"marketscout/internal/api"
)

func renderJobTable(out io.Writer, jobs []api.Job, colorize bool) {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			job.ID,
			job.Type,
			colorStatus(job.Status, colorize),
			strconv.Itoa(job.Priority),
			progressLabel(job.Progress),
			humanTime(job.CreatedAt),
			jobNote(job),
		})
	}
	tableSpec{
		headers:   []string{"ID", "Type", "Status", "Prio", "Progress", "Created", "Note"},
		aligns:    []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
		maxWidths: map[int]int{6: 48},
	}.render(out, rows)
}

func renderJobDetail(out io.Writer, job api.Job, colorize bool) {
	for _, line := range renderSectionHeader("Job "+job.ID, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Status", runStatusKind(job.Status), job.Status, colorize))
	field := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, label+":", value)
	}
	field("Type", job.Type)
	field("Priority", strconv.Itoa(job.Priority))
	field("Attempts", strconv.Itoa(job.Attempts))
	field("Progress", progressLabel(job.Progress))
	field("Discovered", strconv.Itoa(job.Progress.KeywordsDiscovered))
	field("Scored", strconv.Itoa(job.Progress.KeywordsScored))
	field("Params", string(job.Params))
	field("Created", humanTime(job.CreatedAt))
	field("Claimed", humanTime(job.ClaimedAt))
	field("Lease expires", humanTime(job.LeaseExpiresAt))
	field("Completed", humanTime(job.CompletedAt))
	field("Result", job.ResultSummary)
	if job.ErrorMessage != "" {
		fmt.Fprintln(out, renderStatusLine("Error", statusError, job.ErrorMessage, colorize))
	}
}

func renderOpportunityTable(out io.Writer, opps []api.Opportunity, colorize bool) {
	rows := make([][]string, 0, len(opps))
	for _, opp := range opps {
		tier := opp.Tier
		if opp.Degraded {
			tier += "*"
		}
		rows = append(rows, []string{
			strconv.FormatInt(opp.ID, 10),
			opp.Keyword,
			opp.Category,
			opp.Country,
			fmt.Sprintf("%.1f", opp.Score),
			fmt.Sprintf("%.0f", opp.Dimensions.CompetitionGap),
			fmt.Sprintf("%.0f", opp.Dimensions.MarketDemand),
			fmt.Sprintf("%.0f", opp.Dimensions.RevenuePotential),
			fmt.Sprintf("%.0f", opp.Dimensions.TrendMomentum),
			fmt.Sprintf("%.0f", opp.Dimensions.ExecutionFeasibility),
			tier,
			colorStatus(opp.Status, colorize),
		})
	}
	tableSpec{
		headers: []string{"ID", "Keyword", "Category", "Ctry", "Score", "Gap", "Demand", "Revenue", "Trend", "Exec", "Tier", "Status"},
		aligns: []columnAlignment{
			alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight,
			alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft,
		},
		maxWidths: map[int]int{1: 40},
	}.render(out, rows)
}

func renderHistoryTable(out io.Writer, history []api.ScorePoint) {
	rows := make([][]string, 0, len(history))
	for _, point := range history {
		rows = append(rows, []string{
			humanTime(point.RecordedAt),
			fmt.Sprintf("%.1f", point.Score),
			fmt.Sprintf("%.0f", point.Dimensions.CompetitionGap),
			fmt.Sprintf("%.0f", point.Dimensions.MarketDemand),
			fmt.Sprintf("%.0f", point.Dimensions.RevenuePotential),
			fmt.Sprintf("%.0f", point.Dimensions.TrendMomentum),
			fmt.Sprintf("%.0f", point.Dimensions.ExecutionFeasibility),
			point.Tier,
		})
	}
	tableSpec{
		headers: []string{"Recorded", "Score", "Gap", "Demand", "Revenue", "Trend", "Exec", "Tier"},
		aligns: []columnAlignment{
			alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft,
		},
	}.render(out, rows)
}

func renderRunTable(out io.Writer, runs []api.DailyRun, colorize bool) {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		winner := ""
		if run.WinnerID != nil {
			winner = strconv.FormatInt(*run.WinnerID, 10)
		}
		rows = append(rows, []string{
			run.RunDate,
			colorStatus(run.Status, colorize),
			strconv.Itoa(run.CategoriesProcessed),
			strconv.Itoa(run.TotalKeywordsDiscovered),
			strconv.Itoa(run.TotalKeywordsScored),
			winner,
			run.ErrorMessage,
		})
	}
	tableSpec{
		headers:   []string{"Date", "Status", "Categories", "Discovered", "Scored", "Winner", "Error"},
		aligns:    []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
		maxWidths: map[int]int{6: 48},
	}.render(out, rows)
}

func renderRunDetail(out io.Writer, run api.DailyRun, colorize bool) {
	for _, line := range renderSectionHeader("Daily run "+run.RunDate, colorize) {
		fmt.Fprintln(out, line)
	}
	message := run.Status
	if run.Reused {
		message += " (already completed)"
	}
	fmt.Fprintln(out, renderStatusLine("Status", runStatusKind(run.Status), message, colorize))
	fmt.Fprintf(out, "%s%-*s %d\n", statusIndent, statusLabelWidth, "Categories:", run.CategoriesProcessed)
	fmt.Fprintf(out, "%s%-*s %d discovered, %d scored\n", statusIndent, statusLabelWidth, "Keywords:",
		run.TotalKeywordsDiscovered, run.TotalKeywordsScored)
	if started := humanTime(run.StartedAt); started != "" {
		fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Started:", started)
	}
	if completed := humanTime(run.CompletedAt); completed != "" {
		fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Completed:", completed)
	}
	if run.ErrorMessage != "" {
		fmt.Fprintln(out, renderStatusLine("Error", statusError, run.ErrorMessage, colorize))
	}
	if w := run.Winner; w != nil {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader("Winner", colorize) {
			fmt.Fprintln(out, line)
		}
		fmt.Fprintf(out, "%s%-*s %s (%s, %s)\n", statusIndent, statusLabelWidth, "Keyword:", w.Keyword, w.Category, w.Country)
		fmt.Fprintf(out, "%s%-*s %.1f\n", statusIndent, statusLabelWidth, "Score:", w.Score)
		if w.Reasoning != "" {
			fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Reasoning:", w.Reasoning)
		}
		if w.SuggestedDifferentiator != "" {
			fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Differentiator:", w.SuggestedDifferentiator)
		}
		for _, weakness := range w.TopCompetitorWeaknesses {
			fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Weakness:", weakness)
		}
	}
}

func progressLabel(p api.JobProgress) string {
	if p.TotalItems <= 0 {
		if p.ProcessedItems > 0 {
			return strconv.Itoa(p.ProcessedItems)
		}
		return "-"
	}
	return fmt.Sprintf("%d/%d (%.0f%%)", p.ProcessedItems, p.TotalItems, p.Percent)
}

func jobNote(job api.Job) string {
	if job.ErrorMessage != "" {
		return job.ErrorMessage
	}
	return job.ResultSummary
}

func humanTime(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
