package api

import (
	"encoding/json"
	"math"
	"time"

	"marketscout/internal/queue"
	"marketscout/internal/workflow"
)

// FromJob converts a queue job into its API representation.
func FromJob(job *queue.Job) Job {
	if job == nil {
		return Job{}
	}
	dto := Job{
		ID:            job.ID,
		Type:          string(job.Type),
		Status:        string(job.Status),
		Priority:      job.Priority,
		Progress:      fromProgress(job.Progress),
		ErrorMessage:  job.ErrorMessage,
		ResultSummary: job.ResultSummary,
		Attempts:      job.Attempts,
		CreatedAt:     FormatTime(job.CreatedAt),
		UpdatedAt:     FormatTime(job.UpdatedAt),
		ClaimedAt:     formatTimePtr(job.ClaimedAt),
		CompletedAt:   formatTimePtr(job.CompletedAt),
	}
	if job.Status == queue.StatusRunning {
		dto.LeaseExpiresAt = formatTimePtr(job.LeaseExpiresAt)
	}
	if job.ParamsErr == nil {
		if raw, err := json.Marshal(job.Params); err == nil {
			dto.Params = raw
		}
	}
	return dto
}

// FromJobs converts a slice of queue jobs.
func FromJobs(jobs []*queue.Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		out = append(out, FromJob(job))
	}
	return out
}

func fromProgress(p queue.Progress) JobProgress {
	out := JobProgress{
		ProcessedItems:     p.ProcessedItems,
		TotalItems:         p.TotalItems,
		KeywordsDiscovered: p.KeywordsDiscovered,
		KeywordsScored:     p.KeywordsScored,
	}
	if p.TotalItems > 0 {
		pct := float64(p.ProcessedItems) / float64(p.TotalItems) * 100
		out.Percent = math.Round(math.Min(pct, 100)*10) / 10
	}
	return out
}

// FromOpportunity converts a stored opportunity.
func FromOpportunity(opp *queue.Opportunity) Opportunity {
	if opp == nil {
		return Opportunity{}
	}
	return Opportunity{
		ID:       opp.ID,
		Keyword:  opp.Keyword,
		Category: opp.Category,
		Country:  opp.Country,
		Score:    opp.OpportunityScore,
		Dimensions: Dimensions{
			CompetitionGap:       opp.CompetitionGap,
			MarketDemand:         opp.MarketDemand,
			RevenuePotential:     opp.RevenuePotential,
			TrendMomentum:        opp.TrendMomentum,
			ExecutionFeasibility: opp.ExecutionFeasibility,
		},
		Reasoning:               opp.Reasoning,
		TopCompetitorWeaknesses: opp.TopCompetitorWeaknesses,
		SuggestedDifferentiator: opp.SuggestedDifferentiator,
		Tier:                    string(opp.Tier),
		Degraded:                opp.Degraded,
		Status:                  string(opp.Status),
		DiscoveredVia:           opp.DiscoveredVia,
		SourceJobID:             opp.SourceJobID,
		ScoredAt:                FormatTime(opp.ScoredAt),
		UpdatedAt:               FormatTime(opp.UpdatedAt),
	}
}

// FromOpportunities converts a slice of stored opportunities.
func FromOpportunities(opps []*queue.Opportunity) []Opportunity {
	out := make([]Opportunity, 0, len(opps))
	for _, opp := range opps {
		if opp == nil {
			continue
		}
		out = append(out, FromOpportunity(opp))
	}
	return out
}

// FromHistory converts score history rows.
func FromHistory(entries []queue.HistoryEntry) []ScorePoint {
	out := make([]ScorePoint, 0, len(entries))
	for _, entry := range entries {
		out = append(out, ScorePoint{
			Keyword:  entry.Keyword,
			Category: entry.Category,
			Country:  entry.Country,
			Score:    entry.OpportunityScore,
			Dimensions: Dimensions{
				CompetitionGap:       entry.Dimensions.CompetitionGap,
				MarketDemand:         entry.Dimensions.MarketDemand,
				RevenuePotential:     entry.Dimensions.RevenuePotential,
				TrendMomentum:        entry.Dimensions.TrendMomentum,
				ExecutionFeasibility: entry.Dimensions.ExecutionFeasibility,
			},
			Tier:       string(entry.Tier),
			RecordedAt: FormatTime(entry.RecordedAt),
		})
	}
	return out
}

// FromDailyRun converts a daily run and its optional winner.
func FromDailyRun(run *queue.DailyRun, winner *queue.Opportunity) DailyRun {
	if run == nil {
		return DailyRun{}
	}
	dto := DailyRun{
		RunDate:                 run.RunDate,
		Status:                  string(run.Status),
		CategoriesProcessed:     run.CategoriesProcessed,
		TotalKeywordsDiscovered: run.TotalKeywordsDiscovered,
		TotalKeywordsScored:     run.TotalKeywordsScored,
		WinnerID:                run.WinnerID,
		ErrorMessage:            run.ErrorMessage,
		StartedAt:               FormatTime(run.StartedAt),
		CompletedAt:             formatTimePtr(run.CompletedAt),
		HeartbeatAt:             formatTimePtr(run.HeartbeatAt),
	}
	if winner != nil {
		w := FromOpportunity(winner)
		dto.Winner = &w
	}
	return dto
}

// FromHealth converts queue health counters and optional diagnostics.
func FromHealth(summary queue.HealthSummary, db *queue.DatabaseHealth) QueueHealth {
	out := QueueHealth{
		Total:     summary.Total,
		Pending:   summary.Pending,
		Running:   summary.Running,
		Failed:    summary.Failed,
		Completed: summary.Completed,
		Stale:     summary.Stale,
	}
	if db != nil {
		out.Database = &DatabaseHealth{
			Path:           db.DBPath,
			Exists:         db.DatabaseExists,
			Readable:       db.DatabaseReadable,
			SchemaVersion:  db.SchemaVersion,
			MissingTables:  db.MissingTables,
			IntegrityCheck: db.IntegrityCheck,
			Error:          db.Error,
		}
	}
	return out
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	return WorkflowStatus{
		Running:    summary.Running,
		Workers:    summary.Workers,
		QueueStats: MergeQueueStats(summary.QueueStats),
		LastError:  summary.LastError,
		Health:     FromHealth(summary.Health, nil),
	}
}

// MergeQueueStats produces a string-keyed representation of queue stats.
// Every known status is present, zero when absent.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := map[string]int{
		string(queue.StatusPending):   0,
		string(queue.StatusRunning):   0,
		string(queue.StatusCompleted): 0,
		string(queue.StatusFailed):    0,
	}
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatTime(*t)
}
