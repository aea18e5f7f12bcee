package api

import (
	"encoding/json"

	"marketscout/internal/queue"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a queued job in a transport-friendly format.
type Job struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	Status         string          `json:"status"`
	Priority       int             `json:"priority"`
	Params         json.RawMessage `json:"params,omitempty"`
	Progress       JobProgress     `json:"progress"`
	ErrorMessage   string          `json:"errorMessage,omitempty"`
	ResultSummary  string          `json:"resultSummary,omitempty"`
	Attempts       int             `json:"attempts"`
	CreatedAt      string          `json:"createdAt,omitempty"`
	UpdatedAt      string          `json:"updatedAt,omitempty"`
	ClaimedAt      string          `json:"claimedAt,omitempty"`
	CompletedAt    string          `json:"completedAt,omitempty"`
	LeaseExpiresAt string          `json:"leaseExpiresAt,omitempty"`
}

// JobProgress mirrors the per-job counters.
type JobProgress struct {
	ProcessedItems     int     `json:"processedItems"`
	TotalItems         int     `json:"totalItems"`
	KeywordsDiscovered int     `json:"keywordsDiscovered"`
	KeywordsScored     int     `json:"keywordsScored"`
	Percent            float64 `json:"percent"`
}

// EnqueueResult reports the job an enqueue request resolved to.
type EnqueueResult struct {
	Job Job `json:"job"`
	// Created is false when an equivalent pending job was returned instead.
	Created bool `json:"created"`
}

// Opportunity is a persisted keyword score.
type Opportunity struct {
	ID                      int64      `json:"id"`
	Keyword                 string     `json:"keyword"`
	Category                string     `json:"category"`
	Country                 string     `json:"country"`
	Score                   float64    `json:"opportunityScore"`
	Dimensions              Dimensions `json:"dimensions"`
	Reasoning               string     `json:"reasoning,omitempty"`
	TopCompetitorWeaknesses []string   `json:"topCompetitorWeaknesses,omitempty"`
	SuggestedDifferentiator string     `json:"suggestedDifferentiator,omitempty"`
	Tier                    string     `json:"tier"`
	Degraded                bool       `json:"degraded"`
	Status                  string     `json:"status"`
	DiscoveredVia           string     `json:"discoveredVia,omitempty"`
	SourceJobID             string     `json:"sourceJobId,omitempty"`
	ScoredAt                string     `json:"scoredAt,omitempty"`
	UpdatedAt               string     `json:"updatedAt,omitempty"`
}

// Dimensions carries the five sub-scores.
type Dimensions struct {
	CompetitionGap       float64 `json:"competitionGap"`
	MarketDemand         float64 `json:"marketDemand"`
	RevenuePotential     float64 `json:"revenuePotential"`
	TrendMomentum        float64 `json:"trendMomentum"`
	ExecutionFeasibility float64 `json:"executionFeasibility"`
}

// ScorePoint is one entry of an opportunity's score history.
type ScorePoint struct {
	Keyword    string     `json:"keyword"`
	Category   string     `json:"category"`
	Country    string     `json:"country"`
	Score      float64    `json:"opportunityScore"`
	Dimensions Dimensions `json:"dimensions"`
	Tier       string     `json:"tier"`
	RecordedAt string     `json:"recordedAt"`
}

// DailyRun describes one date's pipeline execution and its winner.
type DailyRun struct {
	RunDate                 string       `json:"runDate"`
	Status                  string       `json:"status"`
	CategoriesProcessed     int          `json:"categoriesProcessed"`
	TotalKeywordsDiscovered int          `json:"totalKeywordsDiscovered"`
	TotalKeywordsScored     int          `json:"totalKeywordsScored"`
	WinnerID                *int64       `json:"winnerId,omitempty"`
	Winner                  *Opportunity `json:"winner,omitempty"`
	ErrorMessage            string       `json:"errorMessage,omitempty"`
	StartedAt               string       `json:"startedAt,omitempty"`
	CompletedAt             string       `json:"completedAt,omitempty"`
	HeartbeatAt             string       `json:"heartbeatAt,omitempty"`
	// Reused is set on trigger responses when the date had already completed.
	Reused bool `json:"reused,omitempty"`
}

// TriggerRequest overrides the configured daily run for one trigger.
type TriggerRequest struct {
	Date                string   `json:"date,omitempty"`
	Categories          []string `json:"categories,omitempty"`
	KeywordsPerCategory int      `json:"keywordsPerCategory,omitempty"`
	Country             string   `json:"country,omitempty"`
	Force               bool     `json:"force,omitempty"`
	SkipKnown           bool     `json:"skipKnown,omitempty"`
}

// QueueHealth summarizes job counts and database diagnostics.
type QueueHealth struct {
	Total     int             `json:"total"`
	Pending   int             `json:"pending"`
	Running   int             `json:"running"`
	Failed    int             `json:"failed"`
	Completed int             `json:"completed"`
	Stale     int             `json:"stale"`
	Database  *DatabaseHealth `json:"database,omitempty"`
}

// DatabaseHealth mirrors queue.DatabaseHealth.
type DatabaseHealth struct {
	Path           string   `json:"path"`
	Exists         bool     `json:"exists"`
	Readable       bool     `json:"readable"`
	SchemaVersion  int      `json:"schemaVersion"`
	MissingTables  []string `json:"missingTables,omitempty"`
	IntegrityCheck bool     `json:"integrityCheck"`
	Error          string   `json:"error,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running    bool           `json:"running"`
	Workers    int            `json:"workers"`
	QueueStats map[string]int `json:"queueStats"`
	LastError  string         `json:"lastError,omitempty"`
	Health     QueueHealth    `json:"health"`
}

// EnqueueRequest is the body of a job enqueue call. Params uses the same
// tagged layout stored with the job.
type EnqueueRequest struct {
	Type     string          `json:"type"`
	Params   queue.JobParams `json:"params"`
	Priority int             `json:"priority,omitempty"`
}

// DaemonStatus captures daemon runtime state.
type DaemonStatus struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	QueueDBPath   string         `json:"queueDbPath"`
	LockFilePath  string         `json:"lockFilePath"`
	Workflow      WorkflowStatus `json:"workflow"`
	DailyEnabled  bool           `json:"dailyEnabled"`
	DailySchedule string         `json:"dailySchedule,omitempty"`
	NextDailyRun  string         `json:"nextDailyRun,omitempty"`
	LatestRun     *DailyRun      `json:"latestRun,omitempty"`
}

// JobListResponse wraps job listings.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// RunListResponse wraps daily run listings.
type RunListResponse struct {
	Runs []DailyRun `json:"runs"`
}

// OpportunityListResponse wraps opportunity listings.
type OpportunityListResponse struct {
	Opportunities []Opportunity `json:"opportunities"`
}

// ScoreHistoryResponse wraps a keyword's score history.
type ScoreHistoryResponse struct {
	History []ScorePoint `json:"history"`
}

// TriggerAccepted acknowledges an asynchronous daily run trigger.
type TriggerAccepted struct {
	RunDate string `json:"runDate"`
	Status  string `json:"status"`
}
