package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"marketscout/internal/scoring"
	"marketscout/internal/services"
)

// JobType selects the discovery strategy a job runs.
type JobType string

const (
	JobDiscoverSeed       JobType = "discover_seed"
	JobDiscoverCompetitor JobType = "discover_competitor"
	JobDiscoverCategory   JobType = "discover_category"
	JobScoreBulk          JobType = "score_bulk"
)

// JobTypes lists every supported job type in display order.
var JobTypes = []JobType{JobDiscoverSeed, JobDiscoverCompetitor, JobDiscoverCategory, JobScoreBulk}

// ParseJobType validates a user-supplied job type.
func ParseJobType(value string) (JobType, error) {
	candidate := JobType(strings.ToLower(strings.TrimSpace(value)))
	for _, t := range JobTypes {
		if t == candidate {
			return t, nil
		}
	}
	return "", services.Wrap(services.ErrConfiguration, "queue", "parse job type", fmt.Sprintf("unknown job type %q", value), nil)
}

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether no further transition applies without an administrative reset.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ParseStatus validates a user-supplied job status.
func ParseStatus(value string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case StatusPending:
		return StatusPending, true
	case StatusRunning:
		return StatusRunning, true
	case StatusCompleted:
		return StatusCompleted, true
	case StatusFailed:
		return StatusFailed, true
	default:
		return "", false
	}
}

// Progress carries monotonic per-job counters.
type Progress struct {
	ProcessedItems     int `json:"processed_items"`
	TotalItems         int `json:"total_items"`
	KeywordsDiscovered int `json:"keywords_discovered"`
	KeywordsScored     int `json:"keywords_scored"`
}

// Scope identifies where scored keywords are filed and how deeply they are scored.
type Scope struct {
	Country  string       `json:"country,omitempty"`
	Category string       `json:"category,omitempty"`
	Tier     scoring.Tier `json:"tier,omitempty"`
}

// SeedParams configures autosuggest expansion of one seed phrase.
type SeedParams struct {
	Scope
	Seed  string `json:"seed"`
	Depth int    `json:"depth,omitempty"`
}

// CompetitorParams configures phrase extraction from one competitor app. The
// text fields are optional; missing metadata and reviews are fetched from the
// marketplace.
type CompetitorParams struct {
	Scope
	AppID       string   `json:"app_id"`
	Name        string   `json:"name,omitempty"`
	Subtitle    string   `json:"subtitle,omitempty"`
	Description string   `json:"description,omitempty"`
	Reviews     []string `json:"reviews,omitempty"`
}

// CategoryParams configures a crawl of a category's curated seed table.
type CategoryParams struct {
	Scope
	Depth int `json:"depth,omitempty"`
}

// ScoreBulkParams scores a supplied keyword list without discovery.
type ScoreBulkParams struct {
	Scope
	Keywords []string `json:"keywords"`
}

// JobParams is a tagged union keyed by JobType: exactly one variant is set and
// it must match the job's type.
type JobParams struct {
	Seed       *SeedParams       `json:"seed,omitempty"`
	Competitor *CompetitorParams `json:"competitor,omitempty"`
	Category   *CategoryParams   `json:"category,omitempty"`
	ScoreBulk  *ScoreBulkParams  `json:"score_bulk,omitempty"`
}

// Validate ensures exactly the variant matching jobType is populated with its
// required fields.
func (p JobParams) Validate(jobType JobType) error {
	set := 0
	for _, populated := range []bool{p.Seed != nil, p.Competitor != nil, p.Category != nil, p.ScoreBulk != nil} {
		if populated {
			set++
		}
	}
	if set != 1 {
		return paramsError("expected exactly one params variant, got %d", set)
	}
	switch jobType {
	case JobDiscoverSeed:
		if p.Seed == nil {
			return paramsError("%s requires seed params", jobType)
		}
		if strings.TrimSpace(p.Seed.Seed) == "" {
			return paramsError("seed must not be empty")
		}
		if p.Seed.Depth < 0 {
			return paramsError("depth must not be negative")
		}
	case JobDiscoverCompetitor:
		if p.Competitor == nil {
			return paramsError("%s requires competitor params", jobType)
		}
		if strings.TrimSpace(p.Competitor.AppID) == "" {
			return paramsError("app_id must not be empty")
		}
	case JobDiscoverCategory:
		if p.Category == nil {
			return paramsError("%s requires category params", jobType)
		}
		if strings.TrimSpace(p.Category.Category) == "" {
			return paramsError("category must not be empty")
		}
		if p.Category.Depth < 0 {
			return paramsError("depth must not be negative")
		}
	case JobScoreBulk:
		if p.ScoreBulk == nil {
			return paramsError("%s requires score_bulk params", jobType)
		}
		if len(p.ScoreBulk.Keywords) == 0 {
			return paramsError("keywords must not be empty")
		}
	default:
		return paramsError("unknown job type %q", jobType)
	}
	if tier := p.Scope().Tier; tier != "" && tier != scoring.TierBasic && tier != scoring.TierFull {
		return paramsError("tier must be basic or full, got %q", tier)
	}
	return nil
}

// Scope returns the scope of whichever variant is populated.
func (p JobParams) Scope() Scope {
	switch {
	case p.Seed != nil:
		return p.Seed.Scope
	case p.Competitor != nil:
		return p.Competitor.Scope
	case p.Category != nil:
		return p.Category.Scope
	case p.ScoreBulk != nil:
		return p.ScoreBulk.Scope
	default:
		return Scope{}
	}
}

func (p JobParams) encode() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}
	return string(data), nil
}

func decodeParams(jobType JobType, raw string) (JobParams, error) {
	var params JobParams
	if strings.TrimSpace(raw) == "" {
		return params, paramsError("params missing")
	}
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return params, services.Wrap(services.ErrConfiguration, "queue", "decode params", "malformed params", err)
	}
	if err := params.Validate(jobType); err != nil {
		return params, err
	}
	return params, nil
}

func paramsError(format string, args ...any) error {
	return services.Wrap(services.ErrConfiguration, "queue", "params", fmt.Sprintf(format, args...), nil)
}

// Job represents a queued unit of discovery or scoring work.
type Job struct {
	ID             string
	Type           JobType
	Priority       int
	Params         JobParams
	ParamsErr      error
	Status         Status
	Progress       Progress
	ErrorMessage   string
	ResultSummary  string
	Attempts       int
	ClaimToken     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ClaimedAt      *time.Time
	CompletedAt    *time.Time
	LeaseExpiresAt *time.Time
}

// Claim identifies the worker's ownership of a running job. Terminal and
// progress writes are ignored once the token no longer matches.
type Claim struct {
	JobID string
	Token string
}

// Claim returns the current claim on the job.
func (j *Job) Claim() Claim {
	if j == nil {
		return Claim{}
	}
	return Claim{JobID: j.ID, Token: j.ClaimToken}
}

// OpportunityStatus tracks how far an opportunity advanced downstream.
type OpportunityStatus string

const (
	OpportunityScored             OpportunityStatus = "scored"
	OpportunitySelected           OpportunityStatus = "selected"
	OpportunityBlueprintGenerated OpportunityStatus = "blueprint_generated"
)

// Rank orders opportunity statuses; transitions only move to a higher rank.
func (s OpportunityStatus) Rank() int {
	switch s {
	case OpportunityScored:
		return 1
	case OpportunitySelected:
		return 2
	case OpportunityBlueprintGenerated:
		return 3
	default:
		return 0
	}
}

// Opportunity is a persisted scored keyword.
type Opportunity struct {
	ID int64
	scoring.KeywordScore
	Status        OpportunityStatus
	DiscoveredVia string
	SourceJobID   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OpportunityMeta records provenance for an upserted score.
type OpportunityMeta struct {
	DiscoveredVia string
	SourceJobID   string
}

// OpportunityFilter narrows ListOpportunities.
type OpportunityFilter struct {
	Category string
	Country  string
	Status   OpportunityStatus
	Limit    int
}

// HistoryEntry is one row of the append-only score history.
type HistoryEntry struct {
	Keyword          string
	Category         string
	Country          string
	OpportunityScore float64
	Dimensions       scoring.Dimensions
	Tier             scoring.Tier
	RecordedAt       time.Time
}

// RunStatus represents the lifecycle of a daily run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// DailyRun is the single per-date execution of the full pipeline.
type DailyRun struct {
	RunDate                 string
	Status                  RunStatus
	CategoriesProcessed     int
	TotalKeywordsDiscovered int
	TotalKeywordsScored     int
	WinnerID                *int64
	ErrorMessage            string
	StartedAt               time.Time
	CompletedAt             *time.Time
	HeartbeatAt             *time.Time
}

// RunCounters carries daily run progress.
type RunCounters struct {
	CategoriesProcessed     int
	TotalKeywordsDiscovered int
	TotalKeywordsScored     int
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TablesPresent    []string
	MissingTables    []string
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}

// HealthSummary describes aggregated job counts per lifecycle state.
type HealthSummary struct {
	Total     int
	Pending   int
	Running   int
	Failed    int
	Completed int
	Stale     int
}
