package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketscout/internal/dailyrun"
	"marketscout/internal/queue"
	"marketscout/internal/services"
	"marketscout/internal/workflow"
)

// DefaultListLimit caps list endpoints when the caller passes no limit.
const DefaultListLimit = 50

// Store abstracts the persistence calls the API needs. *queue.Store satisfies it.
type Store interface {
	Enqueue(ctx context.Context, jobType queue.JobType, params queue.JobParams, priority int) (*queue.Job, error)
	FindPendingEquivalent(ctx context.Context, jobType queue.JobType, params queue.JobParams) (*queue.Job, error)
	GetJob(ctx context.Context, id string) (*queue.Job, error)
	ListJobs(ctx context.Context, limit int, statuses ...queue.Status) ([]*queue.Job, error)
	Reset(ctx context.Context, id string) (bool, error)
	GetOpportunity(ctx context.Context, id int64) (*queue.Opportunity, error)
	ListOpportunities(ctx context.Context, filter queue.OpportunityFilter) ([]*queue.Opportunity, error)
	AdvanceOpportunityStatus(ctx context.Context, id int64, status queue.OpportunityStatus) (bool, error)
	ScoreHistory(ctx context.Context, keyword, category, country string) ([]queue.HistoryEntry, error)
	ListDailyRuns(ctx context.Context, limit int) ([]*queue.DailyRun, error)
	LatestDailyRun(ctx context.Context) (*queue.DailyRun, error)
	ClearJobs(ctx context.Context) (int64, error)
	Health(ctx context.Context) (queue.HealthSummary, error)
	CheckHealth(ctx context.Context) (queue.DatabaseHealth, error)
}

// DailyRunner triggers and reports daily runs. *dailyrun.Orchestrator satisfies it.
type DailyRunner interface {
	Trigger(ctx context.Context, opts dailyrun.Options) (*dailyrun.Outcome, error)
	Status(ctx context.Context, date string) (*dailyrun.Outcome, error)
}

// WorkflowReporter reports worker pool state. *workflow.Manager satisfies it.
type WorkflowReporter interface {
	Status(ctx context.Context) workflow.StatusSummary
}

// Service exposes marketscout operations returning API DTOs.
type Service struct {
	store    Store
	runs     DailyRunner
	workflow WorkflowReporter
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithWorkflow attaches the worker pool for status reporting.
func WithWorkflow(reporter WorkflowReporter) ServiceOption {
	return func(s *Service) { s.workflow = reporter }
}

// NewService constructs a Service. runs may be nil when daily runs are not
// available (for example a CLI without marketplace access).
func NewService(store Store, runs DailyRunner, opts ...ServiceOption) *Service {
	if store == nil {
		return nil
	}
	s := &Service{store: store, runs: runs}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnqueueJob validates params and inserts a pending job. When an equivalent
// pending job already exists it is returned with Created=false.
func (s *Service) EnqueueJob(ctx context.Context, jobType queue.JobType, params queue.JobParams, priority int) (EnqueueResult, error) {
	if err := params.Validate(jobType); err != nil {
		return EnqueueResult{}, err
	}
	existing, err := s.store.FindPendingEquivalent(ctx, jobType, params)
	if err != nil {
		return EnqueueResult{}, err
	}
	if existing != nil {
		return EnqueueResult{Job: FromJob(existing)}, nil
	}
	job, err := s.store.Enqueue(ctx, jobType, params, priority)
	if err != nil {
		return EnqueueResult{}, err
	}
	return EnqueueResult{Job: FromJob(job), Created: true}, nil
}

// GetJob fetches a job by id.
func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	job, err := s.lookupJob(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := FromJob(job)
	return &dto, nil
}

// ListJobs returns recent jobs, optionally filtered by status.
func (s *Service) ListJobs(ctx context.Context, limit int, statuses ...queue.Status) ([]Job, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	jobs, err := s.store.ListJobs(ctx, limit, statuses...)
	if err != nil {
		return nil, err
	}
	return FromJobs(jobs), nil
}

// ResetJob moves a failed job back to pending.
func (s *Service) ResetJob(ctx context.Context, id string) (*Job, error) {
	job, err := s.lookupJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != queue.StatusFailed {
		return nil, services.Wrap(services.ErrValidation, "api", "reset job",
			fmt.Sprintf("job %s is %s; only failed jobs can be reset", job.ID, job.Status), nil)
	}
	reset, err := s.store.Reset(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if !reset {
		return nil, services.Wrap(services.ErrValidation, "api", "reset job",
			fmt.Sprintf("job %s changed state before reset", job.ID), nil)
	}
	return s.GetJob(ctx, job.ID)
}

func (s *Service) lookupJob(ctx context.Context, id string) (*queue.Job, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, services.Wrap(services.ErrValidation, "api", "get job", "job id is required", nil)
	}
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "api", "get job", fmt.Sprintf("job %s not found", id), nil)
	}
	return job, nil
}

// GetDailyRunStatus returns the run for date (today in UTC when empty) with
// its winner.
func (s *Service) GetDailyRunStatus(ctx context.Context, date string) (*DailyRun, error) {
	if s.runs == nil {
		return nil, services.Wrap(services.ErrConfiguration, "api", "daily run status", "daily runs are not configured", nil)
	}
	date = strings.TrimSpace(date)
	if date != "" {
		if _, err := time.Parse(queue.RunDateLayout, date); err != nil {
			return nil, services.Wrap(services.ErrValidation, "api", "daily run status", fmt.Sprintf("invalid run date %q", date), err)
		}
	}
	outcome, err := s.runs.Status(ctx, date)
	if err != nil {
		return nil, err
	}
	if outcome == nil || outcome.Run == nil {
		label := date
		if label == "" {
			label = "today"
		}
		return nil, services.Wrap(services.ErrNotFound, "api", "daily run status", fmt.Sprintf("no daily run for %s", label), nil)
	}
	dto := FromDailyRun(outcome.Run, outcome.Winner)
	return &dto, nil
}

// ListDailyRuns returns recent runs, newest first.
func (s *Service) ListDailyRuns(ctx context.Context, limit int) ([]DailyRun, error) {
	runs, err := s.store.ListDailyRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]DailyRun, 0, len(runs))
	for _, run := range runs {
		out = append(out, FromDailyRun(run, nil))
	}
	return out, nil
}

// LatestDailyRun returns the most recent run with its winner, or nil when no
// run was ever recorded.
func (s *Service) LatestDailyRun(ctx context.Context) (*DailyRun, error) {
	run, err := s.store.LatestDailyRun(ctx)
	if err != nil || run == nil {
		return nil, err
	}
	var winner *queue.Opportunity
	if run.WinnerID != nil {
		if winner, err = s.store.GetOpportunity(ctx, *run.WinnerID); err != nil {
			return nil, err
		}
	}
	dto := FromDailyRun(run, winner)
	return &dto, nil
}

// TriggerDailyRun executes or reuses the daily run described by req. A run
// that finished as failed is returned alongside the error that failed it,
// which may be nil when nothing could be scored.
func (s *Service) TriggerDailyRun(ctx context.Context, req TriggerRequest) (*DailyRun, error) {
	if s.runs == nil {
		return nil, services.Wrap(services.ErrConfiguration, "api", "trigger daily run", "daily runs are not configured", nil)
	}
	outcome, err := s.runs.Trigger(ctx, dailyrun.Options{
		Date:                strings.TrimSpace(req.Date),
		Categories:          req.Categories,
		KeywordsPerCategory: req.KeywordsPerCategory,
		Country:             req.Country,
		Force:               req.Force,
		SkipKnown:           req.SkipKnown,
	})
	if outcome == nil || outcome.Run == nil {
		if err == nil {
			err = errors.New("daily run produced no record")
		}
		return nil, err
	}
	dto := FromDailyRun(outcome.Run, outcome.Winner)
	dto.Reused = outcome.Reused
	return &dto, err
}

// ListOpportunities returns the highest scoring opportunities, optionally for
// one category.
func (s *Service) ListOpportunities(ctx context.Context, limit int, category string) ([]Opportunity, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	opps, err := s.store.ListOpportunities(ctx, queue.OpportunityFilter{
		Category: strings.ToLower(strings.TrimSpace(category)),
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}
	return FromOpportunities(opps), nil
}

// MarkBlueprintGenerated records that the downstream blueprint exists. Calling
// it again is a no-op that returns the current opportunity.
func (s *Service) MarkBlueprintGenerated(ctx context.Context, id int64) (*Opportunity, error) {
	opp, err := s.store.GetOpportunity(ctx, id)
	if err != nil {
		return nil, err
	}
	if opp == nil {
		return nil, services.Wrap(services.ErrNotFound, "api", "mark blueprint", fmt.Sprintf("opportunity %d not found", id), nil)
	}
	if opp.Status != queue.OpportunityBlueprintGenerated {
		if _, err := s.store.AdvanceOpportunityStatus(ctx, id, queue.OpportunityBlueprintGenerated); err != nil {
			return nil, err
		}
		if opp, err = s.store.GetOpportunity(ctx, id); err != nil {
			return nil, err
		}
	}
	dto := FromOpportunity(opp)
	return &dto, nil
}

// ScoreHistory returns every recorded score for keyword, oldest first. Empty
// category and country fall back to the stored opportunity's values when the
// keyword is unambiguous.
func (s *Service) ScoreHistory(ctx context.Context, keyword, category, country string) ([]ScorePoint, error) {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	category = strings.ToLower(strings.TrimSpace(category))
	country = strings.ToLower(strings.TrimSpace(country))
	if keyword == "" {
		return nil, services.Wrap(services.ErrValidation, "api", "score history", "keyword is required", nil)
	}
	if category == "" || country == "" {
		opps, err := s.store.ListOpportunities(ctx, queue.OpportunityFilter{Category: category, Country: country})
		if err != nil {
			return nil, err
		}
		var matches []*queue.Opportunity
		for _, opp := range opps {
			if opp.Keyword == keyword {
				matches = append(matches, opp)
			}
		}
		switch len(matches) {
		case 0:
			return nil, services.Wrap(services.ErrNotFound, "api", "score history", fmt.Sprintf("keyword %q has not been scored", keyword), nil)
		case 1:
			category, country = matches[0].Category, matches[0].Country
		default:
			return nil, services.Wrap(services.ErrValidation, "api", "score history",
				fmt.Sprintf("keyword %q was scored in %d category/country pairs; pass both", keyword, len(matches)), nil)
		}
	}
	entries, err := s.store.ScoreHistory(ctx, keyword, category, country)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "api", "score history", fmt.Sprintf("no history for %q in %s/%s", keyword, category, country), nil)
	}
	return FromHistory(entries), nil
}

// ClearJobs deletes completed and failed jobs.
func (s *Service) ClearJobs(ctx context.Context) (int64, error) {
	return s.store.ClearJobs(ctx)
}

// QueueHealth returns job counts and database diagnostics.
func (s *Service) QueueHealth(ctx context.Context) (QueueHealth, error) {
	summary, err := s.store.Health(ctx)
	if err != nil {
		return QueueHealth{}, err
	}
	db, err := s.store.CheckHealth(ctx)
	if err != nil {
		return QueueHealth{}, err
	}
	return FromHealth(summary, &db), nil
}

// WorkflowStatus reports the worker pool, or nil when none is attached.
func (s *Service) WorkflowStatus(ctx context.Context) *WorkflowStatus {
	if s.workflow == nil {
		return nil
	}
	status := FromStatusSummary(s.workflow.Status(ctx))
	return &status
}
