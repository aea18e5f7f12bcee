package api

import (
	"context"
	"errors"

	"marketscout/internal/queue"
	"marketscout/internal/services"
)

type ResetJobOutcome string

const (
	ResetJobUpdated   ResetJobOutcome = "reset"
	ResetJobNotFound  ResetJobOutcome = "not_found"
	ResetJobNotFailed ResetJobOutcome = "not_failed"
)

type ResetJobResult struct {
	ID          string          `json:"id"`
	Outcome     ResetJobOutcome `json:"outcome"`
	PriorStatus string          `json:"priorStatus,omitempty"`
}

type ResetJobsResult struct {
	UpdatedCount int              `json:"updatedCount"`
	Jobs         []ResetJobResult `json:"jobs"`
}

// ResetFailedJobsByID resets each failed job in ids and reports a per-id outcome.
// Missing or non-failed jobs are reported, not treated as errors.
func (s *Service) ResetFailedJobsByID(ctx context.Context, ids []string) (ResetJobsResult, error) {
	result := ResetJobsResult{Jobs: make([]ResetJobResult, 0, len(ids))}
	for _, id := range ids {
		job, err := s.store.GetJob(ctx, id)
		if err != nil {
			return ResetJobsResult{}, err
		}
		if job == nil {
			result.Jobs = append(result.Jobs, ResetJobResult{ID: id, Outcome: ResetJobNotFound})
			continue
		}
		if job.Status != queue.StatusFailed {
			result.Jobs = append(result.Jobs, ResetJobResult{ID: id, Outcome: ResetJobNotFailed, PriorStatus: string(job.Status)})
			continue
		}
		if _, err := s.ResetJob(ctx, id); err != nil {
			if errors.Is(err, services.ErrValidation) {
				result.Jobs = append(result.Jobs, ResetJobResult{ID: id, Outcome: ResetJobNotFailed})
				continue
			}
			return ResetJobsResult{}, err
		}
		result.UpdatedCount++
		result.Jobs = append(result.Jobs, ResetJobResult{ID: id, Outcome: ResetJobUpdated, PriorStatus: string(job.Status)})
	}
	return result, nil
}
