package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const jobColumns = "id, type, priority, params_json, status, processed_items, total_items, keywords_discovered, keywords_scored, error_message, result_summary, attempts, claim_token, created_at, updated_at, claimed_at, completed_at, lease_expires_at"

func scanJob(scanner rowScanner) (*Job, error) {
	var (
		id             string
		jobType        string
		priority       int
		paramsJSON     string
		statusStr      string
		progress       Progress
		errorMessage   sql.NullString
		resultSummary  sql.NullString
		attempts       int
		claimToken     sql.NullString
		createdRaw     string
		updatedRaw     string
		claimedRaw     sql.NullString
		completedRaw   sql.NullString
		leaseExpiryRaw sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&jobType,
		&priority,
		&paramsJSON,
		&statusStr,
		&progress.ProcessedItems,
		&progress.TotalItems,
		&progress.KeywordsDiscovered,
		&progress.KeywordsScored,
		&errorMessage,
		&resultSummary,
		&attempts,
		&claimToken,
		&createdRaw,
		&updatedRaw,
		&claimedRaw,
		&completedRaw,
		&leaseExpiryRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:             id,
		Type:           JobType(jobType),
		Priority:       priority,
		Status:         Status(statusStr),
		Progress:       progress,
		ErrorMessage:   errorMessage.String,
		ResultSummary:  resultSummary.String,
		Attempts:       attempts,
		ClaimToken:     claimToken.String,
		ClaimedAt:      parseNullTime(claimedRaw),
		CompletedAt:    parseNullTime(completedRaw),
		LeaseExpiresAt: parseNullTime(leaseExpiryRaw),
	}
	job.Params, job.ParamsErr = decodeParams(job.Type, paramsJSON)
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

// Enqueue validates params against jobType and inserts a pending job.
func (s *Store) Enqueue(ctx context.Context, jobType JobType, params JobParams, priority int) (*Job, error) {
	if err := params.Validate(jobType); err != nil {
		return nil, err
	}
	encoded, err := params.encode()
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	now := formatTime(s.clock())
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (id, type, priority, params_json, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id,
		jobType,
		priority,
		encoded,
		StatusPending,
		now,
		now,
	); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.GetJob(ctx, id)
}

// FindPendingEquivalent returns a pending job with the same type and params, if any.
func (s *Store) FindPendingEquivalent(ctx context.Context, jobType JobType, params JobParams) (*Job, error) {
	encoded, err := params.encode()
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE type = ? AND status = ? AND params_json = ? ORDER BY seq LIMIT 1`,
		jobType,
		StatusPending,
		encoded,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find pending equivalent: %w", err)
	}
	return job, nil
}

// GetJob fetches a job by identifier; a missing job returns nil without error.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs filtered by status (all when none given), newest first.
func (s *Store) ListJobs(ctx context.Context, limit int, statuses ...Status) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY seq DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
