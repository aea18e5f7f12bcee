package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const claimableClause = `(status = 'pending' OR (status = 'running' AND lease_expires_at IS NOT NULL AND lease_expires_at < ?))`

// ClaimNext atomically takes the highest-priority, oldest claimable job. A job
// is claimable when pending or when running with an expired lease. Returns nil
// when nothing is claimable.
func (s *Store) ClaimNext(ctx context.Context, lease time.Duration) (*Job, error) {
	ctx = ensureContext(ctx)
	if lease <= 0 {
		lease = DefaultLease
	}
	now := s.clock()
	nowStr := formatTime(now)
	query := `UPDATE jobs
        SET status = 'running', claimed_at = ?, lease_expires_at = ?, claim_token = ?,
            attempts = attempts + 1, updated_at = ?
        WHERE seq = (
            SELECT seq FROM jobs WHERE ` + claimableClause + `
            ORDER BY priority DESC, seq ASC LIMIT 1
        ) AND ` + claimableClause + `
        RETURNING ` + jobColumns

	var job *Job
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(
			ctx,
			query,
			nowStr,
			formatTime(now.Add(lease)),
			uuid.NewString(),
			nowStr,
			nowStr,
			nowStr,
		)
		claimed, scanErr := scanJob(row)
		if errors.Is(scanErr, sql.ErrNoRows) {
			job = nil
			return nil
		}
		if scanErr != nil {
			return scanErr
		}
		job = claimed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim next job: %w", err)
	}
	return job, nil
}

// UpdateProgress merges counters with MAX semantics and renews the lease. It
// returns false when the claim is no longer current.
func (s *Store) UpdateProgress(ctx context.Context, claim Claim, partial Progress, lease time.Duration) (bool, error) {
	if lease <= 0 {
		lease = DefaultLease
	}
	now := s.clock()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET processed_items = MAX(processed_items, ?),
             total_items = MAX(total_items, ?),
             keywords_discovered = MAX(keywords_discovered, ?),
             keywords_scored = MAX(keywords_scored, ?),
             lease_expires_at = ?, updated_at = ?
         WHERE id = ? AND claim_token = ? AND status = 'running'`,
		partial.ProcessedItems,
		partial.TotalItems,
		partial.KeywordsDiscovered,
		partial.KeywordsScored,
		formatTime(now.Add(lease)),
		formatTime(now),
		claim.JobID,
		claim.Token,
	)
	if err != nil {
		return false, fmt.Errorf("update progress: %w", err)
	}
	return affected(res)
}

// RenewLease extends the lease of a running job held by claim.
func (s *Store) RenewLease(ctx context.Context, claim Claim, lease time.Duration) (bool, error) {
	if lease <= 0 {
		lease = DefaultLease
	}
	now := s.clock()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET lease_expires_at = ?, updated_at = ?
         WHERE id = ? AND claim_token = ? AND status = 'running'`,
		formatTime(now.Add(lease)),
		formatTime(now),
		claim.JobID,
		claim.Token,
	)
	if err != nil {
		return false, fmt.Errorf("renew lease: %w", err)
	}
	return affected(res)
}

// Complete marks a claimed job completed. Already-terminal jobs and stale
// claims are left untouched and reported as not applied.
func (s *Store) Complete(ctx context.Context, claim Claim, summary string) (bool, error) {
	return s.finish(ctx, claim, StatusCompleted, "result_summary", summary)
}

// Fail marks a claimed job failed with message. Counters already recorded are kept.
func (s *Store) Fail(ctx context.Context, claim Claim, message string) (bool, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		message = "job failed"
	}
	return s.finish(ctx, claim, StatusFailed, "error_message", message)
}

func (s *Store) finish(ctx context.Context, claim Claim, status Status, column, text string) (bool, error) {
	now := formatTime(s.clock())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, `+column+` = ?, completed_at = ?, updated_at = ?, lease_expires_at = NULL
         WHERE id = ? AND claim_token = ? AND status = 'running'`,
		status,
		text,
		now,
		now,
		claim.JobID,
		claim.Token,
	)
	if err != nil {
		return false, fmt.Errorf("mark job %s: %w", status, err)
	}
	return affected(res)
}

// ReclaimStale returns running jobs whose lease expired before now to pending
// and clears their claim so late writes from the old worker are ignored.
func (s *Store) ReclaimStale(ctx context.Context, now time.Time) (int64, error) {
	nowStr := formatTime(now)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = 'pending', claim_token = NULL, lease_expires_at = NULL, updated_at = ?
         WHERE status = 'running' AND lease_expires_at IS NOT NULL AND lease_expires_at < ?`,
		nowStr,
		nowStr,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// Reset moves a failed job back to pending. Progress counters are kept.
func (s *Store) Reset(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = 'pending', error_message = NULL, completed_at = NULL,
             claim_token = NULL, lease_expires_at = NULL, updated_at = ?
         WHERE id = ? AND status = 'failed'`,
		formatTime(s.clock()),
		id,
	)
	if err != nil {
		return false, fmt.Errorf("reset job: %w", err)
	}
	return affected(res)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
