package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const runColumns = "run_date, status, categories_processed, total_keywords_discovered, total_keywords_scored, winner_id, error_message, started_at, completed_at, heartbeat_at"

// RunDateLayout formats DailyRun.RunDate.
const RunDateLayout = "2006-01-02"

func scanRun(scanner rowScanner) (*DailyRun, error) {
	var (
		run          DailyRun
		status       string
		winnerID     sql.NullInt64
		errorMessage sql.NullString
		startedRaw   string
		completedRaw sql.NullString
		heartbeatRaw sql.NullString
	)
	if err := scanner.Scan(
		&run.RunDate,
		&status,
		&run.CategoriesProcessed,
		&run.TotalKeywordsDiscovered,
		&run.TotalKeywordsScored,
		&winnerID,
		&errorMessage,
		&startedRaw,
		&completedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	run.ErrorMessage = errorMessage.String
	if winnerID.Valid {
		id := winnerID.Int64
		run.WinnerID = &id
	}
	if t, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = t
	}
	run.CompletedAt = parseNullTime(completedRaw)
	run.HeartbeatAt = parseNullTime(heartbeatRaw)
	return &run, nil
}

// GetDailyRun returns the run for date, or nil when none exists.
func (s *Store) GetDailyRun(ctx context.Context, date string) (*DailyRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM daily_runs WHERE run_date = ?`, date)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get daily run: %w", err)
	}
	return run, nil
}

// LatestDailyRun returns the most recent run, or nil when none exists.
func (s *Store) LatestDailyRun(ctx context.Context) (*DailyRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM daily_runs ORDER BY run_date DESC LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest daily run: %w", err)
	}
	return run, nil
}

// ListDailyRuns returns recent runs, newest first.
func (s *Store) ListDailyRuns(ctx context.Context, limit int) ([]*DailyRun, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM daily_runs ORDER BY run_date DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list daily runs: %w", err)
	}
	defer rows.Close()
	var runs []*DailyRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan daily run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CreateDailyRun inserts a running row for date. When a row already exists
// (including one inserted concurrently) it is returned unchanged with
// created=false so the caller can adopt it.
func (s *Store) CreateDailyRun(ctx context.Context, date string) (*DailyRun, bool, error) {
	now := formatTime(s.clock())
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO daily_runs (run_date, status, started_at, heartbeat_at)
         VALUES (?, ?, ?, ?) ON CONFLICT(run_date) DO NOTHING`,
		date,
		RunRunning,
		now,
		now,
	)
	if err != nil {
		return nil, false, fmt.Errorf("create daily run: %w", err)
	}
	created, err := affected(res)
	if err != nil {
		return nil, false, err
	}
	run, err := s.GetDailyRun(ctx, date)
	if err != nil {
		return nil, false, err
	}
	if run == nil {
		return nil, false, fmt.Errorf("create daily run: row for %s vanished", date)
	}
	return run, created, nil
}

// RestartDailyRun moves a failed run, or a running run whose heartbeat is older
// than staleBefore, back to running with zeroed counters. force restarts any
// non-completed run. Returns false when another orchestrator holds a live run
// or the run completed meanwhile.
func (s *Store) RestartDailyRun(ctx context.Context, date string, staleBefore time.Time, force bool) (bool, error) {
	now := formatTime(s.clock())
	condition := `(status = 'failed' OR (status = 'running' AND (heartbeat_at IS NULL OR heartbeat_at < ?)))`
	args := []any{RunRunning, now, now, date, formatTime(staleBefore)}
	if force {
		condition = `status != 'completed'`
		args = args[:4]
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE daily_runs
         SET status = ?, categories_processed = 0, total_keywords_discovered = 0,
             total_keywords_scored = 0, winner_id = NULL, error_message = NULL,
             started_at = ?, completed_at = NULL, heartbeat_at = ?
         WHERE run_date = ? AND `+condition,
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("restart daily run: %w", err)
	}
	return affected(res)
}

// UpdateDailyRunProgress records counters and refreshes the heartbeat.
func (s *Store) UpdateDailyRunProgress(ctx context.Context, date string, counters RunCounters) error {
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE daily_runs
         SET categories_processed = ?, total_keywords_discovered = ?, total_keywords_scored = ?, heartbeat_at = ?
         WHERE run_date = ? AND status = 'running'`,
		counters.CategoriesProcessed,
		counters.TotalKeywordsDiscovered,
		counters.TotalKeywordsScored,
		formatTime(s.clock()),
		date,
	); err != nil {
		return fmt.Errorf("update daily run progress: %w", err)
	}
	return nil
}

// TouchDailyRun refreshes the heartbeat of a running run.
func (s *Store) TouchDailyRun(ctx context.Context, date string) error {
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE daily_runs SET heartbeat_at = ? WHERE run_date = ? AND status = 'running'`,
		formatTime(s.clock()),
		date,
	); err != nil {
		return fmt.Errorf("touch daily run: %w", err)
	}
	return nil
}

// CompleteDailyRun records the winner and marks the run completed.
func (s *Store) CompleteDailyRun(ctx context.Context, date string, winnerID int64) (bool, error) {
	now := formatTime(s.clock())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE daily_runs SET status = ?, winner_id = ?, error_message = NULL, completed_at = ?, heartbeat_at = ?
         WHERE run_date = ? AND status = 'running'`,
		RunCompleted,
		winnerID,
		now,
		now,
		date,
	)
	if err != nil {
		return false, fmt.Errorf("complete daily run: %w", err)
	}
	return affected(res)
}

// FailDailyRun marks the run failed with reason. Counters are kept.
func (s *Store) FailDailyRun(ctx context.Context, date, reason string) (bool, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "daily run failed"
	}
	now := formatTime(s.clock())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE daily_runs SET status = ?, error_message = ?, completed_at = ?, heartbeat_at = ?
         WHERE run_date = ? AND status = 'running'`,
		RunFailed,
		reason,
		now,
		now,
		date,
	)
	if err != nil {
		return false, fmt.Errorf("fail daily run: %w", err)
	}
	return affected(res)
}
