// Package dailyrun runs the once-per-day discovery, scoring, and winner
// selection pass.
//
// Each calendar date has at most one daily_runs row. Triggering a date that
// already completed returns the recorded run and winner without doing any
// work. A failed run, or a running one whose heartbeat went stale, is reset
// and executed again; a run held by a live orchestrator is rejected with
// ErrRunInProgress. A trigger whose row was taken over before it could record
// the winner returns ErrRunSuperseded.
package dailyrun
