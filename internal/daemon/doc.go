// Package daemon coordinates the long-running marketscout process.
//
// It wires the queue store, the workflow worker pool, the cron-scheduled daily
// run and the HTTP API into a single lifecycle with flock-based locking to
// prevent multiple instances sharing one data directory.
//
// Keep orchestration logic here: job execution lives in workflow and the
// daily pipeline in dailyrun, while the daemon focuses on startup, shutdown,
// and high level coordination.
package daemon
