// Package workflow drains the job queue.
//
// A Processor claims one job at a time, dispatches it to a discovery strategy
// (or straight to scoring for score_bulk jobs), scores each discovered keyword
// in order, and upserts every score as soon as it is produced. While a job runs
// a heartbeat loop renews its lease; a worker that dies simply stops renewing
// and the next claim reclaims the job once the lease expires.
//
// The Manager runs a fixed pool of workers that each poll the queue and call
// Processor.RunOnce. Cancelling the manager's context leaves in-flight jobs in
// the running state so the lease sweep can recover them on the next start.
package workflow
