// Package services defines shared utilities consumed by the pipeline workers and
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that let the processor
//     decide whether a failure skips one keyword or fails the whole job.
//
// Use these helpers when wiring new adapters or discovery strategies so
// operational behaviour (error handling, observability, retries) stays uniform
// across the pipeline.
package services
