// Package preflight provides readiness checks for the filesystem and the
// external services marketscout depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs every failed check. Failures
//     do not block startup: a missing LLM key only degrades scoring to basic.
//   - The CLI "marketscout status" command prints the same results.
//
// The Redis check only runs when a cache URL is configured.
package preflight
