// Package api defines the transport-neutral surface exposed by marketscout.
//
// Service wraps the queue store and the daily run orchestrator and returns
// DTOs with camelCase JSON tags. The daemon serves them over HTTP and the CLI
// renders them as tables, so both stay in sync with one set of shapes.
package api
