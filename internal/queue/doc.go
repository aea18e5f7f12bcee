// Package queue persists pipeline jobs, scored opportunities, score history,
// and daily runs in SQLite.
//
// The Store manages database connections, schema initialization, stats
// queries, lease tracking, stale-job recovery, and the status transitions of
// every persisted entity. Jobs are claimed through a single conditional UPDATE
// so concurrent workers never share a job; each claim carries a token and a
// lease that progress updates and heartbeats renew. Opportunities are keyed by
// (keyword, category, country): re-scoring upserts in place, appends to the
// score history, and never regresses the opportunity status.
//
// Treat this package as the single source of truth for queue semantics; when
// you add statuses or columns, update schema.sql and bump schemaVersion.
package queue
