// Package store provides SQLite-backed storage for dispatch traces.
//
// The store is an append-only log with:
//   - Graphs: one row per task graph built by a dispatcher
//   - Task events: lifecycle transitions reported by the engine
//   - Runs: the job, chunk plan and dataset fingerprints of a CLI run
//
// # Ordering
//
// Events are ordered by the engine's logical seq, never by wall time.
// Queries use ORDER BY seq ASC, task_key COLLATE BINARY ASC so repeated
// reads return identical results. recorded_at on graphs is informational
// and only used for --since filtering.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// *Store implements engine.Observer so it can be attached to an engine
// with engine.WithObserver.
package store
