package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/geochunk/internal/engine"
	"github.com/roach88/geochunk/internal/ir"
	"github.com/roach88/geochunk/internal/window"
)

// timeLayout is fixed-width so recorded_at compares lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Run statuses.
const (
	StatusOK       = "ok"
	StatusFailed   = "failed"
	StatusDeferred = "deferred"
)

// Run summarizes one CLI run of a job.
type Run struct {
	GraphID           string
	Job               string
	Plan              window.Plan
	InputFingerprint  string
	OutputFingerprint string
	Status            string
	Error             string
}

// Observe records ev. Failures are logged and kept for Err; the engine is
// never blocked on a broken store beyond the write itself.
func (s *Store) Observe(ev engine.TaskEvent) {
	if err := s.WriteEvent(context.Background(), ev); err != nil {
		s.logger.Warn("trace write failed",
			"graph_id", ev.GraphID,
			"seq", ev.Seq,
			"error", err)
		s.setErr(err)
	}
}

// WriteEvent inserts a task event, creating its graph row on first sight.
// Uses ON CONFLICT DO NOTHING for idempotency - a replayed (graph_id, seq)
// pair is silently ignored.
func (s *Store) WriteEvent(ctx context.Context, ev engine.TaskEvent) error {
	deps, err := marshalDeps(ev.Deps)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write event: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := s.ensureGraph(ctx, tx, ev.GraphID, ev.Graph); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO task_events
		(graph_id, seq, kind, task_key, task_name, task_seq, deps, duration_ns, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(graph_id, seq) DO NOTHING
	`,
		ev.GraphID,
		ev.Seq,
		string(ev.Kind),
		ev.TaskKey,
		ev.TaskName,
		ev.TaskSeq,
		deps,
		ev.Duration.Nanoseconds(),
		ev.Error,
	)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write event: commit: %w", err)
	}
	return nil
}

// WriteRun records or updates the run summary for a graph.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	plan, err := json.Marshal(run.Plan)
	if err != nil {
		return fmt.Errorf("write run: marshal plan: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.ensureGraph(ctx, tx, run.GraphID, run.Job); err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(graph_id, job, plan, input_fingerprint, output_fingerprint, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(graph_id) DO UPDATE SET
			output_fingerprint = excluded.output_fingerprint,
			status = excluded.status,
			error = excluded.error
	`,
		run.GraphID,
		run.Job,
		string(plan),
		run.InputFingerprint,
		run.OutputFingerprint,
		run.Status,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run: commit: %w", err)
	}
	return nil
}

// ensureGraph inserts the graph row if it does not exist yet.
func (s *Store) ensureGraph(ctx context.Context, tx *sql.Tx, id, name string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO graphs (id, name, recorded_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, name, s.now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert graph: %w", err)
	}
	return nil
}

// marshalDeps converts dependency keys to canonical JSON TEXT.
func marshalDeps(deps []string) (string, error) {
	if len(deps) == 0 {
		return "[]", nil
	}
	data, err := ir.MarshalCanonical(ir.Strings(deps))
	if err != nil {
		return "", fmt.Errorf("marshal deps: %w", err)
	}
	return string(data), nil
}

// unmarshalDeps parses a JSON array of dependency keys.
func unmarshalDeps(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var deps []string
	if err := json.Unmarshal([]byte(data), &deps); err != nil {
		return nil, fmt.Errorf("unmarshal deps: %w", err)
	}
	return deps, nil
}
