package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/geochunk/internal/engine"
	"github.com/roach88/geochunk/internal/ir"
	"github.com/roach88/geochunk/internal/queryir"
	"github.com/roach88/geochunk/internal/querysql"
)

// GraphSummary is one row of the graph listing.
type GraphSummary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	RecordedAt time.Time `json:"recorded_at"`
	Tasks      int       `json:"tasks"`
	Failed     int       `json:"failed"`
}

// Events returns all events for a graph.
// Results are ordered deterministically: ORDER BY seq ASC, task_key ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if no events exist for the graph.
func (s *Store) Events(ctx context.Context, graphID string) ([]engine.TaskEvent, error) {
	return s.Select(ctx, graphID, nil)
}

// Failures returns the failed events of a graph in seq order.
func (s *Store) Failures(ctx context.Context, graphID string) ([]engine.TaskEvent, error) {
	return s.Select(ctx, graphID, queryir.Equals{Field: queryir.FieldKind, Value: ir.IRString(engine.EventFailed)})
}

// Select returns the events of a graph matching filter, in seq order.
// filter may be nil.
func (s *Store) Select(ctx context.Context, graphID string, filter queryir.Predicate) ([]engine.TaskEvent, error) {
	preds := []queryir.Predicate{queryir.BoundEquals{Field: queryir.FieldGraphID, BoundVar: "graph"}}
	if filter != nil {
		preds = append(preds, filter)
	}
	sqlText, args, err := querysql.NewSQLCompiler().
		Bind("graph", graphID).
		Compile(queryir.Select{From: queryir.Events, Filter: queryir.And{Predicates: preds}})
	if err != nil {
		return nil, err
	}
	return s.queryEvents(ctx, sqlText, args...)
}

func (s *Store) queryEvents(ctx context.Context, sqlText string, args ...any) ([]engine.TaskEvent, error) {
	rows, err := s.query(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []engine.TaskEvent{}
	for rows.Next() {
		var (
			ev       engine.TaskEvent
			kind     string
			deps     string
			duration int64
		)
		if err := rows.Scan(&ev.GraphID, &ev.Graph, &ev.Seq, &kind, &ev.TaskKey, &ev.TaskName,
			&ev.TaskSeq, &deps, &duration, &ev.Error); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = engine.EventKind(kind)
		ev.Duration = time.Duration(duration)
		if ev.Deps, err = unmarshalDeps(deps); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// Graphs lists graphs first recorded at or after since (all graphs when
// since is zero), oldest first.
func (s *Store) Graphs(ctx context.Context, since time.Time) ([]GraphSummary, error) {
	var lower string
	if !since.IsZero() {
		lower = since.UTC().Format(timeLayout)
	}
	rows, err := s.query(ctx, `
		SELECT g.id, g.name, g.recorded_at,
			COUNT(CASE WHEN e.kind = 'delayed' THEN 1 END),
			COUNT(CASE WHEN e.kind = 'failed' THEN 1 END)
		FROM graphs g
		LEFT JOIN task_events e ON e.graph_id = g.id
		WHERE g.recorded_at >= ?
		GROUP BY g.id
		ORDER BY g.recorded_at ASC, g.id COLLATE BINARY ASC
	`, lower)
	if err != nil {
		return nil, fmt.Errorf("query graphs: %w", err)
	}
	defer rows.Close()

	graphs := []GraphSummary{}
	for rows.Next() {
		var (
			g        GraphSummary
			recorded string
		)
		if err := rows.Scan(&g.ID, &g.Name, &recorded, &g.Tasks, &g.Failed); err != nil {
			return nil, fmt.Errorf("scan graph: %w", err)
		}
		if g.RecordedAt, err = time.Parse(timeLayout, recorded); err != nil {
			return nil, fmt.Errorf("parse recorded_at %q: %w", recorded, err)
		}
		graphs = append(graphs, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate graphs: %w", err)
	}
	return graphs, nil
}

// Run returns the run summary for a graph. found is false when the graph
// was not recorded by a run.
func (s *Store) Run(ctx context.Context, graphID string) (run Run, found bool, err error) {
	var plan string
	err = s.db.QueryRowContext(ctx, `
		SELECT graph_id, job, plan, input_fingerprint, output_fingerprint, status, error
		FROM runs
		WHERE graph_id = ?
	`, graphID).Scan(&run.GraphID, &run.Job, &plan, &run.InputFingerprint,
		&run.OutputFingerprint, &run.Status, &run.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, fmt.Errorf("query run: %w", err)
	}
	if err := json.Unmarshal([]byte(plan), &run.Plan); err != nil {
		return Run{}, false, fmt.Errorf("unmarshal plan: %w", err)
	}
	return run, true, nil
}
