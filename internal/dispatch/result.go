package dispatch

import (
	"context"
	"fmt"

	"github.com/roach88/geochunk/internal/dataset"
	"github.com/roach88/geochunk/internal/engine"
	"github.com/roach88/geochunk/internal/window"
)

// Result is what Invoke returns: *Materialized when the dispatcher is
// eager, *Deferred otherwise. The set is closed.
//
//	switch r := res.(type) {
//	case *dispatch.Materialized:
//	case *dispatch.Deferred:
//	}
type Result interface {
	result()
}

// Materialized is a computed result. Dataset is set when merging is on;
// otherwise Parts holds the chunk outputs in chunk order.
type Materialized struct {
	Plan    window.Plan
	Dataset *dataset.Dataset
	Parts   []*dataset.Dataset
}

func (*Materialized) result() {}

// Deferred is an unmaterialized graph. Compute runs it; every call runs
// the whole graph again.
type Deferred struct {
	handle *engine.Handle
	plan   window.Plan
	merged bool
}

func (*Deferred) result() {}

// Handle returns the engine handle for the graph's final task.
func (d *Deferred) Handle() *engine.Handle { return d.handle }

// Plan returns the chunk plan the graph was built from.
func (d *Deferred) Plan() window.Plan { return d.plan }

// Compute materializes the graph.
func (d *Deferred) Compute(ctx context.Context) (*Materialized, error) {
	v, err := d.handle.Compute(ctx)
	if err != nil {
		return nil, err
	}
	m := &Materialized{Plan: d.plan}
	switch out := v.(type) {
	case *dataset.Dataset:
		m.Dataset = out
	case []*dataset.Dataset:
		m.Parts = out
	default:
		return nil, fmt.Errorf("graph produced %T", v)
	}
	if d.merged != (m.Dataset != nil) {
		return nil, fmt.Errorf("graph produced %T for merge=%t", v, d.merged)
	}
	return m, nil
}
