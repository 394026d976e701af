// Package dispatch turns a dataset transformation into a chunked task
// graph: one task per window chunk, an optional merge task over all chunk
// outputs in chunk order, and either immediate materialization or a
// deferred handle.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"

	"github.com/roach88/geochunk/internal/chunkerr"
	"github.com/roach88/geochunk/internal/dataset"
	"github.com/roach88/geochunk/internal/engine"
	"github.com/roach88/geochunk/internal/window"
)

// TransformFunc processes one chunk. It must return a dataset with the
// chunk's schema and extent; anything else fails the merge.
type TransformFunc func(ctx context.Context, ds *dataset.Dataset, args ...any) (*dataset.Dataset, error)

// Dispatcher is a reusable, immutable binding of a transformation to its
// chunking parameters. Each Invoke builds an independent graph.
type Dispatcher struct {
	name   string
	fn     TransformFunc
	dim    string
	chunks int
	buffer int
	merge  bool
	eager  bool
	engine engine.Engine
	numCPU func() int
	logger *slog.Logger

	// auto is set until WithChunks fixes the count.
	auto bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithName sets the graph name used in task keys and traces.
// Default: "dispatch".
func WithName(name string) Option {
	return func(d *Dispatcher) { d.name = name }
}

// WithDimension sets the chunked dimension. Default: the first dimension of the
// dataset passed to Invoke.
func WithDimension(dim string) Option {
	return func(d *Dispatcher) { d.dim = dim }
}

// WithChunks fixes the chunk count, which must be at least 1. Without it
// the count is the value of the CPU count function, resolved on every
// Invoke.
func WithChunks(n int) Option {
	return func(d *Dispatcher) {
		d.chunks = n
		d.auto = false
	}
}

// WithBuffer sets the halo width. Default: 0.
func WithBuffer(n int) Option {
	return func(d *Dispatcher) { d.buffer = n }
}

// WithMerge controls whether chunk outputs are merged. Default: true.
func WithMerge(merge bool) Option {
	return func(d *Dispatcher) { d.merge = merge }
}

// WithEager controls whether Invoke materializes the graph. Default: true.
func WithEager(eager bool) Option {
	return func(d *Dispatcher) { d.eager = eager }
}

// WithEngine sets the task-graph engine. Default: engine.NewLocal().
func WithEngine(e engine.Engine) Option {
	return func(d *Dispatcher) { d.engine = e }
}

// WithCPUCount sets the function queried for the default chunk count.
// Default: runtime.NumCPU.
func WithCPUCount(fn func() int) Option {
	return func(d *Dispatcher) { d.numCPU = fn }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// New binds fn to the given options.
func New(fn TransformFunc, opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		name:   "dispatch",
		fn:     fn,
		merge:  true,
		eager:  true,
		numCPU: runtime.NumCPU,
		logger: slog.Default(),
		auto:   true,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.fn == nil {
		return nil, chunkerr.Configuration("transform function must not be nil")
	}
	if !d.auto && d.chunks < 1 {
		return nil, chunkerr.Configuration("chunk count must be at least 1, got %d", d.chunks)
	}
	if d.buffer < 0 {
		return nil, chunkerr.Configuration("buffer must not be negative, got %d", d.buffer)
	}
	if d.engine == nil {
		d.engine = engine.NewLocal(engine.WithLogger(d.logger))
	}
	if d.numCPU == nil {
		d.numCPU = runtime.NumCPU
	}
	return d, nil
}

// Plan resolves the chunk plan Invoke would use for ds, without building
// anything.
func (d *Dispatcher) Plan(ds *dataset.Dataset) (window.Plan, error) {
	if ds == nil {
		return window.Plan{}, chunkerr.Configuration("dataset must not be nil")
	}
	dim := d.dim
	if dim == "" {
		names := ds.DimNames()
		if len(names) == 0 {
			return window.Plan{}, chunkerr.DimensionNotFound("", names)
		}
		dim = names[0]
	}
	count := d.chunks
	if d.auto {
		count = d.numCPU()
	}
	return window.PlanFor(ds, dim, count, d.buffer)
}

// Invoke chunks ds, applies the transformation to every chunk with args
// appended, and returns the result.
//
// Structural problems (missing dimension, bad chunk parameters) fail
// before any task is created. Transformation and merge failures surface
// as TASK_EXECUTION errors when the graph is computed.
func (d *Dispatcher) Invoke(ctx context.Context, ds *dataset.Dataset, args ...any) (Result, error) {
	plan, err := d.Plan(ds)
	if err != nil {
		return nil, err
	}

	hinted, err := ds.Rechunk(map[string]int{plan.Dim: plan.ChunkSize})
	if err != nil {
		return nil, err
	}
	chunks, err := plan.Split(hinted)
	if err != nil {
		return nil, err
	}

	g := d.engine.NewGraph(d.name)
	tasks := make([]*engine.Task, 0, chunks.Len())
	for i, chunk := range chunks.All() {
		task, err := d.engine.Delay(g, "chunk-"+strconv.Itoa(i), d.chunkFunc(chunk, args))
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := chunks.Err(); err != nil {
		return nil, err
	}

	var target *engine.Task
	if d.merge {
		target, err = d.engine.Delay(g, "merge", mergeFunc(plan), tasks)
	} else {
		target, err = d.engine.Delay(g, "collect", collectFunc, tasks)
	}
	if err != nil {
		return nil, err
	}

	d.logger.Debug("dispatch graph built",
		slog.String("graph", d.name),
		slog.String("dim", plan.Dim),
		slog.Int("size", plan.Size),
		slog.Int("chunks", plan.Count),
		slog.Int("chunk_size", plan.ChunkSize),
		slog.Int("buffer", plan.Buffer),
		slog.Bool("merge", d.merge),
		slog.Bool("eager", d.eager),
	)

	deferred := &Deferred{
		handle: engine.NewHandle(d.engine, g, target),
		plan:   plan,
		merged: d.merge,
	}
	if !d.eager {
		return deferred, nil
	}
	m, err := deferred.Compute(ctx)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (d *Dispatcher) chunkFunc(chunk *dataset.Dataset, extra []any) engine.Func {
	return func(ctx context.Context, _ []any) (any, error) {
		out, err := d.fn(ctx, chunk, extra...)
		if err != nil {
			return nil, err
		}
		if out == nil {
			return nil, fmt.Errorf("transform returned no dataset")
		}
		return out, nil
	}
}

func datasets(vals []any) ([]*dataset.Dataset, error) {
	parts := make([]*dataset.Dataset, len(vals))
	for i, v := range vals {
		ds, ok := v.(*dataset.Dataset)
		if !ok || ds == nil {
			return nil, chunkerr.ShapeMismatch("", -1, -1, "chunk %d produced %T, not a dataset", i, v).
				WithDetail("part", strconv.Itoa(i))
		}
		parts[i] = ds
	}
	return parts, nil
}

func mergeFunc(plan window.Plan) engine.Func {
	return func(_ context.Context, args []any) (any, error) {
		parts, err := datasets(args[0].([]any))
		if err != nil {
			return nil, err
		}
		return window.Merge(parts, plan)
	}
}

func collectFunc(_ context.Context, args []any) (any, error) {
	return datasets(args[0].([]any))
}
