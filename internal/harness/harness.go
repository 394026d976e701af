package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/geochunk/internal/chunkerr"
	"github.com/roach88/geochunk/internal/compiler"
	"github.com/roach88/geochunk/internal/dataset"
	"github.com/roach88/geochunk/internal/dispatch"
	"github.com/roach88/geochunk/internal/engine"
	"github.com/roach88/geochunk/internal/geo"
	"github.com/roach88/geochunk/internal/ir"
	"github.com/roach88/geochunk/internal/testutil"
	"github.com/roach88/geochunk/internal/transform"
	"github.com/roach88/geochunk/internal/window"
)

// cpuCount stands in for the logical core count when a case leaves chunks
// unset, so plans do not depend on the machine.
const cpuCount = 4

// Harness runs scenarios with a deterministic clock and graph IDs.
//
// A Harness is not safe for concurrent use; RunAll gives every worker its
// own, all sharing one compiler.
type Harness struct {
	compiler *jobCompiler
	clock    *testutil.DeterministicClock
	logger   *slog.Logger
}

// jobCompiler serializes job compilation. CUE builds builtin packages into
// process-wide state on first use, so concurrent loads race even across
// separate compilers.
type jobCompiler struct {
	mu sync.Mutex
	c  *compiler.Compiler
}

func newJobCompiler() (*jobCompiler, error) {
	c, err := compiler.New()
	if err != nil {
		return nil, fmt.Errorf("harness: %w", err)
	}
	return &jobCompiler{c: c}, nil
}

func (jc *jobCompiler) Load(filename string, src []byte) (*ir.Job, error) {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	return jc.c.Load(filename, src)
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger handed to the engine and dispatcher.
// Default: discard.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) { h.logger = logger }
}

// New creates a harness.
func New(opts ...Option) (*Harness, error) {
	jc, err := newJobCompiler()
	if err != nil {
		return nil, err
	}
	return newHarness(jc, opts...), nil
}

func newHarness(jc *jobCompiler, opts ...Option) *Harness {
	h := &Harness{
		compiler: jc,
		clock:    testutil.NewDeterministicClock(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a test scenario on a fresh harness.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	h, err := New()
	if err != nil {
		return nil, err
	}
	return h.Run(ctx, scenario)
}

// Run executes every case of scenario and returns the result.
//
// Execution flow per case:
//  1. Compile the job and apply the case's matrix overrides
//  2. Build the input dataset and resolve the transformation
//  3. Dispatch on a fresh engine with a reset clock, materializing the result
//  4. Evaluate every assertion against the outcome
//
// The returned error covers harness failures only (unreadable or invalid
// job). Dispatch failures are outcomes that assertions inspect.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	filename, src, err := scenario.jobSource()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	job, err := h.compiler.Load(filename, src)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: compile job: %w", scenario.Name, err)
	}

	result := NewResult(scenario.Name)
	for _, overrides := range geo.DictProduct(scenario.Matrix) {
		caseJob := *job
		applyOverrides(&caseJob.Dispatch, overrides)
		name := caseName(scenario.Name, overrides)

		o := h.runCase(ctx, name, &caseJob)
		c := CaseResult{Name: name, Pass: true, Plan: o.plan, Tasks: o.tasks}
		if out := outputOf(o); out != nil {
			c.Output = out.String()
		}
		if o.err != nil {
			c.ErrorCode = string(chunkerr.CodeOf(o.err))
		}

		expectsError := false
		for _, a := range scenario.Assertions {
			if a.Type == AssertErrorCode {
				expectsError = true
			}
			if err := checkAssertion(ctx, a, o); err != nil {
				c.addError(err.Error())
			}
		}
		if o.err != nil && !expectsError {
			c.addError(fmt.Sprintf("unexpected error: %v", o.err))
		}
		result.AddCase(c)
	}
	return result, nil
}

// RunAll runs scenarios on up to parallel harnesses and returns results in
// input order. Scenarios are split into contiguous batches, one per worker.
// Job compilation is serialized across workers; dispatch runs in parallel.
func RunAll(ctx context.Context, scenarios []*Scenario, parallel int, opts ...Option) ([]*Result, error) {
	if parallel < 1 {
		parallel = 1
	}
	size := (len(scenarios) + parallel - 1) / parallel
	batches, err := geo.Batches(scenarios, max(size, 1))
	if err != nil {
		return nil, err
	}
	jc, err := newJobCompiler()
	if err != nil {
		return nil, err
	}

	results := make([]*Result, len(scenarios))
	g, ctx := errgroup.WithContext(ctx)
	offset := 0
	for _, batch := range batches {
		start := offset
		offset += len(batch)
		g.Go(func() error {
			h := newHarness(jc, opts...)
			for i, s := range batch {
				r, err := h.Run(ctx, s)
				if err != nil {
					return err
				}
				results[start+i] = r
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// outcome is everything assertions may inspect about one case.
type outcome struct {
	input     *dataset.Dataset
	transform transform.Transform
	plan      *window.Plan
	result    *dispatch.Materialized
	err       error
	tasks     []TaskTrace
}

func (h *Harness) runCase(ctx context.Context, name string, job *ir.Job) *outcome {
	o := &outcome{tasks: []TaskTrace{}}

	ds, err := compiler.BuildDataset(job.Dataset)
	if err != nil {
		o.err = err
		return o
	}
	tr, err := transform.Build(job.Transform)
	if err != nil {
		o.err = err
		return o
	}
	o.input, o.transform = ds, tr

	h.clock.Reset()
	rec := &recorder{names: map[string]string{}}
	engOpts := []engine.LocalOption{
		engine.WithClock(h.clock),
		engine.WithIDGenerator(testutil.NewFixedIDGenerator(name)),
		engine.WithObserver(rec),
		engine.WithLogger(h.logger),
	}
	if job.Dispatch.Workers > 0 {
		engOpts = append(engOpts, engine.WithWorkers(job.Dispatch.Workers))
	}

	dOpts := []dispatch.Option{
		dispatch.WithName(job.Name),
		dispatch.WithDimension(job.Dispatch.Dim),
		dispatch.WithBuffer(job.Dispatch.Buffer),
		dispatch.WithMerge(job.Dispatch.MergeEnabled()),
		dispatch.WithEager(job.Dispatch.EagerEnabled()),
		dispatch.WithEngine(engine.NewLocal(engOpts...)),
		dispatch.WithCPUCount(func() int { return cpuCount }),
		dispatch.WithLogger(h.logger),
	}
	if job.Dispatch.Chunks != 0 {
		dOpts = append(dOpts, dispatch.WithChunks(job.Dispatch.Chunks))
	}

	d, err := dispatch.New(tr.Fn, dOpts...)
	if err != nil {
		o.err = err
		return o
	}
	if plan, err := d.Plan(ds); err == nil {
		o.plan = &plan
	}

	res, err := d.Invoke(ctx, ds)
	if err == nil {
		switch r := res.(type) {
		case *dispatch.Materialized:
			o.result = r
		case *dispatch.Deferred:
			o.result, err = r.Compute(ctx)
		}
	}
	o.err = err
	o.tasks = rec.trace()
	return o
}

// recorder collects delayed-task events. Keys are mapped back to task
// names so traces do not depend on the digest.
type recorder struct {
	mu     sync.Mutex
	names  map[string]string
	events []TaskTrace
}

func (r *recorder) Observe(ev engine.TaskEvent) {
	if ev.Kind != engine.EventDelayed {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names[ev.TaskKey] = ev.TaskName
	deps := make([]string, len(ev.Deps))
	for i, key := range ev.Deps {
		deps[i] = r.names[key]
	}
	r.events = append(r.events, TaskTrace{Name: ev.TaskName, Seq: ev.Seq, Deps: deps})
}

func (r *recorder) trace() []TaskTrace {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]TaskTrace{}, r.events...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func applyOverrides(d *ir.DispatchSpec, overrides map[string]int) {
	for key, v := range overrides {
		switch key {
		case "chunks":
			d.Chunks = v
		case "buffer":
			d.Buffer = v
		case "workers":
			d.Workers = v
		}
	}
}

// caseName renders name[k=v,...] with keys sorted, or name alone.
func caseName(name string, overrides map[string]int) string {
	if len(overrides) == 0 {
		return name
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + strconv.Itoa(overrides[k])
	}
	return name + "[" + strings.Join(parts, ",") + "]"
}
