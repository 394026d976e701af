package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/roach88/geochunk/internal/chunkerr"
	"github.com/roach88/geochunk/internal/ir"
)

var (
	tracer = otel.Tracer("geochunk.engine")
	meter  = otel.Meter("geochunk.engine")
)

// Engine is the task-graph collaborator the dispatcher builds on.
//
// Delay wraps a call into a deferred task; *Task and []*Task arguments
// become ordered dependencies, which is how tasks compose into a graph.
// Compute materializes a task synchronously. NewHandle returns the
// unmaterialized form.
type Engine interface {
	NewGraph(name string) *Graph
	Delay(g *Graph, name string, fn Func, args ...any) (*Task, error)
	Compute(ctx context.Context, g *Graph, target *Task) (any, error)
}

// DefaultMaxTasks bounds the size of a single graph.
const DefaultMaxTasks = 100_000

// Local executes graphs in-process on a bounded pool of goroutines.
//
// Thread-safety: a Local may build and compute many graphs concurrently.
type Local struct {
	workers   int
	maxTasks  int
	logger    *slog.Logger
	ids       IDGenerator
	clock     Sequencer
	observers []Observer

	metricsOnce   sync.Once
	taskLatency   metric.Float64Histogram
	taskSuccesses metric.Int64Counter
	taskFailures  metric.Int64Counter
	activeTasks   metric.Int64UpDownCounter
}

// LocalOption configures a Local engine.
type LocalOption func(*Local)

// WithWorkers sets the number of tasks that may run at once.
// Values below 1 select runtime.NumCPU().
func WithWorkers(n int) LocalOption {
	return func(l *Local) {
		l.workers = n
	}
}

// WithMaxTasks sets the per-graph task limit enforced by Delay.
func WithMaxTasks(n int) LocalOption {
	return func(l *Local) {
		l.maxTasks = n
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) LocalOption {
	return func(l *Local) {
		l.logger = logger
	}
}

// WithIDGenerator sets the graph ID source. Default: UUIDv7Generator.
func WithIDGenerator(gen IDGenerator) LocalOption {
	return func(l *Local) {
		l.ids = gen
	}
}

// Sequencer stamps task events. *Clock implements it; tests may supply a
// resettable one.
type Sequencer interface {
	Next() int64
	Current() int64
}

// WithClock sets the sequencer that stamps task events.
func WithClock(c Sequencer) LocalOption {
	return func(l *Local) {
		l.clock = c
	}
}

// WithObserver registers an observer for task events.
func WithObserver(o Observer) LocalOption {
	return func(l *Local) {
		l.observers = append(l.observers, o)
	}
}

// NewLocal creates a Local engine.
func NewLocal(opts ...LocalOption) *Local {
	l := &Local{
		maxTasks: DefaultMaxTasks,
		logger:   slog.Default(),
		ids:      UUIDv7Generator{},
		clock:    NewClock(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.workers < 1 {
		l.workers = runtime.NumCPU()
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// Workers returns the worker pool size.
func (l *Local) Workers() int { return l.workers }

// NewGraph starts an empty graph with a fresh ID.
func (l *Local) NewGraph(name string) *Graph {
	return &Graph{
		id:    l.ids.Generate(),
		name:  name,
		clock: NewClock(),
	}
}

// Delay adds a deferred call of fn to g.
//
// Every *Task or []*Task argument must belong to g; they become the new
// task's dependencies. Other arguments are passed through unchanged.
func (l *Local) Delay(g *Graph, name string, fn Func, args ...any) (*Task, error) {
	if g == nil {
		return nil, chunkerr.Configuration("delay %s: nil graph", name)
	}
	if fn == nil {
		return nil, chunkerr.Configuration("delay %s: nil function", name)
	}
	if l.maxTasks > 0 && g.Len() >= l.maxTasks {
		return nil, chunkerr.Configuration("graph %s exceeds %d tasks", g.name, l.maxTasks).
			WithDetail("graph_id", g.id).
			WithDetail("max_tasks", strconv.Itoa(l.maxTasks))
	}

	var deps []*Task
	seen := make(map[*Task]bool)
	addDep := func(d *Task) error {
		if d == nil {
			return chunkerr.Configuration("delay %s: nil dependency", name)
		}
		if d.graph != g {
			return chunkerr.Configuration("delay %s: dependency %s belongs to another graph", name, d.key)
		}
		if !seen[d] {
			seen[d] = true
			deps = append(deps, d)
		}
		return nil
	}
	for _, arg := range args {
		switch a := arg.(type) {
		case *Task:
			if err := addDep(a); err != nil {
				return nil, err
			}
		case []*Task:
			for _, d := range a {
				if err := addDep(d); err != nil {
					return nil, err
				}
			}
		}
	}

	seq := g.clock.Next()
	key, err := ir.TaskKey(g.id, name, seq)
	if err != nil {
		return nil, fmt.Errorf("task key for %s: %w", name, err)
	}
	t := &Task{
		key:   key,
		name:  name,
		seq:   seq,
		graph: g,
		fn:    fn,
		args:  append([]any(nil), args...),
		deps:  deps,
	}
	g.add(t)

	depKeys := make([]string, len(deps))
	for i, d := range deps {
		depKeys[i] = d.key
	}
	l.emit(TaskEvent{Kind: EventDelayed, GraphID: g.id, Graph: g.name,
		TaskKey: key, TaskName: name, TaskSeq: seq, Deps: depKeys})
	return t, nil
}

func (l *Local) emit(ev TaskEvent) {
	if len(l.observers) == 0 {
		return
	}
	ev.Seq = l.clock.Next()
	for _, o := range l.observers {
		o.Observe(ev)
	}
}

// initMetrics lazily creates instruments. Failures degrade observability
// but never execution.
func (l *Local) initMetrics() {
	l.metricsOnce.Do(func() {
		var initErrors []string
		var err error

		l.taskLatency, err = meter.Float64Histogram("geochunk_task_duration_seconds",
			metric.WithDescription("Time spent executing each task"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "task_latency: "+err.Error())
		}

		l.taskSuccesses, err = meter.Int64Counter("geochunk_task_success_total",
			metric.WithDescription("Number of successful task executions"),
		)
		if err != nil {
			initErrors = append(initErrors, "task_successes: "+err.Error())
		}

		l.taskFailures, err = meter.Int64Counter("geochunk_task_failure_total",
			metric.WithDescription("Number of failed task executions"),
		)
		if err != nil {
			initErrors = append(initErrors, "task_failures: "+err.Error())
		}

		l.activeTasks, err = meter.Int64UpDownCounter("geochunk_active_tasks",
			metric.WithDescription("Number of currently executing tasks"),
		)
		if err != nil {
			initErrors = append(initErrors, "active_tasks: "+err.Error())
		}

		if len(initErrors) > 0 {
			l.logger.Error("failed to initialize some engine metrics (observability degraded)",
				slog.Int("failed_count", len(initErrors)),
				slog.Any("errors", initErrors),
			)
		}
	})
}
