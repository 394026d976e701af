package engine

import (
	"context"
	"sync"
)

// Func is the body of a deferred task. args holds the task's arguments in
// declaration order, with every dependency replaced by its computed value:
// a *Task argument becomes that task's output and a []*Task argument
// becomes a []any of outputs in slice order.
type Func func(ctx context.Context, args []any) (any, error)

// Task is a node in a Graph: a deferred call of fn over args. A Task is a
// pure data-dependency record, not a goroutine. Tasks are immutable once
// created.
type Task struct {
	key   string
	name  string
	seq   int64
	graph *Graph
	fn    Func
	args  []any
	deps  []*Task // direct dependencies, first-reference order, no repeats
}

// Key returns the deterministic task key (name plus a digest of the graph
// ID and seq).
func (t *Task) Key() string { return t.key }

// Name returns the task name given to Delay.
func (t *Task) Name() string { return t.name }

// Seq returns the task's creation order within its graph, starting at 1.
func (t *Task) Seq() int64 { return t.seq }

// Deps returns the direct dependencies.
func (t *Task) Deps() []*Task {
	out := make([]*Task, len(t.deps))
	copy(out, t.deps)
	return out
}

// Graph is an append-only set of tasks. Dependencies always point at tasks
// created earlier, so a graph is acyclic by construction.
//
// Thread-safety: tasks may be added from multiple goroutines.
type Graph struct {
	id    string
	name  string
	clock *Clock

	mu    sync.Mutex
	tasks []*Task
}

// ID returns the graph identifier.
func (g *Graph) ID() string { return g.id }

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// Len returns the number of tasks.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.tasks)
}

// Tasks returns the tasks in creation order.
func (g *Graph) Tasks() []*Task {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Task, len(g.tasks))
	copy(out, g.tasks)
	return out
}

func (g *Graph) add(t *Task) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tasks = append(g.tasks, t)
}

// Handle is an unmaterialized result: a target task plus the engine that
// can compute it. Computing a handle twice runs the graph twice.
type Handle struct {
	engine Engine
	graph  *Graph
	target *Task
}

// NewHandle binds target in g to e.
func NewHandle(e Engine, g *Graph, target *Task) *Handle {
	return &Handle{engine: e, graph: g, target: target}
}

// Graph returns the underlying graph.
func (h *Handle) Graph() *Graph { return h.graph }

// Target returns the task whose value Compute returns.
func (h *Handle) Target() *Task { return h.target }

// Compute materializes the target.
func (h *Handle) Compute(ctx context.Context) (any, error) {
	return h.engine.Compute(ctx, h.graph, h.target)
}
