// Package engine implements the task-graph collaborator behind the
// dispatcher: deferred tasks, graphs composed from their data
// dependencies, and synchronous materialization.
//
// ARCHITECTURE:
//
// Graphs are append-only. Delay records a task and derives its
// dependencies from *Task and []*Task arguments, so every edge points at an
// earlier task and no cycle can form. Each task gets a deterministic key
// from the graph ID and its creation seq (ir.TaskKey).
//
// Compute walks the target's ancestors, seeds a ready queue with the tasks
// that have no dependencies, and launches ready tasks on an errgroup
// limited to the configured worker count. A finishing task releases its
// dependents into the queue. Arguments are resolved from dependency
// outputs in declaration order, so consumers see their inputs in the
// order they were declared no matter which task finishes first.
//
// CRITICAL PATTERNS:
//
// Logical Clock: task seqs and event seqs come from Clock.Next(), never
// from wall-clock time.
//
// Fail fast: the first failure cancels the errgroup context. It surfaces
// as a chunkerr TASK_EXECUTION error wrapping the cause; panics are
// recovered and reported the same way.
//
// Observability: every Compute and every task gets an OpenTelemetry span;
// task latency, success, failure and concurrency are recorded as metrics.
// Observers receive a TaskEvent for each lifecycle transition.
package engine
