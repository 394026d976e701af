package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/geochunk/internal/chunkerr"
)

// run is the per-Compute scheduling state over the target's ancestors.
type run struct {
	tasks      []*Task // ancestors of the target plus the target, creation order
	remaining  map[*Task]*atomic.Int32
	dependents map[*Task][]*Task

	mu      sync.Mutex
	outputs map[*Task]any
}

func newRun(target *Task) *run {
	r := &run{
		remaining:  make(map[*Task]*atomic.Int32),
		dependents: make(map[*Task][]*Task),
		outputs:    make(map[*Task]any),
	}
	// Depth-first over deps; tasks are ordered by seq afterwards so that
	// roots enqueue in creation order.
	visited := make(map[*Task]bool)
	var visit func(t *Task)
	visit = func(t *Task) {
		if visited[t] {
			return
		}
		visited[t] = true
		for _, d := range t.deps {
			visit(d)
			r.dependents[d] = append(r.dependents[d], t)
		}
		n := &atomic.Int32{}
		n.Store(int32(len(t.deps)))
		r.remaining[t] = n
		r.tasks = append(r.tasks, t)
	}
	visit(target)
	sortBySeq(r.tasks)
	for _, deps := range r.dependents {
		sortBySeq(deps)
	}
	return r
}

func sortBySeq(tasks []*Task) {
	slices.SortFunc(tasks, func(a, b *Task) int {
		return cmp.Compare(a.seq, b.seq)
	})
}

func (r *run) output(t *Task) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outputs[t]
}

func (r *run) store(t *Task, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs[t] = v
}

// resolve substitutes dependency outputs into t's arguments.
func (r *run) resolve(t *Task) []any {
	args := make([]any, len(t.args))
	for i, arg := range t.args {
		switch a := arg.(type) {
		case *Task:
			args[i] = r.output(a)
		case []*Task:
			vals := make([]any, len(a))
			for j, d := range a {
				vals[j] = r.output(d)
			}
			args[i] = vals
		default:
			args[i] = arg
		}
	}
	return args
}

// Compute materializes target and returns its value.
//
// Only target and its ancestors run. Independent tasks run concurrently,
// at most Workers() at a time; a task starts once every dependency has
// completed. The first task failure cancels the run and is returned as a
// TASK_EXECUTION error wrapping the cause. Nothing is retried.
func (l *Local) Compute(ctx context.Context, g *Graph, target *Task) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if g == nil || target == nil {
		return nil, chunkerr.Configuration("compute: nil graph or target")
	}
	if target.graph != g {
		return nil, chunkerr.Configuration("compute: task %s belongs to another graph", target.key)
	}

	l.initMetrics()
	r := newRun(target)

	ctx, span := tracer.Start(ctx, "engine.Compute",
		trace.WithAttributes(
			attribute.String("graph.id", g.id),
			attribute.String("graph.name", g.name),
			attribute.String("graph.target", target.key),
			attribute.Int("graph.task_count", len(r.tasks)),
			attribute.Int("engine.workers", l.workers),
		),
	)
	defer span.End()

	start := time.Now()
	l.logger.Debug("compute started",
		slog.String("graph", g.name),
		slog.String("graph_id", g.id),
		slog.String("target", target.key),
		slog.Int("tasks", len(r.tasks)),
	)

	queue := newReadyQueue(len(r.tasks))
	for _, t := range r.tasks {
		if len(t.deps) == 0 {
			queue.Enqueue(t)
		}
	}

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(l.workers)

	var pending atomic.Int32
	pending.Store(int32(len(r.tasks)))

	complete := func(t *Task) {
		for _, d := range r.dependents[t] {
			if r.remaining[d].Add(-1) == 0 {
				queue.Enqueue(d)
			}
		}
		if pending.Add(-1) == 0 {
			queue.Close()
		}
	}

schedule:
	for {
		for {
			t, ok := queue.TryDequeue()
			if !ok {
				break
			}
			eg.Go(func() error {
				out, err := l.execute(egctx, r, t)
				if err != nil {
					return err
				}
				r.store(t, out)
				complete(t)
				return nil
			})
		}
		if queue.Closed() {
			break
		}
		select {
		case <-egctx.Done():
			break schedule
		case <-queue.Wait():
		}
	}

	err := eg.Wait()
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.logger.Debug("compute failed",
			slog.String("graph_id", g.id),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	l.logger.Debug("compute completed",
		slog.String("graph_id", g.id),
		slog.Duration("duration", time.Since(start)),
	)
	return r.output(target), nil
}

// execute runs one task, recovering panics and recording telemetry.
func (l *Local) execute(ctx context.Context, r *run, t *Task) (out any, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "engine.Task",
		trace.WithAttributes(
			attribute.String("task.key", t.key),
			attribute.String("task.name", t.name),
			attribute.Int64("task.seq", t.seq),
		),
	)
	defer span.End()

	attrs := metric.WithAttributes(attribute.String("task", t.name))
	if l.activeTasks != nil {
		l.activeTasks.Add(ctx, 1, attrs)
		defer l.activeTasks.Add(ctx, -1, attrs)
	}

	ev := TaskEvent{GraphID: t.graph.id, Graph: t.graph.name, TaskKey: t.key, TaskName: t.name, TaskSeq: t.seq}
	started := ev
	started.Kind = EventStarted
	l.emit(started)

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
		elapsed := time.Since(start)
		if l.taskLatency != nil {
			l.taskLatency.Record(ctx, elapsed.Seconds(), attrs)
		}
		ev.Duration = elapsed
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				// Cancelled, not failed.
				return
			}
			err = chunkerr.TaskExecution(t.key, t.name, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if l.taskFailures != nil {
				l.taskFailures.Add(ctx, 1, attrs)
			}
			ev.Kind = EventFailed
			ev.Error = err.Error()
			l.emit(ev)
			l.logger.Warn("task failed",
				slog.String("task", t.key),
				slog.String("error", err.Error()),
			)
			return
		}
		if l.taskSuccesses != nil {
			l.taskSuccesses.Add(ctx, 1, attrs)
		}
		ev.Kind = EventCompleted
		l.emit(ev)
	}()

	return t.fn(ctx, r.resolve(t))
}
