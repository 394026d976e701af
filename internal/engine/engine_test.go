package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/geochunk/internal/chunkerr"
	"github.com/roach88/geochunk/internal/ir"
)

func constant(v any) Func {
	return func(context.Context, []any) (any, error) { return v, nil }
}

func sum(_ context.Context, args []any) (any, error) {
	total := 0
	for _, a := range args {
		switch v := a.(type) {
		case int:
			total += v
		case []any:
			for _, x := range v {
				total += x.(int)
			}
		}
	}
	return total, nil
}

type recorder struct {
	mu     sync.Mutex
	events []TaskEvent
}

func (r *recorder) Observe(ev TaskEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds(key string) []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []EventKind
	for _, ev := range r.events {
		if ev.TaskKey == key {
			out = append(out, ev.Kind)
		}
	}
	return out
}

func TestDelay_DeterministicKeys(t *testing.T) {
	eng := NewLocal(WithIDGenerator(NewFixedGenerator("g-1")))
	g := eng.NewGraph("keys")
	assert.Equal(t, "g-1", g.ID())

	a, err := eng.Delay(g, "chunk", constant(1))
	require.NoError(t, err)
	b, err := eng.Delay(g, "chunk", constant(2))
	require.NoError(t, err)

	assert.Equal(t, ir.MustTaskKey("g-1", "chunk", 1), a.Key())
	assert.Equal(t, ir.MustTaskKey("g-1", "chunk", 2), b.Key())
	assert.True(t, strings.HasPrefix(a.Key(), "chunk-"))
	assert.Equal(t, int64(2), b.Seq())
	assert.Equal(t, 2, g.Len())
}

func TestDelay_CollectsDependencies(t *testing.T) {
	eng := NewLocal()
	g := eng.NewGraph("deps")
	a, _ := eng.Delay(g, "a", constant(1))
	b, _ := eng.Delay(g, "b", constant(2))

	c, err := eng.Delay(g, "c", sum, a, []*Task{b, a}, 10)
	require.NoError(t, err)
	assert.Equal(t, []*Task{a, b}, c.Deps())
}

func TestDelay_RejectsForeignTasks(t *testing.T) {
	eng := NewLocal()
	g1 := eng.NewGraph("one")
	g2 := eng.NewGraph("two")
	a, _ := eng.Delay(g1, "a", constant(1))

	_, err := eng.Delay(g2, "b", sum, a)
	assert.True(t, chunkerr.IsConfiguration(err))

	_, err = eng.Compute(context.Background(), g2, a)
	assert.True(t, chunkerr.IsConfiguration(err))
}

func TestDelay_MaxTasks(t *testing.T) {
	eng := NewLocal(WithMaxTasks(2))
	g := eng.NewGraph("bounded")
	_, err := eng.Delay(g, "a", constant(1))
	require.NoError(t, err)
	_, err = eng.Delay(g, "b", constant(1))
	require.NoError(t, err)

	_, err = eng.Delay(g, "c", constant(1))
	require.Error(t, err)
	assert.True(t, chunkerr.IsConfiguration(err))
	assert.Equal(t, 2, g.Len())
}

func TestCompute_ResolvesArgumentsInOrder(t *testing.T) {
	eng := NewLocal(WithWorkers(4))
	g := eng.NewGraph("order")

	var parts []*Task
	for i := 0; i < 8; i++ {
		delay := time.Duration(8-i) * time.Millisecond
		v := i
		task, err := eng.Delay(g, "part", func(ctx context.Context, _ []any) (any, error) {
			time.Sleep(delay)
			return v, nil
		})
		require.NoError(t, err)
		parts = append(parts, task)
	}
	collect, err := eng.Delay(g, "collect", func(_ context.Context, args []any) (any, error) {
		return args[0], nil
	}, parts)
	require.NoError(t, err)

	got, err := eng.Compute(context.Background(), g, collect)
	require.NoError(t, err)
	assert.Equal(t, []any{0, 1, 2, 3, 4, 5, 6, 7}, got)
}

func TestCompute_Diamond(t *testing.T) {
	eng := NewLocal(WithWorkers(2))
	g := eng.NewGraph("diamond")
	a, _ := eng.Delay(g, "a", constant(1))
	b, _ := eng.Delay(g, "b", sum, a, 1)
	c, _ := eng.Delay(g, "c", sum, a, 2)
	d, _ := eng.Delay(g, "d", sum, b, c)

	got, err := eng.Compute(context.Background(), g, d)
	require.NoError(t, err)
	assert.Equal(t, 5, got)
}

func TestCompute_OnlyAncestorsRun(t *testing.T) {
	eng := NewLocal()
	g := eng.NewGraph("partial")
	var ran atomic.Int32
	counting := func(context.Context, []any) (any, error) {
		ran.Add(1)
		return 1, nil
	}
	a, _ := eng.Delay(g, "a", counting)
	_, _ = eng.Delay(g, "unrelated", counting)

	_, err := eng.Compute(context.Background(), g, a)
	require.NoError(t, err)
	assert.Equal(t, int32(1), ran.Load())
}

func TestCompute_RespectsWorkerLimit(t *testing.T) {
	eng := NewLocal(WithWorkers(2))
	g := eng.NewGraph("limit")

	var active, peak atomic.Int32
	var tasks []*Task
	for i := 0; i < 10; i++ {
		task, _ := eng.Delay(g, "busy", func(context.Context, []any) (any, error) {
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			active.Add(-1)
			return 0, nil
		})
		tasks = append(tasks, task)
	}
	join, _ := eng.Delay(g, "join", sum, tasks)

	_, err := eng.Compute(context.Background(), g, join)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestCompute_TaskFailure(t *testing.T) {
	rec := &recorder{}
	eng := NewLocal(WithObserver(rec))
	g := eng.NewGraph("failing")
	boom := errors.New("boom")

	a, _ := eng.Delay(g, "ok", constant(1))
	b, _ := eng.Delay(g, "bad", func(context.Context, []any) (any, error) { return nil, boom })
	c, _ := eng.Delay(g, "join", sum, a, b)

	_, err := eng.Compute(context.Background(), g, c)
	require.Error(t, err)
	assert.True(t, chunkerr.IsTaskExecution(err))
	assert.ErrorIs(t, err, boom)

	var ce *chunkerr.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, b.Key(), ce.Details["task_key"])

	assert.Equal(t, []EventKind{EventDelayed, EventStarted, EventFailed}, rec.kinds(b.Key()))
	assert.Equal(t, []EventKind{EventDelayed}, rec.kinds(c.Key()))
}

func TestCompute_WrapsStructuralCause(t *testing.T) {
	eng := NewLocal()
	g := eng.NewGraph("merge")
	bad, _ := eng.Delay(g, "merge", func(context.Context, []any) (any, error) {
		return nil, chunkerr.ShapeMismatch("x", 3, 2, "merge expects one part per chunk")
	})

	_, err := eng.Compute(context.Background(), g, bad)
	assert.True(t, chunkerr.IsTaskExecution(err))
	assert.True(t, chunkerr.IsShapeMismatch(err))
	assert.Equal(t, chunkerr.CodeTaskExecution, chunkerr.CodeOf(err))
}

func TestCompute_RecoversPanics(t *testing.T) {
	eng := NewLocal()
	g := eng.NewGraph("panic")
	p, _ := eng.Delay(g, "explode", func(context.Context, []any) (any, error) {
		panic("kaboom")
	})

	_, err := eng.Compute(context.Background(), g, p)
	require.Error(t, err)
	assert.True(t, chunkerr.IsTaskExecution(err))
	assert.Contains(t, err.Error(), "kaboom")
}

func TestCompute_Cancelled(t *testing.T) {
	eng := NewLocal()
	g := eng.NewGraph("cancel")
	a, _ := eng.Delay(g, "a", constant(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := eng.Compute(ctx, g, a)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, chunkerr.IsTaskExecution(err))
}

func TestCompute_Observer(t *testing.T) {
	rec := &recorder{}
	eng := NewLocal(WithObserver(rec), WithIDGenerator(NewFixedGenerator("g-obs")))
	g := eng.NewGraph("observed")
	a, _ := eng.Delay(g, "a", constant(1))
	b, _ := eng.Delay(g, "b", sum, a)

	_, err := eng.Compute(context.Background(), g, b)
	require.NoError(t, err)

	assert.Equal(t, []EventKind{EventDelayed, EventStarted, EventCompleted}, rec.kinds(a.Key()))
	assert.Equal(t, []EventKind{EventDelayed, EventStarted, EventCompleted}, rec.kinds(b.Key()))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.events, 6)
	assert.Equal(t, []string{a.Key()}, rec.events[1].Deps)
	for i, ev := range rec.events {
		assert.Equal(t, int64(i+1), ev.Seq)
		assert.Equal(t, "g-obs", ev.GraphID)
	}
}

func TestHandle_ComputeTwice(t *testing.T) {
	eng := NewLocal()
	g := eng.NewGraph("handle")
	var ran atomic.Int32
	a, _ := eng.Delay(g, "a", func(context.Context, []any) (any, error) {
		return int(ran.Add(1)), nil
	})

	h := NewHandle(eng, g, a)
	assert.Same(t, g, h.Graph())
	assert.Same(t, a, h.Target())
	assert.Equal(t, int32(0), ran.Load())

	v1, err := h.Compute(context.Background())
	require.NoError(t, err)
	v2, err := h.Compute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v1)
	assert.Equal(t, 2, v2)
}
