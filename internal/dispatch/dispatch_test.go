package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/geochunk/internal/chunkerr"
	"github.com/roach88/geochunk/internal/dataset"
	"github.com/roach88/geochunk/internal/engine"
	"github.com/roach88/geochunk/internal/ndarray"
	"github.com/roach88/geochunk/internal/testutil"
)

func identity(_ context.Context, ds *dataset.Dataset, _ ...any) (*dataset.Dataset, error) {
	return ds, nil
}

// neighborSum replaces v[i] with v[i-1]+v[i]+v[i+1], clipped at the edges.
func neighborSum(_ context.Context, ds *dataset.Dataset, _ ...any) (*dataset.Dataset, error) {
	v, _ := ds.Variable("v")
	n := v.Data.Dim(0)
	out := ndarray.Zeros(n)
	for i := 0; i < n; i++ {
		s := v.Data.At(i)
		if i > 0 {
			s += v.Data.At(i - 1)
		}
		if i < n-1 {
			s += v.Data.At(i + 1)
		}
		out.Set(s, i)
	}
	return ds.WithVariable(dataset.Variable{Name: "v", Dims: v.Dims, Data: out})
}

func materialized(t *testing.T, r Result) *Materialized {
	t.Helper()
	m, ok := r.(*Materialized)
	require.True(t, ok, "expected *Materialized, got %T", r)
	return m
}

func TestInvoke_MissingDimensionCreatesNoTasks(t *testing.T) {
	eng := testutil.NewCountingEngine()
	d, err := New(identity, WithDimension("lon"), WithChunks(4), WithEngine(eng))
	require.NoError(t, err)

	_, err = d.Invoke(context.Background(), testutil.Line(t, "lat", 8))
	require.Error(t, err)
	assert.True(t, chunkerr.IsDimensionNotFound(err))
	assert.Equal(t, 0, eng.Delays())
	assert.Equal(t, 0, eng.Graphs())
}

func TestInvoke_ConfigurationCreatesNoTasks(t *testing.T) {
	eng := testutil.NewCountingEngine()
	d, err := New(identity, WithDimension("lat"), WithChunks(4), WithBuffer(2), WithEngine(eng))
	require.NoError(t, err)

	_, err = d.Invoke(context.Background(), testutil.Line(t, "lat", 8))
	assert.True(t, chunkerr.IsConfiguration(err))
	assert.Equal(t, 0, eng.Delays())
}

func TestInvoke_IdentityRoundTrip(t *testing.T) {
	ds := testutil.Line(t, "lat", 8)
	eng := testutil.NewCountingEngine()
	d, err := New(identity, WithDimension("lat"), WithChunks(4), WithEngine(eng))
	require.NoError(t, err)

	res, err := d.Invoke(context.Background(), ds)
	require.NoError(t, err)
	m := materialized(t, res)
	require.NotNil(t, m.Dataset)
	assert.True(t, m.Dataset.Equal(ds))
	assert.Equal(t, 2, m.Plan.ChunkSize)

	assert.Equal(t, []string{"chunk-0", "chunk-1", "chunk-2", "chunk-3", "merge"}, eng.TaskNames())
	assert.Equal(t, 1, eng.Computes())
}

func TestInvoke_RechunkHint(t *testing.T) {
	var hints []map[string]int
	spy := func(_ context.Context, ds *dataset.Dataset, _ ...any) (*dataset.Dataset, error) {
		hints = append(hints, ds.Chunks())
		return ds, nil
	}
	d, err := New(spy, WithDimension("lat"), WithChunks(3), WithEngine(engine.NewLocal(engine.WithWorkers(1))))
	require.NoError(t, err)

	_, err = d.Invoke(context.Background(), testutil.Line(t, "lat", 10))
	require.NoError(t, err)
	require.Len(t, hints, 3)
	for _, h := range hints {
		assert.Equal(t, map[string]int{"lat": 4}, h)
	}
}

func TestInvoke_HaloMatchesSerial(t *testing.T) {
	ds := testutil.Line(t, "x", 10)
	serial, err := neighborSum(context.Background(), ds)
	require.NoError(t, err)

	d, err := New(neighborSum, WithDimension("x"), WithChunks(3), WithBuffer(1))
	require.NoError(t, err)
	res, err := d.Invoke(context.Background(), ds)
	require.NoError(t, err)
	assert.True(t, materialized(t, res).Dataset.Equal(serial))

	// Without a halo the chunk edges are wrong.
	d, err = New(neighborSum, WithDimension("x"), WithChunks(3))
	require.NoError(t, err)
	res, err = d.Invoke(context.Background(), ds)
	require.NoError(t, err)
	assert.False(t, materialized(t, res).Dataset.Equal(serial))
}

func TestInvoke_DefaultDimensionAndCount(t *testing.T) {
	ds := testutil.Grid(t, 6)
	d, err := New(identity, WithCPUCount(func() int { return 3 }))
	require.NoError(t, err)

	plan, err := d.Plan(ds)
	require.NoError(t, err)
	assert.Equal(t, "time", plan.Dim)
	assert.Equal(t, 3, plan.Count)

	res, err := d.Invoke(context.Background(), ds)
	require.NoError(t, err)
	assert.True(t, materialized(t, res).Dataset.Equal(ds))
}

func TestInvoke_CPUCountResolvedPerInvoke(t *testing.T) {
	count := 2
	d, err := New(identity, WithDimension("lat"), WithCPUCount(func() int { return count }))
	require.NoError(t, err)

	ds := testutil.Grid(t, 6)
	res, err := d.Invoke(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, 2, materialized(t, res).Plan.Count)

	count = 3
	res, err = d.Invoke(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, 3, materialized(t, res).Plan.Count)
}

func TestInvoke_Unmerged(t *testing.T) {
	ds := testutil.Grid(t, 5)
	d, err := New(identity, WithDimension("lat"), WithChunks(2), WithMerge(false))
	require.NoError(t, err)

	res, err := d.Invoke(context.Background(), ds)
	require.NoError(t, err)
	m := materialized(t, res)
	assert.Nil(t, m.Dataset)
	require.Len(t, m.Parts, 2)

	var sizes []int
	for _, p := range m.Parts {
		n, err := p.Size("lat")
		require.NoError(t, err)
		sizes = append(sizes, n)
	}
	assert.Equal(t, []int{3, 2}, sizes)
}

func TestInvoke_Deferred(t *testing.T) {
	ds := testutil.Grid(t, 4)
	calls := 0
	counting := func(_ context.Context, c *dataset.Dataset, _ ...any) (*dataset.Dataset, error) {
		calls++
		return c, nil
	}
	eng := testutil.NewCountingEngine(engine.WithWorkers(1))
	d, err := New(counting, WithDimension("lat"), WithChunks(2), WithEager(false), WithEngine(eng))
	require.NoError(t, err)

	res, err := d.Invoke(context.Background(), ds)
	require.NoError(t, err)
	deferred, ok := res.(*Deferred)
	require.True(t, ok)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, eng.Computes())
	assert.Equal(t, 3, deferred.Handle().Graph().Len())
	assert.Equal(t, "lat", deferred.Plan().Dim)

	m, err := deferred.Compute(context.Background())
	require.NoError(t, err)
	assert.True(t, m.Dataset.Equal(ds))
	assert.Equal(t, 2, calls)
}

func TestInvoke_ExtraArgs(t *testing.T) {
	var got []any
	d, err := New(func(_ context.Context, ds *dataset.Dataset, args ...any) (*dataset.Dataset, error) {
		got = args
		return ds, nil
	}, WithDimension("lat"), WithChunks(1))
	require.NoError(t, err)

	_, err = d.Invoke(context.Background(), testutil.Line(t, "lat", 3), 2.5, "k")
	require.NoError(t, err)
	assert.Equal(t, []any{2.5, "k"}, got)
}

func TestInvoke_TransformFailure(t *testing.T) {
	boom := errors.New("boom")
	d, err := New(func(_ context.Context, ds *dataset.Dataset, _ ...any) (*dataset.Dataset, error) {
		return nil, boom
	}, WithDimension("lat"), WithChunks(2))
	require.NoError(t, err)

	_, err = d.Invoke(context.Background(), testutil.Line(t, "lat", 4))
	require.Error(t, err)
	assert.True(t, chunkerr.IsTaskExecution(err))
	assert.ErrorIs(t, err, boom)
}

func TestInvoke_SchemaViolationFailsMerge(t *testing.T) {
	ds := testutil.Grid(t, 4)
	d, err := New(func(_ context.Context, c *dataset.Dataset, _ ...any) (*dataset.Dataset, error) {
		return c.Drop("elev"), nil
	}, WithDimension("lat"), WithChunks(2))
	require.NoError(t, err)

	// Dropping the same variable everywhere keeps chunks consistent.
	res, err := d.Invoke(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, []string{"temp", "step"}, materialized(t, res).Dataset.Variables())

	// Changing the extent of a chunk does not.
	d, err = New(func(_ context.Context, c *dataset.Dataset, _ ...any) (*dataset.Dataset, error) {
		return c.ISel("lat", 0, 1)
	}, WithDimension("lat"), WithChunks(2))
	require.NoError(t, err)
	_, err = d.Invoke(context.Background(), ds)
	require.Error(t, err)
	assert.True(t, chunkerr.IsTaskExecution(err))
	assert.True(t, chunkerr.IsShapeMismatch(err))
}

func TestNew_Configuration(t *testing.T) {
	_, err := New(nil)
	assert.True(t, chunkerr.IsConfiguration(err))
	_, err = New(identity, WithChunks(-1))
	assert.True(t, chunkerr.IsConfiguration(err))
	_, err = New(identity, WithBuffer(-1))
	assert.True(t, chunkerr.IsConfiguration(err))
}

func TestNew_ZeroChunksRejected(t *testing.T) {
	eng := testutil.NewCountingEngine()
	d, err := New(identity, WithChunks(0), WithEngine(eng), WithCPUCount(func() int { return 3 }))
	require.Error(t, err)
	assert.Nil(t, d)
	assert.True(t, chunkerr.IsConfiguration(err))
	assert.Contains(t, err.Error(), "at least 1")
	assert.Zero(t, eng.Delays())
}

func TestDispatcher_IndependentInvocations(t *testing.T) {
	eng := testutil.NewCountingEngine()
	d, err := New(identity, WithDimension("lat"), WithChunks(2), WithEngine(eng))
	require.NoError(t, err)

	ds := testutil.Line(t, "lat", 4)
	for i := 0; i < 3; i++ {
		res, err := d.Invoke(context.Background(), ds)
		require.NoError(t, err)
		assert.True(t, materialized(t, res).Dataset.Equal(ds))
	}
	assert.Equal(t, 3, eng.Graphs())
	assert.Equal(t, 9, eng.Delays())
}
