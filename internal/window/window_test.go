package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/geochunk/internal/blocks"
	"github.com/roach88/geochunk/internal/chunkerr"
	"github.com/roach88/geochunk/internal/dataset"
	"github.com/roach88/geochunk/internal/ndarray"
)

func line(t *testing.T, dim string, n int) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New(
		[]dataset.Dim{{Name: "band", Size: 2}, {Name: dim, Size: n}},
		dataset.Variable{Name: "v", Dims: []string{dim}, Data: ndarray.Arange(n)},
		dataset.Variable{Name: "w", Dims: []string{"band", dim}, Data: ndarray.Arange(2, n)},
		dataset.Variable{Name: "label", Dims: []string{"band"}, Data: ndarray.Arange(2)},
	)
	require.NoError(t, err)
	return ds
}

func TestPlan_HaloRanges(t *testing.T) {
	p, err := NewPlan("x", 10, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, p.ChunkSize)
	assert.Equal(t, []blocks.Range{{Lo: 0, Hi: 6}, {Lo: 2, Hi: 10}, {Lo: 6, Hi: 10}}, p.Ranges())
	assert.Equal(t, []blocks.Range{{Lo: 0, Hi: 4}, {Lo: 4, Hi: 8}, {Lo: 8, Hi: 10}}, p.Cores())
}

func TestPlan_EmptyTrailingChunk(t *testing.T) {
	p, err := NewPlan("x", 5, 4, 0)
	require.NoError(t, err)
	assert.Equal(t, []blocks.Range{{Lo: 0, Hi: 2}, {Lo: 2, Hi: 4}, {Lo: 4, Hi: 5}, {Lo: 5, Hi: 5}}, p.Ranges())
	assert.Equal(t, []blocks.Range{{Lo: 0, Hi: 2}, {Lo: 2, Hi: 4}, {Lo: 4, Hi: 5}, {Lo: 5, Hi: 5}}, p.Cores())
}

func TestPlan_CoresPartitionDimension(t *testing.T) {
	for n := 1; n < 30; n++ {
		for count := 1; count < 8; count++ {
			cs := (n + count - 1) / count
			for buffer := 0; buffer < cs; buffer++ {
				p, err := NewPlan("x", n, count, buffer)
				require.NoError(t, err)
				pos := 0
				for i, core := range p.Cores() {
					r := p.Range(i)
					assert.Equal(t, pos, core.Lo)
					assert.LessOrEqual(t, r.Lo, core.Lo)
					assert.GreaterOrEqual(t, r.Hi, core.Hi)
					pos = core.Hi
				}
				assert.Equal(t, n, pos)
			}
		}
	}
}

func TestNewPlan_Configuration(t *testing.T) {
	tests := []struct {
		name                string
		size, count, buffer int
	}{
		{"zero count", 10, 0, 0},
		{"negative buffer", 10, 2, -1},
		{"buffer equals chunk size", 10, 3, 4},
		{"buffer exceeds chunk size", 4, 4, 2},
		{"empty dimension", 0, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPlan("lat", tt.size, tt.count, tt.buffer)
			require.Error(t, err)
			assert.True(t, chunkerr.IsConfiguration(err))

			var ce *chunkerr.Error
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, "lat", ce.Dim)
		})
	}
}

func TestSplit_MissingDimension(t *testing.T) {
	_, _, err := Split(line(t, "x", 4), "y", 2, 0)
	assert.True(t, chunkerr.IsDimensionNotFound(err))
}

func TestSplit_StreamIsSinglePass(t *testing.T) {
	chunks, _, err := Split(line(t, "x", 10), "x", 3, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, chunks.Len())

	var sizes []int
	for i, sub := range chunks.All() {
		assert.Equal(t, len(sizes), i)
		n, err := sub.Size("x")
		require.NoError(t, err)
		sizes = append(sizes, n)
	}
	assert.Equal(t, []int{6, 8, 4}, sizes)

	_, _, ok := chunks.Next()
	assert.False(t, ok)
	rest, err := chunks.Collect()
	require.NoError(t, err)
	assert.Empty(t, rest)
}

func TestSplit_ChunkValues(t *testing.T) {
	chunks, _, err := Split(line(t, "x", 10), "x", 3, 2)
	require.NoError(t, err)
	parts, err := chunks.Collect()
	require.NoError(t, err)
	require.Len(t, parts, 3)

	v, ok := parts[1].Variable("v")
	require.True(t, ok)
	assert.Equal(t, []float64{2, 3, 4, 5, 6, 7, 8, 9}, v.Data.Values())
}

func TestRoundTrip(t *testing.T) {
	ds := line(t, "x", 10)
	chunks, plan, err := Split(ds, "x", 3, 2)
	require.NoError(t, err)
	parts, err := chunks.Collect()
	require.NoError(t, err)

	merged, err := Merge(parts, plan)
	require.NoError(t, err)
	assert.True(t, merged.Equal(ds))
}

func TestRoundTrip_Grid(t *testing.T) {
	for n := 1; n < 20; n++ {
		for count := 1; count < 7; count++ {
			cs := (n + count - 1) / count
			for buffer := 0; buffer < cs; buffer++ {
				ds := line(t, "x", n)
				chunks, plan, err := Split(ds, "x", count, buffer)
				require.NoError(t, err)
				parts, err := chunks.Collect()
				require.NoError(t, err)
				merged, err := Merge(parts, plan)
				require.NoError(t, err, "n=%d count=%d buffer=%d", n, count, buffer)
				assert.True(t, merged.Equal(ds), "n=%d count=%d buffer=%d", n, count, buffer)
			}
		}
	}
}

func TestMerge_LengthMismatch(t *testing.T) {
	chunks, plan, err := Split(line(t, "x", 10), "x", 3, 2)
	require.NoError(t, err)
	parts, err := chunks.Collect()
	require.NoError(t, err)

	_, err = Merge(parts[:2], plan)
	require.Error(t, err)
	assert.True(t, chunkerr.IsShapeMismatch(err))

	var ce *chunkerr.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "x", ce.Dim)
	assert.Equal(t, 3, ce.Expected)
	assert.Equal(t, 2, ce.Actual)
}

func TestMerge_ExtentMismatch(t *testing.T) {
	ds := line(t, "x", 10)
	chunks, plan, err := Split(ds, "x", 3, 2)
	require.NoError(t, err)
	parts, err := chunks.Collect()
	require.NoError(t, err)

	short, err := parts[1].ISel("x", 0, 5)
	require.NoError(t, err)
	parts[1] = short

	_, err = Merge(parts, plan)
	assert.True(t, chunkerr.IsShapeMismatch(err))
}

func TestMerge_SchemaMismatch(t *testing.T) {
	chunks, plan, err := Split(line(t, "x", 4), "x", 2, 0)
	require.NoError(t, err)
	parts, err := chunks.Collect()
	require.NoError(t, err)
	parts[1] = parts[1].Drop("w")

	_, err = Merge(parts, plan)
	assert.True(t, chunkerr.IsShapeMismatch(err))
}

func TestPlanSplit_SizeMismatch(t *testing.T) {
	p, err := NewPlan("x", 8, 2, 0)
	require.NoError(t, err)
	_, err = p.Split(line(t, "x", 4))
	assert.True(t, chunkerr.IsShapeMismatch(err))
}
