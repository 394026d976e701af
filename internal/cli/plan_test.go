package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/geochunk/internal/blocks"
	"github.com/roach88/geochunk/internal/window"
)

func TestPlanText(t *testing.T) {
	cmd := NewPlanCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, filepath.Join("testdata", "smooth.yaml"))
	require.NoError(t, err)

	want := `Job smooth: lat=9 in 3 chunks of 3, buffer 2
  chunk 0: range [0, 5) core [0, 3)
  chunk 1: range [1, 8) core [3, 6)
  chunk 2: range [4, 9) core [6, 9)
Chunked variables: [temp]
Shared variables: [step]
`
	assert.Equal(t, want, out)
}

func TestPlanJSON(t *testing.T) {
	cmd := NewPlanCommand(&RootOptions{Format: "json"})
	out, err := execute(t, cmd, filepath.Join("testdata", "smooth.yaml"))
	require.NoError(t, err)

	var result PlanResult
	decodeData(t, out, &result)
	assert.Equal(t, "smooth", result.Job)
	assert.Equal(t, window.Plan{Dim: "lat", Size: 9, Count: 3, Buffer: 2, ChunkSize: 3}, result.Plan)
	require.Len(t, result.Chunks, 3)
	assert.Equal(t, ChunkInfo{Index: 1, Range: blocks.Range{Lo: 1, Hi: 8}, Core: blocks.Range{Lo: 3, Hi: 6}}, result.Chunks[1])
	assert.Equal(t, []string{"temp"}, result.Chunked)
	assert.Equal(t, []string{"step"}, result.Shared)
	assert.True(t, result.Exact)
}

func TestPlanOverrides(t *testing.T) {
	cmd := NewPlanCommand(&RootOptions{Format: "json"})
	out, err := execute(t, cmd, filepath.Join("testdata", "smooth.yaml"), "--chunks", "2", "--buffer", "1")
	require.NoError(t, err)

	var result PlanResult
	decodeData(t, out, &result)
	assert.Equal(t, window.Plan{Dim: "lat", Size: 9, Count: 2, Buffer: 1, ChunkSize: 5}, result.Plan)
	assert.Equal(t, blocks.Range{Lo: 4, Hi: 9}, result.Chunks[1].Range)
	assert.Equal(t, blocks.Range{Lo: 5, Hi: 9}, result.Chunks[1].Core)
	assert.False(t, result.Exact, "buffer 1 is narrower than the radius-2 halo")
}

func TestPlanNarrowBufferWarning(t *testing.T) {
	cmd := NewPlanCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, filepath.Join("testdata", "smooth.yaml"), "--buffer", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "Warning: buffer is narrower than the transformation halo")
}

func TestPlanBufferTooWide(t *testing.T) {
	cmd := NewPlanCommand(&RootOptions{Format: "json"})
	out, err := execute(t, cmd, filepath.Join("testdata", "smooth.yaml"), "--buffer", "3")

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "CONFIGURATION", decodeError(t, out).Code)
}

func TestPlanInvalidJob(t *testing.T) {
	cmd := NewPlanCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, filepath.Join("testdata", "invalid.yaml"))

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E004]")
}
