package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scenariosDir = filepath.Join("..", "harness", "testdata", "scenarios")

func TestTestCommand_UpdateThenMatch(t *testing.T) {
	golden := t.TempDir()

	cmd := NewTestCommand(&RootOptions{Format: "json"})
	out, err := execute(t, cmd, scenariosDir, "--golden-dir", golden, "--update")
	require.NoError(t, err, out)

	var updated TestResult
	decodeData(t, out, &updated)
	require.Equal(t, 5, updated.Total)
	assert.Equal(t, 5, updated.Passed)
	for _, s := range updated.Scenarios {
		assert.Equal(t, "updated", s.Golden, s.Name)
		assert.FileExists(t, filepath.Join(golden, s.Name+".golden"))
	}

	cmd = NewTestCommand(&RootOptions{Format: "json"})
	out, err = execute(t, cmd, scenariosDir, "--golden-dir", golden, "--parallel", "3")
	require.NoError(t, err, out)

	var matched TestResult
	decodeData(t, out, &matched)
	assert.Equal(t, 5, matched.Passed)
	for _, s := range matched.Scenarios {
		assert.Equal(t, "match", s.Golden, s.Name)
	}
}

func TestTestCommand_GoldenMismatch(t *testing.T) {
	golden := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(golden, "halo_ranges.golden"), []byte(`{"stale":true}`), 0o644))

	cmd := NewTestCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, scenariosDir, "--golden-dir", golden, "--filter", "halo_ranges")

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "\u2717 halo_ranges")
	assert.Contains(t, out, "snapshot does not match golden file")
}

func TestTestCommand_Filter(t *testing.T) {
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, scenariosDir, "--golden-dir", t.TempDir(), "--filter", "halo")
	require.NoError(t, err, out)

	assert.Contains(t, out, "\u2713 halo_ranges\n")
	assert.Contains(t, out, "\u2713 halo_too_wide\n")
	assert.NotContains(t, out, "grid_deferred")
	assert.Contains(t, out, "2 passed, 0 failed, 2 total")
}

func TestTestCommand_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	scenario := `name: wrong_ranges
description: Expects ranges without a halo
job:
  name: smooth
  dataset:
    dims: [{name: lat, size: 9}]
    variables: [{name: v, dims: [lat]}]
  dispatch: {dim: lat, chunks: 3, buffer: 1}
  transform: {name: identity}
assertions:
  - type: chunk_ranges
    ranges: [[0, 3], [3, 6], [6, 9]]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong_ranges.yaml"), []byte(scenario), 0o644))

	cmd := NewTestCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, dir, "--golden-dir", t.TempDir())

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "\u2717 wrong_ranges")
	assert.Contains(t, out, "0 passed, 1 failed, 1 total")
}

func TestTestCommand_EmptyDir(t *testing.T) {
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", out)
}

func TestTestCommand_MissingDir(t *testing.T) {
	cmd := NewTestCommand(&RootOptions{Format: "json"})
	out, err := execute(t, cmd, filepath.Join(t.TempDir(), "nope"))

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, ErrCodeNotFound, decodeError(t, out).Code)
}
