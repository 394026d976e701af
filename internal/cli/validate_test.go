package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidJob(t *testing.T) {
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, filepath.Join("testdata", "smooth.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "\u2713 job smooth is valid (transform moving_mean, halo 2)\n", out)
}

func TestValidateValidJobJSON(t *testing.T) {
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	out, err := execute(t, cmd, filepath.Join("testdata", "smooth.yaml"))
	require.NoError(t, err)

	var result ValidationResult
	decodeData(t, out, &result)
	assert.Equal(t, ValidationResult{Valid: true, Job: "smooth", Transform: "moving_mean", Halo: 2}, result)
}

func TestValidateCUEJob(t *testing.T) {
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, filepath.Join("..", "compiler", "testdata", "grid.cue"))
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
}

func TestValidateNonExistentFile(t *testing.T) {
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, filepath.Join("testdata", "missing.yaml"))

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]")
}

func TestValidateInvalidJob(t *testing.T) {
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, filepath.Join("testdata", "invalid.yaml"))

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E004]: job bad-dims is invalid")
	assert.Contains(t, out, `  [E104] dataset.variables[0].dims: dimension "depth" is not declared`)
}

func TestValidateInvalidJobJSON(t *testing.T) {
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	out, err := execute(t, cmd, filepath.Join("testdata", "invalid.yaml"))
	require.Error(t, err)

	cliErr := decodeError(t, out)
	assert.Equal(t, ErrCodeInvalid, cliErr.Code)

	issues, ok := cliErr.Details.([]any)
	require.True(t, ok, "details should be the issue list, got %T", cliErr.Details)
	require.Len(t, issues, 1)
	issue := issues[0].(map[string]any)
	assert.Equal(t, "E104", issue["code"])
	assert.Equal(t, "dataset.variables[0].dims", issue["field"])
}

func TestValidateSyntaxError(t *testing.T) {
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	out, err := execute(t, cmd, filepath.Join("testdata", "syntax.cue"))

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E003]: job failed to compile")
}

func TestValidateMissingArg(t *testing.T) {
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	_, err := execute(t, cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}
