package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: identity over a line
job:
  name: line
  dataset:
    dims: [{name: x, size: 4}]
    variables: [{name: v, dims: [x]}]
  transform: {name: identity}
assertions:
  - type: round_trip
`

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)
	assert.Equal(t, "identity over a line", s.Description)
	assert.False(t, s.Job.IsZero())
	assert.Empty(t, s.JobFile)
	require.Len(t, s.Assertions, 1)
	assert.Equal(t, AssertRoundTrip, s.Assertions[0].Type)
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "flow_token: x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "description: d\njob_file: j.cue\nassertions: [{type: round_trip}]\n",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: n\njob_file: j.cue\nassertions: [{type: round_trip}]\n",
			want: "description is required",
		},
		{
			name: "no job",
			yaml: "name: n\ndescription: d\nassertions: [{type: round_trip}]\n",
			want: "job or job_file is required",
		},
		{
			name: "both jobs",
			yaml: "name: n\ndescription: d\njob_file: j.cue\njob: {name: x}\nassertions: [{type: round_trip}]\n",
			want: "mutually exclusive",
		},
		{
			name: "scalar job",
			yaml: "name: n\ndescription: d\njob: oops\nassertions: [{type: round_trip}]\n",
			want: "job must be a mapping",
		},
		{
			name: "bad matrix key",
			yaml: "name: n\ndescription: d\njob_file: j.cue\nmatrix: {radius: [1]}\nassertions: [{type: round_trip}]\n",
			want: `matrix key "radius"`,
		},
		{
			name: "empty matrix values",
			yaml: "name: n\ndescription: d\njob_file: j.cue\nmatrix: {chunks: []}\nassertions: [{type: round_trip}]\n",
			want: "has no values",
		},
		{
			name: "no assertions",
			yaml: "name: n\ndescription: d\njob_file: j.cue\n",
			want: "assertions list is required",
		},
		{
			name: "unknown assertion",
			yaml: "name: n\ndescription: d\njob_file: j.cue\nassertions: [{type: trace_contains}]\n",
			want: `unknown assertion type "trace_contains"`,
		},
		{
			name: "error_code without code",
			yaml: "name: n\ndescription: d\njob_file: j.cue\nassertions: [{type: error_code}]\n",
			want: "error_code requires code",
		},
		{
			name: "chunk_ranges without pairs",
			yaml: "name: n\ndescription: d\njob_file: j.cue\nassertions: [{type: chunk_ranges}]\n",
			want: "requires ranges or cores",
		},
		{
			name: "chunk_ranges bad pair",
			yaml: "name: n\ndescription: d\njob_file: j.cue\nassertions: [{type: chunk_ranges, ranges: [[0, 1, 2]]}]\n",
			want: "[lo, hi] pairs",
		},
		{
			name: "task_order without tasks",
			yaml: "name: n\ndescription: d\njob_file: j.cue\nassertions: [{type: task_order}]\n",
			want: "task_order requires tasks",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_ErrorNamesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\n"), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestLoadDir(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)

	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.Name
	}
	assert.Equal(t, []string{
		"grid_deferred",
		"halo_ranges",
		"halo_too_wide",
		"moving_mean_matrix",
		"transform_failure",
	}, names)
}

func TestFilter(t *testing.T) {
	scenarios := []*Scenario{{Name: "halo_ranges"}, {Name: "grid"}, {Name: "halo_too_wide"}}

	assert.Len(t, Filter(scenarios, ""), 3)

	got := Filter(scenarios, "halo")
	require.Len(t, got, 2)
	assert.Equal(t, "halo_ranges", got[0].Name)
	assert.Equal(t, "halo_too_wide", got[1].Name)

	assert.Empty(t, Filter(scenarios, "nothing"))
}

func TestJobSource_FileRelativeToScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/grid_deferred.yaml")
	require.NoError(t, err)

	filename, src, err := s.jobSource()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "jobs", "grid.cue"), filename)
	assert.Contains(t, string(src), "grid-deferred")
}

func TestJobSource_Inline(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	filename, src, err := s.jobSource()
	require.NoError(t, err)
	assert.Equal(t, "minimal.yaml", filename)
	assert.Contains(t, string(src), "name: line")
}
