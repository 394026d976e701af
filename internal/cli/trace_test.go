package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordTraces runs the smooth and failing jobs into a fresh trace
// database and returns its path.
func recordTraces(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "trace.db")

	_, err := execute(t, newTestRunCommand("json", "graph-aaa1"),
		filepath.Join("testdata", "smooth.yaml"), "--trace-db", dbPath)
	require.NoError(t, err)

	_, err = execute(t, newTestRunCommand("json", "graph-bbb1"),
		filepath.Join("testdata", "failing.yaml"), "--trace-db", dbPath)
	require.Error(t, err)

	return dbPath
}

func TestTraceListGraphs(t *testing.T) {
	dbPath := recordTraces(t)

	out, err := execute(t, NewTraceCommand(&RootOptions{Format: "json"}), "--db", dbPath)
	require.NoError(t, err, out)

	var list GraphList
	decodeData(t, out, &list)
	require.Len(t, list.Graphs, 2)

	byID := map[string]int{}
	for i, g := range list.Graphs {
		byID[g.ID] = i
	}
	smooth := list.Graphs[byID["graph-aaa1"]]
	assert.Equal(t, "smooth", smooth.Name)
	assert.Equal(t, 4, smooth.Tasks)
	assert.Equal(t, 0, smooth.Failed)

	broken := list.Graphs[byID["graph-bbb1"]]
	assert.Equal(t, "broken", broken.Name)
	assert.Positive(t, broken.Failed)
}

func TestTraceListText(t *testing.T) {
	dbPath := recordTraces(t)

	out, err := execute(t, NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "graph-aaa1  smooth")
	assert.Contains(t, out, "graph-bbb1  broken")
}

func TestTraceSinceFuture(t *testing.T) {
	dbPath := recordTraces(t)

	out, err := execute(t, NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--since", "2999-01-01")
	require.NoError(t, err)
	assert.Equal(t, "No graphs recorded.\n", out)
}

func TestTraceGraphTimeline(t *testing.T) {
	dbPath := recordTraces(t)

	out, err := execute(t, NewTraceCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--graph", "graph-a")
	require.NoError(t, err, out)

	var result TraceResult
	decodeData(t, out, &result)
	assert.Equal(t, "graph-aaa1", result.GraphID)
	assert.Equal(t, "smooth", result.Graph)
	require.NotNil(t, result.Run)
	assert.Equal(t, "ok", result.Run.Status)
	assert.Equal(t, 3, result.Run.Plan.Count)

	assert.Len(t, result.Timeline, 12)
	assert.Equal(t, TraceStats{TotalEvents: 12, Tasks: 4, Completed: 4, IsComplete: true}, result.Stats)

	// The merge task's dependencies are shown by task name.
	for _, ev := range result.Timeline {
		if ev.Task == "merge" && ev.Kind == "delayed" {
			assert.Equal(t, []string{"chunk-0", "chunk-1", "chunk-2"}, ev.Deps)
		}
	}
}

func TestTraceGraphText(t *testing.T) {
	dbPath := recordTraces(t)

	out, err := execute(t, NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--graph", "graph-aaa1")
	require.NoError(t, err)
	assert.Contains(t, out, "Graph graph-aaa1 (smooth)\n")
	assert.Contains(t, out, "Run: job smooth, status ok, lat=9 in 3 chunks\n")
	assert.Contains(t, out, "Timeline:\n")
	assert.Contains(t, out, "Stats: 12 events, 4 tasks, 4 completed, 0 failed\n")
}

func TestTraceWhere(t *testing.T) {
	dbPath := recordTraces(t)

	out, err := execute(t, NewTraceCommand(&RootOptions{Format: "json"}),
		"--db", dbPath, "--graph", "graph-aaa1", "--where", "task_name=merge")
	require.NoError(t, err, out)

	var result TraceResult
	decodeData(t, out, &result)
	require.Len(t, result.Timeline, 3)
	for _, ev := range result.Timeline {
		assert.Equal(t, "merge", ev.Task)
	}
	// Stats always cover the whole graph.
	assert.Equal(t, 12, result.Stats.TotalEvents)
}

func TestTraceFailed(t *testing.T) {
	dbPath := recordTraces(t)

	out, err := execute(t, NewTraceCommand(&RootOptions{Format: "json"}),
		"--db", dbPath, "--graph", "graph-bbb1", "--failed")
	require.NoError(t, err, out)

	var result TraceResult
	decodeData(t, out, &result)
	require.NotEmpty(t, result.Timeline)
	for _, ev := range result.Timeline {
		assert.Equal(t, "failed", ev.Kind)
		assert.Contains(t, ev.Error, "TASK_EXECUTION")
	}
	require.NotNil(t, result.Run)
	assert.Equal(t, "failed", result.Run.Status)
	assert.False(t, result.Stats.IsComplete)
}

func TestTraceFailedNone(t *testing.T) {
	dbPath := recordTraces(t)

	out, err := execute(t, NewTraceCommand(&RootOptions{Format: "json"}),
		"--db", dbPath, "--graph", "graph-aaa1", "--failed")
	require.NoError(t, err, out)

	var result TraceResult
	decodeData(t, out, &result)
	assert.Empty(t, result.Timeline)
}

func TestTraceErrors(t *testing.T) {
	dbPath := recordTraces(t)

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"ambiguous prefix", []string{"--db", dbPath, "--graph", "graph-"}, ErrCodeFlags},
		{"unknown graph", []string{"--db", dbPath, "--graph", "nope"}, ErrCodeNotFound},
		{"malformed where", []string{"--db", dbPath, "--where", "task_name"}, ErrCodeFlags},
		{"unknown where field", []string{"--db", dbPath, "--where", "color=red"}, ErrCodeFlags},
		{"bad kind", []string{"--db", dbPath, "--where", "kind=exploded"}, ErrCodeFlags},
		{"bad since", []string{"--db", dbPath, "--since", "not a date"}, ErrCodeFlags},
		{"no database", nil, ErrCodeFlags},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, NewTraceCommand(&RootOptions{Format: "json"}), tt.args...)

			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Equal(t, tt.code, decodeError(t, out).Code)
		})
	}
}
