package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/geochunk/internal/window"
)

// Golden files are canonical JSON. Regenerate with:
//
//	go test ./internal/harness -run TestGolden -update
func TestGolden_Scenarios(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestSnapshot_Canonical(t *testing.T) {
	plan, err := window.NewPlan("x", 4, 2, 1)
	require.NoError(t, err)

	result := NewResult("snap")
	result.AddCase(CaseResult{
		Name:  "snap",
		Pass:  true,
		Plan:  &plan,
		Tasks: []TaskTrace{{Name: "chunk-0", Seq: 1, Deps: []string{}}},
	})
	result.AddCase(CaseResult{
		Name:      "snap[chunks=9]",
		ErrorCode: "CONFIGURATION",
		Tasks:     []TaskTrace{},
		Errors:    []string{"boom"},
	})

	data, err := Snapshot(result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"cases":[{"cores":[[0,2],[2,4]],"name":"snap","pass":true,`+
			`"plan":{"buffer":1,"chunk_size":2,"count":2,"dim":"x","size":4},`+
			`"ranges":[[0,3],[1,4]],"tasks":[{"deps":[],"name":"chunk-0","seq":1}]},`+
			`{"error_code":"CONFIGURATION","name":"snap[chunks=9]","pass":false,"tasks":[]}],`+
			`"scenario":"snap"}`,
		string(data))

	assert.False(t, result.Pass)
	assert.Equal(t, []string{"snap[chunks=9]: boom"}, result.Errors)
}
