package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/geochunk/internal/ir"
	"github.com/roach88/geochunk/internal/window"
)

// Snapshot captures the deterministic part of a scenario result: plans,
// ranges, delay traces and output schemas. Values and task keys are left
// out so golden files stay readable.
func Snapshot(result *Result) ([]byte, error) {
	cases := make([]any, len(result.Cases))
	for i, c := range result.Cases {
		m := map[string]any{
			"name":  c.Name,
			"pass":  c.Pass,
			"tasks": tasksToCanonical(c.Tasks),
		}
		if c.Plan != nil {
			m["plan"] = planToCanonical(*c.Plan)
			m["ranges"] = pairsToCanonical(pairs(c.Plan.Ranges()))
			m["cores"] = pairsToCanonical(pairs(c.Plan.Cores()))
		}
		if c.Output != "" {
			m["output"] = c.Output
		}
		if c.ErrorCode != "" {
			m["error_code"] = c.ErrorCode
		}
		cases[i] = m
	}
	return ir.MarshalCanonical(map[string]any{
		"scenario": result.Scenario,
		"cases":    cases,
	})
}

func planToCanonical(p window.Plan) map[string]any {
	return map[string]any{
		"dim":        p.Dim,
		"size":       p.Size,
		"count":      p.Count,
		"buffer":     p.Buffer,
		"chunk_size": p.ChunkSize,
	}
}

func tasksToCanonical(tasks []TaskTrace) []any {
	out := make([]any, len(tasks))
	for i, t := range tasks {
		out[i] = map[string]any{
			"name": t.Name,
			"seq":  t.Seq,
			"deps": t.Deps,
		}
	}
	return out
}

func pairsToCanonical(ps [][]int) []any {
	out := make([]any, len(ps))
	for i, p := range ps {
		out[i] = p
	}
	return out
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the snapshot of an existing result against a golden
// file without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
