package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/geochunk/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update    bool   // regenerate golden files
	Filter    string // scenario name substring
	Parallel  int
	GoldenDir string
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Cases  int      `json:"cases"`
	Golden string   `json:"golden"` // "match", "updated" or "none"
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run every scenario in a directory against the dispatcher with a
deterministic clock and graph IDs. Each scenario's assertions are
checked, and its snapshot is compared with <golden-dir>/<name>.golden
when that file exists.

The golden directory defaults to "golden" next to the scenarios directory.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  geochunk test ./testdata/scenarios
  geochunk test ./testdata/scenarios --filter halo
  geochunk test ./testdata/scenarios --update
  geochunk test ./testdata/scenarios --parallel 4 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios whose name contains this string")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 1, "number of scenarios to run concurrently")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden-dir", "", "golden file directory")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound,
			fmt.Sprintf("scenarios directory not found: %s", dir), nil)
	}
	scenarios, err := harness.LoadDir(dir)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalid, "failed to load scenarios", err)
	}
	scenarios = harness.Filter(scenarios, opts.Filter)
	formatter.VerboseLog("Running %d scenarios from %s", len(scenarios), dir)

	results, err := harness.RunAll(cmd.Context(), scenarios, opts.Parallel)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeCompile, "scenario execution failed", err)
	}

	goldenDir := opts.GoldenDir
	if goldenDir == "" {
		goldenDir = filepath.Join(filepath.Dir(filepath.Clean(dir)), "golden")
	}

	summary := TestResult{Scenarios: make([]ScenarioResult, len(results)), Total: len(results)}
	for i, r := range results {
		sr := ScenarioResult{Name: r.Scenario, Pass: r.Pass, Cases: len(r.Cases), Errors: r.Errors}
		if err := checkGolden(&sr, r, goldenDir, opts.Update); err != nil {
			sr.Pass = false
			sr.Errors = append(sr.Errors, err.Error())
		}
		if sr.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
		summary.Scenarios[i] = sr
	}

	if err := formatter.Emit(summary, func(w io.Writer) { writeTestText(w, summary) }); err != nil {
		return err
	}
	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", summary.Failed, summary.Total))
	}
	return nil
}

// checkGolden compares r's snapshot with its golden file, or rewrites the
// file when update is set.
func checkGolden(sr *ScenarioResult, r *harness.Result, dir string, update bool) error {
	sr.Golden = "none"
	snap, err := harness.Snapshot(r)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	path := filepath.Join(dir, r.Scenario+".golden")

	if update {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("golden update: %w", err)
		}
		if err := os.WriteFile(path, snap, 0o644); err != nil {
			return fmt.Errorf("golden update: %w", err)
		}
		sr.Golden = "updated"
		return nil
	}

	want, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("golden read: %w", err)
	}
	if !bytes.Equal(bytes.TrimSpace(want), snap) {
		return errors.New("snapshot does not match golden file (run with --update to regenerate)")
	}
	sr.Golden = "match"
	return nil
}

func writeTestText(w io.Writer, r TestResult) {
	if r.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}
	for _, s := range r.Scenarios {
		mark := "\u2713"
		if !s.Pass {
			mark = "\u2717"
		}
		switch s.Golden {
		case "updated":
			fmt.Fprintf(w, "%s %s (golden updated)\n", mark, s.Name)
		default:
			fmt.Fprintf(w, "%s %s\n", mark, s.Name)
		}
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", r.Passed, r.Failed, r.Total)
}
