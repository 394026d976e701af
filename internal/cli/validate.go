package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/geochunk/internal/transform"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool   `json:"valid"`
	Job       string `json:"job"`
	Transform string `json:"transform"`
	Halo      int    `json:"halo"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <job-file>",
		Short: "Validate a job without running it",
		Long: `Compile a CUE or YAML job against the job schema and check it for
semantic errors: undeclared dimensions, fills that do not match their
shape, chunk counts the window plan rejects and halos too narrow for
the transformation.

Exit codes:
  0 - Job is valid
  1 - Job failed to compile or validate
  2 - Command error (file not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	job, err := loadJob(path)
	if err != nil {
		return failJob(formatter, err)
	}
	formatter.VerboseLog("Compiled job %s from %s", job.Name, path)

	tr, err := transform.Build(job.Transform)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeInvalid, "invalid transform", err)
	}

	result := ValidationResult{Valid: true, Job: job.Name, Transform: tr.Name, Halo: tr.Halo}
	return formatter.Emit(result, func(w io.Writer) {
		fmt.Fprintf(w, "\u2713 job %s is valid (transform %s, halo %d)\n", result.Job, result.Transform, result.Halo)
	})
}
