package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/geochunk/internal/blocks"
	"github.com/roach88/geochunk/internal/dispatch"
	"github.com/roach88/geochunk/internal/geo"
	"github.com/roach88/geochunk/internal/window"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	Chunks int // overrides dispatch.chunks when > 0
	Buffer int // overrides dispatch.buffer when >= 0
}

// ChunkInfo is one planned chunk.
type ChunkInfo struct {
	Index int          `json:"index"`
	Range blocks.Range `json:"range"`
	Core  blocks.Range `json:"core"`
}

// PlanResult describes how a job would be chunked.
type PlanResult struct {
	Job    string      `json:"job"`
	Plan   window.Plan `json:"plan"`
	Chunks []ChunkInfo `json:"chunks"`

	// Chunked lists variables split along the plan dimension; Shared lists
	// those copied whole into every chunk.
	Chunked []string `json:"chunked"`
	Shared  []string `json:"shared"`

	// Exact reports whether the buffer covers the transformation's halo.
	Exact bool `json:"exact"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan <job-file>",
		Short: "Show chunk ranges without running",
		Long: `Resolve the chunk plan for a job: the chunked dimension, chunk size,
each chunk's halo-widened range and the core it contributes to the merged
result.

Examples:
  geochunk plan smooth.yaml
  geochunk plan smooth.yaml --chunks 8 --buffer 2 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Chunks, "chunks", 0, "override the chunk count")
	cmd.Flags().IntVar(&opts.Buffer, "buffer", -1, "override the halo buffer")

	return cmd
}

func runPlan(opts *PlanOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	job, err := loadJob(path)
	if err != nil {
		return failJob(formatter, err)
	}
	if opts.Chunks > 0 {
		job.Dispatch.Chunks = opts.Chunks
	}
	if opts.Buffer >= 0 {
		job.Dispatch.Buffer = opts.Buffer
	}

	ds, tr, err := prepare(job)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeInvalid, "failed to prepare job", err)
	}
	d, err := dispatch.New(tr.Fn, append(chunking(job.Dispatch),
		dispatch.WithLogger(opts.logger()),
	)...)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeDispatch, "invalid dispatch options", err)
	}
	plan, err := d.Plan(ds)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeDispatch, "failed to plan", err)
	}

	result := PlanResult{
		Job:     job.Name,
		Plan:    plan,
		Chunks:  make([]ChunkInfo, plan.Count),
		Chunked: geo.VarsForDims(ds, plan.Dim),
		Exact:   tr.Dim != plan.Dim || plan.Buffer >= tr.Halo,
	}
	for i := range result.Chunks {
		result.Chunks[i] = ChunkInfo{Index: i, Range: plan.Range(i), Core: plan.Core(i)}
	}
	result.Shared = []string{}
	for _, name := range ds.Variables() {
		if !slices.Contains(result.Chunked, name) {
			result.Shared = append(result.Shared, name)
		}
	}
	if result.Chunked == nil {
		result.Chunked = []string{}
	}

	return formatter.Emit(result, func(w io.Writer) { writePlanText(w, result) })
}

func writePlanText(w io.Writer, r PlanResult) {
	p := r.Plan
	fmt.Fprintf(w, "Job %s: %s=%d in %d chunks of %d, buffer %d\n",
		r.Job, p.Dim, p.Size, p.Count, p.ChunkSize, p.Buffer)
	for _, c := range r.Chunks {
		fmt.Fprintf(w, "  chunk %d: range [%d, %d) core [%d, %d)\n",
			c.Index, c.Range.Lo, c.Range.Hi, c.Core.Lo, c.Core.Hi)
	}
	fmt.Fprintf(w, "Chunked variables: %v\n", r.Chunked)
	fmt.Fprintf(w, "Shared variables: %v\n", r.Shared)
	if !r.Exact {
		fmt.Fprintln(w, "Warning: buffer is narrower than the transformation halo; chunk edges will differ from a serial run")
	}
}
