package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/geochunk/internal/dataset"
	"github.com/roach88/geochunk/internal/dispatch"
	"github.com/roach88/geochunk/internal/engine"
	"github.com/roach88/geochunk/internal/ir"
	"github.com/roach88/geochunk/internal/store"
	"github.com/roach88/geochunk/internal/window"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	TraceDB string
	Workers int
	Compute bool

	// IDGenerator overrides the graph ID source (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator engine.IDGenerator
}

// RunResult summarizes one dispatch.
type RunResult struct {
	Job               string      `json:"job"`
	GraphID           string      `json:"graph_id"`
	Plan              window.Plan `json:"plan"`
	Status            string      `json:"status"`
	InputFingerprint  string      `json:"input_fingerprint"`
	OutputFingerprint string      `json:"output_fingerprint,omitempty"`
	Output            []string    `json:"output,omitempty"`
	Tasks             []string    `json:"tasks"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <job-file>",
		Short: "Dispatch a job over its chunks",
		Long: `Build the job's input dataset, split it into halo-buffered chunks and
run the transformation on every chunk in parallel.

With eager dispatch off the task graph is only built; pass --compute to
run it anyway. When a trace database is configured every task event and
a summary of the run are recorded for the trace command.

Examples:
  geochunk run smooth.yaml
  geochunk run smooth.yaml --trace-db ./trace.db --workers 4`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.TraceDB, "trace-db", "", "record task events to this SQLite database")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "worker pool size (default from config, then one per core)")
	cmd.Flags().BoolVar(&opts.Compute, "compute", false, "compute deferred results")

	return cmd
}

func runJob(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	job, err := loadJob(path)
	if err != nil {
		return failJob(formatter, err)
	}
	ds, tr, err := prepare(job)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeInvalid, "failed to prepare job", err)
	}
	inputFP, err := ds.Fingerprint()
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "failed to fingerprint input", err)
	}

	gen := opts.IDGenerator
	if gen == nil {
		gen = engine.UUIDv7Generator{}
	}
	graphID := gen.Generate()

	tasks := &taskNames{}
	engOpts := []engine.LocalOption{
		engine.WithIDGenerator(engine.NewFixedGenerator(graphID)),
		engine.WithObserver(tasks),
		engine.WithLogger(logger),
	}
	if workers := opts.workers(job.Dispatch.Workers); workers > 0 {
		engOpts = append(engOpts, engine.WithWorkers(workers))
	}

	var st *store.Store
	if dbPath := opts.traceDB(); dbPath != "" {
		logger.Debug("opening trace database", "path", dbPath)
		st, err = store.Open(dbPath, store.WithLogger(logger))
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open trace database", err)
		}
		defer st.Close()
		engOpts = append(engOpts, engine.WithObserver(st))
	}

	d, err := dispatch.New(tr.Fn, append(chunking(job.Dispatch),
		dispatch.WithName(job.Name),
		dispatch.WithMerge(job.Dispatch.MergeEnabled()),
		dispatch.WithEager(job.Dispatch.EagerEnabled()),
		dispatch.WithEngine(engine.NewLocal(engOpts...)),
		dispatch.WithLogger(logger),
	)...)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeDispatch, "invalid dispatch options", err)
	}

	result := RunResult{Job: job.Name, GraphID: graphID, InputFingerprint: inputFP}
	result.Plan, err = d.Plan(ds)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeDispatch, "failed to plan", err)
	}

	logger.Info("dispatching", "job", job.Name, "graph_id", graphID,
		"dim", result.Plan.Dim, "chunks", result.Plan.Count, "buffer", result.Plan.Buffer)

	var out *dispatch.Materialized
	res, err := d.Invoke(ctx, ds)
	if err == nil {
		switch r := res.(type) {
		case *dispatch.Materialized:
			out = r
		case *dispatch.Deferred:
			if opts.Compute {
				out, err = r.Compute(ctx)
			}
		}
	}
	result.Tasks = tasks.list()

	switch {
	case err != nil:
		result.Status = store.StatusFailed
	case out == nil:
		result.Status = store.StatusDeferred
	default:
		result.Status = store.StatusOK
		result.Output, result.OutputFingerprint, err = describe(out)
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeGeneric, "failed to fingerprint output", err)
		}
	}

	if st != nil {
		if recErr := recordRun(ctx, st, result, err); recErr != nil {
			return formatter.Fail(ExitFailure, ErrCodeStore, "failed to record run", recErr)
		}
	}

	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeDispatch, fmt.Sprintf("job %s failed", job.Name), err)
	}
	logger.Info("dispatch finished", "job", job.Name, "graph_id", graphID, "status", result.Status)

	return formatter.Emit(result, func(w io.Writer) { writeRunText(w, result) })
}

func (o *RunOptions) workers(fromJob int) int {
	switch {
	case o.Workers > 0:
		return o.Workers
	case fromJob > 0:
		return fromJob
	default:
		return o.Config.Workers
	}
}

func (o *RunOptions) traceDB() string {
	if o.TraceDB != "" {
		return o.TraceDB
	}
	return o.Config.TraceDB
}

// describe returns the printable form and fingerprint of a result. Unmerged
// parts are fingerprinted in chunk order.
func describe(m *dispatch.Materialized) ([]string, string, error) {
	parts := m.Parts
	if m.Dataset != nil {
		parts = []*dataset.Dataset{m.Dataset}
	}
	lines := make([]string, len(parts))
	fps := make([]string, len(parts))
	for i, p := range parts {
		fp, err := p.Fingerprint()
		if err != nil {
			return nil, "", err
		}
		lines[i], fps[i] = p.String(), fp
	}
	if len(fps) == 1 {
		return lines, fps[0], nil
	}
	combined, err := ir.Digest(ir.DomainDataset, ir.IRObject{"parts": ir.Strings(fps)})
	return lines, combined, err
}

// recordRun writes the run summary and surfaces any event write failure.
func recordRun(ctx context.Context, st *store.Store, r RunResult, runErr error) error {
	run := store.Run{
		GraphID:           r.GraphID,
		Job:               r.Job,
		Plan:              r.Plan,
		InputFingerprint:  r.InputFingerprint,
		OutputFingerprint: r.OutputFingerprint,
		Status:            r.Status,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	// Cancellation must not lose the summary of a run that got this far.
	if err := st.WriteRun(context.WithoutCancel(ctx), run); err != nil {
		return err
	}
	return st.Err()
}

func writeRunText(w io.Writer, r RunResult) {
	fmt.Fprintf(w, "Job %s (graph %s): %s\n", r.Job, r.GraphID, r.Status)
	fmt.Fprintf(w, "  plan: %s=%d in %d chunks of %d, buffer %d\n",
		r.Plan.Dim, r.Plan.Size, r.Plan.Count, r.Plan.ChunkSize, r.Plan.Buffer)
	fmt.Fprintf(w, "  tasks: %d\n", len(r.Tasks))
	fmt.Fprintf(w, "  input: %s\n", r.InputFingerprint)
	for _, line := range r.Output {
		fmt.Fprintf(w, "  output: %s\n", line)
	}
	if r.OutputFingerprint != "" {
		fmt.Fprintf(w, "  output fingerprint: %s\n", r.OutputFingerprint)
	}
}

// taskNames records the names of delayed tasks in delay order.
type taskNames struct {
	mu    sync.Mutex
	names []string
}

func (t *taskNames) Observe(ev engine.TaskEvent) {
	if ev.Kind != engine.EventDelayed {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.names = append(t.names, ev.TaskName)
}

func (t *taskNames) list() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.names == nil {
		return []string{}
	}
	return append([]string(nil), t.names...)
}
