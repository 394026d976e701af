package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/geochunk/internal/engine"
	"github.com/roach88/geochunk/internal/geo"
	"github.com/roach88/geochunk/internal/ir"
	"github.com/roach88/geochunk/internal/queryir"
	"github.com/roach88/geochunk/internal/store"
	"github.com/roach88/geochunk/internal/window"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Graph    string // graph ID or unique prefix
	Since    string
	Failed   bool
	Where    []string // field=value event filters
}

// TraceEvent is one task event in a graph timeline.
type TraceEvent struct {
	Seq        int64    `json:"seq"`
	Kind       string   `json:"kind"`
	Task       string   `json:"task"`
	Key        string   `json:"key"`
	Deps       []string `json:"deps,omitempty"`
	DurationMS float64  `json:"duration_ms,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// RunSummary is the recorded outcome of the run that built a graph.
type RunSummary struct {
	Job               string      `json:"job"`
	Plan              window.Plan `json:"plan"`
	Status            string      `json:"status"`
	InputFingerprint  string      `json:"input_fingerprint"`
	OutputFingerprint string      `json:"output_fingerprint,omitempty"`
	Error             string      `json:"error,omitempty"`
}

// TraceResult is the timeline of one graph.
type TraceResult struct {
	GraphID  string       `json:"graph_id"`
	Graph    string       `json:"graph"`
	Run      *RunSummary  `json:"run,omitempty"`
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int  `json:"total_events"`
	Tasks       int  `json:"tasks"`
	Completed   int  `json:"completed"`
	Failed      int  `json:"failed"`
	IsComplete  bool `json:"is_complete"`
}

// GraphList is the listing shown when no graph is selected.
type GraphList struct {
	Graphs []store.GraphSummary `json:"graphs"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded task graphs",
		Long: `Query a trace database written by "geochunk run --trace-db".

Without --graph, lists recorded graphs, oldest first. With --graph, shows
the task timeline of the graph whose ID starts with the given prefix,
together with the recorded run summary.

--where filters the timeline by event field (graph_id, seq, kind, task_key,
task_name, task_seq); repeated filters must all match.

--since accepts most date formats ("2026-01-02", "Jan 2 2026 15:04",
RFC 3339 and Unix timestamps); times without a zone are UTC.

Examples:
  geochunk trace --db ./trace.db
  geochunk trace --db ./trace.db --since 2026-01-02
  geochunk trace --db ./trace.db --graph 0190a1b2 --failed --format json
  geochunk trace --db ./trace.db --graph 0190a1b2 --where task_name=merge`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database (default from config)")
	cmd.Flags().StringVar(&opts.Graph, "graph", "", "graph ID or prefix to show")
	cmd.Flags().StringVar(&opts.Since, "since", "", "only list graphs recorded at or after this time")
	cmd.Flags().BoolVar(&opts.Failed, "failed", false, "only show failed task events")
	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "only show events matching field=value (repeatable)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()

	path := opts.Database
	if path == "" {
		path = opts.Config.TraceDB
	}
	if path == "" {
		return formatter.Fail(ExitCommandError, ErrCodeFlags, "no trace database: pass --db or set trace_db", nil)
	}

	filter, err := queryir.ParseFilter(opts.Where)
	if err == nil {
		err = queryir.Validate(queryir.Select{From: queryir.Events, Filter: filter})
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeFlags, "invalid --where", err)
	}
	if opts.Failed {
		filter.Predicates = append(filter.Predicates,
			queryir.Equals{Field: queryir.FieldKind, Value: ir.IRString(engine.EventFailed)})
	}

	var since time.Time
	if opts.Since != "" {
		t, err := geo.ParseDate(opts.Since, "")
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeFlags, fmt.Sprintf("invalid --since %q", opts.Since), err)
		}
		since = t
	}

	st, err := store.Open(path, store.WithLogger(opts.logger()))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open trace database", err)
	}
	defer st.Close()

	graphs, err := st.Graphs(ctx, since)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeStore, "failed to list graphs", err)
	}

	if opts.Graph == "" {
		list := GraphList{Graphs: graphs}
		return formatter.Emit(list, func(w io.Writer) { writeGraphList(w, list) })
	}

	matches := geo.Select(geo.List[store.GraphSummary](graphs), func(g store.GraphSummary) bool {
		return strings.HasPrefix(g.ID, opts.Graph)
	})
	if matches.Len() > 1 {
		return formatter.Fail(ExitCommandError, ErrCodeFlags,
			fmt.Sprintf("graph prefix %q is ambiguous (%d matches)", opts.Graph, matches.Len()), nil)
	}
	g, ok := geo.First(matches, func(store.GraphSummary) bool { return true })
	if !ok {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound,
			fmt.Sprintf("no graph matches %q", opts.Graph), nil)
	}

	events, err := st.Events(ctx, g.ID)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeStore, "failed to read events", err)
	}
	result := TraceResult{GraphID: g.ID, Graph: g.Name, Stats: traceStats(events)}
	if len(filter.Predicates) > 0 {
		if events, err = st.Select(ctx, g.ID, filter); err != nil {
			return formatter.Fail(ExitFailure, ErrCodeStore, "failed to read events", err)
		}
	}
	result.Timeline = buildTimeline(events)

	run, found, err := st.Run(ctx, g.ID)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeStore, "failed to read run", err)
	}
	if found {
		result.Run = &RunSummary{
			Job:               run.Job,
			Plan:              run.Plan,
			Status:            run.Status,
			InputFingerprint:  run.InputFingerprint,
			OutputFingerprint: run.OutputFingerprint,
			Error:             run.Error,
		}
	}

	return formatter.Emit(result, func(w io.Writer) { writeTraceText(w, result) })
}

// buildTimeline converts stored events, mapping dependency keys back to
// task names where the graph delayed them.
func buildTimeline(events []engine.TaskEvent) []TraceEvent {
	names := make(map[string]string, len(events))
	for _, ev := range events {
		names[ev.TaskKey] = ev.TaskName
	}
	timeline := make([]TraceEvent, len(events))
	for i, ev := range events {
		te := TraceEvent{
			Seq:   ev.Seq,
			Kind:  string(ev.Kind),
			Task:  ev.TaskName,
			Key:   ev.TaskKey,
			Error: ev.Error,
		}
		for _, key := range ev.Deps {
			if name, ok := names[key]; ok {
				key = name
			}
			te.Deps = append(te.Deps, key)
		}
		if ev.Duration > 0 {
			te.DurationMS = float64(ev.Duration.Microseconds()) / 1000
		}
		timeline[i] = te
	}
	return timeline
}

func traceStats(events []engine.TaskEvent) TraceStats {
	stats := TraceStats{TotalEvents: len(events)}
	for _, ev := range events {
		switch ev.Kind {
		case engine.EventDelayed:
			stats.Tasks++
		case engine.EventCompleted:
			stats.Completed++
		case engine.EventFailed:
			stats.Failed++
		}
	}
	stats.IsComplete = stats.Tasks > 0 && stats.Completed == stats.Tasks
	return stats
}

func writeGraphList(w io.Writer, l GraphList) {
	if len(l.Graphs) == 0 {
		fmt.Fprintln(w, "No graphs recorded.")
		return
	}
	for _, g := range l.Graphs {
		fmt.Fprintf(w, "%s  %-20s %s  tasks=%d failed=%d\n",
			g.ID, g.Name, g.RecordedAt.Format(time.RFC3339), g.Tasks, g.Failed)
	}
}

func writeTraceText(w io.Writer, r TraceResult) {
	fmt.Fprintf(w, "Graph %s (%s)\n", r.GraphID, r.Graph)
	if r.Run != nil {
		fmt.Fprintf(w, "Run: job %s, status %s, %s=%d in %d chunks\n",
			r.Run.Job, r.Run.Status, r.Run.Plan.Dim, r.Run.Plan.Size, r.Run.Plan.Count)
		if r.Run.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", r.Run.Error)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Timeline:")
	for _, ev := range r.Timeline {
		fmt.Fprintf(w, "  [%d] %-9s %s", ev.Seq, ev.Kind, ev.Task)
		if len(ev.Deps) > 0 {
			fmt.Fprintf(w, " <- %s", strings.Join(ev.Deps, ", "))
		}
		if ev.DurationMS > 0 {
			fmt.Fprintf(w, " (%.3fms)", ev.DurationMS)
		}
		if ev.Error != "" {
			fmt.Fprintf(w, ": %s", ev.Error)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Stats: %d events, %d tasks, %d completed, %d failed\n",
		r.Stats.TotalEvents, r.Stats.Tasks, r.Stats.Completed, r.Stats.Failed)
}
