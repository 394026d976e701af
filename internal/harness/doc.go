// Package harness provides scenario-based conformance testing for chunked
// dispatch.
//
// A scenario names a job (inline or by file), an optional matrix of
// dispatch parameters, and assertions that every expanded case must
// satisfy. Each case builds the job's dataset, runs the dispatcher on a
// fresh local engine and evaluates the assertions against the outcome.
//
// # Scenario Format
//
//	name: smooth_latitude
//	description: "Chunked moving mean equals the serial result"
//	job:
//	  name: smooth
//	  dataset:
//	    dims: [{name: lat, size: 10}]
//	    variables: [{name: t, dims: [lat], fill: sine}]
//	  dispatch: {dim: lat, chunks: 3, buffer: 2}
//	  transform: {name: moving_mean, params: {dim: lat, radius: 2}}
//	matrix:
//	  chunks: [2, 3, 5]
//	assertions:
//	  - type: equals_serial
//	  - type: round_trip
//
// job_file may replace job; the path is relative to the scenario file.
//
// # Assertion Types
//
//   - equals_serial: the merged result equals the transformation applied to
//     the whole dataset
//   - round_trip: split then merge of the input with the case's plan
//     reproduces the input
//   - chunk_ranges: the planned untrimmed ranges (and optionally cores)
//     match the listed [lo, hi) pairs
//   - error_code: the dispatch fails with the given error code
//   - task_order: tasks were delayed in the listed order
//
// # Deterministic Testing
//
// Each case runs with a deterministic logical clock
// (testutil.DeterministicClock) reset per case and a fixed graph ID
// (testutil.FixedIDGenerator), so delayed-task traces and golden
// snapshots are identical across runs.
package harness
