package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/geochunk/internal/blocks"
	"github.com/roach88/geochunk/internal/chunkerr"
	"github.com/roach88/geochunk/internal/dataset"
	"github.com/roach88/geochunk/internal/window"
)

// AssertionError is returned when an assertion fails.
// It includes the delay trace to help debug the failure.
type AssertionError struct {
	Type     string      // Assertion type for categorization
	Expected string      // Human-readable expected outcome
	Actual   string      // Human-readable actual outcome
	Tasks    []TaskTrace // Delayed tasks for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertion failed: %s: expected %s, got %s", e.Type, e.Expected, e.Actual)
	if len(e.Tasks) > 0 {
		names := make([]string, len(e.Tasks))
		for i, t := range e.Tasks {
			names[i] = t.Name
		}
		fmt.Fprintf(&buf, " (tasks: %s)", strings.Join(names, " "))
	}
	return buf.String()
}

func checkAssertion(ctx context.Context, a Assertion, o *outcome) error {
	switch a.Type {
	case AssertEqualsSerial:
		return assertEqualsSerial(ctx, o)
	case AssertRoundTrip:
		return assertRoundTrip(o)
	case AssertChunkRanges:
		return assertChunkRanges(a, o)
	case AssertErrorCode:
		return assertErrorCode(a, o)
	case AssertTaskOrder:
		return assertTaskOrder(a, o)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

// assertEqualsSerial compares the chunked result with the transformation
// applied to the whole input. Unmerged results are merged with the plan
// first.
func assertEqualsSerial(ctx context.Context, o *outcome) error {
	if o.err != nil || o.result == nil {
		return &AssertionError{
			Type:     AssertEqualsSerial,
			Expected: "a computed result",
			Actual:   fmt.Sprintf("error %v", o.err),
			Tasks:    o.tasks,
		}
	}
	chunked := o.result.Dataset
	if chunked == nil {
		merged, err := window.Merge(o.result.Parts, o.result.Plan)
		if err != nil {
			return fmt.Errorf("%s: merge parts: %w", AssertEqualsSerial, err)
		}
		chunked = merged
	}
	serial, err := o.transform.Fn(ctx, o.input)
	if err != nil {
		return fmt.Errorf("%s: serial run: %w", AssertEqualsSerial, err)
	}
	if !serial.Equal(chunked) {
		return &AssertionError{
			Type:     AssertEqualsSerial,
			Expected: serial.String(),
			Actual:   chunked.String() + " with different values",
			Tasks:    o.tasks,
		}
	}
	return nil
}

// assertRoundTrip splits the input with the case's plan and merges the
// chunks back untouched.
func assertRoundTrip(o *outcome) error {
	if o.plan == nil || o.input == nil {
		return &AssertionError{
			Type:     AssertRoundTrip,
			Expected: "a resolvable plan",
			Actual:   fmt.Sprintf("error %v", o.err),
		}
	}
	chunks, err := o.plan.Split(o.input)
	if err != nil {
		return fmt.Errorf("%s: split: %w", AssertRoundTrip, err)
	}
	parts, err := chunks.Collect()
	if err != nil {
		return fmt.Errorf("%s: split: %w", AssertRoundTrip, err)
	}
	merged, err := window.Merge(parts, *o.plan)
	if err != nil {
		return fmt.Errorf("%s: merge: %w", AssertRoundTrip, err)
	}
	if !merged.Equal(o.input) {
		return &AssertionError{
			Type:     AssertRoundTrip,
			Expected: o.input.String(),
			Actual:   merged.String() + " after merge",
		}
	}
	return nil
}

func assertChunkRanges(a Assertion, o *outcome) error {
	if o.plan == nil {
		return &AssertionError{
			Type:     AssertChunkRanges,
			Expected: "a resolvable plan",
			Actual:   fmt.Sprintf("error %v", o.err),
		}
	}
	if len(a.Ranges) > 0 {
		if got := pairs(o.plan.Ranges()); !slices.EqualFunc(got, a.Ranges, slices.Equal[[]int]) {
			return &AssertionError{Type: AssertChunkRanges, Expected: fmt.Sprintf("ranges %v", a.Ranges), Actual: fmt.Sprintf("%v", got)}
		}
	}
	if len(a.Cores) > 0 {
		if got := pairs(o.plan.Cores()); !slices.EqualFunc(got, a.Cores, slices.Equal[[]int]) {
			return &AssertionError{Type: AssertChunkRanges, Expected: fmt.Sprintf("cores %v", a.Cores), Actual: fmt.Sprintf("%v", got)}
		}
	}
	return nil
}

func assertErrorCode(a Assertion, o *outcome) error {
	got := chunkerr.CodeOf(o.err)
	if string(got) != a.Code {
		actual := "no error"
		if o.err != nil {
			actual = fmt.Sprintf("%q (%v)", got, o.err)
		}
		return &AssertionError{
			Type:     AssertErrorCode,
			Expected: fmt.Sprintf("%q", a.Code),
			Actual:   actual,
			Tasks:    o.tasks,
		}
	}
	return nil
}

// assertTaskOrder requires the delayed task names to equal the listed
// names exactly.
func assertTaskOrder(a Assertion, o *outcome) error {
	got := make([]string, len(o.tasks))
	for i, t := range o.tasks {
		got[i] = t.Name
	}
	if !slices.Equal(got, a.Tasks) {
		return &AssertionError{
			Type:     AssertTaskOrder,
			Expected: strings.Join(a.Tasks, " "),
			Actual:   strings.Join(got, " "),
			Tasks:    o.tasks,
		}
	}
	return nil
}

func pairs(rs []blocks.Range) [][]int {
	out := make([][]int, len(rs))
	for i, r := range rs {
		out[i] = []int{r.Lo, r.Hi}
	}
	return out
}

// outputOf returns the merged result dataset, if any.
func outputOf(o *outcome) *dataset.Dataset {
	if o.result == nil {
		return nil
	}
	return o.result.Dataset
}
