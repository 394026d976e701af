package harness

import "github.com/roach88/geochunk/internal/window"

// TaskTrace is one delayed task as seen by the case's observer.
type TaskTrace struct {
	Name string   `json:"name"`
	Seq  int64    `json:"seq"`
	Deps []string `json:"deps"` // dependency task names
}

// CaseResult is the outcome of one matrix case.
type CaseResult struct {
	// Name is the scenario name plus the case's matrix overrides.
	Name string `json:"name"`

	Pass bool `json:"pass"`

	// Plan is nil when the chunk plan could not be resolved.
	Plan *window.Plan `json:"plan,omitempty"`

	// Tasks lists delayed tasks in delay order.
	Tasks []TaskTrace `json:"tasks"`

	// Output is the schema summary of the merged result, if any.
	Output string `json:"output,omitempty"`

	// ErrorCode is the code of the dispatch error, if any.
	ErrorCode string `json:"error_code,omitempty"`

	// Errors contains assertion failures.
	Errors []string `json:"errors,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	Scenario string `json:"scenario"`

	// Pass is true when every case passed.
	Pass bool `json:"pass"`

	Cases []CaseResult `json:"cases"`

	// Errors collects case failures prefixed by case name.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario: scenario,
		Pass:     true,
		Cases:    []CaseResult{},
		Errors:   []string{},
	}
}

// AddCase appends c and folds its errors into the result.
func (r *Result) AddCase(c CaseResult) {
	r.Cases = append(r.Cases, c)
	for _, e := range c.Errors {
		r.AddError(c.Name + ": " + e)
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// addError records an assertion failure on the case.
func (c *CaseResult) addError(err string) {
	c.Errors = append(c.Errors, err)
	c.Pass = false
}
