package ir

// Job is a compiled dispatch job: a generated input dataset, the chunking
// parameters and the named transformation to run over every chunk.
type Job struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Dataset     DatasetSpec   `json:"dataset"`
	Dispatch    DispatchSpec  `json:"dispatch"`
	Transform   TransformSpec `json:"transform"`
}

// DatasetSpec describes a labeled container to generate.
type DatasetSpec struct {
	Dims      []DimSpec         `json:"dims"`
	Variables []VariableSpec    `json:"variables"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// DimSpec is a named dimension and its size.
type DimSpec struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// VariableSpec describes one data variable and how to fill it.
type VariableSpec struct {
	Name string   `json:"name"`
	Dims []string `json:"dims"`

	// Fill is one of the Fill* constants.
	Fill string `json:"fill"`

	// Value is used by FillConstant.
	Value float64 `json:"value,omitempty"`

	// Values is used by FillValues (row-major).
	Values []float64 `json:"values,omitempty"`

	// Attrs are copied onto the generated variable.
	Attrs map[string]string `json:"attrs,omitempty"`
}

// Variable fill modes.
const (
	FillArange   = "arange"
	FillZeros    = "zeros"
	FillConstant = "constant"
	FillValues   = "values"
	FillSine     = "sine"

	// FillGridX and FillGridY need exactly two dims and hold the column
	// and row index respectively.
	FillGridX = "grid_x"
	FillGridY = "grid_y"
)

// ValidFills lists allowed fill modes.
var ValidFills = map[string]bool{
	FillArange:   true,
	FillZeros:    true,
	FillConstant: true,
	FillValues:   true,
	FillSine:     true,
	FillGridX:    true,
	FillGridY:    true,
}

// DispatchSpec carries the dispatcher configuration.
// Zero values select defaults: first dimension, logical core count,
// no halo, merge on, eager on.
type DispatchSpec struct {
	Dim     string `json:"dim,omitempty"`
	Chunks  int    `json:"chunks,omitempty"`
	Buffer  int    `json:"buffer,omitempty"`
	Merge   *bool  `json:"merge,omitempty"`
	Eager   *bool  `json:"eager,omitempty"`
	Workers int    `json:"workers,omitempty"`
}

// MergeEnabled returns the effective merge flag.
func (d DispatchSpec) MergeEnabled() bool {
	return d.Merge == nil || *d.Merge
}

// EagerEnabled returns the effective eager flag.
func (d DispatchSpec) EagerEnabled() bool {
	return d.Eager == nil || *d.Eager
}

// TransformSpec names a built-in transformation and its parameters.
type TransformSpec struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}
