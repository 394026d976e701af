// Package dataset implements the labeled container that the windower splits
// and the dispatcher processes: named dimensions plus named data variables,
// each variable spanning an ordered subset of the dimensions.
//
// Selection along a dimension (ISel) produces views that share storage with
// the parent. Concatenation (Concat) produces owned data and requires
// identical schemas across operands.
package dataset

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/geochunk/internal/chunkerr"
	"github.com/roach88/geochunk/internal/ir"
	"github.com/roach88/geochunk/internal/ndarray"
)

// Dim is a named dimension and its size.
type Dim struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// Variable is a named data variable. Dims lists the dimensions the variable
// varies over, in axis order; Data's shape equals their sizes.
type Variable struct {
	Name  string
	Dims  []string
	Data  *ndarray.Array
	Attrs map[string]string
}

// axis returns the axis of dim within v, or -1.
func (v *Variable) axis(dim string) int {
	return slices.Index(v.Dims, dim)
}

// Dataset is an immutable labeled container.
//
// INVARIANTS:
//   - dimension names are unique and NFC normalized
//   - every variable's dims are dataset dims, without repeats
//   - every variable's array shape equals the sizes of its dims
//   - variable order is insertion order and never changes
type Dataset struct {
	dims   []Dim
	vars   []*Variable
	chunks map[string]int // re-chunk hints, nil when none
	attrs  map[string]string
}

// New builds a dataset from ordered dimensions and variables.
func New(dims []Dim, vars ...Variable) (*Dataset, error) {
	ds := &Dataset{dims: make([]Dim, 0, len(dims))}
	seen := make(map[string]bool, len(dims))
	for _, d := range dims {
		name := ir.NormalizeName(d.Name)
		if name == "" {
			return nil, chunkerr.Configuration("dimension name must not be empty")
		}
		if seen[name] {
			return nil, chunkerr.Configuration("duplicate dimension %q", name)
		}
		if d.Size < 0 {
			return nil, chunkerr.Configuration("dimension %q has negative size %d", name, d.Size)
		}
		seen[name] = true
		ds.dims = append(ds.dims, Dim{Name: name, Size: d.Size})
	}

	names := make(map[string]bool, len(vars))
	for i := range vars {
		v := vars[i]
		v.Name = ir.NormalizeName(v.Name)
		if names[v.Name] {
			return nil, chunkerr.Configuration("duplicate variable %q", v.Name)
		}
		names[v.Name] = true

		normalized := make([]string, len(v.Dims))
		for j, d := range v.Dims {
			normalized[j] = ir.NormalizeName(d)
		}
		v.Dims = normalized
		if err := ds.checkVariable(&v); err != nil {
			return nil, err
		}
		ds.vars = append(ds.vars, &v)
	}
	return ds, nil
}

func (ds *Dataset) checkVariable(v *Variable) error {
	if v.Data == nil {
		return chunkerr.Configuration("variable %q has no data", v.Name)
	}
	if len(v.Dims) != v.Data.Rank() {
		return chunkerr.ShapeMismatch("", len(v.Dims), v.Data.Rank(),
			"variable %q declares %d dims but data has rank %d", v.Name, len(v.Dims), v.Data.Rank())
	}
	for axis, name := range v.Dims {
		if slices.Index(v.Dims, name) != axis {
			return chunkerr.Configuration("variable %q repeats dimension %q", v.Name, name)
		}
		size, err := ds.Size(name)
		if err != nil {
			return fmt.Errorf("variable %q: %w", v.Name, err)
		}
		if v.Data.Dim(axis) != size {
			return chunkerr.ShapeMismatch(name, size, v.Data.Dim(axis),
				"variable %q extent does not match dimension size", v.Name)
		}
	}
	return nil
}

// Dims returns the ordered dimensions.
func (ds *Dataset) Dims() []Dim {
	return slices.Clone(ds.dims)
}

// DimNames returns the ordered dimension names.
func (ds *Dataset) DimNames() []string {
	names := make([]string, len(ds.dims))
	for i, d := range ds.dims {
		names[i] = d.Name
	}
	return names
}

// HasDim reports whether the dataset has a dimension called name.
func (ds *Dataset) HasDim(name string) bool {
	return ds.dimIndex(name) >= 0
}

func (ds *Dataset) dimIndex(name string) int {
	name = ir.NormalizeName(name)
	for i, d := range ds.dims {
		if d.Name == name {
			return i
		}
	}
	return -1
}

// Size returns the size of a dimension.
func (ds *Dataset) Size(name string) (int, error) {
	i := ds.dimIndex(name)
	if i < 0 {
		return 0, chunkerr.DimensionNotFound(name, ds.DimNames())
	}
	return ds.dims[i].Size, nil
}

// Variables returns the variable names in order.
func (ds *Dataset) Variables() []string {
	names := make([]string, len(ds.vars))
	for i, v := range ds.vars {
		names[i] = v.Name
	}
	return names
}

// Variable returns the named variable. The returned value shares data with
// the dataset; treat it as read-only.
func (ds *Dataset) Variable(name string) (Variable, bool) {
	name = ir.NormalizeName(name)
	for _, v := range ds.vars {
		if v.Name == name {
			return *v, true
		}
	}
	return Variable{}, false
}

// Attrs returns a copy of the dataset attributes.
func (ds *Dataset) Attrs() map[string]string {
	out := make(map[string]string, len(ds.attrs))
	for k, v := range ds.attrs {
		out[k] = v
	}
	return out
}

// WithAttr returns a shallow copy with an attribute set.
func (ds *Dataset) WithAttr(key, value string) *Dataset {
	out := ds.shallow()
	out.attrs = ds.Attrs()
	out.attrs[key] = value
	return out
}

// WithVariable returns a shallow copy with v added, or replaced when a
// variable of the same name exists.
func (ds *Dataset) WithVariable(v Variable) (*Dataset, error) {
	v.Name = ir.NormalizeName(v.Name)
	dims := make([]string, len(v.Dims))
	for i, d := range v.Dims {
		dims[i] = ir.NormalizeName(d)
	}
	v.Dims = dims
	if err := ds.checkVariable(&v); err != nil {
		return nil, err
	}
	out := ds.shallow()
	out.vars = slices.Clone(ds.vars)
	for i, existing := range out.vars {
		if existing.Name == v.Name {
			out.vars[i] = &v
			return out, nil
		}
	}
	out.vars = append(out.vars, &v)
	return out, nil
}

// Drop returns a shallow copy without the named variables.
func (ds *Dataset) Drop(names ...string) *Dataset {
	out := ds.shallow()
	out.vars = make([]*Variable, 0, len(ds.vars))
	for _, v := range ds.vars {
		if !slices.Contains(names, v.Name) {
			out.vars = append(out.vars, v)
		}
	}
	return out
}

func (ds *Dataset) shallow() *Dataset {
	return &Dataset{
		dims:   ds.dims,
		vars:   ds.vars,
		chunks: ds.chunks,
		attrs:  ds.attrs,
	}
}

// String summarizes the schema.
func (ds *Dataset) String() string {
	var sb strings.Builder
	sb.WriteString("Dataset(")
	for i, d := range ds.dims {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%d", d.Name, d.Size)
	}
	sb.WriteString(")")
	for _, v := range ds.vars {
		fmt.Fprintf(&sb, " %s%v", v.Name, v.Dims)
	}
	return sb.String()
}
