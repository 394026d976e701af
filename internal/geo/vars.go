package geo

import (
	"slices"

	"github.com/roach88/geochunk/internal/blocks"
	"github.com/roach88/geochunk/internal/chunkerr"
	"github.com/roach88/geochunk/internal/dataset"
	"github.com/roach88/geochunk/internal/ir"
	"github.com/roach88/geochunk/internal/ndarray"
)

// VarsForDims returns the variables of ds that span every one of dims, in
// dataset order.
func VarsForDims(ds *dataset.Dataset, dims ...string) []string {
	var out []string
	for _, name := range ds.Variables() {
		v, _ := ds.Variable(name)
		all := true
		for _, d := range dims {
			if !slices.Contains(v.Dims, ir.NormalizeName(d)) {
				all = false
				break
			}
		}
		if all {
			out = append(out, name)
		}
	}
	return out
}

// StackVariables combines same-dimension variables into one variable called
// name with a new leading dimension dim, one index per variable in the
// order given. The source variables are dropped.
func StackVariables(ds *dataset.Dataset, dim, name string, vars ...string) (*dataset.Dataset, error) {
	if len(vars) == 0 {
		return nil, chunkerr.Configuration("no variables to stack")
	}
	if ds.HasDim(dim) {
		return nil, chunkerr.Configuration("dimension %q already exists", dim)
	}
	var dims []string
	arrays := make([]*ndarray.Array, len(vars))
	for i, vn := range vars {
		v, ok := ds.Variable(vn)
		if !ok {
			return nil, chunkerr.Configuration("no variable %q", vn)
		}
		if i == 0 {
			dims = v.Dims
		} else if !slices.Equal(dims, v.Dims) {
			return nil, chunkerr.ShapeMismatch("", len(dims), len(v.Dims),
				"variable %q dims %v differ from %v", vn, v.Dims, dims)
		}
		arrays[i] = v.Data
	}
	data, err := ndarray.Stack(arrays...)
	if err != nil {
		return nil, err
	}

	newDims := append([]dataset.Dim{{Name: dim, Size: len(vars)}}, ds.Dims()...)
	keep := ds.Drop(vars...)
	var varsOut []dataset.Variable
	for _, vn := range keep.Variables() {
		v, _ := keep.Variable(vn)
		varsOut = append(varsOut, v)
	}
	varsOut = append(varsOut, dataset.Variable{
		Name:  name,
		Dims:  append([]string{dim}, dims...),
		Data:  data,
		Attrs: map[string]string{"stacked": dim},
	})
	return dataset.New(newDims, varsOut...)
}

// ExpandVariables is the inverse of StackVariables: it splits variable name
// along dim into one variable per label and removes dim when nothing else
// uses it.
func ExpandVariables(ds *dataset.Dataset, name, dim string, labels []string) (*dataset.Dataset, error) {
	v, ok := ds.Variable(name)
	if !ok {
		return nil, chunkerr.Configuration("no variable %q", name)
	}
	dim = ir.NormalizeName(dim)
	axis := slices.Index(v.Dims, dim)
	if axis < 0 {
		return nil, chunkerr.DimensionNotFound(dim, v.Dims)
	}
	if n := v.Data.Dim(axis); n != len(labels) {
		return nil, chunkerr.ShapeMismatch(dim, n, len(labels), "one label per index required")
	}

	rest := ds.Drop(name)
	var vars []dataset.Variable
	for _, vn := range rest.Variables() {
		other, _ := rest.Variable(vn)
		vars = append(vars, other)
	}
	subDims := slices.Delete(slices.Clone(v.Dims), axis, axis+1)
	for i, label := range labels {
		slab, err := v.Data.Slice(axis, i, i+1)
		if err != nil {
			return nil, err
		}
		sq, err := slab.Squeeze(axis)
		if err != nil {
			return nil, err
		}
		vars = append(vars, dataset.Variable{Name: label, Dims: subDims, Data: sq})
	}

	var dims []dataset.Dim
	for _, d := range ds.Dims() {
		if d.Name == dim && len(VarsForDims(rest, dim)) == 0 {
			continue
		}
		dims = append(dims, d)
	}
	return dataset.New(dims, vars...)
}

// ArrayChunks splits a along axis into consecutive views of size elements,
// the last possibly shorter, with the range each covers.
func ArrayChunks(a *ndarray.Array, size, axis int) ([]*ndarray.Array, []blocks.Range, error) {
	if size < 1 {
		return nil, nil, chunkerr.Configuration("chunk size must be at least 1, got %d", size)
	}
	if axis < 0 || axis >= a.Rank() {
		return nil, nil, chunkerr.Configuration("axis %d out of range for rank %d", axis, a.Rank())
	}
	n := a.Dim(axis)
	var views []*ndarray.Array
	var ranges []blocks.Range
	for lo := 0; lo < n; lo += size {
		r := blocks.Range{Lo: lo, Hi: min(lo+size, n)}
		view, err := a.Slice(axis, r.Lo, r.Hi)
		if err != nil {
			return nil, nil, err
		}
		views = append(views, view)
		ranges = append(ranges, r)
	}
	return views, ranges, nil
}
