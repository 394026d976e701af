// Package ndarray implements the raw rectangular N-dimensional array that the
// block partitioner and the labeled dataset operate on.
//
// Arrays hold float64 elements addressed through a shape, per-axis strides
// and an offset into shared storage. Slicing produces a view that shares
// storage with its parent; Clone, Concat and Map produce owned copies. Axis
// order is fixed at construction.
package ndarray

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/geochunk/internal/chunkerr"
)

// Array is a strided view over float64 storage.
//
// The zero value is not usable; construct arrays with New, Zeros or Arange.
type Array struct {
	shape   []int
	strides []int // in elements, row-major for owned arrays
	offset  int
	data    []float64
}

// New wraps data (row-major) as an array of the given shape.
// The data slice is not copied.
func New(shape []int, data []float64) (*Array, error) {
	n, err := count(shape)
	if err != nil {
		return nil, err
	}
	if len(data) != n {
		return nil, chunkerr.ShapeMismatch("", n, len(data),
			"data length does not match shape %v", shape)
	}
	return &Array{
		shape:   append([]int(nil), shape...),
		strides: rowMajorStrides(shape),
		data:    data,
	}, nil
}

// Zeros returns an owned zero-filled array.
// Panics if any extent is negative, matching make.
func Zeros(shape ...int) *Array {
	n, err := count(shape)
	if err != nil {
		panic(err)
	}
	return &Array{
		shape:   append([]int(nil), shape...),
		strides: rowMajorStrides(shape),
		data:    make([]float64, n),
	}
}

// Arange returns an owned array filled with 0, 1, 2, ... in row-major order.
func Arange(shape ...int) *Array {
	a := Zeros(shape...)
	for i := range a.data {
		a.data[i] = float64(i)
	}
	return a
}

func count(shape []int) (int, error) {
	n := 1
	for axis, d := range shape {
		if d < 0 {
			return 0, chunkerr.Configuration("negative extent %d on axis %d", d, axis)
		}
		n *= d
	}
	return n, nil
}

func rowMajorStrides(shape []int) []int {
	strides := make([]int, len(shape))
	step := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = step
		step *= shape[i]
	}
	return strides
}

// Shape returns a copy of the array's extents.
func (a *Array) Shape() []int {
	return append([]int(nil), a.shape...)
}

// Dim returns the extent of a single axis.
func (a *Array) Dim(axis int) int {
	return a.shape[axis]
}

// Rank returns the number of axes.
func (a *Array) Rank() int {
	return len(a.shape)
}

// Len returns the number of elements.
func (a *Array) Len() int {
	n := 1
	for _, d := range a.shape {
		n *= d
	}
	return n
}

// At returns the element at idx. Panics on an out-of-range index.
func (a *Array) At(idx ...int) float64 {
	return a.data[a.locate(idx)]
}

// Set stores v at idx. Writing through a view mutates the parent.
func (a *Array) Set(v float64, idx ...int) {
	a.data[a.locate(idx)] = v
}

func (a *Array) locate(idx []int) int {
	if len(idx) != len(a.shape) {
		panic(fmt.Sprintf("ndarray: index rank %d does not match array rank %d", len(idx), len(a.shape)))
	}
	off := a.offset
	for axis, i := range idx {
		if i < 0 || i >= a.shape[axis] {
			panic(fmt.Sprintf("ndarray: index %d out of range [0,%d) on axis %d", i, a.shape[axis], axis))
		}
		off += i * a.strides[axis]
	}
	return off
}

// Slice returns a view of [lo, hi) along axis. The view shares storage.
func (a *Array) Slice(axis, lo, hi int) (*Array, error) {
	if axis < 0 || axis >= len(a.shape) {
		return nil, chunkerr.Configuration("axis %d out of range for rank %d", axis, len(a.shape))
	}
	if lo < 0 || hi < lo || hi > a.shape[axis] {
		return nil, chunkerr.Configuration("range [%d,%d) out of bounds for axis %d of extent %d",
			lo, hi, axis, a.shape[axis])
	}
	shape := a.Shape()
	shape[axis] = hi - lo
	offset := a.offset
	if hi > lo {
		offset += lo * a.strides[axis]
	}
	return &Array{
		shape:   shape,
		strides: append([]int(nil), a.strides...),
		offset:  offset,
		data:    a.data,
	}, nil
}

// Clone returns an owned, contiguous copy.
func (a *Array) Clone() *Array {
	return &Array{
		shape:   a.Shape(),
		strides: rowMajorStrides(a.shape),
		data:    a.Values(),
	}
}

// Values returns the elements in row-major order as a new slice.
func (a *Array) Values() []float64 {
	out := make([]float64, 0, a.Len())
	a.walk(func(off int) {
		out = append(out, a.data[off])
	})
	return out
}

// Map returns an owned array with fn applied to every element.
func (a *Array) Map(fn func(float64) float64) *Array {
	out := a.Clone()
	for i, v := range out.data {
		out.data[i] = fn(v)
	}
	return out
}

// Equal reports whether both arrays have the same shape and elements.
// NaN compares equal to NaN so round trips over missing values hold.
func (a *Array) Equal(b *Array) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !sameShape(a.shape, b.shape) {
		return false
	}
	av, bv := a.Values(), b.Values()
	for i := range av {
		if av[i] != bv[i] && !(math.IsNaN(av[i]) && math.IsNaN(bv[i])) {
			return false
		}
	}
	return true
}

// String renders the shape and elements for debugging.
func (a *Array) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Array%v", a.shape)
	sb.WriteString(fmt.Sprint(a.Values()))
	return sb.String()
}

// walk calls fn with the storage offset of every element in row-major order.
func (a *Array) walk(fn func(off int)) {
	if a.Len() == 0 {
		return
	}
	rank := len(a.shape)
	if rank == 0 {
		fn(a.offset)
		return
	}
	idx := make([]int, rank)
	off := a.offset
	for {
		fn(off)
		axis := rank - 1
		for ; axis >= 0; axis-- {
			idx[axis]++
			off += a.strides[axis]
			if idx[axis] < a.shape[axis] {
				break
			}
			off -= a.strides[axis] * a.shape[axis]
			idx[axis] = 0
		}
		if axis < 0 {
			return
		}
	}
}

// assign copies src into a element-wise; shapes must match.
func (a *Array) assign(src *Array) {
	vals := src.Values()
	i := 0
	a.walk(func(off int) {
		a.data[off] = vals[i]
		i++
	})
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
