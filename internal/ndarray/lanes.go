package ndarray

import "github.com/roach88/geochunk/internal/chunkerr"

// MapLanes applies fn to every 1-D lane along axis and returns the results
// as a new owned array of the same shape. fn receives the lane's values and
// a slice of equal length to fill; both are reused between calls.
func (a *Array) MapLanes(axis int, fn func(in, out []float64)) (*Array, error) {
	if axis < 0 || axis >= len(a.shape) {
		return nil, chunkerr.Configuration("axis %d out of range for rank %d", axis, len(a.shape))
	}
	src := a.Clone()
	dst := Zeros(a.shape...)

	n := a.shape[axis]
	outer, inner := 1, 1
	for _, d := range a.shape[:axis] {
		outer *= d
	}
	for _, d := range a.shape[axis+1:] {
		inner *= d
	}

	in := make([]float64, n)
	out := make([]float64, n)
	for o := 0; o < outer; o++ {
		for k := 0; k < inner; k++ {
			base := o*n*inner + k
			for i := 0; i < n; i++ {
				in[i] = src.data[base+i*inner]
			}
			fn(in, out)
			for i := 0; i < n; i++ {
				dst.data[base+i*inner] = out[i]
			}
		}
	}
	return dst, nil
}

// Squeeze returns a view with the length-1 axis removed.
func (a *Array) Squeeze(axis int) (*Array, error) {
	if axis < 0 || axis >= len(a.shape) {
		return nil, chunkerr.Configuration("axis %d out of range for rank %d", axis, len(a.shape))
	}
	if a.shape[axis] != 1 {
		return nil, chunkerr.ShapeMismatch("", 1, a.shape[axis], "cannot squeeze axis %d", axis)
	}
	shape := append(append([]int(nil), a.shape[:axis]...), a.shape[axis+1:]...)
	strides := append(append([]int(nil), a.strides[:axis]...), a.strides[axis+1:]...)
	return &Array{shape: shape, strides: strides, offset: a.offset, data: a.data}, nil
}

// Stack joins same-shape arrays along a new leading axis.
func Stack(parts ...*Array) (*Array, error) {
	if len(parts) == 0 {
		return nil, chunkerr.ShapeMismatch("", 1, 0, "nothing to stack")
	}
	shape := parts[0].Shape()
	out := Zeros(append([]int{len(parts)}, shape...)...)
	for i, p := range parts {
		if !sameShape(p.shape, shape) {
			return nil, chunkerr.ShapeMismatch("", len(shape), p.Rank(),
				"part %d has shape %v, want %v", i, p.shape, shape)
		}
		view, err := out.Slice(0, i, i+1)
		if err != nil {
			return nil, err
		}
		sq, err := view.Squeeze(0)
		if err != nil {
			return nil, err
		}
		sq.assign(p)
	}
	return out, nil
}
