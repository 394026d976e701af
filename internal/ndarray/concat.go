package ndarray

import (
	"strconv"

	"github.com/roach88/geochunk/internal/chunkerr"
)

// Concat joins parts along axis into a new owned array.
//
// All parts must share rank and every extent except the one along axis.
// Zero-length parts are accepted and contribute nothing.
func Concat(axis int, parts ...*Array) (*Array, error) {
	if len(parts) == 0 {
		return nil, chunkerr.ShapeMismatch("", 1, 0, "nothing to concatenate")
	}
	first := parts[0]
	rank := first.Rank()
	if axis < 0 || axis >= rank {
		return nil, chunkerr.Configuration("axis %d out of range for rank %d", axis, rank)
	}

	total := 0
	for i, p := range parts {
		if p.Rank() != rank {
			return nil, chunkerr.ShapeMismatch("", rank, p.Rank(),
				"part %d has a different rank", i).WithDetail("part", strconv.Itoa(i))
		}
		for ax := 0; ax < rank; ax++ {
			if ax != axis && p.shape[ax] != first.shape[ax] {
				return nil, chunkerr.ShapeMismatch("", first.shape[ax], p.shape[ax],
					"part %d differs on axis %d", i, ax).WithDetail("part", strconv.Itoa(i))
			}
		}
		total += p.shape[axis]
	}

	shape := first.Shape()
	shape[axis] = total
	out := Zeros(shape...)

	pos := 0
	for _, p := range parts {
		n := p.shape[axis]
		if n == 0 {
			continue
		}
		view, err := out.Slice(axis, pos, pos+n)
		if err != nil {
			return nil, err
		}
		view.assign(p)
		pos += n
	}
	return out, nil
}
