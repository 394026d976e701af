// Package blocks splits a raw N-dimensional array into axis-aligned blocks
// along every axis and merges such blocks back.
//
// ENUMERATION ORDER:
//
// Blocks are enumerated in row-major order: axis 0 is the slowest-varying
// block coordinate and the last axis is the fastest-varying. For a 4x4 array
// split with Spec{2, 2} the blocks are, in order:
//
//	[0:2, 0:2]  [0:2, 2:4]  [2:4, 0:2]  [2:4, 2:4]
//
// Split and Merge share this order; Index and Flat convert between a flat
// block position and per-axis block coordinates.
//
// UNEVEN AXES:
//
// An axis of extent n split into k parts yields n%k leading parts of size
// n/k+1 followed by parts of size n/k, so any two parts differ by at most one
// element and no exact divisibility is required.
package blocks

import (
	"strconv"

	"github.com/roach88/geochunk/internal/chunkerr"
	"github.com/roach88/geochunk/internal/ndarray"
)

// Spec is the number of blocks per axis.
// Invariant: len(Spec) equals the array rank and every entry is >= 1.
type Spec []int

// Count returns the total number of blocks, product(spec).
func (s Spec) Count() int {
	n := 1
	for _, b := range s {
		n *= b
	}
	return n
}

// Validate checks the spec against an array rank.
func (s Spec) Validate(rank int) error {
	if len(s) != rank {
		return chunkerr.Configuration("block spec has %d entries but array rank is %d", len(s), rank).
			WithDetail("spec", formatSpec(s))
	}
	for axis, b := range s {
		if b < 1 {
			return chunkerr.Configuration("block count %d on axis %d must be >= 1", b, axis).
				WithDetail("axis", strconv.Itoa(axis))
		}
	}
	return nil
}

// Range is a half-open index interval [Lo, Hi).
type Range struct {
	Lo int `json:"lo"`
	Hi int `json:"hi"`
}

// Len returns Hi - Lo.
func (r Range) Len() int { return r.Hi - r.Lo }

// Partition divides [0, n) into parts contiguous near-equal ranges.
// The n%parts leading ranges are one element longer than the rest.
func Partition(n, parts int) ([]Range, error) {
	if parts < 1 {
		return nil, chunkerr.Configuration("partition count %d must be >= 1", parts)
	}
	if n < 0 {
		return nil, chunkerr.Configuration("cannot partition negative extent %d", n)
	}
	base, rem := n/parts, n%parts
	out := make([]Range, parts)
	lo := 0
	for i := range out {
		size := base
		if i < rem {
			size++
		}
		out[i] = Range{Lo: lo, Hi: lo + size}
		lo += size
	}
	return out, nil
}

// Split partitions every axis of a in turn, axis 0 first, and returns
// spec.Count() blocks in row-major block order.
//
// Blocks are views sharing storage with a; Clone a block before mutating it
// unless writing through to a is intended.
func Split(a *ndarray.Array, spec Spec) ([]*ndarray.Array, error) {
	if err := spec.Validate(a.Rank()); err != nil {
		return nil, err
	}

	result := []*ndarray.Array{a}
	for axis, nblocks := range spec {
		ranges, err := Partition(a.Dim(axis), nblocks)
		if err != nil {
			return nil, err
		}
		next := make([]*ndarray.Array, 0, len(result)*nblocks)
		for _, part := range result {
			for _, r := range ranges {
				view, err := part.Slice(axis, r.Lo, r.Hi)
				if err != nil {
					return nil, err
				}
				next = append(next, view)
			}
		}
		result = next
	}
	return result, nil
}

// Merge reassembles blocks produced by Split.
//
// Consecutive runs of spec[last] blocks are concatenated along the last
// axis, then runs of spec[last-1] of those along the axis before it, and so
// on back to axis 0.
func Merge(parts []*ndarray.Array, spec Spec) (*ndarray.Array, error) {
	if len(parts) != spec.Count() {
		return nil, chunkerr.ShapeMismatch("", spec.Count(), len(parts),
			"block list length must equal the product of the block spec").
			WithDetail("spec", formatSpec(spec))
	}
	if len(parts) == 0 {
		return nil, chunkerr.Configuration("empty block spec")
	}
	if err := spec.Validate(parts[0].Rank()); err != nil {
		return nil, err
	}

	result := parts
	for axis := len(spec) - 1; axis >= 0; axis-- {
		nblocks := spec[axis]
		next := make([]*ndarray.Array, 0, len(result)/nblocks)
		for start := 0; start < len(result); start += nblocks {
			joined, err := ndarray.Concat(axis, result[start:start+nblocks]...)
			if err != nil {
				return nil, err
			}
			next = append(next, joined)
		}
		result = next
	}
	return result[0], nil
}

// Index converts a flat block position into per-axis block coordinates
// under the row-major block order.
func Index(spec Spec, flat int) []int {
	idx := make([]int, len(spec))
	for axis := len(spec) - 1; axis >= 0; axis-- {
		idx[axis] = flat % spec[axis]
		flat /= spec[axis]
	}
	return idx
}

// Flat is the inverse of Index.
func Flat(spec Spec, idx []int) int {
	flat := 0
	for axis, i := range idx {
		flat = flat*spec[axis] + i
	}
	return flat
}

func formatSpec(s Spec) string {
	out := "("
	for i, b := range s {
		if i > 0 {
			out += ","
		}
		out += strconv.Itoa(b)
	}
	return out + ")"
}
