package dataset

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/roach88/geochunk/internal/chunkerr"
	"github.com/roach88/geochunk/internal/ir"
	"github.com/roach88/geochunk/internal/ndarray"
)

// ISel selects the index range [lo, hi) along dim. Variables spanning dim
// become views into the parent's storage; the rest are shared as-is.
func (ds *Dataset) ISel(dim string, lo, hi int) (*Dataset, error) {
	i := ds.dimIndex(dim)
	if i < 0 {
		return nil, chunkerr.DimensionNotFound(dim, ds.DimNames())
	}
	name := ds.dims[i].Name
	size := ds.dims[i].Size
	if lo < 0 || hi > size || lo > hi {
		return nil, chunkerr.Configuration("range [%d,%d) out of bounds for %s=%d", lo, hi, name, size)
	}

	out := ds.shallow()
	out.dims = slices.Clone(ds.dims)
	out.dims[i].Size = hi - lo
	out.vars = make([]*Variable, len(ds.vars))
	for j, v := range ds.vars {
		axis := v.axis(name)
		if axis < 0 {
			out.vars[j] = v
			continue
		}
		view, err := v.Data.Slice(axis, lo, hi)
		if err != nil {
			return nil, fmt.Errorf("select %s on %q: %w", name, v.Name, err)
		}
		sub := *v
		sub.Data = view
		out.vars[j] = &sub
	}
	return out, nil
}

// Concat joins parts along dim in order. Every part must share the schema
// of the first. Variables that do not span dim are taken from the first
// part and must hold equal values in all others.
func Concat(dim string, parts ...*Dataset) (*Dataset, error) {
	if len(parts) == 0 {
		return nil, chunkerr.ShapeMismatch(dim, 1, 0, "nothing to concatenate")
	}
	first := parts[0]
	i := first.dimIndex(dim)
	if i < 0 {
		return nil, chunkerr.DimensionNotFound(dim, first.DimNames())
	}
	name := first.dims[i].Name

	total := 0
	for p, part := range parts {
		if err := first.schemaMatches(part, name); err != nil {
			return nil, err.WithDetail("part", strconv.Itoa(p))
		}
		total += part.dims[i].Size
	}

	out := first.shallow()
	out.dims = slices.Clone(first.dims)
	out.dims[i].Size = total
	out.vars = make([]*Variable, len(first.vars))
	for j, v := range first.vars {
		axis := v.axis(name)
		if axis < 0 {
			for p, part := range parts[1:] {
				if !part.vars[j].Data.Equal(v.Data) {
					return nil, chunkerr.ShapeMismatch(name, -1, -1,
						"variable %q does not span %s and differs between parts", v.Name, name).
						WithDetail("part", strconv.Itoa(p+1))
				}
			}
			out.vars[j] = v
			continue
		}
		arrays := make([]*ndarray.Array, len(parts))
		for p, part := range parts {
			arrays[p] = part.vars[j].Data
		}
		joined, err := ndarray.Concat(axis, arrays...)
		if err != nil {
			return nil, fmt.Errorf("concat %q along %s: %w", v.Name, name, err)
		}
		merged := *v
		merged.Data = joined
		out.vars[j] = &merged
	}
	return out, nil
}

// schemaMatches checks that other has the same dimension set, variable set
// and variable dimension membership, and that every dimension except along
// has the same size.
func (ds *Dataset) schemaMatches(other *Dataset, along string) *chunkerr.Error {
	if !slices.Equal(ds.DimNames(), other.DimNames()) {
		return chunkerr.ShapeMismatch("", len(ds.dims), len(other.dims),
			"dimensions differ: %v vs %v", ds.DimNames(), other.DimNames())
	}
	for k, d := range ds.dims {
		if d.Name != along && other.dims[k].Size != d.Size {
			return chunkerr.ShapeMismatch(d.Name, d.Size, other.dims[k].Size,
				"non-concatenated dimension size differs")
		}
	}
	if !slices.Equal(ds.Variables(), other.Variables()) {
		return chunkerr.ShapeMismatch("", len(ds.vars), len(other.vars),
			"variables differ: %v vs %v", ds.Variables(), other.Variables())
	}
	for k, v := range ds.vars {
		if !slices.Equal(v.Dims, other.vars[k].Dims) {
			return chunkerr.ShapeMismatch("", len(v.Dims), len(other.vars[k].Dims),
				"variable %q dims differ: %v vs %v", v.Name, v.Dims, other.vars[k].Dims)
		}
	}
	return nil
}

// SchemaEqual reports whether ds and other have the same schema: dimension
// names and sizes, variable names, and variable dimension membership.
func (ds *Dataset) SchemaEqual(other *Dataset) bool {
	if other == nil || !slices.Equal(ds.dims, other.dims) {
		return false
	}
	return ds.schemaMatches(other, "") == nil
}

// Equal reports whether ds and other have the same schema and values.
// Attributes and re-chunk hints are not compared.
func (ds *Dataset) Equal(other *Dataset) bool {
	if !ds.SchemaEqual(other) {
		return false
	}
	for k, v := range ds.vars {
		if !v.Data.Equal(other.vars[k].Data) {
			return false
		}
	}
	return true
}

// Rechunk returns a shallow copy carrying internal chunk-size hints per
// dimension. Hints for unknown dimensions are rejected; values must be
// positive.
func (ds *Dataset) Rechunk(hints map[string]int) (*Dataset, error) {
	out := ds.shallow()
	out.chunks = maps.Clone(ds.chunks)
	if out.chunks == nil {
		out.chunks = make(map[string]int, len(hints))
	}
	for dim, size := range hints {
		i := ds.dimIndex(dim)
		if i < 0 {
			return nil, chunkerr.DimensionNotFound(dim, ds.DimNames())
		}
		if size < 1 {
			return nil, chunkerr.Configuration("chunk hint for %s must be positive, got %d", dim, size)
		}
		out.chunks[ds.dims[i].Name] = size
	}
	return out, nil
}

// Chunks returns a copy of the re-chunk hints.
func (ds *Dataset) Chunks() map[string]int {
	return maps.Clone(ds.chunks)
}

// Schema returns the canonical IR form of the schema.
func (ds *Dataset) Schema() ir.IRObject {
	dims := make(ir.IRArray, len(ds.dims))
	for i, d := range ds.dims {
		dims[i] = ir.IRObject{"name": ir.IRString(d.Name), "size": ir.IRInt(d.Size)}
	}
	vars := make(ir.IRArray, len(ds.vars))
	for i, v := range ds.vars {
		vars[i] = ir.IRObject{"name": ir.IRString(v.Name), "dims": ir.Strings(v.Dims)}
	}
	return ir.IRObject{"dims": dims, "variables": vars}
}

// Fingerprint returns a content digest over the schema and all values.
// Equal datasets have equal fingerprints regardless of storage layout.
func (ds *Dataset) Fingerprint() (string, error) {
	obj := ds.Schema()
	data := make(ir.IRObject, len(ds.vars))
	for _, v := range ds.vars {
		data[v.Name] = ir.Floats(v.Data.Values())
	}
	obj["data"] = data
	return ir.Digest(ir.DomainDataset, obj)
}
