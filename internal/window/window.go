// Package window splits a dataset along one named dimension into a fixed
// number of contiguous chunks, optionally widened by a symmetric halo
// ("buffer") of neighboring elements, and merges processed chunks back.
//
// For a dimension of size n split into count chunks:
//
//	chunkSize = ceil(n / count)
//	range[i]  = [max(i*chunkSize - buffer, 0), min((i+1)*chunkSize + buffer, n))
//	core[i]   = [min(i*chunkSize, n), min((i+1)*chunkSize, n))
//
// Cores partition [0, n) exactly. Merge trims each part back to its core
// before concatenating, so Merge(Split(ds)) equals ds. Trailing chunks may
// be empty when count does not divide n evenly.
package window

import (
	"fmt"
	"iter"
	"strconv"

	"github.com/roach88/geochunk/internal/blocks"
	"github.com/roach88/geochunk/internal/chunkerr"
	"github.com/roach88/geochunk/internal/dataset"
)

// Plan fixes the chunk boundaries for one dimension.
type Plan struct {
	Dim       string `json:"dim"`
	Size      int    `json:"size"`
	Count     int    `json:"count"`
	Buffer    int    `json:"buffer"`
	ChunkSize int    `json:"chunk_size"`
}

// NewPlan validates the parameters and computes the chunk size.
func NewPlan(dim string, size, count, buffer int) (Plan, error) {
	if count < 1 {
		e := chunkerr.Configuration("chunk count must be at least 1, got %d", count)
		e.Dim = dim
		return Plan{}, e
	}
	if size < 1 {
		e := chunkerr.Configuration("dimension %s must have at least one element, got %d", dim, size)
		e.Dim = dim
		return Plan{}, e
	}
	if buffer < 0 {
		e := chunkerr.Configuration("buffer must not be negative, got %d", buffer)
		e.Dim = dim
		return Plan{}, e
	}
	chunkSize := (size + count - 1) / count
	if buffer >= chunkSize {
		e := chunkerr.Configuration("buffer %d must be smaller than chunk size %d", buffer, chunkSize)
		e.Dim = dim
		return Plan{}, e
	}
	return Plan{Dim: dim, Size: size, Count: count, Buffer: buffer, ChunkSize: chunkSize}, nil
}

// PlanFor resolves the size of dim in ds and builds a plan.
func PlanFor(ds *dataset.Dataset, dim string, count, buffer int) (Plan, error) {
	size, err := ds.Size(dim)
	if err != nil {
		return Plan{}, err
	}
	return NewPlan(dim, size, count, buffer)
}

// Range returns the halo-widened selection for chunk i. A chunk lying
// wholly past the end of the dimension selects the empty range [n, n).
func (p Plan) Range(i int) blocks.Range {
	return blocks.Range{
		Lo: min(max(i*p.ChunkSize-p.Buffer, 0), p.Size),
		Hi: min((i+1)*p.ChunkSize+p.Buffer, p.Size),
	}
}

// Core returns the exclusive range owned by chunk i.
func (p Plan) Core(i int) blocks.Range {
	return blocks.Range{
		Lo: min(i*p.ChunkSize, p.Size),
		Hi: min((i+1)*p.ChunkSize, p.Size),
	}
}

// Ranges returns every chunk's selection in order.
func (p Plan) Ranges() []blocks.Range {
	out := make([]blocks.Range, p.Count)
	for i := range out {
		out[i] = p.Range(i)
	}
	return out
}

// Cores returns every chunk's core in order.
func (p Plan) Cores() []blocks.Range {
	out := make([]blocks.Range, p.Count)
	for i := range out {
		out[i] = p.Core(i)
	}
	return out
}

// Split is shorthand for PlanFor followed by Plan.Split.
func Split(ds *dataset.Dataset, dim string, count, buffer int) (*Chunks, Plan, error) {
	plan, err := PlanFor(ds, dim, count, buffer)
	if err != nil {
		return nil, Plan{}, err
	}
	chunks, err := plan.Split(ds)
	if err != nil {
		return nil, Plan{}, err
	}
	return chunks, plan, nil
}

// Split returns a stream over the chunks of ds. The dataset must carry the
// plan's dimension at the plan's size.
func (p Plan) Split(ds *dataset.Dataset) (*Chunks, error) {
	size, err := ds.Size(p.Dim)
	if err != nil {
		return nil, err
	}
	if size != p.Size {
		return nil, chunkerr.ShapeMismatch(p.Dim, p.Size, size, "dataset does not match plan")
	}
	return &Chunks{plan: p, ds: ds}, nil
}

// Chunks is a single-pass stream of chunk selections. Selections are
// produced on demand as views into the source dataset. Once exhausted the
// stream stays exhausted; split again to iterate a second time.
type Chunks struct {
	plan Plan
	ds   *dataset.Dataset
	next int
	err  error
}

// Len returns the total number of chunks the stream yields.
func (c *Chunks) Len() int { return c.plan.Count }

// Next returns the next chunk index and selection. ok is false once the
// stream is exhausted or a selection failed; check Err.
func (c *Chunks) Next() (int, *dataset.Dataset, bool) {
	if c.err != nil || c.next >= c.plan.Count {
		return 0, nil, false
	}
	i := c.next
	c.next++
	r := c.plan.Range(i)
	sub, err := c.ds.ISel(c.plan.Dim, r.Lo, r.Hi)
	if err != nil {
		c.err = fmt.Errorf("chunk %d: %w", i, err)
		return 0, nil, false
	}
	return i, sub, true
}

// Err returns the first selection error, if any.
func (c *Chunks) Err() error { return c.err }

// All adapts the remaining stream to a range-over-func iterator.
func (c *Chunks) All() iter.Seq2[int, *dataset.Dataset] {
	return func(yield func(int, *dataset.Dataset) bool) {
		for {
			i, sub, ok := c.Next()
			if !ok || !yield(i, sub) {
				return
			}
		}
	}
}

// Collect drains the stream into a slice.
func (c *Chunks) Collect() ([]*dataset.Dataset, error) {
	out := make([]*dataset.Dataset, 0, c.plan.Count-c.next)
	for _, sub := range c.All() {
		out = append(out, sub)
	}
	return out, c.err
}

// Merge trims each part to its core and concatenates them along the plan's
// dimension. Parts must arrive in chunk order, one per planned chunk, each
// with the extent of its planned range.
func Merge(parts []*dataset.Dataset, p Plan) (*dataset.Dataset, error) {
	if len(parts) != p.Count {
		return nil, chunkerr.ShapeMismatch(p.Dim, p.Count, len(parts),
			"merge expects one part per chunk")
	}
	trimmed := make([]*dataset.Dataset, len(parts))
	for i, part := range parts {
		if part == nil {
			return nil, chunkerr.ShapeMismatch(p.Dim, p.Count, len(parts),
				"part %d is missing", i).WithDetail("part", strconv.Itoa(i))
		}
		r, core := p.Range(i), p.Core(i)
		size, err := part.Size(p.Dim)
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		if size != r.Len() {
			return nil, chunkerr.ShapeMismatch(p.Dim, r.Len(), size,
				"part %d extent does not match its planned range", i).WithDetail("part", strconv.Itoa(i))
		}
		lead := core.Lo - r.Lo
		t, err := part.ISel(p.Dim, lead, lead+core.Len())
		if err != nil {
			return nil, fmt.Errorf("trim part %d: %w", i, err)
		}
		trimmed[i] = t
	}
	return dataset.Concat(p.Dim, trimmed...)
}
