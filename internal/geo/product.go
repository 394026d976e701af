package geo

import (
	"sort"
	"time"

	"github.com/araddon/dateparse"

	"github.com/roach88/geochunk/internal/chunkerr"
	"github.com/roach88/geochunk/internal/ndarray"
)

// DictProduct returns every combination of one option per key. Keys are
// visited in sorted order with the last key varying fastest. A key with no
// options yields no combinations; no keys yield one empty combination.
func DictProduct[V any](options map[string][]V) []map[string]V {
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []map[string]V{{}}
	for _, k := range keys {
		next := make([]map[string]V, 0, len(out)*len(options[k]))
		for _, partial := range out {
			for _, v := range options[k] {
				combo := make(map[string]V, len(partial)+1)
				for pk, pv := range partial {
					combo[pk] = pv
				}
				combo[k] = v
				next = append(next, combo)
			}
		}
		out = next
	}
	return out
}

// ParseDate parses s. With an empty layout the format is detected; with a
// layout, s must match it (Go reference-time syntax). Times without a zone
// are taken as UTC.
func ParseDate(s, layout string) (time.Time, error) {
	if layout == "" {
		return dateparse.ParseIn(s, time.UTC)
	}
	return time.ParseInLocation(layout, s, time.UTC)
}

// XYGrid returns column and row index grids of shape (nrows, ncols):
// x[r, c] = c and y[r, c] = r.
func XYGrid(ncols, nrows int) (x, y *ndarray.Array, err error) {
	if ncols < 0 || nrows < 0 {
		return nil, nil, chunkerr.Configuration("grid size must not be negative, got %dx%d", ncols, nrows)
	}
	x = ndarray.Zeros(nrows, ncols)
	y = ndarray.Zeros(nrows, ncols)
	for r := 0; r < nrows; r++ {
		for c := 0; c < ncols; c++ {
			x.Set(float64(c), r, c)
			y.Set(float64(r), r, c)
		}
	}
	return x, y, nil
}

// Batches splits items into consecutive slices of size, the last possibly
// shorter. The slices alias items.
func Batches[T any](items []T, size int) ([][]T, error) {
	if size < 1 {
		return nil, chunkerr.Configuration("batch size must be at least 1, got %d", size)
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for i := 0; i < len(items); i += size {
		out = append(out, items[i:min(i+size, len(items))])
	}
	return out, nil
}
