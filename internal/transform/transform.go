// Package transform provides the named built-in transformations that job
// files and scenarios refer to. Each builds a dispatch.TransformFunc from
// its parameters and reports the halo width it needs to be exact under
// chunking.
package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/roach88/geochunk/internal/chunkerr"
	"github.com/roach88/geochunk/internal/dataset"
	"github.com/roach88/geochunk/internal/dispatch"
	"github.com/roach88/geochunk/internal/ir"
)

// Transform is a built transformation.
type Transform struct {
	Name string

	// Dim is the dimension the transformation works along, or "" for
	// element-wise transformations.
	Dim string

	// Halo is the minimum buffer for chunked results to equal serial ones.
	Halo int

	Fn dispatch.TransformFunc
}

type builder func(p Params) (Transform, error)

var registry = map[string]builder{
	"identity":    buildIdentity,
	"scale":       buildScale,
	"offset":      buildOffset,
	"moving_mean": buildMovingMean,
	"gradient":    buildGradient,
}

// Names returns the registered transformation names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build resolves spec against the registry.
func Build(spec ir.TransformSpec) (Transform, error) {
	b, ok := registry[spec.Name]
	if !ok {
		return Transform{}, chunkerr.Configuration("unknown transform %q (known: %v)", spec.Name, Names())
	}
	t, err := b(Params(spec.Params))
	if err != nil {
		return Transform{}, fmt.Errorf("transform %s: %w", spec.Name, err)
	}
	t.Name = spec.Name
	return t, nil
}

func buildIdentity(Params) (Transform, error) {
	return Transform{Fn: func(_ context.Context, ds *dataset.Dataset, _ ...any) (*dataset.Dataset, error) {
		return ds, nil
	}}, nil
}

func buildScale(p Params) (Transform, error) {
	factor, err := p.Float("factor", 1)
	if err != nil {
		return Transform{}, err
	}
	vars, err := p.Strings("variables")
	if err != nil {
		return Transform{}, err
	}
	return Transform{Fn: elementwise(vars, func(v float64) float64 { return v * factor })}, nil
}

func buildOffset(p Params) (Transform, error) {
	value, err := p.Float("value", 0)
	if err != nil {
		return Transform{}, err
	}
	vars, err := p.Strings("variables")
	if err != nil {
		return Transform{}, err
	}
	return Transform{Fn: elementwise(vars, func(v float64) float64 { return v + value })}, nil
}

func buildMovingMean(p Params) (Transform, error) {
	dim, err := p.String("dim", "")
	if err != nil {
		return Transform{}, err
	}
	if dim == "" {
		return Transform{}, chunkerr.Configuration("moving_mean requires dim")
	}
	radius, err := p.Int("radius", 1)
	if err != nil {
		return Transform{}, err
	}
	if radius < 1 {
		return Transform{}, chunkerr.Configuration("moving_mean radius must be at least 1, got %d", radius)
	}
	vars, err := p.Strings("variables")
	if err != nil {
		return Transform{}, err
	}
	return Transform{Dim: dim, Halo: radius, Fn: along(dim, vars, func(in, out []float64) {
		movingMean(in, out, radius)
	})}, nil
}

func buildGradient(p Params) (Transform, error) {
	dim, err := p.String("dim", "")
	if err != nil {
		return Transform{}, err
	}
	if dim == "" {
		return Transform{}, chunkerr.Configuration("gradient requires dim")
	}
	vars, err := p.Strings("variables")
	if err != nil {
		return Transform{}, err
	}
	return Transform{Dim: dim, Halo: 1, Fn: along(dim, vars, gradient)}, nil
}

// elementwise applies fn to every element of the selected variables (all
// when vars is empty).
func elementwise(vars []string, fn func(float64) float64) dispatch.TransformFunc {
	return func(_ context.Context, ds *dataset.Dataset, _ ...any) (*dataset.Dataset, error) {
		out := ds
		for _, name := range ds.Variables() {
			if len(vars) > 0 && !slices.Contains(vars, name) {
				continue
			}
			v, _ := out.Variable(name)
			v.Data = v.Data.Map(fn)
			var err error
			if out, err = out.WithVariable(v); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
}

// along applies fn to every lane along dim of the selected variables that
// span dim.
func along(dim string, vars []string, fn func(in, out []float64)) dispatch.TransformFunc {
	return func(_ context.Context, ds *dataset.Dataset, _ ...any) (*dataset.Dataset, error) {
		if !ds.HasDim(dim) {
			return nil, chunkerr.DimensionNotFound(dim, ds.DimNames())
		}
		dim := ir.NormalizeName(dim)
		out := ds
		for _, name := range ds.Variables() {
			if len(vars) > 0 && !slices.Contains(vars, name) {
				continue
			}
			v, _ := out.Variable(name)
			axis := slices.Index(v.Dims, dim)
			if axis < 0 {
				continue
			}
			data, err := v.Data.MapLanes(axis, fn)
			if err != nil {
				return nil, err
			}
			v.Data = data
			if out, err = out.WithVariable(v); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
}

// movingMean writes the mean over the window [i-r, i+r] clipped to the
// lane. NaN elements are skipped; a window of only NaN yields NaN.
func movingMean(in, out []float64, r int) {
	n := len(in)
	for i := range in {
		lo, hi := max(i-r, 0), min(i+r+1, n)
		sum, count := 0.0, 0
		for _, v := range in[lo:hi] {
			if !math.IsNaN(v) {
				sum += v
				count++
			}
		}
		if count == 0 {
			out[i] = math.NaN()
		} else {
			out[i] = sum / float64(count)
		}
	}
}

// gradient writes central differences in the interior and one-sided
// differences at the lane ends.
func gradient(in, out []float64) {
	n := len(in)
	switch n {
	case 0:
		return
	case 1:
		out[0] = 0
		return
	}
	out[0] = in[1] - in[0]
	out[n-1] = in[n-1] - in[n-2]
	for i := 1; i < n-1; i++ {
		out[i] = (in[i+1] - in[i-1]) / 2
	}
}

// Params holds transformation parameters as decoded from YAML, JSON or CUE.
type Params map[string]any

// Float returns a numeric parameter.
func (p Params) Float(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	}
	return 0, chunkerr.Configuration("param %s: want number, got %T", key, v)
}

// Int returns an integral parameter. Floats with a fractional part are
// rejected.
func (p Params) Int(key string, def int) (int, error) {
	if _, ok := p[key]; !ok {
		return def, nil
	}
	f, err := p.Float(key, float64(def))
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, chunkerr.Configuration("param %s: want integer, got %v", key, f)
	}
	return int(f), nil
}

// String returns a string parameter.
func (p Params) String(key, def string) (string, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", chunkerr.Configuration("param %s: want string, got %T", key, v)
	}
	return s, nil
}

// Strings returns a list-of-strings parameter, nil when absent.
func (p Params) Strings(key string) ([]string, error) {
	v, ok := p[key]
	if !ok {
		return nil, nil
	}
	switch list := v.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, chunkerr.Configuration("param %s[%d]: want string, got %T", key, i, item)
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, chunkerr.Configuration("param %s: want list of strings, got %T", key, v)
}
