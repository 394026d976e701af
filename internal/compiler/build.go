package compiler

import (
	"fmt"
	"math"
	"slices"

	"github.com/roach88/geochunk/internal/chunkerr"
	"github.com/roach88/geochunk/internal/dataset"
	"github.com/roach88/geochunk/internal/geo"
	"github.com/roach88/geochunk/internal/ir"
	"github.com/roach88/geochunk/internal/ndarray"
)

// BuildDataset generates the dataset a job describes.
func BuildDataset(spec ir.DatasetSpec) (*dataset.Dataset, error) {
	dims := make([]dataset.Dim, len(spec.Dims))
	sizes := make(map[string]int, len(spec.Dims))
	for i, d := range spec.Dims {
		dims[i] = dataset.Dim{Name: d.Name, Size: d.Size}
		sizes[ir.NormalizeName(d.Name)] = d.Size
	}

	vars := make([]dataset.Variable, 0, len(spec.Variables))
	for _, vs := range spec.Variables {
		shape := make([]int, len(vs.Dims))
		for i, d := range vs.Dims {
			n, ok := sizes[ir.NormalizeName(d)]
			if !ok {
				return nil, fmt.Errorf("variable %s: %w", vs.Name, chunkerr.DimensionNotFound(d, datasetDimNames(spec)))
			}
			shape[i] = n
		}
		data, err := fill(vs, shape)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", vs.Name, err)
		}
		vars = append(vars, dataset.Variable{Name: vs.Name, Dims: vs.Dims, Data: data, Attrs: vs.Attrs})
	}

	ds, err := dataset.New(dims, vars...)
	if err != nil {
		return nil, err
	}
	for k, v := range spec.Attrs {
		ds = ds.WithAttr(k, v)
	}
	return ds, nil
}

func fill(vs ir.VariableSpec, shape []int) (*ndarray.Array, error) {
	switch vs.Fill {
	case "", ir.FillArange:
		return ndarray.Arange(shape...), nil
	case ir.FillZeros:
		return ndarray.Zeros(shape...), nil
	case ir.FillConstant:
		return ndarray.Zeros(shape...).Map(func(float64) float64 { return vs.Value }), nil
	case ir.FillValues:
		return ndarray.New(shape, slices.Clone(vs.Values))
	case ir.FillSine:
		// One full period over the flattened variable.
		a := ndarray.Arange(shape...)
		n := float64(max(a.Len(), 1))
		return a.Map(func(k float64) float64 { return math.Sin(2 * math.Pi * k / n) }), nil
	case ir.FillGridX, ir.FillGridY:
		if len(shape) != 2 {
			return nil, chunkerr.Configuration("%s needs exactly two dims, got %d", vs.Fill, len(shape))
		}
		x, y, err := geo.XYGrid(shape[1], shape[0])
		if err != nil {
			return nil, err
		}
		if vs.Fill == ir.FillGridX {
			return x, nil
		}
		return y, nil
	default:
		return nil, chunkerr.Configuration("unknown fill %q", vs.Fill)
	}
}

func datasetDimNames(spec ir.DatasetSpec) []string {
	names := make([]string, len(spec.Dims))
	for i, d := range spec.Dims {
		names[i] = d.Name
	}
	return names
}
