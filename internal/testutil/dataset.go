package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/geochunk/internal/dataset"
	"github.com/roach88/geochunk/internal/ndarray"
)

// Line returns a dataset with a single dimension dim of size n and one
// variable "v" holding 0..n-1.
func Line(t testing.TB, dim string, n int) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New(
		[]dataset.Dim{{Name: dim, Size: n}},
		dataset.Variable{Name: "v", Dims: []string{dim}, Data: ndarray.Arange(n)},
	)
	require.NoError(t, err)
	return ds
}

// Grid returns time=2, lat=lat, lon=3 with
//
//	temp[time, lat, lon]  arange
//	elev[lat, lon]        arange
//	step[time]            arange
func Grid(t testing.TB, lat int) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New(
		[]dataset.Dim{{Name: "time", Size: 2}, {Name: "lat", Size: lat}, {Name: "lon", Size: 3}},
		dataset.Variable{Name: "temp", Dims: []string{"time", "lat", "lon"}, Data: ndarray.Arange(2, lat, 3)},
		dataset.Variable{Name: "elev", Dims: []string{"lat", "lon"}, Data: ndarray.Arange(lat, 3)},
		dataset.Variable{Name: "step", Dims: []string{"time"}, Data: ndarray.Arange(2)},
	)
	require.NoError(t, err)
	return ds
}
