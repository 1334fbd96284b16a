package dicom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mrsinham/niftiforge/internal/volume"
)

func TestPlaneGeometry_Affine(t *testing.T) {
	g, err := newPlaneGeometry([]float64{1, 0, 0, 0, 1, 0}, []float64{0.5, 0.8})
	require.NoError(t, err)

	got := g.affine(r3.Vec{X: -10, Y: 20, Z: 5}, 3)
	want := volume.Affine{
		{-0.8, 0, 0, 10},
		{0, -0.5, 0, -20},
		{0, 0, 3, 5},
		{0, 0, 0, 1},
	}
	assert.True(t, got.Equal(want, 1e-12), "got %v", got)
	assert.InDelta(t, 5, g.depth(r3.Vec{X: 1, Y: 2, Z: 5}), 1e-12)
}

func TestPlaneGeometry_Errors(t *testing.T) {
	_, err := newPlaneGeometry([]float64{1, 0, 0}, []float64{1, 1})
	assert.Error(t, err)
	_, err = newPlaneGeometry([]float64{1, 0, 0, 0, 1, 0}, []float64{1})
	assert.Error(t, err)
	_, err = newPlaneGeometry([]float64{1, 0, 0, 1, 0, 0}, []float64{1, 1})
	assert.ErrorContains(t, err, "parallel")
}

func TestSliceSpacing(t *testing.T) {
	assert.Equal(t, 2.5, sliceSpacing([]float64{-1, 1.5, 4}, 9))
	assert.Equal(t, 9.0, sliceSpacing([]float64{3}, 9))
	assert.Equal(t, 1.0, sliceSpacing([]float64{3}, 0))
}
