package dicom

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mrsinham/niftiforge/internal/volume"
)

// planeGeometry is the in-plane placement shared by every slice of a series.
type planeGeometry struct {
	row     r3.Vec // direction of increasing column index
	col     r3.Vec // direction of increasing row index
	normal  r3.Vec
	spacing [2]float64 // between columns, between rows
}

func newPlaneGeometry(orientation, pixelSpacing []float64) (planeGeometry, error) {
	if len(orientation) != 6 {
		return planeGeometry{}, fmt.Errorf("image orientation has %d values, want 6", len(orientation))
	}
	if len(pixelSpacing) != 2 {
		return planeGeometry{}, fmt.Errorf("pixel spacing has %d values, want 2", len(pixelSpacing))
	}
	g := planeGeometry{
		row: r3.Vec{X: orientation[0], Y: orientation[1], Z: orientation[2]},
		col: r3.Vec{X: orientation[3], Y: orientation[4], Z: orientation[5]},
		// PixelSpacing is row spacing first
		spacing: [2]float64{pixelSpacing[1], pixelSpacing[0]},
	}
	g.normal = r3.Cross(g.row, g.col)
	if r3.Norm(g.normal) < 1e-6 {
		return planeGeometry{}, errors.New("image orientation vectors are parallel")
	}
	g.normal = r3.Unit(g.normal)
	return g, nil
}

// depth projects a slice position onto the slice normal.
func (g planeGeometry) depth(position r3.Vec) float64 {
	return r3.Dot(position, g.normal)
}

// affine returns the voxel to RAS transform for slices starting at origin and stepping
// sliceSpacing along the normal.
func (g planeGeometry) affine(origin r3.Vec, sliceSpacing float64) volume.Affine {
	x := r3.Scale(g.spacing[0], g.row)
	y := r3.Scale(g.spacing[1], g.col)
	z := r3.Scale(sliceSpacing, g.normal)
	lps := volume.Affine{
		{x.X, y.X, z.X, origin.X},
		{x.Y, y.Y, z.Y, origin.Y},
		{x.Z, y.Z, z.Z, origin.Z},
		{0, 0, 0, 1},
	}
	// DICOM patient space is LPS
	for i := 0; i < 2; i++ {
		for j := 0; j < 4; j++ {
			lps[i][j] = -lps[i][j]
		}
	}
	return lps
}

// sliceSpacing derives the spacing from sorted slice depths, falling back to the stated
// spacing when there is a single slice.
func sliceSpacing(depths []float64, stated float64) float64 {
	if len(depths) > 1 {
		if d := math.Abs(depths[1] - depths[0]); d > 1e-6 {
			return d
		}
	}
	if stated > 0 {
		return stated
	}
	return 1
}

func vecOf(vals []float64) (r3.Vec, error) {
	if len(vals) != 3 {
		return r3.Vec{}, fmt.Errorf("image position has %d values, want 3", len(vals))
	}
	return r3.Vec{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}
