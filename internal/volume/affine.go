package volume

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Affine maps voxel indices (i, j, k, 1) to scanner coordinates in millimeters, RAS+.
type Affine [4][4]float64

// Identity returns the identity transform.
func Identity() Affine {
	return Affine{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}}
}

// Dense returns the transform as a gonum matrix.
func (a Affine) Dense() *mat.Dense {
	m := mat.NewDense(4, 4, nil)
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			m.Set(r, c, a[r][c])
		}
	}
	return m
}

// AffineFrom copies a 4x4 gonum matrix.
func AffineFrom(m mat.Matrix) (Affine, error) {
	var a Affine
	if r, c := m.Dims(); r != 4 || c != 4 {
		return a, fmt.Errorf("affine must be 4x4, got %dx%d", r, c)
	}
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			a[r][c] = m.At(r, c)
		}
	}
	return a, nil
}

// Mul returns a·b.
func (a Affine) Mul(b Affine) Affine {
	var out mat.Dense
	out.Mul(a.Dense(), b.Dense())
	res, _ := AffineFrom(&out)
	return res
}

// Inverse returns the inverse transform.
func (a Affine) Inverse() (Affine, error) {
	var inv mat.Dense
	if err := inv.Inverse(a.Dense()); err != nil {
		return Affine{}, fmt.Errorf("invert affine: %w", err)
	}
	return AffineFrom(&inv)
}

// Apply maps a voxel index to scanner coordinates.
func (a Affine) Apply(i, j, k float64) [3]float64 {
	var out [3]float64
	for r := 0; r < 3; r++ {
		out[r] = a[r][0]*i + a[r][1]*j + a[r][2]*k + a[r][3]
	}
	return out
}

// Zooms returns the voxel size along each index axis.
func (a Affine) Zooms() [3]float64 {
	var z [3]float64
	for c := 0; c < 3; c++ {
		z[c] = math.Sqrt(a[0][c]*a[0][c] + a[1][c]*a[1][c] + a[2][c]*a[2][c])
	}
	return z
}

// Rotation returns the 3x3 linear part.
func (a Affine) Rotation() *mat.Dense {
	m := mat.NewDense(3, 3, nil)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.Set(r, c, a[r][c])
		}
	}
	return m
}

// Translation returns the offset column.
func (a Affine) Translation() [3]float64 {
	return [3]float64{a[0][3], a[1][3], a[2][3]}
}

// Equal reports whether every element differs by at most tol.
func (a Affine) Equal(b Affine, tol float64) bool {
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			if math.Abs(a[r][c]-b[r][c]) > tol {
				return false
			}
		}
	}
	return true
}
