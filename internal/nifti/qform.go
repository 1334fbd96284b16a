package nifti

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/mrsinham/niftiforge/internal/volume"
)

// SetQForm encodes a as quaternion parameters, voxel sizes and qfac. Shear in a is
// discarded: the rotation stored is the closest orthonormal matrix.
func (h *Header) SetQForm(a volume.Affine, code int16) error {
	zooms := a.Zooms()
	r := a.Rotation()
	for c := 0; c < 3; c++ {
		if zooms[c] == 0 {
			return fmt.Errorf("affine column %d is zero", c)
		}
		for row := 0; row < 3; row++ {
			r.Set(row, c, r.At(row, c)/zooms[c])
		}
	}

	qfac := 1.0
	if mat.Det(r) < 0 {
		qfac = -1
		for row := 0; row < 3; row++ {
			r.Set(row, 2, -r.At(row, 2))
		}
	}

	var svd mat.SVD
	if !svd.Factorize(r, mat.SVDFull) {
		return fmt.Errorf("cannot factorize rotation")
	}
	var u, v, pr mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	pr.Mul(&u, v.T())

	b, c, d := quaternion(&pr)
	t := a.Translation()

	h.QuaternB, h.QuaternC, h.QuaternD = float32(b), float32(c), float32(d)
	h.QOffsetX, h.QOffsetY, h.QOffsetZ = float32(t[0]), float32(t[1]), float32(t[2])
	h.Pixdim[0] = float32(qfac)
	h.Pixdim[1], h.Pixdim[2], h.Pixdim[3] = float32(zooms[0]), float32(zooms[1]), float32(zooms[2])
	h.QformCode = code
	return nil
}

// quaternion returns (b, c, d) of the unit quaternion for a proper rotation, with a >= 0.
func quaternion(r mat.Matrix) (b, c, d float64) {
	r11, r12, r13 := r.At(0, 0), r.At(0, 1), r.At(0, 2)
	r21, r22, r23 := r.At(1, 0), r.At(1, 1), r.At(1, 2)
	r31, r32, r33 := r.At(2, 0), r.At(2, 1), r.At(2, 2)

	var a float64
	if tr := r11 + r22 + r33 + 1; tr > 0.5 {
		a = 0.5 * math.Sqrt(tr)
		b = 0.25 * (r32 - r23) / a
		c = 0.25 * (r13 - r31) / a
		d = 0.25 * (r21 - r12) / a
	} else {
		xd := 1 + r11 - (r22 + r33)
		yd := 1 + r22 - (r11 + r33)
		zd := 1 + r33 - (r11 + r22)
		switch {
		case xd > 1:
			b = 0.5 * math.Sqrt(xd)
			c = 0.25 * (r12 + r21) / b
			d = 0.25 * (r13 + r31) / b
			a = 0.25 * (r32 - r23) / b
		case yd > 1:
			c = 0.5 * math.Sqrt(yd)
			b = 0.25 * (r12 + r21) / c
			d = 0.25 * (r23 + r32) / c
			a = 0.25 * (r13 - r31) / c
		default:
			d = 0.5 * math.Sqrt(zd)
			b = 0.25 * (r13 + r31) / d
			c = 0.25 * (r23 + r32) / d
			a = 0.25 * (r21 - r12) / d
		}
		if a < 0 {
			b, c, d = -b, -c, -d
		}
	}
	return b, c, d
}

// QForm rebuilds the affine from the quaternion parameters.
func (h *Header) QForm() volume.Affine {
	b, c, d := float64(h.QuaternB), float64(h.QuaternC), float64(h.QuaternD)
	a := math.Sqrt(math.Max(0, 1-(b*b+c*c+d*d)))
	qfac := float64(h.Pixdim[0])
	if qfac == 0 {
		qfac = 1
	}
	dx, dy, dz := float64(h.Pixdim[1]), float64(h.Pixdim[2]), qfac*float64(h.Pixdim[3])

	return volume.Affine{
		{(a*a + b*b - c*c - d*d) * dx, 2 * (b*c - a*d) * dy, 2 * (b*d + a*c) * dz, float64(h.QOffsetX)},
		{2 * (b*c + a*d) * dx, (a*a + c*c - b*b - d*d) * dy, 2 * (c*d - a*b) * dz, float64(h.QOffsetY)},
		{2 * (b*d - a*c) * dx, 2 * (c*d + a*b) * dy, (a*a + d*d - c*c - b*b) * dz, float64(h.QOffsetZ)},
		{0, 0, 0, 1},
	}
}
