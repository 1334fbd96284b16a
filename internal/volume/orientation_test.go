package volume

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAxisCodes(t *testing.T) {
	tests := []struct {
		name   string
		affine Affine
		want   string
	}{
		{"identity", Identity(), "RAS"},
		{"lps", Affine{{-1, 0, 0, 0}, {0, -1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}}, "LPS"},
		{"coronal", Affine{{2, 0, 0, 0}, {0, 0, 3, 0}, {0, -2, 0, 0}, {0, 0, 0, 1}}, "RIA"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := AxisCodes(tc.affine)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseVoxelOrder_Invalid(t *testing.T) {
	for _, order := range []string{"", "LP", "LPX", "LLS", "RAAS"} {
		_, _, err := ParseVoxelOrder(order)
		assert.Error(t, err, order)
	}
}

func TestReorder_IdentityWhenAlreadyOrdered(t *testing.T) {
	a := ramp(2, 3, 4)
	out, aff, err := Reorder(a, Identity(), "RAS")
	require.NoError(t, err)
	assert.Same(t, a, out)
	assert.Equal(t, Identity(), aff)
}

func TestReorder_PreservesWorldCoordinates(t *testing.T) {
	src := Affine{
		{2, 0, 0, -10},
		{0, 0, 3, 5},
		{0, -2.5, 0, 20},
		{0, 0, 0, 1},
	}
	a := ramp(3, 4, 5)

	out, aff, err := Reorder(a, src, "LPS")
	require.NoError(t, err)
	codes, err := AxisCodes(aff)
	require.NoError(t, err)
	assert.Equal(t, "LPS", codes)

	reordered := out.(*Array[int16])
	shape := reordered.Shape()
	assert.Equal(t, []int{3, 5, 4}, shape)

	inv, err := src.Inverse()
	require.NoError(t, err)
	for x := 0; x < shape[0]; x++ {
		for y := 0; y < shape[1]; y++ {
			for z := 0; z < shape[2]; z++ {
				world := aff.Apply(float64(x), float64(y), float64(z))
				old := inv.Apply(world[0], world[1], world[2])
				i, j, k := int(old[0]+0.5), int(old[1]+0.5), int(old[2]+0.5)
				assert.Equal(t, a.At(i, j, k), reordered.At(x, y, z))
			}
		}
	}
}
