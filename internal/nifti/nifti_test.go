package nifti

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrsinham/niftiforge/internal/volume"
)

func TestHeader_EncodedSize(t *testing.T) {
	assert.Equal(t, HeaderSize, binary.Size(Header{}))
}

func TestNewHeader(t *testing.T) {
	v := volume.Zeros[int16](4, 5, 6, 2)
	h, err := NewHeader(v)
	require.NoError(t, err)
	assert.Equal(t, int16(4), h.Dim[0])
	assert.Equal(t, []int{4, 5, 6, 2}, h.Shape())
	assert.Equal(t, DTInt16, h.Datatype)
	assert.Equal(t, int16(16), h.Bitpix)
	assert.Equal(t, float32(VoxOffset), h.VoxOffset)
}

func TestDimInfoPacking(t *testing.T) {
	h := &Header{}
	h.SetDimInfo(1, 0, 2)
	assert.Equal(t, byte(2|1<<2|3<<4), h.DimInfo)
	f, p, s := h.GetDimInfo()
	assert.Equal(t, [3]int{1, 0, 2}, [3]int{f, p, s})

	h.SetDimInfo(-1, 1, 2)
	f, p, s = h.GetDimInfo()
	assert.Equal(t, [3]int{-1, 1, 2}, [3]int{f, p, s})
}

func TestUnits(t *testing.T) {
	h := &Header{}
	h.SetXYZTUnits(UnitsMM, UnitsSec)
	assert.Equal(t, byte(10), h.XYZTUnits)
	s, tm := h.Units()
	assert.Equal(t, UnitsMM, s)
	assert.Equal(t, UnitsSec, tm)
}

func TestDescripTruncates(t *testing.T) {
	h := &Header{}
	long := string(bytes.Repeat([]byte("x"), 100))
	h.SetDescrip(long)
	assert.Len(t, h.Description(), 80)
	h.SetDescrip("te=2.00;")
	assert.Equal(t, "te=2.00;", h.Description())
}

func TestQForm_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		affine volume.Affine
		qfac   float32
	}{
		{"identity", volume.Identity(), 1},
		{"lps flip", volume.Affine{{-1, 0, 0, 90}, {0, -1, 0, 126}, {0, 0, 1, -72}, {0, 0, 0, 1}}, 1},
		{"left handed", volume.Affine{{-2, 0, 0, 10}, {0, 2, 0, 20}, {0, 0, 3, 30}, {0, 0, 0, 1}}, -1},
		{"coronal", volume.Affine{{0.9, 0, 0, -5}, {0, 0, 4, 3}, {0, -0.9, 0, 8}, {0, 0, 0, 1}}, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := &Header{}
			require.NoError(t, h.SetQForm(tc.affine, XformScannerAnat))
			assert.Equal(t, XformScannerAnat, h.QformCode)
			assert.Equal(t, tc.qfac, h.Pixdim[0])
			assert.True(t, tc.affine.Equal(h.QForm(), 1e-5), "got %v", h.QForm())
		})
	}
}

func TestQForm_ObliqueRotation(t *testing.T) {
	theta := math.Pi / 7
	a := volume.Affine{
		{math.Cos(theta), -math.Sin(theta), 0, 1},
		{math.Sin(theta), math.Cos(theta), 0, 2},
		{0, 0, 2.5, 3},
		{0, 0, 0, 1},
	}
	h := &Header{}
	require.NoError(t, h.SetQForm(a, XformScannerAnat))
	assert.True(t, a.Equal(h.QForm(), 1e-5))
}

func TestQForm_RejectsDegenerate(t *testing.T) {
	a := volume.Identity()
	a[1][1] = 0
	assert.Error(t, (&Header{}).SetQForm(a, XformScannerAnat))
}

func TestWriteReadFile(t *testing.T) {
	dir := t.TempDir()
	v := volume.Zeros[float32](3, 4, 5)
	for i := range v.Data() {
		v.Data()[i] = float32(i) / 2
	}
	affine := volume.Affine{{-2, 0, 0, 1}, {0, 2, 0, 2}, {0, 0, 2, 3}, {0, 0, 0, 1}}

	h, err := NewHeader(v)
	require.NoError(t, err)
	require.NoError(t, h.SetQForm(affine, XformScannerAnat))
	h.SetSForm(affine, XformScannerAnat)
	h.SetDescrip("hello")

	for _, name := range []string{"plain.nii", "packed.nii.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, WriteFile(path, h, v))

			img, err := ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, "hello", img.Header.Description())
			assert.True(t, affine.Equal(img.Affine(), 1e-6))
			assert.Equal(t, v.Data(), img.Data.(*volume.Array[float32]).Data())
		})
	}

	raw, err := os.ReadFile(filepath.Join(dir, "plain.nii"))
	require.NoError(t, err)
	assert.Len(t, raw, VoxOffset+3*4*5*4)
}

func TestDecode_BigEndian(t *testing.T) {
	v := volume.Zeros[int16](2, 2, 1)
	copy(v.Data(), []int16{1, -2, 300, 4})
	h, err := NewHeader(v)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, h))
	buf.Write(make([]byte, VoxOffset-HeaderSize))
	require.NoError(t, binary.Write(&buf, binary.BigEndian, v.Data()))

	img, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, v.Data(), img.Data.(*volume.Array[int16]).Data())
}

func TestDecode_RejectsGarbage(t *testing.T) {
	_, err := Decode(bytes.NewReader(make([]byte, 400)))
	assert.Error(t, err)
}
