// Package nifti encodes and decodes single-file NIfTI-1 volumes.
//
// Field layout follows nifti1.h: https://nifti.nimh.nih.gov/pub/dist/src/niftilib/nifti1.h
package nifti

import (
	"bytes"
	"fmt"

	"github.com/mrsinham/niftiforge/internal/volume"
)

// HeaderSize is sizeof_hdr for NIfTI-1.
const HeaderSize = 348

// VoxOffset is where voxel data starts in a single-file image: header plus an empty
// extension flag.
const VoxOffset = 352

// Magic for single-file images ("n+1\0").
var Magic = [4]byte{'n', '+', '1', 0}

// Datatype codes.
const (
	DTUint8      int16 = 2
	DTInt16      int16 = 4
	DTInt32      int16 = 8
	DTFloat32    int16 = 16
	DTComplex64  int16 = 32
	DTFloat64    int16 = 64
	DTInt8       int16 = 256
	DTUint16     int16 = 512
	DTUint32     int16 = 768
	DTInt64      int16 = 1024
	DTUint64     int16 = 1280
	DTComplex128 int16 = 1792
)

var kindCodes = map[volume.Kind]int16{
	volume.Uint8:      DTUint8,
	volume.Int8:       DTInt8,
	volume.Int16:      DTInt16,
	volume.Uint16:     DTUint16,
	volume.Int32:      DTInt32,
	volume.Uint32:     DTUint32,
	volume.Int64:      DTInt64,
	volume.Uint64:     DTUint64,
	volume.Float32:    DTFloat32,
	volume.Float64:    DTFloat64,
	volume.Complex64:  DTComplex64,
	volume.Complex128: DTComplex128,
}

// KindOf maps a datatype code back to a voxel kind.
func KindOf(code int16) (volume.Kind, error) {
	for k, c := range kindCodes {
		if c == code {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unsupported NIfTI datatype %d", code)
}

// Transform codes.
const (
	XformUnknown     int16 = 0
	XformScannerAnat int16 = 1
	XformAlignedAnat int16 = 2
	XformTalairach   int16 = 3
	XformMNI152      int16 = 4
)

// Units.
const (
	UnitsUnknown = 0
	UnitsMeter   = 1
	UnitsMM      = 2
	UnitsMicron  = 3
	UnitsSec     = 8
	UnitsMsec    = 16
	UnitsUsec    = 24
)

// Header is the on-disk NIfTI-1 header. Encoded little-endian it is exactly 348 bytes.
type Header struct {
	SizeOfHdr    int32
	DataTypeName [10]byte // unused
	DBName       [18]byte // unused
	Extents      int32    // unused
	SessionError int16    // unused
	Regular      byte     // unused
	DimInfo      byte     // freq, phase and slice axes, two bits each

	Dim        [8]int16
	IntentP1   float32
	IntentP2   float32
	IntentP3   float32
	IntentCode int16
	Datatype   int16
	Bitpix     int16
	SliceStart int16
	Pixdim     [8]float32
	VoxOffset  float32
	SclSlope   float32
	SclInter   float32
	SliceEnd   int16
	SliceCode  byte
	XYZTUnits  byte
	CalMax     float32
	CalMin     float32

	SliceDuration float32
	TOffset       float32
	GLMax         int32 // unused
	GLMin         int32 // unused

	Descrip [80]byte
	AuxFile [24]byte

	QformCode int16
	SformCode int16
	QuaternB  float32
	QuaternC  float32
	QuaternD  float32
	QOffsetX  float32
	QOffsetY  float32
	QOffsetZ  float32
	SRowX     [4]float32
	SRowY     [4]float32
	SRowZ     [4]float32

	IntentName [16]byte
	Magic      [4]byte
}

// NewHeader returns a header sized and typed for v, with unit voxel spacing.
func NewHeader(v volume.Volume) (*Header, error) {
	code, ok := kindCodes[v.Kind()]
	if !ok {
		return nil, fmt.Errorf("no NIfTI datatype for %v", v.Kind())
	}
	shape := v.Shape()
	h := &Header{
		SizeOfHdr: HeaderSize,
		Regular:   'r',
		Datatype:  code,
		Bitpix:    int16(v.Kind().Size() * 8),
		VoxOffset: VoxOffset,
		SclSlope:  1,
		Magic:     Magic,
	}
	h.Dim[0] = int16(len(shape))
	for i, d := range shape {
		if d > 32767 {
			return nil, fmt.Errorf("dimension %d too large for NIfTI-1: %d", i, d)
		}
		h.Dim[i+1] = int16(d)
	}
	for i := range h.Pixdim {
		h.Pixdim[i] = 1
	}
	return h, nil
}

// Shape returns dim[1..dim[0]].
func (h *Header) Shape() []int {
	n := int(h.Dim[0])
	if n < 1 || n > 7 {
		return nil
	}
	shape := make([]int, n)
	for i := range shape {
		shape[i] = int(h.Dim[i+1])
	}
	return shape
}

// SetXYZTUnits sets the spatial and temporal unit codes.
func (h *Header) SetXYZTUnits(spatial, temporal int) {
	h.XYZTUnits = byte(spatial&0x07) | byte(temporal&0x38)
}

// Units returns the spatial and temporal unit codes.
func (h *Header) Units() (spatial, temporal int) {
	return int(h.XYZTUnits & 0x07), int(h.XYZTUnits & 0x38)
}

// SetDimInfo records the frequency, phase and slice axes. A negative axis means unknown.
func (h *Header) SetDimInfo(freq, phase, slice int) {
	pack := func(axis int) byte {
		if axis < 0 || axis > 2 {
			return 0
		}
		return byte(axis + 1)
	}
	h.DimInfo = pack(freq) | pack(phase)<<2 | pack(slice)<<4
}

// GetDimInfo returns the frequency, phase and slice axes, -1 when unknown.
func (h *Header) GetDimInfo() (freq, phase, slice int) {
	unpack := func(b byte) int { return int(b&0x03) - 1 }
	return unpack(h.DimInfo), unpack(h.DimInfo >> 2), unpack(h.DimInfo >> 4)
}

// SetDescrip stores s, truncated to the 80 bytes of the field.
func (h *Header) SetDescrip(s string) {
	h.Descrip = [80]byte{}
	copy(h.Descrip[:], s)
}

// Description returns the descrip field up to the first NUL.
func (h *Header) Description() string {
	return cString(h.Descrip[:])
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// SetSForm stores a as the s-form rows.
func (h *Header) SetSForm(a volume.Affine, code int16) {
	for c := 0; c < 4; c++ {
		h.SRowX[c] = float32(a[0][c])
		h.SRowY[c] = float32(a[1][c])
		h.SRowZ[c] = float32(a[2][c])
	}
	h.SformCode = code
}

// SForm returns the s-form affine.
func (h *Header) SForm() volume.Affine {
	a := volume.Identity()
	for c := 0; c < 4; c++ {
		a[0][c] = float64(h.SRowX[c])
		a[1][c] = float64(h.SRowY[c])
		a[2][c] = float64(h.SRowZ[c])
	}
	return a
}
