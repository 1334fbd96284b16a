package dicom

import (
	"errors"
	"fmt"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mrsinham/niftiforge/internal/volume"
)

type sample interface {
	uint8 | int8 | int16 | uint16 | int32 | uint32
}

func widen[T sample](raw []T) []int64 {
	out := make([]int64, len(raw))
	for i, v := range raw {
		out[i] = int64(v)
	}
	return out
}

// frameSamples returns the stored values of the first native frame, row-major.
func frameSamples(ds *dicom.Dataset) ([]int64, error) {
	elem, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, fmt.Errorf("pixel data: %w", err)
	}
	info, ok := elem.Value.GetValue().(dicom.PixelDataInfo)
	if !ok || len(info.Frames) == 0 {
		return nil, errors.New("pixel data has no frames")
	}
	fr := info.Frames[0]
	if fr.Encapsulated {
		return nil, errors.New("encapsulated pixel data is not supported")
	}

	switch nf := fr.NativeData.(type) {
	case *frame.NativeFrame[uint16]:
		return widen(nf.RawData), nil
	case *frame.NativeFrame[int16]:
		return widen(nf.RawData), nil
	case *frame.NativeFrame[uint8]:
		return widen(nf.RawData), nil
	case *frame.NativeFrame[int8]:
		return widen(nf.RawData), nil
	case *frame.NativeFrame[uint32]:
		return widen(nf.RawData), nil
	case *frame.NativeFrame[int32]:
		return widen(nf.RawData), nil
	default:
		return nil, fmt.Errorf("unsupported native frame %T", fr.NativeData)
	}
}

// pixelFormat is the stored sample layout of a series.
type pixelFormat struct {
	bits   int
	signed bool
}

func pixelFormatOf(ds *dicom.Dataset) (pixelFormat, error) {
	bits, ok := intValue(ds, tag.BitsAllocated)
	if !ok {
		return pixelFormat{}, errors.New("missing BitsAllocated")
	}
	switch bits {
	case 8, 16, 32:
	default:
		return pixelFormat{}, fmt.Errorf("unsupported BitsAllocated %d", bits)
	}
	rep, _ := intValue(ds, tag.PixelRepresentation)
	return pixelFormat{bits: bits, signed: rep == 1}, nil
}

// normalize reinterprets v as the stored sample width and sign.
func (f pixelFormat) normalize(v int64) int64 {
	switch {
	case f.bits == 8 && f.signed:
		return int64(int8(uint8(v)))
	case f.bits == 8:
		return int64(uint8(v))
	case f.bits == 16 && f.signed:
		return int64(int16(uint16(v)))
	case f.bits == 16:
		return int64(uint16(v))
	case f.signed:
		return int64(int32(uint32(v)))
	default:
		return int64(uint32(v))
	}
}

func assemble[T sample](f pixelFormat, planes [][]int64, shape []int) (volume.Volume, error) {
	n := 0
	for _, p := range planes {
		n += len(p)
	}
	data := make([]T, 0, n)
	for _, p := range planes {
		for _, v := range p {
			data = append(data, T(f.normalize(v)))
		}
	}
	a, err := volume.New(data, shape...)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// stack builds a volume from planes given slice-major then volume-major.
func (f pixelFormat) stack(planes [][]int64, shape []int) (volume.Volume, error) {
	switch {
	case f.bits == 8 && f.signed:
		return assemble[int8](f, planes, shape)
	case f.bits == 8:
		return assemble[uint8](f, planes, shape)
	case f.bits == 16 && f.signed:
		return assemble[int16](f, planes, shape)
	case f.bits == 16:
		return assemble[uint16](f, planes, shape)
	case f.signed:
		return assemble[int32](f, planes, shape)
	default:
		return assemble[uint32](f, planes, shape)
	}
}
