package dicom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrsinham/niftiforge/internal/volume"
)

func TestPixelFormat_Normalize(t *testing.T) {
	tests := []struct {
		name   string
		format pixelFormat
		in     int64
		want   int64
	}{
		{"unsigned 16", pixelFormat{bits: 16}, 65535, 65535},
		{"signed 16 from unsigned storage", pixelFormat{bits: 16, signed: true}, 65535, -1},
		{"signed 16 already signed", pixelFormat{bits: 16, signed: true}, -20, -20},
		{"signed 8", pixelFormat{bits: 8, signed: true}, 200, -56},
		{"unsigned 8", pixelFormat{bits: 8}, 200, 200},
		{"signed 32", pixelFormat{bits: 32, signed: true}, 0xFFFFFFFE, -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.format.normalize(tt.in))
		})
	}
}

func TestPixelFormat_Stack(t *testing.T) {
	planes := [][]int64{{1, 2, 3, 4}, {5, 6, 7, 65535}}

	v, err := pixelFormat{bits: 16, signed: true}.stack(planes, []int{2, 2, 2})
	require.NoError(t, err)
	assert.Equal(t, volume.Int16, v.Kind())
	arr := v.(*volume.Array[int16])
	assert.Equal(t, int16(2), arr.At(1, 0, 0))
	assert.Equal(t, int16(7), arr.At(0, 1, 1))
	assert.Equal(t, int16(-1), arr.At(1, 1, 1))

	_, err = pixelFormat{bits: 16}.stack(planes, []int{2, 2, 3})
	assert.Error(t, err)
}
