package dicom

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mrsinham/niftiforge/internal/acquisition"
)

func TestAcquisitionOrder(t *testing.T) {
	tests := []struct {
		order acquisition.SliceOrder
		want  []int
	}{
		{acquisition.SliceOrderSeqInc, []int{0, 1, 2, 3, 4}},
		{acquisition.SliceOrderSeqDec, []int{4, 3, 2, 1, 0}},
		{acquisition.SliceOrderAltInc, []int{0, 2, 4, 1, 3}},
		{acquisition.SliceOrderAltDec, []int{4, 2, 0, 3, 1}},
		{acquisition.SliceOrderAltInc2, []int{1, 3, 0, 2, 4}},
		{acquisition.SliceOrderAltDec2, []int{3, 1, 4, 2, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.order.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, acquisitionOrder(tt.order, 5))
		})
	}
}

func TestInferSliceOrder(t *testing.T) {
	timesFor := func(order acquisition.SliceOrder, n int) []float64 {
		times := make([]float64, n)
		for k, slice := range acquisitionOrder(order, n) {
			times[slice] = float64(k) * 62.5
		}
		return times
	}

	for _, order := range inferableOrders {
		t.Run(order.String(), func(t *testing.T) {
			assert.Equal(t, order, inferSliceOrder(timesFor(order, 6)))
		})
	}

	t.Run("constant times", func(t *testing.T) {
		assert.Equal(t, acquisition.SliceOrderUnknown, inferSliceOrder([]float64{0, 0, 0}))
	})
	t.Run("single slice", func(t *testing.T) {
		assert.Equal(t, acquisition.SliceOrderUnknown, inferSliceOrder([]float64{10}))
	})
	t.Run("irregular", func(t *testing.T) {
		assert.Equal(t, acquisition.SliceOrderUnknown, inferSliceOrder([]float64{0, 300, 100, 400, 200, 50}))
	})
}
