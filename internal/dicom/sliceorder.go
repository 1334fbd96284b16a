package dicom

import (
	"slices"

	"github.com/mrsinham/niftiforge/internal/acquisition"
)

// acquisitionOrder lists slice indices in the order each slice pattern acquires them.
func acquisitionOrder(order acquisition.SliceOrder, n int) []int {
	out := make([]int, 0, n)
	switch order {
	case acquisition.SliceOrderSeqDec:
		for i := n - 1; i >= 0; i-- {
			out = append(out, i)
		}
	case acquisition.SliceOrderAltInc:
		for i := 0; i < n; i += 2 {
			out = append(out, i)
		}
		for i := 1; i < n; i += 2 {
			out = append(out, i)
		}
	case acquisition.SliceOrderAltInc2:
		for i := 1; i < n; i += 2 {
			out = append(out, i)
		}
		for i := 0; i < n; i += 2 {
			out = append(out, i)
		}
	case acquisition.SliceOrderAltDec:
		for i := n - 1; i >= 0; i -= 2 {
			out = append(out, i)
		}
		for i := n - 2; i >= 0; i -= 2 {
			out = append(out, i)
		}
	case acquisition.SliceOrderAltDec2:
		for i := n - 2; i >= 0; i -= 2 {
			out = append(out, i)
		}
		for i := n - 1; i >= 0; i -= 2 {
			out = append(out, i)
		}
	default:
		for i := 0; i < n; i++ {
			out = append(out, i)
		}
	}
	return out
}

var inferableOrders = []acquisition.SliceOrder{
	acquisition.SliceOrderSeqInc,
	acquisition.SliceOrderSeqDec,
	acquisition.SliceOrderAltInc,
	acquisition.SliceOrderAltDec,
	acquisition.SliceOrderAltInc2,
	acquisition.SliceOrderAltDec2,
}

// inferSliceOrder matches per-slice acquisition times, given in spatial slice order,
// against the NIfTI slice patterns.
func inferSliceOrder(times []float64) acquisition.SliceOrder {
	n := len(times)
	if n < 2 {
		return acquisition.SliceOrderUnknown
	}
	if slices.Min(times) == slices.Max(times) {
		return acquisition.SliceOrderUnknown
	}

	observed := make([]int, n)
	for i := range observed {
		observed[i] = i
	}
	slices.SortStableFunc(observed, func(a, b int) int {
		switch {
		case times[a] < times[b]:
			return -1
		case times[a] > times[b]:
			return 1
		default:
			return 0
		}
	})

	for _, order := range inferableOrders {
		if slices.Equal(observed, acquisitionOrder(order, n)) {
			return order
		}
	}
	return acquisition.SliceOrderUnknown
}
