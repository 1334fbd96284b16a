package volume

import (
	"math"
	"slices"
)

// Percentiles returns the requested percentiles (0-100) of values, interpolating linearly
// between the two nearest ranks. Any NaN in values makes every percentile NaN.
// values is not modified.
func Percentiles(values []float64, ps ...float64) []float64 {
	out := make([]float64, len(ps))
	if len(values) == 0 {
		return out
	}
	if slices.ContainsFunc(values, math.IsNaN) {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	last := float64(len(sorted) - 1)
	for i, p := range ps {
		rank := math.Min(math.Max(p, 0), 100) / 100 * last
		lo := math.Floor(rank)
		hi := math.Ceil(rank)
		frac := rank - lo
		out[i] = sorted[int(lo)] + (sorted[int(hi)]-sorted[int(lo)])*frac
	}
	return out
}

// DisplayRange returns the 10th and 99.5th percentile of the voxel magnitudes.
func DisplayRange(v Volume) (lo, hi float64) {
	p := Percentiles(v.Magnitudes(), 10, 99.5)
	return p[0], p[1]
}
