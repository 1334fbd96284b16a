package volume

import (
	"fmt"
	"math"
	"strings"
)

// axisLabels holds, per world axis, the label for the positive and negative direction.
var axisLabels = [3][2]byte{{'R', 'L'}, {'A', 'P'}, {'S', 'I'}}

func parseLabel(c byte) (axis int, positive bool, err error) {
	for w, pair := range axisLabels {
		if c == pair[0] {
			return w, true, nil
		}
		if c == pair[1] {
			return w, false, nil
		}
	}
	return 0, false, fmt.Errorf("invalid axis label %q", c)
}

// axes returns, per voxel axis, the world axis it mostly runs along and its direction.
func axes(a Affine) (world [3]int, positive [3]bool, err error) {
	used := [3]bool{}
	for i := 0; i < 3; i++ {
		best, bestAbs := -1, 0.0
		for w := 0; w < 3; w++ {
			if v := math.Abs(a[w][i]); v > bestAbs && !used[w] {
				best, bestAbs = w, v
			}
		}
		if best < 0 {
			return world, positive, fmt.Errorf("voxel axis %d has no spatial extent", i)
		}
		used[best] = true
		world[i] = best
		positive[i] = a[best][i] > 0
	}
	return world, positive, nil
}

// AxisCodes returns the three-letter orientation of the voxel axes, e.g. "RAS". Each letter
// names the direction in which the corresponding index increases.
func AxisCodes(a Affine) (string, error) {
	world, positive, err := axes(a)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for i := 0; i < 3; i++ {
		if positive[i] {
			b.WriteByte(axisLabels[world[i]][0])
		} else {
			b.WriteByte(axisLabels[world[i]][1])
		}
	}
	return b.String(), nil
}

// ParseVoxelOrder validates a three-letter voxel order such as "LPS".
func ParseVoxelOrder(order string) (world [3]int, positive [3]bool, err error) {
	order = strings.ToUpper(strings.TrimSpace(order))
	if len(order) != 3 {
		return world, positive, fmt.Errorf("voxel order %q must have three letters", order)
	}
	seen := [3]bool{}
	for k := 0; k < 3; k++ {
		w, pos, err := parseLabel(order[k])
		if err != nil {
			return world, positive, fmt.Errorf("voxel order %q: %w", order, err)
		}
		if seen[w] {
			return world, positive, fmt.Errorf("voxel order %q names a world axis twice", order)
		}
		seen[w] = true
		world[k], positive[k] = w, pos
	}
	return world, positive, nil
}

// Reorder permutes and flips the spatial axes of v so they run in the requested voxel
// order, and returns the affine describing the reordered data.
func Reorder(v Volume, a Affine, order string) (Volume, Affine, error) {
	targetWorld, targetPositive, err := ParseVoxelOrder(order)
	if err != nil {
		return nil, a, err
	}
	srcWorld, srcPositive, err := axes(a)
	if err != nil {
		return nil, a, err
	}

	var perm [3]int
	var flip [3]bool
	for k := 0; k < 3; k++ {
		for i := 0; i < 3; i++ {
			if srcWorld[i] == targetWorld[k] {
				perm[k] = i
				flip[k] = srcPositive[i] != targetPositive[k]
			}
		}
	}

	shape := v.Shape()
	// new index n along axis k reads old index perm[k]: n, or dim-1-n when flipped
	var t Affine
	t[3][3] = 1
	for k := 0; k < 3; k++ {
		i := perm[k]
		if flip[k] {
			t[i][k] = -1
			t[i][3] = float64(shape[i] - 1)
		} else {
			t[i][k] = 1
		}
	}
	if perm == [3]int{0, 1, 2} && flip == [3]bool{} {
		return v, a, nil
	}
	return v.Permute(perm, flip), a.Mul(t), nil
}
