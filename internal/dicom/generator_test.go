package dicom

import (
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mrsinham/niftiforge/internal/util"
	"github.com/mrsinham/niftiforge/internal/volume"
)

func TestGenerateSeries_Files(t *testing.T) {
	var progress atomic.Int32
	files, err := GenerateSeries(SeriesOptions{
		OutputDir:        t.TempDir(),
		Rows:             4,
		Cols:             4,
		Slices:           3,
		DWIDirections:    2,
		Seed:             42,
		Workers:          2,
		ProgressCallback: func(_, _ int) { progress.Add(1) },
	})
	require.NoError(t, err)
	require.Len(t, files, 9)
	assert.Equal(t, int32(9), progress.Load())

	seen := map[string]bool{}
	for i, f := range files {
		assert.Equal(t, i+1, f.InstanceNumber)
		assert.Equal(t, i/3, f.Volume)
		assert.Equal(t, i%3, f.Slice)
		assert.Equal(t, files[0].SeriesUID, f.SeriesUID)
		assert.False(t, seen[f.SOPInstanceUID], "duplicate SOP instance UID")
		seen[f.SOPInstanceUID] = true
		assert.FileExists(t, f.Path)
	}

	ds, err := dicom.ParseFile(files[4].Path, nil)
	require.NoError(t, err)
	assert.Equal(t, "MR", stringValue(&ds, tag.Modality))
	b, ok := floatValue(&ds, util.TagDiffusionBValue)
	require.True(t, ok)
	assert.Equal(t, 1000.0, b)
}

func TestGenerateSeries_Deterministic(t *testing.T) {
	opts := SeriesOptions{Rows: 2, Cols: 2, Slices: 2, Seed: 9}

	opts.OutputDir = t.TempDir()
	a, err := GenerateSeries(opts)
	require.NoError(t, err)
	opts.OutputDir = t.TempDir()
	b, err := GenerateSeries(opts)
	require.NoError(t, err)

	for i := range a {
		assert.Equal(t, a[i].SOPInstanceUID, b[i].SOPInstanceUID)
	}
	assert.Equal(t, a[0].StudyUID, b[0].StudyUID)
}

func TestGenerateSeries_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts SeriesOptions
	}{
		{"no output", SeriesOptions{}},
		{"negative rows", SeriesOptions{OutputDir: t.TempDir(), Rows: -1}},
		{"negative directions", SeriesOptions{OutputDir: t.TempDir(), DWIDirections: -2}},
		{"orientation", SeriesOptions{OutputDir: t.TempDir(), Orientation: "oblique"}},
		{"phase encoding", SeriesOptions{OutputDir: t.TempDir(), PhaseEncoding: "DIAG"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GenerateSeries(tt.opts)
			assert.Error(t, err)
		})
	}
}

func TestGenerateSeries_Orientations(t *testing.T) {
	tests := []struct {
		orientation string
		codes       string
	}{
		{"axial", "LPS"},
		{"coronal", "LIP"},
		{"sagittal", "PIR"},
	}
	for _, tt := range tests {
		t.Run(tt.orientation, func(t *testing.T) {
			dir := generate(t, SeriesOptions{Rows: 2, Cols: 3, Slices: 2, Orientation: tt.orientation})
			r, err := NewSeriesReader(dir, ReaderOptions{})
			require.NoError(t, err)
			meta, err := r.ReadMetadata()
			require.NoError(t, err)

			codes, err := volume.AxisCodes(meta.QtoXYZ)
			require.NoError(t, err)
			assert.Equal(t, tt.codes, codes)
		})
	}
}

func TestGradientDirection_Unit(t *testing.T) {
	for i := 0; i < 30; i++ {
		g := gradientDirection(i, 30)
		assert.InDelta(t, 1, math.Sqrt(g[0]*g[0]+g[1]*g[1]+g[2]*g[2]), 1e-9)
		assert.GreaterOrEqual(t, g[2], 0.0)
	}
}
