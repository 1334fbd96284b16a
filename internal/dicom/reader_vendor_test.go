package dicom

import (
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"

	"github.com/mrsinham/niftiforge/internal/acquisition"
	"github.com/mrsinham/niftiforge/internal/dicom/edgecases"
	"github.com/mrsinham/niftiforge/internal/dicom/vendortags"
	"github.com/mrsinham/niftiforge/internal/util"
)

func readMetadata(t *testing.T, dir string) *acquisition.Metadata {
	t.Helper()
	r, err := NewSeriesReader(dir, ReaderOptions{})
	require.NoError(t, err)
	meta, err := r.ReadMetadata()
	require.NoError(t, err)
	return meta
}

func TestSeriesReader_PrivateDiffusion(t *testing.T) {
	base := SeriesOptions{Rows: 4, Cols: 4, Slices: 2, DWIDirections: 4, BValue: 900, Seed: 11}
	standard := readMetadata(t, generate(t, base))

	for _, scanner := range []Scanner{Scanners[0], Scanners[1], Scanners[2]} {
		t.Run(scanner.Manufacturer, func(t *testing.T) {
			opts := base
			opts.Scanner = scanner
			opts.VendorTags = true
			dir := generate(t, opts)

			ds, err := dicom.ParseFile(filepath.Join(dir, "IMG0003.dcm"), nil)
			require.NoError(t, err)
			_, stdErr := ds.FindElementByTag(util.TagDiffusionBValue)
			if vendortags.ForManufacturer(scanner.Manufacturer).CarriesDiffusion() {
				assert.Error(t, stdErr, "standard diffusion tags must be absent")
			} else {
				assert.NoError(t, stdErr)
			}

			meta := readMetadata(t, dir)
			assert.True(t, meta.IsDWI)
			assert.Equal(t, standard.Bvals, meta.Bvals)
			for i := range meta.Bvecs {
				assert.InDeltaSlice(t, standard.Bvecs[i], meta.Bvecs[i], 1e-6)
			}
		})
	}
}

func TestSeriesReader_CSAWithoutDiffusion(t *testing.T) {
	meta := readMetadata(t, generate(t, SeriesOptions{Rows: 4, Cols: 4, Slices: 2, VendorTags: true, Seed: 4}))
	assert.False(t, meta.IsDWI)
	assert.Nil(t, meta.Bvals)
}

func TestSeriesReader_Protocols(t *testing.T) {
	t.Run("phase contrast", func(t *testing.T) {
		meta := readMetadata(t, generate(t, SeriesOptions{Rows: 4, Cols: 4, Slices: 2, Protocol: "pcmri"}))
		assert.True(t, meta.IsFastcard)
		require.NotNil(t, meta.VelocityEncoding)
		assert.Equal(t, 150, *meta.VelocityEncoding)
		assert.InDelta(t, 0.0054, meta.TR, 1e-9)
	})
	t.Run("diffusion preset", func(t *testing.T) {
		meta := readMetadata(t, generate(t, SeriesOptions{Rows: 4, Cols: 4, Slices: 2, Protocol: "dwi"}))
		assert.True(t, meta.IsDWI)
		assert.Len(t, meta.Bvals, 7)
		assert.Equal(t, "DTI 6 dir", meta.MDJSON["SeriesDescription"])
	})
	t.Run("inversion recovery", func(t *testing.T) {
		meta := readMetadata(t, generate(t, SeriesOptions{Rows: 4, Cols: 4, Slices: 2, Protocol: "t1"}))
		assert.InDelta(t, 0.9, meta.TI, 1e-9)
		assert.Equal(t, "3D", meta.AcquisitionType)
		assert.Equal(t, "tfl3d1_16ns", meta.MDJSON["SequenceName"])
		assert.Nil(t, meta.VelocityEncoding)
	})
	t.Run("explicit timing wins", func(t *testing.T) {
		meta := readMetadata(t, generate(t, SeriesOptions{Rows: 4, Cols: 4, Slices: 2, Protocol: "t2", EchoTime: 120}))
		assert.InDelta(t, 0.12, meta.TE, 1e-9)
		assert.InDelta(t, 5.0, meta.TR, 1e-9)
	})
	t.Run("unknown", func(t *testing.T) {
		_, err := GenerateSeries(SeriesOptions{OutputDir: t.TempDir(), Protocol: "spectro"})
		assert.ErrorContains(t, err, "unknown protocol")
	})
}

func TestSeriesReader_EdgeCases(t *testing.T) {
	t.Run("missing tags", func(t *testing.T) {
		dir := generate(t, SeriesOptions{
			Rows: 4, Cols: 4, Slices: 3, AcquisitionNumber: 5, SliceThickness: 2.5,
			SliceOrder: acquisition.SliceOrderSeqInc,
			EdgeCases:  []edgecases.Type{edgecases.MissingTags},
		})
		meta := readMetadata(t, dir)
		assert.Equal(t, 1, meta.AcqNo)
		assert.Equal(t, acquisition.SliceOrderUnknown, meta.SliceOrder)
		assert.InDelta(t, 2.5, meta.QtoXYZ[2][2], 1e-6)
	})
	t.Run("partial dates", func(t *testing.T) {
		meta := readMetadata(t, generate(t, SeriesOptions{
			Rows: 2, Cols: 2, Slices: 2,
			EdgeCases: []edgecases.Type{edgecases.PartialDates},
		}))
		require.False(t, meta.Timestamp.IsZero())
		assert.Equal(t, 2024, meta.Timestamp.Year())
	})
	t.Run("special characters", func(t *testing.T) {
		meta := readMetadata(t, generate(t, SeriesOptions{
			Rows: 2, Cols: 2, Slices: 2,
			EdgeCases: []edgecases.Type{edgecases.SpecialChars},
		}))
		desc, ok := meta.MDJSON["SeriesDescription"].(string)
		require.True(t, ok)
		assert.True(t, utf8.ValidString(desc))
		assert.NotEqual(t, "2D EPI", desc)
	})
	t.Run("all at once", func(t *testing.T) {
		dir := generate(t, SeriesOptions{
			Rows: 4, Cols: 4, Slices: 2, DWIDirections: 2, VendorTags: true,
			EdgeCases: edgecases.AllTypes(),
		})
		r, err := NewSeriesReader(dir, ReaderOptions{})
		require.NoError(t, err)
		meta, err := r.ReadMetadata()
		require.NoError(t, err)
		assert.True(t, meta.IsDWI)
		assert.LessOrEqual(t, len(meta.SubjectCode), 64)
		volumes, err := r.ReadVolumes()
		require.NoError(t, err)
		assert.Equal(t, []int{4, 4, 2, 3}, volumes[""].Shape())
	})
}

func TestSeriesReader_ExplicitFiles(t *testing.T) {
	dir := t.TempDir()
	first, err := GenerateSeries(SeriesOptions{OutputDir: filepath.Join(dir, "a"), Rows: 2, Cols: 2, Slices: 3, SeriesNumber: 1})
	require.NoError(t, err)
	_, err = GenerateSeries(SeriesOptions{OutputDir: filepath.Join(dir, "b"), Rows: 2, Cols: 2, Slices: 2, SeriesNumber: 2})
	require.NoError(t, err)

	files := make([]string, 0, len(first))
	for i := len(first) - 1; i >= 0; i-- {
		files = append(files, first[i].Path)
	}
	r, err := NewSeriesReader(dir, ReaderOptions{Files: files})
	require.NoError(t, err)
	meta, err := r.ReadMetadata()
	require.NoError(t, err)
	assert.Equal(t, 1, meta.SeriesNo)
	assert.Equal(t, 3, meta.NumSlices)
}

func TestSeriesReader_SidecarPerVolumeValues(t *testing.T) {
	dir := generate(t, SeriesOptions{Rows: 2, Cols: 2, Slices: 2, DWIDirections: 2, RepetitionTime: 3000})

	r, err := NewSeriesReader(dir, ReaderOptions{SidecarTags: []string{"AcquisitionTime", "EchoTime"}})
	require.NoError(t, err)
	meta, err := r.ReadMetadata()
	require.NoError(t, err)

	assert.Equal(t, []any{"090700.00", "090703.00", "090706.00"}, meta.MDJSON["AcquisitionTime"])
	// series level values stay scalar
	assert.InDelta(t, 0.03, meta.MDJSON["EchoTime"], 1e-9)
}
