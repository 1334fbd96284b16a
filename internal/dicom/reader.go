package dicom

import (
	"cmp"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mrsinham/niftiforge/internal/acquisition"
	"github.com/mrsinham/niftiforge/internal/dicom/vendortags"
	"github.com/mrsinham/niftiforge/internal/util"
	"github.com/mrsinham/niftiforge/internal/volume"
)

// ReaderOptions configures a SeriesReader.
type ReaderOptions struct {
	Logger *slog.Logger
	// Pattern selects the files to parse, relative to the series directory.
	// Default "**/*".
	Pattern string
	// SidecarTags are the keywords copied into the JSON sidecar. Default
	// util.DefaultSidecarTags.
	SidecarTags []string
	// Workers parses files in parallel (0 = one per CPU).
	Workers int
	// Files, when set, are parsed instead of matching Pattern under the directory.
	Files []string
}

// SeriesReader reads one MR series from a directory of DICOM files. Files are parsed on
// first use and kept in memory.
type SeriesReader struct {
	dir     string
	pattern string
	files   []string
	workers int
	tags    []util.TagInfo
	log     *slog.Logger

	once   sync.Once
	series *series
	err    error
}

// NewSeriesReader returns a reader for the series in dir.
func NewSeriesReader(dir string, opts ReaderOptions) (*SeriesReader, error) {
	names := opts.SidecarTags
	if names == nil {
		names = util.DefaultSidecarTags
	}
	tags, err := util.ResolveTags(names)
	if err != nil {
		return nil, fmt.Errorf("sidecar tags: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Pattern == "" {
		opts.Pattern = "**/*"
	}
	return &SeriesReader{
		dir:     dir,
		pattern: opts.Pattern,
		files:   opts.Files,
		workers: opts.Workers,
		tags:    tags,
		log:     opts.Logger.With("series", dir),
	}, nil
}

// sliceFile is one parsed image of the series.
type sliceFile struct {
	path     string
	ds       dicom.Dataset
	instance int
	depth    float64
	position r3.Vec
}

// series is the parsed series, images arranged as [volume][slice] with slices in
// increasing depth along the normal.
type series struct {
	grid     [][]*sliceFile
	geometry planeGeometry
	affine   volume.Affine
	format   pixelFormat
	rows     int
	cols     int
}

func (r *SeriesReader) load() (*series, error) {
	r.once.Do(func() {
		r.series, r.err = r.parse()
	})
	return r.series, r.err
}

func (r *SeriesReader) listFiles() ([]string, error) {
	if r.files != nil {
		return slices.Sorted(slices.Values(r.files)), nil
	}
	matches, err := doublestar.Glob(os.DirFS(r.dir), r.pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", r.dir, err)
	}
	files := make([]string, 0, len(matches))
	for _, m := range matches {
		base := path.Base(m)
		if strings.EqualFold(base, "DICOMDIR") || strings.HasPrefix(base, ".") {
			continue
		}
		files = append(files, filepath.Join(r.dir, filepath.FromSlash(m)))
	}
	slices.Sort(files)
	return files, nil
}

func (r *SeriesReader) parse() (*series, error) {
	files, err := r.listFiles()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no DICOM files in %s", r.dir)
	}
	r.log.Debug("parsing series", "files", len(files))

	datasets := make([]dicom.Dataset, len(files))
	err = runPool(len(files), r.workers, func(i int) error {
		ds, err := dicom.ParseFile(files[i], nil)
		if err != nil {
			return fmt.Errorf("parse %s: %w", files[i], err)
		}
		datasets[i] = ds
		return nil
	}, nil)
	if err != nil {
		return nil, err
	}

	seriesUID := stringValue(&datasets[0], tag.SeriesInstanceUID)
	imgs := make([]*sliceFile, 0, len(files))
	for i := range datasets {
		ds := &datasets[i]
		if uid := stringValue(ds, tag.SeriesInstanceUID); uid != seriesUID {
			return nil, fmt.Errorf("%s belongs to series %s, expected %s", files[i], uid, seriesUID)
		}
		pos, err := vecOf(floatValues(ds, tag.ImagePositionPatient))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", files[i], err)
		}
		instance, _ := intValue(ds, tag.InstanceNumber)
		imgs = append(imgs, &sliceFile{path: files[i], ds: datasets[i], instance: instance, position: pos})
	}

	first := &imgs[0].ds
	geometry, err := newPlaneGeometry(
		floatValues(first, tag.ImageOrientationPatient),
		floatValues(first, tag.PixelSpacing),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", imgs[0].path, err)
	}
	for _, img := range imgs {
		img.depth = geometry.depth(img.position)
	}

	slices.SortStableFunc(imgs, func(a, b *sliceFile) int {
		return cmp.Or(cmp.Compare(a.instance, b.instance), strings.Compare(a.path, b.path))
	})

	grid, depths, err := arrange(imgs)
	if err != nil {
		return nil, err
	}

	stated, _ := floatValue(first, tag.SpacingBetweenSlices)
	if stated == 0 {
		stated, _ = floatValue(first, tag.SliceThickness)
	}
	origin := grid[0][0].position

	format, err := pixelFormatOf(first)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", imgs[0].path, err)
	}
	rows, _ := intValue(first, tag.Rows)
	cols, _ := intValue(first, tag.Columns)
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%s: invalid image size %dx%d", imgs[0].path, cols, rows)
	}

	r.log.Debug("series arranged", "volumes", len(grid), "slices", len(depths), "rows", rows, "cols", cols)
	return &series{
		grid:     grid,
		geometry: geometry,
		affine:   geometry.affine(origin, sliceSpacing(depths, stated)),
		format:   format,
		rows:     rows,
		cols:     cols,
	}, nil
}

// arrange groups images by slice position. Images sharing a position become successive
// volumes in instance order.
func arrange(imgs []*sliceFile) ([][]*sliceFile, []float64, error) {
	const tolerance = 1e-3

	var depths []float64
	byPosition := map[int][]*sliceFile{}
	for _, img := range imgs {
		idx := -1
		for i, d := range depths {
			if math.Abs(d-img.depth) < tolerance {
				idx = i
				break
			}
		}
		if idx < 0 {
			depths = append(depths, img.depth)
			idx = len(depths) - 1
		}
		byPosition[idx] = append(byPosition[idx], img)
	}

	order := make([]int, len(depths))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int { return cmp.Compare(depths[a], depths[b]) })

	numVolumes := len(byPosition[order[0]])
	grid := make([][]*sliceFile, numVolumes)
	sorted := make([]float64, len(order))
	for k, idx := range order {
		sorted[k] = depths[idx]
		at := byPosition[idx]
		if len(at) != numVolumes {
			return nil, nil, fmt.Errorf("slice position %.3f has %d images, expected %d", depths[idx], len(at), numVolumes)
		}
		for v, img := range at {
			grid[v] = append(grid[v], img)
		}
	}
	return grid, sorted, nil
}

// ReadMetadata maps the series attributes onto an acquisition.
func (r *SeriesReader) ReadMetadata() (*acquisition.Metadata, error) {
	s, err := r.load()
	if err != nil {
		return nil, err
	}
	ds := &s.grid[0][0].ds

	meta := &acquisition.Metadata{
		ExamUID:         stringValue(ds, tag.StudyInstanceUID),
		SubjectCode:     stringValue(ds, tag.PatientID),
		Timestamp:       timestamp(ds),
		AcquisitionType: stringValue(ds, util.TagMRAcquisitionType),
		NumSlices:       len(s.grid[0]),
		QtoXYZ:          s.affine,
	}
	meta.ExamNo, _ = strconv.Atoi(stringValue(ds, tag.StudyID))
	meta.SeriesNo, _ = intValue(ds, tag.SeriesNumber)
	if acq, ok := intValue(ds, util.TagAcquisitionNumber); ok {
		meta.AcqNo = acq
	} else {
		meta.AcqNo = 1
	}

	if te, ok := floatValue(ds, tag.EchoTime); ok {
		meta.TE = te / 1000
	}
	if ti, ok := floatValue(ds, util.TagInversionTime); ok {
		meta.TI = ti / 1000
	}
	if tr, ok := floatValue(ds, tag.RepetitionTime); ok {
		meta.TR = tr / 1000
	}
	meta.FlipAngle, _ = floatValue(ds, tag.FlipAngle)

	var matrix []int
	for _, v := range floatValues(ds, util.TagAcquisitionMatrix) {
		if v != 0 {
			matrix = append(matrix, int(v))
		}
	}
	if len(matrix) == 2 {
		meta.AcquisitionMatrix = [2]int{matrix[0], matrix[1]}
	}

	if strings.EqualFold(stringValue(ds, util.TagInPlanePhaseEncodingDirection), "COL") {
		meta.PhaseEncode = 1
	}
	meta.PhaseEncodeUndersample, _ = floatValue(ds, util.TagParallelReductionFactorInPlane)
	meta.SliceEncodeUndersample, _ = floatValue(ds, util.TagParallelReductionOutOfPlane)

	if strings.Contains(strings.ToLower(stringValue(ds, tag.SequenceName)), "fastcard") {
		meta.IsFastcard = true
		if venc, ok := floatValue(ds, util.TagVelocityEncodingMaximumValue); ok {
			v := int(math.Round(venc))
			meta.VelocityEncoding = &v
		}
	}

	r.readDiffusion(s, meta)
	r.readTiming(s, meta)

	meta.MDJSON = r.sidecar(s)
	r.log.Debug("metadata read", "prefix", meta.Prefix(), "dwi", meta.IsDWI, "slice_order", meta.SliceOrder)
	return meta, nil
}

func (r *SeriesReader) readDiffusion(s *series, meta *acquisition.Metadata) {
	n := len(s.grid)
	bvals := make([]float64, n)
	var bvecs [3][]float64
	for i := range bvecs {
		bvecs[i] = make([]float64, n)
	}
	found := false
	for v, vol := range s.grid {
		d, ok := diffusionOf(&vol[0].ds)
		if !ok {
			continue
		}
		found = true
		bvals[v] = d.BValue
		for i := range bvecs {
			bvecs[i][v] = d.Gradient[i]
		}
	}
	if !found {
		return
	}
	meta.IsDWI = true
	meta.Bvals = bvals
	meta.Bvecs = bvecs
}

// diffusionOf reads the diffusion encoding from the standard MR diffusion tags, falling
// back to the manufacturer private block.
func diffusionOf(ds *dicom.Dataset) (vendortags.Diffusion, bool) {
	if b, ok := floatValue(ds, util.TagDiffusionBValue); ok {
		d := vendortags.Diffusion{BValue: b}
		if g := floatValues(ds, util.TagDiffusionGradientOrientation); len(g) == 3 {
			copy(d.Gradient[:], g)
		}
		return d, true
	}

	switch vendortags.ForManufacturer(stringValue(ds, tag.Manufacturer)) {
	case vendortags.Siemens:
		v, _ := rawValue(ds, vendortags.TagCSAImageHeader)
		data, ok := v.([]byte)
		if !ok {
			return vendortags.Diffusion{}, false
		}
		csa, err := vendortags.DecodeCSA(data)
		if err != nil {
			return vendortags.Diffusion{}, false
		}
		return vendortags.SiemensDiffusion(csa)
	case vendortags.GE:
		x, _ := floatValue(ds, vendortags.TagGEGradientX)
		y, _ := floatValue(ds, vendortags.TagGEGradientY)
		z, _ := floatValue(ds, vendortags.TagGEGradientZ)
		return vendortags.GEDiffusion(floatValues(ds, vendortags.TagGEBValue), x, y, z)
	}
	return vendortags.Diffusion{}, false
}

func (r *SeriesReader) readTiming(s *series, meta *acquisition.Metadata) {
	first := s.grid[0]
	times := make([]float64, len(first))
	for i, img := range first {
		t, ok := floatValue(&img.ds, util.TagTriggerTime)
		if !ok {
			return
		}
		times[i] = t
	}
	meta.SliceOrder = inferSliceOrder(times)
	if strings.Contains(meta.AcquisitionType, "2D") && len(first) > 0 {
		meta.SliceDuration = meta.TR / float64(len(first))
	}
}

// sidecar collects the configured keywords present in the first image. Image level
// keywords that change between volumes are listed once per volume.
func (r *SeriesReader) sidecar(s *series) map[string]any {
	ds := &s.grid[0][0].ds
	out := make(map[string]any, len(r.tags))
	for _, info := range r.tags {
		v, ok := sidecarValue(ds, info)
		if !ok {
			continue
		}
		out[info.Name] = v
		if info.Scope != util.ScopeImage || len(s.grid) < 2 {
			continue
		}
		perVolume := []any{v}
		varies := false
		for _, vol := range s.grid[1:] {
			w, _ := sidecarValue(&vol[0].ds, info)
			varies = varies || !reflect.DeepEqual(v, w)
			perVolume = append(perVolume, w)
		}
		if varies {
			out[info.Name] = perVolume
		}
	}
	return out
}

func sidecarValue(ds *dicom.Dataset, info util.TagInfo) (any, bool) {
	raw, ok := rawValue(ds, info.Tag)
	if !ok {
		return nil, false
	}
	switch vals := raw.(type) {
	case []string:
		if nums := floatValues(ds, info.Tag); nums != nil && isNumericVR(ds, info.Tag) {
			return scaled(info, nums), true
		}
		strs := stringValues(ds, info.Tag)
		switch len(strs) {
		case 0:
			return nil, false
		case 1:
			return strs[0], true
		default:
			return strs, true
		}
	case []float64:
		return scaled(info, vals), true
	case []int:
		return scaled(info, floatValues(ds, info.Tag)), true
	}
	return nil, false
}

func isNumericVR(ds *dicom.Dataset, t tag.Tag) bool {
	elem, err := ds.FindElementByTag(t)
	if err != nil {
		return false
	}
	return elem.RawValueRepresentation == "DS" || elem.RawValueRepresentation == "IS"
}

func scaled(info util.TagInfo, vals []float64) any {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = info.Convert(v)
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

// timestamp combines the acquisition date and time, falling back to the study's.
func timestamp(ds *dicom.Dataset) time.Time {
	date, clock := stringValue(ds, util.TagAcquisitionDate), stringValue(ds, util.TagAcquisitionTime)
	if date == "" {
		date, clock = stringValue(ds, tag.StudyDate), stringValue(ds, tag.StudyTime)
	}
	switch len(date) {
	case 0:
		return time.Time{}
	case 4: // YYYY
		date += "0101"
	case 6: // YYYYMM
		date += "01"
	}
	clock, _, _ = strings.Cut(clock, ".")
	clock = (clock + "000000")[:6]
	t, err := time.Parse("20060102150405", date+clock)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ReadVolumes returns the series voxels under the "" label, 3D for a single volume and
// 4D otherwise.
func (r *SeriesReader) ReadVolumes() (map[string]volume.Volume, error) {
	s, err := r.load()
	if err != nil {
		return nil, err
	}
	planeSize := s.rows * s.cols
	var planes [][]int64
	for _, vol := range s.grid {
		for _, img := range vol {
			p, err := frameSamples(&img.ds)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", img.path, err)
			}
			if len(p) != planeSize {
				return nil, fmt.Errorf("%s: %d samples, expected %d", img.path, len(p), planeSize)
			}
			planes = append(planes, p)
		}
	}

	shape := []int{s.cols, s.rows, len(s.grid[0])}
	if len(s.grid) > 1 {
		shape = append(shape, len(s.grid))
	}
	v, err := s.format.stack(planes, shape)
	if err != nil {
		return nil, fmt.Errorf("assemble %s: %w", r.dir, err)
	}
	return map[string]volume.Volume{"": v}, nil
}
