package dicom

import (
	"cmp"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	randv2 "math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mrsinham/niftiforge/internal/acquisition"
	"github.com/mrsinham/niftiforge/internal/dicom/edgecases"
	"github.com/mrsinham/niftiforge/internal/dicom/protocols"
	"github.com/mrsinham/niftiforge/internal/dicom/vendortags"
	"github.com/mrsinham/niftiforge/internal/util"
)

// mrImageStorage is the MR Image Storage SOP Class UID.
const mrImageStorage = "1.2.840.10008.5.1.4.1.1.4"

// Scanner describes a simulated MR scanner.
type Scanner struct {
	Manufacturer  string
	Model         string
	FieldStrength float64
}

// Scanners lists the simulated MR scanners.
var Scanners = []Scanner{
	{Manufacturer: "SIEMENS", Model: "Skyra", FieldStrength: 3.0},
	{Manufacturer: "GE MEDICAL SYSTEMS", Model: "Discovery MR750", FieldStrength: 3.0},
	{Manufacturer: "PHILIPS", Model: "Ingenia", FieldStrength: 3.0},
	{Manufacturer: "SIEMENS", Model: "Avanto", FieldStrength: 1.5},
}

// orientations maps plane names to ImageOrientationPatient.
var orientations = map[string][]float64{
	"axial":    {1, 0, 0, 0, 1, 0},
	"coronal":  {1, 0, 0, 0, 0, -1},
	"sagittal": {0, 1, 0, 0, 0, -1},
}

// SeriesOptions describes a synthetic MR series.
type SeriesOptions struct {
	OutputDir string
	Rows      int
	Cols      int
	Slices    int
	// DWIDirections > 0 adds one b=0 volume followed by that many diffusion volumes.
	DWIDirections int
	BValue        float64 // s/mm², default 1000
	Seed          int64
	Workers       int // Number of parallel workers (0 = auto-detect based on CPU cores)

	// Identifiers
	StudyID           int
	SeriesNumber      int
	AcquisitionNumber int
	PatientID         string

	// Acquisition, times in milliseconds
	EchoTime          float64
	RepetitionTime    float64
	InversionTime     float64
	FlipAngle         float64
	PixelSpacing      float64
	SliceThickness    float64
	AcquisitionType   string // "2D" or "3D"
	PhaseEncoding     string // "ROW" or "COL"
	ParallelReduction float64
	SliceOrder        acquisition.SliceOrder
	Orientation       string // axial, coronal or sagittal
	Scanner           Scanner

	// Protocol names a preset from the protocols package. Its timing fills the
	// acquisition fields left at zero.
	Protocol string
	// VendorTags adds the manufacturer private blocks. Siemens and GE series then carry
	// the diffusion encoding only in those blocks.
	VendorTags bool
	// EdgeCases perturbs the series attributes.
	EdgeCases []edgecases.Type

	protocol *protocols.Protocol

	// Optional callback for progress updates
	ProgressCallback func(current, total int)
}

// applyProtocol resolves the named preset and copies its timing into unset fields.
func (o *SeriesOptions) applyProtocol() error {
	if o.Protocol == "" {
		return nil
	}
	p, err := protocols.Get(o.Protocol)
	if err != nil {
		return err
	}
	o.protocol = &p
	if o.EchoTime == 0 {
		o.EchoTime = p.EchoTime
	}
	if o.RepetitionTime == 0 {
		o.RepetitionTime = p.RepetitionTime
	}
	if o.InversionTime == 0 {
		o.InversionTime = p.InversionTime
	}
	if o.FlipAngle == 0 {
		o.FlipAngle = p.FlipAngle
	}
	if o.AcquisitionType == "" {
		o.AcquisitionType = p.AcquisitionType
	}
	if p.Diffusion && o.DWIDirections == 0 {
		o.DWIDirections = 6
	}
	return nil
}

func (o *SeriesOptions) applyDefaults() {
	if o.Rows == 0 {
		o.Rows = 64
	}
	if o.Cols == 0 {
		o.Cols = 64
	}
	if o.Slices == 0 {
		o.Slices = 10
	}
	if o.BValue == 0 {
		o.BValue = 1000
	}
	if o.StudyID == 0 {
		o.StudyID = 1
	}
	if o.SeriesNumber == 0 {
		o.SeriesNumber = 1
	}
	if o.AcquisitionNumber == 0 {
		o.AcquisitionNumber = 1
	}
	if o.PatientID == "" {
		o.PatientID = fmt.Sprintf("SUBJ%04d", o.Seed%10000)
	}
	if o.EchoTime == 0 {
		o.EchoTime = 30
	}
	if o.RepetitionTime == 0 {
		o.RepetitionTime = 2000
	}
	if o.FlipAngle == 0 {
		o.FlipAngle = 90
	}
	if o.PixelSpacing == 0 {
		o.PixelSpacing = 2
	}
	if o.SliceThickness == 0 {
		o.SliceThickness = 3
	}
	if o.AcquisitionType == "" {
		o.AcquisitionType = "2D"
	}
	if o.PhaseEncoding == "" {
		o.PhaseEncoding = "COL"
	}
	if o.Orientation == "" {
		o.Orientation = "axial"
	}
	if o.Scanner == (Scanner{}) {
		o.Scanner = Scanners[0]
	}
}

func (o *SeriesOptions) validate() error {
	if o.OutputDir == "" {
		return errors.New("output directory is required")
	}
	if o.Rows < 1 || o.Cols < 1 || o.Slices < 1 {
		return fmt.Errorf("invalid series size %dx%dx%d", o.Cols, o.Rows, o.Slices)
	}
	if o.DWIDirections < 0 {
		return fmt.Errorf("invalid diffusion direction count %d", o.DWIDirections)
	}
	if _, ok := orientations[o.Orientation]; !ok {
		return fmt.Errorf("unknown orientation %q (valid: axial, coronal, sagittal)", o.Orientation)
	}
	if o.PhaseEncoding != "ROW" && o.PhaseEncoding != "COL" {
		return fmt.Errorf("invalid phase encoding direction %q (valid: ROW, COL)", o.PhaseEncoding)
	}
	return nil
}

// GeneratedFile contains information about a generated DICOM file.
type GeneratedFile struct {
	Path           string
	PatientID      string
	StudyUID       string
	SeriesUID      string
	SOPInstanceUID string
	InstanceNumber int
	Volume         int
	Slice          int
}

// imageTask contains all data needed to generate a single DICOM image.
type imageTask struct {
	file      GeneratedFile
	rows      int
	cols      int
	pixelSeed uint64
	intensity float64 // relative signal, 1 for unweighted volumes
	metadata  []*dicom.Element
}

// gradientDirection spreads n unit vectors over a hemisphere on a golden-angle spiral.
func gradientDirection(i, n int) [3]float64 {
	z := 1 - (float64(i)+0.5)/float64(n)
	r := math.Sqrt(1 - z*z)
	phi := float64(i) * math.Pi * (3 - math.Sqrt(5))
	return [3]float64{r * math.Cos(phi), r * math.Sin(phi), z}
}

// GenerateSeries writes a synthetic MR series, one file per slice and volume, and returns
// the files in instance order.
func GenerateSeries(opts SeriesOptions) ([]GeneratedFile, error) {
	if err := opts.applyProtocol(); err != nil {
		return nil, err
	}
	opts.applyDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	name := func(parts ...any) string {
		return fmt.Sprint(append([]any{opts.Seed, opts.StudyID, opts.SeriesNumber, opts.AcquisitionNumber}, parts...)...)
	}
	// series of one exam share the study
	studyUID := util.DeterministicUID(fmt.Sprint(opts.Seed, opts.StudyID, "study"))
	seriesUID := util.DeterministicUID(name("series"))
	frameOfReferenceUID := util.DeterministicUID(name("frame"))

	iop := orientations[opts.Orientation]
	row := r3.Vec{X: iop[0], Y: iop[1], Z: iop[2]}
	col := r3.Vec{X: iop[3], Y: iop[4], Z: iop[5]}
	normal := r3.Cross(row, col)
	orientation := make([]string, len(iop))
	for i, v := range iop {
		orientation[i] = floatToDS(v)
	}
	// center the field of view on the isocenter
	origin := r3.Add(
		r3.Scale(-float64(opts.Cols-1)*opts.PixelSpacing/2, row),
		r3.Scale(-float64(opts.Rows-1)*opts.PixelSpacing/2, col),
	)
	origin = r3.Add(origin, r3.Scale(-float64(opts.Slices-1)*opts.SliceThickness/2, normal))

	numVolumes := 1
	if opts.DWIDirections > 0 {
		numVolumes += opts.DWIDirections
	}

	// trigger time of each spatial slice within a TR
	triggers := make([]float64, opts.Slices)
	if opts.SliceOrder != acquisition.SliceOrderUnknown {
		step := opts.RepetitionTime / float64(opts.Slices)
		for k, slice := range acquisitionOrder(opts.SliceOrder, opts.Slices) {
			triggers[slice] = float64(k) * step
		}
	}

	date := "20240115"
	start := time.Date(2024, 1, 15, 8+opts.SeriesNumber%10, (opts.AcquisitionNumber*7)%60, 0, 0, time.UTC)
	clock := start.Format("150405")

	attrs, omit := edgecases.Apply(opts.EdgeCases, edgecases.Values{
		PatientID:         opts.PatientID,
		PatientName:       "SYNTHETIC^" + opts.PatientID,
		SeriesDescription: seriesDescription(opts),
		ProtocolName:      seriesDescription(opts),
		AcquisitionDate:   date,
	}, randv2.New(randv2.NewPCG(uint64(opts.Seed), uint64(opts.SeriesNumber))))

	vendor := vendortags.ForManufacturer(opts.Scanner.Manufacturer)
	privateDiffusion := opts.VendorTags && vendor.CarriesDiffusion()

	tasks := make([]imageTask, 0, numVolumes*opts.Slices)
	for v := 0; v < numVolumes; v++ {
		bval, bvec, intensity := 0.0, [3]float64{}, 1.0
		if v > 0 {
			bval = opts.BValue
			bvec = gradientDirection(v-1, opts.DWIDirections)
			intensity = math.Exp(-opts.BValue * 0.0007)
		}
		// each volume starts one TR after the previous
		volumeClock := start.Add(time.Duration(float64(v) * opts.RepetitionTime * float64(time.Millisecond))).Format("150405.00")
		for s := 0; s < opts.Slices; s++ {
			instance := v*opts.Slices + s + 1
			pos := r3.Add(origin, r3.Scale(float64(s)*opts.SliceThickness, normal))
			sopInstanceUID := util.DeterministicUID(name("instance", instance))

			metadata := []*dicom.Element{
				mustNewElement(tag.TransferSyntaxUID, []string{"1.2.840.10008.1.2.1"}),
				mustNewElement(tag.MediaStorageSOPClassUID, []string{mrImageStorage}),
				mustNewElement(tag.MediaStorageSOPInstanceUID, []string{sopInstanceUID}),
				mustNewElement(tag.SOPClassUID, []string{mrImageStorage}),
				mustNewElement(tag.SOPInstanceUID, []string{sopInstanceUID}),
				mustNewElement(tag.StudyDate, []string{date}),
				mustNewElement(util.TagAcquisitionDate, []string{attrs.AcquisitionDate}),
				mustNewElement(util.TagAcquisitionTime, []string{volumeClock}),
				mustNewElement(tag.StudyTime, []string{clock}),
				mustNewElement(tag.Modality, []string{"MR"}),
				mustNewElement(tag.Manufacturer, []string{opts.Scanner.Manufacturer}),
				mustNewElement(tag.InstitutionName, []string{"NIFTIFORGE"}),
				mustNewElement(tag.StationName, []string{"MR01"}),
				mustNewElement(tag.StudyDescription, []string{"Synthetic MR"}),
				mustNewElement(tag.SeriesDescription, []string{attrs.SeriesDescription}),
				mustNewElement(tag.ManufacturerModelName, []string{opts.Scanner.Model}),
				mustNewElement(tag.PatientName, []string{attrs.PatientName}),
				mustNewElement(tag.PatientID, []string{attrs.PatientID}),
				mustNewElement(tag.BodyPartExamined, []string{"BRAIN"}),
				mustNewElement(tag.SequenceName, []string{sequenceName(opts)}),
				mustNewElement(util.TagMRAcquisitionType, []string{opts.AcquisitionType}),
				mustNewElement(tag.SliceThickness, []string{floatToDS(opts.SliceThickness)}),
				mustNewElement(tag.RepetitionTime, []string{floatToDS(opts.RepetitionTime)}),
				mustNewElement(tag.EchoTime, []string{floatToDS(opts.EchoTime)}),
				mustNewElement(tag.MagneticFieldStrength, []string{floatToDS(opts.Scanner.FieldStrength)}),
				mustNewElement(tag.SpacingBetweenSlices, []string{floatToDS(opts.SliceThickness)}),
				mustNewElement(tag.ProtocolName, []string{attrs.ProtocolName}),
				mustNewElement(util.TagTriggerTime, []string{floatToDS(triggers[s])}),
				mustNewElement(util.TagAcquisitionMatrix, []int{0, opts.Cols, opts.Rows, 0}),
				mustNewElement(util.TagInPlanePhaseEncodingDirection, []string{opts.PhaseEncoding}),
				mustNewElement(tag.FlipAngle, []string{floatToDS(opts.FlipAngle)}),
				mustNewElement(tag.StudyInstanceUID, []string{studyUID}),
				mustNewElement(tag.SeriesInstanceUID, []string{seriesUID}),
				mustNewElement(tag.StudyID, []string{strconv.Itoa(opts.StudyID)}),
				mustNewElement(tag.SeriesNumber, []string{strconv.Itoa(opts.SeriesNumber)}),
				mustNewElement(util.TagAcquisitionNumber, []string{strconv.Itoa(opts.AcquisitionNumber)}),
				mustNewElement(tag.InstanceNumber, []string{strconv.Itoa(instance)}),
				mustNewElement(tag.ImagePositionPatient, []string{floatToDS(pos.X), floatToDS(pos.Y), floatToDS(pos.Z)}),
				mustNewElement(tag.ImageOrientationPatient, orientation),
				mustNewElement(tag.FrameOfReferenceUID, []string{frameOfReferenceUID}),
				mustNewElement(tag.SliceLocation, []string{floatToDS(r3.Dot(pos, normal))}),
				mustNewElement(tag.SamplesPerPixel, []int{1}),
				mustNewElement(tag.PhotometricInterpretation, []string{"MONOCHROME2"}),
				mustNewElement(tag.Rows, []int{opts.Rows}),
				mustNewElement(tag.Columns, []int{opts.Cols}),
				mustNewElement(tag.PixelSpacing, []string{floatToDS(opts.PixelSpacing), floatToDS(opts.PixelSpacing)}),
				mustNewElement(tag.BitsAllocated, []int{16}),
				mustNewElement(tag.BitsStored, []int{12}),
				mustNewElement(tag.HighBit, []int{11}),
				mustNewElement(tag.PixelRepresentation, []int{0}),
			}
			if opts.InversionTime > 0 {
				metadata = append(metadata, mustNewElement(util.TagInversionTime, []string{floatToDS(opts.InversionTime)}))
			}
			if opts.ParallelReduction > 0 {
				metadata = append(metadata, mustNewElement(util.TagParallelReductionFactorInPlane, []float64{opts.ParallelReduction}))
			}
			if opts.DWIDirections > 0 && !privateDiffusion {
				metadata = append(metadata,
					mustNewElement(util.TagDiffusionBValue, []float64{bval}),
					mustNewElement(util.TagDiffusionGradientOrientation, bvec[:]),
				)
			}
			if opts.protocol != nil {
				metadata = append(metadata, opts.protocol.Elements()...)
			}
			if slices.Contains(opts.EdgeCases, edgecases.SpecialChars) {
				metadata = append(metadata, mustNewElement(tag.SpecificCharacterSet, []string{"ISO_IR 192"}))
			}

			// Generate deterministic pixel seed for this specific image
			pixelSeedHash := fnv.New64a()
			_, _ = fmt.Fprintf(pixelSeedHash, "%d_pixel_%d", opts.Seed, instance)

			if opts.VendorTags {
				seed := pixelSeedHash.Sum64()
				metadata = append(metadata, vendor.Elements(vendortags.Image{
					Diffusion:   opts.DWIDirections > 0,
					BValue:      bval,
					Gradient:    bvec,
					SliceNormal: [3]float64{normal.X, normal.Y, normal.Z},
					TriggerTime: triggers[s],
				}, randv2.New(randv2.NewPCG(seed, ^seed)))...)
			}
			metadata = slices.DeleteFunc(metadata, func(e *dicom.Element) bool {
				return slices.Contains(omit, e.Tag)
			})

			tasks = append(tasks, imageTask{
				file: GeneratedFile{
					Path:           filepath.Join(opts.OutputDir, fmt.Sprintf("IMG%04d.dcm", instance)),
					PatientID:      attrs.PatientID,
					StudyUID:       studyUID,
					SeriesUID:      seriesUID,
					SOPInstanceUID: sopInstanceUID,
					InstanceNumber: instance,
					Volume:         v,
					Slice:          s,
				},
				rows:      opts.Rows,
				cols:      opts.Cols,
				pixelSeed: pixelSeedHash.Sum64(),
				intensity: intensity,
				metadata:  metadata,
			})
		}
	}

	err := runPool(len(tasks), opts.Workers, func(i int) error {
		return generateImageFromTask(tasks[i])
	}, opts.ProgressCallback)
	if err != nil {
		return nil, fmt.Errorf("generate series: %w", err)
	}

	files := make([]GeneratedFile, len(tasks))
	for i, task := range tasks {
		files[i] = task.file
	}
	return files, nil
}

func seriesDescription(opts SeriesOptions) string {
	if opts.protocol != nil {
		if opts.DWIDirections > 0 {
			return fmt.Sprintf("%s %d dir", opts.protocol.Description, opts.DWIDirections)
		}
		return opts.protocol.Description
	}
	if opts.DWIDirections > 0 {
		return fmt.Sprintf("DTI %d dir", opts.DWIDirections)
	}
	return fmt.Sprintf("%s EPI", opts.AcquisitionType)
}

func sequenceName(opts SeriesOptions) string {
	if opts.protocol != nil && opts.DWIDirections == 0 {
		return opts.protocol.SequenceName
	}
	if opts.DWIDirections > 0 {
		return "ep_b" + strconv.Itoa(int(opts.BValue))
	}
	return "epfid2d1"
}

// generateImageFromTask renders a radial phantom with noise and writes one image.
func generateImageFromTask(task imageTask) error {
	width, height := task.cols, task.rows
	rng := randv2.New(randv2.NewPCG(task.pixelSeed, task.pixelSeed))

	const maxValue = 4095
	centerX, centerY := float64(width-1)/2, float64(height-1)/2
	maxDist := math.Max(math.Sqrt(centerX*centerX+centerY*centerY), 1)

	nativeFrame := frame.NewNativeFrame[uint16](16, height, width, width*height, 1)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx := float64(x) - centerX
			dy := float64(y) - centerY
			normalizedDist := math.Sqrt(dx*dx+dy*dy) / maxDist

			intensity := 2048*(1-0.6*normalizedDist)*task.intensity + (rng.Float64()-0.5)*80
			nativeFrame.RawData[y*width+x] = uint16(math.Max(0, math.Min(maxValue, intensity)))
		}
	}

	pixelDataInfo := dicom.PixelDataInfo{
		Frames: []*frame.Frame{
			{
				Encapsulated: false,
				NativeData:   nativeFrame,
			},
		},
	}

	elements := make([]*dicom.Element, len(task.metadata)+1)
	copy(elements, task.metadata)
	elements[len(task.metadata)] = mustNewElement(tag.PixelData, pixelDataInfo)
	slices.SortFunc(elements, func(a, b *dicom.Element) int {
		return cmp.Or(cmp.Compare(a.Tag.Group, b.Tag.Group), cmp.Compare(a.Tag.Element, b.Tag.Element))
	})

	return writeDatasetToFile(task.file.Path, dicom.Dataset{Elements: elements})
}
