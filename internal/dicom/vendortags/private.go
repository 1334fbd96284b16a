// Package vendortags writes and reads the manufacturer private blocks that carry
// diffusion encoding outside the standard MR diffusion macro.
package vendortags

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Siemens CSA private block.
var (
	TagSiemensCSACreator   = tag.Tag{Group: 0x0029, Element: 0x0010}
	TagCSAImageHeader      = tag.Tag{Group: 0x0029, Element: 0x1010}
	TagCSASeriesHeader     = tag.Tag{Group: 0x0029, Element: 0x1020}
	TagSiemensNonImageSeq  = tag.Tag{Group: 0x0029, Element: 0x1102}
	tagSiemensNonImageData = tag.Tag{Group: 0x0029, Element: 0x1100}
)

// GE GEMS private blocks.
var (
	TagGESoftwareVersion = tag.Tag{Group: 0x0009, Element: 0x10E3}
	TagGEBValue          = tag.Tag{Group: 0x0043, Element: 0x1039}
	TagGEGradientX       = tag.Tag{Group: 0x0019, Element: 0x10BB}
	TagGEGradientY       = tag.Tag{Group: 0x0019, Element: 0x10BC}
	TagGEGradientZ       = tag.Tag{Group: 0x0019, Element: 0x10BD}
)

// Philips private block.
var (
	TagPhilipsImagingSeq = tag.Tag{Group: 0x2005, Element: 0x100E}
)

// geBValueOffset is added to the b-value by some GE software levels.
const geBValueOffset = 1e9

// Vendor is a manufacturer family with its own private dictionary.
type Vendor int

const (
	Unknown Vendor = iota
	Siemens
	GE
	Philips
)

// String returns the vendor name.
func (v Vendor) String() string {
	switch v {
	case Siemens:
		return "siemens"
	case GE:
		return "ge"
	case Philips:
		return "philips"
	default:
		return "unknown"
	}
}

// ForManufacturer maps a Manufacturer (0008,0070) value to its vendor.
func ForManufacturer(manufacturer string) Vendor {
	m := strings.ToUpper(strings.TrimSpace(manufacturer))
	switch {
	case strings.HasPrefix(m, "SIEMENS"):
		return Siemens
	case strings.HasPrefix(m, "GE"):
		return GE
	case strings.HasPrefix(m, "PHILIPS"):
		return Philips
	default:
		return Unknown
	}
}

// CarriesDiffusion reports whether the vendor's private block holds the diffusion
// encoding in place of the standard tags.
func (v Vendor) CarriesDiffusion() bool {
	return v == Siemens || v == GE
}

// Image is the per-image state written to the private block.
type Image struct {
	Diffusion   bool
	BValue      float64
	Gradient    [3]float64
	SliceNormal [3]float64
	// TriggerTime in milliseconds from the start of the TR.
	TriggerTime float64
}

// Elements returns the private elements the vendor writes for img. Padding inside the
// binary headers is drawn from rng.
func (v Vendor) Elements(img Image, rng *rand.Rand) []*dicom.Element {
	switch v {
	case Siemens:
		return siemensElements(img, rng)
	case GE:
		return geElements(img, rng)
	case Philips:
		return philipsElements(rng)
	default:
		return nil
	}
}

// mustNewPrivateElement creates a DICOM element with a private tag and explicit VR.
// dicom.NewElement fails on unregistered private tags.
func mustNewPrivateElement(t tag.Tag, rawVR string, data any) *dicom.Element {
	value, err := dicom.NewValue(data)
	if err != nil {
		panic(fmt.Sprintf("failed to create value for private element %v: %v", t, err))
	}
	return &dicom.Element{
		Tag:                    t,
		ValueRepresentation:    tag.GetVRKind(t, rawVR),
		RawValueRepresentation: rawVR,
		Value:                  value,
	}
}

func fd(f float64) string {
	return strconv.FormatFloat(f, 'f', 8, 64)
}

func randomBytes(rng *rand.Rand, min, spread int) []byte {
	b := make([]byte, rng.IntN(spread)+min)
	for i := range b {
		b[i] = byte(rng.IntN(256))
	}
	return b
}

func siemensElements(img Image, rng *rand.Rand) []*dicom.Element {
	normal := []string{fd(img.SliceNormal[0]), fd(img.SliceNormal[1]), fd(img.SliceNormal[2])}
	image := []CSAElement{
		{Name: "NumberOfImagesInMosaic", VM: 1, VR: "IS", SyngoDT: 6, Values: []string{"1"}},
		{Name: "SliceNormalVector", VM: 3, VR: "FD", SyngoDT: 4, Values: normal},
		{Name: "MosaicRefAcqTimes", VM: 1, VR: "FD", SyngoDT: 4, Values: []string{fd(img.TriggerTime)}},
		{Name: "BandwidthPerPixelPhaseEncode", VM: 1, VR: "FD", SyngoDT: 4, Values: []string{"45.455"}},
		{Name: "RealDwellTime", VM: 1, VR: "IS", SyngoDT: 6, Values: []string{"5700"}},
		{Name: "ImaCoilString", VM: 1, VR: "LO", SyngoDT: 19, Values: []string{"HEA;HEP"}},
	}
	if img.Diffusion {
		gradient := CSAElement{Name: "DiffusionGradientDirection", VM: 3, VR: "FD", SyngoDT: 4}
		// b=0 images carry an empty direction
		if img.BValue > 0 {
			gradient.Values = []string{fd(img.Gradient[0]), fd(img.Gradient[1]), fd(img.Gradient[2])}
		}
		image = append(image,
			CSAElement{Name: "B_value", VM: 1, VR: "IS", SyngoDT: 6, Values: []string{strconv.Itoa(int(math.Round(img.BValue)))}},
			gradient,
		)
	}
	series := []CSAElement{
		{Name: "UsedPatientWeight", VM: 1, VR: "DS", SyngoDT: 3, Values: []string{"70.0"}},
		{Name: "MrProtocolVersion", VM: 1, VR: "IS", SyngoDT: 6, Values: []string{"1"}},
		{Name: "Isocentered", VM: 1, VR: "IS", SyngoDT: 6, Values: []string{"1"}},
		{Name: "CoilForGradient", VM: 1, VR: "LO", SyngoDT: 19, Values: []string{"AS"}},
	}

	nested := []*dicom.Element{
		mustNewPrivateElement(tag.Tag{Group: 0x0029, Element: 0x0011}, "LO", []string{"SIEMENS CSA NON-IMAGE"}),
		mustNewPrivateElement(tagSiemensNonImageData, "OB", randomBytes(rng, 512, 1024)),
	}
	return []*dicom.Element{
		mustNewPrivateElement(TagSiemensCSACreator, "LO", []string{"SIEMENS CSA HEADER"}),
		mustNewPrivateElement(TagCSAImageHeader, "OB", append(EncodeCSA(image), randomBytes(rng, 64, 256)...)),
		mustNewPrivateElement(TagCSASeriesHeader, "OB", append(EncodeCSA(series), randomBytes(rng, 64, 256)...)),
		mustNewPrivateElement(TagSiemensNonImageSeq, "SQ", [][]*dicom.Element{nested}),
	}
}

func geElements(img Image, rng *rand.Rand) []*dicom.Element {
	version := fmt.Sprintf("DV%d.%d_R0%d_M5", rng.IntN(10)+20, rng.IntN(10), rng.IntN(10))
	elements := []*dicom.Element{
		mustNewPrivateElement(tag.Tag{Group: 0x0009, Element: 0x0010}, "LO", []string{"GEMS_IDEN_01"}),
		mustNewPrivateElement(TagGESoftwareVersion, "LO", []string{version}),
	}
	if !img.Diffusion {
		return elements
	}
	// slop_int_6..9 layout: b-value with the software offset, then three unused words
	b := strconv.Itoa(int(math.Round(img.BValue + geBValueOffset)))
	return append(elements,
		mustNewPrivateElement(tag.Tag{Group: 0x0019, Element: 0x0010}, "LO", []string{"GEMS_ACQU_01"}),
		mustNewPrivateElement(TagGEGradientX, "DS", []string{fd(img.Gradient[0])}),
		mustNewPrivateElement(TagGEGradientY, "DS", []string{fd(img.Gradient[1])}),
		mustNewPrivateElement(TagGEGradientZ, "DS", []string{fd(img.Gradient[2])}),
		mustNewPrivateElement(tag.Tag{Group: 0x0043, Element: 0x0010}, "LO", []string{"GEMS_PARM_01"}),
		mustNewPrivateElement(TagGEBValue, "IS", []string{b, "8", "0", "0"}),
	)
}

func philipsElements(rng *rand.Rand) []*dicom.Element {
	item := []*dicom.Element{
		mustNewPrivateElement(tag.Tag{Group: 0x2005, Element: 0x0011}, "LO", []string{"Philips MR Imaging DD 005"}),
		mustNewPrivateElement(tag.Tag{Group: 0x2005, Element: 0x1100}, "DS", []string{fmt.Sprintf("%.6f", rng.Float64()*100+1)}),
		mustNewPrivateElement(tag.Tag{Group: 0x2005, Element: 0x1101}, "DS", []string{fmt.Sprintf("%.6f", rng.Float64()*10-5)}),
	}
	return []*dicom.Element{
		mustNewPrivateElement(tag.Tag{Group: 0x2001, Element: 0x0010}, "LO", []string{"Philips Imaging DD 001"}),
		mustNewPrivateElement(tag.Tag{Group: 0x2005, Element: 0x0010}, "LO", []string{"Philips MR Imaging DD 001"}),
		mustNewPrivateElement(TagPhilipsImagingSeq, "SQ", [][]*dicom.Element{item}),
	}
}

// Diffusion is the encoding of one diffusion image.
type Diffusion struct {
	BValue   float64
	Gradient [3]float64
}

// SiemensDiffusion extracts the diffusion encoding from a decoded CSA image header.
// A b=0 image without a direction yields a zero gradient.
func SiemensDiffusion(csa map[string][]string) (Diffusion, bool) {
	vals := csa["B_value"]
	if len(vals) == 0 {
		return Diffusion{}, false
	}
	b, err := strconv.ParseFloat(vals[0], 64)
	if err != nil {
		return Diffusion{}, false
	}
	d := Diffusion{BValue: b}
	if g := csa["DiffusionGradientDirection"]; len(g) == 3 {
		for i, s := range g {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return Diffusion{}, false
			}
			d.Gradient[i] = f
		}
	}
	return d, true
}

// GEDiffusion builds the diffusion encoding from the GE b-value words and the three
// gradient components. The software offset on the b-value is removed.
func GEDiffusion(bWords []float64, x, y, z float64) (Diffusion, bool) {
	if len(bWords) == 0 {
		return Diffusion{}, false
	}
	b := bWords[0]
	if b >= geBValueOffset {
		b = math.Mod(b, geBValueOffset)
	}
	return Diffusion{BValue: b, Gradient: [3]float64{x, y, z}}, true
}
