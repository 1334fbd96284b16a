// Package protocols holds MR acquisition presets used when synthesizing series.
package protocols

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mrsinham/niftiforge/internal/util"
)

// Protocol is an MR acquisition preset. Times are in milliseconds.
type Protocol struct {
	Name         string
	Description  string
	SequenceName string

	ScanningSequence []string
	SequenceVariant  []string
	ScanOptions      []string
	AcquisitionType  string

	EchoTime        float64
	RepetitionTime  float64
	InversionTime   float64
	FlipAngle       float64
	EchoTrainLength int
	PixelBandwidth  float64

	// VelocityEncoding in cm/s, phase contrast only.
	VelocityEncoding float64
	// Diffusion presets default to six gradient directions.
	Diffusion bool
}

var presets = []Protocol{
	{
		Name: "t1", Description: "T1 MPRAGE SAG", SequenceName: "tfl3d1_16ns",
		ScanningSequence: []string{"GR", "IR"}, SequenceVariant: []string{"SP", "MP"}, ScanOptions: []string{"IR"},
		AcquisitionType: "3D", EchoTime: 2.98, RepetitionTime: 2300, InversionTime: 900, FlipAngle: 9,
		EchoTrainLength: 1, PixelBandwidth: 240,
	},
	{
		Name: "t2", Description: "T2 TSE AX", SequenceName: "tse2d1_15",
		ScanningSequence: []string{"SE"}, SequenceVariant: []string{"SK", "SP"}, ScanOptions: []string{"PFP"},
		AcquisitionType: "2D", EchoTime: 96, RepetitionTime: 5000, FlipAngle: 150,
		EchoTrainLength: 15, PixelBandwidth: 220,
	},
	{
		Name: "flair", Description: "T2 FLAIR AX", SequenceName: "tir2d1_21",
		ScanningSequence: []string{"SE", "IR"}, SequenceVariant: []string{"SK", "SP", "MP"}, ScanOptions: []string{"IR"},
		AcquisitionType: "2D", EchoTime: 81, RepetitionTime: 9000, InversionTime: 2500, FlipAngle: 150,
		EchoTrainLength: 21, PixelBandwidth: 290,
	},
	{
		Name: "dwi", Description: "DTI", SequenceName: "ep_b1000",
		ScanningSequence: []string{"EP"}, SequenceVariant: []string{"SK", "SP"}, ScanOptions: []string{"PFP", "FS"},
		AcquisitionType: "2D", EchoTime: 89, RepetitionTime: 8000, FlipAngle: 90,
		EchoTrainLength: 64, PixelBandwidth: 1502, Diffusion: true,
	},
	{
		Name: "bold", Description: "BOLD RESTING", SequenceName: "epfid2d1_64",
		ScanningSequence: []string{"EP"}, SequenceVariant: []string{"SK"}, ScanOptions: []string{"FS"},
		AcquisitionType: "2D", EchoTime: 30, RepetitionTime: 2000, FlipAngle: 77,
		EchoTrainLength: 64, PixelBandwidth: 2368,
	},
	{
		Name: "pcmri", Description: "PC FLOW", SequenceName: "fastcard_pc",
		ScanningSequence: []string{"GR"}, SequenceVariant: []string{"SP"}, ScanOptions: []string{"CG"},
		AcquisitionType: "2D", EchoTime: 2.9, RepetitionTime: 5.4, FlipAngle: 20,
		EchoTrainLength: 1, PixelBandwidth: 488, VelocityEncoding: 150,
	},
}

// All returns every preset.
func All() []Protocol {
	return slices.Clone(presets)
}

// Names returns the preset names.
func Names() []string {
	names := make([]string, len(presets))
	for i, p := range presets {
		names[i] = p.Name
	}
	return names
}

// Get returns the preset with the given name, case-insensitively.
func Get(name string) (Protocol, error) {
	for _, p := range presets {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p, nil
		}
	}
	return Protocol{}, fmt.Errorf("unknown protocol %q (valid: %s)", name, strings.Join(Names(), ", "))
}

// Elements returns the sequence attributes the preset adds to every image, beyond the
// timing and naming attributes the generator writes itself.
func (p Protocol) Elements() []*dicom.Element {
	elements := []*dicom.Element{
		mustNewElement(util.TagScanningSequence, p.ScanningSequence),
		mustNewElement(util.TagSequenceVariant, p.SequenceVariant),
		mustNewElement(util.TagScanOptions, p.ScanOptions),
		mustNewElement(util.TagEchoTrainLength, []string{strconv.Itoa(p.EchoTrainLength)}),
		mustNewElement(util.TagPixelBandwidth, []string{strconv.FormatFloat(p.PixelBandwidth, 'g', 6, 64)}),
	}
	if p.VelocityEncoding > 0 {
		elements = append(elements, mustNewElement(util.TagVelocityEncodingMaximumValue, []float64{p.VelocityEncoding}))
	}
	return elements
}

func mustNewElement(t tag.Tag, value any) *dicom.Element {
	elem, err := dicom.NewElement(t, value)
	if err != nil {
		panic(fmt.Sprintf("failed to create element %v: %v", t, err))
	}
	return elem
}
