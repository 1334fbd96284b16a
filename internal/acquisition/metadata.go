// Package acquisition describes an MR acquisition as read from its source series.
package acquisition

import (
	"fmt"
	"strings"
	"time"

	"github.com/mrsinham/niftiforge/internal/volume"
)

// SliceOrder is the NIfTI-1 slice timing code.
type SliceOrder int

const (
	SliceOrderUnknown SliceOrder = iota
	SliceOrderSeqInc
	SliceOrderSeqDec
	SliceOrderAltInc
	SliceOrderAltDec
	SliceOrderAltInc2 // interleaved, ascending, starting at the 2nd slice
	SliceOrderAltDec2 // interleaved, descending, starting at the 2nd to last slice
)

// String returns the NIfTI name of the slice order.
func (o SliceOrder) String() string {
	switch o {
	case SliceOrderSeqInc:
		return "SEQ_INC"
	case SliceOrderSeqDec:
		return "SEQ_DEC"
	case SliceOrderAltInc:
		return "ALT_INC"
	case SliceOrderAltDec:
		return "ALT_DEC"
	case SliceOrderAltInc2:
		return "ALT_INC2"
	case SliceOrderAltDec2:
		return "ALT_DEC2"
	default:
		return "UNKNOWN"
	}
}

// ParseSliceOrder is the inverse of SliceOrder.String, case-insensitive.
func ParseSliceOrder(name string) (SliceOrder, error) {
	for o := SliceOrderUnknown; o <= SliceOrderAltDec2; o++ {
		if strings.EqualFold(name, o.String()) {
			return o, nil
		}
	}
	return SliceOrderUnknown, fmt.Errorf("unknown slice order %q", name)
}

// Metadata is a fully read acquisition. Zero values mean "not recorded" unless noted.
type Metadata struct {
	// Identifiers
	ExamNo      int
	SeriesNo    int
	AcqNo       int
	ExamUID     string
	Timestamp   time.Time
	SubjectCode string

	// Timing, in seconds
	TE            float64
	TI            float64
	TR            float64
	SliceDuration float64

	FlipAngle            float64 // degrees
	EffectiveEchoSpacing float64 // seconds
	AcquisitionMatrix    [2]int
	MTOffsetHz           float64

	// Encoding
	PhaseEncode            int  // 0 or 1
	PhaseEncodeDirection   *int // signed, nil when unknown
	PhaseEncodeUndersample float64
	SliceEncodeUndersample float64
	AcquisitionType        string // e.g. "2D", "3D"

	// Diffusion
	IsDWI bool
	Bvals []float64
	Bvecs [3][]float64 // x, y and z rows, one column per volume

	// Phase contrast
	IsFastcard          bool
	VelocityEncodeScale *float64
	VelocityEncoding    *int

	SliceOrder SliceOrder
	NumSlices  int // as stated by the source; the voxel data decides the header
	QtoXYZ     volume.Affine

	// MDJSON is written verbatim to the JSON sidecar when non-nil.
	MDJSON map[string]any
}

// Prefix returns the "{exam}_{series}_{acq}" stem shared by every file of the acquisition.
func (m *Metadata) Prefix() string {
	return fmt.Sprintf("%d_%d_%d", m.ExamNo, m.SeriesNo, m.AcqNo)
}

// SessionID returns the exam UID with dots replaced, usable as a path segment.
func (m *Metadata) SessionID() string {
	return strings.ReplaceAll(m.ExamUID, ".", "_")
}

// SessionName returns a human label for the session; only the first acquisition of the
// first series carries one.
func (m *Metadata) SessionName() string {
	if m.SeriesNo != 1 || m.AcqNo != 1 || m.Timestamp.IsZero() {
		return ""
	}
	return m.Timestamp.Format("2006-01-02 15:04")
}

// HasGradients reports whether diffusion sidecars can be written.
func (m *Metadata) HasGradients() bool {
	return m.IsDWI && m.Bvals != nil && m.Bvecs[0] != nil && m.Bvecs[1] != nil && m.Bvecs[2] != nil
}

// DimInfo returns the (freq, phase, slice) voxel axes.
func (m *Metadata) DimInfo() (freq, phase, slice int) {
	if m.PhaseEncode == 0 {
		return 1, 0, 2
	}
	return 0, 1, 2
}
