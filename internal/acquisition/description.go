package acquisition

import (
	"fmt"
	"strings"
)

// DescriptionLimit is the size of the NIfTI descrip field.
const DescriptionLimit = 80

func orOne(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return v
}

// Description packs the acquisition parameters into the header description field:
//
//	te=<ms>;ti=<ms>;fa=<deg>;ec=<ms>;acq=[<matrix>];mt=<Hz>;rp=<reduction>;
//
// followed by rs=, pe= and ves=/ve= entries when they apply. Optional entries carry no
// trailing separator.
func (m *Metadata) Description() string {
	var b strings.Builder
	fmt.Fprintf(&b, "te=%.2f;ti=%.0f;fa=%.0f;ec=%.4f;acq=[%d,%d];mt=%.0f;rp=%.1f;",
		m.TE*1000,
		m.TI*1000,
		m.FlipAngle,
		m.EffectiveEchoSpacing*1000,
		m.AcquisitionMatrix[0], m.AcquisitionMatrix[1],
		m.MTOffsetHz,
		1/orOne(m.PhaseEncodeUndersample),
	)
	if strings.Contains(m.AcquisitionType, "3D") {
		fmt.Fprintf(&b, "rs=%.1f", 1/orOne(m.SliceEncodeUndersample))
	}
	if m.PhaseEncodeDirection != nil {
		fmt.Fprintf(&b, "pe=%d", *m.PhaseEncodeDirection)
	}
	if m.IsFastcard {
		scale, encoding := 0.0, 0
		if m.VelocityEncodeScale != nil {
			scale = *m.VelocityEncodeScale
		}
		if m.VelocityEncoding != nil {
			encoding = *m.VelocityEncoding
		}
		fmt.Fprintf(&b, "ves=%f;ve=%d", scale, encoding)
	}
	return b.String()
}
