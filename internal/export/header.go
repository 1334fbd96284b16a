package export

import (
	"github.com/mrsinham/niftiforge/internal/acquisition"
	"github.com/mrsinham/niftiforge/internal/nifti"
	"github.com/mrsinham/niftiforge/internal/volume"
)

// BuildHeader maps the acquisition metadata onto a NIfTI header for data, whose voxel
// axes are placed in scanner space by affine.
func BuildHeader(meta *acquisition.Metadata, data volume.Volume, affine volume.Affine) (*nifti.Header, error) {
	h, err := nifti.NewHeader(data)
	if err != nil {
		return nil, err
	}
	h.SetXYZTUnits(nifti.UnitsMM, nifti.UnitsSec)
	if err := h.SetQForm(affine, nifti.XformScannerAnat); err != nil {
		return nil, err
	}
	h.SetSForm(affine, nifti.XformScannerAnat)
	h.SetDimInfo(meta.DimInfo())

	// the stated slice count may not match what was acquired
	numSlices := data.Shape()[2]
	h.SliceStart = 0
	h.SliceEnd = int16(numSlices - 1)
	h.SliceDuration = float32(meta.SliceDuration)
	h.SliceCode = byte(meta.SliceOrder)

	lo, hi := volume.DisplayRange(data)
	h.CalMin, h.CalMax = float32(lo), float32(hi)

	h.SetDescrip(meta.Description())

	// TR goes in pixdim[4] even for a single volume. Not NIfTI compliant.
	h.Pixdim[4] = float32(meta.TR)
	return h, nil
}
