package nifti

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/mrsinham/niftiforge/internal/volume"
)

// Image is a decoded NIfTI-1 file.
type Image struct {
	Header *Header
	Data   volume.Volume
}

// Affine returns the s-form when set, otherwise the q-form.
func (img *Image) Affine() volume.Affine {
	if img.Header.SformCode > 0 {
		return img.Header.SForm()
	}
	return img.Header.QForm()
}

// Encode writes h followed by the voxel payload of v.
func Encode(w io.Writer, h *Header, v volume.Volume) error {
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	// extension flag, no extensions
	if _, err := w.Write(make([]byte, VoxOffset-HeaderSize)); err != nil {
		return fmt.Errorf("write extension flag: %w", err)
	}
	if _, err := v.WriteTo(w); err != nil {
		return fmt.Errorf("write voxels: %w", err)
	}
	return nil
}

// WriteFile writes a single-file image. Paths ending in .gz are gzip-compressed. An
// existing file is replaced.
func WriteFile(path string, h *Header, v volume.Volume) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	bw := bufio.NewWriter(f)
	if !strings.HasSuffix(path, ".gz") {
		if err := Encode(bw, h, v); err != nil {
			return err
		}
		return bw.Flush()
	}

	zw := gzip.NewWriter(bw)
	if err := Encode(zw, h, v); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close gzip stream: %w", err)
	}
	return bw.Flush()
}

// Decode reads a single-file image from r, in either byte order.
func Decode(r io.Reader) (*Image, error) {
	raw := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var order binary.ByteOrder = binary.LittleEndian
	if int32(binary.LittleEndian.Uint32(raw)) != HeaderSize {
		order = binary.BigEndian
		if int32(binary.BigEndian.Uint32(raw)) != HeaderSize {
			return nil, fmt.Errorf("not a NIfTI-1 header")
		}
	}
	h := &Header{}
	if err := binary.Read(bytes.NewReader(raw), order, h); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	if h.Magic != Magic {
		return nil, fmt.Errorf("unsupported magic %q", cString(h.Magic[:]))
	}

	skip := int64(h.VoxOffset) - HeaderSize
	if skip < 0 {
		return nil, fmt.Errorf("invalid vox_offset %v", h.VoxOffset)
	}
	if _, err := io.CopyN(io.Discard, r, skip); err != nil {
		return nil, fmt.Errorf("skip extensions: %w", err)
	}

	kind, err := KindOf(h.Datatype)
	if err != nil {
		return nil, err
	}
	shape := h.Shape()
	if len(shape) < 3 {
		shape = append(shape, make([]int, 3-len(shape))...)
		for i := range shape {
			if shape[i] == 0 {
				shape[i] = 1
			}
		}
	}
	data, err := volume.Decode(r, order, kind, shape...)
	if err != nil {
		return nil, err
	}
	return &Image{Header: h, Data: data}, nil
}

// ReadFile reads a .nii or .nii.gz file.
func ReadFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	br := bufio.NewReader(f)
	var r io.Reader = br
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}

	img, err := Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}
