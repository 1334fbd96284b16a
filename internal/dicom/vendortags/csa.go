package vendortags

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// csaMagic opens every SV10 CSA header.
var csaMagic = []byte{'S', 'V', '1', '0', 0x04, 0x03, 0x02, 0x01}

// csaFiller is the value Siemens writes in the unused header words.
const csaFiller = 0x4D

// CSAElement is one named entry of a Siemens CSA header.
type CSAElement struct {
	Name    string
	VM      int32
	VR      string
	SyngoDT int32
	Values  []string
}

// EncodeCSA encodes elements in the SV10 layout: a 16 byte preamble, then per element a
// 64 byte name, VM, VR, syngo type and item count, and per item four length words and
// the value padded to 4 bytes.
func EncodeCSA(elements []CSAElement) []byte {
	var buf bytes.Buffer
	buf.Write(csaMagic)

	// binary.Write to bytes.Buffer never fails; discard errors explicitly.
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(elements)))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(csaFiller))

	for _, elem := range elements {
		name := make([]byte, 64)
		copy(name, elem.Name)
		buf.Write(name)
		_ = binary.Write(&buf, binary.LittleEndian, elem.VM)
		vr := make([]byte, 4)
		copy(vr, elem.VR)
		buf.Write(vr)
		_ = binary.Write(&buf, binary.LittleEndian, elem.SyngoDT)
		_ = binary.Write(&buf, binary.LittleEndian, int32(len(elem.Values)))
		_ = binary.Write(&buf, binary.LittleEndian, uint32(csaFiller))

		for _, v := range elem.Values {
			val := []byte(v)
			for j := 0; j < 4; j++ {
				_ = binary.Write(&buf, binary.LittleEndian, uint32(len(val)))
			}
			buf.Write(val)
			if padding := (4 - len(val)%4) % 4; padding > 0 {
				buf.Write(make([]byte, padding))
			}
		}
	}
	return buf.Bytes()
}

// ErrNotCSA is returned for data without the SV10 preamble.
var ErrNotCSA = errors.New("not an SV10 CSA header")

// DecodeCSA returns the non-empty values of every element of an SV10 CSA header, keyed
// by element name. Bytes after the last element are ignored.
func DecodeCSA(data []byte) (map[string][]string, error) {
	if !bytes.HasPrefix(data, csaMagic) {
		return nil, ErrNotCSA
	}
	r := &csaReader{data: data, off: len(csaMagic)}
	count := r.uint32()
	r.uint32()

	out := make(map[string][]string, count)
	for i := uint32(0); i < count && r.err == nil; i++ {
		name := cString(r.bytes(64))
		r.skip(4 + 4 + 4) // VM, VR, syngo type
		items := r.uint32()
		r.uint32()

		var values []string
		for j := uint32(0); j < items && r.err == nil; j++ {
			r.uint32()
			length := r.uint32()
			r.skip(8)
			v := strings.TrimSpace(cString(r.bytes(int(length))))
			r.skip((4 - int(length)%4) % 4)
			if v != "" {
				values = append(values, v)
			}
		}
		if r.err == nil {
			out[name] = values
		}
	}
	if r.err != nil {
		return nil, fmt.Errorf("CSA header: %w", r.err)
	}
	return out, nil
}

type csaReader struct {
	data []byte
	off  int
	err  error
}

func (r *csaReader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = fmt.Errorf("truncated at offset %d", r.off)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *csaReader) skip(n int) { r.bytes(n) }

func (r *csaReader) uint32() uint32 {
	b := r.bytes(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
