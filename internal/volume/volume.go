// Package volume holds labeled voxel arrays and the affine geometry that places them in
// scanner space.
package volume

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/cmplx"
)

// Kind identifies the native element type of a voxel array.
type Kind int

const (
	Uint8 Kind = iota + 1
	Int8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
	Complex64
	Complex128
)

var kindNames = map[Kind]string{
	Uint8:      "uint8",
	Int8:       "int8",
	Int16:      "int16",
	Uint16:     "uint16",
	Int32:      "int32",
	Uint32:     "uint32",
	Int64:      "int64",
	Uint64:     "uint64",
	Float32:    "float32",
	Float64:    "float64",
	Complex64:  "complex64",
	Complex128: "complex128",
}

// String returns the Go name of the element type.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Size returns the number of bytes per element.
func (k Kind) Size() int {
	switch k {
	case Uint8, Int8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64, Complex64:
		return 8
	case Complex128:
		return 16
	default:
		return 0
	}
}

// IsComplex reports whether the element type is complex.
func (k Kind) IsComplex() bool {
	return k == Complex64 || k == Complex128
}

// Element is the set of numeric types a voxel array can hold.
type Element interface {
	uint8 | int8 | int16 | uint16 | int32 | uint32 | int64 | uint64 |
		float32 | float64 | complex64 | complex128
}

// Volume is a 3D or 4D voxel array stored x-fastest.
type Volume interface {
	// Shape returns the array dimensions. len(Shape()) is 3 or 4.
	Shape() []int
	Kind() Kind
	Len() int
	// Magnitudes returns every voxel as float64, taking |v| for complex data.
	Magnitudes() []float64
	// Permute returns a copy with spatial axis k of the result taken from axis perm[k]
	// of the receiver, reversed when flip[k] is set. Axes beyond the third are kept.
	Permute(perm [3]int, flip [3]bool) Volume
	// WriteTo writes the raw voxel payload in little-endian order.
	WriteTo(w io.Writer) (int64, error)
}

// Array is a typed voxel array.
type Array[T Element] struct {
	shape []int
	data  []T
}

// New wraps data as an array of the given shape. The data slice is not copied.
func New[T Element](data []T, shape ...int) (*Array[T], error) {
	if len(shape) < 3 || len(shape) > 4 {
		return nil, fmt.Errorf("volume must have 3 or 4 dimensions, got %d", len(shape))
	}
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return nil, fmt.Errorf("invalid dimension %d in shape %v", d, shape)
		}
		n *= d
	}
	if len(data) != n {
		return nil, fmt.Errorf("shape %v needs %d voxels, got %d", shape, n, len(data))
	}
	return &Array[T]{shape: append([]int(nil), shape...), data: data}, nil
}

// Zeros allocates an array of the given shape.
func Zeros[T Element](shape ...int) *Array[T] {
	n := 1
	for _, d := range shape {
		n *= d
	}
	a, err := New(make([]T, n), shape...)
	if err != nil {
		panic(err)
	}
	return a
}

// Shape and Len accept a nil receiver, which reads as an empty array.
func (a *Array[T]) Shape() []int {
	if a == nil {
		return nil
	}
	return append([]int(nil), a.shape...)
}

func (a *Array[T]) Len() int {
	if a == nil {
		return 0
	}
	return len(a.data)
}

// Data returns the backing slice.
func (a *Array[T]) Data() []T { return a.data }

func (a *Array[T]) index(idx []int) int {
	off, stride := 0, 1
	for i, d := range a.shape {
		v := 0
		if i < len(idx) {
			v = idx[i]
		}
		off += v * stride
		stride *= d
	}
	return off
}

// At returns the voxel at the given index. Missing trailing indices are zero.
func (a *Array[T]) At(idx ...int) T { return a.data[a.index(idx)] }

// Set stores v at the given index.
func (a *Array[T]) Set(v T, idx ...int) { a.data[a.index(idx)] = v }

func (a *Array[T]) Kind() Kind {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return Uint8
	case int8:
		return Int8
	case int16:
		return Int16
	case uint16:
		return Uint16
	case int32:
		return Int32
	case uint32:
		return Uint32
	case int64:
		return Int64
	case uint64:
		return Uint64
	case float32:
		return Float32
	case float64:
		return Float64
	case complex64:
		return Complex64
	default:
		return Complex128
	}
}

func (a *Array[T]) Magnitudes() []float64 {
	out := make([]float64, len(a.data))
	switch d := any(a.data).(type) {
	case []uint8:
		for i, v := range d {
			out[i] = float64(v)
		}
	case []int8:
		for i, v := range d {
			out[i] = float64(v)
		}
	case []int16:
		for i, v := range d {
			out[i] = float64(v)
		}
	case []uint16:
		for i, v := range d {
			out[i] = float64(v)
		}
	case []int32:
		for i, v := range d {
			out[i] = float64(v)
		}
	case []uint32:
		for i, v := range d {
			out[i] = float64(v)
		}
	case []int64:
		for i, v := range d {
			out[i] = float64(v)
		}
	case []uint64:
		for i, v := range d {
			out[i] = float64(v)
		}
	case []float32:
		for i, v := range d {
			out[i] = float64(v)
		}
	case []float64:
		copy(out, d)
	case []complex64:
		for i, v := range d {
			out[i] = cmplx.Abs(complex128(v))
		}
	case []complex128:
		for i, v := range d {
			out[i] = cmplx.Abs(v)
		}
	}
	return out
}

func (a *Array[T]) Permute(perm [3]int, flip [3]bool) Volume {
	shape := a.Shape()
	for k := 0; k < 3; k++ {
		shape[k] = a.shape[perm[k]]
	}
	out := Zeros[T](shape...)

	nt := 1
	if len(shape) == 4 {
		nt = shape[3]
	}
	src := make([]int, len(a.shape))
	dst := 0
	for t := 0; t < nt; t++ {
		for z := 0; z < shape[2]; z++ {
			for y := 0; y < shape[1]; y++ {
				for x := 0; x < shape[0]; x++ {
					for k, n := range [3]int{x, y, z} {
						axis := perm[k]
						if flip[k] {
							n = a.shape[axis] - 1 - n
						}
						src[axis] = n
					}
					if len(src) == 4 {
						src[3] = t
					}
					out.data[dst] = a.data[a.index(src)]
					dst++
				}
			}
		}
	}
	return out
}

func (a *Array[T]) WriteTo(w io.Writer) (int64, error) {
	if err := binary.Write(w, binary.LittleEndian, a.data); err != nil {
		return 0, err
	}
	return int64(len(a.data) * a.Kind().Size()), nil
}

// Decode reads a little-endian payload of the given kind and shape.
func Decode(r io.Reader, order binary.ByteOrder, kind Kind, shape ...int) (Volume, error) {
	switch kind {
	case Uint8:
		return decode[uint8](r, order, shape)
	case Int8:
		return decode[int8](r, order, shape)
	case Int16:
		return decode[int16](r, order, shape)
	case Uint16:
		return decode[uint16](r, order, shape)
	case Int32:
		return decode[int32](r, order, shape)
	case Uint32:
		return decode[uint32](r, order, shape)
	case Int64:
		return decode[int64](r, order, shape)
	case Uint64:
		return decode[uint64](r, order, shape)
	case Float32:
		return decode[float32](r, order, shape)
	case Float64:
		return decode[float64](r, order, shape)
	case Complex64:
		return decode[complex64](r, order, shape)
	case Complex128:
		return decode[complex128](r, order, shape)
	default:
		return nil, fmt.Errorf("unsupported voxel kind %v", kind)
	}
}

func decode[T Element](r io.Reader, order binary.ByteOrder, shape []int) (Volume, error) {
	n := 1
	for _, d := range shape {
		n *= d
	}
	data := make([]T, n)
	if err := binary.Read(r, order, data); err != nil {
		return nil, fmt.Errorf("read %d voxels: %w", n, err)
	}
	a, err := New(data, shape...)
	if err != nil {
		return nil, err
	}
	return a, nil
}
