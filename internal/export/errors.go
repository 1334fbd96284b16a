package export

import (
	"errors"
	"fmt"
)

// Error classes. Test with errors.Is.
var (
	// ErrInput reports missing metadata or voxel data, or data the header cannot describe.
	ErrInput = errors.New("invalid export input")
	// ErrSourceRead reports a failure of the source reader.
	ErrSourceRead = errors.New("source read failed")
	// ErrWrite reports an I/O failure while creating an output file.
	ErrWrite = errors.New("write failed")
)

// VolumeExportError is returned by every Exporter operation.
type VolumeExportError struct {
	Op    string // export, copy, bval, bvec, json, read
	Label string // volume label, when the failure concerns one volume
	Path  string // file involved, when known
	Class error  // one of ErrInput, ErrSourceRead, ErrWrite
	Err   error  // underlying cause
}

func (e *VolumeExportError) Error() string {
	msg := e.Op
	if e.Label != "" {
		msg += fmt.Sprintf(" [%s]", e.Label)
	}
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", msg, e.Class, e.Err)
	}
	return fmt.Sprintf("%s: %v", msg, e.Class)
}

func (e *VolumeExportError) Unwrap() []error {
	return []error{e.Class, e.Err}
}

// classOf names the error class for metrics labels.
func classOf(err error) string {
	switch {
	case errors.Is(err, ErrInput):
		return "input"
	case errors.Is(err, ErrSourceRead):
		return "source"
	case errors.Is(err, ErrWrite):
		return "write"
	default:
		return "unknown"
	}
}
