// Package dicom reads MR series into acquisition metadata and voxel volumes, and writes
// synthetic series for fixtures.
package dicom

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// mustNewElement creates a new DICOM element, panicking on error.
func mustNewElement(t tag.Tag, value interface{}) *dicom.Element {
	elem, err := dicom.NewElement(t, value)
	if err != nil {
		panic(fmt.Sprintf("failed to create element %v: %v", t, err))
	}
	return elem
}

// floatToDS converts a float64 to a DICOM Decimal String.
func floatToDS(f float64) string {
	return strconv.FormatFloat(f, 'g', 10, 64)
}

// writeDatasetToFile writes a DICOM dataset to a file.
func writeDatasetToFile(filename string, ds dicom.Dataset, opts ...dicom.WriteOption) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return dicom.Write(f, ds, opts...)
}

func rawValue(ds *dicom.Dataset, t tag.Tag) (any, bool) {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem.Value == nil {
		return nil, false
	}
	return elem.Value.GetValue(), true
}

// stringValues returns the trimmed string values of t.
func stringValues(ds *dicom.Dataset, t tag.Tag) []string {
	v, ok := rawValue(ds, t)
	if !ok {
		return nil
	}
	strs, ok := v.([]string)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(strs))
	for _, s := range strs {
		out = append(out, strings.TrimRight(strings.TrimSpace(s), "\x00"))
	}
	return out
}

// stringValue returns the first string value of t, or "".
func stringValue(ds *dicom.Dataset, t tag.Tag) string {
	if strs := stringValues(ds, t); len(strs) > 0 {
		return strs[0]
	}
	return ""
}

// floatValues returns the numeric values of t, whether stored as DS/IS strings, binary
// floats or binary integers.
func floatValues(ds *dicom.Dataset, t tag.Tag) []float64 {
	v, ok := rawValue(ds, t)
	if !ok {
		return nil
	}
	switch vals := v.(type) {
	case []float64:
		return vals
	case []int:
		out := make([]float64, len(vals))
		for i, n := range vals {
			out[i] = float64(n)
		}
		return out
	case []string:
		out := make([]float64, 0, len(vals))
		for _, s := range vals {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil
			}
			out = append(out, f)
		}
		return out
	default:
		return nil
	}
}

// floatValue returns the first numeric value of t.
func floatValue(ds *dicom.Dataset, t tag.Tag) (float64, bool) {
	vals := floatValues(ds, t)
	if len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

// intValue returns the first numeric value of t truncated to an int.
func intValue(ds *dicom.Dataset, t tag.Tag) (int, bool) {
	f, ok := floatValue(ds, t)
	return int(f), ok
}
