package dicom

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

const (
	mediaStorageDirectoryStorage = "1.2.840.10008.1.3.10"
	explicitVRLittleEndian       = "1.2.840.10008.1.2.1"
)

// record levels of the DICOMDIR hierarchy
var recordTypes = []string{"PATIENT", "STUDY", "SERIES", "IMAGE"}

// directoryRecord is one entry of the Directory Record Sequence.
type directoryRecord struct {
	level    int
	elements []*dicom.Element
}

// OrganizeSeries moves files into a PT*/ST*/SE*/IM* hierarchy under outputDir and
// writes the DICOMDIR indexing it. The Path of every file is updated to its new location.
func OrganizeSeries(outputDir string, files []GeneratedFile) error {
	if len(files) == 0 {
		return errors.New("no files to organize")
	}

	// first-seen order keeps the layout deterministic
	var patients, studies, seriesUIDs []string
	dirOf := map[string]string{}
	for _, f := range files {
		if !slices.Contains(patients, f.PatientID) {
			patients = append(patients, f.PatientID)
		}
		if !slices.Contains(studies, f.StudyUID) {
			studies = append(studies, f.StudyUID)
		}
		if !slices.Contains(seriesUIDs, f.SeriesUID) {
			seriesUIDs = append(seriesUIDs, f.SeriesUID)
		}
	}
	ordered := slices.Clone(files)
	slices.SortStableFunc(ordered, func(a, b GeneratedFile) int {
		if d := slices.Index(patients, a.PatientID) - slices.Index(patients, b.PatientID); d != 0 {
			return d
		}
		if d := slices.Index(studies, a.StudyUID) - slices.Index(studies, b.StudyUID); d != 0 {
			return d
		}
		if d := slices.Index(seriesUIDs, a.SeriesUID) - slices.Index(seriesUIDs, b.SeriesUID); d != 0 {
			return d
		}
		return a.InstanceNumber - b.InstanceNumber
	})

	imageIdx := map[string]int{}
	moved := map[string]string{}
	for _, f := range ordered {
		seriesDir, ok := dirOf[f.SeriesUID]
		if !ok {
			seriesDir = filepath.Join(
				fmt.Sprintf("PT%06d", slices.Index(patients, f.PatientID)),
				fmt.Sprintf("ST%06d", slices.Index(studies, f.StudyUID)),
				fmt.Sprintf("SE%06d", slices.Index(seriesUIDs, f.SeriesUID)),
			)
			dirOf[f.SeriesUID] = seriesDir
			if err := os.MkdirAll(filepath.Join(outputDir, seriesDir), 0o755); err != nil {
				return fmt.Errorf("create series directory: %w", err)
			}
		}
		imageIdx[f.SeriesUID]++
		dest := filepath.Join(outputDir, seriesDir, fmt.Sprintf("IM%06d", imageIdx[f.SeriesUID]))
		if err := os.Rename(f.Path, dest); err != nil {
			return fmt.Errorf("move file %s to %s: %w", f.Path, dest, err)
		}
		moved[f.SOPInstanceUID] = dest
	}
	for i := range files {
		files[i].Path = moved[files[i].SOPInstanceUID]
	}

	records, err := buildRecords(outputDir, ordered, moved)
	if err != nil {
		return err
	}
	return writeDICOMDIR(outputDir, records)
}

func buildRecords(outputDir string, ordered []GeneratedFile, moved map[string]string) ([]directoryRecord, error) {
	var records []directoryRecord
	var last GeneratedFile
	for i, f := range ordered {
		path := moved[f.SOPInstanceUID]
		ds, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		str := func(t tag.Tag) []string { return []string{stringValue(&ds, t)} }

		newPatient := i == 0 || f.PatientID != last.PatientID
		newStudy := newPatient || f.StudyUID != last.StudyUID
		if newPatient {
			records = append(records, newRecord(0,
				mustNewElement(tag.PatientID, str(tag.PatientID)),
				mustNewElement(tag.PatientName, str(tag.PatientName)),
			))
		}
		if newStudy {
			records = append(records, newRecord(1,
				mustNewElement(tag.StudyDate, str(tag.StudyDate)),
				mustNewElement(tag.StudyTime, str(tag.StudyTime)),
				mustNewElement(tag.StudyInstanceUID, str(tag.StudyInstanceUID)),
				mustNewElement(tag.StudyID, str(tag.StudyID)),
			))
		}
		if newStudy || f.SeriesUID != last.SeriesUID {
			records = append(records, newRecord(2,
				mustNewElement(tag.Modality, str(tag.Modality)),
				mustNewElement(tag.SeriesInstanceUID, str(tag.SeriesInstanceUID)),
				mustNewElement(tag.SeriesNumber, str(tag.SeriesNumber)),
			))
		}

		rel, err := filepath.Rel(outputDir, path)
		if err != nil {
			return nil, err
		}
		records = append(records, newRecord(3,
			mustNewElement(tag.ReferencedFileID, strings.Split(filepath.ToSlash(rel), "/")),
			mustNewElement(tag.ReferencedSOPClassUIDInFile, str(tag.SOPClassUID)),
			mustNewElement(tag.ReferencedSOPInstanceUIDInFile, str(tag.SOPInstanceUID)),
			mustNewElement(tag.ReferencedTransferSyntaxUIDInFile, []string{explicitVRLittleEndian}),
			mustNewElement(tag.InstanceNumber, str(tag.InstanceNumber)),
		))
		last = f
	}
	return records, nil
}

// newRecord starts a record with zero offsets, patched once the file is written.
func newRecord(level int, attrs ...*dicom.Element) directoryRecord {
	elements := []*dicom.Element{
		mustNewElement(tag.OffsetOfTheNextDirectoryRecord, []int{0}),
		mustNewElement(tag.RecordInUseFlag, []int{0xFFFF}),
		mustNewElement(tag.OffsetOfReferencedLowerLevelDirectoryEntity, []int{0}),
		mustNewElement(tag.DirectoryRecordType, []string{recordTypes[level]}),
	}
	return directoryRecord{level: level, elements: append(elements, attrs...)}
}

func writeDICOMDIR(outputDir string, records []directoryRecord) error {
	items := make([][]*dicom.Element, len(records))
	for i, r := range records {
		items[i] = r.elements
	}
	seq, err := dicom.NewElement(tag.DirectoryRecordSequence, items)
	if err != nil {
		return fmt.Errorf("create directory record sequence: %w", err)
	}

	filesetID := strings.ToUpper(filepath.Base(outputDir))
	if len(filesetID) > 16 {
		filesetID = filesetID[:16]
	}
	ds := dicom.Dataset{Elements: []*dicom.Element{
		mustNewElement(tag.TransferSyntaxUID, []string{explicitVRLittleEndian}),
		mustNewElement(tag.MediaStorageSOPClassUID, []string{mediaStorageDirectoryStorage}),
		mustNewElement(tag.MediaStorageSOPInstanceUID, []string{"1.2.826.0.1.3680043.8.498.1"}),
		mustNewElement(tag.ImplementationClassUID, []string{"1.2.826.0.1.3680043.8.498"}),
		mustNewElement(tag.FileSetID, []string{filesetID}),
		mustNewElement(tag.OffsetOfTheFirstDirectoryRecordOfTheRootDirectoryEntity, []int{0}),
		mustNewElement(tag.OffsetOfTheLastDirectoryRecordOfTheRootDirectoryEntity, []int{0}),
		mustNewElement(tag.FileSetConsistencyFlag, []int{0}),
		seq,
	}}

	path := filepath.Join(outputDir, "DICOMDIR")
	if err := writeDatasetToFile(path, ds); err != nil {
		return fmt.Errorf("write DICOMDIR: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read DICOMDIR: %w", err)
	}
	if err := patchOffsets(data, records); err != nil {
		return fmt.Errorf("DICOMDIR offsets: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// patchOffsets fills the record links of a DICOMDIR written with zero offsets. Offsets
// are byte positions from the start of the file.
func patchOffsets(data []byte, records []directoryRecord) error {
	seqStart := indexTag(data, 0, tag.DirectoryRecordSequence)
	if seqStart < 0 {
		return errors.New("directory record sequence not found")
	}
	itemTag := []byte{0xFE, 0xFF, 0x00, 0xE0}
	positions := make([]int, 0, len(records))
	for i := seqStart; len(positions) < len(records); {
		next := bytes.Index(data[i:], itemTag)
		if next < 0 {
			return fmt.Errorf("found %d of %d records", len(positions), len(records))
		}
		positions = append(positions, i+next)
		i += next + len(itemTag)
	}

	n := len(records)
	next, lower := make([]int, n), make([]int, n)
	firstRoot, lastRoot := -1, -1
	for i, r := range records {
		if r.level == 0 {
			if firstRoot < 0 {
				firstRoot = positions[i]
			}
			lastRoot = positions[i]
		}
		for j := i + 1; j < n && records[j].level >= r.level; j++ {
			if records[j].level == r.level {
				next[i] = positions[j]
				break
			}
		}
		if i+1 < n && records[i+1].level == r.level+1 {
			lower[i] = positions[i+1]
		}
	}

	put := func(from int, t tag.Tag, value int) error {
		at := indexTag(data, from, t)
		if at < 0 {
			return fmt.Errorf("tag %v not found after offset %d", t, from)
		}
		// explicit VR UL: tag, VR, 2-byte length, then the value
		binary.LittleEndian.PutUint32(data[at+8:at+12], uint32(value))
		return nil
	}
	if err := put(0, tag.OffsetOfTheFirstDirectoryRecordOfTheRootDirectoryEntity, firstRoot); err != nil {
		return err
	}
	if err := put(0, tag.OffsetOfTheLastDirectoryRecordOfTheRootDirectoryEntity, lastRoot); err != nil {
		return err
	}
	for i, pos := range positions {
		if err := put(pos, tag.OffsetOfTheNextDirectoryRecord, next[i]); err != nil {
			return err
		}
		if err := put(pos, tag.OffsetOfReferencedLowerLevelDirectoryEntity, lower[i]); err != nil {
			return err
		}
	}
	return nil
}

// indexTag returns the position of the first little endian encoding of t at or after from.
func indexTag(data []byte, from int, t tag.Tag) int {
	var b [4]byte
	binary.LittleEndian.PutUint16(b[0:2], t.Group)
	binary.LittleEndian.PutUint16(b[2:4], t.Element)
	i := bytes.Index(data[from:], b[:])
	if i < 0 {
		return -1
	}
	return from + i
}

// SeriesRef is one series listed in a DICOMDIR.
type SeriesRef struct {
	SeriesUID    string
	SeriesNumber int
	// Files are absolute paths, in record order.
	Files []string
}

// ReadDICOMDIR lists the series indexed by the DICOMDIR at path. Records are read in
// sequence order; image records before any series record are an error.
func ReadDICOMDIR(path string) ([]SeriesRef, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	elem, err := ds.FindElementByTag(tag.DirectoryRecordSequence)
	if err != nil {
		return nil, fmt.Errorf("%s: no directory records: %w", path, err)
	}
	items, ok := elem.Value.GetValue().([]*dicom.SequenceItemValue)
	if !ok {
		return nil, fmt.Errorf("%s: directory record sequence is not a sequence", path)
	}

	root := filepath.Dir(path)
	var refs []SeriesRef
	for i, item := range items {
		rec := dicom.Dataset{Elements: item.GetValue().([]*dicom.Element)}
		switch stringValue(&rec, tag.DirectoryRecordType) {
		case "SERIES":
			number, _ := intValue(&rec, tag.SeriesNumber)
			refs = append(refs, SeriesRef{SeriesUID: stringValue(&rec, tag.SeriesInstanceUID), SeriesNumber: number})
		case "IMAGE":
			if len(refs) == 0 {
				return nil, fmt.Errorf("%s: image record %d outside a series", path, i)
			}
			parts := stringValues(&rec, tag.ReferencedFileID)
			if len(parts) == 0 {
				return nil, fmt.Errorf("%s: image record %d has no referenced file", path, i)
			}
			ref := &refs[len(refs)-1]
			ref.Files = append(ref.Files, filepath.Join(append([]string{root}, parts...)...))
		}
	}
	return refs, nil
}
