// Package util holds the DICOM keyword registry shared by the series reader, the
// generator and configuration validation.
package util

import (
	"errors"
	"fmt"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"
)

// MR attributes addressed by group and element.
var (
	TagAcquisitionNumber              = tag.Tag{Group: 0x0020, Element: 0x0012}
	TagAcquisitionDate                = tag.Tag{Group: 0x0008, Element: 0x0022}
	TagAcquisitionTime                = tag.Tag{Group: 0x0008, Element: 0x0032}
	TagScanningSequence               = tag.Tag{Group: 0x0018, Element: 0x0020}
	TagSequenceVariant                = tag.Tag{Group: 0x0018, Element: 0x0021}
	TagScanOptions                    = tag.Tag{Group: 0x0018, Element: 0x0022}
	TagMRAcquisitionType              = tag.Tag{Group: 0x0018, Element: 0x0023}
	TagInversionTime                  = tag.Tag{Group: 0x0018, Element: 0x0082}
	TagEchoTrainLength                = tag.Tag{Group: 0x0018, Element: 0x0091}
	TagPixelBandwidth                 = tag.Tag{Group: 0x0018, Element: 0x0095}
	TagSoftwareVersions               = tag.Tag{Group: 0x0018, Element: 0x1020}
	TagTriggerTime                    = tag.Tag{Group: 0x0018, Element: 0x1060}
	TagAcquisitionMatrix              = tag.Tag{Group: 0x0018, Element: 0x1310}
	TagInPlanePhaseEncodingDirection  = tag.Tag{Group: 0x0018, Element: 0x1312}
	TagPatientPosition                = tag.Tag{Group: 0x0018, Element: 0x5100}
	TagParallelReductionFactorInPlane = tag.Tag{Group: 0x0018, Element: 0x9069}
	TagDiffusionBValue                = tag.Tag{Group: 0x0018, Element: 0x9087}
	TagDiffusionGradientOrientation   = tag.Tag{Group: 0x0018, Element: 0x9089}
	TagParallelReductionOutOfPlane    = tag.Tag{Group: 0x0018, Element: 0x9155}
	TagVelocityEncodingMaximumValue   = tag.Tag{Group: 0x0018, Element: 0x9217}
)

// TagScope represents the DICOM hierarchy level at which a tag should be consistent.
type TagScope int

const (
	// ScopePatient indicates tags that should be consistent across all images for a patient.
	ScopePatient TagScope = iota
	// ScopeStudy indicates tags that should be consistent within a study.
	ScopeStudy
	// ScopeSeries indicates tags that should be consistent within a series.
	ScopeSeries
	// ScopeImage indicates tags that can vary per image.
	ScopeImage
)

// String returns the string representation of a TagScope.
func (s TagScope) String() string {
	switch s {
	case ScopePatient:
		return "Patient"
	case ScopeStudy:
		return "Study"
	case ScopeSeries:
		return "Series"
	case ScopeImage:
		return "Image"
	default:
		return "Unknown"
	}
}

// TagInfo describes a DICOM attribute that can be copied into the JSON sidecar.
type TagInfo struct {
	Name  string
	Tag   tag.Tag
	Scope TagScope
	// Scale converts the stored value to sidecar units, 0 meaning as is.
	Scale float64
}

// Convert applies the sidecar scale to v.
func (i TagInfo) Convert(v float64) float64 {
	if i.Scale == 0 {
		return v
	}
	return v * i.Scale
}

const msToSec = 0.001

// tagRegistry maps lowercase keywords to their TagInfo.
var tagRegistry = map[string]TagInfo{
	// Patient level tags
	"patientposition": {Name: "PatientPosition", Tag: TagPatientPosition, Scope: ScopePatient},

	// Study level tags
	"institutionname": {Name: "InstitutionName", Tag: tag.InstitutionName, Scope: ScopeStudy},
	"stationname":     {Name: "StationName", Tag: tag.StationName, Scope: ScopeStudy},

	// Series level tags
	"manufacturer":                   {Name: "Manufacturer", Tag: tag.Manufacturer, Scope: ScopeSeries},
	"manufacturermodelname":          {Name: "ManufacturerModelName", Tag: tag.ManufacturerModelName, Scope: ScopeSeries},
	"softwareversions":               {Name: "SoftwareVersions", Tag: TagSoftwareVersions, Scope: ScopeSeries},
	"magneticfieldstrength":          {Name: "MagneticFieldStrength", Tag: tag.MagneticFieldStrength, Scope: ScopeSeries},
	"imagingfrequency":               {Name: "ImagingFrequency", Tag: tag.ImagingFrequency, Scope: ScopeSeries},
	"seriesdescription":              {Name: "SeriesDescription", Tag: tag.SeriesDescription, Scope: ScopeSeries},
	"seriesnumber":                   {Name: "SeriesNumber", Tag: tag.SeriesNumber, Scope: ScopeSeries},
	"protocolname":                   {Name: "ProtocolName", Tag: tag.ProtocolName, Scope: ScopeSeries},
	"bodypartexamined":               {Name: "BodyPartExamined", Tag: tag.BodyPartExamined, Scope: ScopeSeries},
	"sequencename":                   {Name: "SequenceName", Tag: tag.SequenceName, Scope: ScopeSeries},
	"scanningsequence":               {Name: "ScanningSequence", Tag: TagScanningSequence, Scope: ScopeSeries},
	"sequencevariant":                {Name: "SequenceVariant", Tag: TagSequenceVariant, Scope: ScopeSeries},
	"scanoptions":                    {Name: "ScanOptions", Tag: TagScanOptions, Scope: ScopeSeries},
	"mracquisitiontype":              {Name: "MRAcquisitionType", Tag: TagMRAcquisitionType, Scope: ScopeSeries},
	"echotime":                       {Name: "EchoTime", Tag: tag.EchoTime, Scope: ScopeSeries, Scale: msToSec},
	"repetitiontime":                 {Name: "RepetitionTime", Tag: tag.RepetitionTime, Scope: ScopeSeries, Scale: msToSec},
	"inversiontime":                  {Name: "InversionTime", Tag: TagInversionTime, Scope: ScopeSeries, Scale: msToSec},
	"flipangle":                      {Name: "FlipAngle", Tag: tag.FlipAngle, Scope: ScopeSeries},
	"echotrainlength":                {Name: "EchoTrainLength", Tag: TagEchoTrainLength, Scope: ScopeSeries},
	"pixelbandwidth":                 {Name: "PixelBandwidth", Tag: TagPixelBandwidth, Scope: ScopeSeries},
	"slicethickness":                 {Name: "SliceThickness", Tag: tag.SliceThickness, Scope: ScopeSeries},
	"spacingbetweenslices":           {Name: "SpacingBetweenSlices", Tag: tag.SpacingBetweenSlices, Scope: ScopeSeries},
	"inplanephaseencodingdirection":  {Name: "InPlanePhaseEncodingDirection", Tag: TagInPlanePhaseEncodingDirection, Scope: ScopeSeries},
	"parallelreductionfactorinplane": {Name: "ParallelReductionFactorInPlane", Tag: TagParallelReductionFactorInPlane, Scope: ScopeSeries},

	// Image level tags
	"acquisitionnumber": {Name: "AcquisitionNumber", Tag: TagAcquisitionNumber, Scope: ScopeImage},
	"acquisitiontime":   {Name: "AcquisitionTime", Tag: TagAcquisitionTime, Scope: ScopeImage},
}

// DefaultSidecarTags lists the keywords copied into the JSON sidecar when none are configured.
var DefaultSidecarTags = []string{
	"Manufacturer",
	"ManufacturerModelName",
	"MagneticFieldStrength",
	"SeriesDescription",
	"ProtocolName",
	"SequenceName",
	"MRAcquisitionType",
	"EchoTime",
	"RepetitionTime",
	"InversionTime",
	"FlipAngle",
	"SliceThickness",
}

// GetTagByName returns TagInfo for a given keyword.
// The lookup is case-insensitive. If the keyword is not found, an error is returned
// with a suggestion for the closest registered keyword (using Levenshtein distance).
func GetTagByName(name string) (TagInfo, error) {
	normalizedName := strings.ToLower(strings.TrimSpace(name))

	if info, ok := tagRegistry[normalizedName]; ok {
		return info, nil
	}

	if suggestion := findClosestTagName(normalizedName); suggestion != "" {
		return TagInfo{}, fmt.Errorf("unknown tag %q, did you mean %q?", name, suggestion)
	}
	return TagInfo{}, fmt.Errorf("unknown tag %q", name)
}

// ResolveTags looks up every keyword, reporting all unknown ones at once.
// Duplicates are dropped, keeping the first occurrence.
func ResolveTags(names []string) ([]TagInfo, error) {
	infos := make([]TagInfo, 0, len(names))
	seen := make(map[tag.Tag]bool, len(names))
	var errs []error
	for _, name := range names {
		info, err := GetTagByName(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[info.Tag] {
			continue
		}
		seen[info.Tag] = true
		infos = append(infos, info)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return infos, nil
}

// findClosestTagName finds the closest matching keyword using Levenshtein distance.
// Returns empty string if no close match is found (distance > 5).
func findClosestTagName(input string) string {
	const maxDistance = 5
	bestDistance := maxDistance + 1
	var bestMatch string

	for key, info := range tagRegistry {
		distance := levenshteinDistance(input, key)
		// ties go to the alphabetically first keyword so suggestions are stable
		if distance < bestDistance || (distance == bestDistance && info.Name < bestMatch) {
			bestDistance = distance
			bestMatch = info.Name
		}
	}

	if bestDistance <= maxDistance {
		return bestMatch
	}
	return ""
}

// levenshteinDistance returns the number of single-character edits between a and b,
// keeping two rows of the edit matrix.
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
