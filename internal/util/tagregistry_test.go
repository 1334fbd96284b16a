package util

import (
	"math"
	"strings"
	"testing"

	"github.com/suyashkumar/dicom/pkg/tag"
)

func TestGetTagByName_Valid(t *testing.T) {
	tests := []struct {
		name          string
		expectedTag   tag.Tag
		expectedScope TagScope
	}{
		{"PatientPosition", TagPatientPosition, ScopePatient},
		{"InstitutionName", tag.InstitutionName, ScopeStudy},
		{"StationName", tag.StationName, ScopeStudy},
		{"Manufacturer", tag.Manufacturer, ScopeSeries},
		{"MagneticFieldStrength", tag.MagneticFieldStrength, ScopeSeries},
		{"SequenceName", tag.SequenceName, ScopeSeries},
		{"MRAcquisitionType", TagMRAcquisitionType, ScopeSeries},
		{"EchoTime", tag.EchoTime, ScopeSeries},
		{"RepetitionTime", tag.RepetitionTime, ScopeSeries},
		{"InversionTime", TagInversionTime, ScopeSeries},
		{"FlipAngle", tag.FlipAngle, ScopeSeries},
		{"InPlanePhaseEncodingDirection", TagInPlanePhaseEncodingDirection, ScopeSeries},
		{"ParallelReductionFactorInPlane", TagParallelReductionFactorInPlane, ScopeSeries},
		{"AcquisitionNumber", TagAcquisitionNumber, ScopeImage},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			info, err := GetTagByName(tc.name)
			if err != nil {
				t.Fatalf("GetTagByName(%q) returned error: %v", tc.name, err)
			}
			if info.Tag != tc.expectedTag {
				t.Errorf("GetTagByName(%q).Tag = %v, want %v", tc.name, info.Tag, tc.expectedTag)
			}
			if info.Scope != tc.expectedScope {
				t.Errorf("GetTagByName(%q).Scope = %v, want %v", tc.name, info.Scope, tc.expectedScope)
			}
			if info.Name != tc.name {
				t.Errorf("GetTagByName(%q).Name = %q, want %q", tc.name, info.Name, tc.name)
			}
		})
	}
}

func TestGetTagByName_Invalid(t *testing.T) {
	for _, name := range []string{"InvalidTagName", "NotATag", "", "   ", "PixelData"} {
		t.Run(name, func(t *testing.T) {
			if _, err := GetTagByName(name); err == nil {
				t.Errorf("GetTagByName(%q) should return error for unknown keyword", name)
			}
		})
	}
}

func TestGetTagByName_Suggestion(t *testing.T) {
	tests := []struct {
		typo       string
		suggestion string
	}{
		{"EchoTme", "EchoTime"},
		{"RepetitonTime", "RepetitionTime"},
		{"InversonTime", "InversionTime"},
		{"FlipAngel", "FlipAngle"},
		{"Manufacurer", "Manufacturer"},
		{"SeriesDescritpion", "SeriesDescription"},
	}

	for _, tc := range tests {
		t.Run(tc.typo, func(t *testing.T) {
			_, err := GetTagByName(tc.typo)
			if err == nil {
				t.Fatalf("GetTagByName(%q) should return error", tc.typo)
			}
			if !strings.Contains(err.Error(), tc.suggestion) {
				t.Errorf("Error for %q should suggest %q, got: %v", tc.typo, tc.suggestion, err)
			}
		})
	}
}

func TestGetTagByName_CaseInsensitive(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"echotime", "EchoTime"},
		{"ECHOTIME", "EchoTime"},
		{"  FlipAngle  ", "FlipAngle"},
		{"mracquisitiontype", "MRAcquisitionType"},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			info, err := GetTagByName(tc.input)
			if err != nil {
				t.Fatalf("GetTagByName(%q) returned error: %v", tc.input, err)
			}
			if info.Name != tc.expected {
				t.Errorf("GetTagByName(%q).Name = %q, want %q", tc.input, info.Name, tc.expected)
			}
		})
	}
}

func TestResolveTags(t *testing.T) {
	infos, err := ResolveTags([]string{"EchoTime", "echotime", "FlipAngle"})
	if err != nil {
		t.Fatalf("ResolveTags returned error: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("ResolveTags kept %d entries, want 2", len(infos))
	}
	if infos[0].Name != "EchoTime" || infos[1].Name != "FlipAngle" {
		t.Errorf("ResolveTags order = %s, %s", infos[0].Name, infos[1].Name)
	}

	_, err = ResolveTags([]string{"EchoTme", "FlipAngle", "Bogus"})
	if err == nil {
		t.Fatal("ResolveTags should fail on unknown keywords")
	}
	for _, want := range []string{`"EchoTme"`, `"Bogus"`} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %s", err, want)
		}
	}
}

func TestDefaultSidecarTags_Registered(t *testing.T) {
	if _, err := ResolveTags(DefaultSidecarTags); err != nil {
		t.Fatalf("default sidecar tags are not all registered: %v", err)
	}
}

func TestTagInfo_Convert(t *testing.T) {
	te, _ := GetTagByName("EchoTime")
	if got := te.Convert(30); math.Abs(got-0.03) > 1e-12 {
		t.Errorf("EchoTime.Convert(30) = %v, want 0.03", got)
	}
	fa, _ := GetTagByName("FlipAngle")
	if got := fa.Convert(90); got != 90 {
		t.Errorf("FlipAngle.Convert(90) = %v, want 90", got)
	}
}

func TestTagScope_String(t *testing.T) {
	tests := []struct {
		scope    TagScope
		expected string
	}{
		{ScopePatient, "Patient"},
		{ScopeStudy, "Study"},
		{ScopeSeries, "Series"},
		{ScopeImage, "Image"},
		{TagScope(42), "Unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			if tc.scope.String() != tc.expected {
				t.Errorf("TagScope.String() = %q, want %q", tc.scope.String(), tc.expected)
			}
		})
	}
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"kitten", "sitting", 3},
		{"saturday", "sunday", 3},
		{"flipangle", "flipangel", 2},
	}

	for _, tc := range tests {
		t.Run(tc.a+"_"+tc.b, func(t *testing.T) {
			if got := levenshteinDistance(tc.a, tc.b); got != tc.expected {
				t.Errorf("levenshteinDistance(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.expected)
			}
		})
	}
}
