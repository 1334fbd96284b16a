package edgecases

import (
	"cmp"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mrsinham/niftiforge/internal/util"
)

// loMaxLength is the maximum length of an LO value.
const loMaxLength = 64

// Values are the series-level attributes edge cases may rewrite.
type Values struct {
	PatientID         string
	PatientName       string
	SeriesDescription string
	ProtocolName      string
	AcquisitionDate   string
}

// requiredOmissions are dropped whenever missing tags are enabled; the reader must
// fall back on each of them.
var requiredOmissions = []tag.Tag{
	util.TagAcquisitionNumber,
	util.TagAcquisitionTime,
	util.TagTriggerTime,
	tag.SpacingBetweenSlices,
}

// optionalOmissions are dropped at random, one to three at a time.
var optionalOmissions = []tag.Tag{
	tag.BodyPartExamined,
	tag.StudyDescription,
	tag.SeriesDescription,
	tag.InstitutionName,
	tag.StationName,
	tag.ProtocolName,
}

// Apply rewrites v under the enabled types and returns the tags every image of the
// series must leave out. The same result applies to the whole series so its images
// still group together.
func Apply(types []Type, v Values, rng *rand.Rand) (Values, []tag.Tag) {
	var omit []tag.Tag
	for _, t := range types {
		switch t {
		case SpecialChars:
			v.PatientName = specialCharName(rng)
			v.SeriesDescription = specialCharDescriptions[rng.IntN(len(specialCharDescriptions))]
			v.ProtocolName = strings.ReplaceAll(v.SeriesDescription, " ", "_")
		case LongNames:
			v.PatientName = longName(rng)
			v.SeriesDescription = pad(v.SeriesDescription+" LONG DESCRIPTION", loMaxLength)
			v.ProtocolName = pad(v.ProtocolName+"_EXTENDED_PROTOCOL", loMaxLength)
		case MissingTags:
			omit = append(omit, requiredOmissions...)
			omit = append(omit, pickOmissions(rng, 1+rng.IntN(3))...)
		case PartialDates:
			if len(v.AcquisitionDate) < 8 {
				continue
			}
			if rng.IntN(2) == 0 {
				v.AcquisitionDate = v.AcquisitionDate[:4]
			} else {
				v.AcquisitionDate = v.AcquisitionDate[:6]
			}
		case VariedIDs:
			v.PatientID = variedID(rng)
		}
	}
	slices.SortFunc(omit, func(a, b tag.Tag) int {
		return cmp.Or(cmp.Compare(a.Group, b.Group), cmp.Compare(a.Element, b.Element))
	})
	return v, slices.Compact(omit)
}

var specialCharFirstNames = []string{
	"Jean-Pierre", "François", "Éléonore", "Søren", "Zoë", "Łukasz", "O'Hara",
}

var specialCharLastNames = []string{
	"Müller-Schmidt", "O'Connor", "García-López", "Østergaard", "Çelik", "Škvorecký",
}

var specialCharDescriptions = []string{
	"T1 3D/MPRAGE (Sag)",
	"DWI b=1000 s/mm²",
	"T2* GRE Ax [motion]",
	"FLAIR Kopf \"nativ\"",
	"Séquence pondérée T2 & FS",
}

func specialCharName(rng *rand.Rand) string {
	return specialCharLastNames[rng.IntN(len(specialCharLastNames))] + "^" +
		specialCharFirstNames[rng.IntN(len(specialCharFirstNames))]
}

var longLastNames = []string{
	"ALEXANDROPOULOSWILLIAMSONBERG",
	"VANDENBERGHEMONTGOMERYSMITH",
	"CHRISTODOULOPOULOSSMITHBAUER",
}

var longFirstNames = []string{
	"ALEXANDERMAXIMILIANWILLIAM",
	"ELIZABETHCATHERINEANNAMARIE",
	"BENJAMINFREDERICKNATHANJOHN",
}

func longName(rng *rand.Rand) string {
	name := longLastNames[rng.IntN(len(longLastNames))] + "^" + longFirstNames[rng.IntN(len(longFirstNames))]
	return pad(name, loMaxLength)
}

// pad extends s with 'X' or truncates it to exactly n bytes.
func pad(s string, n int) string {
	if len(s) >= n {
		return s[:n]
	}
	return s + strings.Repeat("X", n-len(s))
}

func pickOmissions(rng *rand.Rand, count int) []tag.Tag {
	shuffled := slices.Clone(optionalOmissions)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	return shuffled[:min(count, len(shuffled))]
}

func variedID(rng *rand.Rand) string {
	switch rng.IntN(4) {
	case 0:
		return fmt.Sprintf("%03d-%03d-%03d", rng.IntN(1000), rng.IntN(1000), rng.IntN(1000))
	case 1:
		return fmt.Sprintf("PAT %05d %02d", rng.IntN(100000), rng.IntN(100))
	case 2:
		return fmt.Sprintf("PT-%04d-%c%c%c/%03d", rng.IntN(10000),
			'A'+byte(rng.IntN(26)), 'A'+byte(rng.IntN(26)), 'A'+byte(rng.IntN(26)), rng.IntN(1000))
	default:
		const chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
		var sb strings.Builder
		for range loMaxLength {
			sb.WriteByte(chars[rng.IntN(len(chars))])
		}
		return sb.String()
	}
}
