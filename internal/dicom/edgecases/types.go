// Package edgecases perturbs synthetic series the way real archives deviate from
// well-formed exports: non-ASCII text, values at their VR length limit, missing
// optional attributes, partial dates and irregular identifiers.
package edgecases

import (
	"fmt"
	"slices"
	"strings"
)

// Type is a category of edge case.
type Type string

const (
	SpecialChars Type = "special-chars"
	LongNames    Type = "long-names"
	MissingTags  Type = "missing-tags"
	PartialDates Type = "partial-dates"
	VariedIDs    Type = "varied-ids"
)

// AllTypes returns every edge case type.
func AllTypes() []Type {
	return []Type{SpecialChars, LongNames, MissingTags, PartialDates, VariedIDs}
}

// ParseTypes parses a comma-separated list of edge case types. "all" enables every type.
func ParseTypes(input string) ([]Type, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}
	if input == "all" {
		return AllTypes(), nil
	}
	var result []Type
	for _, p := range strings.Split(input, ",") {
		t := Type(strings.TrimSpace(p))
		if !slices.Contains(AllTypes(), t) {
			return nil, fmt.Errorf("unknown edge case type %q, valid types: %v", p, AllTypes())
		}
		if !slices.Contains(result, t) {
			result = append(result, t)
		}
	}
	return result, nil
}
