package pipeline

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/scopeworks/intake/internal/model"
)

// typeSynonyms normalizes analyzer-declared project types onto the
// canonical vocabulary the pricing engine understands.
var typeSynonyms = map[string]string{
	"fence":              "fencing",
	"fencing":            "fencing",
	"privacy fence":      "fencing",
	"roof":               "roofing",
	"roofing":            "roofing",
	"roof replacement":   "roofing",
	"deck":               "deck",
	"decking":            "deck",
	"porch":              "deck",
	"window":             "windows",
	"windows":            "windows",
	"window replacement": "windows",
	"paint":              "painting",
	"painting":           "painting",
	"interior painting":  "painting",
	"exterior painting":  "painting",
	"floor":              "flooring",
	"flooring":           "flooring",
	"kitchen":            "kitchen",
	"kitchen remodel":    "kitchen",
	"bathroom":           "bathroom",
	"bathroom remodel":   "bathroom",
	"bath":               "bathroom",
	"landscape":          "landscaping",
	"landscaping":        "landscaping",
	"concrete":           "concrete",
	"driveway":           "concrete",
	"drywall":            "drywall",
	"sheetrock":          "drywall",
}

// minimumDimensions are the documented per-type defaults filled in when too
// few numeric dimensions were extracted for a recognized project type.
var minimumDimensions = map[string]map[string]float64{
	"fencing":     {"length": 100, "height": 6},
	"roofing":     {"area": 1500},
	"deck":        {"length": 12, "width": 12},
	"windows":     {"count": 1},
	"painting":    {"area": 400},
	"flooring":    {"area": 200},
	"concrete":    {"area": 100},
	"drywall":     {"area": 300},
	"landscaping": {"area": 500},
}

var leadingNumberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// normalizeProjectType maps a free-form type declaration onto the canonical
// vocabulary. Unrecognized non-empty types pass through lowercased so
// downstream consumers still see what the analyzer said.
func normalizeProjectType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	if t == "" {
		return ""
	}
	if canonical, ok := typeSynonyms[t]; ok {
		return canonical
	}
	// Substring pass for compound declarations like "wood privacy fence".
	for synonym, canonical := range typeSynonyms {
		if strings.Contains(t, synonym) {
			return canonical
		}
	}
	return t
}

// leadingNumber extracts the leading numeric token from a raw dimension
// value like "70 linear ft" or "approx 6 feet".
func leadingNumber(raw string) (float64, bool) {
	m := leadingNumberRe.FindString(raw)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Structure projects the aggregated findings into the canonical result
// shape: numeric dimensions, normalized type, detected elements, and
// minimum viable dimensions for recognized types.
func Structure(agg model.AggregatedFindings) (*model.StructuredResult, error) {
	merged := agg.Merged
	if merged.ProjectType == "" && len(merged.Dimensions) == 0 &&
		len(merged.Materials) == 0 && len(agg.FromImages) == 0 {
		return nil, eris.New("structure: empty aggregate")
	}

	projectType := normalizeProjectType(merged.ProjectType)
	if projectType == "" {
		projectType = "unknown"
	}

	dims := make(map[string]float64, len(merged.Dimensions))
	for key, raw := range merged.Dimensions {
		if v, ok := leadingNumber(raw); ok {
			dims[strings.ToLower(key)] = v
		}
	}

	if defaults, ok := minimumDimensions[projectType]; ok {
		for key, v := range defaults {
			if _, present := dims[key]; !present {
				dims[key] = v
			}
		}
	}

	options := map[string]any{}
	if merged.DemolitionNeeded {
		options["demolition_needed"] = true
	}
	if len(options) == 0 {
		options = nil
	}

	elements := appendUnique(nil, merged.Materials)
	elements = appendUnique(elements, merged.Conditions)
	elements = appendUnique(elements, merged.SpecialConsiderations)

	return &model.StructuredResult{
		ProjectType:      projectType,
		ProjectSubtype:   merged.ProjectSubtype,
		Dimensions:       dims,
		Options:          options,
		DetectedElements: elements,
	}, nil
}

// MinimalResult is the orchestrator's substitute when structuring fails
// outside fallback mode.
func MinimalResult() *model.StructuredResult {
	return &model.StructuredResult{
		ProjectType:           "unknown",
		Dimensions:            map[string]float64{},
		GeneratedWithFallback: true,
	}
}
