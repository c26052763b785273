package pipeline

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/scopeworks/intake/internal/model"
)

// projectKeywords maps canonical project types to the keyword sets used by
// the deterministic fallback extractors. Two keyword sets per type: English
// and Spanish, since contractor notes arrive in both.
var projectKeywords = map[string][]string{
	"fencing":     {"fence", "fencing", "privacy fence", "picket", "cerca", "cerco", "valla"},
	"roofing":     {"roof", "roofing", "shingle", "techo", "tejado"},
	"deck":        {"deck", "porch", "terraza"},
	"windows":     {"window", "windows", "ventana", "ventanas"},
	"painting":    {"paint", "painting", "repaint", "pintura", "pintar"},
	"flooring":    {"floor", "flooring", "hardwood", "laminate", "piso", "suelo"},
	"kitchen":     {"kitchen", "cabinet", "countertop", "cocina"},
	"bathroom":    {"bathroom", "shower", "bathtub", "vanity", "bano", "baño"},
	"landscaping": {"landscaping", "landscape", "yard", "sod", "jardin", "jardín"},
	"concrete":    {"concrete", "driveway", "slab", "sidewalk", "concreto", "cemento"},
	"drywall":     {"drywall", "sheetrock", "tablaroca"},
}

// materialKeywords are materials recognized by the keyword extractor.
var materialKeywords = []string{
	"wood", "cedar", "pine", "pressure treated", "vinyl", "chain link",
	"aluminum", "steel", "metal", "composite", "asphalt", "shingle",
	"tile", "hardwood", "laminate", "concrete", "brick", "stone", "stucco",
	"madera", "vinilo", "aluminio", "acero", "azulejo", "ladrillo", "piedra",
}

// demolitionKeywords flag tear-down work in the notes. "demo" needs a word
// boundary so it matches at the end of the notes too.
var demolitionKeywords = []string{
	"demolition", "demolish", "tear down", "tear-down", "tear out",
	"remove existing", "rip out", "haul away",
	"demoler", "demolicion", "demolición", "derribar", "quitar",
}

var demoWordRe = regexp.MustCompile(`\bdemo\b`)

var (
	// "70 linear feet", "6 feet tall", "3.5 ft wide", "10 pies de largo",
	// "4 metros de alto". The trailing qualifier decides which dimension
	// the number belongs to.
	dimensionRe = regexp.MustCompile(
		`(?i)(\d+(?:\.\d+)?)\s*(?:linear\s+)?(?:feet|foot|ft|pies|metros|meters|m)\b\.?\s*(?:de\s+)?([a-záéí]+)?`)

	// "1200 sq ft", "1200 square feet", "80 m2"
	areaRe = regexp.MustCompile(
		`(?i)(\d+(?:\.\d+)?)\s*(?:sq\.?\s*ft|sq\s+feet|square\s+feet|sf\b|m2|metros\s+cuadrados)`)

	// "10x12", "10 x 12"
	crossRe = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*[x×]\s*(\d+(?:\.\d+)?)\b`)
)

var heightWords = map[string]bool{"tall": true, "high": true, "height": true, "alto": true, "alta": true, "altura": true}
var widthWords = map[string]bool{"wide": true, "width": true, "ancho": true, "ancha": true}
var lengthWords = map[string]bool{"long": true, "length": true, "linear": true, "largo": true, "larga": true}
var depthWords = map[string]bool{"deep": true, "depth": true, "profundo": true}

// keywordProjectType picks the first project type whose keyword set matches
// the text. Empty string when nothing matches.
func keywordProjectType(text string) string {
	lower := strings.ToLower(text)
	// Fixed iteration order so ties resolve deterministically.
	for _, pt := range []string{
		"fencing", "roofing", "deck", "windows", "painting", "flooring",
		"kitchen", "bathroom", "landscaping", "concrete", "drywall",
	} {
		for _, kw := range projectKeywords[pt] {
			if strings.Contains(lower, kw) {
				return pt
			}
		}
	}
	return ""
}

// keywordFindings is the deterministic keyword/regex extractor used when
// both text analyzers fail. It recovers project type, dimensions, materials,
// and the demolition flag from raw notes text.
func keywordFindings(notes string) model.Findings {
	lower := strings.ToLower(notes)

	f := model.Findings{
		ProjectType: keywordProjectType(notes),
		Dimensions:  map[string]string{},
	}

	for _, m := range dimensionRe.FindAllStringSubmatch(notes, -1) {
		value := m[1]
		qualifier := strings.ToLower(m[2])
		switch {
		case heightWords[qualifier]:
			setIfAbsent(f.Dimensions, "height", value)
		case widthWords[qualifier]:
			setIfAbsent(f.Dimensions, "width", value)
		case depthWords[qualifier]:
			setIfAbsent(f.Dimensions, "depth", value)
		case lengthWords[qualifier] || qualifier == "":
			setIfAbsent(f.Dimensions, "length", value)
		default:
			setIfAbsent(f.Dimensions, "length", value)
		}
	}

	for _, m := range areaRe.FindAllStringSubmatch(notes, -1) {
		setIfAbsent(f.Dimensions, "area", m[1])
	}

	if m := crossRe.FindStringSubmatch(notes); m != nil {
		setIfAbsent(f.Dimensions, "length", m[1])
		setIfAbsent(f.Dimensions, "width", m[2])
	}

	for _, kw := range materialKeywords {
		if strings.Contains(lower, kw) {
			f.Materials = append(f.Materials, kw)
		}
	}

	for _, kw := range demolitionKeywords {
		if strings.Contains(lower, kw) {
			f.DemolitionNeeded = true
			break
		}
	}
	if !f.DemolitionNeeded && demoWordRe.MatchString(lower) {
		f.DemolitionNeeded = true
	}

	if len(f.Dimensions) == 0 {
		f.Dimensions = nil
	}
	return f
}

// regexFindings is the best-effort partial extractor applied when an image
// analyzer response fails JSON parsing. It mines the free text for a project
// type, dimensions, and materials.
func regexFindings(text string) model.Findings {
	f := keywordFindings(text)

	// Also honor quoted field mentions like `"projectType": "roofing"` that
	// survive in truncated JSON.
	if f.ProjectType == "" {
		re := regexp.MustCompile(`(?i)"(?:projectType|project_type|type)"\s*:\s*"([a-z_ ]+)"`)
		if m := re.FindStringSubmatch(text); m != nil {
			f.ProjectType = normalizeProjectType(m[1])
		}
	}
	return f
}

// filenameGuess is the last-resort heuristic for an image whose analyzer
// call failed terminally: infer a project type from filename keywords.
func filenameGuess(img model.ProjectImage) model.Findings {
	name := img.Path
	if name == "" {
		name = img.URL
	}
	name = strings.ToLower(filepath.Base(name))
	name = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(name)
	return model.Findings{ProjectType: keywordProjectType(name)}
}

func setIfAbsent(dims map[string]string, key, value string) {
	if _, ok := dims[key]; !ok {
		if _, err := strconv.ParseFloat(value, 64); err == nil {
			dims[key] = value
		}
	}
}
