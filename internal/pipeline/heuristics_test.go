package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scopeworks/intake/internal/model"
)

func TestKeywordProjectType(t *testing.T) {
	tests := []struct {
		notes string
		want  string
	}{
		{"install a wood privacy fence in the backyard", "fencing"},
		{"replace shingles on the roof", "roofing"},
		{"new composite deck with railing", "deck"},
		{"quiero pintar la casa", "painting"},
		{"necesito una cerca nueva", "fencing"},
		{"remodelar la cocina", "kitchen"},
		{"pour a concrete driveway", "concrete"},
		{"just some general questions", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, keywordProjectType(tt.notes), "notes: %s", tt.notes)
	}
}

func TestKeywordFindings_Dimensions(t *testing.T) {
	f := keywordFindings("70 linear feet of wood privacy fence, 6 feet tall, gate 4 ft wide")

	assert.Equal(t, "fencing", f.ProjectType)
	assert.Equal(t, "70", f.Dimensions["length"])
	assert.Equal(t, "6", f.Dimensions["height"])
	assert.Equal(t, "4", f.Dimensions["width"])
	assert.Contains(t, f.Materials, "wood")
	assert.False(t, f.DemolitionNeeded)
}

func TestKeywordFindings_AreaAndCross(t *testing.T) {
	f := keywordFindings("paint the living room, about 400 sq ft")
	assert.Equal(t, "painting", f.ProjectType)
	assert.Equal(t, "400", f.Dimensions["area"])

	f = keywordFindings("new deck 12x16 with composite boards")
	assert.Equal(t, "deck", f.ProjectType)
	assert.Equal(t, "12", f.Dimensions["length"])
	assert.Equal(t, "16", f.Dimensions["width"])
	assert.Contains(t, f.Materials, "composite")
}

func TestKeywordFindings_Spanish(t *testing.T) {
	f := keywordFindings("cerca de madera, 20 metros de largo, 2 metros de alto, hay que demoler la cerca vieja")

	assert.Equal(t, "fencing", f.ProjectType)
	assert.Equal(t, "20", f.Dimensions["length"])
	assert.Equal(t, "2", f.Dimensions["height"])
	assert.Contains(t, f.Materials, "madera")
	assert.True(t, f.DemolitionNeeded)
}

func TestKeywordFindings_Demolition(t *testing.T) {
	f := keywordFindings("tear out the old deck and rebuild")
	assert.True(t, f.DemolitionNeeded)

	f = keywordFindings("remove existing fence first")
	assert.True(t, f.DemolitionNeeded)

	// "demo" matches on a word boundary, including at the end of the notes.
	f = keywordFindings("old shed needs demo")
	assert.True(t, f.DemolitionNeeded)

	f = keywordFindings("demo the kitchen before the rebuild")
	assert.True(t, f.DemolitionNeeded)

	f = keywordFindings("full kitchen remodel")
	assert.False(t, f.DemolitionNeeded)
}

func TestKeywordFindings_NoDimensions(t *testing.T) {
	f := keywordFindings("fix the roof")
	assert.Equal(t, "roofing", f.ProjectType)
	assert.Nil(t, f.Dimensions)
}

func TestRegexFindings_QuotedFieldFragment(t *testing.T) {
	// Truncated JSON that failed to parse still yields a project type.
	f := regexFindings(`The photo shows... "projectType": "roofing", "dimensions": {`)
	assert.Equal(t, "roofing", f.ProjectType)
}

func TestFilenameGuess(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/uploads/backyard_fence.jpg", "fencing"},
		{"roof-damage-photo.png", "roofing"},
		{"kitchen_remodel_01.webp", "kitchen"},
		{"IMG_20260214.jpg", ""},
	}
	for _, tt := range tests {
		got := filenameGuess(model.ProjectImage{Path: tt.path})
		assert.Equal(t, tt.want, got.ProjectType, "path: %s", tt.path)
	}
}

func TestFilenameGuess_URLFallback(t *testing.T) {
	got := filenameGuess(model.ProjectImage{URL: "https://cdn.example.com/jobs/deck_repair.jpg"})
	assert.Equal(t, "deck", got.ProjectType)
}
