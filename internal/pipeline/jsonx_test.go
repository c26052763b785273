package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopeworks/intake/internal/model"
)

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain object", `{"projectType": "fencing"}`, `{"projectType": "fencing"}`},
		{"json fence", "```json\n{\"projectType\": \"fencing\"}\n```", `{"projectType": "fencing"}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding prose", `Here you go: {"a": 1} — let me know!`, `{"a": 1}`},
		{"no braces", "no json here", "no json here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSON(tt.in))
		})
	}
}

func TestFirstJSONObject(t *testing.T) {
	// Prose with stray braces after the object defeats the first-to-last
	// brace slice; the balanced scan still recovers it.
	in := `Sure! {"projectType": "roofing"} Hope that helps! {unclosed`
	assert.Equal(t, `{"projectType": "roofing"}`, firstJSONObject(in))

	assert.Equal(t, `{"a": "b } c"}`, firstJSONObject(`x {"a": "b } c"} y`))
	assert.Equal(t, "", firstJSONObject("no object"))
	assert.Equal(t, "", firstJSONObject("{never closed"))
}

func TestParseFindings_ChattyResponse(t *testing.T) {
	f, err := parseFindings(`Sure! {"projectType": "roofing"} Hope that helps! {`)
	require.NoError(t, err)
	assert.Equal(t, "roofing", f.ProjectType)
}

func TestParseFindings_FullObject(t *testing.T) {
	f, err := parseFindings("```json\n" + `{
		"projectType": "Fencing",
		"projectSubtype": "privacy",
		"dimensions": {"Length": "70 linear feet", "height": 6},
		"materials": ["wood", "cedar"],
		"conditions": ["sloped yard"],
		"specialConsiderations": ["gate needed"],
		"demolitionNeeded": true
	}` + "\n```")
	require.NoError(t, err)

	assert.Equal(t, "fencing", f.ProjectType)
	assert.Equal(t, "privacy", f.ProjectSubtype)
	assert.Equal(t, "70 linear feet", f.Dimensions["length"])
	assert.Equal(t, "6", f.Dimensions["height"])
	assert.Equal(t, []string{"wood", "cedar"}, f.Materials)
	assert.Equal(t, []string{"sloped yard"}, f.Conditions)
	assert.True(t, f.DemolitionNeeded)
}

func TestParseFindings_SnakeCaseKeys(t *testing.T) {
	f, err := parseFindings(`{"project_type": "deck", "special_considerations": ["railing"], "demolition_needed": true}`)
	require.NoError(t, err)
	assert.Equal(t, "deck", f.ProjectType)
	assert.Equal(t, []string{"railing"}, f.SpecialConsiderations)
	assert.True(t, f.DemolitionNeeded)
}

func TestParseFindings_WrongShapesTolerated(t *testing.T) {
	// materials as a bare string, dimensions with a nested object value.
	f, err := parseFindings(`{"projectType": "painting", "materials": "latex", "dimensions": {"area": 400, "weird": {"x": 1}}}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"latex"}, f.Materials)
	assert.Equal(t, "400", f.Dimensions["area"])
	_, hasWeird := f.Dimensions["weird"]
	assert.False(t, hasWeird)
}

func TestParseFindings_NoJSON(t *testing.T) {
	_, err := parseFindings("I could not analyze this image.")
	require.Error(t, err)

	var perr *model.ParseError
	assert.True(t, errors.As(err, &perr))
}

func TestTrimFloat(t *testing.T) {
	assert.Equal(t, "6", trimFloat(6))
	assert.Equal(t, "3.5", trimFloat(3.5))
}
