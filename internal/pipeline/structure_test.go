package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopeworks/intake/internal/model"
)

func TestNormalizeProjectType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Fencing", "fencing"},
		{"fence", "fencing"},
		{"wood privacy fence", "fencing"},
		{"Roof Replacement", "roofing"},
		{"kitchen remodel", "kitchen"},
		{"driveway", "concrete"},
		{"", ""},
		{"gazebo", "gazebo"}, // unrecognized passes through lowercased
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeProjectType(tt.in), "in: %q", tt.in)
	}
}

func TestLeadingNumber(t *testing.T) {
	v, ok := leadingNumber("70 linear ft")
	require.True(t, ok)
	assert.Equal(t, 70.0, v)

	v, ok = leadingNumber("approx 6.5 feet")
	require.True(t, ok)
	assert.Equal(t, 6.5, v)

	_, ok = leadingNumber("unknown")
	assert.False(t, ok)
}

func TestStructure_NumericCoercion(t *testing.T) {
	res, err := Structure(model.AggregatedFindings{
		Merged: model.Findings{
			ProjectType: "fencing",
			Dimensions:  map[string]string{"Length": "70 linear feet", "height": "6 ft"},
			Materials:   []string{"wood"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "fencing", res.ProjectType)
	assert.Equal(t, 70.0, res.Dimensions["length"])
	assert.Equal(t, 6.0, res.Dimensions["height"])
	assert.Contains(t, res.DetectedElements, "wood")
}

func TestStructure_MinimumDimensionDefaults(t *testing.T) {
	res, err := Structure(model.AggregatedFindings{
		Merged: model.Findings{ProjectType: "fencing"},
	})
	require.NoError(t, err)

	assert.Equal(t, 100.0, res.Dimensions["length"])
	assert.Equal(t, 6.0, res.Dimensions["height"])
}

func TestStructure_DefaultsDoNotOverrideExtracted(t *testing.T) {
	res, err := Structure(model.AggregatedFindings{
		Merged: model.Findings{
			ProjectType: "fencing",
			Dimensions:  map[string]string{"length": "70"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 70.0, res.Dimensions["length"])
	assert.Equal(t, 6.0, res.Dimensions["height"], "missing keys still filled")
}

func TestStructure_NoDefaultsForUnknownType(t *testing.T) {
	res, err := Structure(model.AggregatedFindings{
		Merged: model.Findings{ProjectType: "gazebo", Materials: []string{"wood"}},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Dimensions)
}

func TestStructure_DemolitionOption(t *testing.T) {
	res, err := Structure(model.AggregatedFindings{
		Merged: model.Findings{ProjectType: "deck", DemolitionNeeded: true},
	})
	require.NoError(t, err)
	assert.Equal(t, true, res.Options["demolition_needed"])
}

func TestStructure_EmptyAggregateFails(t *testing.T) {
	_, err := Structure(model.AggregatedFindings{})
	assert.Error(t, err)
}

func TestStructure_ImagesWithoutFindingsSucceeds(t *testing.T) {
	// Images were analyzed but nothing was extracted: still a valid
	// (unknown-type) result, not a structuring failure.
	res, err := Structure(model.AggregatedFindings{
		FromImages: []model.ImageFinding{{ImageID: "abc"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "unknown", res.ProjectType)
}

func TestMinimalResult(t *testing.T) {
	res := MinimalResult()
	assert.Equal(t, "unknown", res.ProjectType)
	assert.NotNil(t, res.Dimensions)
	assert.Empty(t, res.Dimensions)
	assert.True(t, res.GeneratedWithFallback)
}
