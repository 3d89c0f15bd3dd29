package schema

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setflow/callsheet-cli/internal/model"
	"github.com/setflow/callsheet-cli/internal/resilience"
)

func TestVerifySimple_Valid(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"date": "2024-05-06",
		"projectName": "Tatort: Schattenlinien",
		"productionCompanies": ["UFA Fiction", "ARD Degeto"],
		"locations": ["Stadtpark Hamburg", "Hafenstraße 3"]
	}`)

	out, err := VerifySimple(raw)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-06", out.Date)
	assert.Equal(t, "Tatort: Schattenlinien", out.ProjectName)
	assert.Len(t, out.ProductionCompanies, 2)
	assert.Len(t, out.Locations, 2)
}

func TestVerifySimple_DateNormalized(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		date string
		want string
	}{
		{"iso passthrough", "2024-05-06", "2024-05-06"},
		{"german dotted", "06.05.2024", "2024-05-06"},
		{"slash european", "06/05/2024", "2024-05-06"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			raw := []byte(`{"date": "` + tt.date + `", "projectName": "P", "productionCompanies": [], "locations": []}`)
			out, err := VerifySimple(raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Date)
		})
	}
}

func TestVerifySimple_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `not json at all`},
		{"missing locations", `{"date": "2024-05-06", "projectName": "P", "productionCompanies": []}`},
		{"missing date", `{"projectName": "P", "productionCompanies": [], "locations": []}`},
		{"empty date", `{"date": "", "projectName": "P", "productionCompanies": [], "locations": []}`},
		{"unparseable date", `{"date": "sometime in May", "projectName": "P", "productionCompanies": [], "locations": []}`},
		{"locations not strings", `{"date": "2024-05-06", "projectName": "P", "productionCompanies": [], "locations": [1, 2]}`},
		{"unknown field", `{"date": "2024-05-06", "projectName": "P", "productionCompanies": [], "locations": [], "crew": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := VerifySimple([]byte(tt.raw))
			require.Error(t, err)
			assert.True(t, resilience.IsSchemaError(err), "want SchemaError, got %T", err)
		})
	}
}

func crewFirstFixture(locationType string, confidence float64) []byte {
	return []byte(`{
		"version": "` + model.CrewFirstVersion + `",
		"date": "06.05.2024",
		"projectName": "SOKO Wien",
		"productionCompany": "Satel Film",
		"locations": [{
			"location_type": "` + locationType + `",
			"name": "Prater",
			"address": "Rustenschacherallee 9",
			"notes": ["Eingang Nord"],
			"confidence": ` + strconv.FormatFloat(confidence, 'f', -1, 64) + `
		}],
		"rutas": []
	}`)
}

func TestVerifyCrewFirst_Valid(t *testing.T) {
	t.Parallel()

	out, err := VerifyCrewFirst(crewFirstFixture("set", 0.9))
	require.NoError(t, err)
	assert.Equal(t, model.CrewFirstVersion, out.Version)
	assert.Equal(t, "2024-05-06", out.Date)
	require.Len(t, out.Locations, 1)
	assert.Equal(t, model.LocationSet, out.Locations[0].LocationType)
	assert.InDelta(t, 0.9, out.Locations[0].Confidence, 1e-9)
}

func TestVerifyCrewFirst_ConfidenceClamped(t *testing.T) {
	t.Parallel()

	out, err := VerifyCrewFirst(crewFirstFixture("set", 1.7))
	require.NoError(t, err)
	assert.Equal(t, 1.0, out.Locations[0].Confidence)

	out, err = VerifyCrewFirst(crewFirstFixture("basecamp", -0.2))
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.Locations[0].Confidence)
}

func TestVerifyCrewFirst_UnknownLocationType(t *testing.T) {
	t.Parallel()

	_, err := VerifyCrewFirst(crewFirstFixture("helipad", 0.5))
	require.Error(t, err)
	assert.True(t, resilience.IsSchemaError(err))
}

func TestVerifyCrewFirst_WrongVersion(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"version": "parser-crew-0",
		"date": "2024-05-06",
		"projectName": "P",
		"locations": [],
		"rutas": []
	}`)
	_, err := VerifyCrewFirst(raw)
	require.Error(t, err)
	assert.True(t, resilience.IsSchemaError(err))
}

func TestVerify_SelectsSchema(t *testing.T) {
	t.Parallel()

	simpleRaw := []byte(`{"date": "2024-05-06", "projectName": "P", "productionCompanies": [], "locations": []}`)

	extraction, err := Verify(simpleRaw, false)
	require.NoError(t, err)
	assert.NotNil(t, extraction.Simple)
	assert.Nil(t, extraction.CrewFirst)

	extraction, err = Verify(crewFirstFixture("set", 0.9), true)
	require.NoError(t, err)
	assert.Nil(t, extraction.Simple)
	assert.NotNil(t, extraction.CrewFirst)
}
