package schema

import (
	"encoding/json"

	"github.com/setflow/callsheet-cli/internal/model"
	"github.com/setflow/callsheet-cli/internal/resilience"
)

// Verify gates raw model output against the schema selected by crewFirst.
// Any shape deviation is rejected whole; there is no partial acceptance.
// On success the date is normalized to YYYY-MM-DD and, for crew-first
// output, confidence values are clamped to [0,1].
func Verify(raw []byte, crewFirst bool) (*model.Extraction, error) {
	if crewFirst {
		cf, err := VerifyCrewFirst(raw)
		if err != nil {
			return nil, err
		}
		return &model.Extraction{CrewFirst: cf}, nil
	}
	simple, err := VerifySimple(raw)
	if err != nil {
		return nil, err
	}
	return &model.Extraction{Simple: simple}, nil
}

// VerifySimple validates raw against the simple schema and returns the typed
// extraction.
func VerifySimple(raw []byte) (*model.CallsheetExtraction, error) {
	simple, _ := compiled()
	if err := validate(simple, raw); err != nil {
		return nil, err
	}

	var out model.CallsheetExtraction
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &resilience.SchemaError{Detail: err.Error()}
	}

	date, err := model.NormalizeDate(out.Date)
	if err != nil {
		return nil, &resilience.SchemaError{Detail: err.Error()}
	}
	out.Date = date

	if out.ProductionCompanies == nil {
		out.ProductionCompanies = []string{}
	}
	if out.Locations == nil {
		out.Locations = []string{}
	}
	return &out, nil
}

// VerifyCrewFirst validates raw against the crew-first schema and returns
// the typed extraction.
func VerifyCrewFirst(raw []byte) (*model.CrewFirstCallsheet, error) {
	_, crewFirst := compiled()
	if err := validate(crewFirst, raw); err != nil {
		return nil, err
	}

	var out model.CrewFirstCallsheet
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &resilience.SchemaError{Detail: err.Error()}
	}

	date, err := model.NormalizeDate(out.Date)
	if err != nil {
		return nil, &resilience.SchemaError{Detail: err.Error()}
	}
	out.Date = date

	for i := range out.Locations {
		l := &out.Locations[i]
		if !model.ValidLocationType(string(l.LocationType)) {
			return nil, &resilience.SchemaError{Detail: "unknown location_type " + string(l.LocationType)}
		}
		if l.Confidence < 0 {
			l.Confidence = 0
		}
		if l.Confidence > 1 {
			l.Confidence = 1
		}
		if l.Notes == nil {
			l.Notes = []string{}
		}
	}
	if out.Rutas == nil {
		out.Rutas = []any{}
	}
	return &out, nil
}

func validate(sch compiledSchema, raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return &resilience.SchemaError{Detail: "not valid JSON: " + err.Error()}
	}
	if err := sch.Validate(v); err != nil {
		return &resilience.SchemaError{Detail: err.Error()}
	}
	return nil
}

// compiledSchema is the slice of the jsonschema API verify depends on.
type compiledSchema interface {
	Validate(v any) error
}
