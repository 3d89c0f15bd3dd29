// Package model defines the data types shared across the extraction pipeline.
package model

import "strings"

// SourceKind classifies a normalized input document.
type SourceKind string

const (
	KindText  SourceKind = "text"
	KindCSV   SourceKind = "csv"
	KindPDF   SourceKind = "pdf"
	KindImage SourceKind = "image"
)

// Mode selects the extraction execution strategy.
type Mode string

const (
	ModeDirect Mode = "direct"
	ModeAgent  Mode = "agent"
	ModeVision Mode = "vision"
)

// ContentType describes what kind of document the source text is, which
// changes the prompt framing.
type ContentType string

const (
	ContentCallsheet ContentType = "callsheet"
	ContentEmail     ContentType = "email"
)

// ProviderName identifies an LLM backend choice.
type ProviderName string

const (
	ProviderAuto       ProviderName = "auto"
	ProviderGemini     ProviderName = "gemini"
	ProviderOpenRouter ProviderName = "openrouter"
)

// NormalizedContent is the single immutable product of input normalization.
// Image is a base64-encoded JPEG, populated only in vision mode.
type NormalizedContent struct {
	Text      string
	Image     string
	ImageMIME string
	Kind      SourceKind
}

// Credentials carries caller-supplied provider credentials. OpenRouter is
// only eligible for auto-selection when both fields are set; there is no
// server-side default for it.
type Credentials struct {
	OpenRouterAPIKey string
	OpenRouterModel  string
}

// GeoBias is the caller-supplied default city/country used to complete
// ambiguous addresses before geocoding.
type GeoBias struct {
	City    string
	Country string
}

// Empty reports whether the bias carries no usable component.
func (b GeoBias) Empty() bool {
	return b.City == "" && b.Country == ""
}

// CallsheetExtraction is the simple output schema.
type CallsheetExtraction struct {
	Date                string   `json:"date"`
	ProjectName         string   `json:"projectName"`
	ProductionCompanies []string `json:"productionCompanies"`
	Locations           []string `json:"locations"`
}

// CrewFirstVersion tags the rich schema shape.
const CrewFirstVersion = "parser-crew-1"

// CrewFirstCallsheet is the rich output schema with per-location
// classification and coordinates.
type CrewFirstCallsheet struct {
	Version           string              `json:"version"`
	Date              string              `json:"date"`
	ProjectName       string              `json:"projectName"`
	ProductionCompany string              `json:"productionCompany,omitempty"`
	Motiv             string              `json:"motiv,omitempty"`
	Episode           string              `json:"episode,omitempty"`
	ShootingDay       string              `json:"shootingDay,omitempty"`
	GeneralCallTime   string              `json:"generalCallTime,omitempty"`
	Locations         []CrewFirstLocation `json:"locations"`
	Rutas             []any               `json:"rutas"`
}

// LocationType is the closed classification taxonomy for crew-first locations.
type LocationType string

const (
	LocationSet            LocationType = "set"
	LocationBasecamp       LocationType = "basecamp"
	LocationParking        LocationType = "parking"
	LocationCatering       LocationType = "catering"
	LocationWardrobeMakeup LocationType = "wardrobe_makeup"
	LocationTransport      LocationType = "transport"
	LocationOther          LocationType = "other"
)

// LocationTypes lists every valid LocationType value.
func LocationTypes() []LocationType {
	return []LocationType{
		LocationSet,
		LocationBasecamp,
		LocationParking,
		LocationCatering,
		LocationWardrobeMakeup,
		LocationTransport,
		LocationOther,
	}
}

// ValidLocationType reports whether s is a member of the closed taxonomy.
func ValidLocationType(s string) bool {
	for _, t := range LocationTypes() {
		if string(t) == s {
			return true
		}
	}
	return false
}

// CrewFirstLocation is a single classified location in the rich schema.
// Notes holds at most two free-text remarks; Confidence is clamped to [0,1]
// during verification.
type CrewFirstLocation struct {
	LocationType     LocationType `json:"location_type"`
	Name             string       `json:"name,omitempty"`
	Address          string       `json:"address"`
	FormattedAddress string       `json:"formatted_address,omitempty"`
	Latitude         *float64     `json:"latitude,omitempty"`
	Longitude        *float64     `json:"longitude,omitempty"`
	Notes            []string     `json:"notes"`
	Confidence       float64      `json:"confidence"`
}

// Extraction is the union of the two output schemas. Exactly one branch is
// populated, selected by the caller's crew-first flag.
type Extraction struct {
	Simple    *CallsheetExtraction
	CrewFirst *CrewFirstCallsheet
}

// Locations returns the raw location strings regardless of schema shape.
func (e *Extraction) Locations() []string {
	switch {
	case e.Simple != nil:
		return e.Simple.Locations
	case e.CrewFirst != nil:
		out := make([]string, 0, len(e.CrewFirst.Locations))
		for _, l := range e.CrewFirst.Locations {
			out = append(out, l.Address)
		}
		return out
	}
	return nil
}

// KeepLocations narrows the extraction to the given surviving location
// strings, preserving schema shape and first-seen order. The post-processor
// only ever shrinks the list, so every entry of keep matches an existing
// location.
func (e *Extraction) KeepLocations(keep []string) {
	switch {
	case e.Simple != nil:
		e.Simple.Locations = keep
	case e.CrewFirst != nil:
		kept := make([]CrewFirstLocation, 0, len(keep))
		for _, addr := range keep {
			for _, l := range e.CrewFirst.Locations {
				if strings.TrimSpace(l.Address) == addr {
					kept = append(kept, l)
					break
				}
			}
		}
		e.CrewFirst.Locations = kept
	}
}

// SetResolvedLocations applies geocoding output. resolved is keyed by the
// original location string and maps to the final (formatted or bias-prepared)
// address. Simple output replaces the strings; crew-first output fills
// FormattedAddress and keeps the original Address intact.
func (e *Extraction) SetResolvedLocations(resolved map[string]string) {
	switch {
	case e.Simple != nil:
		for i, loc := range e.Simple.Locations {
			if r, ok := resolved[loc]; ok && r != "" {
				e.Simple.Locations[i] = r
			}
		}
	case e.CrewFirst != nil:
		for i := range e.CrewFirst.Locations {
			l := &e.CrewFirst.Locations[i]
			if r, ok := resolved[strings.TrimSpace(l.Address)]; ok && r != "" {
				l.FormattedAddress = r
			}
		}
	}
}
