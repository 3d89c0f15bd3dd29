package provider

import (
	"encoding/json"
	"fmt"

	"github.com/setflow/callsheet-cli/internal/model"
	"github.com/setflow/callsheet-cli/internal/schema"
)

const simplePromptHeader = `You are a film production assistant extracting structured data from a callsheet or production document. The document may be in German, English or Spanish.

Extract:
- date: the shoot date
- projectName: the production title
- productionCompanies: every production company named
- locations: every address where principal filming (main unit camera work) takes place. Do NOT include crew logistics addresses such as basecamp, parking, catering, wardrobe, makeup, transport or toilets, and do NOT include drone/aerial unit, second unit or weather-cover addresses.

Return only a valid JSON object matching this schema:
%s`

const crewFirstPromptHeader = `You are a film production assistant extracting structured data from a callsheet or production document. The document may be in German, English or Spanish.

Classify EVERY address you find by its logistics role (location_type) and report coordinates when the document states them. Use "set" for principal filming addresses and the matching category for crew-support addresses. Set version to "%s" and rutas to an empty array.

Return only a valid JSON object matching this schema:
%s`

const emailFraming = `The source below is an email or short message, not a full callsheet. Extract only addresses that are explicitly filming locations; ignore everything else.

--- MESSAGE ---
%s
--- END MESSAGE ---`

const visionContext = `A rendered image of the document is attached; it is the primary source. Use the following text as supporting context only.
%s%s`

// BuildPrompt assembles the user prompt for a request from its normalized
// content, schema selection and content-type framing.
func BuildPrompt(req Request) string {
	text := req.Content.Text
	if req.ContentType == model.ContentEmail {
		text = fmt.Sprintf(emailFraming, text)
	}

	var header string
	if req.CrewFirst {
		header = fmt.Sprintf(crewFirstPromptHeader, model.CrewFirstVersion, schemaJSON(schema.CrewFirstSchema()))
	} else {
		header = fmt.Sprintf(simplePromptHeader, schemaJSON(schema.SimpleSchema()))
	}

	if req.Mode == model.ModeVision && req.Content.Image != "" {
		draft := ""
		if d := draftFromContext(req); d != "" {
			draft = "\n\nPreliminary structured draft from a text-only parse (verify and improve it):\n" + d
		}
		body := ""
		if text != "" {
			body = "\n\n--- DOCUMENT TEXT ---\n" + text + "\n--- END TEXT ---"
		}
		return header + "\n\n" + fmt.Sprintf(visionContext, body, draft)
	}

	return header + "\n\n--- DOCUMENT ---\n" + text + "\n--- END DOCUMENT ---"
}

func draftFromContext(req Request) string {
	if req.Draft == nil {
		return ""
	}
	var v any
	switch {
	case req.Draft.Simple != nil:
		v = req.Draft.Simple
	case req.Draft.CrewFirst != nil:
		v = req.Draft.CrewFirst
	default:
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func schemaJSON(m map[string]any) string {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
