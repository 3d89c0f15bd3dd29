// Package provider defines the LLM backend strategy interface and the
// resolver that picks an implementation per request.
package provider

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/setflow/callsheet-cli/internal/model"
)

// Request carries everything an adapter needs for one extraction call.
type Request struct {
	Content     *model.NormalizedContent
	Mode        model.Mode
	ContentType model.ContentType
	CrewFirst   bool
	Bias        model.GeoBias
	Credentials model.Credentials

	// Draft is the optional structured result of the vision pre-pass,
	// embedded into the vision prompt to improve recall.
	Draft *model.Extraction
}

// Provider is the backend strategy. Implementations verify their own output
// against the selected schema before returning it.
type Provider interface {
	// Name returns the provider identifier.
	Name() model.ProviderName

	// Extract runs one schema-constrained extraction.
	Extract(ctx context.Context, req Request) (*model.Extraction, error)
}

// Resolve picks the provider for a request. An explicit caller choice wins.
// Auto selects OpenRouter only when the caller configured both an API key
// and a model; otherwise the server-funded Gemini default is used.
func Resolve(pref model.ProviderName, creds model.Credentials, gemini, openRouter Provider) (Provider, error) {
	switch pref {
	case model.ProviderGemini:
		return gemini, nil
	case model.ProviderOpenRouter:
		if creds.OpenRouterAPIKey == "" {
			return nil, eris.New("provider: openrouter requested without an API key")
		}
		return openRouter, nil
	case model.ProviderAuto, "":
		if creds.OpenRouterAPIKey != "" && creds.OpenRouterModel != "" {
			return openRouter, nil
		}
		return gemini, nil
	}
	return nil, eris.Errorf("provider: unknown provider %q", pref)
}
