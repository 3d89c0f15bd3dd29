// Package openrouter implements the OpenRouter provider adapter: structured
// JSON chat completions with defensive response parsing, legacy shape
// coercion and a single Gemini fallback on server-side failure.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/setflow/callsheet-cli/internal/cost"
	"github.com/setflow/callsheet-cli/internal/model"
	"github.com/setflow/callsheet-cli/internal/provider"
	"github.com/setflow/callsheet-cli/internal/resilience"
	"github.com/setflow/callsheet-cli/internal/schema"
	"github.com/setflow/callsheet-cli/pkg/jsonx"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

// CrewAgent is the external function-calling orchestrator used for
// agent-mode crew-first requests. It is an opaque collaborator; this
// adapter only defines its boundary.
type CrewAgent interface {
	Extract(ctx context.Context, req provider.Request) (*model.Extraction, error)
}

// Provider is the OpenRouter adapter. Credentials are caller-supplied per
// request; there is no server-side default key.
type Provider struct {
	baseURL   string
	http      *http.Client
	fallback  provider.Provider
	crewAgent CrewAgent
}

// Option configures the adapter.
type Option func(*Provider)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Provider) { p.http = hc }
}

// WithCrewAgent wires the external function-calling orchestrator for
// agent-mode crew-first requests.
func WithCrewAgent(agent CrewAgent) Option {
	return func(p *Provider) { p.crewAgent = agent }
}

// New creates the OpenRouter adapter. fallback is the Gemini direct adapter
// used as the single safety net for 5xx and post-parse schema failures.
func New(fallback provider.Provider, opts ...Option) *Provider {
	p := &Provider{
		baseURL:  defaultBaseURL,
		http:     &http.Client{Timeout: 120 * time.Second},
		fallback: fallback,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Name implements provider.Provider.
func (p *Provider) Name() model.ProviderName { return model.ProviderOpenRouter }

// Extract implements provider.Provider.
func (p *Provider) Extract(ctx context.Context, req provider.Request) (*model.Extraction, error) {
	if req.Mode == model.ModeAgent && req.CrewFirst && p.crewAgent != nil {
		return p.crewAgent.Extract(ctx, req)
	}

	extraction, err := p.structuredExtract(ctx, req)
	if err == nil {
		return extraction, nil
	}

	// Exactly one Gemini fallback, and only for server-side failures or
	// schema violations. 4xx responses are surfaced untouched.
	if p.fallback != nil && fallbackEligible(err) {
		zap.L().Warn("openrouter: falling back to gemini", zap.Error(err))
		fbReq := req
		fbReq.Mode = model.ModeDirect
		if fbExtraction, fbErr := p.fallback.Extract(ctx, fbReq); fbErr == nil {
			return fbExtraction, nil
		}
	}

	return nil, err
}

// fallbackEligible reports whether err warrants the single Gemini fallback:
// a 5xx provider response or a schema-verification failure.
func fallbackEligible(err error) bool {
	if resilience.IsSchemaError(err) {
		return true
	}
	if pe, ok := resilience.AsProviderError(err); ok {
		return pe.Status >= 500 || pe.Empty
	}
	return false
}

// --- chat completion wire types ---

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage,omitempty"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

func (p *Provider) structuredExtract(ctx context.Context, req provider.Request) (*model.Extraction, error) {
	if req.Credentials.OpenRouterAPIKey == "" || req.Credentials.OpenRouterModel == "" {
		return nil, eris.New("openrouter: missing API key or model")
	}

	body, err := json.Marshal(chatRequest{
		Model:          req.Credentials.OpenRouterModel,
		Messages:       buildMessages(req),
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, eris.Wrap(err, "openrouter: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "openrouter: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.Credentials.OpenRouterAPIKey)

	resp, err := p.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "openrouter: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "openrouter: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &resilience.ProviderError{
			Provider: "openrouter",
			Status:   resp.StatusCode,
			Err:      eris.Errorf("%s", string(respBody)),
		}
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return nil, eris.Wrap(err, "openrouter: unmarshal response")
	}
	if chat.Usage != nil {
		cost.LogOpenRouter(req.Credentials.OpenRouterModel, chat.Usage.PromptTokens, chat.Usage.CompletionTokens)
	}
	if len(chat.Choices) == 0 {
		return nil, &resilience.ProviderError{Provider: "openrouter", Empty: true}
	}

	raw, err := decodeContent(chat.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	raw, err = coerceLegacyShapes(raw, req.CrewFirst)
	if err != nil {
		return nil, err
	}

	return schema.Verify(raw, req.CrewFirst)
}

func buildMessages(req provider.Request) []chatMessage {
	prompt := provider.BuildPrompt(req)

	if req.Mode == model.ModeVision && req.Content.Image != "" {
		return []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &imageURL{
					URL: "data:" + req.Content.ImageMIME + ";base64," + req.Content.Image,
				}},
			},
		}}
	}

	return []chatMessage{{Role: "user", Content: prompt}}
}

// decodeContent handles the three content shapes OpenRouter models emit:
// a plain string, an array of typed parts, or a pre-parsed JSON object.
func decodeContent(content json.RawMessage) ([]byte, error) {
	var asString string
	if err := json.Unmarshal(content, &asString); err == nil {
		obj, extractErr := jsonx.ExtractObject(asString)
		if extractErr != nil {
			return nil, &resilience.SchemaError{Detail: extractErr.Error()}
		}
		return []byte(obj), nil
	}

	var asParts []contentPart
	if err := json.Unmarshal(content, &asParts); err == nil {
		var joined string
		for _, part := range asParts {
			joined += part.Text
		}
		obj, extractErr := jsonx.ExtractObject(joined)
		if extractErr != nil {
			return nil, &resilience.SchemaError{Detail: extractErr.Error()}
		}
		return []byte(obj), nil
	}

	// Already an object.
	var probe map[string]any
	if err := json.Unmarshal(content, &probe); err == nil {
		return content, nil
	}

	return nil, &resilience.SchemaError{Detail: "unrecognized content shape"}
}

// coerceLegacyShapes lifts legacy field shapes into the current schema: a
// singular productionCompany string becomes the productionCompanies array.
// Crew-first output is never coerced.
func coerceLegacyShapes(raw []byte, crewFirst bool) ([]byte, error) {
	if crewFirst {
		return raw, nil
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, &resilience.SchemaError{Detail: err.Error()}
	}

	changed := false
	if _, has := m["productionCompanies"]; !has {
		if single, ok := m["productionCompany"].(string); ok {
			m["productionCompanies"] = []string{single}
			changed = true
		}
	}
	if _, has := m["productionCompany"]; has {
		delete(m, "productionCompany")
		changed = true
	}
	if _, has := m["productionCompanies"]; !has {
		m["productionCompanies"] = []string{}
		changed = true
	}

	if !changed {
		return raw, nil
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, eris.Wrap(err, "openrouter: re-marshal coerced output")
	}
	return out, nil
}
