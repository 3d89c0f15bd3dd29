package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setflow/callsheet-cli/internal/model"
	"github.com/setflow/callsheet-cli/internal/provider"
	"github.com/setflow/callsheet-cli/internal/resilience"
)

const simpleResultJSON = `{"date": "06.05.2024", "projectName": "Tatort", "productionCompanies": ["UFA"], "locations": ["Stadtpark Hamburg"]}`

type fallbackSpy struct {
	called     bool
	extraction *model.Extraction
	err        error
}

func (f *fallbackSpy) Name() model.ProviderName { return model.ProviderGemini }
func (f *fallbackSpy) Extract(ctx context.Context, req provider.Request) (*model.Extraction, error) {
	f.called = true
	return f.extraction, f.err
}

func chatServer(t *testing.T, status int, content any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-or-test", r.Header.Get("Authorization"))

		if status != http.StatusOK {
			http.Error(w, "upstream error", status)
			return
		}

		raw, err := json.Marshal(content)
		require.NoError(t, err)
		resp := map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{"content": json.RawMessage(raw)},
			}},
			"usage": map[string]any{"prompt_tokens": 100, "completion_tokens": 50},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testRequest() provider.Request {
	return provider.Request{
		Content: &model.NormalizedContent{Text: "DISPO TAG 3", Kind: model.KindText},
		Mode:    model.ModeDirect,
		Credentials: model.Credentials{
			OpenRouterAPIKey: "sk-or-test",
			OpenRouterModel:  "meta-llama/llama-4",
		},
	}
}

func TestStructuredExtract_StringContent(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, http.StatusOK, simpleResultJSON)
	p := New(nil, WithBaseURL(srv.URL))

	extraction, err := p.Extract(context.Background(), testRequest())
	require.NoError(t, err)
	require.NotNil(t, extraction.Simple)
	assert.Equal(t, "2024-05-06", extraction.Simple.Date)
}

func TestStructuredExtract_PartsContent(t *testing.T) {
	t.Parallel()

	parts := []map[string]any{{"type": "text", "text": simpleResultJSON}}
	srv := chatServer(t, http.StatusOK, parts)
	p := New(nil, WithBaseURL(srv.URL))

	extraction, err := p.Extract(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "Tatort", extraction.Simple.ProjectName)
}

func TestStructuredExtract_ObjectContent(t *testing.T) {
	t.Parallel()

	var obj map[string]any
	require.NoError(t, json.Unmarshal([]byte(simpleResultJSON), &obj))
	srv := chatServer(t, http.StatusOK, obj)
	p := New(nil, WithBaseURL(srv.URL))

	extraction, err := p.Extract(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "Tatort", extraction.Simple.ProjectName)
}

func TestStructuredExtract_LegacyCompanyCoerced(t *testing.T) {
	t.Parallel()

	legacy := `{"date": "06.05.2024", "projectName": "Tatort", "productionCompany": "UFA", "locations": []}`
	srv := chatServer(t, http.StatusOK, legacy)
	p := New(nil, WithBaseURL(srv.URL))

	extraction, err := p.Extract(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, []string{"UFA"}, extraction.Simple.ProductionCompanies)
}

func TestStructuredExtract_MissingCredentials(t *testing.T) {
	t.Parallel()

	p := New(nil)
	req := testRequest()
	req.Credentials = model.Credentials{}

	_, err := p.Extract(context.Background(), req)
	assert.Error(t, err)
}

func TestExtract_ServerErrorFallsBack(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, http.StatusBadGateway, nil)
	fallback := &fallbackSpy{extraction: &model.Extraction{Simple: &model.CallsheetExtraction{
		Date: "2024-05-06", ProjectName: "Fallback", ProductionCompanies: []string{}, Locations: []string{},
	}}}
	p := New(fallback, WithBaseURL(srv.URL))

	extraction, err := p.Extract(context.Background(), testRequest())
	require.NoError(t, err)
	assert.True(t, fallback.called)
	assert.Equal(t, "Fallback", extraction.Simple.ProjectName)
}

func TestExtract_SchemaErrorFallsBack(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, http.StatusOK, `{"totally": "wrong shape"}`)
	fallback := &fallbackSpy{extraction: &model.Extraction{Simple: &model.CallsheetExtraction{
		Date: "2024-05-06", ProjectName: "Fallback", ProductionCompanies: []string{}, Locations: []string{},
	}}}
	p := New(fallback, WithBaseURL(srv.URL))

	extraction, err := p.Extract(context.Background(), testRequest())
	require.NoError(t, err)
	assert.True(t, fallback.called)
	assert.Equal(t, "Fallback", extraction.Simple.ProjectName)
}

func TestExtract_ClientErrorDoesNotFallBack(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, http.StatusUnauthorized, nil)
	fallback := &fallbackSpy{}
	p := New(fallback, WithBaseURL(srv.URL))

	_, err := p.Extract(context.Background(), testRequest())
	require.Error(t, err)
	assert.False(t, fallback.called)

	pe, ok := resilience.AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, pe.Status)
}

func TestExtract_FallbackFailureSurfacesOriginalError(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, http.StatusInternalServerError, nil)
	fallback := &fallbackSpy{err: &resilience.ProviderError{Provider: "gemini", Empty: true}}
	p := New(fallback, WithBaseURL(srv.URL))

	_, err := p.Extract(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, fallback.called)

	pe, ok := resilience.AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, "openrouter", pe.Provider)
}

type stubCrewAgent struct {
	called bool
}

func (s *stubCrewAgent) Extract(ctx context.Context, req provider.Request) (*model.Extraction, error) {
	s.called = true
	return &model.Extraction{CrewFirst: &model.CrewFirstCallsheet{
		Version: model.CrewFirstVersion, Date: "2024-05-06", ProjectName: "Agent",
		Locations: []model.CrewFirstLocation{}, Rutas: []any{},
	}}, nil
}

func TestExtract_CrewAgentDelegation(t *testing.T) {
	t.Parallel()

	agent := &stubCrewAgent{}
	p := New(nil, WithCrewAgent(agent))

	req := testRequest()
	req.Mode = model.ModeAgent
	req.CrewFirst = true

	extraction, err := p.Extract(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, agent.called)
	assert.Equal(t, "Agent", extraction.CrewFirst.ProjectName)
}
