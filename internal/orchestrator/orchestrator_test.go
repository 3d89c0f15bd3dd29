package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/setflow/callsheet-cli/internal/config"
	"github.com/setflow/callsheet-cli/internal/model"
	"github.com/setflow/callsheet-cli/internal/normalize"
	"github.com/setflow/callsheet-cli/internal/postprocess"
	"github.com/setflow/callsheet-cli/internal/provider"
	"github.com/setflow/callsheet-cli/internal/ratelimit"
	"github.com/setflow/callsheet-cli/internal/resilience"
	"github.com/setflow/callsheet-cli/pkg/geocode"
)

type fakeProvider struct {
	mu       sync.Mutex
	name     model.ProviderName
	requests []provider.Request
	results  []*model.Extraction
	errs     []error
}

func (f *fakeProvider) Name() model.ProviderName { return f.name }

func (f *fakeProvider) Extract(ctx context.Context, req provider.Request) (*model.Extraction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.requests)
	f.requests = append(f.requests, req)

	if n < len(f.errs) && f.errs[n] != nil {
		return nil, f.errs[n]
	}
	if n < len(f.results) {
		return f.results[n], nil
	}
	return f.results[len(f.results)-1], nil
}

type fakeGeocoder struct {
	err       error
	prefix    string
	regions   []string
	unmatched map[string]bool
}

func (f *fakeGeocoder) Geocode(ctx context.Context, address, region string) (*geocode.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.unmatched[address] {
		return &geocode.Result{Matched: false}, nil
	}
	return &geocode.Result{FormattedAddress: f.prefix + address, Matched: true}, nil
}

func (f *fakeGeocoder) BatchGeocode(ctx context.Context, addresses []string, region string) ([]geocode.Result, error) {
	f.regions = append(f.regions, region)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]geocode.Result, len(addresses))
	for i, a := range addresses {
		r, _ := f.Geocode(ctx, a, region)
		out[i] = *r
	}
	return out, nil
}

func testLogger() *zap.Logger { return zap.NewNop() }

func simpleResult(locations ...string) *model.Extraction {
	return &model.Extraction{Simple: &model.CallsheetExtraction{
		Date:                "2024-05-06",
		ProjectName:         "Tatort",
		ProductionCompanies: []string{"UFA", " ufa "},
		Locations:           locations,
	}}
}

func newTestOrchestrator(p *fakeProvider, g geocode.Client, limiter *ratelimit.Window) *Orchestrator {
	normalizer := normalize.New(config.OCRConfig{})
	return New(normalizer, nil, p, p, postprocess.DefaultLexicon(), g, limiter, 2)
}

func TestExtract_FullPipeline(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{
		name:    model.ProviderGemini,
		results: []*model.Extraction{simpleResult("Stadtpark", "Catering Zelt am Eingang")},
	}
	g := &fakeGeocoder{prefix: "resolved: "}
	o := newTestOrchestrator(p, g, nil)

	extraction, err := o.Extract(context.Background(), Input{Text: "DISPO"}, Options{
		Mode:     model.ModeDirect,
		Provider: model.ProviderGemini,
		Bias:     model.GeoBias{City: "Wien", Country: "Österreich"},
	})
	require.NoError(t, err)

	// Catering dropped, survivor bias-completed and geocoded, companies cleaned.
	assert.Equal(t, []string{"resolved: Stadtpark, Wien, Österreich"}, extraction.Simple.Locations)
	assert.Equal(t, []string{"UFA"}, extraction.Simple.ProductionCompanies)
	assert.Equal(t, []string{"at"}, g.regions)
}

func TestExtract_CrewFirstKeepsTypedLogisticsLocations(t *testing.T) {
	t.Parallel()

	result := &model.Extraction{CrewFirst: &model.CrewFirstCallsheet{
		Version:     model.CrewFirstVersion,
		Date:        "2024-05-06",
		ProjectName: "Tatort",
		Locations: []model.CrewFirstLocation{
			{LocationType: model.LocationSet, Address: "Stadtpark", Notes: []string{}, Confidence: 0.9},
			{LocationType: model.LocationParking, Address: "Parkplatz Messegelände", Notes: []string{}, Confidence: 0.8},
			{LocationType: model.LocationCatering, Address: "Catering Zelt am Eingang", Notes: []string{}, Confidence: 0.7},
			{LocationType: model.LocationSet, Address: "stadtpark", Notes: []string{}, Confidence: 0.5},
		},
		Rutas: []any{},
	}}
	p := &fakeProvider{name: model.ProviderGemini, results: []*model.Extraction{result}}
	o := newTestOrchestrator(p, &fakeGeocoder{prefix: "resolved: "}, nil)

	extraction, err := o.Extract(context.Background(), Input{Text: "DISPO"}, Options{
		Mode:      model.ModeDirect,
		CrewFirst: true,
	})
	require.NoError(t, err)

	// The logistics classification lives in location_type; typed entries
	// survive even when their address reads like a logistics keyword.
	require.Len(t, extraction.CrewFirst.Locations, 3)
	assert.Equal(t, "Stadtpark", extraction.CrewFirst.Locations[0].Address)
	assert.Equal(t, model.LocationParking, extraction.CrewFirst.Locations[1].LocationType)
	assert.Equal(t, model.LocationCatering, extraction.CrewFirst.Locations[2].LocationType)
	assert.Equal(t, "resolved: Parkplatz Messegelände", extraction.CrewFirst.Locations[1].FormattedAddress)
}

func TestExtract_GeocodingFailureDegrades(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{name: model.ProviderGemini, results: []*model.Extraction{simpleResult("Stadtpark")}}
	g := &fakeGeocoder{err: eris.New("quota exhausted")}
	o := newTestOrchestrator(p, g, nil)

	extraction, err := o.Extract(context.Background(), Input{Text: "DISPO"}, Options{
		Mode: model.ModeDirect,
		Bias: model.GeoBias{City: "Wien"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Stadtpark, Wien"}, extraction.Simple.Locations)
}

func TestExtract_UnmatchedKeepsPreparedAddress(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{name: model.ProviderGemini, results: []*model.Extraction{simpleResult("Stadtpark")}}
	g := &fakeGeocoder{unmatched: map[string]bool{"Stadtpark, Wien": true}}
	o := newTestOrchestrator(p, g, nil)

	extraction, err := o.Extract(context.Background(), Input{Text: "DISPO"}, Options{
		Mode: model.ModeDirect,
		Bias: model.GeoBias{City: "Wien"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Stadtpark, Wien"}, extraction.Simple.Locations)
}

func TestExtract_DryRunSkipsGeocoding(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{name: model.ProviderGemini, results: []*model.Extraction{simpleResult("Stadtpark")}}
	g := &fakeGeocoder{prefix: "resolved: "}
	o := newTestOrchestrator(p, g, nil)

	extraction, err := o.Extract(context.Background(), Input{Text: "DISPO"}, Options{
		Mode:        model.ModeDirect,
		Bias:        model.GeoBias{City: "Wien"},
		SkipGeocode: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Stadtpark"}, extraction.Simple.Locations)
	assert.Empty(t, g.regions)
}

func TestExtract_NoInput(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{name: model.ProviderGemini, results: []*model.Extraction{simpleResult()}}
	o := newTestOrchestrator(p, nil, nil)

	_, err := o.Extract(context.Background(), Input{}, Options{Mode: model.ModeDirect})
	assert.Error(t, err)
}

func TestExtract_RateLimited(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{name: model.ProviderGemini, results: []*model.Extraction{simpleResult("Stadtpark")}}
	limiter := ratelimit.New(1, time.Minute)
	o := newTestOrchestrator(p, nil, limiter)

	opts := Options{Mode: model.ModeDirect, Caller: "tenant-1"}
	_, err := o.Extract(context.Background(), Input{Text: "DISPO"}, opts)
	require.NoError(t, err)

	_, err = o.Extract(context.Background(), Input{Text: "DISPO"}, opts)
	require.Error(t, err)
	assert.True(t, resilience.IsRateLimit(err))
}

func TestExtract_ProviderResolutionError(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{name: model.ProviderGemini, results: []*model.Extraction{simpleResult()}}
	o := newTestOrchestrator(p, nil, nil)

	_, err := o.Extract(context.Background(), Input{Text: "DISPO"}, Options{
		Mode:     model.ModeDirect,
		Provider: model.ProviderOpenRouter,
	})
	assert.Error(t, err)
}

func TestVisionExtract_TwoStage(t *testing.T) {
	t.Parallel()

	draft := simpleResult("Stadtpark")
	final := simpleResult("Stadtpark", "Hafenstraße 3")
	p := &fakeProvider{name: model.ProviderGemini, results: []*model.Extraction{draft, final}}
	o := newTestOrchestrator(p, nil, nil)

	req := provider.Request{
		Content: &model.NormalizedContent{
			Text:      "ocr text",
			Image:     "aW1hZ2U=",
			ImageMIME: "image/jpeg",
			Kind:      model.KindPDF,
		},
		Mode: model.ModeVision,
	}
	extraction, err := o.visionExtract(context.Background(), p, req, Options{Mode: model.ModeVision}, testLogger())
	require.NoError(t, err)
	assert.Len(t, extraction.Locations(), 2)

	require.Len(t, p.requests, 2)
	assert.Equal(t, model.ModeDirect, p.requests[0].Mode)
	assert.Nil(t, p.requests[0].Draft)
	assert.Equal(t, model.ModeVision, p.requests[1].Mode)
	require.NotNil(t, p.requests[1].Draft)
	assert.Equal(t, draft.Simple, p.requests[1].Draft.Simple)
}

func TestVisionExtract_DraftFailureNonFatal(t *testing.T) {
	t.Parallel()

	final := simpleResult("Stadtpark")
	p := &fakeProvider{
		name:    model.ProviderGemini,
		errs:    []error{eris.New("draft blew up")},
		results: []*model.Extraction{nil, final},
	}
	o := newTestOrchestrator(p, nil, nil)

	req := provider.Request{
		Content: &model.NormalizedContent{Text: "ocr", Image: "aW1hZ2U=", ImageMIME: "image/png", Kind: model.KindImage},
		Mode:    model.ModeVision,
	}
	extraction, err := o.visionExtract(context.Background(), p, req, Options{Mode: model.ModeVision}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"Stadtpark"}, extraction.Locations())

	require.Len(t, p.requests, 2)
	assert.Nil(t, p.requests[1].Draft)
}

func TestExtractBatch_Isolation(t *testing.T) {
	t.Parallel()

	p := &batchProvider{
		byText: map[string]*model.Extraction{
			"good one": simpleResult("Stadtpark"),
			"good two": simpleResult("Hafenstraße 3"),
		},
	}
	o := newTestOrchestrator2(p)

	report := o.ExtractBatch(context.Background(), []Input{
		{Text: "good one"},
		{Text: "bad"},
		{Text: "good two"},
	}, Options{Mode: model.ModeDirect, SkipGeocode: true})

	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Results, 3)
	assert.NoError(t, report.Results[0].Err)
	assert.Error(t, report.Results[1].Err)
	assert.NoError(t, report.Results[2].Err)
}

// batchProvider keys results off request text so concurrent batch workers
// get deterministic outcomes.
type batchProvider struct {
	byText map[string]*model.Extraction
}

func (b *batchProvider) Name() model.ProviderName { return model.ProviderGemini }

func (b *batchProvider) Extract(ctx context.Context, req provider.Request) (*model.Extraction, error) {
	if res, ok := b.byText[req.Content.Text]; ok {
		return res, nil
	}
	return nil, &resilience.SchemaError{Detail: "no parsable output"}
}

func newTestOrchestrator2(p provider.Provider) *Orchestrator {
	normalizer := normalize.New(config.OCRConfig{})
	return New(normalizer, nil, p, p, postprocess.DefaultLexicon(), nil, nil, 2)
}
