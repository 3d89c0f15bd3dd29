// Package orchestrator composes the extraction pipeline: input
// normalization, provider resolution, mode execution, schema verification,
// location post-processing and geocoding normalization, in that fixed order.
package orchestrator

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/setflow/callsheet-cli/internal/geobias"
	"github.com/setflow/callsheet-cli/internal/model"
	"github.com/setflow/callsheet-cli/internal/normalize"
	"github.com/setflow/callsheet-cli/internal/postprocess"
	"github.com/setflow/callsheet-cli/internal/provider"
	"github.com/setflow/callsheet-cli/internal/ratelimit"
	"github.com/setflow/callsheet-cli/internal/vision"
	"github.com/setflow/callsheet-cli/pkg/geocode"
)

// Input is one document to extract: pasted text or a file path, never both.
type Input struct {
	Text     string
	FilePath string
	MIMEType string
}

// Source names the input for logs and batch reports.
func (in Input) Source() string {
	if in.FilePath != "" {
		return in.FilePath
	}
	return "<text>"
}

// Options carries the per-request extraction settings.
type Options struct {
	Mode        model.Mode
	Provider    model.ProviderName
	Credentials model.Credentials
	CrewFirst   bool
	ContentType model.ContentType
	Bias        model.GeoBias

	// Caller keys the outbound rate limiter.
	Caller string

	// SkipGeocode stops after post-processing (dry runs).
	SkipGeocode bool
}

// Orchestrator wires the pipeline stages together. All dependencies are
// injected at construction; an Orchestrator is safe for concurrent use.
type Orchestrator struct {
	normalizer    *normalize.Normalizer
	visionBuilder *vision.Builder
	gemini        provider.Provider
	openRouter    provider.Provider
	lexicon       *postprocess.Lexicon
	geocoder      geocode.Client
	limiter       *ratelimit.Window
	batchLimit    int
}

// New creates an Orchestrator. geocoder may be nil, in which case locations
// pass through as their bias-prepared strings.
func New(
	normalizer *normalize.Normalizer,
	visionBuilder *vision.Builder,
	gemini provider.Provider,
	openRouter provider.Provider,
	lexicon *postprocess.Lexicon,
	geocoder geocode.Client,
	limiter *ratelimit.Window,
	batchLimit int,
) *Orchestrator {
	if batchLimit <= 0 {
		batchLimit = 5
	}
	return &Orchestrator{
		normalizer:    normalizer,
		visionBuilder: visionBuilder,
		gemini:        gemini,
		openRouter:    openRouter,
		lexicon:       lexicon,
		geocoder:      geocoder,
		limiter:       limiter,
		batchLimit:    batchLimit,
	}
}

// Extract runs the full pipeline for one document. The result is either a
// fully populated extraction or an error; no partial records escape.
func (o *Orchestrator) Extract(ctx context.Context, in Input, opts Options) (*model.Extraction, error) {
	content, err := o.normalizeInput(ctx, in, opts)
	if err != nil {
		return nil, err
	}

	resolved, err := provider.Resolve(opts.Provider, opts.Credentials, o.gemini, o.openRouter)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(
		zap.String("source", in.Source()),
		zap.String("provider", string(resolved.Name())),
		zap.String("mode", string(opts.Mode)),
	)

	req := provider.Request{
		Content:     content,
		Mode:        opts.Mode,
		ContentType: opts.ContentType,
		CrewFirst:   opts.CrewFirst,
		Bias:        opts.Bias,
		Credentials: opts.Credentials,
	}

	var extraction *model.Extraction
	if opts.Mode == model.ModeVision && content.Image != "" {
		extraction, err = o.visionExtract(ctx, resolved, req, opts, log)
	} else {
		extraction, err = o.callProvider(ctx, resolved, req, opts)
	}
	if err != nil {
		return nil, err
	}

	o.postProcess(extraction, content.Text)

	if !opts.SkipGeocode {
		o.geocodeLocations(ctx, extraction, opts.Bias, log)
	}

	log.Info("extraction complete",
		zap.Int("locations", len(extraction.Locations())),
	)
	return extraction, nil
}

// visionExtract runs the two-stage hybrid pipeline: a text-only draft pass
// first, then the vision refinement with the draft embedded in its prompt.
// A failed draft pass degrades to image+text context only.
func (o *Orchestrator) visionExtract(ctx context.Context, resolved provider.Provider, req provider.Request, opts Options, log *zap.Logger) (*model.Extraction, error) {
	if draft := o.textDraft(ctx, resolved, req, opts, log); draft != nil {
		req.Draft = draft
	}
	return o.callProvider(ctx, resolved, req, opts)
}

// textDraft attempts the preliminary text-only parse. Nil means no usable
// draft; vision proceeds without one.
func (o *Orchestrator) textDraft(ctx context.Context, resolved provider.Provider, req provider.Request, opts Options, log *zap.Logger) *model.Extraction {
	if strings.TrimSpace(req.Content.Text) == "" {
		return nil
	}

	draftReq := req
	draftReq.Mode = model.ModeDirect
	draft, err := o.callProvider(ctx, resolved, draftReq, opts)
	if err != nil {
		log.Info("vision: text draft pass failed, continuing image-only", zap.Error(err))
		return nil
	}
	return draft
}

// callProvider gates one provider invocation through the rate limiter.
func (o *Orchestrator) callProvider(ctx context.Context, resolved provider.Provider, req provider.Request, opts Options) (*model.Extraction, error) {
	if o.limiter != nil {
		if err := o.limiter.Allow(opts.Caller); err != nil {
			return nil, err
		}
	}
	return resolved.Extract(ctx, req)
}

// normalizeInput produces the single NormalizedContent for the request.
func (o *Orchestrator) normalizeInput(ctx context.Context, in Input, opts Options) (*model.NormalizedContent, error) {
	switch {
	case in.Text != "":
		return o.normalizer.FromText(in.Text)
	case in.FilePath != "":
		if opts.Mode == model.ModeVision {
			return o.visionBuilder.Build(ctx, in.FilePath, in.MIMEType)
		}
		return o.normalizer.FromFile(ctx, in.FilePath, in.MIMEType, opts.Mode)
	}
	return nil, eris.New("no_input: neither text nor file provided")
}

// postProcess applies the location classifier and list cleanups in place.
// Crew-first output carries its classification in location_type, so it is
// only deduplicated; the keyword filter applies to the untyped simple list.
func (o *Orchestrator) postProcess(extraction *model.Extraction, sourceText string) {
	if extraction.CrewFirst != nil {
		extraction.KeepLocations(postprocess.Dedupe(extraction.Locations()))
		extraction.CrewFirst.ProductionCompany = strings.TrimSpace(extraction.CrewFirst.ProductionCompany)
		return
	}

	kept := o.lexicon.Filter(extraction.Locations(), sourceText)
	extraction.KeepLocations(kept)
	extraction.Simple.ProductionCompanies = postprocess.CleanCompanies(extraction.Simple.ProductionCompanies)
}

// geocodeLocations completes each surviving location with the caller's bias
// and resolves it through the batch geocoder. Geocoding failure is the one
// non-fatal stage: addresses pass through as their bias-prepared strings.
func (o *Orchestrator) geocodeLocations(ctx context.Context, extraction *model.Extraction, bias model.GeoBias, log *zap.Logger) {
	originals := extraction.Locations()
	if len(originals) == 0 {
		return
	}

	prepared := geobias.Prepare(originals, bias)

	resolved := make(map[string]string, len(originals))
	for i, orig := range originals {
		resolved[strings.TrimSpace(orig)] = prepared[i]
	}

	if o.geocoder != nil {
		region := strings.ToLower(geobias.CountryCode(bias.Country))
		results, err := o.geocoder.BatchGeocode(ctx, prepared, region)
		if err != nil {
			log.Warn("geocoding failed, keeping bias-prepared addresses", zap.Error(err))
		} else {
			for i, res := range results {
				if res.Matched && res.FormattedAddress != "" {
					resolved[strings.TrimSpace(originals[i])] = res.FormattedAddress
				}
			}
		}
	}

	extraction.SetResolvedLocations(resolved)
}
