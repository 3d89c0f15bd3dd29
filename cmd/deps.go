package main

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/setflow/callsheet-cli/internal/model"
	"github.com/setflow/callsheet-cli/internal/normalize"
	"github.com/setflow/callsheet-cli/internal/orchestrator"
	"github.com/setflow/callsheet-cli/internal/postprocess"
	"github.com/setflow/callsheet-cli/internal/provider/gemini"
	"github.com/setflow/callsheet-cli/internal/provider/openrouter"
	"github.com/setflow/callsheet-cli/internal/provider/tools"
	"github.com/setflow/callsheet-cli/internal/ratelimit"
	"github.com/setflow/callsheet-cli/internal/vision"
	"github.com/setflow/callsheet-cli/pkg/geocode"
)

// buildOrchestrator assembles the pipeline from configuration. The geocoder
// is optional: without an API key locations stay bias-prepared strings.
func buildOrchestrator() (*orchestrator.Orchestrator, error) {
	normalizer := normalize.New(cfg.OCR)
	visionBuilder := vision.New(normalizer, cfg.Extract)

	var geocoder geocode.Client
	if cfg.Geocode.Key != "" {
		geocoder = geocode.NewClient(cfg.Geocode.Key, geocode.WithRateLimit(cfg.Geocode.RPS))
	} else {
		zap.L().Warn("no geocoding key configured, addresses will not be resolved")
	}

	lexicon, err := loadLexicon()
	if err != nil {
		return nil, err
	}

	exec := tools.NewExecutor(geocoder)
	geminiClient := gemini.NewClient(cfg.Gemini.Key, gemini.WithBaseURL(cfg.Gemini.BaseURL))
	geminiProvider := gemini.New(geminiClient, cfg.Gemini.Model, exec)
	openRouterProvider := openrouter.New(geminiProvider, openrouter.WithCrewAgent(geminiProvider))

	limiter := ratelimit.New(cfg.RateLimit.MaxCalls, time.Duration(cfg.RateLimit.WindowSecs)*time.Second)

	return orchestrator.New(
		normalizer,
		visionBuilder,
		geminiProvider,
		openRouterProvider,
		lexicon,
		geocoder,
		limiter,
		cfg.Extract.BatchConcurrency,
	), nil
}

func loadLexicon() (*postprocess.Lexicon, error) {
	if cfg.Extract.LexiconPath != "" {
		lex, err := postprocess.LoadLexicon(cfg.Extract.LexiconPath)
		if err != nil {
			return nil, eris.Wrap(err, "load lexicon")
		}
		return lex, nil
	}
	return postprocess.DefaultLexicon(), nil
}

func parseMode(s string) (model.Mode, error) {
	switch m := model.Mode(s); m {
	case model.ModeDirect, model.ModeAgent, model.ModeVision:
		return m, nil
	}
	return "", eris.Errorf("unknown mode %q (direct, agent, vision)", s)
}

func parseProvider(s string) (model.ProviderName, error) {
	switch p := model.ProviderName(s); p {
	case model.ProviderAuto, model.ProviderGemini, model.ProviderOpenRouter:
		return p, nil
	}
	return "", eris.Errorf("unknown provider %q (auto, gemini, openrouter)", s)
}

func parseContentType(s string) (model.ContentType, error) {
	switch c := model.ContentType(s); c {
	case model.ContentCallsheet, model.ContentEmail:
		return c, nil
	}
	return "", eris.Errorf("unknown content type %q (callsheet, email)", s)
}
