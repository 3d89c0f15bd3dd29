package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/setflow/callsheet-cli/internal/model"
	"github.com/setflow/callsheet-cli/internal/orchestrator"
)

var (
	extractFile        string
	extractText        string
	extractMIME        string
	extractMode        string
	extractProvider    string
	extractContentType string
	extractORKey       string
	extractORModel     string
	extractCrewFirst   bool
	extractBiasCity    string
	extractBiasCountry string
	extractCaller      string
	extractDryRun      bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract structured data from a single callsheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if extractFile == "" && extractText == "" {
			return eris.New("either --file or --text is required")
		}
		if extractFile != "" && extractText != "" {
			return eris.New("--file and --text are mutually exclusive")
		}

		opts, err := extractOptions()
		if err != nil {
			return err
		}

		o, err := buildOrchestrator()
		if err != nil {
			return err
		}

		extraction, err := o.Extract(ctx, orchestrator.Input{
			Text:     extractText,
			FilePath: extractFile,
			MIMEType: extractMIME,
		}, opts)
		if err != nil {
			return eris.Wrap(err, "extract")
		}

		return printExtraction(extraction)
	},
}

func extractOptions() (orchestrator.Options, error) {
	mode, err := parseMode(extractMode)
	if err != nil {
		return orchestrator.Options{}, err
	}
	prov, err := parseProvider(extractProvider)
	if err != nil {
		return orchestrator.Options{}, err
	}
	contentType, err := parseContentType(extractContentType)
	if err != nil {
		return orchestrator.Options{}, err
	}

	return orchestrator.Options{
		Mode:        mode,
		Provider:    prov,
		ContentType: contentType,
		CrewFirst:   extractCrewFirst,
		Credentials: model.Credentials{
			OpenRouterAPIKey: extractORKey,
			OpenRouterModel:  extractORModel,
		},
		Bias: model.GeoBias{
			City:    extractBiasCity,
			Country: extractBiasCountry,
		},
		Caller:      extractCaller,
		SkipGeocode: extractDryRun,
	}, nil
}

// printExtraction writes the populated schema branch as indented JSON.
func printExtraction(extraction *model.Extraction) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	switch {
	case extraction.CrewFirst != nil:
		return enc.Encode(extraction.CrewFirst)
	case extraction.Simple != nil:
		return enc.Encode(extraction.Simple)
	}

	zap.L().Warn("empty extraction result")
	return nil
}

// addExtractionFlags registers the options shared by extract and batch.
func addExtractionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&extractMode, "mode", "direct", "extraction mode: direct, agent or vision")
	cmd.Flags().StringVar(&extractProvider, "provider", "auto", "LLM provider: auto, gemini or openrouter")
	cmd.Flags().StringVar(&extractContentType, "content-type", "callsheet", "source framing: callsheet or email")
	cmd.Flags().StringVar(&extractORKey, "openrouter-key", "", "caller-supplied OpenRouter API key")
	cmd.Flags().StringVar(&extractORModel, "openrouter-model", "", "caller-supplied OpenRouter model slug")
	cmd.Flags().BoolVar(&extractCrewFirst, "crew-first", false, "emit the crew-first schema with typed locations")
	cmd.Flags().StringVar(&extractBiasCity, "bias-city", "", "geocoding bias city")
	cmd.Flags().StringVar(&extractBiasCountry, "bias-country", "", "geocoding bias country")
	cmd.Flags().StringVar(&extractCaller, "caller", "cli", "rate-limit caller key")
	cmd.Flags().BoolVar(&extractDryRun, "dry-run", false, "skip geocoding, print post-processed output only")
}

func init() {
	extractCmd.Flags().StringVar(&extractFile, "file", "", "path to a callsheet PDF, image, text or CSV file")
	extractCmd.Flags().StringVar(&extractText, "text", "", "pasted callsheet or email text")
	extractCmd.Flags().StringVar(&extractMIME, "mime", "", "MIME type override for --file")
	addExtractionFlags(extractCmd)
	rootCmd.AddCommand(extractCmd)
}
