// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Gemini    GeminiConfig    `yaml:"gemini" mapstructure:"gemini"`
	OCR       OCRConfig       `yaml:"ocr" mapstructure:"ocr"`
	Geocode   GeocodeConfig   `yaml:"geocode" mapstructure:"geocode"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// GeminiConfig holds the server-funded default provider settings. OpenRouter
// credentials are caller-supplied per request and deliberately have no place
// here.
type GeminiConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// OCRConfig configures the external text-extraction tools.
type OCRConfig struct {
	TesseractPath string `yaml:"tesseract_path" mapstructure:"tesseract_path"`
	PdfToPpmPath  string `yaml:"pdftoppm_path" mapstructure:"pdftoppm_path"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	Languages     string `yaml:"languages" mapstructure:"languages"`
	RenderDPI     int    `yaml:"render_dpi" mapstructure:"render_dpi"`
}

// GeocodeConfig configures the batch geocoding backend.
type GeocodeConfig struct {
	Key string  `yaml:"key" mapstructure:"key"`
	RPS float64 `yaml:"rps" mapstructure:"rps"`
}

// ExtractConfig configures extraction behavior.
type ExtractConfig struct {
	LexiconPath      string `yaml:"lexicon_path" mapstructure:"lexicon_path"`
	BatchConcurrency int    `yaml:"batch_concurrency" mapstructure:"batch_concurrency"`
	VisionDPI        int    `yaml:"vision_dpi" mapstructure:"vision_dpi"`
	VisionMaxDim     int    `yaml:"vision_max_dim" mapstructure:"vision_max_dim"`
	VisionQuality    int    `yaml:"vision_quality" mapstructure:"vision_quality"`
}

// RateLimitConfig configures the outbound LLM call limiter.
type RateLimitConfig struct {
	MaxCalls   int `yaml:"max_calls" mapstructure:"max_calls"`
	WindowSecs int `yaml:"window_secs" mapstructure:"window_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CALLSHEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Credential keys get empty defaults so AutomaticEnv
	// values reach Unmarshal.
	v.SetDefault("gemini.key", "")
	v.SetDefault("geocode.key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("ocr.tesseract_path", "tesseract")
	v.SetDefault("ocr.pdftoppm_path", "pdftoppm")
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("ocr.languages", "deu+eng+spa")
	v.SetDefault("ocr.render_dpi", 200)
	v.SetDefault("geocode.rps", 10)
	v.SetDefault("extract.batch_concurrency", 5)
	v.SetDefault("extract.vision_dpi", 300)
	v.SetDefault("extract.vision_max_dim", 2048)
	v.SetDefault("extract.vision_quality", 85)
	v.SetDefault("rate_limit.max_calls", 30)
	v.SetDefault("rate_limit.window_secs", 60)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
