package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "github.com/itsadi-24/smart-note/internal/errors"
	"github.com/itsadi-24/smart-note/pkg/validation"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	AnalysisTimeout    time.Duration
	HealthTimeout      time.Duration
	MaxRequestBodySize int64
	MaxImagePixels     int64
	UploadJPEGQuality  int

	GeminiAPIKey      string
	GeminiMaxAttempts int
	Variant           Variant

	LogLevel string
	LogFile  string

	EventWorkers   int
	DatabaseURL    string
	AzureAccount   string
	AzureKey       string
	AzureContainer string
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// LoadDotEnv loads variables from .env files into the process environment.
// Missing files are not an error; variables already set are kept.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// LoadFromEnv builds the configuration from the environment. Any returned
// error is a configuration error and must stop the process.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 90*time.Second),
		AnalysisTimeout:    parseDurationOrDefault("ANALYSIS_TIMEOUT", 60*time.Second),
		HealthTimeout:      parseDurationOrDefault("HEALTH_TIMEOUT", 15*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024), // 10MB
		MaxImagePixels:     parseIntOrDefault("MAX_IMAGE_PIXELS", 40_000_000),
		UploadJPEGQuality:  int(parseIntOrDefault("UPLOAD_JPEG_QUALITY", 90)),

		GeminiAPIKey:      firstEnv("GOOGLE_API_KEY", "GEMINI_API_KEY", "API_KEY"),
		GeminiMaxAttempts: int(parseIntOrDefault("GEMINI_MAX_ATTEMPTS", 1)),

		EventWorkers:   int(parseIntOrDefault("EVENT_WORKERS", 2)),
		DatabaseURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),
		AzureAccount:   strings.TrimSpace(os.Getenv("AZURE_STORAGE_ACCOUNT")),
		AzureKey:       strings.TrimSpace(os.Getenv("AZURE_STORAGE_KEY")),
		AzureContainer: getEnvOrDefault("AZURE_EVENTS_CONTAINER", "analysis-events"),
	}

	cfg.LogLevel, cfg.LogFile = LogSettingsFromEnv()

	if cfg.GeminiAPIKey == "" {
		return nil, apperrors.NewConfigurationError("GOOGLE_API_KEY not found in environment variables", nil)
	}

	variant, err := resolveVariant()
	if err != nil {
		return nil, err
	}
	cfg.Variant = variant

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LogSettingsFromEnv returns LOG_LEVEL and LOG_FILE with defaults applied.
// It is usable before the rest of the configuration has been validated, so
// startup failures still reach the log file.
func LogSettingsFromEnv() (level, file string) {
	return getEnvOrDefault("LOG_LEVEL", "info"), getEnvOrDefault("LOG_FILE", "app.log")
}

func resolveVariant() (Variant, error) {
	variants := BuiltinVariants()
	if path := strings.TrimSpace(os.Getenv("VARIANTS_FILE")); path != "" {
		extra, err := LoadVariantsFile(path)
		if err != nil {
			return Variant{}, apperrors.NewConfigurationError("invalid VARIANTS_FILE", err)
		}
		for name, v := range extra {
			variants[name] = v
		}
	}

	name := getEnvOrDefault("VARIANT", VariantDetailed)
	v, ok := variants[name]
	if !ok {
		return Variant{}, apperrors.NewConfigurationError(fmt.Sprintf("unknown VARIANT %q", name), nil)
	}

	if model := strings.TrimSpace(os.Getenv("GEMINI_MODEL")); model != "" {
		v.Model = model
	}
	if path := strings.TrimSpace(os.Getenv("ANALYSIS_PROMPT_FILE")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Variant{}, apperrors.NewConfigurationError("cannot read ANALYSIS_PROMPT_FILE", err)
		}
		v.Prompt = string(data)
	}
	if prompt := os.Getenv("ANALYSIS_PROMPT"); strings.TrimSpace(prompt) != "" {
		v.Prompt = prompt
	}
	if origins := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); origins != "" {
		v.AllowedOrigins = splitList(origins)
	}
	v.Prompt = strings.TrimSpace(v.Prompt)
	return v, nil
}

func (c *Config) validate() error {
	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return apperrors.NewConfigurationError(fmt.Sprintf("invalid PORT: %q", c.Port), nil)
	}
	if c.MaxRequestBodySize <= 0 {
		return apperrors.NewConfigurationError(fmt.Sprintf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize), nil)
	}
	if c.MaxImagePixels <= 0 {
		return apperrors.NewConfigurationError(fmt.Sprintf("MAX_IMAGE_PIXELS must be > 0 (got %d)", c.MaxImagePixels), nil)
	}
	if c.UploadJPEGQuality < 1 || c.UploadJPEGQuality > 100 {
		return apperrors.NewConfigurationError(fmt.Sprintf("UPLOAD_JPEG_QUALITY must be in 1..100 (got %d)", c.UploadJPEGQuality), nil)
	}
	if c.GeminiMaxAttempts < 1 {
		return apperrors.NewConfigurationError(fmt.Sprintf("GEMINI_MAX_ATTEMPTS must be >= 1 (got %d)", c.GeminiMaxAttempts), nil)
	}
	if c.EventWorkers < 1 {
		return apperrors.NewConfigurationError(fmt.Sprintf("EVENT_WORKERS must be >= 1 (got %d)", c.EventWorkers), nil)
	}
	if c.RequestTimeout <= 0 || c.AnalysisTimeout <= 0 || c.HealthTimeout <= 0 {
		return apperrors.NewConfigurationError(fmt.Sprintf("timeouts must be > 0 (got request=%s, analysis=%s, health=%s)",
			c.RequestTimeout, c.AnalysisTimeout, c.HealthTimeout), nil)
	}
	// Model calls must end inside the request so their failure can still be
	// written as a soft failure.
	if c.AnalysisTimeout >= c.RequestTimeout || c.HealthTimeout >= c.RequestTimeout {
		return apperrors.NewConfigurationError(fmt.Sprintf("ANALYSIS_TIMEOUT and HEALTH_TIMEOUT must be shorter than REQUEST_TIMEOUT (got request=%s, analysis=%s, health=%s)",
			c.RequestTimeout, c.AnalysisTimeout, c.HealthTimeout), nil)
	}
	if (c.AzureAccount == "") != (c.AzureKey == "") {
		return apperrors.NewConfigurationError("AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY must be set together", nil)
	}

	if c.Variant.Model == "" {
		return apperrors.NewConfigurationError(fmt.Sprintf("variant %q has no model", c.Variant.Name), nil)
	}
	if c.Variant.Prompt == "" {
		return apperrors.NewConfigurationError(fmt.Sprintf("variant %q has no prompt", c.Variant.Name), nil)
	}
	origins, err := validation.NewOriginValidator().ValidateOrigins(c.Variant.AllowedOrigins)
	if err != nil {
		return apperrors.NewConfigurationError(fmt.Sprintf("variant %q has an invalid allowed origin", c.Variant.Name), err)
	}
	c.Variant.AllowedOrigins = origins
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
