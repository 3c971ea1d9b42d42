package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	OCR      OCRConfig
	Vision   VisionConfig
	Extract  ExtractConfig
}

// DatabaseConfig holds the durable cache / failure-log store configuration.
// An empty DSN disables the durable tier; the pipeline runs in-process only.
type DatabaseConfig struct {
	DSN         string
	DialTimeout time.Duration
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Pdftoppm      string
	Tesseract     string
	TesseractLang string
	DPI           int
	TessdataDir   string
	MaxWorkers    int
}

// VisionConfig holds vision-model configuration. An empty APIKey disables
// the vision fallback strategy.
type VisionConfig struct {
	BaseURL           string
	APIKey            string
	Model             string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// ExtractConfig holds cascade behavior flags.
type ExtractConfig struct {
	MaxVisionPages int
	TenantID       string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:         getEnv("CACHE_DB_URL", ""),
			DialTimeout: getEnvAsDuration("CACHE_DB_DIAL_TIMEOUT", 3*time.Second),
		},
		OCR: OCRConfig{
			Pdftoppm:      getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			TesseractLang: getEnv("TESSERACT_LANG", "eng"),
			DPI:           getEnvAsInt("OCR_DPI", 150),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			MaxWorkers:    getEnvAsInt("OCR_MAX_WORKERS", 4),
		},
		Vision: VisionConfig{
			BaseURL:           getEnv("VISION_BASE_URL", "https://api.openai.com/v1"),
			APIKey:            getEnv("VISION_API_KEY", os.Getenv("OPENAI_API_KEY")),
			Model:             getEnv("VISION_MODEL", "gpt-4o-mini"),
			Timeout:           getEnvAsDuration("VISION_TIMEOUT", 45*time.Second),
			RequestsPerSecond: getEnvAsFloat64("VISION_RPS", 1),
		},
		Extract: ExtractConfig{
			MaxVisionPages: getEnvAsInt("MAX_VISION_PAGES", 3),
			TenantID:       getEnv("TENANT_ID", ""),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks the loaded configuration for unusable values.
func (c *Config) Validate() error {
	if c.OCR.DPI <= 0 {
		return NewAppError("CONFIG_ERROR", "OCR_DPI must be positive", ErrInvalidInput)
	}
	if c.OCR.MaxWorkers <= 0 {
		return NewAppError("CONFIG_ERROR", "OCR_MAX_WORKERS must be positive", ErrInvalidInput)
	}
	if c.Extract.MaxVisionPages <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_VISION_PAGES must be positive", ErrInvalidInput)
	}
	if c.Vision.APIKey != "" && c.Vision.Timeout <= 0 {
		return NewAppError("CONFIG_ERROR", "VISION_TIMEOUT must be positive", ErrInvalidInput)
	}
	return nil
}
