package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
	Cache    CacheConfig
	Webhook  WebhookConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	// Driver selects the backing store: "postgres" or "sqlite".
	Driver          string
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
}

// OCRConfig holds text-recognition configuration
type OCRConfig struct {
	// Tier1URL is the structure-aware converter endpoint; Tier2URL the
	// model-based fallback's generate endpoint.
	Tier1URL string
	Tier2URL string

	Tier2Model string

	// MinTextLenTier1 and MinTextLenTier2 are the quality-gate length floors
	// applied to each tier's output.
	MinTextLenTier1 int
	MinTextLenTier2 int

	// GarbageBurstLimit is the number of symbol bursts at which output is
	// rejected as garbage.
	GarbageBurstLimit int

	// Tier2Timeout applies to the first fallback attempt; Tier2RetryTimeout
	// replaces it on the second, slower attempt.
	Tier2Timeout      time.Duration
	Tier2RetryTimeout time.Duration

	MaxFileBytes  int64
	MinImageWidth int
	StageTimeout  time.Duration
}

// LLMConfig holds extraction-model configuration
type LLMConfig struct {
	BaseURL        string
	Model          string
	APIKey         string
	Temperature    float32
	Timeout        time.Duration
	MaxPromptChars int
}

// PipelineConfig holds orchestration configuration
type PipelineConfig struct {
	// MaxAttempts bounds validation-triggered re-extractions, not the
	// initial attempt.
	MaxAttempts int
	Workers     int
	QueueSize   int
}

// CacheConfig holds result-cache configuration
type CacheConfig struct {
	TTL     time.Duration
	Enabled bool
}

// WebhookConfig holds completion-notification configuration
type WebhookConfig struct {
	// MaxAttempts is the total number of delivery tries, first included.
	MaxAttempts uint
	BaseDelay   time.Duration
	Timeout     time.Duration
	Secret      string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			DSN:             getEnv("DB_URL", "file:docuflow.db?_pragma=journal_mode(WAL)"),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Server: ServerConfig{
			HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		OCR: OCRConfig{
			Tier1URL:          getEnv("OCR_TIER1_URL", "http://localhost:5001/v1alpha/convert/file"),
			Tier2URL:          getEnv("OCR_TIER2_URL", "http://localhost:11434/api/generate"),
			Tier2Model:        getEnv("OCR_TIER2_MODEL", "llama3.2-vision"),
			MinTextLenTier1:   getEnvAsInt("OCR_MIN_TEXT_LEN_TIER1", 100),
			MinTextLenTier2:   getEnvAsInt("OCR_MIN_TEXT_LEN_TIER2", 20),
			GarbageBurstLimit: getEnvAsInt("OCR_GARBAGE_BURST_LIMIT", 3),
			Tier2Timeout:      getEnvAsDuration("OCR_TIER2_TIMEOUT", 45*time.Second),
			Tier2RetryTimeout: getEnvAsDuration("OCR_TIER2_RETRY_TIMEOUT", 60*time.Second),
			MaxFileBytes:      int64(getEnvAsInt("OCR_MAX_FILE_BYTES", 10*1024*1024)),
			MinImageWidth:     getEnvAsInt("OCR_MIN_IMAGE_WIDTH", 1000),
			StageTimeout:      getEnvAsDuration("OCR_STAGE_TIMEOUT", 60*time.Second),
		},
		LLM: LLMConfig{
			BaseURL:        getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			Model:          getEnv("LLM_MODEL", "gpt-4o-mini"),
			APIKey:         getEnv("LLM_API_KEY", ""),
			Temperature:    getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			Timeout:        getEnvAsDuration("LLM_TIMEOUT", 45*time.Second),
			MaxPromptChars: getEnvAsInt("LLM_MAX_PROMPT_CHARS", 15000),
		},
		Pipeline: PipelineConfig{
			MaxAttempts: getEnvAsInt("PIPELINE_MAX_ATTEMPTS", 3),
			Workers:     getEnvAsInt("PIPELINE_WORKERS", 4),
			QueueSize:   getEnvAsInt("PIPELINE_QUEUE_SIZE", 64),
		},
		Cache: CacheConfig{
			TTL:     getEnvAsDuration("CACHE_TTL", time.Hour),
			Enabled: getEnvAsBool("CACHE_ENABLED", true),
		},
		Webhook: WebhookConfig{
			MaxAttempts: uint(getEnvAsInt("WEBHOOK_MAX_ATTEMPTS", 3)),
			BaseDelay:   getEnvAsDuration("WEBHOOK_BASE_DELAY", time.Second),
			Timeout:     getEnvAsDuration("WEBHOOK_TIMEOUT", 30*time.Second),
			Secret:      getEnv("WEBHOOK_SECRET", ""),
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

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
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

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Pipeline.MaxAttempts < 0 {
		return NewAppError("CONFIG_ERROR", "PIPELINE_MAX_ATTEMPTS must be non-negative", ErrInvalidInput)
	}
	return nil
}
