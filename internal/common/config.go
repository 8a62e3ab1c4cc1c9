package common

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Storage  StorageConfig
	Extract  ExtractConfig
	LLM      LLMConfig
	Queue    QueueConfig
	LogLevel string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // postgres | sqlite
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr       string
	HTTPAddr       string
	RequestTimeout time.Duration
}

type StorageConfig struct {
	UploadDir   string
	MaxFileSize int64
}

type ExtractConfig struct {
	MinTextChars int
	EnableOCR    bool
	PDFToText    string
	PDFToPPM     string
	Tesseract    string
	OCRLang      string
	TessdataDir  string
	OCRDPI       int
	CacheDir     string
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	BaseURL          string
	Model            string
	APIKey           string
	Temperature      float32
	MaxTokens        int
	Timeout          time.Duration
	MaxRetries       int
	MaxPromptChars   int
	RequestsPerSec   float64
	Burst            int
	BreakerFailures  uint32
	BreakerOpenFor   time.Duration
	FallbackOnFailed bool
}

type QueueConfig struct {
	Backend  string // memory | redis
	RedisURL string
	RedisKey string
	Workers  int
	Size     int
	Timeout  time.Duration
}

// LoadConfig loads .env files (if any) and then reads the environment.
// Variables already set in the process environment win over .env values.
func LoadConfig(envFiles ...string) (*Config, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return nil, NewAppError("CONFIG_ERROR", "load env file", err)
	}
	return FromEnv(), nil
}

func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// FromEnv builds a Config from environment variables only.
func FromEnv() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr:       getEnv("GRPC_ADDR", ":9090"),
			HTTPAddr:       getEnv("HTTP_ADDR", ":8000"),
			RequestTimeout: getEnvAsDuration("HTTP_REQUEST_TIMEOUT", 60*time.Second),
		},
		Storage: StorageConfig{
			UploadDir:   getEnv("UPLOAD_DIR", "./uploads"),
			MaxFileSize: getEnvAsInt64("MAX_FILE_SIZE", 52428800),
		},
		Extract: ExtractConfig{
			MinTextChars: getEnvAsInt("MIN_TEXT_CHARS", 100),
			EnableOCR:    getEnvAsBool("ENABLE_OCR", false),
			PDFToText:    getEnv("PDFTOTEXT_BIN", "pdftotext"),
			PDFToPPM:     getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Tesseract:    getEnv("TESSERACT_BIN", "tesseract"),
			OCRLang:      getEnv("OCR_LANG", "eng"),
			TessdataDir:  getEnv("TESSDATA_PREFIX", ""),
			OCRDPI:       getEnvAsInt("OCR_DPI", 300),
			CacheDir:     getEnv("ARTIFACT_CACHE_DIR", "./tmp"),
		},
		LLM: LLMConfig{
			BaseURL:          getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:            getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:           getEnv("OPENAI_API_KEY", ""),
			Temperature:      getEnvAsFloat32("OPENAI_TEMPERATURE", 0.1),
			MaxTokens:        getEnvAsInt("OPENAI_MAX_TOKENS", 8192),
			Timeout:          getEnvAsDuration("OPENAI_TIMEOUT", 90*time.Second),
			MaxRetries:       getEnvAsInt("OPENAI_MAX_RETRIES", 3),
			MaxPromptChars:   getEnvAsInt("LLM_MAX_PROMPT_CHARS", 50000),
			RequestsPerSec:   getEnvAsFloat64("LLM_RPS", 2),
			Burst:            getEnvAsInt("LLM_BURST", 2),
			BreakerFailures:  uint32(getEnvAsInt("LLM_BREAKER_FAILURES", 3)),
			BreakerOpenFor:   getEnvAsDuration("LLM_BREAKER_OPEN_FOR", 30*time.Second),
			FallbackOnFailed: getEnvAsBool("LLM_FALLBACK", true),
		},
		Queue: QueueConfig{
			Backend:  strings.ToLower(getEnv("QUEUE_BACKEND", "memory")),
			RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
			RedisKey: getEnv("REDIS_QUEUE_KEY", "contracts:jobs"),
			Workers:  getEnvAsInt("QUEUE_WORKERS", 2),
			Size:     getEnvAsInt("QUEUE_SIZE", 100),
			Timeout:  getEnvAsDuration("EXTRACTION_TIMEOUT", 300*time.Second),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
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

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be postgres or sqlite", ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" && c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR or HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Storage.UploadDir == "" {
		return NewAppError("CONFIG_ERROR", "UPLOAD_DIR is required", ErrInvalidInput)
	}
	if c.Storage.MaxFileSize <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_FILE_SIZE must be positive", ErrInvalidInput)
	}
	switch c.Queue.Backend {
	case "memory":
	case "redis":
		if c.Queue.RedisURL == "" {
			return NewAppError("CONFIG_ERROR", "REDIS_URL is required for the redis queue", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", "QUEUE_BACKEND must be memory or redis", ErrInvalidInput)
	}
	if c.Queue.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "QUEUE_WORKERS must be positive", ErrInvalidInput)
	}
	return nil
}
