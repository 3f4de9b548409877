package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Storage  StorageConfig
	DocAI    DocAIConfig
	Bulk     BulkConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr           string
	MaxUploadBytes int64
	CORSOrigins    []string
}

// StorageConfig holds object store configuration
type StorageConfig struct {
	BaseDir       string
	URLSecret     string
	PublicBaseURL string
	SignedURLTTL  time.Duration
}

// DocAIConfig holds the endpoints and credentials for the external
// recognition/classification/extraction services.
type DocAIConfig struct {
	RecognizeURL string
	ClassifyURL  string
	ExtractURL   string
	APIKey       string
	Model        string
	Timeout      time.Duration
}

// BulkConfig holds bulk orchestrator tuning.
type BulkConfig struct {
	Workers     int
	ItemTimeout time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			Addr:           getEnv("HTTP_ADDR", ":8080"),
			MaxUploadBytes: getEnvAsInt64("MAX_UPLOAD_BYTES", 25*1024*1024),
			CORSOrigins:    getEnvAsSlice("CORS_ORIGINS", []string{"http://localhost:5173"}),
		},
		Storage: StorageConfig{
			BaseDir:       getEnv("STORAGE_DIR", "./data/objects"),
			URLSecret:     getEnv("STORAGE_URL_SECRET", ""),
			PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
			SignedURLTTL:  getEnvAsDuration("SIGNED_URL_TTL", 10*time.Minute),
		},
		DocAI: DocAIConfig{
			RecognizeURL: getEnv("DOCAI_RECOGNIZE_URL", ""),
			ClassifyURL:  getEnv("DOCAI_CLASSIFY_URL", ""),
			ExtractURL:   getEnv("DOCAI_EXTRACT_URL", ""),
			APIKey:       getEnv("DOCAI_API_KEY", ""),
			Model:        getEnv("DOCAI_MODEL", "gpt-4o-mini"),
			Timeout:      getEnvAsDuration("DOCAI_TIMEOUT", 45*time.Second),
		},
		Bulk: BulkConfig{
			Workers:     getEnvAsInt("BULK_WORKERS", 4),
			ItemTimeout: getEnvAsDuration("BULK_ITEM_TIMEOUT", 3*time.Minute),
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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
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

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Storage.URLSecret == "" {
		return NewAppError("CONFIG_ERROR", "STORAGE_URL_SECRET is required", ErrInvalidInput)
	}
	if c.DocAI.RecognizeURL == "" || c.DocAI.ClassifyURL == "" || c.DocAI.ExtractURL == "" {
		return NewAppError("CONFIG_ERROR", "DOCAI_RECOGNIZE_URL, DOCAI_CLASSIFY_URL and DOCAI_EXTRACT_URL are required", ErrInvalidInput)
	}
	if c.DocAI.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "DOCAI_API_KEY is required", ErrInvalidInput)
	}
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	return nil
}
