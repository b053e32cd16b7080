package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig
	Media   MediaConfig
	Fetch   FetchConfig
	Import  ImportConfig
	CORS    CORSConfig
	Log     LogConfig
	Metrics MetricsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// PublicBaseURL prefixes the image URLs returned to clients.
	PublicBaseURL string
}

// MediaConfig holds media store configuration
type MediaConfig struct {
	UploadDir      string
	MaxUploadBytes int64
}

// FetchConfig holds remote image download configuration
type FetchConfig struct {
	Timeout  time.Duration
	MaxBytes int64
}

// ImportConfig holds bulk import configuration
type ImportConfig struct {
	AbortOnInvalid bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Pretty bool
}

type MetricsConfig struct {
	Namespace string
}

// Load loads the application configuration from environment variables.
// The database path is read by the sqlite package itself (SQLITE_DB_PATH).
func Load() *Config {
	// Load environment variables from .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second),
			PublicBaseURL:   strings.TrimSuffix(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		},
		Media: MediaConfig{
			UploadDir:      getEnv("UPLOAD_DIR", "./uploads"),
			MaxUploadBytes: getEnvAsInt64("MAX_UPLOAD_BYTES", 10<<20),
		},
		Fetch: FetchConfig{
			Timeout:  getEnvAsDuration("FETCH_TIMEOUT", 15*time.Second),
			MaxBytes: getEnvAsInt64("FETCH_MAX_BYTES", 10<<20),
		},
		Import: ImportConfig{
			AbortOnInvalid: getEnvAsBool("IMPORT_ABORT_ON_INVALID", false),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://127.0.0.1:5500", "http://localhost:5500"}),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getEnvAsBool("LOG_PRETTY", false),
		},
		Metrics: MetricsConfig{
			Namespace: getEnv("METRICS_NAMESPACE", "catalog"),
		},
	}
}

// Helper functions to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
