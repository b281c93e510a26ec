// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment identifies the deployment environment.
type Environment string

// Known environments.
const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
	EnvTesting     Environment = "testing"
)

// Config is the top-level service configuration, assembled from environment
// variables in Load.
type Config struct {
	Environment Environment
	HTTPPort    string
	LogLevel    slog.Level

	Database    DatabaseConfig
	ObjectStore ObjectStoreConfig
	Providers   ProvidersConfig
	CORS        CORSConfig

	// Path to the model catalog YAML (models/actions/routing).
	CatalogPath string
	// Path to the architect prompt pack.
	PromptPath string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// ObjectStoreConfig holds S3-compatible object storage settings.
type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// ProvidersConfig carries per-vendor API keys. Empty keys mean the provider
// is not constructed.
type ProvidersConfig struct {
	GeminiAPIKey    string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	DeepSeekAPIKey  string
}

// CORSConfig holds CORS settings for the HTTP layer.
type CORSConfig struct {
	AllowedOrigins []string
}

// Load assembles configuration from the environment with validation and
// production-ready defaults.
func Load() (*Config, error) {
	dbPort, err := strconv.Atoi(getEnvOrDefault("POSTGRES_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid POSTGRES_PORT: %w", err)
	}

	maxOpen, _ := strconv.Atoi(getEnvOrDefault("DB_MAX_OPEN_CONNS", "25"))
	maxIdle, _ := strconv.Atoi(getEnvOrDefault("DB_MAX_IDLE_CONNS", "10"))

	maxLifetime, err := time.ParseDuration(getEnvOrDefault("DB_CONN_MAX_LIFETIME", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
	}
	maxIdleTime, err := time.ParseDuration(getEnvOrDefault("DB_CONN_MAX_IDLE_TIME", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_CONN_MAX_IDLE_TIME: %w", err)
	}

	cfg := &Config{
		Environment: Environment(getEnvOrDefault("ENVIRONMENT", string(EnvDevelopment))),
		HTTPPort:    getEnvOrDefault("HTTP_PORT", "8080"),
		LogLevel:    parseLogLevel(getEnvOrDefault("LOG_LEVEL", "info")),
		Database: DatabaseConfig{
			Host:            getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:            dbPort,
			User:            getEnvOrDefault("POSTGRES_USER", "courseforge"),
			Password:        os.Getenv("POSTGRES_PASSWORD"),
			Database:        getEnvOrDefault("POSTGRES_DB", "courseforge"),
			SSLMode:         getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    maxOpen,
			MaxIdleConns:    maxIdle,
			ConnMaxLifetime: maxLifetime,
			ConnMaxIdleTime: maxIdleTime,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			Bucket:    getEnvOrDefault("S3_BUCKET", "courseforge-materials"),
			UseSSL:    getEnvOrDefault("S3_USE_SSL", "false") == "true",
		},
		Providers: ProvidersConfig{
			GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
			AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
			OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
			DeepSeekAPIKey:  os.Getenv("DEEPSEEK_API_KEY"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitNonEmpty(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
		},
		CatalogPath: getEnvOrDefault("MODEL_CATALOG_PATH", "deploy/config/models.yaml"),
		PromptPath:  getEnvOrDefault("ARCHITECT_PROMPT_PATH", "prompts/architect/v1.yaml"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the assembled configuration.
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction, EnvTesting:
	default:
		return fmt.Errorf("%w: unknown ENVIRONMENT %q", ErrInvalidConfig, c.Environment)
	}
	if c.Database.Password == "" {
		return fmt.Errorf("%w: POSTGRES_PASSWORD is required", ErrInvalidConfig)
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("%w: DB_MAX_IDLE_CONNS (%d) cannot exceed DB_MAX_OPEN_CONNS (%d)",
			ErrInvalidConfig, c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if !c.Providers.HasAny() {
		return fmt.Errorf("%w: at least one of GEMINI_API_KEY, ANTHROPIC_API_KEY, OPENAI_API_KEY, DEEPSEEK_API_KEY must be set", ErrInvalidConfig)
	}
	return nil
}

// HasAny reports whether at least one provider credential is configured.
func (p ProvidersConfig) HasAny() bool {
	return p.GeminiAPIKey != "" || p.AnthropicAPIKey != "" || p.OpenAIAPIKey != "" || p.DeepSeekAPIKey != ""
}

// SetupLogging installs the default slog handler at the configured level.
func (c *Config) SetupLogging() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       c.LogLevel,
		ReplaceAttr: redactSensitive,
	})
	slog.SetDefault(slog.New(handler))
}

// sensitiveKeys are redacted from structured log output.
var sensitiveKeys = map[string]bool{
	"api_key":       true,
	"key_hash":      true,
	"password":      true,
	"secret":        true,
	"token":         true,
	"authorization": true,
}

func redactSensitive(_ []string, a slog.Attr) slog.Attr {
	if sensitiveKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, "[REDACTED]")
	}
	return a
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func splitNonEmpty(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
