package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// Storage driver selection: "memory" runs everything in-process for
	// local development and tests, "aws" wires the real backends.
	StorageDriver string

	// AWS configuration
	AWSRegion     string
	DynamoDBTable string
	EventBusName  string

	// Redis (ranking cache + workflow mailbox)
	RedisURL string

	// Object storage (workspace snapshots)
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// Generation
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	// Ranking data provider
	RankingEndpoint string
	RankingAPIKey   string

	// Project context defaults and per-project overrides (JSON)
	ProjectLocationName  string
	ProjectLanguageCode  string
	RequireContentReview bool
	ProjectOverrides     string

	// Workflow tuning
	OutlineWaitTimeout time.Duration

	// Logging and features
	LogLevel   string
	EnableCORS bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		StorageDriver: getEnv("STORAGE_DRIVER", "memory"),

		AWSRegion:     getEnv("AWS_REGION", "us-west-2"),
		DynamoDBTable: getEnv("DYNAMODB_TABLE", "contentforge"),
		EventBusName:  getEnv("EVENT_BUS_NAME", "contentforge-events"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "contentforge-workspaces"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),

		RankingEndpoint: getEnv("RANKING_ENDPOINT", ""),
		RankingAPIKey:   getEnv("RANKING_API_KEY", ""),

		ProjectLocationName:  getEnv("PROJECT_LOCATION_NAME", "United States"),
		ProjectLanguageCode:  getEnv("PROJECT_LANGUAGE_CODE", "en"),
		RequireContentReview: getEnvBool("REQUIRE_CONTENT_REVIEW", false),
		ProjectOverrides:     getEnv("PROJECT_OVERRIDES", ""),

		OutlineWaitTimeout: getEnvDuration("OUTLINE_WAIT_TIMEOUT", time.Hour),

		LogLevel:   getEnv("LOG_LEVEL", "info"),
		EnableCORS: getEnvBool("ENABLE_CORS", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case "memory", "aws":
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q (want \"memory\" or \"aws\")", c.StorageDriver)
	}

	if c.StorageDriver == "aws" {
		if c.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required")
		}
		if c.EventBusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required")
		}
		if c.MinioAccessKey == "" || c.MinioSecretKey == "" {
			return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required")
		}
	}

	if c.IsProduction() && c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required in production")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
