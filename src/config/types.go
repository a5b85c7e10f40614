// Package config loads and validates service configuration from defaults,
// an optional JSON file, and environment overrides.
package config

import "time"

// Config is the complete wirebird service configuration.
type Config struct {
	Version string `json:"version"`

	// Server configures the HTTP API.
	Server ServerConfig `json:"server"`

	// AWS configures the Bedrock clients.
	AWS AWSConfig `json:"aws"`

	// Storage configures the SQLite database.
	Storage StorageConfig `json:"storage"`

	// Logging configures structured log output.
	Logging LoggingConfig `json:"logging"`

	// Engine tunes the orchestration defaults.
	Engine EngineConfig `json:"engine"`
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port" validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// AWSConfig selects the Bedrock region.
type AWSConfig struct {
	Region string `json:"region" validate:"required"`
}

// StorageConfig locates the database file.
type StorageConfig struct {
	DatabasePath string `json:"database_path" validate:"required"`
}

// LoggingConfig controls log level and format.
type LoggingConfig struct {
	Level  string `json:"level" validate:"log_level"`
	Format string `json:"format" validate:"log_format"`
}

// EngineConfig tunes orchestration defaults.
type EngineConfig struct {
	DefaultModelID string  `json:"default_model_id"`
	MaxTokens      int     `json:"max_tokens" validate:"min=0"`
	Temperature    float64 `json:"temperature" validate:"min=0,max=1"`
	TopP           float64 `json:"top_p" validate:"min=0,max=1"`
}

// ValidationError reports one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e ValidationError) Error() string {
	return "config field " + e.Field + ": " + e.Message
}
