package config

import "time"

// DefaultConfig returns a configuration that works out of the box.
func DefaultConfig() *Config {
	return &Config{
		Version: "1",
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		Storage: StorageConfig{
			DatabasePath: DefaultDatabasePath(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Engine: EngineConfig{
			DefaultModelID: "anthropic.claude-3-haiku-20240307-v1:0",
			MaxTokens:      4096,
			Temperature:    0.7,
			TopP:           0.9,
		},
	}
}
