package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Load builds the effective configuration. Precedence, lowest to highest:
// built-in defaults, the JSON file at path (skipped when missing), then
// WIREBIRD_* environment variables. The result is validated before return.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = DefaultConfigPath()
	}
	if err := mergeFile(cfg, path); err != nil {
		return nil, err
	}
	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Host, "WIREBIRD_SERVER_HOST")
	setInt(&cfg.Server.Port, "WIREBIRD_SERVER_PORT")
	setString(&cfg.AWS.Region, "WIREBIRD_AWS_REGION")
	setString(&cfg.Storage.DatabasePath, "WIREBIRD_DATABASE_PATH")
	setString(&cfg.Logging.Level, "WIREBIRD_LOG_LEVEL")
	setString(&cfg.Logging.Format, "WIREBIRD_LOG_FORMAT")
	setString(&cfg.Engine.DefaultModelID, "WIREBIRD_DEFAULT_MODEL_ID")
	setInt(&cfg.Engine.MaxTokens, "WIREBIRD_MAX_TOKENS")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
