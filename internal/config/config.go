// Package config provides application configuration with multi-source priority.
//
// Sources, highest priority first:
//  1. Environment variables (DATABRICKS_TOKEN, DATABRICKS_HOST, GENIE_SPACE_ID, ...)
//  2. Config file (~/.dbgenie/config.yaml, or ./config.yaml)
//  3. Defaults
//
// The Genie credential, workspace host and space id are mandatory: Load fails
// before any query can run when one is absent. Sensitive fields are masked in
// MarshalJSON; never log a Config except through its String method.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	// DefaultWaitSeconds is the fixed polling cadence between Genie status
	// checks, in seconds.
	DefaultWaitSeconds = 5

	// DefaultMaxRetries is the polling retry budget for one Genie query.
	DefaultMaxRetries = 20

	// DefaultModelName is the model used by the chat agent.
	DefaultModelName = "googleai/gemini-2.5-flash"

	// DefaultMaxTurns bounds the agentic tool-calling loop per user turn.
	DefaultMaxTurns = 5

	// DefaultHistoryLimit is the number of stored messages loaded into the
	// model context per session.
	DefaultHistoryLimit = 50
)

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON. When adding a new
// secret field, update MarshalJSON as well.
type Config struct {
	// Databricks Genie connection (all three are mandatory)
	DatabricksHost  string `mapstructure:"databricks_host" json:"databricks_host"`
	DatabricksToken string `mapstructure:"databricks_token" json:"databricks_token"` // SENSITIVE: masked in MarshalJSON
	GenieSpaceID    string `mapstructure:"genie_space_id" json:"genie_space_id"`

	// Genie polling behavior
	WaitSeconds int `mapstructure:"wait_seconds" json:"wait_seconds"`
	MaxRetries  int `mapstructure:"max_retries" json:"max_retries"`

	// Chat agent configuration
	ModelName    string `mapstructure:"model_name" json:"model_name"`
	MaxTurns     int    `mapstructure:"max_turns" json:"max_turns"`
	HistoryLimit int    `mapstructure:"history_limit" json:"history_limit"`

	// Local chat-history database. Empty means ~/.dbgenie/dbgenie.db.
	DatabasePath string `mapstructure:"database_path" json:"database_path"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".dbgenie")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults carry it.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(configDir, "dbgenie.db")
	}

	// Fail fast: a query must never start against a half-configured client.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("wait_seconds", DefaultWaitSeconds)
	viper.SetDefault("max_retries", DefaultMaxRetries)
	viper.SetDefault("model_name", DefaultModelName)
	viper.SetDefault("max_turns", DefaultMaxTurns)
	viper.SetDefault("history_limit", DefaultHistoryLimit)
}

// bindEnvVariables binds environment variables explicitly.
// The three Databricks variables keep the names the Genie docs use; the rest
// are prefixed with DBGENIE_.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		// Hardcoded keys cannot fail; a panic here is a bug, not a runtime error.
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("databricks_token", "DATABRICKS_TOKEN")
	mustBind("databricks_host", "DATABRICKS_HOST")
	mustBind("genie_space_id", "GENIE_SPACE_ID")

	mustBind("wait_seconds", "DBGENIE_WAIT_SECONDS")
	mustBind("max_retries", "DBGENIE_MAX_RETRIES")
	mustBind("model_name", "DBGENIE_MODEL_NAME")
	mustBind("database_path", "DBGENIE_DATABASE_PATH")
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked; longer ones keep the first and last two characters for debugging.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.DatabricksToken = maskSecret(a.DatabricksToken)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
