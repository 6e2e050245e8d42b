package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a config that passes validation; tests mutate one
// field at a time.
func validConfig() *Config {
	return &Config{
		DatabricksHost:  "https://adb-123456.7.azuredatabricks.net",
		DatabricksToken: "dapi0123456789abcdef",
		GenieSpaceID:    "01ef1234abcd5678",
		WaitSeconds:     DefaultWaitSeconds,
		MaxRetries:      DefaultMaxRetries,
		ModelName:       DefaultModelName,
	}
}

func TestValidate_OK(t *testing.T) {
	t.Parallel()
	require.NoError(t, validConfig().Validate())
}

func TestValidate_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "missing token",
			mutate:  func(c *Config) { c.DatabricksToken = "" },
			wantErr: ErrMissingToken,
		},
		{
			name:    "whitespace token",
			mutate:  func(c *Config) { c.DatabricksToken = "   " },
			wantErr: ErrMissingToken,
		},
		{
			name:    "missing host",
			mutate:  func(c *Config) { c.DatabricksHost = "" },
			wantErr: ErrMissingHost,
		},
		{
			name:    "missing space id",
			mutate:  func(c *Config) { c.GenieSpaceID = "" },
			wantErr: ErrMissingSpaceID,
		},
		{
			name:    "host without scheme",
			mutate:  func(c *Config) { c.DatabricksHost = "adb-123.azuredatabricks.net" },
			wantErr: ErrInvalidHost,
		},
		{
			name:    "host with bad scheme",
			mutate:  func(c *Config) { c.DatabricksHost = "ftp://example.com" },
			wantErr: ErrInvalidHost,
		},
		{
			name:    "negative wait seconds",
			mutate:  func(c *Config) { c.WaitSeconds = -1 },
			wantErr: ErrInvalidWaitSeconds,
		},
		{
			name:    "zero max retries",
			mutate:  func(c *Config) { c.MaxRetries = 0 },
			wantErr: ErrInvalidMaxRetries,
		},
		{
			name:    "negative max retries",
			mutate:  func(c *Config) { c.MaxRetries = -3 },
			wantErr: ErrInvalidMaxRetries,
		},
		{
			name:    "empty model name",
			mutate:  func(c *Config) { c.ModelName = "" },
			wantErr: ErrInvalidModelName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidate_ZeroWaitSecondsAllowed(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.WaitSeconds = 0
	assert.NoError(t, cfg.Validate())
}
