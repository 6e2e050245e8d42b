package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrMissingToken indicates DATABRICKS_TOKEN is not set.
	ErrMissingToken = errors.New("missing Databricks token")

	// ErrMissingHost indicates DATABRICKS_HOST is not set.
	ErrMissingHost = errors.New("missing Databricks host")

	// ErrMissingSpaceID indicates GENIE_SPACE_ID is not set.
	ErrMissingSpaceID = errors.New("missing Genie space id")

	// ErrInvalidHost indicates the Databricks host is not a valid http(s) URL.
	ErrInvalidHost = errors.New("invalid Databricks host")

	// ErrInvalidWaitSeconds indicates the polling interval is negative.
	ErrInvalidWaitSeconds = errors.New("invalid wait seconds")

	// ErrInvalidMaxRetries indicates the retry budget is not positive.
	ErrInvalidMaxRetries = errors.New("invalid max retries")

	// ErrInvalidModelName indicates the model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")
)

// Validate checks the configuration and returns the first problem found.
// Wrapped sentinel errors support errors.Is at call sites.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabricksToken) == "" {
		return fmt.Errorf("%w: set DATABRICKS_TOKEN", ErrMissingToken)
	}
	if strings.TrimSpace(c.DatabricksHost) == "" {
		return fmt.Errorf("%w: set DATABRICKS_HOST", ErrMissingHost)
	}
	if strings.TrimSpace(c.GenieSpaceID) == "" {
		return fmt.Errorf("%w: set GENIE_SPACE_ID", ErrMissingSpaceID)
	}

	u, err := url.Parse(c.DatabricksHost)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidHost, c.DatabricksHost, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q: scheme must be http or https", ErrInvalidHost, c.DatabricksHost)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: %q: missing host", ErrInvalidHost, c.DatabricksHost)
	}

	// Zero is allowed: tests poll without sleeping.
	if c.WaitSeconds < 0 {
		return fmt.Errorf("%w: %d (must be >= 0)", ErrInvalidWaitSeconds, c.WaitSeconds)
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("%w: %d (must be > 0)", ErrInvalidMaxRetries, c.MaxRetries)
	}
	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model name must not be empty", ErrInvalidModelName)
	}

	return nil
}
