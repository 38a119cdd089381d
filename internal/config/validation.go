package config

import (
	"fmt"
	"strings"
)

// Validate checks all configuration values and returns the first violation.
// Sentinel errors allow callers to match with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: model must not be empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.ClassifierModel) == "" {
		return fmt.Errorf("%w: classifier model must not be empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder model must not be empty", ErrInvalidEmbedderModel)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %v (must be in [0, 2])", ErrInvalidTemperature, c.Temperature)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidPostgresDBName)
	}

	if c.SearchWidth < 1 || c.SearchWidth > 16 {
		return fmt.Errorf("%w: %d (must be in [1, 16])", ErrInvalidSearchWidth, c.SearchWidth)
	}
	if c.SearchTopK < 1 || c.SearchTopK > 10 {
		return fmt.Errorf("%w: %d (must be in [1, 10])", ErrInvalidTopK, c.SearchTopK)
	}
	if c.SummaryEvery < 1 || c.SummaryEvery > 50 {
		return fmt.Errorf("%w: %d (must be in [1, 50])", ErrInvalidSummaryInterval, c.SummaryEvery)
	}

	return nil
}
