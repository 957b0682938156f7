package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gobwas/glob"

	"github.com/Iron-Ham/spatialbridge/internal/feature/barcode"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "dispatch.workers")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Bounds for numeric settings
const (
	maxTickRate  = 1000
	maxWorkers   = 64
	maxLogSizeMB = 1000
)

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateHost()...)
	errors = append(errors, c.validateDispatch()...)
	errors = append(errors, c.validateFeatures()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateHost validates the HostConfig
func (c *Config) validateHost() []ValidationError {
	var errors []ValidationError

	if c.Host.TickRate < 1 || c.Host.TickRate > maxTickRate {
		errors = append(errors, ValidationError{
			Field:   "host.tick_rate",
			Value:   c.Host.TickRate,
			Message: fmt.Sprintf("must be between 1 and %d", maxTickRate),
		})
	}

	return errors
}

// validateDispatch validates the DispatchConfig
func (c *Config) validateDispatch() []ValidationError {
	var errors []ValidationError

	if c.Dispatch.Workers < 1 || c.Dispatch.Workers > maxWorkers {
		errors = append(errors, ValidationError{
			Field:   "dispatch.workers",
			Value:   c.Dispatch.Workers,
			Message: fmt.Sprintf("must be between 1 and %d", maxWorkers),
		})
	}

	return errors
}

// validateFeatures validates the FeaturesConfig
func (c *Config) validateFeatures() []ValidationError {
	var errors []ValidationError

	for i, pattern := range c.Features.Enabled {
		if _, err := glob.Compile(pattern); err != nil {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("features.enabled[%d]", i),
				Value:   pattern,
				Message: fmt.Sprintf("invalid glob pattern: %v", err),
			})
		}
	}

	types, err := barcode.ParseTypes(c.Features.Barcode.Types)
	if err != nil {
		errors = append(errors, ValidationError{
			Field:   "features.barcode.types",
			Value:   c.Features.Barcode.Types,
			Message: err.Error(),
		})
	} else if types == 0 {
		errors = append(errors, ValidationError{
			Field:   "features.barcode.types",
			Value:   c.Features.Barcode.Types,
			Message: "at least one barcode type is required",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

// BarcodeSettings converts the configured scanner settings.
func (c *BarcodeConfig) BarcodeSettings() (barcode.Settings, error) {
	types, err := barcode.ParseTypes(c.Types)
	if err != nil {
		return barcode.Settings{}, err
	}
	return barcode.Settings{Types: types, FullAnalysis: c.FullAnalysis}, nil
}

// FeatureMatcher reports whether a feature name matches any enabled pattern.
func (c *FeaturesConfig) FeatureMatcher() (func(name string) bool, error) {
	globs := make([]glob.Glob, 0, len(c.Features()))
	for _, pattern := range c.Features() {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid feature pattern %q: %w", pattern, err)
		}
		globs = append(globs, g)
	}
	return func(name string) bool {
		for _, g := range globs {
			if g.Match(name) {
				return true
			}
		}
		return false
	}, nil
}

// Features returns the enabled patterns, defaulting to all features.
func (c *FeaturesConfig) Features() []string {
	if len(c.Enabled) == 0 {
		return []string{"*"}
	}
	return c.Enabled
}
