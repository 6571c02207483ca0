package xorpipe

import (
	"fmt"
	"io"

	"github.com/creastat/xorpipe/core"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Message string
	Details string
}

func (e ValidationError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

// ValidateConfig checks a run configuration before any structure is sized
func ValidateConfig(config core.ReducerConfig, srcs []core.BlockSource, sink io.Writer, tees []FanOutBranch) error {
	if err := validateReducerConfig(config); err != nil {
		return err
	}

	if sink == nil {
		return ValidationError{
			Message: "config validation failed",
			Details: "no output sink defined",
		}
	}

	if err := validateSources(srcs); err != nil {
		return err
	}

	return validateTees(tees)
}

// validateReducerConfig checks the numeric settings
func validateReducerConfig(config core.ReducerConfig) error {
	if config.BlockSize <= 0 {
		return ValidationError{
			Message: "config validation failed",
			Details: fmt.Sprintf("block size must be positive, got %d", config.BlockSize),
		}
	}
	if config.MaxStages < 0 {
		return ValidationError{
			Message: "config validation failed",
			Details: fmt.Sprintf("max stages must not be negative, got %d", config.MaxStages),
		}
	}
	return nil
}

// validateSources rejects missing sources and duplicate stream names, which
// would make errors ambiguous
func validateSources(srcs []core.BlockSource) error {
	seen := make(map[string]int)

	for i, source := range srcs {
		if source == nil {
			return ValidationError{
				Message: "source validation failed",
				Details: fmt.Sprintf("input %d has no source", i),
			}
		}

		name := source.Name()
		if name == "" {
			return ValidationError{
				Message: "source validation failed",
				Details: fmt.Sprintf("input %d has an empty name", i),
			}
		}
		if prev, exists := seen[name]; exists {
			return ValidationError{
				Message: "source validation failed",
				Details: fmt.Sprintf("inputs %d and %d share the name %q", prev, i, name),
			}
		}
		seen[name] = i
	}

	return nil
}

// validateTees rejects unnamed or nil tee writers
func validateTees(tees []FanOutBranch) error {
	seen := map[string]bool{OutputName: true, "digest": true}

	for i, tee := range tees {
		if tee.Writer == nil {
			return ValidationError{
				Message: "tee validation failed",
				Details: fmt.Sprintf("tee %d has no writer", i),
			}
		}
		if tee.Name == "" || seen[tee.Name] {
			return ValidationError{
				Message: "tee validation failed",
				Details: fmt.Sprintf("tee %d needs a unique name, got %q", i, tee.Name),
			}
		}
		seen[tee.Name] = true
	}

	return nil
}
