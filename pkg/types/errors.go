package types

import (
	"errors"
	"fmt"
)

// Domain errors for type validation
var (
	ErrInvalidChunkID = errors.New("invalid chunk ID")
	ErrEmptyChunk     = errors.New("chunk has no files")
	ErrEmptyPath      = errors.New("file path cannot be empty")
	ErrTokenMismatch  = errors.New("token count mismatch")
	ErrBudgetExceeded = errors.New("chunk exceeds token budget")
)

// Error kinds surfaced by the chunking core. Match with errors.Is.
var (
	// ErrInvalidConfiguration is wrapped by every ConfigurationError
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrTokenization is wrapped by every TokenizationError
	ErrTokenization = errors.New("tokenization failed")
)

// ConfigurationError reports a rejected option before any work starts.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%v: %s", e.Field, e.Value, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidConfiguration
func (e *ConfigurationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// NewConfigurationError creates a ConfigurationError
func NewConfigurationError(field string, value any, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Value: value, Reason: reason}
}

// TokenizationError wraps a failure of the injected token counter.
type TokenizationError struct {
	Model string
	Path  string // File being counted, if known
	Err   error
}

func (e *TokenizationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("tokenization failed for %s (model %q): %v", e.Path, e.Model, e.Err)
	}
	return fmt.Sprintf("tokenization failed (model %q): %v", e.Model, e.Err)
}

// Unwrap returns both the kind sentinel and the underlying cause
func (e *TokenizationError) Unwrap() []error {
	return []error{ErrTokenization, e.Err}
}

// NewTokenizationError wraps err unless it already is a TokenizationError.
func NewTokenizationError(model, path string, err error) error {
	if err == nil {
		return nil
	}
	var te *TokenizationError
	if errors.As(err, &te) {
		return err
	}
	return &TokenizationError{Model: model, Path: path, Err: err}
}
