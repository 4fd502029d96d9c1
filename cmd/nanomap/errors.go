package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arthur-debert/nanomap/nanomap/loader"
	"github.com/arthur-debert/nanomap/types"
)

// CLIError represents a user-friendly CLI error with context and suggestions
type CLIError struct {
	Operation   string   // The operation that failed (e.g., "put", "resolve")
	Cause       string   // The underlying cause (e.g., "document not found")
	Details     string   // Additional technical details
	Suggestions []string // Helpful suggestions for the user
	Underlying  error    // Original error for debugging
}

// Error implements the error interface
func (e *CLIError) Error() string {
	var msg strings.Builder

	if e.Operation != "" {
		msg.WriteString(fmt.Sprintf("Failed to %s", e.Operation))
	} else {
		msg.WriteString("Operation failed")
	}
	if e.Cause != "" {
		msg.WriteString(fmt.Sprintf(": %s", e.Cause))
	}
	if e.Details != "" {
		msg.WriteString(fmt.Sprintf(" (%s)", e.Details))
	}
	if len(e.Suggestions) > 0 {
		msg.WriteString("\n\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			msg.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}
	return msg.String()
}

// Unwrap returns the underlying error for error chain compatibility
func (e *CLIError) Unwrap() error {
	return e.Underlying
}

// NewValidationError creates an error for invalid user input
func NewValidationError(operation, field, value string, suggestions ...string) *CLIError {
	return &CLIError{
		Operation:   operation,
		Cause:       fmt.Sprintf("invalid %s: %q", field, value),
		Suggestions: suggestions,
	}
}

// NewNotFoundError creates an error for missing documents or properties
func NewNotFoundError(operation, resource, id string, underlying error, suggestions ...string) *CLIError {
	return &CLIError{
		Operation:   operation,
		Cause:       fmt.Sprintf("%s %q not found", resource, id),
		Suggestions: suggestions,
		Underlying:  underlying,
	}
}

// NewConfigError creates an error for configuration issues
func NewConfigError(operation string, underlying error, suggestions ...string) *CLIError {
	return &CLIError{
		Operation:   operation,
		Cause:       "configuration error",
		Details:     underlying.Error(),
		Suggestions: append(suggestions, CommonSuggestions.CheckConfig),
		Underlying:  underlying,
	}
}

// WrapError classifies err and wraps it with CLI-friendly context
func WrapError(operation string, err error, suggestions ...string) error {
	if err == nil {
		return nil
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		if cliErr.Operation == "" {
			cliErr.Operation = operation
		}
		return cliErr
	}

	var fetchErr *loader.FetchError
	switch {
	case errors.Is(err, types.ErrConfiguration):
		return NewConfigError(operation, err, suggestions...)
	case errors.Is(err, types.ErrUnsupported):
		return &CLIError{
			Operation:   operation,
			Cause:       "reference resolution is disabled",
			Details:     err.Error(),
			Suggestions: append(suggestions, "Set resolve_references: true or NANOMAP_RESOLVE_REFERENCES=true"),
			Underlying:  err,
		}
	case errors.As(err, &fetchErr):
		return &CLIError{
			Operation:   operation,
			Cause:       fmt.Sprintf("could not read %s", fetchErr.Collection),
			Details:     fetchErr.Err.Error(),
			Suggestions: append(suggestions, CommonSuggestions.CheckStore),
			Underlying:  err,
		}
	default:
		return &CLIError{
			Operation:   operation,
			Cause:       "store operation failed",
			Details:     err.Error(),
			Suggestions: suggestions,
			Underlying:  err,
		}
	}
}

// CommonSuggestions holds suggestions shared by several commands
var CommonSuggestions = struct {
	CheckStore      string
	CheckConfig     string
	CheckID         string
	CheckCollection string
	RunHelp         string
}{
	CheckStore:      "Verify --store points to a readable store file",
	CheckConfig:     "Check nanomap.yaml, NANOMAP_CONFIG and NANOMAP_* environment variables",
	CheckID:         "Verify the document ID exists in the collection",
	CheckCollection: "Verify --collection names an existing collection",
	RunHelp:         "Run command with --help for usage information",
}
