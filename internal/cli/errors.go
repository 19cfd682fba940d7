// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Unified error handling for secondme commands.
//
// Commands always return errors; Run decides how to display them and which
// exit code to use.

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/jeranaias/secondme-tui/internal/api"
	"github.com/jeranaias/secondme-tui/internal/chat"
	"github.com/jeranaias/secondme-tui/internal/config"
	"github.com/jeranaias/secondme-tui/internal/storage"
	"github.com/jeranaias/secondme-tui/internal/stream"
	"github.com/jeranaias/secondme-tui/internal/training"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitBackendError indicates the backend rejected the request
	ExitBackendError = 4
	// ExitNetworkError indicates network or connectivity error
	ExitNetworkError = 5
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // e.g. "train", "spaces"
	Action  string // e.g. "start", "delete"
	Reason  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError represents a validation failure for user input.
type ValidationError struct {
	Field   string
	Value   string
	Reason  string
	Example string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NotFoundError represents a resource not found error.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// =============================================================================
// ERROR CONSTRUCTION HELPERS
// =============================================================================

// NewCommandError creates a new command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{Command: command, Action: action, Reason: reason, Err: err}
}

// NewValidationError creates a new validation error.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// NewNotFoundError creates a new not found error.
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// ErrMissingArgument creates an error for missing required arguments.
func ErrMissingArgument(argName, usage string) error {
	return &ValidationError{Field: argName, Reason: "required argument missing", Example: usage}
}

// ErrUnknownSubcommand creates an error for an unrecognised subcommand.
func ErrUnknownSubcommand(command, sub string, valid []string) error {
	return &ValidationError{
		Field:   command + " subcommand",
		Value:   sub,
		Reason:  "unknown subcommand",
		Example: "one of: " + strings.Join(valid, ", "),
	}
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// ExitCodeFor determines the appropriate exit code for an error.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return ExitUsageError
	}
	if errors.Is(err, training.ErrInsufficientMemories) || errors.Is(err, chat.ErrEmptyMessage) {
		return ExitUsageError
	}

	var notFoundErr *NotFoundError
	if errors.As(err, &notFoundErr) || errors.Is(err, storage.ErrNotFound) || api.IsNotFound(err) {
		return ExitNotFoundError
	}

	var cfgErrs config.ValidateErrors
	if errors.As(err, &cfgErrs) {
		return ExitConfigError
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ExitTimeoutError
	}

	if errors.Is(err, api.ErrBusiness) {
		return ExitBackendError
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, api.ErrHTTPStatus) ||
		errors.Is(err, stream.ErrStreamFailed) {
		return ExitNetworkError
	}

	return ExitGeneralError
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// DisplayError writes err to w, as JSON when jsonMode is set.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		displayErrorJSON(w, err)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), api.UserMessage(err))
}

func displayErrorJSON(w io.Writer, err error) {
	output := map[string]interface{}{
		"error":     api.UserMessage(err),
		"success":   false,
		"exit_code": ExitCodeFor(err),
	}

	var (
		cmdErr      *CommandError
		validErr    *ValidationError
		notFoundErr *NotFoundError
		bizErr      *api.BusinessError
		statusErr   *api.StatusError
	)
	switch {
	case errors.As(err, &validErr):
		output["error_type"] = "validation_error"
		output["field"] = validErr.Field
		output["value"] = validErr.Value
		output["reason"] = validErr.Reason
	case errors.As(err, &notFoundErr):
		output["error_type"] = "not_found_error"
		output["resource"] = notFoundErr.Resource
		output["id"] = notFoundErr.ID
	case errors.As(err, &bizErr):
		output["error_type"] = "business_error"
		output["code"] = bizErr.Code
	case errors.As(err, &statusErr):
		output["error_type"] = "http_error"
		output["status"] = statusErr.StatusCode
	case errors.As(err, &cmdErr):
		output["error_type"] = "command_error"
		output["command"] = cmdErr.Command
		output["action"] = cmdErr.Action
	default:
		output["error_type"] = "generic_error"
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(output)
}
