// Package errors provides structured error types for the extension API.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the HTTP API, the sync worker and the CLI
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Codes name the failure, not the layer that produced it:
//   - INVALID_*: Input or upstream metadata validation failures
//   - *_NOT_FOUND: Resource not found
//   - NETWORK_ERROR, RATE_LIMITED: Transport failures
//   - INTERNAL_ERROR: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.CodeInvalidManifest, "name is empty")
//	if errors.Is(err, errors.CodeInvalidManifest) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.CodeNetwork, origErr, "failed to fetch %s", url)
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	CodeInvalidInput     Code = "INVALID_INPUT"
	CodeInvalidGithubURL Code = "INVALID_GITHUB_URL"
	CodeInvalidManifest  Code = "INVALID_MANIFEST"
	CodeInvalidVersions  Code = "INVALID_VERSIONS"
	CodeInvalidImageURL  Code = "INVALID_IMAGE_URL"
	CodeFileTooLarge     Code = "FILE_TOO_LARGE"
	CodeImageLimit       Code = "IMAGE_LIMIT"

	// Resource errors
	CodeNotFound          Code = "NOT_FOUND"
	CodeProjectNotFound   Code = "PROJECT_NOT_FOUND"
	CodeJSONFileNotFound  Code = "JSON_FILE_NOT_FOUND"
	CodeExtensionNotFound Code = "EXTENSION_NOT_FOUND"
	CodeExtensionExists   Code = "EXTENSION_EXISTS"

	// Network errors
	CodeNetwork     Code = "NETWORK_ERROR"
	CodeRateLimited Code = "RATE_LIMITED"

	// Authentication errors
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"

	// Internal errors
	CodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// Only the outermost *Error in the chain is considered, so wrapping a
// PROJECT_NOT_FOUND error in an INTERNAL_ERROR changes its classification.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// HTTPStatus maps an error code to the status the API responds with.
func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeInvalidGithubURL, CodeInvalidManifest, CodeInvalidVersions,
		CodeInvalidImageURL, CodeImageLimit, CodeProjectNotFound, CodeJSONFileNotFound,
		CodeExtensionExists:
		return http.StatusBadRequest
	case CodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound, CodeExtensionNotFound:
		return http.StatusNotFound
	case CodeNetwork, CodeRateLimited:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

var names = map[Code]string{
	CodeInvalidInput:      "ValidationError",
	CodeInvalidGithubURL:  "InvalidGithubUrlError",
	CodeInvalidManifest:   "ManifestValidationError",
	CodeInvalidVersions:   "VersionsValidationError",
	CodeInvalidImageURL:   "ImageUrlValidationError",
	CodeFileTooLarge:      "FileTooLargeError",
	CodeImageLimit:        "MaxImageLimitError",
	CodeNotFound:          "NotFoundError",
	CodeProjectNotFound:   "ProjectNotFoundError",
	CodeJSONFileNotFound:  "JsonFileNotFoundError",
	CodeExtensionNotFound: "ExtensionNotFoundError",
	CodeExtensionExists:   "ExtensionAlreadyExistsError",
	CodeNetwork:           "NetworkError",
	CodeRateLimited:       "RateLimitedError",
	CodeUnauthorized:      "AuthError",
	CodeForbidden:         "AuthError",
	CodeInternal:          "InternalError",
}

// Name returns the error class name that API clients match on.
// Existing directory clients expect names like "ExtensionNotFoundError".
func Name(code Code) string {
	if n, ok := names[code]; ok {
		return n
	}
	return names[CodeInternal]
}

// RateLimitedError provides additional information for rate-limited responses.
type RateLimitedError struct {
	RetryAfter int // Seconds to wait before retrying
	Message    string
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: retry after %d seconds", e.RetryAfter)
	}
	return "rate limited"
}

// Code returns the error code for this error type.
func (e *RateLimitedError) Code() Code {
	return CodeRateLimited
}
