// Package errors provides the standardized error kinds of the deck pipeline
// and their mapping to process exit statuses.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeUsage        ErrorCode = "USAGE_ERROR"
	ErrCodeInputParse   ErrorCode = "INPUT_PARSE_ERROR"
	ErrCodeConfigLoad   ErrorCode = "CONFIG_LOAD_FAILED"
	ErrCodeAssetMissing ErrorCode = "ASSET_MISSING"
	ErrCodeImageDecode  ErrorCode = "IMAGE_DECODE_FAILED"
	ErrCodeTemplateLoad ErrorCode = "TEMPLATE_LOAD_FAILED"
	ErrCodeDeckBuild    ErrorCode = "DECK_BUILD_FAILED"
	ErrCodeDeckWrite    ErrorCode = "DECK_WRITE_FAILED"
	ErrCodeRunCancelled ErrorCode = "RUN_CANCELLED"
	ErrCodeUnclassified ErrorCode = "UNCLASSIFIED"
)

// Process exit statuses.
const (
	ExitOK         = 0
	ExitUsage      = 1
	ExitInputParse = 2
	ExitFailure    = 3
)

// StandardError represents a structured application error.
type StandardError struct {
	Code        ErrorCode              `json:"code"`
	Message     string                 `json:"message"`
	Details     string                 `json:"details,omitempty"`
	Recoverable bool                   `json:"recoverable"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	Err         error                  `json:"-"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.Err
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. Error Constructors
// ==========================

// NewUsageError is returned before any work starts when the command line is wrong.
func NewUsageError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUsage,
		Message:   "Invalid command line",
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// NewInputParseError covers unreadable, malformed or schema-violating input documents.
func NewInputParseError(details string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInputParse,
		Message:   "Input document could not be parsed",
		Details:   details,
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// NewConfigLoadError wraps configuration loading failures.
func NewConfigLoadError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigLoad,
		Message:   "Configuration could not be loaded",
		Details:   errDetails(err),
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// NewAssetMissingError is recoverable: the visual falls back to its plain layout.
func NewAssetMissingError(asset string, err error) *StandardError {
	return &StandardError{
		Code:        ErrCodeAssetMissing,
		Message:     "Template asset unavailable",
		Details:     fmt.Sprintf("asset: %s", asset),
		Recoverable: true,
		Timestamp:   time.Now().UTC(),
		Err:         err,
	}
}

// NewImageDecodeError is recoverable: the photo slot is left empty.
func NewImageDecodeError(index int, err error) *StandardError {
	return &StandardError{
		Code:        ErrCodeImageDecode,
		Message:     "Photo could not be decoded or embedded",
		Details:     fmt.Sprintf("photoIndex: %d, error: %s", index, errDetails(err)),
		Recoverable: true,
		Metadata:    map[string]interface{}{"photoIndex": index},
		Timestamp:   time.Now().UTC(),
		Err:         err,
	}
}

// NewTemplateLoadError is fatal: a deck template was found but cannot be read.
func NewTemplateLoadError(path string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateLoad,
		Message:   "Deck template could not be loaded",
		Details:   fmt.Sprintf("path: %s, error: %s", path, errDetails(err)),
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// NewDeckBuildError wraps failures while composing slides.
func NewDeckBuildError(stage string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDeckBuild,
		Message:   "Deck could not be built",
		Details:   fmt.Sprintf("stage: %s, error: %s", stage, errDetails(err)),
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// NewDeckWriteError wraps serialization or output file failures.
func NewDeckWriteError(path string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDeckWrite,
		Message:   "Deck could not be written",
		Details:   fmt.Sprintf("path: %s, error: %s", path, errDetails(err)),
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// NewRunCancelledError is returned when the context ends mid-assembly.
func NewRunCancelledError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRunCancelled,
		Message:   "Assembly cancelled",
		Details:   errDetails(err),
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 3. Classification
// ==========================

var exitCodes = map[ErrorCode]int{
	ErrCodeUsage:        ExitUsage,
	ErrCodeInputParse:   ExitInputParse,
	ErrCodeConfigLoad:   ExitFailure,
	ErrCodeTemplateLoad: ExitFailure,
	ErrCodeDeckBuild:    ExitFailure,
	ErrCodeDeckWrite:    ExitFailure,
	ErrCodeRunCancelled: ExitFailure,
}

// CodeOf returns the ErrorCode carried by err, or ErrCodeUnclassified.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeUnclassified
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if code, ok := exitCodes[CodeOf(err)]; ok {
		return code
	}
	return ExitFailure
}

// IsRecoverable reports whether err is a locally recovered error kind.
func IsRecoverable(err error) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Recoverable
	}
	return false
}
