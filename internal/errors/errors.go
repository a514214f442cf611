package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

/**
 * Coded error types for the OCR pipeline
 *
 * Every failure that ends up in a FileResult or a persisted report carries one of
 * these codes so downstream consumers can tell input problems from engine problems.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Input errors
	ErrorUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	ErrorRasterizeFailed   ErrorCode = "RASTERIZE_FAILED"

	// Recognition errors
	ErrorOCRFailed         ErrorCode = "OCR_FAILED"
	ErrorEngineUnavailable ErrorCode = "ENGINE_UNAVAILABLE"

	// Output errors
	ErrorOutputFailed        ErrorCode = "OUTPUT_FAILED"
	ErrorOrchestrationFailed ErrorCode = "ORCHESTRATION_FAILED"
	ErrorStorageFailed       ErrorCode = "STORAGE_FAILED"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	File      string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Factory functions for common errors

func NewUnsupportedFormatError(file string, ext string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorUnsupportedFormat,
		Message:   fmt.Sprintf("unsupported file type: %s", file),
		File:      file,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"extension": ext,
		},
	}
}

func NewRasterizeError(file string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorRasterizeFailed,
		Message:   fmt.Sprintf("failed to rasterize %s", file),
		File:      file,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewOCRFailedError(file string, page int, attempt int, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorOCRFailed,
		Message:   fmt.Sprintf("page %d attempt %d", page, attempt),
		File:      file,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"page":    page,
			"attempt": attempt,
		},
		Cause: cause,
	}
}

func NewEngineUnavailableError(engine string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorEngineUnavailable,
		Message:   fmt.Sprintf("recognition engine %s is not usable", engine),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"engine": engine,
		},
		Cause: cause,
	}
}

func NewOutputError(file string, path string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorOutputFailed,
		Message:   fmt.Sprintf("failed to write %s", path),
		File:      file,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"path": path,
		},
		Cause: cause,
	}
}

func NewOrchestrationError(file string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorOrchestrationFailed,
		Message:   fmt.Sprintf("processing of %s aborted", file),
		File:      file,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewStorageFailedError(file string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorStorageFailed,
		Message:   "failed to store processing results",
		File:      file,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// ToMap converts error to map for report and database storage
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	if e.File != "" {
		result["file"] = e.File
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}

// CodeOf returns the code of the first ProcessingError in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var pe *ProcessingError
	if stderrors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
