// Package errors provides the error taxonomy shared by the workflow core and the job workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeConflict         ErrorCode = "CONFLICT"
	ErrCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrCodeStorageFailed    ErrorCode = "STORAGE_FAILED"

	ErrCodeInputParsingFailed ErrorCode = "INPUT_PARSING_FAILED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Err       error                  `json:"-"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.Err
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewValidationError reports malformed or missing input. Nothing has been written.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Validation failed",
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError reports a referenced entity that does not exist.
func NewNotFoundError(entity string, id int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", entity),
		Details:   fmt.Sprintf("id: %d", id),
		Metadata:  map[string]interface{}{"entity": entity, "id": id},
		Timestamp: time.Now().UTC(),
	}
}

// NewConflictError reports a duplicate submission. Side effects that ran before the
// check (the application insert) may already be committed.
func NewConflictError(entity string, id int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeConflict,
		Message:   fmt.Sprintf("%s already exists", entity),
		Details:   fmt.Sprintf("id: %d", id),
		Metadata:  map[string]interface{}{"entity": entity, "id": id},
		Timestamp: time.Now().UTC(),
	}
}

// NewAuthorizationError reports a failed capability check. No mutation was performed.
func NewAuthorizationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnauthorized,
		Message:   "Operation not permitted",
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// NewStorageError wraps a collaborator failure at the storage boundary.
func NewStorageError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorageFailed,
		Message:   fmt.Sprintf("Storage operation '%s' failed", op),
		Details:   err.Error(),
		Metadata:  map[string]interface{}{"op": op},
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// NewInputParsingError reports job variables that could not be decoded.
func NewInputParsingError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInputParsingFailed,
		Message:   "Failed to parse job variables",
		Details:   err.Error(),
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// ==========================
// 4. Inspection
// ==========================

// CodeOf returns the code of the first StandardError in err's chain, or ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

func hasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

func IsValidation(err error) bool { return hasCode(err, ErrCodeValidationFailed) }
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }
func IsConflict(err error) bool { return hasCode(err, ErrCodeConflict) }
func IsUnauthorized(err error) bool { return hasCode(err, ErrCodeUnauthorized) }
func IsStorageFailure(err error) bool { return hasCode(err, ErrCodeStorageFailed) }

// ==========================
// 5. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the error codes modelled in the BPMN diagrams.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeValidationFailed:   "ORDER_VALIDATION_FAILED",
	ErrCodeNotFound:           "ORDER_NOT_FOUND",
	ErrCodeConflict:           "DUPLICATE_ORDER",
	ErrCodeUnauthorized:       "ORDER_NOT_PERMITTED",
	ErrCodeStorageFailed:      "STORAGE_FAILED",
	ErrCodeInputParsingFailed: "INPUT_PARSING_FAILED",
}

// GetRetryCount returns the number of engine retries for a code. Workflow operations are
// never retried: a storage failure is fatal for the current operation.
func GetRetryCount(code ErrorCode) int {
	return 0
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   GetRetryCount(stdErr.Code),
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"errorCategory":     GetErrorCategory(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "PARSING"):
		return "VALIDATION"
	case strings.Contains(codeStr, "NOT_FOUND") || strings.Contains(codeStr, "CONFLICT"):
		return "STATE"
	case strings.Contains(codeStr, "UNAUTHORIZED"):
		return "AUTHORIZATION"
	case strings.Contains(codeStr, "STORAGE"):
		return "STORAGE"
	default:
		return "OTHER"
	}
}
