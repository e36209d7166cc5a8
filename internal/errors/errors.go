package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ConfigInvalid indicates an analysis configuration that cannot be run
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// DistributionInvalid indicates distribution parameters that cannot produce samples
	DistributionInvalid ErrorCode = "DISTRIBUTION_INVALID"
	// FeatureNotFound indicates a referenced component feature doesn't exist
	FeatureNotFound ErrorCode = "FEATURE_NOT_FOUND"
	// AnalysisNotFound indicates the named analysis doesn't exist
	AnalysisNotFound ErrorCode = "ANALYSIS_NOT_FOUND"
	// SettingsMissing indicates Monte Carlo was requested without simulation settings
	SettingsMissing ErrorCode = "SETTINGS_MISSING"
	// StoreCorrupt indicates the project store is unreadable or inconsistent
	StoreCorrupt ErrorCode = "STORE_CORRUPT"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// TsaError represents a TSA error with code, message, and optional details
type TsaError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	cause   error       // Underlying error (not exported to JSON)
}

// NewTsaError creates a new TsaError
func NewTsaError(code ErrorCode, message string, cause error) *TsaError {
	return &TsaError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Error implements the error interface
func (e *TsaError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *TsaError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *TsaError) WithDetails(details interface{}) *TsaError {
	e.Details = details
	return e
}

// CodeOf extracts the error code from an error chain.
// Returns InternalError for non-TSA errors.
func CodeOf(err error) ErrorCode {
	var te *TsaError
	if errors.As(err, &te) {
		return te.Code
	}
	return InternalError
}

// HasCode reports whether any error in the chain carries the given code
func HasCode(err error, code ErrorCode) bool {
	var te *TsaError
	if errors.As(err, &te) {
		return te.Code == code
	}
	return false
}
