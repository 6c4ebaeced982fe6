package domain

import (
	"errors"
	"fmt"
)

// Application error codes
const (
	EINVALID      = "invalid"        // Invalid input or validation failure
	EUNAUTHORIZED = "unauthorized"   // Authentication required
	EFORBIDDEN    = "forbidden"      // Permission denied
	ENOTFOUND     = "not_found"      // Resource not found
	ECONFLICT     = "conflict"       // Resource conflict (e.g., duplicate)
	ETOOLARGE     = "too_large"      // File exceeds the tier's size limit
	EQUOTA        = "quota_exceeded" // Upload quota for the period is used up
	ETRIAL        = "trial_used"     // Free trial already consumed
	ERATELIMIT    = "rate_limit"     // Rate limit exceeded
	ECONFIG       = "configuration"  // Tier catalog or subscription data is inconsistent
	EUNAVAILABLE  = "unavailable"    // Billing provider, store or report generator unreachable
	EINTERNAL     = "internal"       // Internal server error
)

// genericMessage is shown to users for errors whose details must stay server-side.
const genericMessage = "Something went wrong. Please try again."

// Error represents an application error with structured information.
type Error struct {
	Code    string // Machine-readable error code
	Op      string // Operation that failed (e.g., "gate.check_and_reserve")
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a new Error with the given code, operation, and formatted message.
func Errorf(code, op, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, code, op, message string) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// ErrorCode returns the code of the root error, or EINTERNAL if none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the user-facing message of the error. Internal,
// configuration and upstream failures collapse to a generic message.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		switch e.Code {
		case EINTERNAL, ECONFIG, EUNAVAILABLE:
			return genericMessage
		}
		return e.Message
	}
	return genericMessage
}

// ErrorOp returns the operation of the root error, if any.
func ErrorOp(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}

// Convenience constructors for common error types

// NotFound creates a not found error.
func NotFound(op, resource, id string) *Error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s with ID %q not found", resource, id),
	}
}

// Invalid creates a validation error.
func Invalid(op, message string) *Error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Message: message,
	}
}

// Unauthorized creates an authentication error.
func Unauthorized(op, message string) *Error {
	return &Error{
		Code:    EUNAUTHORIZED,
		Op:      op,
		Message: message,
	}
}

// Forbidden creates a permission error.
func Forbidden(op, message string) *Error {
	return &Error{
		Code:    EFORBIDDEN,
		Op:      op,
		Message: message,
	}
}

// Internal creates an internal error, wrapping the underlying error.
func Internal(err error, op, message string) *Error {
	return &Error{
		Code:    EINTERNAL,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// RateLimit creates a rate limit error.
func RateLimit(op string) *Error {
	return &Error{
		Code:    ERATELIMIT,
		Op:      op,
		Message: "Too many requests. Please try again later.",
	}
}

// FileTooLarge reports a file over the tier's size limit. The limit is part
// of the message because the user can act on it.
func FileTooLarge(op string, sizeMB, limitMB float64) *Error {
	return &Error{
		Code:    ETOOLARGE,
		Op:      op,
		Message: fmt.Sprintf("File size %.2f MB exceeds the %s MB limit for your plan.", sizeMB, formatMB(limitMB)),
	}
}

// QuotaExceeded reports an exhausted upload quota.
func QuotaExceeded(op string, used, limit int, tier string) *Error {
	return &Error{
		Code:    EQUOTA,
		Op:      op,
		Message: fmt.Sprintf("File upload limit reached. You have used %d/%d uploads for your %s plan.", used, limit, tier),
	}
}

// TrialAlreadyUsed reports that the one free document has been consumed.
func TrialAlreadyUsed(op string) *Error {
	return &Error{
		Code:    ETRIAL,
		Op:      op,
		Message: "Your free trial has already been used. Please upgrade to a paid plan to process more documents.",
	}
}

// ConfigurationError reports inconsistent tier or subscription data. The
// message is logged, never shown.
func ConfigurationError(op, message string, err error) *Error {
	return &Error{
		Code:    ECONFIG,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// UpstreamUnavailable reports that a collaborator (billing provider, store,
// report generator) could not be reached.
func UpstreamUnavailable(op, message string, err error) *Error {
	return &Error{
		Code:    EUNAVAILABLE,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

func formatMB(mb float64) string {
	return fmt.Sprintf("%g", mb)
}

// =============================================================================
// Deny Reasons
// =============================================================================

// DenyReason is the machine-readable reason a reservation was refused.
type DenyReason string

const (
	DenyFileTooLarge              DenyReason = "file_too_large"
	DenyQuotaExceeded             DenyReason = "quota_exceeded"
	DenyNotSubscribedAndTrialUsed DenyReason = "not_subscribed_and_trial_used"
	DenyConfigurationError        DenyReason = "configuration_error"
)

// DenyReasonOf maps an error returned by the quota gate to its deny reason.
// Errors that are not denials (for example upstream failures) return "".
func DenyReasonOf(err error) DenyReason {
	switch ErrorCode(err) {
	case ETOOLARGE:
		return DenyFileTooLarge
	case EQUOTA:
		return DenyQuotaExceeded
	case ETRIAL:
		return DenyNotSubscribedAndTrialUsed
	case ECONFIG:
		return DenyConfigurationError
	}
	return ""
}

// ValidationError represents field-level validation errors.
type ValidationError struct {
	Op     string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation failed", e.Op)
}

// NewValidationError creates a new validation error with the first field error.
func NewValidationError(op, field, message string) *ValidationError {
	return &ValidationError{
		Op: op,
		Fields: map[string]string{
			field: message,
		},
	}
}

// AddFieldError adds a field error to an existing validation error.
// If err is not a ValidationError, returns a new one.
func AddFieldError(err error, field, message string) *ValidationError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		ve.Fields[field] = message
		return ve
	}
	return NewValidationError("", field, message)
}
