package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All handlers MUST use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationInvalidJSON   ErrorCode = "validation_invalid_json"
	ErrCodeValidationMissingField  ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidValue  ErrorCode = "validation_invalid_value"
	ErrCodeValidationInvalidAddon  ErrorCode = "validation_invalid_addon"
	ErrCodeValidationInvalidAmount ErrorCode = "validation_invalid_amount"

	// Auth (401)
	ErrCodeAuthSessionMissing ErrorCode = "auth_session_missing"
	ErrCodeAuthSessionInvalid ErrorCode = "auth_session_invalid"
	ErrCodeAuthSessionExpired ErrorCode = "auth_session_expired"

	// Permission (403)
	ErrCodePermissionTier  ErrorCode = "permission_tier_required"
	ErrCodePermissionAddon ErrorCode = "permission_addon_required"
	ErrCodePermissionAdmin ErrorCode = "permission_admin_required"

	// Limits (429)
	ErrCodeLimitQuota ErrorCode = "limit_quota_exceeded"

	// Not Found (404)
	ErrCodeNotFoundAccount ErrorCode = "not_found_account"

	// Conflict (409)
	ErrCodeConflictConcurrent ErrorCode = "conflict_concurrent_modification"

	// Internal/Upstream (500/502/503)
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
	ErrCodeQuotaStore         ErrorCode = "quota_store_unavailable"
	ErrCodeUpstreamBilling    ErrorCode = "upstream_billing_unavailable"

	// Startup configuration failures. These are fatal; the engine refuses
	// to initialize rather than produce silently wrong decisions.
	ErrCodeConfigInvalid ErrorCode = "config_invalid"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized // 401
	case strings.HasPrefix(s, "permission_"):
		return http.StatusForbidden // 403
	case s == string(ErrCodeLimitQuota):
		return http.StatusTooManyRequests // 429
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict // 409
	case s == string(ErrCodeQuotaStore):
		return http.StatusServiceUnavailable // 503
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	default:
		return http.StatusInternalServerError // 500
	}
}

// ErrorCodeForDenial maps an access or quota denial reason to the error
// code carried on the HTTP response. The reason itself is preserved in
// the error details so clients can branch on "addon:<name>" style reasons.
func ErrorCodeForDenial(reason DenyReason) ErrorCode {
	switch {
	case reason == DenyReasonTier:
		return ErrCodePermissionTier
	case reason == DenyReasonQuota:
		return ErrCodeLimitQuota
	case reason == DenyReasonUnavailable:
		return ErrCodeQuotaStore
	case strings.HasPrefix(string(reason), "addon:"):
		return ErrCodePermissionAddon
	default:
		return ErrCodeInternalUnexpected
	}
}

// AppError is the standard application error type used throughout the
// engine. All domain and handler errors should be expressed as AppError to
// enable consistent error formatting, HTTP status mapping, and error chain
// support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error. This is the standard constructor for domain
// errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
