package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeAuthenticationMissing ErrorType = "AUTHENTICATION_MISSING"
	ErrorTypeAuthenticationInvalid ErrorType = "AUTHENTICATION_INVALID"
	ErrorTypeAccountInactive       ErrorType = "ACCOUNT_INACTIVE"
	ErrorTypeRoleMismatch          ErrorType = "ROLE_MISMATCH"
	ErrorTypePermissionDenied      ErrorType = "PERMISSION_DENIED"
	ErrorTypeValidation            ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound              ErrorType = "NOT_FOUND"
	ErrorTypeMethodNotAllowed      ErrorType = "METHOD_NOT_ALLOWED"
	ErrorTypeTooManyRequests       ErrorType = "TOO_MANY_REQUESTS"
	ErrorTypeInternal              ErrorType = "INTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidPIN        ErrorCode = "INVALID_PIN"
	ErrCodeInvalidRole       ErrorCode = "INVALID_ROLE"
	ErrCodeInvalidPermission ErrorCode = "INVALID_PERMISSION"
	ErrCodeInvalidType       ErrorCode = "INVALID_TYPE"
	ErrCodeInvalidCron       ErrorCode = "INVALID_CRON"
	ErrCodeSelfDeactivation  ErrorCode = "SELF_DEACTIVATION"

	ErrCodeUserNotFound     ErrorCode = "USER_NOT_FOUND"
	ErrCodeResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"

	ErrCodeNoAuthToken        ErrorCode = "NO_AUTH_TOKEN"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeUserInactive       ErrorCode = "USER_INACTIVE"
	ErrCodeRoleRequired       ErrorCode = "ROLE_REQUIRED"
	ErrCodePermissionRequired ErrorCode = "PERMISSION_REQUIRED"

	ErrCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
	ErrCodeRateLimited      ErrorCode = "RATE_LIMITED"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// AppError is the single error shape that crosses the HTTP boundary.
// Cause is logged server side and never serialized.
type AppError struct {
	Type       ErrorType
	Code       ErrorCode
	Message    string
	Details    interface{}
	Required   interface{}
	Current    interface{}
	ValidTypes []string
	StatusCode int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			if len(validationErrors.Errors) == 1 {
				return validationErrors.Errors[0].Message
			} else if len(validationErrors.Errors) > 1 {
				messages := make([]string, len(validationErrors.Errors))
				for i, err := range validationErrors.Errors {
					messages[i] = err.Message
				}
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on type and code so sentinel errors survive wrapping and copying.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// The builders copy the receiver so package-level sentinels are never mutated.

func (e *AppError) WithCause(cause error) *AppError {
	c := *e
	c.Cause = cause
	return &c
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	c := *e
	c.Details = details
	return &c
}

func (e *AppError) WithRequired(required interface{}) *AppError {
	c := *e
	c.Required = required
	return &c
}

func (e *AppError) WithCurrent(current interface{}) *AppError {
	c := *e
	c.Current = current
	return &c
}

func (e *AppError) WithValidTypes(validTypes []string) *AppError {
	c := *e
	c.ValidTypes = validTypes
	return &c
}

func (e *AppError) WithMessage(message string) *AppError {
	c := *e
	c.Message = message
	return &c
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(errType ErrorType, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(errType ErrorType, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewMethodNotAllowedError(method string) *AppError {
	return &AppError{
		Type:       ErrorTypeMethodNotAllowed,
		Code:       ErrCodeMethodNotAllowed,
		Message:    fmt.Sprintf("method %s not allowed", method),
		StatusCode: http.StatusMethodNotAllowed,
	}
}

func NewTooManyRequestsError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeTooManyRequests,
		Code:       ErrCodeRateLimited,
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       ErrCodeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

var (
	ErrNoAuthToken        = NewUnauthorizedError(ErrorTypeAuthenticationMissing, "no auth token", ErrCodeNoAuthToken)
	ErrInvalidToken       = NewUnauthorizedError(ErrorTypeAuthenticationInvalid, "invalid or expired token", ErrCodeInvalidToken)
	ErrInvalidCredentials = NewUnauthorizedError(ErrorTypeAuthenticationInvalid, "invalid PIN", ErrCodeInvalidCredentials)
	ErrLoginInactive      = NewUnauthorizedError(ErrorTypeAccountInactive, "account deactivated", ErrCodeUserInactive)
	ErrAccountInactive    = NewForbiddenError(ErrorTypeAccountInactive, "account deactivated", ErrCodeUserInactive)
	ErrRoleMismatch       = NewForbiddenError(ErrorTypeRoleMismatch, "insufficient role", ErrCodeRoleRequired)
	ErrPermissionDenied   = NewForbiddenError(ErrorTypePermissionDenied, "insufficient permissions", ErrCodePermissionRequired)

	ErrUserNotFound     = NewNotFoundError("user not found", ErrCodeUserNotFound)
	ErrResourceNotFound = NewNotFoundError("resource not found", ErrCodeResourceNotFound)
	ErrSelfDeactivation = NewValidationError("you cannot deactivate your own account", ErrCodeSelfDeactivation)
)

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Response is the API error envelope.
type Response struct {
	Error      string      `json:"error"`
	Code       ErrorCode   `json:"code,omitempty"`
	Required   interface{} `json:"required,omitempty"`
	Current    interface{} `json:"current,omitempty"`
	ValidTypes []string    `json:"validTypes,omitempty"`
	Details    interface{} `json:"details,omitempty"`
}

// ToHTTPResponse never exposes Cause; internal errors collapse to a fixed message.
func (e *AppError) ToHTTPResponse() (int, Response) {
	if e.StatusCode >= http.StatusInternalServerError || e.StatusCode == 0 {
		return http.StatusInternalServerError, Response{Error: "internal server error", Code: ErrCodeInternal}
	}
	return e.StatusCode, Response{
		Error:      e.GetDetailedMessage(),
		Code:       e.Code,
		Required:   e.Required,
		Current:    e.Current,
		ValidTypes: e.ValidTypes,
		Details:    e.Details,
	}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	_, resp := e.ToHTTPResponse()
	return json.Marshal(resp)
}
