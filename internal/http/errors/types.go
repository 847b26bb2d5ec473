package errors

import (
	"fmt"
	"net/http"
)

// AppError define la estructura estándar para errores de la API.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"` // No se serializa, usado para el header
	Err        error  `json:"-"` // Causa original, solo para logs

	// Extra agrega campos al envelope (ej: attemptsRemaining, requestId).
	Extra map[string]any `json:"-"`
}

// Error implementa la interfaz error
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap permite acceder al error original
func (e *AppError) Unwrap() error {
	return e.Err
}

// New crea un nuevo AppError
func New(status int, code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
	}
}

// Wrap crea un AppError envolviendo un error existente
func Wrap(err error, status int, code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
		Err:        err,
	}
}

// FromError intenta convertir un error genérico en un AppError.
// Si no es un AppError, devuelve SERVER_ERROR conservando la causa para el log.
func FromError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return ErrServer.WithCause(err)
}

// WithDetail devuelve una COPIA con detalle adicional.
func (e *AppError) WithDetail(detail string) *AppError {
	newErr := *e
	newErr.Detail = detail
	return &newErr
}

// WithCause devuelve una COPIA con la causa original.
func (e *AppError) WithCause(err error) *AppError {
	newErr := *e
	newErr.Err = err
	return &newErr
}

// WithExtra devuelve una COPIA con un campo extra en el envelope.
func (e *AppError) WithExtra(key string, value any) *AppError {
	newErr := *e
	newErr.Extra = make(map[string]any, len(e.Extra)+1)
	for k, v := range e.Extra {
		newErr.Extra[k] = v
	}
	newErr.Extra[key] = value
	return &newErr
}

// =================================================================================
// ERRORES PREDEFINIDOS
// =================================================================================

// ---------------------------------------------------------------------------------
// 400 Bad Request
// ---------------------------------------------------------------------------------

var (
	ErrInvalidJSON = &AppError{
		Code:       "INVALID_JSON",
		Message:    "Request body is not valid JSON.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrMissingFields = &AppError{
		Code:       "MISSING_FIELDS",
		Message:    "Required fields are missing.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidPhone = &AppError{
		Code:       "INVALID_PHONE",
		Message:    "Visitor phone number is invalid.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidParameter = &AppError{
		Code:       "INVALID_PARAMETER",
		Message:    "One of the path or query parameters is invalid.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrOTPExpired = &AppError{
		Code:       "OTP_EXPIRED",
		Message:    "OTP has expired. Please request a new one.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrOTPInvalid = &AppError{
		Code:       "OTP_INVALID",
		Message:    "Invalid OTP.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrAlreadyCheckedOut = &AppError{
		Code:       "ALREADY_CHECKED_OUT",
		Message:    "Visit is no longer active.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrAlreadyProcessed = &AppError{
		Code:       "ALREADY_PROCESSED",
		Message:    "Override request has already been processed.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrOverrideExists = &AppError{
		Code:       "OVERRIDE_EXISTS",
		Message:    "A pending override request already exists for this visitor.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrBodyTooLarge = &AppError{
		Code:       "BODY_TOO_LARGE",
		Message:    "Request body exceeds the allowed size.",
		HTTPStatus: http.StatusRequestEntityTooLarge,
	}
)

// ---------------------------------------------------------------------------------
// 401 / 403 - Autenticación y permisos
// ---------------------------------------------------------------------------------

var (
	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Authentication required.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrTokenInvalid = &AppError{
		Code:       "TOKEN_INVALID",
		Message:    "Access token is invalid or expired.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrPermissionDenied = &AppError{
		Code:       "PERMISSION_DENIED",
		Message:    "You do not have permission to perform this action.",
		HTTPStatus: http.StatusForbidden,
	}

	// ErrOutOfHours no es un fallo duro: el cliente debe escalar a override.
	ErrOutOfHours = &AppError{
		Code:       "OUT_OF_HOURS",
		Message:    "Visitor entry is not allowed at this hour. Request a warden override.",
		HTTPStatus: http.StatusForbidden,
	}
)

// ---------------------------------------------------------------------------------
// 404 Not Found
// ---------------------------------------------------------------------------------

var (
	ErrStudentNotFound = &AppError{
		Code:       "STUDENT_NOT_FOUND",
		Message:    "Student not found or inactive.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrOTPNotFound = &AppError{
		Code:       "OTP_NOT_FOUND",
		Message:    "No active OTP found for this phone number.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrVisitNotFound = &AppError{
		Code:       "VISIT_NOT_FOUND",
		Message:    "Visit not found.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrOverrideNotFound = &AppError{
		Code:       "OVERRIDE_NOT_FOUND",
		Message:    "Override request not found.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrWhitelistEntryNotFound = &AppError{
		Code:       "WHITELIST_ENTRY_NOT_FOUND",
		Message:    "Phone number is not in the whitelist.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrRouteNotFound = &AppError{
		Code:       "ROUTE_NOT_FOUND",
		Message:    "Route not found.",
		HTTPStatus: http.StatusNotFound,
	}
)

// ---------------------------------------------------------------------------------
// 405 Method Not Allowed
// ---------------------------------------------------------------------------------

var (
	ErrMethodNotAllowed = &AppError{
		Code:       "METHOD_NOT_ALLOWED",
		Message:    "HTTP method not allowed for this resource.",
		HTTPStatus: http.StatusMethodNotAllowed,
	}
)

// ---------------------------------------------------------------------------------
// 429 Too Many Requests
// ---------------------------------------------------------------------------------

var (
	ErrRateLimitExceeded = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Too many requests. Try again later.",
		HTTPStatus: http.StatusTooManyRequests,
	}

	ErrBruteForceProtection = &AppError{
		Code:       "BRUTE_FORCE_PROTECTION",
		Message:    "Too many failed attempts for this phone number. Try again later.",
		HTTPStatus: http.StatusTooManyRequests,
	}
)

// ---------------------------------------------------------------------------------
// 500+
// ---------------------------------------------------------------------------------

var (
	// ErrServer es el catch-all: el cliente nunca ve la causa.
	ErrServer = &AppError{
		Code:       "SERVER_ERROR",
		Message:    "An internal error occurred.",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrServiceUnavailable = &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    "Service temporarily unavailable.",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)
