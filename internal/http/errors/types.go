// Package errors define el AppError estándar y su serialización JSON.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError define la estructura estándar para errores de la aplicación.
type AppError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Detail     string            `json:"detail,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
	HTTPStatus int               `json:"-"`
	Err        error             `json:"-"` // causa, sólo para logs
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
// Si no es un AppError, devuelve un error interno genérico conservando el error original.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServerError.WithCause(err)
}

// WithDetail agrega detalles adicionales al error.
// Devuelve una COPIA del error para no mutar las variables globales base
func (e *AppError) WithDetail(detail string) *AppError {
	newErr := *e
	newErr.Detail = detail
	return &newErr
}

// WithCause agrega el error original (causa)
// Devuelve una COPIA del error
func (e *AppError) WithCause(err error) *AppError {
	newErr := *e
	newErr.Err = err
	return &newErr
}

// WithField agrega un mensaje asociado a un campo del formulario (copia).
func (e *AppError) WithField(field, message string) *AppError {
	newErr := *e
	newErr.Fields = make(map[string]string, len(e.Fields)+1)
	for k, v := range e.Fields {
		newErr.Fields[k] = v
	}
	newErr.Fields[field] = message
	return &newErr
}

// Validation es un 422 con un único campo inválido.
func Validation(field, message string) *AppError {
	return ErrValidation.WithField(field, message)
}

// =================================================================================
// LISTA DE ERRORES PREDEFINIDOS
// =================================================================================

// 400 Bad Request
var (
	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "La solicitud contiene sintaxis inválida o parámetros faltantes.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidJSON = &AppError{
		Code:       "INVALID_JSON",
		Message:    "El cuerpo de la solicitud no es un JSON válido.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrBodyTooLarge = &AppError{
		Code:       "BODY_TOO_LARGE",
		Message:    "El cuerpo de la solicitud excede el tamaño máximo permitido.",
		HTTPStatus: http.StatusRequestEntityTooLarge,
	}

	ErrUnsupportedMediaType = &AppError{
		Code:       "UNSUPPORTED_MEDIA_TYPE",
		Message:    "Content-Type debe ser application/json.",
		HTTPStatus: http.StatusUnsupportedMediaType,
	}
)

// 401 / 403
var (
	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "No autorizado. Se requiere autenticación.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrForbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "No tiene permisos para realizar esta acción.",
		HTTPStatus: http.StatusForbidden,
	}

	ErrInvalidCSRF = &AppError{
		Code:       "INVALID_CSRF_TOKEN",
		Message:    "CSRF token missing or mismatch.",
		HTTPStatus: http.StatusForbidden,
	}

	// ErrTwoFactorRequired: la sesión tiene usuario con 2FA pero sin verificar.
	ErrTwoFactorRequired = &AppError{
		Code:       "TWO_FACTOR_REQUIRED",
		Message:    "Se requiere completar la verificación en dos pasos.",
		HTTPStatus: http.StatusForbidden,
	}

	ErrPasswordConfirmationRequired = &AppError{
		Code:       "PASSWORD_CONFIRMATION_REQUIRED",
		Message:    "Confirme su contraseña para continuar.",
		HTTPStatus: http.StatusLocked,
	}
)

// 404 / 405 / 409
var (
	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "El recurso solicitado no fue encontrado.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrRouteNotFound = &AppError{
		Code:       "ROUTE_NOT_FOUND",
		Message:    "La ruta solicitada no existe.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrMethodNotAllowed = &AppError{
		Code:       "METHOD_NOT_ALLOWED",
		Message:    "El método HTTP no está permitido para este recurso.",
		HTTPStatus: http.StatusMethodNotAllowed,
	}

	ErrConflict = &AppError{
		Code:       "CONFLICT",
		Message:    "La solicitud entra en conflicto con el estado actual del servidor.",
		HTTPStatus: http.StatusConflict,
	}

	// ErrNoPendingChallenge: no hay login esperando segundo factor.
	ErrNoPendingChallenge = &AppError{
		Code:       "NO_PENDING_CHALLENGE",
		Message:    "No hay un inicio de sesión pendiente de verificación.",
		HTTPStatus: http.StatusConflict,
	}
)

// 422 Unprocessable Entity
var (
	ErrValidation = &AppError{
		Code:       "VALIDATION_FAILED",
		Message:    "Los datos enviados no son válidos.",
		HTTPStatus: http.StatusUnprocessableEntity,
	}

	// ErrCeremonyFailed es la única respuesta para fallos criptográficos WebAuthn.
	ErrCeremonyFailed = &AppError{
		Code:       "PASSKEY_VERIFICATION_FAILED",
		Message:    "No se pudo verificar la passkey.",
		HTTPStatus: http.StatusUnprocessableEntity,
	}

	ErrChallengeExpired = &AppError{
		Code:       "CHALLENGE_EXPIRED",
		Message:    "El desafío expiró o ya fue usado. Inicie la operación nuevamente.",
		HTTPStatus: http.StatusUnprocessableEntity,
	}
)

// 429 Too Many Requests
var (
	ErrRateLimitExceeded = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Ha excedido el límite de solicitudes. Intente más tarde.",
		HTTPStatus: http.StatusTooManyRequests,
	}
)

// 500+
var (
	ErrInternalServerError = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Ocurrió un error interno en el servidor.",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrServiceUnavailable = &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    "El servicio no está disponible temporalmente.",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)
