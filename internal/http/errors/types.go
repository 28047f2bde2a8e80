// Package errors define la taxonomía normalizada de errores del cliente de sesión.
//
// Todo error que sale del transporte o del servicio de sesión es un *AppError
// con la forma { message, status?, details? } que consume la UI.
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// AppError es el error normalizado del cliente.
type AppError struct {
	Code       string        `json:"code"`
	Message    string        `json:"message"`
	Status     int           `json:"status,omitempty"` // 0 = sin respuesta HTTP
	Details    any           `json:"details,omitempty"`
	RetryAfter time.Duration `json:"-"`
	Err        error         `json:"-"` // causa original, sólo para logs
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

// Is compara por Code, así errors.Is(err, ErrConflict) funciona sobre copias.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New crea un nuevo AppError
func New(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

// Clone devuelve una COPIA. Los errores predefinidos nunca salen del paquete
// sin copiar: quien mute el resultado no altera la taxonomía.
func (e *AppError) Clone() *AppError {
	n := *e
	return &n
}

// WithMessage devuelve una COPIA con otro mensaje (vacío = se conserva el original).
func (e *AppError) WithMessage(msg string) *AppError {
	n := *e
	if msg != "" {
		n.Message = msg
	}
	return &n
}

// WithStatus devuelve una COPIA con otro status HTTP.
func (e *AppError) WithStatus(status int) *AppError {
	n := *e
	n.Status = status
	return &n
}

// WithDetails devuelve una COPIA con detalles (errores de campo, conflictos).
func (e *AppError) WithDetails(d any) *AppError {
	n := *e
	n.Details = d
	return &n
}

// WithCause devuelve una COPIA con la causa original.
func (e *AppError) WithCause(err error) *AppError {
	n := *e
	n.Err = err
	return &n
}

// =================================================================================
// ERRORES PREDEFINIDOS
// =================================================================================

// Sin respuesta HTTP (status 0).
var (
	ErrNetwork = &AppError{
		Code:    "NETWORK_ERROR",
		Message: "No se pudo conectar con el servidor. Verifica tu conexión.",
	}

	ErrTimeout = &AppError{
		Code:    "CONNECTION_TIMEOUT",
		Message: "Tiempo de espera agotado al conectar con el servidor.",
	}

	ErrCanceled = &AppError{
		Code:    "REQUEST_CANCELED",
		Message: "La solicitud fue cancelada.",
	}
)

// Respuestas HTTP de error.
var (
	ErrInvalidCredentials = &AppError{
		Code:    "INVALID_CREDENTIALS",
		Message: "Credenciales incorrectas.",
		Status:  http.StatusUnauthorized,
	}

	ErrForbidden = &AppError{
		Code:    "FORBIDDEN",
		Message: "No tiene permisos para realizar esta acción.",
		Status:  http.StatusForbidden,
	}

	ErrNotFound = &AppError{
		Code:    "NOT_FOUND",
		Message: "El recurso solicitado no fue encontrado.",
		Status:  http.StatusNotFound,
	}

	ErrValidation = &AppError{
		Code:    "VALIDATION_FAILED",
		Message: "Los datos enviados no son válidos.",
		Status:  http.StatusUnprocessableEntity,
	}

	ErrConflict = &AppError{
		Code:    "CONFLICT",
		Message: "El registro entra en conflicto con uno existente.",
		Status:  http.StatusConflict,
	}

	ErrRateLimited = &AppError{
		Code:    "RATE_LIMITED",
		Message: "Demasiadas solicitudes. Intenta nuevamente en unos momentos.",
		Status:  http.StatusTooManyRequests,
	}

	ErrServer = &AppError{
		Code:    "SERVER_ERROR",
		Message: "Error del servidor, intenta más tarde.",
		Status:  http.StatusInternalServerError,
	}

	ErrUnexpected = &AppError{
		Code:    "UNEXPECTED",
		Message: "Ocurrió un error inesperado.",
	}
)

// Condiciones detectadas localmente.
var (
	ErrInvalidTokenFormat = &AppError{
		Code:    "INVALID_TOKEN_FORMAT",
		Message: "Formato de token inválido.",
	}

	ErrTokenExpired = &AppError{
		Code:    "TOKEN_EXPIRED",
		Message: "El token recibido ya expiró.",
	}

	ErrTokenMissing = &AppError{
		Code:    "TOKEN_MISSING",
		Message: "Token de autenticación no recibido del servidor",
	}

	ErrMalformedResponse = &AppError{
		Code:    "MALFORMED_RESPONSE",
		Message: "La respuesta del servidor no tiene un formato válido.",
	}
)

var predefined = map[*AppError]bool{
	ErrNetwork: true, ErrTimeout: true, ErrCanceled: true,
	ErrInvalidCredentials: true, ErrForbidden: true, ErrNotFound: true,
	ErrValidation: true, ErrConflict: true, ErrRateLimited: true,
	ErrServer: true, ErrUnexpected: true,
	ErrInvalidTokenFormat: true, ErrTokenExpired: true, ErrTokenMissing: true,
	ErrMalformedResponse: true,
}
