package utils

import (
	"errors"
	"net/http"
)

var ErrorRecordNotFound = errors.New("record not found")

type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration"
	KindValidation    ErrorKind = "validation"
	KindNotFound      ErrorKind = "not_found"
	KindUpstream      ErrorKind = "upstream"
	KindInternal      ErrorKind = "internal"
)

// AppError carries a client-safe Message; Err is for logs only.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func ConfigurationError(message string, err error) *AppError {
	return &AppError{Kind: KindConfiguration, Message: message, Err: err}
}

func ValidationError(message string, err error) *AppError {
	return &AppError{Kind: KindValidation, Message: message, Err: err}
}

func NotFoundError(message string, err error) *AppError {
	return &AppError{Kind: KindNotFound, Message: message, Err: err}
}

func UpstreamError(message string, err error) *AppError {
	return &AppError{Kind: KindUpstream, Message: message, Err: err}
}

func InternalError(message string, err error) *AppError {
	return &AppError{Kind: KindInternal, Message: message, Err: err}
}

// AsAppError unwraps err into an AppError, wrapping anything unknown as internal.
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return InternalError("Error interno del servidor", err)
}

// ErrorResponse is the envelope the front end expects on failures.
func ErrorResponse(err error) (int, map[string]any) {
	appErr := AsAppError(err)
	return appErr.HTTPStatus(), map[string]any{"ok": false, "error": appErr.Message}
}
