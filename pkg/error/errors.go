package error

import (
	"errors"
	"net/http"

	"github.com/complaintdesk/complaintdesk/internal/domain"
)

type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (e *AppError) Error() string {
	return e.Message
}

var (
	ErrBadRequest      = &AppError{Code: "BAD_REQUEST", Message: "Bad request", Status: http.StatusBadRequest}
	ErrUnauthorized    = &AppError{Code: "UNAUTHORIZED", Message: "Unauthorized", Status: http.StatusUnauthorized}
	ErrNotFound        = &AppError{Code: "NOT_FOUND", Message: "Not found", Status: http.StatusNotFound}
	ErrTooManyRequests = &AppError{Code: "RATE_LIMITED", Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests}
	ErrInternalServer  = &AppError{Code: "INTERNAL_ERROR", Message: "Internal server error", Status: http.StatusInternalServerError}
	ErrUnavailable     = &AppError{Code: "UNAVAILABLE", Message: "Service temporarily unavailable", Status: http.StatusServiceUnavailable}
)

func NewValidation(message string) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: message, Status: http.StatusBadRequest}
}

func NewForbidden(message string) *AppError {
	return &AppError{Code: "ACCESS_DENIED", Message: message, Status: http.StatusForbidden}
}

func NewNotFound(message string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: message, Status: http.StatusNotFound}
}

func NewInternalServer(message string) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: message, Status: http.StatusInternalServerError}
}

// MapError translates domain and application errors into an HTTP-facing AppError.
// Anything unrecognised becomes a 500 without leaking its message.
func MapError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		switch domainErr.Kind {
		case domain.KindAccessDenied:
			return NewForbidden(domainErr.Message)
		case domain.KindNotFound:
			return NewNotFound(domainErr.Message)
		case domain.KindValidation:
			return NewValidation(domainErr.Message)
		}
	}

	return NewInternalServer("An unexpected error occurred")
}
