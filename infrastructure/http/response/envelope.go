package response

import (
	"encoding/json"
	"net/http"

	apperror "github.com/complaintdesk/complaintdesk/pkg/error"
)

type Envelope struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
	Code    string      `json:"code,omitempty"`
}

func WriteJSON(w http.ResponseWriter, statusCode int, status bool, message string, data interface{}) {
	write(w, statusCode, Envelope{Status: status, Message: message, Data: data})
}

func write(w http.ResponseWriter, statusCode int, envelope Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(envelope)
}

func Success(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	WriteJSON(w, statusCode, true, message, data)
}

// ErrorWithCode writes a failure envelope carrying a machine-readable code
func ErrorWithCode(w http.ResponseWriter, statusCode int, message, code string) {
	write(w, statusCode, Envelope{Status: false, Message: message, Code: code})
}

// FromError maps err through apperror.MapError and writes the result
func FromError(w http.ResponseWriter, err error) *apperror.AppError {
	appErr := apperror.MapError(err)
	ErrorWithCode(w, appErr.Status, appErr.Message, appErr.Code)
	return appErr
}

func BadRequest(w http.ResponseWriter, message string) {
	ErrorWithCode(w, http.StatusBadRequest, message, apperror.ErrBadRequest.Code)
}

func Unauthorized(w http.ResponseWriter, message string) {
	ErrorWithCode(w, http.StatusUnauthorized, message, apperror.ErrUnauthorized.Code)
}

func NotFound(w http.ResponseWriter, message string) {
	ErrorWithCode(w, http.StatusNotFound, message, apperror.ErrNotFound.Code)
}

func TooManyRequests(w http.ResponseWriter, message string) {
	ErrorWithCode(w, http.StatusTooManyRequests, message, apperror.ErrTooManyRequests.Code)
}

func InternalServerError(w http.ResponseWriter, message string) {
	ErrorWithCode(w, http.StatusInternalServerError, message, apperror.ErrInternalServer.Code)
}
