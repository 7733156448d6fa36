package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"user-service/models"

	"github.com/sirupsen/logrus"
)

const internalErrorMessage = "Internal server error"

type AppHandler func(http.ResponseWriter, *http.Request) error

// AppError is an error with the response it should produce. Details, when
// set, is sent as the envelope's data.
type AppError struct {
	Status  int
	Code    string
	Message string
	Err     error
	Details any
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(status int, message string, err error) *AppError {
	return &AppError{Status: status, Message: message, Err: err}
}

func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.wroteHeader {
		rw.status = statusCode
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// ErrorHandler adapts an AppHandler, rendering returned errors and
// recovered panics as failure envelopes.
func ErrorHandler(handler AppHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if recovered := recover(); recovered != nil {
				requestLogger(r).WithField("panic", recovered).Error("panic recovered")
				if !rw.wroteHeader {
					WriteError(rw, http.StatusInternalServerError, internalErrorMessage, models.ErrCodeInternal)
				}
			}
		}()

		if err := handler(rw, r); err != nil {
			handleError(rw, r, err)
		}
	}
}

func handleError(w *responseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := internalErrorMessage
	code := ""
	var details any

	var appErr *AppError
	if errors.As(err, &appErr) {
		status = appErr.Status
		message = appErr.Message
		code = appErr.Code
		details = appErr.Details
	}
	if status >= http.StatusInternalServerError {
		requestLogger(r).WithError(err).WithField("status", status).Error("request failed")
	}
	if status == http.StatusInternalServerError {
		// Internal detail stays in the log.
		message = internalErrorMessage
		details = nil
	}
	if code == "" {
		code = codeForStatus(status)
	}

	if w.wroteHeader {
		return
	}

	response := models.Failure[any](message, code)
	if details != nil {
		response.SetData(details)
	}
	writeEnvelope(w, status, response)
}

// WriteError writes a failure envelope with no data.
func WriteError(w http.ResponseWriter, status int, message, code string) {
	writeEnvelope(w, status, models.Failure[any](message, code))
}

func writeEnvelope(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.WithError(err).Warn("failed to encode response")
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return models.ErrCodeBadRequest
	case http.StatusUnauthorized:
		return models.ErrCodeUnauthorized
	case http.StatusNotFound:
		return models.ErrCodeNotFound
	case http.StatusMethodNotAllowed:
		return models.ErrCodeMethodNotAllowed
	case http.StatusServiceUnavailable:
		return models.ErrCodeUnavailable
	default:
		if status >= http.StatusInternalServerError {
			return models.ErrCodeInternal
		}
		return models.ErrCodeBadRequest
	}
}
