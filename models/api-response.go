package models

import "time"

const DefaultSuccessMessage = "Operation successful"

// Error codes carried by failed responses.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeDuplicateResource  = "DUPLICATE_RESOURCE"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	ErrCodeUnavailable        = "SERVICE_UNAVAILABLE"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

var now = time.Now

// APIResponse is the envelope every endpoint responds with. Timestamp is
// milliseconds since the Unix epoch, stamped when the response is built.
type APIResponse[T any] struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Data      *T     `json:"data,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func newResponse[T any](success bool, message string, data *T, errorCode string) APIResponse[T] {
	return APIResponse[T]{
		Success:   success,
		Message:   message,
		Data:      data,
		ErrorCode: errorCode,
		Timestamp: now().UnixMilli(),
	}
}

func Success[T any](message string, data T) APIResponse[T] {
	return newResponse(true, message, &data, "")
}

func SuccessData[T any](data T) APIResponse[T] {
	return newResponse(true, DefaultSuccessMessage, &data, "")
}

func SuccessMessage(message string) APIResponse[any] {
	return newResponse[any](true, message, nil, "")
}

func Failure[T any](message, errorCode string) APIResponse[T] {
	return newResponse[T](false, message, nil, errorCode)
}

func (r *APIResponse[T]) SetData(data T) {
	r.Data = &data
}

func (r *APIResponse[T]) SetTimestamp(timestamp int64) {
	r.Timestamp = timestamp
}
