package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"user-service/middleware"
	"user-service/models"
	"user-service/service"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

// UserService is the part of service.UserService the handlers call.
type UserService interface {
	Create(ctx context.Context, dto models.UserDTO) (models.User, error)
	GetByID(ctx context.Context, id int64) (models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, id int64, dto models.UserDTO) (models.User, error)
	Delete(ctx context.Context, id int64) error
	Authenticate(ctx context.Context, username, password string) (models.User, error)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.WithError(err).Warn("failed to encode response")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("Request body is required", err)
		}
		return badRequest("Invalid request payload", err)
	}
	return nil
}

func parseID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("Invalid user id", err)
	}
	return id, nil
}

func badRequest(message string, err error) *middleware.AppError {
	return middleware.NewAppError(http.StatusBadRequest, message, err).WithCode(models.ErrCodeBadRequest)
}

// mapServiceError turns a service failure into the response it should produce.
func mapServiceError(err error) error {
	message := err.Error()
	var domainErr *service.DomainError
	if errors.As(err, &domainErr) {
		message = domainErr.Message
	}

	switch {
	case errors.Is(err, service.ErrDuplicateResource):
		return middleware.NewAppError(http.StatusBadRequest, message, err).WithCode(models.ErrCodeDuplicateResource)
	case errors.Is(err, service.ErrNotFound):
		return middleware.NewAppError(http.StatusNotFound, message, err).WithCode(models.ErrCodeNotFound)
	case errors.Is(err, service.ErrInvalidCredentials):
		return middleware.NewAppError(http.StatusBadRequest, message, err).WithCode(models.ErrCodeInvalidCredentials)
	default:
		return middleware.NewAppError(http.StatusInternalServerError, "Internal server error", err)
	}
}
