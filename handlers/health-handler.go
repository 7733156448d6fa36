package handlers

import (
	"context"
	"net/http"
	"time"

	"user-service/middleware"
	"user-service/models"
)

const healthTimeout = 2 * time.Second

type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

type healthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		return middleware.NewAppError(http.StatusServiceUnavailable, "Database unavailable", err).
			WithCode(models.ErrCodeUnavailable)
	}
	writeJSON(w, http.StatusOK, models.SuccessData(healthStatus{Status: "UP", Database: "UP"}))
	return nil
}
