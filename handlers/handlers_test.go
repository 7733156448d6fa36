package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"user-service/config"
	"user-service/middleware"
	"user-service/models"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

type fakeUserService struct {
	createFn       func(ctx context.Context, dto models.UserDTO) (models.User, error)
	getByIDFn      func(ctx context.Context, id int64) (models.User, error)
	listFn         func(ctx context.Context) ([]models.User, error)
	updateFn       func(ctx context.Context, id int64, dto models.UserDTO) (models.User, error)
	deleteFn       func(ctx context.Context, id int64) error
	authenticateFn func(ctx context.Context, username, password string) (models.User, error)
}

func (f *fakeUserService) Create(ctx context.Context, dto models.UserDTO) (models.User, error) {
	return f.createFn(ctx, dto)
}

func (f *fakeUserService) GetByID(ctx context.Context, id int64) (models.User, error) {
	return f.getByIDFn(ctx, id)
}

func (f *fakeUserService) List(ctx context.Context) ([]models.User, error) {
	return f.listFn(ctx)
}

func (f *fakeUserService) Update(ctx context.Context, id int64, dto models.UserDTO) (models.User, error) {
	return f.updateFn(ctx, id, dto)
}

func (f *fakeUserService) Delete(ctx context.Context, id int64) error {
	return f.deleteFn(ctx, id)
}

func (f *fakeUserService) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	return f.authenticateFn(ctx, username, password)
}

type envelope struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	ErrorCode string          `json:"errorCode"`
	Timestamp int64           `json:"timestamp"`
}

func configForTests() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			AccessTokenSecret: []byte("access-secret"),
			Issuer:            "user-service-test",
			AccessTokenTTL:    15 * time.Minute,
			AccessCookieName:  "access_token",
		},
		Cookie: config.CookieConfig{
			Path:     "/",
			SameSite: http.SameSiteLaxMode,
		},
	}
}

func sampleUser() models.User {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return models.User{ID: 1, Username: "alice", Email: "alice@example.com", PasswordHash: "hash", CreatedAt: ts, UpdatedAt: ts}
}

func newRequest(method, target, body string, vars map[string]string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	return req
}

func run(handler middleware.AppHandler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	middleware.ErrorHandler(handler).ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var payload envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func decodeData(t *testing.T, payload envelope, dst any) {
	t.Helper()
	require.NotEmpty(t, payload.Data)
	require.NoError(t, json.Unmarshal(payload.Data, dst))
}

func jsonBody(t *testing.T, v any) string {
	t.Helper()
	var sb strings.Builder
	require.NoError(t, json.NewEncoder(&sb).Encode(v))
	return sb.String()
}
