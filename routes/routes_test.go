package routes_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"user-service/config"
	"user-service/handlers"
	"user-service/middleware"
	"user-service/models"
	"user-service/routes"
	"user-service/service"
	"user-service/store"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsers struct{}

func (stubUsers) Create(_ context.Context, dto models.UserDTO) (models.User, error) {
	return models.User{ID: 1, Username: *dto.Username, Email: *dto.Email}, nil
}

func (stubUsers) GetByID(_ context.Context, id int64) (models.User, error) {
	if id != 1 {
		return models.User{}, service.ErrUserNotFound
	}
	return models.User{ID: 1, Username: "alice", Email: "alice@example.com"}, nil
}

func (stubUsers) List(context.Context) ([]models.User, error) {
	return []models.User{{ID: 1, Username: "alice"}}, nil
}

func (stubUsers) Update(_ context.Context, id int64, _ models.UserDTO) (models.User, error) {
	return models.User{ID: id}, nil
}

func (stubUsers) Delete(context.Context, int64) error { return nil }

func (stubUsers) Authenticate(context.Context, string, string) (models.User, error) {
	return models.User{ID: 1, Username: "alice"}, nil
}

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			AccessTokenSecret: []byte("test"),
			AccessCookieName:  "access_token",
			Issuer:            "test",
			AccessTokenTTL:    time.Minute,
		},
		Cookie: config.CookieConfig{Path: "/"},
	}
}

func newRouter(t *testing.T) *mux.Router {
	t.Helper()
	cfg := testConfig()
	tokenStore := store.NewMemoryStore()
	return routes.SetupRoutes(
		cfg,
		tokenStore,
		handlers.NewUserHandler(stubUsers{}),
		handlers.NewAuthHandler(cfg, stubUsers{}, tokenStore),
		handlers.NewHealthHandler(okPinger{}),
	)
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSetupRoutesRegistersEndpoints(t *testing.T) {
	router := newRouter(t)

	tests := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{http.MethodPost, "/api/users", `{"username":"alice","email":"alice@example.com","password":"secret1"}`, http.StatusCreated},
		{http.MethodGet, "/api/users", "", http.StatusOK},
		{http.MethodGet, "/api/users/1", "", http.StatusOK},
		{http.MethodGet, "/api/users/2", "", http.StatusNotFound},
		{http.MethodPut, "/api/users/1", `{"email":"new@example.com"}`, http.StatusOK},
		{http.MethodDelete, "/api/users/1", "", http.StatusOK},
		{http.MethodPost, "/api/auth/register", `{"username":"alice","email":"alice@example.com","password":"secret1"}`, http.StatusOK},
		{http.MethodPost, "/api/auth/login", `{"username":"alice","password":"secret1"}`, http.StatusOK},
		{http.MethodPost, "/api/auth/logout", "", http.StatusOK},
		{http.MethodGet, "/api/auth/me", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/health", "", http.StatusOK},
	}

	for _, tt := range tests {
		rec := do(router, tt.method, tt.path, tt.body)
		assert.Equal(t, tt.status, rec.Code, "%s %s", tt.method, tt.path)
		assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader), "%s %s", tt.method, tt.path)
	}
}

func TestLoginThenMe(t *testing.T) {
	router := newRouter(t)

	login := do(router, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"secret1"}`)
	require.Equal(t, http.StatusOK, login.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	for _, cookie := range login.Result().Cookies() {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"alice"`)
}

func TestUnknownRouteReturnsEnvelope(t *testing.T) {
	rec := do(newRouter(t), http.MethodGet, "/api/nothing", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, false, payload["success"])
	assert.Equal(t, "NOT_FOUND", payload["errorCode"])
}

func TestWrongMethodReturnsEnvelope(t *testing.T) {
	rec := do(newRouter(t), http.MethodPatch, "/api/users/1", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), `"errorCode":"METHOD_NOT_ALLOWED"`)
}
