package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"testing"
	"time"

	"user-service/config"
	"user-service/handlers"
	"user-service/store"
	"user-service/telemetry"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prodSecrets(name string) (string, error) {
	switch name {
	case "prod/jwt":
		return `{"JWT_ACCESS_SECRET":"from-secrets-manager","JWT_ISSUER":"user-service"}`, nil
	case "prod/postgres":
		return `{"username":"user","password":"pass","engine":"postgres","host":"localhost","port":5432,"dbInstanceIdentifier":"db"}`, nil
	case "prod/valkey":
		return `{"VALKEY_ADDR":"localhost:6379"}`, nil
	default:
		return "", errors.New("unknown")
	}
}

func testConfig() config.Config {
	return config.Config{
		AppEnv:   "dev",
		LogLevel: "info",
		Auth: config.AuthConfig{
			AccessTokenSecret: []byte("secret"),
			AccessCookieName:  "access_token",
			AccessTokenTTL:    time.Minute,
			BcryptCost:        4,
		},
		HTTP: config.HTTPConfig{ShutdownTimeout: time.Second},
		DB:   config.DatabaseConfig{Engine: config.EnginePostgres},
		CORS: config.CORSConfig{AllowedOrigins: []string{"http://localhost"}},
	}
}

// stubRun replaces every collaborator run touches and restores them when the
// test ends.
func stubRun(t *testing.T) {
	t.Helper()
	originalLoadEnv := loadEnv
	originalLoadConfig := loadConfig
	originalConnectDB := connectDB
	originalMigrateDB := migrateDB
	originalNewTokenStore := newTokenStore
	originalInitTelemetry := initTelemetry
	originalSetupRoutes := setupRoutes
	originalListenAndServe := listenAndServe
	t.Cleanup(func() {
		loadEnv = originalLoadEnv
		loadConfig = originalLoadConfig
		connectDB = originalConnectDB
		migrateDB = originalMigrateDB
		newTokenStore = originalNewTokenStore
		initTelemetry = originalInitTelemetry
		setupRoutes = originalSetupRoutes
		listenAndServe = originalListenAndServe
	})

	mockDB, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	loadEnv = func(_ ...string) error { return errors.New("no env") }
	loadConfig = func() (config.Config, error) { return testConfig(), nil }
	connectDB = func(cfg config.DatabaseConfig) (*sqlx.DB, error) { return sqlx.NewDb(mockDB, "postgres"), nil }
	migrateDB = func(ctx context.Context, database *sqlx.DB) error { return nil }
	newTokenStore = func(cfg config.ValkeyConfig) (store.TokenStore, error) { return store.NewMemoryStore(), nil }
	initTelemetry = func(ctx context.Context, cfg config.Config) (telemetry.ShutdownFunc, error) {
		return func(context.Context) error { return nil }, nil
	}
	setupRoutes = func(cfg config.Config, tokenStore store.TokenStore, userHandler *handlers.UserHandler, authHandler *handlers.AuthHandler, healthHandler *handlers.HealthHandler) *mux.Router {
		return mux.NewRouter()
	}
	listenAndServe = func(srv *http.Server) error { return nil }
}

func TestLoadSecretMapErrors(t *testing.T) {
	originalGetSecret := getSecret
	getSecret = func(name string) (string, error) {
		return "", errors.New("secret error")
	}
	defer func() { getSecret = originalGetSecret }()

	_, err := loadSecretMap("prod/jwt")
	assert.Error(t, err)

	getSecret = func(name string) (string, error) {
		return "not-json", nil
	}
	_, err = loadSecretMap("prod/jwt")
	assert.Error(t, err)
}

func TestLoadProdSecretsSuccess(t *testing.T) {
	for _, key := range []string{"JWT_ACCESS_SECRET", "JWT_ISSUER", "DB_USERNAME", "DB_PASSWORD", "DB_ENGINE", "DB_HOST", "DB_PORT", "DB_INSTANCE_IDENTIFIER", "VALKEY_ADDR"} {
		t.Setenv(key, "")
	}
	originalGetSecret := getSecret
	getSecret = prodSecrets
	defer func() { getSecret = originalGetSecret }()

	assert.NoError(t, loadProdSecrets())
	assert.Equal(t, "from-secrets-manager", os.Getenv("JWT_ACCESS_SECRET"))
	assert.Equal(t, "user", os.Getenv("DB_USERNAME"))
	assert.Equal(t, "localhost", os.Getenv("DB_HOST"))
	assert.Equal(t, "5432", os.Getenv("DB_PORT"))
	assert.Equal(t, "db", os.Getenv("DB_INSTANCE_IDENTIFIER"))
	assert.Equal(t, "localhost:6379", os.Getenv("VALKEY_ADDR"))
}

func TestLoadProdSecretsInvalidPostgresJSON(t *testing.T) {
	originalGetSecret := getSecret
	getSecret = func(name string) (string, error) {
		if name == "prod/postgres" {
			return "not-json", nil
		}
		return prodSecrets(name)
	}
	defer func() { getSecret = originalGetSecret }()

	assert.Error(t, loadProdSecrets())
}

func TestLoadProdSecretsPostgresError(t *testing.T) {
	originalGetSecret := getSecret
	getSecret = func(name string) (string, error) {
		if name == "prod/postgres" {
			return "", errors.New("access denied")
		}
		return prodSecrets(name)
	}
	defer func() { getSecret = originalGetSecret }()

	assert.Error(t, loadProdSecrets())
}

func TestLoadProdSecretsError(t *testing.T) {
	originalGetSecret := getSecret
	getSecret = func(name string) (string, error) {
		return "", errors.New("secret error")
	}
	defer func() { getSecret = originalGetSecret }()

	assert.Error(t, loadProdSecrets())
}

func TestRunSuccess(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	stubRun(t)

	assert.NoError(t, run())
}

func TestRunWiresDependencies(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	stubRun(t)

	var migrated, routed bool
	var server *http.Server
	migrateDB = func(ctx context.Context, database *sqlx.DB) error {
		migrated = true
		return nil
	}
	setupRoutes = func(cfg config.Config, tokenStore store.TokenStore, userHandler *handlers.UserHandler, authHandler *handlers.AuthHandler, healthHandler *handlers.HealthHandler) *mux.Router {
		routed = userHandler != nil && authHandler != nil && healthHandler != nil && tokenStore != nil
		return mux.NewRouter()
	}
	listenAndServe = func(srv *http.Server) error {
		server = srv
		return http.ErrServerClosed
	}

	require.NoError(t, run())
	assert.True(t, migrated)
	assert.True(t, routed)
	require.NotNil(t, server)
	assert.Equal(t, ":8080", server.Addr)
}

func TestRunProdSecretsError(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	stubRun(t)
	originalGetSecret := getSecret
	getSecret = func(name string) (string, error) { return "", errors.New("secret error") }
	defer func() { getSecret = originalGetSecret }()

	assert.Error(t, run())
}

func TestRunConfigError(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	stubRun(t)
	loadConfig = func() (config.Config, error) { return config.Config{}, errors.New("config error") }

	assert.Error(t, run())
}

func TestRunTelemetryError(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	stubRun(t)
	initTelemetry = func(ctx context.Context, cfg config.Config) (telemetry.ShutdownFunc, error) {
		return nil, errors.New("bad exporter")
	}

	assert.Error(t, run())
}

func TestRunConnectDBError(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	stubRun(t)
	connectDB = func(cfg config.DatabaseConfig) (*sqlx.DB, error) { return nil, errors.New("db error") }

	assert.Error(t, run())
}

func TestRunMigrateError(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	stubRun(t)
	migrateDB = func(ctx context.Context, database *sqlx.DB) error { return errors.New("permission denied") }

	assert.Error(t, run())
}

func TestRunTokenStoreError(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	stubRun(t)
	newTokenStore = func(cfg config.ValkeyConfig) (store.TokenStore, error) {
		return nil, errors.New("valkey error")
	}

	assert.Error(t, run())
}

func TestRunListenError(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	stubRun(t)
	listenAndServe = func(srv *http.Server) error { return errors.New("address in use") }

	assert.Error(t, run())
}

func TestServeShutsDownOnCancel(t *testing.T) {
	originalListenAndServe := listenAndServe
	listenAndServe = func(srv *http.Server) error { return srv.ListenAndServe() }
	defer func() { listenAndServe = originalListenAndServe }()

	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}

	done := make(chan error, 1)
	go func() { done <- serve(ctx, srv, time.Second) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
}

func TestConfigureLogging(t *testing.T) {
	cfg := testConfig()
	cfg.LogLevel = "not-a-level"
	configureLogging(cfg)

	cfg.AppEnv = "prod"
	cfg.LogLevel = "warn"
	configureLogging(cfg)
	t.Cleanup(func() { configureLogging(testConfig()) })
}

func TestMainFunction(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	stubRun(t)
	originalLogFatal := logFatal
	called := false
	logFatal = func(args ...interface{}) { called = true }
	defer func() { logFatal = originalLogFatal }()

	main()
	assert.False(t, called)
}

func TestMainFunctionError(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	stubRun(t)
	loadConfig = func() (config.Config, error) { return config.Config{}, errors.New("config error") }
	originalLogFatal := logFatal
	called := false
	logFatal = func(args ...interface{}) {
		called = true
	}
	defer func() { logFatal = originalLogFatal }()

	main()
	assert.True(t, called)
}
