package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"user-service/config"
	"user-service/db"
	"user-service/handlers"
	"user-service/repository"
	"user-service/routes"
	"user-service/secretmanager"
	"user-service/service"
	"user-service/store"
	"user-service/telemetry"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	loadEnv        = godotenv.Load
	loadConfig     = config.Load
	connectDB      = db.Connect
	migrateDB      = db.Migrate
	newTokenStore  = store.New
	initTelemetry  = telemetry.Init
	setupRoutes    = routes.SetupRoutes
	listenAndServe = func(srv *http.Server) error { return srv.ListenAndServe() }
	notifyContext  = signal.NotifyContext
	getSecret      = secretmanager.GetSecret
	setEnv         = os.Setenv
	logFatal       = logrus.Fatal
)

type postgresSecret struct {
	Username             string `json:"username"`
	Password             string `json:"password"`
	Engine               string `json:"engine"`
	Host                 string `json:"host"`
	Port                 int    `json:"port"`
	DBInstanceIdentifier string `json:"dbInstanceIdentifier"`
}

func loadSecretMap(secretName string) (map[string]string, error) {
	secretJSON, err := getSecret(secretName)
	if err != nil {
		return nil, err
	}
	secrets := make(map[string]string)
	if err := json.Unmarshal([]byte(secretJSON), &secrets); err != nil {
		return nil, err
	}
	return secrets, nil
}

func setEnvFromMap(values map[string]string) error {
	for key, value := range values {
		if err := setEnv(key, value); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

func validatePostgresSecret(secret postgresSecret) error {
	var missing []string
	for name, value := range map[string]string{
		"username":             secret.Username,
		"password":             secret.Password,
		"engine":               secret.Engine,
		"host":                 secret.Host,
		"dbInstanceIdentifier": secret.DBInstanceIdentifier,
	} {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("postgres secret missing fields: %s", strings.Join(missing, ", "))
	}
	if secret.Port <= 0 || secret.Port > 65535 {
		return fmt.Errorf("postgres secret has invalid port: %d", secret.Port)
	}
	return nil
}

func loadPostgresSecret() (postgresSecret, error) {
	raw, err := getSecret("prod/postgres")
	if err != nil {
		return postgresSecret{}, fmt.Errorf("error retrieving Postgres secret: %w", err)
	}
	var secret postgresSecret
	if err := json.Unmarshal([]byte(raw), &secret); err != nil {
		return postgresSecret{}, fmt.Errorf("error parsing Postgres secret JSON: %w", err)
	}
	if err := validatePostgresSecret(secret); err != nil {
		return postgresSecret{}, err
	}
	return secret, nil
}

func loadProdSecrets() error {
	jwtSecrets, err := loadSecretMap("prod/jwt")
	if err != nil {
		return fmt.Errorf("error retrieving JWT secret: %w", err)
	}
	if err := setEnvFromMap(jwtSecrets); err != nil {
		return err
	}

	pg, err := loadPostgresSecret()
	if err != nil {
		return err
	}
	for _, kv := range [][2]string{
		{"DB_USERNAME", pg.Username},
		{"DB_PASSWORD", pg.Password},
		{"DB_ENGINE", pg.Engine},
		{"DB_HOST", pg.Host},
		{"DB_PORT", strconv.Itoa(pg.Port)},
		{"DB_INSTANCE_IDENTIFIER", pg.DBInstanceIdentifier},
	} {
		if err := setEnv(kv[0], kv[1]); err != nil {
			return fmt.Errorf("set %s: %w", kv[0], err)
		}
	}

	// Valkey is optional; without it the in-memory token store is used.
	valkeySecrets, err := loadSecretMap("prod/valkey")
	if err != nil {
		logrus.WithError(err).Info("no Valkey secret loaded")
		return nil
	}
	return setEnvFromMap(valkeySecrets)
}

func configureLogging(cfg config.Config) {
	if cfg.AppEnv == "prod" {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

func corsHandler(cfg config.Config) func(http.Handler) http.Handler {
	return gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins(cfg.CORS.AllowedOrigins),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Requested-With", "X-Request-ID"}),
		gorillaHandlers.ExposedHeaders([]string{"X-Request-ID"}),
		gorillaHandlers.AllowCredentials(),
	)
}

func main() {
	if err := run(); err != nil {
		logFatal(err)
	}
}

func run() error {
	if err := loadEnv(); err != nil {
		logrus.Info("No .env file found; using system environment variables")
	}
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "dev"
	}

	if appEnv == "prod" {
		if err := loadProdSecrets(); err != nil {
			return err
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	configureLogging(cfg)
	logrus.WithField("env", cfg.AppEnv).Info("starting user-service")

	ctx, stop := notifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := initTelemetry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("telemetry error: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logrus.WithError(err).Warn("telemetry shutdown failed")
		}
	}()

	database, err := connectDB(cfg.DB)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := migrateDB(ctx, database); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	tokenStore, err := newTokenStore(cfg.Valkey)
	if err != nil {
		return fmt.Errorf("token store error: %w", err)
	}
	defer tokenStore.Close()

	userService := service.NewUserService(repository.NewUserRepository(database), cfg.Auth.BcryptCost)
	router := setupRoutes(
		cfg,
		tokenStore,
		handlers.NewUserHandler(userService),
		handlers.NewAuthHandler(cfg, userService, tokenStore),
		handlers.NewHealthHandler(database),
	)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           otelhttp.NewHandler(corsHandler(cfg)(router), cfg.Telemetry.ServiceName),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	logrus.WithFields(logrus.Fields{
		"port": port,
		"cors": strings.Join(cfg.CORS.AllowedOrigins, ","),
		"db":   cfg.DB.Engine,
	}).Info("starting server")
	return serve(ctx, srv, cfg.HTTP.ShutdownTimeout)
}

// serve runs srv until it fails or ctx is cancelled, then drains in-flight
// requests for up to timeout.
func serve(ctx context.Context, srv *http.Server, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- listenAndServe(srv)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logrus.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	}
}
