package config

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppEnv    string
	Port      string
	LogLevel  string
	HTTP      HTTPConfig
	DB        DatabaseConfig
	Auth      AuthConfig
	Cookie    CookieConfig
	CORS      CORSConfig
	Valkey    ValkeyConfig
	Telemetry TelemetryConfig
}

type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Engine       string
	Host         string
	Port         string
	Name         string
	Username     string
	Password     string
	SSLMode      string
	Path         string
	MaxOpenConns int
}

type AuthConfig struct {
	AccessTokenSecret []byte
	Issuer            string
	AccessTokenTTL    time.Duration
	AccessCookieName  string
	BcryptCost        int
}

type CookieConfig struct {
	Domain   string
	Secure   bool
	SameSite http.SameSite
	Path     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// ValkeyConfig points at the token store. An empty Addr selects the
// in-process store.
type ValkeyConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type TelemetryConfig struct {
	ServiceName          string
	ServiceVersion       string
	OTLPEndpoint         string
	OTLPTracesEndpoint   string
	OTLPMetricsEndpoint  string
	OTLPProtocol         string
	OTLPHeaders          map[string]string
	OTLPInsecure         bool
	ExportTimeout        time.Duration
	MetricExportInterval time.Duration
}

const (
	EnginePostgres = "postgres"
	EngineSQLite   = "sqlite"
)

var defaults = map[string]string{
	"APP_ENV":                     "dev",
	"APP_PORT":                    "8080",
	"LOG_LEVEL":                   "info",
	"HTTP_READ_TIMEOUT":           "15s",
	"HTTP_WRITE_TIMEOUT":          "15s",
	"SHUTDOWN_TIMEOUT":            "10s",
	"DB_ENGINE":                   EnginePostgres,
	"DB_HOST":                     "localhost",
	"DB_PORT":                     "5432",
	"DB_PATH":                     "data/users.db",
	"DB_MAX_OPEN_CONNS":           "10",
	"JWT_ISSUER":                  "user-service",
	"JWT_ACCESS_TTL":              "15m",
	"AUTH_ACCESS_COOKIE_NAME":     "access_token",
	"BCRYPT_COST":                 "10",
	"COOKIE_SAMESITE":             "lax",
	"COOKIE_PATH":                 "/",
	"CORS_ALLOWED_ORIGINS":        "http://localhost:3000",
	"VALKEY_DB":                   "0",
	"VALKEY_PREFIX":               "user-service:tokens",
	"OTEL_SERVICE_NAME":           "user-service",
	"OTEL_SERVICE_VERSION":        "dev",
	"OTEL_EXPORTER_OTLP_PROTOCOL": "grpc",
	"OTEL_EXPORTER_TIMEOUT":       "10s",
	"OTEL_METRIC_EXPORT_INTERVAL": "60s",
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	return v
}

func Load() (Config, error) {
	v := newViper()
	appEnv := v.GetString("APP_ENV")

	accessSecret := v.GetString("JWT_ACCESS_SECRET")
	if accessSecret == "" {
		return Config{}, errors.New("JWT_ACCESS_SECRET must be set")
	}

	accessTTL, err := time.ParseDuration(v.GetString("JWT_ACCESS_TTL"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid JWT_ACCESS_TTL: %w", err)
	}

	bcryptCost, err := strconv.Atoi(v.GetString("BCRYPT_COST"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid BCRYPT_COST: %w", err)
	}

	httpCfg, err := loadHTTP(v)
	if err != nil {
		return Config{}, err
	}

	dbCfg, err := loadDatabase(v, appEnv)
	if err != nil {
		return Config{}, err
	}

	sameSite, err := parseSameSite(v.GetString("COOKIE_SAMESITE"))
	if err != nil {
		return Config{}, err
	}

	valkeyDB, err := strconv.Atoi(v.GetString("VALKEY_DB"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid VALKEY_DB: %w", err)
	}

	telemetryCfg, err := loadTelemetry(v)
	if err != nil {
		return Config{}, err
	}

	return Config{
		AppEnv:   appEnv,
		Port:     v.GetString("APP_PORT"),
		LogLevel: v.GetString("LOG_LEVEL"),
		HTTP:     httpCfg,
		DB:       dbCfg,
		Auth: AuthConfig{
			AccessTokenSecret: []byte(accessSecret),
			Issuer:            v.GetString("JWT_ISSUER"),
			AccessTokenTTL:    accessTTL,
			AccessCookieName:  v.GetString("AUTH_ACCESS_COOKIE_NAME"),
			BcryptCost:        bcryptCost,
		},
		Cookie: CookieConfig{
			Domain:   v.GetString("COOKIE_DOMAIN"),
			Secure:   getBool(v, "COOKIE_SECURE", appEnv == "prod"),
			SameSite: sameSite,
			Path:     v.GetString("COOKIE_PATH"),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseCSV(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Valkey: ValkeyConfig{
			Addr:     v.GetString("VALKEY_ADDR"),
			Password: v.GetString("VALKEY_PASSWORD"),
			DB:       valkeyDB,
			Prefix:   v.GetString("VALKEY_PREFIX"),
		},
		Telemetry: telemetryCfg,
	}, nil
}

func loadHTTP(v *viper.Viper) (HTTPConfig, error) {
	readTimeout, err := time.ParseDuration(v.GetString("HTTP_READ_TIMEOUT"))
	if err != nil {
		return HTTPConfig{}, fmt.Errorf("invalid HTTP_READ_TIMEOUT: %w", err)
	}
	writeTimeout, err := time.ParseDuration(v.GetString("HTTP_WRITE_TIMEOUT"))
	if err != nil {
		return HTTPConfig{}, fmt.Errorf("invalid HTTP_WRITE_TIMEOUT: %w", err)
	}
	shutdownTimeout, err := time.ParseDuration(v.GetString("SHUTDOWN_TIMEOUT"))
	if err != nil {
		return HTTPConfig{}, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}
	return HTTPConfig{
		ReadTimeout:     readTimeout,
		WriteTimeout:    writeTimeout,
		ShutdownTimeout: shutdownTimeout,
	}, nil
}

func loadDatabase(v *viper.Viper, appEnv string) (DatabaseConfig, error) {
	maxOpen, err := strconv.Atoi(v.GetString("DB_MAX_OPEN_CONNS"))
	if err != nil {
		return DatabaseConfig{}, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}

	dbName := v.GetString("DB_NAME")
	if dbName == "" {
		dbName = v.GetString("DB_INSTANCE_IDENTIFIER")
	}

	sslMode := v.GetString("DB_SSLMODE")
	if sslMode == "" {
		if appEnv == "prod" {
			sslMode = "require"
		} else {
			sslMode = "disable"
		}
	}

	cfg := DatabaseConfig{
		Engine:       strings.ToLower(v.GetString("DB_ENGINE")),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetString("DB_PORT"),
		Name:         dbName,
		Username:     v.GetString("DB_USERNAME"),
		Password:     v.GetString("DB_PASSWORD"),
		SSLMode:      sslMode,
		Path:         v.GetString("DB_PATH"),
		MaxOpenConns: maxOpen,
	}

	switch cfg.Engine {
	case EnginePostgres:
		if cfg.Name == "" || cfg.Username == "" {
			return DatabaseConfig{}, errors.New("DB_NAME (or DB_INSTANCE_IDENTIFIER) and DB_USERNAME must be set")
		}
	case EngineSQLite:
		if cfg.Path == "" {
			return DatabaseConfig{}, errors.New("DB_PATH must be set for the sqlite engine")
		}
	default:
		return DatabaseConfig{}, fmt.Errorf("unsupported DB_ENGINE: %s", cfg.Engine)
	}
	return cfg, nil
}

func loadTelemetry(v *viper.Viper) (TelemetryConfig, error) {
	exportTimeout, err := time.ParseDuration(v.GetString("OTEL_EXPORTER_TIMEOUT"))
	if err != nil {
		return TelemetryConfig{}, fmt.Errorf("invalid OTEL_EXPORTER_TIMEOUT: %w", err)
	}
	metricInterval, err := time.ParseDuration(v.GetString("OTEL_METRIC_EXPORT_INTERVAL"))
	if err != nil {
		return TelemetryConfig{}, fmt.Errorf("invalid OTEL_METRIC_EXPORT_INTERVAL: %w", err)
	}
	headers, err := parseHeaders(v.GetString("OTEL_EXPORTER_OTLP_HEADERS"))
	if err != nil {
		return TelemetryConfig{}, err
	}

	return TelemetryConfig{
		ServiceName:          v.GetString("OTEL_SERVICE_NAME"),
		ServiceVersion:       v.GetString("OTEL_SERVICE_VERSION"),
		OTLPEndpoint:         v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPTracesEndpoint:   v.GetString("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"),
		OTLPMetricsEndpoint:  v.GetString("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"),
		OTLPProtocol:         v.GetString("OTEL_EXPORTER_OTLP_PROTOCOL"),
		OTLPHeaders:          headers,
		OTLPInsecure:         getBool(v, "OTEL_EXPORTER_OTLP_INSECURE", false),
		ExportTimeout:        exportTimeout,
		MetricExportInterval: metricInterval,
	}, nil
}

func getBool(v *viper.Viper, key string, fallback bool) bool {
	value := v.GetString(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	var results []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

// parseHeaders reads the OTLP "key=value,key2=value2" header format.
func parseHeaders(value string) (map[string]string, error) {
	headers := make(map[string]string)
	for _, pair := range parseCSV(value) {
		key, val, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid OTEL_EXPORTER_OTLP_HEADERS entry: %q", pair)
		}
		headers[key] = strings.TrimSpace(val)
	}
	return headers, nil
}

func parseSameSite(value string) (http.SameSite, error) {
	switch strings.ToLower(value) {
	case "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return http.SameSiteDefaultMode, fmt.Errorf("invalid COOKIE_SAMESITE: %s", value)
	}
}
