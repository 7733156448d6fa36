package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"user-service/config"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // Postgres driver
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // SQLite driver
)

const pingTimeout = 5 * time.Second

var (
	openDB   = sql.Open
	mkdirAll = os.MkdirAll
)

// Connect opens a pool for the configured engine and verifies it with a ping.
func Connect(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	driverName, dsn, err := dataSource(cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := openDB(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if cfg.Engine == config.EngineSQLite {
		// sqlite serialises writers; a single connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	} else if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxOpenConns)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	logrus.WithField("engine", cfg.Engine).Info("connected to database")
	return sqlx.NewDb(sqlDB, driverName), nil
}

func dataSource(cfg config.DatabaseConfig) (string, string, error) {
	switch cfg.Engine {
	case config.EnginePostgres:
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Name, cfg.SSLMode)
		return "postgres", dsn, nil
	case config.EngineSQLite:
		if err := mkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return "", "", fmt.Errorf("create db dir: %w", err)
		}
		params := url.Values{}
		params.Add("_pragma", "foreign_keys(1)")
		params.Add("_pragma", "busy_timeout(5000)")
		params.Add("_time_format", "sqlite")
		return "sqlite", "file:" + cfg.Path + "?" + params.Encode(), nil
	default:
		return "", "", fmt.Errorf("unsupported database engine: %s", cfg.Engine)
	}
}
