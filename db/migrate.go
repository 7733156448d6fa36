package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const createUsersTablePostgres = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	username VARCHAR(50) NOT NULL,
	email VARCHAR(254) NOT NULL,
	password_hash TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT users_username_key UNIQUE (username),
	CONSTRAINT users_email_key UNIQUE (email)
);
`

const createUsersTableSQLite = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// Migrate creates the users table. The UNIQUE constraints are what make
// username and email uniqueness hold under concurrent creates.
func Migrate(ctx context.Context, database *sqlx.DB) error {
	ddl := createUsersTablePostgres
	if database.DriverName() == "sqlite" {
		ddl = createUsersTableSQLite
	}
	if _, err := database.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}
