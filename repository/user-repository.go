package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"user-service/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrDuplicate    = errors.New("duplicate user")
)

var now = time.Now

// DuplicateError reports a UNIQUE violation. Field is "username", "email"
// or empty when the driver does not say which constraint failed.
type DuplicateError struct {
	Field string
	Err   error
}

func (e *DuplicateError) Error() string {
	if e.Field == "" {
		return ErrDuplicate.Error()
	}
	return fmt.Sprintf("%s: %s", ErrDuplicate.Error(), e.Field)
}

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

func (e *DuplicateError) Unwrap() error { return e.Err }

type UserRepository interface {
	FindByID(ctx context.Context, id int64) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	FindAll(ctx context.Context) ([]models.User, error)
	// Save inserts a user with a zero ID and updates any other.
	Save(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id int64) error
	// WithTx runs fn against a repository bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(UserRepository) error) error
}

type SQLUserRepository struct {
	db *sqlx.DB
	q  sqlx.ExtContext
}

func NewUserRepository(db *sqlx.DB) *SQLUserRepository {
	return &SQLUserRepository{db: db, q: db}
}

const userColumns = "id, username, email, password_hash, created_at, updated_at"

func (r *SQLUserRepository) findOne(ctx context.Context, where string, arg any) (models.User, error) {
	var user models.User
	query := r.q.Rebind("SELECT " + userColumns + " FROM users WHERE " + where + " = ?")
	if err := sqlx.GetContext(ctx, r.q, &user, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("find user by %s: %w", where, err)
	}
	return user, nil
}

func (r *SQLUserRepository) FindByID(ctx context.Context, id int64) (models.User, error) {
	return r.findOne(ctx, "id", id)
}

func (r *SQLUserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	return r.findOne(ctx, "username", username)
}

func (r *SQLUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, "email", email)
}

func (r *SQLUserRepository) exists(ctx context.Context, column, value string) (bool, error) {
	var count int
	query := r.q.Rebind("SELECT COUNT(1) FROM users WHERE " + column + " = ?")
	if err := sqlx.GetContext(ctx, r.q, &count, query, value); err != nil {
		return false, fmt.Errorf("check %s: %w", column, err)
	}
	return count > 0, nil
}

func (r *SQLUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username", username)
}

func (r *SQLUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email", email)
}

func (r *SQLUserRepository) FindAll(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := sqlx.SelectContext(ctx, r.q, &users, "SELECT "+userColumns+" FROM users ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *SQLUserRepository) Save(ctx context.Context, user *models.User) error {
	ts := now().UTC()
	if user.ID == 0 {
		return r.insert(ctx, user, ts)
	}
	return r.update(ctx, user, ts)
}

func (r *SQLUserRepository) insert(ctx context.Context, user *models.User, ts time.Time) error {
	query := r.q.Rebind(`INSERT INTO users (username, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?) RETURNING id`)
	var id int64
	err := r.q.QueryRowxContext(ctx, query, user.Username, user.Email, user.PasswordHash, ts, ts).Scan(&id)
	if err != nil {
		if field, ok := uniqueViolation(err); ok {
			return &DuplicateError{Field: field, Err: err}
		}
		return fmt.Errorf("insert user: %w", err)
	}
	user.ID = id
	user.CreatedAt = ts
	user.UpdatedAt = ts
	return nil
}

func (r *SQLUserRepository) update(ctx context.Context, user *models.User, ts time.Time) error {
	query := r.q.Rebind(`UPDATE users SET username = ?, email = ?, password_hash = ?, updated_at = ? WHERE id = ?`)
	result, err := r.q.ExecContext(ctx, query, user.Username, user.Email, user.PasswordHash, ts, user.ID)
	if err != nil {
		if field, ok := uniqueViolation(err); ok {
			return &DuplicateError{Field: field, Err: err}
		}
		return fmt.Errorf("update user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	user.UpdatedAt = ts
	return nil
}

func (r *SQLUserRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.q.ExecContext(ctx, r.q.Rebind("DELETE FROM users WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *SQLUserRepository) WithTx(ctx context.Context, fn func(UserRepository) error) error {
	if _, ok := r.q.(*sqlx.Tx); ok {
		return fn(r)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&SQLUserRepository{db: r.db, q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logrus.WithError(rbErr).Warn("transaction rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func uniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code != "23505" {
			return "", false
		}
		return fieldFromText(pqErr.Constraint + " " + pqErr.Detail), true
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return "", false
		}
		return fieldFromText(sqliteErr.Error()), true
	}

	return "", false
}

func fieldFromText(text string) string {
	switch {
	case strings.Contains(text, "username"):
		return "username"
	case strings.Contains(text, "email"):
		return "email"
	default:
		return ""
	}
}
