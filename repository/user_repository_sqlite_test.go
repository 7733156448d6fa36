package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"user-service/config"
	"user-service/db"
	"user-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteRepo(t *testing.T) *SQLUserRepository {
	t.Helper()
	database, err := db.Connect(config.DatabaseConfig{
		Engine: config.EngineSQLite,
		Path:   filepath.Join(t.TempDir(), "users.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.Migrate(context.Background(), database))
	return NewUserRepository(database)
}

func setNow(t *testing.T, ts time.Time) *time.Time {
	t.Helper()
	current := ts
	originalNow := now
	now = func() time.Time { return current }
	t.Cleanup(func() { now = originalNow })
	return &current
}

func TestSQLiteSaveDuplicateEmail(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &models.User{Username: "alice", Email: "shared@example.com", PasswordHash: "h1"}))

	err := repo.Save(ctx, &models.User{Username: "bob", Email: "shared@example.com", PasswordHash: "h2"})
	var dupErr *DuplicateError
	require.True(t, errors.As(err, &dupErr), "got %v", err)
	assert.Equal(t, "email", dupErr.Field)
	assert.ErrorIs(t, err, ErrDuplicate)

	users, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestSQLiteSaveDuplicateUsernameOnUpdate(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	alice := models.User{Username: "alice", Email: "alice@example.com", PasswordHash: "h"}
	bob := models.User{Username: "bob", Email: "bob@example.com", PasswordHash: "h"}
	require.NoError(t, repo.Save(ctx, &alice))
	require.NoError(t, repo.Save(ctx, &bob))

	bob.Username = "alice"
	err := repo.Save(ctx, &bob)
	var dupErr *DuplicateError
	require.True(t, errors.As(err, &dupErr), "got %v", err)
	assert.Equal(t, "username", dupErr.Field)

	stored, err := repo.FindByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", stored.Username)
}

func TestSQLiteTimestampsRoundTrip(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	created := time.Date(2024, 5, 1, 12, 30, 15, 123456789, time.UTC)
	current := setNow(t, created)

	user := models.User{Username: "alice", Email: "alice@example.com", PasswordHash: "h"}
	require.NoError(t, repo.Save(ctx, &user))
	require.NotZero(t, user.ID)

	stored, err := repo.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)
	assert.True(t, created.Equal(stored.CreatedAt), "created_at = %v", stored.CreatedAt)
	assert.True(t, created.Equal(stored.UpdatedAt), "updated_at = %v", stored.UpdatedAt)

	updated := created.Add(90 * time.Minute)
	*current = updated
	stored.Email = "alice@new.example.com"
	require.NoError(t, repo.Save(ctx, &stored))

	reloaded, err := repo.FindByEmail(ctx, "alice@new.example.com")
	require.NoError(t, err)
	assert.True(t, created.Equal(reloaded.CreatedAt), "created_at = %v", reloaded.CreatedAt)
	assert.True(t, updated.Equal(reloaded.UpdatedAt), "updated_at = %v", reloaded.UpdatedAt)
}

func TestSQLiteWithTxRollsBack(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	err := repo.WithTx(ctx, func(tx UserRepository) error {
		require.NoError(t, tx.Save(ctx, &models.User{Username: "alice", Email: "alice@example.com", PasswordHash: "h"}))
		return tx.Save(ctx, &models.User{Username: "alice", Email: "other@example.com", PasswordHash: "h"})
	})
	assert.ErrorIs(t, err, ErrDuplicate)

	exists, err := repo.ExistsByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSQLiteDeleteMissing(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	user := models.User{Username: "alice", Email: "alice@example.com", PasswordHash: "h"}
	require.NoError(t, repo.Save(ctx, &user))
	require.NoError(t, repo.Delete(ctx, user.ID))
	assert.ErrorIs(t, repo.Delete(ctx, user.ID), ErrUserNotFound)
}
