package store

import (
	"context"
	"time"

	"user-service/config"

	"github.com/sirupsen/logrus"
)

// TokenStore tracks issued access token ids until they expire or are revoked.
type TokenStore interface {
	Save(ctx context.Context, tokenID string, userID int64, ttl time.Duration) error
	Exists(ctx context.Context, tokenID string) (bool, error)
	Revoke(ctx context.Context, tokenID string) error
	Close() error
}

// New returns a Valkey-backed store when an address is configured and an
// in-process store otherwise.
func New(cfg config.ValkeyConfig) (TokenStore, error) {
	if cfg.Addr == "" {
		logrus.Info("VALKEY_ADDR not set, using in-memory token store")
		return NewMemoryStore(), nil
	}
	return NewValkeyStore(cfg)
}
