// Package session persists client-side payment state: the sessions created
// by the flow, the merchant order ID of the most recent one, and small
// key/value items such as the access token.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"scrimhub/internal/common/database"
	"scrimhub/internal/payments"
)

// LastOrderKey is the client state key holding the most recent merchant order ID.
const LastOrderKey = "merchant_order_id"

// ErrNotFound is returned when no session or last order is stored.
var ErrNotFound = payments.ErrSessionNotFound

// Store is a payments.SessionStore that also keeps client state values.
// GetValue returns "" and a nil error for missing keys.
type Store interface {
	payments.SessionStore
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error
	Ping(ctx context.Context) error
	Close() error
}

// Backend selects the storage implementation.
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendRedis    Backend = "redis"
	BackendMemory   Backend = "memory"
)

// Config selects and configures the store.
type Config struct {
	Backend    Backend       `envconfig:"SCRIM_STORE" default:"sqlite"`
	SQLitePath string        `envconfig:"SCRIM_SQLITE_PATH"`
	RedisURL   string        `envconfig:"REDIS_URL"`
	RedisTTL   time.Duration `envconfig:"SCRIM_REDIS_SESSION_TTL" default:"24h"`
	Database   database.Config
}

// DefaultSQLitePath is used when SCRIM_SQLITE_PATH is unset.
func DefaultSQLitePath(configDir string) string {
	return filepath.Join(configDir, "scrimhub", "client.db")
}

// Open creates the configured store.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	switch Backend(strings.ToLower(string(cfg.Backend))) {
	case BackendSQLite, "":
		s, err := OpenSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendPostgres:
		db, err := database.New(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		return NewPostgresStore(db), nil
	case BackendRedis:
		s, err := OpenRedis(ctx, cfg.RedisURL, cfg.RedisTTL, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Backend)
	}
}
