package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"scrimhub/internal/common/money"
	"scrimhub/internal/payments"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS payment_sessions (
    merchant_order_id TEXT PRIMARY KEY,
    phonepe_order_id  TEXT    NOT NULL DEFAULT '',
    checkout_url      TEXT    NOT NULL DEFAULT '',
    payment_type      TEXT    NOT NULL DEFAULT '',
    amount_minor      INTEGER NOT NULL DEFAULT 0,
    currency          TEXT    NOT NULL DEFAULT '',
    created_at        TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS client_state (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
`

// SQLiteStore is the default durable store on a client machine.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the database file at path.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve config dir: %w", err)
		}
		path = DefaultSQLitePath(dir)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	logger.Debug("session store opened", "backend", BackendSQLite, "path", path)
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save writes the session and marks it as the most recent in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, session *payments.PaymentSession) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payment_sessions (merchant_order_id, phonepe_order_id, checkout_url, payment_type, amount_minor, currency, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (merchant_order_id) DO UPDATE SET
			phonepe_order_id = excluded.phonepe_order_id,
			checkout_url = excluded.checkout_url,
			payment_type = excluded.payment_type,
			amount_minor = excluded.amount_minor,
			currency = excluded.currency
	`,
		session.MerchantOrderID,
		session.PhonePeOrderID,
		session.CheckoutURL,
		string(session.PaymentType),
		session.Amount.AmountMinor,
		string(session.Amount.Currency),
		formatTime(session.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	if err := setValue(ctx, tx, LastOrderKey, session.MerchantOrderID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) LastOrderID(ctx context.Context) (string, error) {
	id, err := s.GetValue(ctx, LastOrderKey)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", ErrNotFound
	}
	return id, nil
}

func (s *SQLiteStore) Get(ctx context.Context, merchantOrderID string) (*payments.PaymentSession, error) {
	var (
		session   payments.PaymentSession
		ptype     string
		currency  string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT merchant_order_id, phonepe_order_id, checkout_url, payment_type, amount_minor, currency, created_at
		FROM payment_sessions WHERE merchant_order_id = ?
	`, merchantOrderID).Scan(
		&session.MerchantOrderID,
		&session.PhonePeOrderID,
		&session.CheckoutURL,
		&ptype,
		&session.Amount.AmountMinor,
		&currency,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	session.PaymentType = payments.PaymentType(ptype)
	session.Amount.Currency = money.Currency(currency)
	session.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &session, nil
}

// Clear removes the session, and the last order pointer if it names it.
func (s *SQLiteStore) Clear(ctx context.Context, merchantOrderID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM payment_sessions WHERE merchant_order_id = ?`, merchantOrderID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM client_state WHERE key = ? AND value = ?`, LastOrderKey, merchantOrderID); err != nil {
		return fmt.Errorf("clear last order: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetValue(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM client_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// SetValue stores value under key. An empty value deletes the key.
func (s *SQLiteStore) SetValue(ctx context.Context, key, value string) error {
	if value == "" {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM client_state WHERE key = ?`, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		return nil
	}
	return setValue(ctx, s.db, key, value)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func setValue(ctx context.Context, db execer, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO client_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
