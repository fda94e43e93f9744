package session

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"scrimhub/internal/common/database"
	"scrimhub/internal/common/money"
	"scrimhub/internal/payments"
)

// PostgresStore shares sessions between clients through Postgres. The schema
// comes from the database package migrations.
type PostgresStore struct {
	db *database.DB
}

func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.HealthCheck(ctx)
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, session *payments.PaymentSession) error {
	return s.db.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO payment_sessions (merchant_order_id, phonepe_order_id, checkout_url, payment_type, amount_minor, currency, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (merchant_order_id) DO UPDATE SET
				phonepe_order_id = EXCLUDED.phonepe_order_id,
				checkout_url = EXCLUDED.checkout_url,
				payment_type = EXCLUDED.payment_type,
				amount_minor = EXCLUDED.amount_minor,
				currency = EXCLUDED.currency
		`,
			session.MerchantOrderID,
			session.PhonePeOrderID,
			session.CheckoutURL,
			string(session.PaymentType),
			session.Amount.AmountMinor,
			string(session.Amount.Currency),
			session.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		return upsertValue(ctx, tx, LastOrderKey, session.MerchantOrderID)
	})
}

func (s *PostgresStore) LastOrderID(ctx context.Context) (string, error) {
	id, err := s.GetValue(ctx, LastOrderKey)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", ErrNotFound
	}
	return id, nil
}

func (s *PostgresStore) Get(ctx context.Context, merchantOrderID string) (*payments.PaymentSession, error) {
	var (
		session  payments.PaymentSession
		ptype    string
		currency string
	)
	err := s.db.Pool().QueryRow(ctx, `
		SELECT merchant_order_id, phonepe_order_id, checkout_url, payment_type, amount_minor, currency, created_at
		FROM payment_sessions WHERE merchant_order_id = $1
	`, merchantOrderID).Scan(
		&session.MerchantOrderID,
		&session.PhonePeOrderID,
		&session.CheckoutURL,
		&ptype,
		&session.Amount.AmountMinor,
		&currency,
		&session.CreatedAt,
	)
	if database.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	session.PaymentType = payments.PaymentType(ptype)
	session.Amount.Currency = money.Currency(currency)
	return &session, nil
}

func (s *PostgresStore) Clear(ctx context.Context, merchantOrderID string) error {
	return s.db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM payment_sessions WHERE merchant_order_id = $1`, merchantOrderID); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM client_state WHERE key = $1 AND value = $2`, LastOrderKey, merchantOrderID); err != nil {
			return fmt.Errorf("clear last order: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) GetValue(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.Pool().QueryRow(ctx, `SELECT value FROM client_state WHERE key = $1`, key).Scan(&value)
	if database.IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

func (s *PostgresStore) SetValue(ctx context.Context, key, value string) error {
	return s.db.WithTx(ctx, func(tx pgx.Tx) error {
		if value == "" {
			_, err := tx.Exec(ctx, `DELETE FROM client_state WHERE key = $1`, key)
			return err
		}
		return upsertValue(ctx, tx, key, value)
	})
}

func upsertValue(ctx context.Context, tx pgx.Tx, key, value string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO client_state (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
