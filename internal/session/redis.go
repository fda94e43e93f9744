package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"scrimhub/internal/payments"
)

const redisPrefix = "scrimhub:payments:"

// clearScript deletes a session and drops the last order pointer only if it
// still names that session.
var clearScript = redis.NewScript(`
redis.call("DEL", KEYS[1])
if redis.call("GET", KEYS[2]) == ARGV[1] then
  redis.call("DEL", KEYS[2])
end
return 1
`)

// RedisStore keeps sessions in Redis with a TTL, for clients that share a
// cache rather than a database.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// OpenRedis connects using a redis:// URL.
func OpenRedis(ctx context.Context, url string, ttl time.Duration, logger *slog.Logger) (*RedisStore, error) {
	if url == "" {
		return nil, errors.New("REDIS_URL is required for the redis session store")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Debug("session store opened", "backend", BackendRedis, "addr", opts.Addr)
	return NewRedisStore(client, ttl), nil
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func sessionKey(merchantOrderID string) string {
	return redisPrefix + "session:" + merchantOrderID
}

func stateKey(key string) string {
	return redisPrefix + "state:" + key
}

func (s *RedisStore) Save(ctx context.Context, session *payments.PaymentSession) error {
	b, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(session.MerchantOrderID), b, s.ttl)
		pipe.Set(ctx, stateKey(LastOrderKey), session.MerchantOrderID, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) LastOrderID(ctx context.Context) (string, error) {
	id, err := s.GetValue(ctx, LastOrderKey)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", ErrNotFound
	}
	return id, nil
}

func (s *RedisStore) Get(ctx context.Context, merchantOrderID string) (*payments.PaymentSession, error) {
	b, err := s.client.Get(ctx, sessionKey(merchantOrderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var session payments.PaymentSession
	if err := json.Unmarshal(b, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

func (s *RedisStore) Clear(ctx context.Context, merchantOrderID string) error {
	keys := []string{sessionKey(merchantOrderID), stateKey(LastOrderKey)}
	if err := clearScript.Run(ctx, s.client, keys, merchantOrderID).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *RedisStore) GetValue(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, stateKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

// SetValue stores value without expiry. An empty value deletes the key.
func (s *RedisStore) SetValue(ctx context.Context, key, value string) error {
	var err error
	if value == "" {
		err = s.client.Del(ctx, stateKey(key)).Err()
	} else {
		err = s.client.Set(ctx, stateKey(key), value, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
