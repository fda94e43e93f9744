package session

import (
	"context"
	"sync"

	"scrimhub/internal/payments"
)

// MemoryStore keeps state for the life of the process.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]payments.PaymentSession
	values   map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]payments.PaymentSession),
		values:   make(map[string]string),
	}
}

func (s *MemoryStore) Save(_ context.Context, session *payments.PaymentSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.MerchantOrderID] = *session
	s.values[LastOrderKey] = session.MerchantOrderID
	return nil
}

func (s *MemoryStore) LastOrderID(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id := s.values[LastOrderKey]
	if id == "" {
		return "", ErrNotFound
	}
	return id, nil
}

func (s *MemoryStore) Get(_ context.Context, merchantOrderID string) (*payments.PaymentSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[merchantOrderID]
	if !ok {
		return nil, ErrNotFound
	}
	return &session, nil
}

func (s *MemoryStore) Clear(_ context.Context, merchantOrderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, merchantOrderID)
	if s.values[LastOrderKey] == merchantOrderID {
		delete(s.values, LastOrderKey)
	}
	return nil
}

func (s *MemoryStore) GetValue(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key], nil
}

func (s *MemoryStore) SetValue(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == "" {
		delete(s.values, key)
		return nil
	}
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
