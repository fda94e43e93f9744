// Package auth resolves the bearer credential used against the payments backend.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenKey is the client state key the login flow writes the token under.
const AccessTokenKey = "access_token"

var (
	ErrMissingCredential = errors.New("no access token available")
	ErrCredentialExpired = errors.New("access token expired")
)

// now is swapped in tests.
var now = time.Now

// TokenSource yields the current bearer token.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// StaticToken is a token supplied through configuration.
type StaticToken string

func (t StaticToken) AccessToken(ctx context.Context) (string, error) {
	return Check(string(t))
}

// KeyValue reads client state. A missing key yields "" and a nil error.
type KeyValue interface {
	GetValue(ctx context.Context, key string) (string, error)
}

// StoreTokenSource reads the token persisted by a previous login.
type StoreTokenSource struct {
	kv KeyValue
}

func NewStoreTokenSource(kv KeyValue) *StoreTokenSource {
	return &StoreTokenSource{kv: kv}
}

func (s *StoreTokenSource) AccessToken(ctx context.Context) (string, error) {
	token, err := s.kv.GetValue(ctx, AccessTokenKey)
	if err != nil {
		return "", fmt.Errorf("read stored token: %w", err)
	}
	return Check(token)
}

// Chain tries each source in order and returns the first usable token.
// An expired token from an earlier source is reported only if no later
// source has a valid one.
type Chain []TokenSource

func (c Chain) AccessToken(ctx context.Context) (string, error) {
	lastErr := ErrMissingCredential
	for _, src := range c {
		token, err := src.AccessToken(ctx)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, ErrMissingCredential) {
			lastErr = err
		}
	}
	return "", lastErr
}

// Check trims the token and rejects it when empty or when it is a JWT whose
// exp claim has passed. Opaque tokens are accepted as is.
func Check(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingCredential
	}
	if strings.Count(token, ".") != 2 {
		return token, nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return token, nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return token, nil
	}
	if exp.Before(now()) {
		return "", fmt.Errorf("%w at %s", ErrCredentialExpired, exp.UTC().Format(time.RFC3339))
	}
	return token, nil
}
