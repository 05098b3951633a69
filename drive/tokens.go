package drive

import (
	"context"
	"fmt"
	"time"

	"github.com/vvbbnn00/onedrive-index/kv"
)

// accessTokenKey is the key the OAuth setup flow stores the token under,
// relative to the site namespace prefix.
const accessTokenKey = "access_token"

// TokenSource yields the bearer token for Graph API calls.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// KVTokenSource reads the access token from the key-value store, where the
// setup flow persists it.
type KVTokenSource struct {
	store kv.Store
}

var _ TokenSource = (*KVTokenSource)(nil)

// NewKVTokenSource creates a token source backed by store. The store should
// already be namespaced with the site prefix.
func NewKVTokenSource(store kv.Store) *KVTokenSource {
	return &KVTokenSource{store: store}
}

func (s *KVTokenSource) AccessToken(ctx context.Context) (string, error) {
	v, ok, err := s.store.Get(ctx, accessTokenKey)
	if err != nil {
		return "", fmt.Errorf("reading access token: %w", err)
	}
	if !ok || v == "" {
		return "", ErrNoAccessToken
	}
	return v, nil
}

// Store persists an access token with the given lifetime, making it
// available to every KVTokenSource sharing the store.
func (s *KVTokenSource) Store(ctx context.Context, token string, ttlSeconds int) error {
	ttl := time.Duration(ttlSeconds) * time.Second
	if err := s.store.Set(ctx, accessTokenKey, token, ttl); err != nil {
		return fmt.Errorf("storing access token: %w", err)
	}
	return nil
}

// StaticTokenSource returns a fixed token. Useful for tests.
type StaticTokenSource string

func (s StaticTokenSource) AccessToken(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoAccessToken
	}
	return string(s), nil
}
