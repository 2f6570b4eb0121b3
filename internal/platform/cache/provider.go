// Package cache provides the key/value capability used to hold short-lived
// credentials. Values are stored JSON-encoded so every reader decodes a
// private copy; nothing handed out by a Provider aliases a stored entry.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidTTL     = errors.New("cache: ttl must be positive")
	ErrUnknownBackend = errors.New("cache: unknown backend")
)

// Provider is a TTL key/value store. Writes to the same key are last writer
// wins; there are no cross-key guarantees.
type Provider interface {
	// GetItem decodes the live value under key into dst. found is false when
	// the key is absent or expired.
	GetItem(ctx context.Context, key string, dst any) (found bool, err error)
	// AddItem stores value under key for ttl, replacing any existing entry.
	AddItem(ctx context.Context, key string, value any, ttl time.Duration) error
	// RemoveItem deletes key. Removing an absent key is not an error.
	RemoveItem(ctx context.Context, key string) error
}

func encode(value any, ttl time.Duration) ([]byte, error) {
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode cache value: %w", err)
	}
	return b, nil
}

func decode(b []byte, dst any) error {
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode cache value: %w", err)
	}
	return nil
}
