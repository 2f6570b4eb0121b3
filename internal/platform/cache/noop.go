package cache

import (
	"context"
	"time"
)

// NoopProvider never stores anything; every lookup misses.
type NoopProvider struct{}

func (NoopProvider) GetItem(context.Context, string, any) (bool, error) { return false, nil }

func (NoopProvider) AddItem(_ context.Context, _ string, _ any, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}

func (NoopProvider) RemoveItem(context.Context, string) error { return nil }
