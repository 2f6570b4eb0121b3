package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// MemoryConfig sizes the in-process cache.
type MemoryConfig struct {
	// MaxEntries bounds the number of live entries. Each entry costs 1.
	MaxEntries int64
}

// DefaultMemoryConfig returns settings suitable for a single gateway node.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{MaxEntries: 10_000}
}

// MemoryProvider is a process-local Provider backed by ristretto. Expiry is
// enforced by ristretto on read.
type MemoryProvider struct {
	store *ristretto.Cache[string, []byte]
}

func NewMemoryProvider(cfg MemoryConfig) (*MemoryProvider, error) {
	if cfg.MaxEntries <= 0 {
		cfg = DefaultMemoryConfig()
	}
	store, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters:        cfg.MaxEntries * 10,
		MaxCost:            cfg.MaxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}
	return &MemoryProvider{store: store}, nil
}

func (p *MemoryProvider) GetItem(_ context.Context, key string, dst any) (bool, error) {
	b, ok := p.store.Get(key)
	if !ok {
		return false, nil
	}
	if err := decode(b, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (p *MemoryProvider) AddItem(_ context.Context, key string, value any, ttl time.Duration) error {
	b, err := encode(value, ttl)
	if err != nil {
		return err
	}
	if !p.store.SetWithTTL(key, b, 1, ttl) {
		return fmt.Errorf("cache: write of %q was dropped", key)
	}
	// Sets are buffered; wait so the entry is visible to the next reader.
	p.store.Wait()
	return nil
}

func (p *MemoryProvider) RemoveItem(_ context.Context, key string) error {
	p.store.Del(key)
	p.store.Wait()
	return nil
}

// Close stops ristretto's background goroutines.
func (p *MemoryProvider) Close() {
	p.store.Close()
}
