package cache

import "fmt"

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendNone     = "none"
)

// New builds the Provider named by backend. db is only used by the postgres
// backend and may be nil otherwise. The returned close func is never nil.
func New(backend string, mem MemoryConfig, db DB) (Provider, func(), error) {
	switch backend {
	case "", BackendMemory:
		p, err := NewMemoryProvider(mem)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	case BackendPostgres:
		if db == nil {
			return nil, nil, fmt.Errorf("cache: postgres backend requires a database connection")
		}
		return NewPostgresProvider(db), func() {}, nil
	case BackendNone:
		return NoopProvider{}, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
