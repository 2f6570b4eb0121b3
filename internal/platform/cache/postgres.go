package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresProvider shares cache entries between gateway nodes through the
// cache_entries table (see migrations/001_cache_entries.sql). Expired rows
// are deleted lazily when read, or in bulk by Purge.
type PostgresProvider struct {
	db  DB
	now func() time.Time
}

func NewPostgresProvider(db DB) *PostgresProvider {
	return &PostgresProvider{db: db, now: time.Now}
}

func (p *PostgresProvider) GetItem(ctx context.Context, key string, dst any) (bool, error) {
	var (
		value     []byte
		expiresAt time.Time
	)
	err := p.db.QueryRow(ctx,
		`SELECT value, expires_at FROM cache_entries WHERE key = $1`, key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read cache entry: %w", err)
	}

	now := p.now()
	if !now.Before(expiresAt) {
		// Guarded by expires_at so a concurrent refresh is not removed.
		if _, err := p.db.Exec(ctx,
			`DELETE FROM cache_entries WHERE key = $1 AND expires_at <= $2`, key, now,
		); err != nil {
			return false, fmt.Errorf("delete expired cache entry: %w", err)
		}
		return false, nil
	}

	if err := decode(value, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (p *PostgresProvider) AddItem(ctx context.Context, key string, value any, ttl time.Duration) error {
	b, err := encode(value, ttl)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(ctx, `
		INSERT INTO cache_entries (key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			expires_at = EXCLUDED.expires_at`,
		key, b, p.now().Add(ttl),
	)
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

func (p *PostgresProvider) RemoveItem(ctx context.Context, key string) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM cache_entries WHERE key = $1`, key); err != nil {
		return fmt.Errorf("remove cache entry: %w", err)
	}
	return nil
}

// Purge deletes every expired row and returns how many were removed.
func (p *PostgresProvider) Purge(ctx context.Context) (int64, error) {
	tag, err := p.db.Exec(ctx, `DELETE FROM cache_entries WHERE expires_at <= $1`, p.now())
	if err != nil {
		return 0, fmt.Errorf("purge cache entries: %w", err)
	}
	return tag.RowsAffected(), nil
}
