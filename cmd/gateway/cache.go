package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/healthgateway/gateway/internal/config"
	"github.com/healthgateway/gateway/internal/platform/cache"
	"github.com/healthgateway/gateway/internal/platform/db"
)

// purgeInterval is how often serve sweeps expired rows from cache_entries.
const purgeInterval = 5 * time.Minute

type purger interface {
	Purge(ctx context.Context) (int64, error)
}

// purgeLoop deletes expired cache rows every interval until ctx is done.
// Reads already ignore expired rows; this only keeps the table small.
func purgeLoop(ctx context.Context, p purger, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.Purge(ctx)
			if err != nil {
				logger.Warn().Err(err).Msg("cache purge failed")
				continue
			}
			if n > 0 {
				logger.Debug().Int64("rows", n).Msg("purged expired cache entries")
			}
		}
	}
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the shared token cache",
	}

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete expired entries from the postgres token cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.CacheBackend != cache.BackendPostgres {
				return fmt.Errorf("cache purge requires CACHE_BACKEND=%s, got %q", cache.BackendPostgres, cfg.CacheBackend)
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, poolConfig(cfg))
			if err != nil {
				return err
			}
			defer pool.Close()

			return runPurge(ctx, os.Stdout, cache.NewPostgresProvider(pool))
		},
	}
	cmd.AddCommand(purgeCmd)
	return cmd
}

func runPurge(ctx context.Context, out io.Writer, p purger) error {
	n, err := p.Purge(ctx)
	if err != nil {
		return fmt.Errorf("purge cache: %w", err)
	}
	fmt.Fprintf(out, "Purged %d expired cache entr%s.\n", n, plural(n, "y", "ies"))
	return nil
}

func plural(n int64, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
