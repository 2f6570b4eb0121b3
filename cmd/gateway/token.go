package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/healthgateway/gateway/internal/config"
	"github.com/healthgateway/gateway/internal/platform/cache"
	"github.com/healthgateway/gateway/internal/platform/db"
	"github.com/healthgateway/gateway/internal/platform/oauth"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Acquire OAuth2 tokens for a configured integration section",
	}

	systemCmd := &cobra.Command{
		Use:   "system",
		Short: "Client-credentials token for a service identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			section, _ := cmd.Flags().GetString("section")
			noCache, _ := cmd.Flags().GetBool("no-cache")
			return withDelegate(func(ctx context.Context, cfg *config.Config, d *oauth.Delegate) error {
				return runSystemToken(ctx, os.Stdout, d, cfg.Integrations, section, !noCache)
			})
		},
	}
	systemCmd.Flags().String("section", "", "Integration section holding TokenUri, ClientId, ClientSecret, Audience")
	systemCmd.Flags().Bool("no-cache", !oauth.DefaultSystemCaching, "Bypass the token cache (shared across runs only with CACHE_BACKEND=postgres)")
	_ = systemCmd.MarkFlagRequired("section")
	cmd.AddCommand(systemCmd)

	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Resource-owner-password token for the section's Username",
		RunE: func(cmd *cobra.Command, args []string) error {
			section, _ := cmd.Flags().GetString("section")
			useCache, _ := cmd.Flags().GetBool("cache")
			return withDelegate(func(ctx context.Context, cfg *config.Config, d *oauth.Delegate) error {
				return runUserToken(ctx, os.Stdout, d, cfg.Integrations, section, useCache)
			})
		},
	}
	userCmd.Flags().String("section", "", "Integration section holding TokenUri, ClientId, Username, Password")
	userCmd.Flags().Bool("cache", oauth.DefaultUserCaching, "Serve from and populate the token cache (shared across runs only with CACHE_BACKEND=postgres)")
	_ = userCmd.MarkFlagRequired("section")
	cmd.AddCommand(userCmd)

	return cmd
}

// withDelegate builds a Delegate over the configured cache backend. Logs go
// to stderr so stdout carries only the token summary.
func withDelegate(fn func(context.Context, *config.Config, *oauth.Delegate) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg.Env, cfg.LogLevel)
	warnEphemeralCache(logger, cfg.CacheBackend)
	ctx := context.Background()

	var cacheDB cache.DB
	if cfg.CacheBackend == cache.BackendPostgres {
		var pool *pgxpool.Pool
		pool, err = db.NewPool(ctx, poolConfig(cfg))
		if err != nil {
			return err
		}
		defer pool.Close()
		cacheDB = pool
	}

	provider, closeCache, err := cache.New(cfg.CacheBackend, cache.MemoryConfig{MaxEntries: cfg.CacheMaxEntries}, cacheDB)
	if err != nil {
		return err
	}
	defer closeCache()

	return fn(ctx, cfg, newDelegate(cfg, provider, logger, nil))
}

// warnEphemeralCache reports whether backend keeps tokens only for the
// lifetime of this process, and logs a warning if so. Token caching across
// CLI runs needs CACHE_BACKEND=postgres.
func warnEphemeralCache(logger zerolog.Logger, backend string) bool {
	if backend == cache.BackendPostgres {
		return false
	}
	logger.Warn().
		Str("cache_backend", backend).
		Msg("token cache does not outlive this command; set CACHE_BACKEND=postgres to reuse tokens across runs")
	return true
}

// newDelegate applies the configured HTTP timeout. metrics may be nil.
func newDelegate(cfg *config.Config, provider cache.Provider, logger zerolog.Logger, metrics *oauth.Metrics) *oauth.Delegate {
	timeout := oauth.DefaultHTTPTimeout
	if cfg.OAuthHTTPTimeoutSeconds > 0 {
		timeout = time.Duration(cfg.OAuthHTTPTimeoutSeconds) * time.Second
	}
	return oauth.NewDelegate(oauth.Options{
		HTTPClient:              oauth.NewHTTPClient(timeout),
		Cache:                   provider,
		Logger:                  logger,
		Metrics:                 metrics,
		TokenCacheExpireMinutes: cfg.TokenCacheExpireMinutes,
	})
}

func runSystemToken(ctx context.Context, out io.Writer, d *oauth.Delegate, src oauth.SectionSource, section string, cacheEnabled bool) error {
	tokenURI, req, err := oauth.ClientCredentialsAuth(src, section)
	if err != nil {
		return err
	}
	tok, err := d.AuthenticateAsSystem(ctx, tokenURI, req, cacheEnabled)
	if err != nil {
		return err
	}
	printToken(out, section, oauth.ClientCredentials, tok, nil)
	return nil
}

func runUserToken(ctx context.Context, out io.Writer, d *oauth.Delegate, src oauth.SectionSource, section string, cacheEnabled bool) error {
	tokenURI, req, err := oauth.ClientCredentialsAuth(src, section)
	if err != nil {
		return err
	}
	if req.Username == "" {
		return fmt.Errorf("section %q has no %s: %w", section, oauth.KeyUsername, oauth.ErrSectionNotConfigured)
	}
	tok, cached, err := d.AuthenticateUser(ctx, tokenURI, req, cacheEnabled)
	if err != nil {
		return err
	}
	printToken(out, section, oauth.ResourceOwnerPassword, tok, &cached)
	return nil
}

func printToken(out io.Writer, section string, kind oauth.GrantKind, tok *oauth.TokenResponse, cached *bool) {
	fmt.Fprintf(out, "section:      %s\n", section)
	fmt.Fprintf(out, "grant:        %s\n", kind)
	fmt.Fprintf(out, "token_type:   %s\n", tok.TokenType)
	if tok.ExpiresIn != nil {
		fmt.Fprintf(out, "expires_in:   %d\n", *tok.ExpiresIn)
	}
	if cached != nil {
		fmt.Fprintf(out, "cached:       %t\n", *cached)
	}
	fmt.Fprintf(out, "access_token: %s\n", maskToken(tok.AccessToken))
}

// maskToken keeps enough of a bearer token to tell tokens apart without
// printing a usable credential.
func maskToken(s string) string {
	const visible = 12
	if len(s) <= visible {
		return "****"
	}
	return s[:visible] + "..."
}
