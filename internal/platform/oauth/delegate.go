package oauth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthgateway/gateway/internal/platform/cache"
)

// ExpirySafetyMargin is subtracted from a token's expires_in before it is
// cached, so a cached token always has at least this much life left.
const ExpirySafetyMargin = 10 * time.Second

// Caching defaults for the two authenticate paths.
const (
	DefaultSystemCaching = true
	DefaultUserCaching   = false
)

// Options holds the Delegate's collaborators. Zero values are replaced with
// working defaults: a traced HTTP client, a no-op cache, a disabled logger.
type Options struct {
	HTTPClient *http.Client
	Cache      cache.Provider
	Logger     zerolog.Logger
	Metrics    *Metrics
	// TokenCacheExpireMinutes caps how long user tokens are cached. Zero
	// means the token's own expiry is the only bound.
	TokenCacheExpireMinutes int
}

// Delegate obtains bearer tokens from OAuth2 token endpoints. It is safe for
// concurrent use; concurrent cache misses on the same key each perform a
// grant and the last write wins.
type Delegate struct {
	client       *http.Client
	cache        cache.Provider
	logger       zerolog.Logger
	metrics      *Metrics
	userCacheCap time.Duration
}

func NewDelegate(opts Options) *Delegate {
	d := &Delegate{
		client:       opts.HTTPClient,
		cache:        opts.Cache,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		userCacheCap: time.Duration(opts.TokenCacheExpireMinutes) * time.Minute,
	}
	if d.client == nil {
		d.client = NewHTTPClient(DefaultHTTPTimeout)
	}
	if d.cache == nil {
		d.cache = cache.NoopProvider{}
	}
	return d
}

// AuthenticateAsSystem returns a client-credentials token for req, serving it
// from the cache when cacheEnabled and a live entry exists. A grant that
// yields no token is reported as ErrAuthenticationFailed.
func (d *Delegate) AuthenticateAsSystem(ctx context.Context, tokenURI string, req TokenRequest, cacheEnabled bool) (*TokenResponse, error) {
	d.logger.Debug().Str("client_id", req.ClientID).Msg("authenticating service")

	key := systemCacheKey(tokenURI, req)
	if cacheEnabled {
		if tok, ok := d.lookup(ctx, key, "system"); ok {
			return tok, nil
		}
	}

	tok, ok := d.ClientCredentialsGrant(ctx, tokenURI, req)
	if !ok {
		return nil, fmt.Errorf("%w: client %q at %s", ErrAuthenticationFailed, req.ClientID, tokenURI)
	}
	d.logger.Debug().Str("client_id", req.ClientID).Msg("finished authenticating service")

	if cacheEnabled {
		if ttl, ok := expiryTTL(tok); ok {
			d.store(ctx, key, tok, ttl)
		}
	}
	return tok, nil
}

// AuthenticateAsUser returns a resource-owner-password token for the user in
// req. See AuthenticateUser.
func (d *Delegate) AuthenticateAsUser(ctx context.Context, tokenURI string, req TokenRequest, cacheEnabled bool) (*TokenResponse, error) {
	tok, _, err := d.AuthenticateUser(ctx, tokenURI, req, cacheEnabled)
	return tok, err
}

// AuthenticateUser returns a resource-owner-password token for the user in
// req and reports whether it was served from the cache.
func (d *Delegate) AuthenticateUser(ctx context.Context, tokenURI string, req TokenRequest, cacheEnabled bool) (*TokenResponse, bool, error) {
	key := userCacheKey(tokenURI, req)
	if cacheEnabled {
		d.logger.Debug().Msg("attempting to fetch token from cache")
		if tok, ok := d.lookup(ctx, key, "user"); ok {
			d.logger.Debug().Msg("auth token found in cache")
			return tok, true, nil
		}
	}

	d.logger.Info().Str("username", req.Username).Msg("token not in cache, authenticating direct grant as user")
	tok, ok := d.ResourceOwnerPasswordGrant(ctx, tokenURI, req)
	if !ok {
		d.logger.Error().
			Str("username", req.Username).
			Str("token_uri", tokenURI).
			Msg("unable to authenticate user")
		return nil, false, fmt.Errorf("%w: user %q at %s", ErrAuthenticationFailed, req.Username, tokenURI)
	}

	if cacheEnabled {
		if ttl, ok := d.userTTL(tok); ok {
			d.store(ctx, key, tok, ttl)
		} else {
			d.logger.Debug().Msg("token has no usable expiry, not caching")
		}
	}

	d.logger.Info().Str("username", req.Username).Msg("finished authenticating user")
	return tok, false, nil
}

// Invalidate drops the cached token for req. user selects the
// resource-owner key (which includes the username) over the system key.
func (d *Delegate) Invalidate(ctx context.Context, tokenURI string, req TokenRequest, user bool) error {
	key := systemCacheKey(tokenURI, req)
	if user {
		key = userCacheKey(tokenURI, req)
	}
	if err := d.cache.RemoveItem(ctx, key); err != nil {
		return fmt.Errorf("invalidate cached token: %w", err)
	}
	return nil
}

func (d *Delegate) lookup(ctx context.Context, key, identity string) (*TokenResponse, bool) {
	var tok TokenResponse
	found, err := d.cache.GetItem(ctx, key, &tok)
	if err != nil {
		d.logger.Warn().Err(err).Str("identity", identity).Msg("token cache read failed, treating as miss")
		found = false
	}
	if found && tok.AccessToken == "" {
		found = false
	}
	d.metrics.recordLookup(identity, found)
	if !found {
		return nil, false
	}
	return &tok, true
}

func (d *Delegate) store(ctx context.Context, key string, tok *TokenResponse, ttl time.Duration) {
	if err := d.cache.AddItem(ctx, key, tok, ttl); err != nil {
		d.logger.Warn().Err(err).Msg("token cache write failed")
	}
}

// userTTL applies the configured user cache cap on top of the token's own
// expiry. With a cap set, a token without expires_in is cached for the cap.
func (d *Delegate) userTTL(tok *TokenResponse) (time.Duration, bool) {
	ttl, ok := expiryTTL(tok)
	if d.userCacheCap <= 0 {
		return ttl, ok
	}
	if !ok && tok.ExpiresIn == nil {
		return d.userCacheCap, true
	}
	if ok && ttl > d.userCacheCap {
		return d.userCacheCap, true
	}
	return ttl, ok
}

// expiryTTL returns expires_in minus the safety margin. ok is false when the
// token has no expiry or would already be stale once the margin is applied.
func expiryTTL(tok *TokenResponse) (time.Duration, bool) {
	if tok.ExpiresIn == nil {
		return 0, false
	}
	ttl := time.Duration(*tok.ExpiresIn)*time.Second - ExpirySafetyMargin
	if ttl <= 0 {
		return 0, false
	}
	return ttl, true
}

func systemCacheKey(tokenURI string, req TokenRequest) string {
	return fmt.Sprintf("%s:%s:%s", tokenURI, req.Audience, req.ClientID)
}

func userCacheKey(tokenURI string, req TokenRequest) string {
	return fmt.Sprintf("%s:%s:%s:%s", tokenURI, req.Audience, req.ClientID, req.Username)
}
