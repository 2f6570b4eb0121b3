package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultHTTPTimeout bounds a single token endpoint round trip when the
// caller does not supply its own client.
const DefaultHTTPTimeout = 30 * time.Second

// maxTokenResponseBytes caps how much of a token response is read.
const maxTokenResponseBytes = 1 << 20

// grant outcomes, used as the metrics label and in log events.
const (
	outcomeSuccess    = "success"
	outcomeTransport  = "transport"
	outcomeStatus     = "status"
	outcomeDecode     = "decode"
	outcomeEmptyToken = "empty_token"
)

// NewHTTPClient returns a client whose transport emits an OpenTelemetry
// span per token endpoint call.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// ClientCredentialsGrant requests a token for the service identity in req.
// Failures are logged and reported as ok == false; no error escapes.
func (d *Delegate) ClientCredentialsGrant(ctx context.Context, tokenURI string, req TokenRequest) (*TokenResponse, bool) {
	form := url.Values{}
	form.Set("client_id", req.ClientID)
	form.Set("client_secret", req.ClientSecret)
	form.Set("audience", req.Audience)
	form.Set("grant_type", ClientCredentials.String())
	return d.authenticate(ctx, tokenURI, ClientCredentials, form)
}

// ResourceOwnerPasswordGrant requests a token for the end user named in req.
// Failures are logged and reported as ok == false; no error escapes.
func (d *Delegate) ResourceOwnerPasswordGrant(ctx context.Context, tokenURI string, req TokenRequest) (*TokenResponse, bool) {
	form := url.Values{}
	form.Set("client_id", req.ClientID)
	form.Set("client_secret", req.ClientSecret)
	form.Set("grant_type", ResourceOwnerPassword.String())
	form.Set("audience", req.Audience)
	form.Set("scope", req.Scope)
	form.Set("username", req.Username)
	form.Set("password", req.Password)
	return d.authenticate(ctx, tokenURI, ResourceOwnerPassword, form)
}

func (d *Delegate) authenticate(ctx context.Context, tokenURI string, kind GrantKind, form url.Values) (*TokenResponse, bool) {
	tok, outcome, err := d.post(ctx, tokenURI, form)
	d.metrics.recordGrant(kind, outcome)
	if err != nil {
		d.logger.Error().
			Err(err).
			Str("grant", kind.String()).
			Str("outcome", outcome).
			Str("token_uri", tokenURI).
			Msg("token grant failed")
		return nil, false
	}
	return tok, true
}

func (d *Delegate) post(ctx context.Context, tokenURI string, form url.Values) (*TokenResponse, string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, outcomeTransport, fmt.Errorf("build token request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, outcomeTransport, fmt.Errorf("POST %s: %w", tokenURI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxTokenResponseBytes))
		return nil, outcomeStatus, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var tok TokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxTokenResponseBytes)).Decode(&tok); err != nil {
		return nil, outcomeDecode, fmt.Errorf("decoding token response: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, outcomeEmptyToken, fmt.Errorf("token response has no access_token")
	}
	return &tok, outcomeSuccess, nil
}
