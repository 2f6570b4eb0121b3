// Package oauth acquires OAuth2 bearer tokens from an identity provider
// (Keycloak, PHSA, ODR) on behalf of the gateway itself (client credentials)
// or an end user (resource owner password), and caches them for slightly
// less than their advertised lifetime.
package oauth

import "errors"

var (
	// ErrAuthenticationFailed is returned when the token endpoint yields no
	// usable token. It indicates misconfiguration or an unreachable
	// identity provider and is not retried.
	ErrAuthenticationFailed = errors.New("oauth: authentication failed")

	ErrSectionNotConfigured = errors.New("oauth: integration section not configured")
	ErrInvalidTokenURI      = errors.New("oauth: invalid token uri")
)

// GrantKind selects the OAuth2 grant used against the token endpoint.
type GrantKind int

const (
	ClientCredentials GrantKind = iota
	ResourceOwnerPassword
)

func (k GrantKind) String() string {
	switch k {
	case ClientCredentials:
		return "client_credentials"
	case ResourceOwnerPassword:
		return "password"
	default:
		return "unknown"
	}
}

// TokenRequest carries the credentials for one token endpoint call. Username
// and Password are only sent with the resource owner password grant.
type TokenRequest struct {
	ClientID     string
	ClientSecret string
	Audience     string
	Scope        string
	Username     string
	Password     string
}

// TokenResponse is the token endpoint's JSON body. Only AccessToken and
// ExpiresIn are interpreted; everything else is passed through.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        *int   `json:"expires_in,omitempty"`
	RefreshExpiresIn *int   `json:"refresh_expires_in,omitempty"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	TokenType        string `json:"token_type"`
	NotBeforePolicy  *int   `json:"not-before-policy,omitempty"`
	SessionState     string `json:"session_state,omitempty"`
	Scope            string `json:"scope,omitempty"`
}
