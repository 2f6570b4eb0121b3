package oauth

import (
	"fmt"
	"net/url"
)

// SectionSource exposes named configuration sections such as "PHSA" or
// "Keycloak". Implemented by config.Integrations.
type SectionSource interface {
	// SectionValue returns section.key and whether it is set.
	SectionValue(section, key string) (string, bool)
}

// Section keys read by ClientCredentialsAuth.
const (
	KeyTokenURI     = "tokenuri"
	KeyClientID     = "clientid"
	KeyClientSecret = "clientsecret"
	KeyAudience     = "audience"
	KeyScope        = "scope"
	KeyUsername     = "username"
	KeyPassword     = "password"
)

// ClientCredentialsAuth reads the token endpoint and credentials for the
// named integration section. The token URI must be an absolute URL.
func ClientCredentialsAuth(src SectionSource, section string) (string, TokenRequest, error) {
	var (
		req        TokenRequest
		configured bool
	)
	get := func(key string) string {
		v, ok := src.SectionValue(section, key)
		configured = configured || ok
		return v
	}

	tokenURI := get(KeyTokenURI)
	req.ClientID = get(KeyClientID)
	req.ClientSecret = get(KeyClientSecret)
	req.Audience = get(KeyAudience)
	req.Scope = get(KeyScope)
	req.Username = get(KeyUsername)
	req.Password = get(KeyPassword)

	if !configured {
		return "", TokenRequest{}, fmt.Errorf("%w: %s", ErrSectionNotConfigured, section)
	}
	if tokenURI == "" {
		return "", TokenRequest{}, fmt.Errorf("%w: %s does not contain a TokenUri", ErrInvalidTokenURI, section)
	}
	u, err := url.Parse(tokenURI)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return "", TokenRequest{}, fmt.Errorf("%w: %s TokenUri %q is not an absolute url", ErrInvalidTokenURI, section, tokenURI)
	}
	return tokenURI, req, nil
}
