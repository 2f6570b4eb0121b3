package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port                    string   `mapstructure:"PORT"`
	Env                     string   `mapstructure:"ENV"`
	LogLevel                string   `mapstructure:"LOG_LEVEL"`
	DatabaseURL             string   `mapstructure:"DATABASE_URL"`
	DBMaxConns              int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns              int32    `mapstructure:"DB_MIN_CONNS"`
	DBMaxConnLifetimeMins   int      `mapstructure:"DB_MAX_CONN_LIFETIME_MINUTES"`
	CacheBackend            string   `mapstructure:"CACHE_BACKEND"`
	CacheMaxEntries         int64    `mapstructure:"CACHE_MAX_ENTRIES"`
	TokenCacheExpireMinutes int      `mapstructure:"AUTH_CACHE_TOKEN_EXPIRE_MINUTES"`
	OAuthHTTPTimeoutSeconds int      `mapstructure:"OAUTH_HTTP_TIMEOUT_SECONDS"`
	AuthIssuer              string   `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL             string   `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience            string   `mapstructure:"AUTH_AUDIENCE"`
	AuthDevSigningKey       string   `mapstructure:"AUTH_DEV_SIGNING_KEY"`
	CORSOrigins             []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS            float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst          int      `mapstructure:"RATE_LIMIT_BURST"`
	OTELEndpoint            string   `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTELInsecure            bool     `mapstructure:"OTEL_INSECURE"`
	IntegrationsFile        string   `mapstructure:"INTEGRATIONS_FILE"`

	Integrations *Integrations `mapstructure:"-"`
}

var keys = []string{
	"PORT",
	"ENV",
	"LOG_LEVEL",
	"DATABASE_URL",
	"DB_MAX_CONNS",
	"DB_MIN_CONNS",
	"DB_MAX_CONN_LIFETIME_MINUTES",
	"CACHE_BACKEND",
	"CACHE_MAX_ENTRIES",
	"AUTH_CACHE_TOKEN_EXPIRE_MINUTES",
	"OAUTH_HTTP_TIMEOUT_SECONDS",
	"AUTH_ISSUER",
	"AUTH_JWKS_URL",
	"AUTH_AUDIENCE",
	"AUTH_DEV_SIGNING_KEY",
	"CORS_ORIGINS",
	"RATE_LIMIT_RPS",
	"RATE_LIMIT_BURST",
	"OTEL_EXPORTER_OTLP_ENDPOINT",
	"OTEL_INSECURE",
	"INTEGRATIONS_FILE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("DB_MAX_CONN_LIFETIME_MINUTES", 60)
	v.SetDefault("CACHE_BACKEND", "memory")
	v.SetDefault("CACHE_MAX_ENTRIES", 10000)
	v.SetDefault("AUTH_CACHE_TOKEN_EXPIRE_MINUTES", 0)
	v.SetDefault("OAUTH_HTTP_TIMEOUT_SECONDS", 30)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("INTEGRATIONS_FILE", "integrations.yaml")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}

	integrations, err := LoadIntegrations(cfg.IntegrationsFile)
	if err != nil {
		return nil, err
	}
	cfg.Integrations = integrations

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.IsDev() {
		log.Println("WARNING: ENV=development: DevAuthMiddleware is active and all requests are authenticated as a fixed dev user.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the selected cache backend is usable and that
// production deployments have an issuer to validate inbound tokens against.
func (c *Config) Validate() error {
	switch c.CacheBackend {
	case "memory", "none":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when CACHE_BACKEND is \"postgres\"")
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be \"memory\", \"postgres\", or \"none\", got %q", c.CacheBackend)
	}

	if c.IsProduction() && c.AuthIssuer == "" && c.AuthJWKSURL == "" {
		return fmt.Errorf("AUTH_ISSUER or AUTH_JWKS_URL must be set in production")
	}
	if c.TokenCacheExpireMinutes < 0 {
		return fmt.Errorf("AUTH_CACHE_TOKEN_EXPIRE_MINUTES must not be negative, got %d", c.TokenCacheExpireMinutes)
	}
	return nil
}

// Integrations holds the per-integration sections (PHSA, ODR, Keycloak, ...)
// read from a YAML file. Any key can be overridden from the environment as
// SECTION_KEY, e.g. PHSA_CLIENTSECRET.
type Integrations struct {
	v *viper.Viper
}

// LoadIntegrations reads path if it exists. A missing file yields an empty
// set that still honours environment overrides.
func LoadIntegrations(path string) (*Integrations, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read integrations file %s: %w", path, err)
		}
	}
	return &Integrations{v: v}, nil
}

// SectionValue returns section.key. Section and key names are case-insensitive.
func (i *Integrations) SectionValue(section, key string) (string, bool) {
	if i == nil || i.v == nil {
		return "", false
	}
	k := strings.ToLower(section + "." + key)
	if !i.v.IsSet(k) {
		return "", false
	}
	return i.v.GetString(k), true
}

// Sections lists the section names present in the integrations file.
func (i *Integrations) Sections() []string {
	if i == nil || i.v == nil {
		return nil
	}
	var names []string
	for name, val := range i.v.AllSettings() {
		if _, ok := val.(map[string]any); ok {
			names = append(names, name)
		}
	}
	return names
}
