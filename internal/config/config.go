package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                    string        `mapstructure:"PORT"`
	Env                     string        `mapstructure:"ENV"`
	DatabaseURL             string        `mapstructure:"DATABASE_URL"`
	DBMaxConns              int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns              int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL                string        `mapstructure:"REDIS_URL"`
	AuthIssuer              string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL             string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience            string        `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey          string        `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins             []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS            float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst          int64         `mapstructure:"RATE_LIMIT_BURST"`
	TemplateFrontURL        string        `mapstructure:"TEMPLATE_FRONT_URL"`
	TemplateBackURL         string        `mapstructure:"TEMPLATE_BACK_URL"`
	TemplateCacheTTL        time.Duration `mapstructure:"TEMPLATE_CACHE_TTL"`
	TemplateRefreshInterval time.Duration `mapstructure:"TEMPLATE_REFRESH_INTERVAL"`
	SessionIdleTimeout      time.Duration `mapstructure:"SESSION_IDLE_TIMEOUT"`
	ExportScale             float64       `mapstructure:"EXPORT_SCALE"`
	BodyLimit               string        `mapstructure:"BODY_LIMIT"`
	RequestTimeout          time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	ExportTimeout           time.Duration `mapstructure:"EXPORT_TIMEOUT"`
	TLSEnabled              bool          `mapstructure:"TLS_ENABLED"`
	TLSCertFile             string        `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile              string        `mapstructure:"TLS_KEY_FILE"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"TEMPLATE_FRONT_URL", "TEMPLATE_BACK_URL", "TEMPLATE_CACHE_TTL", "TEMPLATE_REFRESH_INTERVAL",
	"SESSION_IDLE_TIMEOUT", "EXPORT_SCALE", "BODY_LIMIT", "REQUEST_TIMEOUT", "EXPORT_TIMEOUT",
	"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("TEMPLATE_CACHE_TTL", "1h")
	v.SetDefault("TEMPLATE_REFRESH_INTERVAL", "30m")
	v.SetDefault("SESSION_IDLE_TIMEOUT", "30m")
	v.SetDefault("EXPORT_SCALE", 3)
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("EXPORT_TIMEOUT", "2m")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active, all requests get admin access.")
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

// AuthMode returns "development", "hmac" (AUTH_SIGNING_KEY) or "jwks".
func (c *Config) AuthMode() string {
	switch {
	case c.IsDev():
		return "development"
	case c.AuthSigningKey != "":
		return "hmac"
	default:
		return "jwks"
	}
}

// Validate checks that the configuration is safe to run. Outside development
// a token verification source must be configured.
func (c *Config) Validate() error {
	if c.AuthMode() == "jwks" && (c.AuthIssuer == "" || c.AuthJWKSURL == "") {
		return fmt.Errorf(
			"AUTH_ISSUER and AUTH_JWKS_URL (or AUTH_SIGNING_KEY) must be set outside development (current ENV=%q)", c.Env)
	}
	if c.ExportScale <= 0 {
		return fmt.Errorf("EXPORT_SCALE must be positive, got %v", c.ExportScale)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative")
	}
	if c.SessionIdleTimeout <= 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive")
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
