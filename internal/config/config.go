// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

const minProductionSecretLength = 32

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Public base URL used in verification links
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Database (PostgreSQL)
	DatabaseURL      string `env:"DATABASE_URL,required"`
	DBMaxConns       int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns       int32  `env:"DB_MIN_CONNS" envDefault:"2"`
	DBIsolationLevel string `env:"DB_ISOLATION_LEVEL" envDefault:"read committed"`
	DBAutoMigrate    bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`

	// Cache and mail queue (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"8s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Tokens
	JWTSecret           string        `env:"JWT_SECRET,required"`
	JWTAlgorithm        string        `env:"JWT_ALGORITHM" envDefault:"HS256"`
	VerifyEmailTokenTTL time.Duration `env:"VERIFY_EMAIL_TOKEN_TTL" envDefault:"24h"`

	// Session cookie
	CookieName         string `env:"COOKIE_NAME" envDefault:"rollcall_session"`
	CookieSecure       bool   `env:"COOKIE_SECURE" envDefault:"true"`
	CookieHTTPOnly     bool   `env:"COOKIE_HTTP_ONLY" envDefault:"true"`
	CookieSameSite     string `env:"COOKIE_SAME_SITE" envDefault:"lax"`
	CookieLifespanDays int    `env:"COOKIE_LIFESPAN_DAYS" envDefault:"7"`

	// Verification mail delivery
	MailerEnabled     bool          `env:"MAILER_ENABLED" envDefault:"true"`
	MailerFrom        string        `env:"MAILER_FROM" envDefault:"noreply@localhost"`
	MailerSendTimeout time.Duration `env:"MAILER_SEND_TIMEOUT" envDefault:"30s"`
	SMTPHost          string        `env:"SMTP_HOST" envDefault:""`
	SMTPPort          int           `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername      string        `env:"SMTP_USERNAME" envDefault:""`
	SMTPPassword      string        `env:"SMTP_PASSWORD" envDefault:""`
	SMTPTimeout       time.Duration `env:"SMTP_TIMEOUT" envDefault:"10s"`

	// Rate limiting for register and login
	RateLimitAuthEnabled bool    `env:"RATE_LIMIT_AUTH_ENABLED" envDefault:"true"`
	RateLimitAuthRPS     float64 `env:"RATE_LIMIT_AUTH_RPS" envDefault:"1"`
	RateLimitAuthBurst   int     `env:"RATE_LIMIT_AUTH_BURST" envDefault:"10"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// CookieLifespan is the session cookie lifetime, also used as access token TTL.
func (c *Config) CookieLifespan() time.Duration {
	return time.Duration(c.CookieLifespanDays) * 24 * time.Hour
}

// CookieSameSiteMode maps COOKIE_SAME_SITE onto http.SameSite.
func (c *Config) CookieSameSiteMode() http.SameSite {
	switch strings.ToLower(c.CookieSameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("JWT_ALGORITHM %q is not supported", c.JWTAlgorithm))
	}
	if c.IsProduction() && len(c.JWTSecret) < minProductionSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes in production", minProductionSecretLength))
	}

	switch strings.ToLower(c.CookieSameSite) {
	case "lax", "strict":
	case "none":
		if !c.CookieSecure {
			errs = append(errs, errors.New("COOKIE_SAME_SITE=none requires COOKIE_SECURE=true"))
		}
	default:
		errs = append(errs, fmt.Errorf("COOKIE_SAME_SITE %q must be lax, strict or none", c.CookieSameSite))
	}
	if c.CookieLifespanDays <= 0 {
		errs = append(errs, errors.New("COOKIE_LIFESPAN_DAYS must be positive"))
	}
	if c.CookieName == "" {
		errs = append(errs, errors.New("COOKIE_NAME must not be empty"))
	}
	if c.VerifyEmailTokenTTL <= 0 {
		errs = append(errs, errors.New("VERIFY_EMAIL_TOKEN_TTL must be positive"))
	}
	if c.MailerSendTimeout <= 0 || c.SMTPTimeout <= 0 {
		errs = append(errs, errors.New("MAILER_SEND_TIMEOUT and SMTP_TIMEOUT must be positive"))
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		errs = append(errs, fmt.Errorf("invalid pool bounds: DB_MIN_CONNS=%d DB_MAX_CONNS=%d", c.DBMinConns, c.DBMaxConns))
	}
	if c.RateLimitAuthEnabled && (c.RateLimitAuthRPS <= 0 || c.RateLimitAuthBurst <= 0) {
		errs = append(errs, errors.New("RATE_LIMIT_AUTH_RPS and RATE_LIMIT_AUTH_BURST must be positive"))
	}

	return errors.Join(errs...)
}

// Load parses environment variables and returns a validated Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
