package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultJWTSecret is the development signing secret. Validate warns when
	// it is still in use outside development.
	DefaultJWTSecret = "dev-insecure-secret"

	DefaultMaxUploadSize int64 = 2 << 20
)

type Config struct {
	Port               string        `mapstructure:"PORT"`
	Env                string        `mapstructure:"ENV"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32         `mapstructure:"DB_MIN_CONNS"`
	JWTSecret          string        `mapstructure:"JWT_SECRET"`
	JWTExpirationHours int           `mapstructure:"JWT_EXPIRATION_HOURS"`
	MaxUploadSize      int64         `mapstructure:"MAX_UPLOAD_SIZE"`
	UploadDir          string        `mapstructure:"UPLOAD_DIR"`
	CORSOrigins        []string      `mapstructure:"CORS_ORIGINS"`
	DefaultTenant      string        `mapstructure:"DEFAULT_TENANT"`
	MigrationsDir      string        `mapstructure:"MIGRATIONS_DIR"`
	RequestTimeout     time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit          string        `mapstructure:"BODY_LIMIT"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("JWT_SECRET", DefaultJWTSecret)
	v.SetDefault("JWT_EXPIRATION_HOURS", 24)
	v.SetDefault("MAX_UPLOAD_SIZE", DefaultMaxUploadSize)
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("DEFAULT_TENANT", "default")
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("BODY_LIMIT", "4M")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"JWT_SECRET", "JWT_EXPIRATION_HOURS", "MAX_UPLOAD_SIZE", "UPLOAD_DIR",
		"CORS_ORIGINS", "DEFAULT_TENANT", "MIGRATIONS_DIR", "REQUEST_TIMEOUT",
		"BODY_LIMIT",
	} {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = splitList(origins)
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// JWTExpiration returns the token lifetime, never less than one hour.
func (c *Config) JWTExpiration() time.Duration {
	if c.JWTExpirationHours <= 0 {
		return time.Hour
	}
	return time.Duration(c.JWTExpirationHours) * time.Hour
}

// Validate inspects the configuration for insecure development defaults.
// It never fails: every finding is returned as a warning for the caller to
// log. Out-of-range values are reset to their defaults in place.
func (c *Config) Validate() []string {
	var warnings []string

	if c.IsDev() {
		warnings = append(warnings,
			"server is running in development mode (ENV=development); /api/admin is exposed")
	}
	if c.JWTSecret == "" || c.JWTSecret == DefaultJWTSecret {
		warnings = append(warnings, "JWT_SECRET is unset or uses the development default; override it in production")
		if c.JWTSecret == "" {
			c.JWTSecret = DefaultJWTSecret
		}
	} else if len(c.JWTSecret) < 32 {
		warnings = append(warnings, "JWT_SECRET is shorter than 32 characters")
	}
	for _, o := range c.CORSOrigins {
		if o == "*" {
			warnings = append(warnings, "CORS_ORIGINS allows every origin (*)")
			break
		}
	}
	if c.MaxUploadSize <= 0 {
		warnings = append(warnings, fmt.Sprintf("MAX_UPLOAD_SIZE must be positive; using %d", DefaultMaxUploadSize))
		c.MaxUploadSize = DefaultMaxUploadSize
	}
	if c.RequestTimeout <= 0 {
		warnings = append(warnings, "REQUEST_TIMEOUT must be positive; using 30s")
		c.RequestTimeout = 30 * time.Second
	}
	if strings.Contains(c.DatabaseURL, "sslmode=disable") && c.IsProduction() {
		warnings = append(warnings, "DATABASE_URL disables TLS in production")
	}

	return warnings
}
