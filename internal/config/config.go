package config

import (
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	// REDIS_URL switches the session store (refresh-token sets and the
	// revocation set) from in-process memory to Redis. Required for
	// multi-process deployments; optional otherwise.
	RedisURL string `mapstructure:"REDIS_URL"`

	JWTAccessSecret  string `mapstructure:"JWT_ACCESS_SECRET"`
	JWTRefreshSecret string `mapstructure:"JWT_REFRESH_SECRET"`
	JWTAccessExpiry  string `mapstructure:"JWT_ACCESS_EXPIRY"`
	JWTRefreshExpiry string `mapstructure:"JWT_REFRESH_EXPIRY"`

	// EncryptionKey is the 64-hex-char AES-256 key for audit-log field
	// encryption.
	EncryptionKey string `mapstructure:"ENCRYPTION_KEY"`

	EmailService string `mapstructure:"EMAIL_SERVICE"`
	EmailUser    string `mapstructure:"EMAIL_USER"`
	EmailPass    string `mapstructure:"EMAIL_PASS"`

	RateLimitWindowMS    int `mapstructure:"RATE_LIMIT_WINDOW_MS"`
	RateLimitMaxRequests int `mapstructure:"RATE_LIMIT_MAX_REQUESTS"`
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
	v.SetDefault("JWT_ACCESS_EXPIRY", "15m")
	v.SetDefault("JWT_REFRESH_EXPIRY", "7d")
	v.SetDefault("RATE_LIMIT_WINDOW_MS", 60000)
	v.SetDefault("RATE_LIMIT_MAX_REQUESTS", 300)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("REDIS_URL")
	v.BindEnv("JWT_ACCESS_SECRET")
	v.BindEnv("JWT_REFRESH_SECRET")
	v.BindEnv("JWT_ACCESS_EXPIRY")
	v.BindEnv("JWT_REFRESH_EXPIRY")
	v.BindEnv("ENCRYPTION_KEY")
	v.BindEnv("EMAIL_SERVICE")
	v.BindEnv("EMAIL_USER")
	v.BindEnv("EMAIL_PASS")
	v.BindEnv("RATE_LIMIT_WINDOW_MS")
	v.BindEnv("RATE_LIMIT_MAX_REQUESTS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: Missing JWT secrets and the encryption key are generated")
		log.Println("WARNING: per process; sessions and ciphertexts do not survive a")
		log.Println("WARNING: restart. Do NOT use this configuration in production.")
		log.Println("WARNING: ============================================================")
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

// AccessExpiry parses JWT_ACCESS_EXPIRY, defaulting to 15 minutes.
func (c *Config) AccessExpiry() time.Duration {
	return parseExpiry(c.JWTAccessExpiry, 15*time.Minute)
}

// RefreshExpiry parses JWT_REFRESH_EXPIRY, defaulting to 7 days.
func (c *Config) RefreshExpiry() time.Duration {
	return parseExpiry(c.JWTRefreshExpiry, 7*24*time.Hour)
}

// parseExpiry accepts Go duration strings plus the "Nd" day shorthand used
// by the deployment environment ("7d" = 168h).
func parseExpiry(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if n := len(s); n > 1 && s[n-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s[:n-1], "%d", &days); err == nil && days > 0 {
			return time.Duration(days) * 24 * time.Hour
		}
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Validate checks that the configuration is safe to run. In production the
// JWT secrets must be provided explicitly, and ENCRYPTION_KEY must be a
// valid 64-character hex string (32 bytes when decoded) so that persisted
// audit ciphertexts survive restarts. Refusing to start beats silently
// minting a random key that renders stored records undecryptable.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.JWTAccessSecret == "" || c.JWTRefreshSecret == "" {
			return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required in production")
		}
		if c.JWTAccessSecret == c.JWTRefreshSecret {
			return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
		}
		if c.EncryptionKey == "" {
			return fmt.Errorf("ENCRYPTION_KEY is required in production")
		}
	}
	if c.EncryptionKey != "" {
		keyBytes, err := hex.DecodeString(c.EncryptionKey)
		if err != nil {
			return fmt.Errorf("ENCRYPTION_KEY is not valid hex: %w", err)
		}
		if len(keyBytes) != 32 {
			return fmt.Errorf("ENCRYPTION_KEY must be 32 bytes (64 hex chars), got %d bytes", len(keyBytes))
		}
	}
	if c.RateLimitWindowMS < 0 || c.RateLimitMaxRequests < 0 {
		return fmt.Errorf("rate limit settings must not be negative")
	}
	return nil
}

// EncryptionKeyBytes returns the decoded audit encryption key, or nil when
// no key is configured.
func (c *Config) EncryptionKeyBytes() []byte {
	if c.EncryptionKey == "" {
		return nil
	}
	b, err := hex.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil
	}
	return b
}
