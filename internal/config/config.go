package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Session cache
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration

	// Email-verification and password-reset token lifetimes
	VerifyTokenTTL time.Duration
	ResetTokenTTL  time.Duration

	// Password hashing
	BcryptCost int

	// Avatar object storage (feature disabled when bucket is empty)
	AvatarBucket    string
	AvatarRegion    string
	AvatarEndpoint  string
	AvatarAccessKey string
	AvatarSecretKey string
	AvatarPublicURL string

	// Server
	Port        string
	CORSOrigins string
}

// Load reads configuration from the environment. A .env file is applied
// first when present so local runs match deployed ones.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "contacthub"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),

		AvatarBucket:    getEnv("AVATAR_BUCKET", ""),
		AvatarRegion:    getEnv("AVATAR_REGION", "us-east-1"),
		AvatarEndpoint:  getEnv("AVATAR_ENDPOINT", ""),
		AvatarAccessKey: getEnv("AVATAR_ACCESS_KEY", ""),
		AvatarSecretKey: getEnv("AVATAR_SECRET_KEY", ""),
		AvatarPublicURL: getEnv("AVATAR_PUBLIC_URL", ""),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
	}

	var err error
	if cfg.RedisDB, err = parseInt("REDIS_DB", "0"); err != nil {
		return nil, err
	}
	if cfg.BcryptCost, err = parseInt("BCRYPT_COST", "12"); err != nil {
		return nil, err
	}
	if cfg.JWTAccessExpiry, err = parseDuration("JWT_ACCESS_EXPIRY", "15m"); err != nil {
		return nil, err
	}
	if cfg.JWTRefreshExpiry, err = parseDuration("JWT_REFRESH_EXPIRY", "168h"); err != nil {
		return nil, err
	}
	if cfg.VerifyTokenTTL, err = parseDuration("VERIFY_TOKEN_TTL", "24h"); err != nil {
		return nil, err
	}
	if cfg.ResetTokenTTL, err = parseDuration("RESET_TOKEN_TTL", "1h"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports the first missing or unusable required setting. The
// server refuses to start on any of these.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.DBPassword == "" {
		return errors.New("DB_PASSWORD is required")
	}
	if c.RedisAddr == "" {
		return errors.New("REDIS_ADDR is required")
	}
	if c.JWTAccessExpiry <= 0 {
		return errors.New("JWT_ACCESS_EXPIRY must be positive")
	}
	if c.JWTRefreshExpiry <= 0 {
		return errors.New("JWT_REFRESH_EXPIRY must be positive")
	}
	if c.JWTRefreshExpiry <= c.JWTAccessExpiry {
		return errors.New("JWT_REFRESH_EXPIRY must exceed JWT_ACCESS_EXPIRY")
	}
	return nil
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

// AvatarStorageEnabled reports whether avatar uploads are configured.
func (c *Config) AvatarStorageEnabled() bool {
	return c.AvatarBucket != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, raw, err)
	}
	return d, nil
}

func parseInt(key, fallback string) (int, error) {
	raw := getEnv(key, fallback)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, raw, err)
	}
	return n, nil
}
