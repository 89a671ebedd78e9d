package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName        = "Saldo"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultTimezone       = "Asia/Jakarta"
	defaultCurrency       = "IDR"
	defaultOrderIDPrefix  = "INV"
	defaultAccessTTL      = time.Hour
	defaultClientTTL      = time.Hour
	defaultLoginPerMinute = 5
	defaultMidtransExpiry = 60
	defaultDBMaxConns     = 10
	defaultDBLifetime     = 30 * time.Minute
	defaultDBIdleTime     = 5 * time.Minute
	defaultRedisTimeout   = 3 * time.Second
	devJWTSecret          = "saldo-development-secret"
)

// MidtransConfig holds the payment gateway settings.
type MidtransConfig struct {
	Enabled       bool
	ServerKey     string
	Production    bool
	ExpiryMinutes int
}

// Expiry is the lifetime of a payment page.
func (m MidtransConfig) Expiry() time.Duration {
	return time.Duration(m.ExpiryMinutes) * time.Minute
}

// PoolConfig sizes the PostgreSQL connection pool.
type PoolConfig struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisTimeouts bounds each Redis round trip.
type RedisTimeouts struct {
	Dial  time.Duration
	Read  time.Duration
	Write time.Duration
}

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	DBPool         PoolConfig
	Redis          RedisTimeouts
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
	Location       *time.Location
	Currency       string
	OrderIDPrefix  string
	JWTSecret      string
	AccessTokenTTL time.Duration
	ClientTokenTTL time.Duration
	AdminEmail     string
	AdminPassword  string
	LoginPerMinute int
	Midtrans       MidtransConfig
}

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv populates a Config from environment variables only.
func FromEnv() (Config, error) {
	cfg := Config{
		AppName:       getEnv("APP_NAME", defaultAppName),
		AppEnv:        strings.ToLower(getEnv("APP_ENV", defaultAppEnv)),
		Port:          getEnv("PORT", defaultPort),
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		Currency:      getEnv("CURRENCY", defaultCurrency),
		OrderIDPrefix: getEnv("ORDER_ID_PREFIX", defaultOrderIDPrefix),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		Midtrans: MidtransConfig{
			ServerKey: os.Getenv("MIDTRANS_SERVER_KEY"),
		},
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.AccessTokenTTL, err = durationEnv("ACCESS_TOKEN_TTL", defaultAccessTTL); err != nil {
		return Config{}, err
	}
	if cfg.ClientTokenTTL, err = durationEnv("CLIENT_TOKEN_TTL", defaultClientTTL); err != nil {
		return Config{}, err
	}
	if cfg.LoginPerMinute, err = intEnv("LOGIN_RATE_LIMIT", defaultLoginPerMinute); err != nil {
		return Config{}, err
	}
	if cfg.Midtrans.ExpiryMinutes, err = intEnv("MIDTRANS_EXPIRY_MINUTES", defaultMidtransExpiry); err != nil {
		return Config{}, err
	}
	if cfg.DBPool.MaxConns, err = intEnv("DB_MAX_CONNS", defaultDBMaxConns); err != nil {
		return Config{}, err
	}
	if cfg.DBPool.MinConns, err = intEnv("DB_MIN_CONNS", 0); err != nil {
		return Config{}, err
	}
	if cfg.DBPool.MaxConns < 1 || cfg.DBPool.MinConns < 0 || cfg.DBPool.MinConns > cfg.DBPool.MaxConns {
		return Config{}, fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS, and DB_MAX_CONNS at least 1")
	}
	if cfg.DBPool.MaxConnLifetime, err = durationEnv("DB_MAX_CONN_LIFETIME", defaultDBLifetime); err != nil {
		return Config{}, err
	}
	if cfg.DBPool.MaxConnIdleTime, err = durationEnv("DB_MAX_CONN_IDLE_TIME", defaultDBIdleTime); err != nil {
		return Config{}, err
	}
	if cfg.Redis.Dial, err = durationEnv("REDIS_DIAL_TIMEOUT", defaultRedisTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Redis.Read, err = durationEnv("REDIS_READ_TIMEOUT", defaultRedisTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Redis.Write, err = durationEnv("REDIS_WRITE_TIMEOUT", defaultRedisTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Midtrans.Enabled, err = boolEnv("MIDTRANS_ENABLED", false); err != nil {
		return Config{}, err
	}
	if cfg.Midtrans.Production, err = boolEnv("MIDTRANS_PRODUCTION", false); err != nil {
		return Config{}, err
	}

	tz := getEnv("TIMEZONE", defaultTimezone)
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		return Config{}, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	if cfg.Midtrans.Enabled && cfg.Midtrans.ServerKey == "" {
		return Config{}, fmt.Errorf("MIDTRANS_SERVER_KEY must be set when MIDTRANS_ENABLED=true")
	}

	if cfg.IsDev() {
		if cfg.JWTSecret == "" {
			cfg.JWTSecret = devJWTSecret
		}
		return cfg, nil
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}

	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET must be set")
	}

	return cfg, nil
}

// IsDev reports whether the service runs in a local development environment.
func (c Config) IsDev() bool {
	switch c.AppEnv {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// durationEnv reads KEY_SECONDS as whole seconds, falling back to KEY as a
// Go duration string.
func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	secondsKey := key + "_SECONDS"
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, nil
	}
	return fallback, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
