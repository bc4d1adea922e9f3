package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const minJWTKeyLen = 32

// Storage drivers.
const (
	DriverMongo  = "mongo"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

type Config struct {
	Port      string `env:"PORT,       default=8080"`
	Env       string `env:"ENV,        default=development"`
	LogLevel  string `env:"LOG_LEVEL,  default=info"`
	LogPretty bool   `env:"LOG_PRETTY, default=false"`

	// StoreDriver selects users and refresh tokens storage: mongo or memory.
	StoreDriver string `env:"STORE_DRIVER, default=mongo"`
	// CacheDriver selects rate limit and brute-force storage: redis or memory.
	CacheDriver string `env:"CACHE_DRIVER, default=redis"`

	MaintenanceInterval time.Duration `env:"MAINTENANCE_INTERVAL, default=10m"`

	JWT        JWTConfig
	BruteForce BruteForceConfig
	RateLimit  RateLimitConfig
	Auth       AuthConfig
	Mongo      MongoConfig
	Redis      RedisConfig
}

type JWTConfig struct {
	Secret           string `env:"JWT_SECRET, required"`
	Issuer           string `env:"JWT_ISSUER,             default=clipper-api"`
	Audience         string `env:"JWT_AUDIENCE,           default=clipper-clients"`
	AccessTTLMinutes int    `env:"JWT_ACCESS_TTL_MINUTES, default=60"`
	RefreshTTLDays   int    `env:"JWT_REFRESH_TTL_DAYS,   default=7"`
}

func (c JWTConfig) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLMinutes) * time.Minute
}

func (c JWTConfig) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLDays) * 24 * time.Hour
}

type BruteForceConfig struct {
	MaxAttempts int           `env:"BRUTE_FORCE_MAX_ATTEMPTS, default=5"`
	Lockout     time.Duration `env:"BRUTE_FORCE_LOCKOUT,      default=15m"`
	Horizon     time.Duration `env:"BRUTE_FORCE_HORIZON,      default=1h"`
}

type RateLimitConfig struct {
	Window    time.Duration `env:"RATE_LIMIT_WINDOW,      default=1m"`
	Global    int           `env:"RATE_LIMIT_GLOBAL,      default=100"`
	Sensitive int           `env:"RATE_LIMIT_SENSITIVE,   default=5"`
	// TrustProxy makes the client address come from X-Forwarded-For. Enable
	// only behind a proxy that overwrites the header.
	TrustProxy bool `env:"RATE_LIMIT_TRUST_PROXY, default=false"`
}

type AuthConfig struct {
	// RevealLockout answers locked logins with 429 and Retry-After instead of
	// the generic 401.
	RevealLockout bool `env:"AUTH_REVEAL_LOCKOUT, default=false"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=clipper"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

// Validate rejects configurations the service must not start with.
func (c *Config) Validate() error {
	var errs []error
	if len(c.JWT.Secret) < minJWTKeyLen {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", minJWTKeyLen))
	}
	if c.JWT.AccessTTLMinutes <= 0 || c.JWT.RefreshTTLDays <= 0 {
		errs = append(errs, errors.New("JWT token lifetimes must be positive"))
	}
	if c.StoreDriver != DriverMongo && c.StoreDriver != DriverMemory {
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverMongo, DriverMemory, c.StoreDriver))
	}
	if c.CacheDriver != DriverRedis && c.CacheDriver != DriverMemory {
		errs = append(errs, fmt.Errorf("CACHE_DRIVER must be %q or %q, got %q", DriverRedis, DriverMemory, c.CacheDriver))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}
	return errors.Join(errs...)
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// MustLoad is Load for main: it panics on error.
func MustLoad(ctx context.Context) *Config {
	cfg, err := Load(ctx)
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}
