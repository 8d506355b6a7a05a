// Package config loads the process configuration once at startup.
//
// Values come from environment variables (optionally seeded from a .env file);
// namespace limits can additionally be overridden by a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/R3E-Network/worldstore/internal/crypto"
	"github.com/R3E-Network/worldstore/internal/pagination"
)

// NamespaceLimits are the byte quotas for one storage namespace.
type NamespaceLimits struct {
	MaxValueSizeBytes int64 `yaml:"maxValueSizeBytes"`
	MaxTotalSizeBytes int64 `yaml:"maxTotalSizeBytes"`
}

// Limits groups the quotas of all namespaces.
type Limits struct {
	World  NamespaceLimits `yaml:"world"`
	Player NamespaceLimits `yaml:"player"`
	Env    NamespaceLimits `yaml:"env"`
}

// DatabaseConfig configures the PostgreSQL pool. An empty DSN selects the
// in-memory stores.
type DatabaseConfig struct {
	DSN             string        `env:"DATABASE_DSN"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS,default=20"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME,default=30m"`
	AutoMigrate     bool          `env:"DATABASE_AUTO_MIGRATE,default=true"`
}

// Config is the immutable process configuration.
type Config struct {
	HTTPAddr      string `env:"HTTP_ADDR,default=:8080"`
	APIPathPrefix string `env:"API_PATH_PREFIX"`
	LogLevel      string `env:"LOG_LEVEL,default=info"`
	LogFormat     string `env:"LOG_FORMAT,default=json"`

	Database DatabaseConfig

	// EncryptionKeyHex is the 64-character hex secret for env values.
	EncryptionKeyHex string `env:"ENCRYPTION_KEY"`

	WorldContentURL     string        `env:"WORLD_CONTENT_URL"`
	WorldContentTimeout time.Duration `env:"WORLD_CONTENT_TIMEOUT,default=10s"`

	AuthoritativeServerAddress string `env:"AUTHORITATIVE_SERVER_ADDRESS"`
	AuthorizedAddressesCSV     string `env:"AUTHORIZED_ADDRESSES"`

	SignedFetchMode      string `env:"SIGNED_FETCH_MODE,default=header"`
	SignedFetchJWTSecret string `env:"SIGNED_FETCH_JWT_SECRET"`
	// SignedFetchStrictChecksum rejects mixed-case signers without a valid EIP-55 checksum.
	SignedFetchStrictChecksum bool `env:"SIGNED_FETCH_STRICT_CHECKSUM,default=false"`

	PaginationDefaultLimit int `env:"PAGINATION_DEFAULT_LIMIT,default=100"`
	PaginationMaxLimit     int `env:"PAGINATION_MAX_LIMIT,default=1000"`

	WorldMaxValueSizeBytes  int64 `env:"WORLD_MAX_VALUE_SIZE_BYTES,default=262144"`
	WorldMaxTotalSizeBytes  int64 `env:"WORLD_MAX_TOTAL_SIZE_BYTES,default=10485760"`
	PlayerMaxValueSizeBytes int64 `env:"PLAYER_MAX_VALUE_SIZE_BYTES,default=65536"`
	PlayerMaxTotalSizeBytes int64 `env:"PLAYER_MAX_TOTAL_SIZE_BYTES,default=1048576"`
	EnvMaxValueSizeBytes    int64 `env:"ENV_MAX_VALUE_SIZE_BYTES,default=4096"`
	EnvMaxTotalSizeBytes    int64 `env:"ENV_MAX_TOTAL_SIZE_BYTES,default=262144"`
	LimitsFile              string `env:"LIMITS_FILE"`

	RateLimitRPS       int    `env:"RATE_LIMIT_RPS,default=50"`
	RateLimitBurst     int    `env:"RATE_LIMIT_BURST,default=100"`
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS"`

	// Derived values, filled by Load.
	EncryptionKey []byte
	Limits        Limits
}

// Signed-fetch verification modes.
const (
	SignedFetchModeHeader = "header"
	SignedFetchModeJWT    = "jwt"
)

// Load reads an optional .env file and decodes the environment.
// Missing files are ignored; a present but unreadable file is an error.
func Load(envFiles ...string) (*Config, error) {
	for _, file := range envFiles {
		if file == "" {
			continue
		}
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}
	return LoadFromEnv()
}

// LoadFromEnv decodes and validates the configuration from the environment.
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	cfg.Limits = Limits{
		World:  NamespaceLimits{MaxValueSizeBytes: cfg.WorldMaxValueSizeBytes, MaxTotalSizeBytes: cfg.WorldMaxTotalSizeBytes},
		Player: NamespaceLimits{MaxValueSizeBytes: cfg.PlayerMaxValueSizeBytes, MaxTotalSizeBytes: cfg.PlayerMaxTotalSizeBytes},
		Env:    NamespaceLimits{MaxValueSizeBytes: cfg.EnvMaxValueSizeBytes, MaxTotalSizeBytes: cfg.EnvMaxTotalSizeBytes},
	}
	if cfg.LimitsFile != "" {
		if err := cfg.Limits.mergeFile(cfg.LimitsFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required settings and derives the encryption key.
func (c *Config) Validate() error {
	key, err := crypto.ParseHexKey(c.EncryptionKeyHex)
	if err != nil {
		return fmt.Errorf("ENCRYPTION_KEY: %w", err)
	}
	c.EncryptionKey = key

	if strings.TrimSpace(c.WorldContentURL) == "" {
		return fmt.Errorf("WORLD_CONTENT_URL is required")
	}

	switch c.SignedFetchMode {
	case SignedFetchModeHeader:
	case SignedFetchModeJWT:
		if c.SignedFetchJWTSecret == "" {
			return fmt.Errorf("SIGNED_FETCH_JWT_SECRET is required when SIGNED_FETCH_MODE=jwt")
		}
	default:
		return fmt.Errorf("SIGNED_FETCH_MODE must be %q or %q", SignedFetchModeHeader, SignedFetchModeJWT)
	}

	if c.PaginationDefaultLimit <= 0 || c.PaginationMaxLimit <= 0 {
		return fmt.Errorf("pagination limits must be positive")
	}
	if c.PaginationDefaultLimit > c.PaginationMaxLimit {
		return fmt.Errorf("PAGINATION_DEFAULT_LIMIT must not exceed PAGINATION_MAX_LIMIT")
	}

	for name, l := range map[string]NamespaceLimits{"world": c.Limits.World, "player": c.Limits.Player, "env": c.Limits.Env} {
		if l.MaxValueSizeBytes <= 0 || l.MaxTotalSizeBytes <= 0 {
			return fmt.Errorf("%s limits must be positive", name)
		}
		if l.MaxValueSizeBytes > l.MaxTotalSizeBytes {
			return fmt.Errorf("%s max value size must not exceed max total size", name)
		}
	}
	return nil
}

// Pagination returns the page size configuration.
func (c *Config) Pagination() pagination.Config {
	return pagination.Config{DefaultLimit: c.PaginationDefaultLimit, MaxLimit: c.PaginationMaxLimit}
}

// AuthorizedAddresses returns the static allow-list entries, trimmed, blanks dropped.
func (c *Config) AuthorizedAddresses() []string {
	return SplitCSV(c.AuthorizedAddressesCSV)
}

// CORSOrigins returns the configured CORS origins.
func (c *Config) CORSOrigins() []string {
	return SplitCSV(c.CORSAllowedOrigins)
}

// mergeFile overrides non-zero limits with values from a YAML file.
func (l *Limits) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read limits file: %w", err)
	}
	var fromFile Limits
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return fmt.Errorf("parse limits file: %w", err)
	}
	l.World.merge(fromFile.World)
	l.Player.merge(fromFile.Player)
	l.Env.merge(fromFile.Env)
	return nil
}

func (n *NamespaceLimits) merge(other NamespaceLimits) {
	if other.MaxValueSizeBytes > 0 {
		n.MaxValueSizeBytes = other.MaxValueSizeBytes
	}
	if other.MaxTotalSizeBytes > 0 {
		n.MaxTotalSizeBytes = other.MaxTotalSizeBytes
	}
}

// SplitCSV splits a comma-separated list, trimming entries and dropping blanks.
func SplitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
