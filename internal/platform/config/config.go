// Copyright (c) 2026 Keygate. All rights reserved.
// Author: td.vu.dev@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (store, token service) via constructors.
  - Zero Hidden State: No global variables are used to store config.

The credential policy knobs (minimum lengths, salt, token TTL, role awareness)
exist because the deployments this service replaces disagreed on them; every
one of those disagreements is now an explicit parameter instead of a fork.
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Enumerated Settings

const (
	// SchemeBasic authenticates username+password on every protected request.
	SchemeBasic = "basic"
	// SchemeBearer exchanges a login for a signed time-limited token.
	SchemeBearer = "bearer"

	// BackendFile stores the credential document as a JSON file on disk.
	BackendFile = "file"
	// BackendPostgres stores the credential document as a single JSONB row.
	BackendPostgres = "postgres"
	// BackendRedis stores the credential document under a single key.
	BackendRedis = "redis"

	// HashSHA256 is the deterministic salted digest the existing documents use.
	HashSHA256 = "sha256"
	// HashBcrypt is the hardened per-record-salted alternative.
	HashBcrypt = "bcrypt"
)

// # Configuration Schema

// Config holds all runtime configuration for the Keygate API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// AuthScheme selects how protected requests prove identity: "basic" or "bearer".
	AuthScheme string `env:"AUTH_SCHEME" envDefault:"basic"`

	// Credential store backend: "file", "postgres" or "redis".
	StoreBackend string `env:"STORE_BACKEND" envDefault:"file"`

	// StorePath is the JSON document path for the file backend.
	StorePath string `env:"STORE_PATH" envDefault:"users.json"`

	// Relational Database (PostgreSQL), postgres backend only.
	DatabaseURL string `env:"DATABASE_URL"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value store (Redis), redis backend only.
	RedisURL string `env:"REDIS_URL"`

	// TokenSecret signs bearer tokens (HS256). Required for the bearer scheme.
	TokenSecret string `env:"TOKEN_SECRET"`

	// TokenTTL is the lifetime of an issued bearer token.
	TokenTTL time.Duration `env:"TOKEN_TTL" envDefault:"30m"`

	// HashScheme selects the password digest algorithm: "sha256" or "bcrypt".
	HashScheme string `env:"HASH_SCHEME" envDefault:"sha256"`

	// HashSalt is the application-wide salt for the sha256 scheme.
	HashSalt string `env:"HASH_SALT"`

	// Credential policy
	MinUsernameLength int  `env:"MIN_USERNAME_LENGTH" envDefault:"3"`
	MinPasswordLength int  `env:"MIN_PASSWORD_LENGTH" envDefault:"6"`
	RoleAware         bool `env:"ROLE_AWARE" envDefault:"false"`

	// Bootstrap admin account, created at startup when role-aware and both
	// values are set. Never overwrites an existing record.
	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
//
// Cross-field requirements (a bearer deployment without a signing secret, a
// postgres backend without a DSN) are rejected here so the process fails at
// startup rather than on the first request.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.check(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// check enforces cross-field constraints that env tags cannot express.
func (c *Config) check() error {
	switch c.AuthScheme {
	case SchemeBasic:
	case SchemeBearer:
		if c.TokenSecret == "" {
			return fmt.Errorf("config: TOKEN_SECRET is required for the bearer auth scheme")
		}
	default:
		return fmt.Errorf("config: unknown AUTH_SCHEME %q", c.AuthScheme)
	}

	switch c.StoreBackend {
	case BackendFile:
		if c.StorePath == "" {
			return fmt.Errorf("config: STORE_PATH is required for the file store backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required for the postgres store backend")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("config: REDIS_URL is required for the redis store backend")
		}
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.HashScheme {
	case HashSHA256:
		if c.HashSalt == "" {
			return fmt.Errorf("config: HASH_SALT is required for the sha256 hash scheme")
		}
	case HashBcrypt:
	default:
		return fmt.Errorf("config: unknown HASH_SCHEME %q", c.HashScheme)
	}

	if c.MinUsernameLength < 1 {
		return fmt.Errorf("config: MIN_USERNAME_LENGTH must be positive")
	}
	if c.MinPasswordLength < 1 {
		return fmt.Errorf("config: MIN_PASSWORD_LENGTH must be positive")
	}

	return nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AllowedOrigins returns the comma-separated EXTRA_ORIGINS list as a slice.
func (c *Config) AllowedOrigins() []string {
	if c.ExtraOrigins == "" {
		return nil
	}
	origins := strings.Split(c.ExtraOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}
