// Package config resolves the immutable database configuration from
// environment-style input.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ledgerbase/dualdb/pkg/adapter"
	"github.com/ledgerbase/dualdb/pkg/dbcapabilities"
)

// Environment variable names understood by Resolve.
const (
	EnvAdapter          = "DUALDB_ADAPTER"
	EnvUseNetworked     = "DUALDB_USE_NETWORKED"
	EnvSQLitePath       = "DUALDB_SQLITE_PATH"
	EnvPGConnString     = "DUALDB_PG_CONNECTION_STRING"
	EnvPGHost           = "DUALDB_PG_HOST"
	EnvPGPort           = "DUALDB_PG_PORT"
	EnvPGDatabase       = "DUALDB_PG_DATABASE"
	EnvPGUser           = "DUALDB_PG_USER"
	EnvPGPassword       = "DUALDB_PG_PASSWORD"
	EnvPGSSL            = "DUALDB_PG_SSL"
	EnvPGPoolMin        = "DUALDB_PG_POOL_MIN"
	EnvPGPoolMax        = "DUALDB_PG_POOL_MAX"
	EnvPGConnectTimeout = "DUALDB_PG_CONNECT_TIMEOUT_MS"
	EnvPGIdleTimeout    = "DUALDB_PG_IDLE_TIMEOUT_MS"
	EnvFallbackEnabled  = "DUALDB_FALLBACK_ENABLED"
	EnvHealthEnabled    = "DUALDB_HEALTHCHECK_ENABLED"
	EnvSchemaValidation = "DUALDB_SCHEMA_VALIDATION"
)

// Defaults applied when the corresponding variable is unset.
const (
	DefaultSQLitePath     = "dualdb.sqlite"
	DefaultPGPort         = 5432
	DefaultPoolMin        = 1
	DefaultPoolMax        = 10
	DefaultConnectTimeout = 5 * time.Second
	DefaultIdleTimeout    = 30 * time.Second
)

// Config is the immutable resolved database configuration. Producing a
// new Config is the only way to change adapters.
type Config struct {
	AdapterKind dbcapabilities.DatabaseID

	// Embedded engine
	SQLitePath string

	// Networked engine
	Postgres PostgresOptions

	// Policy flags
	FallbackEnabled        bool
	HealthCheckEnabled     bool
	SchemaValidationEnable bool
}

// PostgresOptions holds the networked engine's connection parameters.
type PostgresOptions struct {
	ConnectionString string
	Host             string
	Port             int
	Database         string
	User             string
	Password         string
	SSL              bool
	PoolMin          int
	PoolMax          int
	ConnectTimeout   time.Duration
	IdleTimeout      time.Duration
}

// Getenv is the environment lookup Resolve reads from.
type Getenv func(key string) string

// Resolve derives a Config from the environment. It is a pure function
// of the lookup: no side effects, fail fast on invalid input.
//
// Adapter precedence: explicit DUALDB_ADAPTER > DUALDB_USE_NETWORKED
// feature flag > embedded default.
func Resolve(getenv Getenv) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := Config{
		AdapterKind: dbcapabilities.SQLite,
		SQLitePath:  DefaultSQLitePath,
		Postgres: PostgresOptions{
			Port:           DefaultPGPort,
			PoolMin:        DefaultPoolMin,
			PoolMax:        DefaultPoolMax,
			ConnectTimeout: DefaultConnectTimeout,
			IdleTimeout:    DefaultIdleTimeout,
		},
		FallbackEnabled:        parseBool(getenv(EnvFallbackEnabled), true),
		HealthCheckEnabled:     parseBool(getenv(EnvHealthEnabled), true),
		SchemaValidationEnable: parseBool(getenv(EnvSchemaValidation), true),
	}

	if v := getenv(EnvSQLitePath); v != "" {
		cfg.SQLitePath = v
	}

	if explicit := getenv(EnvAdapter); explicit != "" {
		id, ok := dbcapabilities.ParseID(explicit)
		if !ok {
			return Config{}, adapter.NewConfigurationError(EnvAdapter,
				fmt.Sprintf("unknown adapter %q", explicit))
		}
		cfg.AdapterKind = id
	} else if parseBool(getenv(EnvUseNetworked), false) {
		cfg.AdapterKind = dbcapabilities.PostgreSQL
	}

	pg := &cfg.Postgres
	pg.ConnectionString = getenv(EnvPGConnString)
	pg.Host = getenv(EnvPGHost)
	pg.Database = getenv(EnvPGDatabase)
	pg.User = getenv(EnvPGUser)
	pg.Password = getenv(EnvPGPassword)
	pg.SSL = parseBool(getenv(EnvPGSSL), false)

	var err error
	if pg.Port, err = parseInt(getenv(EnvPGPort), DefaultPGPort, EnvPGPort); err != nil {
		return Config{}, err
	}
	if pg.PoolMin, err = parseInt(getenv(EnvPGPoolMin), DefaultPoolMin, EnvPGPoolMin); err != nil {
		return Config{}, err
	}
	if pg.PoolMax, err = parseInt(getenv(EnvPGPoolMax), DefaultPoolMax, EnvPGPoolMax); err != nil {
		return Config{}, err
	}
	if pg.ConnectTimeout, err = parseMillis(getenv(EnvPGConnectTimeout), DefaultConnectTimeout, EnvPGConnectTimeout); err != nil {
		return Config{}, err
	}
	if pg.IdleTimeout, err = parseMillis(getenv(EnvPGIdleTimeout), DefaultIdleTimeout, EnvPGIdleTimeout); err != nil {
		return Config{}, err
	}

	if cfg.AdapterKind == dbcapabilities.PostgreSQL {
		if err := validatePostgres(pg); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// validatePostgres enforces the networked engine's invariants: valid
// port range, sane pool and timeout values, and at least one of a
// connection string or host+database+user.
func validatePostgres(pg *PostgresOptions) error {
	if pg.ConnectionString == "" {
		if pg.Host == "" || pg.Database == "" || pg.User == "" {
			return adapter.NewConfigurationError("postgres",
				"networked adapter requires either a connection string or host, database and user")
		}
	}
	if pg.Port < 1 || pg.Port > 65535 {
		return adapter.NewConfigurationError(EnvPGPort,
			fmt.Sprintf("port %d outside 1-65535", pg.Port))
	}
	if pg.PoolMin < 1 {
		return adapter.NewConfigurationError(EnvPGPoolMin, "pool size must be at least 1")
	}
	if pg.PoolMax < pg.PoolMin {
		return adapter.NewConfigurationError(EnvPGPoolMax,
			fmt.Sprintf("max pool size %d below min %d", pg.PoolMax, pg.PoolMin))
	}
	if pg.ConnectTimeout < time.Second {
		return adapter.NewConfigurationError(EnvPGConnectTimeout, "connect timeout must be at least 1000ms")
	}
	if pg.IdleTimeout < time.Second {
		return adapter.NewConfigurationError(EnvPGIdleTimeout, "idle timeout must be at least 1000ms")
	}
	return nil
}

// ConnectionConfig materializes the adapter-level connection config for
// the given backend.
func (c Config) ConnectionConfig(kind dbcapabilities.DatabaseID) adapter.ConnectionConfig {
	switch kind {
	case dbcapabilities.PostgreSQL:
		return adapter.ConnectionConfig{
			ConnectionType:   string(dbcapabilities.PostgreSQL),
			ConnectionString: c.Postgres.ConnectionString,
			Host:             c.Postgres.Host,
			Port:             c.Postgres.Port,
			DatabaseName:     c.Postgres.Database,
			Username:         c.Postgres.User,
			Password:         c.Postgres.Password,
			SSL:              c.Postgres.SSL,
			PoolMinSize:      c.Postgres.PoolMin,
			PoolMaxSize:      c.Postgres.PoolMax,
			ConnectTimeout:   c.Postgres.ConnectTimeout,
			IdleTimeout:      c.Postgres.IdleTimeout,
		}
	default:
		return adapter.ConnectionConfig{
			ConnectionType: string(dbcapabilities.SQLite),
			Path:           c.SQLitePath,
		}
	}
}

func parseBool(v string, fallback bool) bool {
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

func parseInt(v string, fallback int, field string) (int, error) {
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, adapter.NewConfigurationError(field, fmt.Sprintf("not a number: %q", v))
	}
	return n, nil
}

func parseMillis(v string, fallback time.Duration, field string) (time.Duration, error) {
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, adapter.NewConfigurationError(field, fmt.Sprintf("not a number: %q", v))
	}
	return time.Duration(n) * time.Millisecond, nil
}
