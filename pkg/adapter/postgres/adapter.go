// Package postgres implements the networked storage backend on top of a
// bounded pgx connection pool.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerbase/dualdb/pkg/adapter"
	"github.com/ledgerbase/dualdb/pkg/dbcapabilities"
)

// Adapter implements the adapter.DatabaseAdapter interface for PostgreSQL.
type Adapter struct{}

// NewAdapter creates a new PostgreSQL adapter.
func NewAdapter() adapter.DatabaseAdapter {
	return &Adapter{}
}

// Type returns the backend identifier.
func (a *Adapter) Type() dbcapabilities.DatabaseID {
	return dbcapabilities.PostgreSQL
}

// Capabilities returns the capability metadata for PostgreSQL.
func (a *Adapter) Capabilities() dbcapabilities.Capability {
	return dbcapabilities.MustGet(dbcapabilities.PostgreSQL)
}

// Connect establishes a bounded connection pool and installs the shared
// scalar functions on first contact.
func (a *Adapter) Connect(ctx context.Context, config adapter.ConnectionConfig) (adapter.Connection, error) {
	poolConfig, err := buildPoolConfig(config)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, adapter.NewConnectionError(dbcapabilities.PostgreSQL, config.Host, config.Port, err)
	}

	// Test the connection before handing it out.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, adapter.NewConnectionError(dbcapabilities.PostgreSQL, config.Host, config.Port, err)
	}

	conn := &Connection{
		id:      uuid.New().String(),
		pool:    pool,
		config:  config,
		adapter: a,
	}

	// Scalar-function parity with the embedded backend. A missing
	// optional extension degrades one function to a warning, never a
	// failed connect.
	warnings, err := installScalarFunctions(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, adapter.NewConnectionError(dbcapabilities.PostgreSQL, config.Host, config.Port,
			fmt.Errorf("installing scalar functions: %w", err))
	}
	conn.warnings = warnings

	return conn, nil
}

// buildPoolConfig maps the unified connection config onto pgxpool.
// Parameters are set field by field to avoid URL parsing issues with
// special characters in passwords.
func buildPoolConfig(config adapter.ConnectionConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, adapter.NewConfigurationError("connectionString", err.Error())
	}

	if config.ConnectionString == "" {
		if config.Host == "" || config.DatabaseName == "" || config.Username == "" {
			return nil, adapter.NewConfigurationError("postgres",
				"host, database and user are required without a connection string")
		}
		poolConfig.ConnConfig.Host = config.Host
		poolConfig.ConnConfig.Port = uint16(config.Port)
		poolConfig.ConnConfig.Database = config.DatabaseName
		poolConfig.ConnConfig.User = config.Username
		poolConfig.ConnConfig.Password = config.Password
	}

	if config.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = config.ConnectTimeout
	}

	if !config.SSL && !strings.Contains(config.ConnectionString, "sslmode=") {
		poolConfig.ConnConfig.TLSConfig = nil
	}

	if config.PoolMinSize > 0 {
		poolConfig.MinConns = int32(config.PoolMinSize)
	}
	if config.PoolMaxSize > 0 {
		poolConfig.MaxConns = int32(config.PoolMaxSize)
	}
	if config.IdleTimeout > 0 {
		poolConfig.MaxConnIdleTime = config.IdleTimeout
	}

	return poolConfig, nil
}
