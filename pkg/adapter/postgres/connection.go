package postgres

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerbase/dualdb/pkg/adapter"
	"github.com/ledgerbase/dualdb/pkg/dbcapabilities"
)

// Connection is the live handle to the networked database pool.
type Connection struct {
	id       string
	pool     *pgxpool.Pool
	config   adapter.ConnectionConfig
	adapter  *Adapter
	warnings []string
	closed   atomic.Bool
}

// ID returns the connection identifier.
func (c *Connection) ID() string { return c.id }

// Type returns the backend identifier.
func (c *Connection) Type() dbcapabilities.DatabaseID { return dbcapabilities.PostgreSQL }

// IsConnected reports whether the pool is usable.
func (c *Connection) IsConnected() bool { return !c.closed.Load() }

// Ping verifies the server is reachable.
func (c *Connection) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return adapter.ErrConnectionClosed
	}
	return c.pool.Ping(ctx)
}

// Close releases the pool. Safe to call repeatedly, and safe when the
// network is already gone: pgxpool.Close never reports an error.
func (c *Connection) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.pool.Close()
	return nil
}

// Query runs a statement on any pooled connection.
func (c *Connection) Query(ctx context.Context, sql string, args ...interface{}) ([]adapter.Row, error) {
	if c.closed.Load() {
		return nil, adapter.ErrConnectionClosed
	}
	rows, err := c.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return collectRows(rows)
}

// Exec runs a statement on any pooled connection. InsertID is always 0;
// PostgreSQL reports generated keys only through RETURNING.
func (c *Connection) Exec(ctx context.Context, sql string, args ...interface{}) (adapter.ExecResult, error) {
	if c.closed.Load() {
		return adapter.ExecResult{}, adapter.ErrConnectionClosed
	}
	tag, err := c.pool.Exec(ctx, sql, args...)
	if err != nil {
		return adapter.ExecResult{}, err
	}
	return adapter.ExecResult{Changes: tag.RowsAffected()}, nil
}

// Acquire checks a client out of the pool. The checkout respects the
// pool's connect timeout; a saturated pool rejects rather than queueing
// forever.
func (c *Connection) Acquire(ctx context.Context) (adapter.Client, error) {
	if c.closed.Load() {
		return nil, adapter.ErrConnectionClosed
	}
	pc, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &client{conn: pc}, nil
}

// Version returns the server version string.
func (c *Connection) Version(ctx context.Context) (string, error) {
	var version string
	if err := c.pool.QueryRow(ctx, "SHOW server_version").Scan(&version); err != nil {
		return "", err
	}
	return version, nil
}

// ListTables returns the table names in the public schema.
func (c *Connection) ListTables(ctx context.Context) ([]string, error) {
	rows, err := c.pool.Query(ctx,
		"SELECT tablename FROM pg_catalog.pg_tables WHERE schemaname = 'public' ORDER BY tablename")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// CheckIntegrity verifies the catalog is readable and no table sits in
// an invalid state. The server guards page-level integrity itself, so a
// catalog sweep is the meaningful client-side check.
func (c *Connection) CheckIntegrity(ctx context.Context) error {
	var invalid int
	err := c.pool.QueryRow(ctx,
		"SELECT count(*) FROM pg_index i "+
			"JOIN pg_class c ON c.oid = i.indexrelid "+
			"JOIN pg_namespace n ON n.oid = c.relnamespace "+
			"WHERE n.nspname = 'public' AND NOT i.indisvalid",
	).Scan(&invalid)
	if err != nil {
		return err
	}
	if invalid > 0 {
		return fmt.Errorf("%d invalid indexes in public schema", invalid)
	}
	return nil
}

// Warnings returns warnings collected while connecting.
func (c *Connection) Warnings() []string { return c.warnings }

// Config returns the connection configuration.
func (c *Connection) Config() adapter.ConnectionConfig { return c.config }

// Adapter returns the owning adapter.
func (c *Connection) Adapter() adapter.DatabaseAdapter { return c.adapter }

// client wraps a pinned pool connection.
type client struct {
	conn     *pgxpool.Conn
	released atomic.Bool
}

func (cl *client) Query(ctx context.Context, sql string, args ...interface{}) ([]adapter.Row, error) {
	rows, err := cl.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return collectRows(rows)
}

func (cl *client) Exec(ctx context.Context, sql string, args ...interface{}) (adapter.ExecResult, error) {
	tag, err := cl.conn.Exec(ctx, sql, args...)
	if err != nil {
		return adapter.ExecResult{}, err
	}
	return adapter.ExecResult{Changes: tag.RowsAffected()}, nil
}

func (cl *client) Release() {
	if !cl.released.Swap(true) {
		cl.conn.Release()
	}
}

// collectRows drains a pgx result set into name-keyed rows.
func collectRows(rows pgx.Rows) ([]adapter.Row, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []adapter.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(adapter.Row, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
