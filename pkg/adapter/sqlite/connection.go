package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"github.com/ledgerbase/dualdb/pkg/adapter"
	"github.com/ledgerbase/dualdb/pkg/dbcapabilities"
)

// Connection is the live handle to the embedded database.
type Connection struct {
	id      string
	db      *sql.DB
	config  adapter.ConnectionConfig
	adapter *Adapter
	closed  atomic.Bool
}

// ID returns the connection identifier.
func (c *Connection) ID() string { return c.id }

// Type returns the backend identifier.
func (c *Connection) Type() dbcapabilities.DatabaseID { return dbcapabilities.SQLite }

// IsConnected reports whether the connection is usable.
func (c *Connection) IsConnected() bool { return !c.closed.Load() }

// Ping verifies the database file is reachable.
func (c *Connection) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return adapter.ErrConnectionClosed
	}
	return c.db.PingContext(ctx)
}

// Close releases the underlying connection. Safe to call repeatedly.
func (c *Connection) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.db.Close()
}

// Query runs a statement returning rows.
func (c *Connection) Query(ctx context.Context, query string, args ...interface{}) ([]adapter.Row, error) {
	if c.closed.Load() {
		return nil, adapter.ErrConnectionClosed
	}
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectRows(rows)
}

// Exec runs a statement and reports affected rows plus the last rowid.
func (c *Connection) Exec(ctx context.Context, query string, args ...interface{}) (adapter.ExecResult, error) {
	if c.closed.Load() {
		return adapter.ExecResult{}, adapter.ErrConnectionClosed
	}
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return adapter.ExecResult{}, err
	}
	changes, _ := res.RowsAffected()
	insertID, _ := res.LastInsertId()
	return adapter.ExecResult{Changes: changes, InsertID: insertID}, nil
}

// Acquire pins the single connection for the caller. With one
// serialized connection this is the same connection every time; the
// exclusivity comes from database/sql blocking further checkouts.
func (c *Connection) Acquire(ctx context.Context) (adapter.Client, error) {
	if c.closed.Load() {
		return nil, adapter.ErrConnectionClosed
	}
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &client{conn: conn}, nil
}

// Version returns the SQLite library version.
func (c *Connection) Version(ctx context.Context) (string, error) {
	var version string
	if err := c.db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version); err != nil {
		return "", err
	}
	return version, nil
}

// ListTables returns the user table names.
func (c *Connection) ListTables(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
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

// CheckIntegrity runs the engine's integrity check.
func (c *Connection) CheckIntegrity(ctx context.Context) error {
	var result string
	if err := c.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("integrity check reported: %s", result)
	}
	return nil
}

// Warnings returns warnings collected while connecting. The embedded
// backend registers its scalar functions natively, so there are none.
func (c *Connection) Warnings() []string { return nil }

// Config returns the connection configuration.
func (c *Connection) Config() adapter.ConnectionConfig { return c.config }

// Adapter returns the owning adapter.
func (c *Connection) Adapter() adapter.DatabaseAdapter { return c.adapter }

// client wraps the checked-out *sql.Conn.
type client struct {
	conn     *sql.Conn
	released atomic.Bool
}

func (cl *client) Query(ctx context.Context, query string, args ...interface{}) ([]adapter.Row, error) {
	rows, err := cl.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectRows(rows)
}

func (cl *client) Exec(ctx context.Context, query string, args ...interface{}) (adapter.ExecResult, error) {
	res, err := cl.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return adapter.ExecResult{}, err
	}
	changes, _ := res.RowsAffected()
	insertID, _ := res.LastInsertId()
	return adapter.ExecResult{Changes: changes, InsertID: insertID}, nil
}

func (cl *client) Release() {
	if !cl.released.Swap(true) {
		cl.conn.Close()
	}
}

// collectRows drains a result set into name-keyed rows.
func collectRows(rows *sql.Rows) ([]adapter.Row, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []adapter.Row
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(adapter.Row, len(columns))
		for i, col := range columns {
			v := values[i]
			// The driver hands back []byte for TEXT in some paths; a
			// string is what callers expect either way.
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
