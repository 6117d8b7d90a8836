package adapter

import (
	"context"

	"github.com/ledgerbase/dualdb/pkg/dbcapabilities"
)

// Row is a single result row keyed by column name.
type Row map[string]interface{}

// ExecResult reports the outcome of a statement that does not return rows.
// InsertID is only populated by backends that expose a rowid for the last
// insert; on PostgreSQL it is always 0 unless the statement uses RETURNING.
type ExecResult struct {
	Changes  int64 `json:"changes"`
	InsertID int64 `json:"insertId"`
}

// DatabaseAdapter represents a storage backend technology.
// Each backend (SQLite, PostgreSQL) must implement this interface and
// register itself with the global registry.
type DatabaseAdapter interface {
	// Type returns the canonical backend identifier
	Type() dbcapabilities.DatabaseID

	// Capabilities returns the capability metadata for this backend
	Capabilities() dbcapabilities.Capability

	// Connect establishes a connection to the backend
	Connect(ctx context.Context, config ConnectionConfig) (Connection, error)
}

// Connection represents an active connection to a backend.
// This is the main interface for interacting with a backend: the SQLite
// implementation owns one serialized connection, the PostgreSQL
// implementation owns a bounded pool.
type Connection interface {
	// Identity and status
	ID() string
	Type() dbcapabilities.DatabaseID
	IsConnected() bool

	// Lifecycle management. Close is idempotent and must not fail when
	// the underlying transport is already gone.
	Ping(ctx context.Context) error
	Close() error

	// Pool-level execution. Each call may use any available connection;
	// ordering across calls is whatever the pool provides.
	Query(ctx context.Context, sql string, args ...interface{}) ([]Row, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (ExecResult, error)

	// Acquire checks out an exclusive client, pinning one underlying
	// connection until Release. Transactions run on an acquired client so
	// their statements are strictly ordered.
	Acquire(ctx context.Context) (Client, error)

	// Introspection used by the health probes
	Version(ctx context.Context) (string, error)
	ListTables(ctx context.Context) ([]string, error)
	CheckIntegrity(ctx context.Context) error

	// Warnings collected while connecting, e.g. a missing optional
	// extension that degrades one scalar function.
	Warnings() []string

	// Configuration
	Config() ConnectionConfig
	Adapter() DatabaseAdapter
}

// Client is an exclusive connection borrowed from a Connection.
// Callers must Release it on every exit path.
type Client interface {
	Query(ctx context.Context, sql string, args ...interface{}) ([]Row, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (ExecResult, error)
	Release()
}
