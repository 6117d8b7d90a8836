// Package sqlite implements the embedded storage backend on top of the
// pure-Go SQLite driver. The backend owns exactly one serialized
// connection; the engine itself enforces the single-writer model.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ledgerbase/dualdb/pkg/adapter"
	"github.com/ledgerbase/dualdb/pkg/dbcapabilities"
)

// Adapter implements the adapter.DatabaseAdapter interface for SQLite.
type Adapter struct{}

// NewAdapter creates a new SQLite adapter.
func NewAdapter() adapter.DatabaseAdapter {
	return &Adapter{}
}

// Type returns the backend identifier.
func (a *Adapter) Type() dbcapabilities.DatabaseID {
	return dbcapabilities.SQLite
}

// Capabilities returns the capability metadata for SQLite.
func (a *Adapter) Capabilities() dbcapabilities.Capability {
	return dbcapabilities.MustGet(dbcapabilities.SQLite)
}

// Connect opens the database file and pins the backend to a single
// serialized connection.
func (a *Adapter) Connect(ctx context.Context, config adapter.ConnectionConfig) (adapter.Connection, error) {
	if config.Path == "" {
		return nil, adapter.NewConfigurationError("path", "sqlite requires a database path")
	}

	registerScalarFunctions()

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, adapter.NewConnectionError(dbcapabilities.SQLite, "", 0, err)
	}

	// One connection, reused forever. SQLite allows one writer at a
	// time; funneling every statement through a single connection keeps
	// transaction state unambiguous.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, adapter.NewConnectionError(dbcapabilities.SQLite, "", 0, err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, adapter.NewConnectionError(dbcapabilities.SQLite, "", 0,
				fmt.Errorf("applying %q: %w", pragma, err))
		}
	}

	return &Connection{
		id:      uuid.New().String(),
		db:      db,
		config:  config,
		adapter: a,
	}, nil
}
