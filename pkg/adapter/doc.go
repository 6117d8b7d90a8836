// Package adapter provides the unified interface for the dualdb storage
// backends.
//
// This package defines the contracts that backend-specific implementations
// must follow, enabling callers to run the same SQL against an embedded
// SQLite file or a pooled PostgreSQL server while respecting their unique
// characteristics.
//
// # Architecture
//
//   - DatabaseAdapter: the interface both backends implement
//   - Connection: an active backend connection (single serialized
//     connection for SQLite, bounded pool for PostgreSQL)
//   - Client: an exclusive connection borrowed for a transaction scope
//   - Registry: manages adapter registration and retrieval
//
// # Usage
//
// Backends register themselves with the global registry from their init
// functions, so importing a backend package is enough:
//
//	import (
//	    "github.com/ledgerbase/dualdb/pkg/adapter"
//	    _ "github.com/ledgerbase/dualdb/pkg/adapter/postgres"
//	)
//
// Then connect:
//
//	config := adapter.ConnectionConfig{
//	    ConnectionType: "postgres",
//	    Host:           "localhost",
//	    Port:           5432,
//	    DatabaseName:   "myapp",
//	    Username:       "user",
//	    Password:       "pass",
//	}
//
//	conn, err := adapter.GlobalRegistry().Connect(ctx, config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
// Most callers should not use this package directly; the database.Manager
// wraps it with query translation, transactions, fallback and health
// monitoring.
package adapter
