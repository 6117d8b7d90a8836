package postgres

import (
	"github.com/ledgerbase/dualdb/pkg/adapter"
)

func init() {
	// Register the PostgreSQL adapter with the global registry
	adapter.Register(NewAdapter())
}
