package sqlite

import (
	"github.com/ledgerbase/dualdb/pkg/adapter"
)

func init() {
	// Register the embedded SQLite adapter with the global registry
	adapter.Register(NewAdapter())
}
