package database

import (
	"hash/fnv"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ledgerbase/dualdb/pkg/dbcapabilities"
)

// DefaultStatementCacheSize bounds the translated-statement cache.
// Eviction is capacity-based only; entries never expire on their own.
const DefaultStatementCacheSize = 100

// translatedStmt is a cached query translation.
type translatedStmt struct {
	SQL        string
	ParamCount int
}

// stmtCache maps (backend kind, SQL text) to its translated form.
// Translations are backend-specific, so the cache is purged wholesale on
// every adapter switch.
type stmtCache struct {
	entries *lru.Cache[uint64, translatedStmt]
}

func newStmtCache(capacity int) *stmtCache {
	if capacity <= 0 {
		capacity = DefaultStatementCacheSize
	}
	entries, err := lru.New[uint64, translatedStmt](capacity)
	if err != nil {
		// lru.New only fails on a non-positive size.
		panic(err)
	}
	return &stmtCache{entries: entries}
}

// key hashes the backend kind together with the SQL text.
func (c *stmtCache) key(kind dbcapabilities.DatabaseID, sql string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(sql))
	return h.Sum64()
}

func (c *stmtCache) get(kind dbcapabilities.DatabaseID, sql string) (translatedStmt, bool) {
	return c.entries.Get(c.key(kind, sql))
}

func (c *stmtCache) put(kind dbcapabilities.DatabaseID, sql string, stmt translatedStmt) {
	c.entries.Add(c.key(kind, sql), stmt)
}

func (c *stmtCache) purge() {
	c.entries.Purge()
}

func (c *stmtCache) len() int {
	return c.entries.Len()
}
