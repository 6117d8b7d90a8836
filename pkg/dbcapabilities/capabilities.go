package dbcapabilities

import "strings"

// DatabaseID is the canonical identifier for a storage backend supported
// by dualdb. Use these constants to look up capability information.
type DatabaseID string

const (
	// SQLite is the embedded, in-process, serialized-writer backend.
	SQLite DatabaseID = "sqlite"

	// PostgreSQL is the networked, pooled-connection backend.
	PostgreSQL DatabaseID = "postgres"
)

// PlaceholderStyle enumerates the positional parameter marker syntax a
// backend expects in SQL text.
type PlaceholderStyle string

const (
	// PlaceholderQuestion is the universal `?` marker (SQLite native).
	PlaceholderQuestion PlaceholderStyle = "question"

	// PlaceholderDollar is sequential `$1..$N` markers (PostgreSQL).
	PlaceholderDollar PlaceholderStyle = "dollar"
)

// Capability describes what a backend supports in a way the
// engine-agnostic layers can consume uniformly.
type Capability struct {
	// Human-friendly product name, e.g. "PostgreSQL".
	Name string `json:"name"`

	// Canonical ID used across the codebase (see DatabaseID constants).
	ID DatabaseID `json:"id"`

	// Whether nested transaction scopes map to real savepoints. When
	// false, nested scopes reuse the single ambient transaction.
	SupportsSavepoints bool `json:"supportsSavepoints"`

	// Whether more than one write transaction may be in flight at a time.
	SupportsConcurrentWrites bool `json:"supportsConcurrentWrites"`

	// Whether connections are drawn from a bounded pool. False means a
	// single serialized connection owns the whole backend.
	Pooled bool `json:"pooled"`

	// Placeholders is the positional marker syntax the backend expects.
	Placeholders PlaceholderStyle `json:"placeholders"`

	// BeginStatement opens a top-level transaction. The embedded engine
	// takes the write lock up front so a scope never fails midway on
	// lock escalation.
	BeginStatement string `json:"beginStatement"`

	// Common aliases (driver names, env labels) that map to this backend.
	Aliases []string `json:"aliases,omitempty"`
}

// All is a registry of capabilities keyed by the canonical backend ID.
var All = map[DatabaseID]Capability{
	SQLite: {
		Name:                     "SQLite",
		ID:                       SQLite,
		SupportsSavepoints:       false,
		SupportsConcurrentWrites: false,
		Pooled:                   false,
		Placeholders:             PlaceholderQuestion,
		BeginStatement:           "BEGIN IMMEDIATE",
		Aliases:                  []string{"sqlite3", "embedded", "local"},
	},
	PostgreSQL: {
		Name:                     "PostgreSQL",
		ID:                       PostgreSQL,
		SupportsSavepoints:       true,
		SupportsConcurrentWrites: true,
		Pooled:                   true,
		Placeholders:             PlaceholderDollar,
		BeginStatement:           "BEGIN",
		Aliases:                  []string{"postgresql", "pgsql", "pg", "networked"},
	},
}

// Get returns the capability for a backend ID.
func Get(id DatabaseID) (Capability, bool) {
	cap, ok := All[id]
	return cap, ok
}

// MustGet returns the capability for a backend ID and panics if the ID
// is unknown. Use only with the package constants.
func MustGet(id DatabaseID) Capability {
	cap, ok := All[id]
	if !ok {
		panic("dbcapabilities: unknown backend id: " + string(id))
	}
	return cap
}

// ParseID maps a name or alias (case-insensitive) to a canonical
// backend ID.
func ParseID(name string) (DatabaseID, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return "", false
	}
	if _, ok := All[DatabaseID(needle)]; ok {
		return DatabaseID(needle), true
	}
	for id, cap := range All {
		for _, alias := range cap.Aliases {
			if alias == needle {
				return id, true
			}
		}
	}
	return "", false
}

// IDs returns the canonical backend IDs in no particular order.
func IDs() []DatabaseID {
	ids := make([]DatabaseID, 0, len(All))
	for id := range All {
		ids = append(ids, id)
	}
	return ids
}
