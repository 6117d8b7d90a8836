package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// The embedded backend registers these scalar functions natively; here
// they are emulated server-side so the same SQL text produces identical
// results on both backends. Everything is CREATE OR REPLACE, so
// re-running on an initialized database is harmless.
var scalarFunctionDDL = []string{
	`CREATE OR REPLACE FUNCTION unicode_lower(t text) RETURNS text AS $$
		SELECT lower(t)
	$$ LANGUAGE sql IMMUTABLE`,

	`CREATE OR REPLACE FUNCTION unicode_upper(t text) RETURNS text AS $$
		SELECT upper(t)
	$$ LANGUAGE sql IMMUTABLE`,

	// %/? wildcard semantics: fold to LIKE by mapping ? to _ and
	// escaping any literal _ in the pattern first.
	`CREATE OR REPLACE FUNCTION unicode_like(pattern text, value text) RETURNS boolean AS $$
		SELECT lower(value) LIKE replace(replace(lower(pattern), '_', '\_'), '?', '_') ESCAPE '\'
	$$ LANGUAGE sql IMMUTABLE`,

	`CREATE OR REPLACE FUNCTION regexp(pattern text, value text) RETURNS boolean AS $$
		SELECT value ~ pattern
	$$ LANGUAGE sql IMMUTABLE`,
}

// normaliseDDL depends on the optional unaccent extension.
const (
	unaccentDDL  = `CREATE EXTENSION IF NOT EXISTS unaccent`
	normaliseDDL = `CREATE OR REPLACE FUNCTION normalise(t text) RETURNS text AS $$
		SELECT lower(public.unaccent(t))
	$$ LANGUAGE sql IMMUTABLE`
)

// installScalarFunctions creates the shared scalar functions. The
// required four are hard failures; normalise degrades to a warning when
// the unaccent extension cannot be installed.
func installScalarFunctions(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	for _, ddl := range scalarFunctionDDL {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return nil, fmt.Errorf("creating scalar function: %w", err)
		}
	}

	var warnings []string
	if _, err := pool.Exec(ctx, unaccentDDL); err != nil {
		warnings = append(warnings,
			fmt.Sprintf("unaccent extension unavailable, normalise() not installed: %v", err))
		return warnings, nil
	}
	if _, err := pool.Exec(ctx, normaliseDDL); err != nil {
		warnings = append(warnings,
			fmt.Sprintf("normalise() not installed: %v", err))
	}
	return warnings, nil
}
