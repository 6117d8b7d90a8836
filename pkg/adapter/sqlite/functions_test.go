package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerbase/dualdb/pkg/adapter"
	"github.com/ledgerbase/dualdb/pkg/dbcapabilities"
)

func openTestConnection(t *testing.T) adapter.Connection {
	t.Helper()
	conn, err := NewAdapter().Connect(context.Background(), adapter.ConnectionConfig{
		ConnectionType: string(dbcapabilities.SQLite),
		Path:           ":memory:",
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func scalarString(t *testing.T, conn adapter.Connection, query string, args ...interface{}) interface{} {
	t.Helper()
	rows, err := conn.Query(context.Background(), query, args...)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	for _, v := range rows[0] {
		return v
	}
	return nil
}

func TestScalarFunctions(t *testing.T) {
	conn := openTestConnection(t)

	t.Run("unicode case folding", func(t *testing.T) {
		assert.Equal(t, "straße", scalarString(t, conn, "SELECT unicode_lower('STRAßE') AS v"))
		assert.Equal(t, "ÉCOLE", scalarString(t, conn, "SELECT unicode_upper('école') AS v"))
	})

	t.Run("wildcard match", func(t *testing.T) {
		assert.Equal(t, int64(1), scalarString(t, conn, "SELECT unicode_like('gro%', 'Groceries') AS v"))
		assert.Equal(t, int64(1), scalarString(t, conn, "SELECT unicode_like('r?nt', 'Rent') AS v"))
		assert.Equal(t, int64(0), scalarString(t, conn, "SELECT unicode_like('r?nt', 'Rents') AS v"))
	})

	t.Run("regexp operator", func(t *testing.T) {
		assert.Equal(t, int64(1), scalarString(t, conn, "SELECT 'transfer-123' REGEXP '^transfer-[0-9]+$' AS v"))
		assert.Equal(t, int64(0), scalarString(t, conn, "SELECT 'deposit' REGEXP '^transfer-' AS v"))
	})

	t.Run("diacritic-insensitive normalization", func(t *testing.T) {
		assert.Equal(t, "creme brulee", scalarString(t, conn, "SELECT normalise('Crème Brûlée') AS v"))
	})

	t.Run("null propagation", func(t *testing.T) {
		assert.Nil(t, scalarString(t, conn, "SELECT unicode_lower(NULL) AS v"))
		assert.Nil(t, scalarString(t, conn, "SELECT unicode_like(NULL, 'x') AS v"))
	})
}

func TestNormalise(t *testing.T) {
	assert.Equal(t, "uber", Normalise("Über"))
	assert.Equal(t, "cafe", Normalise("Café"))
	assert.Equal(t, "plain", Normalise("plain"))
}

func TestConnectionLifecycle(t *testing.T) {
	t.Run("basic exec and query", func(t *testing.T) {
		conn := openTestConnection(t)
		ctx := context.Background()

		_, err := conn.Exec(ctx, "CREATE TABLE accounts (id TEXT PRIMARY KEY, name TEXT)")
		require.NoError(t, err)

		res, err := conn.Exec(ctx, "INSERT INTO accounts (id, name) VALUES (?, ?)", "a1", "Checking")
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.Changes)

		rows, err := conn.Query(ctx, "SELECT id, name FROM accounts WHERE id = ?", "a1")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "a1", rows[0]["id"])
		assert.Equal(t, "Checking", rows[0]["name"])
	})

	t.Run("close is idempotent", func(t *testing.T) {
		conn := openTestConnection(t)
		assert.NoError(t, conn.Close())
		assert.NoError(t, conn.Close())
		assert.False(t, conn.IsConnected())
	})

	t.Run("queries after close fail", func(t *testing.T) {
		conn := openTestConnection(t)
		require.NoError(t, conn.Close())
		_, err := conn.Query(context.Background(), "SELECT 1")
		assert.ErrorIs(t, err, adapter.ErrConnectionClosed)
	})

	t.Run("missing path is a configuration error", func(t *testing.T) {
		_, err := NewAdapter().Connect(context.Background(), adapter.ConnectionConfig{})
		assert.Error(t, err)
		assert.True(t, adapter.IsConfigurationError(err))
	})

	t.Run("introspection", func(t *testing.T) {
		conn := openTestConnection(t)
		ctx := context.Background()

		_, err := conn.Exec(ctx, "CREATE TABLE t1 (id INTEGER)")
		require.NoError(t, err)

		version, err := conn.Version(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, version)

		tables, err := conn.ListTables(ctx)
		require.NoError(t, err)
		assert.Contains(t, tables, "t1")

		assert.NoError(t, conn.CheckIntegrity(ctx))
	})
}
