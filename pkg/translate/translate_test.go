package translate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ledgerbase/dualdb/pkg/adapter"
	"github.com/ledgerbase/dualdb/pkg/dbcapabilities"
)

func TestBindParams(t *testing.T) {
	t.Run("rewrites markers sequentially for postgres", func(t *testing.T) {
		sql, n := BindParams("INSERT INTO accounts (id, name) VALUES (?, ?)", dbcapabilities.PlaceholderDollar)
		assert.Equal(t, "INSERT INTO accounts (id, name) VALUES ($1, $2)", sql)
		assert.Equal(t, 2, n)
	})

	t.Run("leaves sqlite text unchanged", func(t *testing.T) {
		in := "SELECT * FROM accounts WHERE id = ? AND name = ?"
		sql, n := BindParams(in, dbcapabilities.PlaceholderQuestion)
		assert.Equal(t, in, sql)
		assert.Equal(t, 2, n)
	})

	t.Run("ignores markers inside string literals", func(t *testing.T) {
		sql, n := BindParams("SELECT '?' AS lit, name FROM t WHERE id = ?", dbcapabilities.PlaceholderDollar)
		assert.Equal(t, "SELECT '?' AS lit, name FROM t WHERE id = $1", sql)
		assert.Equal(t, 1, n)
	})

	t.Run("ignores markers inside quoted identifiers", func(t *testing.T) {
		sql, n := BindParams(`SELECT "weird?col" FROM t WHERE x = ?`, dbcapabilities.PlaceholderDollar)
		assert.Equal(t, `SELECT "weird?col" FROM t WHERE x = $1`, sql)
		assert.Equal(t, 1, n)
	})

	t.Run("doubled quotes keep the literal open", func(t *testing.T) {
		sql, n := BindParams("SELECT 'it''s a ?' WHERE a = ? AND b = ?", dbcapabilities.PlaceholderDollar)
		assert.Equal(t, "SELECT 'it''s a ?' WHERE a = $1 AND b = $2", sql)
		assert.Equal(t, 2, n)
	})

	t.Run("no markers", func(t *testing.T) {
		sql, n := BindParams("SELECT 1", dbcapabilities.PlaceholderDollar)
		assert.Equal(t, "SELECT 1", sql)
		assert.Equal(t, 0, n)
	})

	t.Run("only marker syntax differs", func(t *testing.T) {
		in := "UPDATE t SET a = ?, note = 'kept ''as-is''' WHERE id = ?"
		out, n := BindParams(in, dbcapabilities.PlaceholderDollar)
		assert.Equal(t, 2, n)
		// Stripping the rewritten markers back down must restore the input.
		restored := strings.Replace(out, "$1", "?", 1)
		restored = strings.Replace(restored, "$2", "?", 1)
		assert.Equal(t, in, restored)
	})
}

func TestVerifyParams(t *testing.T) {
	t.Run("allows strings numbers bytes and nil", func(t *testing.T) {
		err := VerifyParams([]interface{}{"a", 1, int64(2), 3.5, nil, []byte("x"), uint8(7)})
		assert.NoError(t, err)
	})

	t.Run("rejects booleans", func(t *testing.T) {
		err := VerifyParams([]interface{}{"a", true})
		assert.Error(t, err)
		assert.True(t, adapter.IsBindingError(err))
	})

	t.Run("rejects structs and maps", func(t *testing.T) {
		err := VerifyParams([]interface{}{map[string]int{"a": 1}})
		assert.Error(t, err)
		assert.True(t, adapter.IsBindingError(err))

		err = VerifyParams([]interface{}{struct{ A int }{1}})
		assert.Error(t, err)
	})

	t.Run("reports the offending index", func(t *testing.T) {
		err := VerifyParams([]interface{}{1, 2, make(chan int)})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "index 2")
	})
}
