package database

import (
	"context"

	"github.com/ledgerbase/dualdb/pkg/adapter"
	"github.com/ledgerbase/dualdb/pkg/dbcapabilities"
	"github.com/ledgerbase/dualdb/pkg/translate"
)

// executor is either a pooled connection or a pinned transaction client.
type executor interface {
	Query(ctx context.Context, sql string, args ...interface{}) ([]adapter.Row, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (adapter.ExecResult, error)
}

// RunQuery is the universal entry point: the same SQL text with `?`
// markers runs on whichever backend is active. With fetchAll the rows
// are returned; otherwise the exec result is.
//
// Fails fast with ErrNotConnected before translation when no adapter is
// open, and with a BindingError before the statement is sent when a
// parameter has a disallowed type.
func (m *Manager) RunQuery(ctx context.Context, sqlText string, params []interface{}, fetchAll bool) ([]adapter.Row, adapter.ExecResult, error) {
	exec, translated, err := m.prepare(sqlText, params)
	if err != nil {
		return nil, adapter.ExecResult{}, err
	}

	if fetchAll {
		rows, err := exec.Query(ctx, translated, params...)
		return rows, adapter.ExecResult{}, err
	}
	res, err := exec.Exec(ctx, translated, params...)
	return nil, res, err
}

// All runs a query and returns every row.
func (m *Manager) All(ctx context.Context, sqlText string, params ...interface{}) ([]adapter.Row, error) {
	rows, _, err := m.RunQuery(ctx, sqlText, params, true)
	return rows, err
}

// First runs a query and returns the first row, or nil when the result
// is empty.
func (m *Manager) First(ctx context.Context, sqlText string, params ...interface{}) (adapter.Row, error) {
	rows, err := m.All(ctx, sqlText, params...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Run executes a statement and reports affected rows plus the insert id
// where the backend provides one.
func (m *Manager) Run(ctx context.Context, sqlText string, params ...interface{}) (adapter.ExecResult, error) {
	_, res, err := m.RunQuery(ctx, sqlText, params, false)
	return res, err
}

// prepare validates state and parameters, translates the SQL through
// the statement cache, and picks the executor: the pinned transaction
// client when a scope is open, the pooled connection otherwise.
func (m *Manager) prepare(sqlText string, params []interface{}) (executor, string, error) {
	m.mu.Lock()
	if m.state != StateOpen || m.conn == nil {
		err := m.errNotOpen()
		m.mu.Unlock()
		return nil, "", err
	}
	conn := m.conn
	kind := m.current
	m.mu.Unlock()

	if err := translate.VerifyParams(params); err != nil {
		return nil, "", err
	}

	translated := m.translate(kind, sqlText)

	m.txMu.Lock()
	client := m.tx.client
	active := m.tx.depth > 0
	m.txMu.Unlock()

	if active && client != nil {
		return client, translated, nil
	}
	return conn, translated, nil
}

// translate resolves the backend-specific SQL text through the bounded
// cache.
func (m *Manager) translate(kind dbcapabilities.DatabaseID, sqlText string) string {
	if stmt, ok := m.stmts.get(kind, sqlText); ok {
		return stmt.SQL
	}
	style := dbcapabilities.MustGet(kind).Placeholders
	rewritten, count := translate.BindParams(sqlText, style)
	m.stmts.put(kind, sqlText, translatedStmt{SQL: rewritten, ParamCount: count})
	return rewritten
}
