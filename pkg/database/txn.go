package database

import (
	"context"
	"fmt"

	"github.com/ledgerbase/dualdb/pkg/adapter"
	"github.com/ledgerbase/dualdb/pkg/dbcapabilities"
)

// txContext tracks the ambient transaction. Depth and the savepoint
// stack are manager-wide, not per call stack: only one writer is active
// against the embedded backend at a time, so every re-entrant scope
// joins the same transaction.
type txContext struct {
	depth      int
	savepoints []string
	client     adapter.Client
	kind       dbcapabilities.DatabaseID
}

func (t *txContext) reset() {
	if t.client != nil {
		t.client.Release()
	}
	*t = txContext{}
}

// Transaction runs fn inside a transaction scope.
//
// Depth 0 opens a real transaction on a pinned client. On the networked
// backend, nested scopes become savepoints: a failing inner scope rolls
// back to its savepoint and the outer scope still decides its own fate.
// The embedded backend has no true nesting; inner scopes reuse the
// single ambient transaction, and an inner failure propagates for the
// outer scope to roll back.
//
// Statements issued through the Manager inside fn automatically run on
// the pinned client, so they are strictly ordered.
func (m *Manager) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	scope, err := m.beginScope(ctx)
	if err != nil {
		return err
	}

	fnErr := runScope(ctx, fn)
	return m.endScope(ctx, scope, fnErr)
}

// runScope contains fn's panics so the scope is always settled: a panic
// rolls back like an error instead of leaking an open transaction.
func runScope(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transaction callback panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// txScope is the per-scope bookkeeping beginScope hands to endScope.
type txScope struct {
	savepoint string
	outermost bool
}

func (m *Manager) beginScope(ctx context.Context) (txScope, error) {
	m.mu.Lock()
	if m.state != StateOpen || m.conn == nil {
		err := m.errNotOpen()
		m.mu.Unlock()
		return txScope{}, err
	}
	conn := m.conn
	kind := m.current
	m.mu.Unlock()

	caps := dbcapabilities.MustGet(kind)

	m.txMu.Lock()
	defer m.txMu.Unlock()

	if m.tx.depth == 0 {
		client, err := conn.Acquire(ctx)
		if err != nil {
			return txScope{}, adapter.NewTransactionError(kind, 0, err)
		}
		if _, err := client.Exec(ctx, caps.BeginStatement); err != nil {
			client.Release()
			return txScope{}, adapter.NewTransactionError(kind, 0, err)
		}
		m.tx.client = client
		m.tx.kind = kind
		m.tx.depth = 1
		return txScope{outermost: true}, nil
	}

	// Nested scope.
	if caps.SupportsSavepoints {
		name := fmt.Sprintf("sp%d", m.tx.depth)
		if _, err := m.tx.client.Exec(ctx, "SAVEPOINT "+name); err != nil {
			return txScope{}, adapter.NewTransactionError(kind, m.tx.depth, err)
		}
		m.tx.savepoints = append(m.tx.savepoints, name)
		m.tx.depth++
		return txScope{savepoint: name}, nil
	}

	// Embedded engine: reuse the ambient transaction.
	m.tx.depth++
	return txScope{}, nil
}

func (m *Manager) endScope(ctx context.Context, scope txScope, fnErr error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	if m.tx.depth == 0 {
		// Close() tore the transaction down underneath the scope.
		if fnErr != nil {
			return fnErr
		}
		return adapter.ErrNotConnected
	}

	kind := m.tx.kind
	client := m.tx.client
	m.tx.depth--

	if scope.savepoint != "" && len(m.tx.savepoints) > 0 {
		m.tx.savepoints = m.tx.savepoints[:len(m.tx.savepoints)-1]
	}

	if scope.outermost {
		defer func() {
			client.Release()
			m.tx.client = nil
			m.tx.savepoints = nil
		}()

		if fnErr == nil {
			if _, err := client.Exec(ctx, "COMMIT"); err != nil {
				// A failed commit leaves nothing applied.
				client.Exec(ctx, "ROLLBACK")
				return adapter.NewTransactionError(kind, 0, err)
			}
			return nil
		}
		if _, err := client.Exec(ctx, "ROLLBACK"); err != nil {
			return adapter.NewTransactionError(kind, 0, fmt.Errorf("%v (rollback also failed: %v)", fnErr, err))
		}
		return adapter.NewTransactionError(kind, 0, fnErr)
	}

	// Nested scope.
	if scope.savepoint != "" {
		if fnErr == nil {
			if _, err := client.Exec(ctx, "RELEASE "+scope.savepoint); err != nil {
				return adapter.NewTransactionError(kind, m.tx.depth, err)
			}
			return nil
		}
		if _, err := client.Exec(ctx, "ROLLBACK TO "+scope.savepoint); err != nil {
			return adapter.NewTransactionError(kind, m.tx.depth,
				fmt.Errorf("%v (rollback to %s also failed: %v)", fnErr, scope.savepoint, err))
		}
		return adapter.NewTransactionError(kind, m.tx.depth, fnErr)
	}

	// Embedded nested scope: no partial rollback available, propagate.
	if fnErr != nil {
		return adapter.NewTransactionError(kind, m.tx.depth, fnErr)
	}
	return nil
}

// TransactionDepth reports the ambient transaction depth. Zero means no
// open scope.
func (m *Manager) TransactionDepth() int {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.tx.depth
}
