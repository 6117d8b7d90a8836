// Package database provides the Manager: the single entry point through
// which callers query, transact and switch between the embedded and
// networked storage backends.
package database

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ledgerbase/dualdb/pkg/adapter"
	"github.com/ledgerbase/dualdb/pkg/config"
	"github.com/ledgerbase/dualdb/pkg/dbcapabilities"
	"github.com/ledgerbase/dualdb/pkg/logger"
)

// State is the adapter switcher's lifecycle state.
type State int32

const (
	StateClosed State = iota
	StateOpening
	StateOpen
	StateClosing
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Manager owns the live backend connection and the process-wide adapter
// state. It replaces module-level singletons: construct one with New,
// open it, pass it around, close it.
type Manager struct {
	mu       sync.Mutex
	state    State
	current  dbcapabilities.DatabaseID
	conn     adapter.Connection
	lastErr  error
	cfg      config.Config
	registry *adapter.Registry
	logger   *logger.Logger

	stmts *stmtCache

	// Transaction engine state. One writer is active at a time;
	// re-entrant scopes from any code path join the same ambient
	// transaction.
	txMu sync.Mutex
	tx   txContext

	schemaSQL      string
	requiredTables []string
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger attaches a logger.
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithRegistry overrides the adapter registry (tests use this to inject
// fake backends).
func WithRegistry(r *adapter.Registry) Option {
	return func(m *Manager) { m.registry = r }
}

// WithSchema provides the opaque schema-initialization script applied
// once, on first connect to the networked backend, when none of the
// required tables exist yet.
func WithSchema(script string) Option {
	return func(m *Manager) { m.schemaSQL = script }
}

// WithRequiredTables names the tables that must exist for the backend
// to be considered initialized. Consumed by schema bootstrap and by the
// health monitor's table probe.
func WithRequiredTables(tables ...string) Option {
	return func(m *Manager) { m.requiredTables = tables }
}

// WithStatementCacheSize overrides the translated-statement cache
// capacity.
func WithStatementCacheSize(n int) Option {
	return func(m *Manager) { m.stmts = newStmtCache(n) }
}

// New creates a closed Manager for the given configuration.
func New(cfg config.Config, opts ...Option) *Manager {
	m := &Manager{
		state:    StateClosed,
		current:  cfg.AdapterKind,
		cfg:      cfg,
		registry: adapter.GlobalRegistry(),
		stmts:    newStmtCache(DefaultStatementCacheSize),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) safeLog(level string, format string, args ...interface{}) {
	if m.logger == nil {
		return
	}
	switch level {
	case "info":
		m.logger.Info(format, args...)
	case "warn":
		m.logger.Warn(format, args...)
	case "error":
		m.logger.Error(format, args...)
	case "debug":
		m.logger.Debug(format, args...)
	}
}

// Open connects the target backend. From Closed (or Failed) the manager
// moves through Opening to Open. If the networked backend cannot be
// reached and fallback is enabled, a single hop to the embedded backend
// is attempted; the hop never recurses in the other direction.
func (m *Manager) Open(ctx context.Context, target dbcapabilities.DatabaseID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openLocked(ctx, target)
}

func (m *Manager) openLocked(ctx context.Context, target dbcapabilities.DatabaseID) error {
	switch m.state {
	case StateOpen:
		if m.current == target {
			return nil
		}
		return fmt.Errorf("adapter %s already open; switch instead", m.current)
	case StateOpening, StateClosing:
		return fmt.Errorf("adapter is %s", m.state)
	}

	m.state = StateOpening
	m.safeLog("info", "Opening %s adapter", target)

	conn, err := m.connect(ctx, target)
	if err == nil {
		m.conn = conn
		m.current = target
		m.state = StateOpen
		m.lastErr = nil
		for _, w := range conn.Warnings() {
			m.safeLog("warn", "Adapter warning: %s", w)
		}
		m.safeLog("info", "Adapter %s open", target)
		return nil
	}

	// One fallback hop: networked -> embedded, policy-gated. The
	// original error is kept as lastErr either way.
	if m.cfg.FallbackEnabled && target == dbcapabilities.PostgreSQL && adapter.IsConnectionError(err) {
		m.safeLog("warn", "Networked adapter unreachable, falling back to embedded: %v", err)
		fallbackConn, fbErr := m.connect(ctx, dbcapabilities.SQLite)
		if fbErr == nil {
			m.conn = fallbackConn
			m.current = dbcapabilities.SQLite
			m.state = StateOpen
			m.lastErr = err
			m.safeLog("info", "Fallback to embedded adapter succeeded")
			return nil
		}
		m.safeLog("error", "Fallback to embedded adapter failed: %v", fbErr)
	}

	m.state = StateFailed
	m.lastErr = err
	m.safeLog("error", "Failed to open %s adapter: %v", target, err)
	return err
}

// connect resolves the adapter, opens it, and runs the one-shot schema
// bootstrap where it applies.
func (m *Manager) connect(ctx context.Context, target dbcapabilities.DatabaseID) (adapter.Connection, error) {
	adp, err := m.registry.Get(target)
	if err != nil {
		return nil, err
	}

	conn, err := adp.Connect(ctx, m.cfg.ConnectionConfig(target))
	if err != nil {
		return nil, err
	}

	if err := m.maybeInitSchema(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// maybeInitSchema applies the schema script on first connect to the
// networked backend, keyed on the required tables being absent. The
// script is opaque to this layer.
func (m *Manager) maybeInitSchema(ctx context.Context, conn adapter.Connection) error {
	if m.schemaSQL == "" || conn.Type() != dbcapabilities.PostgreSQL {
		return nil
	}

	tables, err := conn.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("checking schema state: %w", err)
	}
	if m.schemaPresent(tables) {
		return nil
	}

	m.safeLog("info", "Initializing schema on networked backend")
	if _, err := conn.Exec(ctx, m.schemaSQL); err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (m *Manager) schemaPresent(tables []string) bool {
	if len(m.requiredTables) == 0 {
		return len(tables) > 0
	}
	have := make(map[string]bool, len(tables))
	for _, t := range tables {
		have[strings.ToLower(t)] = true
	}
	for _, want := range m.requiredTables {
		if !have[strings.ToLower(want)] {
			return false
		}
	}
	return true
}

// Close tears the current backend down. It always succeeds from the
// switcher's perspective: an error from the underlying close is logged
// and the state is reset regardless. Safe to call repeatedly.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
	return nil
}

func (m *Manager) closeLocked() {
	if m.state == StateClosed {
		return
	}
	m.state = StateClosing

	m.txMu.Lock()
	m.tx.reset()
	m.txMu.Unlock()

	if m.conn != nil {
		if err := m.conn.Close(); err != nil {
			m.safeLog("error", "Error closing %s adapter: %v", m.current, err)
		}
		m.conn = nil
	}

	m.stmts.purge()
	m.state = StateClosed
	m.safeLog("info", "Adapter closed")
}

// Switch closes the current backend and opens the target. A no-op when
// the target is already open. If the new backend fails to open and
// fallback is disabled the previous backend is not restored; the
// manager is left Failed with the error surfaced.
func (m *Manager) Switch(ctx context.Context, target dbcapabilities.DatabaseID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateOpen && m.current == target {
		return nil
	}

	m.safeLog("info", "Switching adapter to %s", target)
	m.closeLocked()
	return m.openLocked(ctx, target)
}

// Adapter returns the backend currently selected. Meaningful while
// Open; after fallback it reports the backend actually serving traffic.
func (m *Manager) Adapter() dbcapabilities.DatabaseID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// State returns the switcher state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Initialized reports whether the manager has a usable backend.
func (m *Manager) Initialized() bool {
	return m.State() == StateOpen
}

// LastError returns the most recent open failure, if any. After a
// successful fallback this is the original connectivity error.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Connection returns the live backend connection, or ErrNotConnected
// when the manager is not open. Health probes use this for direct
// introspection.
func (m *Manager) Connection() (adapter.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateOpen || m.conn == nil {
		return nil, adapter.ErrNotConnected
	}
	return m.conn, nil
}

// StatementCacheLen reports the number of cached statement translations.
func (m *Manager) StatementCacheLen() int {
	return m.stmts.len()
}

// Capabilities returns the active backend's capability metadata.
func (m *Manager) Capabilities() (dbcapabilities.Capability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateOpen || m.conn == nil {
		return dbcapabilities.Capability{}, adapter.ErrNotConnected
	}
	return dbcapabilities.MustGet(m.current), nil
}

// errNotOpen maps internal state to the caller-facing typed error.
func (m *Manager) errNotOpen() error {
	if m.lastErr != nil && m.state == StateFailed {
		return fmt.Errorf("%w: last open failed: %v", adapter.ErrNotConnected, m.lastErr)
	}
	return adapter.ErrNotConnected
}
