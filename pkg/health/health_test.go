package health

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerbase/dualdb/pkg/adapter"
	"github.com/ledgerbase/dualdb/pkg/dbcapabilities"
)

type fakeConn struct {
	pingErr      error
	version      string
	versionErr   error
	tables       []string
	tablesErr    error
	integrityErr error
}

func (c *fakeConn) ID() string                      { return "fake-1" }
func (c *fakeConn) Type() dbcapabilities.DatabaseID { return dbcapabilities.SQLite }
func (c *fakeConn) IsConnected() bool               { return true }
func (c *fakeConn) Ping(ctx context.Context) error  { return c.pingErr }
func (c *fakeConn) Close() error                    { return nil }
func (c *fakeConn) Query(ctx context.Context, sql string, args ...interface{}) ([]adapter.Row, error) {
	return nil, nil
}
func (c *fakeConn) Exec(ctx context.Context, sql string, args ...interface{}) (adapter.ExecResult, error) {
	return adapter.ExecResult{}, nil
}
func (c *fakeConn) Acquire(ctx context.Context) (adapter.Client, error) {
	return nil, errors.New("not supported")
}
func (c *fakeConn) Version(ctx context.Context) (string, error) { return c.version, c.versionErr }
func (c *fakeConn) ListTables(ctx context.Context) ([]string, error) {
	return c.tables, c.tablesErr
}
func (c *fakeConn) CheckIntegrity(ctx context.Context) error { return c.integrityErr }
func (c *fakeConn) Warnings() []string                       { return nil }
func (c *fakeConn) Config() adapter.ConnectionConfig         { return adapter.ConnectionConfig{} }
func (c *fakeConn) Adapter() adapter.DatabaseAdapter         { return nil }

type fakeSource struct {
	mu         sync.Mutex
	id         dbcapabilities.DatabaseID
	conn       *fakeConn
	connErr    error
	queryErr   error
	queryDelay time.Duration
	clockRows  []adapter.Row
	clockErr   error
}

func (s *fakeSource) Adapter() dbcapabilities.DatabaseID { return s.id }

func (s *fakeSource) Connection() (adapter.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connErr != nil {
		return nil, s.connErr
	}
	return s.conn, nil
}

func (s *fakeSource) All(ctx context.Context, sql string, params ...interface{}) ([]adapter.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.Contains(sql, "messages_clock") {
		return s.clockRows, s.clockErr
	}
	if s.queryDelay > 0 {
		time.Sleep(s.queryDelay)
	}
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return []adapter.Row{{"1": int64(1)}}, nil
}

func (s *fakeSource) setConnErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connErr = err
}

func healthySource() *fakeSource {
	return &fakeSource{
		id: dbcapabilities.SQLite,
		conn: &fakeConn{
			version: "3.45.1",
			tables:  []string{"messages", "messages_clock", "peers"},
		},
		clockRows: []adapter.Row{{"merkle": "abc", "updated_at": int64(1700000000)}},
	}
}

func checkByName(t *testing.T, health DatabaseHealth, name string) CheckResult {
	t.Helper()
	for _, c := range health.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no check named %q", name)
	return CheckResult{}
}

func TestRunOnceHealthy(t *testing.T) {
	m := NewMonitor(healthySource(), WithRequiredTables("messages", "peers"))

	health := m.RunOnce(context.Background())

	assert.Equal(t, Healthy, health.Overall)
	assert.Len(t, health.Checks, 6)
	assert.Equal(t, 6, health.Summary.Passed)
	assert.Equal(t, 0, health.Summary.Warned)
	assert.Equal(t, 0, health.Summary.Failed)
	require.NotNil(t, m.Last())
	assert.Equal(t, Healthy, m.Last().Overall)
}

func TestConnectivityFailureFiresHook(t *testing.T) {
	source := healthySource()
	source.connErr = errors.New("connection refused")

	var hookErr error
	m := NewMonitor(source, WithConnectivityFailureHook(func(ctx context.Context, err error) {
		hookErr = err
	}))

	health := m.RunOnce(context.Background())

	assert.Equal(t, Unhealthy, health.Overall)
	assert.Equal(t, StatusFail, checkByName(t, health, "connectivity").Status)
	require.Error(t, hookErr)
	assert.Contains(t, hookErr.Error(), "connection refused")
}

func TestPingFailureIsUnhealthy(t *testing.T) {
	source := healthySource()
	source.conn.pingErr = errors.New("broken pipe")

	health := NewMonitor(source).RunOnce(context.Background())

	assert.Equal(t, Unhealthy, health.Overall)
	assert.Equal(t, StatusFail, checkByName(t, health, "connectivity").Status)
}

func TestOldVersionDegrades(t *testing.T) {
	source := healthySource()
	source.id = dbcapabilities.PostgreSQL
	source.conn.version = "PostgreSQL 11.4 on x86_64-pc-linux-gnu"

	health := NewMonitor(source).RunOnce(context.Background())

	assert.Equal(t, Degraded, health.Overall)
	version := checkByName(t, health, "version")
	assert.Equal(t, StatusWarn, version.Status)
	assert.Contains(t, version.Message, "below the supported minimum")
}

func TestMissingRequiredTableIsUnhealthy(t *testing.T) {
	m := NewMonitor(healthySource(), WithRequiredTables("messages", "attachments"))

	health := m.RunOnce(context.Background())

	assert.Equal(t, Unhealthy, health.Overall)
	tables := checkByName(t, health, "tables")
	assert.Equal(t, StatusFail, tables.Status)
	assert.Contains(t, tables.Message, "attachments")
}

func TestIntegrityFailureIsUnhealthy(t *testing.T) {
	source := healthySource()
	source.conn.integrityErr = errors.New("database disk image is malformed")

	health := NewMonitor(source).RunOnce(context.Background())

	assert.Equal(t, Unhealthy, health.Overall)
	assert.Equal(t, StatusFail, checkByName(t, health, "integrity").Status)
}

func TestLatencyThresholds(t *testing.T) {
	source := healthySource()
	source.queryDelay = 20 * time.Millisecond

	t.Run("above soft threshold warns", func(t *testing.T) {
		m := NewMonitor(source, WithLatencyThresholds(time.Millisecond, time.Minute))
		health := m.RunOnce(context.Background())
		assert.Equal(t, StatusWarn, checkByName(t, health, "latency").Status)
		assert.Equal(t, Degraded, health.Overall)
	})

	t.Run("above hard threshold fails", func(t *testing.T) {
		m := NewMonitor(source, WithLatencyThresholds(time.Microsecond, time.Millisecond))
		health := m.RunOnce(context.Background())
		assert.Equal(t, StatusFail, checkByName(t, health, "latency").Status)
		assert.Equal(t, Unhealthy, health.Overall)
	})
}

func TestEmptySyncClockDegrades(t *testing.T) {
	source := healthySource()
	source.clockRows = nil

	health := NewMonitor(source).RunOnce(context.Background())

	assert.Equal(t, Degraded, health.Overall)
	assert.Equal(t, StatusWarn, checkByName(t, health, "sync-state").Status)
}

func TestUnreadableSyncClockDegrades(t *testing.T) {
	source := healthySource()
	source.clockErr = errors.New("no such table: messages_clock")

	health := NewMonitor(source).RunOnce(context.Background())

	assert.Equal(t, Degraded, health.Overall)
	clock := checkByName(t, health, "sync-state")
	assert.Equal(t, StatusWarn, clock.Status)
	assert.Contains(t, clock.Message, "not readable")
}

func TestProbePanicContained(t *testing.T) {
	source := healthySource()
	source.conn = nil // Version and friends dereference nil and panic

	health := NewMonitor(source).RunOnce(context.Background())

	assert.Len(t, health.Checks, 6)
	assert.Equal(t, Unhealthy, health.Overall)
	version := checkByName(t, health, "version")
	assert.Equal(t, StatusFail, version.Status)
	assert.Contains(t, version.Message, "panicked")
}

func TestNotifiesOnlyOnTransitions(t *testing.T) {
	source := healthySource()
	m := NewMonitor(source)

	var transitions []Overall
	onChange := func(h DatabaseHealth) { transitions = append(transitions, h.Overall) }

	// healthy, healthy, unhealthy, healthy: two transitions.
	m.tick(context.Background(), onChange)
	m.tick(context.Background(), onChange)
	source.setConnErr(errors.New("connection refused"))
	m.tick(context.Background(), onChange)
	source.setConnErr(nil)
	m.tick(context.Background(), onChange)

	assert.Equal(t, []Overall{Unhealthy, Healthy}, transitions)
}

func TestStartStop(t *testing.T) {
	m := NewMonitor(healthySource())

	var mu sync.Mutex
	ticks := 0
	m.Start(context.Background(), 5*time.Millisecond, func(DatabaseHealth) {
		mu.Lock()
		ticks++
		mu.Unlock()
	})
	time.Sleep(30 * time.Millisecond)
	m.Stop()

	// Stable health never fires the callback, but Last is populated.
	mu.Lock()
	assert.Zero(t, ticks)
	mu.Unlock()
	require.NotNil(t, m.Last())
	assert.Equal(t, Healthy, m.Last().Overall)

	// Stop is safe to call twice.
	m.Stop()
}

func TestHTTPHandler(t *testing.T) {
	source := healthySource()
	handler := NewHandler(NewMonitor(source))
	router := handler.Router()

	t.Run("healthy returns 200", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
		assert.Equal(t, 200, rec.Code)
		assert.Contains(t, rec.Body.String(), `"overall":"healthy"`)
	})

	t.Run("unhealthy returns 503", func(t *testing.T) {
		source.setConnErr(errors.New("connection refused"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
		assert.Equal(t, 503, rec.Code)
		assert.Contains(t, rec.Body.String(), `"overall":"unhealthy"`)
	})

	t.Run("live serves the retained result", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/health/live", nil))
		assert.Equal(t, 503, rec.Code)
	})
}
