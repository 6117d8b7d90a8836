// Package health runs the probe battery against the active backend and
// aggregates the results into a single verdict.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ledgerbase/dualdb/pkg/adapter"
	"github.com/ledgerbase/dualdb/pkg/dbcapabilities"
	"github.com/ledgerbase/dualdb/pkg/logger"
)

// Status is the tri-state outcome of a single probe.
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// Overall is the aggregate verdict for the backend.
type Overall string

const (
	Healthy   Overall = "healthy"
	Degraded  Overall = "degraded"
	Unhealthy Overall = "unhealthy"
)

// CheckResult is the outcome of one probe.
type CheckResult struct {
	Name       string                 `json:"name"`
	Status     Status                 `json:"status"`
	Message    string                 `json:"message"`
	DurationMs int64                  `json:"durationMs"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// Summary counts the probe outcomes.
type Summary struct {
	Passed          int   `json:"passed"`
	Warned          int   `json:"warned"`
	Failed          int   `json:"failed"`
	TotalDurationMs int64 `json:"totalDurationMs"`
}

// DatabaseHealth is the aggregate produced by each monitoring pass.
// Overall is unhealthy if any probe failed, degraded if none failed but
// at least one warned, healthy otherwise.
type DatabaseHealth struct {
	Adapter   dbcapabilities.DatabaseID `json:"adapter"`
	Overall   Overall                   `json:"overall"`
	Checks    []CheckResult             `json:"checks"`
	Summary   Summary                   `json:"summary"`
	Timestamp time.Time                 `json:"timestamp"`
}

// Source is the monitor's view of the database manager. Probes use the
// raw connection for introspection and the ordinary query plane for
// representative traffic.
type Source interface {
	Adapter() dbcapabilities.DatabaseID
	Connection() (adapter.Connection, error)
	All(ctx context.Context, sql string, params ...interface{}) ([]adapter.Row, error)
}

// Default latency thresholds: above the soft threshold the probe warns,
// above the hard threshold it fails.
const (
	DefaultLatencyWarn = 5 * time.Second
	DefaultLatencyFail = 10 * time.Second
)

// Minimum backend versions before the compatibility probe warns.
var minMajorVersion = map[dbcapabilities.DatabaseID]int{
	dbcapabilities.SQLite:     3,
	dbcapabilities.PostgreSQL: 12,
}

// Monitor runs the probe battery, on demand or on a timer, and notifies
// a callback only when the overall verdict changes.
type Monitor struct {
	source Source
	logger *logger.Logger

	requiredTables []string
	latencyWarn    time.Duration
	latencyFail    time.Duration
	latencyQuery   string
	clockTable     string

	// Invoked when the connectivity probe fails, so the caller can wire
	// automatic failover. Degraded health never triggers it.
	onConnectivityFailure func(ctx context.Context, err error)

	mu       sync.Mutex
	last     *DatabaseHealth
	lastSeen Overall
	seeded   bool
	stop     chan struct{}
	done     chan struct{}
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithLogger attaches a logger.
func WithLogger(l *logger.Logger) MonitorOption {
	return func(m *Monitor) { m.logger = l }
}

// WithRequiredTables names the tables the schema probe demands.
func WithRequiredTables(tables ...string) MonitorOption {
	return func(m *Monitor) { m.requiredTables = tables }
}

// WithLatencyThresholds overrides the soft and hard latency thresholds.
func WithLatencyThresholds(warn, fail time.Duration) MonitorOption {
	return func(m *Monitor) { m.latencyWarn, m.latencyFail = warn, fail }
}

// WithConnectivityFailureHook registers the failover hook.
func WithConnectivityFailureHook(fn func(ctx context.Context, err error)) MonitorOption {
	return func(m *Monitor) { m.onConnectivityFailure = fn }
}

// NewMonitor creates a Monitor over the given source.
func NewMonitor(source Source, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		source:       source,
		latencyWarn:  DefaultLatencyWarn,
		latencyFail:  DefaultLatencyFail,
		latencyQuery: "SELECT 1",
		clockTable:   "messages_clock",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RunOnce executes the full probe battery in order. A probe can warn or
// fail but never abort the batch: errors and panics inside a probe are
// converted into that probe's fail result.
func (m *Monitor) RunOnce(ctx context.Context) DatabaseHealth {
	probes := []struct {
		name string
		run  func(context.Context) CheckResult
	}{
		{"connectivity", m.probeConnectivity},
		{"version", m.probeVersion},
		{"tables", m.probeTables},
		{"integrity", m.probeIntegrity},
		{"latency", m.probeLatency},
		{"sync-state", m.probeSyncState},
	}

	health := DatabaseHealth{
		Adapter:   m.source.Adapter(),
		Timestamp: time.Now(),
	}

	for _, p := range probes {
		result := m.runProbe(ctx, p.name, p.run)
		health.Checks = append(health.Checks, result)
		health.Summary.TotalDurationMs += result.DurationMs
		switch result.Status {
		case StatusPass:
			health.Summary.Passed++
		case StatusWarn:
			health.Summary.Warned++
		case StatusFail:
			health.Summary.Failed++
		}
	}

	switch {
	case health.Summary.Failed > 0:
		health.Overall = Unhealthy
	case health.Summary.Warned > 0:
		health.Overall = Degraded
	default:
		health.Overall = Healthy
	}

	m.mu.Lock()
	m.last = &health
	m.mu.Unlock()

	return health
}

// runProbe times a probe and contains its failures.
func (m *Monitor) runProbe(ctx context.Context, name string, probe func(context.Context) CheckResult) (result CheckResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = CheckResult{
				Name:    name,
				Status:  StatusFail,
				Message: fmt.Sprintf("probe panicked: %v", r),
			}
		}
		result.Name = name
		result.DurationMs = time.Since(start).Milliseconds()
	}()
	return probe(ctx)
}

// Last returns the most recent health result, or nil before the first
// pass.
func (m *Monitor) Last() *DatabaseHealth {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return nil
	}
	cp := *m.last
	return &cp
}

// Start runs the battery immediately and then on a fixed interval,
// invoking onChange only when the overall verdict differs from the
// previous pass. Stop ends the loop; Start after Stop is allowed.
func (m *Monitor) Start(ctx context.Context, interval time.Duration, onChange func(DatabaseHealth)) {
	m.mu.Lock()
	if m.stop != nil {
		m.mu.Unlock()
		return // already running
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	m.stop = stop
	m.done = done
	m.seeded = false
	m.mu.Unlock()

	go func() {
		defer close(done)

		m.tick(ctx, onChange)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				m.tick(ctx, onChange)
			}
		}
	}()
}

// Stop halts the monitoring loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

func (m *Monitor) tick(ctx context.Context, onChange func(DatabaseHealth)) {
	health := m.RunOnce(ctx)

	m.mu.Lock()
	changed := m.seeded && health.Overall != m.lastSeen
	m.lastSeen = health.Overall
	m.seeded = true
	m.mu.Unlock()

	if changed {
		if m.logger != nil {
			m.logger.Warn("Database health changed to %s", health.Overall)
		}
		if onChange != nil {
			onChange(health)
		}
	}
}
