package health

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// probeConnectivity verifies the backend answers a ping. A failure here
// also fires the connectivity-failure hook.
func (m *Monitor) probeConnectivity(ctx context.Context) CheckResult {
	conn, err := m.source.Connection()
	if err != nil {
		return m.connectivityFailure(ctx, err)
	}
	if err := conn.Ping(ctx); err != nil {
		return m.connectivityFailure(ctx, err)
	}
	return CheckResult{
		Status:  StatusPass,
		Message: "backend reachable",
		Details: map[string]interface{}{"connectionId": conn.ID()},
	}
}

func (m *Monitor) connectivityFailure(ctx context.Context, err error) CheckResult {
	if m.logger != nil {
		m.logger.Error("Connectivity probe failed: %v", err)
	}
	if m.onConnectivityFailure != nil {
		m.onConnectivityFailure(ctx, err)
	}
	return CheckResult{
		Status:  StatusFail,
		Message: fmt.Sprintf("backend unreachable: %v", err),
	}
}

// probeVersion reports the server version and warns when it is older
// than the minimum this adapter set is exercised against.
func (m *Monitor) probeVersion(ctx context.Context) CheckResult {
	conn, err := m.source.Connection()
	if err != nil {
		return CheckResult{Status: StatusFail, Message: err.Error()}
	}
	version, err := conn.Version(ctx)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("version query failed: %v", err),
		}
	}
	details := map[string]interface{}{"version": version}
	min, known := minMajorVersion[m.source.Adapter()]
	if !known {
		return CheckResult{Status: StatusPass, Message: version, Details: details}
	}
	major, ok := parseMajor(version)
	if !ok {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("unrecognized version string %q", version),
			Details: details,
		}
	}
	if major < min {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("server version %s is below the supported minimum %d", version, min),
			Details: details,
		}
	}
	return CheckResult{Status: StatusPass, Message: version, Details: details}
}

// parseMajor extracts the leading major version number from strings
// like "3.45.1" or "PostgreSQL 16.2 on x86_64".
func parseMajor(version string) (int, bool) {
	for _, field := range strings.Fields(version) {
		head := field
		if i := strings.IndexByte(head, '.'); i >= 0 {
			head = head[:i]
		}
		if n, err := strconv.Atoi(head); err == nil {
			return n, true
		}
	}
	return 0, false
}

// probeTables checks that every required table exists.
func (m *Monitor) probeTables(ctx context.Context) CheckResult {
	if len(m.requiredTables) == 0 {
		return CheckResult{Status: StatusPass, Message: "no required tables configured"}
	}
	conn, err := m.source.Connection()
	if err != nil {
		return CheckResult{Status: StatusFail, Message: err.Error()}
	}
	tables, err := conn.ListTables(ctx)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("table listing failed: %v", err),
		}
	}
	present := make(map[string]bool, len(tables))
	for _, t := range tables {
		present[t] = true
	}
	var missing []string
	for _, t := range m.requiredTables {
		if !present[t] {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("missing tables: %s", strings.Join(missing, ", ")),
			Details: map[string]interface{}{"missing": missing},
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("all %d required tables present", len(m.requiredTables)),
	}
}

// probeIntegrity runs the backend's structural integrity check.
func (m *Monitor) probeIntegrity(ctx context.Context) CheckResult {
	conn, err := m.source.Connection()
	if err != nil {
		return CheckResult{Status: StatusFail, Message: err.Error()}
	}
	if err := conn.CheckIntegrity(ctx); err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("integrity check failed: %v", err),
		}
	}
	return CheckResult{Status: StatusPass, Message: "integrity check clean"}
}

// probeLatency times a trivial query through the ordinary query plane.
func (m *Monitor) probeLatency(ctx context.Context) CheckResult {
	start := time.Now()
	_, err := m.source.All(ctx, m.latencyQuery)
	elapsed := time.Since(start)
	details := map[string]interface{}{"observedMs": elapsed.Milliseconds()}
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("latency query failed: %v", err),
		}
	}
	switch {
	case elapsed > m.latencyFail:
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("query latency %s exceeds %s", elapsed, m.latencyFail),
			Details: details,
		}
	case elapsed > m.latencyWarn:
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("query latency %s exceeds %s", elapsed, m.latencyWarn),
			Details: details,
		}
	}
	return CheckResult{Status: StatusPass, Message: "latency within bounds", Details: details}
}

// probeSyncState reads the synchronization clock table. An unreadable
// or empty clock degrades health but never makes it unhealthy, since a
// fresh node legitimately has no clock yet.
func (m *Monitor) probeSyncState(ctx context.Context) CheckResult {
	rows, err := m.source.All(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 1", m.clockTable))
	if err != nil {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("sync clock not readable: %v", err),
		}
	}
	if len(rows) == 0 {
		return CheckResult{Status: StatusWarn, Message: "sync clock not initialized"}
	}
	return CheckResult{Status: StatusPass, Message: "sync clock present"}
}
