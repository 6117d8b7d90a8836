package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerbase/dualdb/pkg/adapter"
	"github.com/ledgerbase/dualdb/pkg/dbcapabilities"
)

func env(m map[string]string) Getenv {
	return func(key string) string { return m[key] }
}

func TestResolve(t *testing.T) {
	t.Run("defaults to embedded", func(t *testing.T) {
		cfg, err := Resolve(env(nil))
		require.NoError(t, err)
		assert.Equal(t, dbcapabilities.SQLite, cfg.AdapterKind)
		assert.Equal(t, DefaultSQLitePath, cfg.SQLitePath)
		assert.True(t, cfg.FallbackEnabled)
		assert.True(t, cfg.HealthCheckEnabled)
	})

	t.Run("feature flag selects networked", func(t *testing.T) {
		cfg, err := Resolve(env(map[string]string{
			EnvUseNetworked: "true",
			EnvPGHost:       "db.internal",
			EnvPGDatabase:   "ledger",
			EnvPGUser:       "ledger",
		}))
		require.NoError(t, err)
		assert.Equal(t, dbcapabilities.PostgreSQL, cfg.AdapterKind)
	})

	t.Run("explicit adapter beats feature flag", func(t *testing.T) {
		cfg, err := Resolve(env(map[string]string{
			EnvAdapter:      "sqlite",
			EnvUseNetworked: "true",
		}))
		require.NoError(t, err)
		assert.Equal(t, dbcapabilities.SQLite, cfg.AdapterKind)
	})

	t.Run("unknown adapter fails", func(t *testing.T) {
		_, err := Resolve(env(map[string]string{EnvAdapter: "mongodb"}))
		assert.Error(t, err)
		assert.True(t, adapter.IsConfigurationError(err))
	})

	t.Run("networked requires connection fields", func(t *testing.T) {
		_, err := Resolve(env(map[string]string{EnvAdapter: "postgres"}))
		assert.Error(t, err)
		assert.True(t, adapter.IsConfigurationError(err))
	})

	t.Run("connection string alone is enough", func(t *testing.T) {
		cfg, err := Resolve(env(map[string]string{
			EnvAdapter:      "postgres",
			EnvPGConnString: "postgres://u:p@h:5432/d",
		}))
		require.NoError(t, err)
		assert.Equal(t, dbcapabilities.PostgreSQL, cfg.AdapterKind)
	})

	t.Run("port range validated", func(t *testing.T) {
		_, err := Resolve(env(map[string]string{
			EnvAdapter:    "postgres",
			EnvPGHost:     "h",
			EnvPGDatabase: "d",
			EnvPGUser:     "u",
			EnvPGPort:     "70000",
		}))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "65535")
	})

	t.Run("pool size validated", func(t *testing.T) {
		_, err := Resolve(env(map[string]string{
			EnvAdapter:    "postgres",
			EnvPGHost:     "h",
			EnvPGDatabase: "d",
			EnvPGUser:     "u",
			EnvPGPoolMin:  "0",
		}))
		assert.Error(t, err)
	})

	t.Run("timeouts below one second rejected", func(t *testing.T) {
		_, err := Resolve(env(map[string]string{
			EnvAdapter:          "postgres",
			EnvPGHost:           "h",
			EnvPGDatabase:       "d",
			EnvPGUser:           "u",
			EnvPGConnectTimeout: "500",
		}))
		assert.Error(t, err)
	})

	t.Run("timeouts parsed as milliseconds", func(t *testing.T) {
		cfg, err := Resolve(env(map[string]string{
			EnvAdapter:          "postgres",
			EnvPGHost:           "h",
			EnvPGDatabase:       "d",
			EnvPGUser:           "u",
			EnvPGConnectTimeout: "2500",
			EnvPGIdleTimeout:    "60000",
		}))
		require.NoError(t, err)
		assert.Equal(t, 2500*time.Millisecond, cfg.Postgres.ConnectTimeout)
		assert.Equal(t, time.Minute, cfg.Postgres.IdleTimeout)
	})

	t.Run("invalid numbers fail at resolve time", func(t *testing.T) {
		_, err := Resolve(env(map[string]string{
			EnvAdapter:    "postgres",
			EnvPGHost:     "h",
			EnvPGDatabase: "d",
			EnvPGUser:     "u",
			EnvPGPort:     "not-a-port",
		}))
		assert.Error(t, err)
		assert.True(t, adapter.IsConfigurationError(err))
	})

	t.Run("embedded config skips networked validation", func(t *testing.T) {
		// Port is garbage-free but pool is invalid; must not matter for sqlite.
		cfg, err := Resolve(env(map[string]string{
			EnvAdapter:   "sqlite",
			EnvPGPoolMin: "3",
			EnvPGPoolMax: "2",
		}))
		require.NoError(t, err)
		assert.Equal(t, dbcapabilities.SQLite, cfg.AdapterKind)
	})
}

func TestConnectionConfig(t *testing.T) {
	cfg, err := Resolve(env(map[string]string{
		EnvAdapter:    "postgres",
		EnvPGHost:     "db.internal",
		EnvPGPort:     "6543",
		EnvPGDatabase: "ledger",
		EnvPGUser:     "ledger",
		EnvPGPassword: "secret",
		EnvPGPoolMax:  "25",
	}))
	require.NoError(t, err)

	pg := cfg.ConnectionConfig(dbcapabilities.PostgreSQL)
	assert.Equal(t, "postgres", pg.ConnectionType)
	assert.Equal(t, "db.internal", pg.Host)
	assert.Equal(t, 6543, pg.Port)
	assert.Equal(t, 25, pg.PoolMaxSize)

	lite := cfg.ConnectionConfig(dbcapabilities.SQLite)
	assert.Equal(t, "sqlite", lite.ConnectionType)
	assert.Equal(t, DefaultSQLitePath, lite.Path)
}
