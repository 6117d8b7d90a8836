package adapter

import "time"

// ConnectionConfig contains the configuration for a backend connection.
// This is a unified configuration that works across both backends; each
// backend reads the fields relevant to it.
type ConnectionConfig struct {
	// Backend type, e.g. "sqlite", "postgres"
	ConnectionType string `json:"connectionType"`

	// Embedded engine: path to the database file. ":memory:" is accepted
	// for tests.
	Path string `json:"path,omitempty"`

	// Networked engine: either a full connection string or discrete
	// host/port/database/user fields.
	ConnectionString string `json:"connectionString,omitempty"`
	Host             string `json:"host,omitempty"`
	Port             int    `json:"port,omitempty"`
	Username         string `json:"username,omitempty"`
	Password         string `json:"password,omitempty"`
	DatabaseName     string `json:"databaseName,omitempty"`

	// SSL/TLS configuration
	SSL     bool   `json:"ssl,omitempty"`
	SSLMode string `json:"sslMode,omitempty"`

	// Pool sizing (networked engine only)
	PoolMinSize int `json:"poolMinSize,omitempty"`
	PoolMaxSize int `json:"poolMaxSize,omitempty"`

	// Timeouts (networked engine only)
	ConnectTimeout time.Duration `json:"connectTimeout,omitempty"`
	IdleTimeout    time.Duration `json:"idleTimeout,omitempty"`
}
