package adapter

import (
	"errors"
	"fmt"

	"github.com/ledgerbase/dualdb/pkg/dbcapabilities"
)

// Standard adapter errors
var (
	// ErrNotConnected is returned when a query is issued with no open adapter
	ErrNotConnected = errors.New("database adapter is not connected")

	// ErrConnectionFailed is returned when a connection attempt fails
	ErrConnectionFailed = errors.New("connection failed")

	// ErrConnectionClosed is returned when attempting to use a closed connection
	ErrConnectionClosed = errors.New("connection is closed")

	// ErrInvalidConfiguration is returned when the configuration is invalid
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidBinding is returned when a query parameter has a disallowed type
	ErrInvalidBinding = errors.New("invalid parameter binding")

	// ErrTransactionFailed is returned when a transaction scope fails
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrAdapterNotFound is returned when an adapter is not registered
	ErrAdapterNotFound = errors.New("adapter not found")
)

// ConnectionError is returned when a backend cannot be reached.
type ConnectionError struct {
	DatabaseType dbcapabilities.DatabaseID
	Host         string
	Port         int
	Cause        error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Host == "" {
		return fmt.Sprintf("failed to connect to %s: %v", e.DatabaseType, e.Cause)
	}
	return fmt.Sprintf("failed to connect to %s at %s:%d: %v", e.DatabaseType, e.Host, e.Port, e.Cause)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is ErrConnectionFailed.
func (e *ConnectionError) Is(target error) bool {
	if errors.Is(target, ErrConnectionFailed) {
		return true
	}
	return errors.Is(e.Cause, target)
}

// NewConnectionError creates a new ConnectionError.
func NewConnectionError(dbType dbcapabilities.DatabaseID, host string, port int, cause error) *ConnectionError {
	return &ConnectionError{
		DatabaseType: dbType,
		Host:         host,
		Port:         port,
		Cause:        cause,
	}
}

// ConfigurationError is returned when a configuration value is missing
// or invalid. Fatal at startup, never retried.
type ConfigurationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid configuration: field '%s': %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// Is checks if the error is ErrInvalidConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return errors.Is(target, ErrInvalidConfiguration)
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(field, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}

// BindingError is returned when a query parameter has a type the
// adapter cannot send to either backend. This is local validation; the
// statement never reaches the backend.
type BindingError struct {
	Index int
	Value interface{}
}

// Error implements the error interface.
func (e *BindingError) Error() string {
	return fmt.Sprintf("invalid parameter binding at index %d: %T is not a string, number, bytes or null", e.Index, e.Value)
}

// Is checks if the error is ErrInvalidBinding.
func (e *BindingError) Is(target error) bool {
	return errors.Is(target, ErrInvalidBinding)
}

// NewBindingError creates a new BindingError.
func NewBindingError(index int, value interface{}) *BindingError {
	return &BindingError{Index: index, Value: value}
}

// TransactionError wraps a failure inside a transaction scope. The scope
// has already been rolled back (fully or to its savepoint) when this
// error reaches the caller.
type TransactionError struct {
	DatabaseType dbcapabilities.DatabaseID
	Depth        int
	Cause        error
}

// Error implements the error interface.
func (e *TransactionError) Error() string {
	return fmt.Sprintf("[%s] transaction failed at depth %d: %v", e.DatabaseType, e.Depth, e.Cause)
}

// Unwrap returns the underlying error.
func (e *TransactionError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is ErrTransactionFailed.
func (e *TransactionError) Is(target error) bool {
	if errors.Is(target, ErrTransactionFailed) {
		return true
	}
	return errors.Is(e.Cause, target)
}

// NewTransactionError creates a new TransactionError.
func NewTransactionError(dbType dbcapabilities.DatabaseID, depth int, cause error) *TransactionError {
	return &TransactionError{DatabaseType: dbType, Depth: depth, Cause: cause}
}

// IsConnectionError checks if an error is a connection error.
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrConnectionFailed)
}

// IsConfigurationError checks if an error is a configuration error.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration)
}

// IsBindingError checks if an error is a parameter binding error.
func IsBindingError(err error) bool {
	return errors.Is(err, ErrInvalidBinding)
}
