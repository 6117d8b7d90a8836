package adapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/ledgerbase/dualdb/pkg/dbcapabilities"
)

// Registry manages the registration and retrieval of backend adapters.
type Registry struct {
	adapters map[dbcapabilities.DatabaseID]DatabaseAdapter
	mu       sync.RWMutex
}

// NewRegistry creates a new adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[dbcapabilities.DatabaseID]DatabaseAdapter),
	}
}

// Register registers a backend adapter.
// If an adapter for the same backend is already registered, it is replaced.
func (r *Registry) Register(adapter DatabaseAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Type()] = adapter
}

// Get retrieves a registered adapter by backend ID.
// Returns ErrAdapterNotFound if the adapter is not registered.
func (r *Registry) Get(id dbcapabilities.DatabaseID) (DatabaseAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, exists := r.adapters[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAdapterNotFound, id)
	}
	return adapter, nil
}

// GetByName retrieves a registered adapter by backend name or alias.
func (r *Registry) GetByName(name string) (DatabaseAdapter, error) {
	id, ok := dbcapabilities.ParseID(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown backend '%s'", ErrAdapterNotFound, name)
	}
	return r.Get(id)
}

// IsRegistered checks if an adapter is registered for the given backend.
func (r *Registry) IsRegistered(id dbcapabilities.DatabaseID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.adapters[id]
	return exists
}

// ListRegistered returns all registered backend IDs.
func (r *Registry) ListRegistered() []dbcapabilities.DatabaseID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]dbcapabilities.DatabaseID, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	return ids
}

// Connect creates a new backend connection using the registered adapter.
func (r *Registry) Connect(ctx context.Context, config ConnectionConfig) (Connection, error) {
	id, ok := dbcapabilities.ParseID(config.ConnectionType)
	if !ok {
		return nil, NewConfigurationError("connectionType",
			fmt.Sprintf("unknown backend type: %s", config.ConnectionType))
	}

	adapter, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return adapter.Connect(ctx, config)
}

var globalRegistry = NewRegistry()

// GlobalRegistry returns the process-wide adapter registry. Backend
// packages register themselves into it from their init functions.
func GlobalRegistry() *Registry {
	return globalRegistry
}

// Register registers an adapter with the global registry.
func Register(adapter DatabaseAdapter) {
	globalRegistry.Register(adapter)
}
