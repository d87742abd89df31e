package connector

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrSourceNotFound is returned for a source name that is not connected.
var ErrSourceNotFound = errors.New("source not found")

// Factory is a function that creates a new Connector instance.
type Factory func() Connector

// Registry manages connector factories and the live sources opened with them.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	active    map[string]Connector // keyed by source name
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		active:    make(map[string]Connector),
	}
}

// RegisterDriver registers a connector factory for a driver type.
func (r *Registry) RegisterDriver(driver string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[driver] = factory
}

// Connect creates a new connector for the given driver and connects it. An
// existing source with the same name is replaced and disconnected.
func (r *Registry) Connect(sourceName string, cfg ConnectionConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	factory, ok := r.factories[cfg.Driver]
	if !ok {
		return fmt.Errorf("unsupported driver: %s (available: %v)", cfg.Driver, r.availableDrivers())
	}

	conn := factory()
	if err := conn.Connect(cfg); err != nil {
		return fmt.Errorf("failed to connect source %q: %w", sourceName, err)
	}

	if existing, ok := r.active[sourceName]; ok {
		existing.Disconnect()
	}

	r.active[sourceName] = conn
	return nil
}

// Get returns the connector for a source.
func (r *Registry) Get(sourceName string) (Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.active[sourceName]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrSourceNotFound, sourceName, r.activeSources())
	}
	return conn, nil
}

// Disconnect removes and disconnects a source.
func (r *Registry) Disconnect(sourceName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.active[sourceName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrSourceNotFound, sourceName)
	}

	err := conn.Disconnect()
	delete(r.active, sourceName)
	return err
}

// CloseAll disconnects all sources.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, conn := range r.active {
		conn.Disconnect()
		delete(r.active, name)
	}
}

// ListSources returns the names of connected sources, sorted.
func (r *Registry) ListSources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeSources()
}

// Drivers returns the registered driver names, sorted.
func (r *Registry) Drivers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.availableDrivers()
}

func (r *Registry) availableDrivers() []string {
	drivers := make([]string, 0, len(r.factories))
	for d := range r.factories {
		drivers = append(drivers, d)
	}
	slices.Sort(drivers)
	return drivers
}

func (r *Registry) activeSources() []string {
	names := make([]string, 0, len(r.active))
	for n := range r.active {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
