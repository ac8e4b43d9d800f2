package driver

import (
	"context"
	"sync"

	"github.com/LabPy/lantz-core/errors"
	"github.com/LabPy/lantz-core/logger"
)

// Driver is the lifecycle interface all instrument drivers implement.
type Driver interface {
	// Initialize opens the connection to the instrument.
	Initialize(ctx context.Context) error
	// Finalize closes the connection.
	Finalize() error
	// Connected reports whether commands can currently be sent.
	Connected() bool
}

// Registry hands out one driver instance per canonical resource name, so
// two parts of a program talking to the same instrument share the
// connection, the lock and the cache.
type Registry struct {
	mu      sync.Mutex
	drivers map[string]Driver
}

// NewRegistry builds an empty driver registry.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Driver)}
}

// defaultRegistry is the process-wide registry used by Open and Release.
var defaultRegistry = NewRegistry()

// Open returns the driver registered under id, building and registering
// one with build on first use. The returned bool is true when an existing
// instance was reused; in that case build is not called and any
// construction parameters it would have applied are ignored.
func (r *Registry) Open(id string, build func() (Driver, error)) (Driver, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.drivers[id]; ok {
		logger.Debugw("reusing driver", "resource", id)
		return d, true, nil
	}

	d, err := build()
	if err != nil {
		return nil, false, errors.Wrapf(err, "building driver for %s", id)
	}
	r.drivers[id] = d
	return d, false, nil
}

// Release drops the driver registered under id, returning it so the
// caller can finalize the connection. Releasing an unknown id is a no-op.
func (r *Registry) Release(id string) Driver {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.drivers[id]
	if !ok {
		return nil
	}
	delete(r.drivers, id)
	return d
}

// Registered returns the ids of the registered drivers.
func (r *Registry) Registered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.drivers))
	for id := range r.drivers {
		ids = append(ids, id)
	}
	return ids
}

// Open returns the driver for id from the process registry, building one
// on first use.
func Open(id string, build func() (Driver, error)) (Driver, bool, error) {
	return defaultRegistry.Open(id, build)
}

// Release drops the driver for id from the process registry.
func Release(id string) Driver {
	return defaultRegistry.Release(id)
}
