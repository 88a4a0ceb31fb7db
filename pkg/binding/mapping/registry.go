package mapping

import (
	"fmt"
	"sort"
	"sync"

	"github.com/diwise/entity-binder/pkg/binding/errors"
)

type registration struct {
	once  sync.Once
	build func() (any, error)

	descriptor any
	err        error
}

// Registry holds the descriptors of all mappers, keyed by mapper name. A
// descriptor is built the first time it is looked up and is never rebuilt.
type Registry struct {
	mu            sync.RWMutex
	registrations map[string]*registration
}

func NewRegistry() *Registry {
	return &Registry{
		registrations: map[string]*registration{},
	}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process wide registry
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds a lazily built descriptor to the registry. Registering the same
// name twice is a configuration error.
func Register[T any](r *Registry, name string, build func() (*Descriptor[T], error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.registrations[name]; exists {
		return errors.NewConfigurationError(fmt.Sprintf("mapper %s is already registered", name))
	}

	r.registrations[name] = &registration{
		build: func() (any, error) {
			d, err := build()
			if err != nil {
				return nil, err
			}
			if d.Name() != name {
				return nil, errors.NewConfigurationError(fmt.Sprintf("mapper registered as %s is named %s", name, d.Name()))
			}
			return d, nil
		},
	}

	return nil
}

// Lookup returns the descriptor registered under name, building it on first use
func Lookup[T any](r *Registry, name string) (*Descriptor[T], error) {
	d, err := r.descriptor(name)
	if err != nil {
		return nil, err
	}

	typed, ok := d.(*Descriptor[T])
	if !ok {
		var expected *Descriptor[T]
		return nil, errors.NewConfigurationError(fmt.Sprintf("mapper %s is a %T, not a %T", name, d, expected))
	}

	return typed, nil
}

// Has reports whether a mapper with the given name has been registered
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.registrations[name]
	return ok
}

// Names returns the names of all registered mappers in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.registrations))
	for name := range r.registrations {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func (r *Registry) descriptor(name string) (any, error) {
	r.mu.RLock()
	reg, ok := r.registrations[name]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.NewConfigurationError(fmt.Sprintf("no mapper registered with name %s", name))
	}

	reg.once.Do(func() {
		reg.descriptor, reg.err = reg.build()
	})

	return reg.descriptor, reg.err
}
