package typehandlers

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/diwise/entity-binder/pkg/binding/errors"
	"github.com/google/uuid"
)

// Kind names the conversion strategy of a field
type Kind string

const (
	Bool     Kind = "bool"
	DateTime Kind = "datetime"
	Float    Kind = "float"
	Int      Kind = "int"
	Text     Kind = "text"
	TextList Kind = "textlist"
	UUID     Kind = "uuid"
)

// Factory holds the handlers available to mapper descriptors, keyed by kind
type Factory struct {
	mu       sync.RWMutex
	handlers map[Kind]any
}

// NewFactory creates a factory populated with the built in handlers. The bool
// kind is served by a handler that understands html form checkboxes.
func NewFactory() *Factory {
	f := &Factory{handlers: map[Kind]any{}}

	Register[bool](f, Bool, httpBoolHandler{})
	Register[time.Time](f, DateTime, dateTimeHandler{})
	Register[float64](f, Float, floatHandler{})
	Register[int64](f, Int, intHandler{})
	Register[string](f, Text, textHandler{})
	Register[[]string](f, TextList, textListHandler{})
	Register[uuid.UUID](f, UUID, uuidHandler{})

	return f
}

var defaultFactory = NewFactory()

// Default returns the process wide factory
func Default() *Factory {
	return defaultFactory
}

// StrictBool returns a handler that only accepts the values understood by strconv.ParseBool
func StrictBool() Handler[bool] {
	return boolHandler{}
}

// Register adds or replaces the handler for a kind
func Register[V any](f *Factory, kind Kind, h Handler[V]) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.handlers[kind] = h
}

// Lookup finds the handler registered for kind. A missing handler, or a handler
// whose native type differs from V, is a configuration error.
func Lookup[V any](f *Factory, kind Kind) (Handler[V], error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	h, ok := f.handlers[kind]
	if !ok {
		return nil, errors.NewConfigurationError(fmt.Sprintf("no type handler registered for kind %q", kind))
	}

	typed, ok := h.(Handler[V])
	if !ok {
		var v V
		return nil, errors.NewConfigurationError(fmt.Sprintf("type handler for kind %q does not convert into %T", kind, v))
	}

	return typed, nil
}

// Kinds returns the registered kinds in sorted order
func (f *Factory) Kinds() []Kind {
	f.mu.RLock()
	defer f.mu.RUnlock()

	kinds := make([]Kind, 0, len(f.handlers))
	for k := range f.handlers {
		kinds = append(kinds, k)
	}

	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	return kinds
}
