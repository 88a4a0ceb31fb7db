package binding

import (
	"fmt"
	"maps"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/diwise/entity-binder/pkg/binding/errors"
)

// ObjectReference is a pending link from a field to an entity of another
// mapper, collected while converting fields and consumed when references are resolved
type ObjectReference struct {
	Field       string
	Target      string
	Placeholder string
}

// StoreObject binds the flat external representation of an entity to its
// typed form. A StoreObject is owned by a single binding operation and must
// not be shared between goroutines.
type StoreObject[T any] struct {
	representation map[string]string
	references     []ObjectReference

	entity atomic.Pointer[T]
}

// NewStoreObject creates a store object from a flat map of field values. Keys
// are normalized to lower case. If the map contains keys that differ only in
// case, which of the values is kept is undefined.
func NewStoreObject[T any](values map[string]string) *StoreObject[T] {
	so := &StoreObject[T]{
		representation: make(map[string]string, len(values)),
	}

	for k, v := range values {
		so.representation[strings.ToLower(k)] = v
	}

	return so
}

// NewStoreObjectFromValues creates a store object from request parameters,
// keeping the last value of every repeated parameter
func NewStoreObjectFromValues[T any](values url.Values) *StoreObject[T] {
	so := &StoreObject[T]{
		representation: make(map[string]string, len(values)),
	}

	for k, v := range values {
		if len(v) > 0 {
			so.Put(k, v[len(v)-1])
		}
	}

	return so
}

// NewStoreObjectFromEntity creates a store object carrying an already
// materialized entity
func NewStoreObjectFromEntity[T any](e *T) *StoreObject[T] {
	so := &StoreObject[T]{
		representation: map[string]string{},
	}
	so.entity.Store(e)
	return so
}

// Get returns the external value of a field
func (so *StoreObject[T]) Get(field string) (string, bool) {
	v, ok := so.representation[strings.ToLower(field)]
	return v, ok
}

// Has reports whether a field is present, regardless of its value
func (so *StoreObject[T]) Has(field string) bool {
	_, ok := so.representation[strings.ToLower(field)]
	return ok
}

// Put writes the string form of value for a field. An existing value is
// silently replaced.
func (so *StoreObject[T]) Put(field string, value any) *StoreObject[T] {
	so.representation[strings.ToLower(field)] = stringOf(value)
	return so
}

// Entity returns the materialized entity, or an error if the store object
// has not been materialized yet
func (so *StoreObject[T]) Entity() (*T, error) {
	e := so.entity.Load()
	if e == nil {
		return nil, errors.NewNotMaterializedError("entity is not initialized, it must be materialized first")
	}
	return e, nil
}

// IsMaterialized reports whether the store object carries an entity
func (so *StoreObject[T]) IsMaterialized() bool {
	return so.entity.Load() != nil
}

// Representation returns a copy of the flat external representation
func (so *StoreObject[T]) Representation() map[string]string {
	return maps.Clone(so.representation)
}

// References returns the object references collected by the last field pass
func (so *StoreObject[T]) References() []ObjectReference {
	refs := make([]ObjectReference, len(so.references))
	copy(refs, so.references)
	return refs
}

func (so *StoreObject[T]) String() string {
	return fmt.Sprintf("%v", so.representation)
}

func (so *StoreObject[T]) addReference(ref ObjectReference) {
	so.references = append(so.references, ref)
}

func (so *StoreObject[T]) resetReferences() {
	so.references = so.references[:0]
}

func (so *StoreObject[T]) finish(e *T) {
	so.entity.Store(e)
}

func stringOf(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
