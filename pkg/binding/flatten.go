package binding

import (
	"github.com/diwise/entity-binder/pkg/binding/mapping"
)

// Flatten writes the external form of every declared field of e into a new
// store object. The key set is always the full set of declared fields.
func Flatten[T any](e *T, d *mapping.Descriptor[T]) *StoreObject[T] {
	so := NewStoreObjectFromEntity(e)

	for _, f := range d.Fields() {
		so.Put(f.Name(), f.External(e))
	}

	return so
}

// FlattenAll flattens a selection of entities, keeping their order
func FlattenAll[T any](selection []*T, d *mapping.Descriptor[T]) []*StoreObject[T] {
	result := make([]*StoreObject[T], 0, len(selection))

	for _, e := range selection {
		result = append(result, Flatten(e, d))
	}

	return result
}
