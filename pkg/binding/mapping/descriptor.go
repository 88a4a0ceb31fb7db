package mapping

import (
	"fmt"
	"strings"

	"github.com/diwise/entity-binder/pkg/binding/errors"
	"github.com/diwise/entity-binder/pkg/binding/typehandlers"
)

// Descriptor is the immutable metadata of a mapped entity type. It is safe
// for concurrent use once built.
type Descriptor[T any] struct {
	name    string
	fields  []Field[T]
	byName  map[string]int
	idField int
	newT    func() *T
}

// New builds the descriptor of the mapper called name. Every field is bound to
// its type handler from handlers, or from the default factory if handlers is nil.
// Exactly one of the fields must be declared as Identifier.
func New[T any](name string, handlers *typehandlers.Factory, newT func() *T, specs ...FieldSpec[T]) (*Descriptor[T], error) {
	if name == "" {
		return nil, errors.NewConfigurationError("mapper name must not be empty")
	}

	if newT == nil {
		return nil, errors.NewConfigurationError(fmt.Sprintf("mapper %s: missing instance factory", name))
	}

	if handlers == nil {
		handlers = typehandlers.Default()
	}

	d := &Descriptor[T]{
		name:    name,
		fields:  make([]Field[T], 0, len(specs)),
		byName:  make(map[string]int, len(specs)),
		idField: -1,
		newT:    newT,
	}

	for _, spec := range specs {
		f, err := spec(handlers)
		if err != nil {
			return nil, fmt.Errorf("mapper %s: %w", name, err)
		}

		key := strings.ToLower(f.Name())
		if key == "" {
			return nil, errors.NewConfigurationError(fmt.Sprintf("mapper %s: field name must not be empty", name))
		}

		if _, exists := d.byName[key]; exists {
			return nil, errors.NewConfigurationError(fmt.Sprintf("mapper %s: duplicate field %s", name, f.Name()))
		}

		if f.IsIdentifier() {
			if d.idField >= 0 {
				return nil, errors.NewConfigurationError(fmt.Sprintf("mapper %s: more than one identifier field", name))
			}
			d.idField = len(d.fields)
		}

		d.byName[key] = len(d.fields)
		d.fields = append(d.fields, f)
	}

	if d.idField < 0 {
		return nil, errors.NewConfigurationError(fmt.Sprintf("mapper %s: no identifier field declared", name))
	}

	return d, nil
}

// MustNew is like New but panics if the descriptor can not be built
func MustNew[T any](name string, handlers *typehandlers.Factory, newT func() *T, specs ...FieldSpec[T]) *Descriptor[T] {
	d, err := New(name, handlers, newT, specs...)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Descriptor[T]) Name() string {
	return d.name
}

// FieldNames returns the declared field names in declaration order
func (d *Descriptor[T]) FieldNames() []string {
	names := make([]string, 0, len(d.fields))
	for _, f := range d.fields {
		names = append(names, f.Name())
	}
	return names
}

// Fields returns the declared fields in declaration order
func (d *Descriptor[T]) Fields() []Field[T] {
	fields := make([]Field[T], len(d.fields))
	copy(fields, d.fields)
	return fields
}

// Field looks up a field by its case insensitive name
func (d *Descriptor[T]) Field(name string) (Field[T], bool) {
	idx, ok := d.byName[strings.ToLower(name)]
	if !ok {
		return Field[T]{}, false
	}
	return d.fields[idx], true
}

// MustField looks up a field and panics if the name is unknown, as referring to
// an undeclared field is a programming error
func (d *Descriptor[T]) MustField(name string) Field[T] {
	f, ok := d.Field(name)
	if !ok {
		panic(fmt.Sprintf("mapper %s has no field named %s", d.name, name))
	}
	return f
}

func (d *Descriptor[T]) IDField() Field[T] {
	return d.fields[d.idField]
}

// IdentifierOf returns the external form of the identifier of e
func (d *Descriptor[T]) IdentifierOf(e *T) string {
	return d.fields[d.idField].External(e)
}

// NewBlankInstance creates a new instance using the factory of the mapper
func (d *Descriptor[T]) NewBlankInstance() *T {
	return d.newT()
}
