package mapping

import (
	"context"
	"fmt"

	"github.com/diwise/entity-binder/pkg/binding/errors"
	"github.com/diwise/entity-binder/pkg/binding/typehandlers"
)

// ReferenceResolver turns a placeholder, typically a foreign key, into a
// materialized entity of the target mapper
type ReferenceResolver interface {
	ResolveReference(ctx context.Context, target, placeholder string) (any, error)
}

// Apply writes an already converted value into an entity
type Apply[T any] func(e *T)

// Field describes how a single named field of T is converted to and from its
// external representation
type Field[T any] struct {
	name       string
	identifier bool
	target     string

	convert  func(ctx context.Context, external string) (Apply[T], error)
	resolve  func(ctx context.Context, resolver ReferenceResolver, placeholder string) (Apply[T], error)
	external func(e *T) string
}

func (f Field[T]) Name() string {
	return f.name
}

func (f Field[T]) IsIdentifier() bool {
	return f.identifier
}

// IsReference reports whether values of this field are placeholders for
// entities of another mapper
func (f Field[T]) IsReference() bool {
	return f.target != ""
}

// Target returns the name of the mapper a reference field points to
func (f Field[T]) Target() string {
	return f.target
}

// Convert converts an external value into a function that assigns the native
// value. Conversion failures are reported as a ConversionError.
func (f Field[T]) Convert(ctx context.Context, external string) (Apply[T], error) {
	if f.IsReference() {
		return nil, errors.NewConfigurationError(fmt.Sprintf("field %s is a reference and can not be converted directly", f.name))
	}

	apply, err := f.convert(ctx, external)
	if err != nil {
		return nil, errors.NewConversionError(f.name, external, err)
	}

	return apply, nil
}

// Resolve resolves a placeholder of a reference field. Failures are reported
// as a ReferenceResolutionError.
func (f Field[T]) Resolve(ctx context.Context, resolver ReferenceResolver, placeholder string) (Apply[T], error) {
	if !f.IsReference() {
		return nil, errors.NewConfigurationError(fmt.Sprintf("field %s is not a reference", f.name))
	}

	apply, err := f.resolve(ctx, resolver, placeholder)
	if err != nil {
		return nil, errors.NewReferenceResolutionError(f.name, f.target, placeholder, err)
	}

	return apply, nil
}

// External returns the external string form of the field's value in e
func (f Field[T]) External(e *T) string {
	return f.external(e)
}

// FieldSpec declares a field. It is bound to its type handler when the
// descriptor is built.
type FieldSpec[T any] func(handlers *typehandlers.Factory) (Field[T], error)

// Scalar declares a field whose value is converted by the handler registered for kind
func Scalar[T, V any](name string, kind typehandlers.Kind, get func(*T) V, set func(*T, V)) FieldSpec[T] {
	return func(handlers *typehandlers.Factory) (Field[T], error) {
		h, err := typehandlers.Lookup[V](handlers, kind)
		if err != nil {
			return Field[T]{}, fmt.Errorf("field %s: %w", name, err)
		}

		return Field[T]{
			name: name,
			convert: func(ctx context.Context, external string) (Apply[T], error) {
				v, err := h.ToNative(ctx, external)
				if err != nil {
					return nil, err
				}
				return func(e *T) { set(e, v) }, nil
			},
			external: func(e *T) string {
				return h.ToExternal(get(e))
			},
		}, nil
	}
}

// Custom declares a scalar field converted by an explicit handler instead of one
// looked up from the factory
func Custom[T, V any](name string, h typehandlers.Handler[V], get func(*T) V, set func(*T, V)) FieldSpec[T] {
	return func(*typehandlers.Factory) (Field[T], error) {
		if h == nil {
			return Field[T]{}, errors.NewConfigurationError(fmt.Sprintf("field %s: missing type handler", name))
		}

		return Field[T]{
			name: name,
			convert: func(ctx context.Context, external string) (Apply[T], error) {
				v, err := h.ToNative(ctx, external)
				if err != nil {
					return nil, err
				}
				return func(e *T) { set(e, v) }, nil
			},
			external: func(e *T) string {
				return h.ToExternal(get(e))
			},
		}, nil
	}
}

// Identifier marks the declared field as the identifier of the mapper
func Identifier[T any](spec FieldSpec[T]) FieldSpec[T] {
	return func(handlers *typehandlers.Factory) (Field[T], error) {
		f, err := spec(handlers)
		if err != nil {
			return f, err
		}

		if f.IsReference() {
			return Field[T]{}, errors.NewConfigurationError(fmt.Sprintf("reference field %s can not be an identifier", f.name))
		}

		f.identifier = true
		return f, nil
	}
}

// Reference declares a field that points to an entity of the target mapper. The
// external form of the field is the key of the referenced entity. An empty
// placeholder clears the reference without consulting the resolver.
func Reference[T, R any](name, target string, get func(*T) *R, set func(*T, *R), key func(*R) string) FieldSpec[T] {
	return func(*typehandlers.Factory) (Field[T], error) {
		if target == "" {
			return Field[T]{}, errors.NewConfigurationError(fmt.Sprintf("reference field %s must name a target mapper", name))
		}

		return Field[T]{
			name:   name,
			target: target,
			resolve: func(ctx context.Context, resolver ReferenceResolver, placeholder string) (Apply[T], error) {
				if placeholder == "" {
					return func(e *T) { set(e, nil) }, nil
				}

				if resolver == nil {
					return nil, fmt.Errorf("no reference resolver available")
				}

				related, err := resolver.ResolveReference(ctx, target, placeholder)
				if err != nil {
					return nil, err
				}

				r, ok := related.(*R)
				if !ok || r == nil {
					var expected *R
					return nil, fmt.Errorf("resolver returned %T instead of %T", related, expected)
				}

				return func(e *T) { set(e, r) }, nil
			},
			external: func(e *T) string {
				r := get(e)
				if r == nil {
					return ""
				}
				return key(r)
			},
		}, nil
	}
}
