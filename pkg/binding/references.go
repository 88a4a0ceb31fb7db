package binding

import (
	"context"
	"fmt"
	"sync"

	"github.com/diwise/entity-binder/pkg/binding/errors"
	"github.com/diwise/entity-binder/pkg/binding/mapping"
)

// ResolverFunc resolves a placeholder into an entity of a single mapper
type ResolverFunc func(ctx context.Context, placeholder string) (any, error)

// References dispatches reference resolution to the resolver registered for
// the target mapper
type References struct {
	mu        sync.RWMutex
	resolvers map[string]ResolverFunc
}

func NewReferences() *References {
	return &References{
		resolvers: map[string]ResolverFunc{},
	}
}

func (r *References) Register(target string, fn ResolverFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.resolvers[target] = fn
}

func (r *References) ResolveReference(ctx context.Context, target, placeholder string) (any, error) {
	r.mu.RLock()
	fn, ok := r.resolvers[target]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.NewConfigurationError(fmt.Sprintf("no reference resolver registered for mapper %s", target))
	}

	return fn(ctx, placeholder)
}

type resolvingKey struct{}

// resolution is a link in the chain of entities that are being bound in a
// context. Concurrent branches share their common ancestors only.
type resolution struct {
	mapper string
	id     string
	parent *resolution
}

func withResolution(ctx context.Context, mapper, id string) context.Context {
	parent, _ := ctx.Value(resolvingKey{}).(*resolution)
	return context.WithValue(ctx, resolvingKey{}, &resolution{mapper: mapper, id: id, parent: parent})
}

func isResolving(ctx context.Context, mapper, id string) bool {
	for r, _ := ctx.Value(resolvingKey{}).(*resolution); r != nil; r = r.parent {
		if r.mapper == mapper && r.id == id {
			return true
		}
	}
	return false
}

// ResolveByID resolves placeholders that hold the identifier of the referenced
// entity by materializing it from a representation containing only that identifier.
// A placeholder that refers back to an entity that is already being bound further
// up the chain resolves to a blank instance carrying only the identifier.
func ResolveByID[R any](d *mapping.Descriptor[R], fetcher Fetcher[R], resolver mapping.ReferenceResolver) ResolverFunc {
	return func(ctx context.Context, placeholder string) (any, error) {
		if isResolving(ctx, d.Name(), placeholder) {
			return identifiedInstance(ctx, d, placeholder)
		}

		so := NewStoreObject[R](map[string]string{d.IDField().Name(): placeholder})

		e, err := Materialize(ctx, so, d, fetcher, resolver)
		if err != nil {
			return nil, err
		}

		return e, nil
	}
}

func identifiedInstance[R any](ctx context.Context, d *mapping.Descriptor[R], id string) (*R, error) {
	apply, err := d.IDField().Convert(ctx, id)
	if err != nil {
		return nil, err
	}

	e := d.NewBlankInstance()
	apply(e)

	return e, nil
}
