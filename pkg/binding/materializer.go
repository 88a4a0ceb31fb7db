package binding

import (
	"context"
	"fmt"
	"strings"

	"github.com/diwise/entity-binder/pkg/binding/errors"
	"github.com/diwise/entity-binder/pkg/binding/join"
	"github.com/diwise/entity-binder/pkg/binding/mapping"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	TraceAttributeMapper   string = "mapper"
	TraceAttributeEntityID string = "entity-id"
)

var tracer = otel.Tracer("entity-binder/binding")

// Fetcher retrieves an existing record by its identifier. A missing record is
// reported by returning false, not by an error.
type Fetcher[T any] interface {
	FetchByID(ctx context.Context, id string) (*T, bool, error)
}

// FetchFunc adapts a function to the Fetcher interface
type FetchFunc[T any] func(ctx context.Context, id string) (*T, bool, error)

func (fn FetchFunc[T]) FetchByID(ctx context.Context, id string) (*T, bool, error) {
	return fn(ctx, id)
}

// Decision tells whether a representation describes a new entity or an update
// of an existing one
type Decision int

const (
	Create Decision = iota
	FetchForUpdate
)

func (d Decision) String() string {
	if d == FetchForUpdate {
		return "fetch-for-update"
	}
	return "create"
}

// Decide returns FetchForUpdate and the identifier if the representation carries
// a non empty value for the identifier field, and Create otherwise
func Decide[T any](so *StoreObject[T], d *mapping.Descriptor[T]) (Decision, string) {
	id, ok := so.Get(d.IDField().Name())
	if !ok || strings.TrimSpace(id) == "" {
		return Create, ""
	}
	return FetchForUpdate, id
}

// Materialize turns the representation of so into a typed entity. The base
// instance is the entity already carried by so, the record fetched by the
// identifier in the representation, or a blank instance. Fields present in the
// representation are converted onto the base, after which object references are
// resolved. The identifier field itself is never overwritten.
func Materialize[T any](ctx context.Context, so *StoreObject[T], d *mapping.Descriptor[T], fetcher Fetcher[T], resolver mapping.ReferenceResolver) (*T, error) {
	var err error

	ctx, span := tracer.Start(ctx, "materialize",
		trace.WithAttributes(attribute.String(TraceAttributeMapper, d.Name())),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	base, err := obtainBase(ctx, so, d, fetcher)
	if err != nil {
		return nil, err
	}

	e, err := bind(ctx, so, d, base, resolver, false)
	if err != nil {
		return nil, err
	}

	return e, nil
}

// Hydrate turns the field values of a persisted record into a typed entity. A
// blank instance is always used as base and the identifier field is converted
// like any other field.
func Hydrate[T any](ctx context.Context, so *StoreObject[T], d *mapping.Descriptor[T], resolver mapping.ReferenceResolver) (*T, error) {
	var err error

	ctx, span := tracer.Start(ctx, "hydrate",
		trace.WithAttributes(attribute.String(TraceAttributeMapper, d.Name())),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	e, err := bind(ctx, so, d, d.NewBlankInstance(), resolver, true)
	if err != nil {
		return nil, err
	}

	return e, nil
}

func obtainBase[T any](ctx context.Context, so *StoreObject[T], d *mapping.Descriptor[T], fetcher Fetcher[T]) (*T, error) {
	if e := so.entity.Load(); e != nil {
		// work on a copy so that the carried entity is swapped, not modified in place
		c := *e
		return &c, nil
	}

	decision, id := Decide(so, d)
	if decision == Create {
		return d.NewBlankInstance(), nil
	}

	if fetcher == nil {
		return nil, errors.NewConfigurationError(fmt.Sprintf("no fetcher available for mapper %s", d.Name()))
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.String(TraceAttributeEntityID, id))

	e, found, err := fetcher.FetchByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s with id %s: %w", d.Name(), id, err)
	}

	if !found || e == nil {
		return nil, errors.NewNotFoundError(d.Name(), id)
	}

	return e, nil
}

func bind[T any](ctx context.Context, so *StoreObject[T], d *mapping.Descriptor[T], base *T, resolver mapping.ReferenceResolver, includeIdentifier bool) (*T, error) {
	logger := logging.GetFromContext(ctx).With(TraceAttributeMapper, d.Name())

	so.resetReferences()

	conversions := make([]join.Task[mapping.Apply[T]], 0, len(d.Fields()))

	for _, f := range d.Fields() {
		if f.IsIdentifier() && !includeIdentifier {
			continue
		}

		value, ok := so.Get(f.Name())
		if !ok {
			continue
		}

		if f.IsReference() {
			so.addReference(ObjectReference{Field: f.Name(), Target: f.Target(), Placeholder: value})
			continue
		}

		conversions = append(conversions, func(ctx context.Context) (mapping.Apply[T], error) {
			return f.Convert(ctx, value)
		})
	}

	logger.Debug("converting fields", "count", len(conversions))

	applies, err := join.All(ctx, conversions)
	if err != nil {
		return nil, err
	}

	if err = applyAll(base, applies); err != nil {
		return nil, err
	}

	refs := so.References()
	if len(refs) == 0 {
		so.finish(base)
		return base, nil
	}

	logger.Debug("resolving object references", "count", len(refs))

	if id := d.IdentifierOf(base); id != "" {
		ctx = withResolution(ctx, d.Name(), id)
	}

	resolutions := make([]join.Task[mapping.Apply[T]], 0, len(refs))

	for _, ref := range refs {
		f := d.MustField(ref.Field)
		resolutions = append(resolutions, func(ctx context.Context) (mapping.Apply[T], error) {
			return f.Resolve(ctx, resolver, ref.Placeholder)
		})
	}

	applies, err = join.All(ctx, resolutions)
	if err != nil {
		return nil, err
	}

	if err = applyAll(base, applies); err != nil {
		return nil, err
	}

	so.finish(base)

	return base, nil
}

func applyAll[T any](e *T, applies []mapping.Apply[T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewConversionError("", "", fmt.Errorf("internal fault while assigning values: %v", r))
		}
	}()

	for _, apply := range applies {
		apply(e)
	}

	return nil
}
