package binder

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/diwise/entity-binder/internal/pkg/application/notifications"
	"github.com/diwise/entity-binder/pkg/binding"
	"github.com/diwise/entity-binder/pkg/binding/errors"
	"github.com/diwise/entity-binder/pkg/binding/mapping"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
)

// RecordStore persists the flat representation of the entities of a single mapper
type RecordStore interface {
	Get(ctx context.Context, id string) (map[string]string, bool, error)
	Save(ctx context.Context, id string, record map[string]string) error
	List(ctx context.Context) ([]map[string]string, error)
}

// StoreFactory creates the record store for a mapper. Fields are the lower
// case names of all declared fields, idField is one of them.
type StoreFactory func(ctx context.Context, cfg MapperConfig, idField string, fields []string) (RecordStore, error)

// EntityBinder binds flat representations to the entities of a single mapper
type EntityBinder interface {
	Name() string
	Fields() []string
	IDField() string

	// Bind materializes an entity from values, saves it and returns its
	// flattened form and whether it was created
	Bind(ctx context.Context, values map[string]string) (map[string]string, bool, error)
	Retrieve(ctx context.Context, id string) (map[string]string, error)
	// List returns the values of the given columns for all entities. All fields
	// are returned if no columns are given.
	List(ctx context.Context, columns []string) ([]string, [][]string, error)
}

type EntityBinderApp interface {
	Mappers() []string
	Binder(name string) (EntityBinder, error)
}

type App struct {
	mu      sync.RWMutex
	binders map[string]EntityBinder

	cfg      *Config
	stores   StoreFactory
	refs     *binding.References
	notifier notifications.Notifier
}

// New creates the binder application. The notifier is optional.
func New(ctx context.Context, cfg *Config, stores StoreFactory, notifier notifications.Notifier) (*App, error) {
	if stores == nil {
		return nil, errors.NewConfigurationError("a store factory is required")
	}

	return &App{
		binders:  map[string]EntityBinder{},
		cfg:      cfg,
		stores:   stores,
		refs:     binding.NewReferences(),
		notifier: notifier,
	}, nil
}

// Add looks up the descriptor of a mapper in the registry, creates its record
// store and makes the mapper available for binding and as a reference target
func Add[T any](ctx context.Context, app *App, registry *mapping.Registry, name string) error {
	d, err := mapping.Lookup[T](registry, name)
	if err != nil {
		return err
	}

	fields := lowerCase(d.FieldNames())
	idField := strings.ToLower(d.IDField().Name())

	store, err := app.stores(ctx, app.cfg.Mapper(name), idField, fields)
	if err != nil {
		return fmt.Errorf("failed to create record store for mapper %s: %w", name, err)
	}

	b := &entityBinder[T]{
		descriptor: d,
		store:      store,
		resolver:   app.refs,
		notifier:   app.notifier,
	}

	app.mu.Lock()
	defer app.mu.Unlock()

	if _, exists := app.binders[name]; exists {
		return errors.NewConfigurationError(fmt.Sprintf("mapper %s has already been added", name))
	}

	app.binders[name] = b
	app.refs.Register(name, binding.ResolveByID(d, b, app.refs))

	logging.GetFromContext(ctx).Info("mapper added", "mapper", name, "fields", len(fields))

	return nil
}

func (app *App) Mappers() []string {
	app.mu.RLock()
	defer app.mu.RUnlock()

	names := make([]string, 0, len(app.binders))
	for name := range app.binders {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func (app *App) Binder(name string) (EntityBinder, error) {
	app.mu.RLock()
	defer app.mu.RUnlock()

	b, ok := app.binders[name]
	if !ok {
		return nil, NewUnknownMapperError(name)
	}

	return b, nil
}

type entityBinder[T any] struct {
	descriptor *mapping.Descriptor[T]
	store      RecordStore
	resolver   mapping.ReferenceResolver
	notifier   notifications.Notifier
}

func (b *entityBinder[T]) Name() string {
	return b.descriptor.Name()
}

func (b *entityBinder[T]) Fields() []string {
	return lowerCase(b.descriptor.FieldNames())
}

func (b *entityBinder[T]) IDField() string {
	return strings.ToLower(b.descriptor.IDField().Name())
}

// FetchByID loads a persisted record and hydrates it
func (b *entityBinder[T]) FetchByID(ctx context.Context, id string) (*T, bool, error) {
	record, found, err := b.store.Get(ctx, id)
	if err != nil || !found {
		return nil, false, err
	}

	e, err := binding.Hydrate(ctx, binding.NewStoreObject[T](record), b.descriptor, b.resolver)
	if err != nil {
		return nil, false, fmt.Errorf("stored %s record %s could not be hydrated: %w", b.Name(), id, err)
	}

	return e, true, nil
}

func (b *entityBinder[T]) Bind(ctx context.Context, values map[string]string) (map[string]string, bool, error) {
	logger := logging.GetFromContext(ctx).With("mapper", b.Name())

	so := binding.NewStoreObject[T](values)
	decision, _ := binding.Decide(so, b.descriptor)

	e, err := binding.Materialize(ctx, so, b.descriptor, b, b.resolver)
	if err != nil {
		return nil, false, err
	}

	id := b.descriptor.IdentifierOf(e)
	if strings.TrimSpace(id) == "" {
		return nil, false, errors.NewConfigurationError(fmt.Sprintf("materialized %s has no identifier", b.Name()))
	}

	record := binding.Flatten(e, b.descriptor).Representation()

	err = b.store.Save(ctx, id, record)
	if err != nil {
		return nil, false, fmt.Errorf("failed to save %s %s: %w", b.Name(), id, err)
	}

	created := decision == binding.Create

	logger.Debug("entity bound", "id", id, "decision", decision.String())

	if b.notifier != nil {
		if created {
			b.notifier.EntityCreated(ctx, b.Name(), record)
		} else {
			b.notifier.EntityUpdated(ctx, b.Name(), record)
		}
	}

	return record, created, nil
}

func (b *entityBinder[T]) Retrieve(ctx context.Context, id string) (map[string]string, error) {
	e, found, err := b.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, errors.NewNotFoundError(b.Name(), id)
	}

	return binding.Flatten(e, b.descriptor).Representation(), nil
}

func (b *entityBinder[T]) List(ctx context.Context, columns []string) ([]string, [][]string, error) {
	if len(columns) == 0 {
		columns = b.Fields()
	}

	columns = lowerCase(columns)
	for _, col := range columns {
		if _, ok := b.descriptor.Field(col); !ok {
			return nil, nil, errors.NewConversionError("columns", col, fmt.Errorf("%s has no field named %s", b.Name(), col))
		}
	}

	records, err := b.store.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list %s records: %w", b.Name(), err)
	}

	selection := make([]*T, 0, len(records))

	for _, record := range records {
		e, err := binding.Hydrate(ctx, binding.NewStoreObject[T](record), b.descriptor, b.resolver)
		if err != nil {
			return nil, nil, fmt.Errorf("stored %s record could not be hydrated: %w", b.Name(), err)
		}
		selection = append(selection, e)
	}

	rows := make([][]string, 0, len(selection))

	for _, so := range binding.FlattenAll(selection, b.descriptor) {
		row := make([]string, 0, len(columns))
		for _, col := range columns {
			v, _ := so.Get(col)
			row = append(row, v)
		}
		rows = append(rows, row)
	}

	return columns, rows, nil
}

func lowerCase(names []string) []string {
	result := make([]string, 0, len(names))
	for _, n := range names {
		result = append(result, strings.ToLower(n))
	}
	return result
}
