package binder

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/diwise/entity-binder/internal/pkg/infrastructure/repositories/memory"
	binderrors "github.com/diwise/entity-binder/pkg/binding/errors"
	"github.com/diwise/entity-binder/pkg/binding/mapping"
	"github.com/diwise/entity-binder/pkg/binding/typehandlers"
	"github.com/diwise/entity-binder/pkg/datamodels/devices"
	"github.com/matryer/is"
)

func TestMappersAreAdded(t *testing.T) {
	is, _, app, _ := testSetup(t)

	is.Equal(app.Mappers(), []string{devices.DeviceTypeName, devices.DeviceModelTypeName})

	b, err := app.Binder(devices.DeviceTypeName)
	is.NoErr(err)
	is.Equal(b.Fields()[0], "id")
}

func TestUnknownMapper(t *testing.T) {
	is, _, app, _ := testSetup(t)

	_, err := app.Binder("Beach")

	is.True(errors.Is(err, ErrUnknownMapper))
}

func TestAddingAMapperTwiceFails(t *testing.T) {
	is, registry, app, _ := testSetup(t)

	err := Add[devices.Device](context.Background(), app, registry, devices.DeviceTypeName)

	is.True(errors.Is(err, binderrors.ErrConfiguration))
}

func TestBindCreatesNewEntity(t *testing.T) {
	is, _, app, n := testSetup(t)
	ctx := context.Background()
	b, _ := app.Binder(devices.DeviceTypeName)

	record, created, err := b.Bind(ctx, map[string]string{"id": "", "name": "sensor", "active": "on"})

	is.NoErr(err)
	is.True(created)
	is.True(strings.HasPrefix(record["id"], devices.DeviceIDPrefix))
	is.Equal(record["active"], "true")
	is.Equal(n.events(), []string{"created:Device"})

	stored, err := b.Retrieve(ctx, record["id"])
	is.NoErr(err)
	is.Equal(stored, record)
}

func TestBindUpdatesExistingEntity(t *testing.T) {
	is, _, app, n := testSetup(t)
	ctx := context.Background()
	b, _ := app.Binder(devices.DeviceTypeName)

	created, _, err := b.Bind(ctx, map[string]string{"name": "sensor", "active": "on", "batteryLevel": "0.5"})
	is.NoErr(err)

	updated, isNew, err := b.Bind(ctx, map[string]string{"id": created["id"], "name": "renamed"})
	is.NoErr(err)

	is.True(!isNew)
	is.Equal(updated["name"], "renamed")
	is.Equal(updated["active"], "true") // absent fields should be left untouched
	is.Equal(updated["batterylevel"], "0.5")
	is.Equal(n.events(), []string{"created:Device", "updated:Device"})
}

func TestBindUnknownIdentifierIsNotFound(t *testing.T) {
	is, _, app, n := testSetup(t)
	b, _ := app.Binder(devices.DeviceTypeName)

	_, _, err := b.Bind(context.Background(), map[string]string{"id": "42", "name": "sensor"})

	var nfe *binderrors.NotFoundError
	is.True(errors.As(err, &nfe))
	is.Equal(nfe.ID, "42")
	is.Equal(len(n.events()), 0)
}

func TestBindResolvesReferencesBetweenMappers(t *testing.T) {
	is, _, app, _ := testSetup(t)
	ctx := context.Background()
	models, _ := app.Binder(devices.DeviceModelTypeName)
	devs, _ := app.Binder(devices.DeviceTypeName)

	model, _, err := models.Bind(ctx, map[string]string{"name": "ERS", "category": "sensor"})
	is.NoErr(err)

	device, _, err := devs.Bind(ctx, map[string]string{"name": "sensor", "refDeviceModel": model["id"]})
	is.NoErr(err)
	is.Equal(device["refdevicemodel"], model["id"])

	_, _, err = devs.Bind(ctx, map[string]string{"name": "sensor", "refDeviceModel": "urn:ngsi-ld:DeviceModel:unknown"})
	is.True(errors.Is(err, binderrors.ErrReferenceResolution))
}

func TestRetrieveMissingEntity(t *testing.T) {
	is, _, app, _ := testSetup(t)
	b, _ := app.Binder(devices.DeviceTypeName)

	_, err := b.Retrieve(context.Background(), "nope")

	is.True(binderrors.IsNotFound(err))
}

func TestListSelectedColumns(t *testing.T) {
	is, _, app, _ := testSetup(t)
	ctx := context.Background()
	b, _ := app.Binder(devices.DeviceModelTypeName)

	b.Bind(ctx, map[string]string{"id": "", "name": "first", "brandName": "Elsys"})
	b.Bind(ctx, map[string]string{"name": "second"})

	columns, rows, err := b.List(ctx, []string{"Name", "brandName"})
	is.NoErr(err)

	is.Equal(columns, []string{"name", "brandname"})
	is.Equal(len(rows), 2)

	names := []string{rows[0][0], rows[1][0]}
	is.True(names[0] != names[1])
}

func TestListAllColumns(t *testing.T) {
	is, _, app, _ := testSetup(t)
	ctx := context.Background()
	b, _ := app.Binder(devices.DeviceModelTypeName)

	b.Bind(ctx, map[string]string{"name": "first"})

	columns, rows, err := b.List(ctx, nil)
	is.NoErr(err)
	is.Equal(columns, b.Fields())
	is.Equal(len(rows[0]), len(columns))
}

func TestListUnknownColumnFails(t *testing.T) {
	is, _, app, _ := testSetup(t)
	b, _ := app.Binder(devices.DeviceModelTypeName)

	_, _, err := b.List(context.Background(), []string{"colour"})

	is.True(errors.Is(err, binderrors.ErrConversion))
}

type area struct {
	ID     string
	Name   string
	Parent *area
}

func TestRecordsReferencingEachOtherCanBeRetrieved(t *testing.T) {
	is, registry, app, _ := testSetup(t)
	ctx := context.Background()

	is.NoErr(mapping.Register(registry, "Area", func() (*mapping.Descriptor[area], error) {
		return mapping.New("Area", nil, func() *area { return &area{} },
			mapping.Identifier(mapping.Scalar("id", typehandlers.Text,
				func(a *area) string { return a.ID }, func(a *area, v string) { a.ID = v })),
			mapping.Scalar("name", typehandlers.Text,
				func(a *area) string { return a.Name }, func(a *area, v string) { a.Name = v }),
			mapping.Reference("parent", "Area",
				func(a *area) *area { return a.Parent }, func(a *area, p *area) { a.Parent = p },
				func(p *area) string { return p.ID }),
		)
	}))
	is.NoErr(Add[area](ctx, app, registry, "Area"))

	b, _ := app.Binder("Area")

	_, _, err := b.Bind(ctx, map[string]string{"id": "", "name": "missing"})
	is.True(err != nil) // the blank factory gives no identifier

	bs := b.(*entityBinder[area])
	is.NoErr(bs.store.Save(ctx, "north", map[string]string{"id": "north", "name": "North", "parent": "south"}))
	is.NoErr(bs.store.Save(ctx, "south", map[string]string{"id": "south", "name": "South", "parent": "north"}))

	north, err := b.Retrieve(ctx, "north")
	is.NoErr(err)
	is.Equal(north["parent"], "south")

	updated, created, err := b.Bind(ctx, map[string]string{"id": "south", "name": "Southern"})
	is.NoErr(err)
	is.True(!created)
	is.Equal(updated["parent"], "north")
	is.Equal(updated["name"], "Southern")
}

func testSetup(t *testing.T) (*is.I, *mapping.Registry, *App, *recordingNotifier) {
	is := is.New(t)
	ctx := context.Background()

	registry := mapping.NewRegistry()
	is.NoErr(devices.Register(registry, typehandlers.Default()))

	stores := func(ctx context.Context, cfg MapperConfig, idField string, fields []string) (RecordStore, error) {
		return memory.NewRecordStore(), nil
	}

	n := &recordingNotifier{}

	app, err := New(ctx, &Config{}, stores, n)
	is.NoErr(err)

	is.NoErr(Add[devices.DeviceModel](ctx, app, registry, devices.DeviceModelTypeName))
	is.NoErr(Add[devices.Device](ctx, app, registry, devices.DeviceTypeName))

	return is, registry, app, n
}

type recordingNotifier struct {
	mu  sync.Mutex
	log []string
}

func (n *recordingNotifier) Start() error { return nil }
func (n *recordingNotifier) Stop() error  { return nil }

func (n *recordingNotifier) EntityCreated(ctx context.Context, mapper string, record map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.log = append(n.log, "created:"+mapper)
}

func (n *recordingNotifier) EntityUpdated(ctx context.Context, mapper string, record map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.log = append(n.log, "updated:"+mapper)
}

func (n *recordingNotifier) events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string{}, n.log...)
}
