package mapping

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	binderrors "github.com/diwise/entity-binder/pkg/binding/errors"
	"github.com/diwise/entity-binder/pkg/binding/typehandlers"
	"github.com/matryer/is"
)

type owner struct {
	Key string
}

type widget struct {
	ID     int64
	Name   string
	Active bool
	Owner  *owner
}

func widgetDescriptor() (*Descriptor[widget], error) {
	return New("widget", nil, func() *widget { return &widget{} },
		Identifier(Scalar("id", typehandlers.Int,
			func(w *widget) int64 { return w.ID }, func(w *widget, v int64) { w.ID = v })),
		Scalar("name", typehandlers.Text,
			func(w *widget) string { return w.Name }, func(w *widget, v string) { w.Name = v }),
		Scalar("Active", typehandlers.Bool,
			func(w *widget) bool { return w.Active }, func(w *widget, v bool) { w.Active = v }),
		Reference("owner", "owner",
			func(w *widget) *owner { return w.Owner }, func(w *widget, o *owner) { w.Owner = o },
			func(o *owner) string { return o.Key }),
	)
}

func TestBuildDescriptor(t *testing.T) {
	is := is.New(t)

	d, err := widgetDescriptor()

	is.NoErr(err)
	is.Equal(d.Name(), "widget")
	is.Equal(d.FieldNames(), []string{"id", "name", "Active", "owner"})
	is.Equal(d.IDField().Name(), "id")
	is.True(d.MustField("owner").IsReference())
	is.Equal(d.MustField("owner").Target(), "owner")
}

func TestFieldLookupIsCaseInsensitive(t *testing.T) {
	is := is.New(t)
	d, _ := widgetDescriptor()

	f, ok := d.Field("ACTIVE")

	is.True(ok)
	is.Equal(f.Name(), "Active")
}

func TestMustFieldPanicsOnUnknownField(t *testing.T) {
	is := is.New(t)
	d, _ := widgetDescriptor()

	defer func() {
		is.True(recover() != nil) // should have panicked
	}()

	d.MustField("colour")
}

func TestBuildWithoutIdentifierFails(t *testing.T) {
	is := is.New(t)

	_, err := New("widget", nil, func() *widget { return &widget{} },
		Scalar("name", typehandlers.Text,
			func(w *widget) string { return w.Name }, func(w *widget, v string) { w.Name = v }),
	)

	is.True(errors.Is(err, binderrors.ErrConfiguration))
}

func TestBuildWithDuplicateFieldsFails(t *testing.T) {
	is := is.New(t)

	name := Scalar("name", typehandlers.Text,
		func(w *widget) string { return w.Name }, func(w *widget, v string) { w.Name = v })

	_, err := New("widget", nil, func() *widget { return &widget{} },
		Identifier(Scalar("id", typehandlers.Int,
			func(w *widget) int64 { return w.ID }, func(w *widget, v int64) { w.ID = v })),
		name, Scalar("NAME", typehandlers.Text,
			func(w *widget) string { return w.Name }, func(w *widget, v string) { w.Name = v }),
	)

	is.True(errors.Is(err, binderrors.ErrConfiguration))
}

func TestBuildWithUnregisteredKindFails(t *testing.T) {
	is := is.New(t)

	_, err := New("widget", nil, func() *widget { return &widget{} },
		Identifier(Scalar("id", typehandlers.Kind("serial"),
			func(w *widget) int64 { return w.ID }, func(w *widget, v int64) { w.ID = v })),
	)

	is.True(errors.Is(err, binderrors.ErrConfiguration)) // unregistered kinds must fail at build time
}

func TestCustomFieldUsesItsOwnHandler(t *testing.T) {
	is := is.New(t)
	upper := typehandlers.HandlerFuncs[string]{
		From: func(_ context.Context, external string) (string, error) { return strings.ToUpper(external), nil },
		To:   strings.ToLower,
	}

	d, err := New("widget", nil, func() *widget { return &widget{} },
		Identifier(Scalar("id", typehandlers.Int,
			func(w *widget) int64 { return w.ID }, func(w *widget, v int64) { w.ID = v })),
		Custom("name", typehandlers.Handler[string](upper),
			func(w *widget) string { return w.Name }, func(w *widget, v string) { w.Name = v }),
	)
	is.NoErr(err)

	apply, err := d.MustField("name").Convert(context.Background(), "shouting")
	is.NoErr(err)

	w := &widget{}
	apply(w)
	is.Equal(w.Name, "SHOUTING")
	is.Equal(d.MustField("name").External(w), "shouting")
}

func TestCustomFieldWithoutHandlerFails(t *testing.T) {
	is := is.New(t)

	_, err := New("widget", nil, func() *widget { return &widget{} },
		Identifier(Custom[widget, int64]("id", nil,
			func(w *widget) int64 { return w.ID }, func(w *widget, v int64) { w.ID = v })),
	)

	is.True(errors.Is(err, binderrors.ErrConfiguration))
}

func TestConvertFailureIsAConversionError(t *testing.T) {
	is := is.New(t)
	d, _ := widgetDescriptor()

	_, err := d.MustField("id").Convert(context.Background(), "forty-two")

	var ce *binderrors.ConversionError
	is.True(errors.As(err, &ce))
	is.Equal(ce.Field, "id")
	is.Equal(ce.Value, "forty-two")
}

func TestConvertAndApply(t *testing.T) {
	is := is.New(t)
	d, _ := widgetDescriptor()
	w := d.NewBlankInstance()

	apply, err := d.MustField("active").Convert(context.Background(), "on")
	is.NoErr(err)
	apply(w)

	is.True(w.Active)
	is.Equal(d.MustField("active").External(w), "true")
}

func TestReferenceWithEmptyPlaceholderClearsReference(t *testing.T) {
	is := is.New(t)
	d, _ := widgetDescriptor()
	w := &widget{Owner: &owner{Key: "o1"}}

	apply, err := d.MustField("owner").Resolve(context.Background(), nil, "")
	is.NoErr(err)
	apply(w)

	is.Equal(w.Owner, nil)
	is.Equal(d.MustField("owner").External(w), "")
}

type resolverFunc func(ctx context.Context, target, placeholder string) (any, error)

func (fn resolverFunc) ResolveReference(ctx context.Context, target, placeholder string) (any, error) {
	return fn(ctx, target, placeholder)
}

func TestReferenceOfWrongTypeFailsResolution(t *testing.T) {
	is := is.New(t)
	d, _ := widgetDescriptor()

	_, err := d.MustField("owner").Resolve(context.Background(), resolverFunc(func(context.Context, string, string) (any, error) {
		return &widget{}, nil
	}), "o1")

	is.True(errors.Is(err, binderrors.ErrReferenceResolution))
}

func TestRegistryBuildsDescriptorOnce(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()
	builds := 0

	err := Register(r, "widget", func() (*Descriptor[widget], error) {
		builds++
		return widgetDescriptor()
	})
	is.NoErr(err)
	is.Equal(builds, 0) // should be built lazily

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Lookup[widget](r, "widget")
			is.NoErr(err)
		}()
	}
	wg.Wait()

	is.Equal(builds, 1)
	is.Equal(r.Names(), []string{"widget"})
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()

	is.NoErr(Register(r, "widget", widgetDescriptor))
	err := Register(r, "widget", widgetDescriptor)

	is.True(errors.Is(err, binderrors.ErrConfiguration))
}

func TestRegistryLookupWithWrongTypeFails(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()
	is.NoErr(Register(r, "widget", widgetDescriptor))

	_, err := Lookup[owner](r, "widget")

	is.True(errors.Is(err, binderrors.ErrConfiguration))
}

func TestRegistryLookupOfUnknownMapperFails(t *testing.T) {
	is := is.New(t)

	_, err := Lookup[widget](NewRegistry(), "gadget")

	is.True(errors.Is(err, binderrors.ErrConfiguration))
}
