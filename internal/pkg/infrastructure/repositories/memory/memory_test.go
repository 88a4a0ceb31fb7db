package memory

import (
	"context"
	"testing"

	"github.com/matryer/is"
)

func TestSaveAndGet(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := NewRecordStore()

	record := map[string]string{"id": "a", "name": "first"}
	is.NoErr(s.Save(ctx, "a", record))

	record["name"] = "modified after save"

	stored, found, err := s.Get(ctx, "a")
	is.NoErr(err)
	is.True(found)
	is.Equal(stored["name"], "first") // the stored record should not be affected by changes to the saved map
}

func TestGetMissingRecord(t *testing.T) {
	is := is.New(t)

	_, found, err := NewRecordStore().Get(context.Background(), "nope")

	is.NoErr(err)
	is.True(!found)
}

func TestListIsOrderedByID(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := NewRecordStore()

	s.Save(ctx, "b", map[string]string{"id": "b"})
	s.Save(ctx, "a", map[string]string{"id": "a"})

	records, err := s.List(ctx)
	is.NoErr(err)
	is.Equal(records, []map[string]string{{"id": "a"}, {"id": "b"}})
}
