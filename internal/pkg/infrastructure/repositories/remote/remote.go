package remote

import (
	"context"
	"fmt"

	"github.com/diwise/entity-binder/pkg/binding/client"
)

var ErrReadOnly = fmt.Errorf("records of remote mappers are read only")

// RecordStore reads the records of a mapper from another entity binder
type RecordStore struct {
	client  client.BinderClient
	mapper  string
	columns []string
}

func New(c client.BinderClient, mapper string, columns []string) *RecordStore {
	return &RecordStore{
		client:  c,
		mapper:  mapper,
		columns: columns,
	}
}

func (s *RecordStore) Get(ctx context.Context, id string) (map[string]string, bool, error) {
	return s.client.RetrieveRecord(ctx, s.mapper, id)
}

func (s *RecordStore) Save(ctx context.Context, id string, record map[string]string) error {
	return fmt.Errorf("unable to save %s %s: %w", s.mapper, id, ErrReadOnly)
}

func (s *RecordStore) List(ctx context.Context) ([]map[string]string, error) {
	return s.client.ListRecords(ctx, s.mapper, s.columns)
}
