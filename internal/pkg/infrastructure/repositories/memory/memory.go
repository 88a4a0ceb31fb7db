package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
)

// RecordStore keeps records in memory. Records are copied on the way in and
// on the way out.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]map[string]string
}

func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: map[string]map[string]string{},
	}
}

func (s *RecordStore) Get(ctx context.Context, id string) (map[string]string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, false, nil
	}

	return maps.Clone(record), true, nil
}

func (s *RecordStore) Save(ctx context.Context, id string, record map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[id] = maps.Clone(record)

	return nil
}

// List returns all records ordered by identifier
func (s *RecordStore) List(ctx context.Context) ([]map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := make([]map[string]string, 0, len(ids))
	for _, id := range ids {
		result = append(result, maps.Clone(s.records[id]))
	}

	return result, nil
}
