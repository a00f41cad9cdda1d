package sequencing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var errInjected = errors.New("injected write failure")

// memStore is an in-memory Store with write failure injection.
type memStore struct {
	mu      sync.Mutex
	rows    map[string]Item
	writes  int
	failIDs map[string]error
	listErr error
	maxErr  error
}

func newMemStore(scopeID string, ids ...string) *memStore {
	s := &memStore{rows: make(map[string]Item), failIDs: make(map[string]error)}
	for i, id := range ids {
		s.rows[id] = Item{ID: id, ScopeID: scopeID, Sequence: i + 1, Label: id, UpdatedAt: time.Unix(int64(i), 0)}
	}
	return s
}

func (s *memStore) MaxSequence(_ context.Context, scopeID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxErr != nil {
		return 0, s.maxErr
	}
	highest := 0
	for _, row := range s.rows {
		if row.ScopeID == scopeID && row.Sequence > highest {
			highest = row.Sequence
		}
	}
	return highest, nil
}

func (s *memStore) ListOrdered(_ context.Context, scopeID string) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	items := make([]Item, 0, len(s.rows))
	for _, row := range s.rows {
		if row.ScopeID == scopeID {
			items = append(items, row)
		}
	}
	SortBySequence(items)
	return items, nil
}

func (s *memStore) SetSequence(_ context.Context, id string, sequence int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if err, ok := s.failIDs[id]; ok {
		return err
	}
	row, ok := s.rows[id]
	if !ok {
		return fmt.Errorf("set sequence %s: %w", id, ErrNotFound)
	}
	row.Sequence = sequence
	row.UpdatedAt = time.Now()
	s.rows[id] = row
	return nil
}

func (s *memStore) BatchSetSequence(ctx context.Context, updates []Update) error {
	return ApplyBatch(ctx, updates, s.SetSequence)
}

func (s *memStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
}

func (s *memStore) set(id string, sequence int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.rows[id]
	row.Sequence = sequence
	s.rows[id] = row
}

func (s *memStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func items(scopeID string, ids ...string) []Item {
	out := make([]Item, 0, len(ids))
	for i, id := range ids {
		out = append(out, Item{ID: id, ScopeID: scopeID, Sequence: i + 1, Label: id})
	}
	return out
}

func sequenceMap(list []Item) map[string]int {
	out := make(map[string]int, len(list))
	for _, item := range list {
		out[item.ID] = item.Sequence
	}
	return out
}

func ids(list []Item) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		out = append(out, item.ID)
	}
	return out
}
