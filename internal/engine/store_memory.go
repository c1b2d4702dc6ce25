package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/pscheid92/tallyd/internal/domain"
	"github.com/pscheid92/tallyd/pkg/tally"
)

// InMemoryStore keeps tally state in process memory for single-instance
// mode. All methods are called from the Engine actor goroutine (no
// concurrent access).
type InMemoryStore struct {
	tallies map[uuid.UUID]*tally.Tally[string]
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{tallies: make(map[uuid.UUID]*tally.Tally[string])}
}

func (s *InMemoryStore) Observe(_ context.Context, streamID uuid.UUID, values []string) (*domain.TallySnapshot, error) {
	t, exists := s.tallies[streamID]
	if !exists {
		t = tally.New[string]()
		s.tallies[streamID] = t
	}
	t.Observe(values)
	return snapshotOf(t), nil
}

func (s *InMemoryStore) Snapshot(_ context.Context, streamID uuid.UUID) (*domain.TallySnapshot, error) {
	t, exists := s.tallies[streamID]
	if !exists {
		return &domain.TallySnapshot{}, nil
	}
	return snapshotOf(t), nil
}

func (s *InMemoryStore) Top(_ context.Context, streamID uuid.UUID, k int) ([]domain.ValueCount, error) {
	t, exists := s.tallies[streamID]
	if !exists {
		return nil, nil
	}
	entries := t.Top(k)
	out := make([]domain.ValueCount, len(entries))
	for i, e := range entries {
		out[i] = domain.ValueCount{Value: e.Value, Count: e.Count}
	}
	return out, nil
}

func (s *InMemoryStore) Reset(_ context.Context, streamID uuid.UUID) error {
	if t, exists := s.tallies[streamID]; exists {
		t.Reset()
	}
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, streamID uuid.UUID) error {
	delete(s.tallies, streamID)
	return nil
}

func snapshotOf(t *tally.Tally[string]) *domain.TallySnapshot {
	mode, ok := t.Mode()
	if !ok {
		return &domain.TallySnapshot{}
	}
	return &domain.TallySnapshot{
		Mode:      mode.Value,
		ModeCount: mode.Count,
		Total:     t.Total(),
		Distinct:  t.Distinct(),
	}
}
