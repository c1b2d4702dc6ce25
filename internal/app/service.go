package app

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/tallyd/internal/adapter/metrics"
	"github.com/pscheid92/tallyd/internal/domain"
	"golang.org/x/sync/singleflight"
)

// Engine is the tally engine as seen by the application layer.
type Engine interface {
	Observe(streamID uuid.UUID, values []string) (*domain.TallySnapshot, error)
	Snapshot(streamID uuid.UUID) (*domain.TallySnapshot, error)
	Top(streamID uuid.UUID, k int) ([]domain.ValueCount, error)
	Reset(streamID uuid.UUID) error
	Delete(streamID uuid.UUID) error
}

// Service is the application layer: the only component that references
// multiple domain components. It orchestrates all use cases.
type Service struct {
	streams       domain.StreamRepository
	engine        Engine
	ticker        *SnapshotTicker
	ingest        *metrics.IngestMetrics
	clock         clockwork.Clock
	snapshotGroup singleflight.Group
	maxBatchSize  int
}

// NewService creates the application layer service.
// ticker and ingest may be nil.
func NewService(streams domain.StreamRepository, engine Engine, ticker *SnapshotTicker, ingest *metrics.IngestMetrics, clock clockwork.Clock, maxBatchSize int) *Service {
	return &Service{
		streams:      streams,
		engine:       engine,
		ticker:       ticker,
		ingest:       ingest,
		clock:        clock,
		maxBatchSize: maxBatchSize,
	}
}

// CreateStream registers a new named stream.
func (s *Service) CreateStream(ctx context.Context, name string) (*domain.Stream, error) {
	return s.streams.Create(ctx, name)
}

// GetStream retrieves a stream by ID.
func (s *Service) GetStream(ctx context.Context, streamID uuid.UUID) (*domain.Stream, error) {
	return s.streams.GetByID(ctx, streamID)
}

// ListStreams returns all registered streams ordered by creation time.
func (s *Service) ListStreams(ctx context.Context) ([]domain.Stream, error) {
	return s.streams.List(ctx)
}

// DeleteStream removes the stream and all its tally state.
func (s *Service) DeleteStream(ctx context.Context, streamID uuid.UUID) error {
	if err := s.streams.Delete(ctx, streamID); err != nil {
		return err
	}

	// Best-effort: the stream row is gone either way
	if err := s.engine.Delete(streamID); err != nil {
		slog.Error("Failed to delete tally state", "stream_id", streamID.String(), "error", err)
	}

	if s.ticker != nil {
		s.ticker.Untrack(streamID)
	}
	return nil
}

// Ingest records a batch of observed values against the stream and returns
// the resulting snapshot.
func (s *Service) Ingest(ctx context.Context, streamID uuid.UUID, values []string) (*domain.TallySnapshot, error) {
	if len(values) == 0 {
		return nil, domain.ErrEmptyBatch
	}
	if s.maxBatchSize > 0 && len(values) > s.maxBatchSize {
		return nil, domain.ErrBatchTooLarge
	}

	if _, err := s.streams.GetByID(ctx, streamID); err != nil {
		return nil, err
	}

	start := s.clock.Now()
	snapshot, err := s.engine.Observe(streamID, values)
	if s.ingest != nil {
		s.ingest.IngestDuration.Observe(s.clock.Since(start).Seconds())
		s.ingest.BatchSize.Observe(float64(len(values)))
		result := "ok"
		if err != nil {
			result = "error"
		}
		s.ingest.ObservationsIngested.WithLabelValues(result).Add(float64(len(values)))
	}
	if err != nil {
		return nil, err
	}

	if s.ticker != nil {
		s.ticker.Track(streamID)
	}
	return snapshot, nil
}

// GetSnapshot returns the current frequency state of the stream. Concurrent
// requests for the same stream are collapsed with singleflight.
func (s *Service) GetSnapshot(ctx context.Context, streamID uuid.UUID) (*domain.TallySnapshot, error) {
	if _, err := s.streams.GetByID(ctx, streamID); err != nil {
		return nil, err
	}

	v, err, _ := s.snapshotGroup.Do(streamID.String(), func() (any, error) {
		return s.engine.Snapshot(streamID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.TallySnapshot), nil
}

// GetMode returns the snapshot of a stream that has at least one observation.
// An empty stream yields ErrEmptyStream: a mode of zero observations is
// undefined.
func (s *Service) GetMode(ctx context.Context, streamID uuid.UUID) (*domain.TallySnapshot, error) {
	snapshot, err := s.GetSnapshot(ctx, streamID)
	if err != nil {
		return nil, err
	}
	if snapshot.Total == 0 {
		return nil, domain.ErrEmptyStream
	}
	return snapshot, nil
}

// Top returns up to k values of the stream ordered by descending count.
func (s *Service) Top(ctx context.Context, streamID uuid.UUID, k int) ([]domain.ValueCount, error) {
	if _, err := s.streams.GetByID(ctx, streamID); err != nil {
		return nil, err
	}
	return s.engine.Top(streamID, k)
}

// ResetStream discards all observations of the stream but keeps it registered.
func (s *Service) ResetStream(ctx context.Context, streamID uuid.UUID) error {
	if _, err := s.streams.GetByID(ctx, streamID); err != nil {
		return err
	}
	if err := s.engine.Reset(streamID); err != nil {
		return err
	}
	if s.ticker != nil {
		s.ticker.Untrack(streamID)
	}
	return nil
}
