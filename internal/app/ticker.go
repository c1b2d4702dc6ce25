package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pscheid92/tallyd/internal/domain"
	"github.com/pscheid92/tallyd/internal/platform/correlation"
	"github.com/pscheid92/tallyd/internal/platform/retry"
)

const defaultTickInterval = 2 * time.Second

// SnapshotTicker periodically recomputes, publishes, and persists tally
// snapshots for streams with recent ingest activity. This keeps websocket
// clients and the snapshot history fresh even between ingest batches.
type SnapshotTicker struct {
	engine    Engine
	snapshots domain.SnapshotRepository
	publisher domain.EventPublisher
	interval  time.Duration

	mu     sync.Mutex
	active map[uuid.UUID]struct{}
}

// NewSnapshotTicker creates a ticker. snapshots and publisher may be nil;
// the corresponding step is skipped.
func NewSnapshotTicker(engine Engine, snapshots domain.SnapshotRepository, publisher domain.EventPublisher, interval time.Duration) *SnapshotTicker {
	if interval <= 0 {
		interval = defaultTickInterval
	}
	return &SnapshotTicker{
		engine:    engine,
		snapshots: snapshots,
		publisher: publisher,
		interval:  interval,
		active:    make(map[uuid.UUID]struct{}),
	}
}

// Track registers a stream for periodic snapshot refresh.
func (t *SnapshotTicker) Track(streamID uuid.UUID) {
	t.mu.Lock()
	t.active[streamID] = struct{}{}
	t.mu.Unlock()
}

// Untrack removes a stream from periodic refresh.
func (t *SnapshotTicker) Untrack(streamID uuid.UUID) {
	t.mu.Lock()
	delete(t.active, streamID)
	t.mu.Unlock()
}

// Run starts the periodic refresh loop. It blocks until ctx is cancelled.
func (t *SnapshotTicker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.refresh(ctx)
		}
	}
}

func (t *SnapshotTicker) refresh(ctx context.Context) {
	t.mu.Lock()
	ids := make([]uuid.UUID, 0, len(t.active))
	for id := range t.active {
		ids = append(ids, id)
	}
	t.mu.Unlock()

	for _, id := range ids {
		tickCtx := correlation.WithID(ctx, correlation.NewID())

		snap, err := t.engine.Snapshot(id)
		if err != nil {
			slog.WarnContext(tickCtx, "Ticker: snapshot failed", "stream_id", id.String(), "error", err)
			continue
		}

		if t.publisher != nil {
			if err := t.publisher.PublishSnapshot(tickCtx, id, snap); err != nil {
				slog.WarnContext(tickCtx, "Ticker: publish failed", "stream_id", id.String(), "error", err)
			}
		}

		if t.snapshots != nil && snap.Total > 0 {
			t.persist(tickCtx, id, snap)
		}

		slog.DebugContext(tickCtx, "Ticker: refreshed snapshot", "stream_id", id.String(), "mode", snap.Mode, "total", snap.Total)

		if snap.Total == 0 {
			t.Untrack(id)
		}
	}
}

func (t *SnapshotTicker) persist(ctx context.Context, streamID uuid.UUID, snap *domain.TallySnapshot) {
	policy := retry.Policy{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.DebugContext(ctx, "Ticker: retrying snapshot insert", "stream_id", streamID.String(), "attempt", attempt, "error", err)
		},
	}

	err := retry.DoVoid(ctx, policy, retry.AlwaysRetry, func() error {
		return t.snapshots.Insert(ctx, streamID, *snap)
	})
	if err != nil {
		slog.WarnContext(ctx, "Ticker: snapshot insert failed", "stream_id", streamID.String(), "error", err)
	}
}
