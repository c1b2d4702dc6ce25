package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TallySnapshot describes the frequency state of a stream at a point in
// time. Mode and ModeCount are meaningful only when Total > 0; the zero
// value represents an empty stream.
type TallySnapshot struct {
	Mode      string `json:"mode"`
	ModeCount int64  `json:"mode_count"`
	Total     int64  `json:"total"`
	Distinct  int    `json:"distinct"`
}

// ValueCount is a single entry of a top-k listing.
type ValueCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// PersistedSnapshot is a TallySnapshot stored durably for a stream.
type PersistedSnapshot struct {
	StreamID uuid.UUID     `db:"stream_id"`
	Snapshot TallySnapshot `db:"-"`
	TakenAt  time.Time     `db:"taken_at"`
}

// SnapshotRepository abstracts durable snapshot persistence.
type SnapshotRepository interface {
	Insert(ctx context.Context, streamID uuid.UUID, snapshot TallySnapshot) error
	Latest(ctx context.Context, streamID uuid.UUID) (*PersistedSnapshot, error)
}
