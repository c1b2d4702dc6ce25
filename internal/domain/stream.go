package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Stream is a named sequence of observations whose value frequencies are
// tracked by the engine.
type Stream struct {
	ID        uuid.UUID `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// StreamRepository abstracts stream persistence.
type StreamRepository interface {
	Create(ctx context.Context, name string) (*Stream, error)
	GetByID(ctx context.Context, streamID uuid.UUID) (*Stream, error)
	GetByName(ctx context.Context, name string) (*Stream, error)
	List(ctx context.Context) ([]Stream, error)
	Delete(ctx context.Context, streamID uuid.UUID) error
}

// TallyStore abstracts per-stream frequency state. The in-memory
// implementation serves single-instance mode; the Redis implementation
// shares state across instances.
type TallyStore interface {
	Observe(ctx context.Context, streamID uuid.UUID, values []string) (*TallySnapshot, error)
	Snapshot(ctx context.Context, streamID uuid.UUID) (*TallySnapshot, error)
	Top(ctx context.Context, streamID uuid.UUID, k int) ([]ValueCount, error)
	Reset(ctx context.Context, streamID uuid.UUID) error
	Delete(ctx context.Context, streamID uuid.UUID) error
}

// EventPublisher pushes snapshot updates to connected clients.
type EventPublisher interface {
	PublishSnapshot(ctx context.Context, streamID uuid.UUID, snapshot *TallySnapshot) error
}

// AppService is the application layer contract - handlers route all
// operations through here.
type AppService interface {
	CreateStream(ctx context.Context, name string) (*Stream, error)
	GetStream(ctx context.Context, streamID uuid.UUID) (*Stream, error)
	ListStreams(ctx context.Context) ([]Stream, error)
	DeleteStream(ctx context.Context, streamID uuid.UUID) error

	Ingest(ctx context.Context, streamID uuid.UUID, values []string) (*TallySnapshot, error)
	GetSnapshot(ctx context.Context, streamID uuid.UUID) (*TallySnapshot, error)
	GetMode(ctx context.Context, streamID uuid.UUID) (*TallySnapshot, error)
	Top(ctx context.Context, streamID uuid.UUID, k int) ([]ValueCount, error)
	ResetStream(ctx context.Context, streamID uuid.UUID) error
}
