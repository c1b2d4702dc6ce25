package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/tallyd/internal/domain"
)

type SnapshotRepo struct {
	pool *pgxpool.Pool
}

func NewSnapshotRepo(pool *pgxpool.Pool) *SnapshotRepo {
	return &SnapshotRepo{pool: pool}
}

func (r *SnapshotRepo) Insert(ctx context.Context, streamID uuid.UUID, snapshot domain.TallySnapshot) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO snapshots (stream_id, mode_value, mode_count, total, distinct_values, taken_at)
		VALUES ($1, $2, $3, $4, $5, now())`,
		streamID,
		snapshot.Mode,
		snapshot.ModeCount,
		snapshot.Total,
		snapshot.Distinct,
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepo) Latest(ctx context.Context, streamID uuid.UUID) (*domain.PersistedSnapshot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT stream_id, mode_value, mode_count, total, distinct_values, taken_at
		FROM snapshots
		WHERE stream_id = $1
		ORDER BY taken_at DESC, id DESC
		LIMIT 1`, streamID)

	var s domain.PersistedSnapshot
	err := row.Scan(
		&s.StreamID,
		&s.Snapshot.Mode,
		&s.Snapshot.ModeCount,
		&s.Snapshot.Total,
		&s.Snapshot.Distinct,
		&s.TakenAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return &s, nil
}
