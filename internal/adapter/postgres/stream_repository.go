package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/tallyd/internal/domain"
)

const uniqueViolationCode = "23505"

type StreamRepo struct {
	pool *pgxpool.Pool
}

func NewStreamRepo(pool *pgxpool.Pool) *StreamRepo {
	return &StreamRepo{pool: pool}
}

func (r *StreamRepo) Create(ctx context.Context, name string) (*domain.Stream, error) {
	rows, err := r.pool.Query(ctx, `
		INSERT INTO streams (name)
		VALUES ($1)
		RETURNING id, name, created_at, updated_at`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	stream, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[domain.Stream])
	if isUniqueViolation(err) {
		return nil, domain.ErrStreamExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}
	return &stream, nil
}

func (r *StreamRepo) GetByID(ctx context.Context, streamID uuid.UUID) (*domain.Stream, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, created_at, updated_at
		FROM streams
		WHERE id = $1`, streamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream by ID: %w", err)
	}

	stream, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[domain.Stream])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrStreamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stream by ID: %w", err)
	}
	return &stream, nil
}

func (r *StreamRepo) GetByName(ctx context.Context, name string) (*domain.Stream, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, created_at, updated_at
		FROM streams
		WHERE name = $1`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream by name: %w", err)
	}

	stream, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[domain.Stream])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrStreamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stream by name: %w", err)
	}
	return &stream, nil
}

func (r *StreamRepo) List(ctx context.Context) ([]domain.Stream, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, created_at, updated_at
		FROM streams
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list streams: %w", err)
	}

	streams, err := pgx.CollectRows(rows, pgx.RowToStructByName[domain.Stream])
	if err != nil {
		return nil, fmt.Errorf("failed to list streams: %w", err)
	}
	return streams, nil
}

func (r *StreamRepo) Delete(ctx context.Context, streamID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM streams WHERE id = $1`, streamID)
	if err != nil {
		return fmt.Errorf("failed to delete stream: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStreamNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
