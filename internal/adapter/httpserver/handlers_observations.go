package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/tallyd/internal/domain"
	apperrors "github.com/pscheid92/tallyd/internal/platform/errors"
)

const defaultTopK = 10

type ingestRequest struct {
	Values []string `json:"values"`
}

func (s *Server) handleIngest(c echo.Context) error {
	ctx := c.Request().Context()

	streamID, err := parseStreamID(c)
	if err != nil {
		return err
	}

	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	snapshot, err := s.app.Ingest(ctx, streamID, req.Values)
	switch {
	case errors.Is(err, domain.ErrEmptyBatch):
		return apperrors.ValidationError("values must not be empty")
	case errors.Is(err, domain.ErrBatchTooLarge):
		return apperrors.ValidationError("too many values in one batch").WithField("max_batch_size", s.config.MaxBatchSize)
	case errors.Is(err, domain.ErrStreamNotFound):
		return apperrors.NotFoundError("stream not found").WithField("stream_id", streamID.String())
	case err != nil:
		return apperrors.InternalError("failed to ingest observations", err).WithField("stream_id", streamID.String())
	}

	if err := c.JSON(http.StatusOK, snapshot); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetSnapshot(c echo.Context) error {
	ctx := c.Request().Context()

	streamID, err := parseStreamID(c)
	if err != nil {
		return err
	}

	snapshot, err := s.app.GetSnapshot(ctx, streamID)
	if errors.Is(err, domain.ErrStreamNotFound) {
		return apperrors.NotFoundError("stream not found").WithField("stream_id", streamID.String())
	}
	if err != nil {
		return apperrors.InternalError("failed to load snapshot", err).WithField("stream_id", streamID.String())
	}

	if err := c.JSON(http.StatusOK, snapshot); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetMode(c echo.Context) error {
	ctx := c.Request().Context()

	streamID, err := parseStreamID(c)
	if err != nil {
		return err
	}

	snapshot, err := s.app.GetMode(ctx, streamID)
	switch {
	case errors.Is(err, domain.ErrStreamNotFound):
		return apperrors.NotFoundError("stream not found").WithField("stream_id", streamID.String())
	case errors.Is(err, domain.ErrEmptyStream):
		return apperrors.ValidationError("stream has no observations").WithField("stream_id", streamID.String())
	case err != nil:
		return apperrors.InternalError("failed to compute mode", err).WithField("stream_id", streamID.String())
	}

	response := map[string]any{
		"value": snapshot.Mode,
		"count": snapshot.ModeCount,
		"total": snapshot.Total,
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleTop(c echo.Context) error {
	ctx := c.Request().Context()

	streamID, err := parseStreamID(c)
	if err != nil {
		return err
	}

	k := defaultTopK
	if kStr := c.QueryParam("k"); kStr != "" {
		k, err = strconv.Atoi(kStr)
		if err != nil || k < 1 {
			return apperrors.ValidationError("k must be a positive integer").WithField("k", kStr)
		}
	}

	entries, err := s.app.Top(ctx, streamID, k)
	if errors.Is(err, domain.ErrStreamNotFound) {
		return apperrors.NotFoundError("stream not found").WithField("stream_id", streamID.String())
	}
	if err != nil {
		return apperrors.InternalError("failed to compute top values", err).WithField("stream_id", streamID.String())
	}

	if entries == nil {
		entries = []domain.ValueCount{}
	}
	if err := c.JSON(http.StatusOK, entries); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleReset(c echo.Context) error {
	ctx := c.Request().Context()

	streamID, err := parseStreamID(c)
	if err != nil {
		return err
	}

	err = s.app.ResetStream(ctx, streamID)
	if errors.Is(err, domain.ErrStreamNotFound) {
		return apperrors.NotFoundError("stream not found").WithField("stream_id", streamID.String())
	}
	if err != nil {
		return apperrors.InternalError("failed to reset stream", err).WithField("stream_id", streamID.String())
	}

	if err := c.JSON(http.StatusOK, map[string]string{"status": "ok"}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleLatestPersisted(c echo.Context) error {
	ctx := c.Request().Context()

	streamID, err := parseStreamID(c)
	if err != nil {
		return err
	}

	if s.snapshots == nil {
		return apperrors.NotFoundError("snapshot history not enabled")
	}

	if _, err := s.app.GetStream(ctx, streamID); err != nil {
		if errors.Is(err, domain.ErrStreamNotFound) {
			return apperrors.NotFoundError("stream not found").WithField("stream_id", streamID.String())
		}
		return apperrors.InternalError("failed to load stream", err).WithField("stream_id", streamID.String())
	}

	persisted, err := s.snapshots.Latest(ctx, streamID)
	if err != nil {
		return apperrors.InternalError("failed to load persisted snapshot", err).WithField("stream_id", streamID.String())
	}
	if persisted == nil {
		return apperrors.NotFoundError("no persisted snapshot yet").WithField("stream_id", streamID.String())
	}

	response := map[string]any{
		"stream_id": persisted.StreamID,
		"snapshot":  persisted.Snapshot,
		"taken_at":  persisted.TakenAt,
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
