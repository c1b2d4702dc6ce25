package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/tallyd/internal/domain"
	apperrors "github.com/pscheid92/tallyd/internal/platform/errors"
)

const maxStreamNameLength = 128

type createStreamRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateStream(c echo.Context) error {
	ctx := c.Request().Context()

	var req createStreamRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return apperrors.ValidationError("stream name is required")
	}
	if len(name) > maxStreamNameLength {
		return apperrors.ValidationError("stream name too long").WithField("max_length", maxStreamNameLength)
	}

	stream, err := s.app.CreateStream(ctx, name)
	if errors.Is(err, domain.ErrStreamExists) {
		return apperrors.ConflictError("stream already exists").WithField("name", name)
	}
	if err != nil {
		return apperrors.InternalError("failed to create stream", err).WithField("name", name)
	}

	if err := c.JSON(http.StatusCreated, stream); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleListStreams(c echo.Context) error {
	ctx := c.Request().Context()

	streams, err := s.app.ListStreams(ctx)
	if err != nil {
		return apperrors.InternalError("failed to list streams", err)
	}

	if err := c.JSON(http.StatusOK, streams); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetStream(c echo.Context) error {
	ctx := c.Request().Context()

	streamID, err := parseStreamID(c)
	if err != nil {
		return err
	}

	stream, err := s.app.GetStream(ctx, streamID)
	if errors.Is(err, domain.ErrStreamNotFound) {
		return apperrors.NotFoundError("stream not found").WithField("stream_id", streamID.String())
	}
	if err != nil {
		return apperrors.InternalError("failed to load stream", err).WithField("stream_id", streamID.String())
	}

	if err := c.JSON(http.StatusOK, stream); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleDeleteStream(c echo.Context) error {
	ctx := c.Request().Context()

	streamID, err := parseStreamID(c)
	if err != nil {
		return err
	}

	err = s.app.DeleteStream(ctx, streamID)
	if errors.Is(err, domain.ErrStreamNotFound) {
		return apperrors.NotFoundError("stream not found").WithField("stream_id", streamID.String())
	}
	if err != nil {
		return apperrors.InternalError("failed to delete stream", err).WithField("stream_id", streamID.String())
	}

	return c.NoContent(http.StatusNoContent)
}

func parseStreamID(c echo.Context) (uuid.UUID, error) {
	idStr := c.Param("id")
	streamID, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, apperrors.ValidationError("invalid stream ID format").WithField("id", idStr)
	}
	return streamID, nil
}
