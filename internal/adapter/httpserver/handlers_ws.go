package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/tallyd/internal/domain"
	apperrors "github.com/pscheid92/tallyd/internal/platform/errors"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboards embed the live view from arbitrary origins
	},
}

func (s *Server) handleWebSocket(c echo.Context) error {
	ctx := c.Request().Context()

	streamID, err := parseStreamID(c)
	if err != nil {
		return err
	}

	if _, err := s.app.GetStream(ctx, streamID); err != nil {
		if errors.Is(err, domain.ErrStreamNotFound) {
			return apperrors.NotFoundError("stream not found").WithField("stream_id", streamID.String())
		}
		return apperrors.InternalError("failed to load stream", err).WithField("stream_id", streamID.String())
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	if err := s.hub.Register(streamID, conn); err != nil {
		slog.Warn("Failed to register websocket client", "stream_id", streamID.String(), "error", err)
		return nil
	}

	// Read pump, blocks until the connection closes
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.hub.Unregister(streamID, conn)

	return nil
}
