package httpserver

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/tallyd/internal/domain"
	"github.com/pscheid92/tallyd/internal/platform/config"
	apperrors "github.com/pscheid92/tallyd/internal/platform/errors"
)

// mockAppService implements appService with overridable function fields.
type mockAppService struct {
	createStreamFn func(ctx context.Context, name string) (*domain.Stream, error)
	getStreamFn    func(ctx context.Context, streamID uuid.UUID) (*domain.Stream, error)
	listStreamsFn  func(ctx context.Context) ([]domain.Stream, error)
	deleteStreamFn func(ctx context.Context, streamID uuid.UUID) error
	ingestFn       func(ctx context.Context, streamID uuid.UUID, values []string) (*domain.TallySnapshot, error)
	getSnapshotFn  func(ctx context.Context, streamID uuid.UUID) (*domain.TallySnapshot, error)
	getModeFn      func(ctx context.Context, streamID uuid.UUID) (*domain.TallySnapshot, error)
	topFn          func(ctx context.Context, streamID uuid.UUID, k int) ([]domain.ValueCount, error)
	resetStreamFn  func(ctx context.Context, streamID uuid.UUID) error
}

func (m *mockAppService) CreateStream(ctx context.Context, name string) (*domain.Stream, error) {
	if m.createStreamFn != nil {
		return m.createStreamFn(ctx, name)
	}
	return &domain.Stream{ID: uuid.New(), Name: name, CreatedAt: time.Now(), UpdatedAt: time.Now()}, nil
}

func (m *mockAppService) GetStream(ctx context.Context, streamID uuid.UUID) (*domain.Stream, error) {
	if m.getStreamFn != nil {
		return m.getStreamFn(ctx, streamID)
	}
	return &domain.Stream{ID: streamID, Name: "test"}, nil
}

func (m *mockAppService) ListStreams(ctx context.Context) ([]domain.Stream, error) {
	if m.listStreamsFn != nil {
		return m.listStreamsFn(ctx)
	}
	return nil, nil
}

func (m *mockAppService) DeleteStream(ctx context.Context, streamID uuid.UUID) error {
	if m.deleteStreamFn != nil {
		return m.deleteStreamFn(ctx, streamID)
	}
	return nil
}

func (m *mockAppService) Ingest(ctx context.Context, streamID uuid.UUID, values []string) (*domain.TallySnapshot, error) {
	if m.ingestFn != nil {
		return m.ingestFn(ctx, streamID, values)
	}
	return &domain.TallySnapshot{}, nil
}

func (m *mockAppService) GetSnapshot(ctx context.Context, streamID uuid.UUID) (*domain.TallySnapshot, error) {
	if m.getSnapshotFn != nil {
		return m.getSnapshotFn(ctx, streamID)
	}
	return &domain.TallySnapshot{}, nil
}

func (m *mockAppService) GetMode(ctx context.Context, streamID uuid.UUID) (*domain.TallySnapshot, error) {
	if m.getModeFn != nil {
		return m.getModeFn(ctx, streamID)
	}
	return &domain.TallySnapshot{}, nil
}

func (m *mockAppService) Top(ctx context.Context, streamID uuid.UUID, k int) ([]domain.ValueCount, error) {
	if m.topFn != nil {
		return m.topFn(ctx, streamID, k)
	}
	return nil, nil
}

func (m *mockAppService) ResetStream(ctx context.Context, streamID uuid.UUID) error {
	if m.resetStreamFn != nil {
		return m.resetStreamFn(ctx, streamID)
	}
	return nil
}

func newTestServer(t *testing.T, app appService, opts ...func(*Server)) *Server {
	t.Helper()

	e := echo.New()

	srv := &Server{
		echo:      e,
		config:    &config.Config{Port: "8080", MaxBatchSize: 1000},
		app:       app,
		startTime: time.Now(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	return srv
}

// callHandler runs a handler through the error handling middleware, the same
// way requests flow in production.
func callHandler(handler echo.HandlerFunc, c echo.Context) error {
	return apperrors.Middleware()(handler)(c)
}
