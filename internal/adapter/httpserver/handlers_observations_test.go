package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/tallyd/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStreamRequest(t *testing.T, srv *Server, method, path, body string, streamID uuid.UUID) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	c := srv.echo.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(streamID.String())
	return c, rec
}

// --- handleIngest tests ---

func TestHandleIngest_Success(t *testing.T) {
	streamID := uuid.New()
	app := &mockAppService{
		ingestFn: func(_ context.Context, id uuid.UUID, values []string) (*domain.TallySnapshot, error) {
			assert.Equal(t, streamID, id)
			assert.Equal(t, []string{"a", "b", "a"}, values)
			return &domain.TallySnapshot{Mode: "a", ModeCount: 2, Total: 3, Distinct: 2}, nil
		},
	}
	srv := newTestServer(t, app)

	c, rec := newStreamRequest(t, srv, http.MethodPost, "/api/streams/"+streamID.String()+"/observations", `{"values": ["a", "b", "a"]}`, streamID)

	err := srv.handleIngest(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var snap domain.TallySnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "a", snap.Mode)
	assert.Equal(t, int64(2), snap.ModeCount)
}

func TestHandleIngest_EmptyBatch(t *testing.T) {
	app := &mockAppService{
		ingestFn: func(_ context.Context, _ uuid.UUID, _ []string) (*domain.TallySnapshot, error) {
			return nil, domain.ErrEmptyBatch
		},
	}
	srv := newTestServer(t, app)

	streamID := uuid.New()
	c, rec := newStreamRequest(t, srv, http.MethodPost, "/api/streams/"+streamID.String()+"/observations", `{"values": []}`, streamID)

	_ = callHandler(srv.handleIngest, c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleIngest_BatchTooLarge(t *testing.T) {
	app := &mockAppService{
		ingestFn: func(_ context.Context, _ uuid.UUID, _ []string) (*domain.TallySnapshot, error) {
			return nil, domain.ErrBatchTooLarge
		},
	}
	srv := newTestServer(t, app)

	streamID := uuid.New()
	c, rec := newStreamRequest(t, srv, http.MethodPost, "/api/streams/"+streamID.String()+"/observations", `{"values": ["a"]}`, streamID)

	_ = callHandler(srv.handleIngest, c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleIngest_StreamNotFound(t *testing.T) {
	app := &mockAppService{
		ingestFn: func(_ context.Context, _ uuid.UUID, _ []string) (*domain.TallySnapshot, error) {
			return nil, domain.ErrStreamNotFound
		},
	}
	srv := newTestServer(t, app)

	streamID := uuid.New()
	c, rec := newStreamRequest(t, srv, http.MethodPost, "/api/streams/"+streamID.String()+"/observations", `{"values": ["a"]}`, streamID)

	_ = callHandler(srv.handleIngest, c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// --- handleGetMode tests ---

func TestHandleGetMode_Success(t *testing.T) {
	app := &mockAppService{
		getModeFn: func(_ context.Context, _ uuid.UUID) (*domain.TallySnapshot, error) {
			return &domain.TallySnapshot{Mode: "2", ModeCount: 4, Total: 9, Distinct: 4}, nil
		},
	}
	srv := newTestServer(t, app)

	streamID := uuid.New()
	c, rec := newStreamRequest(t, srv, http.MethodGet, "/api/streams/"+streamID.String()+"/mode", "", streamID)

	err := srv.handleGetMode(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "2", response["value"])
	assert.Equal(t, float64(4), response["count"])
	assert.Equal(t, float64(9), response["total"])
}

func TestHandleGetMode_EmptyStream(t *testing.T) {
	app := &mockAppService{
		getModeFn: func(_ context.Context, _ uuid.UUID) (*domain.TallySnapshot, error) {
			return nil, domain.ErrEmptyStream
		},
	}
	srv := newTestServer(t, app)

	streamID := uuid.New()
	c, rec := newStreamRequest(t, srv, http.MethodGet, "/api/streams/"+streamID.String()+"/mode", "", streamID)

	_ = callHandler(srv.handleGetMode, c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- handleTop tests ---

func TestHandleTop_DefaultK(t *testing.T) {
	app := &mockAppService{
		topFn: func(_ context.Context, _ uuid.UUID, k int) ([]domain.ValueCount, error) {
			assert.Equal(t, defaultTopK, k)
			return []domain.ValueCount{{Value: "a", Count: 3}}, nil
		},
	}
	srv := newTestServer(t, app)

	streamID := uuid.New()
	c, rec := newStreamRequest(t, srv, http.MethodGet, "/api/streams/"+streamID.String()+"/top", "", streamID)

	err := srv.handleTop(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleTop_ExplicitK(t *testing.T) {
	app := &mockAppService{
		topFn: func(_ context.Context, _ uuid.UUID, k int) ([]domain.ValueCount, error) {
			assert.Equal(t, 3, k)
			return nil, nil
		},
	}
	srv := newTestServer(t, app)

	streamID := uuid.New()
	c, rec := newStreamRequest(t, srv, http.MethodGet, "/api/streams/"+streamID.String()+"/top?k=3", "", streamID)

	err := srv.handleTop(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandleTop_InvalidK(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	streamID := uuid.New()
	for _, k := range []string{"0", "-1", "abc"} {
		c, rec := newStreamRequest(t, srv, http.MethodGet, "/api/streams/"+streamID.String()+"/top?k="+k, "", streamID)
		_ = callHandler(srv.handleTop, c)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "k=%s", k)
	}
}

// --- handleGetSnapshot tests ---

func TestHandleGetSnapshot_Success(t *testing.T) {
	app := &mockAppService{
		getSnapshotFn: func(_ context.Context, _ uuid.UUID) (*domain.TallySnapshot, error) {
			return &domain.TallySnapshot{Mode: "a", ModeCount: 1, Total: 1, Distinct: 1}, nil
		},
	}
	srv := newTestServer(t, app)

	streamID := uuid.New()
	c, rec := newStreamRequest(t, srv, http.MethodGet, "/api/streams/"+streamID.String()+"/snapshot", "", streamID)

	err := srv.handleGetSnapshot(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleGetSnapshot_EmptyStreamIsOK(t *testing.T) {
	app := &mockAppService{
		getSnapshotFn: func(_ context.Context, _ uuid.UUID) (*domain.TallySnapshot, error) {
			return &domain.TallySnapshot{}, nil
		},
	}
	srv := newTestServer(t, app)

	streamID := uuid.New()
	c, rec := newStreamRequest(t, srv, http.MethodGet, "/api/streams/"+streamID.String()+"/snapshot", "", streamID)

	err := srv.handleGetSnapshot(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var snap domain.TallySnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, int64(0), snap.Total)
}

// --- handleReset tests ---

func TestHandleReset_Success(t *testing.T) {
	var resetCalled bool
	app := &mockAppService{
		resetStreamFn: func(_ context.Context, _ uuid.UUID) error {
			resetCalled = true
			return nil
		},
	}
	srv := newTestServer(t, app)

	streamID := uuid.New()
	c, rec := newStreamRequest(t, srv, http.MethodPost, "/api/streams/"+streamID.String()+"/reset", "", streamID)

	err := srv.handleReset(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resetCalled)
}
