package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/tallyd/internal/domain"
)

const tickInterval = 10 * time.Second

// --- Command types ---

type engineCmd interface{ engineCmd() }

type cmdObserve struct {
	streamID uuid.UUID
	values   []string
	replyCh  chan observeResult
}

func (cmdObserve) engineCmd() {}

type observeResult struct {
	snapshot *domain.TallySnapshot
	err      error
}

type cmdSnapshot struct {
	streamID uuid.UUID
	replyCh  chan observeResult
}

func (cmdSnapshot) engineCmd() {}

type cmdTop struct {
	streamID uuid.UUID
	k        int
	replyCh  chan topResult
}

func (cmdTop) engineCmd() {}

type topResult struct {
	entries []domain.ValueCount
	err     error
}

type cmdReset struct {
	streamID uuid.UUID
	replyCh  chan error
}

func (cmdReset) engineCmd() {}

type cmdDelete struct {
	streamID uuid.UUID
	replyCh  chan error
}

func (cmdDelete) engineCmd() {}

type cmdSetIdleHandler struct {
	fn func(uuid.UUID)
}

func (cmdSetIdleHandler) engineCmd() {}

type cmdTick struct{}

func (cmdTick) engineCmd() {}

type cmdStop struct {
	doneCh chan struct{}
}

func (cmdStop) engineCmd() {}

// --- Engine ---

// Engine serializes all tally operations through a single actor goroutine.
type Engine struct {
	cmdCh chan engineCmd
	store domain.TallyStore
	clock clockwork.Clock

	// lastActivity tracks when each stream last received observations,
	// for idle eviction of local tracking state.
	lastActivity map[uuid.UUID]time.Time
	idleTimeout  time.Duration
	onIdle       func(uuid.UUID)

	stopCh chan struct{}
}

func New(store domain.TallyStore, clock clockwork.Clock, idleTimeout time.Duration) *Engine {
	return &Engine{
		cmdCh:        make(chan engineCmd, 512),
		store:        store,
		clock:        clock,
		lastActivity: make(map[uuid.UUID]time.Time),
		idleTimeout:  idleTimeout,
		stopCh:       make(chan struct{}),
	}
}

// SetIdleHandler registers a callback invoked when a stream has seen no
// observations for the idle timeout. Must be called before Start().
func (e *Engine) SetIdleHandler(fn func(uuid.UUID)) {
	e.cmdCh <- cmdSetIdleHandler{fn: fn}
}

// Start begins the engine's background goroutines (ticker and actor).
func (e *Engine) Start() {
	go e.tickerLoop()
	go e.run()
}

func (e *Engine) run() {
	ctx := context.Background()
	for cmd := range e.cmdCh {
		switch c := cmd.(type) {
		case cmdSetIdleHandler:
			e.onIdle = c.fn

		case cmdObserve:
			snapshot, err := e.store.Observe(ctx, c.streamID, c.values)
			if err != nil {
				slog.Error("Observe failed", "stream_id", c.streamID, "error", err)
			} else {
				e.lastActivity[c.streamID] = e.clock.Now()
			}
			c.replyCh <- observeResult{snapshot: snapshot, err: err}

		case cmdSnapshot:
			snapshot, err := e.store.Snapshot(ctx, c.streamID)
			if err != nil {
				slog.Error("Snapshot failed", "stream_id", c.streamID, "error", err)
			}
			c.replyCh <- observeResult{snapshot: snapshot, err: err}

		case cmdTop:
			entries, err := e.store.Top(ctx, c.streamID, c.k)
			if err != nil {
				slog.Error("Top failed", "stream_id", c.streamID, "error", err)
			}
			c.replyCh <- topResult{entries: entries, err: err}

		case cmdReset:
			err := e.store.Reset(ctx, c.streamID)
			if err == nil {
				slog.Info("Stream reset", "stream_id", c.streamID)
			}
			c.replyCh <- err

		case cmdDelete:
			err := e.store.Delete(ctx, c.streamID)
			if err == nil {
				delete(e.lastActivity, c.streamID)
				slog.Info("Stream state deleted", "stream_id", c.streamID)
			}
			c.replyCh <- err

		case cmdTick:
			e.handleTick()

		case cmdStop:
			close(e.stopCh)
			close(c.doneCh)
			return
		}
	}
}

func (e *Engine) handleTick() {
	now := e.clock.Now()
	for id, last := range e.lastActivity {
		if now.Sub(last) <= e.idleTimeout {
			continue
		}
		delete(e.lastActivity, id)
		slog.Info("Stream idle, dropping local tracking", "stream_id", id)
		if e.onIdle != nil {
			e.onIdle(id)
		}
	}
}

func (e *Engine) tickerLoop() {
	ticker := e.clock.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			e.cmdCh <- cmdTick{}
		case <-e.stopCh:
			return
		}
	}
}

// --- Public API ---

// Observe records values against the stream and returns the resulting
// snapshot.
func (e *Engine) Observe(streamID uuid.UUID, values []string) (*domain.TallySnapshot, error) {
	replyCh := make(chan observeResult, 1)
	e.cmdCh <- cmdObserve{streamID: streamID, values: values, replyCh: replyCh}
	result := <-replyCh
	return result.snapshot, result.err
}

// Snapshot returns the current frequency state of the stream.
func (e *Engine) Snapshot(streamID uuid.UUID) (*domain.TallySnapshot, error) {
	replyCh := make(chan observeResult, 1)
	e.cmdCh <- cmdSnapshot{streamID: streamID, replyCh: replyCh}
	result := <-replyCh
	return result.snapshot, result.err
}

// Top returns up to k values ordered by descending count.
func (e *Engine) Top(streamID uuid.UUID, k int) ([]domain.ValueCount, error) {
	replyCh := make(chan topResult, 1)
	e.cmdCh <- cmdTop{streamID: streamID, k: k, replyCh: replyCh}
	result := <-replyCh
	return result.entries, result.err
}

// Reset discards all observations of the stream.
func (e *Engine) Reset(streamID uuid.UUID) error {
	replyCh := make(chan error, 1)
	e.cmdCh <- cmdReset{streamID: streamID, replyCh: replyCh}
	return <-replyCh
}

// Delete removes all state for the stream.
func (e *Engine) Delete(streamID uuid.UUID) error {
	replyCh := make(chan error, 1)
	e.cmdCh <- cmdDelete{streamID: streamID, replyCh: replyCh}
	return <-replyCh
}

// Stop drains the actor and waits for it to exit.
func (e *Engine) Stop() {
	doneCh := make(chan struct{})
	e.cmdCh <- cmdStop{doneCh: doneCh}
	<-doneCh
}
