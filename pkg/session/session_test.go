package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/m1k1o/go-preview/pkg/source"
	"github.com/m1k1o/go-preview/pkg/transcode"
)

// stubSource is an in-memory source adapter for session tests.
type stubSource struct {
	openErr error
	frames  chan *source.Frame

	mu         sync.Mutex
	closeCount int

	done      chan struct{}
	closeOnce sync.Once
}

func newStubSource() *stubSource {
	return &stubSource{
		frames: make(chan *source.Frame, 16),
		done:   make(chan struct{}),
	}
}

func (s *stubSource) Open(ctx context.Context) error {
	if s.openErr != nil {
		return s.openErr
	}
	return ctx.Err()
}

func (s *stubSource) NextFrame(ctx context.Context) (*source.Frame, error) {
	select {
	case frame, ok := <-s.frames:
		if !ok {
			return nil, source.ErrStreamEnded
		}
		return frame, nil
	case <-s.done:
		return nil, source.ErrStreamEnded
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *stubSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})

	s.mu.Lock()
	s.closeCount++
	s.mu.Unlock()
	return nil
}

func (s *stubSource) closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCount > 0
}

// rawFrame returns a valid 2x2 RGB24 frame.
func rawFrame(seq uint64) *source.Frame {
	return &source.Frame{
		Data:      make([]byte, 2*2*3),
		Format:    source.FormatRGB24,
		Width:     2,
		Height:    2,
		Seq:       seq,
		Timestamp: time.Now(),
	}
}

func newTestRegistry(stub *stubSource) *RegistryCtx {
	return New(Config{
		NewSource: func(descriptor source.Descriptor) source.Source {
			return stub
		},
		Encoder:         transcode.NewEncoder(transcode.Config{Quality: 75}),
		TeardownTimeout: time.Second,
		RetainTerminal:  time.Minute,
	})
}

func waitForState(t *testing.T, s *SessionCtx, want State) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session state = %s, want %s", s.State(), want)
}

func TestSession_StreamsFramesInOrder(t *testing.T) {
	stub := newStubSource()
	registry := newTestRegistry(stub)
	defer registry.Shutdown(context.Background())

	s, err := registry.Create(source.RTSP("rtsp://cam/live"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	waitForState(t, s, StateStreaming)

	for i := uint64(1); i <= 3; i++ {
		stub.frames <- rawFrame(i)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var last uint64
	for i := 0; i < 3; i++ {
		_, seq, err := s.Sink().Next(ctx, last)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if seq <= last {
			t.Errorf("sequence not strictly increasing: %d after %d", seq, last)
		}
		last = seq
	}

	if err := registry.Destroy(context.Background(), s.ID()); err != nil {
		t.Fatalf("Destroy: %v", err)
	}

	if state := s.State(); state != StateStopped {
		t.Errorf("state after destroy = %s, want stopped", state)
	}
	if !stub.closed() {
		t.Error("source was not released")
	}
}

func TestSession_FailsWhenStreamEnds(t *testing.T) {
	stub := newStubSource()
	registry := newTestRegistry(stub)
	defer registry.Shutdown(context.Background())

	s, _ := registry.Create(source.RTSP("rtsp://cam/live"))
	waitForState(t, s, StateStreaming)

	// peer closes the stream
	close(stub.frames)

	waitForState(t, s, StateFailed)

	// failed sessions stay visible and destroyable
	if _, err := registry.Get(s.ID()); err != nil {
		t.Fatalf("failed session should still be registered: %v", err)
	}
	if err := registry.Destroy(context.Background(), s.ID()); err != nil {
		t.Fatalf("Destroy of failed session: %v", err)
	}
	if state := s.State(); state != StateFailed {
		t.Errorf("destroy must not mask the failure, state = %s", state)
	}
}

func TestSession_FailsWhenOpenFails(t *testing.T) {
	stub := newStubSource()
	stub.openErr = source.ErrConnectTimeout
	registry := newTestRegistry(stub)
	defer registry.Shutdown(context.Background())

	s, _ := registry.Create(source.RTSP("rtsp://unreachable/live"))

	waitForState(t, s, StateFailed)

	status := s.Status()
	if status.Error == "" {
		t.Error("failure reason should be recorded in status")
	}
	if !stub.closed() {
		t.Error("source must be released after failed open")
	}
}

func TestSession_FailsOnUndecodableFrame(t *testing.T) {
	stub := newStubSource()
	registry := newTestRegistry(stub)
	defer registry.Shutdown(context.Background())

	s, _ := registry.Create(source.RTSP("rtsp://cam/live"))
	waitForState(t, s, StateStreaming)

	stub.frames <- &source.Frame{
		Data:      []byte("garbage"),
		Format:    source.FormatJPEG,
		Seq:       1,
		Timestamp: time.Now(),
	}

	waitForState(t, s, StateFailed)
}

func TestSession_StopWhileConnecting(t *testing.T) {
	stub := newStubSource()
	block := make(chan struct{})
	registry := New(Config{
		NewSource: func(descriptor source.Descriptor) source.Source {
			return &blockingOpenSource{stubSource: stub, block: block}
		},
		Encoder:         transcode.NewEncoder(transcode.Config{Quality: 75}),
		TeardownTimeout: time.Second,
		RetainTerminal:  time.Minute,
	})
	defer registry.Shutdown(context.Background())
	defer close(block)

	s, _ := registry.Create(source.RTSP("rtsp://slow/live"))

	if err := registry.Destroy(context.Background(), s.ID()); err != nil {
		t.Fatalf("Destroy: %v", err)
	}

	if state := s.State(); state != StateStopped {
		t.Errorf("stop during connect should end stopped, got %s", state)
	}
}

type blockingOpenSource struct {
	*stubSource
	block chan struct{}
}

func (s *blockingOpenSource) Open(ctx context.Context) error {
	select {
	case <-s.block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestSession_SinkClosesOnFailure(t *testing.T) {
	stub := newStubSource()
	registry := newTestRegistry(stub)
	defer registry.Shutdown(context.Background())

	s, _ := registry.Create(source.RTSP("rtsp://cam/live"))
	waitForState(t, s, StateStreaming)

	close(stub.frames)
	waitForState(t, s, StateFailed)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, _, err := s.Sink().Next(ctx, 0); !errors.Is(err, ErrSinkClosed) {
		t.Errorf("sink should be closed after failure, got %v", err)
	}
}
