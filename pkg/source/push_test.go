package source

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestPush(queueSize int) *PushSourceCtx {
	return NewPush(PushConfig{
		QueueSize:   queueSize,
		IdleTimeout: time.Second,
	})
}

func TestPushSource_FramesInOrder(t *testing.T) {
	s := newTestPush(10)
	defer s.Close()

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := s.Push([]byte{byte(i)}); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}

	var last uint64
	for i := 0; i < 5; i++ {
		frame, err := s.NextFrame(context.Background())
		if err != nil {
			t.Fatalf("NextFrame: %v", err)
		}
		if frame.Seq <= last {
			t.Errorf("sequence not strictly increasing: %d after %d", frame.Seq, last)
		}
		if frame.Format != FormatJPEG {
			t.Errorf("unexpected format %d", frame.Format)
		}
		last = frame.Seq
	}
}

func TestPushSource_DropsOldestWhenFull(t *testing.T) {
	s := newTestPush(2)
	defer s.Close()

	for i := 0; i < 3; i++ {
		if err := s.Push([]byte{byte(i)}); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}

	frame, err := s.NextFrame(context.Background())
	if err != nil {
		t.Fatalf("NextFrame: %v", err)
	}
	if frame.Seq != 2 {
		t.Errorf("expected oldest frame dropped, got seq %d want 2", frame.Seq)
	}

	frame, err = s.NextFrame(context.Background())
	if err != nil {
		t.Fatalf("NextFrame: %v", err)
	}
	if frame.Seq != 3 {
		t.Errorf("got seq %d want 3", frame.Seq)
	}
}

func TestPushSource_CloseIsIdempotent(t *testing.T) {
	s := newTestPush(2)

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if err := s.Push([]byte{1}); !errors.Is(err, ErrStreamEnded) {
		t.Errorf("Push after close: got %v want ErrStreamEnded", err)
	}

	if err := s.Open(context.Background()); !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("Open after close: got %v want ErrSourceUnavailable", err)
	}
}

func TestPushSource_DrainsPendingFramesAfterClose(t *testing.T) {
	s := newTestPush(4)

	if err := s.Push([]byte{1}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	_ = s.Close()

	if _, err := s.NextFrame(context.Background()); err != nil {
		t.Fatalf("pending frame should still be delivered: %v", err)
	}

	if _, err := s.NextFrame(context.Background()); !errors.Is(err, ErrStreamEnded) {
		t.Errorf("got %v want ErrStreamEnded", err)
	}
}

func TestPushSource_NextFrameHonorsContext(t *testing.T) {
	s := newTestPush(2)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.NextFrame(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v want context.Canceled", err)
	}
}

func TestPushSource_NextFrameIdleTimeout(t *testing.T) {
	s := NewPush(PushConfig{QueueSize: 2, IdleTimeout: 10 * time.Millisecond})
	defer s.Close()

	if _, err := s.NextFrame(context.Background()); !errors.Is(err, ErrStreamEnded) {
		t.Errorf("got %v want ErrStreamEnded", err)
	}
}
