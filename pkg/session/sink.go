package session

import (
	"context"
	"errors"
	"sync"
)

// ErrSinkClosed is returned by Next once the owning session ended.
var ErrSinkClosed = errors.New("sink closed")

// Sink holds the latest encoded frame of one session and lets any
// number of readers wait for newer frames. Frames are published in
// capture order with strictly increasing sequence numbers; a slow
// reader skips frames, it never sees them reordered.
type Sink struct {
	mu     sync.Mutex
	data   []byte
	seq    uint64
	closed bool
	wake   chan struct{}
}

func NewSink() *Sink {
	return &Sink{
		wake: make(chan struct{}),
	}
}

// Write publishes a frame, replacing the previous one. Writes with a
// non-increasing sequence number are ignored.
func (s *Sink) Write(data []byte, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || seq <= s.seq {
		return
	}

	s.data = data
	s.seq = seq

	// wake all waiting readers
	close(s.wake)
	s.wake = make(chan struct{})
}

// Latest returns the most recent frame, or nil when none was published.
func (s *Sink) Latest() ([]byte, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data, s.seq
}

// Next blocks until a frame with a sequence number greater than after
// is available and returns it. It fails with ErrSinkClosed once the
// session ended and no newer frame will come.
func (s *Sink) Next(ctx context.Context, after uint64) ([]byte, uint64, error) {
	for {
		s.mu.Lock()
		if s.seq > after && s.data != nil {
			data, seq := s.data, s.seq
			s.mu.Unlock()
			return data, seq, nil
		}
		if s.closed {
			s.mu.Unlock()
			return nil, 0, ErrSinkClosed
		}
		wake := s.wake
		s.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		}
	}
}

// Close wakes all readers and marks the sink terminal. Idempotent.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.closed = true
	close(s.wake)
}
