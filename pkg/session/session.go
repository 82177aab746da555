package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/m1k1o/go-preview/pkg/source"
	"github.com/m1k1o/go-preview/pkg/transcode"
)

// Status is a read-only snapshot of one session.
type Status struct {
	ID          string    `json:"task_id"`
	Source      string    `json:"source"`
	State       State     `json:"state"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	LastFrameAt time.Time `json:"last_frame_at,omitempty"`
}

// SessionCtx binds one source and one encoder to a stable identifier
// and owns their lifecycle. The frame pump runs on its own goroutine so
// a slow or broken source never stalls other sessions; the source and
// encoder are touched by that goroutine only.
type SessionCtx struct {
	id         string
	descriptor source.Descriptor
	logger     zerolog.Logger

	source    source.Source
	encoder   *transcode.Encoder
	sink      *Sink
	collector Collector

	teardownTimeout time.Duration

	mu          sync.Mutex
	state       State
	reason      error
	createdAt   time.Time
	lastFrameAt time.Time
	endedAt     time.Time

	cancel context.CancelFunc
	done   chan struct{}
	stop   sync.Once
}

func newSession(id string, descriptor source.Descriptor, src source.Source, encoder *transcode.Encoder, teardownTimeout time.Duration) *SessionCtx {
	return &SessionCtx{
		id:         id,
		descriptor: descriptor,
		logger: log.With().
			Str("module", "session").
			Str("session_id", id).
			Logger(),
		source:          src,
		encoder:         encoder,
		sink:            NewSink(),
		collector:       nopCollector{},
		teardownTimeout: teardownTimeout,
		state:           StateStarting,
		createdAt:       time.Now(),
		done:            make(chan struct{}),
	}
}

func (s *SessionCtx) ID() string {
	return s.id
}

func (s *SessionCtx) Descriptor() source.Descriptor {
	return s.descriptor
}

func (s *SessionCtx) Sink() *Sink {
	return s.sink
}

// Source returns the session's source adapter. The caller must not
// close it, the session owns its lifecycle.
func (s *SessionCtx) Source() source.Source {
	return s.source
}

func (s *SessionCtx) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *SessionCtx) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		ID:          s.id,
		Source:      s.descriptor.String(),
		State:       s.state,
		CreatedAt:   s.createdAt,
		LastFrameAt: s.lastFrameAt,
	}
	if s.reason != nil {
		status.Error = s.reason.Error()
	}
	return status
}

// start launches the frame pump. Called exactly once by the registry.
func (s *SessionCtx) start() {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	go s.pump(ctx)
}

// pump opens the source and moves frames through the encoder into the
// sink until the session is stopped or the source dies. All resources
// are released exactly once, on every exit path.
func (s *SessionCtx) pump(ctx context.Context) {
	defer close(s.done)
	defer s.sink.Close()
	defer func() {
		if err := s.source.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("source close failed")
		}
	}()

	s.logger.Debug().Str("source", s.descriptor.String()).Msg("opening source")

	if err := s.source.Open(ctx); err != nil {
		if ctx.Err() != nil {
			// stop was requested while still connecting
			s.setState(StateStopped, nil)
			return
		}
		s.logger.Warn().Err(err).Msg("source open failed")
		s.setState(StateFailed, err)
		return
	}

	s.setState(StateStreaming, nil)
	s.logger.Info().Str("source", s.descriptor.String()).Msg("streaming")

	for {
		if ctx.Err() != nil {
			s.setState(StateStopped, nil)
			return
		}

		frame, err := s.source.NextFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.setState(StateStopped, nil)
				return
			}
			s.logger.Warn().Err(err).Msg("stream ended")
			s.setState(StateFailed, err)
			return
		}

		data, err := s.encoder.Encode(frame)
		if err != nil {
			s.logger.Warn().Err(err).Uint64("seq", frame.Seq).Msg("frame could not be encoded")
			s.setState(StateFailed, err)
			return
		}

		s.sink.Write(data, frame.Seq)
		s.collector.FrameEncoded()

		s.mu.Lock()
		s.lastFrameAt = frame.Timestamp
		s.mu.Unlock()

		if ctx.Err() != nil {
			s.setState(StateStopped, nil)
			return
		}
	}
}

// Stop cancels the pump cooperatively and waits for it to exit, bounded
// by the teardown timeout after which the source is closed by force so
// the registry stays live. Idempotent.
func (s *SessionCtx) Stop(ctx context.Context) {
	s.stop.Do(func() {
		s.mu.Lock()
		if !s.state.Terminal() {
			s.state = StateStopping
		}
		cancel := s.cancel
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
	})

	select {
	case <-s.done:
	case <-ctx.Done():
	case <-time.After(s.teardownTimeout):
		s.logger.Warn().Msg("pump did not exit in time, forcing source close")
		_ = s.source.Close()
	}
}

// setState makes a transition unless the session is already terminal,
// so a racing stop cannot resurrect a failed session.
func (s *SessionCtx) setState(state State, reason error) {
	s.mu.Lock()

	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}

	s.state = state
	if state.Terminal() {
		s.endedAt = time.Now()
	}
	if reason != nil && !errors.Is(reason, context.Canceled) {
		s.reason = reason
	}
	s.mu.Unlock()

	if state == StateFailed {
		s.collector.SessionFailed()
	}
}

// endedSince reports whether the session is terminal and since when.
func (s *SessionCtx) endedSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endedAt, s.state.Terminal()
}
