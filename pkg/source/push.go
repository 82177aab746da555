package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PushConfig tunes the inbound queue of a push-feed source.
type PushConfig struct {
	// QueueSize bounds the inbound frame queue; the oldest frame is
	// dropped when the pump does not keep up.
	QueueSize int
	// IdleTimeout after which a silent feed is reported as ended.
	IdleTimeout time.Duration
}

// PushSourceCtx is a source fed by an external writer, typically a
// websocket handler pushing webcam frames. Pushed payloads must be
// complete JPEG images.
type PushSourceCtx struct {
	logger zerolog.Logger
	config PushConfig

	mu  sync.Mutex
	seq uint64

	frames chan *Frame
	done   chan struct{}
	close  sync.Once
}

func NewPush(config PushConfig) *PushSourceCtx {
	return &PushSourceCtx{
		logger: log.With().Str("module", "source").Str("submodule", "push").Logger(),
		config: config,
		frames: make(chan *Frame, config.QueueSize),
		done:   make(chan struct{}),
	}
}

// Open is a no-op for push feeds, the inbound queue is allocated at
// construction time.
func (s *PushSourceCtx) Open(ctx context.Context) error {
	select {
	case <-s.done:
		return ErrSourceUnavailable
	default:
		return nil
	}
}

// Push queues one frame to be consumed by NextFrame. The oldest queued
// frame is dropped when the queue is full. Push fails once the feed has
// been closed.
func (s *PushSourceCtx) Push(data []byte) error {
	select {
	case <-s.done:
		return ErrStreamEnded
	default:
	}

	s.mu.Lock()
	s.seq++
	frame := &Frame{
		Data:      data,
		Format:    FormatJPEG,
		Seq:       s.seq,
		Timestamp: time.Now(),
	}

	select {
	case s.frames <- frame:
	default:
		// queue full, drop the oldest frame
		select {
		case <-s.frames:
		default:
		}
		s.frames <- frame
	}
	s.mu.Unlock()

	return nil
}

func (s *PushSourceCtx) NextFrame(ctx context.Context) (*Frame, error) {
	// zero timeout means no idle limit, a nil channel never fires
	var idle <-chan time.Time
	if s.config.IdleTimeout > 0 {
		idle = time.After(s.config.IdleTimeout)
	}

	select {
	case frame := <-s.frames:
		return frame, nil
	case <-s.done:
		// drain frames pushed before the feed was closed
		select {
		case frame := <-s.frames:
			return frame, nil
		default:
		}
		return nil, ErrStreamEnded
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-idle:
		return nil, fmt.Errorf("%w: no frame within %s", ErrStreamEnded, s.config.IdleTimeout)
	}
}

// Close ends the feed. It is idempotent and pending frames are still
// delivered to NextFrame before ErrStreamEnded is reported.
func (s *PushSourceCtx) Close() error {
	s.close.Do(func() {
		close(s.done)
	})
	return nil
}
