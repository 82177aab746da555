package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/m1k1o/go-preview/pkg/source"
	"github.com/m1k1o/go-preview/pkg/transcode"
)

// ErrNotFound is returned for operations on an unknown or already
// removed session id.
var ErrNotFound = errors.New("session not found")

// Collector receives session lifecycle events; the metrics
// implementation plugs in here.
type Collector interface {
	SessionCreated()
	SessionRemoved()
	SessionFailed()
	FrameEncoded()
}

type nopCollector struct{}

func (nopCollector) SessionCreated() {}
func (nopCollector) SessionRemoved() {}
func (nopCollector) SessionFailed() {}
func (nopCollector) FrameEncoded()  {}

// Config of the session registry.
type Config struct {
	// NewSource builds a source adapter for a descriptor.
	NewSource func(descriptor source.Descriptor) source.Source
	// Encoder shared by all sessions, stateless.
	Encoder *transcode.Encoder
	// Collector for lifecycle events, optional.
	Collector Collector

	// TeardownTimeout bounds how long a stop waits for the frame pump.
	TeardownTimeout time.Duration
	// RetainTerminal is how long failed sessions stay visible before
	// the janitor reaps them.
	RetainTerminal time.Duration
	// CleanupPeriod between janitor runs.
	CleanupPeriod time.Duration
	// Dedup makes Create return the existing live session for an RTSP
	// URL instead of a new independent one.
	Dedup bool
}

// RegistryCtx is the concurrent map of live sessions and the only
// structure shared between the delivery gateway and session pumps. A
// session id is never reused; terminal sessions are removed here, never
// by the session itself, so enumeration cannot race with teardown.
type RegistryCtx struct {
	logger    zerolog.Logger
	config    Config
	collector Collector

	mu       sync.Mutex
	sessions map[string]*SessionCtx

	shutdown chan struct{}
	janitor  sync.WaitGroup
}

func New(config Config) *RegistryCtx {
	collector := config.Collector
	if collector == nil {
		collector = nopCollector{}
	}

	r := &RegistryCtx{
		logger:    log.With().Str("module", "session").Str("submodule", "registry").Logger(),
		config:    config,
		collector: collector,
		sessions:  map[string]*SessionCtx{},
		shutdown:  make(chan struct{}),
	}

	if config.CleanupPeriod > 0 {
		r.janitor.Add(1)
		go r.runJanitor()
	}

	return r
}

// Create registers a new session for the descriptor and starts its
// frame pump. The id is registered before the pump runs, so a
// concurrent List never observes a half-initialized session.
func (r *RegistryCtx) Create(descriptor source.Descriptor) (*SessionCtx, error) {
	r.mu.Lock()

	if r.config.Dedup && descriptor.Kind == source.KindRTSP {
		for _, s := range r.sessions {
			if s.descriptor == descriptor && !s.State().Terminal() {
				r.mu.Unlock()
				return s, nil
			}
		}
	}

	id := uuid.NewString()
	s := newSession(id, descriptor, r.config.NewSource(descriptor), r.config.Encoder, r.config.TeardownTimeout)
	s.collector = r.collector
	r.sessions[id] = s
	r.mu.Unlock()

	r.collector.SessionCreated()
	s.start()

	r.logger.Info().
		Str("session_id", id).
		Str("source", descriptor.String()).
		Msg("session created")

	return s, nil
}

func (r *RegistryCtx) Get(id string) (*SessionCtx, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// List returns a snapshot of all registered sessions, including failed
// ones that still await destruction.
func (r *RegistryCtx) List() []Status {
	r.mu.Lock()
	sessions := make([]*SessionCtx, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	// Status takes the session lock, do not hold the registry lock here
	statuses := make([]Status, 0, len(sessions))
	for _, s := range sessions {
		statuses = append(statuses, s.Status())
	}
	return statuses
}

// Destroy removes the session and tears it down. A second call for the
// same id fails with ErrNotFound instead of blocking or panicking.
func (r *RegistryCtx) Destroy(ctx context.Context, id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}

	s.Stop(ctx)
	r.collector.SessionRemoved()

	r.logger.Info().Str("session_id", id).Msg("session destroyed")
	return nil
}

// Shutdown tears down all sessions and stops the janitor.
func (r *RegistryCtx) Shutdown(ctx context.Context) {
	close(r.shutdown)
	r.janitor.Wait()

	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_ = r.Destroy(ctx, id)
		}(id)
	}
	wg.Wait()
}

// runJanitor periodically reaps terminal sessions that nobody destroyed
// explicitly, keeping failures visible for the retention period first.
func (r *RegistryCtx) runJanitor() {
	defer r.janitor.Done()

	ticker := time.NewTicker(r.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-r.shutdown:
			return
		case <-ticker.C:
			r.reap()
		}
	}
}

func (r *RegistryCtx) reap() {
	r.mu.Lock()
	var stale []string
	for id, s := range r.sessions {
		if endedAt, terminal := s.endedSince(); terminal && time.Since(endedAt) > r.config.RetainTerminal {
			stale = append(stale, id)
		}
	}
	r.mu.Unlock()

	for _, id := range stale {
		ctx, cancel := context.WithTimeout(context.Background(), r.config.TeardownTimeout)
		if err := r.Destroy(ctx, id); err == nil {
			r.logger.Debug().Str("session_id", id).Msg("reaped terminal session")
		}
		cancel()
	}
}
