package source

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/m1k1o/go-preview/internal/utils"
)

// RTSPConfig tunes the capture process of a single RTSP source.
type RTSPConfig struct {
	// FFmpegBinary is the path to the ffmpeg executable.
	FFmpegBinary string
	// Width and Height of the scaled output frames.
	Width  int
	Height int
	// FPS limits the capture frame rate.
	FPS int
	// QueueSize bounds the inbound frame queue; the oldest frame is
	// dropped when the pump does not keep up.
	QueueSize int
	// ConnectTimeout bounds how long Open waits for the first frame.
	ConnectTimeout time.Duration
	// IdleTimeout after which a silent source is reported as ended.
	IdleTimeout time.Duration
}

// RTSPSourceCtx captures raw frames from an RTSP camera by piping it
// through an ffmpeg subprocess scaled to a fixed resolution.
type RTSPSourceCtx struct {
	logger zerolog.Logger
	config RTSPConfig
	url    string

	mu     sync.Mutex
	cmd    *exec.Cmd
	err    error
	opened bool

	frames   chan *Frame
	pending  *Frame
	procExit chan struct{}
	close    sync.Once
}

func NewRTSP(url string, config RTSPConfig) *RTSPSourceCtx {
	return &RTSPSourceCtx{
		logger:   log.With().Str("module", "source").Str("submodule", "rtsp").Logger(),
		config:   config,
		url:      url,
		frames:   make(chan *Frame, config.QueueSize),
		procExit: make(chan struct{}),
	}
}

// Open launches the capture process and waits for the first frame. It
// fails with ErrSourceUnavailable when the process cannot be started or
// exits before producing any data, and with ErrConnectTimeout when no
// frame arrives within the connect timeout.
func (s *RTSPSourceCtx) Open(ctx context.Context) error {
	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-rtsp_transport", "tcp",
		"-i", s.url,
		"-vf", fmt.Sprintf("fps=%d,scale=%d:%d", s.config.FPS, s.config.Width, s.config.Height),
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-an",
		"-",
	}

	cmd := exec.Command(s.config.FFmpegBinary, args...)
	cmd.Stderr = utils.LogWriter(s.logger)
	cmd.SysProcAttr = configureAsProcessGroup()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.opened = true
	s.mu.Unlock()

	go s.readFrames(stdout)

	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		if s.err == nil {
			s.err = err
		}
		s.mu.Unlock()
		close(s.procExit)
	}()

	// the capture is connected once the first frame shows up
	select {
	case frame, ok := <-s.frames:
		if !ok {
			_ = s.Close()
			return fmt.Errorf("%w: capture exited before first frame", ErrSourceUnavailable)
		}
		// keep the frame for the first NextFrame call
		s.pending = frame
		return nil
	case <-s.procExit:
		_ = s.Close()
		return fmt.Errorf("%w: capture exited before first frame", ErrSourceUnavailable)
	case <-ctx.Done():
		_ = s.Close()
		return ctx.Err()
	case <-time.After(s.config.ConnectTimeout):
		_ = s.Close()
		return ErrConnectTimeout
	}
}

// readFrames reads fixed-size raw frames from the capture stdout and
// queues them, dropping the oldest frame when the queue is full.
func (s *RTSPSourceCtx) readFrames(stdout io.Reader) {
	defer close(s.frames)

	frameSize := s.config.Width * s.config.Height * 3
	var seq uint64

	for {
		data := make([]byte, frameSize)
		if _, err := io.ReadFull(stdout, data); err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				s.logger.Warn().Err(err).Msg("frame read failed")
			}
			return
		}

		seq++
		frame := &Frame{
			Data:      data,
			Format:    FormatRGB24,
			Width:     s.config.Width,
			Height:    s.config.Height,
			Seq:       seq,
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
	}
}

func (s *RTSPSourceCtx) NextFrame(ctx context.Context) (*Frame, error) {
	if frame := s.pending; frame != nil {
		s.pending = nil
		return frame, nil
	}

	// zero timeout means no idle limit, a nil channel never fires
	var idle <-chan time.Time
	if s.config.IdleTimeout > 0 {
		idle = time.After(s.config.IdleTimeout)
	}

	select {
	case frame, ok := <-s.frames:
		if !ok {
			return nil, ErrStreamEnded
		}
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-idle:
		return nil, fmt.Errorf("%w: no frame within %s", ErrStreamEnded, s.config.IdleTimeout)
	}
}

// Close kills the capture process group and is safe to call multiple
// times, also when Open never succeeded.
func (s *RTSPSourceCtx) Close() error {
	s.close.Do(func() {
		s.mu.Lock()
		cmd := s.cmd
		s.mu.Unlock()

		if cmd == nil || cmd.Process == nil {
			return
		}

		killProcessGroup(cmd, s.logger)

		select {
		case <-s.procExit:
		case <-time.After(2 * time.Second):
			s.logger.Warn().Msg("capture did not exit after kill")
		}
	})

	return nil
}
