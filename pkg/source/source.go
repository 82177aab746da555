package source

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// Kind tags the variant of a stream descriptor.
type Kind int

const (
	// KindRTSP pulls frames from a remote RTSP camera.
	KindRTSP Kind = iota
	// KindPush receives frames pushed over an inbound connection.
	KindPush
)

// Descriptor identifies a video source. It is immutable once a session
// has been created from it.
type Descriptor struct {
	Kind Kind
	URL  string // only set for KindRTSP
}

func RTSP(url string) Descriptor {
	return Descriptor{Kind: KindRTSP, URL: url}
}

func Push() Descriptor {
	return Descriptor{Kind: KindPush}
}

// String returns a loggable form of the descriptor with credentials
// stripped from RTSP URLs.
func (d Descriptor) String() string {
	switch d.Kind {
	case KindRTSP:
		if u, err := url.Parse(d.URL); err == nil && u.User != nil {
			u.User = url.User(u.User.Username())
			return u.String()
		}
		return d.URL
	case KindPush:
		return "webcam"
	default:
		return fmt.Sprintf("unknown(%d)", int(d.Kind))
	}
}

// Format of the pixel data carried by a frame.
type Format int

const (
	// FormatRGB24 is packed raw RGB, 3 bytes per pixel.
	FormatRGB24 Format = iota
	// FormatJPEG is a complete encoded JPEG image.
	FormatJPEG
)

// Frame is a single captured image. Frames are ephemeral: they are
// handed to the transcoder and replaced by the next one, never stored.
type Frame struct {
	Data      []byte
	Format    Format
	Width     int // raw formats only
	Height    int // raw formats only
	Seq       uint64
	Timestamp time.Time
}

// Source yields a sequence of frames from a single video source.
//
// Open establishes the source with a bounded timeout. NextFrame blocks
// until a frame is available, the context is cancelled or the source
// goes idle for too long. Close releases the source and is idempotent,
// also after a failed Open.
type Source interface {
	Open(ctx context.Context) error
	NextFrame(ctx context.Context) (*Frame, error)
	Close() error
}
