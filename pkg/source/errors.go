package source

import "errors"

var (
	// ErrSourceUnavailable means the source could not be opened at all,
	// e.g. the capture process failed to launch or refused the URL.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrConnectTimeout means the source did not produce its first frame
	// within the configured connect timeout.
	ErrConnectTimeout = errors.New("connect timeout")

	// ErrStreamEnded means the peer closed the stream or the source went
	// idle; the session did not stop it.
	ErrStreamEnded = errors.New("stream ended")

	// ErrDecodeError means a frame payload could not be decoded.
	ErrDecodeError = errors.New("decode error")
)
