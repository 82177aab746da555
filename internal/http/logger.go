package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/rs/zerolog"
)

type logformatter struct {
	logger zerolog.Logger
}

func (l *logformatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	req := map[string]interface{}{}

	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		req["id"] = reqID
	}

	req["scheme"] = "http"
	if r.TLS != nil {
		req["scheme"] = "https"
	}

	req["proto"] = r.Proto
	req["method"] = r.Method
	req["remote"] = r.RemoteAddr
	req["agent"] = r.UserAgent()
	req["uri"] = r.RequestURI

	return &logentry{
		logger: l.logger.With().Fields(req).Logger(),
	}
}

type logentry struct {
	logger zerolog.Logger
}

func (e *logentry) Write(status, bytes int, header http.Header, elapsed time.Duration, extra interface{}) {
	e.logger.Debug().
		Int("status", status).
		Int("bytes", bytes).
		Dur("elapsed", elapsed).
		Msg("request complete")
}

func (e *logentry) Panic(v interface{}, stack []byte) {
	e.logger.Error().
		Interface("panic", v).
		Bytes("stack", stack).
		Msg("request panicked")
}
