package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/m1k1o/go-preview/pkg/session"
)

type ApiManagerCtx struct {
	logger   zerolog.Logger
	registry *session.RegistryCtx
}

func New(registry *session.RegistryCtx) *ApiManagerCtx {
	return &ApiManagerCtx{
		logger:   log.With().Str("module", "api").Logger(),
		registry: registry,
	}
}

func (a *ApiManagerCtx) Mount(r *chi.Mux) {
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		//nolint
		w.Write([]byte("pong"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/stream/start", a.startStream)
		r.Get("/stream/{taskID}", a.serveStream)
		r.Post("/stop-stream/{taskID}", a.stopStream)
		r.Get("/active-streams", a.activeStreams)
		r.Get("/streams/{taskID}/status", a.streamStatus)

		r.Get("/webcam/{taskID}", a.serveWebcam)
		r.Get("/webcam-stream", a.webcamStream)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	writeJSON(w, status, map[string]string{
		"error": fmt.Sprintf(format, args...),
	})
}
