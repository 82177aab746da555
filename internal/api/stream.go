package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/m1k1o/go-preview/pkg/session"
	"github.com/m1k1o/go-preview/pkg/source"
)

// startStream creates a new RTSP session and returns its task id. The
// session connects in the background; failures are observable via the
// status endpoint, the caller is expected to re-issue start after
// correcting the URL.
func (a *ApiManagerCtx) startStream(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RtspURL string `json:"rtsp_url"`
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}

	if body.RtspURL == "" {
		writeError(w, http.StatusBadRequest, "rtsp_url must not be empty")
		return
	}

	s, err := a.registry.Create(source.RTSP(body.RtspURL))
	if err != nil {
		a.logger.Warn().Err(err).Msg("session could not be created")
		writeError(w, http.StatusInternalServerError, "session could not be created")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"task_id": s.ID(),
	})
}

func (a *ApiManagerCtx) serveStream(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	s, err := a.registry.Get(taskID)
	if err != nil || s.Descriptor().Kind != source.KindRTSP {
		writeError(w, http.StatusNotFound, "stream not found")
		return
	}

	a.serveMJPEG(w, r, s)
}

func (a *ApiManagerCtx) stopStream(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	if err := a.registry.Destroy(r.Context(), taskID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "stream not found")
			return
		}
		a.logger.Warn().Err(err).Str("task_id", taskID).Msg("stop failed")
		writeError(w, http.StatusInternalServerError, "stop failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("stream %s stopped successfully", taskID),
	})
}

// activeStreams returns the ids of all non-terminal sessions, the
// snapshot the front-end polls every few seconds.
func (a *ApiManagerCtx) activeStreams(w http.ResponseWriter, r *http.Request) {
	streams := []string{}
	for _, status := range a.registry.List() {
		if !status.State.Terminal() {
			streams = append(streams, status.ID)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"streams": streams,
	})
}

func (a *ApiManagerCtx) streamStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	s, err := a.registry.Get(taskID)
	if err != nil {
		writeError(w, http.StatusNotFound, "stream not found")
		return
	}

	writeJSON(w, http.StatusOK, s.Status())
}

// serveMJPEG streams successive frames of one session as a long-lived
// multipart response, the content type browsers render as a
// continuously replaced image. The response ends when the session
// leaves the streaming state or the client goes away.
func (a *ApiManagerCtx) serveMJPEG(w http.ResponseWriter, r *http.Request, s *session.SessionCtx) {
	if s.State().Terminal() {
		writeError(w, http.StatusNotFound, "stream already ended")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace;boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")

	var seq uint64
	for {
		data, next, err := s.Sink().Next(r.Context(), seq)
		if err != nil {
			// session ended or client disconnected
			return
		}
		seq = next

		if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data)); err != nil {
			return
		}
		if _, err := w.Write(data); err != nil {
			return
		}
		if _, err := io.WriteString(w, "\r\n"); err != nil {
			return
		}

		flusher.Flush()
	}
}
