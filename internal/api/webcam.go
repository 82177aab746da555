package api

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/gorilla/websocket"

	"github.com/m1k1o/go-preview/pkg/source"
)

const (
	// limit inbound socket messages, a base64 encoded full HD JPEG
	// stays well below this
	maxMessageSize = 8 << 20

	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// the server sits behind a reverse proxy that enforces origins
		return true
	},
}

// webcamFrame is one inbound socket message carrying a webcam frame.
type webcamFrame struct {
	Frame       string `json:"frame"`
	FrameNumber int    `json:"frameNumber"`
}

// serveWebcam streams the processed frames of a push-feed session back
// to the browser.
func (a *ApiManagerCtx) serveWebcam(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	s, err := a.registry.Get(taskID)
	if err != nil || s.Descriptor().Kind != source.KindPush {
		writeError(w, http.StatusNotFound, "stream not found")
		return
	}

	a.serveMJPEG(w, r, s)
}

// webcamStream upgrades the connection, creates a push-feed session
// tied to the socket lifetime and feeds inbound frames into it. The
// session is destroyed when the socket closes, for whatever reason.
func (a *ApiManagerCtx) webcamStream(w http.ResponseWriter, r *http.Request) {
	logger := a.logger.With().Str("submodule", "webcam").Logger()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	s, err := a.registry.Create(source.Push())
	if err != nil {
		logger.Warn().Err(err).Msg("session could not be created")
		return
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.registry.Destroy(ctx, s.ID())
	}()

	logger = logger.With().Str("session_id", s.ID()).Logger()

	feed, ok := s.Source().(interface{ Push([]byte) error })
	if !ok {
		logger.Error().Msg("session source does not accept pushed frames")
		return
	}

	// correlation token chosen by the client, only used for logs
	if token := r.URL.Query().Get("token"); token != "" {
		logger = logger.With().Str("token", token).Logger()
	}

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(map[string]string{"task_id": s.ID()}); err != nil {
		logger.Warn().Err(err).Msg("could not send task id")
		return
	}

	logger.Info().Msg("webcam feed connected")

	conn.SetReadLimit(maxMessageSize)

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		var msg webcamFrame
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}

		data, err := decodeFramePayload(msg.Frame)
		if err != nil {
			logger.Warn().Err(err).Int("frame_number", msg.FrameNumber).Msg("malformed frame payload")
			continue
		}

		if err := feed.Push(data); err != nil {
			// feed closed, the session ended underneath us
			logger.Debug().Err(err).Msg("feed closed")
			return
		}
	}
}

// decodeFramePayload decodes a base64 frame, tolerating the data URL
// prefix browsers emit for canvas captures.
func decodeFramePayload(payload string) ([]byte, error) {
	if idx := strings.IndexByte(payload, ','); idx != -1 && strings.HasPrefix(payload, "data:") {
		payload = payload[idx+1:]
	}
	return base64.StdEncoding.DecodeString(payload)
}
