package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/whisper-net/internal/suggest"
)

// noDeadline clears a connection deadline when passed to SetWriteDeadline.
var noDeadline time.Time

// SuggestHandler streams question suggestions as plain text, one question
// per line, flushed as they arrive from the model.
type SuggestHandler struct {
	streamer suggest.Streamer // nil when no API key is configured
	logger   *slog.Logger
}

func NewSuggestHandler(streamer suggest.Streamer, logger *slog.Logger) *SuggestHandler {
	return &SuggestHandler{streamer: streamer, logger: logger}
}

// HandleSuggest relays one generation to the client.
//
// HTTP: POST /api/suggest-messages (public)
//
// Status codes only exist before the first byte: an upstream failure up
// front is a clean 502, but once streaming has started the 200 is committed
// and a mid-flight failure can only truncate the stream. The client treats
// whatever arrived as the complete suggestion list.
func (h *SuggestHandler) HandleSuggest(w http.ResponseWriter, r *http.Request) {
	if h.streamer == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error:   "unavailable",
			Message: "suggestions are not configured on this server",
		})
		return
	}

	// Model generations routinely outlive the server's write timeout;
	// lift the deadline for this response only.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(noDeadline); err != nil {
		h.logger.Warn("could not clear write deadline for suggestion stream", "error", err)
	}

	started := false
	err := h.streamer.Stream(r.Context(), func(segment string) error {
		if !started {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if _, err := w.Write([]byte(segment + "\n")); err != nil {
			return err
		}
		return rc.Flush()
	})
	if err != nil {
		if !started {
			writeError(w, err)
			return
		}
		// Headers are long gone; log and let the truncation stand.
		h.logger.Warn("suggestion stream ended early", "error", err)
	}
}
