package insightserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/anatolykoptev/go_insight/internal/engine"
)

// handleStream runs one analysis and streams its events as Server-Sent
// Events. Each pipeline event becomes one `data:` frame, flushed as it
// happens; the stream ends after the terminal frame. A client disconnect
// cancels the run between steps via the request context.
func (s *httpServer) handleStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := engine.InsightInput{
		URL:            q.Get("url"),
		TargetLanguage: q.Get("target_language"),
	}
	if in.URL == "" {
		writeError(w, http.StatusBadRequest, engine.CodeInternal, "url query parameter is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, engine.CodeInternal, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable proxy buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	sink := engine.NewSink(ctx, 64)
	go s.e.Run(ctx, in, sink)

	for ev := range sink.Events() {
		if err := writeSSE(w, ev); err != nil {
			slog.Debug("sse write failed, client gone", slog.Any("error", err))
			return
		}
		flusher.Flush()
	}
}

// writeSSE encodes one event as an SSE frame.
func writeSSE(w http.ResponseWriter, ev engine.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}
