// Package insightserver exposes the analysis engine over two transports:
// an MCP server (synchronous media_insight tool) and a plain HTTP API
// with a Server-Sent Events progress stream.
package insightserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/anatolykoptev/go_insight/internal/engine"
)

type httpServer struct {
	e *engine.Engine
}

// NewHTTPServer builds the HTTP entry point. WriteTimeout stays zero:
// the SSE stream outlives any fixed response deadline and is bounded by
// the engine's run timeout instead.
func NewHTTPServer(e *engine.Engine, addr string) *http.Server {
	s := &httpServer{e: e}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/insight", s.handleInsight)
	mux.HandleFunc("GET /api/insight/stream", s.handleStream)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// handleInsight runs one analysis synchronously and returns the full
// result. Same engine path as the MCP tool.
func (s *httpServer) handleInsight(w http.ResponseWriter, r *http.Request) {
	var in engine.InsightInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, engine.CodeInternal, "invalid request body")
		return
	}
	if in.URL == "" {
		writeError(w, http.StatusBadRequest, engine.CodeInternal, "url is required")
		return
	}

	out, err := s.e.RunSync(r.Context(), in)
	if err != nil {
		code := engine.CodeOf(err)
		writeError(w, statusFor(code), code, engine.MessageOf(err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleHistory lists recent completed analyses.
func (s *httpServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	h := s.e.History()
	if h == nil {
		writeError(w, http.StatusNotFound, engine.CodeInternal, "history is not enabled")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	entries, err := h.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, engine.CodeInternal, "load history failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *httpServer) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.e.Metrics().Format(s.e.Cache())))
}

// statusFor maps terminal error codes onto HTTP statuses.
func statusFor(code engine.Code) int {
	switch code {
	case engine.CodeNotFound:
		return http.StatusNotFound
	case engine.CodeUnavailable:
		return http.StatusServiceUnavailable
	case engine.CodePolicyRejected:
		return http.StatusUnprocessableEntity
	case engine.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Code    engine.Code `json:"code"`
	Message string      `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code engine.Code, message string) {
	writeJSON(w, status, errorBody{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		slog.Debug("response write failed", slog.Any("error", err))
	}
}
