// Package control exposes the dictation pipeline over HTTP.
//
// The server offers a small JSON control API for session lifecycle and
// history, a duplex WebSocket endpoint that accepts raw PCM audio and streams
// pipeline events back, Prometheus metrics, and liveness/readiness probes.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/voxtype/internal/config"
	"github.com/MrWong99/voxtype/internal/health"
	"github.com/MrWong99/voxtype/internal/history"
	"github.com/MrWong99/voxtype/internal/observe"
	"github.com/MrWong99/voxtype/internal/session"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500

	// wsWriteTimeout bounds a single event write to a stream client.
	wsWriteTimeout = 5 * time.Second
)

// Server is the HTTP front of the voxtype daemon. It owns no pipeline state;
// all dictation work is delegated to the coordinator.
type Server struct {
	cfg         config.ServerConfig
	coord       *session.Coordinator
	store       history.Store
	broadcaster *Broadcaster
	recentLimit int

	httpServer *http.Server
}

// Option configures optional Server collaborators.
type Option func(*Server)

// WithHistoryStore enables the /v1/history endpoint backed by s.
func WithHistoryStore(s history.Store, recentLimit int) Option {
	return func(srv *Server) {
		srv.store = s
		if recentLimit > 0 {
			srv.recentLimit = recentLimit
		}
	}
}

// NewServer creates a Server for the given coordinator. The provided checkers
// are evaluated by the readiness probe; metrics middleware is applied to every
// route when m is non-nil.
func NewServer(cfg config.ServerConfig, coord *session.Coordinator, m *observe.Metrics, checkers []health.Checker, opts ...Option) *Server {
	srv := &Server{
		cfg:         cfg,
		coord:       coord,
		broadcaster: NewBroadcaster(coord.Events()),
		recentLimit: defaultRecentLimit,
	}
	for _, o := range opts {
		o(srv)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/session/start", srv.handleStart)
	mux.HandleFunc("POST /v1/session/stop", srv.handleStop)
	mux.HandleFunc("GET /v1/session", srv.handleStatus)
	mux.HandleFunc("GET /v1/history", srv.handleHistory)
	mux.HandleFunc("GET /v1/stream", srv.handleStream)
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(checkers...).Register(mux)

	srv.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           observe.Middleware(m)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv
}

// Handler returns the server's root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe runs the HTTP server until Shutdown is called. TLS is used
// when certificate paths are configured.
func (s *Server) ListenAndServe() error {
	if s.cfg.TLS != nil {
		slog.Info("control server listening", "addr", s.cfg.ListenAddr, "tls", true)
		return s.httpServer.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
	}
	slog.Info("control server listening", "addr", s.cfg.ListenAddr, "tls", false)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ── Session lifecycle ─────────────────────────────────────────────────────────

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.Start(r.Context()); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": true})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.Stop(r.Context()); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": false})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"active": s.coord.Active()})
}

// writeSessionError maps a coordinator error to a status code: state
// conflicts are 409, everything else 500.
func writeSessionError(w http.ResponseWriter, err error) {
	var serr *session.SessionStateError
	if errors.As(err, &serr) {
		writeJSON(w, http.StatusConflict, map[string]any{"error": serr.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
}

// ── History ───────────────────────────────────────────────────────────────────

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "history is not configured"})
		return
	}

	limit := s.recentLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": fmt.Sprintf("invalid limit %q", q)})
			return
		}
		limit = min(n, maxRecentLimit)
	}

	utterances, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		observe.Logger(r.Context()).Error("history query failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "history query failed"})
		return
	}
	if utterances == nil {
		utterances = []history.Utterance{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"utterances": utterances})
}

// ── Stream ────────────────────────────────────────────────────────────────────

// handleStream upgrades to a WebSocket carrying both directions of the
// dictation session: binary messages from the client are raw 16-bit
// little-endian mono PCM fed to the pipeline, and every pipeline event is
// pushed to the client as a JSON text message.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		observe.Logger(r.Context()).Warn("websocket accept failed", "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, unsubscribe := s.broadcaster.Subscribe()
	defer unsubscribe()

	// Writer: pipeline events out to the client.
	writeDone := make(chan error, 1)
	go func() {
		for ev := range events {
			payload, err := json.Marshal(ev)
			if err != nil {
				writeDone <- fmt.Errorf("control: marshal event: %w", err)
				return
			}
			wctx, wcancel := context.WithTimeout(ctx, wsWriteTimeout)
			err = conn.Write(wctx, websocket.MessageText, payload)
			wcancel()
			if err != nil {
				writeDone <- err
				return
			}
		}
		writeDone <- nil
	}()

	// Reader: audio in from the client. Text messages are ignored so clients
	// may send pings or annotations without breaking the stream.
	readDone := make(chan error, 1)
	go func() {
		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				readDone <- err
				return
			}
			if typ != websocket.MessageBinary {
				continue
			}
			if err := s.coord.PushAudio(data); err != nil {
				var serr *session.SessionStateError
				if errors.As(err, &serr) {
					// No active session yet; the client may start one later
					// over the control API.
					continue
				}
				readDone <- err
				return
			}
		}
	}()

	select {
	case err := <-readDone:
		if err != nil && websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
			observe.Logger(ctx).Warn("stream read ended", "err", err)
		}
	case err := <-writeDone:
		if err != nil && websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
			observe.Logger(ctx).Warn("stream write ended", "err", err)
		}
	case <-ctx.Done():
	}

	conn.Close(websocket.StatusNormalClosure, "")
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("control: response encode failed", "err", err)
	}
}
