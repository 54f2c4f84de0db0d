// Package web serves the dashboard, the live subscriber transports and the
// read-only state endpoints.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/eytandecker/telemetry-relay/internal/hub"
	"github.com/eytandecker/telemetry-relay/internal/state"
	"github.com/eytandecker/telemetry-relay/pkg/types"
)

const (
	shutdownTimeout     = 10 * time.Second
	defaultWriteTimeout = 5 * time.Second
)

// Subscriber is the subset of hub.Hub used by the live transports.
type Subscriber interface {
	Join(sink hub.Sink) (*hub.Subscription, error)
	Leave(id string)
	Count() int
}

// StateReader is implemented by state.Store.
type StateReader interface {
	Snapshot() (state.Snapshot, error)
}

// Config holds HTTP settings.
type Config struct {
	Addr      string
	StaticDir string
	// WriteTimeout bounds each event write to a subscriber. A viewer that
	// stops reading is dropped once it expires.
	WriteTimeout time.Duration
}

// Server is the relay's HTTP front end.
type Server struct {
	cfg   Config
	hub   Subscriber
	state StateReader
	mcp   http.Handler
}

// NewServer creates a Server. mcpHandler may be nil, in which case /mcp is
// not registered.
func NewServer(cfg Config, h Subscriber, sr StateReader, mcpHandler http.Handler) *Server {
	if cfg.StaticDir == "" {
		cfg.StaticDir = "public"
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	return &Server{cfg: cfg, hub: h, state: sr, mcp: mcpHandler}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /api/telemetry", s.handleTelemetry)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.mcp != nil {
		mux.Handle("/mcp", s.mcp)
	}
	mux.Handle("/", http.FileServer(http.Dir(s.cfg.StaticDir)))
	return mux
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.cfg.Addr)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", ln.Addr().String()).Info("web: serving dashboard")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "http serve")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "http shutdown")
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http serve")
	}
	return nil
}

// serveSubscriber joins sink to the hub and holds the request open until
// the client goes away or the hub drops the subscriber. The sink is not
// used after it returns.
func (s *Server) serveSubscriber(ctx context.Context, sink hub.Sink, transport string) error {
	sub, err := s.hub.Join(sink)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"subscriber": sub.ID, "transport": transport}).Debug("web: subscriber attached")

	select {
	case <-ctx.Done():
	case <-sub.Done():
	}
	s.hub.Leave(sub.ID)
	<-sub.Done()
	return nil
}

// telemetryResponse is the body of GET /api/telemetry.
type telemetryResponse struct {
	Position    types.PositionState `json:"position"`
	Attitude    types.AttitudeState `json:"attitude"`
	Path        []types.PathPoint   `json:"path"`
	LastUpdated *time.Time          `json:"last_updated,omitempty"`
	Stale       bool                `json:"stale"`
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	snap, err := s.state.Snapshot()
	if err != nil && !errors.Is(err, state.ErrStale) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	resp := telemetryResponse{
		Position: snap.Position,
		Attitude: snap.Attitude,
		Path:     snap.Path,
		Stale:    err != nil,
	}
	if resp.Path == nil {
		resp.Path = []types.PathPoint{}
	}
	if !snap.LastUpdated.IsZero() {
		ts := snap.LastUpdated.UTC()
		resp.LastUpdated = &ts
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"subscribers": s.hub.Count(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("web: write response")
	}
}
