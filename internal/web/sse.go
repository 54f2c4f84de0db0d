package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/eytandecker/telemetry-relay/internal/hub"
)

// sseSink writes hub events as Server-Sent Events. Every write carries a
// deadline so a viewer that stops reading fails the send instead of
// stalling its delivery goroutine.
type sseSink struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	rc      *http.ResponseController
	timeout time.Duration
}

func (s *sseSink) Send(ev hub.Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return errors.Wrapf(err, "marshal %s event", ev.Type)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Wrapf(s.write(func() error {
		_, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", ev.Type, data)
		return err
	}), "write %s event", ev.Type)
}

// write requires s.mu held.
func (s *sseSink) write(fn func() error) error {
	if err := s.rc.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
		return errors.Wrap(err, "set write deadline")
	}
	if err := fn(); err != nil {
		return err
	}
	return s.rc.Flush()
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx
	w.WriteHeader(http.StatusOK)

	sink := &sseSink{w: w, rc: http.NewResponseController(w), timeout: s.cfg.WriteTimeout}
	sink.mu.Lock()
	err := sink.write(func() error {
		_, err := w.Write([]byte(": ping\n\n"))
		return err
	})
	sink.mu.Unlock()
	if err != nil {
		log.WithError(err).Debug("web: sse client gone before subscribe")
		return
	}

	if err := s.serveSubscriber(r.Context(), sink, "sse"); err != nil {
		log.WithError(err).Warn("web: sse subscribe failed")
	}
}
