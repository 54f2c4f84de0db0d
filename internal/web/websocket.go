package web

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/eytandecker/telemetry-relay/internal/hub"
)

// wsSink writes hub events as JSON text messages.
type wsSink struct {
	ctx     context.Context
	conn    *websocket.Conn
	timeout time.Duration
}

func (s *wsSink) Send(ev hub.Event) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	return errors.Wrapf(wsjson.Write(ctx, s.conn, ev), "write %s event", ev.Type)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.WithError(err).Debug("web: websocket accept failed")
		return
	}
	defer conn.CloseNow()

	// viewers never send anything; CloseRead handles control frames and
	// cancels ctx when the peer goes away
	ctx := conn.CloseRead(r.Context())

	if err := s.serveSubscriber(ctx, &wsSink{ctx: ctx, conn: conn, timeout: s.cfg.WriteTimeout}, "websocket"); err != nil {
		conn.Close(websocket.StatusTryAgainLater, "relay shutting down")
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}
