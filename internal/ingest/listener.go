package ingest

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/eytandecker/telemetry-relay/internal/mavlink"
	"github.com/eytandecker/telemetry-relay/pkg/types"
)

// maxDatagramSize covers the largest UDP payload.
const maxDatagramSize = 65535

// readPollInterval bounds how long a read blocks before the context is
// checked again.
const readPollInterval = 100 * time.Millisecond

// PacketHandler is implemented by telemetry.Dispatcher.
// Defined here (consuming side) to avoid import cycles.
type PacketHandler interface {
	Dispatch(pkt mavlink.Packet)
}

// Config holds listener settings.
type Config struct {
	Address       string
	ReadBuffer    int
	StatsInterval time.Duration
}

// Listener receives telemetry datagrams, splits them into MAVLink frames and
// hands every decoded packet to a PacketHandler, in arrival order.
type Listener struct {
	cfg     Config
	handler PacketHandler
	parser  *mavlink.Parser

	conn  *net.UDPConn
	ready chan struct{}

	datagrams uint64
	bytes     uint64
	packets   uint64
}

// NewListener creates a Listener. The socket is opened by Run.
func NewListener(cfg Config, handler PacketHandler) *Listener {
	if cfg.StatsInterval == 0 {
		cfg.StatsInterval = time.Minute
	}
	return &Listener{
		cfg:     cfg,
		handler: handler,
		parser:  mavlink.NewParser(mavlink.DefaultRegistry()),
		ready:   make(chan struct{}),
	}
}

// Ready is closed once the socket is bound.
func (l *Listener) Ready() <-chan struct{} {
	return l.ready
}

// Addr returns the bound address. Only valid after Ready is closed.
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Run binds the socket and processes datagrams until ctx is done. A socket
// failure ends ingest and is returned as a non-recoverable *types.IngestError.
func (l *Listener) Run(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.cfg.Address)
	if err != nil {
		return &types.IngestError{Err: err, Message: "resolve " + l.cfg.Address}
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return &types.IngestError{Err: err, Message: "listen on " + l.cfg.Address}
	}
	defer conn.Close()
	l.conn = conn

	if l.cfg.ReadBuffer > 0 {
		if err := conn.SetReadBuffer(l.cfg.ReadBuffer); err != nil {
			log.WithError(err).WithField("bytes", l.cfg.ReadBuffer).Warn("ingest: unable to set receive buffer size")
		}
	}

	log.WithField("addr", conn.LocalAddr().String()).Info("ingest: listening for telemetry")
	close(l.ready)

	buf := make([]byte, maxDatagramSize)
	lastStats := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			l.logStats()
			return err
		}
		if time.Since(lastStats) >= l.cfg.StatsInterval {
			l.logStats()
			lastStats = time.Now()
		}

		if err := conn.SetReadDeadline(time.Now().Add(readPollInterval)); err != nil {
			return &types.IngestError{Err: err, Message: "set read deadline"}
		}
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &types.IngestError{Err: err, Message: "read datagram"}
		}

		l.handleDatagram(buf[:n])
	}
}

func (l *Listener) handleDatagram(data []byte) {
	l.datagrams++
	l.bytes += uint64(len(data))
	for _, pkt := range l.parser.Write(data) {
		l.packets++
		l.handler.Dispatch(pkt)
	}
}

func (l *Listener) logStats() {
	ps := l.parser.Stats()
	log.WithFields(log.Fields{
		"datagrams":    l.datagrams,
		"bytes":        l.bytes,
		"packets":      l.packets,
		"bad_checksum": ps.BadChecksum,
		"unknown":      ps.Unknown,
		"discarded":    ps.DiscardedByte,
	}).Info("ingest: stats")
}
