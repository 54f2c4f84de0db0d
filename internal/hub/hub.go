// Package hub fans telemetry updates out to connected viewers.
//
// Every subscriber owns a bounded queue drained by its own goroutine, so a
// slow or failed viewer never blocks the ingest path or other viewers. When
// a queue is full the newest event for that viewer is dropped. Joins and
// broadcasts are serialised by one mutex; together with the path length
// recorded at join time this guarantees that an update already contained in
// a viewer's join snapshot is never delivered to it again.
package hub

import (
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/eytandecker/telemetry-relay/pkg/types"
)

// PathSource is implemented by state.Store.
type PathSource interface {
	SnapshotPath() []types.PathPoint
}

// Config holds hub settings.
type Config struct {
	QueueSize     int
	StatusMessage string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{QueueSize: 64, StatusMessage: "Connected to server."}
}

type subscriber struct {
	id       string
	sink     Sink
	queue    chan Event
	gone     chan struct{}
	finished chan struct{}
	// path length contained in the join snapshot
	joinedAt int
	dropped  uint64
}

// Subscription is the handle returned by Join.
type Subscription struct {
	ID       string
	finished <-chan struct{}
}

// Done is closed once the subscriber's delivery goroutine has exited,
// after which its Sink is no longer used.
func (s *Subscription) Done() <-chan struct{} {
	return s.finished
}

// Hub tracks subscribers and delivers events to them.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]*subscriber
	paths  PathSource
	cfg    Config
	closed bool
}

// New creates a Hub that replays paths from src to joining subscribers.
func New(src PathSource, cfg Config) *Hub {
	if cfg.QueueSize < 2 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	return &Hub{
		subs:  make(map[string]*subscriber),
		paths: src,
		cfg:   cfg,
	}
}

// Join registers sink and queues the status acknowledgement followed by the
// current path ahead of any live event.
func (h *Hub) Join(sink Sink) (*Subscription, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}

	path := h.paths.SnapshotPath()
	sub := &subscriber{
		id:       uuid.NewString(),
		sink:     sink,
		queue:    make(chan Event, h.cfg.QueueSize),
		gone:     make(chan struct{}),
		finished: make(chan struct{}),
		joinedAt: len(path),
	}
	sub.queue <- statusEvent(h.cfg.StatusMessage)
	sub.queue <- pathEvent(path)
	h.subs[sub.id] = sub
	count := len(h.subs)
	h.mu.Unlock()

	go h.pump(sub)

	log.WithFields(log.Fields{
		"subscriber":  sub.id,
		"path_len":    sub.joinedAt,
		"subscribers": count,
	}).Info("hub: subscriber connected")
	return &Subscription{ID: sub.id, finished: sub.finished}, nil
}

// Leave removes a subscriber. Calling it for an unknown or already removed
// id is a no-op.
func (h *Hub) Leave(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
		close(sub.gone)
	}
	count := len(h.subs)
	h.mu.Unlock()

	if ok {
		log.WithFields(log.Fields{
			"subscriber":  id,
			"dropped":     sub.dropped,
			"subscribers": count,
		}).Info("hub: subscriber disconnected")
	}
}

// BroadcastPosition delivers a position update and the full path to every
// subscriber. seq is the path length after this update, as returned by
// state.Store.UpdatePosition; subscribers whose join snapshot already
// contains it are skipped.
func (h *Hub) BroadcastPosition(pos types.PositionState, seq int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.subs) == 0 {
		return
	}

	posEv := Event{Type: EventPosition, Data: pos}
	pathEv := pathEvent(h.paths.SnapshotPath())
	for _, sub := range h.subs {
		if seq <= sub.joinedAt {
			continue
		}
		h.enqueue(sub, posEv)
		h.enqueue(sub, pathEv)
	}
}

// BroadcastAttitude delivers an attitude update to every subscriber.
func (h *Hub) BroadcastAttitude(att types.AttitudeState) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ev := Event{Type: EventAttitude, Data: att}
	for _, sub := range h.subs {
		h.enqueue(sub, ev)
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber and rejects further joins.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.gone)
	}
}

// enqueue requires h.mu held.
func (h *Hub) enqueue(sub *subscriber, ev Event) {
	select {
	case sub.queue <- ev:
	default:
		// queue full, skip so as not to block the ingest path
		sub.dropped++
		log.WithFields(log.Fields{"subscriber": sub.id, "event": ev.Type}).Debug("hub: queue full, event dropped")
	}
}

func (h *Hub) pump(sub *subscriber) {
	defer close(sub.finished)
	for {
		select {
		case <-sub.gone:
			return
		case ev := <-sub.queue:
			if err := sub.sink.Send(ev); err != nil {
				log.WithFields(log.Fields{"subscriber": sub.id, "event": ev.Type}).
					WithError(err).Warn("hub: delivery failed, dropping subscriber")
				h.Leave(sub.id)
				return
			}
		}
	}
}
