package telemetry

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/eytandecker/telemetry-relay/internal/mavlink"
	"github.com/eytandecker/telemetry-relay/pkg/types"
)

// Message is one of the telemetry messages the dispatcher acts on:
// RawPosition or RawAttitude.
type Message interface {
	isMessage()
}

func (RawPosition) isMessage() {}
func (RawAttitude) isMessage() {}

// Classify maps a decoded packet onto a known message. ok is false for every
// other message id.
func Classify(pkt mavlink.Packet) (msg Message, ok bool) {
	f := pkt.Fields
	switch pkt.MsgID {
	case mavlink.MsgIDGlobalPositionInt:
		return RawPosition{
			Lat: int32(f["lat"]),
			Lon: int32(f["lon"]),
			Alt: int32(f["alt"]),
			VX:  int16(f["vx"]),
			VY:  int16(f["vy"]),
			Hdg: uint16(f["hdg"]),
		}, true
	case mavlink.MsgIDAttitude:
		return RawAttitude{
			Roll:  f["roll"],
			Pitch: f["pitch"],
			Yaw:   f["yaw"],
		}, true
	default:
		return nil, false
	}
}

// StateUpdater is implemented by state.Store.
// Defined here (consuming side) to avoid import cycles.
type StateUpdater interface {
	UpdatePosition(pos types.PositionState) int
	UpdateAttitude(att types.AttitudeState)
}

// Broadcaster is implemented by hub.Hub.
type Broadcaster interface {
	BroadcastPosition(pos types.PositionState, seq int)
	BroadcastAttitude(att types.AttitudeState)
}

// Dispatcher converts decoded packets, records them and announces them.
type Dispatcher struct {
	mu    sync.Mutex
	store StateUpdater
	hub   Broadcaster
}

// NewDispatcher creates a Dispatcher that writes to store and announces on hub.
func NewDispatcher(store StateUpdater, hub Broadcaster) *Dispatcher {
	return &Dispatcher{store: store, hub: hub}
}

// Dispatch handles one decoded packet. Unrecognised message ids are ignored.
// Calls are serialised so updates reach subscribers in the order they were
// dispatched.
func (d *Dispatcher) Dispatch(pkt mavlink.Packet) {
	msg, ok := Classify(pkt)
	if !ok {
		log.WithFields(log.Fields{"msgid": pkt.MsgID, "name": pkt.Name}).Trace("dispatch: ignoring message")
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch m := msg.(type) {
	case RawPosition:
		pos := ConvertPosition(m)
		log.WithFields(log.Fields{
			"lat":     pos.Latitude,
			"lon":     pos.Longitude,
			"alt":     pos.Altitude,
			"speed":   pos.GroundSpeed,
			"heading": pos.Heading,
		}).Debug("dispatch: global position")
		seq := d.store.UpdatePosition(pos)
		d.hub.BroadcastPosition(pos, seq)
	case RawAttitude:
		att := ConvertAttitude(m)
		log.WithFields(log.Fields{
			"roll":  att.Roll,
			"pitch": att.Pitch,
			"yaw":   att.Yaw,
		}).Debug("dispatch: attitude")
		d.store.UpdateAttitude(att)
		d.hub.BroadcastAttitude(att)
	}
}
