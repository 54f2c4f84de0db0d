package hub

import "github.com/eytandecker/telemetry-relay/pkg/types"

// EventType names an outward event.
type EventType string

const (
	EventStatus   EventType = "status"
	EventPath     EventType = "path"
	EventPosition EventType = "position"
	EventAttitude EventType = "attitude"
)

// Event is one message to a subscriber. Data is one of Status,
// []types.PathPoint, types.PositionState or types.AttitudeState.
type Event struct {
	Type EventType `json:"event"`
	Data any       `json:"data"`
}

// Status is the acknowledgement sent once at connect.
type Status struct {
	Message string `json:"message"`
}

func statusEvent(msg string) Event {
	return Event{Type: EventStatus, Data: Status{Message: msg}}
}

func pathEvent(path []types.PathPoint) Event {
	if path == nil {
		path = []types.PathPoint{}
	}
	return Event{Type: EventPath, Data: path}
}

// Sink delivers events to one connected viewer. Send is only ever called
// from a single goroutine per subscriber.
type Sink interface {
	Send(Event) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event) error

func (f SinkFunc) Send(ev Event) error { return f(ev) }
