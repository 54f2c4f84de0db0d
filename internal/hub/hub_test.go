package hub

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eytandecker/telemetry-relay/internal/state"
	"github.com/eytandecker/telemetry-relay/pkg/types"
)

// recordingSink captures delivered events for assertion.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
	fail   func(Event) bool
	block  chan struct{}
}

func (r *recordingSink) Send(ev Event) error {
	if r.block != nil {
		<-r.block
	}
	if r.fail != nil && r.fail(ev) {
		return errors.New("connection reset")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recordingSink) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func position(i int) types.PositionState {
	return types.PositionState{Latitude: float64(i), Longitude: float64(-i), Heading: 90}
}

// publishPosition mirrors what the dispatcher does for one position update.
func publishPosition(s *state.Store, h *Hub, pos types.PositionState) {
	h.BroadcastPosition(pos, s.UpdatePosition(pos))
}

func waitForEvents(t *testing.T, sink *recordingSink, n int) []Event {
	t.Helper()
	require.Eventually(t, func() bool { return sink.Len() >= n },
		2*time.Second, 5*time.Millisecond, "expected %d events", n)
	return sink.Events()
}

func TestJoinSendsStatusThenPath(t *testing.T) {
	s := state.NewStore(0)
	h := New(s, DefaultConfig())
	for i := 0; i < 3; i++ {
		publishPosition(s, h, position(i))
	}

	sink := &recordingSink{}
	_, err := h.Join(sink)
	require.NoError(t, err)

	evs := waitForEvents(t, sink, 2)
	assert.Equal(t, EventStatus, evs[0].Type)
	assert.Equal(t, Status{Message: "Connected to server."}, evs[0].Data)
	assert.Equal(t, EventPath, evs[1].Type)
	assert.Len(t, evs[1].Data, 3)
}

func TestBroadcastOrderIsPreserved(t *testing.T) {
	s := state.NewStore(0)
	h := New(s, DefaultConfig())
	sink := &recordingSink{}
	_, err := h.Join(sink)
	require.NoError(t, err)

	publishPosition(s, h, position(1))
	h.BroadcastAttitude(types.AttitudeState{Yaw: 10})
	publishPosition(s, h, position(2))

	evs := waitForEvents(t, sink, 7)
	var kinds []EventType
	for _, ev := range evs {
		kinds = append(kinds, ev.Type)
	}
	assert.Equal(t, []EventType{
		EventStatus, EventPath,
		EventPosition, EventPath,
		EventAttitude,
		EventPosition, EventPath,
	}, kinds)
	assert.Equal(t, position(1), evs[2].Data)
	assert.Equal(t, position(2), evs[5].Data)
	assert.Len(t, evs[6].Data, 2)
}

func TestLateJoinerSeesEveryFixOnce(t *testing.T) {
	s := state.NewStore(0)
	h := New(s, DefaultConfig())
	for i := 0; i < 4; i++ {
		publishPosition(s, h, position(i))
	}

	sink := &recordingSink{}
	_, err := h.Join(sink)
	require.NoError(t, err)
	for i := 4; i < 7; i++ {
		publishPosition(s, h, position(i))
	}

	evs := waitForEvents(t, sink, 2+3*2)
	snapshot := evs[1].Data.([]types.PathPoint)
	require.Len(t, snapshot, 4)

	seen := len(snapshot)
	for _, ev := range evs[2:] {
		if ev.Type == EventPosition {
			seen++
		}
	}
	assert.Equal(t, 7, seen)
	assert.Len(t, evs[len(evs)-1].Data, 7)
}

func TestJoinBetweenUpdateAndBroadcastIsNotDuplicated(t *testing.T) {
	s := state.NewStore(0)
	h := New(s, DefaultConfig())
	publishPosition(s, h, position(1))

	early := &recordingSink{}
	_, err := h.Join(early)
	require.NoError(t, err)

	// U2 is recorded but not yet broadcast when the late viewer joins
	seq := s.UpdatePosition(position(2))
	late := &recordingSink{}
	_, err = h.Join(late)
	require.NoError(t, err)
	h.BroadcastPosition(position(2), seq)

	publishPosition(s, h, position(3))

	lateEvs := waitForEvents(t, late, 4)
	require.Len(t, lateEvs[1].Data, 2, "snapshot contains U2")
	assert.Equal(t, EventPosition, lateEvs[2].Type)
	assert.Equal(t, position(3), lateEvs[2].Data, "U2 must not be replayed live")

	earlyEvs := waitForEvents(t, early, 6)
	assert.Equal(t, position(2), earlyEvs[2].Data)
	assert.Equal(t, position(3), earlyEvs[4].Data)
}

func TestFailingSubscriberDoesNotAffectOthers(t *testing.T) {
	s := state.NewStore(0)
	h := New(s, DefaultConfig())

	bad := &recordingSink{fail: func(ev Event) bool { return ev.Type == EventPosition }}
	badSub, err := h.Join(bad)
	require.NoError(t, err)
	good := &recordingSink{}
	_, err = h.Join(good)
	require.NoError(t, err)

	publishPosition(s, h, position(1))

	evs := waitForEvents(t, good, 4)
	assert.Equal(t, position(1), evs[2].Data)

	select {
	case <-badSub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("failing subscriber was not removed")
	}
	assert.Equal(t, 1, h.Count())
}

func TestSlowSubscriberDoesNotBlockBroadcast(t *testing.T) {
	s := state.NewStore(0)
	h := New(s, Config{QueueSize: 4})

	slow := &recordingSink{block: make(chan struct{})}
	_, err := h.Join(slow)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			publishPosition(s, h, position(i))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow subscriber")
	}
	close(slow.block)
	assert.Equal(t, 100, s.PathLen())
}

func TestLeaveIsIdempotent(t *testing.T) {
	h := New(state.NewStore(0), DefaultConfig())
	sub, err := h.Join(&recordingSink{})
	require.NoError(t, err)

	h.Leave(sub.ID)
	h.Leave(sub.ID)
	h.Leave("unknown")

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("pump did not exit after Leave")
	}
	assert.Equal(t, 0, h.Count())
}

func TestBroadcastAfterLeaveIsNotDelivered(t *testing.T) {
	s := state.NewStore(0)
	h := New(s, DefaultConfig())
	sink := &recordingSink{}
	sub, err := h.Join(sink)
	require.NoError(t, err)
	waitForEvents(t, sink, 2)

	h.Leave(sub.ID)
	<-sub.Done()
	h.BroadcastAttitude(types.AttitudeState{Roll: 1})
	publishPosition(s, h, position(1))

	assert.Equal(t, 2, sink.Len())
}

func TestJoinAfterCloseFails(t *testing.T) {
	h := New(state.NewStore(0), DefaultConfig())
	sub, err := h.Join(&recordingSink{})
	require.NoError(t, err)

	h.Close()
	<-sub.Done()

	_, err = h.Join(&recordingSink{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSinkFunc(t *testing.T) {
	var got []EventType
	sink := SinkFunc(func(ev Event) error {
		got = append(got, ev.Type)
		return nil
	})
	require.NoError(t, sink.Send(Event{Type: EventAttitude}))
	assert.Equal(t, []EventType{EventAttitude}, got)
}
