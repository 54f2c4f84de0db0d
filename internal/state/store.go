package state

import (
	"sync"
	"time"

	"github.com/eytandecker/telemetry-relay/pkg/types"
)

// Snapshot is a consistent copy of everything the store holds.
type Snapshot struct {
	Position    types.PositionState
	Attitude    types.AttitudeState
	Path        []types.PathPoint
	LastUpdated time.Time
}

// Store holds the last known vehicle state and the travelled path.
// Writers are expected to be a single ingest goroutine; any number of
// readers may run concurrently with it.
type Store struct {
	mu             sync.RWMutex
	position       types.PositionState
	attitude       types.AttitudeState
	path           []types.PathPoint
	lastUpdated    time.Time
	staleThreshold time.Duration
}

// NewStore creates a Store with the given stale threshold.
// A zero threshold disables staleness checking.
func NewStore(staleThreshold time.Duration) *Store {
	return &Store{staleThreshold: staleThreshold}
}

// UpdatePosition replaces the position and appends its fix to the path as
// one step. It returns the path length after the append.
func (s *Store) UpdatePosition(pos types.PositionState) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = pos
	s.path = append(s.path, pos.Point())
	s.lastUpdated = time.Now()
	return len(s.path)
}

// UpdateAttitude replaces the attitude.
func (s *Store) UpdateAttitude(att types.AttitudeState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attitude = att
	s.lastUpdated = time.Now()
}

// SnapshotPath returns a copy of the path as of the call.
func (s *Store) SnapshotPath() []types.PathPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyPath()
}

// PathLen returns the number of fixes recorded so far.
func (s *Store) PathLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.path)
}

// Position returns the last position.
func (s *Store) Position() types.PositionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.position
}

// Attitude returns the last attitude.
func (s *Store) Attitude() types.AttitudeState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attitude
}

// Snapshot returns all state, or ErrStale if nothing has been received yet
// or the data age exceeds the stale threshold. The snapshot is returned
// alongside ErrStale so callers can still show the last known values.
func (s *Store) Snapshot() (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Position:    s.position,
		Attitude:    s.attitude,
		Path:        s.copyPath(),
		LastUpdated: s.lastUpdated,
	}
	if s.lastUpdated.IsZero() {
		return snap, ErrStale
	}
	if s.staleThreshold > 0 && time.Since(s.lastUpdated) > s.staleThreshold {
		return snap, ErrStale
	}
	return snap, nil
}

// LastUpdated returns the time of the most recent update, or zero if never updated.
func (s *Store) LastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdated
}

// copyPath requires s.mu held.
func (s *Store) copyPath() []types.PathPoint {
	out := make([]types.PathPoint, len(s.path))
	copy(out, s.path)
	return out
}
