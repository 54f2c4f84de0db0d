package state

import "github.com/pkg/errors"

// ErrStale is returned when telemetry has not been updated within the stale threshold.
var ErrStale = errors.New("state: telemetry is stale")
