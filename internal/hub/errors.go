package hub

import "github.com/pkg/errors"

// ErrClosed is returned by Join after the hub has been closed.
var ErrClosed = errors.New("hub: closed")
