package mavlink

import "github.com/pkg/errors"

var (
	ErrBadChecksum    = errors.New("mavlink: bad checksum")
	ErrUnknownMessage = errors.New("mavlink: unknown message id")
	ErrShortFrame     = errors.New("mavlink: frame too short")
	ErrBadMagic       = errors.New("mavlink: bad start marker")
)
