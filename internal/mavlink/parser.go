package mavlink

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Packet is one checksum-valid decoded message.
type Packet struct {
	MsgID  uint32
	Name   string
	SysID  uint8
	CompID uint8
	Seq    uint8
	Fields map[string]float64
}

// Stats counts what the Parser has seen since it was created.
type Stats struct {
	Frames        uint64
	BadChecksum   uint64
	Unknown       uint64
	DiscardedByte uint64
}

// Parser splits a byte stream into frames and decodes them. Input may be
// split across or packed into datagrams arbitrarily; incomplete frames are
// held until the rest arrives. A Parser is not safe for concurrent use.
type Parser struct {
	registry *Registry
	buf      []byte
	stats    Stats
}

// NewParser creates a Parser that decodes messages known to registry.
func NewParser(registry *Registry) *Parser {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Parser{registry: registry}
}

// Stats returns the parser counters.
func (p *Parser) Stats() Stats {
	return p.stats
}

// Buffered returns the number of bytes held waiting for a complete frame.
func (p *Parser) Buffered() int {
	return len(p.buf)
}

// Write appends data to the stream and returns every packet completed by it.
// Frames that fail the checksum, or whose message id is unknown and so
// cannot be validated, are skipped one byte at a time until the stream
// resynchronises on the next start marker.
func (p *Parser) Write(data []byte) []Packet {
	p.buf = append(p.buf, data...)

	var out []Packet
	for {
		start := indexMagic(p.buf)
		if start < 0 {
			p.stats.DiscardedByte += uint64(len(p.buf))
			p.buf = p.buf[:0]
			break
		}
		if start > 0 {
			p.stats.DiscardedByte += uint64(start)
			p.buf = p.buf[start:]
		}

		h, err := DecodeHeader(p.buf)
		if err != nil {
			// header incomplete
			break
		}
		size := h.FrameSize()
		if len(p.buf) < size {
			break
		}

		pkt, err := p.decodeFrame(h, p.buf[:size])
		if err != nil {
			switch {
			case errors.Is(err, ErrBadChecksum):
				p.stats.BadChecksum++
			case errors.Is(err, ErrUnknownMessage):
				p.stats.Unknown++
			}
			p.stats.DiscardedByte++
			p.buf = p.buf[1:]
			continue
		}

		p.stats.Frames++
		p.buf = p.buf[size:]
		out = append(out, pkt)
	}

	if len(p.buf) == 0 {
		p.buf = nil
	} else if cap(p.buf) > 2*maxFrameSize {
		p.buf = append([]byte(nil), p.buf...)
	}
	return out
}

func (p *Parser) decodeFrame(h Header, frame []byte) (Packet, error) {
	def, ok := p.registry.Get(h.MsgID)
	if !ok {
		return Packet{}, errors.Wrapf(ErrUnknownMessage, "id %d", h.MsgID)
	}

	hdrLen := headerSize(frame[0])
	crcOffset := hdrLen + int(h.PayloadLen)
	want := binary.LittleEndian.Uint16(frame[crcOffset:])
	if got := Checksum(frame[1:crcOffset], def.CRCExtra); got != want {
		return Packet{}, errors.Wrapf(ErrBadChecksum, "%s: got 0x%04X, want 0x%04X", def.Name, got, want)
	}

	return Packet{
		MsgID:  h.MsgID,
		Name:   def.Name,
		SysID:  h.SysID,
		CompID: h.CompID,
		Seq:    h.Seq,
		Fields: DecodePayload(def, frame[hdrLen:crcOffset]),
	}, nil
}

func indexMagic(b []byte) int {
	for i, c := range b {
		if c == MagicV1 || c == MagicV2 {
			return i
		}
	}
	return -1
}
