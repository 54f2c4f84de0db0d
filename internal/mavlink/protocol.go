package mavlink

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	MagicV1 = 0xFE
	MagicV2 = 0xFD

	HeaderSizeV1    = 6
	HeaderSizeV2    = 10
	ChecksumSize    = 2
	SignatureSize   = 13
	MaxPayloadSize  = 255
	FlagSigned      = 0x01
	maxFrameSize    = HeaderSizeV2 + MaxPayloadSize + ChecksumSize + SignatureSize
	crcInitialValue = 0xFFFF
)

// Header represents a MAVLink frame header. Version is 1 or 2.
type Header struct {
	Version       int
	PayloadLen    uint8
	IncompatFlags uint8
	CompatFlags   uint8
	Seq           uint8
	SysID         uint8
	CompID        uint8
	MsgID         uint32
}

// headerSize returns the header length for the frame starting at data[0].
func headerSize(magic byte) int {
	if magic == MagicV2 {
		return HeaderSizeV2
	}
	return HeaderSizeV1
}

// DecodeHeader parses the header at the start of data.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) == 0 {
		return Header{}, ErrShortFrame
	}
	switch data[0] {
	case MagicV1:
		if len(data) < HeaderSizeV1 {
			return Header{}, errors.Wrapf(ErrShortFrame, "v1 header: got %d bytes, need %d", len(data), HeaderSizeV1)
		}
		return Header{
			Version:    1,
			PayloadLen: data[1],
			Seq:        data[2],
			SysID:      data[3],
			CompID:     data[4],
			MsgID:      uint32(data[5]),
		}, nil
	case MagicV2:
		if len(data) < HeaderSizeV2 {
			return Header{}, errors.Wrapf(ErrShortFrame, "v2 header: got %d bytes, need %d", len(data), HeaderSizeV2)
		}
		return Header{
			Version:       2,
			PayloadLen:    data[1],
			IncompatFlags: data[2],
			CompatFlags:   data[3],
			Seq:           data[4],
			SysID:         data[5],
			CompID:        data[6],
			MsgID:         uint32(data[7]) | uint32(data[8])<<8 | uint32(data[9])<<16,
		}, nil
	default:
		return Header{}, errors.Wrapf(ErrBadMagic, "got 0x%02X", data[0])
	}
}

// FrameSize is the full on-wire length of the frame described by h.
func (h Header) FrameSize() int {
	if h.Version == 2 {
		n := HeaderSizeV2 + int(h.PayloadLen) + ChecksumSize
		if h.IncompatFlags&FlagSigned != 0 {
			n += SignatureSize
		}
		return n
	}
	return HeaderSizeV1 + int(h.PayloadLen) + ChecksumSize
}

// Checksum computes the CRC-16/MCRF4XX (X.25) of data followed by crcExtra.
func Checksum(data []byte, crcExtra uint8) uint16 {
	crc := uint16(crcInitialValue)
	for _, b := range data {
		crc = crcAccumulate(b, crc)
	}
	return crcAccumulate(crcExtra, crc)
}

func crcAccumulate(b byte, crc uint16) uint16 {
	tmp := b ^ byte(crc&0xFF)
	tmp ^= tmp << 4
	return (crc >> 8) ^ uint16(tmp)<<8 ^ uint16(tmp)<<3 ^ uint16(tmp)>>4
}

// EncodeV1 builds a MAVLink 1 frame. Message ids above 255 are not
// representable in v1 and are rejected.
func EncodeV1(seq, sysID, compID uint8, def MessageDef, payload []byte) ([]byte, error) {
	if def.ID > 0xFF {
		return nil, errors.Errorf("mavlink: message %s (id %d) does not fit a v1 frame", def.Name, def.ID)
	}
	if len(payload) > MaxPayloadSize {
		return nil, errors.Errorf("mavlink: payload of %d bytes exceeds %d", len(payload), MaxPayloadSize)
	}
	buf := make([]byte, 0, HeaderSizeV1+len(payload)+ChecksumSize)
	buf = append(buf, MagicV1, byte(len(payload)), seq, sysID, compID, byte(def.ID))
	buf = append(buf, payload...)
	return binary.LittleEndian.AppendUint16(buf, Checksum(buf[1:], def.CRCExtra)), nil
}

// EncodeV2 builds an unsigned MAVLink 2 frame. Trailing zero bytes of the
// payload are truncated as the protocol requires.
func EncodeV2(seq, sysID, compID uint8, def MessageDef, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, errors.Errorf("mavlink: payload of %d bytes exceeds %d", len(payload), MaxPayloadSize)
	}
	n := len(payload)
	for n > 1 && payload[n-1] == 0 {
		n--
	}
	payload = payload[:n]

	buf := make([]byte, 0, HeaderSizeV2+len(payload)+ChecksumSize)
	buf = append(buf, MagicV2, byte(len(payload)), 0, 0, seq, sysID, compID,
		byte(def.ID), byte(def.ID>>8), byte(def.ID>>16))
	buf = append(buf, payload...)
	return binary.LittleEndian.AppendUint16(buf, Checksum(buf[1:], def.CRCExtra)), nil
}
