package mavlink

import (
	"encoding/binary"
	"math"
)

// FieldType is the wire type of a message field.
type FieldType int

const (
	TypeUint8 FieldType = iota
	TypeInt8
	TypeUint16
	TypeInt16
	TypeUint32
	TypeInt32
	TypeFloat32
)

// Size returns the encoded width of the type in bytes.
func (t FieldType) Size() int {
	switch t {
	case TypeUint8, TypeInt8:
		return 1
	case TypeUint16, TypeInt16:
		return 2
	default:
		return 4
	}
}

// FieldDef describes one payload field. Fields are listed in wire order.
type FieldDef struct {
	Name string
	Type FieldType
}

// MessageDef describes the payload layout of one message id.
type MessageDef struct {
	ID       uint32
	Name     string
	CRCExtra uint8
	Fields   []FieldDef
}

// PayloadSize is the length of a complete (untruncated) payload.
func (d MessageDef) PayloadSize() int {
	n := 0
	for _, f := range d.Fields {
		n += f.Type.Size()
	}
	return n
}

const (
	MsgIDHeartbeat         uint32 = 0
	MsgIDSysStatus         uint32 = 1
	MsgIDAttitude          uint32 = 30
	MsgIDGlobalPositionInt uint32 = 33
)

// Predefined message definitions from the common dialect.
var (
	Heartbeat = MessageDef{
		ID:       MsgIDHeartbeat,
		Name:     "HEARTBEAT",
		CRCExtra: 50,
		Fields: []FieldDef{
			{"custom_mode", TypeUint32},
			{"type", TypeUint8},
			{"autopilot", TypeUint8},
			{"base_mode", TypeUint8},
			{"system_status", TypeUint8},
			{"mavlink_version", TypeUint8},
		},
	}
	SysStatus = MessageDef{
		ID:       MsgIDSysStatus,
		Name:     "SYS_STATUS",
		CRCExtra: 124,
		Fields: []FieldDef{
			{"onboard_control_sensors_present", TypeUint32},
			{"onboard_control_sensors_enabled", TypeUint32},
			{"onboard_control_sensors_health", TypeUint32},
			{"load", TypeUint16},
			{"voltage_battery", TypeUint16},
			{"current_battery", TypeInt16},
			{"drop_rate_comm", TypeUint16},
			{"errors_comm", TypeUint16},
			{"errors_count1", TypeUint16},
			{"errors_count2", TypeUint16},
			{"errors_count3", TypeUint16},
			{"errors_count4", TypeUint16},
			{"battery_remaining", TypeInt8},
		},
	}
	Attitude = MessageDef{
		ID:       MsgIDAttitude,
		Name:     "ATTITUDE",
		CRCExtra: 39,
		Fields: []FieldDef{
			{"time_boot_ms", TypeUint32},
			{"roll", TypeFloat32},
			{"pitch", TypeFloat32},
			{"yaw", TypeFloat32},
			{"rollspeed", TypeFloat32},
			{"pitchspeed", TypeFloat32},
			{"yawspeed", TypeFloat32},
		},
	}
	GlobalPositionInt = MessageDef{
		ID:       MsgIDGlobalPositionInt,
		Name:     "GLOBAL_POSITION_INT",
		CRCExtra: 104,
		Fields: []FieldDef{
			{"time_boot_ms", TypeUint32},
			{"lat", TypeInt32},
			{"lon", TypeInt32},
			{"alt", TypeInt32},
			{"relative_alt", TypeInt32},
			{"vx", TypeInt16},
			{"vy", TypeInt16},
			{"vz", TypeInt16},
			{"hdg", TypeUint16},
		},
	}
)

// Registry maps message ids to their definitions.
type Registry struct {
	defs map[uint32]MessageDef
}

// NewRegistry creates a registry holding the given definitions.
func NewRegistry(defs ...MessageDef) *Registry {
	r := &Registry{defs: make(map[uint32]MessageDef, len(defs))}
	for _, d := range defs {
		r.defs[d.ID] = d
	}
	return r
}

// DefaultRegistry returns a registry with every message known to this package.
func DefaultRegistry() *Registry {
	return NewRegistry(Heartbeat, SysStatus, Attitude, GlobalPositionInt)
}

// Get returns the definition for id, if known.
func (r *Registry) Get(id uint32) (MessageDef, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// DecodePayload decodes payload into named field values. MAVLink 2 senders
// strip trailing zero bytes, so a short payload is zero-extended; bytes
// beyond the known fields (extensions) are ignored.
func DecodePayload(def MessageDef, payload []byte) map[string]float64 {
	size := def.PayloadSize()
	if len(payload) < size {
		full := make([]byte, size)
		copy(full, payload)
		payload = full
	}

	fields := make(map[string]float64, len(def.Fields))
	offset := 0
	for _, f := range def.Fields {
		fields[f.Name] = readField(payload[offset:], f.Type)
		offset += f.Type.Size()
	}
	return fields
}

// EncodePayload packs field values in wire order. Missing fields encode as zero.
func EncodePayload(def MessageDef, fields map[string]float64) []byte {
	buf := make([]byte, 0, def.PayloadSize())
	for _, f := range def.Fields {
		v := fields[f.Name]
		switch f.Type {
		case TypeUint8:
			buf = append(buf, uint8(v))
		case TypeInt8:
			buf = append(buf, byte(int8(v)))
		case TypeUint16:
			buf = binary.LittleEndian.AppendUint16(buf, uint16(v))
		case TypeInt16:
			buf = binary.LittleEndian.AppendUint16(buf, uint16(int16(v))) //nolint:gosec // two's complement reinterpretation
		case TypeUint32:
			buf = binary.LittleEndian.AppendUint32(buf, uint32(v))
		case TypeInt32:
			buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(v))) //nolint:gosec // two's complement reinterpretation
		case TypeFloat32:
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(v)))
		}
	}
	return buf
}

func readField(data []byte, t FieldType) float64 {
	switch t {
	case TypeUint8:
		return float64(data[0])
	case TypeInt8:
		return float64(int8(data[0]))
	case TypeUint16:
		return float64(binary.LittleEndian.Uint16(data))
	case TypeInt16:
		return float64(int16(binary.LittleEndian.Uint16(data))) //nolint:gosec // two's complement reinterpretation
	case TypeUint32:
		return float64(binary.LittleEndian.Uint32(data))
	case TypeInt32:
		return float64(int32(binary.LittleEndian.Uint32(data))) //nolint:gosec // two's complement reinterpretation
	case TypeFloat32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(data)))
	}
	return 0
}
