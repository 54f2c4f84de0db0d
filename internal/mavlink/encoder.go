package mavlink

// Encoder builds outgoing frames with a running sequence number. It is used
// by the simulator and by tests that need well-formed input.
type Encoder struct {
	SysID   uint8
	CompID  uint8
	Version int // 1 or 2; zero means 2

	seq uint8
}

// Encode packs fields for def into the next frame.
func (e *Encoder) Encode(def MessageDef, fields map[string]float64) ([]byte, error) {
	payload := EncodePayload(def, fields)
	seq := e.seq
	e.seq++
	if e.Version == 1 {
		return EncodeV1(seq, e.SysID, e.CompID, def, payload)
	}
	return EncodeV2(seq, e.SysID, e.CompID, def, payload)
}
