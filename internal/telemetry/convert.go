package telemetry

import (
	"math"

	"github.com/eytandecker/telemetry-relay/pkg/types"
)

const (
	degreesPerRadian = 180 / math.Pi

	latLonScale = 1e7  // degE7 -> degrees
	altitudeMM  = 1000 // mm -> m
	velocityCMS = 100  // cm/s -> m/s
	headingCDeg = 100  // cdeg -> degrees
)

// RawPosition holds the fixed-point fields of a GLOBAL_POSITION_INT message.
type RawPosition struct {
	Lat int32  // degE7
	Lon int32  // degE7
	Alt int32  // mm
	VX  int16  // cm/s
	VY  int16  // cm/s
	Hdg uint16 // cdeg
}

// RawAttitude holds the radian fields of an ATTITUDE message.
type RawAttitude struct {
	Roll  float64
	Pitch float64
	Yaw   float64
}

// ConvertPosition maps a raw position to display units. Ground speed is the
// horizontal velocity magnitude.
func ConvertPosition(raw RawPosition) types.PositionState {
	return types.PositionState{
		Latitude:    float64(raw.Lat) / latLonScale,
		Longitude:   float64(raw.Lon) / latLonScale,
		Altitude:    float64(raw.Alt) / altitudeMM,
		GroundSpeed: math.Hypot(float64(raw.VX), float64(raw.VY)) / velocityCMS,
		Heading:     float64(raw.Hdg) / headingCDeg,
	}
}

// ConvertAttitude maps radians to degrees.
func ConvertAttitude(raw RawAttitude) types.AttitudeState {
	return types.AttitudeState{
		Roll:  raw.Roll * degreesPerRadian,
		Pitch: raw.Pitch * degreesPerRadian,
		Yaw:   raw.Yaw * degreesPerRadian,
	}
}
