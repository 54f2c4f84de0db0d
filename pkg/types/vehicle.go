package types

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// AttitudeState is the vehicle attitude in degrees.
type AttitudeState struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// PositionState is the vehicle global position in display units.
type PositionState struct {
	Latitude    float64 `json:"lat"`     // degrees
	Longitude   float64 `json:"lon"`     // degrees
	Altitude    float64 `json:"alt"`     // meters
	GroundSpeed float64 `json:"speed"`   // m/s
	Heading     float64 `json:"heading"` // degrees
}

// PathPoint is one (latitude, longitude) fix of the travelled path.
// It is encoded as a two element JSON array.
type PathPoint struct {
	Latitude  float64
	Longitude float64
}

// Point returns the path entry for a position.
func (p PositionState) Point() PathPoint {
	return PathPoint{Latitude: p.Latitude, Longitude: p.Longitude}
}

func (p PathPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.Latitude, p.Longitude})
}

func (p *PathPoint) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return errors.Errorf("path point: expected 2 values, got %d", len(pair))
	}
	p.Latitude, p.Longitude = pair[0], pair[1]
	return nil
}
