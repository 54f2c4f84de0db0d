package main

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const earthRadius = 6371000.0

// Track is a constant-speed clockwise circle around (Lat, Lon).
type Track struct {
	Lat, Lon float64
	Radius   float64 // m
	Speed    float64 // m/s
	Altitude float64 // m
}

// Sample is the vehicle state at one instant, in MAVLink wire units where
// noted.
type Sample struct {
	TimeBootMS uint32
	Lat, Lon   float64 // deg
	Altitude   float64 // m
	North      float64 // m/s
	East       float64 // m/s
	Heading    float64 // deg, 0..360
	Roll       float64 // rad
	Yaw        float64 // rad
}

// At returns the vehicle state elapsed after the start of the track.
func (t Track) At(elapsed time.Duration) Sample {
	secs := elapsed.Seconds()
	omega := 0.0
	if t.Radius > 0 {
		omega = t.Speed / t.Radius
	}
	// bearing from centre; clockwise seen from above
	theta := omega * secs

	north := t.Radius * math.Cos(theta)
	east := t.Radius * math.Sin(theta)
	dLat := north / earthRadius * 180 / math.Pi
	dLon := east / (earthRadius * math.Cos(t.Lat*math.Pi/180)) * 180 / math.Pi

	course := math.Mod(theta+math.Pi/2, 2*math.Pi)
	bank := math.Atan(t.Speed * omega / 9.80665)

	return Sample{
		TimeBootMS: uint32(elapsed.Milliseconds()),
		Lat:        t.Lat + dLat,
		Lon:        t.Lon + dLon,
		Altitude:   t.Altitude,
		North:      t.Speed * math.Cos(course),
		East:       t.Speed * math.Sin(course),
		Heading:    course * 180 / math.Pi,
		Roll:       bank,
		Yaw:        course,
	}
}

// PositionFields encodes s as GLOBAL_POSITION_INT fields.
func (s Sample) PositionFields() map[string]float64 {
	return map[string]float64{
		"time_boot_ms": float64(s.TimeBootMS),
		"lat":          math.Round(s.Lat * 1e7),
		"lon":          math.Round(s.Lon * 1e7),
		"alt":          math.Round(s.Altitude * 1000),
		"relative_alt": 0,
		"vx":           math.Round(s.North * 100),
		"vy":           math.Round(s.East * 100),
		"vz":           0,
		"hdg":          math.Round(s.Heading * 100),
	}
}

// AttitudeFields encodes s as ATTITUDE fields.
func (s Sample) AttitudeFields() map[string]float64 {
	return map[string]float64{
		"time_boot_ms": float64(s.TimeBootMS),
		"roll":         s.Roll,
		"pitch":        0,
		"yaw":          s.Yaw,
	}
}

func parseCentre(v string) (float64, float64, error) {
	parts := strings.Split(v, ",")
	if len(parts) != 2 {
		return 0, 0, errors.Errorf("centre %q: want lat,lon", v)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "centre latitude %q", parts[0])
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "centre longitude %q", parts[1])
	}
	return lat, lon, nil
}
