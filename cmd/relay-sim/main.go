// Command relay-sim flies a simulated vehicle around a circle and sends its
// MAVLink position and attitude to a relay over UDP.
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/eytandecker/telemetry-relay/internal/mavlink"
)

var (
	target   = flag.String("target", "127.0.0.1:14551", "relay UDP address")
	rate     = flag.Duration("rate", 200*time.Millisecond, "interval between updates")
	centre   = flag.String("centre", "47.397742,8.545594", "circle centre as lat,lon")
	radius   = flag.Float64("radius", 150, "circle radius in metres")
	speed    = flag.Float64("speed", 12, "ground speed in m/s")
	altitude = flag.Float64("alt", 488, "altitude in metres")
	v1       = flag.Bool("v1", false, "send MAVLink v1 frames")
	sysID    = flag.Int("sysid", 1, "system id")
)

func main() {
	flag.Parse()
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("relay-sim exited")
		os.Exit(1)
	}
}

func run() error {
	lat, lon, err := parseCentre(*centre)
	if err != nil {
		return err
	}

	conn, err := net.Dial("udp", *target)
	if err != nil {
		return errors.Wrapf(err, "dial %s", *target)
	}
	defer conn.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	enc := &mavlink.Encoder{SysID: uint8(*sysID), CompID: 1}
	if *v1 {
		enc.Version = 1
	}
	track := Track{Lat: lat, Lon: lon, Radius: *radius, Speed: *speed, Altitude: *altitude}

	log.WithFields(log.Fields{"target": *target, "radius": *radius, "speed": *speed}).Info("relay-sim: sending")

	start := time.Now()
	ticker := time.NewTicker(*rate)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if err := send(conn, enc, track.At(now.Sub(start))); err != nil {
				return err
			}
		}
	}
}

func send(conn net.Conn, enc *mavlink.Encoder, s Sample) error {
	for _, msg := range []struct {
		def    mavlink.MessageDef
		fields map[string]float64
	}{
		{mavlink.GlobalPositionInt, s.PositionFields()},
		{mavlink.Attitude, s.AttitudeFields()},
	} {
		frame, err := enc.Encode(msg.def, msg.fields)
		if err != nil {
			return errors.Wrapf(err, "encode %s", msg.def.Name)
		}
		if _, err := conn.Write(frame); err != nil {
			return errors.Wrapf(err, "send %s", msg.def.Name)
		}
	}
	return nil
}
