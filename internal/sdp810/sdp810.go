// Package sdp810 drives the Sensirion SDP810 differential pressure sensor.
// The sensor streams continuously: every read is a register-less 3-byte
// transfer of a signed big-endian word plus a CRC.
package sdp810

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/relabs-tech/env_monitor/internal/crc8"
	"github.com/relabs-tech/env_monitor/internal/i2cbus"
	"github.com/relabs-tech/env_monitor/internal/sample"
)

// Addr is the sensor's fixed I2C address.
const Addr uint16 = 0x25

// scaleFactor is 60 LSB/Pa for the 500 Pa part.
const scaleFactor = 60.0

// Direction maps the installation orientation of the two pressure ports
// onto the sign of the reading.
type Direction int

const (
	Normal Direction = iota
	Reverse
)

// Config carries the per-installation parameters.
type Config struct {
	Addr uint16
	// ClampPa bounds the reported pressure. The sensor is rated ±500 Pa;
	// one variant of the original deployment clamped at ±1000 Pa instead,
	// so the bound is configurable rather than hardcoded.
	ClampPa   float64
	Direction Direction
}

func DefaultConfig() Config {
	return Config{Addr: Addr, ClampPa: 500.0}
}

// Driver owns one SDP810 on one bus.
type Driver struct {
	bus i2cbus.Bus
	cfg Config
}

func New(bus i2cbus.Bus, cfg Config) *Driver {
	if cfg.Addr == 0 {
		cfg.Addr = Addr
	}
	if cfg.ClampPa == 0 {
		cfg.ClampPa = 500.0
	}
	return &Driver{bus: bus, cfg: cfg}
}

func (d *Driver) Name() string { return "sdp810" }

// Connect is an ACK-only probe followed by one frame read: the sensor has
// no chip ID register.
func (d *Driver) Connect() error {
	if _, err := d.bus.ReadByte(d.cfg.Addr); err != nil {
		return fmt.Errorf("sdp810: probe 0x%02X: %w", d.cfg.Addr, err)
	}
	var frame [3]byte
	if err := d.bus.Read(d.cfg.Addr, frame[:]); err != nil {
		return fmt.Errorf("sdp810: initial read: %w", err)
	}
	return nil
}

// Decode converts one 3-byte frame to Pa. crcOK is false on checksum
// mismatch; the value is still decoded for diagnostics but the caller must
// discard the sample.
func Decode(frame [3]byte, clampPa float64) (pa float64, crcOK bool) {
	crcOK = crc8.Check(frame[:2], frame[2])
	raw := int16(binary.BigEndian.Uint16(frame[:2]))
	pa = float64(raw) / scaleFactor
	if pa > clampPa {
		pa = clampPa
	} else if pa < -clampPa {
		pa = -clampPa
	}
	return pa, crcOK
}

// Read fetches one frame from the continuous stream. No settle time is
// needed. A CRC mismatch yields no sample rather than an error, so the
// poller retries instead of counting it as a fault escalation by itself.
func (d *Driver) Read() (sample.Sample, bool, error) {
	var frame [3]byte
	if err := d.bus.Read(d.cfg.Addr, frame[:]); err != nil {
		return sample.Sample{}, false, fmt.Errorf("sdp810: read: %w", err)
	}

	pa, crcOK := Decode(frame, d.cfg.ClampPa)
	if !crcOK {
		return sample.Sample{}, false, nil
	}
	if d.cfg.Direction == Reverse {
		pa = -pa
	}

	s := sample.Sample{
		Sensor:       d.Name(),
		Bus:          d.bus.Name(),
		Time:         time.Now(),
		DiffPressure: sample.Float(pa),
		CRCOK:        true,
	}
	return s, true, nil
}

func (d *Driver) Close() error { return nil }
