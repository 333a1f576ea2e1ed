// Package sht40 drives the Sensirion SHT40 temperature/humidity sensor.
// Each measurement is a single command byte followed by a 6-byte response:
// two big-endian words, each protected by its own CRC.
package sht40

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/relabs-tech/env_monitor/internal/crc8"
	"github.com/relabs-tech/env_monitor/internal/i2cbus"
	"github.com/relabs-tech/env_monitor/internal/sample"
)

// Addr is the sensor's fixed I2C address.
const Addr uint16 = 0x44

// Measurement commands and housekeeping.
const (
	cmdMeasureHigh   byte = 0xFD
	cmdMeasureMedium byte = 0xF6
	cmdMeasureLow    byte = 0xE0
	cmdReadSerial    byte = 0x89
	cmdSoftReset     byte = 0x94
)

// Precision selects the measurement command and its settle time.
type Precision int

const (
	High Precision = iota
	Medium
	Low
)

func (p Precision) command() (byte, time.Duration) {
	switch p {
	case Medium:
		return cmdMeasureMedium, 10 * time.Millisecond
	case Low:
		return cmdMeasureLow, 5 * time.Millisecond
	default:
		return cmdMeasureHigh, 20 * time.Millisecond
	}
}

// Reading is one decoded measurement.
type Reading struct {
	Temperature float64 // °C
	Humidity    float64 // %RH
}

// Decode validates both CRCs and applies the datasheet scaling. ok is false
// when either word fails its checksum.
func Decode(frame [6]byte) (Reading, bool) {
	if !crc8.Check(frame[0:2], frame[2]) || !crc8.Check(frame[3:5], frame[5]) {
		return Reading{}, false
	}
	tRaw := binary.BigEndian.Uint16(frame[0:2])
	rhRaw := binary.BigEndian.Uint16(frame[3:5])
	return Reading{
		Temperature: -45 + 175*(float64(tRaw)/65535.0),
		Humidity:    -6 + 125*(float64(rhRaw)/65535.0),
	}, true
}

// Config carries the driver parameters.
type Config struct {
	Addr      uint16
	Precision Precision
}

func DefaultConfig() Config {
	return Config{Addr: Addr, Precision: High}
}

// Driver owns one SHT40 on one bus.
type Driver struct {
	bus i2cbus.Bus
	cfg Config
}

func New(bus i2cbus.Bus, cfg Config) *Driver {
	if cfg.Addr == 0 {
		cfg.Addr = Addr
	}
	return &Driver{bus: bus, cfg: cfg}
}

func (d *Driver) Name() string { return "sht40" }

// Connect soft-resets the sensor. There is no chip ID register; a sensor
// that ACKs the reset command is considered present.
func (d *Driver) Connect() error {
	if err := d.Reset(); err != nil {
		return fmt.Errorf("sht40: connect: %w", err)
	}
	return nil
}

// Reset issues a soft reset and waits for the sensor to come back.
func (d *Driver) Reset() error {
	if err := d.bus.Write(d.cfg.Addr, []byte{cmdSoftReset}); err != nil {
		return fmt.Errorf("sht40: soft reset: %w", err)
	}
	time.Sleep(100 * time.Millisecond)
	return nil
}

// SerialNumber reads the factory serial, mostly useful for logging which
// physical unit is attached.
func (d *Driver) SerialNumber() (uint32, error) {
	if err := d.bus.Write(d.cfg.Addr, []byte{cmdReadSerial}); err != nil {
		return 0, fmt.Errorf("sht40: serial command: %w", err)
	}
	time.Sleep(10 * time.Millisecond)
	var frame [6]byte
	if err := d.bus.Read(d.cfg.Addr, frame[:]); err != nil {
		return 0, fmt.Errorf("sht40: serial read: %w", err)
	}
	if !crc8.Check(frame[0:2], frame[2]) || !crc8.Check(frame[3:5], frame[5]) {
		return 0, fmt.Errorf("sht40: serial CRC mismatch")
	}
	hi := binary.BigEndian.Uint16(frame[0:2])
	lo := binary.BigEndian.Uint16(frame[3:5])
	return uint32(hi)<<16 | uint32(lo), nil
}

// Read triggers one measurement and decodes the response. A CRC failure
// yields no sample so the poller retries.
func (d *Driver) Read() (sample.Sample, bool, error) {
	cmd, settle := d.cfg.Precision.command()
	if err := d.bus.Write(d.cfg.Addr, []byte{cmd}); err != nil {
		return sample.Sample{}, false, fmt.Errorf("sht40: measure command: %w", err)
	}
	time.Sleep(settle)

	var frame [6]byte
	if err := d.bus.Read(d.cfg.Addr, frame[:]); err != nil {
		return sample.Sample{}, false, fmt.Errorf("sht40: measure read: %w", err)
	}

	r, ok := Decode(frame)
	if !ok {
		return sample.Sample{}, false, nil
	}

	s := sample.Sample{
		Sensor:      d.Name(),
		Bus:         d.bus.Name(),
		Time:        time.Now(),
		Temperature: sample.Float(r.Temperature),
		Humidity:    sample.Float(r.Humidity),
		CRCOK:       true,
	}
	return s, true, nil
}

func (d *Driver) Close() error { return nil }
