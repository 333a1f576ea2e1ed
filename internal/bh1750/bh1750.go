// Package bh1750 drives the ROHM BH1750 ambient light sensor. A measurement
// is a one-byte mode command followed by a 2-byte big-endian read; lux is
// the raw count divided by 1.2 in every resolution mode.
package bh1750

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/relabs-tech/env_monitor/internal/i2cbus"
	"github.com/relabs-tech/env_monitor/internal/sample"
)

// The two strapping addresses.
const (
	AddrLow  uint16 = 0x23 // ADDR pin low (default)
	AddrHigh uint16 = 0x5C // ADDR pin high
)

// Mode selects resolution and one-shot vs continuous operation.
type Mode byte

const (
	// One-shot modes power the sensor down after the measurement.
	OneTimeHighRes  Mode = 0x20
	OneTimeHighRes2 Mode = 0x21
	OneTimeLowRes   Mode = 0x23
	// Continuous high-res mode 2, used behind the multiplexer where the
	// repeated one-shot wakeup is not worth the traffic.
	ContinuousHighRes2 Mode = 0x11
)

// settle returns the measurement time for the mode. High-resolution modes
// need 150 ms worst case, low resolution 20 ms.
func (m Mode) settle() time.Duration {
	if m == OneTimeLowRes {
		return 20 * time.Millisecond
	}
	return 150 * time.Millisecond
}

// oneShot reports whether the mode needs a trigger before every read.
func (m Mode) oneShot() bool { return m != ContinuousHighRes2 }

// Lux converts a raw 16-bit count to lux.
func Lux(raw uint16) float64 {
	return float64(raw) / 1.2
}

// Config carries the driver parameters.
type Config struct {
	Addr uint16
	Mode Mode
}

func DefaultConfig() Config {
	return Config{Addr: AddrLow, Mode: OneTimeHighRes}
}

// Driver owns one BH1750 on one bus.
type Driver struct {
	bus i2cbus.Bus
	cfg Config
}

func New(bus i2cbus.Bus, cfg Config) *Driver {
	if cfg.Addr == 0 {
		cfg.Addr = AddrLow
	}
	if cfg.Mode == 0 {
		cfg.Mode = OneTimeHighRes
	}
	return &Driver{bus: bus, cfg: cfg}
}

func (d *Driver) Name() string { return "bh1750" }

// Connect probes the address and, in continuous mode, starts the stream.
func (d *Driver) Connect() error {
	if _, err := d.bus.ReadByte(d.cfg.Addr); err != nil {
		return fmt.Errorf("bh1750: probe 0x%02X: %w", d.cfg.Addr, err)
	}
	if !d.cfg.Mode.oneShot() {
		if err := d.bus.Write(d.cfg.Addr, []byte{byte(d.cfg.Mode)}); err != nil {
			return fmt.Errorf("bh1750: start continuous mode: %w", err)
		}
		time.Sleep(d.cfg.Mode.settle())
	}
	return nil
}

// Read performs one measurement. One-shot modes trigger and wait; the
// continuous mode just reads whatever the sensor last converted.
func (d *Driver) Read() (sample.Sample, bool, error) {
	if d.cfg.Mode.oneShot() {
		if err := d.bus.Write(d.cfg.Addr, []byte{byte(d.cfg.Mode)}); err != nil {
			return sample.Sample{}, false, fmt.Errorf("bh1750: trigger: %w", err)
		}
		time.Sleep(d.cfg.Mode.settle())
	}

	var buf [2]byte
	if err := d.bus.Read(d.cfg.Addr, buf[:]); err != nil {
		return sample.Sample{}, false, fmt.Errorf("bh1750: read: %w", err)
	}

	s := sample.Sample{
		Sensor:      d.Name(),
		Bus:         d.bus.Name(),
		Time:        time.Now(),
		Illuminance: sample.Float(Lux(binary.BigEndian.Uint16(buf[:]))),
	}
	return s, true, nil
}

func (d *Driver) Close() error { return nil }
