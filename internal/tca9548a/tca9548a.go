// Package tca9548a controls the TI TCA9548A 8-channel I2C multiplexer used
// to hang several same-address sensors off one bus.
package tca9548a

import (
	"fmt"
	"time"

	"github.com/relabs-tech/env_monitor/internal/i2cbus"
)

// Addresses lists the eight strapping addresses the part can occupy.
var Addresses = []uint16{0x70, 0x71, 0x72, 0x73, 0x74, 0x75, 0x76, 0x77}

// DefaultAddr is the all-pins-low address.
const DefaultAddr uint16 = 0x70

// switchSettle is the wait after changing channels before the downstream
// device is addressed.
const switchSettle = 100 * time.Millisecond

// Mux owns one multiplexer on one bus.
type Mux struct {
	bus  i2cbus.Bus
	addr uint16
}

func New(bus i2cbus.Bus, addr uint16) *Mux {
	if addr == 0 {
		addr = DefaultAddr
	}
	return &Mux{bus: bus, addr: addr}
}

// Select enables exactly one downstream channel (0-7).
func (m *Mux) Select(channel int) error {
	if channel < 0 || channel > 7 {
		return fmt.Errorf("tca9548a: channel %d out of range 0-7", channel)
	}
	if err := m.bus.Write(m.addr, []byte{1 << channel}); err != nil {
		return fmt.Errorf("tca9548a: select channel %d: %w", channel, err)
	}
	time.Sleep(switchSettle)
	return nil
}

// DisableAll disconnects every downstream channel.
func (m *Mux) DisableAll() error {
	if err := m.bus.Write(m.addr, []byte{0}); err != nil {
		return fmt.Errorf("tca9548a: disable all channels: %w", err)
	}
	return nil
}

// Detect probes the strapping addresses and returns the ones that ACK.
func Detect(bus i2cbus.Bus) []uint16 {
	return i2cbus.Scan(bus, Addresses)
}
