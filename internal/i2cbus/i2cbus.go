// Package i2cbus wraps a periph.io I2C bus behind a small interface the
// sensor drivers depend on. One physical bus is one Conn; a mutex serializes
// every transaction so multiple sensor pollers can share the bus without
// interleaving transfers.
package i2cbus

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Bus is the set of I2C primitives the drivers consume. SDP810, SHT40 and
// BH1750 need the register-less Read/Write forms; BME688 and the TCA9548A
// use the register forms.
type Bus interface {
	// ReadByte reads a single byte with no preceding register write.
	// It doubles as the ACK-only device probe.
	ReadByte(addr uint16) (byte, error)
	// ReadReg writes reg and reads len(buf) bytes in one transaction.
	ReadReg(addr uint16, reg byte, buf []byte) error
	// WriteReg writes val to reg.
	WriteReg(addr uint16, reg byte, val byte) error
	// Read reads len(buf) bytes with no register addressing.
	Read(addr uint16, buf []byte) error
	// Write sends data with no register addressing.
	Write(addr uint16, data []byte) error
	// Name identifies the underlying bus, e.g. "/dev/i2c-1".
	Name() string
}

var hostOnce sync.Once
var hostErr error

// Open initializes the periph host once and opens the named I2C bus
// ("" picks the platform default).
func Open(name string) (*SharedBus, error) {
	hostOnce.Do(func() {
		_, hostErr = host.Init()
	})
	if hostErr != nil {
		return nil, fmt.Errorf("periph host init: %w", hostErr)
	}

	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("i2c open %q: %w", name, err)
	}
	return &SharedBus{bus: bus, name: bus.String()}, nil
}

// SharedBus is the single owned handle to one physical I2C bus.
type SharedBus struct {
	mu   sync.Mutex
	bus  i2c.BusCloser
	name string
}

func (s *SharedBus) Name() string { return s.name }

func (s *SharedBus) ReadByte(addr uint16) (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var buf [1]byte
	if err := s.bus.Tx(addr, nil, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (s *SharedBus) ReadReg(addr uint16, reg byte, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bus.Tx(addr, []byte{reg}, buf)
}

func (s *SharedBus) WriteReg(addr uint16, reg byte, val byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bus.Tx(addr, []byte{reg, val}, nil)
}

func (s *SharedBus) Read(addr uint16, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bus.Tx(addr, nil, buf)
}

func (s *SharedBus) Write(addr uint16, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bus.Tx(addr, data, nil)
}

// Close releases the underlying bus.
func (s *SharedBus) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bus.Close()
}

// Scan probes every address in addrs and returns the ones that ACK a read.
// This is the brute-force equivalent of running i2cdetect.
func Scan(b Bus, addrs []uint16) []uint16 {
	var found []uint16
	for _, a := range addrs {
		if _, err := b.ReadByte(a); err == nil {
			found = append(found, a)
		}
	}
	return found
}
