package i2cbus

import (
	"errors"
	"fmt"
)

// ErrNoDevice is returned by FakeBus for addresses it has no data for,
// standing in for the transport's NACK.
var ErrNoDevice = errors.New("i2cbus: no device at address")

// RegWrite records one register write seen by the fake.
type RegWrite struct {
	Addr uint16
	Reg  byte
	Val  byte
}

// FakeBus is an in-memory Bus used by the driver tests. Register reads are
// served from Registers; register-less reads pop frames from Stream in order.
type FakeBus struct {
	Registers map[uint16]map[byte]byte
	Stream    map[uint16][][]byte
	RegWrites []RegWrite
	Raw       map[uint16][][]byte // register-less writes, appended in order

	// SkipNext lets n read transactions through before FailNext starts
	// counting; FailNext then makes that many reads fail.
	SkipNext int
	FailNext int
}

func NewFakeBus() *FakeBus {
	return &FakeBus{
		Registers: map[uint16]map[byte]byte{},
		Stream:    map[uint16][][]byte{},
		Raw:       map[uint16][][]byte{},
	}
}

// SetRegs loads a register window starting at reg.
func (f *FakeBus) SetRegs(addr uint16, reg byte, data []byte) {
	m := f.Registers[addr]
	if m == nil {
		m = map[byte]byte{}
		f.Registers[addr] = m
	}
	for i, b := range data {
		m[reg+byte(i)] = b
	}
}

// Push queues one register-less read frame for addr.
func (f *FakeBus) Push(addr uint16, frame []byte) {
	f.Stream[addr] = append(f.Stream[addr], frame)
}

func (f *FakeBus) Name() string { return "fake" }

func (f *FakeBus) failing() bool {
	if f.SkipNext > 0 {
		f.SkipNext--
		return false
	}
	if f.FailNext > 0 {
		f.FailNext--
		return true
	}
	return false
}

func (f *FakeBus) ReadByte(addr uint16) (byte, error) {
	if f.failing() {
		return 0, fmt.Errorf("i2cbus: injected read failure")
	}
	if m, ok := f.Registers[addr]; ok {
		for _, v := range m {
			return v, nil
		}
		return 0, nil
	}
	if frames := f.Stream[addr]; len(frames) > 0 {
		return frames[0][0], nil
	}
	return 0, ErrNoDevice
}

func (f *FakeBus) ReadReg(addr uint16, reg byte, buf []byte) error {
	if f.failing() {
		return fmt.Errorf("i2cbus: injected read failure")
	}
	m, ok := f.Registers[addr]
	if !ok {
		return ErrNoDevice
	}
	for i := range buf {
		buf[i] = m[reg+byte(i)]
	}
	return nil
}

func (f *FakeBus) WriteReg(addr uint16, reg byte, val byte) error {
	f.SetRegs(addr, reg, []byte{val})
	f.RegWrites = append(f.RegWrites, RegWrite{addr, reg, val})
	return nil
}

func (f *FakeBus) Read(addr uint16, buf []byte) error {
	if f.failing() {
		return fmt.Errorf("i2cbus: injected read failure")
	}
	frames := f.Stream[addr]
	if len(frames) == 0 {
		return ErrNoDevice
	}
	copy(buf, frames[0])
	if len(frames) > 1 {
		f.Stream[addr] = frames[1:]
	}
	return nil
}

func (f *FakeBus) Write(addr uint16, data []byte) error {
	f.Raw[addr] = append(f.Raw[addr], append([]byte(nil), data...))
	return nil
}

// LastRegWrite returns the most recent write to reg at addr, if any.
func (f *FakeBus) LastRegWrite(addr uint16, reg byte) (byte, bool) {
	for i := len(f.RegWrites) - 1; i >= 0; i-- {
		w := f.RegWrites[i]
		if w.Addr == addr && w.Reg == reg {
			return w.Val, true
		}
	}
	return 0, false
}
