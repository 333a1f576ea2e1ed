package i2cbus

import (
	"errors"
	"testing"
)

func TestScanFindsOnlyResponders(t *testing.T) {
	bus := NewFakeBus()
	bus.SetRegs(0x44, 0x00, []byte{0x01})
	bus.SetRegs(0x77, 0xD0, []byte{0x61})

	found := Scan(bus, []uint16{0x23, 0x44, 0x70, 0x77})
	if len(found) != 2 || found[0] != 0x44 || found[1] != 0x77 {
		t.Errorf("Scan = %v, want [0x44 0x77]", found)
	}
}

func TestFakeBusStreamRepeatsLastFrame(t *testing.T) {
	bus := NewFakeBus()
	bus.Push(0x25, []byte{0x01, 0x90, 0x4C})
	bus.Push(0x25, []byte{0x66, 0x66, 0x93})

	var buf [3]byte
	for i, want := range [][]byte{
		{0x01, 0x90, 0x4C},
		{0x66, 0x66, 0x93},
		{0x66, 0x66, 0x93}, // last frame repeats
	} {
		if err := bus.Read(0x25, buf[:]); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if buf != [3]byte{want[0], want[1], want[2]} {
			t.Errorf("read %d = % X, want % X", i, buf, want)
		}
	}
}

func TestFakeBusFailureInjection(t *testing.T) {
	bus := NewFakeBus()
	bus.SetRegs(0x77, 0xD0, []byte{0x61})
	bus.SkipNext = 1
	bus.FailNext = 1

	var b [1]byte
	if err := bus.ReadReg(0x77, 0xD0, b[:]); err != nil {
		t.Fatalf("first read should pass through: %v", err)
	}
	if err := bus.ReadReg(0x77, 0xD0, b[:]); err == nil {
		t.Fatal("second read should fail")
	}
	if err := bus.ReadReg(0x77, 0xD0, b[:]); err != nil {
		t.Fatalf("third read should succeed again: %v", err)
	}
}

func TestFakeBusUnknownAddress(t *testing.T) {
	bus := NewFakeBus()
	if _, err := bus.ReadByte(0x50); !errors.Is(err, ErrNoDevice) {
		t.Errorf("expected ErrNoDevice, got %v", err)
	}
}
