package sdp810

import (
	"testing"

	"github.com/relabs-tech/env_monitor/internal/i2cbus"
)

func TestDecode(t *testing.T) {
	cases := []struct {
		name   string
		frame  [3]byte
		wantPa float64
		wantOK bool
	}{
		{"positive", [3]byte{0x01, 0x90, 0x4C}, 400.0 / 60.0, true},
		{"negative", [3]byte{0xF4, 0x48, 0x9E}, -50.0, true},
		{"clamped low", [3]byte{0x83, 0x00, 0x8F}, -500.0, true},
		{"clamped high", [3]byte{0x7D, 0x00, 0xFA}, 500.0, true},
		{"bad crc", [3]byte{0x01, 0x90, 0x00}, 400.0 / 60.0, false},
	}
	for _, c := range cases {
		pa, ok := Decode(c.frame, 500.0)
		if pa != c.wantPa || ok != c.wantOK {
			t.Errorf("%s: Decode = (%v, %v), want (%v, %v)", c.name, pa, ok, c.wantPa, c.wantOK)
		}
	}
}

func TestDecodeWiderClamp(t *testing.T) {
	// -32000/60 = -533.33 Pa fits inside the ±1000 Pa variant's bound.
	pa, ok := Decode([3]byte{0x83, 0x00, 0x8F}, 1000.0)
	if !ok {
		t.Fatal("CRC rejected")
	}
	if pa >= -500.0 {
		t.Errorf("pa = %v, want the unclamped -533.33...", pa)
	}
}

func TestRead(t *testing.T) {
	bus := i2cbus.NewFakeBus()
	bus.Push(Addr, []byte{0x01, 0x90, 0x4C})
	d := New(bus, DefaultConfig())
	if err := d.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	s, ok, err := d.Read()
	if err != nil || !ok {
		t.Fatalf("Read: ok=%v err=%v", ok, err)
	}
	if want := 400.0 / 60.0; *s.DiffPressure != want {
		t.Errorf("pressure = %v, want %v", *s.DiffPressure, want)
	}
	if !s.CRCOK {
		t.Error("crc_ok flag not set")
	}
}

func TestReadReverseDirection(t *testing.T) {
	bus := i2cbus.NewFakeBus()
	bus.Push(Addr, []byte{0x01, 0x90, 0x4C})
	cfg := DefaultConfig()
	cfg.Direction = Reverse
	d := New(bus, cfg)
	s, ok, err := d.Read()
	if err != nil || !ok {
		t.Fatalf("Read: ok=%v err=%v", ok, err)
	}
	if want := -400.0 / 60.0; *s.DiffPressure != want {
		t.Errorf("pressure = %v, want %v", *s.DiffPressure, want)
	}
}

func TestReadBadCRCDiscards(t *testing.T) {
	bus := i2cbus.NewFakeBus()
	bus.Push(Addr, []byte{0x01, 0x90, 0xFF})
	d := New(bus, DefaultConfig())
	_, ok, err := d.Read()
	if err != nil {
		t.Fatalf("corrupted frame must not be an error, got: %v", err)
	}
	if ok {
		t.Error("corrupted frame produced a sample")
	}
}

func TestConnectNoDevice(t *testing.T) {
	bus := i2cbus.NewFakeBus()
	d := New(bus, DefaultConfig())
	if err := d.Connect(); err == nil {
		t.Error("Connect succeeded with no device on the bus")
	}
}
