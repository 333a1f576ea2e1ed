package bme688

import (
	"errors"
	"testing"
	"time"

	"github.com/relabs-tech/env_monitor/internal/i2cbus"
)

func fakeSensor() *i2cbus.FakeBus {
	bus := i2cbus.NewFakeBus()
	bus.SetRegs(AddrSecondary, regChipID, []byte{chipID})
	bus.SetRegs(AddrSecondary, regCoeff1, fixtureCoeff1)
	bus.SetRegs(AddrSecondary, regCoeff2, fixtureCoeff2)
	bus.SetRegs(AddrSecondary, regHeatRange, []byte{0x16})
	bus.SetRegs(AddrSecondary, regHeatVal, []byte{50})
	bus.SetRegs(AddrSecondary, regSWErr, []byte{0x00})
	// New data ready; TPH window and gas window carry the ADC fixture:
	// press 345643, temp 492112, hum 25600, gas 600 range 5 valid+stable.
	bus.SetRegs(AddrSecondary, regMeasStatus, []byte{0x80})
	bus.SetRegs(AddrSecondary, regPressMSB, []byte{0x54, 0x62, 0xB0, 0x78, 0x25, 0x00, 0x64, 0x00})
	bus.SetRegs(AddrSecondary, regGasMSB, []byte{0x96, 0x35})
	return bus
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.TempOffset = 0
	cfg.Settle = time.Millisecond
	return cfg
}

func TestConnectAndRead(t *testing.T) {
	bus := fakeSensor()
	d := New(bus, testConfig())
	if err := d.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if got := d.Calibration(); got != fixtureCal() {
		t.Fatalf("loaded calibration mismatch:\n got %+v\nwant %+v", got, fixtureCal())
	}

	// Heater registers must hold the computed setpoint and duration.
	if v, ok := bus.LastRegWrite(AddrSecondary, regResHeat0); !ok || v != 116 {
		t.Errorf("res_heat0 = %d (present=%v), want 116", v, ok)
	}
	if v, ok := bus.LastRegWrite(AddrSecondary, regGasWait0); !ok || v != 0x65 {
		t.Errorf("gas_wait0 = 0x%02X (present=%v), want 0x65", v, ok)
	}

	s, ok, err := d.Read()
	if err != nil || !ok {
		t.Fatalf("Read: ok=%v err=%v", ok, err)
	}
	if !relClose(*s.Temperature, 23.439912962680683) {
		t.Errorf("temperature = %v, want 23.439912962680683", *s.Temperature)
	}
	if !relClose(*s.Pressure, 988.1210012890012) {
		t.Errorf("pressure = %v, want 988.1210012890012", *s.Pressure)
	}
	if !relClose(*s.Humidity, 80.74008773563234) {
		t.Errorf("humidity = %v, want 80.74008773563234", *s.Humidity)
	}
	if !relClose(*s.GasRes, 192590128.80630493) {
		t.Errorf("gas resistance = %v, want 192590128.80630493", *s.GasRes)
	}
	if !s.GasValid || !s.HeatStable {
		t.Errorf("flags gas_valid=%v heat_stable=%v, want both true", s.GasValid, s.HeatStable)
	}
	if s.CRCOK {
		t.Error("crc_ok set on a sensor without a CRC")
	}
}

func TestTemperatureOffsetApplied(t *testing.T) {
	bus := fakeSensor()
	cfg := testConfig()
	cfg.TempOffset = -9.2
	d := New(bus, cfg)
	if err := d.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	s, ok, err := d.Read()
	if err != nil || !ok {
		t.Fatalf("Read: ok=%v err=%v", ok, err)
	}
	if !relClose(*s.Temperature, 23.439912962680683-9.2) {
		t.Errorf("temperature with offset = %v, want %v", *s.Temperature, 23.439912962680683-9.2)
	}
}

func TestGasZeroWhenHeaterUnstable(t *testing.T) {
	bus := fakeSensor()
	// Valid flag set, heat_stable cleared: gas must be exactly 0.
	bus.SetRegs(AddrSecondary, regGasMSB, []byte{0x96, 0x25})
	d := New(bus, testConfig())
	if err := d.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	s, ok, err := d.Read()
	if err != nil || !ok {
		t.Fatalf("Read: ok=%v err=%v", ok, err)
	}
	if *s.GasRes != 0 {
		t.Errorf("gas resistance = %v, want 0 while heater unstable", *s.GasRes)
	}
	if s.HeatStable {
		t.Error("heat_stable flag not surfaced as false")
	}
}

func TestReadNoNewData(t *testing.T) {
	bus := fakeSensor()
	bus.SetRegs(AddrSecondary, regMeasStatus, []byte{0x00})
	d := New(bus, testConfig())
	if err := d.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	_, ok, err := d.Read()
	if err != nil {
		t.Fatalf("Read with no new data returned error: %v", err)
	}
	if ok {
		t.Error("Read reported a sample despite NEW_DATA clear")
	}
}

func TestConnectWrongChip(t *testing.T) {
	bus := fakeSensor()
	bus.SetRegs(AddrSecondary, regChipID, []byte{0x58}) // a BMP280 answering instead
	d := New(bus, testConfig())
	err := d.Connect()
	if !errors.Is(err, ErrWrongChip) {
		t.Errorf("Connect = %v, want ErrWrongChip", err)
	}
}

func TestConnectCalibrationFailureIsFatal(t *testing.T) {
	bus := fakeSensor()
	d := New(bus, testConfig())
	bus.SkipNext = 1 // chip ID read succeeds
	bus.FailNext = 1 // first coefficient block read fails
	err := d.Connect()
	if !errors.Is(err, ErrCalibration) {
		t.Fatalf("Connect = %v, want ErrCalibration", err)
	}
}

func TestDecodeField(t *testing.T) {
	f := DecodeField(
		[8]byte{0x54, 0x62, 0xB0, 0x78, 0x25, 0x00, 0x64, 0x00},
		[2]byte{0x96, 0x35},
	)
	if f.PressADC != 345643 {
		t.Errorf("PressADC = %d, want 345643", f.PressADC)
	}
	if f.TempADC != 492112 {
		t.Errorf("TempADC = %d, want 492112", f.TempADC)
	}
	if f.HumADC != 25600 {
		t.Errorf("HumADC = %d, want 25600", f.HumADC)
	}
	if f.GasADC != 600 {
		t.Errorf("GasADC = %d, want 600", f.GasADC)
	}
	if f.GasRange != 5 {
		t.Errorf("GasRange = %d, want 5", f.GasRange)
	}
	if !f.GasValid || !f.HeatStable {
		t.Errorf("flags = %v/%v, want true/true", f.GasValid, f.HeatStable)
	}
}
