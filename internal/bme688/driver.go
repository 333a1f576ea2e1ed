package bme688

import (
	"errors"
	"fmt"
	"time"

	"github.com/relabs-tech/env_monitor/internal/i2cbus"
	"github.com/relabs-tech/env_monitor/internal/sample"
)

var (
	ErrWrongChip   = errors.New("bme688: chip ID mismatch, not a BME680/688")
	ErrCalibration = errors.New("bme688: calibration read failed")
)

// Field is one decoded measurement frame.
type Field struct {
	TempADC    uint32 // 20-bit
	PressADC   uint32 // 20-bit
	HumADC     uint32 // 16-bit
	GasADC     uint16 // 10-bit
	GasRange   int
	GasValid   bool
	HeatStable bool
}

// DecodeField unpacks the raw register windows: tph is the 8-byte block at
// 0x1F (pressure, temperature, humidity), gas the 2-byte block at 0x2A.
func DecodeField(tph [8]byte, gas [2]byte) Field {
	return Field{
		PressADC:   uint32(tph[0])<<12 | uint32(tph[1])<<4 | uint32(tph[2])>>4,
		TempADC:    uint32(tph[3])<<12 | uint32(tph[4])<<4 | uint32(tph[5])>>4,
		HumADC:     uint32(tph[6])<<8 | uint32(tph[7]),
		GasADC:     uint16(gas[0])<<2 | uint16(gas[1])>>6,
		GasRange:   int(gas[1] & 0x0F),
		GasValid:   gas[1]&gasValidMask != 0,
		HeatStable: gas[1]&heatStableMask != 0,
	}
}

// Config carries the per-installation driver parameters.
type Config struct {
	Addr uint16
	// TempOffset corrects for the sensor's own heat dissipation. It is an
	// empirical per-installation constant, not a vendor value.
	TempOffset float64
	// Heater setpoint. Ambient is an assumption, not a measurement.
	HeaterTargetC  int
	HeaterAmbientC int
	HeaterDuration time.Duration
	// Settle is the wait between triggering a forced measurement and
	// reading the result.
	Settle time.Duration
}

// DefaultConfig matches the original deployment: secondary address, 320 °C
// heater plateau for 150 ms, 500 ms settle, -9.2 °C self-heating correction.
func DefaultConfig() Config {
	return Config{
		Addr:           AddrSecondary,
		TempOffset:     -9.2,
		HeaterTargetC:  320,
		HeaterAmbientC: 25,
		HeaterDuration: 150 * time.Millisecond,
		Settle:         500 * time.Millisecond,
	}
}

// Driver owns one BME688 on one bus.
type Driver struct {
	bus i2cbus.Bus
	cfg Config
	cal Calibration
}

func New(bus i2cbus.Bus, cfg Config) *Driver {
	if cfg.Addr == 0 {
		cfg.Addr = AddrSecondary
	}
	if cfg.Settle == 0 {
		cfg.Settle = 500 * time.Millisecond
	}
	return &Driver{bus: bus, cfg: cfg}
}

func (d *Driver) Name() string { return "bme688" }

// Calibration returns the coefficients loaded by Connect.
func (d *Driver) Calibration() Calibration { return d.cal }

// Connect verifies the chip ID, soft-resets the sensor, loads calibration
// and writes the measurement and heater configuration. A calibration read
// failure is fatal: the sensor is unusable without the coefficients.
func (d *Driver) Connect() error {
	var id [1]byte
	if err := d.bus.ReadReg(d.cfg.Addr, regChipID, id[:]); err != nil {
		return fmt.Errorf("bme688: chip ID read: %w", err)
	}
	if id[0] != chipID {
		return fmt.Errorf("%w: got 0x%02X", ErrWrongChip, id[0])
	}

	if err := d.bus.WriteReg(d.cfg.Addr, regSoftReset, softResetCmd); err != nil {
		return fmt.Errorf("bme688: soft reset: %w", err)
	}
	time.Sleep(10 * time.Millisecond)

	if err := d.readCalibration(); err != nil {
		return fmt.Errorf("%w: %v", ErrCalibration, err)
	}

	return d.configure()
}

func (d *Driver) readCalibration() error {
	blob := make([]byte, calibBlobLen)
	if err := d.bus.ReadReg(d.cfg.Addr, regCoeff1, blob[:coeff1Len]); err != nil {
		return fmt.Errorf("coeff block 1: %w", err)
	}
	if err := d.bus.ReadReg(d.cfg.Addr, regCoeff2, blob[coeff1Len:]); err != nil {
		return fmt.Errorf("coeff block 2: %w", err)
	}
	cal, err := ParseCalibration(blob)
	if err != nil {
		return err
	}

	var trim [1]byte
	if err := d.bus.ReadReg(d.cfg.Addr, regHeatRange, trim[:]); err != nil {
		return fmt.Errorf("res_heat_range: %w", err)
	}
	heatRange := trim[0]
	if err := d.bus.ReadReg(d.cfg.Addr, regHeatVal, trim[:]); err != nil {
		return fmt.Errorf("res_heat_val: %w", err)
	}
	heatVal := trim[0]
	if err := d.bus.ReadReg(d.cfg.Addr, regSWErr, trim[:]); err != nil {
		return fmt.Errorf("range_sw_err: %w", err)
	}
	cal.SetHeaterTrim(heatRange, heatVal, trim[0])

	d.cal = cal
	return nil
}

// ctrlMeas is the shared oversampling/mode byte: temperature x4,
// pressure x16, forced mode.
func ctrlMeas() byte {
	return os4x<<ostPos | os16x<<ospPos | modeForced
}

func (d *Driver) configure() error {
	if err := d.bus.WriteReg(d.cfg.Addr, regHumCtrl, os2x); err != nil {
		return fmt.Errorf("bme688: humidity oversampling: %w", err)
	}
	if err := d.bus.WriteReg(d.cfg.Addr, regMeasCtrl, ctrlMeas()); err != nil {
		return fmt.Errorf("bme688: measurement control: %w", err)
	}
	if err := d.bus.WriteReg(d.cfg.Addr, regConfig, iir7<<iirPos); err != nil {
		return fmt.Errorf("bme688: IIR filter: %w", err)
	}

	resHeat := d.cal.HeaterResistance(d.cfg.HeaterTargetC, d.cfg.HeaterAmbientC)
	if err := d.bus.WriteReg(d.cfg.Addr, regResHeat0, resHeat); err != nil {
		return fmt.Errorf("bme688: heater resistance: %w", err)
	}
	dur := HeaterDuration(int(d.cfg.HeaterDuration / time.Millisecond))
	if err := d.bus.WriteReg(d.cfg.Addr, regGasWait0, dur); err != nil {
		return fmt.Errorf("bme688: heater duration: %w", err)
	}
	if err := d.bus.WriteReg(d.cfg.Addr, regGasCtrl, runGasEnable<<runGasPos); err != nil {
		return fmt.Errorf("bme688: gas control: %w", err)
	}
	if err := d.bus.WriteReg(d.cfg.Addr, regHeatCtrl, enableHeater); err != nil {
		return fmt.Errorf("bme688: heater control: %w", err)
	}
	return nil
}

// Read triggers one forced measurement, waits for it to settle, and returns
// the compensated sample. ok is false when the sensor has no new data yet;
// the poller treats that as a retryable miss, not an error.
func (d *Driver) Read() (sample.Sample, bool, error) {
	if err := d.bus.WriteReg(d.cfg.Addr, regMeasCtrl, ctrlMeas()); err != nil {
		return sample.Sample{}, false, fmt.Errorf("bme688: trigger measurement: %w", err)
	}
	time.Sleep(d.cfg.Settle)

	var status [1]byte
	if err := d.bus.ReadReg(d.cfg.Addr, regMeasStatus, status[:]); err != nil {
		return sample.Sample{}, false, fmt.Errorf("bme688: status read: %w", err)
	}
	if status[0]&newDataMask == 0 {
		return sample.Sample{}, false, nil
	}

	var tph [8]byte
	if err := d.bus.ReadReg(d.cfg.Addr, regPressMSB, tph[:]); err != nil {
		return sample.Sample{}, false, fmt.Errorf("bme688: field read: %w", err)
	}
	var gas [2]byte
	if err := d.bus.ReadReg(d.cfg.Addr, regGasMSB, gas[:]); err != nil {
		return sample.Sample{}, false, fmt.Errorf("bme688: gas read: %w", err)
	}

	f := DecodeField(tph, gas)

	// Temperature first: it produces the t_fine every other formula needs.
	temp, tFine := d.cal.Temperature(f.TempADC)
	temp += d.cfg.TempOffset
	press := d.cal.Pressure(tFine, f.PressADC)
	hum := d.cal.Humidity(tFine, f.HumADC)

	gasRes := 0.0
	if f.GasValid && f.HeatStable {
		gasRes = d.cal.GasResistance(f.GasADC, f.GasRange)
	}

	s := sample.Sample{
		Sensor:      d.Name(),
		Bus:         d.bus.Name(),
		Time:        time.Now(),
		Temperature: sample.Float(temp),
		Pressure:    sample.Float(press),
		Humidity:    sample.Float(hum),
		GasRes:      sample.Float(gasRes),
		GasValid:    f.GasValid,
		HeatStable:  f.HeatStable,
	}
	return s, true, nil
}

func (d *Driver) Close() error { return nil }
