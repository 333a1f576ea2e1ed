// Package sps30 drives the Sensirion SPS30 particulate matter sensor over
// its UART SHDLC interface.
package sps30

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/env_monitor/internal/sample"
)

const (
	cmdStartMeasurement byte = 0x00
	cmdStopMeasurement  byte = 0x01
	cmdReadMeasurement  byte = 0x03
	cmdDeviceInfo       byte = 0xD0
	cmdDeviceReset      byte = 0xD3

	// StartMeasurement arguments: subcommand 0x01, output format
	// 0x03 (big-endian IEEE754 floats).
	startSubCmd    byte = 0x01
	formatFloat32  byte = 0x03
	infoSerialArg  byte = 0x03
	defaultBaud         = 115200
	resetSettle         = 2 * time.Second
	warmupDuration      = 5 * time.Second
)

// Concentrations is one measurement frame. Mass concentrations are in
// µg/m³, number concentrations in #/cm³, typical particle size in µm.
type Concentrations struct {
	PM1  float64
	PM25 float64
	PM4  float64
	PM10 float64

	NC05 float64
	NC1  float64
	NC25 float64
	NC4  float64
	NC10 float64

	TypicalSize float64
}

// Device speaks the SPS30 command set over an SHDLC transport.
type Device struct {
	t *Transport
}

func NewDevice(rw io.ReadWriter) *Device {
	return &Device{t: NewTransport(rw)}
}

func (d *Device) StartMeasurement() error {
	_, err := d.t.Execute(cmdStartMeasurement, []byte{startSubCmd, formatFloat32})
	if err != nil {
		return fmt.Errorf("sps30: start measurement: %w", err)
	}
	return nil
}

func (d *Device) StopMeasurement() error {
	_, err := d.t.Execute(cmdStopMeasurement, nil)
	if err != nil {
		return fmt.Errorf("sps30: stop measurement: %w", err)
	}
	return nil
}

func (d *Device) DeviceReset() error {
	_, err := d.t.Execute(cmdDeviceReset, nil)
	if err != nil {
		return fmt.Errorf("sps30: device reset: %w", err)
	}
	return nil
}

// SerialNumber returns the device serial as an ASCII string.
func (d *Device) SerialNumber() (string, error) {
	data, err := d.t.Execute(cmdDeviceInfo, []byte{infoSerialArg})
	if err != nil {
		return "", fmt.Errorf("sps30: read serial number: %w", err)
	}
	return strings.TrimRight(string(data), "\x00"), nil
}

// ReadMeasuredValues reads one measurement frame. The second return is
// false when the sensor has no new frame ready (empty payload).
func (d *Device) ReadMeasuredValues() (Concentrations, bool, error) {
	data, err := d.t.Execute(cmdReadMeasurement, nil)
	if err != nil {
		return Concentrations{}, false, fmt.Errorf("sps30: read measured values: %w", err)
	}
	if len(data) == 0 {
		return Concentrations{}, false, nil
	}
	return DecodeValues(data), true, nil
}

// safeFloat converts one big-endian float32 field, coercing NaN and
// infinities to 0 so a glitched frame cannot poison downstream consumers.
func safeFloat(b []byte) float64 {
	f := float64(math.Float32frombits(binary.BigEndian.Uint32(b)))
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0.0
	}
	return f
}

// DecodeValues parses a measurement payload. The full frame carries ten
// floats; some firmware revisions answer with only the three mass
// concentrations PM1.0, PM2.5 and PM10, which is tolerated.
func DecodeValues(data []byte) Concentrations {
	fields := make([]float64, 0, 10)
	for i := 0; i+4 <= len(data) && len(fields) < 10; i += 4 {
		fields = append(fields, safeFloat(data[i:i+4]))
	}

	var c Concentrations
	switch {
	case len(fields) >= 10:
		c.PM1, c.PM25, c.PM4, c.PM10 = fields[0], fields[1], fields[2], fields[3]
		c.NC05, c.NC1, c.NC25, c.NC4, c.NC10 = fields[4], fields[5], fields[6], fields[7], fields[8]
		c.TypicalSize = fields[9]
	case len(fields) >= 4:
		c.PM1, c.PM25, c.PM4, c.PM10 = fields[0], fields[1], fields[2], fields[3]
	case len(fields) >= 3:
		c.PM1, c.PM25, c.PM10 = fields[0], fields[1], fields[2]
	}
	return c
}

// Config selects the serial port the sensor is attached to.
type Config struct {
	Port string
	Baud uint
}

func DefaultConfig() Config {
	return Config{Port: "/dev/ttyUSB0", Baud: defaultBaud}
}

// Driver owns the serial connection and measurement lifecycle.
type Driver struct {
	cfg  Config
	port io.ReadWriteCloser
	dev  *Device
}

func New(cfg Config) *Driver {
	if cfg.Baud == 0 {
		cfg.Baud = defaultBaud
	}
	return &Driver{cfg: cfg}
}

func (d *Driver) Name() string { return "sps30" }

// Connect opens the port, resets the sensor and starts continuous
// measurement. The SPS30 needs a couple of seconds after reset and a
// warmup period before the first frame is representative.
func (d *Driver) Connect() error {
	opts := serial.OpenOptions{
		PortName:        d.cfg.Port,
		BaudRate:        d.cfg.Baud,
		DataBits:        8,
		StopBits:        1,
		ParityMode:      serial.PARITY_NONE,
		MinimumReadSize: 1,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return fmt.Errorf("sps30: open %s: %w", d.cfg.Port, err)
	}
	d.port = port
	d.dev = NewDevice(port)

	if err := d.dev.DeviceReset(); err != nil {
		port.Close()
		d.port = nil
		return err
	}
	time.Sleep(resetSettle)
	if err := d.dev.StartMeasurement(); err != nil {
		port.Close()
		d.port = nil
		return err
	}
	time.Sleep(warmupDuration)
	return nil
}

// Read fetches the next measurement frame. A frame that is not ready yet
// is not an error.
func (d *Driver) Read() (sample.Sample, bool, error) {
	c, ok, err := d.dev.ReadMeasuredValues()
	if err != nil {
		return sample.Sample{}, false, err
	}
	if !ok {
		return sample.Sample{}, false, nil
	}
	s := sample.Sample{
		Sensor: d.Name(),
		Bus:    d.cfg.Port,
		Time:   time.Now(),
		PM1:    sample.Float(c.PM1),
		PM25:   sample.Float(c.PM25),
		PM10:   sample.Float(c.PM10),
	}
	if c.PM4 != 0 {
		s.PM4 = sample.Float(c.PM4)
	}
	return s, true, nil
}

func (d *Driver) Close() error {
	if d.port == nil {
		return nil
	}
	stopErr := d.dev.StopMeasurement()
	closeErr := d.port.Close()
	d.port = nil
	if stopErr != nil {
		return stopErr
	}
	return closeErr
}
