package app

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/relabs-tech/env_monitor/internal/config"
	"github.com/relabs-tech/env_monitor/internal/i2cbus"
	"github.com/relabs-tech/env_monitor/internal/sample"
	"github.com/relabs-tech/env_monitor/internal/tca9548a"
)

func TestFormatSampleShowsOnlyPresentFields(t *testing.T) {
	s := sample.Sample{
		Sensor:      "sht40",
		Temperature: sample.Float(21.53),
		Humidity:    sample.Float(48.2),
	}
	line := formatSample(s)
	if !strings.Contains(line, "[sht40 ]") {
		t.Errorf("line %q missing sensor tag", line)
	}
	if !strings.Contains(line, "T= 21.53") || !strings.Contains(line, "RH= 48.20") {
		t.Errorf("line %q missing measurements", line)
	}
	if strings.Contains(line, "PM") || strings.Contains(line, "lux") {
		t.Errorf("line %q shows fields the sample does not carry", line)
	}
}

func TestReadoutPrefersSHT40Temperature(t *testing.T) {
	data := &displayData{latest: map[string]sample.Sample{
		"sht40": {
			Sensor:      "sht40",
			Temperature: sample.Float(21.0),
			Humidity:    sample.Float(50.0),
		},
		"bme688": {
			Sensor:      "bme688",
			Temperature: sample.Float(24.8),
			Humidity:    sample.Float(44.0),
			Pressure:    sample.Float(988.1),
		},
	}}

	temp, hum := tempHumidity(data)
	if temp == nil || *temp != 21.0 {
		t.Errorf("temperature = %v, want SHT40's 21.0", temp)
	}
	if hum == nil || *hum != 50.0 {
		t.Errorf("humidity = %v, want SHT40's 50.0", hum)
	}

	lines := readoutLines(data)
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "988.1") {
		t.Errorf("readout %q missing BME688 pressure", joined)
	}
}

func TestReadoutFallsBackToBME688(t *testing.T) {
	data := &displayData{latest: map[string]sample.Sample{
		"bme688": {
			Sensor:      "bme688",
			Temperature: sample.Float(24.8),
		},
	}}
	temp, hum := tempHumidity(data)
	if temp == nil || *temp != 24.8 {
		t.Errorf("temperature = %v, want BME688's 24.8", temp)
	}
	if hum != nil {
		t.Errorf("humidity = %v, want nil", hum)
	}
}

func TestBuildSensorsHonorsEnableFlags(t *testing.T) {
	cfg := &config.Config{
		BME688Enabled: true,
		BME688Addr:    0x76,
		SHT40Enabled:  true,
		SHT40Addr:     0x44,
		TopicBME688:   "sensors/bme688",
		TopicSHT40:    "sensors/sht40",
	}
	units := buildSensors(cfg, i2cbus.NewFakeBus())
	if len(units) != 2 {
		t.Fatalf("unit count = %d, want 2", len(units))
	}
	if units[0].driver.Name() != "bme688" || units[0].topic != "sensors/bme688" {
		t.Errorf("unit 0 = %s/%s", units[0].driver.Name(), units[0].topic)
	}
	if units[1].driver.Name() != "sht40" || units[1].topic != "sensors/sht40" {
		t.Errorf("unit 1 = %s/%s", units[1].driver.Name(), units[1].topic)
	}
	if units[0].opts.FaultThreshold != faultThresholdBME688 {
		t.Errorf("bme688 threshold = %d, want %d", units[0].opts.FaultThreshold, faultThresholdBME688)
	}
	if units[1].opts.FaultThreshold != faultThresholdSHT40 {
		t.Errorf("sht40 threshold = %d, want %d", units[1].opts.FaultThreshold, faultThresholdSHT40)
	}
}

func TestBuildSensorsAppliesSDP810Direction(t *testing.T) {
	cfg := &config.Config{
		SDP810Enabled:   true,
		SDP810Addr:      0x25,
		SDP810ClampPa:   500,
		SDP810Direction: "Reverse",
		TopicSDP810:     "sensors/sdp810",
	}
	bus := i2cbus.NewFakeBus()
	bus.Push(0x25, []byte{0x01, 0x90, 0x4C}) // +400/60 Pa on the wire

	units := buildSensors(cfg, bus)
	if len(units) != 1 || units[0].driver.Name() != "sdp810" {
		t.Fatalf("units = %d, want one sdp810", len(units))
	}
	s, ok, err := units[0].driver.Read()
	if err != nil || !ok {
		t.Fatalf("Read: ok=%v err=%v", ok, err)
	}
	if want := -400.0 / 60.0; *s.DiffPressure != want {
		t.Errorf("pressure = %v, want the negated %v", *s.DiffPressure, want)
	}
}

type stubDriver struct {
	connectCalls int
	readCalls    int
}

func (d *stubDriver) Name() string   { return "stub" }
func (d *stubDriver) Connect() error { d.connectCalls++; return nil }
func (d *stubDriver) Read() (sample.Sample, bool, error) {
	d.readCalls++
	return sample.Sample{Sensor: "stub"}, true, nil
}
func (d *stubDriver) Close() error { return nil }

func TestMuxedDriverSelectsChannelFirst(t *testing.T) {
	bus := i2cbus.NewFakeBus()
	inner := &stubDriver{}
	md := &muxedDriver{
		mux:     tca9548a.New(bus, 0x70),
		channel: 2,
		inner:   inner,
	}

	if err := md.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, ok, err := md.Read(); err != nil || !ok {
		t.Fatalf("Read = ok %v, err %v", ok, err)
	}

	writes := bus.Raw[0x70]
	if len(writes) != 2 {
		t.Fatalf("mux writes = %d, want 2 (connect + read)", len(writes))
	}
	for i, w := range writes {
		if len(w) != 1 || w[0] != 1<<2 {
			t.Errorf("mux write %d = % X, want 04", i, w)
		}
	}
	if inner.connectCalls != 1 || inner.readCalls != 1 {
		t.Errorf("inner calls = %d/%d, want 1/1", inner.connectCalls, inner.readCalls)
	}
}

func TestMuxedDriverChannelOutOfRange(t *testing.T) {
	md := &muxedDriver{
		mux:     tca9548a.New(i2cbus.NewFakeBus(), 0x70),
		channel: 9,
		inner:   &stubDriver{},
	}
	if err := md.Connect(); err == nil {
		t.Error("expected error for out-of-range channel")
	}
	var s sample.Sample
	s, ok, err := md.Read()
	if err == nil || ok {
		t.Errorf("Read = (%v, %v, %v), want error", s, ok, err)
	}
}

func TestExportSetsGauges(t *testing.T) {
	export(sample.Sample{
		Sensor:      "bme688",
		Temperature: sample.Float(23.4),
		Pressure:    sample.Float(988.1),
	})

	if got := testutil.ToFloat64(gaugeTemperature.WithLabelValues("bme688")); got != 23.4 {
		t.Errorf("temperature gauge = %v, want 23.4", got)
	}
	if got := testutil.ToFloat64(gaugePressure.WithLabelValues("bme688")); got != 988.1 {
		t.Errorf("pressure gauge = %v, want 988.1", got)
	}
}
