package bme688

import (
	"math"
	"testing"
)

// fixtureCal is a realistic coefficient set; the compensation expectations
// below were computed independently from the datasheet formulas.
func fixtureCal() Calibration {
	return Calibration{
		T1: 26136, T2: 26591, T3: 3,
		P1: 36266, P2: -10358, P3: 88, P4: 7979, P5: -120,
		P6: 30, P7: 46, P8: -3225, P9: -2333, P10: 30,
		H1: 718, H2: 1021, H3: 0, H4: 45, H5: 20, H6: 120, H7: -100,
		GH1: -30, GH2: -5969, GH3: 18,
		ResHeatRange: 1, ResHeatVal: 50, RangeSWErr: 0,
	}
}

func relClose(got, want float64) bool {
	if want == 0 {
		return got == 0
	}
	return math.Abs(got-want)/math.Abs(want) < 1e-6
}

func TestTemperature(t *testing.T) {
	cal := fixtureCal()
	degC, tFine := cal.Temperature(492112)
	if !relClose(tFine, 120012.3543689251) {
		t.Errorf("tFine = %v, want 120012.3543689251", tFine)
	}
	if !relClose(degC, 23.439912962680683) {
		t.Errorf("temperature = %v, want 23.439912962680683", degC)
	}
}

func TestPressure(t *testing.T) {
	cal := fixtureCal()
	_, tFine := cal.Temperature(492112)
	if got := cal.Pressure(tFine, 345643); !relClose(got, 988.1210012890012) {
		t.Errorf("pressure = %v hPa, want 988.1210012890012", got)
	}
}

func TestPressureZeroDivisorGuard(t *testing.T) {
	// P1..P3 zero collapse the divisor term; the formula must return 0
	// instead of dividing by zero.
	cal := Calibration{}
	if got := cal.Pressure(120000, 345643); got != 0 {
		t.Errorf("pressure with zero divisor = %v, want 0", got)
	}
}

func TestPressureWithStaleTFine(t *testing.T) {
	// A zero t_fine is degenerate but must still be a defined computation.
	cal := fixtureCal()
	got := cal.Pressure(0, 345643)
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Errorf("pressure with stale t_fine = %v, want a finite value", got)
	}
}

func TestHumidity(t *testing.T) {
	cal := fixtureCal()
	_, tFine := cal.Temperature(492112)
	if got := cal.Humidity(tFine, 25600); !relClose(got, 80.74008773563234) {
		t.Errorf("humidity = %v, want 80.74008773563234", got)
	}
}

func TestHumidityClamped(t *testing.T) {
	cal := fixtureCal()
	_, tFine := cal.Temperature(492112)
	for adc := uint32(0); adc <= 65535; adc += sweepStep(adc) {
		got := cal.Humidity(tFine, adc)
		if got < 0 || got > 100 {
			t.Fatalf("humidity(adc=%d) = %v, outside [0,100]", adc, got)
		}
	}
	if got := cal.Humidity(tFine, 65535); got != 100.0 {
		t.Errorf("humidity(65535) = %v, want clamp at 100", got)
	}
	if got := cal.Humidity(tFine, 0); got != 0.0 {
		t.Errorf("humidity(0) = %v, want clamp at 0", got)
	}
}

// sweepStep walks the 16-bit range densely near the ends, coarsely in the middle.
func sweepStep(adc uint32) uint32 {
	if adc < 1024 || adc > 64000 {
		return 37
	}
	return 997
}

func TestGasResistance(t *testing.T) {
	cal := fixtureCal()
	if got := cal.GasResistance(600, 5); !relClose(got, 192590128.80630493) {
		t.Errorf("gas resistance = %v, want 192590128.80630493", got)
	}
	if got := cal.GasResistance(0, 5); got != 0 {
		t.Errorf("gas resistance with zero ADC = %v, want 0", got)
	}
	if got := cal.GasResistance(600, 16); got != 0 {
		t.Errorf("gas resistance with out-of-table range = %v, want 0", got)
	}
}

func TestHeaterResistance(t *testing.T) {
	cal := fixtureCal()
	if got := cal.HeaterResistance(320, 25); got != 116 {
		t.Errorf("heater resistance(320,25) = %d, want 116", got)
	}
}

func TestHeaterDuration(t *testing.T) {
	cases := []struct {
		ms   int
		want byte
	}{
		{30, 0x1E},
		{63, 0x3F},
		{64, 0x50},
		{150, 0x65},
		{1000, 0xBE},
		{4032, 0xFF},
		{5000, 0xFF},
	}
	for _, c := range cases {
		if got := HeaterDuration(c.ms); got != c.want {
			t.Errorf("HeaterDuration(%d) = 0x%02X, want 0x%02X", c.ms, got, c.want)
		}
	}
}
