package bme688

// Vendor compensation polynomials, evaluated in float64 with the exact
// operation order of the Bosch reference implementation. Do not refactor the
// arithmetic: evaluation order affects the result at the rounding level the
// datasheet fixtures expect.
//
// The t_fine intermediate couples the formulas: Temperature computes it,
// Pressure and Humidity consume it. It is threaded explicitly through the
// calls instead of being hidden in mutable state so the ordering dependency
// stays visible.

// Temperature converts a 20-bit temperature ADC code to °C and returns the
// t_fine intermediate required by Pressure and Humidity for the same sample.
func (c *Calibration) Temperature(adc uint32) (degC, tFine float64) {
	var1 := (float64(adc)/16384.0 - float64(c.T1)/1024.0) * float64(c.T2)
	var2 := (float64(adc)/131072.0 - float64(c.T1)/8192.0) *
		(float64(adc)/131072.0 - float64(c.T1)/8192.0) * (float64(c.T3) * 16.0)
	tFine = var1 + var2
	return tFine / 5120.0, tFine
}

// Pressure converts a 20-bit pressure ADC code to hPa. tFine must come from
// Temperature for the same reading cycle; a stale tFine is a degenerate but
// defined computation. Returns 0 when the first divisor term collapses to 0.
func (c *Calibration) Pressure(tFine float64, adc uint32) float64 {
	var1 := (tFine / 2.0) - 64000.0
	var2 := var1 * var1 * (float64(c.P6) / 131072.0)
	var2 = var2 + (var1 * float64(c.P5) * 2.0)
	var2 = (var2 / 4.0) + (float64(c.P4) * 65536.0)
	var1 = (((float64(c.P3) * var1 * var1) / 16384.0) +
		(float64(c.P2) * var1)) / 524288.0
	var1 = (1.0 + (var1 / 32768.0)) * float64(c.P1)

	if var1 == 0 {
		return 0
	}

	press := 1048576.0 - float64(adc)
	press = ((press - (var2 / 4096.0)) * 6250.0) / var1
	var1 = (float64(c.P9) * press * press) / 2147483648.0
	var2 = press * (float64(c.P8) / 32768.0)
	var3 := (press / 256.0) * (press / 256.0) * (press / 256.0) * (float64(c.P10) / 131072.0)
	press = press + (var1+var2+var3+(float64(c.P7)*128.0))/16.0

	return press / 100.0 // Pa to hPa
}

// Humidity converts a 16-bit humidity ADC code to %RH, clamped to [0,100].
func (c *Calibration) Humidity(tFine float64, adc uint32) float64 {
	tempScaled := tFine / 5120.0

	var1 := float64(adc) - (float64(c.H1)*16.0 + (float64(c.H3)/2.0)*tempScaled)
	var2 := var1 * ((float64(c.H2) / 262144.0) *
		(1.0 + (float64(c.H4)/16384.0)*tempScaled +
			(float64(c.H5)/1048576.0)*tempScaled*tempScaled))
	var3 := float64(c.H6) / 16384.0
	var4 := float64(c.H7) / 2097152.0
	hum := var2 + ((var3 + (var4 * tempScaled)) * var2 * var2)

	if hum > 100.0 {
		return 100.0
	}
	if hum < 0.0 {
		return 0.0
	}
	return hum
}

// Gas range constants, indexed by the 4-bit gas_range field.
var lookupTable1 = [16]float64{
	2147483647.0, 2147483647.0, 2147483647.0, 2147483647.0,
	2147483647.0, 2126008810.0, 2147483647.0, 2130303777.0,
	2147483647.0, 2147483647.0, 2143188679.0, 2136746228.0,
	2147483647.0, 2126008810.0, 2147483647.0, 2147483647.0,
}

var lookupTable2 = [16]float64{
	4096000000.0, 2048000000.0, 1024000000.0, 512000000.0,
	255744255.0, 127110228.0, 64000000.0, 32258064.0,
	16016016.0, 8000000.0, 4000000.0, 2000000.0,
	1000000.0, 500000.0, 250000.0, 125000.0,
}

// GasResistance converts the 10-bit gas ADC code and its range index to Ω.
// The caller is responsible for only using the result when the frame's
// gas_valid and heat_stable flags are both set.
func (c *Calibration) GasResistance(adc uint16, gasRange int) float64 {
	if adc == 0 || gasRange < 0 || gasRange >= len(lookupTable1) {
		return 0
	}
	var1 := lookupTable1[gasRange]
	var2 := lookupTable2[gasRange]
	var3 := ((1340.0 + (5.0 * float64(c.ResHeatRange))) * var1) / 65536.0
	return var3 + (var2*float64(adc))/512.0 + float64(adc)
}

// HeaterResistance computes the res_heat register value for a heater target
// temperature given an assumed ambient temperature (both °C). Result is
// clamped to one byte. Configuration-time only, not per-sample.
func (c *Calibration) HeaterResistance(targetC, ambientC int) byte {
	var1 := (float64(c.GH1) / 16.0) + 49.0
	var2 := ((float64(c.GH2) / 32768.0) * 0.0005) + 0.00235
	var3 := float64(c.GH3) / 1024.0
	var4 := var1 * (1.0 + (var2 * float64(targetC)))
	var5 := var4 + (var3 * float64(ambientC))

	resHeat := int(3.4 * ((var5 * (4.0 / (4.0 + float64(c.ResHeatRange))) *
		(1.0 / (1.0 + (float64(c.ResHeatVal) * 0.002)))) - 25))

	if resHeat < 0 {
		return 0
	}
	if resHeat > 255 {
		return 255
	}
	return byte(resHeat)
}

// HeaterDuration encodes a heater-on time in milliseconds into the
// (mantissa, exponent) byte the gas_wait register expects: the value is
// divided by 4 until it fits 6 bits, with the division count packed into
// the top bits as a multiple of 64. Durations of 0xFC0 ms and up saturate.
func HeaterDuration(ms int) byte {
	if ms >= 0xFC0 {
		return 0xFF
	}
	factor := 0
	for ms > 0x3F {
		ms /= 4
		factor++
	}
	return byte(ms + factor*64)
}
