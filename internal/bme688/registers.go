// Package bme688 drives the Bosch BME688 temperature/pressure/humidity/gas
// sensor over I2C and implements the vendor compensation formulas.
// Datasheet: https://www.bosch-sensortec.com/media/boschsensortec/downloads/datasheets/bst-bme688-ds000.pdf
package bme688

// Fixed I2C addresses.
const (
	AddrPrimary   uint16 = 0x76
	AddrSecondary uint16 = 0x77
)

const (
	regChipID    byte = 0xD0 // useful for checking the connection
	chipID       byte = 0x61 // correct response for BME680/688
	regSoftReset byte = 0xE0
	softResetCmd byte = 0xB6

	// Calibration coefficients live in two factory memory blocks plus three
	// heater trim registers.
	regCoeff1    byte = 0x89
	coeff1Len         = 25
	regCoeff2    byte = 0xE1
	coeff2Len         = 16
	regHeatVal   byte = 0x00
	regHeatRange byte = 0x02
	regSWErr     byte = 0x04

	regMeasStatus byte = 0x1D // field 0 status
	regPressMSB   byte = 0x1F // press 0x1F..0x21, temp 0x22..0x24, hum 0x25..0x26
	regGasMSB     byte = 0x2A // gas 0x2A..0x2B

	regHeatCtrl   byte = 0x70
	regGasCtrl    byte = 0x71
	regHumCtrl    byte = 0x72
	regMeasCtrl   byte = 0x74
	regConfig     byte = 0x75
	regResHeat0   byte = 0x5A
	regGasWait0   byte = 0x64

	newDataMask    byte = 0x80
	gasValidMask   byte = 0x20
	heatStableMask byte = 0x10

	// Oversampling codes.
	osSkip byte = 0
	os1x   byte = 1
	os2x   byte = 2
	os4x   byte = 3
	os8x   byte = 4
	os16x  byte = 5

	ostPos  = 5
	ospPos  = 2
	iirPos  = 2
	iir7    byte = 3 // filter coefficient 7

	modeSleep  byte = 0
	modeForced byte = 1

	runGasEnable byte = 1
	runGasPos         = 4
	enableHeater byte = 0x00
)
