package bme688

import "fmt"

// Calibration holds the factory coefficients read once at connect time.
// The blob layout matches the two coefficient blocks (0x89 x25 + 0xE1 x16)
// concatenated in that order.
type Calibration struct {
	T1 uint16
	T2 int16
	T3 int8

	P1         uint16
	P2, P4, P5 int16
	P3, P6, P7 int8
	P8, P9     int16
	P10        uint8

	H1, H2         uint16
	H3, H4, H5, H7 int8
	H6             uint8

	GH1 int8
	GH2 int16
	GH3 int8

	ResHeatRange uint8 // (0x02 & 0x30) >> 4
	ResHeatVal   int8  // 0x00, two's complement
	RangeSWErr   uint8 // (0x04 & 0xF0) >> 4
}

const calibBlobLen = coeff1Len + coeff2Len

// ParseCalibration decodes the concatenated coefficient blob. The index map
// is fixed by the sensor's register layout.
func ParseCalibration(blob []byte) (Calibration, error) {
	if len(blob) != calibBlobLen {
		return Calibration{}, fmt.Errorf("bme688: calibration blob is %d bytes, want %d", len(blob), calibBlobLen)
	}
	var c Calibration
	c.T1 = uint16(blob[34])<<8 | uint16(blob[33])
	c.T2 = int16(uint16(blob[2])<<8 | uint16(blob[1]))
	c.T3 = int8(blob[3])

	c.P1 = uint16(blob[6])<<8 | uint16(blob[5])
	c.P2 = int16(uint16(blob[8])<<8 | uint16(blob[7]))
	c.P3 = int8(blob[9])
	c.P4 = int16(uint16(blob[12])<<8 | uint16(blob[11]))
	c.P5 = int16(uint16(blob[14])<<8 | uint16(blob[13]))
	c.P6 = int8(blob[16])
	c.P7 = int8(blob[15])
	c.P8 = int16(uint16(blob[20])<<8 | uint16(blob[19]))
	c.P9 = int16(uint16(blob[22])<<8 | uint16(blob[21]))
	c.P10 = blob[23]

	// H1/H2 share the nibble at blob[26].
	c.H1 = uint16(blob[27])<<4 | uint16(blob[26])&0x0F
	c.H2 = uint16(blob[25])<<4 | uint16(blob[26])>>4
	c.H3 = int8(blob[28])
	c.H4 = int8(blob[29])
	c.H5 = int8(blob[30])
	c.H6 = blob[31]
	c.H7 = int8(blob[32])

	c.GH2 = int16(uint16(blob[36])<<8 | uint16(blob[35]))
	c.GH1 = int8(blob[37])
	c.GH3 = int8(blob[38])
	return c, nil
}

// SetHeaterTrim decodes the three heater trim registers into the calibration.
func (c *Calibration) SetHeaterTrim(heatRange, heatVal, swErr byte) {
	c.ResHeatRange = (heatRange & 0x30) >> 4
	c.ResHeatVal = int8(heatVal)
	c.RangeSWErr = (swErr & 0xF0) >> 4
}
