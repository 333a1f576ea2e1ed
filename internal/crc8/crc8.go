// Package crc8 implements the Sensirion CRC-8 checksum used by the SDP810
// and SHT40 to protect 16-bit data words on the wire (polynomial 0x31,
// initialization 0xFF, no reflection, no final XOR).
package crc8

const poly = 0x31

// Sum returns the CRC-8 of data.
func Sum(data []byte) byte {
	crc := byte(0xFF)
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Check reports whether the received CRC matches the CRC of data.
// A mismatch means the sample must be discarded, not treated as fatal.
func Check(data []byte, crc byte) bool {
	return Sum(data) == crc
}
