package crc8

import "testing"

func TestSum(t *testing.T) {
	cases := []struct {
		data []byte
		want byte
	}{
		// Sensirion datasheet example (SHT3x/SHT4x family): CRC(0xBEEF) = 0x92.
		{[]byte{0xBE, 0xEF}, 0x92},
		{[]byte{0x01, 0x90}, 0x4C},
		{[]byte{0x66, 0x66}, 0x93},
		{[]byte{0x80, 0x00}, 0xA2},
		{[]byte{0x00, 0x00}, 0x81},
		{[]byte{0xFF, 0xFF}, 0xAC},
	}
	for _, c := range cases {
		if got := Sum(c.data); got != c.want {
			t.Errorf("Sum(% X) = 0x%02X, want 0x%02X", c.data, got, c.want)
		}
	}
}

func TestSumDeterministic(t *testing.T) {
	data := []byte{0x5D, 0xC0}
	first := Sum(data)
	for i := 0; i < 100; i++ {
		if got := Sum(data); got != first {
			t.Fatalf("Sum not deterministic: run %d got 0x%02X, first 0x%02X", i, got, first)
		}
	}
}

func TestCheck(t *testing.T) {
	if !Check([]byte{0xBE, 0xEF}, 0x92) {
		t.Error("Check rejects a valid CRC")
	}
	if Check([]byte{0xBE, 0xEF}, 0x93) {
		t.Error("Check accepts a corrupted CRC")
	}
}
