// Package sample defines the measurement record emitted by every sensor
// poller and consumed over MQTT by the console, web, display, and exporter.
package sample

import "time"

// Sample is a single timestamped reading from one sensor. Only the fields
// the sensor actually measures are set; the rest stay nil.
type Sample struct {
	Sensor string    `json:"sensor"` // "bme688", "bh1750", "sdp810", "sht40", "sps30"
	Bus    string    `json:"bus"`    // bus the reading came from, e.g. "/dev/i2c-1"
	Time   time.Time `json:"time"`

	Temperature  *float64 `json:"temp_c,omitempty"`        // °C
	Pressure     *float64 `json:"pressure_hpa,omitempty"`  // hPa
	Humidity     *float64 `json:"humidity_rh,omitempty"`   // %RH
	GasRes       *float64 `json:"gas_res_ohm,omitempty"`   // Ω
	Illuminance  *float64 `json:"lux,omitempty"`           // lux
	DiffPressure *float64 `json:"diff_press_pa,omitempty"` // Pa
	PM1          *float64 `json:"pm1,omitempty"`           // µg/m³
	PM25         *float64 `json:"pm25,omitempty"`          // µg/m³
	PM4          *float64 `json:"pm4,omitempty"`           // µg/m³
	PM10         *float64 `json:"pm10,omitempty"`          // µg/m³

	GasValid   bool `json:"gas_valid,omitempty"`
	HeatStable bool `json:"heat_stable,omitempty"`
	// CRCOK is set only by sensors that carry a checksum on the wire
	// (SDP810, SHT40); elsewhere it stays false and means nothing.
	CRCOK bool `json:"crc_ok"`
}

// Float is a convenience for building optional measurement fields.
func Float(v float64) *float64 { return &v }

// Plausible reports whether the sample is inside physically reasonable
// bounds. Samples failing this are discarded by the consumer before
// display or publishing; it guards against transient I2C corruption,
// not against a legitimately misbehaving sensor.
func (s *Sample) Plausible() bool {
	if s.Temperature != nil && (*s.Temperature <= 0 || *s.Temperature >= 100) {
		return false
	}
	if s.Humidity != nil && (*s.Humidity <= 0 || *s.Humidity >= 100) {
		return false
	}
	if s.Pressure != nil && (*s.Pressure <= 800 || *s.Pressure >= 1200) {
		return false
	}
	return true
}
