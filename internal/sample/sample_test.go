package sample

import (
	"testing"
	"time"
)

func TestPlausible(t *testing.T) {
	cases := []struct {
		name string
		s    Sample
		want bool
	}{
		{"typical indoor", Sample{Temperature: Float(23.4), Humidity: Float(45.0), Pressure: Float(1013.2)}, true},
		{"temperature low", Sample{Temperature: Float(-2.0)}, false},
		{"temperature high", Sample{Temperature: Float(120.0)}, false},
		{"temperature zero boundary", Sample{Temperature: Float(0.0)}, false},
		{"humidity high", Sample{Humidity: Float(101.0)}, false},
		{"pressure low", Sample{Pressure: Float(700.0)}, false},
		{"pressure high", Sample{Pressure: Float(1300.0)}, false},
		{"lux only", Sample{Illuminance: Float(333.3)}, true},
		{"diff pressure only", Sample{DiffPressure: Float(-480.0)}, true},
		{"empty", Sample{}, true},
	}
	for _, c := range cases {
		c.s.Time = time.Now()
		if got := c.s.Plausible(); got != c.want {
			t.Errorf("%s: Plausible() = %v, want %v", c.name, got, c.want)
		}
	}
}
