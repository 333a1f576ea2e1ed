package app

import (
	"fmt"
	"log"

	"github.com/relabs-tech/env_monitor/internal/i2cbus"
)

// knownDevices maps addresses to the sensors this project expects there.
var knownDevices = map[uint16]string{
	0x23: "BH1750 (ADDR low)",
	0x25: "SDP810",
	0x3C: "SSD1306 display",
	0x44: "SHT40",
	0x5C: "BH1750 (ADDR high)",
	0x70: "TCA9548A mux",
	0x71: "TCA9548A mux",
	0x72: "TCA9548A mux",
	0x73: "TCA9548A mux",
	0x74: "TCA9548A mux",
	0x75: "TCA9548A mux",
	0x76: "BME688 (primary)",
	0x77: "BME688 (secondary)",
}

// RunScan probes every valid 7-bit address on the bus and prints an
// i2cdetect-style table of responders.
func RunScan(busName string) error {
	bus, err := i2cbus.Open(busName)
	if err != nil {
		return err
	}
	defer bus.Close()
	log.Printf("scan: probing I2C bus %s", bus.Name())

	var addrs []uint16
	for addr := uint16(0x03); addr <= 0x77; addr++ {
		addrs = append(addrs, addr)
	}
	found := i2cbus.Scan(bus, addrs)

	present := make(map[uint16]bool, len(found))
	for _, addr := range found {
		present[addr] = true
	}

	fmt.Println("     0  1  2  3  4  5  6  7  8  9  a  b  c  d  e  f")
	for row := uint16(0x00); row <= 0x70; row += 0x10 {
		fmt.Printf("%02x:", row)
		for col := uint16(0); col < 0x10; col++ {
			addr := row + col
			switch {
			case addr < 0x03 || addr > 0x77:
				fmt.Print("   ")
			case present[addr]:
				fmt.Printf(" %02x", addr)
			default:
				fmt.Print(" --")
			}
		}
		fmt.Println()
	}

	for _, addr := range found {
		name := knownDevices[addr]
		if name == "" {
			name = "unknown device"
		}
		fmt.Printf("0x%02X  %s\n", addr, name)
	}
	log.Printf("scan: %d device(s) found", len(found))
	return nil
}
