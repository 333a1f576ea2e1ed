package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string
	MQTTClientIDDisplay  string
	MQTTClientIDExporter string

	// Topics
	TopicBME688 string
	TopicBH1750 string
	TopicSDP810 string
	TopicSHT40  string
	TopicSPS30  string

	// I2C bus name as understood by periph.io ("1", "/dev/i2c-1", "").
	I2CBus string

	// BME688
	BME688Enabled        bool
	BME688Addr           uint16
	BME688Interval       int // milliseconds
	BME688TempOffset     float64
	BME688HeaterTarget   int // °C
	BME688HeaterDuration int // milliseconds

	// BH1750
	BH1750Enabled    bool
	BH1750Addr       uint16
	BH1750Interval   int // milliseconds
	BH1750MuxChannel int // TCA9548A channel, -1 when wired directly

	// SDP810
	SDP810Enabled   bool
	SDP810Addr      uint16
	SDP810Interval  int // milliseconds
	SDP810ClampPa   float64
	SDP810Direction string // "Normal" or "Reverse", sign of the reading

	// SHT40
	SHT40Enabled  bool
	SHT40Addr     uint16
	SHT40Interval int // milliseconds

	// SPS30 (UART)
	SPS30Enabled    bool
	SPS30SerialPort string
	SPS30BaudRate   int
	SPS30Interval   int // milliseconds

	// TCA9548A multiplexer
	MuxAddr uint16

	// Sample queue bound per sensor poller.
	SampleQueueSize int

	// Timing
	ConsoleLogInterval int // milliseconds

	// Web Server
	WebServerPort int

	// Prometheus exporter
	ExporterPort int

	// Display
	DisplayI2CAddr        uint16
	DisplayUpdateInterval int // milliseconds
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported so other packages cannot access it directly.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access. Write lock (Lock) for
//     initialization, read lock (RLock) for Get().
//
// External code must use InitGlobal() to set and Get() to read.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// defaults returns a Config pre-filled with working values for a single
// Raspberry Pi with every sensor at its standard address. The config file
// overrides what it names.
func defaults() *Config {
	return &Config{
		MQTTClientIDProducer: "env-producer",
		MQTTClientIDConsole:  "env-console",
		MQTTClientIDWeb:      "env-web",
		MQTTClientIDDisplay:  "env-display",
		MQTTClientIDExporter: "env-exporter",

		TopicBME688: "sensors/bme688",
		TopicBH1750: "sensors/bh1750",
		TopicSDP810: "sensors/sdp810",
		TopicSHT40:  "sensors/sht40",
		TopicSPS30:  "sensors/sps30",

		I2CBus: "1",

		BME688Addr:           0x77,
		BME688Interval:       3000,
		BME688TempOffset:     -9.2,
		BME688HeaterTarget:   320,
		BME688HeaterDuration: 150,

		BH1750Addr:       0x23,
		BH1750Interval:   1000,
		BH1750MuxChannel: -1,

		SDP810Addr:      0x25,
		SDP810Interval:  500,
		SDP810ClampPa:   500,
		SDP810Direction: "Normal",

		SHT40Addr:     0x44,
		SHT40Interval: 1000,

		SPS30SerialPort: "/dev/ttyUSB0",
		SPS30BaudRate:   115200,
		SPS30Interval:   3000,

		MuxAddr: 0x70,

		SampleQueueSize: 64,

		ConsoleLogInterval: 1000,

		WebServerPort: 8080,
		ExporterPort:  9100,

		DisplayI2CAddr:        0x3C,
		DisplayUpdateInterval: 1000,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := defaults()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value
	case "MQTT_CLIENT_ID_EXPORTER":
		c.MQTTClientIDExporter = value

	// Topics
	case "TOPIC_BME688":
		c.TopicBME688 = value
	case "TOPIC_BH1750":
		c.TopicBH1750 = value
	case "TOPIC_SDP810":
		c.TopicSDP810 = value
	case "TOPIC_SHT40":
		c.TopicSHT40 = value
	case "TOPIC_SPS30":
		c.TopicSPS30 = value

	// I2C
	case "I2C_BUS":
		c.I2CBus = value

	// BME688
	case "BME688_ENABLED":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid BME688_ENABLED %q: %w", value, err)
		}
		c.BME688Enabled = enabled
	case "BME688_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid BME688_ADDR %q: %w", value, err)
		}
		if addr != 0x76 && addr != 0x77 {
			return fmt.Errorf("BME688_ADDR must be 0x76 or 0x77, got 0x%02X", addr)
		}
		c.BME688Addr = uint16(addr)
	case "BME688_SAMPLE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid BME688_SAMPLE_INTERVAL %q: %w", value, err)
		}
		c.BME688Interval = interval
	case "BME688_TEMP_OFFSET":
		offset, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid BME688_TEMP_OFFSET %q: %w", value, err)
		}
		c.BME688TempOffset = offset
	case "BME688_HEATER_TARGET":
		target, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid BME688_HEATER_TARGET %q: %w", value, err)
		}
		if target < 200 || target > 400 {
			return fmt.Errorf("BME688_HEATER_TARGET must be 200-400 °C, got %d", target)
		}
		c.BME688HeaterTarget = target
	case "BME688_HEATER_DURATION":
		dur, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid BME688_HEATER_DURATION %q: %w", value, err)
		}
		c.BME688HeaterDuration = dur

	// BH1750
	case "BH1750_ENABLED":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid BH1750_ENABLED %q: %w", value, err)
		}
		c.BH1750Enabled = enabled
	case "BH1750_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid BH1750_ADDR %q: %w", value, err)
		}
		if addr != 0x23 && addr != 0x5C {
			return fmt.Errorf("BH1750_ADDR must be 0x23 or 0x5C, got 0x%02X", addr)
		}
		c.BH1750Addr = uint16(addr)
	case "BH1750_SAMPLE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid BH1750_SAMPLE_INTERVAL %q: %w", value, err)
		}
		c.BH1750Interval = interval
	case "BH1750_MUX_CHANNEL":
		ch, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid BH1750_MUX_CHANNEL %q: %w", value, err)
		}
		if ch < -1 || ch > 7 {
			return fmt.Errorf("BH1750_MUX_CHANNEL must be -1 (no mux) or 0-7, got %d", ch)
		}
		c.BH1750MuxChannel = ch

	// SDP810
	case "SDP810_ENABLED":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid SDP810_ENABLED %q: %w", value, err)
		}
		c.SDP810Enabled = enabled
	case "SDP810_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid SDP810_ADDR %q: %w", value, err)
		}
		c.SDP810Addr = uint16(addr)
	case "SDP810_SAMPLE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SDP810_SAMPLE_INTERVAL %q: %w", value, err)
		}
		c.SDP810Interval = interval
	case "SDP810_CLAMP_PA":
		clamp, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid SDP810_CLAMP_PA %q: %w", value, err)
		}
		if clamp <= 0 {
			return fmt.Errorf("SDP810_CLAMP_PA must be positive, got %v", clamp)
		}
		c.SDP810ClampPa = clamp
	case "SDP810_DIRECTION":
		if value != "Normal" && value != "Reverse" {
			return fmt.Errorf("SDP810_DIRECTION must be Normal or Reverse, got %q", value)
		}
		c.SDP810Direction = value

	// SHT40
	case "SHT40_ENABLED":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid SHT40_ENABLED %q: %w", value, err)
		}
		c.SHT40Enabled = enabled
	case "SHT40_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid SHT40_ADDR %q: %w", value, err)
		}
		c.SHT40Addr = uint16(addr)
	case "SHT40_SAMPLE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SHT40_SAMPLE_INTERVAL %q: %w", value, err)
		}
		c.SHT40Interval = interval

	// SPS30
	case "SPS30_ENABLED":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid SPS30_ENABLED %q: %w", value, err)
		}
		c.SPS30Enabled = enabled
	case "SPS30_SERIAL_PORT":
		c.SPS30SerialPort = value
	case "SPS30_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SPS30_BAUD_RATE %q: %w", value, err)
		}
		c.SPS30BaudRate = rate
	case "SPS30_SAMPLE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SPS30_SAMPLE_INTERVAL %q: %w", value, err)
		}
		c.SPS30Interval = interval

	// Multiplexer
	case "MUX_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid MUX_ADDR %q: %w", value, err)
		}
		if addr < 0x70 || addr > 0x77 {
			return fmt.Errorf("MUX_ADDR must be 0x70-0x77, got 0x%02X", addr)
		}
		c.MuxAddr = uint16(addr)

	// Queue
	case "SAMPLE_QUEUE_SIZE":
		size, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SAMPLE_QUEUE_SIZE %q: %w", value, err)
		}
		if size < 1 {
			return fmt.Errorf("SAMPLE_QUEUE_SIZE must be at least 1, got %d", size)
		}
		c.SampleQueueSize = size

	// Timing
	case "CONSOLE_LOG_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CONSOLE_LOG_INTERVAL %q: %w", value, err)
		}
		c.ConsoleLogInterval = interval

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Prometheus exporter
	case "EXPORTER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid EXPORTER_PORT %q: %w", value, err)
		}
		c.ExporterPort = port

	// Display
	case "DISPLAY_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_I2C_ADDR %q: %w", value, err)
		}
		c.DisplayI2CAddr = uint16(addr)
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.SPS30Enabled && c.SPS30SerialPort == "" {
		return fmt.Errorf("SPS30_SERIAL_PORT is required when SPS30_ENABLED is set")
	}
	if !c.BME688Enabled && !c.BH1750Enabled && !c.SDP810Enabled && !c.SHT40Enabled && !c.SPS30Enabled {
		return fmt.Errorf("at least one sensor must be enabled")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
