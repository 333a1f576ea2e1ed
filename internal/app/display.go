package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/env_monitor/internal/config"
	"github.com/relabs-tech/env_monitor/internal/sample"
)

// displayData holds the latest sample per sensor for the OLED readout.
type displayData struct {
	mu     sync.RWMutex
	latest map[string]sample.Sample
}

func (d *displayData) update(s sample.Sample) {
	d.mu.Lock()
	d.latest[s.Sensor] = s
	d.mu.Unlock()
}

func (d *displayData) get(sensor string) (sample.Sample, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.latest[sensor]
	return s, ok
}

// RunDisplay renders the latest samples on an SSD1306 OLED, updated on a
// fixed tick from MQTT subscriptions.
func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized at 0x%02X", cfg.DisplayI2CAddr)

	if err := showSplash(dev); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &displayData{latest: make(map[string]sample.Sample)}

	// Connect to MQTT
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	topics := []string{
		cfg.TopicBME688,
		cfg.TopicBH1750,
		cfg.TopicSDP810,
		cfg.TopicSHT40,
		cfg.TopicSPS30,
	}
	for _, topic := range topics {
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			var s sample.Sample
			if err := json.Unmarshal(msg.Payload(), &s); err != nil {
				log.Printf("display: %s unmarshal error: %v", msg.Topic(), err)
				return
			}
			data.update(s)
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("display: subscribed to %s", topic)
	}

	// Display update loop
	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		if err := updateReadout(dev, data); err != nil {
			log.Printf("display: error updating: %v", err)
		}
	}

	return nil
}

// updateReadout draws one line per measurement: temperature and humidity
// (SHT40 preferred over BME688), pressure, lux and PM2.5.
func updateReadout(dev *ssd1306.Dev, data *displayData) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := 0; i < 1024; i++ {
		img.Pix[i] = 0
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	lines := readoutLines(data)
	if len(lines) == 0 {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte("Env Monitor"))
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte("Waiting..."))
	} else {
		y := 13
		for _, line := range lines {
			if y > 64 {
				break
			}
			drawer.Dot = fixed.P(0, y)
			drawer.DrawBytes([]byte(line))
			y += 13
		}
	}

	return dev.Draw(dev.Bounds(), img, image.Point{})
}

func readoutLines(data *displayData) []string {
	var lines []string

	// SHT40 wins for temperature/humidity when both are present: it is
	// not skewed by the BME688's heater.
	temp, hum := tempHumidity(data)
	if temp != nil {
		lines = append(lines, fmt.Sprintf("T: %6.1f C", *temp))
	}
	if hum != nil {
		lines = append(lines, fmt.Sprintf("RH: %5.1f %%", *hum))
	}
	if bme, ok := data.get("bme688"); ok && bme.Pressure != nil {
		lines = append(lines, fmt.Sprintf("P: %6.1f hPa", *bme.Pressure))
	}
	if bh, ok := data.get("bh1750"); ok && bh.Illuminance != nil {
		lines = append(lines, fmt.Sprintf("Lux: %7.1f", *bh.Illuminance))
	}
	if sps, ok := data.get("sps30"); ok && sps.PM25 != nil {
		lines = append(lines, fmt.Sprintf("PM2.5: %5.1f", *sps.PM25))
	}
	return lines
}

func tempHumidity(data *displayData) (temp, hum *float64) {
	if sht, ok := data.get("sht40"); ok {
		temp, hum = sht.Temperature, sht.Humidity
	}
	if bme, ok := data.get("bme688"); ok {
		if temp == nil {
			temp = bme.Temperature
		}
		if hum == nil {
			hum = bme.Humidity
		}
	}
	return temp, hum
}

func showSplash(dev *ssd1306.Dev) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := 0; i < 1024; i++ {
		img.Pix[i] = 0
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	drawer.Dot = fixed.P(10, 26)
	drawer.DrawBytes([]byte("Env Monitor"))

	drawer.Dot = fixed.P(5, 43)
	drawer.DrawBytes([]byte("Waiting for"))

	drawer.Dot = fixed.P(25, 56)
	drawer.DrawBytes([]byte("samples"))

	return dev.Draw(dev.Bounds(), img, image.Point{})
}
