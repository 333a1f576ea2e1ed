package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/env_monitor/internal/config"
	"github.com/relabs-tech/env_monitor/internal/sample"
)

// RunConsole subscribes to every sensor topic and prints fixed-width
// terminal lines as samples arrive.
func RunConsole() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

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
				log.Printf("console: %s unmarshal error: %v", msg.Topic(), err)
				return
			}
			fmt.Println(formatSample(s))
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("console: subscribed to %s", topic)
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}

// formatSample renders one fixed-width line per sample, printing only the
// measurements the sensor actually produced.
func formatSample(s sample.Sample) string {
	line := fmt.Sprintf("[%-6s]", s.Sensor)
	if s.Temperature != nil {
		line += fmt.Sprintf("  T=%6.2f°C", *s.Temperature)
	}
	if s.Humidity != nil {
		line += fmt.Sprintf("  RH=%6.2f%%", *s.Humidity)
	}
	if s.Pressure != nil {
		line += fmt.Sprintf("  P=%7.2fhPa", *s.Pressure)
	}
	if s.GasRes != nil {
		line += fmt.Sprintf("  gas=%11.0fΩ", *s.GasRes)
	}
	if s.Illuminance != nil {
		line += fmt.Sprintf("  lux=%8.2f", *s.Illuminance)
	}
	if s.DiffPressure != nil {
		line += fmt.Sprintf("  dP=%8.2fPa", *s.DiffPressure)
	}
	if s.PM1 != nil {
		line += fmt.Sprintf("  PM1=%6.1f", *s.PM1)
	}
	if s.PM25 != nil {
		line += fmt.Sprintf("  PM2.5=%6.1f", *s.PM25)
	}
	if s.PM10 != nil {
		line += fmt.Sprintf("  PM10=%6.1f", *s.PM10)
	}
	return line
}
