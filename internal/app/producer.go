package app

import (
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/env_monitor/internal/bh1750"
	"github.com/relabs-tech/env_monitor/internal/bme688"
	"github.com/relabs-tech/env_monitor/internal/config"
	"github.com/relabs-tech/env_monitor/internal/i2cbus"
	"github.com/relabs-tech/env_monitor/internal/poller"
	"github.com/relabs-tech/env_monitor/internal/sample"
	"github.com/relabs-tech/env_monitor/internal/sdp810"
	"github.com/relabs-tech/env_monitor/internal/sht40"
	"github.com/relabs-tech/env_monitor/internal/sps30"
	"github.com/relabs-tech/env_monitor/internal/tca9548a"
)

// Consecutive-failure thresholds before a sensor loop faults. The slow
// BME688 measurement cycle gets the most slack.
const (
	faultThresholdSDP810 = 3
	faultThresholdSHT40  = 3
	faultThresholdSPS30  = 3
	faultThresholdBH1750 = 5
	faultThresholdBME688 = 10
)

// sensorUnit couples one driver to its poller options and MQTT topic.
type sensorUnit struct {
	driver poller.Driver
	opts   poller.Options
	topic  string
}

// muxedDriver routes a driver through a TCA9548A channel: the channel is
// selected before every transaction so other channels can share the bus.
type muxedDriver struct {
	mux     *tca9548a.Mux
	channel int
	inner   poller.Driver
}

func (m *muxedDriver) Name() string { return m.inner.Name() }

func (m *muxedDriver) Connect() error {
	if err := m.mux.Select(m.channel); err != nil {
		return err
	}
	return m.inner.Connect()
}

func (m *muxedDriver) Read() (sample.Sample, bool, error) {
	if err := m.mux.Select(m.channel); err != nil {
		return sample.Sample{}, false, err
	}
	return m.inner.Read()
}

func (m *muxedDriver) Close() error { return m.inner.Close() }

// buildSensors constructs one sensorUnit per enabled sensor.
func buildSensors(cfg *config.Config, bus i2cbus.Bus) []sensorUnit {
	var units []sensorUnit

	if cfg.BME688Enabled {
		bmeCfg := bme688.DefaultConfig()
		bmeCfg.Addr = cfg.BME688Addr
		bmeCfg.TempOffset = cfg.BME688TempOffset
		bmeCfg.HeaterTargetC = cfg.BME688HeaterTarget
		bmeCfg.HeaterDuration = time.Duration(cfg.BME688HeaterDuration) * time.Millisecond
		units = append(units, sensorUnit{
			driver: bme688.New(bus, bmeCfg),
			opts: poller.Options{
				Interval:       time.Duration(cfg.BME688Interval) * time.Millisecond,
				FaultThreshold: faultThresholdBME688,
				QueueSize:      cfg.SampleQueueSize,
			},
			topic: cfg.TopicBME688,
		})
	}

	if cfg.BH1750Enabled {
		bhCfg := bh1750.Config{Addr: cfg.BH1750Addr}
		if cfg.BH1750MuxChannel >= 0 {
			// Behind the mux the sensor keeps measuring while other
			// channels are selected, so use the continuous mode.
			bhCfg.Mode = bh1750.ContinuousHighRes2
		}
		var driver poller.Driver = bh1750.New(bus, bhCfg)
		if cfg.BH1750MuxChannel >= 0 {
			driver = &muxedDriver{
				mux:     tca9548a.New(bus, cfg.MuxAddr),
				channel: cfg.BH1750MuxChannel,
				inner:   driver,
			}
		}
		units = append(units, sensorUnit{
			driver: driver,
			opts: poller.Options{
				Interval:       time.Duration(cfg.BH1750Interval) * time.Millisecond,
				FaultThreshold: faultThresholdBH1750,
				QueueSize:      cfg.SampleQueueSize,
			},
			topic: cfg.TopicBH1750,
		})
	}

	if cfg.SDP810Enabled {
		sdpCfg := sdp810.Config{Addr: cfg.SDP810Addr, ClampPa: cfg.SDP810ClampPa}
		if cfg.SDP810Direction == "Reverse" {
			sdpCfg.Direction = sdp810.Reverse
		}
		units = append(units, sensorUnit{
			driver: sdp810.New(bus, sdpCfg),
			opts: poller.Options{
				Interval:       time.Duration(cfg.SDP810Interval) * time.Millisecond,
				FaultThreshold: faultThresholdSDP810,
				QueueSize:      cfg.SampleQueueSize,
			},
			topic: cfg.TopicSDP810,
		})
	}

	if cfg.SHT40Enabled {
		units = append(units, sensorUnit{
			driver: sht40.New(bus, sht40.Config{Addr: cfg.SHT40Addr}),
			opts: poller.Options{
				Interval:       time.Duration(cfg.SHT40Interval) * time.Millisecond,
				FaultThreshold: faultThresholdSHT40,
				QueueSize:      cfg.SampleQueueSize,
			},
			topic: cfg.TopicSHT40,
		})
	}

	if cfg.SPS30Enabled {
		units = append(units, sensorUnit{
			driver: sps30.New(sps30.Config{Port: cfg.SPS30SerialPort, Baud: uint(cfg.SPS30BaudRate)}),
			opts: poller.Options{
				Interval:       time.Duration(cfg.SPS30Interval) * time.Millisecond,
				FaultThreshold: faultThresholdSPS30,
				QueueSize:      cfg.SampleQueueSize,
			},
			topic: cfg.TopicSPS30,
		})
	}

	return units
}

// RunProducer opens the bus, starts one sampling loop per enabled sensor
// and publishes every plausible sample as JSON to its MQTT topic.
func RunProducer() error {
	cfg := config.Get()

	// ---- 1) Open the shared I2C bus ----
	bus, err := i2cbus.Open(cfg.I2CBus)
	if err != nil {
		return err
	}
	defer bus.Close()
	log.Printf("producer: opened I2C bus %s", bus.Name())

	units := buildSensors(cfg, bus)
	log.Printf("producer: %d sensor(s) enabled", len(units))

	// ---- 2) Connect to MQTT ----
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDProducer)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("producer: connected to MQTT broker at %s", cfg.MQTTBroker)

	// ---- 3) One poller + publisher goroutine per sensor ----
	var wg sync.WaitGroup
	pollers := make([]*poller.Poller, 0, len(units))

	for _, u := range units {
		p := poller.New(u.driver, u.opts)
		pollers = append(pollers, p)

		wg.Add(2)
		go func() {
			defer wg.Done()
			p.Run()
		}()
		go func(topic string, p *poller.Poller) {
			defer wg.Done()
			publishSamples(client, topic, p)
		}(u.topic, p)
	}

	// ---- 4) Wait for Ctrl+C ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("producer: shutting down")
	for _, p := range pollers {
		p.Stop()
	}
	wg.Wait()
	return nil
}

// publishSamples drains one poller until its channel closes. Samples that
// fail the plausibility filter are dropped: they indicate transient bus
// corruption, not sensor error.
func publishSamples(client mqtt.Client, topic string, p *poller.Poller) {
	for s := range p.Samples() {
		if !s.Plausible() {
			log.Printf("producer: dropping implausible %s sample", s.Sensor)
			continue
		}

		payload, err := json.Marshal(s)
		if err != nil {
			log.Printf("producer: %s marshal error: %v", s.Sensor, err)
			continue
		}
		if token := client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
			log.Printf("producer: MQTT publish error (%s): %v", topic, token.Error())
		}
	}
	log.Printf("producer: %s loop finished in state %s", topic, p.State())
}
