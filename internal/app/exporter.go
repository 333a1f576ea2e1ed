package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relabs-tech/env_monitor/internal/config"
	"github.com/relabs-tech/env_monitor/internal/sample"
)

// metrics to expose to Prometheus
var (
	gaugeTemperature  = newGauge("env_temperature", "Air temperature (units: degrees Celsius)")
	gaugeHumidity     = newGauge("env_humidity", "Relative humidity (units: %RH)")
	gaugePressure     = newGauge("env_pressure", "Barometric pressure (units: hPa)")
	gaugeGasRes       = newGauge("env_gas_resistance", "VOC heater plate gas resistance (units: Ohm)")
	gaugeIlluminance  = newGauge("env_illuminance", "Ambient light level (units: lux)")
	gaugeDiffPressure = newGauge("env_diff_pressure", "Differential pressure (units: Pa)")
	gaugePM1          = newGauge("env_pm1", "PM1.0 mass concentration (units: ug/m3)")
	gaugePM25         = newGauge("env_pm2_5", "PM2.5 mass concentration (units: ug/m3)")
	gaugePM4          = newGauge("env_pm4", "PM4.0 mass concentration (units: ug/m3)")
	gaugePM10         = newGauge("env_pm10", "PM10 mass concentration (units: ug/m3)")
)

func newGauge(name string, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
		[]string{"sensor"},
	)
}

func init() {
	prometheus.MustRegister(gaugeTemperature)
	prometheus.MustRegister(gaugeHumidity)
	prometheus.MustRegister(gaugePressure)
	prometheus.MustRegister(gaugeGasRes)
	prometheus.MustRegister(gaugeIlluminance)
	prometheus.MustRegister(gaugeDiffPressure)
	prometheus.MustRegister(gaugePM1)
	prometheus.MustRegister(gaugePM25)
	prometheus.MustRegister(gaugePM4)
	prometheus.MustRegister(gaugePM10)

	// Add Go module build info.
	prometheus.MustRegister(prometheus.NewBuildInfoCollector())
}

// export sets every gauge the sample carries a value for.
func export(s sample.Sample) {
	set := func(g *prometheus.GaugeVec, v *float64) {
		if v != nil {
			g.WithLabelValues(s.Sensor).Set(*v)
		}
	}
	set(gaugeTemperature, s.Temperature)
	set(gaugeHumidity, s.Humidity)
	set(gaugePressure, s.Pressure)
	set(gaugeGasRes, s.GasRes)
	set(gaugeIlluminance, s.Illuminance)
	set(gaugeDiffPressure, s.DiffPressure)
	set(gaugePM1, s.PM1)
	set(gaugePM25, s.PM25)
	set(gaugePM4, s.PM4)
	set(gaugePM10, s.PM10)
}

// RunExporter bridges MQTT samples into a Prometheus /metrics endpoint.
func RunExporter() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDExporter)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("exporter: connected to MQTT broker at %s", cfg.MQTTBroker)

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
				log.Printf("exporter: %s unmarshal error: %v", msg.Topic(), err)
				return
			}
			export(s)
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("exporter: subscribed to %s", topic)
	}

	// Expose the registered metrics via HTTP.
	http.Handle("/metrics", promhttp.HandlerFor(
		prometheus.DefaultGatherer,
		promhttp.HandlerOpts{
			// Opt into OpenMetrics to support exemplars.
			EnableOpenMetrics: true,
		},
	))

	addr := fmt.Sprintf(":%d", cfg.ExporterPort)
	log.Printf("exporter: metrics listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
