package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/env_monitor/internal/config"
	"github.com/relabs-tech/env_monitor/internal/sample"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// webState holds the latest sample per sensor and the set of connected
// WebSocket clients.
type webState struct {
	mu     sync.RWMutex
	latest map[string]sample.Sample

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]bool
}

func newWebState() *webState {
	return &webState{
		latest:  make(map[string]sample.Sample),
		clients: make(map[*websocket.Conn]bool),
	}
}

func (w *webState) update(s sample.Sample) {
	w.mu.Lock()
	w.latest[s.Sensor] = s
	w.mu.Unlock()
}

func (w *webState) snapshot() map[string]sample.Sample {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]sample.Sample, len(w.latest))
	for k, v := range w.latest {
		out[k] = v
	}
	return out
}

// broadcast pushes one sample to every connected WebSocket client. Dead
// connections are dropped.
func (w *webState) broadcast(payload []byte) {
	w.clientsMu.Lock()
	defer w.clientsMu.Unlock()
	for conn := range w.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("web: websocket write error: %v", err)
			conn.Close()
			delete(w.clients, conn)
		}
	}
}

func (w *webState) addClient(conn *websocket.Conn) {
	w.clientsMu.Lock()
	w.clients[conn] = true
	w.clientsMu.Unlock()
}

func (w *webState) removeClient(conn *websocket.Conn) {
	w.clientsMu.Lock()
	if w.clients[conn] {
		delete(w.clients, conn)
		conn.Close()
	}
	w.clientsMu.Unlock()
}

// RunWeb serves the latest samples over HTTP: a JSON snapshot at
// /api/latest, live pushes at /ws, static files from ./web.
func RunWeb() error {
	cfg := config.Get()
	state := newWebState()

	// 1) Connect to MQTT broker
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	// 2) Subscribe to every sensor topic
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
				log.Printf("web: %s unmarshal error: %v", msg.Topic(), err)
				return
			}
			state.update(s)
			state.broadcast(msg.Payload())
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("web: subscribed to %s", topic)
	}

	// 3) JSON API endpoint: latest sample per sensor
	http.HandleFunc("/api/latest", func(w http.ResponseWriter, r *http.Request) {
		snapshot := state.snapshot()
		if len(snapshot) == 0 {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snapshot); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	// 4) WebSocket push of every new sample
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("web: websocket upgrade error: %v", err)
			return
		}
		state.addClient(conn)
		log.Printf("web: websocket client connected from %s", r.RemoteAddr)

		// Reads are only needed to notice the close.
		go func() {
			defer state.removeClient(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})

	// 5) Static files from ./web as the root
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
