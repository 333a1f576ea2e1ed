// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text


package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/env_monitor/internal/app"
	"github.com/relabs-tech/env_monitor/internal/config"
)

func main() {
	configPath := flag.String("config", "./env_monitor.conf", "path to configuration file")
	flag.Parse()

	log.Println("starting env-monitor sensor producer (sensors → MQTT)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunProducer(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
