// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/env_monitor/internal/app"
)

func main() {
	busName := flag.String("bus", "1", "I2C bus to probe (periph.io bus name)")
	flag.Parse()

	if err := app.RunScan(*busName); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
