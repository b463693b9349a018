// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/surface_anchor/internal/app"
	"github.com/relabs-tech/surface_anchor/internal/config"
)

func main() {
	configPath := flag.String("config", "anchor_config.txt", "path to the configuration file")
	flag.Parse()

	log.Println("starting surface-anchor producer (simulated device)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunAnchorProducer(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
