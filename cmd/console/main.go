// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/surface_anchor/internal/app"
	"github.com/relabs-tech/surface_anchor/internal/sim"
)

func main() {
	unsupported := flag.Bool("unsupported", false, "device answers the support probe with no")
	noHitTest := flag.Bool("no-hit-test", false, "sessions lack hit testing")
	noAPI := flag.Bool("no-api", false, "device exposes no tracking API")
	flag.Parse()

	log.Println("starting surface-anchor (interactive console)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := sim.Options{Supported: !*unsupported, NoHitTest: *noHitTest}
	if err := app.RunAnchorConsole(ctx, opts, *noAPI); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
