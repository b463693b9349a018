// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/relabs-tech/surface_anchor/internal/config"
	"github.com/relabs-tech/surface_anchor/internal/wire"
)

func formatState(s wire.State) string {
	line := fmt.Sprintf("[STATE] %-16s support=%s can_start=%t", s.State, s.Support, s.CanStart)
	if s.SessionID != "" {
		line += " session=" + s.SessionID
	}
	line += fmt.Sprintf("  %q", s.Message)
	return line
}

func formatEvent(e wire.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[EVENT] %-16s", e.Kind)
	if e.SessionID != "" {
		fmt.Fprintf(&b, " session=%s", e.SessionID)
	}
	if e.Scene != nil {
		p := e.Scene.Position
		fmt.Fprintf(&b, " scene=(%.3f, %.3f, %.3f)", p.X, p.Y, p.Z)
	}
	if e.Fix != nil {
		fmt.Fprintf(&b, " lat=%.6f lon=%.6f", e.Fix.Latitude, e.Fix.Longitude)
	}
	if e.Error != "" {
		fmt.Fprintf(&b, " error=%q", e.Error)
	}
	return b.String()
}

// RunConsoleMQTT prints state and event traffic until interrupted.
func RunConsoleMQTT() error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("config not initialized")
	}

	codec, err := wire.NewCodec(cfg.PayloadEncoding)
	if err != nil {
		return err
	}

	client, err := connectMQTT("console", cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}

	if err := subscribeDecoded("console", client, codec, cfg.TopicState, func(s wire.State) {
		fmt.Println(formatState(s))
	}); err != nil {
		return err
	}
	if err := subscribeDecoded("console", client, codec, cfg.TopicEvents, func(e wire.Event) {
		fmt.Println(formatEvent(e))
	}); err != nil {
		return err
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
