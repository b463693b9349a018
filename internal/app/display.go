// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/surface_anchor/internal/config"
	"github.com/relabs-tech/surface_anchor/internal/overlay"
	"github.com/relabs-tech/surface_anchor/internal/wire"
)

const (
	panelWidth  = 128
	panelHeight = 64

	// ssd1306DefaultAddr is the address the driver talks to.
	ssd1306DefaultAddr = 0x3C
)

// addrBus sends the driver's transfers to a panel strapped to a
// different address.
type addrBus struct {
	i2c.Bus
	addr uint16
}

func (b *addrBus) Tx(addr uint16, w, r []byte) error {
	if addr == ssd1306DefaultAddr {
		addr = b.addr
	}
	return b.Bus.Tx(addr, w, r)
}

func (b *addrBus) String() string {
	return fmt.Sprintf("%s@0x%02X", b.Bus, b.addr)
}

func newPanel() *image1bit.VerticalLSB {
	return image1bit.NewVerticalLSB(image.Rect(0, 0, panelWidth, panelHeight))
}

// renderPanel draws the latest state, or a waiting screen before the
// first one arrives.
func renderPanel(s *wire.State) *image1bit.VerticalLSB {
	img := newPanel()
	ink := &image.Uniform{image1bit.On}
	if s == nil {
		overlay.Draw(img, ink, []string{"Surface Anchor", "Waiting..."})
		return img
	}
	overlay.Draw(img, ink, overlay.Lines(s.Snapshot, panelWidth))
	return img
}

// RunDisplay shows the producer's state on an SSD1306 OLED.
func RunDisplay() error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("config not initialized")
	}

	codec, err := wire.NewCodec(cfg.PayloadEncoding)
	if err != nil {
		return err
	}

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	var panelBus i2c.Bus = bus
	if cfg.DisplayI2CAddr != ssd1306DefaultAddr {
		panelBus = &addrBus{Bus: bus, addr: cfg.DisplayI2CAddr}
	}

	dev, err := ssd1306.NewI2C(panelBus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized at 0x%02X", cfg.DisplayI2CAddr)

	if err := dev.Draw(dev.Bounds(), renderPanel(nil), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	var (
		mu     sync.Mutex
		latest *wire.State
		dirty  bool
	)

	client, err := connectMQTT("display", cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	if err := subscribeDecoded("display", client, codec, cfg.TopicState, func(s wire.State) {
		mu.Lock()
		latest = &s
		dirty = true
		mu.Unlock()
	}); err != nil {
		return err
	}

	ticker := time.NewTicker(cfg.DisplayInterval())
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		mu.Lock()
		s, redraw := latest, dirty
		dirty = false
		mu.Unlock()
		if !redraw {
			continue
		}

		if err := dev.Draw(dev.Bounds(), renderPanel(s), image.Point{}); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}
