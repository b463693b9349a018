// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/surface_anchor/internal/ar"
	"github.com/relabs-tech/surface_anchor/internal/config"
	"github.com/relabs-tech/surface_anchor/internal/gps"
	"github.com/relabs-tech/surface_anchor/internal/messages"
	"github.com/relabs-tech/surface_anchor/internal/orientation"
	"github.com/relabs-tech/surface_anchor/internal/sim"
	"github.com/relabs-tech/surface_anchor/internal/wire"
	"github.com/relabs-tech/surface_anchor/internal/xr"
)

const (
	eventQueueSize   = 64
	commandQueueSize = 16
)

// newSimSystem builds the simulated tracking device described by cfg.
// The system is nil when the device has no tracking API at all.
func newSimSystem(cfg *config.Config) (*sim.Device, xr.System) {
	if !cfg.SimCapability {
		return nil, nil
	}
	dev := sim.NewDevice(sim.Options{
		Supported: cfg.SimSupported,
		NoHitTest: !cfg.SimHitTest,
	})
	dev.SetHitFunc(sim.WanderingHits(uint64(cfg.SimScanFrames)))
	return dev, dev
}

// latestSnapshot is a single-slot mailbox. A put never blocks, and a
// slow consumer only ever sees the newest snapshot.
type latestSnapshot struct {
	mu      sync.Mutex
	pending *ar.Snapshot
	ready   chan struct{}
}

func newLatestSnapshot() *latestSnapshot {
	return &latestSnapshot{ready: make(chan struct{}, 1)}
}

func (l *latestSnapshot) put(s ar.Snapshot) {
	l.mu.Lock()
	l.pending = &s
	l.mu.Unlock()
	select {
	case l.ready <- struct{}{}:
	default:
	}
}

func (l *latestSnapshot) take() (ar.Snapshot, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending == nil {
		return ar.Snapshot{}, false
	}
	s := *l.pending
	l.pending = nil
	return s, true
}

// samplePose builds the high-frequency pose payload.
func samplePose(o *ar.Orchestrator, t time.Time) wire.Pose {
	snap := o.Snapshot()
	p := wire.Pose{
		Timestamp:          t.UnixMilli(),
		Scene:              snap.ScenePose,
		SceneEuler:         orientation.ToEuler(snap.ScenePose.Orientation),
		ContentOrientation: snap.ContentOrientation,
	}
	if hit, ok := o.HitPose(); ok {
		p.Hit = &hit
	}
	if reticle, ok := o.Reticle().Pose(); ok {
		p.Reticle = &reticle
	}
	return p
}

type producer struct {
	cfg      *config.Config
	codec    wire.Codec
	client   mqtt.Client
	o        *ar.Orchestrator
	dev      *sim.Device
	renderer *sim.Renderer
	fix      gps.Latest

	states   *latestSnapshot
	events   chan ar.Event
	commands chan wire.Command
}

// RunAnchorProducer runs the anchoring core on the simulated device and
// publishes its state over MQTT. Commands arrive on TOPIC_COMMANDS.
func RunAnchorProducer() error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("config not initialized")
	}

	codec, err := wire.NewCodec(cfg.PayloadEncoding)
	if err != nil {
		return err
	}
	msgs, err := messages.Load(cfg.MessagesFile)
	if err != nil {
		return err
	}

	client, err := connectMQTT("producer", cfg.MQTTBroker, cfg.MQTTClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	dev, system := newSimSystem(cfg)
	if system == nil {
		log.Println("producer: simulated device exposes no tracking API")
	}

	p := &producer{
		cfg:      cfg,
		codec:    codec,
		client:   client,
		o:        ar.New(ar.Options{System: system, Messages: msgs}),
		dev:      dev,
		renderer: &sim.Renderer{},
		states:   newLatestSnapshot(),
		events:   make(chan ar.Event, eventQueueSize),
		commands: make(chan wire.Command, commandQueueSize),
	}
	defer p.o.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return p.run(ctx)
}

func (p *producer) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	p.o.Subscribe(p.states.put)
	p.o.SubscribeEvents(func(e ar.Event) {
		if e.Kind == ar.EventSessionStarted {
			p.startFrames(ctx, g)
		}
		select {
		case p.events <- e:
		default:
			log.Printf("producer: event queue full, dropping %s", e.Kind)
		}
	})

	if err := subscribeDecoded("producer", p.client, p.codec, p.cfg.TopicCommands, func(cmd wire.Command) {
		select {
		case p.commands <- cmd:
		default:
			log.Printf("producer: command queue full, dropping %s", cmd.Action)
		}
	}); err != nil {
		return err
	}

	if p.cfg.GPSSerialPort != "" {
		port, err := gps.Open(p.cfg.GPSSerialPort, p.cfg.GPSBaudRate)
		if err != nil {
			return err
		}
		g.Go(func() error {
			<-ctx.Done()
			return port.Close()
		})
		g.Go(func() error {
			if err := gps.Read(ctx, port, &p.fix); err != nil && ctx.Err() == nil {
				log.Printf("producer: GPS receiver stopped: %v", err)
			}
			return nil
		})
	}

	g.Go(func() error { return p.publishStates(ctx) })
	g.Go(func() error { return p.publishEvents(ctx) })
	g.Go(func() error { return p.publishPoses(ctx) })
	g.Go(func() error { return p.handleCommands(ctx) })

	p.states.put(p.o.Snapshot())
	status := p.o.ProbeSupport(ctx)
	log.Printf("producer: AR support %s", status)

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		log.Println("producer: shutting down")
		return nil
	}
	return err
}

// startFrames drives the new session's frame loop until it ends.
func (p *producer) startFrames(ctx context.Context, g *errgroup.Group) {
	if p.dev == nil {
		return
	}
	sess := p.dev.LastSession()
	if sess == nil {
		return
	}
	interval := p.cfg.FrameInterval()
	g.Go(func() error {
		if err := sess.Run(ctx, interval); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("frame loop: %w", err)
		}
		return nil
	})
}

func (p *producer) publishStates(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.states.ready:
		}
		s, ok := p.states.take()
		if !ok {
			continue
		}
		if err := publish(p.client, p.codec, p.cfg.TopicState, true, "state", wire.NewState(s, time.Now())); err != nil {
			log.Printf("producer: %v", err)
			continue
		}
		log.Printf("producer: state %s: %s", s.State, s.Message)
	}
}

func (p *producer) publishEvents(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-p.events:
			ev := wire.NewEvent(e, p.fix.Get(), time.Now())
			if err := publish(p.client, p.codec, p.cfg.TopicEvents, false, "event", ev); err != nil {
				log.Printf("producer: %v", err)
			}
		}
	}
}

// publishPoses samples the pose every POSE_PUBLISH_INTERVAL while a
// session is active.
func (p *producer) publishPoses(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.PoseInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if _, _, active := p.o.Session(); !active {
				continue
			}
			if err := publish(p.client, p.codec, p.cfg.TopicPose, false, "pose", samplePose(p.o, now)); err != nil {
				log.Printf("producer: %v", err)
			}
		}
	}
}

func (p *producer) handleCommands(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-p.commands:
			log.Printf("producer: command %s from %q", cmd.Action, cmd.Source)
			if err := Execute(ctx, p.o, p.renderer, cmd); err != nil {
				log.Printf("producer: command %s failed: %v", cmd.Action, err)
			}
		}
	}
}
