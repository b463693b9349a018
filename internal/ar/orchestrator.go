// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package ar composes the session, hit-test and placement components
// into one state value and one action surface.
package ar

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/relabs-tech/surface_anchor/internal/hittest"
	"github.com/relabs-tech/surface_anchor/internal/messages"
	"github.com/relabs-tech/surface_anchor/internal/notify"
	"github.com/relabs-tech/surface_anchor/internal/orientation"
	"github.com/relabs-tech/surface_anchor/internal/placement"
	"github.com/relabs-tech/surface_anchor/internal/session"
	"github.com/relabs-tech/surface_anchor/internal/xr"
)

// EventKind classifies an orchestrator event.
type EventKind string

const (
	EventSessionStarted EventKind = "session-started"
	EventSessionEnded   EventKind = "session-ended"
	EventPlaced         EventKind = "placed"
	EventReset          EventKind = "reset"
	EventHitTestFailed  EventKind = "hit-test-failed"
)

// Event reports a discrete action outcome. Scene is set for placements,
// Error for failures.
type Event struct {
	Kind      EventKind
	SessionID string
	Scene     orientation.Pose
	Error     string
}

// Options configures an Orchestrator.
type Options struct {
	// System is the device tracking API. Nil means the device has none.
	System xr.System
	// Messages supplies the status texts; nil uses the defaults.
	Messages *messages.Catalog
}

// Orchestrator is safe for concurrent use. Subscribers run on the
// goroutine that caused the change and must not call actions
// synchronously.
type Orchestrator struct {
	msgs *messages.Catalog

	cell      orientation.PoseCell
	reticle   Reticle
	sessions  *session.Manager
	hits      *hittest.Manager
	placement *placement.Controller

	// pubMu keeps snapshots in the order they were derived.
	pubMu sync.Mutex

	mu      sync.Mutex
	failure string
	last    Snapshot

	snapshots notify.Topic[Snapshot]
	events    notify.Topic[Event]
}

// New wires the components together. Call ProbeSupport to resolve the
// support status.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{msgs: opts.Messages}

	o.placement = placement.New(&o.cell, placement.Options{
		OnPlace: o.onPlace,
		OnReset: o.onReset,
	})
	o.hits = hittest.New(hittest.Options{
		Cell:           &o.cell,
		Indicator:      &o.reticle,
		Locked:         o.placement.IsLocked,
		OnSurfaceFound: o.placement.SetSurfaceFound,
		OnError:        o.onHitTestError,
	})
	o.sessions = session.New(opts.System, session.Options{
		OnSessionStart: o.onSessionStart,
		OnSessionEnd:   o.onSessionEnd,
		OnSelect:       func() { o.Place() },
		Messages:       opts.Messages,
	})

	o.sessions.Subscribe(func(session.Event) { o.refresh() })
	o.placement.Subscribe(func(placement.Change) { o.refresh() })

	o.last = o.derive()
	return o
}

// ProbeSupport resolves the device support status.
func (o *Orchestrator) ProbeSupport(ctx context.Context) session.SupportStatus {
	return o.sessions.ProbeSupport(ctx)
}

// Start resets placement and starts a session bound to renderer.
// overlay may be nil.
func (o *Orchestrator) Start(ctx context.Context, renderer xr.Renderer, overlay xr.Overlay) error {
	if o.sessions.Active() {
		return session.ErrSessionActive
	}

	o.mu.Lock()
	o.failure = ""
	o.mu.Unlock()

	o.placement.Reset()
	return o.sessions.StartSession(ctx, renderer, overlay)
}

// End asks the active session to end.
func (o *Orchestrator) End(ctx context.Context) error {
	return o.sessions.EndSession(ctx)
}

// Place locks the scene to the detected surface. It reports false when
// no surface is detected.
func (o *Orchestrator) Place() bool {
	return o.placement.Place()
}

// Reset returns placement to scanning.
func (o *Orchestrator) Reset() {
	o.placement.Reset()
}

func (o *Orchestrator) onSessionStart(s xr.Session, id string) {
	o.placement.SetScenePose(orientation.IdentityPose())
	if err := o.hits.Start(s); err != nil {
		log.Printf("ar: hit testing not started for %s: %v", id, err)
	}
	o.events.Publish(Event{Kind: EventSessionStarted, SessionID: id})
}

func (o *Orchestrator) onSessionEnd(id string) {
	o.hits.Stop()
	o.placement.SetScenePose(orientation.IdentityPose())
	o.placement.Reset()
	o.refresh()
	o.events.Publish(Event{Kind: EventSessionEnded, SessionID: id})
}

func (o *Orchestrator) onPlace(scene orientation.Pose) {
	o.hits.HideIndicator()
	_, id, _ := o.sessions.Session()
	o.events.Publish(Event{Kind: EventPlaced, SessionID: id, Scene: scene})
}

func (o *Orchestrator) onReset() {
	o.hits.HideIndicator()
	o.hits.Rearm()
	_, id, _ := o.sessions.Session()
	o.events.Publish(Event{Kind: EventReset, SessionID: id})
}

// onHitTestError runs on the setup goroutine after hit testing has
// cleaned up. A session without hit testing is useless, so it is ended.
func (o *Orchestrator) onHitTestError(err error) {
	key := messages.HitTestInitFailed
	switch {
	case errors.Is(err, hittest.ErrHitTestUnsupported):
		key = messages.HitTestUnsupported
	case errors.Is(err, hittest.ErrHitTestSourceFailed):
		key = messages.HitTestSourceFailed
	}

	o.mu.Lock()
	o.failure = o.msgs.Get(key)
	o.mu.Unlock()
	o.refresh()

	_, id, _ := o.sessions.Session()
	o.events.Publish(Event{Kind: EventHitTestFailed, SessionID: id, Error: err.Error()})

	if err := o.sessions.EndSession(context.Background()); err != nil {
		log.Printf("ar: ending session after hit-test failure: %v", err)
	}
}

func (o *Orchestrator) derive() Snapshot {
	support := o.sessions.Status()
	_, id, active := o.sessions.Session()
	ps := o.placement.State()
	scene := o.placement.ScenePose()
	state := Aggregate(support, active, ps)

	o.mu.Lock()
	msg := o.failure
	o.mu.Unlock()
	if msg == "" {
		if active {
			msg = o.msgs.Get(messageKey(state))
		} else {
			msg = o.sessions.Message()
		}
	}

	return Snapshot{
		State:              state,
		Message:            msg,
		Support:            support,
		SessionID:          id,
		SessionActive:      active,
		PlacementLocked:    ps == placement.Placed,
		CanStart:           o.sessions.CanStart(),
		Placement:          ps,
		ScenePose:          scene,
		ContentOrientation: orientation.ProjectToVerticalYaw(scene.Orientation),
	}
}

// refresh publishes a new snapshot when anything visible changed.
func (o *Orchestrator) refresh() {
	o.pubMu.Lock()
	defer o.pubMu.Unlock()

	snap := o.derive()
	o.mu.Lock()
	changed := snap != o.last
	o.last = snap
	o.mu.Unlock()

	if changed {
		o.snapshots.Publish(snap)
	}
}

// Snapshot returns the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	return o.derive()
}

// Subscribe registers fn for snapshot changes.
func (o *Orchestrator) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	return o.snapshots.Subscribe(fn)
}

// SubscribeEvents registers fn for action events.
func (o *Orchestrator) SubscribeEvents(fn func(Event)) (unsubscribe func()) {
	return o.events.Subscribe(fn)
}

// HitPose returns the latest detected surface pose.
func (o *Orchestrator) HitPose() (orientation.Pose, bool) {
	return o.cell.Load()
}

// Reticle returns the placement indicator.
func (o *Orchestrator) Reticle() *Reticle {
	return &o.reticle
}

// Session returns the active session and its id.
func (o *Orchestrator) Session() (xr.Session, string, bool) {
	return o.sessions.Session()
}

// Wait blocks until background hit-test setup has finished.
func (o *Orchestrator) Wait() {
	o.hits.Wait()
}

// Close stops tracking and ends any session without end notifications.
func (o *Orchestrator) Close() {
	o.hits.Stop()
	o.sessions.Close()
	o.hits.Wait()
}
