// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ar

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/surface_anchor/internal/messages"
	"github.com/relabs-tech/surface_anchor/internal/orientation"
	"github.com/relabs-tech/surface_anchor/internal/placement"
	"github.com/relabs-tech/surface_anchor/internal/session"
	"github.com/relabs-tech/surface_anchor/internal/sim"
)

var msgs = messages.Default()

func hitAt(x, y, z float64) orientation.Pose {
	return orientation.Pose{
		Position:    orientation.Vec3{X: x, Y: y, Z: z},
		Orientation: orientation.IdentityQuaternion(),
	}
}

// started returns an orchestrator with a running session and hit
// testing set up.
func started(t *testing.T, opts sim.Options) (*Orchestrator, *sim.Device, *sim.Session) {
	t.Helper()
	opts.Supported = true
	dev := sim.NewDevice(opts)
	o := New(Options{System: dev})
	t.Cleanup(o.Close)

	require.Equal(t, session.StatusSupported, o.ProbeSupport(context.Background()))
	require.NoError(t, o.Start(context.Background(), &sim.Renderer{}, nil))
	o.Wait()
	return o, dev, dev.LastSession()
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		support session.SupportStatus
		active  bool
		ps      placement.State
		want    State
	}{
		{session.StatusChecking, false, placement.Scanning, StateCheckingSupport},
		{session.StatusChecking, true, placement.Placed, StateCheckingSupport},
		{session.StatusUnsupported, false, placement.Scanning, StateIdle},
		{session.StatusUnsupported, true, placement.Placed, StateIdle},
		{session.StatusSupported, false, placement.Placed, StateReadyToStart},
		{session.StatusSupported, true, placement.Placed, StatePlaced},
		{session.StatusSupported, true, placement.SurfaceFound, StateSurfaceFound},
		{session.StatusSupported, true, placement.Scanning, StateScanning},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, Aggregate(tt.support, tt.active, tt.ps))
		})
	}
}

func TestInitialSnapshot(t *testing.T) {
	o := New(Options{System: sim.NewDevice(sim.Options{Supported: true})})
	snap := o.Snapshot()

	assert.Equal(t, StateCheckingSupport, snap.State)
	assert.Equal(t, msgs.Get(messages.Checking), snap.Message)
	assert.False(t, snap.CanStart)
	assert.True(t, snap.ScenePose.IsIdentity())

	o.ProbeSupport(context.Background())
	snap = o.Snapshot()
	assert.Equal(t, StateReadyToStart, snap.State)
	assert.Equal(t, msgs.Get(messages.Ready), snap.Message)
	assert.True(t, snap.CanStart)
}

// An unsupported device never starts.
func TestUnsupportedDevice(t *testing.T) {
	dev := sim.NewDevice(sim.Options{})
	o := New(Options{System: dev})
	o.ProbeSupport(context.Background())

	err := o.Start(context.Background(), &sim.Renderer{}, nil)
	assert.ErrorIs(t, err, session.ErrUnsupported)

	snap := o.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.False(t, snap.CanStart)
	assert.False(t, snap.SessionActive)
	assert.Equal(t, msgs.Get(messages.Unsupported), snap.Message)
	assert.Zero(t, dev.Sessions())
}

// No hits keep the flow scanning with no indicator.
func TestScanningWithoutHits(t *testing.T) {
	o, _, sess := started(t, sim.Options{})

	for i := 0; i < 30; i++ {
		sess.Step()
		_, visible := o.Reticle().Pose()
		require.False(t, visible)
	}

	snap := o.Snapshot()
	assert.Equal(t, StateScanning, snap.State)
	assert.Equal(t, msgs.Get(messages.Scanning), snap.Message)
	assert.True(t, snap.SessionActive)
	assert.NotEmpty(t, snap.SessionID)
}

// A hit is found, placed, and later hits do not move it.
func TestPlaceLocksAnchor(t *testing.T) {
	o, _, sess := started(t, sim.Options{})
	want := hitAt(0.20, 0.00, -0.50)

	sess.SetHit(want)
	sess.Step()
	assert.Equal(t, StateSurfaceFound, o.Snapshot().State)
	assert.Equal(t, msgs.Get(messages.SurfaceFound), o.Snapshot().Message)
	reticle, visible := o.Reticle().Pose()
	require.True(t, visible)
	assert.Equal(t, want, reticle)

	require.True(t, o.Place())
	snap := o.Snapshot()
	assert.Equal(t, StatePlaced, snap.State)
	assert.True(t, snap.PlacementLocked)
	assert.Equal(t, want, snap.ScenePose)
	assert.Equal(t, msgs.Get(messages.Placed), snap.Message)

	sess.SetHit(hitAt(1, 0, -3))
	sess.StepN(5)
	assert.Equal(t, want, o.Snapshot().ScenePose)
	_, visible = o.Reticle().Pose()
	assert.False(t, visible)

	// Detection keeps running underneath the lock.
	hp, ok := o.HitPose()
	require.True(t, ok)
	assert.Equal(t, hitAt(1, 0, -3), hp)
}

func TestPlaceDuringFramesHidesReticle(t *testing.T) {
	o, _, sess := started(t, sim.Options{})
	sess.SetHit(hitAt(0.2, 0, -0.5))
	sess.Step()

	done := make(chan struct{})
	go func() {
		defer close(done)
		sess.StepN(50)
	}()
	require.True(t, o.Place())
	<-done

	_, visible := o.Reticle().Pose()
	assert.False(t, visible)
	sess.Step()
	_, visible = o.Reticle().Pose()
	assert.False(t, visible)
}

func TestPlaceWithoutHit(t *testing.T) {
	o, _, sess := started(t, sim.Options{})
	sess.Step()

	assert.False(t, o.Place())
	snap := o.Snapshot()
	assert.Equal(t, StateScanning, snap.State)
	assert.True(t, snap.ScenePose.IsIdentity())
}

func TestSelectPlaces(t *testing.T) {
	o, _, sess := started(t, sim.Options{})
	sess.SetHit(hitAt(0.5, 0, -1))
	sess.Step()

	sess.Select()
	assert.Equal(t, StatePlaced, o.Snapshot().State)
}

// Reset returns to scanning and a later hit is found again.
func TestResetAfterPlace(t *testing.T) {
	o, _, sess := started(t, sim.Options{})
	sess.SetHit(hitAt(0.2, 0, -0.5))
	sess.Step()
	require.True(t, o.Place())

	o.Reset()
	snap := o.Snapshot()
	assert.Equal(t, StateScanning, snap.State)
	assert.Equal(t, orientation.IdentityPose(), snap.ScenePose)
	assert.False(t, snap.PlacementLocked)

	// The surface is still in view.
	sess.Step()
	assert.Equal(t, StateSurfaceFound, o.Snapshot().State)
}

// An external end while placed forces a full reset.
func TestExternalEndWhilePlaced(t *testing.T) {
	o, _, sess := started(t, sim.Options{})
	sess.SetHit(hitAt(0.2, 0, -0.5))
	sess.Step()
	require.True(t, o.Place())

	sess.Terminate()

	snap := o.Snapshot()
	assert.False(t, snap.SessionActive)
	assert.Equal(t, StateReadyToStart, snap.State)
	assert.Equal(t, placement.Scanning, snap.Placement)
	assert.Equal(t, orientation.IdentityPose(), snap.ScenePose)
	assert.Equal(t, msgs.Get(messages.Ended), snap.Message)
	assert.True(t, snap.CanStart)
	_, ok := o.HitPose()
	assert.False(t, ok)
}

func TestEndAction(t *testing.T) {
	o, _, sess := started(t, sim.Options{})

	require.NoError(t, o.End(context.Background()))
	assert.True(t, sess.Ended())
	assert.False(t, o.Snapshot().SessionActive)
	assert.Equal(t, 0, sess.ActiveSources())
}

func TestHitTestFailureEndsSession(t *testing.T) {
	tests := []struct {
		name string
		opts sim.Options
		want messages.Key
	}{
		{"NoCapability", sim.Options{NoHitTest: true}, messages.HitTestUnsupported},
		{"SourceFailed", sim.Options{HitTestSourceErr: errors.New("denied")}, messages.HitTestSourceFailed},
		{"SpaceFailed", sim.Options{ReferenceSpaceErr: errors.New("no floor")}, messages.HitTestInitFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, _, sess := started(t, tt.opts)

			assert.True(t, sess.Ended())
			assert.Equal(t, 0, sess.ActiveSources())
			snap := o.Snapshot()
			assert.False(t, snap.SessionActive)
			assert.Equal(t, StateReadyToStart, snap.State)
			// The failure stays visible after the end event.
			assert.Equal(t, msgs.Get(tt.want), snap.Message)
		})
	}
}

func TestStartWhileActive(t *testing.T) {
	o, dev, sess := started(t, sim.Options{})
	sess.SetHit(hitAt(0, 0, -1))
	sess.Step()
	require.True(t, o.Place())

	err := o.Start(context.Background(), &sim.Renderer{}, nil)
	assert.ErrorIs(t, err, session.ErrSessionActive)
	assert.Equal(t, StatePlaced, o.Snapshot().State)
	assert.Equal(t, 1, dev.Sessions())
}

func TestSnapshotsPublishedOnChange(t *testing.T) {
	dev := sim.NewDevice(sim.Options{Supported: true})
	o := New(Options{System: dev})
	t.Cleanup(o.Close)

	var snaps []Snapshot
	o.Subscribe(func(s Snapshot) { snaps = append(snaps, s) })

	o.ProbeSupport(context.Background())
	require.NoError(t, o.Start(context.Background(), &sim.Renderer{}, nil))
	o.Wait()
	sess := dev.LastSession()
	sess.StepN(3)
	sess.SetHit(hitAt(0, 0, -1))
	sess.StepN(3)
	o.Place()

	require.NotEmpty(t, snaps)
	var states []State
	for i, s := range snaps {
		states = append(states, s.State)
		if i > 0 {
			// Frames without a visible change publish nothing.
			assert.NotEqual(t, snaps[i-1], s)
		}
	}
	assert.Equal(t, StateReadyToStart, states[0])
	assert.Equal(t, StatePlaced, states[len(states)-1])
	assert.Contains(t, states, StateScanning)
	assert.Contains(t, states, StateSurfaceFound)
}

func TestEvents(t *testing.T) {
	dev := sim.NewDevice(sim.Options{Supported: true})
	o := New(Options{System: dev})
	t.Cleanup(o.Close)

	var events []Event
	o.SubscribeEvents(func(e Event) { events = append(events, e) })

	o.ProbeSupport(context.Background())
	require.NoError(t, o.Start(context.Background(), &sim.Renderer{}, nil))
	o.Wait()
	sess := dev.LastSession()
	sess.SetHit(hitAt(0.2, 0, -0.5))
	sess.Step()
	o.Place()
	_, id, _ := o.Session()
	sess.Terminate()

	var placed *Event
	var kinds []EventKind
	for i, e := range events {
		kinds = append(kinds, e.Kind)
		if e.Kind == EventPlaced {
			placed = &events[i]
		}
	}
	assert.Contains(t, kinds, EventSessionStarted)
	assert.Contains(t, kinds, EventSessionEnded)
	require.NotNil(t, placed)
	assert.Equal(t, id, placed.SessionID)
	assert.Equal(t, hitAt(0.2, 0, -0.5), placed.Scene)
}

func TestContentOrientationIsUpright(t *testing.T) {
	o, _, sess := started(t, sim.Options{})
	tilted := orientation.FromEuler(orientation.Euler{Roll: 20, Pitch: -35, Yaw: 90})
	sess.SetHit(orientation.Pose{Orientation: tilted})
	sess.Step()
	require.True(t, o.Place())

	snap := o.Snapshot()
	assert.Equal(t, tilted, snap.ScenePose.Orientation)
	assert.InDelta(t, 0, snap.ContentOrientation.X, 1e-9)
	assert.InDelta(t, 0, snap.ContentOrientation.Z, 1e-9)
	assert.InDelta(t, 90, orientation.ToEuler(snap.ContentOrientation).Yaw, 1e-6)
}

func TestNoTrackingAPI(t *testing.T) {
	o := New(Options{})
	o.ProbeSupport(context.Background())

	assert.ErrorIs(t, o.Start(context.Background(), &sim.Renderer{}, nil), session.ErrUnsupported)
	snap := o.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, msgs.Get(messages.APIUnavailable), snap.Message)
}
