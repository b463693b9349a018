// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/surface_anchor/internal/ar"
	"github.com/relabs-tech/surface_anchor/internal/orientation"
	"github.com/relabs-tech/surface_anchor/internal/sim"
	"github.com/relabs-tech/surface_anchor/internal/wire"
)

func newOrchestrator(t *testing.T) (*ar.Orchestrator, *sim.Device) {
	t.Helper()
	dev := sim.NewDevice(sim.Options{Supported: true})
	o := ar.New(ar.Options{System: dev})
	t.Cleanup(o.Close)
	o.ProbeSupport(context.Background())
	return o, dev
}

func TestExecuteLifecycle(t *testing.T) {
	ctx := context.Background()
	o, dev := newOrchestrator(t)
	renderer := &sim.Renderer{}

	require.NoError(t, Execute(ctx, o, renderer, wire.Command{Action: wire.ActionStart}))
	o.Wait()
	assert.Equal(t, ar.StateScanning, o.Snapshot().State)
	_, binds := renderer.Bound()
	assert.Equal(t, 1, binds)

	assert.ErrorIs(t, Execute(ctx, o, renderer, wire.Command{Action: wire.ActionPlace}), ErrNoSurface)

	sess := dev.LastSession()
	sess.SetHit(orientation.Pose{
		Position:    orientation.Vec3{X: 0.1, Z: -0.4},
		Orientation: orientation.IdentityQuaternion(),
	})
	sess.Step()
	require.NoError(t, Execute(ctx, o, renderer, wire.Command{Action: wire.ActionPlace}))
	assert.Equal(t, ar.StatePlaced, o.Snapshot().State)

	require.NoError(t, Execute(ctx, o, renderer, wire.Command{Action: wire.ActionReset}))
	assert.False(t, o.Snapshot().PlacementLocked)

	require.NoError(t, Execute(ctx, o, renderer, wire.Command{Action: wire.ActionEnd}))
	assert.Equal(t, ar.StateReadyToStart, o.Snapshot().State)
	assert.True(t, sess.Ended())
}

func TestExecuteRejectsUnknownAction(t *testing.T) {
	o, _ := newOrchestrator(t)
	err := Execute(context.Background(), o, &sim.Renderer{}, wire.Command{Action: "jump"})
	assert.ErrorIs(t, err, wire.ErrUnknownAction)
}

func TestExecuteEndWithoutSession(t *testing.T) {
	o, _ := newOrchestrator(t)
	assert.NoError(t, Execute(context.Background(), o, &sim.Renderer{}, wire.Command{Action: wire.ActionEnd}))
}
