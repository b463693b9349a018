// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package placement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/surface_anchor/internal/orientation"
)

var hit = orientation.Pose{
	Position:    orientation.Vec3{X: 0.2, Y: 0, Z: -0.5},
	Orientation: orientation.IdentityQuaternion(),
}

func TestInitialState(t *testing.T) {
	c := New(&orientation.PoseCell{}, Options{})
	assert.Equal(t, Scanning, c.State())
	assert.True(t, c.ScenePose().IsIdentity())
	assert.False(t, c.IsLocked())
}

func TestSurfaceFoundEdges(t *testing.T) {
	c := New(&orientation.PoseCell{}, Options{})
	var changes []Change
	c.Subscribe(func(ch Change) { changes = append(changes, ch) })

	c.SetSurfaceFound(true)
	c.SetSurfaceFound(true)
	assert.Equal(t, SurfaceFound, c.State())
	c.SetSurfaceFound(false)
	assert.Equal(t, Scanning, c.State())

	require.Len(t, changes, 2)
	assert.Equal(t, SurfaceFound, changes[0].State)
	assert.Equal(t, Scanning, changes[1].State)
}

func TestPlaceWithoutPoseIsNoop(t *testing.T) {
	var placed int
	c := New(&orientation.PoseCell{}, Options{OnPlace: func(orientation.Pose) { placed++ }})
	c.SetSurfaceFound(true)

	assert.False(t, c.Place())
	assert.Equal(t, SurfaceFound, c.State())
	assert.True(t, c.ScenePose().IsIdentity())
	assert.Zero(t, placed)
}

func TestPlaceLocksScenePose(t *testing.T) {
	cell := &orientation.PoseCell{}
	var placedAt []orientation.Pose
	c := New(cell, Options{OnPlace: func(p orientation.Pose) { placedAt = append(placedAt, p) }})

	cell.Store(hit)
	c.SetSurfaceFound(true)
	require.True(t, c.Place())

	assert.Equal(t, Placed, c.State())
	assert.True(t, c.IsLocked())
	assert.Equal(t, hit, c.ScenePose())
	assert.Equal(t, []orientation.Pose{hit}, placedAt)

	// Later detections do not move the anchor.
	cell.Store(orientation.Pose{Position: orientation.Vec3{X: 5}, Orientation: orientation.IdentityQuaternion()})
	c.SetSurfaceFound(false)
	c.SetSurfaceFound(true)
	assert.Equal(t, Placed, c.State())
	assert.Equal(t, hit, c.ScenePose())
}

func TestResetFromAnyState(t *testing.T) {
	setups := map[string]func(c *Controller, cell *orientation.PoseCell){
		"Scanning":     func(*Controller, *orientation.PoseCell) {},
		"SurfaceFound": func(c *Controller, _ *orientation.PoseCell) { c.SetSurfaceFound(true) },
		"Placed": func(c *Controller, cell *orientation.PoseCell) {
			cell.Store(hit)
			c.Place()
		},
		"CustomScene": func(c *Controller, _ *orientation.PoseCell) { c.SetScenePose(hit) },
	}

	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			cell := &orientation.PoseCell{}
			var resets int
			c := New(cell, Options{OnReset: func() { resets++ }})
			setup(c, cell)
			cell.Store(hit)

			c.Reset()

			assert.Equal(t, Scanning, c.State())
			assert.Equal(t, orientation.IdentityPose(), c.ScenePose())
			_, ok := cell.Load()
			assert.False(t, ok)
			assert.Equal(t, 1, resets)
		})
	}
}

func TestResetThenFoundAgain(t *testing.T) {
	cell := &orientation.PoseCell{}
	c := New(cell, Options{})
	cell.Store(hit)
	c.Place()

	c.Reset()
	c.SetSurfaceFound(true)
	assert.Equal(t, SurfaceFound, c.State())
}

func TestSetScenePoseKeepsState(t *testing.T) {
	c := New(&orientation.PoseCell{}, Options{})
	var changes []Change
	c.Subscribe(func(ch Change) { changes = append(changes, ch) })

	c.SetScenePose(hit)
	c.SetScenePose(hit)

	assert.Equal(t, Scanning, c.State())
	assert.Equal(t, hit, c.ScenePose())
	assert.Len(t, changes, 1)
}
