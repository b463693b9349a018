// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package placement holds the scanning → surface-found → placed state
// machine that commits a detected hit pose into the locked scene pose.
package placement

import (
	"log"
	"sync"

	"github.com/relabs-tech/surface_anchor/internal/notify"
	"github.com/relabs-tech/surface_anchor/internal/orientation"
)

// State is the placement state.
type State string

const (
	Scanning     State = "scanning"
	SurfaceFound State = "surface-found"
	Placed       State = "placed"
)

// Change is published whenever the state or the scene pose changes.
type Change struct {
	State State
	Scene orientation.Pose
}

// Options wires the controller. Callbacks are optional and run after
// the change has been applied.
type Options struct {
	// OnPlace runs after the scene pose was locked.
	OnPlace func(scene orientation.Pose)
	// OnReset runs after every reset.
	OnReset func()
}

// Controller is the one canonical placement lock. It is safe for
// concurrent use.
type Controller struct {
	cell *orientation.PoseCell
	opts Options

	mu    sync.Mutex
	state State
	scene orientation.Pose

	changes notify.Topic[Change]
}

// New creates a controller that places from cell.
func New(cell *orientation.PoseCell, opts Options) *Controller {
	return &Controller{
		cell:  cell,
		opts:  opts,
		state: Scanning,
		scene: orientation.IdentityPose(),
	}
}

// Subscribe registers fn for state and scene pose changes.
func (c *Controller) Subscribe(fn func(Change)) (unsubscribe func()) {
	return c.changes.Subscribe(fn)
}

// SetSurfaceFound moves between scanning and surface-found. It is
// ignored once placed.
func (c *Controller) SetSurfaceFound(found bool) {
	next := Scanning
	if found {
		next = SurfaceFound
	}

	c.mu.Lock()
	if c.state == Placed || c.state == next {
		c.mu.Unlock()
		return
	}
	c.state = next
	ch := c.changeLocked()
	c.mu.Unlock()

	c.changes.Publish(ch)
}

// Place locks the scene pose to the pose currently in the cell. With an
// empty cell it does nothing and returns false.
func (c *Controller) Place() bool {
	pose, ok := c.cell.Load()
	if !ok {
		return false
	}

	c.mu.Lock()
	c.scene = pose
	c.state = Placed
	ch := c.changeLocked()
	c.mu.Unlock()

	log.Printf("placement: placed at (%.3f, %.3f, %.3f)", pose.Position.X, pose.Position.Y, pose.Position.Z)
	c.changes.Publish(ch)
	if c.opts.OnPlace != nil {
		c.opts.OnPlace(pose)
	}
	return true
}

// Reset returns to scanning with the identity scene pose and clears the
// cell, whatever the current state.
func (c *Controller) Reset() {
	c.cell.Clear()

	c.mu.Lock()
	c.state = Scanning
	c.scene = orientation.IdentityPose()
	ch := c.changeLocked()
	c.mu.Unlock()

	log.Printf("placement: reset")
	c.changes.Publish(ch)
	if c.opts.OnReset != nil {
		c.opts.OnReset()
	}
}

// SetScenePose overwrites the scene pose without touching the state.
// It is meant for re-initialising on session start and end.
func (c *Controller) SetScenePose(p orientation.Pose) {
	c.mu.Lock()
	if c.scene == p {
		c.mu.Unlock()
		return
	}
	c.scene = p
	ch := c.changeLocked()
	c.mu.Unlock()

	c.changes.Publish(ch)
}

func (c *Controller) changeLocked() Change {
	return Change{State: c.state, Scene: c.scene}
}

// State returns the placement state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ScenePose returns the committed scene pose.
func (c *Controller) ScenePose() orientation.Pose {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scene
}

// IsLocked reports whether content is placed.
func (c *Controller) IsLocked() bool {
	return c.State() == Placed
}
