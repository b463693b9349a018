// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import "sync/atomic"

// PoseCell is a direct-write/direct-read slot for the latest hit pose.
// It carries no notification: the frame loop overwrites it and readers
// sample it when they need it.
//
// Values are replaced wholesale so a reader never sees a pose
// assembled from two different frames.
type PoseCell struct {
	p atomic.Pointer[Pose]
}

// Store replaces the current pose.
func (c *PoseCell) Store(p Pose) {
	c.p.Store(&p)
}

// Clear marks the cell as holding no pose.
func (c *PoseCell) Clear() {
	c.p.Store(nil)
}

// Load returns the current pose and whether one is present.
func (c *PoseCell) Load() (Pose, bool) {
	p := c.p.Load()
	if p == nil {
		return Pose{}, false
	}
	return *p, true
}
