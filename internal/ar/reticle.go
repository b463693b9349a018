// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ar

import (
	"sync/atomic"

	"github.com/relabs-tech/surface_anchor/internal/orientation"
)

// Reticle is the placement indicator. The frame loop writes it and
// renderers sample it; like the hit cell it carries no notification.
type Reticle struct {
	p atomic.Pointer[orientation.Pose]
}

// Show makes the reticle visible at p.
func (r *Reticle) Show(p orientation.Pose) {
	r.p.Store(&p)
}

// Hide hides the reticle.
func (r *Reticle) Hide() {
	r.p.Store(nil)
}

// Pose returns where the reticle is drawn and whether it is visible.
func (r *Reticle) Pose() (orientation.Pose, bool) {
	p := r.p.Load()
	if p == nil {
		return orientation.Pose{}, false
	}
	return *p, true
}
