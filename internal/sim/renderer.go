// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sim

import (
	"context"
	"sync"

	"github.com/relabs-tech/surface_anchor/internal/xr"
)

// Renderer records how the core binds it to a session.
type Renderer struct {
	// BindErr makes SetSession fail.
	BindErr error

	mu      sync.Mutex
	kind    xr.ReferenceSpaceType
	session xr.Session
	binds   int
}

var _ xr.Renderer = (*Renderer)(nil)

func (r *Renderer) SetReferenceSpaceType(kind xr.ReferenceSpaceType) {
	r.mu.Lock()
	r.kind = kind
	r.mu.Unlock()
}

func (r *Renderer) SetSession(_ context.Context, s xr.Session) error {
	if r.BindErr != nil {
		return r.BindErr
	}
	r.mu.Lock()
	r.session = s
	r.binds++
	r.mu.Unlock()
	return nil
}

// ReferenceSpaceType returns the last configured reference-space type.
func (r *Renderer) ReferenceSpaceType() xr.ReferenceSpaceType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.kind
}

// Bound returns the last bound session and how many binds happened.
func (r *Renderer) Bound() (xr.Session, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session, r.binds
}
