// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sim is a simulated spatial-tracking device. It implements the
// internal/xr interfaces so the anchoring core can run on a host with no
// camera, and lets tests drive it one frame at a time.
package sim

import (
	"context"
	"errors"
	"sync"

	"github.com/relabs-tech/surface_anchor/internal/xr"
)

// ErrSessionEnded is returned by requests made on an ended session.
var ErrSessionEnded = errors.New("sim: session has ended")

// Options configures how the simulated device answers requests.
type Options struct {
	// Supported is the answer to the capability probe.
	Supported bool
	// ProbeErr makes the capability probe fail.
	ProbeErr error
	// SessionErr makes session requests fail (permission denied,
	// hardware unavailable).
	SessionErr error
	// NoHitTest returns sessions that lack the hit-test capability.
	NoHitTest bool
	// HitTestSourceErr makes hit-test source requests fail.
	HitTestSourceErr error
	// NilHitTestSource makes hit-test source requests resolve to nothing.
	NilHitTestSource bool
	// ReferenceSpaceErr makes reference-space requests fail.
	ReferenceSpaceErr error
	// EndErr makes explicit End calls fail without ending the session.
	EndErr error
}

// Device is a simulated xr.System.
type Device struct {
	opts Options

	mu       sync.Mutex
	gate     chan struct{}
	hits     HitFunc
	sessions []*Session
	probes   int
}

// NewDevice creates a simulated device.
func NewDevice(opts Options) *Device {
	return &Device{opts: opts}
}

var _ xr.System = (*Device)(nil)

// Hold makes every subsequent asynchronous request block until release
// is called. Like a device promise, a held request resolves after
// release even if its caller has given up on it.
func (d *Device) Hold() (release func()) {
	ch := make(chan struct{})
	d.mu.Lock()
	d.gate = ch
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			if d.gate == ch {
				d.gate = nil
			}
			d.mu.Unlock()
			close(ch)
		})
	}
}

func (d *Device) await() {
	d.mu.Lock()
	g := d.gate
	d.mu.Unlock()
	if g != nil {
		<-g
	}
}

// SetHitFunc sets the hit generator used by sessions created afterwards.
func (d *Device) SetHitFunc(fn HitFunc) {
	d.mu.Lock()
	d.hits = fn
	d.mu.Unlock()
}

// IsSessionSupported answers the capability probe.
func (d *Device) IsSessionSupported(_ context.Context, mode xr.SessionMode) (bool, error) {
	d.await()

	d.mu.Lock()
	d.probes++
	d.mu.Unlock()

	if d.opts.ProbeErr != nil {
		return false, d.opts.ProbeErr
	}
	return d.opts.Supported && mode == xr.ImmersiveAR, nil
}

// RequestSession creates a new simulated session.
func (d *Device) RequestSession(_ context.Context, mode xr.SessionMode, init xr.SessionInit) (xr.Session, error) {
	d.await()

	if d.opts.SessionErr != nil {
		return nil, d.opts.SessionErr
	}
	if !d.opts.Supported || mode != xr.ImmersiveAR {
		return nil, errors.New("sim: session mode not supported")
	}
	// NoHitTest still grants the session so the capability-absent path
	// after session start can be exercised.
	d.mu.Lock()
	s := newSession(d, init, d.hits)
	d.sessions = append(d.sessions, s)
	d.mu.Unlock()

	if d.opts.NoHitTest {
		return s, nil
	}
	return &hitTestSession{Session: s}, nil
}

// LastSession returns the most recently created session, or nil.
func (d *Device) LastSession() *Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sessions) == 0 {
		return nil
	}
	return d.sessions[len(d.sessions)-1]
}

// Sessions returns how many sessions were created.
func (d *Device) Sessions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

// Probes returns how many capability probes completed.
func (d *Device) Probes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.probes
}
