// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package hittest runs the per-frame surface ray cast of an active
// session and publishes the latest hit pose plus an edge-triggered
// found/lost signal.
package hittest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/relabs-tech/surface_anchor/internal/orientation"
	"github.com/relabs-tech/surface_anchor/internal/xr"
)

var (
	// ErrHitTestSetupFailed means hit testing could not be set up on an
	// active session.
	ErrHitTestSetupFailed = errors.New("hittest: setup failed")
	// ErrHitTestUnsupported means the session lacks the hit-test
	// capability.
	ErrHitTestUnsupported = fmt.Errorf("%w: hit testing not available on session", ErrHitTestSetupFailed)
	// ErrHitTestSourceFailed means the hit-test source request failed or
	// resolved to nothing.
	ErrHitTestSourceFailed = fmt.Errorf("%w: hit-test source unavailable", ErrHitTestSetupFailed)
	// ErrRunning is returned by Start while a session is being tracked.
	ErrRunning = errors.New("hittest: already running")
)

// Indicator is the visible placement marker.
type Indicator interface {
	Show(p orientation.Pose)
	Hide()
}

// Options wires the manager to its collaborators. All fields are
// optional.
type Options struct {
	// Cell receives the latest hit pose. A private cell is used when nil.
	Cell *orientation.PoseCell
	// Indicator is shown at the hit pose while placement is not locked.
	Indicator Indicator
	// Locked reports whether placement is locked.
	Locked func() bool
	// OnSurfaceFound fires on every found/lost transition.
	OnSurfaceFound func(found bool)
	// OnError reports setup failures after cleanup has run.
	OnError func(err error)
}

// run is the tracking state of one session instance.
type run struct {
	session xr.Session
	ctx     context.Context
	cancel  context.CancelFunc

	floor  xr.ReferenceSpace
	viewer xr.ReferenceSpace
	source xr.HitTestSource

	frame        xr.FrameHandle
	framePending bool
	endID        xr.ListenerID
}

// Manager is safe for concurrent use. Callbacks must not call Stop
// synchronously.
type Manager struct {
	opts Options
	cell *orientation.PoseCell

	// emitMu is held from a found/lost decision through its callback so
	// teardown cannot interleave with a frame. Lock order: emitMu, mu.
	emitMu sync.Mutex

	mu    sync.Mutex
	run   *run
	found bool

	wg sync.WaitGroup
}

// New creates an idle manager.
func New(opts Options) *Manager {
	cell := opts.Cell
	if cell == nil {
		cell = &orientation.PoseCell{}
	}
	return &Manager{opts: opts, cell: cell}
}

// Cell returns the pose cell the frame loop writes.
func (m *Manager) Cell() *orientation.PoseCell {
	return m.cell
}

// Start begins tracking s. Setup runs in the background; failures are
// reported through OnError. The manager also stops when s ends.
func (m *Manager) Start(s xr.Session) error {
	if s == nil {
		return errors.New("hittest: nil session")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.run != nil {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{session: s, ctx: ctx, cancel: cancel}
	r.endID = s.AddEventListener(xr.EventEnd, func() { m.stopRun(r) })
	m.run = r

	m.wg.Add(1)
	go m.setup(r)
	return nil
}

func (m *Manager) setup(r *run) {
	defer m.wg.Done()

	floor, err := r.session.RequestReferenceSpace(r.ctx, xr.LocalFloor)
	if r.ctx.Err() != nil {
		return
	}
	if err != nil {
		m.fail(r, fmt.Errorf("%w: %s space: %w", ErrHitTestSetupFailed, xr.LocalFloor, err))
		return
	}

	viewer, err := r.session.RequestReferenceSpace(r.ctx, xr.Viewer)
	if r.ctx.Err() != nil {
		return
	}
	if err != nil {
		m.fail(r, fmt.Errorf("%w: %s space: %w", ErrHitTestSetupFailed, xr.Viewer, err))
		return
	}

	tester, ok := r.session.(xr.HitTester)
	if !ok {
		m.fail(r, ErrHitTestUnsupported)
		return
	}

	src, err := tester.RequestHitTestSource(r.ctx, xr.HitTestOptions{Space: viewer})
	if err == nil && src == nil {
		err = errors.New("no source returned")
	}
	if err != nil {
		if r.ctx.Err() == nil {
			m.fail(r, fmt.Errorf("%w: %w", ErrHitTestSourceFailed, err))
		}
		return
	}

	m.mu.Lock()
	if m.run != r || r.ctx.Err() != nil {
		m.mu.Unlock()
		// Resolved after teardown; nobody else will release it.
		src.Cancel()
		return
	}
	if r.source != nil {
		m.mu.Unlock()
		panic("hittest: second hit-test source requested for one session")
	}
	r.floor, r.viewer, r.source = floor, viewer, src
	m.schedule(r)
	m.mu.Unlock()

	log.Printf("hittest: tracking started")
}

// schedule registers the next frame callback. Caller holds m.mu.
func (m *Manager) schedule(r *run) {
	r.frame = r.session.RequestAnimationFrame(func(t time.Duration, f xr.Frame) {
		m.onFrame(r, t, f)
	})
	r.framePending = true
}

func (m *Manager) onFrame(r *run, _ time.Duration, f xr.Frame) {
	m.mu.Lock()
	if m.run != r {
		m.mu.Unlock()
		return
	}
	m.schedule(r)
	src, floor := r.source, r.floor
	m.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			log.Printf("hittest: frame callback panicked: %v", p)
		}
	}()
	m.process(r, f, src, floor)
}

func (m *Manager) process(r *run, f xr.Frame, src xr.HitTestSource, floor xr.ReferenceSpace) {
	var (
		pose orientation.Pose
		hit  bool
	)
	if results := f.HitTestResults(src); len(results) > 0 {
		pose, hit = results[0].Pose(floor)
	}

	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	if m.run != r {
		m.mu.Unlock()
		return
	}
	if hit {
		m.cell.Store(pose)
	} else {
		m.cell.Clear()
	}
	changed := hit != m.found
	m.found = hit
	m.mu.Unlock()

	if ind := m.opts.Indicator; ind != nil {
		// Sampled under emitMu so a lock and its HideIndicator call
		// cannot fall between the decision and the write.
		locked := m.opts.Locked != nil && m.opts.Locked()
		if hit && !locked {
			ind.Show(pose)
		} else {
			ind.Hide()
		}
	}
	if changed {
		if hit {
			log.Printf("hittest: surface found")
		} else {
			log.Printf("hittest: surface lost")
		}
		if m.opts.OnSurfaceFound != nil {
			m.opts.OnSurfaceFound(hit)
		}
	}
}

func (m *Manager) fail(r *run, err error) {
	m.emitMu.Lock()
	m.mu.Lock()
	if m.run != r {
		m.mu.Unlock()
		m.emitMu.Unlock()
		return
	}
	wasFound := m.teardown(r)
	m.mu.Unlock()
	m.finish(wasFound)
	m.emitMu.Unlock()

	log.Printf("hittest: %v", err)
	if m.opts.OnError != nil {
		m.opts.OnError(err)
	}
}

// Stop tears down tracking. It is synchronous and idempotent: the
// frame registration is cancelled, the source released, the spaces
// dropped, and the cell cleared before it returns. A final lost
// transition fires if a surface was signalled as found.
func (m *Manager) Stop() {
	m.mu.Lock()
	r := m.run
	m.mu.Unlock()
	if r != nil {
		m.stopRun(r)
	}
}

func (m *Manager) stopRun(r *run) {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	if m.run != r {
		m.mu.Unlock()
		return
	}
	wasFound := m.teardown(r)
	m.mu.Unlock()

	log.Printf("hittest: tracking stopped")
	m.finish(wasFound)
}

// teardown releases everything r holds. Caller holds m.mu.
func (m *Manager) teardown(r *run) (wasFound bool) {
	r.cancel()
	if r.framePending {
		r.session.CancelAnimationFrame(r.frame)
		r.framePending = false
	}
	if r.source != nil {
		r.source.Cancel()
		r.source = nil
	}
	r.floor, r.viewer = nil, nil
	r.session.RemoveEventListener(xr.EventEnd, r.endID)

	m.run = nil
	m.cell.Clear()
	wasFound = m.found
	m.found = false
	return wasFound
}

// finish runs the externally visible part of teardown. Caller holds
// m.emitMu.
func (m *Manager) finish(wasFound bool) {
	if m.opts.Indicator != nil {
		m.opts.Indicator.Hide()
	}
	if wasFound && m.opts.OnSurfaceFound != nil {
		m.opts.OnSurfaceFound(false)
	}
}

// HideIndicator hides the indicator in order with frame updates. Call
// it after locking placement so no frame in flight shows it again. It
// must not be called from an OnSurfaceFound callback.
func (m *Manager) HideIndicator() {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()
	if m.opts.Indicator != nil {
		m.opts.Indicator.Hide()
	}
}

// Rearm forgets the found edge without signalling lost, so a surface
// that stays in view reports found again on the next frame.
func (m *Manager) Rearm() {
	m.mu.Lock()
	m.found = false
	m.mu.Unlock()
}

// Wait blocks until background setup work has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Found reports whether a surface is currently signalled.
func (m *Manager) Found() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.found
}

// Running reports whether a session is being tracked.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.run != nil
}
