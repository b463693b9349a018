// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package session owns capability detection and the start/end lifecycle
// of a tracking session.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/relabs-tech/surface_anchor/internal/messages"
	"github.com/relabs-tech/surface_anchor/internal/notify"
	"github.com/relabs-tech/surface_anchor/internal/xr"
)

// SupportStatus is the result of the capability probe.
type SupportStatus string

const (
	StatusChecking    SupportStatus = "checking"
	StatusSupported   SupportStatus = "supported"
	StatusUnsupported SupportStatus = "unsupported"
)

// Terminal reports whether the status is final for the process.
func (s SupportStatus) Terminal() bool {
	return s == StatusSupported || s == StatusUnsupported
}

var (
	// ErrUnsupported means the device cannot run a tracking session.
	ErrUnsupported = errors.New("session: spatial tracking not supported")
	// ErrSupportUnknown means the capability probe has not resolved yet.
	ErrSupportUnknown = errors.New("session: support not yet known")
	// ErrSessionActive means a session exists or is being requested.
	ErrSessionActive = errors.New("session: a session is already active")
	// ErrSessionRequestFailed wraps device failures to create or bind
	// a session.
	ErrSessionRequestFailed = errors.New("session: session request failed")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session: manager closed")
)

// EventKind classifies a manager change.
type EventKind string

const (
	EventSupportResolved EventKind = "support-resolved"
	EventMessage         EventKind = "message"
	EventStarted         EventKind = "started"
	EventEnded           EventKind = "ended"
)

// Event is published on every observable change.
type Event struct {
	Kind      EventKind
	Status    SupportStatus
	SessionID string
}

// Options wires the manager to its collaborators. All callbacks are
// optional.
type Options struct {
	// OnSessionStart runs once a session is bound to the renderer.
	OnSessionStart func(s xr.Session, id string)
	// OnSessionEnd runs exactly once per session instance, whatever
	// ended it.
	OnSessionEnd func(id string)
	// OnSelect forwards the session's primary input.
	OnSelect func()
	// Messages supplies the status texts; nil uses the defaults.
	Messages *messages.Catalog
}

// active tracks one session instance and the listeners installed on it.
type active struct {
	session  xr.Session
	id       string
	endID    xr.ListenerID
	selectID xr.ListenerID
	ended    bool
}

// Manager is safe for concurrent use.
type Manager struct {
	system xr.System
	opts   Options
	msgs   *messages.Catalog

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	status   SupportStatus
	message  string
	current  *active
	starting bool

	// emitMu orders lifecycle callbacks. It is taken before mu and held
	// through the callback, so start/end notifications are delivered in
	// the order the state changed. Lock order: emitMu, then mu.
	emitMu sync.Mutex
	events notify.Topic[Event]
}

// New creates a manager for system. A nil system means the device has
// no spatial-tracking API.
func New(system xr.System, opts Options) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		system: system,
		opts:   opts,
		msgs:   opts.Messages,
		ctx:    ctx,
		cancel: cancel,
		status: StatusChecking,
	}
	m.message = m.msgs.Get(messages.Checking)
	return m
}

// Subscribe registers fn for manager events.
func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	return m.events.Subscribe(fn)
}

// ProbeSupport runs the capability query and settles the support
// status. Once terminal, the status never changes; later probes return
// it without querying. A probe that finishes after Close, or after ctx
// is cancelled, changes nothing.
func (m *Manager) ProbeSupport(ctx context.Context) SupportStatus {
	if m.system == nil {
		m.resolve(StatusUnsupported, messages.Unsupported)
		return m.Status()
	}

	if st := m.Status(); st.Terminal() {
		return st
	}

	ok, err := m.system.IsSessionSupported(ctx, xr.ImmersiveAR)
	if ctx.Err() != nil {
		return m.Status()
	}

	switch {
	case err != nil:
		log.Printf("session: support probe failed: %v", err)
		m.resolve(StatusUnsupported, messages.ProbeFailed)
	case ok:
		m.resolve(StatusSupported, messages.Ready)
	default:
		m.resolve(StatusUnsupported, messages.Unsupported)
	}
	return m.Status()
}

func (m *Manager) resolve(st SupportStatus, key messages.Key) {
	m.mu.Lock()
	if m.ctx.Err() != nil || m.status.Terminal() {
		m.mu.Unlock()
		return
	}
	m.status = st
	m.message = m.msgs.Get(key)
	m.mu.Unlock()

	log.Printf("session: support status %s", st)
	m.events.Publish(Event{Kind: EventSupportResolved, Status: st})
}

// StartSession requests a session with hit testing, binds renderer to
// it and sets the floor-relative reference-space type. overlay may be
// nil. Failures leave no session behind and set a descriptive message.
func (m *Manager) StartSession(ctx context.Context, renderer xr.Renderer, overlay xr.Overlay) error {
	if err := m.beginStart(); err != nil {
		return err
	}

	init := xr.SessionInit{
		RequiredFeatures: []xr.Feature{xr.FeatureHitTest},
		OptionalFeatures: []xr.Feature{xr.FeatureLocalFloor, xr.FeatureDOMOverlay},
	}
	if overlay != nil {
		init.Overlay = overlay
	}

	sess, err := m.system.RequestSession(ctx, xr.ImmersiveAR, init)

	m.mu.Lock()
	m.starting = false
	if m.ctx.Err() != nil {
		m.mu.Unlock()
		if err == nil {
			_ = sess.End(context.Background())
		}
		return ErrClosed
	}
	if err != nil {
		m.message = m.msgs.Format(messages.StartFailed, err.Error())
		m.mu.Unlock()
		log.Printf("session: request failed: %v", err)
		m.events.Publish(Event{Kind: EventMessage})
		return fmt.Errorf("%w: %w", ErrSessionRequestFailed, err)
	}

	a := &active{session: sess, id: uuid.NewString()}
	m.current = a
	a.endID = sess.AddEventListener(xr.EventEnd, func() { m.handleEnd(a) })
	a.selectID = sess.AddEventListener(xr.EventSelect, func() { m.handleSelect(a) })
	m.mu.Unlock()

	renderer.SetReferenceSpaceType(xr.LocalFloor)
	if err := renderer.SetSession(ctx, sess); err != nil {
		m.mu.Lock()
		m.detach(a)
		m.message = m.msgs.Format(messages.StartFailed, err.Error())
		m.mu.Unlock()

		log.Printf("session: renderer bind failed for %s: %v", a.id, err)
		_ = sess.End(context.Background())
		m.events.Publish(Event{Kind: EventMessage})
		return fmt.Errorf("%w: bind renderer: %w", ErrSessionRequestFailed, err)
	}

	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	live := m.current == a
	m.mu.Unlock()
	if !live {
		// Ended while the renderer was binding; the end path already ran.
		return nil
	}

	log.Printf("session: started %s", a.id)
	m.events.Publish(Event{Kind: EventStarted, SessionID: a.id})
	if m.opts.OnSessionStart != nil {
		m.opts.OnSessionStart(sess, a.id)
	}
	return nil
}

func (m *Manager) beginStart() error {
	changed, err := m.checkStart()
	if changed {
		m.events.Publish(Event{Kind: EventMessage})
	}
	return err
}

// checkStart validates the preconditions and marks a start in flight.
// changed reports whether the message was updated.
func (m *Manager) checkStart() (changed bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx.Err() != nil {
		return false, ErrClosed
	}
	if m.system == nil {
		m.message = m.msgs.Get(messages.APIUnavailable)
		return true, ErrUnsupported
	}
	switch m.status {
	case StatusChecking:
		return false, ErrSupportUnknown
	case StatusUnsupported:
		m.message = m.msgs.Get(messages.Unsupported)
		return true, ErrUnsupported
	}
	if m.current != nil || m.starting {
		return false, ErrSessionActive
	}

	m.starting = true
	m.message = m.msgs.Get(messages.Starting)
	return true, nil
}

// EndSession asks the current session to end. The session handle is
// cleared by the end event, not here. It is a no-op without a session.
func (m *Manager) EndSession(ctx context.Context) error {
	m.mu.Lock()
	a := m.current
	m.mu.Unlock()
	if a == nil {
		return nil
	}

	if err := a.session.End(ctx); err != nil {
		m.mu.Lock()
		if m.current == a {
			m.message = m.msgs.Get(messages.EndFailed)
		}
		m.mu.Unlock()
		log.Printf("session: end %s failed: %v", a.id, err)
		m.events.Publish(Event{Kind: EventMessage})
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

func (m *Manager) handleEnd(a *active) {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	if a.ended || m.current != a {
		m.mu.Unlock()
		return
	}
	m.detach(a)
	m.message = m.msgs.Get(messages.Ended)
	m.mu.Unlock()

	log.Printf("session: ended %s", a.id)
	m.events.Publish(Event{Kind: EventEnded, SessionID: a.id})
	if m.opts.OnSessionEnd != nil {
		m.opts.OnSessionEnd(a.id)
	}
}

func (m *Manager) handleSelect(a *active) {
	m.mu.Lock()
	live := m.current == a && !a.ended
	m.mu.Unlock()

	if live && m.opts.OnSelect != nil {
		m.opts.OnSelect()
	}
}

// detach removes every listener installed on a and forgets it. Caller
// holds m.mu.
func (m *Manager) detach(a *active) {
	if a.ended {
		return
	}
	a.ended = true
	a.session.RemoveEventListener(xr.EventEnd, a.endID)
	a.session.RemoveEventListener(xr.EventSelect, a.selectID)
	if m.current == a {
		m.current = nil
	}
}

// Close disposes of the manager. An active session is ended without
// invoking OnSessionEnd, and in-flight probes and requests become
// no-ops when they complete.
func (m *Manager) Close() {
	m.mu.Lock()
	m.cancel()
	a := m.current
	if a != nil {
		m.detach(a)
	}
	m.mu.Unlock()

	if a != nil {
		_ = a.session.End(context.Background())
	}
}

// Status returns the support status.
func (m *Manager) Status() SupportStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Message returns the manager's user-facing status text.
func (m *Manager) Message() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.message
}

// Session returns the active session and its id.
func (m *Manager) Session() (xr.Session, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, "", false
	}
	return m.current.session, m.current.id, true
}

// Active reports whether a session is active.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}

// CanStart reports whether StartSession would be attempted.
func (m *Manager) CanStart() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.system != nil && m.status == StatusSupported && m.current == nil && !m.starting
}
