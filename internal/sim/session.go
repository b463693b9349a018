// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sim

import (
	"context"
	"sync"
	"time"

	"github.com/relabs-tech/surface_anchor/internal/orientation"
	"github.com/relabs-tech/surface_anchor/internal/xr"
)

// FrameInterval is the simulated device frame period (60 Hz).
const FrameInterval = time.Second / 60

// Session is a simulated xr.Session. Frames only advance when Step is
// called, either directly by tests or by Run.
type Session struct {
	dev  *Device
	init xr.SessionInit

	mu         sync.Mutex
	ended      bool
	nextID     uint64
	listeners  map[xr.EventType]map[xr.ListenerID]func()
	frames     map[xr.FrameHandle]xr.FrameCallback
	frameOrder []xr.FrameHandle
	frameCount uint64
	hits       HitFunc
	sources    []*hitTestSource
	spaces     []xr.ReferenceSpaceType
}

var _ xr.Session = (*Session)(nil)

func newSession(d *Device, init xr.SessionInit, hits HitFunc) *Session {
	return &Session{
		dev:       d,
		init:      init,
		listeners: make(map[xr.EventType]map[xr.ListenerID]func()),
		frames:    make(map[xr.FrameHandle]xr.FrameCallback),
		hits:      hits,
	}
}

// hitTestSession adds the hit-test capability to a Session.
type hitTestSession struct {
	*Session
}

var _ xr.HitTester = (*hitTestSession)(nil)

func (h *hitTestSession) RequestHitTestSource(_ context.Context, opts xr.HitTestOptions) (xr.HitTestSource, error) {
	s := h.Session
	s.dev.await()

	if s.dev.opts.HitTestSourceErr != nil {
		return nil, s.dev.opts.HitTestSourceErr
	}
	if s.dev.opts.NilHitTestSource {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil, ErrSessionEnded
	}
	src := &hitTestSource{space: opts.Space}
	s.sources = append(s.sources, src)
	return src, nil
}

type referenceSpace struct {
	kind xr.ReferenceSpaceType
}

func (r referenceSpace) Type() xr.ReferenceSpaceType { return r.kind }

// RequestReferenceSpace resolves a coordinate frame.
func (s *Session) RequestReferenceSpace(_ context.Context, kind xr.ReferenceSpaceType) (xr.ReferenceSpace, error) {
	s.dev.await()

	if s.dev.opts.ReferenceSpaceErr != nil {
		return nil, s.dev.opts.ReferenceSpaceErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil, ErrSessionEnded
	}
	s.spaces = append(s.spaces, kind)
	return referenceSpace{kind: kind}, nil
}

// RequestAnimationFrame schedules cb for the next Step.
func (s *Session) RequestAnimationFrame(cb xr.FrameCallback) xr.FrameHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	h := xr.FrameHandle(s.nextID)
	s.frames[h] = cb
	s.frameOrder = append(s.frameOrder, h)
	return h
}

// CancelAnimationFrame drops a pending callback.
func (s *Session) CancelAnimationFrame(h xr.FrameHandle) {
	s.mu.Lock()
	delete(s.frames, h)
	s.mu.Unlock()
}

// AddEventListener registers fn for ev.
func (s *Session) AddEventListener(ev xr.EventType, fn func()) xr.ListenerID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := xr.ListenerID(s.nextID)
	if s.listeners[ev] == nil {
		s.listeners[ev] = make(map[xr.ListenerID]func())
	}
	s.listeners[ev][id] = fn
	return id
}

// RemoveEventListener removes a listener. Unknown ids are ignored.
func (s *Session) RemoveEventListener(ev xr.EventType, id xr.ListenerID) {
	s.mu.Lock()
	delete(s.listeners[ev], id)
	s.mu.Unlock()
}

// End terminates the session and fires the end event.
func (s *Session) End(_ context.Context) error {
	if s.dev.opts.EndErr != nil {
		return s.dev.opts.EndErr
	}
	if !s.terminate() {
		return ErrSessionEnded
	}
	return nil
}

// Terminate ends the session from outside the application, the way the
// device UI or an OS interruption would.
func (s *Session) Terminate() {
	s.terminate()
}

func (s *Session) terminate() bool {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return false
	}
	s.ended = true
	s.frames = make(map[xr.FrameHandle]xr.FrameCallback)
	s.frameOrder = nil
	fns := s.listenersFor(xr.EventEnd)
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return true
}

// Select fires the primary-input event.
func (s *Session) Select() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	fns := s.listenersFor(xr.EventSelect)
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// listenersFor returns the listeners for ev in registration order.
// Caller holds s.mu.
func (s *Session) listenersFor(ev xr.EventType) []func() {
	byID := s.listeners[ev]
	ids := make([]xr.ListenerID, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sortIDs(ids)

	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, byID[id])
	}
	return fns
}

// Step delivers one device frame to every callback registered before
// the call. Callbacks registered during the frame wait for the next
// Step. It returns the number of callbacks run.
func (s *Session) Step() int {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return 0
	}
	s.frameCount++
	n := s.frameCount

	order := s.frameOrder
	s.frameOrder = nil
	cbs := make([]xr.FrameCallback, 0, len(order))
	for _, h := range order {
		if cb, ok := s.frames[h]; ok {
			cbs = append(cbs, cb)
			delete(s.frames, h)
		}
	}

	var poses []orientation.Pose
	if s.hits != nil {
		poses = s.hits(n)
	}
	f := &frame{session: s, poses: poses}
	s.mu.Unlock()

	t := time.Duration(n) * FrameInterval
	for _, cb := range cbs {
		cb(t, f)
	}
	return len(cbs)
}

// StepN calls Step n times.
func (s *Session) StepN(n int) {
	for i := 0; i < n; i++ {
		s.Step()
	}
}

// Run steps the session every interval until ctx is done or the session
// ends.
func (s *Session) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if s.Ended() {
				return nil
			}
			s.Step()
		}
	}
}

// SetHit makes every following frame report a single hit at p.
func (s *Session) SetHit(p orientation.Pose) {
	s.SetHitFunc(func(uint64) []orientation.Pose { return []orientation.Pose{p} })
}

// ClearHit makes following frames report no hit.
func (s *Session) ClearHit() {
	s.SetHitFunc(nil)
}

// SetHitFunc replaces the hit generator.
func (s *Session) SetHitFunc(fn HitFunc) {
	s.mu.Lock()
	s.hits = fn
	s.mu.Unlock()
}

// Ended reports whether the session has ended.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Init returns the features the session was requested with.
func (s *Session) Init() xr.SessionInit {
	return s.init
}

// PendingFrames returns how many frame callbacks wait for the next Step.
func (s *Session) PendingFrames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// Listeners returns how many listeners are registered for ev.
func (s *Session) Listeners(ev xr.EventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners[ev])
}

// SourcesCreated returns how many hit-test sources were handed out.
func (s *Session) SourcesCreated() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sources)
}

// ActiveSources returns how many hit-test sources are not cancelled.
func (s *Session) ActiveSources() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, src := range s.sources {
		if !src.cancelled() {
			n++
		}
	}
	return n
}

// ReferenceSpaces lists the reference spaces requested, in order.
func (s *Session) ReferenceSpaces() []xr.ReferenceSpaceType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]xr.ReferenceSpaceType(nil), s.spaces...)
}

func (s *Session) ownsSource(src xr.HitTestSource) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, own := range s.sources {
		if xr.HitTestSource(own) == src {
			return !own.cancelled()
		}
	}
	return false
}
