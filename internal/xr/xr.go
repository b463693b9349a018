// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package xr describes the device spatial-tracking API the anchoring
// core consumes. Real backends and the simulator in internal/sim
// implement these interfaces.
package xr

import (
	"context"
	"time"

	"github.com/relabs-tech/surface_anchor/internal/orientation"
)

// SessionMode selects the kind of tracking session.
type SessionMode string

const ImmersiveAR SessionMode = "immersive-ar"

// Feature is a session feature negotiated at request time.
type Feature string

const (
	FeatureHitTest    Feature = "hit-test"
	FeatureLocalFloor Feature = "local-floor"
	FeatureDOMOverlay Feature = "dom-overlay"
)

// Overlay is the opaque screen-overlay root handed to the device.
type Overlay any

// SessionInit lists the features requested for a new session.
type SessionInit struct {
	RequiredFeatures []Feature
	OptionalFeatures []Feature
	// Overlay is set only when a screen overlay root was supplied.
	Overlay Overlay
}

// ReferenceSpaceType names a coordinate frame.
type ReferenceSpaceType string

const (
	LocalFloor ReferenceSpaceType = "local-floor"
	Viewer     ReferenceSpaceType = "viewer"
)

// ReferenceSpace is a coordinate frame poses can be expressed in.
type ReferenceSpace interface {
	Type() ReferenceSpaceType
}

// EventType names a session lifecycle event.
type EventType string

const (
	EventEnd    EventType = "end"
	EventSelect EventType = "select"
)

// ListenerID identifies a registered event listener.
type ListenerID uint64

// FrameHandle identifies a pending frame callback.
type FrameHandle uint64

// FrameCallback is invoked once per device frame. t is the frame time
// since the session started.
type FrameCallback func(t time.Duration, frame Frame)

// System is the capability entry point. A nil System means the device
// exposes no spatial-tracking API at all.
type System interface {
	IsSessionSupported(ctx context.Context, mode SessionMode) (bool, error)
	RequestSession(ctx context.Context, mode SessionMode, init SessionInit) (Session, error)
}

// Session is an active tracking context.
type Session interface {
	RequestReferenceSpace(ctx context.Context, kind ReferenceSpaceType) (ReferenceSpace, error)

	// RequestAnimationFrame schedules cb for the next device frame. Each
	// registration fires at most once.
	RequestAnimationFrame(cb FrameCallback) FrameHandle
	// CancelAnimationFrame drops a pending registration. Unknown or
	// already-fired handles are ignored.
	CancelAnimationFrame(h FrameHandle)

	AddEventListener(ev EventType, fn func()) ListenerID
	RemoveEventListener(ev EventType, id ListenerID)

	// End requests termination. The end event follows; it may also fire
	// without End being called (device UI, OS interruption).
	End(ctx context.Context) error
}

// HitTestOptions binds a hit-test source to a reference space.
type HitTestOptions struct {
	Space ReferenceSpace
}

// HitTester is implemented by sessions that negotiated hit testing.
type HitTester interface {
	RequestHitTestSource(ctx context.Context, opts HitTestOptions) (HitTestSource, error)
}

// HitTestSource is a standing ray-cast query. Cancel releases it and
// tolerates repeated calls.
type HitTestSource interface {
	Cancel()
}

// Frame is the per-frame view of tracking data.
type Frame interface {
	HitTestResults(src HitTestSource) []HitTestResult
}

// HitTestResult is one surface intersection, closest first.
type HitTestResult interface {
	// Pose resolves the hit in space. ok is false when the pose cannot
	// be expressed there this frame.
	Pose(space ReferenceSpace) (pose orientation.Pose, ok bool)
}

// Renderer is the collaborator that draws into the session. The core
// only binds it; it never issues draw calls.
type Renderer interface {
	SetReferenceSpaceType(kind ReferenceSpaceType)
	SetSession(ctx context.Context, s Session) error
}
