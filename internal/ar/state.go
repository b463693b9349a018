// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ar

import (
	"github.com/relabs-tech/surface_anchor/internal/messages"
	"github.com/relabs-tech/surface_anchor/internal/orientation"
	"github.com/relabs-tech/surface_anchor/internal/placement"
	"github.com/relabs-tech/surface_anchor/internal/session"
)

// State is the aggregate status of the anchoring flow. It is derived,
// never stored.
type State string

const (
	StateCheckingSupport State = "checking-support"
	StateIdle            State = "idle"
	StateReadyToStart    State = "ready-to-start"
	StateScanning        State = "scanning"
	StateSurfaceFound    State = "surface-found"
	StatePlaced          State = "placed"
)

// Aggregate derives the aggregate state. Earlier rules win: checking,
// unsupported, no session, then the placement state.
func Aggregate(support session.SupportStatus, active bool, ps placement.State) State {
	switch {
	case support == session.StatusChecking:
		return StateCheckingSupport
	case support != session.StatusSupported:
		return StateIdle
	case !active:
		return StateReadyToStart
	}

	switch ps {
	case placement.Placed:
		return StatePlaced
	case placement.SurfaceFound:
		return StateSurfaceFound
	default:
		return StateScanning
	}
}

// messageKey maps an in-session state to its status text.
func messageKey(s State) messages.Key {
	switch s {
	case StatePlaced:
		return messages.Placed
	case StateSurfaceFound:
		return messages.SurfaceFound
	default:
		return messages.Scanning
	}
}

// Snapshot is the discrete state exposed to rendering and UI
// collaborators.
type Snapshot struct {
	State              State                  `json:"state"`
	Message            string                 `json:"message"`
	Support            session.SupportStatus  `json:"support"`
	SessionID          string                 `json:"session_id,omitempty"`
	SessionActive      bool                   `json:"session_active"`
	PlacementLocked    bool                   `json:"placement_locked"`
	CanStart           bool                   `json:"can_start"`
	Placement          placement.State        `json:"placement"`
	ScenePose          orientation.Pose       `json:"scene_pose"`
	ContentOrientation orientation.Quaternion `json:"content_orientation"`
}
