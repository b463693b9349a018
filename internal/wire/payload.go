// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package wire

import (
	"errors"
	"fmt"
	"time"

	"github.com/relabs-tech/surface_anchor/internal/ar"
	"github.com/relabs-tech/surface_anchor/internal/gps"
	"github.com/relabs-tech/surface_anchor/internal/orientation"
)

// State is the retained snapshot published on every discrete change.
type State struct {
	Timestamp int64 `json:"ts"` // unix milliseconds
	ar.Snapshot
}

// NewState stamps s with t.
func NewState(s ar.Snapshot, t time.Time) State {
	return State{Timestamp: t.UnixMilli(), Snapshot: s}
}

// Pose is the high-frequency pose sample. Hit and Reticle are nil when
// absent.
type Pose struct {
	Timestamp          int64                  `json:"ts"`
	Hit                *orientation.Pose      `json:"hit,omitempty"`
	Reticle            *orientation.Pose      `json:"reticle,omitempty"`
	Scene              orientation.Pose       `json:"scene"`
	SceneEuler         orientation.Euler      `json:"scene_euler"`
	ContentOrientation orientation.Quaternion `json:"content_orientation"`
}

// Event reports a discrete action outcome.
type Event struct {
	Timestamp int64             `json:"ts"`
	Kind      ar.EventKind      `json:"kind"`
	SessionID string            `json:"session_id,omitempty"`
	Scene     *orientation.Pose `json:"scene,omitempty"`
	Error     string            `json:"error,omitempty"`
	Fix       *gps.Fix          `json:"fix,omitempty"`
}

// NewEvent converts an orchestrator event, attaching fix when non-nil.
func NewEvent(e ar.Event, fix *gps.Fix, t time.Time) Event {
	out := Event{
		Timestamp: t.UnixMilli(),
		Kind:      e.Kind,
		SessionID: e.SessionID,
		Error:     e.Error,
		Fix:       fix,
	}
	if e.Kind == ar.EventPlaced {
		scene := e.Scene
		out.Scene = &scene
	}
	return out
}

// Action names an imperative command.
type Action string

const (
	ActionStart Action = "start"
	ActionEnd   Action = "end"
	ActionPlace Action = "place"
	ActionReset Action = "reset"
)

// ErrUnknownAction is returned for commands outside the four actions.
var ErrUnknownAction = errors.New("wire: unknown action")

// Command asks the producer to run an action.
type Command struct {
	Action Action `json:"action"`
	Source string `json:"source,omitempty"`
}

// Validate checks the action name.
func (c Command) Validate() error {
	switch c.Action {
	case ActionStart, ActionEnd, ActionPlace, ActionReset:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, c.Action)
	}
}

// DecodeCommand decodes and validates a command.
func DecodeCommand(c Codec, data []byte) (Command, error) {
	var cmd Command
	if err := c.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("failed to decode command: %w", err)
	}
	if err := cmd.Validate(); err != nil {
		return Command{}, err
	}
	return cmd, nil
}
