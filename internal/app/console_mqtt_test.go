// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/surface_anchor/internal/ar"
	"github.com/relabs-tech/surface_anchor/internal/gps"
	"github.com/relabs-tech/surface_anchor/internal/orientation"
	"github.com/relabs-tech/surface_anchor/internal/session"
	"github.com/relabs-tech/surface_anchor/internal/wire"
)

func TestFormatState(t *testing.T) {
	s := wire.State{Snapshot: ar.Snapshot{
		State:    ar.StateReadyToStart,
		Support:  session.StatusSupported,
		CanStart: true,
		Message:  "Ready.",
	}}
	assert.Equal(t, `[STATE] ready-to-start   support=supported can_start=true  "Ready."`, formatState(s))

	s.SessionID = "abc"
	assert.Contains(t, formatState(s), " session=abc ")
}

func TestFormatEvent(t *testing.T) {
	scene := orientation.Pose{Position: orientation.Vec3{X: 1, Y: 0, Z: -0.5}}
	e := wire.Event{
		Kind:      ar.EventPlaced,
		SessionID: "s1",
		Scene:     &scene,
		Fix:       &gps.Fix{Latitude: 49.274167, Longitude: -123.185333},
	}
	assert.Equal(t,
		"[EVENT] placed           session=s1 scene=(1.000, 0.000, -0.500) lat=49.274167 lon=-123.185333",
		formatEvent(e))

	e = wire.Event{Kind: ar.EventHitTestFailed, Error: "boom"}
	assert.Equal(t, `[EVENT] hit-test-failed  error="boom"`, formatEvent(e))
}
