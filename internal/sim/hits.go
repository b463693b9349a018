// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sim

import (
	"math"

	"github.com/relabs-tech/surface_anchor/internal/orientation"
)

// HitFunc returns the hits for frame n (1-based), closest first. An
// empty result means no surface this frame.
type HitFunc func(n uint64) []orientation.Pose

const (
	dropoutPeriod = 240 // frames
	dropoutLength = 20  // frames
)

// WanderingHits finds no surface for scanFrames frames, then reports a
// floor hit in front of the viewer that drifts and slowly yaws, with a
// short dropout every few seconds.
func WanderingHits(scanFrames uint64) HitFunc {
	return func(n uint64) []orientation.Pose {
		if n <= scanFrames {
			return nil
		}
		k := n - scanFrames
		if k%dropoutPeriod >= dropoutPeriod-dropoutLength {
			return nil
		}

		elapsed := float64(k) / 60.0
		pose := orientation.Pose{
			Position: orientation.Vec3{
				X: 0.3 * math.Sin(elapsed*0.5),
				Y: 0,
				Z: -0.8 + 0.1*math.Cos(elapsed*0.7),
			},
			Orientation: orientation.FromEuler(orientation.Euler{
				Roll:  2 * math.Sin(elapsed),
				Pitch: 3 * math.Cos(elapsed*0.7),
				Yaw:   math.Mod(elapsed*30, 360) - 180,
			}),
		}
		return []orientation.Pose{pose}
	}
}
