// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import "math"

// ProjectToVerticalYaw keeps only the rotation about the world vertical
// axis. Pitch and roll of the detected surface are discarded so content
// anchored to a sloped surface still stands upright.
//
// Two orientations with the same yaw produce identical output.
func ProjectToVerticalYaw(q Quaternion) Quaternion {
	_, yaw, _ := eulerYXZ(q)
	return Quaternion{Y: math.Sin(yaw / 2), W: math.Cos(yaw / 2)}
}
