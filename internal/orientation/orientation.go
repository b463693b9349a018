// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
)

// Vec3 is a position in meters, expressed in the floor-relative space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is a rotation stored as (x, y, z, w).
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// IdentityQuaternion returns the no-rotation quaternion (0, 0, 0, 1).
func IdentityQuaternion() Quaternion {
	return Quaternion{W: 1}
}

// Norm returns the quaternion length.
func (q Quaternion) Norm() float64 {
	return math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
}

// Normalize returns q scaled to unit length. A zero quaternion
// normalizes to identity.
func (q Quaternion) Normalize() Quaternion {
	n := q.Norm()
	if n == 0 || math.IsNaN(n) {
		return IdentityQuaternion()
	}
	return Quaternion{X: q.X / n, Y: q.Y / n, Z: q.Z / n, W: q.W / n}
}

// Mul returns the Hamilton product q*r (apply r first, then q).
func (q Quaternion) Mul(r Quaternion) Quaternion {
	return Quaternion{
		X: q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		Y: q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		Z: q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
		W: q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
	}
}

// SameRotation reports whether q and r describe the same rotation
// within eps. q and -q are the same rotation.
func (q Quaternion) SameRotation(r Quaternion, eps float64) bool {
	a, b := q.Normalize(), r.Normalize()
	dot := a.X*b.X + a.Y*b.Y + a.Z*b.Z + a.W*b.W
	return 1-math.Abs(dot) <= eps
}

// Pose is the canonical position + orientation pair used for hit
// snapshots and committed anchors.
type Pose struct {
	Position    Vec3       `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// IdentityPose returns the pose at the origin with no rotation.
func IdentityPose() Pose {
	return Pose{Orientation: IdentityQuaternion()}
}

// IsIdentity reports whether p is exactly the identity pose.
func (p Pose) IsIdentity() bool {
	return p == IdentityPose()
}

// Euler holds an orientation in degrees.
//
//	pitch = rotation about X
//	yaw   = rotation about Y (world vertical)
//	roll  = rotation about Z
type Euler struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// gimbalLimit is the |m23| above which pitch is treated as ±90° and
// roll is folded into yaw.
const gimbalLimit = 0.9999999

// eulerYXZ decomposes q with yaw outermost, pitch in the middle and
// roll innermost. Angles are in radians.
func eulerYXZ(q Quaternion) (pitch, yaw, roll float64) {
	q = q.Normalize()
	x, y, z, w := q.X, q.Y, q.Z, q.W

	m11 := 1 - 2*(y*y+z*z)
	m13 := 2 * (x*z + w*y)
	m21 := 2 * (x*y + w*z)
	m22 := 1 - 2*(x*x+z*z)
	m23 := 2 * (y*z - w*x)
	m31 := 2 * (x*z - w*y)
	m33 := 1 - 2*(x*x+y*y)

	pitch = math.Asin(-clamp(m23, -1, 1))
	if math.Abs(m23) < gimbalLimit {
		yaw = math.Atan2(m13, m33)
		roll = math.Atan2(m21, m22)
	} else {
		yaw = math.Atan2(-m31, m11)
		roll = 0
	}
	return pitch, yaw, roll
}

// fromEulerYXZ builds q = yaw * pitch * roll from radians.
func fromEulerYXZ(pitch, yaw, roll float64) Quaternion {
	c1, s1 := math.Cos(pitch/2), math.Sin(pitch/2)
	c2, s2 := math.Cos(yaw/2), math.Sin(yaw/2)
	c3, s3 := math.Cos(roll/2), math.Sin(roll/2)

	return Quaternion{
		X: s1*c2*c3 + c1*s2*s3,
		Y: c1*s2*c3 - s1*c2*s3,
		Z: c1*c2*s3 - s1*s2*c3,
		W: c1*c2*c3 + s1*s2*s3,
	}
}

// ToEuler decomposes q into roll/pitch/yaw degrees (YXZ order).
func ToEuler(q Quaternion) Euler {
	pitch, yaw, roll := eulerYXZ(q)
	return Euler{
		Roll:  roll * 180.0 / math.Pi,
		Pitch: pitch * 180.0 / math.Pi,
		Yaw:   yaw * 180.0 / math.Pi,
	}
}

// FromEuler builds a quaternion from roll/pitch/yaw degrees (YXZ order).
func FromEuler(e Euler) Quaternion {
	return fromEulerYXZ(
		e.Pitch*math.Pi/180.0,
		e.Yaw*math.Pi/180.0,
		e.Roll*math.Pi/180.0,
	)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
