package domain

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Position is a point in world space.
type Position struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Vec3 converts p to an mgl32 vector.
func (p Position) Vec3() mgl32.Vec3 { return mgl32.Vec3{p.X, p.Y, p.Z} }

// PositionFromVec3 converts an mgl32 vector.
func PositionFromVec3(v mgl32.Vec3) Position { return Position{X: v[0], Y: v[1], Z: v[2]} }

// Rotation is a unit quaternion (x, y, z, w).
type Rotation struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
	W float32 `json:"w"`
}

// IdentityRotation is the rotation facing +Z with +Y up.
func IdentityRotation() Rotation { return Rotation{W: 1} }

// Quat converts r to an mgl32 quaternion.
func (r Rotation) Quat() mgl32.Quat {
	return mgl32.Quat{W: r.W, V: mgl32.Vec3{r.X, r.Y, r.Z}}
}

// RotationFromQuat converts an mgl32 quaternion.
func RotationFromQuat(q mgl32.Quat) Rotation {
	return Rotation{X: q.V[0], Y: q.V[1], Z: q.V[2], W: q.W}
}

// RotationFromEuler builds a rotation from pitch (X), yaw (Y) and roll (Z)
// angles in radians, applied yaw first.
func RotationFromEuler(pitch, yaw, roll float32) Rotation {
	return RotationFromQuat(mgl32.AnglesToQuat(yaw, pitch, roll, mgl32.YXZ))
}

// RotationFromDirection returns the rotation that turns +Z onto dir.
// A zero direction yields the identity.
func RotationFromDirection(dir mgl32.Vec3) Rotation {
	if dir.Len() == 0 {
		return IdentityRotation()
	}
	return RotationFromQuat(mgl32.QuatBetweenVectors(forwardAxis, dir.Normalize()))
}

// Normalized returns r scaled to unit length; a zero quaternion becomes identity.
func (r Rotation) Normalized() Rotation {
	q := r.Quat()
	if q.Len() == 0 {
		return IdentityRotation()
	}
	return RotationFromQuat(q.Normalize())
}

// Forward is the +Z axis rotated by r.
func (r Rotation) Forward() mgl32.Vec3 { return r.Normalized().Quat().Rotate(forwardAxis) }

// ApproxEqual compares two rotations as orientations, treating q and -q as equal.
func (r Rotation) ApproxEqual(other Rotation, epsilon float32) bool {
	a, b := r.Normalized().Quat(), other.Normalized().Quat()
	dot := a.Dot(b)
	return float32(math.Abs(float64(dot))) >= 1-epsilon
}

var (
	forwardAxis = mgl32.Vec3{0, 0, 1}
	upAxis      = mgl32.Vec3{0, 1, 0}
)

// feelerDirections fans count unit rays across fov radians about the up axis,
// centred on forward. Ray 0 has the largest yaw.
func feelerDirections(count int, fov float32) []mgl32.Vec3 {
	out := make([]mgl32.Vec3, count)
	if count == 1 {
		out[0] = forwardAxis
		return out
	}
	step := fov / float32(count-1)
	for i := range out {
		angle := fov/2 - float32(i)*step
		out[i] = mgl32.QuatRotate(angle, upAxis).Rotate(forwardAxis)
	}
	return out
}
