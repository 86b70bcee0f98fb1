// Package vrmath holds the coordinate conventions shared by the pose,
// controller and render layers.
//
// Device space is the tracking runtime's: metres, right-handed, +Y up and
// -Z forward. Engine space is the game's: inches, +Z up, +X forward, +Y left.
package vrmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// InchesPerMetre converts device metres into engine units.
const InchesPerMetre float32 = 39.3701

// Eye selects one of the two eye passes.
type Eye int

const (
	EyeLeft Eye = iota
	EyeRight
)

func (e Eye) String() string {
	if e == EyeLeft {
		return "left"
	}
	return "right"
}

// Role is the physical tracked-controller role.
type Role int

const (
	RoleLeft Role = iota
	RoleRight
)

func (r Role) String() string {
	if r == RoleLeft {
		return "left"
	}
	return "right"
}

// Other returns the opposite hand.
func (r Role) Other() Role {
	if r == RoleLeft {
		return RoleRight
	}
	return RoleLeft
}

// Angles are engine euler angles in degrees. Pitch is positive looking down.
type Angles struct {
	Pitch float32
	Yaw   float32
	Roll  float32
}

// Vec3 packs the angles as (pitch, yaw, roll).
func (a Angles) Vec3() mgl32.Vec3 {
	return mgl32.Vec3{a.Pitch, a.Yaw, a.Roll}
}

// AnglesFromVec3 is the inverse of Angles.Vec3.
func AnglesFromVec3(v mgl32.Vec3) Angles {
	return Angles{Pitch: v[0], Yaw: v[1], Roll: v[2]}
}

// YawOnly drops pitch and roll.
func (a Angles) YawOnly() Angles {
	return Angles{Yaw: a.Yaw}
}

// Vectors returns the forward, right and up vectors for the angles, using the
// engine's AngleVectors convention.
func (a Angles) Vectors() (forward, right, up mgl32.Vec3) {
	sp, cp := sincos(a.Pitch)
	sy, cy := sincos(a.Yaw)
	sr, cr := sincos(a.Roll)

	forward = mgl32.Vec3{cp * cy, cp * sy, -sp}
	right = mgl32.Vec3{
		-sr*sp*cy + cr*sy,
		-sr*sp*sy - cr*cy,
		-sr * cp,
	}
	up = mgl32.Vec3{
		cr*sp*cy + sr*sy,
		cr*sp*sy - sr*cy,
		cr * cp,
	}
	return forward, right, up
}

// AnglesFromVectors recovers engine angles from a forward and an up vector.
func AnglesFromVectors(forward, up mgl32.Vec3) Angles {
	if forward.Len() == 0 {
		return Angles{}
	}
	f := forward.Normalize()
	horiz := float32(math.Hypot(float64(f[0]), float64(f[1])))

	a := Angles{
		Pitch: mgl32.RadToDeg(float32(math.Atan2(float64(-f[2]), float64(horiz)))),
		Yaw:   mgl32.RadToDeg(float32(math.Atan2(float64(f[1]), float64(f[0])))),
	}

	// with roll 0, up = up0 and right = right0; a roll r rotates up to
	// cos(r)*up0 + sin(r)*right0
	_, right0, up0 := a.Vectors()
	a.Roll = mgl32.RadToDeg(float32(math.Atan2(float64(up.Dot(right0)), float64(up.Dot(up0)))))
	return a
}

// DeviceDirToEngine rotates a device-space direction into engine axes
// without scaling.
func DeviceDirToEngine(v mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{-v[2], -v[0], v[1]}
}

// DeviceToEngine converts a device-space position in metres into engine
// units, applying the world scale.
func DeviceToEngine(v mgl32.Vec3, worldScale float32) mgl32.Vec3 {
	return DeviceDirToEngine(v).Mul(InchesPerMetre * worldScale)
}

// TransformAngles returns the engine angles of a device-space tracking
// transform.
func TransformAngles(m mgl32.Mat4) Angles {
	rot := m.Mat3()
	forward := DeviceDirToEngine(rot.Mul3x1(mgl32.Vec3{0, 0, -1}))
	up := DeviceDirToEngine(rot.Mul3x1(mgl32.Vec3{0, 1, 0}))
	return AnglesFromVectors(forward, up)
}

// TransformPosition returns the translation of a device-space tracking
// transform in engine units.
func TransformPosition(m mgl32.Mat4, worldScale float32) mgl32.Vec3 {
	return DeviceToEngine(m.Col(3).Vec3(), worldScale)
}

// NormalizeAngle wraps an angle in degrees into (-180, 180].
func NormalizeAngle(deg float32) float32 {
	d := float32(math.Mod(float64(deg), 360))
	if d > 180 {
		d -= 360
	} else if d <= -180 {
		d += 360
	}
	return d
}

func sincos(deg float32) (float32, float32) {
	s, c := math.Sincos(float64(mgl32.DegToRad(deg)))
	return float32(s), float32(c)
}
