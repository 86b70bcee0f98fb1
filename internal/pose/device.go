// Package pose acquires head and controller poses from the tracking device
// and converts them into engine space.
package pose

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/hlvr/vrcore/internal/vrmath"
)

// TrackedPose is one device-to-absolute tracking transform in device space.
type TrackedPose struct {
	Matrix   mgl32.Mat4
	Velocity mgl32.Vec3
	Valid    bool
}

// EventType classifies device events.
type EventType int

const (
	EventInput EventType = iota
	EventQuit
	EventDeviceActivated
	EventDeviceDeactivated
)

func (t EventType) String() string {
	switch t {
	case EventInput:
		return "input"
	case EventQuit:
		return "quit"
	case EventDeviceActivated:
		return "device_activated"
	case EventDeviceDeactivated:
		return "device_deactivated"
	default:
		return "unknown"
	}
}

// Event is one entry of the device event queue.
type Event struct {
	Type    EventType
	Device  int
	Role    vrmath.Role
	Action  string
	Pressed bool
}

// Device is the tracking runtime.
type Device interface {
	PollEvents() []Event
	HeadPose() (TrackedPose, bool)
	ControllerPose(role vrmath.Role) (TrackedPose, bool)
	EyeToHead(eye vrmath.Eye) mgl32.Mat4
	Submit(left, right uint32) error
}

// InputSink receives input events when the game is consuming input.
type InputSink interface {
	HandleEvent(ev Event)
}
