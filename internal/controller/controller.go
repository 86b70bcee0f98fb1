// Package controller tracks the kinematic and interaction state of each
// tracked motion controller. State is fed from the network/gameplay tick and
// read by hit detection, dragging and hand-model code.
package controller

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/hlvr/vrcore/internal/entity"
	"github.com/hlvr/vrcore/internal/vrmath"
)

// ID identifies which hand a controller report belongs to.
type ID int

const (
	Left ID = iota
	Right
	Invalid
)

func (id ID) String() string {
	switch id {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "invalid"
	}
}

// ParseID maps a wire id back to an ID. Unknown values map to Invalid.
func ParseID(v int) ID {
	switch ID(v) {
	case Left, Right:
		return ID(v)
	default:
		return Invalid
	}
}

// Role returns the physical role that drives this id.
func (id ID) Role() vrmath.Role {
	if id == Left {
		return vrmath.RoleLeft
	}
	return vrmath.RoleRight
}

// WeaponBarehand is the weapon id of an empty hand.
const WeaponBarehand = 0

// Player is the owning player as seen by a controller update.
type Player interface {
	Index() int
	Origin() mgl32.Vec3
	IsAlive() bool
}

// State is one physical controller's snapshot.
type State struct {
	id             ID
	offset         mgl32.Vec3
	position       mgl32.Vec3
	angles         mgl32.Vec3
	previousAngles mgl32.Vec3
	velocity       mgl32.Vec3
	isDragging     bool
	isValid        bool
	isMirrored     bool
	isBlocked      bool
	weaponID       int
	lastUpdate     int
	hasUpdate      bool

	model        entity.Handle
	laserPointer entity.Handle

	hitboxes hitboxCache

	validator entity.Validator
	touched   map[entity.Handle]struct{}
	dragged   map[entity.Handle]*DraggedEntityPositions
	hit       map[entity.Handle]struct{}
}

// New creates a controller in its initial, blocked, bare-handed state.
func New(id ID, validator entity.Validator) *State {
	return &State{
		id:        id,
		isBlocked: true,
		weaponID:  WeaponBarehand,
		validator: validator,
		touched:   make(map[entity.Handle]struct{}),
		dragged:   make(map[entity.Handle]*DraggedEntityPositions),
		hit:       make(map[entity.Handle]struct{}),
	}
}

// Update applies one report. Reports whose timestamp is not newer than the
// last applied one are dropped and Update returns false.
func (c *State) Update(
	player Player,
	timestamp int,
	isValid, isMirrored bool,
	offset, angles, velocity mgl32.Vec3,
	isDragging bool,
	id ID,
	weaponID int,
) bool {
	if c.hasUpdate && timestamp <= c.lastUpdate {
		return false
	}
	c.hasUpdate = true
	c.lastUpdate = timestamp

	c.previousAngles = c.angles
	c.angles = angles
	c.offset = offset
	c.position = player.Origin().Add(offset)
	c.velocity = velocity
	c.isDragging = isDragging
	c.isValid = isValid
	c.isMirrored = isMirrored
	c.isBlocked = !isValid || !player.IsAlive()
	c.id = id

	if c.weaponID != weaponID {
		c.weaponID = weaponID
		c.ClearHitBoxes()
	}

	c.PruneStale()
	return true
}

func (c *State) ID() ID { return c.id }
func (c *State) Offset() mgl32.Vec3 { return c.offset }
func (c *State) Position() mgl32.Vec3 { return c.position }
func (c *State) Angles() mgl32.Vec3 { return c.angles }
func (c *State) PreviousAngles() mgl32.Vec3 { return c.previousAngles }
func (c *State) Velocity() mgl32.Vec3 { return c.velocity }
func (c *State) IsDragging() bool { return c.isDragging }
func (c *State) IsMirrored() bool { return c.isMirrored }
func (c *State) IsBlocked() bool { return c.isBlocked }
func (c *State) WeaponID() int { return c.weaponID }
func (c *State) LastUpdate() int { return c.lastUpdate }
func (c *State) Model() entity.Handle { return c.model }
func (c *State) LaserPointer() entity.Handle { return c.laserPointer }

// IsValid reports a valid pose for a known hand.
func (c *State) IsValid() bool {
	return c.isValid && c.id != Invalid
}

// SetModel binds the hand or weapon model entity.
func (c *State) SetModel(h entity.Handle) {
	c.model = h
}

// SetLaserPointer binds the laser pointer entity.
func (c *State) SetLaserPointer(h entity.Handle) {
	c.laserPointer = h
}

// Speed is the magnitude of the reported velocity.
func (c *State) Speed() float32 {
	return c.velocity.Len()
}

// Aim returns the forward vector of the controller.
func (c *State) Aim() mgl32.Vec3 {
	forward, _, _ := vrmath.AnglesFromVec3(c.angles).Vectors()
	return forward
}

// GunPosition is the muzzle attachment when the model has one, the
// controller position otherwise.
func (c *State) GunPosition() mgl32.Vec3 {
	if p, ok := c.GetAttachment(0); ok {
		return p
	}
	return c.position
}
