package controller

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/hlvr/vrcore/internal/vrmath"
)

// HitBox is one oriented bounding box of the controller model, in world
// space.
type HitBox struct {
	Origin mgl32.Vec3
	Angles mgl32.Vec3
	Mins   mgl32.Vec3
	Maxs   mgl32.Vec3
}

// Corners returns the eight world-space corners of the box.
func (b HitBox) Corners() [8]mgl32.Vec3 {
	forward, right, up := vrmath.AnglesFromVec3(b.Angles).Vectors()
	left := right.Mul(-1)

	var out [8]mgl32.Vec3
	for i := range out {
		local := b.Mins
		if i&1 != 0 {
			local[0] = b.Maxs[0]
		}
		if i&2 != 0 {
			local[1] = b.Maxs[1]
		}
		if i&4 != 0 {
			local[2] = b.Maxs[2]
		}
		out[i] = b.Origin.
			Add(forward.Mul(local[0])).
			Add(left.Mul(local[1])).
			Add(up.Mul(local[2]))
	}
	return out
}

// HitBoxSource evaluates the skeleton of the controller's model.
type HitBoxSource interface {
	ModelName() string
	Sequence() int
	Frame() float32
	AnimTime() float32
	HitBoxes() []HitBox
	Attachments() []mgl32.Vec3
}

// ModelLookup finds the skeleton driven by a player's controller. Time is
// the engine clock the skeleton is evaluated at.
type ModelLookup interface {
	ControllerModel(playerIndex int, id ID) (HitBoxSource, bool)
	Time() float32
}

type hitboxCache struct {
	modelName   string
	sequence    int
	frame       float32
	lastUpdate  float32
	boxes       []HitBox
	attachments []mgl32.Vec3
	radius      float32
}

// RefreshHitBoxes re-evaluates the skeleton only when the model, sequence or
// frame changed, or the animation advanced past the last refresh. It returns
// whether the cache was rebuilt.
func (c *State) RefreshHitBoxes(src HitBoxSource, now float32) bool {
	if src == nil {
		c.ClearHitBoxes()
		return false
	}

	hc := &c.hitboxes
	if hc.modelName != "" &&
		hc.modelName == src.ModelName() &&
		hc.sequence == src.Sequence() &&
		hc.frame == src.Frame() &&
		src.AnimTime() <= hc.lastUpdate {
		return false
	}

	hc.modelName = src.ModelName()
	hc.sequence = src.Sequence()
	hc.frame = src.Frame()
	hc.lastUpdate = now
	hc.boxes = append(hc.boxes[:0], src.HitBoxes()...)
	hc.attachments = append(hc.attachments[:0], src.Attachments()...)
	hc.radius = c.computeRadius()
	return true
}

// ClearHitBoxes drops every cached hitbox and attachment.
func (c *State) ClearHitBoxes() {
	c.hitboxes = hitboxCache{}
}

// HitBoxes returns the cached boxes. The slice is owned by the controller.
func (c *State) HitBoxes() []HitBox {
	return c.hitboxes.boxes
}

// Radius is the largest distance from the controller position to any hitbox
// corner.
func (c *State) Radius() float32 {
	return c.hitboxes.radius
}

// GetAttachment returns attachment index of the current model. A missing
// model or an index out of range is reported as not found.
func (c *State) GetAttachment(index int) (mgl32.Vec3, bool) {
	if index < 0 || index >= len(c.hitboxes.attachments) {
		return mgl32.Vec3{}, false
	}
	return c.hitboxes.attachments[index], true
}

func (c *State) computeRadius() float32 {
	var r float32
	for _, b := range c.hitboxes.boxes {
		for _, p := range b.Corners() {
			if d := p.Sub(c.position).Len(); d > r {
				r = d
			}
		}
	}
	return r
}
