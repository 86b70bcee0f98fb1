package controller

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/hlvr/vrcore/internal/entity"
)

// DragSample records where the controller, its player and the dragged
// entity were at one tick.
type DragSample struct {
	ControllerOffset mgl32.Vec3
	ControllerOrigin mgl32.Vec3
	PlayerOrigin     mgl32.Vec3
	EntityOrigin     mgl32.Vec3
}

// DraggedEntityPositions holds the immutable drag start and the most recent
// sample for one dragged entity.
type DraggedEntityPositions struct {
	Start DragSample
	Last  DragSample
}

// ControllerDelta is how far the controller moved in world space since the
// drag started.
func (p DraggedEntityPositions) ControllerDelta() mgl32.Vec3 {
	return p.Last.ControllerOrigin.Sub(p.Start.ControllerOrigin)
}

// OffsetDelta is how far the controller moved relative to its player since
// the drag started.
func (p DraggedEntityPositions) OffsetDelta() mgl32.Vec3 {
	return p.Last.ControllerOffset.Sub(p.Start.ControllerOffset)
}

// PlayerDelta is how far the player moved since the drag started.
func (p DraggedEntityPositions) PlayerDelta() mgl32.Vec3 {
	return p.Last.PlayerOrigin.Sub(p.Start.PlayerOrigin)
}

// SetValidator replaces the entity check used by the interaction sets. A
// nil validator accepts every non-nil handle.
func (c *State) SetValidator(v entity.Validator) {
	c.validator = v
}

func (c *State) valid(h entity.Handle) bool {
	if h.IsNil() {
		return false
	}
	if c.validator == nil {
		return true
	}
	return c.validator.Valid(h)
}

// AddTouchedEntity returns false when h is already touched or no longer
// valid.
func (c *State) AddTouchedEntity(h entity.Handle) bool {
	if !c.valid(h) {
		return false
	}
	if _, ok := c.touched[h]; ok {
		return false
	}
	c.touched[h] = struct{}{}
	return true
}

// RemoveTouchedEntity returns false when h was not touched.
func (c *State) RemoveTouchedEntity(h entity.Handle) bool {
	if _, ok := c.touched[h]; !ok {
		return false
	}
	delete(c.touched, h)
	return true
}

func (c *State) IsTouchedEntity(h entity.Handle) bool {
	if _, ok := c.touched[h]; !ok {
		return false
	}
	return c.valid(h)
}

// AddDraggedEntity starts a drag. The entity must currently be touched.
func (c *State) AddDraggedEntity(h entity.Handle, start DragSample) bool {
	if !c.IsTouchedEntity(h) {
		return false
	}
	if _, ok := c.dragged[h]; ok {
		return false
	}
	c.dragged[h] = &DraggedEntityPositions{Start: start, Last: start}
	return true
}

func (c *State) RemoveDraggedEntity(h entity.Handle) bool {
	if _, ok := c.dragged[h]; !ok {
		return false
	}
	delete(c.dragged, h)
	return true
}

func (c *State) IsDraggedEntity(h entity.Handle) bool {
	if _, ok := c.dragged[h]; !ok {
		return false
	}
	return c.valid(h)
}

// UpdateDraggedEntity records the latest sample. The start sample is never
// touched.
func (c *State) UpdateDraggedEntity(h entity.Handle, last DragSample) bool {
	p, ok := c.dragged[h]
	if !ok || !c.valid(h) {
		return false
	}
	p.Last = last
	return true
}

// GetDraggedEntityPositions fails when h is not being dragged.
func (c *State) GetDraggedEntityPositions(h entity.Handle) (DraggedEntityPositions, bool) {
	p, ok := c.dragged[h]
	if !ok || !c.valid(h) {
		return DraggedEntityPositions{}, false
	}
	return *p, true
}

func (c *State) AddHitEntity(h entity.Handle) bool {
	if !c.valid(h) {
		return false
	}
	if _, ok := c.hit[h]; ok {
		return false
	}
	c.hit[h] = struct{}{}
	return true
}

func (c *State) RemoveHitEntity(h entity.Handle) bool {
	if _, ok := c.hit[h]; !ok {
		return false
	}
	delete(c.hit, h)
	return true
}

func (c *State) IsHitEntity(h entity.Handle) bool {
	if _, ok := c.hit[h]; !ok {
		return false
	}
	return c.valid(h)
}

// ClearHitEntities forgets everything struck during the previous tick.
func (c *State) ClearHitEntities() {
	clear(c.hit)
}

// TouchedEntities returns the live touched handles.
func (c *State) TouchedEntities() []entity.Handle {
	out := make([]entity.Handle, 0, len(c.touched))
	for h := range c.touched {
		if c.valid(h) {
			out = append(out, h)
		}
	}
	return out
}

// DraggedEntities returns the live dragged handles.
func (c *State) DraggedEntities() []entity.Handle {
	out := make([]entity.Handle, 0, len(c.dragged))
	for h := range c.dragged {
		if c.valid(h) {
			out = append(out, h)
		}
	}
	return out
}

// InteractionCounts reports the sizes of the touched, dragged and hit sets.
func (c *State) InteractionCounts() (touched, dragged, hit int) {
	return len(c.touched), len(c.dragged), len(c.hit)
}

// PruneStale drops every handle whose entity is gone and returns how many
// entries were removed.
func (c *State) PruneStale() int {
	removed := 0
	for h := range c.touched {
		if !c.valid(h) {
			delete(c.touched, h)
			removed++
		}
	}
	for h := range c.dragged {
		if !c.valid(h) {
			delete(c.dragged, h)
			removed++
		}
	}
	for h := range c.hit {
		if !c.valid(h) {
			delete(c.hit, h)
			removed++
		}
	}
	return removed
}
