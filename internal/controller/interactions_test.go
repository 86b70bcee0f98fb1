package controller

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hlvr/vrcore/internal/entity"
)

func newWithTable() (*State, *entity.Table) {
	table := entity.NewTable()
	return New(Right, table), table
}

func TestState_TouchedIdempotent(t *testing.T) {
	c, table := newWithTable()
	h := table.Spawn(4, entity.Info{})

	assert.True(t, c.AddTouchedEntity(h))
	assert.False(t, c.AddTouchedEntity(h), "second add reports already present")

	touched, _, _ := c.InteractionCounts()
	assert.Equal(t, 1, touched)
	assert.True(t, c.IsTouchedEntity(h))

	assert.True(t, c.RemoveTouchedEntity(h))
	assert.False(t, c.RemoveTouchedEntity(h))
	assert.False(t, c.IsTouchedEntity(h))
}

func TestState_InvalidHandlesNeverStored(t *testing.T) {
	c, table := newWithTable()
	h := table.Spawn(4, entity.Info{})
	table.Free(h)

	assert.False(t, c.AddTouchedEntity(h))
	assert.False(t, c.AddHitEntity(h))
	assert.False(t, c.AddTouchedEntity(entity.Handle{}))
}

func TestState_DragRoundTrip(t *testing.T) {
	c, table := newWithTable()
	h := table.Spawn(9, entity.Info{})

	start := DragSample{
		ControllerOffset: mgl32.Vec3{1, 2, 3},
		ControllerOrigin: mgl32.Vec3{10, 20, 30},
		PlayerOrigin:     mgl32.Vec3{9, 18, 27},
		EntityOrigin:     mgl32.Vec3{50, 50, 0},
	}

	require.True(t, c.AddTouchedEntity(h))
	require.True(t, c.AddDraggedEntity(h, start))

	got, ok := c.GetDraggedEntityPositions(h)
	require.True(t, ok)
	assert.Equal(t, start, got.Start)
	assert.Equal(t, start, got.Last)

	require.True(t, c.RemoveDraggedEntity(h))
	_, ok = c.GetDraggedEntityPositions(h)
	assert.False(t, ok)
}

func TestState_DragRequiresTouch(t *testing.T) {
	c, table := newWithTable()
	h := table.Spawn(9, entity.Info{})

	assert.False(t, c.AddDraggedEntity(h, DragSample{}))
	assert.False(t, c.IsDraggedEntity(h))
}

func TestState_DragStartImmutable(t *testing.T) {
	c, table := newWithTable()
	h := table.Spawn(9, entity.Info{})
	start := DragSample{ControllerOrigin: mgl32.Vec3{1, 0, 0}, PlayerOrigin: mgl32.Vec3{0, 0, 0}}

	c.AddTouchedEntity(h)
	require.True(t, c.AddDraggedEntity(h, start))
	assert.False(t, c.AddDraggedEntity(h, DragSample{ControllerOrigin: mgl32.Vec3{99, 99, 99}}))

	last := DragSample{ControllerOrigin: mgl32.Vec3{4, 0, 0}, PlayerOrigin: mgl32.Vec3{1, 0, 0}, ControllerOffset: mgl32.Vec3{0, 2, 0}}
	require.True(t, c.UpdateDraggedEntity(h, last))

	got, ok := c.GetDraggedEntityPositions(h)
	require.True(t, ok)
	assert.Equal(t, start, got.Start)
	assert.Equal(t, last, got.Last)
	assert.Equal(t, mgl32.Vec3{3, 0, 0}, got.ControllerDelta())
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, got.PlayerDelta())
	assert.Equal(t, mgl32.Vec3{0, 2, 0}, got.OffsetDelta())
}

func TestState_UpdateDraggedUnknown(t *testing.T) {
	c, table := newWithTable()
	h := table.Spawn(9, entity.Info{})
	assert.False(t, c.UpdateDraggedEntity(h, DragSample{}))
}

func TestState_StaleDraggedEntityDropped(t *testing.T) {
	c, table := newWithTable()
	h := table.Spawn(9, entity.Info{})
	c.AddTouchedEntity(h)
	c.AddDraggedEntity(h, DragSample{})

	table.Free(h)
	// the slot is reused by another entity
	table.Spawn(9, entity.Info{})

	assert.False(t, c.IsDraggedEntity(h))
	_, ok := c.GetDraggedEntityPositions(h)
	assert.False(t, ok)
	assert.Equal(t, 2, c.PruneStale())
	assert.Empty(t, c.DraggedEntities())
	assert.Empty(t, c.TouchedEntities())
}

func TestState_HitEntities(t *testing.T) {
	c, table := newWithTable()
	a := table.Spawn(1, entity.Info{})
	b := table.Spawn(2, entity.Info{})

	assert.True(t, c.AddHitEntity(a))
	assert.False(t, c.AddHitEntity(a))
	assert.True(t, c.AddHitEntity(b))
	assert.True(t, c.IsHitEntity(b))
	assert.True(t, c.RemoveHitEntity(b))
	assert.False(t, c.RemoveHitEntity(b))

	c.ClearHitEntities()
	assert.False(t, c.IsHitEntity(a))
}
