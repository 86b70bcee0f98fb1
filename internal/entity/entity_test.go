package entity

import (
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_SpawnAndResolve(t *testing.T) {
	table := NewTable()

	h := table.Spawn(7, Info{Origin: mgl32.Vec3{1, 2, 3}, ModelName: "models/crate.mdl"})
	require.False(t, h.IsNil())
	assert.Equal(t, uint32(7), h.Index)

	info, ok := table.Resolve(h)
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, info.Origin)
	assert.Equal(t, "models/crate.mdl", info.ModelName)
	assert.Equal(t, 1, table.Len())
}

func TestTable_FreeInvalidatesHandle(t *testing.T) {
	table := NewTable()
	h := table.Spawn(3, Info{})

	assert.True(t, table.Free(h))
	assert.False(t, table.Valid(h))
	assert.False(t, table.Free(h), "second free reports stale handle")

	_, ok := table.Resolve(h)
	assert.False(t, ok)
}

func TestTable_ReusedSlotRejectsOldHandle(t *testing.T) {
	table := NewTable()
	old := table.Spawn(5, Info{ModelName: "a"})
	table.Free(old)
	fresh := table.Spawn(5, Info{ModelName: "b"})

	assert.NotEqual(t, old, fresh)
	assert.False(t, table.Valid(old))
	assert.True(t, table.Valid(fresh))

	cur, ok := table.Current(5)
	require.True(t, ok)
	assert.Equal(t, fresh, cur)
}

func TestTable_RespawnWithoutFree(t *testing.T) {
	table := NewTable()
	old := table.Spawn(1, Info{})
	fresh := table.Spawn(1, Info{})

	assert.False(t, table.Valid(old))
	assert.True(t, table.Valid(fresh))
}

func TestTable_NilHandle(t *testing.T) {
	table := NewTable()
	table.Spawn(0, Info{})

	assert.True(t, Handle{}.IsNil())
	assert.False(t, table.Valid(Handle{}))
}

func TestTable_Move(t *testing.T) {
	table := NewTable()
	h := table.Spawn(2, Info{})

	require.True(t, table.Move(h, mgl32.Vec3{4, 5, 6}))
	info, _ := table.Resolve(h)
	assert.Equal(t, mgl32.Vec3{4, 5, 6}, info.Origin)

	table.Free(h)
	assert.False(t, table.Move(h, mgl32.Vec3{}))
}

func TestTable_Reset(t *testing.T) {
	table := NewTable()
	a := table.Spawn(1, Info{})
	b := table.Spawn(2, Info{})

	table.Reset()

	assert.False(t, table.Valid(a))
	assert.False(t, table.Valid(b))
	assert.Equal(t, 0, table.Len())

	c := table.Spawn(1, Info{})
	assert.NotEqual(t, a.Serial, c.Serial)
}

func TestTable_ConcurrentAccess(t *testing.T) {
	table := NewTable()
	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(1)
		go func(idx uint32) {
			defer wg.Done()
			h := table.Spawn(idx, Info{})
			table.Valid(h)
			table.Free(h)
		}(uint32(i))
	}
	wg.Wait()

	assert.Equal(t, 0, table.Len())
}
