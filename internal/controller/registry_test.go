package controller

import (
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hlvr/vrcore/internal/entity"
)

type fakeModels struct {
	skeletons map[key]*fakeSkeleton
	now       float32
}

func (m *fakeModels) ControllerModel(playerIndex int, id ID) (HitBoxSource, bool) {
	sk, ok := m.skeletons[key{player: playerIndex, id: id}]
	if !ok {
		return nil, false
	}
	return sk, true
}

func (m *fakeModels) Time() float32 { return m.now }

func TestRegistry_CreatesOnFirstValidReport(t *testing.T) {
	r := NewRegistry(nil)
	p := alivePlayer()

	assert.False(t, r.Apply(p, Report{Timestamp: 1, ID: Left, IsValid: false}))
	assert.Equal(t, 0, r.Len())

	assert.True(t, r.Apply(p, Report{Timestamp: 2, ID: Left, IsValid: true, Offset: mgl32.Vec3{1, 0, 0}}))
	assert.Equal(t, 1, r.Len())

	// the controller persists once created, invalid reports still apply
	assert.True(t, r.Apply(p, Report{Timestamp: 3, ID: Left, IsValid: false}))
	ok := r.With(p.Index(), Left, func(c *State) {
		assert.True(t, c.IsBlocked())
	})
	assert.True(t, ok)
}

func TestRegistry_RejectsInvalidAndStale(t *testing.T) {
	r := NewRegistry(nil)
	p := alivePlayer()

	assert.False(t, r.Apply(p, Report{Timestamp: 1, ID: Invalid, IsValid: true}))
	require.True(t, r.Apply(p, Report{Timestamp: 5, ID: Right, IsValid: true}))
	assert.False(t, r.Apply(p, Report{Timestamp: 4, ID: Right, IsValid: true}))

	assert.Equal(t, uint64(2), r.Rejected())
}

func TestRegistry_ResetPlayer(t *testing.T) {
	r := NewRegistry(nil)
	a := fakePlayer{index: 1, alive: true}
	b := fakePlayer{index: 2, alive: true}

	r.Apply(a, Report{Timestamp: 1, ID: Left, IsValid: true})
	r.Apply(a, Report{Timestamp: 1, ID: Right, IsValid: true})
	r.Apply(b, Report{Timestamp: 1, ID: Right, IsValid: true})

	assert.Equal(t, 2, r.ResetPlayer(1))
	assert.Equal(t, 1, r.Len())
	assert.False(t, r.With(1, Left, func(*State) {}))

	r.Reset()
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_ResetController(t *testing.T) {
	r := NewRegistry(nil)
	p := fakePlayer{index: 1, alive: true}

	r.Apply(p, Report{Timestamp: 1, ID: Left, IsValid: true})
	r.Apply(p, Report{Timestamp: 1, ID: Right, IsValid: true})

	assert.True(t, r.ResetController(1, Left))
	assert.False(t, r.ResetController(1, Left))
	assert.True(t, r.With(1, Right, func(*State) {}))

	// a new first report recreates it, so stale timestamps start over
	assert.True(t, r.Apply(p, Report{Timestamp: 1, ID: Left, IsValid: true}))
}

func TestRegistry_Snapshots(t *testing.T) {
	r := NewRegistry(nil)
	p := fakePlayer{index: 3, origin: mgl32.Vec3{0, 0, 10}, alive: true}

	r.Apply(p, Report{Timestamp: 1, ID: Right, IsValid: true, Offset: mgl32.Vec3{1, 2, 3}, WeaponID: 5})
	r.Apply(p, Report{Timestamp: 1, ID: Left, IsValid: true, IsDragging: true})

	snaps := r.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, Left, snaps[0].ID)
	assert.True(t, snaps[0].IsDragging)
	assert.Equal(t, Right, snaps[1].ID)
	assert.Equal(t, mgl32.Vec3{1, 2, 13}, snaps[1].Position)
	assert.Equal(t, 5, snaps[1].WeaponID)
	assert.Equal(t, 3, snaps[1].PlayerIndex)
}

func TestRegistry_ConcurrentApplyAndSnapshot(t *testing.T) {
	r := NewRegistry(nil)
	var wg sync.WaitGroup

	for i := range 20 {
		wg.Add(2)
		go func(ts int) {
			defer wg.Done()
			r.Apply(fakePlayer{index: ts % 4, alive: true}, Report{Timestamp: ts, ID: Right, IsValid: true})
		}(i)
		go func() {
			defer wg.Done()
			r.Snapshots()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, r.Len(), 4)
}

func TestRegistry_SetValidatorPrunesExisting(t *testing.T) {
	r := NewRegistry(nil)
	p := alivePlayer()
	require.True(t, r.Apply(p, Report{Timestamp: 1, ID: Right, IsValid: true}))

	table := entity.NewTable()
	h := table.Spawn(7, entity.Info{})
	r.With(p.Index(), Right, func(c *State) {
		require.True(t, c.AddTouchedEntity(h))
	})
	table.Free(h)

	r.SetValidator(table)

	snaps := r.Snapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, 0, snaps[0].Touched)

	// controllers created later share the installed check
	require.True(t, r.Apply(p, Report{Timestamp: 1, ID: Left, IsValid: true}))
	r.With(p.Index(), Left, func(c *State) {
		assert.False(t, c.AddTouchedEntity(h))
	})
}

func TestRegistry_RefreshHitBoxes(t *testing.T) {
	r := NewRegistry(nil)
	p := alivePlayer()
	require.True(t, r.Apply(p, Report{Timestamp: 1, ID: Right, IsValid: true}))

	models := &fakeModels{
		skeletons: map[key]*fakeSkeleton{
			{player: p.Index(), id: Right}: {model: "models/v_hand.mdl", boxes: oneBox(), animTime: 1},
		},
		now: 1,
	}

	assert.False(t, r.RefreshHitBoxes(p.Index(), Left, models), "unknown controller")
	assert.False(t, r.RefreshHitBoxes(p.Index(), Right, nil))
	require.True(t, r.RefreshHitBoxes(p.Index(), Right, models))

	snaps := r.Snapshots()
	require.Len(t, snaps, 1)
	assert.Len(t, snaps[0].HitBoxes, 1)
	assert.Greater(t, snaps[0].Radius, float32(0))

	// the model went away, the cache goes with it
	delete(models.skeletons, key{player: p.Index(), id: Right})
	assert.False(t, r.RefreshHitBoxes(p.Index(), Right, models))
	assert.Empty(t, r.Snapshots()[0].HitBoxes)
}
