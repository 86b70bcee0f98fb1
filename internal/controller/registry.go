package controller

import (
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/hlvr/vrcore/internal/entity"
)

// Report is one controller update as produced by the client pose layer and
// carried over the network.
type Report struct {
	Timestamp  int
	ID         ID
	IsValid    bool
	IsMirrored bool
	IsDragging bool
	WeaponID   int
	Offset     mgl32.Vec3
	Angles     mgl32.Vec3
	Velocity   mgl32.Vec3
}

// Snapshot is a read-only copy of a controller's kinematic state.
type Snapshot struct {
	PlayerIndex int
	ID          ID
	Position    mgl32.Vec3
	Angles      mgl32.Vec3
	Velocity    mgl32.Vec3
	IsValid     bool
	IsDragging  bool
	IsMirrored  bool
	IsBlocked   bool
	WeaponID    int
	LastUpdate  int
	Radius      float32
	HitBoxes    []HitBox
	Touched     int
	Dragged     int
	Hit         int
}

type key struct {
	player int
	id     ID
}

// Registry owns the controllers of every player. Updates arrive from the
// command dispatcher while the monitor reads snapshots, so access is locked.
type Registry struct {
	mu          sync.RWMutex
	validator   entity.Validator
	controllers map[key]*State
	rejected    uint64
}

func NewRegistry(validator entity.Validator) *Registry {
	return &Registry{
		validator:   validator,
		controllers: make(map[key]*State),
	}
}

// SetValidator installs the entity check once the world exists. Existing
// controllers drop the handles it rejects right away.
func (r *Registry) SetValidator(v entity.Validator) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.validator = v
	for _, c := range r.controllers {
		c.SetValidator(v)
		c.PruneStale()
	}
}

// RefreshHitBoxes re-evaluates the hitboxes of one controller from the
// world. A controller whose model cannot be found loses its cached boxes.
// It returns whether the cache was rebuilt.
func (r *Registry) RefreshHitBoxes(playerIndex int, id ID, models ModelLookup) bool {
	if models == nil {
		return false
	}
	src, ok := models.ControllerModel(playerIndex, id)
	if !ok {
		src = nil
	}
	now := models.Time()

	rebuilt := false
	r.With(playerIndex, id, func(c *State) {
		rebuilt = c.RefreshHitBoxes(src, now)
	})
	return rebuilt
}

// Apply routes a report to the matching controller. A controller is created
// on its first valid report; invalid reports for unknown controllers are
// ignored. It returns whether the report was applied.
func (r *Registry) Apply(player Player, rep Report) bool {
	if rep.ID == Invalid {
		r.mu.Lock()
		r.rejected++
		r.mu.Unlock()
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{player: player.Index(), id: rep.ID}
	c, ok := r.controllers[k]
	if !ok {
		if !rep.IsValid {
			return false
		}
		c = New(rep.ID, r.validator)
		r.controllers[k] = c
	}

	applied := c.Update(player, rep.Timestamp, rep.IsValid, rep.IsMirrored,
		rep.Offset, rep.Angles, rep.Velocity, rep.IsDragging, rep.ID, rep.WeaponID)
	if !applied {
		r.rejected++
	}
	return applied
}

// With runs fn on the controller while holding the registry lock. It returns
// false when the controller does not exist.
func (r *Registry) With(playerIndex int, id ID, fn func(c *State)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.controllers[key{player: playerIndex, id: id}]
	if !ok {
		return false
	}
	fn(c)
	return true
}

// ResetPlayer drops a player's controllers at disconnect or respawn.
func (r *Registry) ResetPlayer(playerIndex int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for k := range r.controllers {
		if k.player == playerIndex {
			delete(r.controllers, k)
			n++
		}
	}
	return n
}

// ResetController drops one controller of a player.
func (r *Registry) ResetController(playerIndex int, id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{player: playerIndex, id: id}
	if _, ok := r.controllers[k]; !ok {
		return false
	}
	delete(r.controllers, k)
	return true
}

// Reset drops every controller.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.controllers = make(map[key]*State)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.controllers)
}

// Rejected counts reports dropped as out of order or invalid.
func (r *Registry) Rejected() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rejected
}

// Snapshots copies every controller, ordered by player then hand.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Snapshot, 0, len(r.controllers))
	for k, c := range r.controllers {
		touched, dragged, hit := c.InteractionCounts()
		out = append(out, Snapshot{
			PlayerIndex: k.player,
			ID:          c.ID(),
			Position:    c.Position(),
			Angles:      c.Angles(),
			Velocity:    c.Velocity(),
			IsValid:     c.IsValid(),
			IsDragging:  c.IsDragging(),
			IsMirrored:  c.IsMirrored(),
			IsBlocked:   c.IsBlocked(),
			WeaponID:    c.WeaponID(),
			LastUpdate:  c.LastUpdate(),
			Radius:      c.Radius(),
			HitBoxes:    append([]HitBox(nil), c.HitBoxes()...),
			Touched:     touched,
			Dragged:     dragged,
			Hit:         hit,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PlayerIndex != out[j].PlayerIndex {
			return out[i].PlayerIndex < out[j].PlayerIndex
		}
		return out[i].ID < out[j].ID
	})
	return out
}
