// Package entity provides generation-checked references into the engine's
// entity list. A Handle stays comparable after its slot is reused, so
// interaction sets can hold them without ever dereferencing a recycled slot.
package entity

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// Handle is a weak reference to a world entity. The zero Handle is nil.
type Handle struct {
	Index  uint32
	Serial uint32
}

// IsNil reports whether the handle was never bound to an entity.
func (h Handle) IsNil() bool {
	return h.Serial == 0
}

// Validator reports whether a handle still refers to the entity it was
// created for.
type Validator interface {
	Valid(h Handle) bool
}

// Info is what the table knows about a live entity.
type Info struct {
	Origin    mgl32.Vec3
	ModelName string
}

type slot struct {
	serial uint32
	live   bool
	info   Info
}

// Table tracks the live serial per entity index.
type Table struct {
	m     sync.Mutex
	slots map[uint32]*slot
}

func NewTable() *Table {
	return &Table{
		slots: make(map[uint32]*slot),
	}
}

// Spawn binds a fresh handle to index. Any previous handle for the same
// index becomes invalid.
func (t *Table) Spawn(index uint32, info Info) Handle {
	t.m.Lock()
	defer t.m.Unlock()

	s, ok := t.slots[index]
	if !ok {
		s = &slot{}
		t.slots[index] = s
	}
	s.serial++
	if s.serial == 0 {
		// wrapped; zero is reserved for the nil handle
		s.serial = 1
	}
	s.live = true
	s.info = info
	return Handle{Index: index, Serial: s.serial}
}

// Free releases the entity behind h. It returns false if h was already stale.
func (t *Table) Free(h Handle) bool {
	t.m.Lock()
	defer t.m.Unlock()

	s := t.lookup(h)
	if s == nil {
		return false
	}
	s.live = false
	s.info = Info{}
	return true
}

// Valid implements Validator.
func (t *Table) Valid(h Handle) bool {
	t.m.Lock()
	defer t.m.Unlock()
	return t.lookup(h) != nil
}

// Resolve returns the entity data only if h is still valid.
func (t *Table) Resolve(h Handle) (Info, bool) {
	t.m.Lock()
	defer t.m.Unlock()

	s := t.lookup(h)
	if s == nil {
		return Info{}, false
	}
	return s.info, true
}

// Move updates the origin of a live entity.
func (t *Table) Move(h Handle, origin mgl32.Vec3) bool {
	t.m.Lock()
	defer t.m.Unlock()

	s := t.lookup(h)
	if s == nil {
		return false
	}
	s.info.Origin = origin
	return true
}

// Current returns the live handle at index, if any.
func (t *Table) Current(index uint32) (Handle, bool) {
	t.m.Lock()
	defer t.m.Unlock()

	s, ok := t.slots[index]
	if !ok || !s.live {
		return Handle{}, false
	}
	return Handle{Index: index, Serial: s.serial}, true
}

// Len returns the number of live entities.
func (t *Table) Len() int {
	t.m.Lock()
	defer t.m.Unlock()

	n := 0
	for _, s := range t.slots {
		if s.live {
			n++
		}
	}
	return n
}

// Reset frees every entity. Serials are kept so handles issued before the
// reset never validate again.
func (t *Table) Reset() {
	t.m.Lock()
	defer t.m.Unlock()

	for _, s := range t.slots {
		s.live = false
		s.info = Info{}
	}
}

func (t *Table) lookup(h Handle) *slot {
	if h.IsNil() {
		return nil
	}
	s, ok := t.slots[h.Index]
	if !ok || !s.live || s.serial != h.Serial {
		return nil
	}
	return s
}
