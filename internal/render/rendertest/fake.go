// Package rendertest provides an in-memory Graphics implementation that
// records every call, for tests of code drawing through package render.
package rendertest

import (
	"fmt"
	"sync"

	"github.com/hlvr/vrcore/internal/render"
	"github.com/hlvr/vrcore/internal/vrmath"
)

// Graphics records calls and tracks stack depths so tests can check that
// state is always restored.
type Graphics struct {
	mu sync.Mutex

	Calls []string
	Quads [][4]render.Vertex
	Bound []render.TextureID

	AttribDepth int
	MatrixDepth map[render.MatrixMode]int
	Recording   bool
	Live        map[render.BufferID]bool
	Replayed    []render.BufferID

	// Fail makes the named call return an error. FailAfter skips that many
	// matching calls before failing.
	Fail      map[string]error
	FailAfter map[string]int

	nextBuffer render.BufferID
	MaxLive    int
}

func New() *Graphics {
	return &Graphics{
		MatrixDepth: make(map[render.MatrixMode]int),
		Live:        make(map[render.BufferID]bool),
		Fail:        make(map[string]error),
		FailAfter:   make(map[string]int),
	}
}

func (g *Graphics) call(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls = append(g.Calls, name)
	err, ok := g.Fail[name]
	if !ok {
		return nil
	}
	if n := g.FailAfter[name]; n > 0 {
		g.FailAfter[name] = n - 1
		return nil
	}
	return err
}

// Count returns how many times name was called.
func (g *Graphics) Count(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.Calls {
		if c == name {
			n++
		}
	}
	return n
}

// ResetLog drops the recorded calls, keeping stack and buffer state, so
// long runs do not grow without bound.
func (g *Graphics) ResetLog() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls = g.Calls[:0]
	g.Quads = g.Quads[:0]
	g.Bound = g.Bound[:0]
	g.Replayed = g.Replayed[:0]
}

// Balanced reports whether every push has been popped.
func (g *Graphics) Balanced() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.AttribDepth != 0 {
		return false
	}
	for _, d := range g.MatrixDepth {
		if d != 0 {
			return false
		}
	}
	return true
}

// LiveBuffers is the number of allocated command buffers.
func (g *Graphics) LiveBuffers() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Live)
}

func (g *Graphics) GenBuffer() (render.BufferID, error) {
	if err := g.call("GenBuffer"); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextBuffer++
	g.Live[g.nextBuffer] = true
	if len(g.Live) > g.MaxLive {
		g.MaxLive = len(g.Live)
	}
	return g.nextBuffer, nil
}

func (g *Graphics) BeginRecord(id render.BufferID, mode render.RecordMode) error {
	if err := g.call("BeginRecord"); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Recording {
		return fmt.Errorf("nested record")
	}
	if !g.Live[id] {
		return fmt.Errorf("record into unknown buffer %d", id)
	}
	g.Recording = true
	return nil
}

func (g *Graphics) EndRecord() error {
	g.mu.Lock()
	g.Recording = false
	g.mu.Unlock()
	return g.call("EndRecord")
}

func (g *Graphics) Replay(id render.BufferID) error {
	if err := g.call("Replay"); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.Live[id] {
		return fmt.Errorf("replay of unknown buffer %d", id)
	}
	g.Replayed = append(g.Replayed, id)
	return nil
}

func (g *Graphics) DeleteBuffer(id render.BufferID) error {
	g.mu.Lock()
	delete(g.Live, id)
	g.mu.Unlock()
	return g.call("DeleteBuffer")
}

func (g *Graphics) PushAttrib(render.AttribMask) error {
	if err := g.call("PushAttrib"); err != nil {
		return err
	}
	g.mu.Lock()
	g.AttribDepth++
	g.mu.Unlock()
	return nil
}

func (g *Graphics) PopAttrib() error {
	g.mu.Lock()
	g.AttribDepth--
	g.mu.Unlock()
	return g.call("PopAttrib")
}

func (g *Graphics) PushMatrix(mode render.MatrixMode) error {
	if err := g.call("PushMatrix"); err != nil {
		return err
	}
	g.mu.Lock()
	g.MatrixDepth[mode]++
	g.mu.Unlock()
	return nil
}

func (g *Graphics) PopMatrix(mode render.MatrixMode) error {
	g.mu.Lock()
	g.MatrixDepth[mode]--
	g.mu.Unlock()
	return g.call("PopMatrix")
}

func (g *Graphics) LoadIdentity(render.MatrixMode) error { return g.call("LoadIdentity") }
func (g *Graphics) Enable(render.Capability) error       { return g.call("Enable") }
func (g *Graphics) Disable(render.Capability) error      { return g.call("Disable") }
func (g *Graphics) DepthMask(bool) error                 { return g.call("DepthMask") }
func (g *Graphics) Clear(_, _, _, _ float32) error       { return g.call("Clear") }
func (g *Graphics) Color(_, _, _, _ float32) error       { return g.call("Color") }

func (g *Graphics) BindTexture(t render.TextureID) error {
	if err := g.call("BindTexture"); err != nil {
		return err
	}
	g.mu.Lock()
	g.Bound = append(g.Bound, t)
	g.mu.Unlock()
	return nil
}

func (g *Graphics) DrawQuad(v [4]render.Vertex) error {
	if err := g.call("DrawQuad"); err != nil {
		return err
	}
	g.mu.Lock()
	g.Quads = append(g.Quads, v)
	g.mu.Unlock()
	return nil
}

// Targets is an in-memory EyeTargets that enforces non-interleaved brackets.
type Targets struct {
	Events   []string
	open     *vrmath.Eye
	Textures [2]render.TextureID
	Menu     render.TextureID
	Fail     map[string]error
}

func NewTargets() *Targets {
	return &Targets{
		Textures: [2]render.TextureID{101, 102},
		Menu:     100,
		Fail:     make(map[string]error),
	}
}

func (t *Targets) Prepare(eye vrmath.Eye) error {
	t.Events = append(t.Events, "prepare:"+eye.String())
	if err := t.Fail["prepare:"+eye.String()]; err != nil {
		return err
	}
	if t.open != nil {
		return fmt.Errorf("prepare %s while %s open", eye, *t.open)
	}
	e := eye
	t.open = &e
	return nil
}

func (t *Targets) Finish(eye vrmath.Eye) error {
	t.Events = append(t.Events, "finish:"+eye.String())
	if t.open == nil || *t.open != eye {
		return fmt.Errorf("finish %s without prepare", eye)
	}
	t.open = nil
	return t.Fail["finish:"+eye.String()]
}

// ResetLog drops the recorded events.
func (t *Targets) ResetLog() { t.Events = t.Events[:0] }

// Open reports whether an eye bracket is currently open.
func (t *Targets) Open() bool { return t.open != nil }

func (t *Targets) Texture(eye vrmath.Eye) render.TextureID { return t.Textures[eye] }
func (t *Targets) MenuTexture() render.TextureID           { return t.Menu }
