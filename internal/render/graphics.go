// Package render wraps the host's fixed-function graphics state behind a
// small capability interface and provides the record/replay command buffer
// the stereo pipeline draws both eyes with.
package render

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/hlvr/vrcore/internal/vrmath"
)

// TextureID is a host texture name. Zero means no texture.
type TextureID uint32

// BufferID names a recorded command buffer.
type BufferID uint32

// Capability is a server-side state toggled with Enable/Disable.
type Capability int

const (
	CullFace Capability = iota
	DepthTest
	Blend
	AlphaTest
	Texture2D
)

// MatrixMode selects a matrix stack.
type MatrixMode int

const (
	ModelView MatrixMode = iota
	Projection
)

// AttribMask selects attribute groups for PushAttrib.
type AttribMask uint32

const (
	AttribCurrent AttribMask = 1 << iota
	AttribDepth
	AttribEnable
	AttribPolygon
	AttribTexture
	AttribColor

	AttribAll AttribMask = 0xFFFFFFFF
)

// RecordMode controls whether recorded commands also execute immediately.
type RecordMode int

const (
	RecordOnly RecordMode = iota
	RecordAndExecute
)

func (m RecordMode) String() string {
	if m == RecordAndExecute {
		return "record_and_execute"
	}
	return "record_only"
}

// Vertex is one textured vertex.
type Vertex struct {
	Pos mgl32.Vec3
	UV  mgl32.Vec2
}

// Graphics is the host graphics state service. Every call reports the error
// state the host observed after issuing it.
type Graphics interface {
	GenBuffer() (BufferID, error)
	BeginRecord(id BufferID, mode RecordMode) error
	EndRecord() error
	Replay(id BufferID) error
	DeleteBuffer(id BufferID) error

	PushAttrib(mask AttribMask) error
	PopAttrib() error
	PushMatrix(mode MatrixMode) error
	PopMatrix(mode MatrixMode) error
	LoadIdentity(mode MatrixMode) error

	Enable(c Capability) error
	Disable(c Capability) error
	DepthMask(write bool) error
	Clear(r, g, b, a float32) error
	Color(r, g, b, a float32) error
	BindTexture(t TextureID) error
	DrawQuad(v [4]Vertex) error
}

// EyeTargets owns the per-eye framebuffers the scene is drawn into.
type EyeTargets interface {
	Prepare(eye vrmath.Eye) error
	Finish(eye vrmath.Eye) error
	Texture(eye vrmath.Eye) TextureID
	MenuTexture() TextureID
}

// Step is one named graphics call.
type Step struct {
	Name string
	Do   func() error
}

// Run executes steps in order and stops at the first failure. The returned
// error names the failing call.
func Run(steps ...Step) error {
	for _, s := range steps {
		if err := s.Do(); err != nil {
			return fmt.Errorf("%s: %w", s.Name, err)
		}
	}
	return nil
}
