// Package compositor draws the final full-screen quad into the host window
// and the HD skybox cube around the viewer.
package compositor

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/hlvr/vrcore/internal/assets"
	"github.com/hlvr/vrcore/internal/render"
	"github.com/hlvr/vrcore/internal/vrmath"
)

// MenuBackground is the texture shown behind the menu.
const MenuBackground = "background.png"

// Skybox geometry, in engine units.
const (
	MinSkyboxSize float32 = 2048
	SkyboxInset   float32 = 8
)

// Source selects what the composited quad shows.
type Source int

const (
	SourceMenu Source = iota
	SourceLeftEye
	SourceRightEye
)

func (s Source) String() string {
	switch s {
	case SourceMenu:
		return "menu"
	case SourceLeftEye:
		return "left_eye"
	case SourceRightEye:
		return "right_eye"
	default:
		return "unknown"
	}
}

// ErrNoTexture is returned when the quad source resolves to no texture.
var ErrNoTexture = errors.New("source texture unavailable")

// Dependencies are the collaborators of a Compositor.
type Dependencies struct {
	Graphics  render.Graphics
	Targets   render.EyeTargets
	Textures  assets.TextureLookup
	Skybox    *assets.SkyboxResolver
	HDEnabled func() bool
	Logger    *slog.Logger
}

// Compositor draws through the shared graphics state and restores it after
// every draw.
type Compositor struct {
	deps   Dependencies
	logger *slog.Logger
}

func New(deps Dependencies) *Compositor {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.HDEnabled == nil {
		deps.HDEnabled = func() bool { return false }
	}
	return &Compositor{
		deps:   deps,
		logger: logger.With("component", "compositor"),
	}
}

func (c *Compositor) texture(src Source) render.TextureID {
	switch src {
	case SourceMenu:
		if c.deps.Textures == nil {
			return 0
		}
		return c.deps.Textures.Texture(MenuBackground)
	case SourceLeftEye:
		return c.deps.Targets.Texture(vrmath.EyeLeft)
	case SourceRightEye:
		return c.deps.Targets.Texture(vrmath.EyeRight)
	default:
		return 0
	}
}

// QuadVertices returns the full-screen quad. Eye buffers are stored bottom
// up, so upsideDown flips V.
func QuadVertices(upsideDown bool) [4]render.Vertex {
	var bottom, top float32 = 1, 0
	if upsideDown {
		bottom, top = 0, 1
	}
	return [4]render.Vertex{
		{Pos: mgl32.Vec3{-1, -1, -1}, UV: mgl32.Vec2{0, bottom}},
		{Pos: mgl32.Vec3{1, -1, -1}, UV: mgl32.Vec2{1, bottom}},
		{Pos: mgl32.Vec3{1, 1, -1}, UV: mgl32.Vec2{1, top}},
		{Pos: mgl32.Vec3{-1, 1, -1}, UV: mgl32.Vec2{0, top}},
	}
}

// DrawCompositedQuad clears the window and draws src over all of it.
// A missing menu texture still clears to black.
func (c *Compositor) DrawCompositedQuad(src Source, upsideDown bool) error {
	g := c.deps.Graphics
	tex := c.texture(src)

	return render.WithAttrib(g, render.AttribAll, func() error {
		if err := render.Run(
			render.Step{Name: "clear", Do: func() error { return g.Clear(0, 0, 0, 1) }},
			render.Step{Name: "disable cull", Do: func() error { return g.Disable(render.CullFace) }},
			render.Step{Name: "disable depth", Do: func() error { return g.Disable(render.DepthTest) }},
		); err != nil {
			return fmt.Errorf("composite %s: %w", src, err)
		}
		if tex == 0 {
			return fmt.Errorf("composite %s: %w", src, ErrNoTexture)
		}
		return render.WithMatrices(g, func() error {
			err := render.Run(
				render.Step{Name: "enable texture", Do: func() error { return g.Enable(render.Texture2D) }},
				render.Step{Name: "bind source", Do: func() error { return g.BindTexture(tex) }},
				render.Step{Name: "color", Do: func() error { return g.Color(1, 1, 1, 1) }},
				render.Step{Name: "draw quad", Do: func() error { return g.DrawQuad(QuadVertices(upsideDown)) }},
				render.Step{Name: "unbind", Do: func() error { return g.BindTexture(0) }},
			)
			if err != nil {
				return fmt.Errorf("composite %s: %w", src, err)
			}
			return nil
		})
	})
}

// SkyboxSize returns the half extent of the cube and the inset distance of
// its faces for a given far clip.
func SkyboxSize(farClip float32) (size, nsize float32) {
	size = max(MinSkyboxSize, farClip*0.5)
	return size, size - SkyboxInset
}

// SkyboxFaces returns the corners of each face around the origin, in
// engine face order.
func SkyboxFaces(origin mgl32.Vec3, farClip float32) [assets.FaceCount][4]mgl32.Vec3 {
	size, nsize := SkyboxSize(farClip)
	faces := [assets.FaceCount][4]mgl32.Vec3{
		assets.FaceRight: {
			{nsize, size, -size}, {nsize, -size, -size}, {nsize, -size, size}, {nsize, size, size},
		},
		assets.FaceBack: {
			{-size, nsize, -size}, {size, nsize, -size}, {size, nsize, size}, {-size, nsize, size},
		},
		assets.FaceLeft: {
			{-nsize, -size, -size}, {-nsize, size, -size}, {-nsize, size, size}, {-nsize, -size, size},
		},
		assets.FaceFront: {
			{size, -nsize, -size}, {-size, -nsize, -size}, {-size, -nsize, size}, {size, -nsize, size},
		},
		assets.FaceUp: {
			{nsize, size, nsize}, {nsize, -size, nsize}, {-nsize, -size, nsize}, {-nsize, size, nsize},
		},
		assets.FaceDown: {
			{-nsize, size, -nsize}, {-nsize, -size, -nsize}, {nsize, -size, -nsize}, {nsize, size, -nsize},
		},
	}
	for i := range faces {
		for j := range faces[i] {
			faces[i][j] = origin.Add(faces[i][j])
		}
	}
	return faces
}

var faceUVs = [4]mgl32.Vec2{{0, 1}, {1, 1}, {1, 0}, {0, 0}}

// DrawSkybox draws the HD skybox cube centred on origin. It does nothing
// unless HD textures are enabled. A face that fails to draw is logged and
// skipped; it returns the number of failed faces.
func (c *Compositor) DrawSkybox(origin mgl32.Vec3, farClip float32, skyName string) (int, error) {
	if !c.deps.HDEnabled() || c.deps.Skybox == nil {
		return 0, nil
	}
	g := c.deps.Graphics
	name := c.deps.Skybox.Current(skyName)
	faces := SkyboxFaces(origin, farClip)

	failed := 0
	err := render.WithAttrib(g, render.AttribAll, func() error {
		if err := render.Run(
			render.Step{Name: "disable blend", Do: func() error { return g.Disable(render.Blend) }},
			render.Step{Name: "disable alpha test", Do: func() error { return g.Disable(render.AlphaTest) }},
			render.Step{Name: "disable depth", Do: func() error { return g.Disable(render.DepthTest) }},
			render.Step{Name: "disable cull", Do: func() error { return g.Disable(render.CullFace) }},
			render.Step{Name: "depth mask", Do: func() error { return g.DepthMask(false) }},
			render.Step{Name: "color", Do: func() error { return g.Color(1, 1, 1, 1) }},
			render.Step{Name: "enable texture", Do: func() error { return g.Enable(render.Texture2D) }},
		); err != nil {
			failed = assets.FaceCount
			return fmt.Errorf("skybox setup: %w", err)
		}

		for i := range faces {
			face := assets.Face(i)
			tex := c.deps.Skybox.HDFace(name, face)
			var quad [4]render.Vertex
			for j := range quad {
				quad[j] = render.Vertex{Pos: faces[i][j], UV: faceUVs[j]}
			}
			err := render.Run(
				render.Step{Name: "bind face", Do: func() error { return g.BindTexture(tex) }},
				render.Step{Name: "draw face", Do: func() error { return g.DrawQuad(quad) }},
			)
			if err != nil {
				failed++
				c.logger.Warn("failed to render HD sky face", "skybox", name, "face", assets.EngineSuffixes[face], "error", err)
			}
		}
		return nil
	})
	return failed, err
}
