package pipeline

import (
	"context"

	"github.com/hlvr/vrcore/internal/compositor"
	"github.com/hlvr/vrcore/internal/render"
	"github.com/hlvr/vrcore/internal/vrmath"
)

const drawMask = render.AttribCurrent | render.AttribDepth | render.AttribEnable | render.AttribPolygon | render.AttribTexture

// handModels are the view models driven by skeletal finger input.
var handModels = map[string]struct{}{
	"models/v_hand_labcoat.mdl":    {},
	"models/v_hand_hevsuit.mdl":    {},
	"models/SD/v_hand_labcoat.mdl": {},
	"models/SD/v_hand_hevsuit.mdl": {},
}

// IsHandModel reports whether model is one of the skeletal hand models.
func IsHandModel(model string) bool {
	_, ok := handModels[model]
	return ok
}

// DrawNormal runs before opaque geometry. It only brackets the engine's
// draw with a save and restore of attribute state.
func (p *Pipeline) DrawNormal() {
	if err := render.WithAttrib(p.deps.Graphics, drawMask, func() error { return nil }); err != nil {
		p.logger.Warn("attribute bracket failed", "hook", "normal", "error", err)
	}
}

// DrawTransparent runs after opaque geometry. Client-only passes draw the
// composited quad; world passes draw the HD skybox and the HUD.
func (p *Pipeline) DrawTransparent() {
	err := render.WithAttrib(p.deps.Graphics, drawMask, func() error {
		if p.state.onlyClientDraw {
			p.drawComposited()
			return nil
		}
		p.drawWorldOverlays()
		return nil
	})
	if err != nil {
		p.logger.Warn("attribute bracket failed", "hook", "transparent", "error", err)
	}
}

func (p *Pipeline) drawComposited() {
	src, upsideDown := compositor.SourceLeftEye, true
	if p.state.inMenu {
		src, upsideDown = compositor.SourceMenu, false
		p.state.menuJustRendered = true
	} else {
		p.state.menuJustRendered = false
	}
	if err := p.deps.Compositor.DrawCompositedQuad(src, upsideDown); err != nil {
		p.logger.Warn("failed to draw composited quad", "source", src, "error", err)
	}
}

func (p *Pipeline) drawWorldOverlays() {
	failed, err := p.deps.Compositor.DrawSkybox(p.deps.Pose.ViewOrigin(), p.deps.World.FarClip(), p.deps.World.SkyName())
	if err != nil {
		p.logger.Warn("failed to render HD sky", "error", err)
	}
	if failed > 0 {
		p.stats.faceErrs.Add(uint64(failed))
		p.metrics.faceErrs.Add(context.Background(), int64(failed))
	}

	if p.cfg.DebugControllers {
		p.deps.Host.DrawControllerDebug()
	}
	p.deps.Host.RenderHUDSprites(p.state.hudTime, p.state.hudIntermission)
	p.deps.Host.RenderScreenOverlays()
	p.state.menuJustRendered = false
}

// InterceptHUDRedraw replaces the engine's 2D HUD draw. The parameters are
// kept for the HUD drawn in 3D later in the frame, and the controller
// reports for this tick are handed to the sink.
func (p *Pipeline) InterceptHUDRedraw(time float32, intermission int) {
	p.state.hudTime = time
	p.state.hudIntermission = intermission
	p.state.hudRedrawCalled = true

	if p.deps.ControllerSink == nil || !p.deps.Pose.HasValidHead() {
		return
	}
	p.state.hudTick++
	var dragging func(vrmath.Role) bool
	if p.deps.Input != nil {
		dragging = p.deps.Input.IsDragOn
	}
	p.deps.ControllerSink(p.deps.Pose.ControllerReports(p.state.hudTick, p.deps.Host.CurrentWeaponID(), dragging))
}

// HandSkeletalData returns the finger curl for a hand model. isLeft names
// the logical hand the model shows; with cross-handed play the logical hand
// is driven by the opposite physical controller. Dragging suppresses
// skeletal data for that controller.
func (p *Pipeline) HandSkeletalData(model string, isLeft bool) ([5]float32, bool) {
	if !IsHandModel(model) || p.deps.Input == nil {
		return [5]float32{}, false
	}

	role := vrmath.RoleRight
	if isLeft {
		role = vrmath.RoleLeft
	}
	if p.cfg.LeftHanded {
		role = role.Other()
	}

	if p.deps.Input.IsDragOn(role) {
		return [5]float32{}, false
	}
	return p.deps.Input.FingerCurl(role)
}
