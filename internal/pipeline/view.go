package pipeline

import (
	"context"

	"github.com/hlvr/vrcore/internal/render"
	"github.com/hlvr/vrcore/internal/vrmath"
)

// CalcRefdef is the view-computation hook. It is called with NextView 0 at
// the start of a frame and, when it asked for a second pass, again with
// NextView 1 after the engine has drawn the scene.
func (p *Pipeline) CalcRefdef(params *RefParams) ViewResult {
	p.state.calcRefdefCalled = true

	if p.state.inMenu || !p.isInGame() {
		p.discardCapture("menu or out of game")
		p.closeOpenEye()
		p.setPhase(PhaseIdle)
		params.NextView = 0
		params.OnlyClientDraw = true
		p.state.onlyClientDraw = true
		return ViewClientOnly
	}

	if params.NextView == 0 {
		return p.beginFrame(params)
	}
	return p.completeFrame(params)
}

func (p *Pipeline) beginFrame(params *RefParams) ViewResult {
	// an aborted frame may have left its capture behind
	p.discardCapture("stale capture at frame start")
	p.closeOpenEye()
	p.setPhase(PhaseIdle)

	p.deps.Pose.PollEvents(true, p.state.inMenu)
	if !p.deps.Pose.UpdatePositions() {
		p.fallback(params)
		return ViewDefault
	}

	p.checkOverrides()

	strategy := render.StrategyFor(p.cfg.MultipassMode)
	if err := p.prepareEye(vrmath.EyeLeft); err != nil {
		p.logger.Error("failed to prepare left eye", "error", err)
		p.closeOpenEye()
		p.fallback(params)
		return ViewDefault
	}
	if err := p.capture.Open(strategy.RecordMode()); err != nil {
		p.logger.Error("failed to open capture", "mode", strategy.RecordMode(), "error", err)
		p.discardCapture("open failed")
		p.closeOpenEye()
		p.fallback(params)
		return ViewDefault
	}

	p.state.strategy = strategy
	p.setPhase(PhaseCapturingLeft)
	params.NextView = 1
	params.OnlyClientDraw = false
	p.state.onlyClientDraw = false

	p.applyView(params)
	return ViewStereo
}

func (p *Pipeline) completeFrame(params *RefParams) ViewResult {
	params.NextView = 0

	if p.state.phase != PhaseCapturingLeft || !p.capture.Recording() {
		p.stats.stale.Add(1)
		p.logger.Warn("second view pass without an open capture", "phase", p.state.phase)
		p.discardCapture("stale second pass")
		p.closeOpenEye()
		p.setPhase(PhaseIdle)
		return ViewDefault
	}

	p.setPhase(PhaseReplaying)
	defer p.setPhase(PhaseIdle)

	if err := p.capture.Close(); err != nil {
		p.logger.Error("failed to close capture", "error", err)
		p.stats.replayErr.Add(1)
	}
	if err := p.finishEye(vrmath.EyeLeft); err != nil {
		p.logger.Error("failed to finish left eye", "error", err)
		p.stats.replayErr.Add(1)
	}

	for _, eye := range p.state.strategy.ReplayEyes() {
		p.replayEye(eye)
	}
	p.discardCaptureAfterReplay()

	left := p.deps.Targets.Texture(vrmath.EyeLeft)
	right := p.deps.Targets.Texture(vrmath.EyeRight)
	if err := p.deps.Pose.Submit(uint32(left), uint32(right)); err != nil {
		p.logger.Warn("failed to submit eye textures", "error", err)
	}

	p.stats.stereo.Add(1)
	p.metrics.stereo.Add(context.Background(), 1)

	params.OnlyClientDraw = true
	p.state.onlyClientDraw = true
	p.applyView(params)
	return ViewStereo
}

// replayEye draws the captured scene into one eye. A failure is contained
// to this eye.
func (p *Pipeline) replayEye(eye vrmath.Eye) {
	if err := p.prepareEye(eye); err != nil {
		p.logger.Error("failed to prepare eye for replay", "eye", eye, "error", err)
		p.stats.replayErr.Add(1)
		return
	}
	if err := p.capture.Replay(); err != nil {
		p.logger.Error("failed to replay capture", "eye", eye, "error", err)
		p.stats.replayErr.Add(1)
	}
	if err := p.finishEye(eye); err != nil {
		p.logger.Error("failed to finish eye", "eye", eye, "error", err)
		p.stats.replayErr.Add(1)
	}
}

// discardCaptureAfterReplay deletes the consumed buffer without counting it
// as a discarded capture.
func (p *Pipeline) discardCaptureAfterReplay() {
	if _, err := p.capture.Discard(); err != nil {
		p.logger.Warn("failed to delete capture", "error", err)
	}
}

func (p *Pipeline) fallback(params *RefParams) {
	params.NextView = 0
	p.stats.fallback.Add(1)
	p.metrics.fallback.Add(context.Background(), 1)
}

// applyView writes the head-tracked origin and left-eye angles. A view
// entity that is not a player keeps the angles but moves the origin.
func (p *Pipeline) applyView(params *RefParams) {
	params.ViewOrigin = p.deps.Pose.ViewOrigin()
	params.ViewAngles = p.deps.Pose.ViewAngles(vrmath.EyeLeft)
	p.deps.Host.SetViewAngles(params.ViewAngles)

	if params.ViewEntity > params.MaxClients {
		if origin, ok := p.deps.World.EntityOrigin(params.ViewEntity); ok {
			params.ViewOrigin = origin
		}
	}
}

func (p *Pipeline) checkOverrides() {
	if p.deps.Overrides == nil || p.deps.World == nil {
		return
	}
	d := p.deps.Overrides.Check(p.deps.World.MapModel(), p.cfg.HDTexturesEnabled)
	if d.Applied() {
		p.logger.Debug("texture overrides applied",
			"mapChanged", d.MapChanged, "toggleChanged", d.ToggleChanged, "stale", d.Stale,
			"replaced", d.Replaced, "restored", d.Restored)
	}
}
