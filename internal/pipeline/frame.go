package pipeline

// Frame runs once per client frame, before the view hook. It derives the
// in-game and in-menu state from which hooks ran since the previous frame.
func (p *Pipeline) Frame(time float64) {
	if p.deps.Settings != nil {
		if cfg, changed := p.deps.Settings.CheckForChanges(); changed {
			p.logger.Info("render settings changed",
				"hdTextures", cfg.HDTexturesEnabled, "multipassMode", cfg.MultipassMode,
				"worldScale", cfg.WorldScale, "leftHanded", cfg.LeftHanded)
			p.applyConfig(cfg)
		}
	}

	p.updateGameRenderState()
	p.checkMapChange()

	// nothing may be capturing between frames; a level change mid-frame
	// leaves the buffer behind
	if p.capture.Active() {
		p.discardCapture("frame ended with open capture")
		p.closeOpenEye()
		p.setPhase(PhaseIdle)
	}

	inGame := p.isInGame()
	if p.state.inMenu || !inGame {
		p.deps.Host.ShowMenu()
		p.deps.Pose.PollEvents(false, p.state.inMenu)
	} else {
		p.deps.Host.HideMenu()
	}

	if !inGame || (p.state.inMenu && p.state.menuJustRendered) {
		p.deps.Host.CaptureScreen(p.deps.Targets.MenuTexture())
		p.state.menuJustRendered = false
	}

	if p.isDeadInGame() {
		p.deps.Host.ClearInputForDeath()
	}
}

func (p *Pipeline) updateGameRenderState() {
	p.state.inGame = p.state.calcRefdefCalled
	p.state.inMenu = !p.state.hudRedrawCalled
	p.state.calcRefdefCalled = false
	p.state.hudRedrawCalled = false
	if !p.state.inMenu {
		p.state.menuJustRendered = false
	}

	p.stats.inGame.Store(p.isInGame())
	p.stats.inMenu.Store(p.state.inMenu)
}

func (p *Pipeline) checkMapChange() {
	model := p.deps.World.MapModel()
	if model == nil || model.Name == "" || model.Name == p.state.currentMap {
		return
	}

	prev := p.state.currentMap
	p.discardCapture("map change")
	p.closeOpenEye()
	p.setPhase(PhaseIdle)
	p.state.currentMap = model.Name
	name := model.Name
	p.stats.mapName.Store(&name)

	p.logger.Info("map changed", "from", prev, "to", model.Name)
	if p.deps.OnMapChange != nil {
		p.deps.OnMapChange(model.Name)
	}
}

// isInGame requires a view hook since the last frame and a playable level
// that is neither an intermission nor a dead player's view.
func (p *Pipeline) isInGame() bool {
	w := p.deps.World
	return p.state.inGame && w.InPlayableLevel() && !w.LocalPlayerDead() && !w.Intermission()
}

func (p *Pipeline) isDeadInGame() bool {
	w := p.deps.World
	return w.InPlayableLevel() && w.LocalPlayerDead()
}
