// Package pipeline drives the stereo frame protocol from the engine's view,
// draw and HUD callbacks.
//
// The engine calls the view hook twice per frame. The first call opens a
// command buffer and lets the engine draw the scene into it; the second call
// closes the buffer, replays it into the eye targets and submits both eyes.
// Every other hook only bookkeeps so the next view call knows whether the
// player is in a level, in the menu or dead.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/hlvr/vrcore/internal/assets"
	"github.com/hlvr/vrcore/internal/compositor"
	"github.com/hlvr/vrcore/internal/config"
	"github.com/hlvr/vrcore/internal/controller"
	"github.com/hlvr/vrcore/internal/pose"
	"github.com/hlvr/vrcore/internal/render"
	"github.com/hlvr/vrcore/internal/vrmath"
)

// ErrEyeBracket is returned when an eye is prepared while another eye's
// bracket is still open.
var ErrEyeBracket = errors.New("eye bracket already open")

// Phase is the state of the stereo protocol.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseCapturingLeft
	PhaseReplaying
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCapturingLeft:
		return "capturing_left"
	case PhaseReplaying:
		return "replaying"
	default:
		return "unknown"
	}
}

// ViewResult tells the host adapter what to do after the view hook.
type ViewResult int

const (
	// ViewStereo means the view parameters were filled from the HMD.
	ViewStereo ViewResult = iota
	// ViewClientOnly means only client-side drawing happens this pass.
	ViewClientOnly
	// ViewDefault means the host must run its own camera calculation.
	ViewDefault
)

// RefParams is the subset of the engine's view parameters the hook reads
// and writes.
type RefParams struct {
	ViewOrigin     mgl32.Vec3
	ViewAngles     vrmath.Angles
	Viewport       [4]int
	NextView       int
	OnlyClientDraw bool
	ViewEntity     int
	MaxClients     int
}

// PoseSource is the part of the pose provider the pipeline drives.
type PoseSource interface {
	PollEvents(consumeInput, menuOpen bool)
	UpdatePositions() bool
	HasValidHead() bool
	ViewOrigin() mgl32.Vec3
	ViewAngles(eye vrmath.Eye) vrmath.Angles
	ControllerReports(timestamp, weaponID int, dragging func(vrmath.Role) bool) []controller.Report
	SetConfig(cfg pose.Config)
	Submit(left, right uint32) error
}

// World answers questions about the running game session.
type World interface {
	InPlayableLevel() bool
	LocalPlayerDead() bool
	Intermission() bool
	EntityOrigin(index int) (mgl32.Vec3, bool)
	MapModel() *assets.MapModel
	FarClip() float32
	SkyName() string
}

// Host performs the engine-side effects of the frame hooks.
type Host interface {
	ShowMenu()
	HideMenu()
	CaptureScreen(target render.TextureID)
	ClearInputForDeath()
	SetViewAngles(a vrmath.Angles)
	RenderHUDSprites(time float32, intermission int)
	RenderScreenOverlays()
	DrawControllerDebug()
	CurrentWeaponID() int
}

// Input exposes the controller input state.
type Input interface {
	IsDragOn(role vrmath.Role) bool
	FingerCurl(role vrmath.Role) ([5]float32, bool)
}

// Settings supplies the render flags.
type Settings interface {
	Current() config.RenderConfig
	CheckForChanges() (config.RenderConfig, bool)
}

// Dependencies are the collaborators of a Pipeline.
type Dependencies struct {
	Pose       PoseSource
	Graphics   render.Graphics
	Targets    render.EyeTargets
	World      World
	Host       Host
	Input      Input
	Overrides  *assets.OverrideManager
	Compositor *compositor.Compositor
	Settings   Settings
	Logger     *slog.Logger

	// ControllerSink receives the controller reports built on every HUD
	// redraw. It is optional.
	ControllerSink func([]controller.Report)
	// OnMapChange is called once per level change with the new map name.
	OnMapChange func(mapName string)
}

// Stats are monotonically increasing counters plus the current state,
// safe to read from other goroutines.
type Stats struct {
	StereoFrames      uint64
	FallbackFrames    uint64
	DiscardedCaptures uint64
	SkyboxFaceErrors  uint64
	ReplayErrors      uint64
	StaleCalls        uint64
	Phase             Phase
	InMenu            bool
	InGame            bool
	MapName           string
}

type counters struct {
	stereo    atomic.Uint64
	fallback  atomic.Uint64
	discarded atomic.Uint64
	faceErrs  atomic.Uint64
	replayErr atomic.Uint64
	stale     atomic.Uint64
	phase     atomic.Int32
	inMenu    atomic.Bool
	inGame    atomic.Bool
	mapName   atomic.Pointer[string]
}

// state is owned by the render thread.
type state struct {
	phase    Phase
	strategy render.ReplayStrategy
	openEye  *vrmath.Eye

	currentMap       string
	onlyClientDraw   bool
	inMenu           bool
	inGame           bool
	calcRefdefCalled bool
	hudRedrawCalled  bool
	menuJustRendered bool

	hudTime         float32
	hudIntermission int
	hudTick         int
}

// Pipeline is the per-session frame state. Create one per engine session
// and call Reset at level boundaries.
type Pipeline struct {
	deps    Dependencies
	logger  *slog.Logger
	capture *render.CommandBuffer
	cfg     config.RenderConfig
	state   state
	stats   counters
	metrics instruments
}

// New builds a pipeline.
func New(deps Dependencies) (*Pipeline, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		deps:    deps,
		logger:  logger.With("component", "pipeline"),
		capture: render.NewCommandBuffer(deps.Graphics),
	}

	var err error
	if p.metrics, err = newInstruments(); err != nil {
		return nil, err
	}

	if deps.Settings != nil {
		p.applyConfig(deps.Settings.Current())
	}
	empty := ""
	p.stats.mapName.Store(&empty)
	return p, nil
}

// Stats returns a snapshot of the counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		StereoFrames:      p.stats.stereo.Load(),
		FallbackFrames:    p.stats.fallback.Load(),
		DiscardedCaptures: p.stats.discarded.Load(),
		SkyboxFaceErrors:  p.stats.faceErrs.Load(),
		ReplayErrors:      p.stats.replayErr.Load(),
		StaleCalls:        p.stats.stale.Load(),
		Phase:             Phase(p.stats.phase.Load()),
		InMenu:            p.stats.inMenu.Load(),
		InGame:            p.stats.inGame.Load(),
		MapName:           *p.stats.mapName.Load(),
	}
}

// Phase is the current protocol state.
func (p *Pipeline) Phase() Phase {
	return p.state.phase
}

// CaptureActive reports whether a command buffer is allocated.
func (p *Pipeline) CaptureActive() bool {
	return p.capture.Active()
}

// InMenu reports the menu state derived at the last Frame.
func (p *Pipeline) InMenu() bool {
	return p.state.inMenu
}

// OnlyClientDraw reports whether the current pass draws only client-side.
func (p *Pipeline) OnlyClientDraw() bool {
	return p.state.onlyClientDraw
}

func (p *Pipeline) setPhase(ph Phase) {
	p.state.phase = ph
	p.stats.phase.Store(int32(ph))
}

func (p *Pipeline) applyConfig(cfg config.RenderConfig) {
	p.cfg = cfg
	if p.deps.Pose != nil {
		p.deps.Pose.SetConfig(pose.Config{
			WorldScale:         cfg.WorldScale,
			MovementAttachment: cfg.MovementAttachment,
			LeftHanded:         cfg.LeftHanded,
		})
	}
}

// Reset discards any capture and clears the session state. The render
// configuration is kept.
func (p *Pipeline) Reset() {
	p.discardCapture("reset")
	p.closeOpenEye()
	p.state = state{hudTick: p.state.hudTick}
	p.setPhase(PhaseIdle)
	if p.deps.Overrides != nil {
		p.deps.Overrides.Reset()
	}
	p.stats.inMenu.Store(false)
	p.stats.inGame.Store(false)
	empty := ""
	p.stats.mapName.Store(&empty)
}

// discardCapture releases a stray command buffer. It is a no-op when no
// buffer exists.
func (p *Pipeline) discardCapture(reason string) {
	released, err := p.capture.Discard()
	if !released {
		return
	}
	p.stats.discarded.Add(1)
	p.metrics.discarded.Add(context.Background(), 1)
	if err != nil {
		p.logger.Warn("error discarding capture", "reason", reason, "error", err)
		return
	}
	p.logger.Debug("discarded capture", "reason", reason)
}

func (p *Pipeline) prepareEye(eye vrmath.Eye) error {
	if p.state.openEye != nil {
		return fmt.Errorf("prepare %s while %s open: %w", eye, *p.state.openEye, ErrEyeBracket)
	}
	if err := p.deps.Targets.Prepare(eye); err != nil {
		return fmt.Errorf("prepare %s eye: %w", eye, err)
	}
	e := eye
	p.state.openEye = &e
	return nil
}

func (p *Pipeline) finishEye(eye vrmath.Eye) error {
	if p.state.openEye == nil || *p.state.openEye != eye {
		return fmt.Errorf("finish %s eye without prepare", eye)
	}
	p.state.openEye = nil
	if err := p.deps.Targets.Finish(eye); err != nil {
		return fmt.Errorf("finish %s eye: %w", eye, err)
	}
	return nil
}

func (p *Pipeline) closeOpenEye() {
	if p.state.openEye == nil {
		return
	}
	if err := p.finishEye(*p.state.openEye); err != nil {
		p.logger.Warn("error closing eye bracket", "error", err)
	}
}
