// Package headless is an engine without a window or headset. It scripts a
// player walking through a list of maps and drives the frame hooks the way
// the engine does, so the full pipeline and telemetry path can run on a
// build machine.
package headless

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/hlvr/vrcore/internal/assets"
	"github.com/hlvr/vrcore/internal/controller"
	"github.com/hlvr/vrcore/internal/entity"
	"github.com/hlvr/vrcore/internal/pipeline"
	"github.com/hlvr/vrcore/internal/pose"
	"github.com/hlvr/vrcore/internal/render"
	"github.com/hlvr/vrcore/internal/render/rendertest"
	"github.com/hlvr/vrcore/internal/vrmath"
	"github.com/hlvr/vrcore/pkg/hostinterface"
)

// logEvery is how many frames the fake graphics log is kept for.
const logEvery = 256

// Options configure a run.
type Options struct {
	Maps         []string
	FramesPerMap int
	// DropEvery loses the head pose on every n-th frame, forcing the mono
	// fallback. Zero never drops.
	DropEvery int
	// PlayerIndex is the local player's slot.
	PlayerIndex int
}

// Hooks are the frame callbacks a run drives.
type Hooks interface {
	CalcRefdef(params *pipeline.RefParams) pipeline.ViewResult
	DrawNormal()
	DrawTransparent()
	InterceptHUDRedraw(time float32, intermission int)
	Frame(time float64)
}

// Result summarises a run.
type Result struct {
	Frames         int
	Stereo         int
	Submitted      int
	Maps           []string
	Balanced       bool
	EyeOpen        bool
	LiveBuffers    int
	MaxLiveBuffers int
}

// Engine implements every capability in hostinterface.Engine.
type Engine struct {
	Graphics *rendertest.Graphics
	Targets  *rendertest.Targets
	// Entities holds the props of the current map. They are freed on every
	// map change.
	Entities *entity.Table

	// clock mirrors frame for readers on the command goroutine
	clock     atomic.Int64
	opts      Options
	frame     int
	submitted int
	stereo    int
	weapon    int
	current   *assets.MapModel
	visited   []string

	texMu    sync.Mutex
	textures map[string]render.TextureID
}

// New returns an engine positioned before the first frame.
func New(opts Options) *Engine {
	if len(opts.Maps) == 0 {
		opts.Maps = []string{"c1a0"}
	}
	if opts.FramesPerMap <= 0 {
		opts.FramesPerMap = 300
	}
	if opts.PlayerIndex <= 0 {
		opts.PlayerIndex = 1
	}
	return &Engine{
		Graphics: rendertest.New(),
		Targets:  rendertest.NewTargets(),
		Entities: entity.NewTable(),
		opts:     opts,
		weapon:   1,
		textures: make(map[string]render.TextureID),
	}
}

// Capabilities bundles the engine for hostinterface.Attach.
func (e *Engine) Capabilities() hostinterface.Engine {
	return hostinterface.Engine{
		Device:      (*device)(e),
		Input:       (*input)(e),
		Graphics:    e.Graphics,
		Targets:     e.Targets,
		World:       (*world)(e),
		Host:        (*host)(e),
		Controls:    (*input)(e),
		Textures:    assets.LookupFunc(e.texture),
		Players:     (*players)(e),
		Entities:    e.Entities,
		Models:      (*hands)(e),
		LocalPlayer: func() mgl32.Vec3 { return mgl32.Vec3{} },
		LocalIndex:  e.opts.PlayerIndex,
	}
}

// Time is the engine clock in seconds, advancing at 90 frames per second.
func (e *Engine) Time() float64 {
	return float64(e.frame) / 90
}

// Step runs one engine frame against h.
func (e *Engine) Step(h Hooks) {
	e.advanceMap()
	t := e.Time()

	h.Frame(t)

	params := pipeline.RefParams{
		Viewport:   [4]int{0, 0, 1920, 1080},
		ViewEntity: e.opts.PlayerIndex,
		MaxClients: 1,
	}
	first := h.CalcRefdef(&params)
	e.drawScene(h)
	if params.NextView == 1 {
		second := h.CalcRefdef(&params)
		e.drawScene(h)
		if first == pipeline.ViewStereo && second == pipeline.ViewStereo {
			e.stereo++
		}
	}
	h.InterceptHUDRedraw(float32(t), 0)

	e.frame++
	e.clock.Store(int64(e.frame))
	if e.frame%logEvery == 0 {
		e.Graphics.ResetLog()
		e.Targets.ResetLog()
	}
	if e.frame%300 == 0 {
		e.weapon = e.weapon%4 + 1
	}
}

// Run steps frames times, pacing at rate frames per second when rate is
// positive. It stops early when ctx is done.
func (e *Engine) Run(ctx context.Context, h Hooks, frames int, rate float64) Result {
	var tick <-chan time.Time
	if rate > 0 {
		ticker := time.NewTicker(time.Duration(float64(time.Second) / rate))
		defer ticker.Stop()
		tick = ticker.C
	}

	for i := 0; i < frames; i++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return e.Result()
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return e.Result()
		}
		e.Step(h)
	}
	return e.Result()
}

// Result reports the counters and the graphics state invariants.
func (e *Engine) Result() Result {
	return Result{
		Frames:         e.frame,
		Stereo:         e.stereo,
		Submitted:      e.submitted,
		Maps:           append([]string(nil), e.visited...),
		Balanced:       e.Graphics.Balanced(),
		EyeOpen:        e.Targets.Open(),
		LiveBuffers:    e.Graphics.LiveBuffers(),
		MaxLiveBuffers: e.Graphics.MaxLive,
	}
}

func (e *Engine) advanceMap() {
	idx := (e.frame / e.opts.FramesPerMap) % len(e.opts.Maps)
	name := "maps/" + e.opts.Maps[idx] + ".bsp"
	if e.current != nil && e.current.Name == name {
		return
	}
	e.current = &assets.MapModel{
		Name: name,
		Textures: []assets.TextureSlot{
			&slot{name: "crete1_flr"},
			&slot{name: "generic015v"},
			&slot{name: "sky"},
		},
	}
	for _, s := range e.current.Textures {
		s.SetID(e.texture(s.Name()))
	}
	e.visited = append(e.visited, e.opts.Maps[idx])

	e.Entities.Reset()
	for i, model := range mapProps {
		e.Entities.Spawn(uint32(firstProp+i), entity.Info{
			Origin:    mgl32.Vec3{float32(32 * i), 48, 0},
			ModelName: model,
		})
	}
}

// firstProp is the entity index of the first map prop; lower slots belong
// to players.
const firstProp = 33

var mapProps = []string{"models/can.mdl", "models/crate.mdl", "models/w_battery.mdl"}

// drawScene stands in for the engine drawing world geometry between the
// pre and post hooks.
func (e *Engine) drawScene(h Hooks) {
	h.DrawNormal()
	_ = e.Graphics.BindTexture(e.texture("crete1_flr"))
	_ = e.Graphics.DrawQuad([4]render.Vertex{})
	h.DrawTransparent()
}

func (e *Engine) texture(name string) render.TextureID {
	e.texMu.Lock()
	defer e.texMu.Unlock()
	id, ok := e.textures[name]
	if !ok {
		id = render.TextureID(1000 + len(e.textures))
		e.textures[name] = id
	}
	return id
}

func (e *Engine) headLost() bool {
	return e.opts.DropEvery > 0 && e.frame%e.opts.DropEvery == 0
}

type slot struct {
	name string
	id   render.TextureID
}

func (s *slot) Name() string              { return s.name }
func (s *slot) ID() render.TextureID      { return s.id }
func (s *slot) SetID(id render.TextureID) { s.id = id }

// device scripts a standing player looking around.
type device Engine

func (d *device) PollEvents() []pose.Event { return nil }

func (d *device) HeadPose() (pose.TrackedPose, bool) {
	e := (*Engine)(d)
	if e.headLost() {
		return pose.TrackedPose{}, false
	}
	t := float32(e.Time())
	m := mgl32.Translate3D(0.05*sin(t*0.5), 1.7+0.01*sin(t*2), 0).
		Mul4(mgl32.HomogRotate3DY(0.6 * sin(t*0.25)))
	return pose.TrackedPose{Matrix: m, Valid: true}, true
}

func (d *device) ControllerPose(role vrmath.Role) (pose.TrackedPose, bool) {
	t := float32((*Engine)(d).Time())
	x := float32(0.25)
	if role == vrmath.RoleLeft {
		x = -x
	}
	m := mgl32.Translate3D(x, 1.2+0.05*sin(t), -0.3+0.1*sin(t*1.5))
	return pose.TrackedPose{
		Matrix:   m,
		Velocity: mgl32.Vec3{0, 0.05 * cos(t), 0.15 * cos(t*1.5)},
		Valid:    true,
	}, true
}

func (d *device) EyeToHead(eye vrmath.Eye) mgl32.Mat4 {
	if eye == vrmath.EyeLeft {
		return mgl32.Translate3D(-0.032, 0, 0)
	}
	return mgl32.Translate3D(0.032, 0, 0)
}

func (d *device) Submit(left, right uint32) error {
	d.submitted++
	return nil
}

// input holds no buttons; the off hand grabs for a second every four.
type input Engine

func (i *input) HandleEvent(pose.Event) {}

func (i *input) IsDragOn(role vrmath.Role) bool {
	return role == vrmath.RoleLeft && i.frame%360 < 90
}

func (i *input) FingerCurl(role vrmath.Role) ([5]float32, bool) {
	if i.IsDragOn(role) {
		return [5]float32{1, 1, 1, 1, 1}, true
	}
	return [5]float32{0.2, 0.1, 0.1, 0.1, 0.1}, true
}

type world Engine

func (w *world) InPlayableLevel() bool { return w.current != nil }
func (w *world) LocalPlayerDead() bool { return false }
func (w *world) Intermission() bool    { return false }
func (w *world) EntityOrigin(int) (mgl32.Vec3, bool) {
	return mgl32.Vec3{}, false
}
func (w *world) MapModel() *assets.MapModel { return w.current }
func (w *world) FarClip() float32           { return 4096 }
func (w *world) SkyName() string            { return "desert" }

type host Engine

func (h *host) ShowMenu()                      {}
func (h *host) HideMenu()                      {}
func (h *host) CaptureScreen(render.TextureID) {}
func (h *host) ClearInputForDeath()            {}
func (h *host) SetViewAngles(vrmath.Angles)    {}
func (h *host) RenderHUDSprites(float32, int)  {}
func (h *host) RenderScreenOverlays()          {}
func (h *host) DrawControllerDebug()           {}
func (h *host) CurrentWeaponID() int           { return h.weapon }

type players Engine

type player struct{ index int }

func (p player) Index() int         { return p.index }
func (p player) Origin() mgl32.Vec3 { return mgl32.Vec3{} }
func (p player) IsAlive() bool      { return true }

func (p *players) Player(index int) (controller.Player, bool) {
	if index != p.opts.PlayerIndex {
		return nil, false
	}
	return player{index: index}, true
}

func sin(x float32) float32 { return float32(math.Sin(float64(x))) }
func cos(x float32) float32 { return float32(math.Cos(float64(x))) }

// hands poses a fixed palm box for each of the local player's controllers.
type hands Engine

func (h *hands) ControllerModel(playerIndex int, id controller.ID) (controller.HitBoxSource, bool) {
	if playerIndex != h.opts.PlayerIndex || (id != controller.Left && id != controller.Right) {
		return nil, false
	}
	return hand{at: h.Time()}, true
}

func (h *hands) Time() float32 {
	return float32(h.clock.Load()) / 90
}

type hand struct{ at float32 }

func (hand) ModelName() string         { return "models/v_hand_hevsuit.mdl" }
func (hand) Sequence() int             { return 0 }
func (hand) Frame() float32            { return 0 }
func (h hand) AnimTime() float32       { return h.at }
func (hand) Attachments() []mgl32.Vec3 { return []mgl32.Vec3{{4, 0, 0}} }

func (hand) HitBoxes() []controller.HitBox {
	return []controller.HitBox{{Mins: mgl32.Vec3{-2, -4, -1}, Maxs: mgl32.Vec3{6, 4, 3}}}
}
