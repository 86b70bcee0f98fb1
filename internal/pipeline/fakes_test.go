package pipeline

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"

	"github.com/hlvr/vrcore/internal/assets"
	"github.com/hlvr/vrcore/internal/compositor"
	"github.com/hlvr/vrcore/internal/config"
	"github.com/hlvr/vrcore/internal/controller"
	"github.com/hlvr/vrcore/internal/pose"
	"github.com/hlvr/vrcore/internal/render"
	"github.com/hlvr/vrcore/internal/render/rendertest"
	"github.com/hlvr/vrcore/internal/vrmath"
)

type fakePose struct {
	valid     bool
	polls     [][2]bool
	origin    mgl32.Vec3
	angles    vrmath.Angles
	submitted [][2]uint32
	cfg       pose.Config
	ticks     []int
}

func (f *fakePose) PollEvents(consumeInput, menuOpen bool) {
	f.polls = append(f.polls, [2]bool{consumeInput, menuOpen})
}
func (f *fakePose) UpdatePositions() bool  { return f.valid }
func (f *fakePose) HasValidHead() bool     { return f.valid }
func (f *fakePose) ViewOrigin() mgl32.Vec3 { return f.origin }
func (f *fakePose) ViewAngles(eye vrmath.Eye) vrmath.Angles {
	return f.angles
}
func (f *fakePose) SetConfig(cfg pose.Config) { f.cfg = cfg }
func (f *fakePose) Submit(left, right uint32) error {
	f.submitted = append(f.submitted, [2]uint32{left, right})
	return nil
}

func (f *fakePose) ControllerReports(timestamp, weaponID int, dragging func(vrmath.Role) bool) []controller.Report {
	f.ticks = append(f.ticks, timestamp)
	return []controller.Report{
		{Timestamp: timestamp, ID: controller.Left, IsDragging: dragging != nil && dragging(vrmath.RoleLeft)},
		{Timestamp: timestamp, ID: controller.Right, WeaponID: weaponID},
	}
}

type fakeWorld struct {
	playable     bool
	dead         bool
	intermission bool
	model        *assets.MapModel
	entities     map[int]mgl32.Vec3
	farClip      float32
	sky          string
}

func (w *fakeWorld) InPlayableLevel() bool { return w.playable }
func (w *fakeWorld) LocalPlayerDead() bool { return w.dead }
func (w *fakeWorld) Intermission() bool    { return w.intermission }
func (w *fakeWorld) EntityOrigin(index int) (mgl32.Vec3, bool) {
	o, ok := w.entities[index]
	return o, ok
}
func (w *fakeWorld) MapModel() *assets.MapModel { return w.model }
func (w *fakeWorld) FarClip() float32           { return w.farClip }
func (w *fakeWorld) SkyName() string            { return w.sky }

type fakeHost struct {
	shown, hidden, captured, cleared int
	capturedInto                     []render.TextureID
	viewAngles                       []vrmath.Angles
	hudTimes                         []float32
	overlays, debugDraws             int
	weapon                           int
}

func (h *fakeHost) ShowMenu() { h.shown++ }
func (h *fakeHost) HideMenu() { h.hidden++ }
func (h *fakeHost) CaptureScreen(target render.TextureID) {
	h.captured++
	h.capturedInto = append(h.capturedInto, target)
}
func (h *fakeHost) ClearInputForDeath()           { h.cleared++ }
func (h *fakeHost) SetViewAngles(a vrmath.Angles) { h.viewAngles = append(h.viewAngles, a) }
func (h *fakeHost) RenderHUDSprites(time float32, intermission int) {
	h.hudTimes = append(h.hudTimes, time)
}
func (h *fakeHost) RenderScreenOverlays() { h.overlays++ }
func (h *fakeHost) DrawControllerDebug()  { h.debugDraws++ }
func (h *fakeHost) CurrentWeaponID() int  { return h.weapon }

type testPlayer struct{}

func (testPlayer) Index() int         { return 1 }
func (testPlayer) Origin() mgl32.Vec3 { return mgl32.Vec3{} }
func (testPlayer) IsAlive() bool      { return true }

type fakeInput struct {
	drag map[vrmath.Role]bool
	curl map[vrmath.Role][5]float32
}

func (i *fakeInput) IsDragOn(role vrmath.Role) bool { return i.drag[role] }
func (i *fakeInput) FingerCurl(role vrmath.Role) ([5]float32, bool) {
	c, ok := i.curl[role]
	return c, ok
}

type fakeSettings struct {
	cfg     config.RenderConfig
	pending *config.RenderConfig
}

func (s *fakeSettings) Current() config.RenderConfig { return s.cfg }
func (s *fakeSettings) CheckForChanges() (config.RenderConfig, bool) {
	if s.pending == nil {
		return s.cfg, false
	}
	s.cfg = *s.pending
	s.pending = nil
	return s.cfg, true
}

type slot struct {
	name string
	id   render.TextureID
}

func (s *slot) Name() string              { return s.name }
func (s *slot) ID() render.TextureID      { return s.id }
func (s *slot) SetID(id render.TextureID) { s.id = id }

type harness struct {
	p        *Pipeline
	pose     *fakePose
	world    *fakeWorld
	host     *fakeHost
	input    *fakeInput
	settings *fakeSettings
	gfx      *rendertest.Graphics
	targets  *rendertest.Targets
	skybox   *assets.SkyboxResolver
	reports  [][]controller.Report
	maps     []string
}

func newHarness(t *testing.T, cfg config.RenderConfig) *harness {
	t.Helper()
	h := &harness{
		pose: &fakePose{valid: true, origin: mgl32.Vec3{1, 2, 3}, angles: vrmath.Angles{Pitch: 5, Yaw: 90}},
		world: &fakeWorld{
			playable: true,
			model:    &assets.MapModel{Name: "maps/c1a0.bsp", Textures: []assets.TextureSlot{&slot{name: "crete1", id: 7}}},
			entities: map[int]mgl32.Vec3{},
			farClip:  4096,
		},
		host:     &fakeHost{weapon: 3},
		input:    &fakeInput{drag: map[vrmath.Role]bool{}, curl: map[vrmath.Role][5]float32{}},
		settings: &fakeSettings{cfg: cfg},
		gfx:      rendertest.New(),
		targets:  rendertest.NewTargets(),
	}

	lookup := assets.LookupFunc(func(name string) render.TextureID {
		switch name {
		case "game/crete1.png":
			return 500
		case compositor.MenuBackground:
			return 300
		}
		return 0
	})
	var err error
	h.skybox, err = assets.NewSkyboxResolver(lookup, nil)
	require.NoError(t, err)

	comp := compositor.New(compositor.Dependencies{
		Graphics:  h.gfx,
		Targets:   h.targets,
		Textures:  lookup,
		Skybox:    h.skybox,
		HDEnabled: func() bool { return h.settings.cfg.HDTexturesEnabled },
	})

	h.p, err = New(Dependencies{
		Pose:       h.pose,
		Graphics:   h.gfx,
		Targets:    h.targets,
		World:      h.world,
		Host:       h.host,
		Input:      h.input,
		Overrides:  assets.NewOverrideManager(lookup, h.skybox, nil),
		Compositor: comp,
		Settings:   h.settings,
		ControllerSink: func(r []controller.Report) {
			h.reports = append(h.reports, r)
		},
		OnMapChange: func(name string) { h.maps = append(h.maps, name) },
	})
	require.NoError(t, err)
	return h
}

// enterGame runs one idle frame so the next Frame sees the view and HUD
// hooks as called.
func (h *harness) enterGame() {
	h.p.CalcRefdef(&RefParams{})
	h.p.InterceptHUDRedraw(0, 0)
	h.p.Frame(0)
}

// stereoFrame runs both view passes and the HUD hook, then Frame.
func (h *harness) stereoFrame(params *RefParams) (ViewResult, ViewResult) {
	first := h.p.CalcRefdef(params)
	var second ViewResult = -1
	if params.NextView == 1 {
		second = h.p.CalcRefdef(params)
	}
	h.p.InterceptHUDRedraw(1, 0)
	h.p.Frame(0)
	return first, second
}
