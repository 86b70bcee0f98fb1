package headless

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hlvr/vrcore/internal/assets"
	"github.com/hlvr/vrcore/internal/compositor"
	"github.com/hlvr/vrcore/internal/controller"
	"github.com/hlvr/vrcore/internal/pipeline"
	"github.com/hlvr/vrcore/internal/pose"
)

type run struct {
	engine  *Engine
	p       *pipeline.Pipeline
	maps    []string
	reports int
}

func newRun(t *testing.T, opts Options) *run {
	t.Helper()
	r := &run{engine: New(opts)}
	caps := r.engine.Capabilities()
	require.NoError(t, caps.Validate())

	provider := pose.NewProvider(pose.Dependencies{
		Device: caps.Device,
		Input:  caps.Input,
		Player: caps.LocalPlayer,
	}, pose.Config{WorldScale: 1, MovementAttachment: "hmd"})

	textures := assets.NewCache(caps.Textures)
	skybox, err := assets.NewSkyboxResolver(textures, nil)
	require.NoError(t, err)

	comp := compositor.New(compositor.Dependencies{
		Graphics: caps.Graphics,
		Targets:  caps.Targets,
		Textures: textures,
		Skybox:   skybox,
	})

	r.p, err = pipeline.New(pipeline.Dependencies{
		Pose:           provider,
		Graphics:       caps.Graphics,
		Targets:        caps.Targets,
		World:          caps.World,
		Host:           caps.Host,
		Input:          caps.Controls,
		Overrides:      assets.NewOverrideManager(textures, skybox, nil),
		Compositor:     comp,
		ControllerSink: func(reps []controller.Report) { r.reports += len(reps) },
		OnMapChange:    func(name string) { r.maps = append(r.maps, name) },
	})
	require.NoError(t, err)
	return r
}

func TestRun_StereoThroughMapChanges(t *testing.T) {
	r := newRun(t, Options{Maps: []string{"c1a0", "c1a1"}, FramesPerMap: 50})

	res := r.engine.Run(context.Background(), r.p, 150, 0)

	assert.Equal(t, 150, res.Frames)
	assert.Equal(t, []string{"c1a0", "c1a1", "c1a0"}, res.Maps)
	assert.Equal(t, []string{"maps/c1a0.bsp", "maps/c1a1.bsp", "maps/c1a0.bsp"}, r.maps)

	// the first frame only establishes the in-game state
	assert.Greater(t, res.Stereo, 100)
	assert.Equal(t, res.Stereo, res.Submitted)
	assert.EqualValues(t, res.Stereo, r.p.Stats().StereoFrames)

	assert.True(t, res.Balanced, "attrib and matrix stacks restored")
	assert.False(t, res.EyeOpen)
	assert.Zero(t, res.LiveBuffers)
	assert.LessOrEqual(t, res.MaxLiveBuffers, 1)
	assert.Positive(t, r.reports)
}

func TestRun_HeadLossFallsBack(t *testing.T) {
	r := newRun(t, Options{FramesPerMap: 1000, DropEvery: 4})

	res := r.engine.Run(context.Background(), r.p, 40, 0)

	stats := r.p.Stats()
	assert.Positive(t, stats.FallbackFrames)
	assert.Positive(t, stats.StereoFrames)
	assert.Equal(t, 40, res.Frames)
	assert.Less(t, res.Submitted, 40)
	assert.True(t, res.Balanced)
	assert.False(t, res.EyeOpen)
}

func TestRun_StopsOnCancel(t *testing.T) {
	r := newRun(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := r.engine.Run(ctx, r.p, 100, 1000)
	assert.Zero(t, res.Frames)

	res = r.engine.Run(ctx, r.p, 100, 0)
	assert.Zero(t, res.Frames)
}

func TestRun_Paced(t *testing.T) {
	r := newRun(t, Options{})
	start := time.Now()

	res := r.engine.Run(context.Background(), r.p, 5, 100)

	assert.Equal(t, 5, res.Frames)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestCapabilities_Players(t *testing.T) {
	e := New(Options{PlayerIndex: 2})
	caps := e.Capabilities()

	p, ok := caps.Players.Player(2)
	require.True(t, ok)
	assert.Equal(t, 2, p.Index())
	assert.True(t, p.IsAlive())

	_, ok = caps.Players.Player(1)
	assert.False(t, ok)
	assert.Equal(t, 2, caps.LocalIndex)
}

func TestCapabilities_MapPropsFreedOnMapChange(t *testing.T) {
	r := newRun(t, Options{Maps: []string{"c1a0", "c1a1"}, FramesPerMap: 5})
	caps := r.engine.Capabilities()
	require.NotNil(t, caps.Entities)

	r.engine.Step(r.p)
	assert.Equal(t, 3, r.engine.Entities.Len())
	h, ok := r.engine.Entities.Current(firstProp)
	require.True(t, ok)
	assert.True(t, caps.Entities.Valid(h))

	for i := 0; i < 5; i++ {
		r.engine.Step(r.p)
	}
	assert.False(t, caps.Entities.Valid(h), "props of the previous map are gone")
	assert.Equal(t, 3, r.engine.Entities.Len())
}

func TestCapabilities_HandsFollowClock(t *testing.T) {
	r := newRun(t, Options{PlayerIndex: 1})
	caps := r.engine.Capabilities()
	reg := controller.NewRegistry(caps.Entities)
	require.True(t, reg.Apply(player{index: 1}, controller.Report{Timestamp: 1, ID: controller.Right, IsValid: true}))

	_, ok := caps.Models.ControllerModel(2, controller.Right)
	assert.False(t, ok)
	_, ok = caps.Models.ControllerModel(1, controller.Invalid)
	assert.False(t, ok)

	r.engine.Step(r.p)
	require.True(t, reg.RefreshHitBoxes(1, controller.Right, caps.Models))
	assert.False(t, reg.RefreshHitBoxes(1, controller.Right, caps.Models), "same frame")

	r.engine.Step(r.p)
	assert.True(t, reg.RefreshHitBoxes(1, controller.Right, caps.Models))
	assert.Len(t, reg.Snapshots()[0].HitBoxes, 1)
}

func TestTextureIDsStable(t *testing.T) {
	e := New(Options{})
	a := e.texture("crete1_flr")
	b := e.texture("sky")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, e.texture("crete1_flr"))
}
