package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hlvr/vrcore/internal/render"
)

// fakeFiles resolves names from a fixed set and counts lookups.
type fakeFiles struct {
	ids   map[string]render.TextureID
	calls map[string]int
}

func newFakeFiles(names ...string) *fakeFiles {
	f := &fakeFiles{ids: make(map[string]render.TextureID), calls: make(map[string]int)}
	for i, n := range names {
		f.ids[n] = render.TextureID(1000 + i)
	}
	return f
}

func (f *fakeFiles) Texture(name string) render.TextureID {
	f.calls[name]++
	return f.ids[name]
}

type slot struct {
	name string
	id   render.TextureID
}

func (s *slot) Name() string              { return s.name }
func (s *slot) ID() render.TextureID      { return s.id }
func (s *slot) SetID(id render.TextureID) { s.id = id }

func newResolver(t *testing.T, files TextureLookup) *SkyboxResolver {
	t.Helper()
	r, err := NewSkyboxResolver(files, nil)
	require.NoError(t, err)
	return r
}

func TestCache_MemoizesMisses(t *testing.T) {
	files := newFakeFiles("hud/crosshair.png")
	c := NewCache(files)

	assert.NotZero(t, c.Texture("hud/crosshair.png"))
	assert.NotZero(t, c.Texture("hud/crosshair.png"))
	assert.Zero(t, c.Texture("missing.png"))
	assert.Zero(t, c.Texture("missing.png"))

	assert.Equal(t, 1, files.calls["hud/crosshair.png"])
	assert.Equal(t, 1, files.calls["missing.png"])
	assert.Equal(t, 1, c.Misses())
	assert.Equal(t, 2, c.Len())

	c.Reset()
	assert.Equal(t, 0, c.Len())
}

func TestMapKey(t *testing.T) {
	assert.Equal(t, "c1a0", MapKey("maps/c1a0.bsp"))
	assert.Equal(t, "c2a5a", MapKey("C2A5A"))
	assert.Equal(t, "c4a1", MapKey(`maps\c4a1.bsp`))
}

func TestSkyboxResolver_ThemeForMap(t *testing.T) {
	r := newResolver(t, newFakeFiles())

	tests := map[string]string{
		"maps/c0a0b.bsp": "2desert",
		"maps/c1a0e.bsp": "xen9",
		"maps/c1a3b.bsp": "dusk",
		"maps/c2a2.bsp":  "night",
		"maps/c2a2a.bsp": "day",
		"maps/c2a3c.bsp": "dawn",
		"maps/c2a4.bsp":  "morning",
		"maps/c2a5a.bsp": "cliff",
		"maps/c4a1b.bsp": "alien1",
		"maps/c4a1f.bsp": "black",
		"maps/c4a2b.bsp": "neb6",
		"maps/c5a1.bsp":  "xen10",
		"maps/c1a1.bsp":  "desert",
		"maps/custom.bsp": "desert",
	}
	for mapName, want := range tests {
		assert.Equal(t, want, r.ThemeForMap(mapName), mapName)
	}
}

func TestSkyboxResolver_Current(t *testing.T) {
	r := newResolver(t, newFakeFiles())

	assert.Equal(t, DefaultSkybox, r.Current(""))
	r.SetFromMap("maps/c2a2.bsp")
	assert.Equal(t, "night", r.Current(""))
	assert.Equal(t, "space", r.Current("space"), "level sky name wins")
	assert.Equal(t, 1, r.Resolutions())
}

func TestSkyboxResolver_FallbackChain(t *testing.T) {
	files := newFakeFiles(
		"skybox/hd/nightrt.png",
		"skybox/duskbk.png",
		"skybox/desertlf.png",
	)
	r := newResolver(t, files)

	assert.Equal(t, files.ids["skybox/hd/nightrt.png"], r.HDFace("night", FaceRight), "HD present")
	assert.Equal(t, files.ids["skybox/duskbk.png"], r.HDFace("dusk", FaceBack), "HD missing, SD present")
	assert.Equal(t, 1, files.calls["skybox/hd/duskbk.png"])
	assert.Zero(t, files.calls["skybox/desertbk.png"], "default not consulted when SD exists")

	assert.Equal(t, files.ids["skybox/desertlf.png"], r.HDFace("dusk", FaceLeft), "falls back to desert")
	assert.Equal(t, 1, files.calls["skybox/dusklf.png"], "SD of the same name tried before desert")

	assert.Zero(t, r.HDFace("desert", FaceUp), "nothing at all")
	assert.Equal(t, 1, files.calls["skybox/desertup.png"], "default is not retried for itself")
}

func TestSkyboxResolver_SuffixOrders(t *testing.T) {
	files := newFakeFiles("skybox/hd/dayft.png", "skybox/hd/dayrt.png")
	r := newResolver(t, files)

	assert.Equal(t, files.ids["skybox/hd/dayft.png"], r.DeviceFace("day", 0))
	assert.Equal(t, files.ids["skybox/hd/dayrt.png"], r.HDFace("day", FaceRight))
	assert.Equal(t, files.ids["skybox/hd/dayrt.png"], r.DeviceFace("day", 3))
	assert.Zero(t, r.SDFace("day", FaceFront), "SD lookup skips HD")
}

func newModel(name string) *MapModel {
	return &MapModel{
		Name: name,
		Textures: []TextureSlot{
			&slot{name: "crete1", id: 11},
			&slot{name: "sky", id: 12},
			&slot{name: "{grate", id: 13},
			&slot{name: "lab1_w4", id: 14},
		},
	}
}

func TestOverrideManager_NilModelForgetsMap(t *testing.T) {
	m := NewOverrideManager(newFakeFiles(), nil, nil)
	m.Check(newModel("maps/c1a0.bsp"), false)

	assert.False(t, m.Check(nil, true).Applied())
	assert.Equal(t, "", m.CurrentMap())
}

func TestOverrideManager_ReplaceAndRestoreByName(t *testing.T) {
	files := newFakeFiles("game/crete1.png", "game/lab1_w4.png", "game/sky.png", "game/{grate.png")
	m := NewOverrideManager(files, nil, nil)
	model := newModel("maps/c1a0.bsp")

	d := m.Check(model, true)
	require.True(t, d.MapChanged)
	assert.Equal(t, 2, d.Replaced)
	assert.Equal(t, files.ids["game/crete1.png"], model.Textures[0].ID())
	assert.Equal(t, render.TextureID(12), model.Textures[1].ID(), "sky untouched")
	assert.Equal(t, render.TextureID(13), model.Textures[2].ID(), "transparent untouched")
	assert.Equal(t, 2, m.Backups())

	d = m.Check(model, false)
	require.True(t, d.ToggleChanged)
	assert.Equal(t, 2, d.Restored)
	assert.Equal(t, render.TextureID(11), model.Textures[0].ID())
	assert.Equal(t, render.TextureID(14), model.Textures[3].ID())
}

func TestOverrideManager_NoChangeNoWork(t *testing.T) {
	files := newFakeFiles("game/crete1.png", "game/lab1_w4.png")
	m := NewOverrideManager(files, nil, nil)
	model := newModel("maps/c1a0.bsp")

	m.Check(model, true)
	d := m.Check(model, true)
	assert.False(t, d.Applied())
	assert.Equal(t, 1, files.calls["game/crete1.png"])
}

func TestOverrideManager_DetectsHostReload(t *testing.T) {
	files := newFakeFiles("game/crete1.png", "game/lab1_w4.png")
	m := NewOverrideManager(files, nil, nil)
	model := newModel("maps/c1a0.bsp")
	m.Check(model, true)

	// the host reloads the texture and hands out the original id again
	model.Textures[0].SetID(11)

	d := m.Check(model, true)
	assert.True(t, d.Stale)
	assert.Equal(t, files.ids["game/crete1.png"], model.Textures[0].ID())
}

func TestOverrideManager_HeuristicFlagsTexturesWithoutHD(t *testing.T) {
	files := newFakeFiles("game/crete1.png")
	m := NewOverrideManager(files, nil, nil)
	model := newModel("maps/c1a0.bsp")
	m.Check(model, true)

	// lab1_w4 has no HD version so it still carries its original id
	assert.True(t, m.Check(model, true).Stale)
}

func TestOverrideManager_HDMissKeepsHostID(t *testing.T) {
	files := newFakeFiles("game/crete1.png")
	m := NewOverrideManager(files, nil, nil)
	model := &MapModel{
		Name: "maps/c1a0.bsp",
		Textures: []TextureSlot{
			&slot{name: "crete1", id: 10},
			&slot{name: "lab1_w4", id: 11},
			&slot{name: "out_wall", id: 12},
		},
	}

	d := m.Check(model, true)
	assert.Equal(t, 1, d.Replaced)
	assert.Zero(t, d.Restored)

	// the host reloads lab1_w4 under a fresh id; the stale backup must not come back
	model.Textures[1].SetID(99)

	d = m.Check(model, true)
	require.True(t, d.Stale, "out_wall still matches its backup")
	assert.Equal(t, render.TextureID(99), model.Textures[1].ID())
	assert.Equal(t, render.TextureID(12), model.Textures[2].ID())
	assert.Equal(t, files.ids["game/crete1.png"], model.Textures[0].ID())
	assert.Zero(t, d.Restored)

	// turning HD off still writes the backups back
	d = m.Check(model, false)
	assert.Equal(t, 3, d.Restored)
	assert.Equal(t, render.TextureID(11), model.Textures[1].ID())
}

func TestOverrideManager_OnlyExactSkySkipped(t *testing.T) {
	files := newFakeFiles("game/skylight.png", "game/sky.png")
	m := NewOverrideManager(files, nil, nil)
	model := &MapModel{
		Name: "maps/c1a0.bsp",
		Textures: []TextureSlot{
			&slot{name: "sky", id: 20},
			&slot{name: "skylight", id: 21},
		},
	}

	d := m.Check(model, true)
	assert.Equal(t, 1, d.Replaced)
	assert.Equal(t, render.TextureID(20), model.Textures[0].ID())
	assert.Equal(t, files.ids["game/skylight.png"], model.Textures[1].ID())
	assert.Zero(t, files.calls["game/sky.png"])
}

func TestOverrideManager_DisabledNeverChecksStaleness(t *testing.T) {
	m := NewOverrideManager(newFakeFiles(), nil, nil)
	model := newModel("maps/c1a0.bsp")
	m.Check(model, false)

	assert.False(t, m.Check(model, false).Applied())
}

func TestOverrideManager_MapChangeClearsBackupsAndResolvesSkyboxOnce(t *testing.T) {
	files := newFakeFiles("game/crete1.png")
	skybox := newResolver(t, files)
	m := NewOverrideManager(files, skybox, nil)

	m.Check(newModel("maps/c1a0.bsp"), false)
	require.Equal(t, 1, skybox.Resolutions())

	next := &MapModel{Name: "maps/c2a2.bsp", Textures: []TextureSlot{&slot{name: "crete1", id: 77}}}
	// HD toggle flips on the same frame the map changes
	d := m.Check(next, true)

	assert.True(t, d.MapChanged)
	assert.False(t, d.ToggleChanged)
	assert.Equal(t, 2, skybox.Resolutions())
	assert.Equal(t, "night", skybox.Current(""))
	assert.Equal(t, 1, m.Backups())
	orig, ok := m.Original("crete1")
	require.True(t, ok)
	assert.Equal(t, render.TextureID(77), orig, "backup taken from the new level's id")

	m.Check(next, true)
	assert.Equal(t, 2, skybox.Resolutions())
}

func TestOverrideManager_Reset(t *testing.T) {
	m := NewOverrideManager(newFakeFiles(), nil, nil)
	m.Check(newModel("maps/c1a0.bsp"), true)

	m.Reset()
	assert.Equal(t, "", m.CurrentMap())
	assert.Equal(t, 0, m.Backups())
	assert.False(t, m.HDEnabled())
}
