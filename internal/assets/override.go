package assets

import (
	"log/slog"
	"strings"

	"github.com/hlvr/vrcore/internal/render"
)

// TextureSlot is one texture of the loaded world model. The host may swap
// the id behind a slot at any time when it reloads assets.
type TextureSlot interface {
	Name() string
	ID() render.TextureID
	SetID(id render.TextureID)
}

// MapModel is the world model of the current level.
type MapModel struct {
	Name     string
	Textures []TextureSlot
}

// Decision explains why overrides were (or were not) re-applied.
type Decision struct {
	MapChanged    bool
	ToggleChanged bool
	Stale         bool
	Replaced      int
	Restored      int
}

// Applied reports whether textures were rewritten.
func (d Decision) Applied() bool {
	return d.MapChanged || d.ToggleChanged || d.Stale
}

// OverrideManager swaps world textures for HD replacements and back.
// Original ids are backed up per texture name, never per id, since the host
// recreates ids between level loads.
type OverrideManager struct {
	lookup TextureLookup
	skybox *SkyboxResolver
	logger *slog.Logger

	currentMap string
	hdEnabled  bool
	originals  map[string]render.TextureID
}

func NewOverrideManager(lookup TextureLookup, skybox *SkyboxResolver, logger *slog.Logger) *OverrideManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &OverrideManager{
		lookup:    lookup,
		skybox:    skybox,
		logger:    logger.With("component", "overrides"),
		originals: make(map[string]render.TextureID),
	}
}

// Check re-applies overrides when the level changed, the HD flag toggled, or
// HD is on and the bound ids look reset by the host.
//
// The reset detection is a heuristic: a texture counts as reset when no
// backups exist yet or when its current id equals its backed-up original.
// Textures without an HD replacement always match their backup, so with HD
// enabled they trigger a re-apply on every check.
func (m *OverrideManager) Check(model *MapModel, hdEnabled bool) Decision {
	if model == nil {
		m.currentMap = ""
		return Decision{}
	}

	var d Decision
	switch {
	case model.Name != m.currentMap:
		d.MapChanged = true
		m.logger.Info("map changed, resetting texture overrides", "from", m.currentMap, "to", model.Name)
		m.currentMap = model.Name
		clear(m.originals)
		if m.skybox != nil {
			m.skybox.SetFromMap(model.Name)
		}
	case hdEnabled != m.hdEnabled:
		d.ToggleChanged = true
	case hdEnabled && m.looksReset(model):
		d.Stale = true
	default:
		return d
	}

	m.hdEnabled = hdEnabled
	d.Replaced, d.Restored = m.apply(model)
	return d
}

// HDEnabled is the flag the textures were last applied with.
func (m *OverrideManager) HDEnabled() bool {
	return m.hdEnabled
}

// CurrentMap is the level the overrides were last applied to.
func (m *OverrideManager) CurrentMap() string {
	return m.currentMap
}

// Backups is the number of backed-up original ids.
func (m *OverrideManager) Backups() int {
	return len(m.originals)
}

// Original returns the backed-up id of a texture.
func (m *OverrideManager) Original(name string) (render.TextureID, bool) {
	id, ok := m.originals[name]
	return id, ok
}

// Reset forgets the level and every backup.
func (m *OverrideManager) Reset() {
	m.currentMap = ""
	m.hdEnabled = false
	clear(m.originals)
}

func (m *OverrideManager) looksReset(model *MapModel) bool {
	for _, tex := range model.Textures {
		if tex == nil || skipTexture(tex.Name()) {
			continue
		}
		orig, ok := m.originals[tex.Name()]
		if !ok || orig == tex.ID() {
			return true
		}
	}
	return false
}

func (m *OverrideManager) apply(model *MapModel) (replaced, restored int) {
	for _, tex := range model.Textures {
		if tex == nil || skipTexture(tex.Name()) {
			continue
		}
		name := tex.Name()
		if _, ok := m.originals[name]; !ok {
			m.originals[name] = tex.ID()
		}

		if !m.hdEnabled {
			tex.SetID(m.originals[name])
			restored++
			continue
		}
		// without an HD version the host's id stays, it may have been reloaded
		if hd := m.lookup.Texture("game/" + name + ".png"); hd != 0 {
			tex.SetID(hd)
			replaced++
		}
	}
	m.logger.Debug("applied texture overrides", "map", m.currentMap, "hd", m.hdEnabled, "replaced", replaced, "restored", restored)
	return replaced, restored
}

// skipTexture excludes the sky placeholder and transparent ('{'-prefixed)
// textures.
func skipTexture(name string) bool {
	return name == "" || name == "sky" || strings.HasPrefix(name, "{")
}
