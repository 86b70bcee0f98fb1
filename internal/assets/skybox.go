package assets

import (
	"bytes"
	_ "embed"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/hlvr/vrcore/internal/render"
)

// DefaultSkybox is the theme used when nothing better is known.
const DefaultSkybox = "desert"

// Face is a skybox face index in engine order.
type Face int

const (
	FaceRight Face = iota
	FaceBack
	FaceLeft
	FaceFront
	FaceUp
	FaceDown
)

// FaceCount is the number of cube faces.
const FaceCount = 6

// EngineSuffixes is the face suffix order the engine uses.
var EngineSuffixes = [FaceCount]string{"rt", "bk", "lf", "ft", "up", "dn"}

// DeviceSuffixes is the face order of the device's skybox override:
// front, back, left, right, top, bottom.
var DeviceSuffixes = [FaceCount]string{"ft", "bk", "lf", "rt", "up", "dn"}

//go:embed skyboxes.json
var skyboxTable []byte

// SkyboxResolver maps levels to skybox themes and finds face textures.
type SkyboxResolver struct {
	lookup TextureLookup
	logger *slog.Logger

	defaultName string
	themes      map[string]string

	mu          sync.RWMutex
	mapTheme    string
	resolutions int
}

// NewSkyboxResolver loads the embedded level table.
func NewSkyboxResolver(lookup TextureLookup, logger *slog.Logger) (*SkyboxResolver, error) {
	if logger == nil {
		logger = slog.Default()
	}

	v := viper.New()
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(skyboxTable)); err != nil {
		return nil, fmt.Errorf("read skybox table: %w", err)
	}
	v.SetDefault("default", DefaultSkybox)

	return &SkyboxResolver{
		lookup:      lookup,
		logger:      logger.With("component", "skybox"),
		defaultName: v.GetString("default"),
		themes:      v.GetStringMapString("maps"),
		mapTheme:    v.GetString("default"),
	}, nil
}

// MapKey normalizes "maps/c1a0.bsp" and "C1A0" to "c1a0".
func MapKey(mapName string) string {
	key := strings.ToLower(path.Base(strings.ReplaceAll(mapName, "\\", "/")))
	return strings.TrimSuffix(key, ".bsp")
}

// ThemeForMap returns the skybox theme of a level, or the default.
func (r *SkyboxResolver) ThemeForMap(mapName string) string {
	if theme, ok := r.themes[MapKey(mapName)]; ok {
		return theme
	}
	return r.defaultName
}

// SetFromMap resolves and remembers the theme for the level just loaded.
func (r *SkyboxResolver) SetFromMap(mapName string) string {
	theme := r.ThemeForMap(mapName)

	r.mu.Lock()
	r.mapTheme = theme
	r.resolutions++
	r.mu.Unlock()

	r.logger.Debug("resolved skybox for map", "map", mapName, "skybox", theme)
	return theme
}

// Resolutions counts SetFromMap calls.
func (r *SkyboxResolver) Resolutions() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolutions
}

// Current picks the sky the level asked for, falling back to the theme
// resolved for the map.
func (r *SkyboxResolver) Current(skyName string) string {
	if skyName != "" {
		return skyName
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mapTheme
}

// HDFace finds face of the named skybox in engine order, trying the HD set,
// then the SD set, then the default theme.
func (r *SkyboxResolver) HDFace(name string, face Face) render.TextureID {
	return r.hdFace(name, EngineSuffixes[face])
}

// SDFace is HDFace without the HD step.
func (r *SkyboxResolver) SDFace(name string, face Face) render.TextureID {
	return r.sdFace(name, EngineSuffixes[face])
}

// DeviceFace finds a face in the device's ordering, for the compositor
// skybox shown while loading.
func (r *SkyboxResolver) DeviceFace(name string, index int) render.TextureID {
	return r.hdFace(name, DeviceSuffixes[index])
}

func (r *SkyboxResolver) hdFace(name, suffix string) render.TextureID {
	if id := r.lookup.Texture("skybox/hd/" + name + suffix + ".png"); id != 0 {
		return id
	}
	r.logger.Debug("HD skybox texture not found, falling back to SD", "texture", name+suffix)
	return r.sdFace(name, suffix)
}

func (r *SkyboxResolver) sdFace(name, suffix string) render.TextureID {
	id := r.lookup.Texture("skybox/" + name + suffix + ".png")
	if id == 0 && name != r.defaultName {
		r.logger.Debug("skybox texture not found, falling back to default", "texture", name+suffix, "default", r.defaultName)
		id = r.lookup.Texture("skybox/" + r.defaultName + suffix + ".png")
	}
	return id
}
