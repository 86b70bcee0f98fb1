package hostinterface

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/hlvr/vrcore/internal/assets"
	"github.com/hlvr/vrcore/internal/controller"
	"github.com/hlvr/vrcore/internal/entity"
	"github.com/hlvr/vrcore/internal/pipeline"
	"github.com/hlvr/vrcore/internal/pose"
	"github.com/hlvr/vrcore/internal/render"
)

// ErrNoAttachHandler is returned by Attach before OnAttach was called.
var ErrNoAttachHandler = errors.New("no attach handler registered")

// Engine bundles the capabilities the engine binding provides. The fields
// after Players are optional.
type Engine struct {
	Device   pose.Device
	Input    pose.InputSink
	Graphics render.Graphics
	Targets  render.EyeTargets
	World    pipeline.World
	Host     pipeline.Host
	Controls pipeline.Input
	Textures assets.TextureLookup
	Players  PlayerLookup

	// Entities reports whether an entity handle still names a live
	// entity. Nil keeps every stored handle until it is removed.
	Entities entity.Validator
	// Models evaluates the hand model skeletons for controller hitboxes.
	// Nil leaves controllers without hitboxes.
	Models controller.ModelLookup
	// LocalPlayer returns the local player's origin for room-space
	// conversion. Nil means the world origin.
	LocalPlayer func() mgl32.Vec3
	// LocalIndex is the local player's slot on a listen server. When set,
	// the controller reports built each frame are applied as vrupd
	// commands from that slot.
	LocalIndex int
}

// PlayerLookup resolves connected players by slot.
type PlayerLookup interface {
	Player(index int) (controller.Player, bool)
}

// Validate reports the first missing capability.
func (e Engine) Validate() error {
	switch {
	case e.Device == nil:
		return fmt.Errorf("engine: missing device")
	case e.Graphics == nil:
		return fmt.Errorf("engine: missing graphics")
	case e.Targets == nil:
		return fmt.Errorf("engine: missing eye targets")
	case e.World == nil:
		return fmt.Errorf("engine: missing world")
	case e.Host == nil:
		return fmt.Errorf("engine: missing host")
	case e.Controls == nil:
		return fmt.Errorf("engine: missing input")
	case e.Textures == nil:
		return fmt.Errorf("engine: missing texture lookup")
	case e.Players == nil:
		return fmt.Errorf("engine: missing player lookup")
	}
	return nil
}

// OnAttach registers the function that builds the hooks for an engine.
// The module's entry point installs it at load time.
func OnAttach(fn func(Engine) (Hooks, error)) {
	Config.mu.Lock()
	defer Config.mu.Unlock()
	Config.attach = fn
}

// Attach is called by the engine binding once its capabilities exist. On
// success the returned hooks receive every following callback.
func Attach(e Engine) error {
	if err := e.Validate(); err != nil {
		return err
	}
	Config.mu.RLock()
	fn := Config.attach
	Config.mu.RUnlock()
	if fn == nil {
		return ErrNoAttachHandler
	}
	h, err := fn(e)
	if err != nil {
		return fmt.Errorf("attach: %w", err)
	}
	SetHooks(h)
	return nil
}

// Detach stops forwarding callbacks; the engine falls back to its own
// camera.
func Detach() {
	SetHooks(nil)
}
