// Package worker applies parsed client commands to the controller registry.
package worker

import (
	"errors"
	"sync/atomic"

	"github.com/hlvr/vrcore/internal/controller"
	"github.com/hlvr/vrcore/internal/logging"
	"github.com/hlvr/vrcore/internal/parser"
)

// ErrUnknownPlayer is returned when a command names a player slot that is
// not connected.
var ErrUnknownPlayer = errors.New("unknown player")

// PlayerLookup resolves the player that sent a command.
type PlayerLookup interface {
	Player(index int) (controller.Player, bool)
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Parser     *parser.Parser
	Registry   *controller.Registry
	Players    PlayerLookup
	Models     controller.ModelLookup
	LogManager *logging.SlogManager
}

// Manager owns the command handlers.
type Manager struct {
	deps    Dependencies
	applied atomic.Uint64
	stale   atomic.Uint64
}

func NewManager(deps Dependencies) *Manager {
	return &Manager{deps: deps}
}

// Counts returns how many controller updates were applied and how many
// were dropped by the registry as stale or invalid.
func (m *Manager) Counts() (applied, stale uint64) {
	return m.applied.Load(), m.stale.Load()
}
