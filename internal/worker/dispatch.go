package worker

import (
	"fmt"
	"log/slog"

	"github.com/hlvr/vrcore/internal/controller"
	"github.com/hlvr/vrcore/internal/dispatcher"
)

// Command names routed by the dispatcher.
const (
	CommandUpdate = ":VR:UPDATE:"
	CommandReset  = ":VR:RESET:"
	CommandStatus = ":VR:STATUS:"
	CommandLog    = ":VR:LOG:"
)

// RegisterHandlers registers all command handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// updates apply in arrival order on one queue; when it backs up a newer
	// pose supersedes the oldest waiting one
	d.Register(CommandUpdate, m.handleUpdate, dispatcher.Buffered(1024), dispatcher.Latest(), dispatcher.Logged())

	// resets and status queries answer the caller directly
	d.Register(CommandReset, m.handleReset, dispatcher.Logged())
	d.Register(CommandStatus, m.handleStatus)

	d.Register(CommandLog, m.handleLog, dispatcher.Buffered(256))
}

func (m *Manager) player(index int) (controller.Player, error) {
	if m.deps.Players == nil {
		return nil, fmt.Errorf("player %d: %w", index, ErrUnknownPlayer)
	}
	p, ok := m.deps.Players.Player(index)
	if !ok {
		return nil, fmt.Errorf("player %d: %w", index, ErrUnknownPlayer)
	}
	return p, nil
}

func (m *Manager) handleUpdate(e dispatcher.Event) (any, error) {
	rep, err := m.deps.Parser.ParseControllerUpdate(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse controller update: %w", err)
	}

	p, err := m.player(e.Player)
	if err != nil {
		return nil, err
	}

	if !m.deps.Registry.Apply(p, rep) {
		m.stale.Add(1)
		return "stale", nil
	}
	m.applied.Add(1)
	m.deps.Registry.RefreshHitBoxes(e.Player, rep.ID, m.deps.Models)
	return "applied", nil
}

func (m *Manager) handleReset(e dispatcher.Event) (any, error) {
	id, one, err := m.deps.Parser.ParseReset(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse controller reset: %w", err)
	}
	if one {
		if m.deps.Registry.ResetController(e.Player, id) {
			return 1, nil
		}
		return 0, nil
	}
	return m.deps.Registry.ResetPlayer(e.Player), nil
}

// handleStatus returns the snapshots of the calling player's controllers.
func (m *Manager) handleStatus(e dispatcher.Event) (any, error) {
	var out []controller.Snapshot
	for _, s := range m.deps.Registry.Snapshots() {
		if s.PlayerIndex == e.Player {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Manager) handleLog(e dispatcher.Event) (any, error) {
	msg, err := m.deps.Parser.ParseLogMessage(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log message: %w", err)
	}
	if m.deps.LogManager != nil {
		m.deps.LogManager.Forward(msg.Source, msg.Level, msg.Message, slog.Int("player", e.Player))
	}
	return nil, nil
}
