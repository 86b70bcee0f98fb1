// Package hostinterface is the boundary between the engine and the VR core.
// The engine drives the render hooks once per frame on its main thread and
// forwards the vr* console commands sent by clients. Everything here is
// plain Go; the cgo exports live in exports.go.
package hostinterface

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hlvr/vrcore/internal/dispatcher"
	"github.com/hlvr/vrcore/internal/pipeline"
	"github.com/hlvr/vrcore/internal/util"
	"github.com/hlvr/vrcore/internal/worker"
)

// Built-in commands answered without the dispatcher.
const (
	CommandVersion   = ":VERSION:"
	CommandTimestamp = ":TIMESTAMP:"
)

// Hooks are the render callbacks the engine invokes. The pipeline
// implements them.
type Hooks interface {
	CalcRefdef(params *pipeline.RefParams) pipeline.ViewResult
	DrawNormal()
	DrawTransparent()
	InterceptHUDRedraw(time float32, intermission int)
	Frame(time float64)
	HandSkeletalData(model string, isLeft bool) ([5]float32, bool)
}

// consoleCommands maps the client console names onto dispatcher commands.
var consoleCommands = map[string]string{
	"vrupd":    worker.CommandUpdate,
	"vrreset":  worker.CommandReset,
	"vrstatus": worker.CommandStatus,
	"vrlog":    worker.CommandLog,
}

type configStruct struct {
	mu         sync.RWMutex
	version    string
	dispatcher *dispatcher.Dispatcher
	hooks      Hooks
	attach     func(Engine) (Hooks, error)
	logger     *slog.Logger
}

// Config holds what the exported entry points route to.
var Config = configStruct{version: "No version set"}

// SetVersion sets the string returned by the version query.
func SetVersion(version string) {
	Config.mu.Lock()
	defer Config.mu.Unlock()
	Config.version = version
}

// Version returns the configured version string.
func Version() string {
	Config.mu.RLock()
	defer Config.mu.RUnlock()
	return Config.version
}

// SetDispatcher sets the dispatcher client commands are routed to.
func SetDispatcher(d *dispatcher.Dispatcher) {
	Config.mu.Lock()
	defer Config.mu.Unlock()
	Config.dispatcher = d
}

// GetDispatcher returns the configured dispatcher, or nil if not set
func GetDispatcher() *dispatcher.Dispatcher {
	Config.mu.RLock()
	defer Config.mu.RUnlock()
	return Config.dispatcher
}

// SetHooks installs the render hooks. Passing nil restores the engine's
// default behaviour.
func SetHooks(h Hooks) {
	Config.mu.Lock()
	defer Config.mu.Unlock()
	Config.hooks = h
}

// SetLogger sets the logger used to report recovered hook panics.
func SetLogger(l *slog.Logger) {
	Config.mu.Lock()
	defer Config.mu.Unlock()
	Config.logger = l
}

func current() (Hooks, *slog.Logger) {
	Config.mu.RLock()
	defer Config.mu.RUnlock()
	logger := Config.logger
	if logger == nil {
		logger = slog.Default()
	}
	return Config.hooks, logger
}

// recoverHook keeps a panic inside a hook from unwinding into the engine.
func recoverHook(name string, logger *slog.Logger) {
	if r := recover(); r != nil {
		logger.Error("Render hook panicked", "hook", name, "panic", r)
	}
}

// CalcRefdef computes the view for one render pass. Without hooks, or if
// the hook panics, the engine keeps its own camera.
func CalcRefdef(params *pipeline.RefParams) (result pipeline.ViewResult) {
	h, logger := current()
	result = pipeline.ViewDefault
	if h == nil {
		return result
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Render hook panicked", "hook", "CalcRefdef", "panic", r)
			result = pipeline.ViewDefault
		}
	}()
	return h.CalcRefdef(params)
}

func DrawNormal() {
	h, logger := current()
	if h == nil {
		return
	}
	defer recoverHook("DrawNormal", logger)
	h.DrawNormal()
}

func DrawTransparent() {
	h, logger := current()
	if h == nil {
		return
	}
	defer recoverHook("DrawTransparent", logger)
	h.DrawTransparent()
}

func InterceptHUDRedraw(time float32, intermission int) {
	h, logger := current()
	if h == nil {
		return
	}
	defer recoverHook("InterceptHUDRedraw", logger)
	h.InterceptHUDRedraw(time, intermission)
}

func Frame(time float64) {
	h, logger := current()
	if h == nil {
		return
	}
	defer recoverHook("Frame", logger)
	h.Frame(time)
}

// HandSkeletalData returns finger curls for a hand model, or false when the
// engine should animate the hand itself.
func HandSkeletalData(model string, isLeft bool) (curls [5]float32, ok bool) {
	h, logger := current()
	if h == nil {
		return curls, false
	}
	defer recoverHook("HandSkeletalData", logger)
	return h.HandSkeletalData(model, isLeft)
}

// ServerCommand handles one command sent by the client in slot player.
// command is either a console name (vrupd, vrreset, vrstatus, vrlog) or a
// dispatcher command. The reply is a JSON array starting with "ok" or
// "error".
func ServerCommand(player int, command string, args []string) string {
	switch command {
	case CommandVersion:
		return formatDispatchResponse(command, Version(), nil)
	case CommandTimestamp:
		return formatDispatchResponse(command, getTimestamp(), nil)
	}

	dispatchCommand := command
	if mapped, ok := consoleCommands[strings.ToLower(command)]; ok {
		dispatchCommand = mapped
	}

	d := GetDispatcher()
	if d == nil || !d.HasHandler(dispatchCommand) {
		return formatDispatchResponse(command, nil, fmt.Errorf("no handler registered"))
	}

	result, err := d.Dispatch(dispatcher.Event{
		Command:   dispatchCommand,
		Player:    player,
		Args:      util.CleanArgs(args),
		Timestamp: time.Now(),
	})
	return formatDispatchResponse(dispatchCommand, result, err)
}

// ServerCommandLine tokenizes a raw console line and handles it.
func ServerCommandLine(player int, line string) string {
	command, args := util.SplitCommand(line)
	if command == "" {
		return formatDispatchResponse("", nil, fmt.Errorf("empty command"))
	}
	return ServerCommand(player, command, args)
}

// formatDispatchResponse encodes a handler result for the caller.
func formatDispatchResponse(command string, result any, err error) string {
	var reply []any
	switch {
	case err != nil:
		reply = []any{"error", command, err.Error()}
	case result == nil:
		reply = []any{"ok", command}
	default:
		reply = []any{"ok", command, result}
	}
	data, mErr := json.Marshal(reply)
	if mErr != nil {
		data, _ = json.Marshal([]any{"error", command, mErr.Error()})
	}
	return string(data)
}

func getTimestamp() string {
	return fmt.Sprintf("%d", time.Now().UTC().UnixNano())
}
