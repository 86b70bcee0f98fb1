package main

/*
#include <stdlib.h>
*/
import "C" // required for -buildmode=c-shared

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/hlvr/vrcore/internal/assets"
	"github.com/hlvr/vrcore/internal/compositor"
	"github.com/hlvr/vrcore/internal/config"
	"github.com/hlvr/vrcore/internal/controller"
	"github.com/hlvr/vrcore/internal/dispatcher"
	"github.com/hlvr/vrcore/internal/influx"
	"github.com/hlvr/vrcore/internal/logging"
	"github.com/hlvr/vrcore/internal/monitor"
	intOtel "github.com/hlvr/vrcore/internal/otel"
	"github.com/hlvr/vrcore/internal/parser"
	"github.com/hlvr/vrcore/internal/pipeline"
	"github.com/hlvr/vrcore/internal/pose"
	"github.com/hlvr/vrcore/internal/session"
	"github.com/hlvr/vrcore/internal/storage"
	"github.com/hlvr/vrcore/internal/worker"
	"github.com/hlvr/vrcore/pkg/hostinterface"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentModuleVersion = "0.1.0"
	BuildDate            = "unknown"

	ModuleName = "hlvr_vrcore"
)

// file paths
var (
	// ModuleFolder is the folder the library was loaded from. The config
	// file and every relative path in it are resolved against it.
	ModuleFolder string

	LogFilePath string
	LogFile     *os.File

	SessionStartTime = time.Now()
)

// services
var (
	SlogManager  *logging.SlogManager
	Logger       *slog.Logger
	OTelProvider *intOtel.Provider

	Settings   *config.Watcher
	Sessions   *session.Context
	Dispatcher *dispatcher.Dispatcher
	Parser     *parser.Parser
	Registry   *controller.Registry
	Workers    *worker.Manager

	Pipeline       *pipeline.Pipeline
	StorageBackend storage.Backend
	InfluxManager  *influx.Manager
	Monitor        *monitor.Service

	// players is set when the engine attaches; commands sent before that
	// fail with worker.ErrUnknownPlayer
	players = &playerProxy{}
	models  = &modelProxy{}

	telemetryOnce sync.Once
)

func init() {
	if err := initModule(hostinterface.ModuleDir()); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", ModuleName, err)
	}
}

// initModule loads config, sets up logging and the command path, and
// registers the engine attach handler. Telemetry starts on attach.
func initModule(folder string) error {
	ModuleFolder = folder

	configErr := config.Load(ModuleFolder)

	SlogManager = logging.NewSlogManager()
	Sessions = session.NewContext(CurrentModuleVersion)
	SlogManager.SetContextProvider(Sessions.Attrs)

	var err error
	LogFile, err = logging.OpenLogFile(resolvePath(config.GetString("logsDir")), ModuleName, SessionStartTime)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log file: %v\n", err)
		LogFile = nil
	} else {
		LogFilePath = LogFile.Name()
	}

	otelCfg := config.GetOTelConfig()
	otelConfig := intOtel.Config{
		Enabled:      otelCfg.Enabled,
		ServiceName:  otelCfg.ServiceName,
		BatchTimeout: otelCfg.BatchTimeout,
		Endpoint:     otelCfg.Endpoint,
		Insecure:     otelCfg.Insecure,
	}
	if LogFile != nil {
		otelConfig.LogWriter = LogFile
	}
	OTelProvider, err = intOtel.New(otelConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize OTel: %v\n", err)
		OTelProvider, _ = intOtel.New(intOtel.Config{})
	}

	if LogFile != nil {
		SlogManager.Setup(LogFile, config.GetString("logLevel"), OTelProvider.LoggerProvider())
	} else {
		SlogManager.Setup(nil, config.GetString("logLevel"), OTelProvider.LoggerProvider())
	}
	Logger = SlogManager.Logger()
	slog.SetDefault(Logger)

	if configErr != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", configErr)
	} else {
		Logger.Info("Loaded config", "folder", ModuleFolder)
	}
	Logger.Info("Module starting", "version", CurrentModuleVersion, "build", BuildDate, "log", LogFilePath)

	Settings = config.NewWatcher()
	Settings.WatchFile(func(name string) {
		Logger.Info("Config file changed", "file", name)
	})

	if err := initCommands(); err != nil {
		return err
	}

	hostinterface.SetVersion(CurrentModuleVersion)
	hostinterface.SetLogger(Logger)
	hostinterface.OnAttach(attach)
	return nil
}

// initCommands builds the client command path: dispatcher, parser,
// controller registry and the worker handlers.
func initCommands() error {
	var err error
	// command logs go through zerolog as JSON, next to the render log
	zl := logging.NewZerolog(logWriter(), config.GetString("logLevel"))
	Dispatcher, err = dispatcher.New(logging.NewDispatcherLogger(zl))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	Parser = parser.NewParser(Logger)
	Registry = controller.NewRegistry(nil)
	Workers = worker.NewManager(worker.Dependencies{
		Parser:     Parser,
		Registry:   Registry,
		Players:    players,
		Models:     models,
		LogManager: SlogManager,
	})
	Workers.RegisterHandlers(Dispatcher)
	hostinterface.SetDispatcher(Dispatcher)

	Logger.Debug("Command handlers registered", "commands", Dispatcher.Commands())
	return nil
}

// attach builds the frame pipeline for a freshly attached engine and
// starts telemetry.
func attach(e hostinterface.Engine) (hostinterface.Hooks, error) {
	bindEngine(e)

	localPlayer := e.LocalPlayer
	if localPlayer == nil {
		localPlayer = func() mgl32.Vec3 { return mgl32.Vec3{} }
	}
	renderCfg := Settings.Current()

	provider := pose.NewProvider(pose.Dependencies{
		Device: e.Device,
		Input:  e.Input,
		Player: localPlayer,
		Logger: Logger,
	}, poseConfig(renderCfg))

	textures := assets.NewCache(e.Textures)
	skybox, err := assets.NewSkyboxResolver(textures, Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load skybox table: %w", err)
	}

	comp := compositor.New(compositor.Dependencies{
		Graphics:  e.Graphics,
		Targets:   e.Targets,
		Textures:  textures,
		Skybox:    skybox,
		HDEnabled: func() bool { return Settings.Current().HDTexturesEnabled },
		Logger:    Logger,
	})

	deps := pipeline.Dependencies{
		Pose:        provider,
		Graphics:    e.Graphics,
		Targets:     e.Targets,
		World:       e.World,
		Host:        e.Host,
		Input:       e.Controls,
		Overrides:   assets.NewOverrideManager(textures, skybox, Logger),
		Compositor:  comp,
		Settings:    Settings,
		Logger:      Logger,
		OnMapChange: onMapChange,
	}
	if e.LocalIndex > 0 {
		deps.ControllerSink = loopbackUpdates(e.LocalIndex)
	}
	Pipeline, err = pipeline.New(deps)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	startTelemetry()
	Logger.Info("Engine attached", "storage", config.GetStorageConfig().Type)
	return Pipeline, nil
}

// bindEngine points the command path at the engine's world: player slots,
// entity liveness and the hand model skeletons.
func bindEngine(e hostinterface.Engine) {
	players.set(e.Players)
	models.set(e.Models)
	Registry.SetValidator(e.Entities)
}

func poseConfig(r config.RenderConfig) pose.Config {
	return pose.Config{
		WorldScale:         r.WorldScale,
		MovementAttachment: r.MovementAttachment,
		LeftHanded:         r.LeftHanded,
	}
}

// loopbackUpdates sends the local controllers through the same command
// path remote clients use.
func loopbackUpdates(player int) func([]controller.Report) {
	return func(reports []controller.Report) {
		for _, rep := range reports {
			hostinterface.ServerCommand(player, "vrupd", parser.EncodeControllerUpdate(rep))
		}
	}
}

// onMapChange runs on the game thread. It only swaps the session context;
// the monitor moves the backend over on its next sample.
func onMapChange(mapName string) {
	Registry.Reset()
	started, ended := Sessions.Begin(mapName, Settings.Current())
	if ended != nil {
		Logger.Info("Level finished", "map", ended.MapName, "duration", ended.Duration())
	}
	Logger.Info("Level started", "map", started.MapName, "session", started.ID)
}

// startTelemetry opens the storage backend and InfluxDB and starts the
// monitor when telemetry is enabled.
func startTelemetry() {
	telemetryOnce.Do(func() {
		cfg := config.GetTelemetryConfig()
		if !cfg.Enabled {
			Logger.Info("Telemetry disabled")
			return
		}

		storageCfg := config.GetStorageConfig()
		storageCfg.Memory.OutputDir = resolvePath(storageCfg.Memory.OutputDir)
		storageCfg.SQLite.Path = resolvePath(storageCfg.SQLite.Path)

		backend, err := storage.NewBackend(storageCfg, SlogManager)
		if err == nil {
			err = backend.Init()
		}
		if err != nil {
			Logger.Error("Failed to initialize storage backend", "type", storageCfg.Type, "error", err)
			backend = nil
		} else {
			Logger.Info("Storage backend initialized", "type", storageCfg.Type)
		}
		StorageBackend = backend

		var points monitor.PointWriter
		zl := logging.NewZerolog(logWriter(), config.GetString("logLevel"))
		InfluxManager = influx.NewManager(config.GetInfluxConfig(), zl,
			filepath.Join(resolvePath(config.GetString("logsDir")), "influx_backup.lp.gz"))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := InfluxManager.Connect(ctx); err == nil {
			points = InfluxManager
		} else if !errors.Is(err, influx.ErrDisabled) {
			Logger.Error("Failed to connect to InfluxDB", "error", err)
		}

		Monitor = monitor.NewService(monitor.Dependencies{
			Pipeline:   Pipeline,
			Registry:   Registry,
			Updates:    Workers,
			Parser:     Parser,
			Commands:   Dispatcher,
			Sessions:   Sessions,
			Backend:    backend,
			Points:     points,
			Counters:   OTelProvider.Counters,
			LogManager: SlogManager,
			StatusFile: resolvePath(cfg.StatusFile),
			Interval:   cfg.Interval,
		})
		Monitor.Start()
	})
}

// shutdown stops telemetry and flushes every sink. The module stays usable
// for commands until the process exits.
func shutdown() {
	Logger.Info("Shutting down")
	hostinterface.Detach()
	if Monitor != nil {
		Monitor.Stop()
	}
	if StorageBackend != nil {
		if err := StorageBackend.Close(); err != nil {
			Logger.Error("Failed to close storage backend", "error", err)
		}
	}
	if InfluxManager != nil {
		if err := InfluxManager.Close(); err != nil {
			Logger.Error("Failed to close InfluxDB", "error", err)
		}
	}
	Dispatcher.Close()
	for _, c := range Dispatcher.Stats() {
		Logger.Info("Command totals", "command", c.Command, "dispatched", c.Dispatched,
			"processed", c.Processed, "dropped", c.Dropped, "failed", c.Failed)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := SlogManager.Flush(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to flush logs: %v\n", err)
	}
	if err := OTelProvider.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to shut down OTel: %v\n", err)
	}
	if LogFile != nil {
		LogFile.Close()
	}
}

func resolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(ModuleFolder, p)
}

func logWriter() *os.File {
	if LogFile != nil {
		return LogFile
	}
	return os.Stdout
}

// playerProxy forwards player lookups to the attached engine.
type playerProxy struct {
	lookup atomic.Pointer[hostinterface.PlayerLookup]
}

func (p *playerProxy) set(l hostinterface.PlayerLookup) {
	p.lookup.Store(&l)
}

func (p *playerProxy) Player(index int) (controller.Player, bool) {
	l := p.lookup.Load()
	if l == nil || *l == nil {
		return nil, false
	}
	return (*l).Player(index)
}

// modelProxy forwards skeleton lookups to the attached engine.
type modelProxy struct {
	lookup atomic.Pointer[controller.ModelLookup]
}

func (m *modelProxy) set(l controller.ModelLookup) {
	m.lookup.Store(&l)
}

func (m *modelProxy) ControllerModel(playerIndex int, id controller.ID) (controller.HitBoxSource, bool) {
	l := m.lookup.Load()
	if l == nil || *l == nil {
		return nil, false
	}
	return (*l).ControllerModel(playerIndex, id)
}

func (m *modelProxy) Time() float32 {
	l := m.lookup.Load()
	if l == nil || *l == nil {
		return 0
	}
	return (*l).Time()
}
