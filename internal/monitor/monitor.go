// Package monitor samples the pipeline and controller state on a ticker and
// fans the samples out to the status file, the telemetry backend and
// InfluxDB. It also drives the backend's session lifecycle so that slow
// backends never block the game thread.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/hlvr/vrcore/internal/controller"
	"github.com/hlvr/vrcore/internal/dispatcher"
	"github.com/hlvr/vrcore/internal/logging"
	"github.com/hlvr/vrcore/internal/model/convert"
	"github.com/hlvr/vrcore/internal/pipeline"
	"github.com/hlvr/vrcore/internal/session"
	"github.com/hlvr/vrcore/internal/storage"
	"github.com/hlvr/vrcore/pkg/core"
)

// DefaultInterval is used when Dependencies.Interval is zero.
const DefaultInterval = 10 * time.Second

// StatsSource is the frame pipeline.
type StatsSource interface {
	Stats() pipeline.Stats
}

// SnapshotSource is the controller registry.
type SnapshotSource interface {
	Snapshots() []controller.Snapshot
}

// UpdateCounter reports applied and stale controller updates.
type UpdateCounter interface {
	Counts() (applied, stale uint64)
}

// RejectCounter reports malformed commands.
type RejectCounter interface {
	Rejected() uint64
}

// CommandSource reports per-command dispatcher totals.
type CommandSource interface {
	Stats() []dispatcher.CommandStats
}

// PointWriter receives every sample, e.g. the InfluxDB manager.
type PointWriter interface {
	WriteFrameStats(f core.FrameStats) error
	WriteControllerSample(c core.ControllerSample) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Pipeline   StatsSource
	Registry   SnapshotSource
	Updates    UpdateCounter
	Parser     RejectCounter
	Commands   CommandSource
	Sessions   *session.Context
	Backend    storage.Backend
	Points     PointWriter
	Counters   func(ctx context.Context) (map[string]int64, error)
	LogManager *logging.SlogManager
	StatusFile string
	Interval   time.Duration
}

// Status is the content of the status file.
type Status struct {
	Time        time.Time                 `json:"time"`
	Session     *core.Session             `json:"session,omitempty"`
	Frame       core.FrameStats           `json:"frame"`
	Controllers []core.ControllerSample   `json:"controllers"`
	Commands    []dispatcher.CommandStats `json:"commands,omitempty"`
	Counters    map[string]int64          `json:"counters,omitempty"`
}

// Service manages status monitoring
type Service struct {
	deps     Dependencies
	logger   *slog.Logger
	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}

	// owned by the sampling goroutine, or the caller of Sample
	active   *core.Session
	previous *core.FrameStats
	last     Status
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	logger := slog.Default()
	if deps.LogManager != nil {
		logger = deps.LogManager.Logger()
	}
	return &Service{deps: deps, logger: logger.With("component", "monitor")}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start starts the sampling goroutine
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})

	go s.loop(s.stopChan, s.doneChan)
}

// Stop takes a last sample, ends the running session on the backend and
// waits for the goroutine.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	done := s.doneChan
	s.mu.Unlock()

	<-done
}

func (s *Service) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	s.logger.Debug("Starting status monitor", "interval", s.deps.Interval)

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			s.Sample(context.Background(), time.Now())
			s.endActive(time.Now())
			return
		case now := <-ticker.C:
			s.Sample(context.Background(), now)
		}
	}
}

// Sample takes one sample at now. It is called by the goroutine and may be
// called directly when the service is not running.
func (s *Service) Sample(ctx context.Context, now time.Time) Status {
	s.syncSession(now)

	status := Status{Time: now, Session: s.active}
	sessionID := ""
	if s.active != nil {
		sessionID = s.active.ID
	}

	if s.deps.Pipeline != nil {
		status.Frame = convert.StatsToCore(s.deps.Pipeline.Stats(), s.previous, sessionID, now)
		if s.deps.Updates != nil {
			status.Frame.UpdatesApplied, status.Frame.UpdatesRejected = s.deps.Updates.Counts()
		}
		if s.deps.Parser != nil {
			status.Frame.UpdatesRejected += s.deps.Parser.Rejected()
		}
		prev := status.Frame
		s.previous = &prev
		s.record("frame stats", func(b storage.Backend) error { return b.RecordFrameStats(&status.Frame) })
		if s.deps.Points != nil {
			s.check("influx frame stats", s.deps.Points.WriteFrameStats(status.Frame))
		}
	}

	status.Controllers = []core.ControllerSample{}
	if s.deps.Registry != nil {
		snaps := s.deps.Registry.Snapshots()
		sort.Slice(snaps, func(i, j int) bool {
			if snaps[i].PlayerIndex != snaps[j].PlayerIndex {
				return snaps[i].PlayerIndex < snaps[j].PlayerIndex
			}
			return snaps[i].ID < snaps[j].ID
		})
		for _, snap := range snaps {
			sample := convert.SnapshotToCore(snap, sessionID, now)
			status.Controllers = append(status.Controllers, sample)
			s.record("controller sample", func(b storage.Backend) error { return b.RecordControllerSample(&sample) })
			if s.deps.Points != nil {
				s.check("influx controller sample", s.deps.Points.WriteControllerSample(sample))
			}
		}
	}

	if s.deps.Commands != nil {
		status.Commands = s.deps.Commands.Stats()
	}

	if s.deps.Counters != nil {
		counters, err := s.deps.Counters(ctx)
		s.check("otel counters", err)
		status.Counters = counters
	}

	if s.deps.StatusFile != "" {
		s.check("status file", WriteStatusFile(s.deps.StatusFile, status))
	}

	s.mu.Lock()
	s.last = status
	s.mu.Unlock()
	return status
}

// Last returns the most recent sample.
func (s *Service) Last() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// syncSession mirrors session changes onto the backend.
func (s *Service) syncSession(now time.Time) {
	if s.deps.Sessions == nil {
		return
	}
	cur, ok := s.deps.Sessions.Current()
	if s.active != nil && (!ok || cur.ID != s.active.ID) {
		s.endActive(now)
	}
	if ok && s.active == nil {
		started := cur
		s.active = &started
		s.previous = nil
		s.logger.Info("Session started", "session", started.ID, "map", started.MapName)
		if s.deps.Backend != nil {
			s.check("start session", s.deps.Backend.StartSession(s.active))
		}
	}
}

func (s *Service) endActive(now time.Time) {
	if s.active == nil {
		return
	}
	s.active.EndTime = now
	s.logger.Info("Session ended", "session", s.active.ID, "duration", s.active.Duration())
	if s.deps.Backend != nil {
		s.check("end session", s.deps.Backend.EndSession())
		if exp, ok := s.deps.Backend.(storage.Exporter); ok && exp.GetExportedFilePath() != "" {
			s.logger.Info("Session exported", "path", exp.GetExportedFilePath())
		}
	}
	s.active = nil
}

func (s *Service) record(what string, fn func(storage.Backend) error) {
	if s.deps.Backend == nil || s.active == nil {
		return
	}
	s.check(what, fn(s.deps.Backend))
}

func (s *Service) check(what string, err error) {
	if err != nil {
		s.logger.Warn("Monitor write failed", "target", what, "error", err)
	}
}

// WriteStatusFile replaces path with status as indented JSON.
func WriteStatusFile(path string, status Status) error {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Join(err, os.Remove(tmp))
	}
	return nil
}
