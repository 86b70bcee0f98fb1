// Package memory keeps session telemetry in memory and exports it to JSON
// when the session ends.
package memory

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hlvr/vrcore/internal/config"
	"github.com/hlvr/vrcore/pkg/core"
)

// ErrNoSession is returned when telemetry arrives outside a session.
var ErrNoSession = errors.New("no active session")

// ControllerRecord groups every sample of one controller
type ControllerRecord struct {
	PlayerIndex int
	Controller  string
	Samples     []core.ControllerSample
}

// Backend stores session data in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session

	frameStats  []core.FrameStats
	controllers map[string]*ControllerRecord // keyed by player:controller

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:         cfg,
		controllers: make(map[string]*ControllerRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.session = s
	b.frameStats = nil
	b.controllers = make(map[string]*ControllerRecord)
	return nil
}

// EndSession exports the session data and forgets it
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	err := b.exportJSON()
	b.session = nil
	return err
}

// RecordFrameStats appends a pipeline counter sample
func (b *Backend) RecordFrameStats(f *core.FrameStats) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	b.frameStats = append(b.frameStats, *f)
	return nil
}

// RecordControllerSample appends a sample to its controller's record
func (b *Backend) RecordControllerSample(c *core.ControllerSample) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	key := fmt.Sprintf("%d:%s", c.PlayerIndex, c.Controller)
	rec, ok := b.controllers[key]
	if !ok {
		rec = &ControllerRecord{PlayerIndex: c.PlayerIndex, Controller: c.Controller}
		b.controllers[key] = rec
	}
	rec.Samples = append(rec.Samples, *c)
	return nil
}

// GetExportedFilePath returns the file written by the last EndSession
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// FrameStats returns a copy of the recorded frame samples
func (b *Backend) FrameStats() []core.FrameStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]core.FrameStats, len(b.frameStats))
	copy(out, b.frameStats)
	return out
}

// Controller returns the record of one controller, if any samples exist
func (b *Backend) Controller(playerIndex int, controller string) (ControllerRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.controllers[fmt.Sprintf("%d:%s", playerIndex, controller)]
	if !ok {
		return ControllerRecord{}, false
	}
	cp := *rec
	cp.Samples = append([]core.ControllerSample(nil), rec.Samples...)
	return cp, true
}
