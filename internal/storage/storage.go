// Package storage defines the telemetry sink every backend implements.
package storage

import "github.com/hlvr/vrcore/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s *core.Session) error
	EndSession() error

	// Telemetry recording
	RecordFrameStats(f *core.FrameStats) error
	RecordControllerSample(c *core.ControllerSample) error
}

// Exporter is an optional interface for backends that write a file when
// a session ends.
type Exporter interface {
	GetExportedFilePath() string
}
