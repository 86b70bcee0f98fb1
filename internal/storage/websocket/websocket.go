// Package websocket streams telemetry to a live debug viewer.
package websocket

import (
	"fmt"
	"log/slog"

	"github.com/hlvr/vrcore/internal/logging"
	"github.com/hlvr/vrcore/pkg/core"
	"github.com/hlvr/vrcore/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams session telemetry over WebSocket. Lifecycle messages wait
// for an ack; samples are fire-and-forget.
type Backend struct {
	conn *connection
	cfg  Config
}

// New creates a new WebSocket storage backend. A nil logManager logs to
// slog.Default.
func New(cfg Config, logManager *logging.SlogManager) *Backend {
	logger := slog.Default()
	if logManager != nil {
		logger = logManager.Logger()
	}
	return &Backend{
		conn: newConnection(logger.With("component", "websocket")),
		cfg:  cfg,
	}
}

// Init connects to the viewer.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the viewer.
func (b *Backend) Close() error {
	return b.conn.close()
}

// Dropped counts samples discarded because the send buffer was full.
func (b *Backend) Dropped() uint64 {
	return b.conn.dropped.Load()
}

// Reconnects counts successful reconnects.
func (b *Backend) Reconnects() uint64 {
	return b.conn.reconnects.Load()
}

func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := streaming.Encode(msgType, payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msgType, err)
	}
	b.conn.send(data)
	return nil
}

// StartSession announces the session and waits for the viewer's ack.
func (b *Backend) StartSession(s *core.Session) error {
	data, err := streaming.Encode(streaming.TypeStartSession, streaming.StartSessionPayload{Session: s})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", streaming.TypeStartSession, err)
	}
	b.conn.setSession(data)
	return b.conn.sendAndWait(data, streaming.TypeStartSession, ackTimeout)
}

// EndSession sends end_session and waits for the viewer's ack.
func (b *Backend) EndSession() error {
	data, err := streaming.Encode(streaming.TypeEndSession, nil)
	if err != nil {
		return err
	}
	err = b.conn.sendAndWait(data, streaming.TypeEndSession, ackTimeout)
	b.conn.setSession(nil)
	return err
}

func (b *Backend) RecordFrameStats(f *core.FrameStats) error {
	return b.sendEnvelope(streaming.TypeFrameStats, f)
}

func (b *Backend) RecordControllerSample(c *core.ControllerSample) error {
	return b.sendEnvelope(streaming.TypeControllerSample, c)
}
