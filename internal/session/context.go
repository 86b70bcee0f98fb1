// Package session tracks the level being played. A session starts on every
// map change and ends on the next one or at shutdown.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hlvr/vrcore/internal/config"
	"github.com/hlvr/vrcore/pkg/core"
)

// Context holds the current session
type Context struct {
	mu      sync.RWMutex
	current *core.Session
	version string
	now     func() time.Time
}

// NewContext creates a Context with no running session
func NewContext(moduleVersion string) *Context {
	return &Context{version: moduleVersion, now: time.Now}
}

// Begin starts a session on mapName, ending the running one. The ended
// session is returned when there was one.
func (c *Context) Begin(mapName string, render config.RenderConfig) (started core.Session, ended *core.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.current != nil {
		prev := *c.current
		prev.EndTime = now
		ended = &prev
	}

	c.current = &core.Session{
		ID:            uuid.NewString(),
		MapName:       mapName,
		StartTime:     now,
		ModuleVersion: c.version,
		Settings:      Settings(render),
	}
	return *c.current, ended
}

// End stops the running session.
func (c *Context) End() (core.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return core.Session{}, false
	}
	ended := *c.current
	ended.EndTime = c.now()
	c.current = nil
	return ended, true
}

// Current returns the running session
func (c *Context) Current() (core.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return core.Session{}, false
	}
	return *c.current, true
}

// Attrs describes the running session for log records.
func (c *Context) Attrs() []slog.Attr {
	s, ok := c.Current()
	if !ok {
		return nil
	}
	return []slog.Attr{slog.String("session", s.ID), slog.String("map", s.MapName)}
}

// Settings copies the render flags recorded with a session.
func Settings(r config.RenderConfig) core.RenderSettings {
	return core.RenderSettings{
		HDTextures:         r.HDTexturesEnabled,
		MultipassMode:      r.MultipassMode,
		WorldScale:         r.WorldScale,
		MovementAttachment: r.MovementAttachment,
		LeftHanded:         r.LeftHanded,
	}
}
