// Package core defines the telemetry records shared by every storage
// backend and the streaming protocol. It has no dependencies so external
// viewers can import it.
package core

import "time"

// Vec3 is an engine-space vector in inches.
type Vec3 [3]float32

// RenderSettings are the render flags in effect when a session started.
type RenderSettings struct {
	HDTextures         bool    `json:"hdTextures"`
	MultipassMode      int     `json:"multipassMode"`
	WorldScale         float32 `json:"worldScale"`
	MovementAttachment string  `json:"movementAttachment"`
	LeftHanded         bool    `json:"leftHanded"`
}

// Session is one level played from load to unload.
type Session struct {
	ID            string         `json:"id"`
	MapName       string         `json:"mapName"`
	StartTime     time.Time      `json:"startTime"`
	EndTime       time.Time      `json:"endTime,omitzero"`
	ModuleVersion string         `json:"moduleVersion"`
	Settings      RenderSettings `json:"settings"`
}

// Duration is zero while the session is running.
func (s Session) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}
