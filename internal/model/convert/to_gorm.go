// Package convert provides functions to convert between GORM models, core
// telemetry records and live runtime state
package convert

import (
	"encoding/json"

	"github.com/hlvr/vrcore/internal/model"
	"github.com/hlvr/vrcore/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// vecToPoint converts an engine-space vector to a 3D geom.Point
func vecToPoint(v core.Vec3) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: float64(v[0]), Y: float64(v[1])},
		Z:    float64(v[2]),
		Type: geom.DimXYZ,
	})
}

// toJSON marshals v for a JSON column; nil and empty slices become "[]".
func toJSON(v any) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(data)
}

// CoreToSession converts a core.Session to a GORM model.Session.
// core.Session.ID maps to GORM Session.SessionID.
func CoreToSession(s core.Session) model.Session {
	out := model.Session{
		SessionID:     s.ID,
		MapName:       s.MapName,
		StartTime:     s.StartTime,
		ModuleVersion: s.ModuleVersion,
		Settings:      toJSON(s.Settings),
	}
	if !s.EndTime.IsZero() {
		end := s.EndTime
		out.EndTime = &end
	}
	return out
}

// CoreToFrameStat converts a core.FrameStats to a GORM model.FrameStat
// belonging to the session row sessionID.
func CoreToFrameStat(f core.FrameStats, sessionID uint) model.FrameStat {
	return model.FrameStat{
		Time:              f.Time,
		SessionID:         sessionID,
		MapName:           f.MapName,
		Phase:             f.Phase,
		InMenu:            f.InMenu,
		InGame:            f.InGame,
		StereoFrames:      f.StereoFrames,
		FallbackFrames:    f.FallbackFrames,
		DiscardedCaptures: f.DiscardedCaptures,
		SkyboxFaceErrors:  f.SkyboxFaceErrors,
		ReplayErrors:      f.ReplayErrors,
		StaleCalls:        f.StaleCalls,
		StereoDelta:       f.StereoDelta,
		FallbackDelta:     f.FallbackDelta,
		UpdatesApplied:    f.UpdatesApplied,
		UpdatesRejected:   f.UpdatesRejected,
	}
}

// CoreToControllerSample converts a core.ControllerSample to a GORM
// model.ControllerSample belonging to the session row sessionID.
func CoreToControllerSample(c core.ControllerSample, sessionID uint) model.ControllerSample {
	return model.ControllerSample{
		Time:        c.Time,
		SessionID:   sessionID,
		PlayerIndex: c.PlayerIndex,
		Controller:  c.Controller,
		Position:    vecToPoint(c.Position),
		Angles:      toJSON(c.Angles),
		Velocity:    toJSON(c.Velocity),
		IsValid:     c.IsValid,
		IsDragging:  c.IsDragging,
		IsMirrored:  c.IsMirrored,
		IsBlocked:   c.IsBlocked,
		WeaponID:    c.WeaponID,
		LastUpdate:  c.LastUpdate,
		Radius:      c.Radius,
		HitBoxes:    toJSON(c.HitBoxes),
		Touched:     c.Touched,
		Dragged:     c.Dragged,
		Hit:         c.Hit,
	}
}
