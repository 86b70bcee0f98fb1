package convert

import (
	"encoding/json"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/hlvr/vrcore/internal/controller"
	"github.com/hlvr/vrcore/internal/model"
	"github.com/hlvr/vrcore/internal/pipeline"
	"github.com/hlvr/vrcore/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// pointToVec converts a stored geom.Point back to an engine-space vector
func pointToVec(p geom.Point) core.Vec3 {
	coord, ok := p.Coordinates()
	if !ok {
		return core.Vec3{}
	}
	return core.Vec3{float32(coord.XY.X), float32(coord.XY.Y), float32(coord.Z)}
}

func fromMgl(v mgl32.Vec3) core.Vec3 {
	return core.Vec3{v[0], v[1], v[2]}
}

// SessionToCore converts a GORM Session to a core.Session.
func SessionToCore(s model.Session) core.Session {
	out := core.Session{
		ID:            s.SessionID,
		MapName:       s.MapName,
		StartTime:     s.StartTime,
		ModuleVersion: s.ModuleVersion,
	}
	if s.EndTime != nil {
		out.EndTime = *s.EndTime
	}
	if len(s.Settings) > 0 {
		_ = json.Unmarshal(s.Settings, &out.Settings)
	}
	return out
}

// FrameStatToCore converts a GORM FrameStat to a core.FrameStats. The
// session is identified by its uuid.
func FrameStatToCore(f model.FrameStat, sessionID string) core.FrameStats {
	return core.FrameStats{
		SessionID:         sessionID,
		Time:              f.Time,
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

// ControllerSampleToCore converts a GORM ControllerSample to a
// core.ControllerSample. The session is identified by its uuid.
func ControllerSampleToCore(c model.ControllerSample, sessionID string) core.ControllerSample {
	out := core.ControllerSample{
		SessionID:   sessionID,
		Time:        c.Time,
		PlayerIndex: c.PlayerIndex,
		Controller:  c.Controller,
		Position:    pointToVec(c.Position),
		IsValid:     c.IsValid,
		IsDragging:  c.IsDragging,
		IsMirrored:  c.IsMirrored,
		IsBlocked:   c.IsBlocked,
		WeaponID:    c.WeaponID,
		LastUpdate:  c.LastUpdate,
		Radius:      c.Radius,
		Touched:     c.Touched,
		Dragged:     c.Dragged,
		Hit:         c.Hit,
	}
	_ = json.Unmarshal(c.Angles, &out.Angles)
	_ = json.Unmarshal(c.Velocity, &out.Velocity)
	if len(c.HitBoxes) > 0 && string(c.HitBoxes) != "[]" {
		_ = json.Unmarshal(c.HitBoxes, &out.HitBoxes)
	}
	return out
}

// SnapshotToCore converts a live controller snapshot into a telemetry sample.
func SnapshotToCore(s controller.Snapshot, sessionID string, at time.Time) core.ControllerSample {
	out := core.ControllerSample{
		SessionID:   sessionID,
		Time:        at,
		PlayerIndex: s.PlayerIndex,
		Controller:  s.ID.String(),
		Position:    fromMgl(s.Position),
		Angles:      fromMgl(s.Angles),
		Velocity:    fromMgl(s.Velocity),
		IsValid:     s.IsValid,
		IsDragging:  s.IsDragging,
		IsMirrored:  s.IsMirrored,
		IsBlocked:   s.IsBlocked,
		WeaponID:    s.WeaponID,
		LastUpdate:  s.LastUpdate,
		Radius:      s.Radius,
		Touched:     s.Touched,
		Dragged:     s.Dragged,
		Hit:         s.Hit,
	}
	if len(s.HitBoxes) > 0 {
		out.HitBoxes = make([]core.HitBoxSample, len(s.HitBoxes))
		for i, b := range s.HitBoxes {
			out.HitBoxes[i] = core.HitBoxSample{
				Origin: fromMgl(b.Origin),
				Angles: fromMgl(b.Angles),
				Mins:   fromMgl(b.Mins),
				Maxs:   fromMgl(b.Maxs),
			}
		}
	}
	return out
}

// StatsToCore converts pipeline counters into a frame stats sample. prev is
// the previous sample, used for the delta fields; pass nil for the first one.
func StatsToCore(s pipeline.Stats, prev *core.FrameStats, sessionID string, at time.Time) core.FrameStats {
	out := core.FrameStats{
		SessionID:         sessionID,
		Time:              at,
		MapName:           s.MapName,
		Phase:             s.Phase.String(),
		InMenu:            s.InMenu,
		InGame:            s.InGame,
		StereoFrames:      s.StereoFrames,
		FallbackFrames:    s.FallbackFrames,
		DiscardedCaptures: s.DiscardedCaptures,
		SkyboxFaceErrors:  s.SkyboxFaceErrors,
		ReplayErrors:      s.ReplayErrors,
		StaleCalls:        s.StaleCalls,
		StereoDelta:       s.StereoFrames,
		FallbackDelta:     s.FallbackFrames,
	}
	if prev != nil {
		out.StereoDelta = delta(s.StereoFrames, prev.StereoFrames)
		out.FallbackDelta = delta(s.FallbackFrames, prev.FallbackFrames)
	}
	return out
}

// delta tolerates a counter reset after Reset().
func delta(cur, prev uint64) uint64 {
	if cur < prev {
		return cur
	}
	return cur - prev
}
