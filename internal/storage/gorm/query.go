package gormstorage

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/hlvr/vrcore/internal/model"
	"github.com/hlvr/vrcore/internal/model/convert"
	"github.com/hlvr/vrcore/internal/storage/memory"
	"github.com/hlvr/vrcore/pkg/core"
)

// ErrSessionNotFound is returned by LoadSession for an unknown uuid.
var ErrSessionNotFound = errors.New("session not found")

// SessionSummary is one row of ListSessions.
type SessionSummary struct {
	core.Session
	FrameStats        int64 `json:"frameStats"`
	ControllerSamples int64 `json:"controllerSamples"`
}

// ListSessions returns stored sessions, newest first. limit <= 0 returns
// all of them.
func ListSessions(db *gorm.DB, limit int) ([]SessionSummary, error) {
	var rows []model.Session
	q := db.Model(&model.Session{}).Order("start_time DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error getting sessions: %w", err)
	}

	out := make([]SessionSummary, 0, len(rows))
	for _, row := range rows {
		s := SessionSummary{Session: convert.SessionToCore(row)}
		if err := db.Model(&model.FrameStat{}).Where("session_id = ?", row.ID).Count(&s.FrameStats).Error; err != nil {
			return nil, fmt.Errorf("error counting frame stats: %w", err)
		}
		if err := db.Model(&model.ControllerSample{}).Where("session_id = ?", row.ID).Count(&s.ControllerSamples).Error; err != nil {
			return nil, fmt.Errorf("error counting controller samples: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}

// LoadSession reads one session and all its rows in the layout the memory
// backend exports.
func LoadSession(db *gorm.DB, sessionID string) (memory.SessionExport, error) {
	var row model.Session
	err := db.Model(&model.Session{}).Where("session_id = ?", sessionID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return memory.SessionExport{}, fmt.Errorf("%s: %w", sessionID, ErrSessionNotFound)
	}
	if err != nil {
		return memory.SessionExport{}, fmt.Errorf("error getting session: %w", err)
	}

	var frameRows []model.FrameStat
	if err := db.Where("session_id = ?", row.ID).Order("time ASC, id ASC").Find(&frameRows).Error; err != nil {
		return memory.SessionExport{}, fmt.Errorf("error getting frame stats: %w", err)
	}
	frames := make([]core.FrameStats, 0, len(frameRows))
	for _, f := range frameRows {
		frames = append(frames, convert.FrameStatToCore(f, row.SessionID))
	}

	var sampleRows []model.ControllerSample
	if err := db.Where("session_id = ?", row.ID).Order("time ASC, id ASC").Find(&sampleRows).Error; err != nil {
		return memory.SessionExport{}, fmt.Errorf("error getting controller samples: %w", err)
	}
	samples := make([]core.ControllerSample, 0, len(sampleRows))
	for _, c := range sampleRows {
		samples = append(samples, convert.ControllerSampleToCore(c, row.SessionID))
	}

	return memory.NewExport(convert.SessionToCore(row), frames, samples), nil
}
