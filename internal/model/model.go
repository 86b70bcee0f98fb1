package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&FrameStat{},
	&ControllerSample{},
}

// Session is one level played from load to unload
type Session struct {
	gorm.Model
	SessionID     string         `json:"sessionId" gorm:"size:36;uniqueIndex:idx_session_uuid"`
	MapName       string         `json:"mapName" gorm:"size:128;index:idx_session_map"`
	StartTime     time.Time      `json:"startTime" gorm:"type:timestamptz;index:idx_session_start"`
	EndTime       *time.Time     `json:"endTime" gorm:"type:timestamptz"`
	ModuleVersion string         `json:"moduleVersion" gorm:"size:64"`
	Settings      datatypes.JSON `json:"settings"`

	FrameStats        []FrameStat
	ControllerSamples []ControllerSample
}

func (*Session) TableName() string {
	return "sessions"
}

// FrameStat is one periodic sample of the stereo pipeline counters
type FrameStat struct {
	ID                uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time              time.Time `json:"time" gorm:"type:timestamptz;index:idx_framestat_time"`
	SessionID         uint      `json:"sessionId" gorm:"index:idx_framestat_session_id"`
	Session           Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	MapName           string    `json:"mapName" gorm:"size:128"`
	Phase             string    `json:"phase" gorm:"size:32"`
	InMenu            bool      `json:"inMenu" gorm:"default:false"`
	InGame            bool      `json:"inGame" gorm:"default:false"`
	StereoFrames      uint64    `json:"stereoFrames"`
	FallbackFrames    uint64    `json:"fallbackFrames"`
	DiscardedCaptures uint64    `json:"discardedCaptures"`
	SkyboxFaceErrors  uint64    `json:"skyboxFaceErrors"`
	ReplayErrors      uint64    `json:"replayErrors"`
	StaleCalls        uint64    `json:"staleCalls"`
	StereoDelta       uint64    `json:"stereoDelta"`
	FallbackDelta     uint64    `json:"fallbackDelta"`
	UpdatesApplied    uint64    `json:"updatesApplied"`
	UpdatesRejected   uint64    `json:"updatesRejected"`
}

func (*FrameStat) TableName() string {
	return "frame_stats"
}

// ControllerSample is the state of one motion controller at sample time
type ControllerSample struct {
	ID          uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time        time.Time `json:"time" gorm:"type:timestamptz;index:idx_controllersample_time"`
	SessionID   uint      `json:"sessionId" gorm:"index:idx_controllersample_session_id"`
	Session     Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	PlayerIndex int       `json:"playerIndex" gorm:"index:idx_controllersample_player"`
	Controller  string    `json:"controller" gorm:"size:8"`

	Position   geom.Point     `json:"position"` // engine units, XYZ
	Angles     datatypes.JSON `json:"angles"`
	Velocity   datatypes.JSON `json:"velocity"`
	IsValid    bool           `json:"isValid" gorm:"default:false"`
	IsDragging bool           `json:"isDragging" gorm:"default:false"`
	IsMirrored bool           `json:"isMirrored" gorm:"default:false"`
	IsBlocked  bool           `json:"isBlocked" gorm:"default:false"`
	WeaponID   int            `json:"weaponId"`
	LastUpdate int            `json:"lastUpdate"`
	Radius     float32        `json:"radius"`
	HitBoxes   datatypes.JSON `json:"hitBoxes"`
	Touched    int            `json:"touched"`
	Dragged    int            `json:"dragged"`
	Hit        int            `json:"hit"`
}

func (*ControllerSample) TableName() string {
	return "controller_samples"
}
