package core

import "time"

// FrameStats is one sample of the stereo pipeline counters. Counters are
// cumulative since the process started; the Delta fields cover the
// interval since the previous sample.
type FrameStats struct {
	SessionID         string    `json:"sessionId"`
	Time              time.Time `json:"time"`
	MapName           string    `json:"mapName"`
	Phase             string    `json:"phase"`
	InMenu            bool      `json:"inMenu"`
	InGame            bool      `json:"inGame"`
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

// HitBoxSample is one oriented hitbox of a controller model.
type HitBoxSample struct {
	Origin Vec3 `json:"origin"`
	Angles Vec3 `json:"angles"`
	Mins   Vec3 `json:"mins"`
	Maxs   Vec3 `json:"maxs"`
}

// ControllerSample is the state of one motion controller at sample time.
type ControllerSample struct {
	SessionID   string         `json:"sessionId"`
	Time        time.Time      `json:"time"`
	PlayerIndex int            `json:"playerIndex"`
	Controller  string         `json:"controller"`
	Position    Vec3           `json:"position"`
	Angles      Vec3           `json:"angles"`
	Velocity    Vec3           `json:"velocity"`
	IsValid     bool           `json:"isValid"`
	IsDragging  bool           `json:"isDragging"`
	IsMirrored  bool           `json:"isMirrored"`
	IsBlocked   bool           `json:"isBlocked"`
	WeaponID    int            `json:"weaponId"`
	LastUpdate  int            `json:"lastUpdate"`
	Radius      float32        `json:"radius"`
	HitBoxes    []HitBoxSample `json:"hitBoxes,omitempty"`
	Touched     int            `json:"touched"`
	Dragged     int            `json:"dragged"`
	Hit         int            `json:"hit"`
}
