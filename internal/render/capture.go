package render

import (
	"errors"
	"fmt"

	"github.com/hlvr/vrcore/internal/vrmath"
)

var (
	// ErrCaptureOpen is returned when a capture is opened while another one
	// still exists.
	ErrCaptureOpen = errors.New("capture already open")
	// ErrNoCapture is returned when there is nothing to close or replay.
	ErrNoCapture = errors.New("no capture")
)

// CommandBuffer records the engine's scene draw once so it can be replayed
// for each eye. At most one recorded buffer exists at a time.
type CommandBuffer struct {
	gfx       Graphics
	id        BufferID
	exists    bool
	recording bool
	mode      RecordMode
}

func NewCommandBuffer(g Graphics) *CommandBuffer {
	return &CommandBuffer{gfx: g}
}

// Open allocates a buffer and starts recording into it.
func (c *CommandBuffer) Open(mode RecordMode) error {
	if c.exists {
		return ErrCaptureOpen
	}
	id, err := c.gfx.GenBuffer()
	if err != nil {
		return fmt.Errorf("gen buffer: %w", err)
	}
	c.id = id
	c.exists = true
	c.mode = mode
	if err := c.gfx.BeginRecord(id, mode); err != nil {
		c.release()
		return fmt.Errorf("begin record: %w", err)
	}
	c.recording = true
	return nil
}

// Close stops recording. The buffer stays available for Replay.
func (c *CommandBuffer) Close() error {
	if !c.recording {
		return ErrNoCapture
	}
	c.recording = false
	if err := c.gfx.EndRecord(); err != nil {
		return fmt.Errorf("end record: %w", err)
	}
	return nil
}

// Replay executes the recorded commands.
func (c *CommandBuffer) Replay() error {
	if !c.exists || c.recording {
		return ErrNoCapture
	}
	if err := c.gfx.Replay(c.id); err != nil {
		return fmt.Errorf("replay %d: %w", c.id, err)
	}
	return nil
}

// Discard ends any recording in progress and deletes the buffer. It is safe
// to call when nothing is open; it reports whether a buffer was released.
func (c *CommandBuffer) Discard() (bool, error) {
	if !c.exists {
		return false, nil
	}
	var err error
	if c.recording {
		c.recording = false
		if endErr := c.gfx.EndRecord(); endErr != nil {
			err = fmt.Errorf("end record: %w", endErr)
		}
	}
	if delErr := c.release(); delErr != nil {
		err = errors.Join(err, delErr)
	}
	return true, err
}

func (c *CommandBuffer) release() error {
	id := c.id
	c.exists = false
	c.recording = false
	c.id = 0
	if err := c.gfx.DeleteBuffer(id); err != nil {
		return fmt.Errorf("delete buffer %d: %w", id, err)
	}
	return nil
}

// Active reports whether a buffer is allocated.
func (c *CommandBuffer) Active() bool { return c.exists }

// Recording reports whether commands are currently being captured.
func (c *CommandBuffer) Recording() bool { return c.recording }

// Mode is the record mode of the current buffer.
func (c *CommandBuffer) Mode() RecordMode { return c.mode }

// ReplayStrategy decides how the captured scene reaches both eyes.
type ReplayStrategy interface {
	Name() string
	RecordMode() RecordMode
	// ReplayEyes lists the eyes that must be drawn from the buffer after the
	// capture closes.
	ReplayEyes() []vrmath.Eye
}

type doubleReplay struct{}

func (doubleReplay) Name() string           { return "double_replay" }
func (doubleReplay) RecordMode() RecordMode { return RecordOnly }
func (doubleReplay) ReplayEyes() []vrmath.Eye {
	return []vrmath.Eye{vrmath.EyeLeft, vrmath.EyeRight}
}

type mixed struct{}

func (mixed) Name() string           { return "mixed" }
func (mixed) RecordMode() RecordMode { return RecordAndExecute }
func (mixed) ReplayEyes() []vrmath.Eye {
	return []vrmath.Eye{vrmath.EyeRight}
}

// DoubleReplay records without drawing and replays the buffer for both eyes.
var DoubleReplay ReplayStrategy = doubleReplay{}

// Mixed draws the left eye live while recording and replays only the right.
var Mixed ReplayStrategy = mixed{}

// StrategyFor maps the multipass mode setting to a strategy. Unknown values
// fall back to DoubleReplay.
func StrategyFor(multipassMode int) ReplayStrategy {
	if multipassMode == 1 {
		return Mixed
	}
	return DoubleReplay
}
