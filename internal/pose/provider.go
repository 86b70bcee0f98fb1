package pose

import (
	"log/slog"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/hlvr/vrcore/internal/controller"
	"github.com/hlvr/vrcore/internal/vrmath"
)

const (
	// HullHalfHeight is the distance from a standing player's origin to the
	// floor.
	HullHalfHeight float32 = 36
	// StandingViewHeight is the engine's standing eye offset.
	StandingViewHeight float32 = 28
)

// Movement attachment modes.
const (
	MovementHMD  = "hmd"
	MovementHand = "hand"
)

// Config controls the conversion into engine space.
type Config struct {
	WorldScale         float32
	MovementAttachment string
	LeftHanded         bool
}

// Dependencies are the collaborators of a Provider.
type Dependencies struct {
	Device Device
	Input  InputSink
	// Player returns the local player's origin.
	Player func() mgl32.Vec3
	Clock  func() time.Time
	Logger *slog.Logger
}

type frameTransform struct {
	pose TrackedPose
	at   time.Time
}

// Provider caches the current and previous frame's transforms.
type Provider struct {
	mu     sync.RWMutex
	deps   Dependencies
	cfg    Config
	logger *slog.Logger

	viewOfs mgl32.Vec3

	head     frameTransform
	prevHead frameTransform
	ctrl     [2]frameTransform
	prevCtrl [2]frameTransform

	quitRequested bool
	activeDevices map[int]struct{}
}

func NewProvider(deps Dependencies, cfg Config) *Provider {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Player == nil {
		deps.Player = func() mgl32.Vec3 { return mgl32.Vec3{} }
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WorldScale <= 0 {
		cfg.WorldScale = 1
	}
	return &Provider{
		deps:          deps,
		cfg:           cfg,
		logger:        logger.With("component", "pose"),
		viewOfs:       mgl32.Vec3{0, 0, StandingViewHeight},
		activeDevices: make(map[int]struct{}),
	}
}

// SetConfig applies new conversion settings from the next query on.
func (p *Provider) SetConfig(cfg Config) {
	if cfg.WorldScale <= 0 {
		cfg.WorldScale = 1
	}
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
}

func (p *Provider) Config() Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// SetViewOfs records the engine's eye offset. A view offset below standing
// height lowers the room floor by the difference.
func (p *Provider) SetViewOfs(v mgl32.Vec3) {
	p.mu.Lock()
	p.viewOfs = v
	p.mu.Unlock()
}

// PollEvents drains the device queue. Input events are forwarded only when
// consumeInput is set and the menu is closed; quit and device activation
// events are always handled.
func (p *Provider) PollEvents(consumeInput, menuOpen bool) {
	events := p.deps.Device.PollEvents()

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ev := range events {
		switch ev.Type {
		case EventQuit:
			if !p.quitRequested {
				p.logger.Info("device requested quit")
			}
			p.quitRequested = true
		case EventDeviceActivated:
			p.activeDevices[ev.Device] = struct{}{}
			p.logger.Debug("tracked device activated", "device", ev.Device)
		case EventDeviceDeactivated:
			delete(p.activeDevices, ev.Device)
			p.logger.Debug("tracked device deactivated", "device", ev.Device)
		case EventInput:
			if consumeInput && !menuOpen && p.deps.Input != nil {
				p.deps.Input.HandleEvent(ev)
			}
		}
	}
}

// QuitRequested reports whether the device asked the application to exit.
func (p *Provider) QuitRequested() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.quitRequested
}

// ActiveDevices is the number of tracked devices seen activated.
func (p *Provider) ActiveDevices() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.activeDevices)
}

// UpdatePositions refreshes head and controller transforms. It returns false
// when there is no valid head pose, in which case nothing is changed.
func (p *Provider) UpdatePositions() bool {
	head, ok := p.deps.Device.HeadPose()
	if !ok || !head.Valid {
		return false
	}
	now := p.deps.Clock()

	var ctrl [2]frameTransform
	for _, role := range []vrmath.Role{vrmath.RoleLeft, vrmath.RoleRight} {
		pose, ok := p.deps.Device.ControllerPose(role)
		if !ok {
			pose.Valid = false
		}
		ctrl[role] = frameTransform{pose: pose, at: now}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.head.pose.Valid {
		p.prevHead = p.head
	}
	p.head = frameTransform{pose: head, at: now}
	for i := range ctrl {
		if p.ctrl[i].pose.Valid {
			p.prevCtrl[i] = p.ctrl[i]
		}
		p.ctrl[i] = ctrl[i]
	}
	return true
}

// HasValidHead reports whether a head pose has been acquired.
func (p *Provider) HasValidHead() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.head.pose.Valid
}

// roomOrigin is the engine position of the tracking space origin.
func (p *Provider) roomOrigin() mgl32.Vec3 {
	origin := p.deps.Player()
	origin[2] -= HullHalfHeight
	if duck := StandingViewHeight - p.viewOfs[2]; duck > 0 {
		origin[2] -= duck
	}
	return origin
}

// ViewOrigin is the head position in engine space.
func (p *Provider) ViewOrigin() mgl32.Vec3 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.roomOrigin().Add(vrmath.TransformPosition(p.head.pose.Matrix, p.cfg.WorldScale))
}

// EyeOrigin is the position of one eye in engine space.
func (p *Provider) EyeOrigin(eye vrmath.Eye) mgl32.Vec3 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m := p.head.pose.Matrix.Mul4(p.deps.Device.EyeToHead(eye))
	return p.roomOrigin().Add(vrmath.TransformPosition(m, p.cfg.WorldScale))
}

// ViewAngles are the engine angles of one eye.
func (p *Provider) ViewAngles(eye vrmath.Eye) vrmath.Angles {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m := p.head.pose.Matrix.Mul4(p.deps.Device.EyeToHead(eye))
	return vrmath.TransformAngles(m)
}

// MovementAngles is the yaw used for walking direction. Pitch and roll are
// always zero so tilting the head never steers movement.
func (p *Provider) MovementAngles() vrmath.Angles {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.cfg.MovementAttachment == MovementHand {
		off := p.offHand()
		if c := p.ctrl[off]; c.pose.Valid {
			return vrmath.TransformAngles(c.pose.Matrix).YawOnly()
		}
	}
	return vrmath.TransformAngles(p.head.pose.Matrix).YawOnly()
}

// WeaponHand is the role holding the weapon.
func (p *Provider) WeaponHand() vrmath.Role {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.offHand().Other()
}

func (p *Provider) offHand() vrmath.Role {
	if p.cfg.LeftHanded {
		return vrmath.RoleRight
	}
	return vrmath.RoleLeft
}

// ControllerOffset is the controller position relative to the player origin.
func (p *Provider) ControllerOffset(role vrmath.Role) (mgl32.Vec3, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.controllerOffset(role)
}

func (p *Provider) controllerOffset(role vrmath.Role) (mgl32.Vec3, bool) {
	c := p.ctrl[role]
	if !c.pose.Valid {
		return mgl32.Vec3{}, false
	}
	base := p.roomOrigin().Sub(p.deps.Player())
	return base.Add(vrmath.TransformPosition(c.pose.Matrix, p.cfg.WorldScale)), true
}

// ControllerAngles are the engine angles of a controller.
func (p *Provider) ControllerAngles(role vrmath.Role) (vrmath.Angles, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c := p.ctrl[role]
	if !c.pose.Valid {
		return vrmath.Angles{}, false
	}
	return vrmath.TransformAngles(c.pose.Matrix), true
}

// PreviousControllerAngles are the angles from the last frame the controller
// was tracked before the current one.
func (p *Provider) PreviousControllerAngles(role vrmath.Role) (vrmath.Angles, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c := p.prevCtrl[role]
	if !c.pose.Valid {
		return vrmath.Angles{}, false
	}
	return vrmath.TransformAngles(c.pose.Matrix), true
}

// ControllerVelocity is the controller velocity in engine units per second.
// The device velocity is used when reported, otherwise it is derived from
// the previous frame.
func (p *Provider) ControllerVelocity(role vrmath.Role) mgl32.Vec3 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.controllerVelocity(role)
}

func (p *Provider) controllerVelocity(role vrmath.Role) mgl32.Vec3 {
	cur, prev := p.ctrl[role], p.prevCtrl[role]
	if !cur.pose.Valid {
		return mgl32.Vec3{}
	}
	if cur.pose.Velocity != (mgl32.Vec3{}) {
		return vrmath.DeviceToEngine(cur.pose.Velocity, p.cfg.WorldScale)
	}
	if !prev.pose.Valid {
		return mgl32.Vec3{}
	}
	dt := float32(cur.at.Sub(prev.at).Seconds())
	if dt <= 0 {
		return mgl32.Vec3{}
	}
	delta := vrmath.TransformPosition(cur.pose.Matrix, p.cfg.WorldScale).
		Sub(vrmath.TransformPosition(prev.pose.Matrix, p.cfg.WorldScale))
	return delta.Mul(1 / dt)
}

// HeadVelocity is derived from the previous head transform.
func (p *Provider) HeadVelocity() mgl32.Vec3 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	cur, prev := p.head, p.prevHead
	if !cur.pose.Valid || !prev.pose.Valid {
		return mgl32.Vec3{}
	}
	dt := float32(cur.at.Sub(prev.at).Seconds())
	if dt <= 0 {
		return mgl32.Vec3{}
	}
	delta := vrmath.TransformPosition(cur.pose.Matrix, p.cfg.WorldScale).
		Sub(vrmath.TransformPosition(prev.pose.Matrix, p.cfg.WorldScale))
	return delta.Mul(1 / dt)
}

// ControllerReports builds the per-tick updates sent for both controllers.
// The weapon id is carried by the weapon hand only.
func (p *Provider) ControllerReports(timestamp, weaponID int, dragging func(vrmath.Role) bool) []controller.Report {
	p.mu.RLock()
	defer p.mu.RUnlock()

	weaponHand := p.offHand().Other()
	reports := make([]controller.Report, 0, 2)
	for _, role := range []vrmath.Role{vrmath.RoleLeft, vrmath.RoleRight} {
		rep := controller.Report{
			Timestamp:  timestamp,
			ID:         controller.Left,
			IsMirrored: p.cfg.LeftHanded,
			WeaponID:   controller.WeaponBarehand,
		}
		if role == vrmath.RoleRight {
			rep.ID = controller.Right
		}
		if role == weaponHand {
			rep.WeaponID = weaponID
		}
		if offset, ok := p.controllerOffset(role); ok {
			rep.IsValid = true
			rep.Offset = offset
			rep.Angles = vrmath.TransformAngles(p.ctrl[role].pose.Matrix).Vec3()
			rep.Velocity = p.controllerVelocity(role)
		}
		if dragging != nil {
			rep.IsDragging = dragging(role)
		}
		reports = append(reports, rep)
	}
	return reports
}

// Submit hands both eye textures to the compositor of the device.
func (p *Provider) Submit(left, right uint32) error {
	return p.deps.Device.Submit(left, right)
}
