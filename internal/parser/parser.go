// Package parser converts console command arguments into typed values.
// It does no I/O; the worker layer applies the results.
package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/hlvr/vrcore/internal/controller"
	"github.com/hlvr/vrcore/internal/util"
)

// ErrBadArgs is wrapped by every parse failure.
var ErrBadArgs = errors.New("bad command arguments")

// UpdateArgCount is the number of arguments of a controller update:
//
//	<timestamp> <valid> <mirrored> <ox> <oy> <oz> <pitch> <yaw> <roll>
//	<vx> <vy> <vz> <dragging> <id> <weaponId>
const UpdateArgCount = 15

// LogLevels are the levels a client may log at.
var LogLevels = []string{"debug", "info", "warn", "error"}

// parseIntFromFloat parses a string that may be an integer ("32") or a
// float ("32.00"). Console variables are floats, so scripts often send
// integers formatted as floats.
func parseIntFromFloat(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("%q is not a whole number", s)
	}
	return int64(f), nil
}

// parseBool accepts 0/1, true/false and float forms such as "1.0".
func parseBool(s string) (bool, error) {
	if b, err := strconv.ParseBool(s); err == nil {
		return b, nil
	}
	v, err := parseIntFromFloat(s)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func parseVec3(args []string) (mgl32.Vec3, error) {
	var v mgl32.Vec3
	for i := range v {
		f, err := strconv.ParseFloat(args[i], 32)
		if err != nil {
			return v, err
		}
		v[i] = float32(f)
	}
	return v, nil
}

// Parser is stateless apart from a count of rejected commands.
type Parser struct {
	logger   *slog.Logger
	rejected atomic.Uint64
}

func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger.With("component", "parser")}
}

// Rejected counts arguments that failed to parse.
func (p *Parser) Rejected() uint64 {
	return p.rejected.Load()
}

func (p *Parser) reject(command string, err error) error {
	p.rejected.Add(1)
	p.logger.Debug("rejected command arguments", "command", command, "error", err)
	return fmt.Errorf("%s: %w: %v", command, ErrBadArgs, err)
}

// ParseControllerUpdate parses the arguments of a controller update.
func (p *Parser) ParseControllerUpdate(args []string) (controller.Report, error) {
	var rep controller.Report
	if len(args) != UpdateArgCount {
		return rep, p.reject("controller update", fmt.Errorf("want %d args, got %d", UpdateArgCount, len(args)))
	}
	args = util.CleanArgs(append([]string(nil), args...))

	ts, err := parseIntFromFloat(args[0])
	if err != nil {
		return rep, p.reject("controller update", fmt.Errorf("timestamp: %w", err))
	}
	rep.Timestamp = int(ts)

	if rep.IsValid, err = parseBool(args[1]); err != nil {
		return rep, p.reject("controller update", fmt.Errorf("valid: %w", err))
	}
	if rep.IsMirrored, err = parseBool(args[2]); err != nil {
		return rep, p.reject("controller update", fmt.Errorf("mirrored: %w", err))
	}
	if rep.Offset, err = parseVec3(args[3:6]); err != nil {
		return rep, p.reject("controller update", fmt.Errorf("offset: %w", err))
	}
	if rep.Angles, err = parseVec3(args[6:9]); err != nil {
		return rep, p.reject("controller update", fmt.Errorf("angles: %w", err))
	}
	if rep.Velocity, err = parseVec3(args[9:12]); err != nil {
		return rep, p.reject("controller update", fmt.Errorf("velocity: %w", err))
	}
	if rep.IsDragging, err = parseBool(args[12]); err != nil {
		return rep, p.reject("controller update", fmt.Errorf("dragging: %w", err))
	}

	// an unknown id parses as Invalid and is rejected by the registry
	id, err := parseIntFromFloat(args[13])
	if err != nil {
		return rep, p.reject("controller update", fmt.Errorf("id: %w", err))
	}
	rep.ID = controller.ParseID(int(id))

	weapon, err := parseIntFromFloat(args[14])
	if err != nil {
		return rep, p.reject("controller update", fmt.Errorf("weapon: %w", err))
	}
	rep.WeaponID = int(weapon)

	return rep, nil
}

// EncodeControllerUpdate formats a report as update arguments, the inverse
// of ParseControllerUpdate.
func EncodeControllerUpdate(rep controller.Report) []string {
	f := func(v float32) string { return strconv.FormatFloat(float64(v), 'g', -1, 32) }
	b := func(v bool) string {
		if v {
			return "1"
		}
		return "0"
	}
	return []string{
		strconv.Itoa(rep.Timestamp),
		b(rep.IsValid),
		b(rep.IsMirrored),
		f(rep.Offset[0]), f(rep.Offset[1]), f(rep.Offset[2]),
		f(rep.Angles[0]), f(rep.Angles[1]), f(rep.Angles[2]),
		f(rep.Velocity[0]), f(rep.Velocity[1]), f(rep.Velocity[2]),
		b(rep.IsDragging),
		strconv.Itoa(int(rep.ID)),
		strconv.Itoa(rep.WeaponID),
	}
}

// ParseReset reads the optional controller id of a reset command. No
// argument means every controller of the player.
func (p *Parser) ParseReset(args []string) (controller.ID, bool, error) {
	if len(args) == 0 {
		return controller.Invalid, false, nil
	}
	if len(args) > 1 {
		return controller.Invalid, false, p.reject("controller reset", fmt.Errorf("want at most 1 arg, got %d", len(args)))
	}
	v, err := parseIntFromFloat(util.TrimQuotes(args[0]))
	if err != nil {
		return controller.Invalid, false, p.reject("controller reset", err)
	}
	id := controller.ParseID(int(v))
	if id == controller.Invalid {
		return controller.Invalid, false, p.reject("controller reset", fmt.Errorf("unknown controller %d", v))
	}
	return id, true, nil
}

// LogMessage is a line a client script asked to have logged.
type LogMessage struct {
	Source  string
	Level   string
	Message string
}

// ParseLogMessage reads <source> <level> <message...>. Extra arguments are
// joined into the message.
func (p *Parser) ParseLogMessage(args []string) (LogMessage, error) {
	if len(args) < 3 {
		return LogMessage{}, p.reject("log", fmt.Errorf("want at least 3 args, got %d", len(args)))
	}
	args = util.CleanArgs(append([]string(nil), args...))

	level := strings.ToLower(args[1])
	if !util.Contains(LogLevels, level) {
		return LogMessage{}, p.reject("log", fmt.Errorf("unknown level %q", args[1]))
	}
	return LogMessage{
		Source:  args[0],
		Level:   level,
		Message: strings.Join(args[2:], " "),
	}, nil
}
