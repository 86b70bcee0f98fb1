// Package dispatcher routes server commands sent by clients (controller
// updates, resets, status queries) to their handlers.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrClosed is returned by Dispatch after Close.
	ErrClosed = errors.New("dispatcher closed")
	// ErrUnknownCommand is returned for a command nobody registered.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrQueueFull is returned when a rejecting queue has no room.
	ErrQueueFull = errors.New("queue full")
)

const instrumentationName = "github.com/hlvr/vrcore/internal/dispatcher"

// Queued is the result of a command accepted by a buffered handler.
const Queued = "queued"

// Event is one command received from a client.
type Event struct {
	Command   string
	Player    int
	Args      []string
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Overflow decides what a buffered handler does when its queue is full.
type Overflow int

const (
	// Reject fails the new command.
	Reject Overflow = iota
	// Block waits for room.
	Block
	// DropOldest evicts the longest-waiting command to make room. Suited to
	// commands where a newer one supersedes an older one.
	DropOldest
)

func (o Overflow) String() string {
	switch o {
	case Block:
		return "block"
	case DropOldest:
		return "drop-oldest"
	default:
		return "reject"
	}
}

// Option configures handler registration.
type Option func(*route)

// Buffered runs the handler on its own goroutine behind a queue of the given
// size. Dispatch returns Queued immediately.
func Buffered(size int) Option {
	return func(r *route) {
		r.size = size
	}
}

// Blocking makes a buffered handler block when the queue is full.
func Blocking() Option {
	return func(r *route) {
		r.overflow = Block
	}
}

// Latest makes a buffered handler evict the oldest queued command when the
// queue is full.
func Latest() Option {
	return func(r *route) {
		r.overflow = DropOldest
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(r *route) {
		r.logged = true
	}
}

// CommandStats are the totals of one command since start.
type CommandStats struct {
	Command    string `json:"command"`
	Overflow   string `json:"overflow,omitempty"`
	Dispatched uint64 `json:"dispatched"`
	Processed  uint64 `json:"processed"`
	Dropped    uint64 `json:"dropped"`
	Failed     uint64 `json:"failed"`
	Waiting    int    `json:"waiting"`
}

type route struct {
	command  string
	handle   HandlerFunc
	size     int
	overflow Overflow
	logged   bool
	queue    chan Event
	attr     metric.MeasurementOption

	dispatched atomic.Uint64
	processed  atomic.Uint64
	dropped    atomic.Uint64
	failed     atomic.Uint64
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	routes map[string]*route
	logger Logger

	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter

	// mu guards closed against sends on closing queues
	mu      sync.RWMutex
	closed  bool
	workers sync.WaitGroup
}

// New creates a new Dispatcher with the given logger. Metrics go to the
// global OTel meter, which is a no-op unless a provider was installed.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		routes: make(map[string]*route),
		logger: logger,
	}

	m := otel.Meter(instrumentationName)
	var err error

	if d.queueSize, err = m.Int64ObservableGauge("vr.commands.queue.size",
		metric.WithDescription("Commands waiting in a handler queue")); err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}
	if _, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		for _, r := range d.routes {
			if r.queue != nil {
				o.ObserveInt64(d.queueSize, int64(len(r.queue)), r.attr)
			}
		}
		return nil
	}, d.queueSize); err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}
	if d.processed, err = m.Int64Counter("vr.commands.processed",
		metric.WithDescription("Commands handled by a queued handler")); err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}
	if d.dropped, err = m.Int64Counter("vr.commands.dropped",
		metric.WithDescription("Commands dropped because a handler queue was full")); err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given command. Register every handler
// before the first Dispatch; the route table is not locked.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	r := &route{
		command: command,
		handle:  h,
		attr:    metric.WithAttributes(attribute.String("command", command)),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logged {
		r.handle = d.withLogging(command, r.handle)
	}
	if r.size > 0 {
		r.queue = make(chan Event, r.size)
		d.workers.Add(1)
		go d.drain(r)
	}
	d.routes[command] = r
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	r, ok := d.routes[e.Command]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	r.dispatched.Add(1)

	if r.queue == nil {
		res, err := r.handle(e)
		if err != nil {
			r.failed.Add(1)
		}
		return res, err
	}
	return d.enqueue(r, e)
}

func (d *Dispatcher) enqueue(r *route, e Event) (any, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, ErrClosed
	}

	switch r.overflow {
	case Block:
		r.queue <- e
		return Queued, nil
	case DropOldest:
		for {
			select {
			case r.queue <- e:
				return Queued, nil
			default:
			}
			select {
			case <-r.queue:
				d.countDrop(r)
			default:
			}
		}
	default:
		select {
		case r.queue <- e:
			return Queued, nil
		default:
			d.countDrop(r)
			return nil, fmt.Errorf("%w: %s", ErrQueueFull, r.command)
		}
	}
}

func (d *Dispatcher) countDrop(r *route) {
	r.dropped.Add(1)
	d.dropped.Add(context.Background(), 1, r.attr)
}

func (d *Dispatcher) drain(r *route) {
	defer d.workers.Done()
	for e := range r.queue {
		if _, err := r.handle(e); err != nil {
			r.failed.Add(1)
			if d.logger != nil && !r.logged {
				d.logger.Error("queued command failed", "command", r.command, "player", e.Player, "error", err)
			}
		}
		r.processed.Add(1)
		d.processed.Add(context.Background(), 1, r.attr)
	}
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	_, ok := d.routes[command]
	return ok
}

// Commands lists the registered commands in sorted order.
func (d *Dispatcher) Commands() []string {
	out := make([]string, 0, len(d.routes))
	for cmd := range d.routes {
		out = append(out, cmd)
	}
	sort.Strings(out)
	return out
}

// Stats returns per-command totals in command order.
func (d *Dispatcher) Stats() []CommandStats {
	out := make([]CommandStats, 0, len(d.routes))
	for _, cmd := range d.Commands() {
		r := d.routes[cmd]
		s := CommandStats{
			Command:    cmd,
			Dispatched: r.dispatched.Load(),
			Processed:  r.processed.Load(),
			Dropped:    r.dropped.Load(),
			Failed:     r.failed.Load(),
		}
		if r.queue != nil {
			s.Overflow = r.overflow.String()
			s.Waiting = len(r.queue)
		}
		out = append(out, s)
	}
	return out
}

// Close stops accepting queued events and waits until every queue is drained.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, r := range d.routes {
		if r.queue != nil {
			close(r.queue)
		}
	}
	d.mu.Unlock()
	d.workers.Wait()
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		if d.logger == nil {
			return h(e)
		}
		start := time.Now()
		d.logger.Debug("handling command", "command", command, "player", e.Player, "args", len(e.Args))

		result, err := h(e)
		if err != nil {
			d.logger.Error("command failed", "command", command, "player", e.Player, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("command complete", "command", command, "duration", time.Since(start))
		}
		return result, err
	}
}
