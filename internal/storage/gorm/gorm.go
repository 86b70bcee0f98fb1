// Package gormstorage writes telemetry to any GORM database through
// in-process queues drained by a background writer goroutine.
package gormstorage

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/hlvr/vrcore/internal/database"
	"github.com/hlvr/vrcore/internal/logging"
	"github.com/hlvr/vrcore/internal/model"
	"github.com/hlvr/vrcore/internal/model/convert"
	"github.com/hlvr/vrcore/internal/queue"
	"github.com/hlvr/vrcore/pkg/core"
)

// ErrNoSession is returned when telemetry arrives outside a session.
var ErrNoSession = errors.New("no active session")

// DefaultWriteInterval is how often the writer drains the queues.
const DefaultWriteInterval = 2 * time.Second

// MaxQueued bounds each queue while the database is unreachable.
const MaxQueued = 100_000

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	LogManager    *logging.SlogManager
	WriteInterval time.Duration
	// BatchSize caps rows per INSERT; zero keeps the driver default.
	BatchSize int
}

// queues holds the write queues for batch DB insertion.
type queues struct {
	FrameStats        *queue.Queue[model.FrameStat]
	ControllerSamples *queue.Queue[model.ControllerSample]
}

func newQueues() *queues {
	return &queues{
		FrameStats:        queue.NewBounded[model.FrameStat](MaxQueued),
		ControllerSamples: queue.NewBounded[model.ControllerSample](MaxQueued),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	queues    *queues
	sessionID atomic.Uint64
	session   *model.Session
	stopChan  chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex // guards session
	flushMu   sync.Mutex
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.WriteInterval <= 0 {
		deps.WriteInterval = DefaultWriteInterval
	}
	return &Backend{deps: deps}
}

// Init creates the queues, migrates the schema and starts the writer.
func (b *Backend) Init() error {
	b.queues = newQueues()
	b.stopChan = make(chan struct{})

	if b.deps.DB != nil {
		b.log("setupDB", "Migrating schema", "INFO")
		if err := database.Migrate(b.deps.DB); err != nil {
			return fmt.Errorf("failed to setup DB: %w", err)
		}
		b.log("setupDB", "Database setup complete", "INFO")
	}

	b.wg.Add(1)
	go b.writerLoop()
	return nil
}

// Close stops the writer after one last flush.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	select {
	case <-b.stopChan:
		return nil
	default:
	}
	close(b.stopChan)
	b.wg.Wait()
	b.Flush()
	return nil
}

// DB exposes the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// StartSession inserts the session row synchronously so queued rows can
// reference it.
func (b *Backend) StartSession(s *core.Session) error {
	row := convert.CoreToSession(*s)
	if b.deps.DB != nil {
		if err := b.deps.DB.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to insert new session: %w", err)
		}
	}
	b.mu.Lock()
	b.session = &row
	b.mu.Unlock()
	b.sessionID.Store(uint64(row.ID))
	return nil
}

// EndSession flushes queued rows and stamps the end time.
func (b *Backend) EndSession() error {
	b.Flush()

	b.mu.Lock()
	row := b.session
	b.session = nil
	b.mu.Unlock()
	b.sessionID.Store(0)

	if row == nil {
		return ErrNoSession
	}
	if b.deps.DB == nil || row.ID == 0 {
		return nil
	}
	return b.deps.DB.Model(&model.Session{}).Where("id = ?", row.ID).Update("end_time", time.Now()).Error
}

// SessionID returns the database id of the running session, zero if none.
func (b *Backend) SessionID() uint {
	return uint(b.sessionID.Load())
}

func (b *Backend) active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session != nil
}

// RecordFrameStats converts and queues a frame stats sample.
func (b *Backend) RecordFrameStats(f *core.FrameStats) error {
	if !b.active() {
		return ErrNoSession
	}
	b.queues.FrameStats.Push(convert.CoreToFrameStat(*f, b.SessionID()))
	return nil
}

// RecordControllerSample converts and queues a controller sample.
func (b *Backend) RecordControllerSample(c *core.ControllerSample) error {
	if !b.active() {
		return ErrNoSession
	}
	b.queues.ControllerSamples.Push(convert.CoreToControllerSample(*c, b.SessionID()))
	return nil
}

// QueueLengths reports the rows waiting for the writer.
func (b *Backend) QueueLengths() (frameStats, controllerSamples int) {
	return b.queues.FrameStats.Len(), b.queues.ControllerSamples.Len()
}

// Dropped reports rows discarded because a queue hit MaxQueued.
func (b *Backend) Dropped() uint64 {
	if b.queues == nil {
		return 0
	}
	return b.queues.FrameStats.Dropped() + b.queues.ControllerSamples.Dropped()
}

func (b *Backend) log(source, msg, level string) {
	if b.deps.LogManager != nil {
		b.deps.LogManager.Forward(source, level, msg)
	}
}

// writeQueue writes all items from a queue to the database in a transaction.
// Failed batches are pushed back for the next round.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, batchSize int, log func(string, string, string)) {
	items := q.Drain(0)
	if len(items) == 0 {
		return
	}

	tx := db.Begin()
	var err error
	if batchSize > 0 {
		err = tx.CreateInBatches(&items, batchSize).Error
	} else {
		err = tx.Create(&items).Error
	}
	if err != nil {
		log(":DB:WRITER:", fmt.Sprintf("Error creating %s: %v", name, err), "ERROR")
		tx.Rollback()
		q.Requeue(items)
		return
	}
	if err := tx.Commit().Error; err != nil {
		log(":DB:WRITER:", fmt.Sprintf("Error committing %s: %v", name, err), "ERROR")
		q.Requeue(items)
	}
}

// Flush drains both queues now. Without a database the rows are discarded.
func (b *Backend) Flush() {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	if b.queues == nil {
		return
	}
	if b.deps.DB == nil {
		b.queues.FrameStats.Clear()
		b.queues.ControllerSamples.Clear()
		return
	}
	writeQueue(b.deps.DB, b.queues.FrameStats, "frame stats", b.deps.BatchSize, b.log)
	writeQueue(b.deps.DB, b.queues.ControllerSamples, "controller samples", b.deps.BatchSize, b.log)
}

func (b *Backend) writerLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.deps.WriteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			b.Flush()
		}
	}
}
