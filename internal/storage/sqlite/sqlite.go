// Package sqlitestorage implements the storage.Backend interface using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend; the only SQLite-specific concerns are creating
// the in-memory DB and the periodic disk dump.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/hlvr/vrcore/internal/database"
	"github.com/hlvr/vrcore/internal/logging"
	gormstorage "github.com/hlvr/vrcore/internal/storage/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	DumpInterval time.Duration
	DumpPath     string // Path for periodic VACUUM INTO dumps
	BatchSize    int
	// DSN overrides the shared in-memory database name.
	DSN string
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *gorm.DB
	cfg      Config
	log      *logging.SlogManager
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a new SQLite storage backend.
func New(cfg Config, logManager *logging.SlogManager) (*Backend, error) {
	db, err := database.OpenSqlite(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}

	gormBackend := gormstorage.New(gormstorage.Dependencies{
		DB:         db,
		LogManager: logManager,
		BatchSize:  cfg.BatchSize,
	})

	return &Backend{
		Backend:  gormBackend,
		db:       db,
		cfg:      cfg,
		log:      logManager,
		stopChan: make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}

	return nil
}

// EndSession writes the session's last rows and dumps immediately so the
// file on disk always holds complete sessions.
func (b *Backend) EndSession() error {
	err := b.Backend.EndSession()
	if b.cfg.DumpPath != "" {
		if derr := b.Dump(); derr != nil && err == nil {
			err = derr
		}
	}
	return err
}

// Close stops the dump goroutine, closes the embedded GORM backend and
// writes a final dump.
func (b *Backend) Close() error {
	b.stopOnce.Do(func() { close(b.stopChan) })
	b.wg.Wait()
	err := b.Backend.Close()
	if b.cfg.DumpPath != "" {
		if derr := b.Dump(); derr != nil && err == nil {
			err = derr
		}
	}
	return err
}

// Dump snapshots the in-memory database to DumpPath.
func (b *Backend) Dump() error {
	return database.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath)
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			b.Flush()
			if err := b.Dump(); err != nil {
				b.writeLog("ERROR", "Error dumping to disk", slog.Any("error", err))
			} else {
				b.writeLog("DEBUG", "Dumped to disk", slog.Duration("took", time.Since(start)))
			}
		}
	}
}

func (b *Backend) writeLog(level, msg string, attrs ...slog.Attr) {
	if b.log != nil {
		b.log.Forward("sqlite:dumpLoop", level, msg, attrs...)
	}
}
