// Package postgres implements the storage.Backend interface on PostgreSQL
// with PostGIS, reusing the queued GORM writer.
package postgres

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/hlvr/vrcore/internal/config"
	"github.com/hlvr/vrcore/internal/database"
	"github.com/hlvr/vrcore/internal/logging"
	gormstorage "github.com/hlvr/vrcore/internal/storage/gorm"
)

// MaxOpenConns caps the connection pool.
const MaxOpenConns = 10

// Backend connects lazily in Init so a down server surfaces as an Init error.
type Backend struct {
	*gormstorage.Backend
	cfg config.DBConfig
	log *logging.SlogManager

	open func(config.DBConfig) (*gorm.DB, error)
}

// New creates a new postgres storage backend.
func New(cfg config.DBConfig, logManager *logging.SlogManager) *Backend {
	return &Backend{cfg: cfg, log: logManager, open: database.OpenPostgres}
}

// Init connects, validates the connection and starts the writer.
func (b *Backend) Init() error {
	db, err := b.open(b.cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err = sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to validate connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(MaxOpenConns)

	b.Backend = gormstorage.New(gormstorage.Dependencies{DB: db, LogManager: b.log})
	return b.Backend.Init()
}

// Close stops the writer and closes the pool.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	if err := b.Backend.Close(); err != nil {
		return err
	}
	sqlDB, err := b.DB().DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
