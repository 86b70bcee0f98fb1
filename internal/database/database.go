// Package database opens the gorm connections that telemetry is stored in:
// postgres when configured and reachable, otherwise sqlite.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hlvr/vrcore/internal/config"
	"github.com/hlvr/vrcore/internal/model"
)

// memoryName is the shared in-memory database used when no path is given.
const memoryName = "vrcore"

// ErrNotConnected is returned by operations that need an open database.
var ErrNotConnected = errors.New("db not connected")

// Manager holds the connection chosen by Connect.
type Manager struct {
	DB    *gorm.DB
	SqlDB *sql.DB
	// Local is set when postgres was unreachable and the in-memory sqlite
	// database is used instead. Its contents only survive a Dump.
	Local  bool
	Logger zerolog.Logger
}

func NewManager(log zerolog.Logger) *Manager {
	return &Manager{Logger: log}
}

// Connect tries postgres and falls back to in-memory sqlite.
func (m *Manager) Connect(cfg config.DBConfig) error {
	m.Logger.Debug().Str("host", cfg.Host).Str("port", cfg.Port).Str("database", cfg.Database).Msg("Connecting to Postgres DB")

	db, err := OpenPostgres(cfg)
	if err == nil {
		err = m.use(db)
	}
	if err == nil {
		err = m.SqlDB.Ping()
	}
	if err == nil {
		m.SqlDB.SetMaxOpenConns(10)
		m.Logger.Info().Msg("Connected to database")
		return nil
	}

	m.Logger.Error().Err(err).Msg("Failed to connect to Postgres DB, trying SQLite")
	return m.fallback()
}

func (m *Manager) use(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	m.DB, m.SqlDB = db, sqlDB
	return nil
}

func (m *Manager) fallback() error {
	db, err := OpenSqlite("")
	if err != nil {
		return fmt.Errorf("failed to get local SQLite DB: %w", err)
	}
	if err := m.use(db); err != nil {
		return err
	}
	m.Local = true
	m.Logger.Info().Msg("Using local SQLite DB in memory")
	return nil
}

// Setup migrates the telemetry tables.
func (m *Manager) Setup() error {
	if m.DB == nil {
		return ErrNotConnected
	}
	if err := Migrate(m.DB); err != nil {
		return err
	}
	m.Logger.Info().Str("dialect", m.DB.Dialector.Name()).Msg("Database setup complete")
	return nil
}

// Dump writes a local database to path. It is a no-op on postgres.
func (m *Manager) Dump(path string) error {
	if !m.Local {
		return nil
	}
	start := time.Now()
	if err := DumpMemoryDBToDisk(m.DB, path); err != nil {
		return err
	}
	m.Logger.Debug().Dur("duration", time.Since(start)).Str("path", path).Msg("Dumped memory DB to disk")
	return nil
}

func (m *Manager) Close() error {
	if m.SqlDB == nil {
		return nil
	}
	err := m.SqlDB.Close()
	m.DB, m.SqlDB = nil, nil
	return err
}

// ListDumps returns the .db files in dir, newest first.
func ListDumps(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	type dump struct {
		path string
		mod  time.Time
	}
	var dumps []dump
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".db") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		dumps = append(dumps, dump{filepath.Join(dir, e.Name()), info.ModTime()})
	}
	sort.SliceStable(dumps, func(i, j int) bool { return dumps[i].mod.After(dumps[j].mod) })

	paths := make([]string, len(dumps))
	for i, d := range dumps {
		paths[i] = d.path
	}
	return paths, nil
}

// Migrate creates or updates every telemetry table. Postgres also gets the
// PostGIS extension that the controller position columns rely on.
func Migrate(db *gorm.DB) error {
	if db.Dialector.Name() == "postgres" {
		if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS postgis;`).Error; err != nil {
			return fmt.Errorf("failed to create PostGIS extension: %w", err)
		}
	}
	if err := db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// PostgresDSN builds the connection string for cfg.
func PostgresDSN(cfg config.DBConfig) string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)
}

func OpenPostgres(cfg config.DBConfig) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  PostgresDSN(cfg),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        10000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

// MemoryDSN names a shared in-memory SQLite database.
func MemoryDSN(name string) string {
	return "file:" + name + "?mode=memory&cache=shared"
}

var sqlitePragmas = []string{
	"PRAGMA user_version = 1;",
	"PRAGMA journal_mode = MEMORY;",
	"PRAGMA synchronous = OFF;",
	"PRAGMA cache_size = -32000;",
	"PRAGMA temp_store = MEMORY;",
}

// OpenSqlite opens path, or the shared in-memory database when path is
// empty.
func OpenSqlite(path string) (*gorm.DB, error) {
	if path == "" {
		path = MemoryDSN(memoryName)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        2000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	for _, pragma := range sqlitePragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}
	return db, nil
}

// DumpMemoryDBToDisk vacuums db into path, replacing any earlier dump.
func DumpMemoryDBToDisk(db *gorm.DB, path string) error {
	if path == "" {
		return fmt.Errorf("sqlite file path not set")
	}
	if db == nil {
		return ErrNotConnected
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating dump directory: %w", err)
	}

	// VACUUM INTO refuses to overwrite
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("error removing existing DB file: %w", err)
	}
	if err := db.Exec("VACUUM INTO ?", path).Error; err != nil {
		return fmt.Errorf("error dumping memory DB to disk: %w", err)
	}
	return nil
}
