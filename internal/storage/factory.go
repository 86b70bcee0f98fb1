package storage

import (
	"fmt"
	"time"

	"github.com/hlvr/vrcore/internal/config"
	"github.com/hlvr/vrcore/internal/logging"
	"github.com/hlvr/vrcore/internal/storage/memory"
	pgstorage "github.com/hlvr/vrcore/internal/storage/postgres"
	sqlitestorage "github.com/hlvr/vrcore/internal/storage/sqlite"
	wsstorage "github.com/hlvr/vrcore/internal/storage/websocket"
)

// Storage type names accepted in storage.type.
const (
	TypeMemory    = "memory"
	TypeSQLite    = "sqlite"
	TypePostgres  = "postgres"
	TypeWebSocket = "websocket"
)

// DumpInterval is how often the sqlite backend snapshots to disk.
var DumpInterval = time.Minute

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, logManager *logging.SlogManager) (Backend, error) {
	switch cfg.Type {
	case TypePostgres:
		return pgstorage.New(cfg.Postgres, logManager), nil
	case TypeSQLite:
		return sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: DumpInterval,
			DumpPath:     cfg.SQLite.Path,
			BatchSize:    cfg.SQLite.BatchSize,
		}, logManager)
	case TypeWebSocket:
		return wsstorage.New(wsstorage.Config{URL: cfg.WebSocket.URL, Secret: cfg.WebSocket.Secret}, logManager), nil
	case TypeMemory, "":
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
