package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the mod folder.
const FileName = "hlvr_vrcore.cfg.json"

// RenderConfig holds the flags the frame pipeline reads every frame.
type RenderConfig struct {
	HDTexturesEnabled  bool    `json:"hdTexturesEnabled" mapstructure:"hdTexturesEnabled"`
	MultipassMode      int     `json:"multipassMode" mapstructure:"multipassMode"`
	DebugControllers   bool    `json:"debugControllers" mapstructure:"debugControllers"`
	WorldScale         float32 `json:"worldScale" mapstructure:"worldScale"`
	MovementAttachment string  `json:"movementAttachment" mapstructure:"movementAttachment"`
	LeftHanded         bool    `json:"leftHanded" mapstructure:"leftHanded"`
}

// TelemetryConfig controls the diagnostics monitor.
type TelemetryConfig struct {
	Enabled    bool          `json:"enabled" mapstructure:"enabled"`
	Interval   time.Duration `json:"interval" mapstructure:"interval"`
	StatusFile string        `json:"statusFile" mapstructure:"statusFile"`
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds settings for the sqlite telemetry store.
type SQLiteConfig struct {
	Path      string `json:"path" mapstructure:"path"`
	BatchSize int    `json:"batchSize" mapstructure:"batchSize"`
}

// DBConfig holds postgres connection settings.
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// WebSocketConfig holds the live debug stream settings.
type WebSocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// StorageConfig selects and configures the telemetry backend.
type StorageConfig struct {
	Type      string          `json:"type" mapstructure:"type"`
	Memory    MemoryConfig    `json:"memory" mapstructure:"memory"`
	SQLite    SQLiteConfig    `json:"sqlite" mapstructure:"sqlite"`
	Postgres  DBConfig        `json:"db" mapstructure:"db"`
	WebSocket WebSocketConfig `json:"websocket" mapstructure:"websocket"`
}

// InfluxConfig holds InfluxDB connection settings.
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// UploadConfig points at the service stored sessions are uploaded to.
type UploadConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// SetDefaults registers every default value.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./vrlogs")

	viper.SetDefault("render.hdTexturesEnabled", false)
	viper.SetDefault("render.multipassMode", 0)
	viper.SetDefault("render.debugControllers", false)
	viper.SetDefault("render.worldScale", 1.0)
	viper.SetDefault("render.movementAttachment", "hmd")
	viper.SetDefault("render.leftHanded", false)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.interval", "10s")
	viper.SetDefault("telemetry.statusFile", "vrcore_status.txt")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./vrtelemetry")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "./vrtelemetry/telemetry.db")
	viper.SetDefault("storage.sqlite.batchSize", 100)
	viper.SetDefault("storage.websocket.url", "ws://localhost:5000/ws/vr")
	viper.SetDefault("storage.websocket.secret", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "hlvr")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "hlvr-metrics")
	viper.SetDefault("influx.bucket", "vr_frames")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "hlvr-vrcore")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("upload.url", "")
	viper.SetDefault("upload.secret", "")
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// Set overrides a config value for the rest of the process, above the
// file and the defaults.
func Set(key string, value any) {
	viper.Set(key, value)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetRenderConfig returns the render flags.
func GetRenderConfig() RenderConfig {
	return RenderConfig{
		HDTexturesEnabled:  viper.GetBool("render.hdTexturesEnabled"),
		MultipassMode:      viper.GetInt("render.multipassMode"),
		DebugControllers:   viper.GetBool("render.debugControllers"),
		WorldScale:         float32(viper.GetFloat64("render.worldScale")),
		MovementAttachment: viper.GetString("render.movementAttachment"),
		LeftHanded:         viper.GetBool("render.leftHanded"),
	}
}

// GetTelemetryConfig returns the monitor settings.
func GetTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:    viper.GetBool("telemetry.enabled"),
		Interval:   viper.GetDuration("telemetry.interval"),
		StatusFile: viper.GetString("telemetry.statusFile"),
	}
}

// GetStorageConfig returns the telemetry storage settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:      viper.GetString("storage.sqlite.path"),
			BatchSize: viper.GetInt("storage.sqlite.batchSize"),
		},
		Postgres: GetDBConfig(),
		WebSocket: WebSocketConfig{
			URL:    viper.GetString("storage.websocket.url"),
			Secret: viper.GetString("storage.websocket.secret"),
		},
	}
}

// GetDBConfig returns the postgres settings.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetUploadConfig returns the session upload settings.
func GetUploadConfig() UploadConfig {
	return UploadConfig{
		URL:    viper.GetString("upload.url"),
		Secret: viper.GetString("upload.secret"),
	}
}
