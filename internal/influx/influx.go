package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"

	"github.com/hlvr/vrcore/internal/config"
	"github.com/hlvr/vrcore/pkg/core"
)

// Measurement names.
const (
	MeasurementFrame      = "frame_stats"
	MeasurementController = "controller"
)

// RetentionSeconds is applied to buckets created on first connect.
const RetentionSeconds = 60 * 60 * 24 * 30

// ErrDisabled is returned by Connect when influx.enabled is false.
var ErrDisabled = errors.New("influx.enabled is false")

// Manager handles InfluxDB connections and writes. When the server is
// unreachable points go to a gzip line-protocol backup file instead.
type Manager struct {
	Client       influxdb2.Client
	Writer       influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	Logger       zerolog.Logger
	BackupPath   string

	cfg        config.InfluxConfig
	backupFile *os.File
	mu         sync.Mutex
}

// NewManager creates a new InfluxDB manager.
func NewManager(cfg config.InfluxConfig, log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		cfg:        cfg,
		Logger:     log,
		BackupPath: backupPath,
	}
}

// ServerURL is the base URL built from the config.
func (m *Manager) ServerURL() string {
	return fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port)
}

// Connect establishes a connection to InfluxDB, falling back to the backup
// file if the server does not answer a ping.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		m.ServerURL(),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := m.Client.Ping(ctx)
	if err != nil || !running {
		m.IsValid = false
		m.Logger.Warn().Err(err).Str("backupPath", m.BackupPath).
			Msg("InfluxDB client failed to initialize, writing to backup file")
		return m.openBackup()
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.createWriter()
	m.IsValid = true
	m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.BackupWriter != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.BackupPath), 0755); err != nil {
		return fmt.Errorf("error creating backup directory: %w", err)
	}
	file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := m.Client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.Logger.Info().Str("org", m.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", m.cfg.Org).Msg("Error creating organization")
			return err
		}
	}

	if _, err = m.Client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err == nil {
		return nil
	}
	m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")
	rule := domain.RetentionRuleTypeExpire
	_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: RetentionSeconds,
	})
	if err != nil {
		m.Logger.Error().Err(err).Str("bucket", m.cfg.Bucket).Msg("Error creating bucket")
	}
	return err
}

func (m *Manager) createWriter() {
	m.Writer = m.Client.WriteAPI(m.cfg.Org, m.cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).Msg("Error sending data to InfluxDB")
		}
	}(m.Writer.Errors())
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	if m.IsValid {
		m.Writer.WritePoint(point)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}
	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	if _, err := m.BackupWriter.Write([]byte(line)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// WriteFrameStats records one pipeline counter sample.
func (m *Manager) WriteFrameStats(f core.FrameStats) error {
	return m.WritePoint(FramePoint(f))
}

// WriteControllerSample records one controller sample.
func (m *Manager) WriteControllerSample(c core.ControllerSample) error {
	return m.WritePoint(ControllerPoint(c))
}

// Close flushes pending writes and the backup file.
func (m *Manager) Close() error {
	var errs []error
	if m.Writer != nil {
		m.Writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BackupWriter != nil {
		errs = append(errs, m.BackupWriter.Close())
		m.BackupWriter = nil
	}
	if m.backupFile != nil {
		errs = append(errs, m.backupFile.Close())
		m.backupFile = nil
	}
	return errors.Join(errs...)
}

// FramePoint converts a frame stats sample to a point.
func FramePoint(f core.FrameStats) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(MeasurementFrame)
	tags(p, "session", f.SessionID, "map", f.MapName, "phase", f.Phase)
	p.AddField("in_menu", f.InMenu).
		AddField("in_game", f.InGame).
		AddField("stereo_frames", f.StereoFrames).
		AddField("fallback_frames", f.FallbackFrames).
		AddField("stereo_delta", f.StereoDelta).
		AddField("fallback_delta", f.FallbackDelta).
		AddField("discarded_captures", f.DiscardedCaptures).
		AddField("skybox_face_errors", f.SkyboxFaceErrors).
		AddField("replay_errors", f.ReplayErrors).
		AddField("stale_calls", f.StaleCalls).
		AddField("updates_applied", f.UpdatesApplied).
		AddField("updates_rejected", f.UpdatesRejected)
	return p.SetTime(f.Time)
}

// ControllerPoint converts a controller sample to a point.
func ControllerPoint(c core.ControllerSample) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(MeasurementController)
	tags(p, "session", c.SessionID, "player", fmt.Sprint(c.PlayerIndex), "controller", c.Controller)
	p.AddField("x", c.Position[0]).
		AddField("y", c.Position[1]).
		AddField("z", c.Position[2]).
		AddField("pitch", c.Angles[0]).
		AddField("yaw", c.Angles[1]).
		AddField("roll", c.Angles[2]).
		AddField("valid", c.IsValid).
		AddField("dragging", c.IsDragging).
		AddField("blocked", c.IsBlocked).
		AddField("weapon", c.WeaponID).
		AddField("radius", c.Radius).
		AddField("touched", c.Touched).
		AddField("dragged", c.Dragged).
		AddField("hit", c.Hit)
	return p.SetTime(c.Time)
}

// tags adds key/value pairs, skipping empty values which line protocol
// cannot encode.
func tags(p *influxdb2_write.Point, kv ...string) {
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			p.AddTag(kv[i], kv[i+1])
		}
	}
}
