package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hlvr/vrcore/internal/config"
	"github.com/hlvr/vrcore/pkg/core"
)

func startTestSession(t *testing.T, compress bool) *Backend {
	t.Helper()
	b := New(config.MemoryConfig{OutputDir: t.TempDir(), CompressOutput: compress})
	require.NoError(t, b.Init())
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, b.StartSession(&core.Session{ID: "s1", MapName: "c1a0", StartTime: start, EndTime: start.Add(90 * time.Second)}))
	return b
}

func TestRecordOutsideSession(t *testing.T) {
	b := New(config.MemoryConfig{})
	assert.ErrorIs(t, b.RecordFrameStats(&core.FrameStats{}), ErrNoSession)
	assert.ErrorIs(t, b.RecordControllerSample(&core.ControllerSample{}), ErrNoSession)
	assert.ErrorIs(t, b.EndSession(), ErrNoSession)
}

func TestRecordControllerSample_GroupsByController(t *testing.T) {
	b := startTestSession(t, false)

	require.NoError(t, b.RecordControllerSample(&core.ControllerSample{PlayerIndex: 1, Controller: "left", WeaponID: 1}))
	require.NoError(t, b.RecordControllerSample(&core.ControllerSample{PlayerIndex: 1, Controller: "left", WeaponID: 2}))
	require.NoError(t, b.RecordControllerSample(&core.ControllerSample{PlayerIndex: 1, Controller: "right"}))

	left, ok := b.Controller(1, "left")
	require.True(t, ok)
	assert.Len(t, left.Samples, 2)
	assert.Equal(t, 2, left.Samples[1].WeaponID)

	_, ok = b.Controller(2, "left")
	assert.False(t, ok)
}

func TestStartSession_Resets(t *testing.T) {
	b := startTestSession(t, false)
	require.NoError(t, b.RecordFrameStats(&core.FrameStats{StereoFrames: 1}))
	require.NoError(t, b.RecordControllerSample(&core.ControllerSample{PlayerIndex: 1, Controller: "left"}))

	require.NoError(t, b.StartSession(&core.Session{ID: "s2"}))
	assert.Empty(t, b.FrameStats())
	_, ok := b.Controller(1, "left")
	assert.False(t, ok)
}

func TestEndSession_ExportsJSON(t *testing.T) {
	b := startTestSession(t, false)
	require.NoError(t, b.RecordFrameStats(&core.FrameStats{StereoFrames: 10}))
	require.NoError(t, b.RecordControllerSample(&core.ControllerSample{PlayerIndex: 1, Controller: "right"}))
	require.NoError(t, b.RecordControllerSample(&core.ControllerSample{PlayerIndex: 1, Controller: "left"}))

	require.NoError(t, b.EndSession())

	path := b.GetExportedFilePath()
	assert.Equal(t, "c1a0_20260301_120000.json", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var export SessionExport
	require.NoError(t, json.Unmarshal(data, &export))
	assert.Equal(t, "s1", export.Session.ID)
	assert.Equal(t, 90.0, export.DurationSec)
	require.Len(t, export.FrameStats, 1)
	require.Len(t, export.Controllers, 2)
	assert.Equal(t, "left", export.Controllers[0].Controller)
	assert.Equal(t, "right", export.Controllers[1].Controller)

	// session is gone after export
	assert.ErrorIs(t, b.RecordFrameStats(&core.FrameStats{}), ErrNoSession)
}

func TestEndSession_Gzip(t *testing.T) {
	b := startTestSession(t, true)
	require.NoError(t, b.EndSession())

	path := b.GetExportedFilePath()
	assert.Equal(t, ".gz", filepath.Ext(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	var export SessionExport
	require.NoError(t, json.NewDecoder(gz).Decode(&export))
	assert.Equal(t, "c1a0", export.Session.MapName)
	assert.NotNil(t, export.FrameStats)
	assert.Empty(t, export.Controllers)
}

func TestEndSession_SanitizesMapName(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	require.NoError(t, b.StartSession(&core.Session{MapName: "maps/c1a0: test"}))
	require.NoError(t, b.EndSession())
	assert.Equal(t, "maps_c1a0__test_00010101_000000.json", filepath.Base(b.GetExportedFilePath()))
}

func TestNewExport_GroupsFlatSamples(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := core.Session{ID: "s2", MapName: "c2a1", StartTime: start, EndTime: start.Add(time.Minute)}
	samples := []core.ControllerSample{
		{PlayerIndex: 2, Controller: "left", WeaponID: 1},
		{PlayerIndex: 1, Controller: "right", WeaponID: 2},
		{PlayerIndex: 2, Controller: "left", WeaponID: 3},
	}

	export := NewExport(s, nil, samples)
	assert.Equal(t, 60.0, export.DurationSec)
	assert.NotNil(t, export.FrameStats)
	require.Len(t, export.Controllers, 2)
	assert.Equal(t, 1, export.Controllers[0].PlayerIndex)
	left := export.Controllers[1]
	require.Len(t, left.Samples, 2)
	assert.Equal(t, 1, left.Samples[0].WeaponID)
	assert.Equal(t, 3, left.Samples[1].WeaponID)

	empty := NewExport(s, nil, nil)
	assert.NotNil(t, empty.Controllers)

	path := filepath.Join(t.TempDir(), "nested", "s2.json")
	require.NoError(t, WriteExport(path, export, false))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got SessionExport
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "c2a1", got.Session.MapName)
	assert.Len(t, got.Controllers, 2)
}
