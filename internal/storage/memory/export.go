package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hlvr/vrcore/pkg/core"
)

// SessionExport is the root JSON structure
type SessionExport struct {
	Session     core.Session          `json:"session"`
	DurationSec float64               `json:"durationSec"`
	FrameStats  []core.FrameStats     `json:"frameStats"`
	Controllers []ControllerExportRow `json:"controllers"`
}

// ControllerExportRow holds one controller's samples
type ControllerExportRow struct {
	PlayerIndex int                     `json:"playerIndex"`
	Controller  string                  `json:"controller"`
	Samples     []core.ControllerSample `json:"samples"`
}

// exportJSON writes the session data to a (optionally gzipped) JSON file
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	mapName := strings.NewReplacer(" ", "_", ":", "_", "/", "_", "\\", "_").Replace(b.session.MapName)
	if mapName == "" {
		mapName = "menu"
	}
	timestamp := b.session.StartTime.Format("20060102_150405")

	filename := fmt.Sprintf("%s_%s.json", mapName, timestamp)
	if b.cfg.CompressOutput {
		filename += ".gz"
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := writeJSON(outputPath, export, b.cfg.CompressOutput); err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() SessionExport {
	rows := make([]ControllerExportRow, 0, len(b.controllers))
	for _, rec := range b.controllers {
		rows = append(rows, ControllerExportRow{
			PlayerIndex: rec.PlayerIndex,
			Controller:  rec.Controller,
			Samples:     rec.Samples,
		})
	}
	return newExport(*b.session, b.frameStats, rows)
}

// NewExport builds the export layout from flat sample lists, e.g. rows read
// back from a database. Samples keep their order within each controller.
func NewExport(s core.Session, frames []core.FrameStats, samples []core.ControllerSample) SessionExport {
	index := make(map[string]int)
	var rows []ControllerExportRow
	for _, c := range samples {
		key := fmt.Sprintf("%d:%s", c.PlayerIndex, c.Controller)
		i, ok := index[key]
		if !ok {
			i = len(rows)
			index[key] = i
			rows = append(rows, ControllerExportRow{PlayerIndex: c.PlayerIndex, Controller: c.Controller})
		}
		rows[i].Samples = append(rows[i].Samples, c)
	}
	return newExport(s, frames, rows)
}

func newExport(s core.Session, frames []core.FrameStats, rows []ControllerExportRow) SessionExport {
	if frames == nil {
		frames = []core.FrameStats{}
	}
	if rows == nil {
		rows = []ControllerExportRow{}
	}
	sort.Slice(rows, func(i, j int) bool {
		a, c := rows[i], rows[j]
		if a.PlayerIndex != c.PlayerIndex {
			return a.PlayerIndex < c.PlayerIndex
		}
		return a.Controller < c.Controller
	})
	return SessionExport{
		Session:     s,
		DurationSec: s.Duration().Seconds(),
		FrameStats:  frames,
		Controllers: rows,
	}
}

// WriteExport writes export to path, gzipped when compress is set.
func WriteExport(path string, export SessionExport, compress bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return writeJSON(path, export, compress)
}

func writeJSON(path string, v any, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	if !compress {
		if err := json.NewEncoder(f).Encode(v); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	}

	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(v); err != nil {
		gz.Close()
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to flush gzip: %w", err)
	}
	return nil
}
