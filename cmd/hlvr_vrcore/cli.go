package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"gorm.io/gorm"

	"github.com/hlvr/vrcore/internal/api"
	"github.com/hlvr/vrcore/internal/config"
	"github.com/hlvr/vrcore/internal/database"
	"github.com/hlvr/vrcore/internal/logging"
	gormstorage "github.com/hlvr/vrcore/internal/storage/gorm"
	"github.com/hlvr/vrcore/internal/storage/memory"
)

const usage = `usage: hlvr_vrcore <command> [flags]

commands:
  simulate   drive the frame hooks with a headless engine
  sessions   list sessions stored in the telemetry database
  export     write stored sessions to JSON and optionally upload them
  version    print the module version
`

// main only runs when the module is built as an executable. As a shared
// library the engine calls the exported hooks instead.
func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Print(usage)
		return
	}

	var err error
	switch strings.ToLower(args[0]) {
	case "simulate":
		err = runSimulate(args[1:])
	case "sessions":
		err = runSessions(args[1:])
	case "export":
		err = runExport(args[1:])
	case "version":
		fmt.Printf("%s %s (built %s)\n", ModuleName, CurrentModuleVersion, BuildDate)
	default:
		fmt.Print(usage)
		err = fmt.Errorf("unknown command %q", args[0])
	}
	if err != nil {
		Logger.Error("Command failed", "command", args[0], "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openTelemetryDB opens the sqlite file at path, or the newest dump when
// path is a directory. An empty path means the configured postgres database
// with the usual in-memory fallback.
func openTelemetryDB(path string) (*gorm.DB, func() error, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		dumps, err := database.ListDumps(path)
		if err != nil {
			return nil, nil, err
		}
		if len(dumps) == 0 {
			return nil, nil, fmt.Errorf("no .db files in %s", path)
		}
		path = dumps[0]
	}
	if path != "" {
		db, err := database.OpenSqlite(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to access sql interface: %w", err)
		}
		return db, sqlDB.Close, nil
	}

	m := database.NewManager(logging.NewZerolog(logWriter(), config.GetString("logLevel")))
	if err := m.Connect(config.GetDBConfig()); err != nil {
		return nil, nil, err
	}
	if err := m.Setup(); err != nil {
		return nil, nil, err
	}
	return m.DB, m.Close, nil
}

func runSessions(args []string) error {
	fs := flag.NewFlagSet("sessions", flag.ContinueOnError)
	dbPath := fs.String("db", "", "sqlite telemetry file or dump directory; postgres from config when empty")
	limit := fs.Int("limit", 20, "maximum sessions to list, 0 for all")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, closeDB, err := openTelemetryDB(*dbPath)
	if err != nil {
		return err
	}
	defer closeDB()

	sessions, err := gormstorage.ListSessions(db, *limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tMAP\tSTART\tDURATION\tFRAMES\tSAMPLES")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n",
			s.ID, s.MapName, s.StartTime.Format(time.DateTime),
			s.Duration().Round(time.Second), s.FrameStats, s.ControllerSamples)
	}
	return w.Flush()
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	dbPath := fs.String("db", "", "sqlite telemetry file or dump directory; postgres from config when empty")
	outDir := fs.String("out", ".", "output directory")
	compress := fs.Bool("gzip", true, "gzip the JSON output")
	upload := fs.Bool("upload", false, "upload each export to the configured service")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ids := fs.Args()
	if len(ids) == 0 {
		return fmt.Errorf("no session ids provided")
	}

	db, closeDB, err := openTelemetryDB(*dbPath)
	if err != nil {
		return err
	}
	defer closeDB()

	var client *api.Client
	if *upload {
		cfg := config.GetUploadConfig()
		if cfg.URL == "" {
			return fmt.Errorf("upload.url is not configured")
		}
		client = api.New(cfg.URL, cfg.Secret)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := client.Healthcheck(ctx)
		cancel()
		if err != nil {
			return err
		}
	}

	for _, id := range ids {
		start := time.Now()
		export, err := gormstorage.LoadSession(db, id)
		if err != nil {
			return err
		}

		name := id + ".json"
		if *compress {
			name += ".gz"
		}
		path := filepath.Join(*outDir, name)
		if err := memory.WriteExport(path, export, *compress); err != nil {
			return err
		}
		fmt.Printf("Exported %s (%s, %d frame samples) to %s in %s\n",
			id, export.Session.MapName, len(export.FrameStats), path, time.Since(start).Round(time.Millisecond))

		if client != nil {
			if err := client.Upload(context.Background(), path, export.Session); err != nil {
				return fmt.Errorf("failed to upload %s: %w", id, err)
			}
			fmt.Printf("Uploaded %s\n", id)
		}
	}
	return nil
}
