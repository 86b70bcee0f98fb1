package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/hlvr/vrcore/internal/config"
	"github.com/hlvr/vrcore/internal/headless"
	"github.com/hlvr/vrcore/internal/pipeline"
	"github.com/hlvr/vrcore/internal/storage"
	"github.com/hlvr/vrcore/pkg/hostinterface"
)

// runSimulate attaches a headless engine and drives the exported hooks the
// way the game would, telemetry included.
func runSimulate(args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	maps := fs.String("maps", "c1a0,c1a1", "comma separated maps to walk through")
	perMap := fs.Int("frames-per-map", 900, "frames spent on each map")
	frames := fs.Int("frames", 0, "total frames, 0 for one pass over the maps")
	hz := fs.Float64("hz", 90, "frame rate, 0 to run unpaced")
	dropEvery := fs.Int("drop-every", 0, "lose the head pose every n-th frame")
	player := fs.Int("player", 1, "local player slot")
	telemetry := fs.Bool("telemetry", true, "record telemetry")
	interval := fs.Duration("interval", time.Second, "telemetry sample interval")
	storageType := fs.String("storage", "", "storage backend override (memory, sqlite, postgres, websocket)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := headless.Options{
		Maps:         splitList(*maps),
		FramesPerMap: *perMap,
		DropEvery:    *dropEvery,
		PlayerIndex:  *player,
	}
	if len(opts.Maps) == 0 {
		return fmt.Errorf("no maps given")
	}
	total := *frames
	if total <= 0 {
		total = len(opts.Maps) * *perMap
	}

	config.Set("telemetry.enabled", *telemetry)
	config.Set("telemetry.interval", interval.String())
	if *storageType != "" {
		config.Set("storage.type", *storageType)
	}

	engine := headless.New(opts)
	if err := hostinterface.Attach(engine.Capabilities()); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	Logger.Info("Simulation starting", "maps", opts.Maps, "frames", total, "hz", *hz)
	start := time.Now()
	res := engine.Run(ctx, exportedHooks{}, total, *hz)
	elapsed := time.Since(start)

	stats := Pipeline.Stats()
	backend := StorageBackend
	shutdown()

	fmt.Printf("Ran %d frames over %s in %s\n", res.Frames, strings.Join(res.Maps, " -> "), elapsed.Round(time.Millisecond))
	fmt.Printf("  stereo %d  fallback %d  discarded %d  submitted %d\n",
		stats.StereoFrames, stats.FallbackFrames, stats.DiscardedCaptures, res.Submitted)
	fmt.Printf("  peak live buffers %d  state balanced %t\n", res.MaxLiveBuffers, res.Balanced)
	// the memory backend exports when the monitor ends the last session
	if ex, ok := backend.(storage.Exporter); ok && ex.GetExportedFilePath() != "" {
		fmt.Printf("  telemetry exported to %s\n", ex.GetExportedFilePath())
	}

	if !res.Balanced || res.EyeOpen || res.LiveBuffers != 0 {
		return fmt.Errorf("graphics state leaked: balanced=%t eyeOpen=%t liveBuffers=%d",
			res.Balanced, res.EyeOpen, res.LiveBuffers)
	}
	return nil
}

// exportedHooks goes through the same entry points the engine binding
// calls, panic containment included.
type exportedHooks struct{}

func (exportedHooks) CalcRefdef(params *pipeline.RefParams) pipeline.ViewResult {
	return hostinterface.CalcRefdef(params)
}
func (exportedHooks) DrawNormal()      { hostinterface.DrawNormal() }
func (exportedHooks) DrawTransparent() { hostinterface.DrawTransparent() }
func (exportedHooks) InterceptHUDRedraw(time float32, intermission int) {
	hostinterface.InterceptHUDRedraw(time, intermission)
}
func (exportedHooks) Frame(time float64) { hostinterface.Frame(time) }

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
