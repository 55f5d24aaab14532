package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"github.com/cverdier/AcqGo/internal/acquisition"
	"github.com/cverdier/AcqGo/internal/config"
	"github.com/cverdier/AcqGo/internal/data"
	"github.com/cverdier/AcqGo/internal/debug"
	"github.com/cverdier/AcqGo/internal/hw/instrument"
	"github.com/cverdier/AcqGo/internal/hw/source"
	"github.com/cverdier/AcqGo/internal/metrics"
	"github.com/cverdier/AcqGo/internal/registry"
)

func main() {
	// CLI flags
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	frames := flag.Int("frames", 5, "number of view frames to grab before stopping")
	record := flag.Bool("record", true, "perform one recording after viewing")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Source id", cfg.Source.ID)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.PrintStruct("Config", cfg)

	// Build the hardware source
	debug.Step(1, "Initializing hardware source")
	src := source.NewSim(source.SimConfig{
		Name:          cfg.Source.DisplayName,
		Channels:      cfg.Source.Channels,
		DefaultWidth:  cfg.Source.WidthPx,
		DefaultHeight: cfg.Source.HeightPx,
		FrameTime:     cfg.FrameTime(),
	})
	defer func() {
		if err := src.Close(); err != nil {
			log.Printf("closing source failed: %v", err)
		}
	}()

	// Build the registry (sources, instruments, aliases)
	debug.Step(2, "Building registry")
	reg := registry.New()
	reg.RegisterSource(cfg.Source.ID, src)
	var ins instrument.Instrument
	if cfg.Instrument != nil {
		ins = instrument.NewInMemory(cfg.Instrument.Properties)
		reg.RegisterInstrument(cfg.Instrument.ID, ins)
	}
	for alias, target := range cfg.Aliases {
		reg.AddAlias(alias, target)
	}

	// Recording sink
	debug.Step(3, "Preparing recording sink")
	var sink data.Sink = data.Discard{}
	if cfg.Sink.OutputDir != "" {
		fileSink, err := data.NewFileSink(afero.NewOsFs(), cfg.Sink.OutputDir)
		if err != nil {
			log.Fatalf("init sink failed: %v", err)
		}
		sink = fileSink
		debug.Value("Output dir", cfg.Sink.OutputDir)
	}

	// Acquisition controller
	debug.Step(4, "Starting acquisition controller")
	resolved, err := reg.Resolve(cfg.Source.ID)
	if err != nil {
		log.Fatalf("resolve source id: %v", err)
	}
	ctrl, err := acquisition.New(acquisition.Config{
		SourceID:   resolved,
		Source:     src,
		Instrument: ins,
		Sink:       sink,
		Metrics:    metrics.New(prometheus.NewRegistry(), resolved),
		Profiles:   cfg.ProfileSet(),
		Defaults:   cfg.DefaultParameters(),
	})
	if err != nil {
		log.Fatalf("init controller failed: %v", err)
	}
	defer func() {
		if err := ctrl.Close(); err != nil {
			log.Printf("closing controller failed: %v", err)
		}
	}()

	if err := run(ctx, ctrl, cfg, *frames, *record); err != nil {
		if errors.Is(err, context.Canceled) {
			debug.Info("Interrupted")
			return
		}
		log.Fatalf("acquisition failed: %v", err)
	}
}

// run drives the demo sequence: view a few frames, optionally record
// one, and print the final counters.
func run(ctx context.Context, ctrl *acquisition.Controller, cfg *config.Config, frames int, record bool) error {
	timeout := cfg.GrabTimeout()

	debug.Section("Viewing")
	debug.Value("Frame time", ctrl.CurrentFrameTime())
	ctrl.StartPlaying(nil, nil)
	for i := 0; i < frames; i++ {
		bundle, err := ctrl.GrabNextToFinish(ctx, timeout)
		if err != nil {
			return err
		}
		for _, fr := range bundle {
			debug.Live("Frame %d channel %s: %dx%d", fr.Index, fr.ChannelName, fr.Width, fr.Height)
		}
	}

	if record {
		debug.Section("Recording")
		bundle, err := ctrl.Record(ctx, nil, nil, timeout)
		if err != nil {
			return err
		}
		for _, fr := range bundle {
			debug.Info("Recorded %s channel %s: %dx%d", fr.RunID, fr.ChannelName, fr.Width, fr.Height)
		}
	}

	ctrl.StopPlaying()
	for ctrl.IsViewing() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}

	stats := ctrl.Stats()
	debug.Summary("Acquisition Complete")
	debug.Value("Frames acquired", stats.FramesAcquired)
	debug.Value("Frames dropped", stats.FramesDropped)
	debug.Value("Recordings", stats.Recordings)
	debug.Value("Grab timeouts", stats.GrabTimeouts)
	return nil
}
