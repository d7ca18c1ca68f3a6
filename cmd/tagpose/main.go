// Command tagpose tracks AprilTag positions relative to a reference tag,
// from a live camera or a recorded detection log.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/banshee-data/tagpose/internal/camera"
	"github.com/banshee-data/tagpose/internal/config"
	"github.com/banshee-data/tagpose/internal/db"
	"github.com/banshee-data/tagpose/internal/monitor"
	"github.com/banshee-data/tagpose/internal/monitoring"
	"github.com/banshee-data/tagpose/internal/pipeline"
	"github.com/banshee-data/tagpose/internal/tagpose"
	"github.com/banshee-data/tagpose/internal/version"
)

// options are the parsed command-line flags.
type options struct {
	configPath  string
	replayPath  string
	device      int
	dbPath      string
	listen      string
	snapshotDir string
	recordPath  string
	maxFrames   uint64
	debug       bool
	showVersion bool
}

func parseFlags(args []string, out io.Writer) (*options, error) {
	fs := flag.NewFlagSet("tagpose", flag.ContinueOnError)
	fs.SetOutput(out)
	o := &options{}
	fs.StringVar(&o.configPath, "config", "", "Path to a JSON tuning config (defaults are built in)")
	fs.StringVar(&o.replayPath, "replay", "", "Replay a JSON-lines detection log instead of opening a camera")
	fs.IntVar(&o.device, "device", -1, "Camera device index (overrides camera_device in the config)")
	fs.StringVar(&o.dbPath, "db", "", "SQLite database for recorded observations (empty disables recording)")
	fs.StringVar(&o.listen, "listen", ":8080", "HTTP listen address (empty disables the web server)")
	fs.StringVar(&o.snapshotDir, "snapshots", "", "Directory for position snapshot PNGs (empty disables snapshots)")
	fs.StringVar(&o.recordPath, "record", "", "Write every frame's detections to this replay log")
	fs.Uint64Var(&o.maxFrames, "max-frames", 0, "Stop after this many frames (0 means no limit)")
	fs.BoolVar(&o.debug, "debug", false, "Log per-frame diagnostics")
	fs.BoolVar(&o.showVersion, "version", false, "Print version information and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return o, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatalf("tagpose: %v", err)
	}
}

// run dispatches subcommands and otherwise runs the tracker.
func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) > 0 {
		switch args[0] {
		case "migrate":
			return runMigrate(args[1:], out)
		case "status":
			return runStatus(ctx, args[1:], out)
		case "snapshot":
			return runSnapshot(ctx, args[1:], out)
		}
	}

	o, err := parseFlags(args, out)
	if err != nil {
		return err
	}
	if o.showVersion {
		fmt.Fprintln(out, version.String())
		return nil
	}
	monitoring.SetDebug(o.debug)
	return track(ctx, o)
}

func loadConfig(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.DefaultTuningConfig(), nil
	}
	cfg, err := config.LoadTuningConfig(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// track runs the frame loop until the source ends or ctx is cancelled.
func track(ctx context.Context, o *options) error {
	cfg, err := loadConfig(o.configPath)
	if err != nil {
		return err
	}
	estCfg := cfg.EstimatorConfig()
	if err := estCfg.Validate(); err != nil {
		return err
	}

	source, detector, sourceName, err := openSource(o, cfg)
	if err != nil {
		return err
	}
	if detector != nil {
		defer detector.Close()
	}

	latest := &monitor.Latest{}
	stats := &pipeline.Stats{}
	sinks := []pipeline.Sink{
		&pipeline.LogSink{Units: cfg.GetUnits(), MaxDistance: cfg.GetMaxDistance()},
		latest,
	}

	var database *db.DB
	var sessionID string
	if o.dbPath != "" {
		database, err = db.NewDB(o.dbPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		rec, err := db.NewRecorder(database, estCfg, sourceName)
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.Close(); err != nil {
				monitoring.Logf("failed to end session %s: %v", rec.SessionID, err)
			}
		}()
		sessionID = rec.SessionID
		monitoring.Logf("recording session %s to %s", sessionID, o.dbPath)
		sinks = append(sinks, rec)
	}

	if o.recordPath != "" {
		f, err := os.Create(o.recordPath)
		if err != nil {
			return fmt.Errorf("creating replay log: %w", err)
		}
		defer f.Close()
		sinks = append(sinks, pipeline.NewReplaySink(f))
	}

	pcfg := pipeline.Config{
		Source:     source,
		Intrinsics: cfg.Intrinsics(),
		Estimator:  tagpose.NewEstimator(estCfg),
		Sinks:      sinks,
		Stats:      stats,
		MaxFrames:  o.maxFrames,
	}
	if detector != nil {
		pcfg.Detector = detector
	}
	runner, err := pipeline.NewRunner(pcfg)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if o.listen != "" {
		ws, err := monitor.NewWebServer(monitor.WebServerConfig{
			Address:     o.listen,
			Stats:       stats,
			Latest:      latest,
			DB:          database,
			SessionID:   sessionID,
			SnapshotDir: o.snapshotDir,
			Units:       cfg.GetUnits(),
		})
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ws.Start(runCtx); err != nil {
				monitoring.Logf("web server: %v", err)
				cancel()
			}
		}()
	}

	err = runner.Run(runCtx)
	s := stats.Snapshot()
	monitoring.Logf("processed %d frames (%d with reference, %d observations, %d frame errors)",
		s.Frames, s.FramesWithReference, s.Observations, s.FrameErrors)

	cancel()
	wg.Wait()
	return err
}

// openSource picks the replay log when one is given and the camera
// otherwise. The detector is nil for replays.
func openSource(o *options, cfg *config.TuningConfig) (camera.Source, *camera.ArucoDetector, string, error) {
	if o.replayPath != "" {
		src := camera.NewReplaySource(o.replayPath)
		src.Rate = cfg.GetReplayRate()
		return src, nil, "replay:" + o.replayPath, nil
	}

	src := cfg.DeviceSource()
	if o.device >= 0 {
		src.Device = o.device
	}
	det, err := camera.NewArucoDetector()
	if err != nil {
		return nil, nil, "", err
	}
	return src, det, fmt.Sprintf("camera:%d", src.Device), nil
}

// runMigrate handles "tagpose migrate [-db path] <command>".
func runMigrate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(out)
	dbPath := fs.String("db", "tagpose.db", "Path to the SQLite database")
	fs.Usage = func() { db.PrintMigrateHelp(out) }
	if err := fs.Parse(args); err != nil {
		return err
	}
	return db.RunMigrateCommand(fs.Args(), *dbPath, out)
}

// runStatus prints a running tracker's counters and latest frame.
func runStatus(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(out)
	addr := fs.String("addr", "http://localhost:8080", "Base URL of a running tracker")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c := monitor.NewClient(nil, *addr)
	s, err := c.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "frames: %d\nwith reference: %d\ndetections: %d\nobservations: %d\nframe errors: %d\nsink errors: %d\n",
		s.Frames, s.FramesWithReference, s.Detections, s.Observations, s.FrameErrors, s.SinkErrors)

	report, err := c.Latest(ctx)
	if err != nil {
		fmt.Fprintf(out, "latest: %v\n", err)
		return nil
	}
	fmt.Fprintf(out, "latest frame %d (%s)\n", report.Seq, report.Result.State)
	for _, o := range report.Result.Observations {
		fmt.Fprintf(out, "  id: %d dist: %.4f x: %.4f y: %.4f z: %.4f\n",
			o.ID, o.Distance, o.Position.X, o.Position.Y, o.Position.Z)
	}
	return nil
}

// runSnapshot asks a running tracker to write a position snapshot.
func runSnapshot(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("snapshot", flag.ContinueOnError)
	fs.SetOutput(out)
	addr := fs.String("addr", "http://localhost:8080", "Base URL of a running tracker")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := monitor.NewClient(nil, *addr).Snapshot(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, path)
	return nil
}
