package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/tagpose/internal/camera"
	"github.com/banshee-data/tagpose/internal/detect"
	"github.com/banshee-data/tagpose/internal/monitoring"
	"github.com/banshee-data/tagpose/internal/tagpose"
	"github.com/banshee-data/tagpose/internal/timeutil"
)

// FrameReport is everything known about one processed frame.
type FrameReport struct {
	Seq        uint64              `json:"seq"`
	Timestamp  time.Time           `json:"timestamp"`
	Detections []detect.Detection  `json:"detections"`
	Result     tagpose.FrameResult `json:"result"`
}

// JSONSafe returns a copy of r without the non-finite values encoding/json
// rejects: implausible observations are dropped and detections are
// sanitized.
func (r FrameReport) JSONSafe() FrameReport {
	out := r
	out.Detections = detect.SanitizeDetections(r.Detections)
	out.Result.Observations = make([]tagpose.RelativeObservation, 0, len(r.Result.Observations))
	for _, o := range r.Result.Observations {
		if o.Plausible(0) {
			out.Result.Observations = append(out.Result.Observations, o)
		}
	}
	return out
}

// Sink consumes frame reports. Errors are logged by the runner and never
// stop the loop.
type Sink interface {
	HandleFrame(ctx context.Context, report FrameReport) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, report FrameReport) error

// HandleFrame calls f.
func (f SinkFunc) HandleFrame(ctx context.Context, report FrameReport) error {
	return f(ctx, report)
}

// Config holds the runner's collaborators.
type Config struct {
	Source camera.Source
	// Detector handles frames that arrive as images. Optional when the
	// source supplies detections itself.
	Detector   detect.Detector
	Intrinsics detect.Intrinsics
	Estimator  *tagpose.Estimator
	Sinks      []Sink
	// Stats is optional; when nil the runner allocates its own.
	Stats *Stats
	Clock timeutil.Clock
	// MaxFrames stops the loop after this many frames. Zero means no limit.
	MaxFrames uint64
}

// Runner drives frames from a source through the estimator.
type Runner struct {
	cfg   Config
	stats *Stats
	clock timeutil.Clock
}

// NewRunner validates cfg and returns a runner.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("pipeline: source is required")
	}
	if cfg.Estimator == nil {
		return nil, fmt.Errorf("pipeline: estimator is required")
	}
	r := &Runner{cfg: cfg, stats: cfg.Stats, clock: cfg.Clock}
	if r.stats == nil {
		r.stats = &Stats{}
	}
	if r.clock == nil {
		r.clock = timeutil.RealClock{}
	}
	return r, nil
}

// Stats returns the runner's counters.
func (r *Runner) Stats() *Stats {
	return r.stats
}

// Run opens the source and processes frames until the stream ends, ctx is
// done or MaxFrames is reached. A clean end of stream returns nil; so does
// cancellation.
func (r *Runner) Run(ctx context.Context) error {
	stream, err := r.cfg.Source.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open frame source: %w", err)
	}
	defer func() {
		if err := stream.Close(); err != nil {
			monitoring.Logf("failed to close frame source: %v", err)
		}
	}()

	var processed uint64
	for {
		if r.cfg.MaxFrames > 0 && processed >= r.cfg.MaxFrames {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}

		frame, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			monitoring.Logf("frame source exhausted after %d frames", processed)
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read frame: %w", err)
		}

		processed++
		report, err := r.ProcessFrame(ctx, frame)
		if err != nil {
			r.stats.recordError()
			monitoring.Logf("frame %d: %v", frame.Seq, err)
			continue
		}
		r.dispatch(ctx, report)
	}
}

// ProcessFrame runs detection (if needed), pose recovery and estimation on a
// single frame. It does not touch the sinks.
func (r *Runner) ProcessFrame(ctx context.Context, frame camera.Frame) (FrameReport, error) {
	start := r.clock.Now()

	dets := frame.Detections
	if !frame.Detected {
		if frame.Gray == nil {
			return FrameReport{}, fmt.Errorf("frame has neither detections nor an image")
		}
		if r.cfg.Detector == nil {
			return FrameReport{}, fmt.Errorf("frame needs detection but no detector is configured")
		}
		var err error
		dets, err = r.cfg.Detector.Detect(ctx, frame.Gray)
		if err != nil {
			return FrameReport{}, fmt.Errorf("detection failed: %w", err)
		}
	}
	if dets == nil {
		dets = []detect.Detection{}
	}

	obs := detect.Recover(dets, r.cfg.Intrinsics)
	result := r.cfg.Estimator.Estimate(obs)
	if result.ReferenceDegenerate {
		monitoring.Debugf("frame %d: reference tag %d pose not invertible", frame.Seq, r.cfg.Estimator.Config().ReferenceID)
	}

	ts := frame.Timestamp
	if ts.IsZero() {
		ts = start
	}
	report := FrameReport{
		Seq:        frame.Seq,
		Timestamp:  ts,
		Detections: dets,
		Result:     result,
	}
	r.stats.record(report, r.clock.Since(start))
	return report, nil
}

func (r *Runner) dispatch(ctx context.Context, report FrameReport) {
	for _, s := range r.cfg.Sinks {
		if err := s.HandleFrame(ctx, report); err != nil {
			r.stats.recordSinkError()
			monitoring.Logf("frame %d: sink error: %v", report.Seq, err)
		}
	}
}
