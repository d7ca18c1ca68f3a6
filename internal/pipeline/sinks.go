package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/banshee-data/tagpose/internal/camera"
	"github.com/banshee-data/tagpose/internal/monitoring"
	"github.com/banshee-data/tagpose/internal/units"
)

// LogSink prints one annotation line per relative observation.
type LogSink struct {
	// Units selects the display unit; positions are assumed to be metres.
	Units string
	// MaxDistance drops observations further than this (in metres) from the
	// reference. Zero keeps everything finite.
	MaxDistance float64
	// Logf defaults to monitoring.Logf.
	Logf func(format string, v ...interface{})
}

// HandleFrame implements Sink.
func (s *LogSink) HandleFrame(_ context.Context, report FrameReport) error {
	logf := s.Logf
	if logf == nil {
		logf = monitoring.Logf
	}
	unit := s.Units
	if !units.IsValid(unit) {
		unit = units.M
	}

	if !report.Result.HasReference() {
		monitoring.Debugf("frame %d: %d tags, no reference", report.Seq, len(report.Detections))
		return nil
	}
	for _, o := range report.Result.Observations {
		if !o.Plausible(s.MaxDistance) {
			monitoring.Debugf("frame %d: tag %d implausible distance %v", report.Seq, o.ID, o.Distance)
			continue
		}
		logf("frame %d id: %d dist: %.4f%s x: %.4f y: %.4f z: %.4f",
			report.Seq, o.ID,
			units.ConvertLength(o.Distance, unit), unit,
			units.ConvertLength(o.Position.X, unit),
			units.ConvertLength(o.Position.Y, unit),
			units.ConvertLength(o.Position.Z, unit))
	}
	return nil
}

// ReplaySink writes every frame's detections to a replay log so a live
// session can be reprocessed later with different settings.
type ReplaySink struct {
	mu sync.Mutex
	w  *camera.ReplayWriter
}

// NewReplaySink writes to w.
func NewReplaySink(w io.Writer) *ReplaySink {
	return &ReplaySink{w: camera.NewReplayWriter(w)}
}

// HandleFrame implements Sink.
func (s *ReplaySink) HandleFrame(_ context.Context, report FrameReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Write(report.Seq, report.Timestamp, report.Detections); err != nil {
		return fmt.Errorf("failed to write replay record: %w", err)
	}
	return nil
}
