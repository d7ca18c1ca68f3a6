package pipeline

import (
	"sync/atomic"
	"time"
)

// Stats counts pipeline activity. Counters are updated by the runner
// goroutine and may be read concurrently (e.g. by the monitor).
type Stats struct {
	frames          atomic.Uint64
	framesWithRef   atomic.Uint64
	degenerateRefs  atomic.Uint64
	detections      atomic.Uint64
	observations    atomic.Uint64
	frameErrors     atomic.Uint64
	sinkErrors      atomic.Uint64
	lastLatencyNano atomic.Int64
	lastSeq         atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Frames              uint64  `json:"frames"`
	FramesWithReference uint64  `json:"frames_with_reference"`
	DegenerateReference uint64  `json:"degenerate_reference"`
	Detections          uint64  `json:"detections"`
	Observations        uint64  `json:"observations"`
	FrameErrors         uint64  `json:"frame_errors"`
	SinkErrors          uint64  `json:"sink_errors"`
	LastSeq             uint64  `json:"last_seq"`
	LastLatencyMs       float64 `json:"last_latency_ms"`
}

// Frames returns the number of frames processed.
func (s *Stats) Frames() uint64 {
	return s.frames.Load()
}

// Snapshot returns a copy of every counter.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Frames:              s.frames.Load(),
		FramesWithReference: s.framesWithRef.Load(),
		DegenerateReference: s.degenerateRefs.Load(),
		Detections:          s.detections.Load(),
		Observations:        s.observations.Load(),
		FrameErrors:         s.frameErrors.Load(),
		SinkErrors:          s.sinkErrors.Load(),
		LastSeq:             s.lastSeq.Load(),
		LastLatencyMs:       float64(s.lastLatencyNano.Load()) / float64(time.Millisecond),
	}
}

func (s *Stats) record(report FrameReport, latency time.Duration) {
	s.frames.Add(1)
	s.lastSeq.Store(report.Seq)
	s.detections.Add(uint64(len(report.Detections)))
	s.observations.Add(uint64(len(report.Result.Observations)))
	if report.Result.HasReference() {
		s.framesWithRef.Add(1)
	}
	if report.Result.ReferenceDegenerate {
		s.degenerateRefs.Add(1)
	}
	s.lastLatencyNano.Store(int64(latency))
}

func (s *Stats) recordError() {
	s.frameErrors.Add(1)
}

func (s *Stats) recordSinkError() {
	s.sinkErrors.Add(1)
}
