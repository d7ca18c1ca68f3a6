package monitor

import (
	"context"
	"sync"

	"github.com/banshee-data/tagpose/internal/pipeline"
)

// Latest is a pipeline sink that remembers the most recent frame report.
type Latest struct {
	mu     sync.RWMutex
	report pipeline.FrameReport
	ok     bool
}

// HandleFrame implements pipeline.Sink.
func (l *Latest) HandleFrame(_ context.Context, report pipeline.FrameReport) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.report = report
	l.ok = true
	return nil
}

// Get returns the last report and whether any frame has been seen.
func (l *Latest) Get() (pipeline.FrameReport, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.report, l.ok
}
