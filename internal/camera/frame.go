// Package camera provides frame sources for the tag pipeline.
//
// A Source is a capability object: each Open call starts a fresh Stream, so
// a replay can be rewound or a device reopened after a fault without any
// process-wide capture state. Streams are consumed by a single goroutine.
package camera

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/banshee-data/tagpose/internal/detect"
)

// ErrCameraUnavailable is returned when a capture device cannot be opened.
var ErrCameraUnavailable = errors.New("camera unavailable")

// Frame is one acquired frame. Sources that already know the detections
// (replay logs) set Detected and leave Gray nil; capture devices fill Gray
// and leave detection to a detect.Detector.
type Frame struct {
	Seq        uint64
	Timestamp  time.Time
	Gray       *image.Gray
	Detections []detect.Detection
	Detected   bool
}

// Source opens frame streams.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream yields frames in acquisition order. Next returns io.EOF when the
// stream is exhausted and ctx.Err() once ctx is done.
type Stream interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}
