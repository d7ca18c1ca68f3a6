//go:build !gocv
// +build !gocv

package camera

import (
	"context"
	"fmt"
	"image"

	"github.com/banshee-data/tagpose/internal/detect"
)

// Open is a stub when gocv support is disabled.
// Build with -tags=gocv to capture from a device.
func (s *DeviceSource) Open(ctx context.Context) (Stream, error) {
	return nil, fmt.Errorf("%w: device %d: gocv support not enabled: rebuild with -tags=gocv", ErrCameraUnavailable, s.Device)
}

// ArucoDetector is a stub when gocv support is disabled.
type ArucoDetector struct{}

// NewArucoDetector returns an error unless built with -tags=gocv.
func NewArucoDetector() (*ArucoDetector, error) {
	return nil, fmt.Errorf("tag detection not enabled: rebuild with -tags=gocv")
}

// Detect always fails in the stub build.
func (a *ArucoDetector) Detect(ctx context.Context, img *image.Gray) ([]detect.Detection, error) {
	return nil, fmt.Errorf("tag detection not enabled: rebuild with -tags=gocv")
}

// Close is a no-op in the stub build.
func (a *ArucoDetector) Close() error { return nil }
