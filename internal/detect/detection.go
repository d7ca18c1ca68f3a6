// Package detect recovers camera-to-tag poses from tag detections.
//
// A Detection is what a fiducial detector reports for one tag: its id, the
// four image corners, the centre and the 3x3 homography from the canonical
// tag square to the image. HomographyToPose turns that homography into a
// tagpose.Transform given the camera intrinsics.
package detect

import (
	"context"
	"image"
	"math"

	"github.com/banshee-data/tagpose/internal/tagpose"
)

// Default intrinsics for the 640x360 capture mode.
const (
	DefaultFx = 3.4861838942925704e+02
	DefaultFy = 3.4861838942925704e+02
	DefaultCx = 3.1950000000000000e+02
	DefaultCy = 1.7950000000000000e+02
)

// Intrinsics are pinhole camera parameters in pixels.
type Intrinsics struct {
	Fx float64 `json:"fx"`
	Fy float64 `json:"fy"`
	Cx float64 `json:"cx"`
	Cy float64 `json:"cy"`
}

// DefaultIntrinsics returns the intrinsics of the reference capture mode.
func DefaultIntrinsics() Intrinsics {
	return Intrinsics{Fx: DefaultFx, Fy: DefaultFy, Cx: DefaultCx, Cy: DefaultCy}
}

// Detection is a single detected tag.
type Detection struct {
	ID      int               `json:"id"`
	Corners [4]tagpose.Point2 `json:"corners"`
	Center  tagpose.Point2    `json:"center"`
	H       [9]float64        `json:"h"`
}

// HasHomography reports whether H holds anything other than zeros.
func (d Detection) HasHomography() bool {
	for _, v := range d.H {
		if v != 0 {
			return true
		}
	}
	return false
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Sanitized returns d in a form that survives JSON encoding. A non-finite
// homography is cleared so consumers fall back to the corners; ok is false
// when the corners or centre are themselves non-finite.
func (d Detection) Sanitized() (Detection, bool) {
	if !finite(d.Center.X, d.Center.Y) {
		return Detection{}, false
	}
	for _, c := range d.Corners {
		if !finite(c.X, c.Y) {
			return Detection{}, false
		}
	}
	if !finite(d.H[:]...) {
		d.H = [9]float64{}
	}
	return d, true
}

// SanitizeDetections applies Sanitized to every detection, dropping the
// unusable ones. The result is never nil.
func SanitizeDetections(dets []Detection) []Detection {
	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if s, ok := d.Sanitized(); ok {
			out = append(out, s)
		}
	}
	return out
}

// Detector finds tags in a grayscale image.
type Detector interface {
	Detect(ctx context.Context, img *image.Gray) ([]Detection, error)
}
