package tagpose

import "math"

// Point2 is an image-space point in pixels.
type Point2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TagObservation is one detected tag in one frame. Pose is the
// camera-to-tag transform recovered from the tag's homography; Centroid is
// only used to place annotations.
type TagObservation struct {
	ID       int       `json:"id"`
	Pose     Transform `json:"pose"`
	Centroid Point2    `json:"centroid"`
}

// RelativeObservation is a non-reference tag expressed in the reference
// tag's frame. Position is already multiplied by the configured position
// scale and Distance is its Euclidean norm.
type RelativeObservation struct {
	ID       int     `json:"id"`
	Position Vec3    `json:"position"`
	Distance float64 `json:"distance"`
	Centroid Point2  `json:"centroid"`
}

// Plausible reports whether the observation is finite and no further than
// maxDistance from the reference. A maxDistance <= 0 disables the bound.
// Consumers drop implausible observations rather than treating them as
// errors; one unstable homography must not take down the rest of a frame.
func (o RelativeObservation) Plausible(maxDistance float64) bool {
	for _, v := range []float64{o.Position.X, o.Position.Y, o.Position.Z, o.Distance} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if maxDistance > 0 && o.Distance > maxDistance {
		return false
	}
	return true
}

// FrameState is the estimator's per-frame state.
type FrameState string

const (
	// StateNoReference means no usable reference tag was found this frame.
	StateNoReference FrameState = "no_reference"
	// StateReferenceFound means the reference was located and inverted.
	StateReferenceFound FrameState = "reference_found"
)

// FrameResult is the estimator output for one frame.
type FrameResult struct {
	State FrameState `json:"state"`
	// ReferenceDegenerate is set when a reference tag was seen but its pose
	// could not be inverted. State is StateNoReference in that case.
	ReferenceDegenerate bool                  `json:"reference_degenerate,omitempty"`
	Observations        []RelativeObservation `json:"observations"`
}

// HasReference reports whether relative observations were computed.
func (r FrameResult) HasReference() bool {
	return r.State == StateReferenceFound
}
