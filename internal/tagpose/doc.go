// Package tagpose owns the multi-tag relative pose estimator.
//
// Responsibilities: selecting the reference tag in a frame, inverting its
// camera-to-tag transform, composing every other tag's transform into the
// reference frame and deriving a scaled position and distance per tag.
// Key types: Transform, TagObservation, RelativeObservation, Estimator.
//
// The estimator is memoryless. Each call to Estimate starts in the
// no-reference state and only sees the observations passed to it; nothing
// carries over between frames, so a reference tag that leaves the view
// simply produces empty frames until it returns.
//
// Dependency rule: tagpose depends on no other package in this module.
package tagpose
