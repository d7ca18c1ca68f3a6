// Package pipeline runs the per-frame tag loop: acquire a frame, detect
// tags, recover poses, estimate relative positions and hand the report to
// sinks.
//
// This package is the composition root: it imports camera, detect and
// tagpose, but none of those packages import pipeline/. Frames are
// processed strictly one at a time; cancellation is honoured between
// frames only.
package pipeline
