// Package testutil provides shared test fixtures: synthetic tag detections
// with known ground truth and small HTTP assertion helpers.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/tagpose/internal/detect"
	"github.com/banshee-data/tagpose/internal/tagpose"
)

// TagAt returns the detection of an unrotated tag whose centre sits at
// (x, y, z) half-edges from the camera, using the default intrinsics.
// Tags in front of the camera have negative z.
func TagAt(t testing.TB, id int, x, y, z float64) detect.Detection {
	t.Helper()
	return TagWithPose(t, id, tagpose.Translation(x, y, z))
}

// TagWithPose returns the detection of a tag at an arbitrary pose.
func TagWithPose(t testing.TB, id int, pose tagpose.Transform) detect.Detection {
	t.Helper()
	d, err := detect.Synthesize(id, pose, detect.DefaultIntrinsics())
	if err != nil {
		t.Fatalf("synthesize tag %d: %v", id, err)
	}
	return d
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// LoopbackRequest creates a request that passes tsweb's debug access check.
func LoopbackRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}
