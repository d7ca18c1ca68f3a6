package detect

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/tagpose/internal/tagpose"
)

// testPose is a tag tilted about x and z, eight half-edges in front of the
// camera.
func testPose() tagpose.Transform {
	ax, az := 0.3, 0.2
	rx := tagpose.Transform{
		1, 0, 0, 0,
		0, math.Cos(ax), -math.Sin(ax), 0,
		0, math.Sin(ax), math.Cos(ax), 0,
		0, 0, 0, 1,
	}
	rz := tagpose.Transform{
		math.Cos(az), -math.Sin(az), 0, 0,
		math.Sin(az), math.Cos(az), 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
	return tagpose.Translation(0.5, -0.2, -8).Mul(rz).Mul(rx)
}

func TestHomographyToPoseRoundTrip(t *testing.T) {
	t.Parallel()

	in := DefaultIntrinsics()
	want := testPose()
	h := PoseToHomography(want, in)

	got, err := HomographyToPose(h, in)
	require.NoError(t, err)
	assert.True(t, got.ApproxEqual(want, 1e-9), "got %v want %v", got, want)
}

func TestHomographyToPoseIgnoresScaleAndSign(t *testing.T) {
	t.Parallel()

	in := DefaultIntrinsics()
	want := testPose()
	h := PoseToHomography(want, in)

	for _, k := range []float64{2.5, -3, -0.01} {
		var scaled [9]float64
		for i := range h {
			scaled[i] = h[i] * k
		}
		got, err := HomographyToPose(scaled, in)
		require.NoError(t, err)
		assert.True(t, got.ApproxEqual(want, 1e-9), "k=%v got %v", k, got)
	}
}

func TestHomographyToPoseRejectsDegenerateInput(t *testing.T) {
	t.Parallel()

	_, err := HomographyToPose([9]float64{}, DefaultIntrinsics())
	assert.True(t, errors.Is(err, ErrNoHomography))

	_, err = HomographyToPose(PoseToHomography(testPose(), DefaultIntrinsics()), Intrinsics{})
	assert.True(t, errors.Is(err, ErrNoHomography))
}

func TestEstimateHomographyFromCorners(t *testing.T) {
	t.Parallel()

	in := DefaultIntrinsics()
	want := testPose()
	corners, center, err := ProjectCorners(PoseToHomography(want, in))
	require.NoError(t, err)

	h, err := EstimateHomography(corners)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, h[8], 1e-12)

	// The estimate reproduces the corners it was fitted to.
	for i, c := range TagCorners {
		p, ok := ApplyHomography(h, c)
		require.True(t, ok)
		assert.InDelta(t, corners[i].X, p.X, 1e-6)
		assert.InDelta(t, corners[i].Y, p.Y, 1e-6)
	}
	p, _ := ApplyHomography(h, tagpose.Point2{})
	assert.InDelta(t, center.X, p.X, 1e-6)
	assert.InDelta(t, center.Y, p.Y, 1e-6)

	got, err := HomographyToPose(h, in)
	require.NoError(t, err)
	assert.True(t, got.ApproxEqual(want, 1e-6), "got %v want %v", got, want)
}

func TestEstimateHomographyDegenerateCorners(t *testing.T) {
	t.Parallel()

	tests := map[string][4]tagpose.Point2{
		"all zero":  {},
		"collinear": {{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}},
	}
	for name, corners := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := EstimateHomography(corners)
			assert.True(t, errors.Is(err, ErrNoHomography), "err = %v", err)
		})
	}
}

func TestRecover(t *testing.T) {
	t.Parallel()

	in := DefaultIntrinsics()
	pose := testPose()
	synth, err := Synthesize(3, pose, in)
	require.NoError(t, err)
	corners, center := synth.Corners, synth.Center

	dets := []Detection{
		synth,
		{ID: 9},
		{ID: 0, Corners: corners, Center: center},
	}

	obs := Recover(dets, in)
	require.Len(t, obs, 2)
	assert.Equal(t, 3, obs[0].ID)
	assert.Equal(t, 0, obs[1].ID)
	assert.Equal(t, center, obs[0].Centroid)
	assert.True(t, obs[0].Pose.ApproxEqual(pose, 1e-9))
	assert.True(t, obs[1].Pose.ApproxEqual(pose, 1e-6))
}

func TestDetectionHasHomography(t *testing.T) {
	t.Parallel()

	assert.False(t, Detection{}.HasHomography())
	assert.True(t, Detection{H: [9]float64{8: 1}}.HasHomography())
}

func TestDetectionSanitized(t *testing.T) {
	t.Parallel()

	square := [4]tagpose.Point2{{X: 1, Y: 1}, {X: 3, Y: 1}, {X: 3, Y: 3}, {X: 1, Y: 3}}
	good := Detection{ID: 1, Corners: square, Center: tagpose.Point2{X: 2, Y: 2}, H: [9]float64{0: 1, 4: 1, 8: 1}}

	got, ok := good.Sanitized()
	require.True(t, ok)
	assert.Equal(t, good, got)

	badH := good
	badH.H[2] = math.Inf(1)
	got, ok = badH.Sanitized()
	require.True(t, ok)
	assert.False(t, got.HasHomography(), "non-finite homography should be cleared")
	assert.Equal(t, square, got.Corners)

	badCorner := good
	badCorner.Corners[3].X = math.NaN()
	_, ok = badCorner.Sanitized()
	assert.False(t, ok)

	badCenter := good
	badCenter.Center.Y = math.Inf(-1)
	_, ok = badCenter.Sanitized()
	assert.False(t, ok)

	out := SanitizeDetections([]Detection{badCorner, badH, good})
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].ID)
	assert.False(t, out[0].HasHomography())
	assert.NotNil(t, SanitizeDetections(nil))
}
