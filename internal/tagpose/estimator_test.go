package tagpose

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

// rotZ returns a rotation of theta radians about z followed by a
// translation of (x, y, z).
func rotZ(theta, x, y, z float64) Transform {
	c, s := math.Cos(theta), math.Sin(theta)
	return Transform{
		c, -s, 0, x,
		s, c, 0, y,
		0, 0, 1, z,
		0, 0, 0, 1,
	}
}

func assertVec(t *testing.T, want, got Vec3) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, eps, "x")
	assert.InDelta(t, want.Y, got.Y, eps, "y")
	assert.InDelta(t, want.Z, got.Z, eps, "z")
}

func TestEstimateWithoutReference(t *testing.T) {
	t.Parallel()

	est := NewEstimator(DefaultConfig())

	t.Run("empty frame", func(t *testing.T) {
		t.Parallel()
		res := est.Estimate(nil)
		assert.Equal(t, StateNoReference, res.State)
		assert.False(t, res.HasReference())
		assert.Empty(t, res.Observations)
		assert.NotNil(t, res.Observations)
	})

	t.Run("only non-reference tags", func(t *testing.T) {
		t.Parallel()
		obs := []TagObservation{
			{ID: 1, Pose: Translation(1, 0, 0)},
			{ID: 2, Pose: Translation(0, 1, 0)},
			{ID: 7, Pose: Identity()},
		}
		res := est.Estimate(obs)
		assert.Equal(t, StateNoReference, res.State)
		assert.Empty(t, res.Observations)
		assert.False(t, res.ReferenceDegenerate)
	})
}

func TestEstimateTranslationScenario(t *testing.T) {
	t.Parallel()

	est := NewEstimator(DefaultConfig())
	res := est.Estimate([]TagObservation{
		{ID: 0, Pose: Identity()},
		{ID: 1, Pose: Translation(1, 0, 0), Centroid: Point2{X: 10, Y: 20}},
	})

	require.Equal(t, StateReferenceFound, res.State)
	require.Len(t, res.Observations, 1)
	got := res.Observations[0]
	assert.Equal(t, 1, got.ID)
	assertVec(t, Vec3{X: 0.04}, got.Position)
	assert.InDelta(t, 0.04, got.Distance, eps)
	assert.Equal(t, Point2{X: 10, Y: 20}, got.Centroid)
}

func TestEstimatePreservesInputOrder(t *testing.T) {
	t.Parallel()

	est := NewEstimator(DefaultConfig())
	obs := []TagObservation{
		{ID: 5, Pose: Translation(0, 0, 1)},
		{ID: 3, Pose: Translation(0, 2, 0)},
		{ID: 0, Pose: Identity()},
		{ID: 9, Pose: Translation(3, 0, 0)},
	}

	res := est.Estimate(obs)
	require.Len(t, res.Observations, 3)
	ids := []int{res.Observations[0].ID, res.Observations[1].ID, res.Observations[2].ID}
	assert.Equal(t, []int{5, 3, 9}, ids)
	assert.InDelta(t, 0.04, res.Observations[0].Distance, eps)
	assert.InDelta(t, 0.08, res.Observations[1].Distance, eps)
	assert.InDelta(t, 0.12, res.Observations[2].Distance, eps)
}

func TestEstimateSamePoseIsZero(t *testing.T) {
	t.Parallel()

	ref := rotZ(0.7, 0.3, -1.2, -6)
	est := NewEstimator(DefaultConfig())
	res := est.Estimate([]TagObservation{
		{ID: 0, Pose: ref},
		{ID: 4, Pose: ref},
	})

	require.Len(t, res.Observations, 1)
	assertVec(t, Vec3{}, res.Observations[0].Position)
	assert.InDelta(t, 0, res.Observations[0].Distance, eps)
}

func TestEstimateRotatedReference(t *testing.T) {
	t.Parallel()

	// Tag sits two units along the reference tag's own x axis.
	ref := rotZ(math.Pi/2, 1, 0, -5)
	tag := ref.Mul(Translation(2, 0, 0))

	est := NewEstimator(DefaultConfig())
	res := est.Estimate([]TagObservation{{ID: 0, Pose: ref}, {ID: 1, Pose: tag}})

	require.Len(t, res.Observations, 1)
	assertVec(t, Vec3{X: 0.08}, res.Observations[0].Position)
}

func TestEstimateScaleIsLinear(t *testing.T) {
	t.Parallel()

	obs := []TagObservation{
		{ID: 0, Pose: rotZ(0.2, 0, 0, -4)},
		{ID: 1, Pose: rotZ(-0.4, 1.5, 0.5, -4.2)},
		{ID: 2, Pose: rotZ(1.1, -2, 1, -3)},
	}

	base := NewEstimator(Config{TagSizeScale: 0.08}).Estimate(obs)
	doubled := NewEstimator(Config{TagSizeScale: 0.16}).Estimate(obs)

	require.Len(t, base.Observations, 2)
	require.Len(t, doubled.Observations, 2)
	for i := range base.Observations {
		assertVec(t, base.Observations[i].Position.Scale(2), doubled.Observations[i].Position)
		assert.InDelta(t, 2*base.Observations[i].Distance, doubled.Observations[i].Distance, eps)
	}
}

func TestEstimateDuplicateReferenceFirstWins(t *testing.T) {
	t.Parallel()

	first := TagObservation{ID: 0, Pose: Translation(0.5, 0, -3)}
	second := TagObservation{ID: 0, Pose: rotZ(1, 4, 4, -9)}
	other := TagObservation{ID: 2, Pose: Translation(1, 1, -3)}

	est := NewEstimator(DefaultConfig())
	withDup := est.Estimate([]TagObservation{first, other, second})
	single := est.Estimate([]TagObservation{first, other})

	assert.Equal(t, single, withDup)
	require.Len(t, withDup.Observations, 1)
	assert.Equal(t, 2, withDup.Observations[0].ID)
}

func TestEstimateCustomReferenceID(t *testing.T) {
	t.Parallel()

	est := NewEstimator(Config{ReferenceID: 7, TagSizeScale: 0.08})
	res := est.Estimate([]TagObservation{
		{ID: 0, Pose: Translation(1, 0, 0)},
		{ID: 7, Pose: Identity()},
	})

	require.Len(t, res.Observations, 1)
	assert.Equal(t, 0, res.Observations[0].ID)
	assert.InDelta(t, 0.04, res.Observations[0].Distance, eps)
}

func TestEstimateDegenerateReference(t *testing.T) {
	t.Parallel()

	var nanPose Transform
	for i := range nanPose {
		nanPose[i] = math.NaN()
	}

	est := NewEstimator(DefaultConfig())
	for name, pose := range map[string]Transform{
		"zero matrix": {},
		"nan pose":    nanPose,
	} {
		t.Run(name, func(t *testing.T) {
			res := est.Estimate([]TagObservation{
				{ID: 0, Pose: pose},
				{ID: 1, Pose: Translation(1, 0, 0)},
			})
			assert.Equal(t, StateNoReference, res.State)
			assert.True(t, res.ReferenceDegenerate)
			assert.Empty(t, res.Observations)
		})
	}
}

func TestEstimateDegenerateTagDoesNotAbortFrame(t *testing.T) {
	t.Parallel()

	bad := Identity()
	bad[3] = math.Inf(1)

	est := NewEstimator(DefaultConfig())
	res := est.Estimate([]TagObservation{
		{ID: 0, Pose: Identity()},
		{ID: 1, Pose: bad},
		{ID: 2, Pose: Translation(0, 1, 0)},
	})

	require.Len(t, res.Observations, 2)
	assert.False(t, res.Observations[0].Plausible(0))
	assert.True(t, res.Observations[1].Plausible(0))
	assert.InDelta(t, 0.04, res.Observations[1].Distance, eps)
}

func TestConfigScale(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.04, DefaultConfig().Scale(), eps)
	assert.InDelta(t, 0.5, Config{TagSizeScale: 0.08, PositionScale: 0.5}.Scale(), eps)

	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{ReferenceID: -1, TagSizeScale: 1}.Validate())
	assert.Error(t, Config{}.Validate())
	assert.NoError(t, Config{PositionScale: 1}.Validate())
	assert.Error(t, Config{TagSizeScale: 0.08, PositionScale: -0.04}.Validate())
	assert.Error(t, Config{TagSizeScale: 0.08, PositionScale: math.Inf(1)}.Validate())
}

func TestRelativeObservationPlausible(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		obs  RelativeObservation
		max  float64
		want bool
	}{
		{"within bound", RelativeObservation{Position: Vec3{X: 1}, Distance: 1}, 5, true},
		{"no bound", RelativeObservation{Position: Vec3{X: 100}, Distance: 100}, 0, true},
		{"beyond bound", RelativeObservation{Position: Vec3{X: 10}, Distance: 10}, 5, false},
		{"nan position", RelativeObservation{Position: Vec3{Y: math.NaN()}, Distance: 1}, 5, false},
		{"inf distance", RelativeObservation{Distance: math.Inf(1)}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.obs.Plausible(tt.max))
		})
	}
}
