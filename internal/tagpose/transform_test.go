package tagpose

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestTransformMul(t *testing.T) {
	t.Parallel()

	a := Translation(1, 2, 3)
	b := Translation(-4, 0.5, 1)
	got := a.Mul(b)
	assert.True(t, got.ApproxEqual(Translation(-3, 2.5, 4), eps), "got %v", got)

	r := rotZ(math.Pi/2, 0, 0, 0)
	p := r.Mul(Translation(1, 0, 0)).Translation()
	assertVec(t, Vec3{Y: 1}, p)

	assert.Equal(t, a, a.Mul(Identity()))
	assert.Equal(t, a, Identity().Mul(a))
}

func TestTransformInverseRoundTrip(t *testing.T) {
	t.Parallel()

	poses := map[string]Transform{
		"identity":    Identity(),
		"translation": Translation(0.4, -1.3, -7.5),
		"rotation":    rotZ(2.1, 0.2, 0.1, -3),
		"tilted": {
			1, 0, 0, 0.5,
			0, math.Cos(0.6), -math.Sin(0.6), -0.25,
			0, math.Sin(0.6), math.Cos(0.6), -4,
			0, 0, 0, 1,
		},
	}

	for name, pose := range poses {
		t.Run(name, func(t *testing.T) {
			inv, err := pose.Inverse()
			require.NoError(t, err)
			assert.True(t, pose.Mul(inv).ApproxEqual(Identity(), 1e-9), "pose*inv = %v", pose.Mul(inv))
			assert.True(t, inv.Mul(pose).ApproxEqual(Identity(), 1e-9), "inv*pose = %v", inv.Mul(pose))
		})
	}
}

func TestTransformInverseNearSingular(t *testing.T) {
	t.Parallel()

	// Rank 3: the homogeneous row is missing. The pseudo-inverse stays finite.
	pose := rotZ(0.3, 1, 2, -3)
	pose[15] = 0

	inv, err := pose.Inverse()
	require.NoError(t, err)
	assert.True(t, inv.IsFinite())
}

func TestTransformInverseDegenerate(t *testing.T) {
	t.Parallel()

	nan := Identity()
	nan[5] = math.NaN()

	for name, pose := range map[string]Transform{"zero": {}, "nan": nan} {
		t.Run(name, func(t *testing.T) {
			_, err := pose.Inverse()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDegenerateTransform))
		})
	}
}

func TestTransformDenseRoundTrip(t *testing.T) {
	t.Parallel()

	pose := rotZ(0.9, 1, 2, 3)
	back, err := FromDense(pose.Dense())
	require.NoError(t, err)
	assert.Equal(t, pose, back)

	_, err = FromDense(mat.NewDense(3, 3, nil))
	assert.Error(t, err)
}

func TestValidateTransform(t *testing.T) {
	t.Parallel()

	skewed := Identity()
	skewed[0] = 2

	badRow := Identity()
	badRow[12] = 0.5

	nan := Identity()
	nan[10] = math.NaN()

	tests := []struct {
		name   string
		pose   Transform
		want   PoseQuality
		usable bool
	}{
		{"identity", Identity(), PoseQualityRigid, true},
		{"rotation", rotZ(1.2, 3, 4, 5), PoseQualityRigid, true},
		{"scaled axis", skewed, PoseQualitySkewed, true},
		{"bad last row", badRow, PoseQualitySkewed, true},
		{"nan", nan, PoseQualityNonFinite, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := ValidateTransform(tt.pose, RigidTolerance)
			assert.Equal(t, tt.want, check.Quality)
			assert.Equal(t, tt.usable, check.Usable())
			if tt.want == PoseQualityRigid {
				assert.Empty(t, check.Issues)
			} else {
				assert.NotEmpty(t, check.Issues)
			}
		})
	}
}
