package tagpose

import "math"

// PoseQuality grades how closely a transform matches a proper rigid transform.
type PoseQuality string

const (
	// PoseQualityRigid indicates an orthonormal rotation block (det ≈ 1) and
	// a homogeneous last row.
	PoseQualityRigid PoseQuality = "rigid"
	// PoseQualitySkewed indicates finite values that are not a rigid transform.
	PoseQualitySkewed PoseQuality = "skewed"
	// PoseQualityNonFinite indicates NaN or Inf entries.
	PoseQualityNonFinite PoseQuality = "non_finite"
)

// RigidTolerance is the default tolerance for rotation determinant and
// column orthonormality checks.
const RigidTolerance = 0.01

// PoseCheck is the result of ValidateTransform.
type PoseCheck struct {
	Quality PoseQuality
	Issues  []string
}

// Usable reports whether the transform can be fed to the estimator without
// producing non-finite output.
func (c PoseCheck) Usable() bool {
	return c.Quality != PoseQualityNonFinite
}

// ValidateTransform grades t. Skewed transforms are still usable; the
// estimator composes them as-is and leaves plausibility to the caller.
func ValidateTransform(t Transform, tol float64) PoseCheck {
	check := PoseCheck{Quality: PoseQualityRigid, Issues: make([]string, 0)}

	if !t.IsFinite() {
		check.Quality = PoseQualityNonFinite
		check.Issues = append(check.Issues, "transform contains NaN or Inf")
		return check
	}

	r00, r01, r02 := t[0], t[1], t[2]
	r10, r11, r12 := t[4], t[5], t[6]
	r20, r21, r22 := t[8], t[9], t[10]

	det := r00*(r11*r22-r12*r21) - r01*(r10*r22-r12*r20) + r02*(r10*r21-r11*r20)
	if math.Abs(det-1.0) > tol {
		check.Issues = append(check.Issues, "rotation determinant is not 1")
	}

	// Columns of a rotation are unit length and mutually orthogonal.
	cols := [3]Vec3{
		{X: r00, Y: r10, Z: r20},
		{X: r01, Y: r11, Z: r21},
		{X: r02, Y: r12, Z: r22},
	}
	for i := 0; i < 3; i++ {
		if math.Abs(cols[i].Norm()-1) > tol {
			check.Issues = append(check.Issues, "rotation column is not unit length")
			break
		}
	}
	if math.Abs(dot(cols[0], cols[1])) > tol ||
		math.Abs(dot(cols[0], cols[2])) > tol ||
		math.Abs(dot(cols[1], cols[2])) > tol {
		check.Issues = append(check.Issues, "rotation columns are not orthogonal")
	}

	if t[12] != 0 || t[13] != 0 || t[14] != 0 || math.Abs(t[15]-1.0) > 0.001 {
		check.Issues = append(check.Issues, "last row is not [0 0 0 1]")
	}

	if len(check.Issues) > 0 {
		check.Quality = PoseQualitySkewed
	}
	return check
}

func dot(a, b Vec3) float64 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}
