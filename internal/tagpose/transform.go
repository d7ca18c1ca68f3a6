package tagpose

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrDegenerateTransform is returned when a transform cannot be inverted to
// a finite result.
var ErrDegenerateTransform = errors.New("degenerate transform")

// singularTolerance scales the largest singular value to give the cutoff
// below which singular values are treated as zero during inversion.
const singularTolerance = 1e-12

// Transform is a 4x4 homogeneous rigid transform stored row-major:
// m00,m01,m02,m03, m10,...,m33. Translation lives in T[3], T[7], T[11].
type Transform [16]float64

// Vec3 is a 3-D vector.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Scale returns v with every component multiplied by k.
func (v Vec3) Scale(k float64) Vec3 {
	return Vec3{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// Identity returns the 4x4 identity transform.
func Identity() Transform {
	return Transform{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translation returns a pure translation by (x, y, z).
func Translation(x, y, z float64) Transform {
	t := Identity()
	t[3], t[7], t[11] = x, y, z
	return t
}

// At returns the element at row r, column c.
func (t Transform) At(r, c int) float64 {
	return t[r*4+c]
}

// Mul returns the matrix product t * o.
func (t Transform) Mul(o Transform) Transform {
	var out Transform
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += t[r*4+k] * o[k*4+c]
			}
			out[r*4+c] = sum
		}
	}
	return out
}

// Translation returns the translation column (rows 0-2 of column 3).
func (t Transform) Translation() Vec3 {
	return Vec3{X: t[3], Y: t[7], Z: t[11]}
}

// IsFinite reports whether every element is neither NaN nor infinite.
func (t Transform) IsFinite() bool {
	for _, v := range t {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Dense copies t into a new gonum matrix.
func (t Transform) Dense() *mat.Dense {
	data := make([]float64, 16)
	copy(data, t[:])
	return mat.NewDense(4, 4, data)
}

// FromDense converts a 4x4 gonum matrix into a Transform.
func FromDense(m mat.Matrix) (Transform, error) {
	r, c := m.Dims()
	if r != 4 || c != 4 {
		return Transform{}, fmt.Errorf("transform must be 4x4, got %dx%d", r, c)
	}
	var t Transform
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			t[i*4+j] = m.At(i, j)
		}
	}
	return t, nil
}

// Inverse returns the SVD pseudo-inverse of t: V * diag(1/s) * U^T, with
// singular values below singularTolerance*s_max treated as zero.
//
// A general inverse is not used because upstream pose noise can leave the
// matrix badly conditioned. ErrDegenerateTransform is returned when t holds
// non-finite values, the factorisation fails, every singular value is zero,
// or the result is not finite.
func (t Transform) Inverse() (Transform, error) {
	if !t.IsFinite() {
		return Transform{}, fmt.Errorf("%w: non-finite input", ErrDegenerateTransform)
	}

	var svd mat.SVD
	if ok := svd.Factorize(t.Dense(), mat.SVDFull); !ok {
		return Transform{}, fmt.Errorf("%w: SVD factorisation failed", ErrDegenerateTransform)
	}

	values := svd.Values(nil)
	if len(values) == 0 || values[0] == 0 {
		return Transform{}, fmt.Errorf("%w: zero matrix", ErrDegenerateTransform)
	}

	cutoff := values[0] * singularTolerance
	inv := make([]float64, len(values))
	for i, s := range values {
		if s > cutoff {
			inv[i] = 1 / s
		}
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var out mat.Dense
	out.Product(&v, mat.NewDiagDense(len(inv), inv), u.T())

	result, err := FromDense(&out)
	if err != nil {
		return Transform{}, err
	}
	if !result.IsFinite() {
		return Transform{}, fmt.Errorf("%w: non-finite inverse", ErrDegenerateTransform)
	}
	return result, nil
}

// ApproxEqual reports whether every element of t and o differs by at most tol.
func (t Transform) ApproxEqual(o Transform, tol float64) bool {
	for i := range t {
		if math.Abs(t[i]-o[i]) > tol {
			return false
		}
	}
	return true
}
