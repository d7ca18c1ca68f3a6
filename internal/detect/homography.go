package detect

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/tagpose/internal/tagpose"
)

// ErrNoHomography is returned when corners or a homography cannot produce a pose.
var ErrNoHomography = errors.New("no usable homography")

// TagCorners are the canonical tag-frame corners in detector order. The
// homography maps these onto the image corners.
var TagCorners = [4]tagpose.Point2{
	{X: -1, Y: -1},
	{X: 1, Y: -1},
	{X: 1, Y: 1},
	{X: -1, Y: 1},
}

// EstimateHomography solves for H mapping TagCorners onto corners using the
// direct linear transform: the right singular vector of the 8x9 system with
// the smallest singular value. The result is normalised so H[8] is 1 when
// possible.
func EstimateHomography(corners [4]tagpose.Point2) ([9]float64, error) {
	a := mat.NewDense(8, 9, nil)
	for i := 0; i < 4; i++ {
		X, Y := TagCorners[i].X, TagCorners[i].Y
		x, y := corners[i].X, corners[i].Y
		a.SetRow(2*i, []float64{X, Y, 1, 0, 0, 0, -x * X, -x * Y, -x})
		a.SetRow(2*i+1, []float64{0, 0, 0, X, Y, 1, -y * X, -y * Y, -y})
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return [9]float64{}, fmt.Errorf("%w: SVD factorisation failed", ErrNoHomography)
	}

	// Four points in general position leave a one-dimensional null space.
	// Collinear corners collapse the eighth singular value too.
	values := svd.Values(nil)
	if len(values) < 8 || values[0] == 0 || values[7]/values[0] < 1e-10 {
		return [9]float64{}, fmt.Errorf("%w: degenerate corners", ErrNoHomography)
	}

	var v mat.Dense
	svd.VTo(&v)

	var h [9]float64
	for i := 0; i < 9; i++ {
		h[i] = v.At(i, 8)
	}
	if math.Abs(h[8]) > 1e-12 {
		k := 1 / h[8]
		for i := range h {
			h[i] *= k
		}
	}
	return h, nil
}

// ApplyHomography maps a tag-frame point through h.
func ApplyHomography(h [9]float64, p tagpose.Point2) (tagpose.Point2, bool) {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if w == 0 {
		return tagpose.Point2{}, false
	}
	return tagpose.Point2{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}, true
}

// ProjectCorners maps TagCorners and the tag centre through h.
func ProjectCorners(h [9]float64) (corners [4]tagpose.Point2, center tagpose.Point2, err error) {
	for i, c := range TagCorners {
		p, ok := ApplyHomography(h, c)
		if !ok {
			return corners, center, fmt.Errorf("%w: corner %d at infinity", ErrNoHomography, i)
		}
		corners[i] = p
	}
	center, ok := ApplyHomography(h, tagpose.Point2{})
	if !ok {
		return corners, center, fmt.Errorf("%w: centre at infinity", ErrNoHomography)
	}
	return corners, center, nil
}
