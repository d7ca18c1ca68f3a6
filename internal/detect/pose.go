package detect

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/tagpose/internal/monitoring"
	"github.com/banshee-data/tagpose/internal/tagpose"
)

// HomographyToPose decomposes a tag homography into a camera-to-tag
// transform. Translation comes out in units of half a tag edge because the
// canonical tag square spans -1..1.
//
// The sign is chosen so the tag lies at negative z, in front of the camera,
// and the rotation block is snapped to the nearest orthonormal matrix.
func HomographyToPose(h [9]float64, in Intrinsics) (tagpose.Transform, error) {
	if in.Fx == 0 || in.Fy == 0 {
		return tagpose.Transform{}, fmt.Errorf("%w: zero focal length", ErrNoHomography)
	}

	r20, r21, tz := h[6], h[7], h[8]
	r00 := (h[0] - in.Cx*r20) / in.Fx
	r01 := (h[1] - in.Cx*r21) / in.Fx
	tx := (h[2] - in.Cx*tz) / in.Fx
	r10 := (h[3] - in.Cy*r20) / in.Fy
	r11 := (h[4] - in.Cy*r21) / in.Fy
	ty := (h[5] - in.Cy*tz) / in.Fy

	// The first two rotation columns should be unit length; their geometric
	// mean gives the homography's scale.
	len1 := math.Sqrt(r00*r00 + r10*r10 + r20*r20)
	len2 := math.Sqrt(r01*r01 + r11*r11 + r21*r21)
	if len1 == 0 || len2 == 0 {
		return tagpose.Transform{}, fmt.Errorf("%w: zero rotation column", ErrNoHomography)
	}
	s := 1.0 / math.Sqrt(len1*len2)
	if tz > 0 {
		s = -s
	}

	r00, r10, r20 = r00*s, r10*s, r20*s
	r01, r11, r21 = r01*s, r11*s, r21*s
	tx, ty, tz = tx*s, ty*s, tz*s

	// Third column is the cross product of the first two.
	r02 := r10*r21 - r20*r11
	r12 := r20*r01 - r00*r21
	r22 := r00*r11 - r10*r01

	rot := mat.NewDense(3, 3, []float64{
		r00, r01, r02,
		r10, r11, r12,
		r20, r21, r22,
	})
	var svd mat.SVD
	if ok := svd.Factorize(rot, mat.SVDFull); !ok {
		return tagpose.Transform{}, fmt.Errorf("%w: rotation SVD failed", ErrNoHomography)
	}
	var u, v, r mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	r.Mul(&u, v.T())

	pose := tagpose.Transform{
		r.At(0, 0), r.At(0, 1), r.At(0, 2), tx,
		r.At(1, 0), r.At(1, 1), r.At(1, 2), ty,
		r.At(2, 0), r.At(2, 1), r.At(2, 2), tz,
		0, 0, 0, 1,
	}
	if !pose.IsFinite() {
		return tagpose.Transform{}, fmt.Errorf("%w: non-finite pose", ErrNoHomography)
	}
	return pose, nil
}

// PoseToHomography is the inverse of HomographyToPose for a rigid pose:
// it projects the tag plane through the intrinsics. Used to synthesise
// detections with a known ground truth.
func PoseToHomography(t tagpose.Transform, in Intrinsics) [9]float64 {
	r00, r01, tx := t[0], t[1], t[3]
	r10, r11, ty := t[4], t[5], t[7]
	r20, r21, tz := t[8], t[9], t[11]
	return [9]float64{
		in.Fx*r00 + in.Cx*r20, in.Fx*r01 + in.Cx*r21, in.Fx*tx + in.Cx*tz,
		in.Fy*r10 + in.Cy*r20, in.Fy*r11 + in.Cy*r21, in.Fy*ty + in.Cy*tz,
		r20, r21, tz,
	}
}

// Recover turns a frame's detections into tag observations. Detections
// without a homography get one estimated from their corners. Detections
// that cannot be decomposed are dropped and logged; order is preserved for
// the rest.
func Recover(dets []Detection, in Intrinsics) []tagpose.TagObservation {
	obs := make([]tagpose.TagObservation, 0, len(dets))
	for _, d := range dets {
		h := d.H
		if !d.HasHomography() {
			est, err := EstimateHomography(d.Corners)
			if err != nil {
				monitoring.Debugf("tag %d: %v", d.ID, err)
				continue
			}
			h = est
		}

		pose, err := HomographyToPose(h, in)
		if err != nil {
			monitoring.Debugf("tag %d: %v", d.ID, err)
			continue
		}
		if check := tagpose.ValidateTransform(pose, tagpose.RigidTolerance); check.Quality != tagpose.PoseQualityRigid {
			monitoring.Debugf("tag %d: pose %s: %v", d.ID, check.Quality, check.Issues)
		}

		obs = append(obs, tagpose.TagObservation{
			ID:       d.ID,
			Pose:     pose,
			Centroid: d.Center,
		})
	}
	return obs
}

// Synthesize builds the detection a perfect detector would report for a
// tag at pose: its homography, projected corners and centre.
func Synthesize(id int, pose tagpose.Transform, in Intrinsics) (Detection, error) {
	h := PoseToHomography(pose, in)
	corners, center, err := ProjectCorners(h)
	if err != nil {
		return Detection{}, fmt.Errorf("tag %d: %w", id, err)
	}
	return Detection{ID: id, Corners: corners, Center: center, H: h}, nil
}
