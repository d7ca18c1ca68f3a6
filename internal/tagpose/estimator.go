package tagpose

import (
	"fmt"
	"math"
)

// Defaults for Config.
const (
	DefaultReferenceID  = 0
	DefaultTagSizeScale = 0.08
)

// Config is fixed at startup and never re-read per frame.
type Config struct {
	// ReferenceID is the tag id whose frame all positions are expressed in.
	ReferenceID int
	// TagSizeScale is the physical tag size. Positions are multiplied by
	// TagSizeScale/2 unless PositionScale is set.
	TagSizeScale float64
	// PositionScale overrides the derived TagSizeScale/2 multiplier when
	// non-zero.
	PositionScale float64
}

// DefaultConfig returns reference id 0 and a 0.08 tag size.
func DefaultConfig() Config {
	return Config{
		ReferenceID:  DefaultReferenceID,
		TagSizeScale: DefaultTagSizeScale,
	}
}

// Scale returns the multiplier applied to relative translations.
//
// Recovered poses are in units of half a tag edge, since the tag square
// spans -1..1 in its own frame, hence the halving of the tag size.
func (c Config) Scale() float64 {
	if c.PositionScale != 0 {
		return c.PositionScale
	}
	return c.TagSizeScale / 2
}

// Validate checks that the configuration can produce finite output.
func (c Config) Validate() error {
	if c.ReferenceID < 0 {
		return fmt.Errorf("reference id must be non-negative, got %d", c.ReferenceID)
	}
	if c.PositionScale < 0 || math.IsNaN(c.PositionScale) || math.IsInf(c.PositionScale, 0) {
		return fmt.Errorf("position scale must be non-negative and finite, got %f", c.PositionScale)
	}
	if c.TagSizeScale <= 0 && c.PositionScale == 0 {
		return fmt.Errorf("tag size scale must be positive, got %f", c.TagSizeScale)
	}
	return nil
}

// SelectReference returns the first observation whose id equals refID.
// When a detector reports the reference id more than once, detector order
// decides: the first one wins and later duplicates are ignored.
func SelectReference(obs []TagObservation, refID int) (TagObservation, bool) {
	for _, o := range obs {
		if o.ID == refID {
			return o, true
		}
	}
	return TagObservation{}, false
}

// Compose maps a tag pose into the reference frame: refInv * pose. The
// rotation block is not re-orthonormalised.
func Compose(refInv, pose Transform) Transform {
	return refInv.Mul(pose)
}

// ExtractMetric returns the translation of rel multiplied by scale and its
// Euclidean norm. Non-finite input propagates to the output.
func ExtractMetric(rel Transform, scale float64) (Vec3, float64) {
	p := rel.Translation().Scale(scale)
	return p, p.Norm()
}

// Estimator turns one frame of tag observations into positions relative to
// the reference tag. It holds only immutable configuration and is safe for
// concurrent use across independent frames.
type Estimator struct {
	cfg Config
}

// NewEstimator returns an estimator for cfg.
func NewEstimator(cfg Config) *Estimator {
	return &Estimator{cfg: cfg}
}

// Config returns the estimator configuration.
func (e *Estimator) Config() Config {
	return e.cfg
}

// Estimate runs reference selection, composition and metric extraction for
// a single frame.
//
// Output order follows input order with every observation carrying the
// reference id removed. If no reference was observed, or its pose cannot be
// inverted, the result is StateNoReference with an empty observation list.
// A degenerate non-reference pose still yields an entry; see
// RelativeObservation.Plausible.
func (e *Estimator) Estimate(obs []TagObservation) FrameResult {
	result := FrameResult{
		State:        StateNoReference,
		Observations: make([]RelativeObservation, 0),
	}

	ref, ok := SelectReference(obs, e.cfg.ReferenceID)
	if !ok {
		return result
	}

	refInv, err := ref.Pose.Inverse()
	if err != nil {
		result.ReferenceDegenerate = true
		return result
	}

	result.State = StateReferenceFound
	scale := e.cfg.Scale()
	for _, o := range obs {
		if o.ID == e.cfg.ReferenceID {
			continue
		}
		pos, dist := ExtractMetric(Compose(refInv, o.Pose), scale)
		result.Observations = append(result.Observations, RelativeObservation{
			ID:       o.ID,
			Position: pos,
			Distance: dist,
			Centroid: o.Centroid,
		})
	}
	return result
}
