package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/banshee-data/tagpose/internal/camera"
	"github.com/banshee-data/tagpose/internal/detect"
	"github.com/banshee-data/tagpose/internal/tagpose"
	"github.com/banshee-data/tagpose/internal/units"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tagpose.defaults.json"

// TuningConfig holds every startup setting for the tracker. All fields are
// optional; the Get* methods fall back to built-in defaults so partial
// files are safe. Values are fixed once loaded.
type TuningConfig struct {
	// Estimator
	ReferenceID   *int     `json:"reference_id,omitempty"`
	TagSize       *float64 `json:"tag_size,omitempty"`
	PositionScale *float64 `json:"position_scale,omitempty"` // overrides tag_size/2 when set
	MaxDistance   *float64 `json:"max_distance,omitempty"`   // 0 disables the plausibility filter

	// Camera intrinsics in pixels
	Fx *float64 `json:"fx,omitempty"`
	Fy *float64 `json:"fy,omitempty"`
	Cx *float64 `json:"cx,omitempty"`
	Cy *float64 `json:"cy,omitempty"`

	// Capture
	CameraDevice *int     `json:"camera_device,omitempty"`
	FrameWidth   *int     `json:"frame_width,omitempty"`
	FrameHeight  *int     `json:"frame_height,omitempty"`
	FrameFPS     *float64 `json:"frame_fps,omitempty"`

	// Replay speed multiplier; 0 replays as fast as possible.
	ReplayRate *float64 `json:"replay_rate,omitempty"`

	// Display
	Units *string `json:"units,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrString(v string) *string    { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the built-in defaults.
func DefaultTuningConfig() *TuningConfig {
	empty := EmptyTuningConfig()
	return &TuningConfig{
		ReferenceID:   ptrInt(empty.GetReferenceID()),
		TagSize:       ptrFloat64(empty.GetTagSize()),
		PositionScale: ptrFloat64(empty.GetPositionScale()),
		MaxDistance:   ptrFloat64(empty.GetMaxDistance()),
		Fx:            ptrFloat64(detect.DefaultFx),
		Fy:            ptrFloat64(detect.DefaultFy),
		Cx:            ptrFloat64(detect.DefaultCx),
		Cy:            ptrFloat64(detect.DefaultCy),
		CameraDevice:  ptrInt(empty.GetCameraDevice()),
		FrameWidth:    ptrInt(empty.GetFrameWidth()),
		FrameHeight:   ptrInt(empty.GetFrameHeight()),
		FrameFPS:      ptrFloat64(empty.GetFrameFPS()),
		ReplayRate:    ptrFloat64(empty.GetReplayRate()),
		Units:         ptrString(empty.GetUnits()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or one of its parents. Panics if the file cannot be loaded; intended for
// test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Validate checks that the configuration values are usable.
func (c *TuningConfig) Validate() error {
	if c.TagSize != nil && (!finite(*c.TagSize) || *c.TagSize <= 0) {
		return fmt.Errorf("tag_size must be positive, got %v", *c.TagSize)
	}
	if c.PositionScale != nil && (!finite(*c.PositionScale) || *c.PositionScale < 0) {
		return fmt.Errorf("position_scale must be non-negative, got %v", *c.PositionScale)
	}
	if c.MaxDistance != nil && (!finite(*c.MaxDistance) || *c.MaxDistance < 0) {
		return fmt.Errorf("max_distance must be non-negative, got %v", *c.MaxDistance)
	}

	for name, v := range map[string]*float64{"fx": c.Fx, "fy": c.Fy} {
		if v != nil && (!finite(*v) || *v <= 0) {
			return fmt.Errorf("%s must be positive, got %v", name, *v)
		}
	}
	for name, v := range map[string]*float64{"cx": c.Cx, "cy": c.Cy} {
		if v != nil && !finite(*v) {
			return fmt.Errorf("%s must be finite, got %v", name, *v)
		}
	}

	if c.CameraDevice != nil && *c.CameraDevice < 0 {
		return fmt.Errorf("camera_device must be non-negative, got %d", *c.CameraDevice)
	}
	for name, v := range map[string]*int{"frame_width": c.FrameWidth, "frame_height": c.FrameHeight} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, *v)
		}
	}
	if c.FrameFPS != nil && (!finite(*c.FrameFPS) || *c.FrameFPS <= 0) {
		return fmt.Errorf("frame_fps must be positive, got %v", *c.FrameFPS)
	}

	if c.ReplayRate != nil && (!finite(*c.ReplayRate) || *c.ReplayRate < 0) {
		return fmt.Errorf("replay_rate must be non-negative, got %v", *c.ReplayRate)
	}
	if c.Units != nil && !units.IsValid(*c.Units) {
		return fmt.Errorf("units must be one of %s, got %q", units.GetValidUnitsString(), *c.Units)
	}
	return nil
}

// GetReferenceID returns the reference tag id or the default.
func (c *TuningConfig) GetReferenceID() int {
	if c.ReferenceID == nil {
		return tagpose.DefaultReferenceID
	}
	return *c.ReferenceID
}

// GetTagSize returns the tag_size value or the default.
func (c *TuningConfig) GetTagSize() float64 {
	if c.TagSize == nil {
		return tagpose.DefaultTagSizeScale
	}
	return *c.TagSize
}

// GetPositionScale returns the position_scale override, or 0 when the
// multiplier should be derived from tag_size.
func (c *TuningConfig) GetPositionScale() float64 {
	if c.PositionScale == nil {
		return 0
	}
	return *c.PositionScale
}

// GetMaxDistance returns the max_distance value or the default (disabled).
func (c *TuningConfig) GetMaxDistance() float64 {
	if c.MaxDistance == nil {
		return 0
	}
	return *c.MaxDistance
}

// GetCameraDevice returns the camera_device value or the default.
func (c *TuningConfig) GetCameraDevice() int {
	if c.CameraDevice == nil {
		return camera.DefaultDevice
	}
	return *c.CameraDevice
}

// GetFrameWidth returns the frame_width value or the default.
func (c *TuningConfig) GetFrameWidth() int {
	if c.FrameWidth == nil {
		return camera.DefaultFrameWidth
	}
	return *c.FrameWidth
}

// GetFrameHeight returns the frame_height value or the default.
func (c *TuningConfig) GetFrameHeight() int {
	if c.FrameHeight == nil {
		return camera.DefaultFrameHeight
	}
	return *c.FrameHeight
}

// GetFrameFPS returns the frame_fps value or the default.
func (c *TuningConfig) GetFrameFPS() float64 {
	if c.FrameFPS == nil {
		return camera.DefaultFPS
	}
	return *c.FrameFPS
}

// GetReplayRate returns the replay_rate value or the default (unpaced).
func (c *TuningConfig) GetReplayRate() float64 {
	if c.ReplayRate == nil {
		return 0
	}
	return *c.ReplayRate
}

// GetUnits returns the display units or the default.
func (c *TuningConfig) GetUnits() string {
	if c.Units == nil || *c.Units == "" {
		return units.M
	}
	return *c.Units
}

// Intrinsics returns the camera intrinsics, filling gaps from the defaults.
func (c *TuningConfig) Intrinsics() detect.Intrinsics {
	in := detect.DefaultIntrinsics()
	if c.Fx != nil {
		in.Fx = *c.Fx
	}
	if c.Fy != nil {
		in.Fy = *c.Fy
	}
	if c.Cx != nil {
		in.Cx = *c.Cx
	}
	if c.Cy != nil {
		in.Cy = *c.Cy
	}
	return in
}

// EstimatorConfig returns the estimator settings.
func (c *TuningConfig) EstimatorConfig() tagpose.Config {
	return tagpose.Config{
		ReferenceID:   c.GetReferenceID(),
		TagSizeScale:  c.GetTagSize(),
		PositionScale: c.GetPositionScale(),
	}
}

// DeviceSource returns a camera source configured from the capture fields.
func (c *TuningConfig) DeviceSource() *camera.DeviceSource {
	return &camera.DeviceSource{
		Device: c.GetCameraDevice(),
		Width:  c.GetFrameWidth(),
		Height: c.GetFrameHeight(),
		FPS:    c.GetFrameFPS(),
	}
}
