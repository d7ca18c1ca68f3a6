package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/tagpose/internal/detect"
	"github.com/banshee-data/tagpose/internal/tagpose"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	if cfg.ReferenceID == nil || *cfg.ReferenceID != 0 {
		t.Errorf("Expected ReferenceID 0, got %v", cfg.ReferenceID)
	}
	if cfg.TagSize == nil || *cfg.TagSize != 0.08 {
		t.Errorf("Expected TagSize 0.08, got %v", cfg.TagSize)
	}
	if cfg.Units == nil || *cfg.Units != "m" {
		t.Errorf("Expected Units 'm', got %v", cfg.Units)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	if got := cfg.EstimatorConfig(); got != tagpose.DefaultConfig() {
		t.Errorf("EstimatorConfig() = %+v, want %+v", got, tagpose.DefaultConfig())
	}
	if got := cfg.Intrinsics(); got != detect.DefaultIntrinsics() {
		t.Errorf("Intrinsics() = %+v, want defaults", got)
	}
}

func TestLoadTuningConfig(t *testing.T) {
	path := writeConfig(t, "test_config.json", `{
  "reference_id": 5,
  "tag_size": 0.2,
  "position_scale": 0.05,
  "max_distance": 3,
  "fx": 500,
  "cy": 240,
  "camera_device": 1,
  "frame_width": 1280,
  "frame_height": 720,
  "frame_fps": 30,
  "replay_rate": 2,
  "units": "mm"
}`)

	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	want := tagpose.Config{ReferenceID: 5, TagSizeScale: 0.2, PositionScale: 0.05}
	if diff := cmp.Diff(want, cfg.EstimatorConfig()); diff != "" {
		t.Errorf("EstimatorConfig() mismatch (-want +got):\n%s", diff)
	}

	wantIn := detect.Intrinsics{Fx: 500, Fy: detect.DefaultFy, Cx: detect.DefaultCx, Cy: 240}
	if diff := cmp.Diff(wantIn, cfg.Intrinsics()); diff != "" {
		t.Errorf("Intrinsics() mismatch (-want +got):\n%s", diff)
	}

	src := cfg.DeviceSource()
	if src.Device != 1 || src.Width != 1280 || src.Height != 720 || src.FPS != 30 {
		t.Errorf("DeviceSource() = %+v", src)
	}
	if cfg.GetMaxDistance() != 3 {
		t.Errorf("GetMaxDistance() = %v, want 3", cfg.GetMaxDistance())
	}
	if cfg.GetReplayRate() != 2 {
		t.Errorf("GetReplayRate() = %v, want 2", cfg.GetReplayRate())
	}
	if cfg.GetUnits() != "mm" {
		t.Errorf("GetUnits() = %q, want mm", cfg.GetUnits())
	}
}

func TestLoadTuningConfigPartial(t *testing.T) {
	path := writeConfig(t, "partial.json", `{"reference_id": 2}`)

	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GetReferenceID() != 2 {
		t.Errorf("GetReferenceID() = %d, want 2", cfg.GetReferenceID())
	}
	if cfg.GetTagSize() != 0.08 {
		t.Errorf("Expected default TagSize 0.08, got %v", cfg.GetTagSize())
	}
	if cfg.EstimatorConfig().Scale() != 0.04 {
		t.Errorf("Expected derived scale 0.04, got %v", cfg.EstimatorConfig().Scale())
	}
	if cfg.GetFrameWidth() != 640 || cfg.GetFrameHeight() != 360 {
		t.Errorf("Expected default 640x360, got %dx%d", cfg.GetFrameWidth(), cfg.GetFrameHeight())
	}
}

func TestLoadTuningConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"missing", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.json") }},
		{"non-json extension", func(t *testing.T) string { return "/some/path/config.yaml" }},
		{"path without extension", func(t *testing.T) string { return "../../etc/passwd" }},
		{"malformed", func(t *testing.T) string { return writeConfig(t, "bad.json", `{"tag_size": `) }},
		{"invalid value", func(t *testing.T) string { return writeConfig(t, "neg.json", `{"tag_size": -1}`) }},
		{"too large", func(t *testing.T) string {
			return writeConfig(t, "large.json", string(make([]byte, 2*1024*1024)))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadTuningConfig(tt.path(t)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{"empty", EmptyTuningConfig(), false},
		{"defaults", DefaultTuningConfig(), false},
		{"negative reference id allowed", &TuningConfig{ReferenceID: ptrInt(-1)}, false},
		{"zero tag size", &TuningConfig{TagSize: ptrFloat64(0)}, true},
		{"nan tag size", &TuningConfig{TagSize: ptrFloat64(math.NaN())}, true},
		{"negative position scale", &TuningConfig{PositionScale: ptrFloat64(-0.1)}, true},
		{"inf max distance", &TuningConfig{MaxDistance: ptrFloat64(math.Inf(1))}, true},
		{"zero fx", &TuningConfig{Fx: ptrFloat64(0)}, true},
		{"nan cy", &TuningConfig{Cy: ptrFloat64(math.NaN())}, true},
		{"negative device", &TuningConfig{CameraDevice: ptrInt(-2)}, true},
		{"zero width", &TuningConfig{FrameWidth: ptrInt(0)}, true},
		{"zero fps", &TuningConfig{FrameFPS: ptrFloat64(0)}, true},
		{"negative replay rate", &TuningConfig{ReplayRate: ptrFloat64(-1)}, true},
		{"unknown units", &TuningConfig{Units: ptrString("furlong")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetterDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	if cfg.GetReferenceID() != 0 {
		t.Errorf("GetReferenceID() = %d", cfg.GetReferenceID())
	}
	if cfg.GetPositionScale() != 0 {
		t.Errorf("GetPositionScale() = %v", cfg.GetPositionScale())
	}
	if cfg.GetMaxDistance() != 0 {
		t.Errorf("GetMaxDistance() = %v", cfg.GetMaxDistance())
	}
	if cfg.GetCameraDevice() != 0 {
		t.Errorf("GetCameraDevice() = %d", cfg.GetCameraDevice())
	}
	if cfg.GetFrameFPS() != 60 {
		t.Errorf("GetFrameFPS() = %v", cfg.GetFrameFPS())
	}
	if cfg.GetReplayRate() != 0 {
		t.Errorf("GetReplayRate() = %v", cfg.GetReplayRate())
	}
	if cfg.GetUnits() != "m" {
		t.Errorf("GetUnits() = %q", cfg.GetUnits())
	}

	empty := ""
	cfg.Units = &empty
	if cfg.GetUnits() != "m" {
		t.Errorf("empty units should fall back to m, got %q", cfg.GetUnits())
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg, err := LoadTuningConfig("../../" + DefaultConfigPath)
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	if diff := cmp.Diff(DefaultTuningConfig(), cfg); diff != "" {
		t.Errorf("defaults file drifted from built-in defaults (-want +got):\n%s", diff)
	}
}

func TestLoadExampleConfigFile(t *testing.T) {
	cfg, err := LoadTuningConfig("../../config/tagpose.example.json")
	if err != nil {
		t.Fatalf("Failed to load example: %v", err)
	}
	if cfg.GetReferenceID() != 3 {
		t.Errorf("Expected reference 3, got %d", cfg.GetReferenceID())
	}
	if cfg.GetUnits() != "cm" {
		t.Errorf("Expected cm, got %q", cfg.GetUnits())
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.GetTagSize() != 0.08 {
		t.Errorf("Expected 0.08, got %v", cfg.GetTagSize())
	}
}
