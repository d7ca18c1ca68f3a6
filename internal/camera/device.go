package camera

// Capture defaults matching the 640x360 intrinsics in package detect.
const (
	DefaultDevice      = 0
	DefaultFrameWidth  = 640
	DefaultFrameHeight = 360
	DefaultFPS         = 60.0
)

// DeviceSource captures grayscale frames from a local video device. Open is
// only functional when built with -tags=gocv.
type DeviceSource struct {
	Device int
	Width  int
	Height int
	FPS    float64
}

// NewDeviceSource returns a source for device with the default capture mode.
func NewDeviceSource(device int) *DeviceSource {
	return &DeviceSource{
		Device: device,
		Width:  DefaultFrameWidth,
		Height: DefaultFrameHeight,
		FPS:    DefaultFPS,
	}
}
