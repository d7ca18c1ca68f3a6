//go:build gocv
// +build gocv

package camera

import (
	"context"
	"fmt"
	"image"
	"io"
	"time"

	"gocv.io/x/gocv"

	"github.com/banshee-data/tagpose/internal/detect"
	"github.com/banshee-data/tagpose/internal/monitoring"
	"github.com/banshee-data/tagpose/internal/tagpose"
)

// maxEmptyReads is how many consecutive empty frames a device may return
// before the stream gives up.
const maxEmptyReads = 30

// Open opens the capture device and requests the configured mode. The
// device may settle on a different mode; the actual values are logged.
// This function is only available when building with the 'gocv' build tag.
func (s *DeviceSource) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vc, err := gocv.VideoCaptureDevice(s.Device)
	if err != nil {
		return nil, fmt.Errorf("%w: device %d: %v", ErrCameraUnavailable, s.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: device %d did not open", ErrCameraUnavailable, s.Device)
	}

	if s.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(s.Width))
	}
	if s.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(s.Height))
	}
	if s.FPS > 0 {
		vc.Set(gocv.VideoCaptureFPS, s.FPS)
	}
	monitoring.Logf("camera %d opened: actual resolution %.0fx%.0f fps %.1f",
		s.Device,
		vc.Get(gocv.VideoCaptureFrameWidth),
		vc.Get(gocv.VideoCaptureFrameHeight),
		vc.Get(gocv.VideoCaptureFPS))

	return &deviceStream{
		vc:    vc,
		frame: gocv.NewMat(),
		gray:  gocv.NewMat(),
	}, nil
}

type deviceStream struct {
	vc    *gocv.VideoCapture
	frame gocv.Mat
	gray  gocv.Mat
	seq   uint64
}

func (d *deviceStream) Next(ctx context.Context) (Frame, error) {
	for empty := 0; empty < maxEmptyReads; empty++ {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		if ok := d.vc.Read(&d.frame); !ok {
			return Frame{}, io.EOF
		}
		if d.frame.Empty() {
			continue
		}
		ts := time.Now()

		gocv.CvtColor(d.frame, &d.gray, gocv.ColorBGRToGray)
		img, err := d.gray.ToImage()
		if err != nil {
			return Frame{}, fmt.Errorf("failed to convert frame: %w", err)
		}
		g, ok := img.(*image.Gray)
		if !ok {
			return Frame{}, fmt.Errorf("unexpected frame image type %T", img)
		}

		d.seq++
		return Frame{Seq: d.seq, Timestamp: ts, Gray: g}, nil
	}
	return Frame{}, fmt.Errorf("%w: %d consecutive empty frames", ErrCameraUnavailable, maxEmptyReads)
}

func (d *deviceStream) Close() error {
	d.frame.Close()
	d.gray.Close()
	return d.vc.Close()
}

// ArucoDetector finds AprilTag 36h11 markers using the OpenCV ArUco module.
// Corners come back without a homography; pose recovery estimates one.
type ArucoDetector struct {
	det gocv.ArucoDetector
}

// NewArucoDetector returns a detector for the AprilTag 36h11 family.
func NewArucoDetector() (*ArucoDetector, error) {
	dict := gocv.GetPredefinedDictionary(gocv.ArucoDictAprilTag_36h11)
	params := gocv.NewArucoDetectorParameters()
	return &ArucoDetector{det: gocv.NewArucoDetectorWithParams(dict, params)}, nil
}

// Detect runs marker detection on img.
func (a *ArucoDetector) Detect(ctx context.Context, img *image.Gray) ([]detect.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := gocv.ImageGrayToMatGray(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer m.Close()

	corners, ids, _ := a.det.DetectMarkers(m)
	dets := make([]detect.Detection, 0, len(ids))
	for i, id := range ids {
		if i >= len(corners) || len(corners[i]) != 4 {
			continue
		}
		var d detect.Detection
		d.ID = id
		for j, p := range corners[i] {
			d.Corners[j] = tagpose.Point2{X: float64(p.X), Y: float64(p.Y)}
			d.Center.X += float64(p.X) / 4
			d.Center.Y += float64(p.Y) / 4
		}
		dets = append(dets, d)
	}
	return dets, nil
}

// Close releases the OpenCV detector.
func (a *ArucoDetector) Close() error {
	return a.det.Close()
}
