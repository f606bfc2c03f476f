// Package opencv binds the marker extractor to OpenCV: capture, ArUco
// detection, overlay drawing and the debug window.
package opencv

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gocv.io/x/gocv"
)

// ErrCaptureUnavailable is returned when the capture source stops producing frames.
var ErrCaptureUnavailable = errors.New("capture produced no frame")

// FrameSource yields frames one at a time into dst.
type FrameSource interface {
	Read(dst *gocv.Mat) error
	Close() error
}

// Capture reads frames from a camera device or a video file.
type Capture struct {
	source string
	vc     *gocv.VideoCapture
}

// parseSource treats an existing path as a video file and anything else as a device index.
func parseSource(source string) (file string, device int, err error) {
	if _, statErr := os.Stat(source); statErr == nil {
		return source, 0, nil
	}
	device, err = strconv.Atoi(source)
	if err != nil || device < 0 {
		return "", 0, fmt.Errorf("camera source %q is neither a video file nor a device index", source)
	}
	return "", device, nil
}

// OpenCapture opens a device index ("0") or a video file path.
func OpenCapture(source string) (*Capture, error) {
	file, device, err := parseSource(source)
	if err != nil {
		return nil, err
	}
	var vc *gocv.VideoCapture
	if file != "" {
		vc, err = gocv.VideoCaptureFile(file)
	} else {
		vc, err = gocv.VideoCaptureDevice(device)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open camera source %s: %w", source, err)
	}
	return &Capture{source: source, vc: vc}, nil
}

func (c *Capture) Read(dst *gocv.Mat) error {
	if ok := c.vc.Read(dst); !ok || dst.Empty() {
		return fmt.Errorf("%w: %s", ErrCaptureUnavailable, c.source)
	}
	return nil
}

func (c *Capture) Close() error {
	return c.vc.Close()
}
