package opencv

import (
	"context"
	"errors"

	"gocv.io/x/gocv"
	"go.viam.com/rdk/logging"

	"markerlocator/markers"
)

// QuitKey closes the debug window.
const QuitKey = 'q'

// Display shows an annotated frame and reports whether the user asked to quit.
type Display interface {
	Show(img gocv.Mat) (quit bool)
	Close() error
}

// Window is an OpenCV HighGUI window.
type Window struct {
	w *gocv.Window
}

func NewWindow(title string) *Window {
	return &Window{w: gocv.NewWindow(title)}
}

func (w *Window) Show(img gocv.Mat) bool {
	w.w.IMShow(img)
	return w.w.WaitKey(1) == QuitKey
}

func (w *Window) Close() error {
	return w.w.Close()
}

// Loop drives the extractor from a frame source.
type Loop struct {
	Logger    logging.Logger
	Source    FrameSource
	Detector  MarkerDetector
	Extractor *markers.Extractor
	// Display is optional; without it frames are not annotated.
	Display Display
	// Shapes is optional and only drawn when Display is set.
	Shapes *ShapeOverlay
}

// Run processes frames in order until the source runs dry, the user quits or
// ctx is cancelled, all of which return nil. A mailbox write failure stops the
// loop and is returned.
func (l *Loop) Run(ctx context.Context) error {
	frame := gocv.NewMat()
	defer frame.Close()

	frames := 0
	for {
		if ctx.Err() != nil {
			l.Logger.Infof("Stopping after %d frames: %v", frames, ctx.Err())
			return nil
		}
		if err := l.Source.Read(&frame); err != nil {
			if errors.Is(err, ErrCaptureUnavailable) {
				l.Logger.Infof("Capture ended after %d frames: %v", frames, err)
				return nil
			}
			return err
		}
		frames++

		res, err := l.Extractor.ProcessFrame(ctx, l.Detector.Detect(frame))
		if err != nil {
			return err
		}

		if l.Display == nil {
			continue
		}
		DrawMarkers(&frame, res)
		if l.Shapes != nil {
			l.Shapes.Draw(&frame)
		}
		if l.Display.Show(frame) {
			l.Logger.Infof("Quit requested after %d frames", frames)
			return nil
		}
	}
}
