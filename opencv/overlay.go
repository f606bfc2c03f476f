package opencv

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"markerlocator/markers"
	"markerlocator/utils"
)

var (
	outlineColor  = color.RGBA{R: 255, G: 255, B: 0, A: 0}
	rejectedColor = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	labelColor    = color.RGBA{R: 0, G: 100, B: 200, A: 0}
	shapeColor    = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	tipColor      = color.RGBA{R: 0, G: 0, B: 255, A: 0}
	vertexColor   = color.RGBA{R: 0, G: 255, B: 0, A: 0}
)

// Label text drawn next to each extracted marker.
func idLabel(id int) string                    { return fmt.Sprintf("id: %d", id) }
func centerLabel(obs utils.Observation) string { return fmt.Sprintf("Center: (%d, %d)", obs.Center.X, obs.Center.Y) }
func areaLabel(obs utils.Observation) string   { return fmt.Sprintf("Area: %d", obs.AreaProxy) }

func outline(det utils.Detection) []image.Point {
	pts := make([]image.Point, len(det.Corners))
	for i, c := range det.Corners {
		pts[i] = utils.TruncatePoint(c)
	}
	return pts
}

// DrawMarkers outlines every detection of a frame and labels the ones that
// passed corner validation. Rejected detections are outlined in red only.
func DrawMarkers(img *gocv.Mat, res markers.FrameResult) {
	for _, m := range res.Markers {
		pv := gocv.NewPointsVectorFromPoints([][]image.Point{outline(m.Detection)})
		c := outlineColor
		if m.Err != nil {
			c = rejectedColor
		}
		gocv.Polylines(img, pv, true, c, 4)
		pv.Close()
		if m.Err != nil {
			continue
		}
		gocv.PutText(img, idLabel(m.Detection.ID), m.Roles.TopRight, gocv.FontHersheyPlain, 1.3, labelColor, 2)
		gocv.PutText(img, centerLabel(m.Observation), m.Observation.Center, gocv.FontHersheyPlain, 1.3, labelColor, 2)
		gocv.PutText(img, areaLabel(m.Observation), m.Roles.BottomRight, gocv.FontHersheyPlain, 1.3, labelColor, 2)
	}
}

// Contours with an area strictly inside this band are outlined by the shape overlay.
const (
	shapeMinArea   = 1500.0
	shapeMaxArea   = 1600.0
	shapeThreshold = 91
	shapeEpsilon   = 0.009
)

func inShapeBand(area float64) bool {
	return area > shapeMinArea && area < shapeMaxArea
}

// ShapeOverlay outlines mid-sized bright contours and labels their vertices.
// It is cosmetic and never feeds the extractor.
type ShapeOverlay struct {
	gray   gocv.Mat
	blur   gocv.Mat
	thresh gocv.Mat
}

func NewShapeOverlay() *ShapeOverlay {
	return &ShapeOverlay{
		gray:   gocv.NewMat(),
		blur:   gocv.NewMat(),
		thresh: gocv.NewMat(),
	}
}

func (s *ShapeOverlay) Draw(img *gocv.Mat) {
	if img.Channels() == 3 {
		gocv.CvtColor(*img, &s.gray, gocv.ColorBGRToGray)
	} else {
		img.CopyTo(&s.gray)
	}
	gocv.GaussianBlur(s.gray, &s.blur, image.Pt(5, 5), 0, 0, gocv.BorderDefault)
	gocv.Threshold(s.blur, &s.thresh, shapeThreshold, 255, gocv.ThresholdBinary)

	contours := gocv.FindContours(s.thresh, gocv.RetrievalTree, gocv.ChainApproxSimple)
	defer contours.Close()
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		if !inShapeBand(gocv.ContourArea(c)) {
			continue
		}
		approx := gocv.ApproxPolyDP(c, shapeEpsilon*gocv.ArcLength(c, true), true)
		pv := gocv.NewPointsVector()
		pv.Append(approx)
		gocv.DrawContours(img, pv, 0, shapeColor, 5)
		for j, p := range approx.ToPoints() {
			if j == 0 {
				gocv.PutText(img, "Arrow tip", p, gocv.FontHersheyComplex, 0.5, tipColor, 1)
				continue
			}
			gocv.PutText(img, fmt.Sprintf("%d %d", p.X, p.Y), p, gocv.FontHersheyComplex, 0.5, vertexColor, 1)
		}
		pv.Close()
		approx.Close()
	}
}

func (s *ShapeOverlay) Close() error {
	s.gray.Close()
	s.blur.Close()
	return s.thresh.Close()
}
