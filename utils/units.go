package utils

import (
	"image"

	"github.com/golang/geo/r2"
)

// Detection is one marker reported by the fiducial detector for a single frame.
// Corners are in the detector's own order; roles are assigned by a corner convention.
type Detection struct {
	ID      int
	Corners [4]r2.Point
}

// Observation is the pixel-space measurement of the target marker
type Observation struct {
	Center    image.Point
	AreaProxy int
}

// ZeroObservation is the last-known observation before the target has been seen.
var ZeroObservation = Observation{}

// Correspondence is one calibration dataset row: a recorded pixel observation
// and the physical coordinate the marker was placed at.
type Correspondence struct {
	Area      float64 `validate:"gte=0"`
	CenterX   float64 `validate:"gte=0"`
	CenterY   float64 `validate:"gte=0"`
	PhysicalX float64
	PhysicalY float64
}

// Observation returns the pixel part of the row as an Observation, truncating to integer pixels.
func (c Correspondence) Observation() Observation {
	return Observation{
		Center:    image.Point{X: int(c.CenterX), Y: int(c.CenterY)},
		AreaProxy: int(c.Area),
	}
}

// Physical returns the ground truth coordinate of the row.
func (c Correspondence) Physical() r2.Point {
	return r2.Point{X: c.PhysicalX, Y: c.PhysicalY}
}

// TruncatePoint drops the fractional part of each coordinate, rounding toward zero.
func TruncatePoint(p r2.Point) image.Point {
	return image.Point{X: int(p.X), Y: int(p.Y)}
}

// Midpoint averages two pixel points, truncating toward zero.
func Midpoint(a, b image.Point) image.Point {
	return image.Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

// Helper to convert an Observation to a user-friendly map
func ObservationToMap(obs Observation) map[string]interface{} {
	return map[string]interface{}{
		"center_x": obs.Center.X,
		"center_y": obs.Center.Y,
		"area":     obs.AreaProxy,
	}
}

func PointToMap(p r2.Point) map[string]interface{} {
	return map[string]interface{}{
		"x": p.X,
		"y": p.Y,
	}
}

// ClampInt clamps a value between min and max
func ClampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
