// Package markers turns fiducial detections into pixel-space observations of a target marker.
package markers

import (
	"fmt"
	"image"
	"math"

	"markerlocator/utils"
)

// Role is the position a detector corner plays in the marker quadrilateral.
type Role int

const (
	TopRight Role = iota
	TopLeft
	BottomRight
	BottomLeft
)

func (r Role) String() string {
	switch r {
	case TopRight:
		return "top_right"
	case TopLeft:
		return "top_left"
	case BottomRight:
		return "bottom_right"
	case BottomLeft:
		return "bottom_left"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Winding is the traversal direction of the detector's corner order, in image
// coordinates (y grows downward).
type Winding int

const (
	Clockwise Winding = iota + 1
	CounterClockwise
)

// CornerConvention is the contract with the detector: which detector index
// holds which role, and which way the detector walks the corners.
type CornerConvention struct {
	Name    string
	Index   [4]int // Index[role] is the detector corner index for that role
	Winding Winding
}

var (
	// ArucoConvention follows OpenCV's ArUco output: clockwise from the marker's own top-left.
	ArucoConvention = CornerConvention{
		Name:    "aruco",
		Index:   [4]int{TopRight: 1, TopLeft: 0, BottomRight: 2, BottomLeft: 3},
		Winding: Clockwise,
	}
	// LegacyConvention reproduces the role assignment that older calibration
	// datasets were recorded with: detector corners 0..3 read as top_right,
	// top_left, bottom_right, bottom_left.
	LegacyConvention = CornerConvention{
		Name:    "legacy",
		Index:   [4]int{TopRight: 0, TopLeft: 1, BottomRight: 2, BottomLeft: 3},
		Winding: Clockwise,
	}
)

var conventions = map[string]CornerConvention{
	ArucoConvention.Name:  ArucoConvention,
	LegacyConvention.Name: LegacyConvention,
}

// ConventionByName looks up a registered corner convention.
func ConventionByName(name string) (CornerConvention, error) {
	c, ok := conventions[name]
	if !ok {
		return CornerConvention{}, fmt.Errorf("unknown corner convention %q", name)
	}
	return c, nil
}

// Validate checks that the convention maps every role to a distinct detector index.
func (c CornerConvention) Validate() error {
	var seen [4]bool
	for role, idx := range c.Index {
		if idx < 0 || idx > 3 {
			return fmt.Errorf("corner convention %q: %v maps to index %d, want 0..3", c.Name, Role(role), idx)
		}
		if seen[idx] {
			return fmt.Errorf("corner convention %q: index %d assigned to more than one role", c.Name, idx)
		}
		seen[idx] = true
	}
	if c.Winding != Clockwise && c.Winding != CounterClockwise {
		return fmt.Errorf("corner convention %q: winding must be set", c.Name)
	}
	return nil
}

// Roles holds the marker corners by role, truncated to integer pixels.
type Roles struct {
	TopRight    image.Point
	TopLeft     image.Point
	BottomRight image.Point
	BottomLeft  image.Point
}

// CornerOrderError reports a detection whose geometry contradicts the corner convention.
type CornerOrderError struct {
	ID     int
	Reason string
}

func (e *CornerOrderError) Error() string {
	return fmt.Sprintf("marker %d: corners inconsistent with convention: %s", e.ID, e.Reason)
}

// Minimum |signed area| in square pixels for a quadrilateral to count as non-degenerate.
const minQuadArea = 1e-6

// Assign validates the detection geometry and returns its corners by role.
func (c CornerConvention) Assign(det utils.Detection) (Roles, error) {
	if err := checkWinding(det, c.Winding); err != nil {
		return Roles{}, err
	}
	at := func(r Role) image.Point {
		return utils.TruncatePoint(det.Corners[c.Index[r]])
	}
	return Roles{
		TopRight:    at(TopRight),
		TopLeft:     at(TopLeft),
		BottomRight: at(BottomRight),
		BottomLeft:  at(BottomLeft),
	}, nil
}

// checkWinding requires the detector order to form a convex quadrilateral
// traversed in the expected direction.
func checkWinding(det utils.Detection, want Winding) error {
	pts := det.Corners
	for _, p := range pts {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return &CornerOrderError{ID: det.ID, Reason: "non-finite corner coordinate"}
		}
	}

	area := 0.0
	positive, negative := 0, 0
	for i := 0; i < 4; i++ {
		a, b, c := pts[i], pts[(i+1)%4], pts[(i+2)%4]
		area += a.Cross(b)
		turn := b.Sub(a).Cross(c.Sub(b))
		switch {
		case turn > 0:
			positive++
		case turn < 0:
			negative++
		}
	}
	area /= 2

	if math.Abs(area) < minQuadArea {
		return &CornerOrderError{ID: det.ID, Reason: "degenerate quadrilateral"}
	}
	if positive > 0 && negative > 0 {
		return &CornerOrderError{ID: det.ID, Reason: "quadrilateral is not convex"}
	}
	// y points down, so a visually clockwise walk has a positive shoelace sum.
	got := CounterClockwise
	if area > 0 {
		got = Clockwise
	}
	if got != want {
		return &CornerOrderError{ID: det.ID, Reason: fmt.Sprintf("winding is %v, convention expects %v", got, want)}
	}
	return nil
}

func (w Winding) String() string {
	switch w {
	case Clockwise:
		return "clockwise"
	case CounterClockwise:
		return "counter-clockwise"
	default:
		return "unset"
	}
}
