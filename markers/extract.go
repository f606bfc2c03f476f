package markers

import (
	"image"

	"markerlocator/utils"
)

// Center is the midpoint of the top_left / bottom_right diagonal.
func Center(r Roles) image.Point {
	return utils.Midpoint(r.TopLeft, r.BottomRight)
}

// AreaProxy is the squared vertical span between bottom_right and bottom_left.
// It is a scale stand-in, not the true area, and is zero for a level bottom edge.
func AreaProxy(r Roles) int {
	dy := r.BottomRight.Y - r.BottomLeft.Y
	return dy * dy
}

// Extract derives the observation for a single detection.
func Extract(det utils.Detection, convention CornerConvention) (utils.Observation, Roles, error) {
	roles, err := convention.Assign(det)
	if err != nil {
		return utils.Observation{}, Roles{}, err
	}
	return utils.Observation{
		Center:    Center(roles),
		AreaProxy: AreaProxy(roles),
	}, roles, nil
}
