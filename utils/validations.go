package utils

import (
	"math"

	"github.com/golang/geo/r2"
	"go.viam.com/rdk/logging"
	"gonum.org/v1/gonum/stat"
)

// Minimum spread, in pixels, below which the pixel columns are considered clustered.
const minPixelSpread = 5.0

// Spread summarizes how well a dataset covers the pixel and physical space.
type Spread struct {
	Points     int
	CenterXStd float64
	CenterYStd float64
	AreaStd    float64
	PhysXStd   float64
	PhysYStd   float64
}

// Clustered reports whether any pixel column barely varies.
func (s Spread) Clustered() bool {
	return s.CenterXStd < minPixelSpread || s.CenterYStd < minPixelSpread || s.AreaStd < minPixelSpread
}

// ValidateCorrespondences checks quality of a calibration dataset
func ValidateCorrespondences(logger logging.Logger, rows []Correspondence) Spread {
	n := len(rows)
	spread := Spread{Points: n}
	if n < 2 {
		logger.Warnf("Only %d calibration rows, spread cannot be estimated", n)
		return spread
	}

	cols := make([][]float64, 5)
	for i := range cols {
		cols[i] = make([]float64, n)
	}
	for i, r := range rows {
		cols[0][i] = r.CenterX
		cols[1][i] = r.CenterY
		cols[2][i] = r.Area
		cols[3][i] = r.PhysicalX
		cols[4][i] = r.PhysicalY
	}
	spread.CenterXStd = stat.PopStdDev(cols[0], nil)
	spread.CenterYStd = stat.PopStdDev(cols[1], nil)
	spread.AreaStd = stat.PopStdDev(cols[2], nil)
	spread.PhysXStd = stat.PopStdDev(cols[3], nil)
	spread.PhysYStd = stat.PopStdDev(cols[4], nil)

	logger.Infof("Calibration dataset: %d rows, pixel spread cx=%.2f cy=%.2f area=%.2f, physical spread x=%.4f y=%.4f",
		n, spread.CenterXStd, spread.CenterYStd, spread.AreaStd, spread.PhysXStd, spread.PhysYStd)

	if spread.Clustered() {
		logger.Warn("Low pixel spread - marker placements too clustered")
	}
	if spread.PhysXStd == 0 || spread.PhysYStd == 0 {
		logger.Warn("A physical axis never varies across the dataset")
	}
	return spread
}

// ValidateCalibration compares predictions against every dataset row and
// returns the mean absolute error per physical axis.
func ValidateCalibration(logger logging.Logger, rows []Correspondence, predict func(Observation) (r2.Point, error)) (r2.Point, error) {
	var errSum r2.Point
	for i, r := range rows {
		got, err := predict(r.Observation())
		if err != nil {
			return r2.Point{}, err
		}
		dx := got.X - r.PhysicalX
		dy := got.Y - r.PhysicalY
		logger.Debugf("Row %d: predicted (%.4f, %.4f), recorded (%.4f, %.4f), error (%.4f, %.4f)",
			i+1, got.X, got.Y, r.PhysicalX, r.PhysicalY, dx, dy)
		errSum.X += math.Abs(dx)
		errSum.Y += math.Abs(dy)
	}
	if len(rows) == 0 {
		return r2.Point{}, nil
	}
	return errSum.Mul(1 / float64(len(rows))), nil
}
