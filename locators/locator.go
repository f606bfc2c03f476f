// Package locators maps pixel-space marker observations to physical coordinates.
package locators

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r2"

	"markerlocator/utils"
)

type Locator interface {
	Calibrate(rows []utils.Correspondence) error
	Locate(obs utils.Observation) (r2.Point, error)
}

type PolynomialCalibrationProvider interface {
	GetCalibration() (PolynomialCalibration, error)
}

var (
	ErrNotCalibrated = errors.New("not calibrated - run calibrate first")
	// ErrDegenerateDataset is returned when the calibration rows carry no usable variation.
	ErrDegenerateDataset = errors.New("calibration dataset is degenerate")
)

// InsufficientDataError is returned when there are fewer calibration rows than model terms.
type InsufficientDataError struct {
	Rows     int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("need at least %d calibration rows for polynomial fit, have %d", e.Required, e.Rows)
}
