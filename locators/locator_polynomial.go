package locators

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"go.viam.com/rdk/logging"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"markerlocator/utils"
)

// FeatureDims is the length of the polynomial feature vector.
const FeatureDims = 8

// PolynomialMinRows is the fewest rows that determine the intercept and every feature coefficient.
const PolynomialMinRows = FeatureDims + 1

// FeatureNames lists the feature columns in order.
var FeatureNames = [FeatureDims]string{
	"area", "center_x", "center_y", "area2", "center_x2", "center_y2", "center_x_area", "center_y_area",
}

// Features: [a, cx, cy, a², cx², cy², cx·a, cy·a]
type Features [FeatureDims]float64

func expand(a, cx, cy float64) Features {
	return Features{
		a, cx, cy,
		a * a, cx * cx, cy * cy,
		cx * a, cy * a,
	}
}

// ExpandFeatures builds the feature vector of an observation.
func ExpandFeatures(obs utils.Observation) Features {
	return expand(float64(obs.AreaProxy), float64(obs.Center.X), float64(obs.Center.Y))
}

func rowFeatures(r utils.Correspondence) Features {
	return expand(r.Area, r.CenterX, r.CenterY)
}

// PolynomialCalibration holds one coefficient set per physical axis:
// the intercept followed by one coefficient per feature.
type PolynomialCalibration struct {
	XPolyCoeffs []float64 `json:"x_poly_coeffs" yaml:"x_poly_coeffs"`
	YPolyCoeffs []float64 `json:"y_poly_coeffs" yaml:"y_poly_coeffs"`
}

// Validate checks coefficient counts and values.
func (c *PolynomialCalibration) Validate() error {
	if len(c.XPolyCoeffs) != PolynomialMinRows {
		return fmt.Errorf("x_poly_coeffs must have exactly %d coefficients, has %d", PolynomialMinRows, len(c.XPolyCoeffs))
	}
	if len(c.YPolyCoeffs) != PolynomialMinRows {
		return fmt.Errorf("y_poly_coeffs must have exactly %d coefficients, has %d", PolynomialMinRows, len(c.YPolyCoeffs))
	}
	for i := range c.XPolyCoeffs {
		if math.IsNaN(c.XPolyCoeffs[i]) || math.IsInf(c.XPolyCoeffs[i], 0) ||
			math.IsNaN(c.YPolyCoeffs[i]) || math.IsInf(c.YPolyCoeffs[i], 0) {
			return fmt.Errorf("coefficient %d is not a finite number", i)
		}
	}
	return nil
}

func apply(f Features, calibration PolynomialCalibration) r2.Point {
	p := r2.Point{X: calibration.XPolyCoeffs[0], Y: calibration.YPolyCoeffs[0]}
	for i := range f {
		p.X += calibration.XPolyCoeffs[i+1] * f[i]
		p.Y += calibration.YPolyCoeffs[i+1] * f[i]
	}
	return p
}

// fitPolynomial solves both axes in one least squares problem. Feature
// columns are centered and scaled before the solve so that a² and cx·a do
// not swamp the linear terms; coefficients are mapped back to raw features.
// A rank deficient design gets the minimum-norm solution, with constant
// features pinned to a zero coefficient.
func fitPolynomial(logger logging.Logger, rows []utils.Correspondence) (PolynomialCalibration, error) {
	n := len(rows)
	if n < PolynomialMinRows {
		return PolynomialCalibration{}, &InsufficientDataError{Rows: n, Required: PolynomialMinRows}
	}

	raw := mat.NewDense(n, FeatureDims, nil)
	targets := mat.NewDense(n, 2, nil)
	for i, r := range rows {
		f := rowFeatures(r)
		raw.SetRow(i, f[:])
		targets.Set(i, 0, r.PhysicalX)
		targets.Set(i, 1, r.PhysicalY)
	}

	var means, scales [FeatureDims]float64
	var constant [FeatureDims]bool
	var constantNames []string
	col := make([]float64, n)
	for j := 0; j < FeatureDims; j++ {
		mat.Col(col, j, raw)
		if floats.Min(col) == floats.Max(col) {
			constant[j] = true
			constantNames = append(constantNames, FeatureNames[j])
			means[j], scales[j] = col[0], 1
			continue
		}
		means[j], scales[j] = stat.MeanStdDev(col, nil)
	}
	var targetMeans [2]float64
	for k := 0; k < 2; k++ {
		mat.Col(col, k, targets)
		targetMeans[k] = stat.Mean(col, nil)
	}

	z := mat.NewDense(n, FeatureDims, nil)
	z.Apply(func(i, j int, v float64) float64 {
		if constant[j] {
			return 0
		}
		return (v - means[j]) / scales[j]
	}, raw)
	yc := mat.NewDense(n, 2, nil)
	yc.Apply(func(i, k int, v float64) float64 {
		return v - targetMeans[k]
	}, targets)

	var svd mat.SVD
	if !svd.Factorize(z, mat.SVDThin) {
		return PolynomialCalibration{}, fmt.Errorf("%w: singular value decomposition did not converge", ErrDegenerateDataset)
	}
	rank := svd.Rank(rankTolerance)
	if rank == 0 {
		return PolynomialCalibration{}, fmt.Errorf("%w: every feature is constant", ErrDegenerateDataset)
	}
	if len(constantNames) > 0 {
		logger.Warnf("Calibration features %v are constant across the dataset, their coefficients are zero", constantNames)
	}
	if dependent := dependentFeatures(&svd, rank, constant); len(dependent) > 0 {
		logger.Warnf("Calibration features %v are linearly dependent (rank %d of %d), using the minimum-norm fit",
			dependent, rank, FeatureDims)
	}

	var beta mat.Dense
	svd.SolveTo(&beta, yc, rank)

	calibration := PolynomialCalibration{
		XPolyCoeffs: make([]float64, PolynomialMinRows),
		YPolyCoeffs: make([]float64, PolynomialMinRows),
	}
	for k, coeffs := range [][]float64{calibration.XPolyCoeffs, calibration.YPolyCoeffs} {
		intercept := targetMeans[k]
		for j := 0; j < FeatureDims; j++ {
			if constant[j] {
				continue
			}
			c := beta.At(j, k) / scales[j]
			coeffs[j+1] = c
			intercept -= c * means[j]
		}
		coeffs[0] = intercept
	}
	if err := calibration.Validate(); err != nil {
		return PolynomialCalibration{}, fmt.Errorf("%w: %v", ErrDegenerateDataset, err)
	}
	return calibration, nil
}

// Relative size below which a singular value counts as zero.
const rankTolerance = 1e-10

// dependentFeatures names the non-constant features that take part in the
// null space of the design.
func dependentFeatures(svd *mat.SVD, rank int, constant [FeatureDims]bool) []string {
	if rank >= FeatureDims {
		return nil
	}
	var v mat.Dense
	svd.VTo(&v)
	var names []string
	for j := 0; j < FeatureDims; j++ {
		if constant[j] {
			continue
		}
		for k := rank; k < FeatureDims; k++ {
			if math.Abs(v.At(j, k)) > 1e-8 {
				names = append(names, FeatureNames[j])
				break
			}
		}
	}
	return names
}

type PolynomialLocator struct {
	logger      logging.Logger
	calibration *PolynomialCalibration
}

func NewPolynomialLocator(logger logging.Logger) (*PolynomialLocator, error) {
	return &PolynomialLocator{logger: logger}, nil
}

// NewPolynomialLocatorWithCalibration restores a locator from previously exported coefficients.
func NewPolynomialLocatorWithCalibration(logger logging.Logger, calibration *PolynomialCalibration) (*PolynomialLocator, error) {
	if calibration == nil {
		return nil, ErrNotCalibrated
	}
	if err := calibration.Validate(); err != nil {
		return nil, fmt.Errorf("invalid polynomial calibration: %w", err)
	}
	c := PolynomialCalibration{
		XPolyCoeffs: append([]float64(nil), calibration.XPolyCoeffs...),
		YPolyCoeffs: append([]float64(nil), calibration.YPolyCoeffs...),
	}
	return &PolynomialLocator{logger: logger, calibration: &c}, nil
}

func (l *PolynomialLocator) Calibrate(rows []utils.Correspondence) error {
	calibration, err := fitPolynomial(l.logger, rows)
	if err != nil {
		return fmt.Errorf("failed to calibrate: %w", err)
	}
	l.calibration = &calibration

	meanErr, err := utils.ValidateCalibration(l.logger, rows, l.Locate)
	if err != nil {
		return fmt.Errorf("failed to predict for error calculation: %w", err)
	}
	l.logger.Infof("Calibrated on %d rows with mean x error: %.4f, y error: %.4f", len(rows), meanErr.X, meanErr.Y)
	return nil
}

func (l *PolynomialLocator) Locate(obs utils.Observation) (r2.Point, error) {
	if l.calibration == nil {
		return r2.Point{}, ErrNotCalibrated
	}
	return apply(ExpandFeatures(obs), *l.calibration), nil
}

func (l *PolynomialLocator) GetCalibration() (PolynomialCalibration, error) {
	if l.calibration == nil {
		return PolynomialCalibration{}, ErrNotCalibrated
	}
	return *l.calibration, nil
}
