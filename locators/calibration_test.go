package locators

import (
	"encoding/json"
	"image"
	"math"
	"testing"

	"go.viam.com/rdk/logging"

	"markerlocator/utils"
)

func TestPolynomialCalibrationSerializationRoundtrip(t *testing.T) {
	logger := logging.NewTestLogger(t)
	fitted, _ := NewPolynomialLocator(logger)
	if err := fitted.Calibrate(sampleRows()); err != nil {
		t.Fatalf("failed to calibrate: %v", err)
	}
	cal, err := fitted.GetCalibration()
	if err != nil {
		t.Fatalf("failed to get calibration: %v", err)
	}

	data, err := json.Marshal(cal)
	if err != nil {
		t.Fatalf("failed to marshal calibration: %v", err)
	}
	var reloaded PolynomialCalibration
	if err := json.Unmarshal(data, &reloaded); err != nil {
		t.Fatalf("failed to unmarshal calibration: %v", err)
	}

	restored, err := NewPolynomialLocatorWithCalibration(logger, &reloaded)
	if err != nil {
		t.Fatalf("failed to rehydrate calibration: %v", err)
	}
	for _, obs := range []utils.Observation{
		{Center: image.Pt(340, 210), AreaProxy: 1600},
		{Center: image.Pt(12, 470), AreaProxy: 90},
	} {
		want, _ := fitted.Locate(obs)
		got, _ := restored.Locate(obs)
		if got != want {
			t.Fatalf("restored prediction for %+v is %v, want %v", obs, got, want)
		}
	}

	// The restored locator owns its coefficients.
	reloaded.XPolyCoeffs[0] += 100
	got, _ := restored.Locate(utils.ZeroObservation)
	want, _ := fitted.Locate(utils.ZeroObservation)
	if got != want {
		t.Errorf("restored locator shares coefficient storage with its input")
	}
}

func TestPolynomialCalibrationValidate(t *testing.T) {
	ok := PolynomialCalibration{XPolyCoeffs: make([]float64, PolynomialMinRows), YPolyCoeffs: make([]float64, PolynomialMinRows)}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	short := PolynomialCalibration{XPolyCoeffs: make([]float64, FeatureDims), YPolyCoeffs: make([]float64, PolynomialMinRows)}
	if err := short.Validate(); err == nil {
		t.Error("expected error for short x coefficients")
	}

	nan := PolynomialCalibration{XPolyCoeffs: make([]float64, PolynomialMinRows), YPolyCoeffs: make([]float64, PolynomialMinRows)}
	nan.YPolyCoeffs[4] = math.NaN()
	if err := nan.Validate(); err == nil {
		t.Error("expected error for NaN coefficient")
	}

	if _, err := NewPolynomialLocatorWithCalibration(logging.NewTestLogger(t), nil); err == nil {
		t.Error("expected error for nil calibration")
	}
}
