package utils

import (
	"image"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/rdk/logging"
)

func TestTruncatePoint(t *testing.T) {
	testValues := []struct {
		in   r2.Point
		want image.Point
	}{
		{r2.Point{X: 0, Y: 0}, image.Point{X: 0, Y: 0}},
		{r2.Point{X: 10.2, Y: 10.9}, image.Point{X: 10, Y: 10}},
		{r2.Point{X: 639.999, Y: 479.5}, image.Point{X: 639, Y: 479}},
		{r2.Point{X: -0.5, Y: -1.7}, image.Point{X: 0, Y: -1}},
	}

	for i, tv := range testValues {
		got := TruncatePoint(tv.in)
		if got != tv.want {
			t.Errorf("TruncatePoint failed in test case %d: got %v, want %v", i, got, tv.want)
		}
	}
}

func TestMidpoint(t *testing.T) {
	testValues := []struct {
		a, b image.Point
		want image.Point
	}{
		{image.Pt(0, 0), image.Pt(10, 10), image.Pt(5, 5)},
		{image.Pt(100, 200), image.Pt(103, 205), image.Pt(101, 202)},
		{image.Pt(7, 7), image.Pt(7, 7), image.Pt(7, 7)},
	}

	for i, tv := range testValues {
		got := Midpoint(tv.a, tv.b)
		if got != tv.want {
			t.Errorf("Midpoint failed in test case %d: got %v, want %v", i, got, tv.want)
		}
		if back := Midpoint(tv.b, tv.a); back != got {
			t.Errorf("Midpoint is not symmetric in test case %d: %v vs %v", i, got, back)
		}
	}
}

func TestCorrespondenceObservation(t *testing.T) {
	row := Correspondence{Area: 1600, CenterX: 320.7, CenterY: 240.2, PhysicalX: 0.5, PhysicalY: -0.25}

	obs := row.Observation()
	want := Observation{Center: image.Pt(320, 240), AreaProxy: 1600}
	if obs != want {
		t.Errorf("Observation failed: got %+v, want %+v", obs, want)
	}
	if p := row.Physical(); p != (r2.Point{X: 0.5, Y: -0.25}) {
		t.Errorf("Physical failed: got %v", p)
	}
}

func TestClampInt(t *testing.T) {
	if got := ClampInt(-4, 0, 10); got != 0 {
		t.Errorf("ClampInt below range: got %d", got)
	}
	if got := ClampInt(14, 0, 10); got != 10 {
		t.Errorf("ClampInt above range: got %d", got)
	}
	if got := ClampInt(4, 0, 10); got != 4 {
		t.Errorf("ClampInt in range: got %d", got)
	}
}

func TestValidateCorrespondencesSpread(t *testing.T) {
	logger := logging.NewTestLogger(t)

	clustered := []Correspondence{
		{Area: 400, CenterX: 100, CenterY: 100, PhysicalX: 0, PhysicalY: 0},
		{Area: 401, CenterX: 101, CenterY: 100, PhysicalX: 0.1, PhysicalY: 0},
		{Area: 400, CenterX: 100, CenterY: 101, PhysicalX: 0, PhysicalY: 0.1},
	}
	if s := ValidateCorrespondences(logger, clustered); !s.Clustered() {
		t.Errorf("expected clustered dataset to be flagged, got %+v", s)
	}

	spread := []Correspondence{
		{Area: 400, CenterX: 100, CenterY: 80, PhysicalX: 0, PhysicalY: 0},
		{Area: 1600, CenterX: 340, CenterY: 200, PhysicalX: 0.5, PhysicalY: 0.5},
		{Area: 3600, CenterX: 580, CenterY: 320, PhysicalX: 1, PhysicalY: 1},
	}
	s := ValidateCorrespondences(logger, spread)
	if s.Clustered() {
		t.Errorf("expected spread dataset to pass, got %+v", s)
	}
	if s.Points != 3 {
		t.Errorf("expected 3 points, got %d", s.Points)
	}
}

func TestValidateCalibrationMeanError(t *testing.T) {
	logger := logging.NewTestLogger(t)
	rows := []Correspondence{
		{Area: 400, CenterX: 100, CenterY: 80, PhysicalX: 1, PhysicalY: 2},
		{Area: 900, CenterX: 200, CenterY: 90, PhysicalX: 3, PhysicalY: 4},
	}
	offByOne := func(obs Observation) (r2.Point, error) {
		for _, r := range rows {
			if r.Observation() == obs {
				return r2.Point{X: r.PhysicalX + 1, Y: r.PhysicalY - 0.5}, nil
			}
		}
		t.Fatalf("unexpected observation %+v", obs)
		return r2.Point{}, nil
	}

	mean, err := ValidateCalibration(logger, rows, offByOne)
	if err != nil {
		t.Fatalf("ValidateCalibration failed: %v", err)
	}
	if mean.X != 1 || mean.Y != 0.5 {
		t.Errorf("unexpected mean error %v", mean)
	}
}
