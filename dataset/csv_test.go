package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"markerlocator/utils"
)

func TestReadCSV(t *testing.T) {
	input := `area,center_x,center_y,ros_x,ros_y
1600,320,240,0.25,-0.1
900,100.5,80,0.5,0.75
`
	rows, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []utils.Correspondence{
		{Area: 1600, CenterX: 320, CenterY: 240, PhysicalX: 0.25, PhysicalY: -0.1},
		{Area: 900, CenterX: 100.5, CenterY: 80, PhysicalX: 0.5, PhysicalY: 0.75},
	}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d", len(rows), len(want))
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("row %d: got %+v, want %+v", i, rows[i], want[i])
		}
	}
}

func TestReadCSVColumnOrder(t *testing.T) {
	input := "ros_y, note, center_y,ros_x,area,center_x,\n" +
		"2, first, 30,1,10,20,\n"
	rows, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := utils.Correspondence{Area: 10, CenterX: 20, CenterY: 30, PhysicalX: 1, PhysicalY: 2}
	if len(rows) != 1 || rows[0] != want {
		t.Errorf("got %+v, want [%+v]", rows, want)
	}
}

func TestReadCSVHeaderOnly(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader("area,center_x,center_y,ros_x,ros_y\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

func TestReadCSVErrors(t *testing.T) {
	testValues := []struct {
		name     string
		input    string
		line     int
		contains string
	}{
		{"empty", "", 0, "header"},
		{"missing columns", "area,center_x,ros_x\n1,2,3\n", 0, "center_y, ros_y"},
		{"repeated column", "area,area,center_x,center_y,ros_x,ros_y\n", 0, "repeats"},
		{"not a number", "area,center_x,center_y,ros_x,ros_y\n1,2,3,4,5\n1,x,3,4,5\n", 3, "center_x"},
		{"negative area", "area,center_x,center_y,ros_x,ros_y\n-1,2,3,4,5\n", 2, "area must be >= 0"},
		{"negative center", "area,center_x,center_y,ros_x,ros_y\n1,2,-3,4,5\n", 2, "center_y must be >= 0"},
		{"short row", "area,center_x,center_y,ros_x,ros_y\n1,2,3,4,5\n\n1,2,3\n", 4, "fields"},
	}

	for _, tv := range testValues {
		_, err := ReadCSV(strings.NewReader(tv.input))
		if err == nil {
			t.Errorf("%s: expected error", tv.name)
			continue
		}
		if !strings.Contains(err.Error(), tv.contains) {
			t.Errorf("%s: error %q does not mention %q", tv.name, err, tv.contains)
		}
		var rowErr *RowError
		if tv.line == 0 {
			if errors.As(err, &rowErr) {
				t.Errorf("%s: header error reported as row error: %v", tv.name, err)
			}
			continue
		}
		if !errors.As(err, &rowErr) {
			t.Errorf("%s: expected RowError, got %v", tv.name, err)
			continue
		}
		if rowErr.Line != tv.line {
			t.Errorf("%s: error names line %d, want %d", tv.name, rowErr.Line, tv.line)
		}
	}
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Camera Data.csv")
	if err := os.WriteFile(path, []byte("\ufeffarea,center_x,center_y,ros_x,ros_y\r\n4,5,6,7,8\r\n"), 0o644); err != nil {
		t.Fatalf("failed to write dataset: %v", err)
	}
	rows, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := utils.Correspondence{Area: 4, CenterX: 5, CenterY: 6, PhysicalX: 7, PhysicalY: 8}
	if len(rows) != 1 || rows[0] != want {
		t.Errorf("got %+v, want [%+v]", rows, want)
	}

	if _, err := LoadCSV(filepath.Join(t.TempDir(), "missing.csv")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected a not-exist error, got %v", err)
	}
}
