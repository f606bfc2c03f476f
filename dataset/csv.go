// Package dataset loads calibration correspondences recorded as CSV.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"markerlocator/utils"
)

// Column names of the calibration CSV.
const (
	ColumnArea    = "area"
	ColumnCenterX = "center_x"
	ColumnCenterY = "center_y"
	ColumnRosX    = "ros_x"
	ColumnRosY    = "ros_y"
)

var requiredColumns = []string{ColumnArea, ColumnCenterX, ColumnCenterY, ColumnRosX, ColumnRosY}

var validate = validator.New()

// RowError names the CSV line a bad record came from.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("dataset line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// LoadCSV reads a calibration dataset from a file.
func LoadCSV(path string) ([]utils.Correspondence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	rows, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// ReadCSV reads a calibration dataset with a header row. Columns may appear in
// any order and unknown columns are ignored.
func ReadCSV(r io.Reader) ([]utils.Correspondence, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("dataset is empty, expected a header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset header: %w", err)
	}
	index, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var rows []utils.Correspondence
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, &RowError{Line: perr.Line, Err: perr.Err}
			}
			return nil, fmt.Errorf("failed to read dataset: %w", err)
		}
		line, _ := cr.FieldPos(0)
		row, err := parseRow(record, index)
		if err != nil {
			return nil, &RowError{Line: line, Err: err}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if _, dup := index[name]; dup && isRequired(name) {
			return nil, fmt.Errorf("dataset header repeats column %q", name)
		}
		index[name] = i
	}
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("dataset header is missing columns: %s", strings.Join(missing, ", "))
	}
	return index, nil
}

func isRequired(name string) bool {
	for _, r := range requiredColumns {
		if r == name {
			return true
		}
	}
	return false
}

func parseRow(record []string, index map[string]int) (utils.Correspondence, error) {
	values := make(map[string]float64, len(requiredColumns))
	for _, name := range requiredColumns {
		raw := strings.TrimSpace(record[index[name]])
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return utils.Correspondence{}, fmt.Errorf("column %s: %q is not a number", name, raw)
		}
		values[name] = v
	}
	row := utils.Correspondence{
		Area:      values[ColumnArea],
		CenterX:   values[ColumnCenterX],
		CenterY:   values[ColumnCenterY],
		PhysicalX: values[ColumnRosX],
		PhysicalY: values[ColumnRosY],
	}
	if err := validate.Struct(row); err != nil {
		return utils.Correspondence{}, describe(err)
	}
	return row, nil
}

var fieldColumns = map[string]string{
	"Area":      ColumnArea,
	"CenterX":   ColumnCenterX,
	"CenterY":   ColumnCenterY,
	"PhysicalX": ColumnRosX,
	"PhysicalY": ColumnRosY,
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		col := fieldColumns[fe.Field()]
		switch fe.Tag() {
		case "gte":
			msgs = append(msgs, fmt.Sprintf("column %s must be >= %s, got %v", col, fe.Param(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("column %s failed %s", col, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
