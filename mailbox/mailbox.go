// Package mailbox holds the latest marker observation and predicted position
// shared between the extractor and the locator.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/geo/r2"

	"markerlocator/utils"
)

// Mailbox slot names. The file store uses them as file names.
const (
	CenterXKey    = "center_x.txt"
	CenterYKey    = "center_y.txt"
	AreaKey       = "area.txt"
	PredictionKey = "current_pos.txt"
)

// Store is a last-writer-wins slot for the latest observation and prediction.
type Store interface {
	WriteObservation(ctx context.Context, obs utils.Observation) error
	ReadObservation(ctx context.Context) (utils.Observation, error)
	WritePrediction(ctx context.Context, p r2.Point) error
	ReadPrediction(ctx context.Context) (r2.Point, error)
	Close() error
}

// MalformedObservationError reports a mailbox slot that is missing or does not hold a number.
type MalformedObservationError struct {
	Key   string
	Value string
	Err   error
}

func (e *MalformedObservationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("malformed observation %s: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("malformed observation %s %q: %v", e.Key, e.Value, e.Err)
}

func (e *MalformedObservationError) Unwrap() error { return e.Err }

var (
	errMissing     = errors.New("slot is empty or missing")
	errNegArea     = errors.New("area proxy must not be negative")
	errBadPosition = errors.New("want two numbers")
)

func formatObservation(obs utils.Observation) map[string]string {
	return map[string]string{
		CenterXKey: strconv.Itoa(obs.Center.X),
		CenterYKey: strconv.Itoa(obs.Center.Y),
		AreaKey:    strconv.Itoa(obs.AreaProxy),
	}
}

func parseScalar(key, raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, &MalformedObservationError{Key: key, Err: errMissing}
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, &MalformedObservationError{Key: key, Value: s, Err: err}
	}
	return v, nil
}

func parseObservation(values map[string]string) (utils.Observation, error) {
	var obs utils.Observation
	var err error
	if obs.Center.X, err = parseScalar(CenterXKey, values[CenterXKey]); err != nil {
		return utils.Observation{}, err
	}
	if obs.Center.Y, err = parseScalar(CenterYKey, values[CenterYKey]); err != nil {
		return utils.Observation{}, err
	}
	if obs.AreaProxy, err = parseScalar(AreaKey, values[AreaKey]); err != nil {
		return utils.Observation{}, err
	}
	if obs.AreaProxy < 0 {
		return utils.Observation{}, &MalformedObservationError{Key: AreaKey, Value: strconv.Itoa(obs.AreaProxy), Err: errNegArea}
	}
	return obs, nil
}

// FormatPrediction renders a position as two shortest round-trip decimals.
func FormatPrediction(p r2.Point) string {
	return strconv.FormatFloat(p.X, 'g', -1, 64) + " " + strconv.FormatFloat(p.Y, 'g', -1, 64)
}

// ParsePrediction reads a position written by FormatPrediction.
func ParsePrediction(raw string) (r2.Point, error) {
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return r2.Point{}, &MalformedObservationError{Key: PredictionKey, Value: strings.TrimSpace(raw), Err: errBadPosition}
	}
	x, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return r2.Point{}, &MalformedObservationError{Key: PredictionKey, Value: fields[0], Err: err}
	}
	y, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return r2.Point{}, &MalformedObservationError{Key: PredictionKey, Value: fields[1], Err: err}
	}
	return r2.Point{X: x, Y: y}, nil
}
