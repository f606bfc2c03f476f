package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"sync"

	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"

	"markerlocator/dataset"
	"markerlocator/locators"
	"markerlocator/mailbox"
	"markerlocator/utils"
)

var (
	MarkerLocator    = resource.NewModel("viam", "marker-locator", "locator")
	errUnimplemented = errors.New("unimplemented")
)

func init() {
	resource.RegisterComponent(sensor.API, MarkerLocator,
		resource.Registration[sensor.Sensor, *LocatorConfig]{
			Constructor: newMarkerLocator,
		},
	)
}

type LocatorConfig struct {
	DatasetPath     string               `json:"dataset_path,omitempty"`
	MailboxDir      string               `json:"mailbox_dir,omitempty"`
	Redis           *mailbox.RedisConfig `json:"redis,omitempty"`
	WritePrediction *bool                `json:"write_prediction,omitempty"`

	PolynomialCalibration *locators.PolynomialCalibration `json:"polynomial_calibration,omitempty"`
}

func (cfg *LocatorConfig) mailbox() mailbox.Config {
	return mailbox.Config{Dir: cfg.MailboxDir, Redis: cfg.Redis}
}

// Validate ensures all parts of the config are valid and important fields exist.
// Returns implicit required (first return) and optional (second return) dependencies based on the config.
// The path is the JSON path in your robot's config (not the `Config` struct) to the
// resource being validated; e.g. "components.0".
func (cfg *LocatorConfig) Validate(path string) ([]string, []string, error) {
	mb := cfg.mailbox()
	if err := mb.Validate(); err != nil {
		return nil, nil, err
	}
	if cfg.DatasetPath == "" && cfg.PolynomialCalibration == nil {
		return nil, nil, errors.New("one of dataset_path or polynomial_calibration is required")
	}
	if cfg.PolynomialCalibration != nil {
		if err := cfg.PolynomialCalibration.Validate(); err != nil {
			return nil, nil, fmt.Errorf("polynomial_calibration: %w", err)
		}
	}
	if cfg.WritePrediction == nil {
		writePrediction := true
		cfg.WritePrediction = &writePrediction
	}
	return nil, nil, nil
}

type markerLocator struct {
	resource.AlwaysRebuild
	name resource.Name

	logger logging.Logger
	cfg    *LocatorConfig
	store  mailbox.Store

	mu      sync.Mutex
	locator *locators.PolynomialLocator
	rows    int
}

func newMarkerLocator(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (sensor.Sensor, error) {
	conf, err := resource.NativeConfig[*LocatorConfig](rawConf)
	if err != nil {
		return nil, err
	}

	return NewMarkerLocator(ctx, rawConf.ResourceName(), conf, logger)
}

func NewMarkerLocator(ctx context.Context, name resource.Name, conf *LocatorConfig, logger logging.Logger) (sensor.Sensor, error) {
	if _, _, err := conf.Validate(""); err != nil {
		return nil, err
	}
	configJSON, _ := json.MarshalIndent(conf, "", "  ")
	logger.Debugf("Creating marker locator with the following config:\n%s", configJSON)

	store, err := mailbox.Open(ctx, logger, conf.mailbox())
	if err != nil {
		return nil, fmt.Errorf("failed to open mailbox: %w", err)
	}

	s := &markerLocator{
		name:   name,
		logger: logger,
		cfg:    conf,
		store:  store,
	}

	if conf.PolynomialCalibration != nil {
		s.locator, err = locators.NewPolynomialLocatorWithCalibration(logger, conf.PolynomialCalibration)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to create polynomial locator: %w", err)
		}
		s.logger.Info("Using configured polynomial calibration")
	} else {
		if _, err := s.calibrate(conf.DatasetPath); err != nil {
			store.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *markerLocator) Name() resource.Name {
	return s.name
}

func (s *markerLocator) Close(ctx context.Context) error {
	return s.store.Close()
}

// calibrate fits a new locator from a dataset file and swaps it in.
func (s *markerLocator) calibrate(path string) ([]utils.Correspondence, error) {
	rows, err := dataset.LoadCSV(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	utils.ValidateCorrespondences(s.logger, rows)

	loc, err := locators.NewPolynomialLocator(s.logger)
	if err != nil {
		return nil, err
	}
	if err := loc.Calibrate(rows); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.locator = loc
	s.rows = len(rows)
	s.mu.Unlock()
	return rows, nil
}

func (s *markerLocator) current() (*locators.PolynomialLocator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locator == nil {
		return nil, locators.ErrNotCalibrated
	}
	return s.locator, nil
}

// Readings predicts the physical position of the latest mailbox observation.
func (s *markerLocator) Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
	loc, err := s.current()
	if err != nil {
		return nil, err
	}
	obs, err := s.store.ReadObservation(ctx)
	if err != nil {
		return nil, err
	}
	p, err := loc.Locate(obs)
	if err != nil {
		return nil, err
	}
	if *s.cfg.WritePrediction {
		if err := s.store.WritePrediction(ctx, p); err != nil {
			return nil, err
		}
	}
	s.logger.Debugf("Observation center=%v area=%d -> (%.4f, %.4f)", obs.Center, obs.AreaProxy, p.X, p.Y)

	readings := utils.PointToMap(p)
	for k, v := range utils.ObservationToMap(obs) {
		readings[k] = v
	}
	return readings, nil
}

func (s *markerLocator) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	s.logger.Debugf("DoCommand: %+v", cmd)
	switch cmd["command"] {
	case "calibrate":
		path := s.cfg.DatasetPath
		if override, ok := cmd["dataset_path"].(string); ok && override != "" {
			path = override
		}
		if path == "" {
			return nil, errors.New("dataset_path is required to calibrate")
		}
		rows, err := s.calibrate(path)
		if err != nil {
			return map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}, nil
		}
		loc, err := s.current()
		if err != nil {
			return nil, err
		}
		calibration, err := loc.GetCalibration()
		if err != nil {
			return nil, fmt.Errorf("failed to get polynomial calibration: %w", err)
		}
		meanErr, err := utils.ValidateCalibration(s.logger, rows, loc.Locate)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"status":        "success",
			"rows_used":     len(rows),
			"mean_error":    utils.PointToMap(meanErr),
			"x_poly_coeffs": calibration.XPolyCoeffs,
			"y_poly_coeffs": calibration.YPolyCoeffs,
		}, nil

	case "get-calibration":
		loc, err := s.current()
		if err != nil {
			return nil, err
		}
		calibration, err := loc.GetCalibration()
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		rows := s.rows
		s.mu.Unlock()
		return map[string]interface{}{
			"x_poly_coeffs": calibration.XPolyCoeffs,
			"y_poly_coeffs": calibration.YPolyCoeffs,
			"feature_names": locators.FeatureNames[:],
			"rows_used":     rows, // 0 for a calibration supplied in the config
		}, nil

	case "predict":
		loc, err := s.current()
		if err != nil {
			return nil, err
		}
		obs, err := observationFromCommand(cmd)
		if err != nil {
			return nil, err
		}
		p, err := loc.Locate(obs)
		if err != nil {
			return nil, err
		}
		return utils.PointToMap(p), nil

	default:
		return nil, fmt.Errorf("invalid command: %v", cmd["command"])
	}
}

func observationFromCommand(cmd map[string]interface{}) (utils.Observation, error) {
	var values [3]float64
	for i, key := range []string{"center_x", "center_y", "area"} {
		raw, ok := cmd[key]
		if !ok {
			return utils.Observation{}, fmt.Errorf("%s is required", key)
		}
		v, ok := raw.(float64)
		if !ok {
			return utils.Observation{}, fmt.Errorf("%s must be a number", key)
		}
		values[i] = v
	}
	if values[2] < 0 {
		return utils.Observation{}, errors.New("area must be greater than or equal to 0")
	}
	return utils.Observation{
		Center:    image.Point{X: int(values[0]), Y: int(values[1])},
		AreaProxy: int(values[2]),
	}, nil
}
