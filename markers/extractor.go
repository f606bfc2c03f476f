package markers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.viam.com/rdk/logging"

	"markerlocator/utils"
)

// DefaultTargetID is the marker id tracked when none is configured.
const DefaultTargetID = 300

// WritePolicy decides when a frame updates the observation mailbox.
type WritePolicy string

const (
	// WriteOnTarget writes only on frames where the target marker was extracted.
	WriteOnTarget WritePolicy = "on-target"
	// WriteOnAnyDetection rewrites the last-known observation whenever any marker is
	// detected, acting as a keep-alive even when the target is out of view.
	WriteOnAnyDetection WritePolicy = "on-any-detection"
)

// ObservationWriter receives observations from the extractor.
type ObservationWriter interface {
	WriteObservation(ctx context.Context, obs utils.Observation) error
}

// Config configures an Extractor.
type Config struct {
	TargetID    *int        `json:"target_id,omitempty" yaml:"target_id,omitempty"`
	Convention  string      `json:"corner_convention,omitempty" yaml:"corner_convention,omitempty"`
	WritePolicy WritePolicy `json:"write_policy,omitempty" yaml:"write_policy,omitempty"`
}

// Validate fills in defaults and rejects unknown values.
func (cfg *Config) Validate() error {
	if cfg.TargetID == nil {
		id := DefaultTargetID
		cfg.TargetID = &id
	}
	if *cfg.TargetID < 0 {
		return errors.New("target_id must be greater than or equal to 0")
	}
	if cfg.Convention == "" {
		cfg.Convention = ArucoConvention.Name
	}
	if _, err := ConventionByName(cfg.Convention); err != nil {
		return err
	}
	if cfg.WritePolicy == "" {
		cfg.WritePolicy = WriteOnTarget
	}
	if cfg.WritePolicy != WriteOnTarget && cfg.WritePolicy != WriteOnAnyDetection {
		return fmt.Errorf("write_policy must be either '%s' or '%s'", WriteOnTarget, WriteOnAnyDetection)
	}
	return nil
}

// WriteError is returned by ProcessFrame when the observation could not be persisted.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write observation: %v", e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Marker is the per-detection outcome of a frame, kept for overlay drawing.
type Marker struct {
	Detection   utils.Detection
	Roles       Roles
	Observation utils.Observation
	Err         error
}

// FrameResult is what one frame produced.
type FrameResult struct {
	Markers     []Marker
	Observation utils.Observation // target observation, valid when Found
	Found       bool
	Written     bool
}

// Extractor isolates the target marker in each frame and forwards its observation.
type Extractor struct {
	logger     logging.Logger
	targetID   int
	convention CornerConvention
	policy     WritePolicy
	sink       ObservationWriter

	mu   sync.Mutex
	last utils.Observation
}

// NewExtractor builds an extractor writing to sink. cfg is validated in place.
func NewExtractor(logger logging.Logger, cfg *Config, sink ObservationWriter) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, errors.New("observation writer is required")
	}
	convention, err := ConventionByName(cfg.Convention)
	if err != nil {
		return nil, err
	}
	if err := convention.Validate(); err != nil {
		return nil, err
	}
	return &Extractor{
		logger:     logger,
		targetID:   *cfg.TargetID,
		convention: convention,
		policy:     cfg.WritePolicy,
		sink:       sink,
		last:       utils.ZeroObservation,
	}, nil
}

// TargetID returns the tracked marker id.
func (e *Extractor) TargetID() int {
	return e.targetID
}

// Last returns the last-known target observation.
func (e *Extractor) Last() utils.Observation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Select extracts every detection and returns the target observation, if any.
// When the target id appears more than once the last occurrence wins.
func (e *Extractor) Select(detections []utils.Detection) FrameResult {
	res := FrameResult{Markers: make([]Marker, 0, len(detections))}
	for _, det := range detections {
		obs, roles, err := Extract(det, e.convention)
		res.Markers = append(res.Markers, Marker{Detection: det, Roles: roles, Observation: obs, Err: err})
		if err != nil {
			e.logger.Warnf("Skipping marker %d: %v", det.ID, err)
			continue
		}
		if det.ID == e.targetID {
			res.Observation = obs
			res.Found = true
		}
	}
	return res
}

// ProcessFrame handles one frame of detector output. A write failure is returned
// to the caller and is meant to be fatal; the last-known observation is still updated.
func (e *Extractor) ProcessFrame(ctx context.Context, detections []utils.Detection) (FrameResult, error) {
	res := e.Select(detections)
	if len(detections) == 0 {
		return res, nil
	}

	e.mu.Lock()
	if res.Found {
		e.last = res.Observation
	}
	last := e.last
	e.mu.Unlock()

	if !res.Found && e.policy != WriteOnAnyDetection {
		return res, nil
	}
	if err := e.sink.WriteObservation(ctx, last); err != nil {
		return res, &WriteError{Err: err}
	}
	res.Written = true
	if res.Found {
		e.logger.Debugf("Marker %d: center=%v area=%d", e.targetID, last.Center, last.AreaProxy)
	}
	return res, nil
}
