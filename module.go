package markerlocator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/erh/vmodutils"
	"gocv.io/x/gocv"
	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/robot"
	genericservice "go.viam.com/rdk/services/generic"
	rdk_utils "go.viam.com/utils"

	"markerlocator/mailbox"
	"markerlocator/markers"
	"markerlocator/opencv"
	"markerlocator/utils"
)

var (
	MarkerExtractor = resource.NewModel("viam", "marker-locator", "extractor")
)

func init() {
	resource.RegisterService(genericservice.API, MarkerExtractor,
		resource.Registration[resource.Resource, *Config]{
			Constructor: newExtractorService,
		},
	)
}

type Config struct {
	CameraName       string               `json:"camera_name"`
	SourceName       string               `json:"source_name,omitempty"` // image source passed to Images, empty for all
	MailboxDir       string               `json:"mailbox_dir,omitempty"`
	Redis            *mailbox.RedisConfig `json:"redis,omitempty"`
	Dictionary       string               `json:"dictionary,omitempty"`
	TargetID         *int                 `json:"target_id,omitempty"`
	CornerConvention string               `json:"corner_convention,omitempty"`
	WritePolicy      string               `json:"write_policy,omitempty"`
	UpdateRateHz     float64              `json:"update_rate_hz"`
	EnableOnStart    bool                 `json:"enable_on_start"`
}

func (cfg *Config) markers() *markers.Config {
	return &markers.Config{
		TargetID:    cfg.TargetID,
		Convention:  cfg.CornerConvention,
		WritePolicy: markers.WritePolicy(cfg.WritePolicy),
	}
}

// Validate ensures all parts of the config are valid and important fields exist.
// Returns implicit required (first return) and optional (second return) dependencies based on the config.
// The path is the JSON path in your robot's config (not the `Config` struct) to the
// resource being validated; e.g. "components.0".
func (cfg *Config) Validate(path string) ([]string, []string, error) {
	if cfg.CameraName == "" {
		return nil, nil, errors.New("camera_name is required")
	}
	mb := mailbox.Config{Dir: cfg.MailboxDir, Redis: cfg.Redis}
	if err := mb.Validate(); err != nil {
		return nil, nil, err
	}
	if cfg.Dictionary == "" {
		cfg.Dictionary = opencv.DefaultDictionary
	}
	if err := opencv.ValidateDictionary(cfg.Dictionary); err != nil {
		return nil, nil, err
	}
	ex := cfg.markers()
	if err := ex.Validate(); err != nil {
		return nil, nil, err
	}
	cfg.TargetID = ex.TargetID
	cfg.CornerConvention = ex.Convention
	cfg.WritePolicy = string(ex.WritePolicy)
	if cfg.UpdateRateHz < 0 {
		return nil, nil, errors.New("update_rate_hz must be greater than 0")
	}
	if cfg.UpdateRateHz == 0 {
		cfg.UpdateRateHz = 10
	}
	// The camera is optional: when it is not a local dependency it is looked up on the machine.
	return nil, []string{cfg.CameraName}, nil
}

type extractorService struct {
	resource.AlwaysRebuild

	name resource.Name

	logger logging.Logger
	cfg    *Config

	robotClient robot.Robot
	cam         camera.Camera
	store       mailbox.Store
	detector    opencv.MarkerDetector
	closeDet    func() error
	extractor   *markers.Extractor

	mu      sync.Mutex
	frames  int
	lastErr error

	worker *rdk_utils.StoppableWorkers
}

func newExtractorService(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (resource.Resource, error) {
	conf, err := resource.NativeConfig[*Config](rawConf)
	if err != nil {
		return nil, err
	}

	return NewExtractorService(ctx, deps, rawConf.ResourceName(), conf, logger)
}

// NewExtractorService resolves the camera from deps, or from the machine given
// by the module environment, and starts extracting if enable_on_start is set.
func NewExtractorService(ctx context.Context, deps resource.Dependencies, name resource.Name, conf *Config, logger logging.Logger) (resource.Resource, error) {
	if _, _, err := conf.Validate(""); err != nil {
		return nil, err
	}
	configJSON, _ := json.MarshalIndent(conf, "", "  ")
	logger.Debugf("Creating marker extractor with the following config:\n%s", configJSON)

	var robotClient robot.Robot
	cam, err := camera.FromDependencies(deps, conf.CameraName)
	if err != nil {
		logger.Debugf("Camera %s is not a local dependency (%v), connecting to machine", conf.CameraName, err)
		robotClient, err = vmodutils.ConnectToMachineFromEnv(ctx, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to robot: %w", err)
		}
		cam, err = camera.FromRobot(robotClient, conf.CameraName)
		if err != nil {
			robotClient.Close(ctx)
			return nil, fmt.Errorf("failed to get camera %s: %w", conf.CameraName, err)
		}
	}

	det, err := opencv.NewDetector(conf.Dictionary)
	if err != nil {
		if robotClient != nil {
			robotClient.Close(ctx)
		}
		return nil, err
	}

	store, err := mailbox.Open(ctx, logger, mailbox.Config{Dir: conf.MailboxDir, Redis: conf.Redis})
	if err != nil {
		det.Close()
		if robotClient != nil {
			robotClient.Close(ctx)
		}
		return nil, fmt.Errorf("failed to open mailbox: %w", err)
	}

	s, err := newExtractorServiceFrom(name, conf, cam, det, store, logger)
	if err != nil {
		store.Close()
		det.Close()
		if robotClient != nil {
			robotClient.Close(ctx)
		}
		return nil, err
	}
	s.robotClient = robotClient
	s.closeDet = det.Close

	if conf.EnableOnStart {
		s.worker.Add(s.extractionLoop)
		s.logger.Info("Marker extractor started")
	}
	return s, nil
}

func newExtractorServiceFrom(name resource.Name, conf *Config, cam camera.Camera, det opencv.MarkerDetector, store mailbox.Store, logger logging.Logger) (*extractorService, error) {
	ex, err := markers.NewExtractor(logger, conf.markers(), store)
	if err != nil {
		return nil, err
	}
	return &extractorService{
		name:      name,
		logger:    logger,
		cfg:       conf,
		cam:       cam,
		store:     store,
		detector:  det,
		extractor: ex,
		worker:    rdk_utils.NewBackgroundStoppableWorkers(),
	}, nil
}

func (s *extractorService) Name() resource.Name {
	return s.name
}

func (s *extractorService) Close(ctx context.Context) error {
	s.worker.Stop()
	var errs []error
	errs = append(errs, s.store.Close())
	if s.closeDet != nil {
		errs = append(errs, s.closeDet())
	}
	if s.robotClient != nil {
		errs = append(errs, s.robotClient.Close(ctx))
	}
	return errors.Join(errs...)
}

// processFrame pulls one image from the camera and runs it through the extractor.
func (s *extractorService) processFrame(ctx context.Context) (markers.FrameResult, error) {
	var filter []string
	if s.cfg.SourceName != "" {
		filter = []string{s.cfg.SourceName}
	}
	imgs, _, err := s.cam.Images(ctx, filter, nil)
	if err != nil {
		return markers.FrameResult{}, fmt.Errorf("failed to get images from %s: %w", s.cfg.CameraName, err)
	}
	if len(imgs) == 0 {
		return markers.FrameResult{}, errors.New("no images returned from camera")
	}
	img, err := imgs[0].Image(ctx)
	if err != nil {
		return markers.FrameResult{}, err
	}
	frame, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return markers.FrameResult{}, fmt.Errorf("failed to convert image: %w", err)
	}
	defer frame.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	res, err := s.extractor.ProcessFrame(ctx, s.detector.Detect(frame))
	if err != nil {
		s.lastErr = err
	}
	return res, err
}

func (s *extractorService) extractionLoop(ctx context.Context) {
	updateInterval := time.Duration(1.0 / s.cfg.UpdateRateHz * float64(time.Second))
	s.logger.Infof("Starting extraction loop, update interval: %v", updateInterval)
	ticker := time.NewTicker(updateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := s.processFrame(ctx)
			if err == nil {
				continue
			}
			var writeErr *markers.WriteError
			if errors.As(err, &writeErr) {
				s.logger.Errorf("Stopping extraction loop: %v", err)
				return
			}
			s.logger.Warnf("Failed to process frame: %v", err)
		}
	}
}

func (s *extractorService) status() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp := utils.ObservationToMap(s.extractor.Last())
	resp["frames"] = s.frames
	resp["target_id"] = s.extractor.TargetID()
	if s.lastErr != nil {
		resp["error"] = s.lastErr.Error()
	}
	return resp
}

func (s *extractorService) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	s.logger.Debugf("DoCommand: %+v", cmd)
	switch cmd["command"] {
	case "get-observation":
		return s.status(), nil

	case "process-frame":
		res, err := s.processFrame(ctx)
		if err != nil {
			return nil, err
		}
		resp := map[string]interface{}{
			"found":   res.Found,
			"written": res.Written,
			"markers": len(res.Markers),
		}
		if res.Found {
			resp["observation"] = utils.ObservationToMap(res.Observation)
		}
		return resp, nil

	default:
		return nil, fmt.Errorf("invalid command: %v", cmd["command"])
	}
}
