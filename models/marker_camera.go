package models

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"gocv.io/x/gocv"
	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/pointcloud"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/rimage"
	"go.viam.com/rdk/spatialmath"

	"markerlocator/mailbox"
	"markerlocator/utils"
)

var (
	MarkerCamera = resource.NewModel("viam", "marker-locator", "marker-camera")
)

func init() {
	resource.RegisterComponent(camera.API, MarkerCamera,
		resource.Registration[camera.Camera, *MarkerCameraConfig]{
			Constructor: newMarkerCamera,
		},
	)
}

type MarkerCameraConfig struct {
	CameraName      string               `json:"camera_name"`
	MailboxDir      string               `json:"mailbox_dir,omitempty"`
	Redis           *mailbox.RedisConfig `json:"redis,omitempty"`
	CrosshairSize   int                  `json:"crosshair_size"`   // Length of crosshair lines from the marker center
	CrosshairThick  int                  `json:"crosshair_thick"`  // Thickness of crosshair lines
	CrosshairColor  string               `json:"crosshair_color"`  // Color: "red", "green", "blue", "white", "black"
	CrosshairCircle bool                 `json:"crosshair_circle"` // Add a circle at the center
	HideLabel       bool                 `json:"hide_label"`       // Skip the "Area: N" label
}

// Validate ensures all parts of the config are valid and important fields exist.
// Returns implicit dependencies based on the config.
// The path is the JSON path in your robot's config (not the `Config` struct) to the
// resource being validated; e.g. "components.0".
func (cfg *MarkerCameraConfig) Validate(path string) ([]string, []string, error) {
	if cfg.CameraName == "" {
		return nil, nil, errors.New("camera_name is required")
	}
	mb := mailbox.Config{Dir: cfg.MailboxDir, Redis: cfg.Redis}
	if err := mb.Validate(); err != nil {
		return nil, nil, err
	}
	if cfg.CrosshairSize < 0 || cfg.CrosshairThick < 0 {
		return nil, nil, errors.New("crosshair_size and crosshair_thick must be greater than or equal to 0")
	}
	// Set defaults
	if cfg.CrosshairSize == 0 {
		cfg.CrosshairSize = 20
	}
	if cfg.CrosshairThick == 0 {
		cfg.CrosshairThick = 3
	}
	if cfg.CrosshairColor == "" {
		cfg.CrosshairColor = "red"
	}
	return []string{cfg.CameraName}, nil, nil
}

type markerCamera struct {
	resource.AlwaysRebuild
	name           resource.Name
	logger         logging.Logger
	cfg            *MarkerCameraConfig
	underlyingCam  camera.Camera
	store          mailbox.Store
	crosshairColor color.RGBA
}

func newMarkerCamera(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (camera.Camera, error) {
	conf, err := resource.NativeConfig[*MarkerCameraConfig](rawConf)
	if err != nil {
		return nil, err
	}

	// Get underlying camera
	cam, err := camera.FromDependencies(deps, conf.CameraName)
	if err != nil {
		return nil, err
	}

	store, err := mailbox.Open(ctx, logger, mailbox.Config{Dir: conf.MailboxDir, Redis: conf.Redis})
	if err != nil {
		return nil, fmt.Errorf("failed to open mailbox: %w", err)
	}
	return newMarkerCameraFrom(rawConf.ResourceName(), conf, cam, store, logger), nil
}

func newMarkerCameraFrom(name resource.Name, conf *MarkerCameraConfig, cam camera.Camera, store mailbox.Store, logger logging.Logger) *markerCamera {
	return &markerCamera{
		name:           name,
		logger:         logger,
		cfg:            conf,
		underlyingCam:  cam,
		store:          store,
		crosshairColor: parseColor(conf.CrosshairColor),
	}
}

func (s *markerCamera) Name() resource.Name {
	return s.name
}

func (s *markerCamera) Close(context.Context) error {
	return s.store.Close()
}

func (s *markerCamera) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	switch cmd["command"] {
	case "get-observation":
		obs, err := s.store.ReadObservation(ctx)
		if err != nil {
			return nil, err
		}
		return utils.ObservationToMap(obs), nil
	default:
		return nil, fmt.Errorf("invalid command: %v", cmd["command"])
	}
}

// annotate overlays the latest mailbox observation. A missing or malformed
// observation leaves the image untouched.
func (s *markerCamera) annotate(ctx context.Context, img image.Image) image.Image {
	obs, err := s.store.ReadObservation(ctx)
	if err != nil {
		s.logger.Debugf("No observation to overlay: %v", err)
		return img
	}
	out := s.drawCrosshair(img, obs.Center)
	if s.cfg.HideLabel {
		return out
	}
	labelled, err := s.drawLabel(out, obs)
	if err != nil {
		s.logger.Debugf("Failed to draw area label: %v", err)
		return out
	}
	return labelled
}

// drawCrosshair draws a crosshair at the given pixel
func (s *markerCamera) drawCrosshair(img image.Image, center image.Point) *image.RGBA {
	bounds := img.Bounds()
	centerX := center.X
	centerY := center.Y

	// Create a mutable copy of the image
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)

	size := s.cfg.CrosshairSize
	thick := s.cfg.CrosshairThick
	inside := func(x, y int) bool {
		return image.Pt(x, y).In(bounds)
	}

	// Horizontal line
	for x := centerX - size; x <= centerX+size; x++ {
		for dy := -thick / 2; dy <= thick/2; dy++ {
			if inside(x, centerY+dy) {
				rgba.Set(x, centerY+dy, s.crosshairColor)
			}
		}
	}

	// Vertical line
	for y := centerY - size; y <= centerY+size; y++ {
		for dx := -thick / 2; dx <= thick/2; dx++ {
			if inside(centerX+dx, y) {
				rgba.Set(centerX+dx, y, s.crosshairColor)
			}
		}
	}

	if s.cfg.CrosshairCircle {
		radius := size / 2
		for angle := 0.0; angle < 360.0; angle += 1.0 {
			rad := angle * math.Pi / 180.0
			x := centerX + int(float64(radius)*math.Cos(rad))
			y := centerY + int(float64(radius)*math.Sin(rad))
			if inside(x, y) {
				rgba.Set(x, y, s.crosshairColor)
			}
		}
	}

	return rgba
}

// rough footprint of "Area: NNNN" in FontHersheyPlain at scale 1.3
const (
	labelWidth  = 110
	labelHeight = 16
)

func (s *markerCamera) drawLabel(img image.Image, obs utils.Observation) (image.Image, error) {
	mat, err := gocv.ImageToMatRGBA(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()
	// keep the text origin inside the frame
	b := img.Bounds()
	org := image.Pt(
		utils.ClampInt(obs.Center.X+s.cfg.CrosshairSize+4, b.Min.X, b.Max.X-labelWidth),
		utils.ClampInt(obs.Center.Y+s.cfg.CrosshairSize+4, b.Min.Y+labelHeight, b.Max.Y-1),
	)
	gocv.PutText(&mat, fmt.Sprintf("Area: %d", obs.AreaProxy), org, gocv.FontHersheyPlain, 1.3, s.crosshairColor, 2)
	return mat.ToImage()
}

// parseColor converts color string to color.RGBA
func parseColor(colorName string) color.RGBA {
	switch colorName {
	case "red":
		return color.RGBA{R: 255, G: 0, B: 0, A: 255}
	case "green":
		return color.RGBA{R: 0, G: 255, B: 0, A: 255}
	case "blue":
		return color.RGBA{R: 0, G: 0, B: 255, A: 255}
	case "white":
		return color.RGBA{R: 255, G: 255, B: 255, A: 255}
	case "black":
		return color.RGBA{R: 0, G: 0, B: 0, A: 255}
	case "yellow":
		return color.RGBA{R: 255, G: 255, B: 0, A: 255}
	case "cyan":
		return color.RGBA{R: 0, G: 255, B: 255, A: 255}
	case "magenta":
		return color.RGBA{R: 255, G: 0, B: 255, A: 255}
	default:
		return color.RGBA{R: 255, G: 0, B: 0, A: 255} // Default to red
	}
}

func (s *markerCamera) Geometries(ctx context.Context, extra map[string]interface{}) ([]spatialmath.Geometry, error) {
	return s.underlyingCam.Geometries(ctx, extra)
}

func (s *markerCamera) Image(ctx context.Context, mimeType string, extra map[string]interface{}) ([]byte, camera.ImageMetadata, error) {
	raw, meta, err := s.underlyingCam.Image(ctx, mimeType, extra)
	if err != nil {
		return nil, camera.ImageMetadata{}, err
	}
	img, err := rimage.DecodeImage(ctx, raw, meta.MimeType)
	if err != nil {
		return nil, camera.ImageMetadata{}, err
	}
	out, err := rimage.EncodeImage(ctx, s.annotate(ctx, img), meta.MimeType)
	if err != nil {
		return nil, camera.ImageMetadata{}, err
	}
	return out, meta, nil
}

func (s *markerCamera) Images(ctx context.Context, filterSourceNames []string, extra map[string]interface{}) ([]camera.NamedImage, resource.ResponseMetadata, error) {
	imgs, meta, err := s.underlyingCam.Images(ctx, filterSourceNames, extra)
	if err != nil {
		return nil, resource.ResponseMetadata{}, err
	}

	resultImgs := make([]camera.NamedImage, len(imgs))
	for i, namedImg := range imgs {
		img, err := namedImg.Image(ctx)
		if err != nil {
			return nil, resource.ResponseMetadata{}, err
		}

		resultImg, err := camera.NamedImageFromImage(s.annotate(ctx, img), namedImg.SourceName, namedImg.MimeType())
		if err != nil {
			return nil, resource.ResponseMetadata{}, err
		}
		resultImgs[i] = resultImg
	}

	return resultImgs, meta, nil
}

func (s *markerCamera) NextPointCloud(ctx context.Context, extra map[string]interface{}) (pointcloud.PointCloud, error) {
	return nil, fmt.Errorf("next point cloud: %w", errUnimplemented)
}

func (s *markerCamera) Properties(ctx context.Context) (camera.Properties, error) {
	// Return properties from underlying camera
	return s.underlyingCam.Properties(ctx)
}
