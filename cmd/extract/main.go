// Command extract tracks the target marker on a local camera and keeps the
// observation mailbox up to date until 'q' is pressed or the capture ends.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"markerlocator/internal/cli"
	"markerlocator/mailbox"
	"markerlocator/markers"
	"markerlocator/opencv"
)

type config struct {
	Source     string         `yaml:"source"`
	Dictionary string         `yaml:"dictionary"`
	Headless   bool           `yaml:"headless"`
	Shapes     bool           `yaml:"shapes"`
	Mailbox    mailbox.Config `yaml:"mailbox"`
	Markers    markers.Config `yaml:"markers"`
	Log        cli.LogConfig  `yaml:"log"`
}

func main() {
	os.Exit(cli.ExitCode(realMain(os.Args[1:])))
}

func parseConfig(args []string) (config, error) {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional YAML config file; flags override it")
	source := fs.String("source", "0", "camera device index or video file")
	dictionary := fs.String("dictionary", opencv.DefaultDictionary, "ArUco dictionary")
	mailboxDir := fs.String("mailbox", ".", "mailbox directory")
	redisAddr := fs.String("redis", "", "use a redis mailbox at this address instead of files")
	targetID := fs.Int("target-id", markers.DefaultTargetID, "marker id to track")
	convention := fs.String("convention", markers.ArucoConvention.Name, "corner convention: aruco or legacy")
	policy := fs.String("write-policy", string(markers.WriteOnTarget), "on-target or on-any-detection")
	headless := fs.Bool("headless", false, "do not open the debug window")
	shapes := fs.Bool("shapes", false, "draw the contour shape overlay")
	logFile := fs.String("log-file", "", "also write logs to this rotating file")
	debug := fs.Bool("debug", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return config{}, cli.Usagef("%v", err)
	}

	var cfg config
	cfg.Source = *source
	cfg.Dictionary = *dictionary
	cfg.Mailbox.Dir = *mailboxDir
	if err := cli.LoadYAML(*configPath, &cfg); err != nil {
		return config{}, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "source":
			cfg.Source = *source
		case "dictionary":
			cfg.Dictionary = *dictionary
		case "mailbox":
			cfg.Mailbox.Dir = *mailboxDir
		case "redis":
			cfg.Mailbox.Redis = &mailbox.RedisConfig{Addr: *redisAddr}
		case "target-id":
			cfg.Markers.TargetID = targetID
		case "convention":
			cfg.Markers.Convention = *convention
		case "write-policy":
			cfg.Markers.WritePolicy = markers.WritePolicy(*policy)
		case "headless":
			cfg.Headless = *headless
		case "shapes":
			cfg.Shapes = *shapes
		case "log-file":
			cfg.Log.File = *logFile
		case "debug":
			cfg.Log.Debug = *debug
		}
	})

	if err := cfg.Mailbox.Validate(); err != nil {
		return config{}, cli.Usagef("%v", err)
	}
	if err := cfg.Markers.Validate(); err != nil {
		return config{}, cli.Usagef("%v", err)
	}
	if err := opencv.ValidateDictionary(cfg.Dictionary); err != nil {
		return config{}, cli.Usagef("%v", err)
	}
	return cfg, nil
}

func realMain(args []string) error {
	cfg, err := parseConfig(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	logger := cli.NewLogger("extract", cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := mailbox.Open(ctx, logger, cfg.Mailbox)
	if err != nil {
		logger.Error(err)
		return err
	}
	defer store.Close()

	extractor, err := markers.NewExtractor(logger, &cfg.Markers, store)
	if err != nil {
		logger.Error(err)
		return err
	}

	capture, err := opencv.OpenCapture(cfg.Source)
	if err != nil {
		logger.Error(err)
		return err
	}
	defer capture.Close()

	detector, err := opencv.NewDetector(cfg.Dictionary)
	if err != nil {
		logger.Error(err)
		return err
	}
	defer detector.Close()

	loop := &opencv.Loop{
		Logger:    logger,
		Source:    capture,
		Detector:  detector,
		Extractor: extractor,
	}
	if !cfg.Headless {
		window := opencv.NewWindow("frame")
		defer window.Close()
		loop.Display = window
		if cfg.Shapes {
			loop.Shapes = opencv.NewShapeOverlay()
			defer loop.Shapes.Close()
		}
	}

	logger.Infof("Tracking marker %d on %s (%s, %s convention, %s)",
		extractor.TargetID(), cfg.Source, cfg.Dictionary, cfg.Markers.Convention, cfg.Markers.WritePolicy)
	if err := loop.Run(ctx); err != nil {
		logger.Errorf("Extraction stopped: %v", err)
		return err
	}
	return nil
}
