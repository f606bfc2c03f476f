// Command locate fits the calibration model, converts the latest mailbox
// observation into a physical position and writes it to the prediction mailbox.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.viam.com/rdk/logging"

	"markerlocator/dataset"
	"markerlocator/internal/cli"
	"markerlocator/locators"
	"markerlocator/mailbox"
	"markerlocator/utils"
)

type config struct {
	Dataset     string         `yaml:"dataset"`
	Calibration string         `yaml:"calibration"` // previously exported coefficients, used instead of fitting
	Export      string         `yaml:"export"`      // write fitted coefficients here
	Mailbox     mailbox.Config `yaml:"mailbox"`
	Log         cli.LogConfig  `yaml:"log"`
}

func main() {
	os.Exit(cli.ExitCode(realMain(os.Args[1:], os.Stdout)))
}

func parseConfig(args []string) (config, error) {
	fs := flag.NewFlagSet("locate", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional YAML config file; flags override it")
	datasetPath := fs.String("dataset", "Camera Data.csv", "calibration dataset CSV")
	calibration := fs.String("calibration", "", "load coefficients from this JSON file instead of fitting")
	export := fs.String("export", "", "write the fitted coefficients to this JSON file")
	mailboxDir := fs.String("mailbox", ".", "mailbox directory")
	redisAddr := fs.String("redis", "", "use a redis mailbox at this address instead of files")
	logFile := fs.String("log-file", "", "also write logs to this rotating file")
	debug := fs.Bool("debug", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return config{}, cli.Usagef("%v", err)
	}

	var cfg config
	cfg.Dataset = *datasetPath
	cfg.Mailbox.Dir = *mailboxDir
	if err := cli.LoadYAML(*configPath, &cfg); err != nil {
		return config{}, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dataset":
			cfg.Dataset = *datasetPath
		case "calibration":
			cfg.Calibration = *calibration
		case "export":
			cfg.Export = *export
		case "mailbox":
			cfg.Mailbox.Dir = *mailboxDir
		case "redis":
			cfg.Mailbox.Redis = &mailbox.RedisConfig{Addr: *redisAddr}
		case "log-file":
			cfg.Log.File = *logFile
		case "debug":
			cfg.Log.Debug = *debug
		}
	})

	if err := cfg.Mailbox.Validate(); err != nil {
		return config{}, cli.Usagef("%v", err)
	}
	if cfg.Dataset == "" && cfg.Calibration == "" {
		return config{}, cli.Usagef("one of -dataset or -calibration is required")
	}
	return cfg, nil
}

func loadLocator(logger logging.Logger, cfg config) (*locators.PolynomialLocator, error) {
	if cfg.Calibration != "" {
		data, err := os.ReadFile(cfg.Calibration)
		if err != nil {
			return nil, fmt.Errorf("failed to read calibration: %w", err)
		}
		var calibration locators.PolynomialCalibration
		if err := json.Unmarshal(data, &calibration); err != nil {
			return nil, fmt.Errorf("failed to parse calibration %s: %w", cfg.Calibration, err)
		}
		return locators.NewPolynomialLocatorWithCalibration(logger, &calibration)
	}

	rows, err := dataset.LoadCSV(cfg.Dataset)
	if err != nil {
		return nil, err
	}
	utils.ValidateCorrespondences(logger, rows)
	loc, err := locators.NewPolynomialLocator(logger)
	if err != nil {
		return nil, err
	}
	if err := loc.Calibrate(rows); err != nil {
		return nil, err
	}
	if cfg.Export != "" {
		calibration, err := loc.GetCalibration()
		if err != nil {
			return nil, err
		}
		data, err := json.MarshalIndent(calibration, "", "  ")
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(cfg.Export, append(data, '\n'), 0o644); err != nil {
			return nil, fmt.Errorf("failed to export calibration: %w", err)
		}
		logger.Infof("Exported calibration to %s", cfg.Export)
	}
	return loc, nil
}

func run(ctx context.Context, logger logging.Logger, cfg config, out io.Writer) error {
	loc, err := loadLocator(logger, cfg)
	if err != nil {
		return err
	}

	store, err := mailbox.Open(ctx, logger, cfg.Mailbox)
	if err != nil {
		return err
	}
	defer store.Close()

	obs, err := store.ReadObservation(ctx)
	if err != nil {
		return err
	}
	logger.Infof("Observation: center=(%d, %d) area=%d", obs.Center.X, obs.Center.Y, obs.AreaProxy)

	p, err := loc.Locate(obs)
	if err != nil {
		return err
	}
	if err := store.WritePrediction(ctx, p); err != nil {
		return err
	}
	fmt.Fprintln(out, mailbox.FormatPrediction(p))
	return nil
}

func realMain(args []string, out io.Writer) error {
	cfg, err := parseConfig(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	logger := cli.NewLogger("locate", cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg, out); err != nil {
		logger.Error(err)
		return err
	}
	return nil
}
