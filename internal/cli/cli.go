// Package cli holds the setup shared by the standalone commands.
package cli

import (
	"errors"
	"fmt"
	"os"

	"go.viam.com/rdk/logging"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"
)

// LogConfig selects the optional rotating log file.
type LogConfig struct {
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
	Debug      bool   `yaml:"debug,omitempty"`
}

// NewLogger returns a console logger that also writes to cfg.File when set.
func NewLogger(name string, cfg LogConfig) logging.Logger {
	logger := logging.NewLogger(name)
	if cfg.Debug {
		logger.SetLevel(logging.DEBUG)
	}
	if cfg.File != "" {
		logger.AddAppender(logging.NewWriterAppender(rotatingFile(cfg)))
	}
	return logger
}

func rotatingFile(cfg LogConfig) *lumberjack.Logger {
	w := &lumberjack.Logger{
		Filename:   cfg.File,
		LocalTime:  true,
		Compress:   true,
		MaxSize:    cfg.MaxSizeMB,
		MaxAge:     cfg.MaxAgeDays,
		MaxBackups: cfg.MaxBackups,
	}
	if w.MaxSize == 0 {
		w.MaxSize = 100
	}
	if w.MaxAge == 0 {
		w.MaxAge = 7
	}
	if w.MaxBackups == 0 {
		w.MaxBackups = 3
	}
	return w
}

// LoadYAML decodes path into v. A missing optional file (empty path) leaves v untouched.
func LoadYAML(path string, v interface{}) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// ExitCode maps an error to the process exit status: 0 for nil, 2 for usage errors, 1 otherwise.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrUsage):
		return 2
	default:
		return 1
	}
}

// ErrUsage marks invalid command line input.
var ErrUsage = errors.New("usage")

// Usagef returns an error that ExitCode maps to 2.
func Usagef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}
