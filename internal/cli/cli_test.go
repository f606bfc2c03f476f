package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Source string    `yaml:"source"`
	Log    LogConfig `yaml:"log"`
	Nested struct {
		TargetID *int `yaml:"target_id"`
	} `yaml:"nested"`
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extract.yaml")
	data := "source: \"1\"\nlog:\n  file: /tmp/x.log\n  debug: true\nnested:\n  target_id: 12\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	var cfg sample
	if err := LoadYAML(path, &cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Source != "1" || cfg.Log.File != "/tmp/x.log" || !cfg.Log.Debug {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.Nested.TargetID == nil || *cfg.Nested.TargetID != 12 {
		t.Errorf("target_id not decoded: %v", cfg.Nested.TargetID)
	}

	untouched := sample{Source: "keep"}
	if err := LoadYAML("", &untouched); err != nil || untouched.Source != "keep" {
		t.Errorf("empty path should be a no-op, got %+v %v", untouched, err)
	}
	if err := LoadYAML(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("source: [unterminated"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if err := LoadYAML(bad, &cfg); err == nil {
		t.Error("expected parse error")
	}
}

func TestRotatingFileDefaults(t *testing.T) {
	w := rotatingFile(LogConfig{File: "a.log"})
	if w.MaxSize != 100 || w.MaxAge != 7 || w.MaxBackups != 3 || w.Filename != "a.log" {
		t.Errorf("unexpected defaults %+v", w)
	}
	w = rotatingFile(LogConfig{File: "a.log", MaxSizeMB: 5, MaxAgeDays: 1, MaxBackups: 9})
	if w.MaxSize != 5 || w.MaxAge != 1 || w.MaxBackups != 9 {
		t.Errorf("overrides ignored %+v", w)
	}
}

func TestExitCode(t *testing.T) {
	testValues := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{Usagef("unknown flag %s", "-x"), 2},
		{fmt.Errorf("wrapped: %w", Usagef("bad")), 2},
		{errors.New("disk full"), 1},
	}
	for _, tv := range testValues {
		if got := ExitCode(tv.err); got != tv.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tv.err, got, tv.want)
		}
	}
}
