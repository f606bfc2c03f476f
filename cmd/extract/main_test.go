package main

import (
	"os"
	"path/filepath"
	"testing"

	"markerlocator/internal/cli"
	"markerlocator/markers"
	"markerlocator/opencv"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := parseConfig(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Source != "0" || cfg.Dictionary != opencv.DefaultDictionary || cfg.Mailbox.Dir != "." {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.Markers.TargetID == nil || *cfg.Markers.TargetID != markers.DefaultTargetID {
		t.Errorf("target id default not applied: %v", cfg.Markers.TargetID)
	}
	if cfg.Markers.Convention != markers.ArucoConvention.Name || cfg.Markers.WritePolicy != markers.WriteOnTarget {
		t.Errorf("marker defaults not applied: %+v", cfg.Markers)
	}
	if cfg.Headless || cfg.Shapes {
		t.Error("window options should default off")
	}
}

func TestParseConfigYAMLAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extract.yaml")
	data := "source: clip.mp4\ndictionary: 4x4_50\nheadless: true\nmarkers:\n  target_id: 7\n  corner_convention: legacy\nmailbox:\n  mailbox_dir: /srv/mailbox\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := parseConfig([]string{"-config", path, "-target-id", "42", "-write-policy", "on-any-detection"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Source != "clip.mp4" || cfg.Dictionary != "4x4_50" || !cfg.Headless || cfg.Mailbox.Dir != "/srv/mailbox" {
		t.Errorf("yaml values lost: %+v", cfg)
	}
	if *cfg.Markers.TargetID != 42 || cfg.Markers.Convention != "legacy" {
		t.Errorf("unexpected marker config %+v", cfg.Markers)
	}
	if cfg.Markers.WritePolicy != markers.WriteOnAnyDetection {
		t.Errorf("write policy flag ignored: %s", cfg.Markers.WritePolicy)
	}
}

func TestParseConfigUsageErrors(t *testing.T) {
	testValues := [][]string{
		{"-bogus"},
		{"-dictionary", "9x9_1"},
		{"-convention", "clockwise"},
		{"-write-policy", "always"},
		{"-target-id", "-1"},
		{"-mailbox", ""},
		{"-redis", ""},
	}
	for _, args := range testValues {
		if _, err := parseConfig(args); cli.ExitCode(err) != 2 {
			t.Errorf("%v: expected usage error, got %v", args, err)
		}
	}
}
