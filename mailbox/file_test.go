package mailbox

import (
	"context"
	"errors"
	"image"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/rdk/logging"

	"markerlocator/utils"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open mailbox: %v", err)
	}
	return s
}

func TestObservationRoundtrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, obs := range []utils.Observation{
		utils.ZeroObservation,
		{Center: image.Pt(320, 240), AreaProxy: 1600},
		{Center: image.Pt(1919, 1079), AreaProxy: 123456},
	} {
		if err := s.WriteObservation(ctx, obs); err != nil {
			t.Fatalf("failed to write %+v: %v", obs, err)
		}
		got, err := s.ReadObservation(ctx)
		if err != nil {
			t.Fatalf("failed to read back %+v: %v", obs, err)
		}
		if got != obs {
			t.Errorf("round trip: got %+v, want %+v", got, obs)
		}
	}
}

func TestObservationFilesHoldPlainIntegers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if err := s.WriteObservation(ctx, utils.Observation{Center: image.Pt(12, 34), AreaProxy: 56}); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	for key, want := range map[string]string{CenterXKey: "12", CenterYKey: "34", AreaKey: "56"} {
		data, err := os.ReadFile(filepath.Join(s.Dir(), key))
		if err != nil {
			t.Fatalf("failed to read %s: %v", key, err)
		}
		if string(data) != want {
			t.Errorf("%s holds %q, want %q", key, data, want)
		}
	}

	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatalf("failed to list mailbox: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("expected only the three scalar files, found %d entries", len(entries))
	}
}

// cancelsAfterFirstCheck reports cancellation on every Err call but the first.
type cancelsAfterFirstCheck struct {
	context.Context
	checks int
}

func (c *cancelsAfterFirstCheck) Err() error {
	c.checks++
	if c.checks > 1 {
		return context.Canceled
	}
	return nil
}

func TestWriteObservationCancellation(t *testing.T) {
	s := newTestStore(t)
	if err := s.WriteObservation(context.Background(), utils.Observation{Center: image.Pt(1, 2), AreaProxy: 3}); err != nil {
		t.Fatalf("failed to write observation: %v", err)
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.WriteObservation(cancelled, utils.Observation{Center: image.Pt(9, 9), AreaProxy: 9}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	// cancelled after the write started: the frame still lands whole
	mid := &cancelsAfterFirstCheck{Context: context.Background()}
	want := utils.Observation{Center: image.Pt(40, 50), AreaProxy: 60}
	if err := s.WriteObservation(mid, want); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.ReadObservation(context.Background())
	if err != nil {
		t.Fatalf("failed to read observation: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestReadObservationMalformed(t *testing.T) {
	ctx := context.Background()

	testValues := []struct {
		name   string
		files  map[string]string
		badKey string
	}{
		{"missing files", map[string]string{}, CenterXKey},
		{"missing area", map[string]string{CenterXKey: "1", CenterYKey: "2"}, AreaKey},
		{"empty", map[string]string{CenterXKey: "", CenterYKey: "2", AreaKey: "3"}, CenterXKey},
		{"text", map[string]string{CenterXKey: "1", CenterYKey: "abc", AreaKey: "3"}, CenterYKey},
		{"float", map[string]string{CenterXKey: "1.5", CenterYKey: "2", AreaKey: "3"}, CenterXKey},
		{"negative area", map[string]string{CenterXKey: "1", CenterYKey: "2", AreaKey: "-9"}, AreaKey},
	}

	for _, tv := range testValues {
		s := newTestStore(t)
		for key, value := range tv.files {
			if err := os.WriteFile(filepath.Join(s.Dir(), key), []byte(value), 0o644); err != nil {
				t.Fatalf("%s: failed to seed %s: %v", tv.name, key, err)
			}
		}
		obs, err := s.ReadObservation(ctx)
		var malformed *MalformedObservationError
		if !errors.As(err, &malformed) {
			t.Errorf("%s: expected MalformedObservationError, got %v (obs %+v)", tv.name, err, obs)
			continue
		}
		if malformed.Key != tv.badKey {
			t.Errorf("%s: error names %s, want %s", tv.name, malformed.Key, tv.badKey)
		}
	}
}

func TestReadObservationToleratesTrailingNewline(t *testing.T) {
	s := newTestStore(t)
	for key, value := range map[string]string{CenterXKey: "10\n", CenterYKey: " 20 ", AreaKey: "30\r\n"} {
		if err := os.WriteFile(filepath.Join(s.Dir(), key), []byte(value), 0o644); err != nil {
			t.Fatalf("failed to seed %s: %v", key, err)
		}
	}
	got, err := s.ReadObservation(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := (utils.Observation{Center: image.Pt(10, 20), AreaProxy: 30}); got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestPredictionRoundtrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, p := range []r2.Point{
		{X: 0, Y: 0},
		{X: 0.1, Y: -0.7},
		{X: 1.0 / 3, Y: math.Pi * 1e6},
		{X: -1e-12, Y: 12345.678901234},
	} {
		if err := s.WritePrediction(ctx, p); err != nil {
			t.Fatalf("failed to write prediction: %v", err)
		}
		got, err := s.ReadPrediction(ctx)
		if err != nil {
			t.Fatalf("failed to read prediction: %v", err)
		}
		if got != p {
			t.Errorf("round trip: got %v, want %v", got, p)
		}
	}
}

func TestParsePredictionRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "1.0", "1 2 3", "[[0.1 0.2]]", "x 1"} {
		if _, err := ParsePrediction(raw); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestNewFileStoreRejectsBadDirectory(t *testing.T) {
	if _, err := NewFileStore(filepath.Join(t.TempDir(), "does-not-exist")); err == nil {
		t.Error("expected error for missing directory")
	}

	file := filepath.Join(t.TempDir(), "plain")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	if _, err := NewFileStore(file); err == nil {
		t.Error("expected error for a path that is not a directory")
	}
}

func TestOpenConfig(t *testing.T) {
	logger := logging.NewTestLogger(t)
	if _, err := Open(context.Background(), logger, Config{}); err == nil {
		t.Error("expected error without a backend")
	}
	if _, err := Open(context.Background(), logger, Config{Redis: &RedisConfig{}}); err == nil {
		t.Error("expected error for redis without addr")
	}

	s, err := Open(context.Background(), logger, Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to open file mailbox: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*FileStore); !ok {
		t.Errorf("expected *FileStore, got %T", s)
	}
}
