package mailbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/golang/geo/r2"

	"markerlocator/utils"
)

// FileStore keeps one scalar per file in a directory. Every file is replaced
// by rename, so a reader sees either the previous or the new value, never a
// truncated one. The three observation files are replaced one after another.
type FileStore struct {
	dir string
}

// NewFileStore opens a mailbox directory. The directory must already exist and be writable.
func NewFileStore(dir string) (*FileStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("mailbox directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("mailbox path %s is not a directory", dir)
	}
	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return nil, fmt.Errorf("mailbox directory %s is not writable: %w", dir, err)
	}
	probe.Close()
	os.Remove(probe.Name())
	return &FileStore{dir: dir}, nil
}

// Dir returns the mailbox directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key)
}

func (s *FileStore) replace(key, value string) error {
	tmp, err := os.CreateTemp(s.dir, "."+key+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

func (s *FileStore) read(key string) (string, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", &MalformedObservationError{Key: key, Err: errMissing}
	}
	if err != nil {
		return "", &MalformedObservationError{Key: key, Err: err}
	}
	return string(data), nil
}

func (s *FileStore) WriteObservation(ctx context.Context, obs utils.Observation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// once started, all three slots are written
	values := formatObservation(obs)
	for _, key := range []string{CenterXKey, CenterYKey, AreaKey} {
		if err := s.replace(key, values[key]); err != nil {
			return fmt.Errorf("failed to write %s: %w", key, err)
		}
	}
	return nil
}

func (s *FileStore) ReadObservation(ctx context.Context) (utils.Observation, error) {
	values := make(map[string]string, 3)
	for _, key := range []string{CenterXKey, CenterYKey, AreaKey} {
		v, err := s.read(key)
		if err != nil {
			return utils.Observation{}, err
		}
		values[key] = v
	}
	return parseObservation(values)
}

func (s *FileStore) WritePrediction(ctx context.Context, p r2.Point) error {
	if err := s.replace(PredictionKey, FormatPrediction(p)); err != nil {
		return fmt.Errorf("failed to write %s: %w", PredictionKey, err)
	}
	return nil
}

func (s *FileStore) ReadPrediction(ctx context.Context) (r2.Point, error) {
	raw, err := s.read(PredictionKey)
	if err != nil {
		return r2.Point{}, err
	}
	return ParsePrediction(raw)
}

func (s *FileStore) Close() error {
	return nil
}
