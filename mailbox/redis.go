package mailbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/geo/r2"
	"github.com/redis/go-redis/v9"
	"go.viam.com/rdk/logging"

	"markerlocator/utils"
)

// DefaultRedisPrefix namespaces mailbox keys in a shared Redis database.
const DefaultRedisPrefix = "markerlocator:"

// RedisConfig selects a Redis server to use as the mailbox.
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// RedisStore keeps the mailbox in Redis. The observation scalars travel in a
// single MSET/MGET, so a reader never mixes values from two frames.
type RedisStore struct {
	logger logging.Logger
	client *redis.Client
	prefix string
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, logger logging.Logger, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	logger.Infof("Connected to redis mailbox at %s (prefix %q)", cfg.Addr, prefix)
	return &RedisStore{logger: logger, client: client, prefix: prefix}, nil
}

func (s *RedisStore) key(name string) string {
	return s.prefix + name
}

func (s *RedisStore) WriteObservation(ctx context.Context, obs utils.Observation) error {
	values := formatObservation(obs)
	pairs := make([]interface{}, 0, 6)
	for _, name := range []string{CenterXKey, CenterYKey, AreaKey} {
		pairs = append(pairs, s.key(name), values[name])
	}
	if err := s.client.MSet(ctx, pairs...).Err(); err != nil {
		return fmt.Errorf("failed to write observation: %w", err)
	}
	return nil
}

func (s *RedisStore) ReadObservation(ctx context.Context) (utils.Observation, error) {
	names := []string{CenterXKey, CenterYKey, AreaKey}
	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = s.key(name)
	}
	raw, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return utils.Observation{}, fmt.Errorf("failed to read observation: %w", err)
	}
	values := make(map[string]string, len(names))
	for i, name := range names {
		v, ok := raw[i].(string)
		if !ok {
			return utils.Observation{}, &MalformedObservationError{Key: name, Err: errMissing}
		}
		values[name] = v
	}
	return parseObservation(values)
}

func (s *RedisStore) WritePrediction(ctx context.Context, p r2.Point) error {
	if err := s.client.Set(ctx, s.key(PredictionKey), FormatPrediction(p), 0).Err(); err != nil {
		return fmt.Errorf("failed to write prediction: %w", err)
	}
	return nil
}

func (s *RedisStore) ReadPrediction(ctx context.Context) (r2.Point, error) {
	raw, err := s.client.Get(ctx, s.key(PredictionKey)).Result()
	if errors.Is(err, redis.Nil) {
		return r2.Point{}, &MalformedObservationError{Key: PredictionKey, Err: errMissing}
	} else if err != nil {
		return r2.Point{}, fmt.Errorf("failed to read prediction: %w", err)
	}
	return ParsePrediction(raw)
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
