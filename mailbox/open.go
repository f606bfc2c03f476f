package mailbox

import (
	"context"
	"errors"

	"go.viam.com/rdk/logging"
)

// Config picks the mailbox backend. Redis wins when both are set.
type Config struct {
	Dir   string       `json:"mailbox_dir,omitempty" yaml:"mailbox_dir,omitempty"`
	Redis *RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty"`
}

// Validate requires one backend to be configured.
func (cfg *Config) Validate() error {
	if cfg.Redis != nil {
		if cfg.Redis.Addr == "" {
			return errors.New("redis.addr is required when redis is configured")
		}
		return nil
	}
	if cfg.Dir == "" {
		return errors.New("mailbox_dir is required")
	}
	return nil
}

// Open builds the configured store.
func Open(ctx context.Context, logger logging.Logger, cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Redis != nil {
		s, err := NewRedisStore(ctx, logger, *cfg.Redis)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := NewFileStore(cfg.Dir)
	if err != nil {
		return nil, err
	}
	logger.Debugf("Using file mailbox in %s", cfg.Dir)
	return s, nil
}
