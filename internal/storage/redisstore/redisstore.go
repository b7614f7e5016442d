// Package redisstore shares cart storage between API instances through Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"sidehustle-shop/internal/config"
	"sidehustle-shop/internal/logger"
	"sidehustle-shop/internal/storage"
)

const keyNamespace = "shop"

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Del(context.Context, ...string) *redis.IntCmd
	Publish(context.Context, string, any) *redis.IntCmd
}

// subscribeFunc opens a subscription and returns its message channel and closer.
type subscribeFunc func(ctx context.Context, channel string) (<-chan *redis.Message, func() error)

// Store implements storage.Storage and storage.Watcher. Every write publishes a
// change notice; Watch delivers notices published by other instances.
type Store struct {
	store     cmdable
	raw       *redis.Client
	subscribe subscribeFunc
	channel   string
	origin    string
	log       *logger.Logger
}

type changeNotice struct {
	Origin string `json:"origin"`
	Key    string `json:"key"`
}

// New bootstraps a Redis client with pooling/timeouts and verifies connectivity.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Store, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	s := newStore(raw, cfg.Channel, logg)
	s.raw = raw
	s.subscribe = func(ctx context.Context, channel string) (<-chan *redis.Message, func() error) {
		ps := raw.Subscribe(ctx, channel)
		return ps.Channel(), ps.Close
	}
	return s, nil
}

func newStore(c cmdable, channel string, logg *logger.Logger) *Store {
	if channel == "" {
		channel = keyNamespace + ":storage"
	}
	if logg == nil {
		logg = logger.Discard()
	}
	return &Store{
		store:   c,
		channel: channel,
		origin:  uuid.NewString(),
		log:     logg,
	}
}

func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	if cfg.URL == "" && cfg.Address == "" {
		return nil, errors.New("redis url or address is required")
	}
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	if opts.DB == 0 {
		opts.DB = cfg.DB
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

func (s *Store) GetItem(ctx context.Context, key string) (string, error) {
	if s.store == nil {
		return "", errors.New("redis client not initialized")
	}
	v, err := s.store.Get(ctx, buildKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", storage.ErrNotExist
	}
	return v, err
}

func (s *Store) SetItem(ctx context.Context, key, value string) error {
	if s.store == nil {
		return errors.New("redis client not initialized")
	}
	if err := s.store.Set(ctx, buildKey(key), value, 0).Err(); err != nil {
		return err
	}
	s.publish(ctx, key)
	return nil
}

func (s *Store) RemoveItem(ctx context.Context, key string) error {
	if s.store == nil {
		return errors.New("redis client not initialized")
	}
	removed, err := s.store.Del(ctx, buildKey(key)).Result()
	if err != nil {
		return err
	}
	if removed > 0 {
		s.publish(ctx, key)
	}
	return nil
}

// Watch blocks until ctx is done, calling fn for keys changed by other instances.
func (s *Store) Watch(ctx context.Context, fn func(key string)) error {
	if s.subscribe == nil {
		return storage.ErrWatchUnsupported
	}
	msgs, closeFn := s.subscribe(ctx, s.channel)
	defer func() { _ = closeFn() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var notice changeNotice
			if err := json.Unmarshal([]byte(msg.Payload), &notice); err != nil {
				s.log.Warn(ctx, "redisstore: malformed change notice")
				continue
			}
			if notice.Origin == s.origin {
				continue
			}
			fn(notice.Key)
		}
	}
}

func (s *Store) Ping(ctx context.Context) error {
	if s.store == nil {
		return errors.New("redis client not initialized")
	}
	return s.store.Ping(ctx).Err()
}

// Close shuts down the underlying client if available.
func (s *Store) Close() error {
	if s.raw == nil {
		return nil
	}
	return s.raw.Close()
}

// publish is best effort: a lost notice only delays reconciliation.
func (s *Store) publish(ctx context.Context, key string) {
	payload, _ := json.Marshal(changeNotice{Origin: s.origin, Key: key})
	if err := s.store.Publish(ctx, s.channel, string(payload)).Err(); err != nil {
		s.log.Error(ctx, "redisstore: publish change notice", err)
	}
}

func buildKey(parts ...string) string {
	clean := []string{keyNamespace}
	for _, part := range parts {
		if part == "" {
			continue
		}
		clean = append(clean, strings.TrimSpace(part))
	}
	return strings.Join(clean, ":")
}
