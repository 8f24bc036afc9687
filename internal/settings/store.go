// Package settings reads operational toggles. Values live in Postgres and are
// cached in Redis for a short TTL.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "settings"

// Reader exposes the settings to the engines. Lookup failures are logged and
// read as "absent": a toggle that cannot be read is off.
type Reader interface {
	Get(ctx context.Context, key string) (string, bool)
	IsEnabled(ctx context.Context, key string) bool
}

// Source is the authoritative settings table.
type Source interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
}

type Store struct {
	redis  redis.Cmdable
	source Source
	ttl    time.Duration
}

var _ Reader = (*Store)(nil)

// NewStore creates a cache-aside reader. A nil redis client disables caching.
func NewStore(redis redis.Cmdable, source Source, ttl time.Duration) *Store {
	return &Store{redis: redis, source: source, ttl: ttl}
}

type cacheEnvelope struct {
	Value string `json:"value"`
	Found bool   `json:"found"`
}

func (s *Store) Get(ctx context.Context, key string) (string, bool) {
	if s.redis != nil {
		val, err := s.redis.Get(ctx, redisKey(key)).Result()
		if err == nil {
			var env cacheEnvelope
			if json.Unmarshal([]byte(val), &env) == nil {
				return env.Value, env.Found
			}
		} else if err != redis.Nil {
			zap.L().Warn("redis settings lookup failed", zap.String("key", key), zap.Error(err))
		}
	}

	value, found, err := s.source.GetSetting(ctx, key)
	if err != nil {
		zap.L().Error("settings lookup failed, treating as absent", zap.String("key", key), zap.Error(err))
		return "", false
	}
	s.cache(ctx, key, cacheEnvelope{Value: value, Found: found})
	return value, found
}

func (s *Store) IsEnabled(ctx context.Context, key string) bool {
	value, found := s.Get(ctx, key)
	return found && ParseBool(value)
}

func (s *Store) cache(ctx context.Context, key string, env cacheEnvelope) {
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(env)
	if err != nil {
		zap.L().Warn("marshal settings cache", zap.Error(err))
		return
	}
	if err := s.redis.Set(ctx, redisKey(key), payload, s.ttl).Err(); err != nil {
		zap.L().Warn("redis settings cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func redisKey(key string) string {
	return fmt.Sprintf("%s:%s", redisKeyPrefix, key)
}

// ParseBool accepts true/1/on/yes in any case.
func ParseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "on", "yes":
		return true
	}
	return false
}

// Static is an in-memory Reader.
type Static struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ Reader = (*Static)(nil)

func NewStatic(values map[string]string) *Static {
	s := &Static{values: make(map[string]string, len(values))}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

func (s *Static) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *Static) Enable(keys ...string) {
	for _, k := range keys {
		s.Set(k, "true")
	}
}

func (s *Static) Get(ctx context.Context, key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *Static) IsEnabled(ctx context.Context, key string) bool {
	v, ok := s.Get(ctx, key)
	return ok && ParseBool(v)
}
