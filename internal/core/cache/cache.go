// Package cache provides the response cache that shields upstream
// API quotas. A small Backend contract keeps the storage swappable:
// the in-process map is the default, with redis and database-backed
// alternatives selected once, at construction time.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
)

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendStore  = "store"
)

// Backend is the minimal capability a cache backend provides.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Sweeper is the optional backend capability the periodic sweeper
// uses to evict expired entries in bulk.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Clearer is the optional backend capability behind Clear.
type Clearer interface {
	Clear(ctx context.Context, prefix string) (int, error)
}

// Stats summarizes a backend's contents.
type Stats struct {
	Backend string `json:"backend"`
	Entries int    `json:"entries"`
	Expired int    `json:"expired"`
}

// StatsProvider is the optional backend capability behind Stats.
type StatsProvider interface {
	Stats(ctx context.Context) (Stats, error)
}

// Options selects and configures the backend for New.
type Options struct {
	Backend       string
	DefaultTTL    time.Duration
	SweepInterval time.Duration
	Redis         RedisConfig

	// External is a pre-built backend used when Backend is "store":
	// the database-backed cache is opened by the caller, never here.
	External Backend
}

// Store is the cache surface the rest of the program uses. It wraps
// one Backend with a default TTL and JSON helpers.
type Store struct {
	backend    Backend
	name       string
	defaultTTL time.Duration
	logger     *logging.Logger
}

// New builds a Store for opts. Backend selection happens here, once:
// an external backend that is configured but unreachable degrades to
// the in-memory backend with a single warning, so callers never pay
// a connection probe per call.
func New(opts Options, logger *logging.Logger) *Store {
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	if backend == "" {
		backend = BackendMemory
	}

	store := &Store{
		name:       backend,
		defaultTTL: opts.DefaultTTL,
		logger:     logger,
	}

	switch backend {
	case BackendMemory:
		store.backend = NewMemory()

	case BackendRedis:
		redisBackend, err := NewRedis(opts.Redis)
		if err != nil {
			store.warn("Cache backend unreachable, using in-memory cache",
				zap.String("backend", backend),
				zap.String("addr", opts.Redis.Addr),
				zap.Error(err))
			store.name = BackendMemory
			store.backend = NewMemory()
			break
		}
		store.backend = redisBackend

	case BackendStore:
		if opts.External == nil {
			store.warn("Cache backend not available, using in-memory cache",
				zap.String("backend", backend))
			store.name = BackendMemory
			store.backend = NewMemory()
			break
		}
		store.backend = opts.External

	default:
		store.warn("Unknown cache backend, using in-memory cache",
			zap.String("backend", backend))
		store.name = BackendMemory
		store.backend = NewMemory()
	}

	return store
}

// NewStore wraps an already-built backend.
func NewStore(backend Backend, name string, defaultTTL time.Duration, logger *logging.Logger) *Store {
	if backend == nil {
		backend = NewMemory()
		name = BackendMemory
	}
	return &Store{
		backend:    backend,
		name:       name,
		defaultTTL: defaultTTL,
		logger:     logger,
	}
}

// BackendName reports which backend the store settled on.
func (s *Store) BackendName() string {
	if s == nil {
		return ""
	}
	return s.name
}

// DefaultTTL returns the TTL used when Set is called without one.
func (s *Store) DefaultTTL() time.Duration {
	if s == nil {
		return 0
	}
	return s.defaultTTL
}

// Get returns the cached value for key. Backend failures are logged
// and surface as the error return; callers treat them as misses.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil || s.backend == nil {
		return nil, false, errors.New("cache is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	value, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.debug("Cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false, err
	}
	return value, ok, nil
}

// Set stores value under key. A non-positive ttl selects the store's
// default TTL; if that is also non-positive, nothing is stored.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s == nil || s.backend == nil {
		return errors.New("cache is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if ttl <= 0 {
		return nil
	}

	if err := s.backend.Set(ctx, key, value, ttl); err != nil {
		s.warn("Cache write failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// GetJSON reads the cached value for key into dest.
func (s *Store) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	value, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}

	if err := json.Unmarshal(value, dest); err != nil {
		return false, fmt.Errorf("decode cached value for %q: %w", key, err)
	}
	return true, nil
}

// SetJSON stores value under key as JSON.
func (s *Store) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cached value for %q: %w", key, err)
	}
	return s.Set(ctx, key, encoded, ttl)
}

// Clear removes entries whose keys start with prefix; an empty
// prefix clears everything.
func (s *Store) Clear(ctx context.Context, prefix string) (int, error) {
	if s == nil || s.backend == nil {
		return 0, errors.New("cache is not initialized")
	}

	clearer, ok := s.backend.(Clearer)
	if !ok {
		return 0, fmt.Errorf("cache backend %q does not support clearing", s.name)
	}
	return clearer.Clear(ctx, prefix)
}

// Stats reports the backend's entry counts where the backend can
// compute them.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	if s == nil || s.backend == nil {
		return Stats{}, errors.New("cache is not initialized")
	}

	provider, ok := s.backend.(StatsProvider)
	if !ok {
		return Stats{Backend: s.name}, nil
	}

	stats, err := provider.Stats(ctx)
	stats.Backend = s.name
	return stats, err
}

// StartSweeper launches a background loop that evicts expired
// entries every interval until ctx is cancelled. Backends without
// bulk eviction make this a no-op; Get refuses expired entries on
// its own, so correctness never depends on the sweeper running.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	if s == nil || interval <= 0 {
		return
	}

	sweeper, ok := s.backend.(Sweeper)
	if !ok {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := sweeper.Sweep(ctx)
				if err != nil {
					s.warn("Cache sweep failed", zap.Error(err))
					continue
				}
				if removed > 0 {
					s.debug("Cache sweep evicted entries", zap.Int("removed", removed))
				}
			}
		}
	}()
}

func (s *Store) debug(msg string, fields ...zap.Field) {
	if s != nil && s.logger != nil {
		s.logger.Debug(msg, fields...)
	}
}

func (s *Store) warn(msg string, fields ...zap.Field) {
	if s != nil && s.logger != nil {
		s.logger.Warn(msg, fields...)
	}
}
