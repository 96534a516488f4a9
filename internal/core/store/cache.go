package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marketlens/marketlens/internal/core/cache"
)

// Cache adapts the store to the response cache's backend contract,
// so cached fetch payloads survive process restarts.
type Cache struct {
	store *Store

	// Clock overrides the time source for tests.
	Clock func() time.Time
}

// NewCache wraps an open store as a cache backend.
func NewCache(s *Store) *Cache {
	return &Cache{store: s}
}

// Get returns the value stored under key if it has not expired.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if c == nil || c.store == nil || c.store.DB == nil {
		return nil, false, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false, errors.New("cache key is required")
	}

	var value []byte
	row := c.store.DB.QueryRowContext(ctx, `
		SELECT value
		FROM cache_entries
		WHERE key = ? AND expires_at > ?
	`, key, c.now().Unix())

	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("fetch cache entry: %w", err)
	}

	return value, true, nil
}

// Set stores value under key with a TTL. A non-positive ttl stores
// nothing.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c == nil || c.store == nil || c.store.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if ttl <= 0 {
		return nil
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("cache key is required")
	}

	now := c.now()
	expires := now.Add(ttl)

	_, err := c.store.DB.ExecContext(ctx, `
		INSERT INTO cache_entries (key, value, created_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`, key, value, now.Unix(), expires.Unix())
	if err != nil {
		return fmt.Errorf("store cache entry: %w", err)
	}

	return nil
}

// Sweep deletes every expired entry and reports how many went.
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	if c == nil || c.store == nil || c.store.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	result, err := c.store.DB.ExecContext(ctx, `
		DELETE FROM cache_entries WHERE expires_at <= ?
	`, c.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("sweep cache entries: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(removed), nil
}

// Clear deletes entries whose keys start with prefix; an empty
// prefix deletes everything.
func (c *Cache) Clear(ctx context.Context, prefix string) (int, error) {
	if c == nil || c.store == nil || c.store.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var (
		result sql.Result
		err    error
	)
	if prefix == "" {
		result, err = c.store.DB.ExecContext(ctx, `DELETE FROM cache_entries`)
	} else {
		result, err = c.store.DB.ExecContext(ctx, `
			DELETE FROM cache_entries WHERE key LIKE ? ESCAPE '\'
		`, escapeLike(prefix)+"%")
	}
	if err != nil {
		return 0, fmt.Errorf("clear cache entries: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(removed), nil
}

// Stats counts live and expired entries.
func (c *Cache) Stats(ctx context.Context) (cache.Stats, error) {
	if c == nil || c.store == nil || c.store.DB == nil {
		return cache.Stats{}, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	stats := cache.Stats{}
	row := c.store.DB.QueryRowContext(ctx, `
		SELECT
			COUNT(CASE WHEN expires_at > ? THEN 1 END),
			COUNT(CASE WHEN expires_at <= ? THEN 1 END)
		FROM cache_entries
	`, c.now().Unix(), c.now().Unix())

	if err := row.Scan(&stats.Entries, &stats.Expired); err != nil {
		return cache.Stats{}, fmt.Errorf("count cache entries: %w", err)
	}

	return stats, nil
}

func (c *Cache) now() time.Time {
	if c != nil && c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}

// escapeLike escapes LIKE wildcards so a key prefix matches
// literally. Cache keys use underscores, which LIKE would otherwise
// treat as a single-character wildcard.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
