package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marketlens/marketlens/internal/core"
)

// SeedBuiltInWatchlists ensures the bundled watchlists exist in the
// store.
func (s *Store) SeedBuiltInWatchlists(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	for _, watchlist := range core.BuiltInWatchlists {
		if err := s.UpsertWatchlist(ctx, watchlist, true, time.Now().UTC()); err != nil {
			return err
		}
	}

	return nil
}

// UpsertWatchlist creates or updates a watchlist record.
func (s *Store) UpsertWatchlist(ctx context.Context, watchlist core.Watchlist, isBuiltin bool, updatedAt time.Time) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	name := strings.TrimSpace(watchlist.Name)
	if name == "" {
		return errors.New("watchlist name is required")
	}
	watchlist.Name = name
	watchlist.Symbols = core.NormalizeSymbols(watchlist.Symbols)

	payload, err := json.Marshal(watchlist)
	if err != nil {
		return fmt.Errorf("encode watchlist: %w", err)
	}

	builtinValue := 0
	if isBuiltin {
		builtinValue = 1
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO watchlists (name, config, is_builtin, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			config = excluded.config,
			is_builtin = excluded.is_builtin,
			updated_at = excluded.updated_at
	`, name, string(payload), builtinValue, updatedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("store watchlist: %w", err)
	}

	return nil
}

// GetWatchlist returns a watchlist record by name.
func (s *Store) GetWatchlist(ctx context.Context, name string) (*core.WatchlistRecord, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("watchlist name is required")
	}

	var (
		configJSON string
		isBuiltin  int
		updatedAt  sql.NullInt64
	)

	row := s.DB.QueryRowContext(ctx, `
		SELECT config, is_builtin, updated_at
		FROM watchlists
		WHERE name = ?
	`, name)

	if err := row.Scan(&configJSON, &isBuiltin, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch watchlist: %w", err)
	}

	var watchlist core.Watchlist
	if err := json.Unmarshal([]byte(configJSON), &watchlist); err != nil {
		return nil, fmt.Errorf("decode watchlist: %w", err)
	}
	if watchlist.Name == "" {
		watchlist.Name = name
	}

	record := &core.WatchlistRecord{
		Watchlist: watchlist,
		IsBuiltin: isBuiltin == 1,
	}
	if updatedAt.Valid {
		record.UpdatedAt = time.Unix(updatedAt.Int64, 0).UTC()
	}

	return record, nil
}

// ListWatchlists returns all watchlists ordered by name.
func (s *Store) ListWatchlists(ctx context.Context) ([]core.WatchlistRecord, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT name, config, is_builtin, updated_at
		FROM watchlists
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list watchlists: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var records []core.WatchlistRecord
	for rows.Next() {
		var (
			name       string
			configJSON string
			isBuiltin  int
			updatedAt  sql.NullInt64
		)
		if err := rows.Scan(&name, &configJSON, &isBuiltin, &updatedAt); err != nil {
			return nil, fmt.Errorf("list watchlists: %w", err)
		}

		var watchlist core.Watchlist
		if err := json.Unmarshal([]byte(configJSON), &watchlist); err != nil {
			return nil, fmt.Errorf("decode watchlist: %w", err)
		}
		if watchlist.Name == "" {
			watchlist.Name = name
		}

		record := core.WatchlistRecord{
			Watchlist: watchlist,
			IsBuiltin: isBuiltin == 1,
		}
		if updatedAt.Valid {
			record.UpdatedAt = time.Unix(updatedAt.Int64, 0).UTC()
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list watchlists: %w", err)
	}

	return records, nil
}

// DeleteWatchlist removes a user-defined watchlist. Built-in
// watchlists are protected.
func (s *Store) DeleteWatchlist(ctx context.Context, name string) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("watchlist name is required")
	}

	record, err := s.GetWatchlist(ctx, name)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("watchlist %q not found", name)
	}
	if record.IsBuiltin {
		return fmt.Errorf("watchlist %q is built-in and cannot be deleted", name)
	}

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM watchlists WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete watchlist: %w", err)
	}

	return nil
}
