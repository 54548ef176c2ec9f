package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SliceInfo describes one stored slice without its value.
type SliceInfo struct {
	Key       string    `json:"key"`
	Bytes     int64     `json:"bytes"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Get returns the stored value for key. ok is false if the key is absent.
func (s *Store) Get(ctx context.Context, key string) (value []byte, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT value FROM slices WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get slice %q: %w", key, err)
	}
	return value, true, nil
}

// List returns every stored slice ordered by key.
func (s *Store) List(ctx context.Context) ([]SliceInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, length(value), updated_at
		FROM slices
		ORDER BY key ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query slices: %w", err)
	}
	defer rows.Close()

	infos := []SliceInfo{}
	for rows.Next() {
		var info SliceInfo
		var updated int64
		if err := rows.Scan(&info.Key, &info.Bytes, &updated); err != nil {
			return nil, fmt.Errorf("scan slice: %w", err)
		}
		info.UpdatedAt = time.UnixMilli(updated).UTC()
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slices: %w", err)
	}
	return infos, nil
}

// Usage reports the database size and the configured quota in bytes.
// quota is 0 when the store is unbounded.
func (s *Store) Usage(ctx context.Context) (used, quota int64, err error) {
	pages, err := s.pragmaInt(ctx, "page_count")
	if err != nil {
		return 0, 0, err
	}
	pageSize, err := s.pragmaInt(ctx, "page_size")
	if err != nil {
		return 0, 0, err
	}
	return pages * pageSize, s.quota, nil
}
