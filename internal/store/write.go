package store

import (
	"context"
	"fmt"
	"time"
)

// Put writes the value for a slice key, replacing any previous value.
// Returns an error wrapping ErrQuotaExceeded if the write does not fit.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO slices (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("put slice %q: %w", key, classify(err))
	}
	return nil
}

// Delete removes a slice key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM slices WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete slice %q: %w", key, err)
	}
	return nil
}
