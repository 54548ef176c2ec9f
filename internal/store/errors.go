package store

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

// ErrQuotaExceeded is returned when a write would grow the database past
// its configured quota, or the disk is full.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// IsQuotaError reports whether err stems from a full database.
// Uses errors.Is/As to handle wrapped errors.
func IsQuotaError(err error) bool {
	if errors.Is(err, ErrQuotaExceeded) {
		return true
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrFull
	}
	return false
}

// classify maps driver errors onto store sentinels.
func classify(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrFull {
		return errors.Join(ErrQuotaExceeded, err)
	}
	return err
}
