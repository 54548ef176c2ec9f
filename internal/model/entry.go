package model

import (
	"slices"
	"strconv"
	"time"
)

// Point identifies where on the course a timing entry was taken.
type Point string

const (
	PointStart  Point = "S"
	PointFinish Point = "F"
)

// Valid reports whether p is a known timing point.
func (p Point) Valid() bool {
	return p == PointStart || p == PointFinish
}

// Status is the outcome recorded with a timing entry.
type Status string

const (
	StatusOK  Status = "ok"
	StatusDNS Status = "dns"
	StatusDNF Status = "dnf"
	StatusDSQ Status = "dsq"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOK, StatusDNS, StatusDNF, StatusDSQ:
		return true
	}
	return false
}

// Entry is a single Start or Finish timing record for one bib and run.
type Entry struct {
	ID         string     `json:"id"`
	Bib        string     `json:"bib"`
	Point      Point      `json:"point"`
	Run        int        `json:"run"`
	Timestamp  time.Time  `json:"timestamp"`
	Status     Status     `json:"status"`
	DeviceID   string     `json:"deviceId"`
	DeviceName string     `json:"deviceName"`
	Photo      string     `json:"photo,omitempty"`
	SyncedAt   *time.Time `json:"syncedAt,omitempty"`
}

// Key returns the composite identity used across devices: "{id}-{deviceId}".
func (e Entry) Key() string {
	return RecordKey(e.ID, e.DeviceID)
}

// WithDefaults fills fields that older records may lack.
func (e Entry) WithDefaults() Entry {
	if e.Run == 0 {
		e.Run = 1
	}
	if e.Status == "" {
		e.Status = StatusOK
	}
	return e
}

// RecordKey builds the composite identity of a record produced on a device.
func RecordKey(id, deviceID string) string {
	return id + "-" + deviceID
}

// TombstoneKey builds the per-device tombstone form "{id}:{deviceId}".
func TombstoneKey(id, deviceID string) string {
	return id + ":" + deviceID
}

// RacerKey builds the "bib-run" key used for finalized racers.
func RacerKey(bib string, run int) string {
	return bib + "-" + strconv.Itoa(run)
}

// SortEntries sorts entries by timestamp ascending, in place.
// Equal timestamps keep their relative order.
func SortEntries(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}

// SortFaults sorts faults by timestamp ascending, in place.
func SortFaults(faults []Fault) {
	slices.SortStableFunc(faults, func(a, b Fault) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}
