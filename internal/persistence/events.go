package persistence

// EventKind distinguishes storage events.
type EventKind string

const (
	// EventStorageWarning reports usage above the warning ratio.
	EventStorageWarning EventKind = "storage-warning"
	// EventStorageError reports a flush that failed after all retries.
	EventStorageError EventKind = "storage-error"
)

// StorageWarning carries the quota probe reading.
type StorageWarning struct {
	Used    int64   `json:"used"`
	Quota   int64   `json:"quota"`
	Percent float64 `json:"percent"`
}

// StorageError describes a flush that gave up.
type StorageError struct {
	Message      string  `json:"message"`
	IsQuotaError bool    `json:"isQuotaError"`
	EntryCount   int     `json:"entryCount"`
	Slices       []Slice `json:"slices,omitempty"`
}

// Event is raised to the environment. Exactly one of Warning or Error is set.
type Event struct {
	Kind    EventKind       `json:"kind"`
	Warning *StorageWarning `json:"warning,omitempty"`
	Error   *StorageError   `json:"error,omitempty"`
}

// EventHandler receives storage events. It is called without any
// persistence lock held and may run on a timer goroutine.
type EventHandler func(Event)
