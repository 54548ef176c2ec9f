package model

import "time"

// GateColor is the colour of the first gate a judge is assigned.
type GateColor string

const (
	GateRed  GateColor = "red"
	GateBlue GateColor = "blue"
)

// Valid reports whether c is a known gate colour.
func (c GateColor) Valid() bool {
	return c == GateRed || c == GateBlue
}

// Settings holds the device preferences persisted as one slice.
type Settings struct {
	Auto       bool `json:"auto"`
	Haptic     bool `json:"haptic"`
	Sound      bool `json:"sound"`
	Sync       bool `json:"sync"`
	SyncPhotos bool `json:"syncPhotos"`
	GPS        bool `json:"gps"`
	Simple     bool `json:"simple"`
	Photo      bool `json:"photoCapture"`
}

// DefaultSettings returns the settings used on first start.
func DefaultSettings() Settings {
	return Settings{
		Auto:   true,
		Haptic: true,
		Simple: true,
	}
}

// SyncQueueItem is a locally created entry awaiting acknowledgement by the backend.
type SyncQueueItem struct {
	Entry       Entry      `json:"entry"`
	RetryCount  int        `json:"retryCount"`
	LastAttempt *time.Time `json:"lastAttempt,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Penalty bounds in seconds.
const (
	MinPenaltySeconds     = 0
	MaxPenaltySeconds     = 60
	DefaultPenaltySeconds = 5
)

// Persisted is the durable part of the application state. Each field is
// stored as an independent slice so one corrupt value cannot blank the rest.
type Persisted struct {
	Entries          []Entry
	Faults           []Fault
	Settings         Settings
	Language         string
	DeviceID         string
	DeviceName       string
	RaceID           string
	LastSyncedRaceID string
	SyncQueue        []SyncQueueItem
	GateAssignment   *[2]int
	FirstGateColor   GateColor
	PenaltySeconds   int
	UsePenaltyMode   bool
	FinalizedRacers  []string
	SchemaVersion    int
}

// DefaultPersisted returns the state used when nothing has been stored yet.
func DefaultPersisted() Persisted {
	return Persisted{
		Entries:         []Entry{},
		Faults:          []Fault{},
		Settings:        DefaultSettings(),
		Language:        "en",
		SyncQueue:       []SyncQueueItem{},
		FirstGateColor:  GateRed,
		PenaltySeconds:  DefaultPenaltySeconds,
		FinalizedRacers: []string{},
		SchemaVersion:   SchemaVersion,
	}
}
