package persistence

// Slice names one independently persisted part of the state.
type Slice string

// Persisted slice keys.
const (
	SliceEntries          Slice = "timing-entries"
	SliceFaults           Slice = "fault-entries"
	SliceSettings         Slice = "settings"
	SliceLanguage         Slice = "current-language"
	SliceDeviceID         Slice = "device-id"
	SliceDeviceName       Slice = "device-name"
	SliceRaceID           Slice = "race-id"
	SliceLastSyncedRaceID Slice = "last-synced-race-id"
	SliceSyncQueue        Slice = "sync-queue"
	SliceGateAssignment   Slice = "gate-assignment"
	SliceFirstGateColor   Slice = "first-gate-color"
	SlicePenaltySeconds   Slice = "penalty-seconds"
	SliceUsePenaltyMode   Slice = "use-penalty-mode"
	SliceFinalizedRacers  Slice = "finalized-racers"
	SliceSchemaVersion    Slice = "schema-version"
)

// AllSlices lists every slice in load order.
var AllSlices = []Slice{
	SliceSchemaVersion,
	SliceEntries,
	SliceFaults,
	SliceSettings,
	SliceLanguage,
	SliceDeviceID,
	SliceDeviceName,
	SliceRaceID,
	SliceLastSyncedRaceID,
	SliceSyncQueue,
	SliceGateAssignment,
	SliceFirstGateColor,
	SlicePenaltySeconds,
	SliceUsePenaltyMode,
	SliceFinalizedRacers,
}
