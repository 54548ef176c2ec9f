package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/racelog/internal/model"
)

// Encode returns the stored form of one slice. present is false when the
// slice has no value and its key should be removed.
func Encode(p model.Persisted, s Slice) (value []byte, present bool, err error) {
	var v any
	switch s {
	case SliceEntries:
		v = orEmpty(p.Entries)
	case SliceFaults:
		v = orEmpty(p.Faults)
	case SliceSettings:
		v = p.Settings
	case SliceLanguage:
		v = p.Language
	case SliceDeviceID:
		v = p.DeviceID
	case SliceDeviceName:
		v = p.DeviceName
	case SliceRaceID:
		v = p.RaceID
	case SliceLastSyncedRaceID:
		v = p.LastSyncedRaceID
	case SliceSyncQueue:
		v = orEmpty(p.SyncQueue)
	case SliceGateAssignment:
		if p.GateAssignment == nil {
			return nil, false, nil
		}
		v = *p.GateAssignment
	case SliceFirstGateColor:
		v = p.FirstGateColor
	case SlicePenaltySeconds:
		v = p.PenaltySeconds
	case SliceUsePenaltyMode:
		v = p.UsePenaltyMode
	case SliceFinalizedRacers:
		v = orEmpty(p.FinalizedRacers)
	case SliceSchemaVersion:
		v = p.SchemaVersion
	default:
		return nil, false, fmt.Errorf("unknown slice %q", s)
	}

	value, err = json.Marshal(v)
	if err != nil {
		return nil, false, fmt.Errorf("encode %s: %w", s, err)
	}
	return value, true, nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
