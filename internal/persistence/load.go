package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/racelog/internal/model"
)

// Reader is the read side of a Backend.
type Reader interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
}

// LoadReport describes how stored state was recovered.
type LoadReport struct {
	// Missing slices had no stored value.
	Missing []Slice
	// Corrupt slices could not be read or decoded and were defaulted.
	Corrupt []Slice
	// DroppedRecords counts entries and faults inside otherwise readable
	// slices that could not be decoded or had no id.
	DroppedRecords int
	// StoredVersion is the schema version the data was written with.
	StoredVersion int
	// Migrated is true when StoredVersion was older than model.SchemaVersion.
	Migrated bool
}

// Fresh reports whether nothing at all was stored.
func (r LoadReport) Fresh() bool {
	return len(r.Missing) == len(AllSlices)
}

// Rewrite returns the slices that should be written back so storage
// matches the recovered state. Dropped records alone do not trigger a
// rewrite: the stored bytes stay until the next local change.
func (r LoadReport) Rewrite() []Slice {
	var out []Slice
	if r.Migrated {
		return append(out, SliceEntries, SliceFaults, SliceSyncQueue, SliceSchemaVersion)
	}
	if slices.Contains(r.Missing, SliceSchemaVersion) || slices.Contains(r.Corrupt, SliceSchemaVersion) {
		out = append(out, SliceSchemaVersion)
	}
	return out
}

// Load reads every slice from r. It never fails: unreadable slices fall
// back to the defaults of model.DefaultPersisted. Entries and faults are
// this device's own records and are decoded leniently, record by record:
// anything that unmarshals with an id is kept as written, with defaults
// filled in. Only records that cannot be decoded at all are dropped.
func Load(ctx context.Context, r Reader, logger *slog.Logger) (model.Persisted, LoadReport) {
	if logger == nil {
		logger = slog.Default()
	}

	p := model.DefaultPersisted()
	var rep LoadReport
	versionStored, entriesStored := false, false

	for _, s := range AllSlices {
		raw, ok, err := r.Get(ctx, string(s))
		if err != nil {
			logger.Warn("read slice failed, using default", "slice", s, "error", err)
			rep.Corrupt = append(rep.Corrupt, s)
			continue
		}
		if !ok {
			rep.Missing = append(rep.Missing, s)
			continue
		}

		dropped, err := decodeSlice(&p, s, raw)
		if err != nil {
			logger.Warn("corrupt slice, using default", "slice", s, "error", err)
			rep.Corrupt = append(rep.Corrupt, s)
			continue
		}
		if dropped > 0 {
			logger.Warn("dropped invalid records", "slice", s, "count", dropped)
			rep.DroppedRecords += dropped
		}
		switch s {
		case SliceSchemaVersion:
			versionStored = true
		case SliceEntries:
			entriesStored = true
		}
	}

	rep.StoredVersion = p.SchemaVersion
	if !versionStored {
		// Version 1 never wrote a version slice.
		rep.StoredVersion = model.SchemaVersion
		if entriesStored {
			rep.StoredVersion = 1
		}
	}
	migrate(&p, &rep, logger)

	return p, rep
}

// migrate brings p to the current schema version. Per-record upgrades
// (run defaults, synthesised fault history) already happened while
// decoding; this settles the version bookkeeping.
func migrate(p *model.Persisted, rep *LoadReport, logger *slog.Logger) {
	switch {
	case rep.StoredVersion < model.SchemaVersion:
		p.SchemaVersion = model.SchemaVersion
		rep.Migrated = true
		logger.Info("migrated persisted state", "from", rep.StoredVersion, "to", model.SchemaVersion)
	case rep.StoredVersion > model.SchemaVersion:
		// Leave the newer tag alone so this build does not downgrade it.
		p.SchemaVersion = rep.StoredVersion
		logger.Warn("persisted state is newer than this build",
			"stored", rep.StoredVersion, "supported", model.SchemaVersion)
	default:
		p.SchemaVersion = model.SchemaVersion
	}
}

// decodeSlice decodes raw into the matching field of p. p is only written
// on success.
func decodeSlice(p *model.Persisted, s Slice, raw []byte) (dropped int, err error) {
	switch s {
	case SliceEntries:
		out, dropped, err := decodeRecords(raw, func(e model.Entry) (model.Entry, string) {
			return e.WithDefaults(), e.ID
		})
		if err != nil {
			return 0, err
		}
		model.SortEntries(out)
		p.Entries = out
		return dropped, nil

	case SliceFaults:
		out, dropped, err := decodeRecords(raw, func(f model.Fault) (model.Fault, string) {
			return f.WithDefaults(), f.ID
		})
		if err != nil {
			return 0, err
		}
		model.SortFaults(out)
		p.Faults = out
		return dropped, nil

	case SliceSettings:
		v := model.DefaultSettings()
		if err := json.Unmarshal(raw, &v); err != nil {
			return 0, err
		}
		p.Settings = v

	case SliceLanguage:
		v, err := decodeValue[string](raw)
		if err != nil {
			return 0, err
		}
		if v == "" {
			return 0, errors.New("empty language")
		}
		p.Language = v

	case SliceDeviceID:
		return 0, decodeInto(raw, &p.DeviceID)
	case SliceDeviceName:
		return 0, decodeInto(raw, &p.DeviceName)
	case SliceRaceID:
		return 0, decodeInto(raw, &p.RaceID)
	case SliceLastSyncedRaceID:
		return 0, decodeInto(raw, &p.LastSyncedRaceID)
	case SliceUsePenaltyMode:
		return 0, decodeInto(raw, &p.UsePenaltyMode)

	case SliceSyncQueue:
		v, err := decodeValue[[]model.SyncQueueItem](raw)
		if err != nil {
			return 0, err
		}
		for i := range v {
			v[i].Entry = v[i].Entry.WithDefaults()
		}
		p.SyncQueue = orEmpty(v)

	case SliceGateAssignment:
		v, err := decodeValue[[2]int](raw)
		if err != nil {
			return 0, err
		}
		if v[0] < 0 || v[0] > v[1] {
			return 0, fmt.Errorf("invalid gate range %v", v)
		}
		p.GateAssignment = &v

	case SliceFirstGateColor:
		v, err := decodeValue[model.GateColor](raw)
		if err != nil {
			return 0, err
		}
		if !v.Valid() {
			return 0, fmt.Errorf("unknown gate color %q", v)
		}
		p.FirstGateColor = v

	case SlicePenaltySeconds:
		v, err := decodeValue[int](raw)
		if err != nil {
			return 0, err
		}
		if v < model.MinPenaltySeconds || v > model.MaxPenaltySeconds {
			return 0, fmt.Errorf("penalty %d out of range", v)
		}
		p.PenaltySeconds = v

	case SliceFinalizedRacers:
		v, err := decodeValue[[]string](raw)
		if err != nil {
			return 0, err
		}
		p.FinalizedRacers = orEmpty(v)

	case SliceSchemaVersion:
		v, err := decodeValue[int](raw)
		if err != nil {
			return 0, err
		}
		if v < 1 {
			return 0, fmt.Errorf("invalid schema version %d", v)
		}
		p.SchemaVersion = v

	default:
		return 0, fmt.Errorf("unknown slice %q", s)
	}
	return dropped, nil
}

// decodeRecords decodes a JSON array record by record. Elements that do not
// unmarshal into T, or that carry no id, are counted as dropped.
func decodeRecords[T any](raw []byte, fill func(T) (T, string)) ([]T, int, error) {
	recs, err := rawArray(raw)
	if err != nil {
		return nil, 0, err
	}
	out := make([]T, 0, len(recs))
	dropped := 0
	for _, rec := range recs {
		var v T
		if err := json.Unmarshal(rec, &v); err != nil {
			dropped++
			continue
		}
		v, id := fill(v)
		if id == "" {
			dropped++
			continue
		}
		out = append(out, v)
	}
	return out, dropped, nil
}

func decodeValue[T any](raw []byte) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}

func decodeInto[T any](raw []byte, dst *T) error {
	v, err := decodeValue[T](raw)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func rawArray(raw []byte) ([]json.RawMessage, error) {
	var recs []json.RawMessage
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}
