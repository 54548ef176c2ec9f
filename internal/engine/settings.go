package engine

import (
	"slices"

	"github.com/roach88/racelog/internal/model"
	"github.com/roach88/racelog/internal/persistence"
)

// transient marks a change that is published but never written.
var transient []persistence.Slice

// SetBibInput stores the bib being typed. Never persisted.
func (e *Engine) SetBibInput(bib string) {
	e.apply("set_bib_input", func(s *AppState) ([]persistence.Slice, bool) {
		if s.BibInput == bib {
			return nil, false
		}
		s.BibInput = bib
		return transient, true
	})
}

// SetSelectedPoint selects the timing point for new entries. Never persisted.
func (e *Engine) SetSelectedPoint(p model.Point) bool {
	if !p.Valid() {
		return false
	}
	e.apply("set_selected_point", func(s *AppState) ([]persistence.Slice, bool) {
		if s.SelectedPoint == p {
			return nil, false
		}
		s.SelectedPoint = p
		return transient, true
	})
	return true
}

// SetSelectedRun selects run 1 or 2 for new entries. Never persisted.
func (e *Engine) SetSelectedRun(run int) bool {
	if run != 1 && run != 2 {
		return false
	}
	e.apply("set_selected_run", func(s *AppState) ([]persistence.Slice, bool) {
		if s.SelectedRun == run {
			return nil, false
		}
		s.SelectedRun = run
		return transient, true
	})
	return true
}

// SetSettings replaces the device settings.
func (e *Engine) SetSettings(v model.Settings) {
	setPersisted(e, "set_settings", persistence.SliceSettings, v, func(s *AppState) *model.Settings { return &s.Settings })
}

// SetLanguage sets the UI language code. Returns false for an empty code.
func (e *Engine) SetLanguage(lang string) bool {
	if lang == "" {
		return false
	}
	setPersisted(e, "set_language", persistence.SliceLanguage, lang, func(s *AppState) *string { return &s.Language })
	return true
}

// SetDeviceName sets the name shown on records from this device.
func (e *Engine) SetDeviceName(name string) {
	setPersisted(e, "set_device_name", persistence.SliceDeviceName, name, func(s *AppState) *string { return &s.DeviceName })
}

// SetRaceID sets the race this device records for.
func (e *Engine) SetRaceID(id string) {
	setPersisted(e, "set_race_id", persistence.SliceRaceID, id, func(s *AppState) *string { return &s.RaceID })
}

// SetLastSyncedRaceID records the race last synced with the backend.
func (e *Engine) SetLastSyncedRaceID(id string) {
	setPersisted(e, "set_last_synced_race_id", persistence.SliceLastSyncedRaceID, id, func(s *AppState) *string { return &s.LastSyncedRaceID })
}

// SetFirstGateColor sets the colour of the judge's first gate.
// Returns false for an unknown colour.
func (e *Engine) SetFirstGateColor(c model.GateColor) bool {
	if !c.Valid() {
		return false
	}
	setPersisted(e, "set_first_gate_color", persistence.SliceFirstGateColor, c, func(s *AppState) *model.GateColor { return &s.FirstGateColor })
	return true
}

// SetPenaltySeconds sets the time penalty per fault, clamped to 0..60.
func (e *Engine) SetPenaltySeconds(n int) {
	n = min(max(n, model.MinPenaltySeconds), model.MaxPenaltySeconds)
	setPersisted(e, "set_penalty_seconds", persistence.SlicePenaltySeconds, n, func(s *AppState) *int { return &s.PenaltySeconds })
}

// SetUsePenaltyMode switches between penalty time and disqualification.
func (e *Engine) SetUsePenaltyMode(on bool) {
	setPersisted(e, "set_use_penalty_mode", persistence.SliceUsePenaltyMode, on, func(s *AppState) *bool { return &s.UsePenaltyMode })
}

// SetGateAssignment sets the judge's gate range, or clears it with nil.
// Returns false for a range with a negative start or start after end.
func (e *Engine) SetGateAssignment(r *[2]int) bool {
	if r != nil && (r[0] < 0 || r[0] > r[1]) {
		return false
	}
	e.apply("set_gate_assignment", func(s *AppState) ([]persistence.Slice, bool) {
		switch {
		case r == nil && s.GateAssignment == nil:
			return nil, false
		case r != nil && s.GateAssignment != nil && *r == *s.GateAssignment:
			return nil, false
		}
		if r == nil {
			s.GateAssignment = nil
		} else {
			g := *r
			s.GateAssignment = &g
		}
		return []persistence.Slice{persistence.SliceGateAssignment}, true
	})
	return true
}

// FinalizeRacer marks a bib's run as final. Returns false if it already was.
func (e *Engine) FinalizeRacer(bib string, run int) bool {
	key := model.RacerKey(bib, run)
	return e.apply("finalize_racer", func(s *AppState) ([]persistence.Slice, bool) {
		if slices.Contains(s.FinalizedRacers, key) {
			return nil, false
		}
		s.FinalizedRacers = append(slices.Clip(s.FinalizedRacers), key)
		return []persistence.Slice{persistence.SliceFinalizedRacers}, true
	})
}

// UnfinalizeRacer reopens a bib's run. Returns false if it was not final.
func (e *Engine) UnfinalizeRacer(bib string, run int) bool {
	key := model.RacerKey(bib, run)
	return e.apply("unfinalize_racer", func(s *AppState) ([]persistence.Slice, bool) {
		if !slices.Contains(s.FinalizedRacers, key) {
			return nil, false
		}
		s.FinalizedRacers = slices.DeleteFunc(slices.Clone(s.FinalizedRacers), func(k string) bool { return k == key })
		return []persistence.Slice{persistence.SliceFinalizedRacers}, true
	})
}

// setPersisted writes v through field and marks slice dirty, unless the
// value is unchanged.
func setPersisted[T comparable](e *Engine, op string, slice persistence.Slice, v T, field func(*AppState) *T) {
	e.apply(op, func(s *AppState) ([]persistence.Slice, bool) {
		f := field(s)
		if *f == v {
			return nil, false
		}
		*f = v
		return []persistence.Slice{slice}, true
	})
}
