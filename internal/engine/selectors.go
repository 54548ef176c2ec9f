package engine

import (
	"slices"

	"github.com/roach88/racelog/internal/faults"
	"github.com/roach88/racelog/internal/model"
)

// Selectors are plain derivations of a snapshot. Call them on the state a
// listener receives, or on State().

// EntryCount returns the number of timing entries.
func EntryCount(s AppState) int { return len(s.Entries) }

// FaultCount returns the number of faults, pending ones included.
func FaultCount(s AppState) int { return len(s.Faults) }

// CanUndo reports whether an entry action can be undone.
func CanUndo(s AppState) bool { return len(s.Undo) > 0 }

// CanRedo reports whether an undone entry action can be re-applied.
func CanRedo(s AppState) bool { return len(s.Redo) > 0 }

// PendingDeletionCount returns the number of faults awaiting approval.
func PendingDeletionCount(s AppState) int {
	n := 0
	for _, f := range s.Faults {
		if f.PendingDeletion() {
			n++
		}
	}
	return n
}

// EntriesForBib returns the entries for a bib in a run, in stored order.
func EntriesForBib(s AppState, bib string, run int) []model.Entry {
	var out []model.Entry
	for _, e := range s.Entries {
		if e.Bib == bib && e.Run == run {
			out = append(out, e)
		}
	}
	return out
}

// FaultsForBib returns the faults for a bib in a run.
func FaultsForBib(s AppState, bib string, run int) []model.Fault {
	return faults.ForBib(s.Faults, bib, run)
}

// IsFinalized reports whether a bib's run has been marked final.
func IsFinalized(s AppState, bib string, run int) bool {
	return slices.Contains(s.FinalizedRacers, model.RacerKey(bib, run))
}
