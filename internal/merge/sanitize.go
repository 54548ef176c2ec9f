package merge

import (
	"cmp"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/racelog/internal/model"
)

// Length caps applied to free text from other devices, in runes.
const (
	maxNameLen  = 100
	maxNotesLen = 1000
)

// cleanText trims, NFC normalises, drops control characters and caps the
// string at limit runes.
func cleanText(s string, limit int) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	n := 0
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if n == limit {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

func sanitizeEntry(e model.Entry) model.Entry {
	e.ID = strings.TrimSpace(e.ID)
	e.Bib = strings.TrimSpace(e.Bib)
	e.DeviceID = strings.TrimSpace(e.DeviceID)
	e.DeviceName = cleanText(e.DeviceName, maxNameLen)
	return e.WithDefaults()
}

func sanitizeFault(f model.Fault) model.Fault {
	f.ID = strings.TrimSpace(f.ID)
	f.Bib = strings.TrimSpace(f.Bib)
	f.DeviceID = strings.TrimSpace(f.DeviceID)
	f.DeviceName = cleanText(f.DeviceName, maxNameLen)
	f.Notes = cleanText(f.Notes, maxNotesLen)
	if f.CurrentVersion < 1 {
		f.CurrentVersion = 1
	}
	if !f.MarkedForDeletion {
		f.MarkedForDeletionAt = nil
		f.MarkedForDeletionBy = ""
		f.MarkedForDeletionByDeviceID = ""
	}

	f.VersionHistory = orderedHistory(f.VersionHistory, f.CurrentVersion)
	history := make([]model.FaultVersion, 0, len(f.VersionHistory))
	for _, v := range f.VersionHistory {
		v.EditedBy = cleanText(v.EditedBy, maxNameLen)
		v.ChangeDescription = cleanText(v.ChangeDescription, maxNotesLen)
		v.Data.Notes = cleanText(v.Data.Notes, maxNotesLen)
		history = append(history, v)
	}
	f.VersionHistory = history
	return f.WithDefaults()
}

// orderedHistory returns the history items with Version <= current, oldest
// first, keeping the newest model.MaxVersionHistory.
func orderedHistory(history []model.FaultVersion, current int) []model.FaultVersion {
	out := slices.DeleteFunc(slices.Clone(history), func(v model.FaultVersion) bool {
		return v.Version > current
	})
	slices.SortStableFunc(out, func(a, b model.FaultVersion) int {
		return cmp.Compare(a.Version, b.Version)
	})
	if over := len(out) - model.MaxVersionHistory; over > 0 {
		out = out[over:]
	}
	return out
}
