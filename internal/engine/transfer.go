package engine

import (
	"github.com/roach88/racelog/internal/merge"
	"github.com/roach88/racelog/internal/model"
	"github.com/roach88/racelog/internal/persistence"
)

// ImportResult reports what an import merged.
type ImportResult struct {
	Version int          `json:"version"`
	Entries merge.Result `json:"entries"`
	Faults  merge.Result `json:"faults"`
}

// Export renders entries and faults as a versioned JSON document.
func (e *Engine) Export() ([]byte, error) {
	return persistence.Export(e.persisted(), e.now())
}

// Import merges an export document into the current state. Records are
// validated like cloud records, but records from this device are accepted
// so a device can restore its own backup. Older schema versions are
// upgraded on the way in. Malformed and newer documents fail with a
// *persistence.ImportError and leave the state untouched.
func (e *Engine) Import(data []byte) (ImportResult, error) {
	doc, err := persistence.DecodeExport(data)
	if err != nil {
		return ImportResult{}, err
	}

	res := ImportResult{Version: doc.Version}
	e.apply("import", func(s *AppState) ([]persistence.Slice, bool) {
		var ents []model.Entry
		var fs []model.Fault
		ents, res.Entries = e.merger.Entries(s.Entries, merge.Batch{Records: doc.Entries}, "")
		fs, res.Faults = e.merger.Faults(s.Faults, merge.Batch{Records: doc.Faults}, "")

		var dirty []persistence.Slice
		if res.Entries.Changed() > 0 {
			dirty = append(dirty, e.setMergedEntries(s, ents)...)
		}
		if res.Faults.Changed() > 0 {
			s.Faults = fs
			dirty = append(dirty, persistence.SliceFaults)
		}
		return dirty, len(dirty) > 0
	})
	e.recordMerge("import_entry", res.Entries)
	e.recordMerge("import_fault", res.Faults)
	e.logger.Info("import finished",
		"version", doc.Version,
		"entries_added", res.Entries.Added,
		"faults_added", res.Faults.Added,
		"faults_updated", res.Faults.Updated,
		"invalid", res.Entries.Invalid+res.Faults.Invalid)
	return res, nil
}
