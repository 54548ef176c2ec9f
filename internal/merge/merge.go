package merge

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/racelog/internal/model"
)

// Batch is a set of records supplied by the sync transport.
type Batch struct {
	Records    []json.RawMessage `json:"records"`
	Tombstones []string          `json:"deletedIds,omitempty"`
}

// Result counts what a merge did with each incoming record.
type Result struct {
	Added      int `json:"added"`
	Updated    int `json:"updated"`
	Unchanged  int `json:"unchanged"`
	Echoes     int `json:"echoes"`
	Tombstoned int `json:"tombstoned"`
	Invalid    int `json:"invalid"`
}

// Changed reports how many local records were added or replaced.
func (r Result) Changed() int {
	return r.Added + r.Updated
}

// Merger validates and reconciles incoming batches.
// Safe for concurrent use.
type Merger struct {
	mu     sync.Mutex
	schema *schema
	logger *slog.Logger
}

// New compiles the record schema. A nil logger uses slog.Default().
func New(logger *slog.Logger) (*Merger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s, err := compileSchema()
	if err != nil {
		return nil, err
	}
	return &Merger{schema: s, logger: logger}, nil
}

func (m *Merger) decodeEntry(raw json.RawMessage) (model.Entry, error) {
	if err := m.schema.check(m.schema.entry, raw); err != nil {
		return model.Entry{}, err
	}
	var e model.Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return model.Entry{}, fmt.Errorf("decode entry: %w", err)
	}
	return sanitizeEntry(e), nil
}

func (m *Merger) decodeFault(raw json.RawMessage) (model.Fault, error) {
	if err := m.schema.check(m.schema.fault, raw); err != nil {
		return model.Fault{}, err
	}
	var f model.Fault
	if err := json.Unmarshal(raw, &f); err != nil {
		return model.Fault{}, fmt.Errorf("decode fault: %w", err)
	}
	return sanitizeFault(f), nil
}

// Entries merges a batch of entries into local. Entries are immutable once
// created: a record whose key already exists locally is dropped.
// A localDevice of "" disables echo filtering.
func (m *Merger) Entries(local []model.Entry, b Batch, localDevice string) ([]model.Entry, Result) {
	m.mu.Lock()
	incoming, invalid := decodeAll(m, b.Records, "entry", m.decodeEntry)
	m.mu.Unlock()

	out, res := reconcile(local, incoming, localDevice, b.Tombstones, policy[model.Entry]{
		id:       func(e model.Entry) string { return e.ID },
		device:   func(e model.Entry) string { return e.DeviceID },
		replaces: func(_, _ model.Entry) bool { return false },
		sort:     model.SortEntries,
	})
	res.Invalid = invalid
	return out, res
}

// Faults merges a batch of faults into local. A known fault is replaced only
// by a strictly newer version or a different deletion flag.
// A localDevice of "" disables echo filtering.
func (m *Merger) Faults(local []model.Fault, b Batch, localDevice string) ([]model.Fault, Result) {
	m.mu.Lock()
	incoming, invalid := decodeAll(m, b.Records, "fault", m.decodeFault)
	m.mu.Unlock()

	out, res := reconcile(local, incoming, localDevice, b.Tombstones, policy[model.Fault]{
		id:       func(f model.Fault) string { return f.ID },
		device:   func(f model.Fault) string { return f.DeviceID },
		replaces: FaultReplaces,
		sort:     model.SortFaults,
	})
	res.Invalid = invalid
	return out, res
}

// FaultReplaces reports whether incoming should overwrite local.
func FaultReplaces(local, incoming model.Fault) bool {
	return incoming.CurrentVersion > local.CurrentVersion ||
		incoming.MarkedForDeletion != local.MarkedForDeletion
}

// RemoveEntries drops local entries matching a tombstone.
// Returns local itself when nothing matched.
func RemoveEntries(local []model.Entry, tombstones []string) ([]model.Entry, int) {
	return removeTombstoned(local, tombstones,
		func(e model.Entry) string { return e.ID },
		func(e model.Entry) string { return e.DeviceID })
}

// RemoveFaults drops local faults matching a tombstone.
// Returns local itself when nothing matched.
func RemoveFaults(local []model.Fault, tombstones []string) ([]model.Fault, int) {
	return removeTombstoned(local, tombstones,
		func(f model.Fault) string { return f.ID },
		func(f model.Fault) string { return f.DeviceID })
}

func decodeAll[T any](m *Merger, raws []json.RawMessage, kind string, decode func(json.RawMessage) (T, error)) ([]T, int) {
	out := make([]T, 0, len(raws))
	invalid := 0
	for i, raw := range raws {
		v, err := decode(raw)
		if err != nil {
			invalid++
			m.logger.Warn("skipping invalid cloud record", "kind", kind, "index", i, "error", err)
			continue
		}
		out = append(out, v)
	}
	return out, invalid
}

// policy supplies the per-type accessors reconcile needs.
type policy[T any] struct {
	id       func(T) string
	device   func(T) string
	replaces func(local, incoming T) bool
	sort     func([]T)
}

// tombstones matches both "{id}:{deviceId}" and bare "{id}" forms.
type tombstones map[string]struct{}

func newTombstones(ids []string) tombstones {
	t := make(tombstones, len(ids))
	for _, id := range ids {
		t[id] = struct{}{}
	}
	return t
}

func (t tombstones) match(id, deviceID string) bool {
	if _, ok := t[model.TombstoneKey(id, deviceID)]; ok {
		return true
	}
	_, ok := t[id]
	return ok
}

func reconcile[T any](local, incoming []T, localDevice string, deleted []string, p policy[T]) ([]T, Result) {
	var res Result
	dead := newTombstones(deleted)

	known := make(map[string]int, len(local))
	for i, r := range local {
		known[model.RecordKey(p.id(r), p.device(r))] = i
	}

	updates := make(map[int]T)
	staged := make(map[string]int)
	var added []T

	for _, in := range incoming {
		id, dev := p.id(in), p.device(in)
		if localDevice != "" && dev == localDevice {
			res.Echoes++
			continue
		}
		if dead.match(id, dev) {
			res.Tombstoned++
			continue
		}

		key := model.RecordKey(id, dev)
		if i, ok := known[key]; ok {
			cur, pending := updates[i]
			if !pending {
				cur = local[i]
			}
			if !p.replaces(cur, in) {
				res.Unchanged++
				continue
			}
			if !pending {
				res.Updated++
			}
			updates[i] = in
			continue
		}
		if j, ok := staged[key]; ok {
			if p.replaces(added[j], in) {
				added[j] = in
			} else {
				res.Unchanged++
			}
			continue
		}
		staged[key] = len(added)
		added = append(added, in)
		res.Added++
	}

	if len(updates) == 0 && len(added) == 0 {
		return local, res
	}

	out := make([]T, 0, len(local)+len(added))
	out = append(out, local...)
	for i, u := range updates {
		out[i] = u
	}
	out = append(out, added...)
	p.sort(out)
	return out, res
}

func removeTombstoned[T any](local []T, deleted []string, id, device func(T) string) ([]T, int) {
	if len(deleted) == 0 || len(local) == 0 {
		return local, 0
	}
	dead := newTombstones(deleted)
	drop := func(r T) bool { return dead.match(id(r), device(r)) }

	n := 0
	for _, r := range local {
		if drop(r) {
			n++
		}
	}
	if n == 0 {
		return local, 0
	}
	return slices.DeleteFunc(slices.Clone(local), drop), n
}
