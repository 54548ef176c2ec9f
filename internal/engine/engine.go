package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/racelog/internal/entries"
	"github.com/roach88/racelog/internal/merge"
	"github.com/roach88/racelog/internal/model"
	"github.com/roach88/racelog/internal/persistence"
	"github.com/roach88/racelog/internal/telemetry"
)

// AppState is one immutable snapshot of the application state.
//
// The embedded Persisted fields are written to storage; the rest is
// session-only. Slices inside a snapshot are shared with later snapshots
// and must never be modified by the holder.
type AppState struct {
	model.Persisted

	Undo []entries.Action
	Redo []entries.Action

	// Transient input fields. Never persisted.
	BibInput      string
	SelectedPoint model.Point
	SelectedRun   int

	// Revision increases with every applied mutation.
	Revision int64
}

func (s *AppState) entryState() entries.State {
	return entries.State{Entries: s.Entries, Undo: s.Undo, Redo: s.Redo}
}

func (s *AppState) setEntryState(es entries.State) {
	s.Entries, s.Undo, s.Redo = es.Entries, es.Undo, es.Redo
}

func (s *AppState) editor() model.Editor {
	return model.Editor{Name: s.DeviceName, DeviceID: s.DeviceID}
}

// Change describes the mutation that produced a snapshot.
type Change struct {
	Op       string
	Slices   []persistence.Slice
	Revision int64
}

// Listener is called once per applied mutation with the snapshot that
// mutation produced.
type Listener func(state AppState, change Change)

type subscription struct {
	id int64
	fn Listener
}

// Engine is the single state container.
//
// Thread-safety model:
//   - State(): safe from any goroutine, lock-free
//   - mutations: safe from any goroutine, serialised by mu
//   - listeners: never called with mu held
type Engine struct {
	state atomic.Pointer[AppState]
	mu    sync.Mutex
	revs  revisions

	notifyMu sync.Mutex
	queue    *notifyQueue
	draining bool

	subsMu  sync.Mutex
	subs    []subscription
	nextSub int64

	merger    *merge.Merger
	persister *persistence.Persister
	report    persistence.LoadReport

	ids        IDGenerator
	now        func() time.Time
	logger     *slog.Logger
	metrics    *telemetry.Metrics
	onEvent    persistence.EventHandler
	persistCfg persistence.Config
	deviceName string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithIDGenerator sets the source of record and device IDs.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithNow sets the wall clock used for record timestamps.
// Default: time.Now.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMetrics records mutations, merges and flushes to m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithEventHandler receives storage warnings and errors.
func WithEventHandler(h persistence.EventHandler) Option {
	return func(e *Engine) { e.onEvent = h }
}

// WithPersistence overrides the flush and quota probe tuning.
// An empty ProbeSchedule disables the periodic probe.
func WithPersistence(cfg persistence.Config) Option {
	return func(e *Engine) { e.persistCfg = cfg }
}

// WithDeviceName names the device when no name has been stored yet.
func WithDeviceName(name string) Option {
	return func(e *Engine) { e.deviceName = name }
}

// New loads state from backend and returns a ready Engine.
//
// Loading never fails on bad data: corrupt slices fall back to defaults
// (see LoadReport). A device ID is minted on first start and kept from
// then on. The returned error covers setup problems only.
func New(ctx context.Context, backend persistence.Backend, opts ...Option) (*Engine, error) {
	e := &Engine{
		queue:      newNotifyQueue(),
		ids:        UUIDv7Generator{},
		now:        time.Now,
		logger:     slog.Default(),
		persistCfg: persistence.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}

	m, err := merge.New(e.logger)
	if err != nil {
		return nil, fmt.Errorf("create merger: %w", err)
	}
	e.merger = m

	p, report := persistence.Load(ctx, backend, e.logger)
	e.report = report
	dirty := report.Rewrite()

	if p.DeviceID == "" {
		p.DeviceID = e.ids.Generate()
		dirty = append(dirty, persistence.SliceDeviceID)
		e.logger.Info("generated device id", "device_id", p.DeviceID)
	}
	if p.DeviceName == "" && e.deviceName != "" {
		p.DeviceName = e.deviceName
		dirty = append(dirty, persistence.SliceDeviceName)
	}

	e.state.Store(&AppState{
		Persisted:     p,
		SelectedPoint: model.PointStart,
		SelectedRun:   1,
		Revision:      e.revs.current(),
	})

	e.persister = persistence.NewPersister(backend, e.persisted, e.persistCfg,
		persistence.WithLogger(e.logger),
		persistence.WithMetrics(e.metrics),
		persistence.WithEventHandler(e.onEvent),
	)
	e.persister.MarkDirty(dirty...)

	if e.persistCfg.ProbeSchedule != "" {
		if err := e.persister.StartQuotaProbe(); err != nil {
			_ = e.persister.Close(ctx)
			return nil, err
		}
	}

	e.logger.Debug("engine ready",
		"entries", len(p.Entries),
		"faults", len(p.Faults),
		"corrupt", report.Corrupt,
		"migrated", report.Migrated)
	return e, nil
}

// State returns the current snapshot.
func (e *Engine) State() AppState {
	return *e.state.Load()
}

// LoadReport describes how the initial state was recovered.
func (e *Engine) LoadReport() persistence.LoadReport {
	return e.report
}

// Persister exposes the persistence layer, e.g. for quota probes.
func (e *Engine) Persister() *persistence.Persister {
	return e.persister
}

func (e *Engine) persisted() model.Persisted {
	return e.state.Load().Persisted
}

// Subscribe registers fn for change notifications and returns a function
// that removes it. Calling the returned function more than once is safe.
func (e *Engine) Subscribe(fn Listener) (unsubscribe func()) {
	e.subsMu.Lock()
	e.nextSub++
	id := e.nextSub
	e.subs = append(slices.Clip(e.subs), subscription{id: id, fn: fn})
	e.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.subsMu.Lock()
			defer e.subsMu.Unlock()
			e.subs = slices.DeleteFunc(slices.Clone(e.subs), func(s subscription) bool { return s.id == id })
		})
	}
}

// Flush writes pending changes now instead of waiting for the debounce.
func (e *Engine) Flush(ctx context.Context) error {
	return e.persister.Flush(ctx)
}

// Close stops background work and flushes pending changes.
func (e *Engine) Close(ctx context.Context) error {
	return e.persister.Close(ctx)
}

// mutation computes the next state from a working copy of the current one.
// It returns the persisted slices it changed and whether anything changed
// at all; a change that touches no slices is transient and is never
// written.
type mutation func(s *AppState) (dirty []persistence.Slice, changed bool)

// apply runs fn, publishes the result and delivers notifications.
func (e *Engine) apply(op string, fn mutation) bool {
	e.mu.Lock()
	next := *e.state.Load()
	dirty, changed := fn(&next)
	if !changed {
		e.mu.Unlock()
		return false
	}
	next.Revision = e.revs.next()
	snap := &next
	e.state.Store(snap)

	e.notifyMu.Lock()
	e.queue.push(notification{state: snap, change: Change{Op: op, Slices: dirty, Revision: snap.Revision}})
	e.notifyMu.Unlock()
	e.mu.Unlock()

	e.metrics.Mutation(op)
	e.persister.MarkDirty(dirty...)
	e.drain()
	return true
}

// drain delivers queued notifications until the queue is empty. Only one
// caller drains at a time; a mutation made by a listener returns here
// immediately and its notification is delivered by the outer loop.
func (e *Engine) drain() {
	e.notifyMu.Lock()
	if e.draining {
		e.notifyMu.Unlock()
		return
	}
	e.draining = true
	e.notifyMu.Unlock()

	for {
		e.notifyMu.Lock()
		n, ok := e.queue.pop()
		if !ok {
			e.draining = false
			e.notifyMu.Unlock()
			return
		}
		e.notifyMu.Unlock()

		e.subsMu.Lock()
		subs := e.subs
		e.subsMu.Unlock()
		for _, s := range subs {
			e.deliver(s, n)
		}
	}
}

func (e *Engine) deliver(s subscription, n notification) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("listener panicked", "op", n.change.Op, "revision", n.change.Revision, "panic", r)
		}
	}()
	s.fn(*n.state, n.change)
}
