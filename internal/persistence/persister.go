package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/robfig/cron/v3"

	"github.com/roach88/racelog/internal/model"
	"github.com/roach88/racelog/internal/store"
	"github.com/roach88/racelog/internal/telemetry"
)

// Backend is durable slice storage. *store.Store satisfies it.
type Backend interface {
	Reader
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Usage(ctx context.Context) (used, quota int64, err error)
}

// Config tunes a Persister.
type Config struct {
	// Debounce coalesces mutations arriving within this window into one flush.
	Debounce time.Duration
	// MaxRetries caps retries after a failed flush. 0 disables retrying.
	MaxRetries int
	// RetryDelay is the first retry interval; later ones double.
	RetryDelay time.Duration
	// WarnRatio is the usage fraction that raises a storage warning.
	WarnRatio float64
	// ProbeSchedule is a cron expression for the quota probe.
	ProbeSchedule string
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		Debounce:      100 * time.Millisecond,
		MaxRetries:    3,
		RetryDelay:    250 * time.Millisecond,
		WarnRatio:     0.9,
		ProbeSchedule: "@every 1m",
	}
}

// FlushError lists the slices a flush could not write.
type FlushError struct {
	Slices []Slice
	Err    error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("flush %d slice(s) %v: %v", len(e.Slices), e.Slices, e.Err)
}

func (e *FlushError) Unwrap() error { return e.Err }

// Usage is one quota probe reading.
type Usage struct {
	Used  int64
	Quota int64
	Ratio float64
}

// Persister writes dirty slices of the state returned by source.
// The source is read at flush time, so a flush always writes the latest
// state of each dirty slice.
type Persister struct {
	backend Backend
	source  func() model.Persisted
	cfg     Config
	logger  *slog.Logger
	metrics *telemetry.Metrics
	onEvent EventHandler

	mu     sync.Mutex
	dirty  map[Slice]struct{}
	timer  *time.Timer
	retry  backoff.BackOff
	parked bool
	closed bool

	// flushMu serialises flushes so a timer flush and a forced flush
	// never interleave their writes.
	flushMu sync.Mutex

	cron *cron.Cron
}

// PersisterOption configures a Persister.
type PersisterOption func(*Persister)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) PersisterOption {
	return func(p *Persister) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics records flush outcomes to m.
func WithMetrics(m *telemetry.Metrics) PersisterOption {
	return func(p *Persister) { p.metrics = m }
}

// WithEventHandler receives storage warnings and errors.
func WithEventHandler(h EventHandler) PersisterOption {
	return func(p *Persister) { p.onEvent = h }
}

// NewPersister creates a Persister. Nothing is written until a slice is
// marked dirty.
func NewPersister(backend Backend, source func() model.Persisted, cfg Config, opts ...PersisterOption) *Persister {
	p := &Persister{
		backend: backend,
		source:  source,
		cfg:     cfg,
		logger:  slog.Default(),
		dirty:   make(map[Slice]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.retry = newRetryPolicy(cfg)
	return p
}

func newRetryPolicy(cfg Config) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = cfg.RetryDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = 30 * time.Second
	exp.MaxElapsedTime = 0
	b := backoff.WithMaxRetries(exp, uint64(max(cfg.MaxRetries, 0)))
	b.Reset()
	return b
}

// MarkDirty records changed slices and (re)starts the debounce timer.
// A parked persister (retries exhausted) resumes with a fresh retry budget.
func (p *Persister) MarkDirty(slices ...Slice) {
	if len(slices) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	for _, s := range slices {
		p.dirty[s] = struct{}{}
	}
	if p.parked {
		p.parked = false
		p.retry.Reset()
	}
	p.scheduleLocked(p.cfg.Debounce)
}

// Dirty returns the slices waiting to be written, sorted.
func (p *Persister) Dirty() []Slice {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Slice, 0, len(p.dirty))
	for s := range p.dirty {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// Parked reports whether retries are exhausted and flushing waits for the
// next mutation.
func (p *Persister) Parked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.parked
}

// scheduleLocked replaces any pending flush with one after d.
// Caller holds p.mu.
func (p *Persister) scheduleLocked(d time.Duration) {
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(d, p.timerFlush)
}

func (p *Persister) stopTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Persister) timerFlush() {
	if err := p.flush(context.Background()); err != nil {
		p.handleFailure(err)
	}
}

// Flush writes all dirty slices now, bypassing the debounce. On failure the
// slices stay dirty, a retry is scheduled and the error is returned.
func (p *Persister) Flush(ctx context.Context) error {
	p.mu.Lock()
	p.stopTimerLocked()
	p.mu.Unlock()

	err := p.flush(ctx)
	if err != nil {
		p.handleFailure(err)
	}
	return err
}

// flush writes the dirty set once. Failed slices are re-marked dirty.
func (p *Persister) flush(ctx context.Context) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	pending := make([]Slice, 0, len(p.dirty))
	for s := range p.dirty {
		pending = append(pending, s)
	}
	clear(p.dirty)
	p.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}
	slices.Sort(pending)

	snap := p.source()
	var failed []Slice
	var errs []error
	for _, s := range pending {
		if err := p.writeSlice(ctx, snap, s); err != nil {
			p.logger.Warn("slice write failed", "slice", s, "error", err)
			p.metrics.SliceWrite(string(s), telemetry.OutcomeError)
			failed = append(failed, s)
			errs = append(errs, err)
			continue
		}
		p.metrics.SliceWrite(string(s), telemetry.OutcomeOK)
	}

	if len(failed) > 0 {
		p.mu.Lock()
		for _, s := range failed {
			p.dirty[s] = struct{}{}
		}
		p.mu.Unlock()
		p.metrics.Flush(telemetry.OutcomeError)
		return &FlushError{Slices: failed, Err: errors.Join(errs...)}
	}

	p.mu.Lock()
	p.retry.Reset()
	p.mu.Unlock()
	p.metrics.Flush(telemetry.OutcomeOK)
	p.logger.Debug("flushed slices", "slices", pending)
	return nil
}

func (p *Persister) writeSlice(ctx context.Context, snap model.Persisted, s Slice) error {
	value, present, err := Encode(snap, s)
	if err != nil {
		return err
	}
	if !present {
		return p.backend.Delete(ctx, string(s))
	}
	return p.backend.Put(ctx, string(s), value)
}

// handleFailure schedules the next retry, or parks and raises a
// storage-error event once the retry budget is spent.
func (p *Persister) handleFailure(err error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	next := p.retry.NextBackOff()
	if next != backoff.Stop {
		p.scheduleLocked(next)
		p.mu.Unlock()
		p.metrics.Retry()
		p.logger.Info("flush failed, retry scheduled", "delay", next, "error", err)
		return
	}
	p.parked = true
	p.stopTimerLocked()
	p.mu.Unlock()

	var fe *FlushError
	var failed []Slice
	if errors.As(err, &fe) {
		failed = fe.Slices
	}
	p.logger.Error("flush failed, retries exhausted", "error", err, "slices", failed)
	p.emit(Event{
		Kind: EventStorageError,
		Error: &StorageError{
			Message:      err.Error(),
			IsQuotaError: store.IsQuotaError(err),
			EntryCount:   len(p.source().Entries),
			Slices:       failed,
		},
	})
}

// ProbeQuota reads storage usage, updates the usage gauge and raises a
// storage-warning event at or above the warning ratio. A backend without a
// quota reports a zero ratio and never warns.
func (p *Persister) ProbeQuota(ctx context.Context) (Usage, error) {
	used, quota, err := p.backend.Usage(ctx)
	if err != nil {
		return Usage{}, fmt.Errorf("probe quota: %w", err)
	}
	u := Usage{Used: used, Quota: quota}
	if quota <= 0 {
		return u, nil
	}
	u.Ratio = float64(used) / float64(quota)
	p.metrics.Usage(u.Ratio)
	if u.Ratio >= p.cfg.WarnRatio {
		p.logger.Warn("storage usage high", "used", used, "quota", quota, "ratio", u.Ratio)
		p.emit(Event{
			Kind: EventStorageWarning,
			Warning: &StorageWarning{
				Used:    used,
				Quota:   quota,
				Percent: u.Ratio * 100,
			},
		})
	}
	return u, nil
}

// StartQuotaProbe runs ProbeQuota on cfg.ProbeSchedule until Close.
func (p *Persister) StartQuotaProbe() error {
	c := cron.New()
	_, err := c.AddFunc(p.cfg.ProbeSchedule, func() {
		if _, err := p.ProbeQuota(context.Background()); err != nil {
			p.logger.Warn("quota probe failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule quota probe %q: %w", p.cfg.ProbeSchedule, err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errors.New("persister closed")
	}
	p.cron = c
	p.mu.Unlock()

	c.Start()
	return nil
}

// Close stops timers and the probe, then makes a final forced flush.
// Further MarkDirty calls are ignored.
func (p *Persister) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.stopTimerLocked()
	c := p.cron
	p.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	return p.flush(ctx)
}

func (p *Persister) emit(e Event) {
	if p.onEvent != nil {
		p.onEvent(e)
	}
}
