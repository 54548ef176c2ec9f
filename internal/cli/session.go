package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/racelog/internal/engine"
	"github.com/roach88/racelog/internal/persistence"
	"github.com/roach88/racelog/internal/store"
	"github.com/roach88/racelog/internal/telemetry"
)

// session is an open database with an engine over it, for the life of one
// command.
type session struct {
	store  *store.Store
	engine *engine.Engine
}

// openSession opens the configured database and loads state from it.
// Callers must close the session; closing flushes pending writes.
func (o *RootOptions) openSession(ctx context.Context) (*session, error) {
	cfg := o.Config
	st, err := store.Open(cfg.Database, store.WithQuota(cfg.Persistence.QuotaBytes))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	logger := o.Logger
	eng, err := engine.New(ctx, st,
		engine.WithLogger(logger),
		engine.WithDeviceName(cfg.DeviceName),
		engine.WithMetrics(telemetry.New(nil)),
		engine.WithPersistence(persistence.Config{
			Debounce:      cfg.Persistence.Debounce,
			MaxRetries:    cfg.Persistence.MaxRetries,
			RetryDelay:    cfg.Persistence.RetryDelay,
			WarnRatio:     cfg.Persistence.WarnRatio,
			ProbeSchedule: cfg.Persistence.ProbeSchedule,
		}),
		engine.WithEventHandler(func(ev persistence.Event) {
			switch ev.Kind {
			case persistence.EventStorageWarning:
				logger.Warn("storage almost full",
					"used", ev.Warning.Used,
					"quota", ev.Warning.Quota,
					"percent", ev.Warning.Percent)
			case persistence.EventStorageError:
				logger.Error("storage write failed",
					"message", ev.Error.Message,
					"quota", ev.Error.IsQuotaError,
					"entries", ev.Error.EntryCount)
			}
		}),
	)
	if err != nil {
		_ = st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to load state", err)
	}

	rep := eng.LoadReport()
	if len(rep.Corrupt) > 0 || rep.DroppedRecords > 0 {
		logger.Warn("recovered from damaged state",
			"corrupt", rep.Corrupt,
			"dropped_records", rep.DroppedRecords)
	}
	return &session{store: st, engine: eng}, nil
}

// close flushes and closes the engine, then the database.
func (s *session) close(ctx context.Context) error {
	err := s.engine.Close(ctx)
	if cerr := s.store.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	if err != nil {
		code := CodeStorage
		if store.IsQuotaError(err) {
			return WrapExitError(ExitCommandError, fmt.Sprintf("[%s] storage quota exceeded", code), err)
		}
		return WrapExitError(ExitCommandError, fmt.Sprintf("[%s] failed to save state", code), err)
	}
	return nil
}

// withSession runs fn with an open session and always closes it. A close
// error is returned when fn succeeded.
func (o *RootOptions) withSession(ctx context.Context, fn func(s *session) error) error {
	s, err := o.openSession(ctx)
	if err != nil {
		return err
	}
	ferr := fn(s)
	cerr := s.close(ctx)
	if ferr != nil {
		return ferr
	}
	return cerr
}
