package importer

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"framefeed/internal/catalog"
	"framefeed/internal/config"
	"framefeed/internal/logging"
)

// MediaWriter is the slice of catalog.Writer the pipeline needs.
type MediaWriter interface {
	InsertMedia(ctx context.Context, rec *catalog.MediaFile) error
	Close() error
}

// WriterFactory opens an isolated writer for one database operation.
type WriterFactory interface {
	OpenWriter(ctx context.Context) (MediaWriter, error)
}

// NewWriterFactory adapts a catalog.Factory to the WriterFactory interface.
func NewWriterFactory(factory *catalog.Factory) WriterFactory {
	return catalogFactory{factory: factory}
}

type catalogFactory struct {
	factory *catalog.Factory
}

func (c catalogFactory) OpenWriter(ctx context.Context) (MediaWriter, error) {
	return c.factory.OpenWriter(ctx)
}

const (
	busyRetryBaseDelay = 10 * time.Millisecond
	busyRetryMaxDelay  = 200 * time.Millisecond
)

// DBGate serializes catalog writes behind a concurrency cap. Each admitted
// operation gets its own writer connection, staggered slightly so a burst of
// inserts does not slam the database at the same instant.
type DBGate struct {
	limiter  *Limiter
	factory  WriterFactory
	logger   *slog.Logger
	stagger  time.Duration
	attempts int
}

// NewDBGate builds the database gate from the import tuning section.
func NewDBGate(factory WriterFactory, tuning config.Import, logger *slog.Logger) (*DBGate, error) {
	limiter, err := NewLimiter(tuning.MaxConcurrentDBOperations)
	if err != nil {
		return nil, err
	}
	attempts := tuning.DBRetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &DBGate{
		limiter:  limiter,
		factory:  factory,
		logger:   logging.NewComponentLogger(logger, "dbgate"),
		stagger:  time.Duration(tuning.DBStaggerMillis) * time.Millisecond,
		attempts: attempts,
	}, nil
}

// InFlight returns the number of writes currently holding a slot.
func (g *DBGate) InFlight() int {
	return g.limiter.InFlight()
}

// Capacity returns the configured write concurrency cap.
func (g *DBGate) Capacity() int {
	return g.limiter.Capacity()
}

// InsertMedia writes one record through a fresh writer connection. Busy
// contention is retried with exponential backoff up to the configured attempt
// count; a catalog that cannot be opened at all is reported as
// ErrStoreUnavailable so the session aborts instead of failing every item.
func (g *DBGate) InsertMedia(ctx context.Context, rec *catalog.MediaFile) error {
	if err := g.limiter.Acquire(ctx); err != nil {
		return err
	}
	defer g.limiter.Release()

	// Each admitted write gets a correlation id so its retries and outcome
	// can be traced across interleaved operations.
	opID := uuid.NewString()[:8]
	g.logger.Debug("catalog write admitted",
		logging.String(logging.FieldOperationID, opID),
		logging.String(logging.FieldMediaID, rec.MediaItemID),
	)

	if g.stagger > 0 {
		timer := time.NewTimer(g.stagger)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	writer, err := g.factory.OpenWriter(ctx)
	if err != nil {
		return Wrap(ErrStoreUnavailable, "persist", "open writer", "", err)
	}
	defer func() { _ = writer.Close() }()

	delay := busyRetryBaseDelay
	var lastErr error
	for attempt := 1; attempt <= g.attempts; attempt++ {
		lastErr = writer.InsertMedia(ctx, rec)
		if lastErr == nil {
			return nil
		}
		if !catalog.IsBusy(lastErr) || attempt == g.attempts {
			break
		}
		g.logger.Debug("catalog busy, retrying",
			logging.String(logging.FieldOperationID, opID),
			logging.String(logging.FieldMediaID, rec.MediaItemID),
			logging.Int("attempt", attempt),
			logging.Duration("backoff", delay),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if delay > busyRetryMaxDelay {
			delay = busyRetryMaxDelay
		}
	}
	return Wrap(ErrPersist, "persist", "insert media", rec.MediaItemID, lastErr)
}
