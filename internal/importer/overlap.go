package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"framefeed/internal/config"
	"framefeed/internal/logging"
	"framefeed/internal/processing"
)

// ProcessedRecorder persists the outcome of post-import processing. It is the
// slice of catalog.Store the overlap manager needs.
type ProcessedRecorder interface {
	MarkProcessed(ctx context.Context, source string, playlistID int64, mediaItemID string) error
	MarkProcessingFailed(ctx context.Context, source string, playlistID int64, mediaItemID, cause string) error
}

// ErrIntakeClosed is returned by Submit after CloseIntake has been called.
var ErrIntakeClosed = errors.New("processing intake closed")

// Overlap runs post-import processing concurrently with later download
// batches. It caps concurrent tasks independently of the download and
// database limiters, so a slow processor never stalls the fetch pipeline and
// a fetch burst never floods the processor.
type Overlap struct {
	limiter   *Limiter
	processor processing.Processor
	recorder  ProcessedRecorder
	sourceTag string
	logger    *slog.Logger

	mu        sync.Mutex
	closed    bool
	wg        sync.WaitGroup
	scheduled int
	pending   int
	done      int
	failed    int
}

// NewOverlap builds the processing overlap manager.
func NewOverlap(processor processing.Processor, recorder ProcessedRecorder, sourceTag string, tuning config.Import, logger *slog.Logger) (*Overlap, error) {
	limiter, err := NewLimiter(tuning.MaxProcessingTasks)
	if err != nil {
		return nil, err
	}
	return &Overlap{
		limiter:   limiter,
		processor: processor,
		recorder:  recorder,
		sourceTag: sourceTag,
		logger:    logging.NewComponentLogger(logger, "overlap"),
	}, nil
}

// Submit queues processing for one persisted item and returns immediately.
// The task runs as soon as a processing slot frees up. Submission failures
// are the caller's problem; task failures are contained to the item.
func (o *Overlap) Submit(ctx context.Context, item *Item) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrIntakeClosed
	}
	o.scheduled++
	o.pending++
	o.wg.Add(1)
	o.mu.Unlock()

	go o.run(ctx, item)
	return nil
}

// CloseIntake rejects all future submissions. Tasks already submitted keep
// running; call Join to wait for them.
func (o *Overlap) CloseIntake() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}

// Join blocks until every submitted task has finished. It closes intake
// first, so the final batch cannot race new submissions past the wait.
func (o *Overlap) Join(ctx context.Context) error {
	o.CloseIntake()

	finished := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(finished)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-finished:
		return nil
	}
}

// OverlapStatus is a point-in-time snapshot of the manager's counters.
// Scheduled, Completed, and Failed only grow; once intake is closed and the
// manager joined, Scheduled == Completed + Failed. Pending and Active are
// gauges of work not yet finished.
type OverlapStatus struct {
	Scheduled int
	Active    int
	Pending   int
	Completed int
	Failed    int
}

// Status reports the manager's current counters.
func (o *Overlap) Status() OverlapStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return OverlapStatus{
		Scheduled: o.scheduled,
		Active:    o.limiter.InFlight(),
		Pending:   o.pending,
		Completed: o.done,
		Failed:    o.failed,
	}
}

func (o *Overlap) run(ctx context.Context, item *Item) {
	defer o.wg.Done()

	if err := o.limiter.Acquire(ctx); err != nil {
		o.finish(ctx, item, err)
		return
	}
	defer o.limiter.Release()

	if !item.SetState(StateProcessing) {
		o.finish(ctx, item, fmt.Errorf("item %s not ready for processing (state %s)", item.Descriptor.MediaID, item.State()))
		return
	}

	err := o.process(ctx, item)
	o.finish(ctx, item, err)
}

// process isolates the processor call so a panic in third-party processing
// code fails the item instead of tearing down the session.
func (o *Overlap) process(ctx context.Context, item *Item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Wrap(ErrProcessing, "process", "panic", fmt.Sprint(r), nil)
		}
	}()
	if procErr := o.processor.Process(ctx, item.LocalPath); procErr != nil {
		return Wrap(ErrProcessing, "process", item.Descriptor.MediaID, "", procErr)
	}
	return nil
}

func (o *Overlap) finish(ctx context.Context, item *Item, err error) {
	desc := item.Descriptor

	if err == nil {
		item.SetState(StateProcessed)
		if recErr := o.recorder.MarkProcessed(ctx, o.sourceTag, desc.PlaylistID, desc.MediaID); recErr != nil {
			o.logger.Warn("failed to record processed flag",
				logging.String(logging.FieldMediaID, desc.MediaID),
				logging.Error(recErr),
			)
		}
	} else {
		item.Fail(err)
		o.logger.Warn("processing failed",
			logging.String(logging.FieldMediaID, desc.MediaID),
			logging.Error(err),
		)
		if recErr := o.recorder.MarkProcessingFailed(ctx, o.sourceTag, desc.PlaylistID, desc.MediaID, err.Error()); recErr != nil {
			o.logger.Warn("failed to record processing failure",
				logging.String(logging.FieldMediaID, desc.MediaID),
				logging.Error(recErr),
			)
		}
	}

	o.mu.Lock()
	o.pending--
	if err == nil {
		o.done++
	} else {
		o.failed++
	}
	o.mu.Unlock()
}
