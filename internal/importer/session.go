package importer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"framefeed/internal/catalog"
	"framefeed/internal/config"
	"framefeed/internal/fileutil"
	"framefeed/internal/logging"
	"framefeed/internal/notifications"
	"framefeed/internal/processing"
	"framefeed/internal/source"
)

// Session orchestrates one import run: playlist sync, batched downloads,
// gated catalog writes, and overlapped processing.
type Session struct {
	cfg       *config.Config
	src       source.Source
	store     *catalog.Store
	downloads *Limiter
	gate      *DBGate
	overlap   *Overlap
	notifier  notifications.Service
	reporter  *Reporter
	logger    *slog.Logger
	id        string

	// DryRun plans the session (sync, listing, skip filtering) without
	// downloading or writing anything.
	DryRun bool
}

// NewSession wires an import session. Configuration is validated here, so a
// bad throttling setup fails before any network or catalog work starts.
func NewSession(cfg *config.Config, src source.Source, store *catalog.Store, factory WriterFactory, processor processing.Processor, notifier notifications.Service, logger *slog.Logger) (*Session, error) {
	if err := cfg.ValidateImport(); err != nil {
		return nil, Wrap(ErrConfig, "session", "validate", "", err)
	}

	downloads, err := NewLimiter(cfg.Import.MaxConcurrentDownloads)
	if err != nil {
		return nil, err
	}
	gate, err := NewDBGate(factory, cfg.Import, logger)
	if err != nil {
		return nil, err
	}
	overlap, err := NewOverlap(processor, store, src.Name(), cfg.Import, logger)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()[:8]
	return &Session{
		cfg:       cfg,
		src:       src,
		store:     store,
		downloads: downloads,
		gate:      gate,
		overlap:   overlap,
		notifier:  notifier,
		reporter:  NewReporter(id, src.Name()),
		logger:    logging.NewComponentLogger(logger, "session"),
		id:        id,
	}, nil
}

// ID returns the session's correlation id.
func (s *Session) ID() string {
	return s.id
}

// Status returns a snapshot of the session's progress. Safe to call from any
// goroutine at any point in the session's lifetime.
func (s *Session) Status() Snapshot {
	return s.reporter.Snapshot(s.downloads.InFlight(), s.gate.InFlight(), s.overlap.Status())
}

// Run executes the session to completion or cancellation. Per-item failures
// are contained; only configuration problems, an unavailable catalog, or
// cancellation abort the run.
func (s *Session) Run(ctx context.Context) (*Report, error) {
	lock := flock.New(filepath.Join(s.cfg.Paths.DataDir, "framefeed.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another import session is already running")
	}
	defer func() { _ = lock.Unlock() }()

	ctx = logging.WithSessionID(ctx, s.id)
	ctx = logging.WithSource(ctx, s.src.Name())
	log := logging.WithContext(ctx, s.logger)
	log.Info("import session starting",
		logging.String(logging.FieldEventType, "session_start"))

	items, playlists, err := s.prepare(ctx, log)
	if err != nil {
		s.notifyError(ctx, err)
		return nil, err
	}

	batches := splitBatches(items, s.cfg.Import.DownloadBatchSize)
	s.reporter.SetPlan(len(items), s.skippedCount(playlists), len(batches))
	log.Info("import plan ready",
		logging.Int("items", len(items)),
		logging.Int(logging.FieldBatchCount, len(batches)),
	)

	if s.DryRun || len(items) == 0 {
		if s.DryRun {
			log.Info("dry run, stopping before downloads")
		} else {
			log.Info("nothing to import")
		}
		return s.reporter.Finish(s.overlap.Status()), nil
	}

	if err := s.notifier.NotifyImportStarted(ctx, s.src.Name(), len(items)); err != nil {
		log.Warn("start notification failed", logging.Error(err))
	}

	runErr := s.runBatches(ctx, log, batches)

	// Processing tasks already submitted are always drained, even when the
	// session aborts, so writer connections and counters settle.
	joinCtx := ctx
	if joinCtx.Err() != nil {
		var cancel context.CancelFunc
		joinCtx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
	}
	if err := s.overlap.Join(joinCtx); err != nil {
		log.Warn("processing join interrupted", logging.Error(err))
	}

	if runErr == nil {
		s.finishPlaylists(ctx, log, playlists)
	}

	report := s.reporter.Finish(s.overlap.Status())
	if runErr != nil {
		s.notifyError(ctx, runErr)
		return report, runErr
	}

	if err := s.notifier.NotifyImportCompleted(ctx, notifications.Summary{
		Source:    report.Source,
		Imported:  report.Imported,
		Skipped:   report.Skipped,
		Failed:    report.Failed,
		Batches:   report.Batches,
		Duration:  report.Duration,
		Playlists: len(playlists),
	}); err != nil {
		log.Warn("completion notification failed", logging.Error(err))
	}

	log.Info("import session complete",
		logging.String(logging.FieldEventType, "session_complete"),
		logging.Int("imported", report.Imported),
		logging.Int("skipped", report.Skipped),
		logging.Int("failed", report.Failed),
		logging.Duration("duration", report.Duration),
	)
	return report, nil
}

// playlistPlan tracks one remote playlist through the session.
type playlistPlan struct {
	remote  source.Playlist
	version int64
	skipped int
	items   []*Item
}

func (s *Session) prepare(ctx context.Context, log *slog.Logger) ([]*Item, []*playlistPlan, error) {
	remote, err := s.src.Playlists(ctx)
	if err != nil {
		return nil, nil, Wrap(ErrSource, "prepare", "list playlists", "", err)
	}

	catalogPlaylists := make([]catalog.Playlist, 0, len(remote))
	for _, pl := range remote {
		catalogPlaylists = append(catalogPlaylists, catalog.Playlist{
			Source:       s.src.Name(),
			PlaylistID:   pl.ID,
			Name:         pl.Name,
			PictureCount: pl.PictureCount,
			LastModified: pl.LastUpdated,
		})
	}

	synced, err := s.store.SyncPlaylists(ctx, s.src.Name(), catalogPlaylists)
	if err != nil {
		return nil, nil, Wrap(ErrStoreUnavailable, "prepare", "sync playlists", "", err)
	}
	s.sweepStale(log, synced)

	var items []*Item
	var plans []*playlistPlan
	for _, pl := range remote {
		plan, err := s.preparePlaylist(ctx, log, pl)
		if err != nil {
			return nil, nil, err
		}
		if plan == nil {
			continue
		}
		plans = append(plans, plan)
		items = append(items, plan.items...)
	}
	return items, plans, nil
}

// preparePlaylist lists one playlist's media and filters out everything the
// catalog already knows. A playlist whose remote version matches the last
// fully imported version is skipped without listing individual items.
func (s *Session) preparePlaylist(ctx context.Context, log *slog.Logger, pl source.Playlist) (*playlistPlan, error) {
	stored, err := s.store.PlaylistVersion(ctx, s.src.Name(), pl.ID)
	if err != nil {
		return nil, Wrap(ErrStoreUnavailable, "prepare", "playlist version", "", err)
	}

	list, err := s.src.Media(ctx, pl.ID)
	if err != nil {
		return nil, Wrap(ErrSource, "prepare", "list media", pl.Name, err)
	}
	if list.Version != 0 && list.Version == stored {
		log.Debug("playlist up to date",
			logging.Int64(logging.FieldPlaylistID, pl.ID),
			logging.Int64("version", list.Version),
		)
		return nil, nil
	}

	known, err := s.store.KnownMediaIDs(ctx, s.src.Name(), pl.ID)
	if err != nil {
		return nil, Wrap(ErrStoreUnavailable, "prepare", "known media", "", err)
	}

	plan := &playlistPlan{remote: pl, version: list.Version}
	for _, desc := range list.Items {
		if _, exists := known[desc.MediaID]; exists {
			plan.skipped++
			continue
		}
		desc.PlaylistID = pl.ID
		desc.PlaylistName = pl.Name
		plan.items = append(plan.items, NewItem(desc, 0))
	}
	return plan, nil
}

func (s *Session) sweepStale(log *slog.Logger, result *catalog.SyncResult) {
	for _, path := range result.StaleFiles {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn("failed to remove stale file",
				logging.String("path", path),
				logging.Error(err),
			)
		}
	}
	for _, pl := range result.StaleRemoved {
		dir := filepath.Join(s.cfg.Paths.ImportDir, fileutil.SafeName(pl.Name))
		// Remove only becomes possible once the playlist's files are gone;
		// a non-empty directory is left alone.
		_ = os.Remove(dir)
		log.Info("removed stale playlist",
			logging.Int64(logging.FieldPlaylistID, pl.PlaylistID),
			logging.String("name", pl.Name),
		)
	}
	s.reporter.StaleRemoved(len(result.StaleRemoved))
}

func (s *Session) skippedCount(plans []*playlistPlan) int {
	total := 0
	for _, plan := range plans {
		total += plan.skipped
	}
	return total
}

// splitBatches partitions items into fixed-size batches; the final batch may
// be short.
func splitBatches(items []*Item, size int) [][]*Item {
	if size < 1 {
		size = 1
	}
	var batches [][]*Item
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]
		for _, item := range batch {
			item.Batch = len(batches) + 1
		}
		batches = append(batches, batch)
	}
	return batches
}

// runBatches executes batches strictly in order: batch i+1 starts only after
// every item of batch i has finished its download and persist steps.
// Processing overlap is the only work that crosses batch boundaries.
func (s *Session) runBatches(ctx context.Context, log *slog.Logger, batches [][]*Item) error {
	delay := time.Duration(s.cfg.Import.BatchDelaySeconds * float64(time.Second))

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return err
		}

		batchCtx := logging.WithBatch(ctx, i+1)
		s.reporter.BatchStarted(i + 1)
		logging.WithContext(batchCtx, log).Info("batch starting",
			logging.Int("items", len(batch)),
			logging.Int(logging.FieldBatchCount, len(batches)),
		)

		group, groupCtx := errgroup.WithContext(batchCtx)
		for _, item := range batch {
			item := item
			group.Go(func() error {
				// The errgroup context dies as soon as the batch
				// resolves; overlapped processing outlives the batch and
				// runs on the session context instead.
				return s.runItem(groupCtx, ctx, item)
			})
		}
		err := group.Wait()

		succeeded, failed := batchOutcome(batch)
		s.reporter.BatchResolved(i+1, succeeded, failed)
		logging.WithContext(batchCtx, log).Info("batch complete",
			logging.Int("succeeded", succeeded),
			logging.Int("failed", failed),
			logging.Int(logging.FieldBatchCount, len(batches)),
		)
		if err != nil {
			return err
		}

		if delay > 0 && i < len(batches)-1 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return nil
}

// batchOutcome counts where a batch's items landed once its downloads and
// persists settled. Items interrupted before reaching a terminal or persisted
// state are counted in neither column.
func batchOutcome(batch []*Item) (succeeded, failed int) {
	for _, item := range batch {
		switch item.State() {
		case StateFailed:
			failed++
		case StatePersisted, StateProcessing, StateProcessed:
			succeeded++
		}
	}
	return succeeded, failed
}

// runItem carries one item through download, persist, and processing
// submission. Item-level failures are recorded and swallowed; only fatal
// errors propagate to abort the batch.
func (s *Session) runItem(ctx, sessionCtx context.Context, item *Item) error {
	desc := item.Descriptor
	itemCtx := logging.WithMediaID(ctx, desc.MediaID)
	log := logging.WithContext(itemCtx, s.logger)

	if err := s.downloads.Acquire(itemCtx); err != nil {
		item.Fail(err)
		s.reporter.ItemFailed()
		return err
	}
	item.SetState(StateDownloading)

	localPath, err := s.download(itemCtx, item)
	s.downloads.Release()
	if err != nil {
		item.Fail(err)
		s.reporter.ItemFailed()
		log.Warn("download failed", logging.Error(err))
		return nil
	}
	item.LocalPath = localPath
	item.SetState(StateDownloaded)
	s.reporter.ItemDownloaded()

	rec := s.record(item)
	if err := s.gate.InsertMedia(itemCtx, rec); err != nil {
		item.Fail(err)
		s.reporter.ItemFailed()
		if IsFatal(err) || itemCtx.Err() != nil {
			log.Error("catalog write aborted session", logging.Error(err))
			return err
		}
		log.Warn("persist failed", logging.Error(err))
		return nil
	}
	item.SetState(StatePersisted)
	s.reporter.ItemPersisted()

	if err := s.overlap.Submit(logging.WithMediaID(sessionCtx, desc.MediaID), item); err != nil {
		item.Fail(Wrap(ErrProcessing, "process", "submit", desc.MediaID, err))
		s.reporter.ItemFailed()
		log.Warn("processing submission rejected", logging.Error(err))
	}
	return nil
}

// download fetches the item unless its destination already exists, in which
// case the existing file counts as a successful download.
func (s *Session) download(ctx context.Context, item *Item) (string, error) {
	desc := item.Descriptor

	name := desc.Filename
	if name == "" {
		name = desc.URL
	}
	base, ext := fileutil.SplitNameExt(name)
	if base == "" {
		base = desc.MediaID
	}
	filename := fileutil.SafeName(base)
	if ext != "" {
		filename += "." + ext
	}

	dir := filepath.Join(s.cfg.Paths.ImportDir, fileutil.SafeName(desc.PlaylistName))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", Wrap(ErrDownload, "download", "create playlist dir", "", err)
	}
	dest := filepath.Join(dir, filename)

	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}
	if err := s.src.Fetch(ctx, desc, dest); err != nil {
		return "", Wrap(ErrDownload, "download", desc.MediaID, "", err)
	}
	return dest, nil
}

func (s *Session) record(item *Item) *catalog.MediaFile {
	desc := item.Descriptor
	base, ext := fileutil.SplitNameExt(filepath.Base(item.LocalPath))
	caption := desc.Caption
	if caption == "" {
		caption = fileutil.CaptionFromFilename(filepath.Base(item.LocalPath))
	}
	origBase := desc.Filename
	if origBase == "" {
		origBase = desc.URL
	}
	_, origExt := fileutil.SplitNameExt(origBase)

	return &catalog.MediaFile{
		Source:        s.src.Name(),
		PlaylistID:    desc.PlaylistID,
		MediaItemID:   desc.MediaID,
		OriginalURL:   desc.URL,
		Basename:      base,
		Extension:     ext,
		OrigExtension: origExt,
		Caption:       caption,
		LocalPath:     item.LocalPath,
		OrigTimestamp: desc.Timestamp,
	}
}

// finishPlaylists records import bookkeeping for playlists whose items all
// succeeded. A playlist with any failed item keeps its old version so the
// next session retries the remainder.
func (s *Session) finishPlaylists(ctx context.Context, log *slog.Logger, plans []*playlistPlan) {
	for _, plan := range plans {
		clean := true
		for _, item := range plan.items {
			if item.State() == StateFailed {
				clean = false
				break
			}
		}
		if !clean {
			continue
		}
		if plan.version != 0 {
			if err := s.store.SetPlaylistVersion(ctx, s.src.Name(), plan.remote.ID, plan.version); err != nil {
				log.Warn("failed to record playlist version", logging.Error(err))
				continue
			}
		}
		if err := s.store.SetPlaylistImported(ctx, s.src.Name(), plan.remote.ID); err != nil {
			log.Warn("failed to record playlist import time", logging.Error(err))
		}
	}
}

func (s *Session) notifyError(ctx context.Context, err error) {
	notifyCtx := ctx
	if notifyCtx.Err() != nil {
		var cancel context.CancelFunc
		notifyCtx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}
	if notifyErr := s.notifier.NotifyImportError(notifyCtx, err, "import"); notifyErr != nil {
		s.logger.Warn("error notification failed", logging.Error(notifyErr))
	}
}
