package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"framefeed/internal/config"
)

// Factory produces isolated single-connection writers. Every concurrent
// import write opens its own Writer and closes it when the operation ends;
// writers are never shared between in-flight operations.
type Factory struct {
	path string
}

// NewFactory builds a writer factory for the configured catalog database.
func NewFactory(cfg *config.Config) *Factory {
	return &Factory{path: cfg.CatalogPath()}
}

// NewFactoryPath builds a writer factory for an explicit database path.
func NewFactoryPath(path string) *Factory {
	return &Factory{path: path}
}

var writerPragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
	// Short driver-level wait; the import pipeline runs its own bounded
	// retry with backoff on top.
	"PRAGMA busy_timeout=1000",
	"PRAGMA temp_store=MEMORY",
}

// OpenWriter opens a fresh connection for one database operation.
func (f *Factory) OpenWriter(ctx context.Context) (*Writer, error) {
	ctx = ensureContext(ctx)

	db, err := sql.Open("sqlite", f.path)
	if err != nil {
		return nil, fmt.Errorf("open writer connection: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Minute)

	for _, pragma := range writerPragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply writer pragma %q: %w", pragma, execErr)
		}
	}
	return &Writer{db: db}, nil
}

// Writer owns one catalog connection for the duration of a single database
// operation.
type Writer struct {
	db *sql.DB
}

// InsertMedia persists one imported media record inside a transaction. The
// insert is an upsert so a re-imported item refreshes its metadata instead of
// violating the unique constraint.
func (w *Writer) InsertMedia(ctx context.Context, rec *MediaFile) error {
	ctx = ensureContext(ctx)

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := timestampNow()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO imported_files (source, playlist_id, media_item_id, original_url, basename,
             extension, orig_extension, caption, local_path, processed, orig_timestamp,
             created_at, updated_at, last_modified)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)
         ON CONFLICT(source, playlist_id, media_item_id) DO UPDATE SET
             original_url = excluded.original_url,
             basename = excluded.basename,
             extension = excluded.extension,
             caption = excluded.caption,
             local_path = excluded.local_path,
             updated_at = excluded.updated_at,
             last_modified = excluded.last_modified`,
		rec.Source, rec.PlaylistID, rec.MediaItemID, rec.OriginalURL, rec.Basename,
		nullableString(rec.Extension), nullableString(rec.OrigExtension), nullableString(rec.Caption),
		rec.LocalPath, nullableString(rec.OrigTimestamp), now, now, nullableString(rec.LastModified),
	); err != nil {
		return fmt.Errorf("insert media %s: %w", rec.MediaItemID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return nil
}

// Close releases the writer's connection. Safe to call multiple times.
func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	db := w.db
	w.db = nil
	return db.Close()
}
