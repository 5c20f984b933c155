package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const mediaColumns = `id, source, playlist_id, media_item_id, original_url, basename,
    extension, orig_extension, caption, local_path, processed, error_message,
    orig_timestamp, created_at, updated_at, last_modified`

func scanMedia(scanner interface{ Scan(dest ...any) error }) (*MediaFile, error) {
	var (
		id            int64
		source        string
		playlistID    int64
		mediaItemID   string
		originalURL   string
		basename      string
		extension     sql.NullString
		origExtension sql.NullString
		caption       sql.NullString
		localPath     string
		processed     int64
		errorMessage  sql.NullString
		origTimestamp sql.NullString
		createdRaw    string
		updatedRaw    string
		lastModified  sql.NullString
	)

	if err := scanner.Scan(
		&id, &source, &playlistID, &mediaItemID, &originalURL, &basename,
		&extension, &origExtension, &caption, &localPath, &processed,
		&errorMessage, &origTimestamp, &createdRaw, &updatedRaw, &lastModified,
	); err != nil {
		return nil, err
	}

	return &MediaFile{
		ID:            id,
		Source:        source,
		PlaylistID:    playlistID,
		MediaItemID:   mediaItemID,
		OriginalURL:   originalURL,
		Basename:      basename,
		Extension:     extension.String,
		OrigExtension: origExtension.String,
		Caption:       caption.String,
		LocalPath:     localPath,
		Processed:     processed != 0,
		ErrorMessage:  errorMessage.String,
		OrigTimestamp: origTimestamp.String,
		CreatedAt:     parseTimestamp(createdRaw),
		UpdatedAt:     parseTimestamp(updatedRaw),
		LastModified:  lastModified.String,
	}, nil
}

// GetMedia fetches one media record by source, playlist, and remote item id.
func (s *Store) GetMedia(ctx context.Context, source string, playlistID int64, mediaItemID string) (*MediaFile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+mediaColumns+` FROM imported_files WHERE source = ? AND playlist_id = ? AND media_item_id = ?`,
		source, playlistID, mediaItemID)
	media, err := scanMedia(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get media: %w", err)
	}
	return media, nil
}

// KnownMediaIDs returns the remote ids already imported for a playlist.
func (s *Store) KnownMediaIDs(ctx context.Context, source string, playlistID int64) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT media_item_id FROM imported_files WHERE source = ? AND playlist_id = ?`,
		source, playlistID)
	if err != nil {
		return nil, fmt.Errorf("known media ids: %w", err)
	}
	defer rows.Close()

	known := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		known[id] = struct{}{}
	}
	return known, rows.Err()
}

// ListUnprocessed returns media files awaiting post-download processing.
func (s *Store) ListUnprocessed(ctx context.Context, limit int) ([]*MediaFile, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+mediaColumns+` FROM imported_files
         WHERE processed = 0 AND error_message IS NULL
         ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unprocessed: %w", err)
	}
	defer rows.Close()

	var files []*MediaFile
	for rows.Next() {
		media, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, media)
	}
	return files, rows.Err()
}

// MarkProcessed flags one media record as processed.
func (s *Store) MarkProcessed(ctx context.Context, source string, playlistID int64, mediaItemID string) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE imported_files SET processed = 1, error_message = NULL, updated_at = ?
         WHERE source = ? AND playlist_id = ? AND media_item_id = ?`,
		timestampNow(), source, playlistID, mediaItemID)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

// MarkProcessingFailed records a processing failure against one media record.
func (s *Store) MarkProcessingFailed(ctx context.Context, source string, playlistID int64, mediaItemID, cause string) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE imported_files SET error_message = ?, updated_at = ?
         WHERE source = ? AND playlist_id = ? AND media_item_id = ?`,
		cause, timestampNow(), source, playlistID, mediaItemID)
	if err != nil {
		return fmt.Errorf("mark processing failed: %w", err)
	}
	return nil
}
