package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PlaylistChange classifies a playlist returned from SyncPlaylists.
type PlaylistChange string

const (
	PlaylistNew     PlaylistChange = "new"
	PlaylistUpdated PlaylistChange = "updated"
)

// SyncResult describes how SyncPlaylists reconciled remote playlists against
// the catalog.
type SyncResult struct {
	// ToImport holds playlists that exist remotely, keyed by playlist id,
	// classified as new or previously imported.
	ToImport map[int64]PlaylistChange
	// StaleRemoved lists playlists deleted because they no longer exist
	// remotely; their file rows were removed with them.
	StaleRemoved []Playlist
	// StaleFiles holds the local paths of the removed file rows so the
	// caller can sweep them off disk.
	StaleFiles []string
}

// SyncPlaylists reconciles the catalog's playlist table with the current
// remote playlist set for one source: remote playlists are upserted, and
// playlists no longer present remotely are deleted together with their file
// rows. Callers remove the stale files from disk using StaleFiles.
func (s *Store) SyncPlaylists(ctx context.Context, source string, remote []Playlist) (*SyncResult, error) {
	ctx = ensureContext(ctx)

	existing, err := s.Playlists(ctx, source)
	if err != nil {
		return nil, err
	}
	existingByID := make(map[int64]Playlist, len(existing))
	for _, pl := range existing {
		existingByID[pl.PlaylistID] = pl
	}

	result := &SyncResult{ToImport: make(map[int64]PlaylistChange, len(remote))}
	currentIDs := make(map[int64]struct{}, len(remote))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin playlist sync: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, pl := range remote {
		currentIDs[pl.PlaylistID] = struct{}{}
		if _, known := existingByID[pl.PlaylistID]; known {
			result.ToImport[pl.PlaylistID] = PlaylistUpdated
		} else {
			result.ToImport[pl.PlaylistID] = PlaylistNew
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO imported_playlists (source, playlist_id, playlist_name, picture_count, src_version, last_modified, last_imported)
             VALUES (?, ?, ?, ?, -1, ?, NULL)
             ON CONFLICT(source, playlist_id) DO UPDATE SET
                 playlist_name = excluded.playlist_name,
                 picture_count = excluded.picture_count,
                 last_modified = excluded.last_modified`,
			source, pl.PlaylistID, pl.Name, pl.PictureCount, nullableString(pl.LastModified),
		); err != nil {
			return nil, fmt.Errorf("upsert playlist %d: %w", pl.PlaylistID, err)
		}
	}

	for id, pl := range existingByID {
		if _, still := currentIDs[id]; still {
			continue
		}
		rows, err := tx.QueryContext(ctx,
			`SELECT local_path FROM imported_files WHERE source = ? AND playlist_id = ?`, source, id)
		if err != nil {
			return nil, fmt.Errorf("list stale files for playlist %d: %w", id, err)
		}
		for rows.Next() {
			var path string
			if err := rows.Scan(&path); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan stale file path: %w", err)
			}
			result.StaleFiles = append(result.StaleFiles, path)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterate stale files: %w", err)
		}
		rows.Close()
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM imported_files WHERE source = ? AND playlist_id = ?`, source, id); err != nil {
			return nil, fmt.Errorf("delete stale files for playlist %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM imported_playlists WHERE source = ? AND playlist_id = ?`, source, id); err != nil {
			return nil, fmt.Errorf("delete stale playlist %d: %w", id, err)
		}
		result.StaleRemoved = append(result.StaleRemoved, pl)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit playlist sync: %w", err)
	}
	return result, nil
}

// Playlists returns the catalog's playlists for one source.
func (s *Store) Playlists(ctx context.Context, source string) ([]Playlist, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT source, playlist_id, playlist_name, picture_count, src_version, last_modified, last_imported
         FROM imported_playlists WHERE source = ? ORDER BY playlist_id`, source)
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	defer rows.Close()

	var playlists []Playlist
	for rows.Next() {
		var (
			pl           Playlist
			lastModified sql.NullString
			lastImported sql.NullString
		)
		if err := rows.Scan(&pl.Source, &pl.PlaylistID, &pl.Name, &pl.PictureCount, &pl.SrcVersion, &lastModified, &lastImported); err != nil {
			return nil, err
		}
		pl.LastModified = lastModified.String
		pl.LastImported = lastImported.String
		playlists = append(playlists, pl)
	}
	return playlists, rows.Err()
}

// PlaylistVersion returns the imported src_version for a playlist, or -1 when
// the playlist is unknown or has never been imported.
func (s *Store) PlaylistVersion(ctx context.Context, source string, playlistID int64) (int64, error) {
	var version int64
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT src_version FROM imported_playlists WHERE source = ? AND playlist_id = ?`,
		source, playlistID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return -1, nil
	}
	if err != nil {
		return -1, fmt.Errorf("playlist version: %w", err)
	}
	return version, nil
}

// SetPlaylistVersion records the remote slideshow version after an import.
func (s *Store) SetPlaylistVersion(ctx context.Context, source string, playlistID, version int64) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE imported_playlists SET src_version = ? WHERE source = ? AND playlist_id = ?`,
		version, source, playlistID)
	if err != nil {
		return fmt.Errorf("set playlist version: %w", err)
	}
	return nil
}

// SetPlaylistImported stamps last_imported for a playlist.
func (s *Store) SetPlaylistImported(ctx context.Context, source string, playlistID int64) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE imported_playlists SET last_imported = ? WHERE source = ? AND playlist_id = ?`,
		timestampNow(), source, playlistID)
	if err != nil {
		return fmt.Errorf("set playlist imported: %w", err)
	}
	return nil
}
