package catalog

import (
	"context"
	"fmt"
	"os"
)

// Stats returns aggregate counts for status output.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	var stats Stats

	err := s.db.QueryRowContext(ctx, `
        SELECT COUNT(1),
               COALESCE(SUM(CASE WHEN processed = 1 THEN 1 ELSE 0 END), 0),
               COALESCE(SUM(CASE WHEN processed = 0 AND error_message IS NULL THEN 1 ELSE 0 END), 0),
               COALESCE(SUM(CASE WHEN error_message IS NOT NULL THEN 1 ELSE 0 END), 0)
        FROM imported_files`).Scan(&stats.Files, &stats.Processed, &stats.Unprocessed, &stats.Failed)
	if err != nil {
		return Stats{}, fmt.Errorf("catalog stats: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM imported_playlists`).Scan(&stats.Playlists); err != nil {
		return Stats{}, fmt.Errorf("playlist count: %w", err)
	}
	return stats, nil
}

// CheckHealth returns diagnostic information about the catalog database.
func (s *Store) CheckHealth(ctx context.Context) DatabaseHealth {
	ctx = ensureContext(ctx)
	health := DatabaseHealth{Path: s.path}

	if _, err := os.Stat(s.path); err != nil {
		health.Error = err.Error()
		return health
	}
	health.Exists = true

	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&health.SchemaVersion); err != nil {
		health.Error = fmt.Sprintf("read schema version: %v", err)
		return health
	}
	health.Readable = true

	var result string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		health.Error = fmt.Sprintf("integrity check: %v", err)
		return health
	}
	health.IntegrityCheck = result == "ok"
	if !health.IntegrityCheck {
		health.Error = result
	}
	return health
}
