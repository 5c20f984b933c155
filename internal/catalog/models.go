package catalog

import "time"

// MediaFile represents one imported media item persisted in the catalog.
type MediaFile struct {
	ID            int64
	Source        string
	PlaylistID    int64
	MediaItemID   string
	OriginalURL   string
	Basename      string
	Extension     string
	OrigExtension string
	Caption       string
	LocalPath     string
	Processed     bool
	ErrorMessage  string
	OrigTimestamp string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastModified  string
}

// Playlist is the catalog's record of a remote playlist.
type Playlist struct {
	Source       string
	PlaylistID   int64
	Name         string
	PictureCount int
	// SrcVersion is the remote slideshow version last imported; -1 means the
	// playlist has never been fully imported.
	SrcVersion   int64
	LastModified string
	LastImported string
}

// Stats aggregates catalog counts for status output.
type Stats struct {
	Files       int
	Processed   int
	Unprocessed int
	Failed      int
	Playlists   int
}

// DatabaseHealth captures diagnostic information about the catalog database.
type DatabaseHealth struct {
	Path           string
	Exists         bool
	Readable       bool
	SchemaVersion  int
	IntegrityCheck bool
	Error          string
}
