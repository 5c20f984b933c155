package source

import "context"

// Playlist describes a remote playlist eligible for import.
type Playlist struct {
	ID           int64
	Name         string
	PictureCount int
	LastUpdated  string
}

// Descriptor identifies one remote media item and where it should land.
type Descriptor struct {
	MediaID      string
	URL          string
	Filename     string
	Caption      string
	Timestamp    string
	MediaType    string
	PlaylistID   int64
	PlaylistName string
}

// MediaList is the result of listing a playlist's media.
type MediaList struct {
	// Version is the remote slideshow version; imports record it so an
	// unchanged playlist can be skipped on the next run.
	Version int64
	Items   []Descriptor
}

// Source supplies remote playlists, their media descriptors, and downloads.
// Implementations own protocol details (authentication, pagination, URLs).
type Source interface {
	Name() string
	Playlists(ctx context.Context) ([]Playlist, error)
	Media(ctx context.Context, playlistID int64) (*MediaList, error)
	Fetch(ctx context.Context, item Descriptor, destPath string) error
}
