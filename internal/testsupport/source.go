package testsupport

import (
	"context"
	"fmt"
	"os"
	"sync"

	"framefeed/internal/source"
)

// FakeSource is a scripted in-memory source.Source for tests. Media can be
// registered per playlist and individual fetches can be failed or delayed.
type FakeSource struct {
	SourceName string

	// FetchFunc, when set, replaces the default fetch behavior entirely.
	FetchFunc func(ctx context.Context, item source.Descriptor, destPath string) error

	mu         sync.Mutex
	playlists  []source.Playlist
	media      map[int64]*source.MediaList
	failFetch  map[string]error
	fetchCount map[string]int
}

func NewFakeSource(name string) *FakeSource {
	return &FakeSource{
		SourceName: name,
		media:      make(map[int64]*source.MediaList),
		failFetch:  make(map[string]error),
		fetchCount: make(map[string]int),
	}
}

func (f *FakeSource) Name() string { return f.SourceName }

// AddPlaylist registers a playlist and its media items.
func (f *FakeSource) AddPlaylist(pl source.Playlist, version int64, items ...source.Descriptor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range items {
		items[i].PlaylistID = pl.ID
		items[i].PlaylistName = pl.Name
	}
	f.playlists = append(f.playlists, pl)
	f.media[pl.ID] = &source.MediaList{Version: version, Items: items}
}

// FailFetch makes every fetch for the given media id return err.
func (f *FakeSource) FailFetch(mediaID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFetch[mediaID] = err
}

// FetchCount reports how many times the given media id was fetched.
func (f *FakeSource) FetchCount(mediaID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCount[mediaID]
}

func (f *FakeSource) Playlists(ctx context.Context) ([]source.Playlist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]source.Playlist, len(f.playlists))
	copy(out, f.playlists)
	return out, nil
}

func (f *FakeSource) Media(ctx context.Context, playlistID int64) (*source.MediaList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	list, ok := f.media[playlistID]
	if !ok {
		return nil, fmt.Errorf("unknown playlist %d", playlistID)
	}
	return list, nil
}

func (f *FakeSource) Fetch(ctx context.Context, item source.Descriptor, destPath string) error {
	f.mu.Lock()
	f.fetchCount[item.MediaID]++
	failure := f.failFetch[item.MediaID]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if failure != nil {
		return failure
	}
	if f.FetchFunc != nil {
		return f.FetchFunc(ctx, item, destPath)
	}
	return os.WriteFile(destPath, []byte("media:"+item.MediaID), 0o644)
}
