package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"framefeed/internal/config"
	"framefeed/internal/logging"
)

const sessionCookieName = "prod.session.id"

// Nixplay imports from a Nixplay cloud account. Playlists whose names match
// the configured identifier expression are eligible; everything else on the
// account is ignored.
type Nixplay struct {
	cfg        config.Source
	client     *http.Client
	logger     *slog.Logger
	identifier *regexp.Regexp

	mu       sync.Mutex
	loggedIn bool
}

// NewNixplay builds a Nixplay source from its config section.
func NewNixplay(cfg config.Source, logger *slog.Logger) (*Nixplay, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	var identifier *regexp.Regexp
	if cfg.Identifier != "" {
		identifier, err = regexp.Compile(cfg.Identifier)
		if err != nil {
			return nil, fmt.Errorf("identifier expression: %w", err)
		}
	}

	return &Nixplay{
		cfg: cfg,
		client: &http.Client{
			Jar:     jar,
			Timeout: time.Duration(cfg.FetchTimeout) * time.Second,
		},
		logger:     logging.NewComponentLogger(logger, "source."+cfg.Name),
		identifier: identifier,
	}, nil
}

// Name returns the configured source name.
func (n *Nixplay) Name() string {
	return n.cfg.Name
}

func (n *Nixplay) ensureSession(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.loggedIn {
		return nil
	}

	form := url.Values{
		"email":    {n.cfg.AccountID},
		"password": {n.cfg.AccountPassword},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.LoginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login: unexpected status %s", resp.Status)
	}
	if !n.hasSessionCookie() {
		return fmt.Errorf("login: no session cookie returned (bad credentials?)")
	}

	n.loggedIn = true
	n.logger.Debug("session established")
	return nil
}

func (n *Nixplay) hasSessionCookie() bool {
	base, err := url.Parse(n.cfg.LoginURL)
	if err != nil {
		return false
	}
	for _, cookie := range n.client.Jar.Cookies(base) {
		if cookie.Name == sessionCookieName {
			return true
		}
	}
	return false
}

type playlistJSON struct {
	ID              int64  `json:"id"`
	PlaylistName    string `json:"playlist_name"`
	LastUpdatedDate string `json:"last_updated_date"`
	PictureCount    int    `json:"picture_count"`
}

// Playlists lists the account's playlists whose names match the identifier.
func (n *Nixplay) Playlists(ctx context.Context) ([]Playlist, error) {
	if err := n.ensureSession(ctx); err != nil {
		return nil, err
	}

	var remote []playlistJSON
	if err := n.getJSON(ctx, n.cfg.PlaylistURL, &remote); err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}

	playlists := make([]Playlist, 0, len(remote))
	for _, pl := range remote {
		if n.identifier != nil && !n.identifier.MatchString(pl.PlaylistName) {
			continue
		}
		playlists = append(playlists, Playlist{
			ID:           pl.ID,
			Name:         pl.PlaylistName,
			PictureCount: pl.PictureCount,
			LastUpdated:  pl.LastUpdatedDate,
		})
	}
	n.logger.Debug("playlists listed",
		logging.Int("matched", len(playlists)),
		logging.Int("total", len(remote)),
	)
	return playlists, nil
}

type slideJSON struct {
	MediaItemID string `json:"mediaItemId"`
	MediaType   string `json:"mediaType"`
	OriginalURL string `json:"originalUrl"`
	Caption     string `json:"caption"`
	Timestamp   string `json:"timestamp"`
	Filename    string `json:"filename"`
}

type slidesEnvelope struct {
	SlideshowItemsVersion int64       `json:"slideshowItemsVersion"`
	Slides                []slideJSON `json:"slides"`
}

// Media lists a playlist's media descriptors, deduplicated by media id.
func (n *Nixplay) Media(ctx context.Context, playlistID int64) (*MediaList, error) {
	if err := n.ensureSession(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%d/slides/", strings.TrimRight(n.cfg.PlaylistURL, "/"), playlistID)

	var raw json.RawMessage
	if err := n.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}

	// The endpoint historically returned either a bare slide array or an
	// envelope carrying the slideshow version.
	var envelope slidesEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		var bare []slideJSON
		if bareErr := json.Unmarshal(raw, &bare); bareErr != nil {
			return nil, fmt.Errorf("decode media listing: %w", err)
		}
		envelope = slidesEnvelope{Slides: bare}
	}

	list := &MediaList{Version: envelope.SlideshowItemsVersion}
	seen := make(map[string]struct{}, len(envelope.Slides))
	duplicates := 0
	for _, slide := range envelope.Slides {
		if slide.MediaItemID == "" {
			continue
		}
		if _, dup := seen[slide.MediaItemID]; dup {
			duplicates++
			continue
		}
		seen[slide.MediaItemID] = struct{}{}
		list.Items = append(list.Items, Descriptor{
			MediaID:    slide.MediaItemID,
			URL:        slide.OriginalURL,
			Filename:   slide.Filename,
			Caption:    slide.Caption,
			Timestamp:  slide.Timestamp,
			MediaType:  slide.MediaType,
			PlaylistID: playlistID,
		})
	}
	if duplicates > 0 {
		n.logger.Debug("duplicate media ids skipped",
			logging.Int64(logging.FieldPlaylistID, playlistID),
			logging.Int("duplicates", duplicates),
		)
	}
	return list, nil
}

// Fetch streams one media item to destPath, writing through a temp file so a
// cancelled download never leaves a partial file behind.
func (n *Nixplay) Fetch(ctx context.Context, item Descriptor, destPath string) error {
	if item.URL == "" {
		return fmt.Errorf("media %s has no download url", item.MediaID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.URL, nil)
	if err != nil {
		return fmt.Errorf("build fetch request: %w", err)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", item.MediaID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %s", item.MediaID, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".framefeed-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("download %s: %w", item.MediaID, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, destPath); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func (n *Nixplay) getJSON(ctx context.Context, endpoint string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}
