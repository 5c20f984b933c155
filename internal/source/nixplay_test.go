package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"framefeed/internal/config"
	"framefeed/internal/logging"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if r.PostFormValue("email") != "frame@example.com" || r.PostFormValue("password") != "secret" {
			http.Error(w, "bad credentials", http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "abc123", Path: "/"})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/playlists", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": 11, "playlist_name": "frame-living-room", "picture_count": 3, "last_updated_date": "2026-08-01"},
			{"id": 12, "playlist_name": "holiday snaps", "picture_count": 40, "last_updated_date": "2026-07-15"},
			{"id": 13, "playlist_name": "frame-kitchen", "picture_count": 8, "last_updated_date": "2026-08-20"}
		]`))
	})
	mux.HandleFunc("/playlists/11/slides/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"slideshowItemsVersion": 42,
			"slides": [
				{"mediaItemId": "m-1", "mediaType": "photo", "originalUrl": "` + r.Host + `", "filename": "beach.jpg", "caption": "Beach"},
				{"mediaItemId": "m-2", "mediaType": "photo", "filename": "hills.jpg"},
				{"mediaItemId": "m-1", "mediaType": "photo", "filename": "beach.jpg"},
				{"mediaItemId": "", "mediaType": "photo", "filename": "orphan.jpg"}
			]
		}`))
	})
	mux.HandleFunc("/playlists/13/slides/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"mediaItemId": "m-9", "mediaType": "video", "filename": "clip.mp4"}]`))
	})
	mux.HandleFunc("/media/beach.jpg", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("jpeg-bytes"))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testSourceConfig(server *httptest.Server) config.Source {
	return config.Source{
		Name:            "nixplay",
		Enabled:         true,
		LoginURL:        server.URL + "/login",
		PlaylistURL:     server.URL + "/playlists",
		Identifier:      "^frame-",
		AccountID:       "frame@example.com",
		AccountPassword: "secret",
		FetchTimeout:    10,
	}
}

func TestNixplayPlaylistsFiltersByIdentifier(t *testing.T) {
	server := newTestServer(t)
	src, err := NewNixplay(testSourceConfig(server), logging.NewNop())
	if err != nil {
		t.Fatalf("NewNixplay: %v", err)
	}

	playlists, err := src.Playlists(context.Background())
	if err != nil {
		t.Fatalf("Playlists: %v", err)
	}
	if len(playlists) != 2 {
		t.Fatalf("expected 2 matching playlists, got %d", len(playlists))
	}
	if playlists[0].Name != "frame-living-room" || playlists[1].Name != "frame-kitchen" {
		t.Fatalf("unexpected playlists: %+v", playlists)
	}
	if playlists[1].PictureCount != 8 {
		t.Fatalf("expected picture count 8, got %d", playlists[1].PictureCount)
	}
}

func TestNixplayRejectsBadCredentials(t *testing.T) {
	server := newTestServer(t)
	cfg := testSourceConfig(server)
	cfg.AccountPassword = "wrong"

	src, err := NewNixplay(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("NewNixplay: %v", err)
	}
	if _, err := src.Playlists(context.Background()); err == nil {
		t.Fatal("expected login failure")
	}
}

func TestNixplayMediaDeduplicates(t *testing.T) {
	server := newTestServer(t)
	src, err := NewNixplay(testSourceConfig(server), logging.NewNop())
	if err != nil {
		t.Fatalf("NewNixplay: %v", err)
	}

	list, err := src.Media(context.Background(), 11)
	if err != nil {
		t.Fatalf("Media: %v", err)
	}
	if list.Version != 42 {
		t.Fatalf("expected version 42, got %d", list.Version)
	}
	if len(list.Items) != 2 {
		t.Fatalf("expected 2 unique items, got %d", len(list.Items))
	}
	if list.Items[0].MediaID != "m-1" || list.Items[1].MediaID != "m-2" {
		t.Fatalf("unexpected items: %+v", list.Items)
	}
	if list.Items[0].PlaylistID != 11 {
		t.Fatalf("expected playlist id stamped on item, got %d", list.Items[0].PlaylistID)
	}
}

func TestNixplayMediaBareArrayResponse(t *testing.T) {
	server := newTestServer(t)
	src, err := NewNixplay(testSourceConfig(server), logging.NewNop())
	if err != nil {
		t.Fatalf("NewNixplay: %v", err)
	}

	list, err := src.Media(context.Background(), 13)
	if err != nil {
		t.Fatalf("Media: %v", err)
	}
	if list.Version != 0 {
		t.Fatalf("expected zero version for bare array, got %d", list.Version)
	}
	if len(list.Items) != 1 || list.Items[0].MediaID != "m-9" {
		t.Fatalf("unexpected items: %+v", list.Items)
	}
}

func TestNixplayFetchWritesDestination(t *testing.T) {
	server := newTestServer(t)
	src, err := NewNixplay(testSourceConfig(server), logging.NewNop())
	if err != nil {
		t.Fatalf("NewNixplay: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "beach.jpg")
	item := Descriptor{MediaID: "m-1", URL: server.URL + "/media/beach.jpg", Filename: "beach.jpg"}
	if err := src.Fetch(context.Background(), item, dest); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read destination: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Fatalf("unexpected content %q", data)
	}

	entries, err := os.ReadDir(filepath.Dir(dest))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the destination file, found %d entries", len(entries))
	}
}

func TestNixplayFetchRejectsMissingURL(t *testing.T) {
	server := newTestServer(t)
	src, err := NewNixplay(testSourceConfig(server), logging.NewNop())
	if err != nil {
		t.Fatalf("NewNixplay: %v", err)
	}
	if err := src.Fetch(context.Background(), Descriptor{MediaID: "m-x"}, filepath.Join(t.TempDir(), "x.jpg")); err == nil {
		t.Fatal("expected error for descriptor without url")
	}
}
